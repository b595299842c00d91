package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/crmdesk/crmdesk/internal/config"
	"github.com/crmdesk/crmdesk/internal/event_bus"
	"github.com/crmdesk/crmdesk/internal/utils"
	"github.com/crmdesk/crmdesk/pkg/calendar"
	"github.com/crmdesk/crmdesk/pkg/contacts"
	"github.com/crmdesk/crmdesk/pkg/google"
	"github.com/crmdesk/crmdesk/pkg/user"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gcal "google.golang.org/api/calendar/v3"
)

type appFixture struct {
	router    *mux.Router
	provider  *calendar.ProviderStub
	directory *contacts.DirectoryStub
	uid       string
}

func setupApp(t *testing.T) appFixture {
	ctx := context.Background()
	cfg := config.Defaults()
	clock := utils.NewMockClock(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC))
	provider := calendar.NewProviderStub()
	directory := contacts.NewDirectoryStub()

	deps := &Dependencies{Clock: clock, EventBus: event_bus.NewEventBus()}
	deps.UserService = user.NewUserService(user.NewStubUserRepository())
	deps.UserHandler = user.NewHandler(deps.UserService)

	// no credentials configured, Google endpoints report the integration as unavailable
	deps.GoogleBootstrap = google.NewBootstrap(cfg.Google, cfg.Host, google.NewHTTPDiscoveryLoader(nil))
	deps.GoogleTokenClient = google.NewTokenClient(deps.GoogleBootstrap, google.NewTokenStoreStub())
	deps.GoogleService = google.NewService(deps.GoogleTokenClient)
	deps.GoogleHandler = google.NewHandler(deps.GoogleService, deps.GoogleTokenClient)

	deps.CalendarService = calendar.NewService(provider, calendar.NewCursorRepositoryStub(), deps.EventBus, clock, cfg.Calendar)
	deps.CalendarHandler = calendar.NewHandler(deps.CalendarService)
	deps.ContactsService = contacts.NewService(directory, contacts.NewRecentAttendeesRepositoryStub(), clock, cfg.Contacts)
	deps.ContactsService.Subscribe(deps.EventBus)
	deps.ContactsHandler = contacts.NewHandler(deps.ContactsService)

	r := mux.NewRouter()
	SetupMiddleware(r, deps)
	RegisterRoutes(r, deps)

	created, err := deps.UserService.CreateUser(ctx, user.User{Username: "ann", DisplayName: "Ann"})
	require.NoError(t, err)
	return appFixture{router: r, provider: provider, directory: directory, uid: created.Uid}
}

func (f appFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if f.uid != "" {
		req.Header.Set(userIdHeader, f.uid)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func TestMiddleware_UserContext(t *testing.T) {
	t.Run("should reject unknown user", func(t *testing.T) {
		// given
		f := setupApp(t)
		f.uid = "unknown"

		// when
		rr := f.do(t, http.MethodGet, "/api/user/current", nil)

		// then
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("should resolve known user", func(t *testing.T) {
		// given
		f := setupApp(t)

		// when
		rr := f.do(t, http.MethodGet, "/api/user/current", nil)

		// then
		require.Equal(t, http.StatusOK, rr.Code)
		var dto user.UserDTO
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&dto))
		assert.Equal(t, "ann", dto.Username)
	})

	t.Run("should refuse calendar access without user", func(t *testing.T) {
		// given
		f := setupApp(t)
		f.uid = ""

		// when
		rr := f.do(t, http.MethodGet, "/api/calendar/events", nil)

		// then
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestRoutes(t *testing.T) {
	t.Run("should route export before event id", func(t *testing.T) {
		// given
		f := setupApp(t)
		f.provider.Seed(&gcal.Event{
			Summary: "Demo",
			Start:   &gcal.EventDateTime{DateTime: "2024-06-02T09:00:00Z"},
			End:     &gcal.EventDateTime{DateTime: "2024-06-02T10:00:00Z"},
		})

		// when
		rr := f.do(t, http.MethodGet, "/api/calendar/events/export.ics", nil)

		// then
		require.Equal(t, http.StatusOK, rr.Code)
		assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "text/calendar"))
		assert.Contains(t, rr.Body.String(), "SUMMARY:Demo")
	})

	t.Run("should reject overlapping event and remember attendees of created ones", func(t *testing.T) {
		// given
		f := setupApp(t)
		f.directory.SetErrors(errors.New("people unavailable"), errors.New("directory unavailable"))
		start := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
		first := calendar.EventDTO{Title: "Kickoff", Start: start, End: start.Add(time.Hour), Attendees: []string{"bob@client.example"}}
		second := calendar.EventDTO{Title: "Overlap", Start: start.Add(30 * time.Minute), End: start.Add(90 * time.Minute)}

		// when
		created := f.do(t, http.MethodPost, "/api/calendar/events", first)
		conflicting := f.do(t, http.MethodPost, "/api/calendar/events", second)
		suggestions := f.do(t, http.MethodGet, "/api/contacts/suggestions?q=bob", nil)

		// then
		require.Equal(t, http.StatusCreated, created.Code)
		assert.Equal(t, http.StatusConflict, conflicting.Code)
		require.Equal(t, http.StatusOK, suggestions.Code)
		var emails []string
		require.NoError(t, json.NewDecoder(suggestions.Body).Decode(&emails))
		assert.Equal(t, []string{"bob@client.example"}, emails)
	})

	t.Run("should report unconfigured Google integration as unavailable", func(t *testing.T) {
		// given
		f := setupApp(t)

		// when
		rr := f.do(t, http.MethodGet, "/api/integrations/google/calendars", nil)

		// then
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})
}
