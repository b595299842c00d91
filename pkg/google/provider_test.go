package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/crmdesk/crmdesk/internal/rest"
	"github.com/crmdesk/crmdesk/pkg/calendar"
	"github.com/crmdesk/crmdesk/pkg/contacts"
	"github.com/crmdesk/crmdesk/pkg/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/people/v1"
)

type fakeGoogle struct {
	*httptest.Server
	mu       sync.Mutex
	requests []*http.Request
	bodies   []string
}

func (f *fakeGoogle) record(r *http.Request, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r)
	f.bodies = append(f.bodies, body)
}

func (f *fakeGoogle) last() (*http.Request, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1], f.bodies[len(f.bodies)-1]
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	f := &fakeGoogle{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body strings.Builder
		if r.Body != nil {
			var raw json.RawMessage
			if json.NewDecoder(r.Body).Decode(&raw) == nil {
				body.Write(raw)
			}
		}
		f.record(r, body.String())
		query := r.URL.Query()
		path := r.URL.Path

		switch {
		case strings.HasSuffix(path, "/events/series-1/instances"):
			writeJSON(w, http.StatusOK, `{"items":[{"id":"series-1_1","summary":"Standup"},{"id":"series-1_2","summary":"Standup"}]}`)
		case strings.HasSuffix(path, "/calendars/primary/events") && r.Method == http.MethodGet:
			if query.Get("syncToken") == "expired" {
				writeJSON(w, http.StatusGone, `{"error":{"code":410,"message":"Sync token is no longer valid, a full sync is required."}}`)
				return
			}
			writeJSON(w, http.StatusOK, `{"items":[{"id":"evt-1","summary":"Review","start":{"dateTime":"2024-06-01T10:00:00Z"},"end":{"dateTime":"2024-06-01T11:00:00Z"}}],"nextSyncToken":"sync-2"}`)
		case strings.HasSuffix(path, "/calendars/primary/events") && r.Method == http.MethodPost:
			writeJSON(w, http.StatusOK, `{"id":"created-1","summary":"New","hangoutLink":"https://meet.google.com/abc"}`)
		case strings.HasSuffix(path, "/calendars/primary/events/missing"):
			writeJSON(w, http.StatusNotFound, `{"error":{"code":404,"message":"Not Found"}}`)
		case strings.HasSuffix(path, "/users/me/calendarList"):
			writeJSON(w, http.StatusOK, `{"items":[{"id":"primary","summary":"Work","primary":true},{"id":"team@group","summary":"Team"}]}`)
		case strings.HasSuffix(path, "/v1/people/me/connections"):
			if query.Get("pageToken") == "" {
				writeJSON(w, http.StatusOK, `{"connections":[{"names":[{"displayName":"Ann Lee"}],"emailAddresses":[{"value":"ann@example.com"},{"value":"ann.lee@home.example"}]}],"nextPageToken":"page-2"}`)
				return
			}
			writeJSON(w, http.StatusOK, `{"connections":[{"emailAddresses":[{"value":"nameless@example.com"}]}]}`)
		case strings.HasSuffix(path, "/v1/people:listDirectoryPeople"):
			writeJSON(w, http.StatusOK, `{"people":[{"names":[{"displayName":"Bob Ray"}],"emailAddresses":[{"value":"bob@corp.example"}]}]}`)
		case strings.HasSuffix(path, "/v1/people:searchDirectoryPeople"):
			writeJSON(w, http.StatusOK, `{"people":[{"names":[{"displayName":"Cid Moe"}],"emailAddresses":[{"value":"cid@corp.example"}]}]}`)
		default:
			writeJSON(w, http.StatusNotFound, `{"error":{"code":404,"message":"unexpected `+path+`"}}`)
		}
	}))
	t.Cleanup(f.Close)
	return f
}

func newTestProvider(t *testing.T) (*Provider, *fakeGoogle) {
	f := newFakeGoogle(t)
	ctx := context.Background()
	opts := []option.ClientOption{option.WithEndpoint(f.URL + "/"), option.WithHTTPClient(f.Client())}
	calendarService, err := gcal.NewService(ctx, opts...)
	require.NoError(t, err)
	peopleService, err := people.NewService(ctx, opts...)
	require.NoError(t, err)
	return NewProvider(calendarService, peopleService), f
}

func TestProvider_ListEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("should send a bounded ordered query without sync token", func(t *testing.T) {
		// given
		provider, f := newTestProvider(t)
		from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

		// when
		events, err := provider.ListEvents(ctx, "primary", calendar.ListQuery{TimeMin: from, MaxResults: 2500})

		// then
		require.NoError(t, err)
		require.Len(t, events.Items, 1)
		assert.Equal(t, "sync-2", events.NextSyncToken)
		r, _ := f.last()
		query := r.URL.Query()
		assert.Equal(t, "true", query.Get("singleEvents"))
		assert.Equal(t, "startTime", query.Get("orderBy"))
		assert.Equal(t, "2024-05-01T00:00:00Z", query.Get("timeMin"))
		assert.Equal(t, "2500", query.Get("maxResults"))
		assert.Empty(t, query.Get("syncToken"))
	})

	t.Run("should drop bounds and ordering with sync token", func(t *testing.T) {
		// given
		provider, f := newTestProvider(t)

		// when
		_, err := provider.ListEvents(ctx, "primary", calendar.ListQuery{
			TimeMin:   time.Now(),
			SyncToken: "sync-1",
		})

		// then
		require.NoError(t, err)
		r, _ := f.last()
		query := r.URL.Query()
		assert.Equal(t, "sync-1", query.Get("syncToken"))
		assert.Empty(t, query.Get("orderBy"))
		assert.Empty(t, query.Get("timeMin"))
		assert.Equal(t, "true", query.Get("showDeleted"))
	})

	t.Run("should map gone status to expired cursor", func(t *testing.T) {
		// given
		provider, _ := newTestProvider(t)

		// when
		_, err := provider.ListEvents(ctx, "primary", calendar.ListQuery{SyncToken: "expired"})

		// then
		assert.ErrorIs(t, err, calendar.ErrSyncCursorExpired)
	})
}

func TestProvider_Events(t *testing.T) {
	ctx := context.Background()

	t.Run("should request conference data on insert", func(t *testing.T) {
		// given
		provider, f := newTestProvider(t)

		// when
		created, err := provider.InsertEvent(ctx, "primary", &gcal.Event{Summary: "New"})

		// then
		require.NoError(t, err)
		assert.Equal(t, "created-1", created.Id)
		r, body := f.last()
		assert.Equal(t, "1", r.URL.Query().Get("conferenceDataVersion"))
		assert.Contains(t, body, `"summary":"New"`)
	})

	t.Run("should keep provider status of a missing event", func(t *testing.T) {
		// given
		provider, _ := newTestProvider(t)

		// when
		_, err := provider.GetEvent(ctx, "primary", "missing")

		// then
		require.Error(t, err)
		assert.Equal(t, http.StatusNotFound, rest.StatusFor(err))
	})

	t.Run("should list series instances from a start", func(t *testing.T) {
		// given
		provider, f := newTestProvider(t)
		from := time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)

		// when
		instances, err := provider.ListInstances(ctx, "primary", "series-1", from, 2500)

		// then
		require.NoError(t, err)
		assert.Len(t, instances, 2)
		r, _ := f.last()
		assert.Equal(t, "2024-06-02T09:00:00Z", r.URL.Query().Get("timeMin"))
	})
}

func TestProvider_Contacts(t *testing.T) {
	ctx := context.Background()

	t.Run("should page through connections", func(t *testing.T) {
		// given
		provider, f := newTestProvider(t)

		// when
		result, err := provider.ListConnections(ctx)

		// then
		require.NoError(t, err)
		assert.Equal(t, []contacts.Contact{
			{DisplayName: "Ann Lee", Email: "ann@example.com"},
			{DisplayName: "Ann Lee", Email: "ann.lee@home.example"},
			{DisplayName: "", Email: "nameless@example.com"},
		}, result)
		r, _ := f.last()
		assert.Equal(t, "page-2", r.URL.Query().Get("pageToken"))
		assert.Equal(t, "names,emailAddresses", r.URL.Query().Get("personFields"))
	})

	t.Run("should list the whole directory for empty query", func(t *testing.T) {
		// given
		provider, f := newTestProvider(t)

		// when
		result, err := provider.SearchDirectory(ctx, "")

		// then
		require.NoError(t, err)
		assert.Equal(t, []contacts.Contact{{DisplayName: "Bob Ray", Email: "bob@corp.example"}}, result)
		r, _ := f.last()
		assert.Contains(t, r.URL.Query()["sources"], "DIRECTORY_SOURCE_TYPE_DOMAIN_PROFILE")
	})

	t.Run("should search the directory", func(t *testing.T) {
		// given
		provider, f := newTestProvider(t)

		// when
		result, err := provider.SearchDirectory(ctx, "cid")

		// then
		require.NoError(t, err)
		assert.Equal(t, []contacts.Contact{{DisplayName: "Cid Moe", Email: "cid@corp.example"}}, result)
		r, _ := f.last()
		assert.Equal(t, "cid", r.URL.Query().Get("query"))
	})
}

func TestService_ListCalendars(t *testing.T) {
	t.Run("should call Google with the user's token", func(t *testing.T) {
		// given
		f := newFakeGoogle(t)
		client, store, _ := newTestTokenClient(t)
		store.PutToken(1, &oauth2.Token{AccessToken: "user-access", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)})
		service := NewService(client, option.WithEndpoint(f.URL+"/"))
		ctx := user.WithUser(context.Background(), user.User{Id: 1, Uid: "uid-1"})

		// when
		calendars, err := service.ListCalendars(ctx)

		// then
		require.NoError(t, err)
		assert.Equal(t, []CalendarItem{
			{ID: "primary", Summary: "Work", Primary: true},
			{ID: "team@group", Summary: "Team"},
		}, calendars)
		r, _ := f.last()
		assert.Equal(t, "Bearer user-access", r.Header.Get("Authorization"))
	})

	t.Run("should require consent for a user without token", func(t *testing.T) {
		// given
		client, _, _ := newTestTokenClient(t)
		service := NewService(client)
		ctx := user.WithUser(context.Background(), user.User{Id: 2, Uid: "uid-2"})

		// when
		_, err := service.CalendarProvider(ctx)

		// then
		assert.Equal(t, http.StatusForbidden, rest.StatusFor(err))
	})

	t.Run("should fail without user in context", func(t *testing.T) {
		// given
		client, _, _ := newTestTokenClient(t)
		service := NewService(client)

		// when
		_, err := service.Directory(context.Background())

		// then
		assert.ErrorIs(t, err, user.ErrNoUser)
	})
}

func TestHandler_OAuthCallback(t *testing.T) {
	t.Run("should reject state without nonce", func(t *testing.T) {
		// given
		client, _, _ := newTestTokenClient(t)
		handler := NewHandler(NewService(client), client)
		req := httptest.NewRequest(http.MethodGet, "/callback?code=c&state="+url.QueryEscape("https://crm.example.com"), nil)
		rec := httptest.NewRecorder()

		// when
		handler.OAuthCallback(rec, req)

		// then
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("should redirect with success after exchange", func(t *testing.T) {
		// given
		client, store, _ := newTestTokenClient(t)
		require.NoError(t, store.StartAuthorization(context.Background(), 1, "nonce-1"))
		handler := NewHandler(NewService(client), client)
		state := url.QueryEscape("https://crm.example.com/settings|nonce-1")
		req := httptest.NewRequest(http.MethodGet, "/callback?code=c&state="+state, nil)
		rec := httptest.NewRecorder()

		// when
		handler.OAuthCallback(rec, req)

		// then
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "https://crm.example.com/settings?success=true", rec.Header().Get("Location"))
	})

	t.Run("should redirect with failure on unknown nonce", func(t *testing.T) {
		// given
		client, _, _ := newTestTokenClient(t)
		handler := NewHandler(NewService(client), client)
		state := url.QueryEscape("https://crm.example.com/settings|stale")
		req := httptest.NewRequest(http.MethodGet, "/callback?code=c&state="+state, nil)
		rec := httptest.NewRecorder()

		// when
		handler.OAuthCallback(rec, req)

		// then
		assert.Equal(t, "https://crm.example.com/settings?success=false", rec.Header().Get("Location"))
	})
}
