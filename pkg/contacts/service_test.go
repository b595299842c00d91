package contacts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/crmdesk/crmdesk/internal/config"
	"github.com/crmdesk/crmdesk/internal/event_bus"
	"github.com/crmdesk/crmdesk/internal/utils"
	"github.com/crmdesk/crmdesk/pkg/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceFixture struct {
	service   *ServiceImpl
	directory *DirectoryStub
	recent    *RecentAttendeesRepositoryStub
	clock     *utils.MockClock
	ctx       context.Context
}

func setupServiceTest() serviceFixture {
	directory := NewDirectoryStub()
	directory.Connections = []Contact{
		{DisplayName: "Ann Lee", Email: "ann@example.com"},
		{Email: "bob@example.com"},
	}
	directory.Members = []Contact{
		{DisplayName: "Carol Diaz", Email: "carol@corp.example"},
		{DisplayName: "Ann Lee", Email: "ann@example.com"},
	}
	recent := NewRecentAttendeesRepositoryStub()
	clock := utils.NewMockClock(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
	return serviceFixture{
		service:   NewService(directory, recent, clock, config.Contacts{CacheTtl: 5 * time.Minute}),
		directory: directory,
		recent:    recent,
		clock:     clock,
		ctx:       user.WithUser(context.Background(), user.User{Id: 7}),
	}
}

func TestServiceImpl_Search(t *testing.T) {
	t.Run("should return empty list for empty query without lookups", func(t *testing.T) {
		f := setupServiceTest()

		result, err := f.service.Search(f.ctx, "  ")

		require.NoError(t, err)
		assert.Empty(t, result)
		assert.Equal(t, 0, f.directory.CallCount())
	})

	t.Run("should match both address and named form", func(t *testing.T) {
		f := setupServiceTest()

		result, err := f.service.Search(f.ctx, "ANN")

		require.NoError(t, err)
		assert.Equal(t, []string{"ann@example.com", "Ann Lee <ann@example.com>"}, result)
	})

	t.Run("should serve from cache within freshness window", func(t *testing.T) {
		// given
		f := setupServiceTest()
		_, err := f.service.Search(f.ctx, "ann")
		require.NoError(t, err)
		callsAfterFirst := f.directory.CallCount()

		// when
		f.clock.Advance(4*time.Minute + 59*time.Second)
		result, err := f.service.Search(f.ctx, "carol")

		// then
		require.NoError(t, err)
		assert.Equal(t, 2, callsAfterFirst)
		assert.Equal(t, callsAfterFirst, f.directory.CallCount())
		assert.Equal(t, []string{"carol@corp.example", "Carol Diaz <carol@corp.example>"}, result)
	})

	t.Run("should refresh once freshness window elapsed", func(t *testing.T) {
		// given
		f := setupServiceTest()
		_, err := f.service.Search(f.ctx, "ann")
		require.NoError(t, err)
		f.directory.Connections = append(f.directory.Connections, Contact{Email: "dave@example.com"})

		// when
		f.clock.Advance(5 * time.Minute)
		result, err := f.service.Search(f.ctx, "dave")

		// then
		require.NoError(t, err)
		assert.Equal(t, 4, f.directory.CallCount())
		assert.Equal(t, []string{"dave@example.com"}, result)
	})

	t.Run("should fall back to recent attendees without merging stale cache", func(t *testing.T) {
		// given
		f := setupServiceTest()
		_, err := f.service.Search(f.ctx, "ann")
		require.NoError(t, err)
		require.NoError(t, f.service.RecordAttendees(f.ctx, 7, []string{"annika@partner.example"}))
		f.directory.SetErrors(nil, errors.New("directory unavailable"))
		f.clock.Advance(10 * time.Minute)

		// when
		result, err := f.service.Search(f.ctx, "ann")

		// then
		require.NoError(t, err)
		assert.Equal(t, []string{"annika@partner.example"}, result)
	})

	t.Run("should keep caches per user", func(t *testing.T) {
		f := setupServiceTest()
		_, err := f.service.Search(f.ctx, "ann")
		require.NoError(t, err)

		_, err = f.service.Search(user.WithUser(context.Background(), user.User{Id: 8}), "ann")

		require.NoError(t, err)
		assert.Equal(t, 4, f.directory.CallCount())
	})
}

func TestServiceImpl_Subscribe(t *testing.T) {
	// given
	f := setupServiceTest()
	bus := event_bus.NewEventBus()
	f.service.Subscribe(bus)

	// when
	err := bus.Publish(event_bus.NewEvent(f.ctx, event_bus.CalendarEventCreatedType, event_bus.CalendarEventCreated{
		UserId:    7,
		EventId:   "evt1",
		Attendees: []string{"zoe@example.com", " "},
	}))

	// then
	require.NoError(t, err)
	recent, err := f.recent.ListAttendees(f.ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"zoe@example.com"}, recent)
}

// hangingDirectory never answers until its context ends.
type hangingDirectory struct{}

func (hangingDirectory) Directory(context.Context) (Directory, error) {
	return hangingDirectory{}, nil
}

func (hangingDirectory) ListConnections(ctx context.Context) ([]Contact, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (hangingDirectory) SearchDirectory(ctx context.Context, _ string) ([]Contact, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestServiceImpl_SearchTimeout(t *testing.T) {
	t.Run("should fall back to recent attendees when lookups hang", func(t *testing.T) {
		// given
		recent := NewRecentAttendeesRepositoryStub()
		clock := utils.NewMockClock(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
		service := NewService(hangingDirectory{}, recent, clock, config.Contacts{
			CacheTtl:       5 * time.Minute,
			RefreshTimeout: 100 * time.Millisecond,
		})
		ctx := user.WithUser(context.Background(), user.User{Id: 7})
		require.NoError(t, service.RecordAttendees(ctx, 7, []string{"dana@client.example"}))

		// when
		started := time.Now()
		result, err := service.Search(ctx, "dana")

		// then
		require.NoError(t, err)
		assert.Equal(t, []string{"dana@client.example"}, result)
		assert.Less(t, time.Since(started), 2*time.Second)
	})

	t.Run("should stop waiting when the caller gives up", func(t *testing.T) {
		// given
		clock := utils.NewMockClock(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
		service := NewService(hangingDirectory{}, NewRecentAttendeesRepositoryStub(), clock, config.Contacts{
			CacheTtl:       5 * time.Minute,
			RefreshTimeout: 5 * time.Second,
		})
		ctx, cancel := context.WithTimeout(user.WithUser(context.Background(), user.User{Id: 7}), 100*time.Millisecond)
		defer cancel()

		// when
		started := time.Now()
		_, err := service.Search(ctx, "dana")

		// then
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(started), 2*time.Second)
	})
}
