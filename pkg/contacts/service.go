package contacts

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/crmdesk/crmdesk/internal/config"
	"github.com/crmdesk/crmdesk/internal/event_bus"
	"github.com/crmdesk/crmdesk/internal/utils"
	"github.com/crmdesk/crmdesk/pkg/user"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

type Service interface {
	Search(ctx context.Context, query string) ([]string, error)
	RecordAttendees(ctx context.Context, userId int, emails []string) error
}

type cacheEntry struct {
	suggestions []string
	fetchedAt   time.Time
}

type ServiceImpl struct {
	directories DirectorySource
	recent      RecentAttendeesRepository
	clock       utils.Clock
	ttl         time.Duration
	timeout     time.Duration

	mu      sync.Mutex
	caches  map[int]cacheEntry
	refresh singleflight.Group
}

const defaultRefreshTimeout = 30 * time.Second

func NewService(directories DirectorySource, recent RecentAttendeesRepository, clock utils.Clock, cfg config.Contacts) *ServiceImpl {
	timeout := cfg.RefreshTimeout
	if timeout <= 0 {
		timeout = defaultRefreshTimeout
	}
	return &ServiceImpl{
		directories: directories,
		recent:      recent,
		clock:       clock,
		ttl:         cfg.CacheTtl,
		timeout:     timeout,
		caches:      map[int]cacheEntry{},
	}
}

// Search returns suggestions containing query, case-insensitively. A stale or empty cache is
// rebuilt from the directory; when that fails the recently used attendees are searched instead.
func (s *ServiceImpl) Search(ctx context.Context, query string) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []string{}, nil
	}
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}

	if cached, ok := s.fresh(userId); ok {
		return filterSuggestions(cached, query), nil
	}

	// the refresh is shared between callers, so it is bounded by its own timeout instead of ctx
	flight := s.refresh.DoChan(strconv.Itoa(userId), func() (any, error) {
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.reload(refreshCtx, userId)
	})
	var result singleflight.Result
	select {
	case result = <-flight:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	suggestions, err := result.Val, result.Err
	if err != nil {
		log.Warnf("contact lookup failed for user %d, using recent attendees: %v", userId, err)
		recent, recentErr := s.recent.ListAttendees(ctx, userId)
		if recentErr != nil {
			return nil, fmt.Errorf("failed to read recent attendees: %w", recentErr)
		}
		return filterSuggestions(recent, query), nil
	}
	return filterSuggestions(suggestions.([]string), query), nil
}

func (s *ServiceImpl) fresh(userId int) ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.caches[userId]
	if !ok || len(entry.suggestions) == 0 {
		return nil, false
	}
	if s.clock.Now().Sub(entry.fetchedAt) >= s.ttl {
		return nil, false
	}
	return entry.suggestions, true
}

// reload queries connections and the directory in parallel. Either failing leaves the cache untouched.
func (s *ServiceImpl) reload(ctx context.Context, userId int) ([]string, error) {
	directory, err := s.directories.Directory(ctx)
	if err != nil {
		return nil, err
	}

	var connections, members []Contact
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		connections, err = directory.ListConnections(gctx)
		if err != nil {
			return fmt.Errorf("failed to list connections: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		members, err = directory.SearchDirectory(gctx, "")
		if err != nil {
			return fmt.Errorf("failed to search directory: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	set := newSuggestionSet()
	for _, c := range connections {
		set.addContact(c)
	}
	for _, c := range members {
		set.addContact(c)
	}

	s.mu.Lock()
	s.caches[userId] = cacheEntry{suggestions: set.items, fetchedAt: s.clock.Now()}
	s.mu.Unlock()
	log.Debugf("Cached %d contact suggestions for user %d", len(set.items), userId)
	return set.items, nil
}

func (s *ServiceImpl) RecordAttendees(ctx context.Context, userId int, emails []string) error {
	cleaned := make([]string, 0, len(emails))
	for _, e := range emails {
		if e = strings.TrimSpace(e); e != "" {
			cleaned = append(cleaned, e)
		}
	}
	if len(cleaned) == 0 {
		return nil
	}
	return s.recent.AddAttendees(ctx, userId, cleaned, s.clock.Now())
}

// Subscribe records attendees of every created or updated calendar event.
func (s *ServiceImpl) Subscribe(bus *event_bus.EventBus) {
	event_bus.SubscribeTyped(bus, event_bus.CalendarEventCreatedType, func(e event_bus.EventT[event_bus.CalendarEventCreated]) error {
		return s.RecordAttendees(e.Context(), e.Data.UserId, e.Data.Attendees)
	})
	event_bus.SubscribeTyped(bus, event_bus.CalendarEventUpdatedType, func(e event_bus.EventT[event_bus.CalendarEventUpdated]) error {
		return s.RecordAttendees(e.Context(), e.Data.UserId, e.Data.Attendees)
	})
}
