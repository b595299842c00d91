package contacts

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

type RecentAttendeesRepositoryStub struct {
	mu      sync.Mutex
	entries map[int]map[string]time.Time
	listErr error
}

func NewRecentAttendeesRepositoryStub() *RecentAttendeesRepositoryStub {
	return &RecentAttendeesRepositoryStub{entries: map[int]map[string]time.Time{}}
}

func (s *RecentAttendeesRepositoryStub) AddAttendees(_ context.Context, userId int, emails []string, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries[userId] == nil {
		s.entries[userId] = map[string]time.Time{}
	}
	for _, e := range emails {
		if usedAt.After(s.entries[userId][e]) {
			s.entries[userId][e] = usedAt
		}
	}
	return nil
}

func (s *RecentAttendeesRepositoryStub) ListAttendees(_ context.Context, userId int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	emails := make([]string, 0, len(s.entries[userId]))
	for e := range s.entries[userId] {
		emails = append(emails, e)
	}
	slices.SortFunc(emails, func(a, b string) int {
		if c := s.entries[userId][b].Compare(s.entries[userId][a]); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return emails, nil
}

func (s *RecentAttendeesRepositoryStub) SetListError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listErr = err
}
