package calendar

import (
	"context"
	"fmt"
	"sync"
)

type CursorRepositoryStub struct {
	mu       sync.Mutex
	cursors  map[string]string
	storeErr error
	Deletes  int
}

func NewCursorRepositoryStub() *CursorRepositoryStub {
	return &CursorRepositoryStub{cursors: map[string]string{}}
}

func cursorKey(userId int, calendarId string) string {
	return fmt.Sprintf("%d|%s", userId, calendarId)
}

func (s *CursorRepositoryStub) GetCursor(_ context.Context, userId int, calendarId string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursors[cursorKey(userId, calendarId)], nil
}

func (s *CursorRepositoryStub) StoreCursor(_ context.Context, userId int, calendarId string, cursor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.storeErr != nil {
		return s.storeErr
	}
	s.cursors[cursorKey(userId, calendarId)] = cursor
	return nil
}

func (s *CursorRepositoryStub) DeleteCursor(_ context.Context, userId int, calendarId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Deletes++
	delete(s.cursors, cursorKey(userId, calendarId))
	return nil
}

func (s *CursorRepositoryStub) SetStoreError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storeErr = err
}
