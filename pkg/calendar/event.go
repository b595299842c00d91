package calendar

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

type Event struct {
	Id          string
	Title       string
	Description string
	Location    string
	StartTime   time.Time
	EndTime     time.Time
	AllDay      bool
	Attendees   []string
	// Recurrence keeps only the first rule returned by the provider.
	Recurrence       string
	RecurringEventId string
	MeetingLink      string
	Reminders        Reminders
	Status           string
}

type Reminders struct {
	UseDefault bool
	Overrides  []Reminder
}

type Reminder struct {
	Method             string
	MinutesBeforeStart int64
}

func DefaultReminders() Reminders {
	return Reminders{UseDefault: true}
}

func (e Event) IsCancelled() bool {
	return e.Status == statusCancelled
}

type DeleteScope string

const (
	DeleteSingle DeleteScope = "single"
	DeleteFuture DeleteScope = "future"
	DeleteAll    DeleteScope = "all"
)

func ParseDeleteScope(s string) (DeleteScope, error) {
	switch DeleteScope(s) {
	case "", DeleteSingle:
		return DeleteSingle, nil
	case DeleteFuture, DeleteAll:
		return DeleteScope(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDeleteScope, s)
}

var (
	ErrTitleRequired      = errors.New("event title is required")
	ErrInvalidDeleteScope = errors.New("invalid delete scope")
	// ErrSyncCursorExpired is returned by a Provider when the sync token it was given is no longer accepted.
	ErrSyncCursorExpired = errors.New("sync cursor expired")
)

// ConflictError reports that the proposed window overlaps an existing event.
type ConflictError struct {
	Start           time.Time
	End             time.Time
	ConflictingId   string
	ConflictingName string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("event %s - %s conflicts with existing event %q",
		e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339), e.ConflictingName)
}

func (e *ConflictError) HTTPStatus() int {
	return http.StatusConflict
}
