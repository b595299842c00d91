package calendar

import (
	"context"
	"time"

	gcal "google.golang.org/api/calendar/v3"
)

const maxResults = 2500

type ListQuery struct {
	// TimeMin and TimeMax are exclusive bounds; zero means unbounded.
	TimeMin    time.Time
	TimeMax    time.Time
	SyncToken  string
	MaxResults int64
}

// Provider is the set of calendar operations the service needs from the remote calendar.
// Listing always expands recurring events into single instances.
type Provider interface {
	ListEvents(ctx context.Context, calendarId string, query ListQuery) (*gcal.Events, error)
	GetEvent(ctx context.Context, calendarId, eventId string) (*gcal.Event, error)
	InsertEvent(ctx context.Context, calendarId string, event *gcal.Event) (*gcal.Event, error)
	UpdateEvent(ctx context.Context, calendarId, eventId string, event *gcal.Event) (*gcal.Event, error)
	DeleteEvent(ctx context.Context, calendarId, eventId string) error
	ListInstances(ctx context.Context, calendarId, seriesId string, timeMin time.Time, maxResults int64) ([]*gcal.Event, error)
}

// ProviderSource builds a Provider authorized as the user bound to ctx.
type ProviderSource interface {
	CalendarProvider(ctx context.Context) (Provider, error)
}
