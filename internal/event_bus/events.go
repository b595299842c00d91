package event_bus

import "time"

const (
	CalendarEventCreatedType EventType = "calendar.event.created"
	CalendarEventUpdatedType EventType = "calendar.event.updated"
	CalendarEventDeletedType EventType = "calendar.event.deleted"
)

type CalendarEventCreated struct {
	UserId     int
	CalendarId string
	EventId    string
	Title      string
	StartTime  time.Time
	EndTime    time.Time
	Attendees  []string
}

type CalendarEventUpdated struct {
	UserId     int
	CalendarId string
	EventId    string
	// ExceptionOf is the series id when the update produced a new exception instance.
	ExceptionOf string
	Attendees   []string
}

type CalendarEventDeleted struct {
	UserId     int
	CalendarId string
	EventIds   []string
	Scope      string
}
