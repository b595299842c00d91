package calendar

import (
	"fmt"
	"time"

	gcal "google.golang.org/api/calendar/v3"
)

const (
	statusCancelled      = "cancelled"
	conferenceTypeMeet   = "hangoutsMeet"
	entryPointTypeVideo  = "video"
	dateLayout           = "2006-01-02"
	recurrenceRulePrefix = "RRULE:"
)

func fromGoogleEvent(item *gcal.Event, loc *time.Location) (Event, error) {
	e := Event{
		Id:               item.Id,
		Title:            item.Summary,
		Description:      item.Description,
		Location:         item.Location,
		RecurringEventId: item.RecurringEventId,
		MeetingLink:      meetingLink(item),
		Status:           item.Status,
		Reminders:        DefaultReminders(),
		Attendees:        make([]string, 0, len(item.Attendees)),
	}

	var err error
	if e.StartTime, e.AllDay, err = parseEventDateTime(item.Start, loc); err != nil {
		return Event{}, fmt.Errorf("event %s start: %w", item.Id, err)
	}
	if e.EndTime, _, err = parseEventDateTime(item.End, loc); err != nil {
		return Event{}, fmt.Errorf("event %s end: %w", item.Id, err)
	}

	for _, a := range item.Attendees {
		if a.Email != "" {
			e.Attendees = append(e.Attendees, a.Email)
		}
	}
	if len(item.Recurrence) > 0 {
		e.Recurrence = item.Recurrence[0]
	}
	if item.Reminders != nil {
		e.Reminders.UseDefault = item.Reminders.UseDefault
		for _, o := range item.Reminders.Overrides {
			e.Reminders.Overrides = append(e.Reminders.Overrides, Reminder{
				Method:             o.Method,
				MinutesBeforeStart: o.Minutes,
			})
		}
	}
	return e, nil
}

func fromGoogleEvents(items []*gcal.Event, loc *time.Location) ([]Event, error) {
	events := make([]Event, 0, len(items))
	for _, item := range items {
		e, err := fromGoogleEvent(item, loc)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

// parseEventDateTime handles both timed and all-day values. Cancelled instances in a delta
// listing carry no times at all, which yields zero values.
func parseEventDateTime(dt *gcal.EventDateTime, loc *time.Location) (time.Time, bool, error) {
	if dt == nil {
		return time.Time{}, false, nil
	}
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		return t, false, err
	}
	if dt.Date != "" {
		t, err := time.ParseInLocation(dateLayout, dt.Date, loc)
		return t, true, err
	}
	return time.Time{}, false, nil
}

func toGoogleEvent(e Event, timezone string) *gcal.Event {
	item := &gcal.Event{
		Summary:     e.Title,
		Description: e.Description,
		Location:    e.Location,
		Start:       toEventDateTime(e.StartTime, e.AllDay, timezone),
		End:         toEventDateTime(e.EndTime, e.AllDay, timezone),
		Reminders:   toGoogleReminders(e.Reminders),
	}
	for _, email := range e.Attendees {
		item.Attendees = append(item.Attendees, &gcal.EventAttendee{Email: email})
	}
	if e.Recurrence != "" {
		item.Recurrence = []string{e.Recurrence}
	}
	return item
}

func toEventDateTime(t time.Time, allDay bool, timezone string) *gcal.EventDateTime {
	if allDay {
		return &gcal.EventDateTime{Date: t.Format(dateLayout), TimeZone: timezone}
	}
	return &gcal.EventDateTime{DateTime: t.Format(time.RFC3339), TimeZone: timezone}
}

func toGoogleReminders(r Reminders) *gcal.EventReminders {
	reminders := &gcal.EventReminders{
		UseDefault: r.UseDefault,
		// UseDefault=false would otherwise be dropped from the request body.
		ForceSendFields: []string{"UseDefault"},
	}
	if r.UseDefault {
		return reminders
	}
	for _, o := range r.Overrides {
		reminders.Overrides = append(reminders.Overrides, &gcal.EventReminder{
			Method:          o.Method,
			Minutes:         o.MinutesBeforeStart,
			ForceSendFields: []string{"Minutes"},
		})
	}
	return reminders
}

func meetingLink(item *gcal.Event) string {
	if item.HangoutLink != "" {
		return item.HangoutLink
	}
	if item.ConferenceData == nil {
		return ""
	}
	for _, ep := range item.ConferenceData.EntryPoints {
		if ep.EntryPointType == entryPointTypeVideo {
			return ep.Uri
		}
	}
	return ""
}

func eventStart(item *gcal.Event, loc *time.Location) (time.Time, error) {
	t, _, err := parseEventDateTime(item.Start, loc)
	return t, err
}
