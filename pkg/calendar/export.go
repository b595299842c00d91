package calendar

import (
	"context"
	"fmt"
	"io"

	"github.com/emersion/go-ical"
)

const (
	productId      = "-//crmdesk//calendar export//EN"
	propConference = "X-GOOGLE-CONFERENCE"
)

// ExportICal writes the synced window as an iCalendar document. The stored sync cursor is not
// used, so the export always holds the full window.
func (s *ServiceImpl) ExportICal(ctx context.Context, w io.Writer) error {
	ss, err := s.openSession(ctx)
	if err != nil {
		return err
	}
	result, err := ss.provider.ListEvents(ctx, ss.calendarId, ListQuery{
		TimeMin:    s.lookbackStart(),
		MaxResults: maxResults,
	})
	if err != nil {
		return fmt.Errorf("failed to list events: %w", err)
	}
	events, err := fromGoogleEvents(result.Items, ss.location)
	if err != nil {
		return err
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productId)
	for _, e := range events {
		if e.IsCancelled() {
			continue
		}
		cal.Children = append(cal.Children, s.toICalEvent(e))
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	return nil
}

func (s *ServiceImpl) toICalEvent(e Event) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, e.Id)
	ve.Props.SetText(ical.PropSummary, e.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, s.clock.Now().UTC())
	if e.AllDay {
		ve.Props.SetDate(ical.PropDateTimeStart, e.StartTime)
		ve.Props.SetDate(ical.PropDateTimeEnd, e.EndTime)
	} else {
		ve.Props.SetDateTime(ical.PropDateTimeStart, e.StartTime.UTC())
		ve.Props.SetDateTime(ical.PropDateTimeEnd, e.EndTime.UTC())
	}
	if e.Description != "" {
		ve.Props.SetText(ical.PropDescription, e.Description)
	}
	if e.Location != "" {
		ve.Props.SetText(ical.PropLocation, e.Location)
	}
	if e.MeetingLink != "" {
		ve.Props.SetText(propConference, e.MeetingLink)
	}
	for _, attendee := range e.Attendees {
		p := ical.NewProp(ical.PropAttendee)
		p.SetText("mailto:" + attendee)
		ve.Props.Add(p)
	}
	return ve
}
