package calendar

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/teambition/rrule-go"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
)

const instanceIdLayout = "20060102T150405Z"

// ProviderStub is an in-memory Provider. Series masters are expanded with their RRULE on every
// read; exceptions are stored under the id of the instance they replace.
type ProviderStub struct {
	mu        sync.Mutex
	nextId    int
	tokenSeq  int
	events    map[string]*gcal.Event
	cancelled map[string]bool
	listErrs  []error
	insertErr error

	ListQueries []ListQuery
	Inserted    []*gcal.Event
	Updated     []string
	Deleted     []string
}

func NewProviderStub() *ProviderStub {
	return &ProviderStub{
		events:    map[string]*gcal.Event{},
		cancelled: map[string]bool{},
	}
}

func (s *ProviderStub) CalendarProvider(context.Context) (Provider, error) {
	return s, nil
}

// Seed stores an event as is, assigning an id when missing.
func (s *ProviderStub) Seed(event *gcal.Event) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *event
	if stored.Id == "" {
		stored.Id = s.newId()
	}
	if stored.Status == "" {
		stored.Status = "confirmed"
	}
	s.events[stored.Id] = &stored
	return stored.Id
}

// FailListWith queues errors returned by the next ListEvents calls, one per call.
func (s *ProviderStub) FailListWith(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listErrs = append(s.listErrs, errs...)
}

func (s *ProviderStub) FailInsertWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertErr = err
}

func (s *ProviderStub) ListEvents(_ context.Context, _ string, query ListQuery) (*gcal.Events, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ListQueries = append(s.ListQueries, query)
	if len(s.listErrs) > 0 {
		err := s.listErrs[0]
		s.listErrs = s.listErrs[1:]
		if err != nil {
			return nil, err
		}
	}

	var items []*gcal.Event
	for _, e := range s.expandAll() {
		if inWindow(e, query.TimeMin, query.TimeMax) {
			items = append(items, e)
		}
	}
	sortByStart(items)
	if query.MaxResults > 0 && int64(len(items)) > query.MaxResults {
		items = items[:query.MaxResults]
	}
	s.tokenSeq++
	return &gcal.Events{
		Items:         items,
		NextSyncToken: fmt.Sprintf("sync-%d", s.tokenSeq),
	}, nil
}

func (s *ProviderStub) GetEvent(_ context.Context, _ string, eventId string) (*gcal.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.events[eventId]; ok {
		c := *e
		return &c, nil
	}
	for _, e := range s.expandAll() {
		if e.Id == eventId {
			return e, nil
		}
	}
	return nil, notFound(eventId)
}

func (s *ProviderStub) InsertEvent(_ context.Context, _ string, event *gcal.Event) (*gcal.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	stored := *event
	if stored.RecurringEventId != "" && stored.OriginalStartTime != nil {
		original, err := time.Parse(time.RFC3339, stored.OriginalStartTime.DateTime)
		if err != nil {
			return nil, &googleapi.Error{Code: http.StatusBadRequest, Message: "invalid originalStartTime"}
		}
		stored.Id = instanceId(stored.RecurringEventId, original)
	} else {
		stored.Id = s.newId()
	}
	stored.Status = "confirmed"
	if stored.ConferenceData != nil && stored.ConferenceData.CreateRequest != nil {
		link := "https://meet.google.com/" + strings.ToLower(stored.Id)
		stored.HangoutLink = link
		stored.ConferenceData = &gcal.ConferenceData{
			ConferenceId: stored.Id,
			EntryPoints:  []*gcal.EntryPoint{{EntryPointType: entryPointTypeVideo, Uri: link}},
		}
	}
	s.events[stored.Id] = &stored
	s.Inserted = append(s.Inserted, event)
	c := stored
	return &c, nil
}

func (s *ProviderStub) UpdateEvent(_ context.Context, _ string, eventId string, event *gcal.Event) (*gcal.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.events[eventId]
	if !ok {
		return nil, notFound(eventId)
	}
	stored := *event
	stored.Id = eventId
	stored.Status = existing.Status
	stored.RecurringEventId = existing.RecurringEventId
	stored.OriginalStartTime = existing.OriginalStartTime
	if stored.ConferenceData != nil {
		stored.HangoutLink = existing.HangoutLink
	}
	s.events[eventId] = &stored
	s.Updated = append(s.Updated, eventId)
	c := stored
	return &c, nil
}

func (s *ProviderStub) DeleteEvent(_ context.Context, _ string, eventId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.events[eventId]; ok {
		delete(s.events, eventId)
		if e.RecurringEventId != "" {
			s.cancelled[eventId] = true
		}
		for id, other := range s.events {
			if other.RecurringEventId == eventId {
				delete(s.events, id)
			}
		}
		s.Deleted = append(s.Deleted, eventId)
		return nil
	}
	for _, e := range s.expandAll() {
		if e.Id == eventId {
			s.cancelled[eventId] = true
			s.Deleted = append(s.Deleted, eventId)
			return nil
		}
	}
	return notFound(eventId)
}

func (s *ProviderStub) ListInstances(_ context.Context, _ string, seriesId string, timeMin time.Time, max int64) ([]*gcal.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[seriesId]; !ok {
		return nil, notFound(seriesId)
	}
	var items []*gcal.Event
	for _, e := range s.expandAll() {
		if e.RecurringEventId == seriesId && inWindow(e, timeMin, time.Time{}) {
			items = append(items, e)
		}
	}
	sortByStart(items)
	if max > 0 && int64(len(items)) > max {
		items = items[:max]
	}
	return items, nil
}

// EventIds returns the ids of all live events and instances ordered by start.
func (s *ProviderStub) EventIds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.expandAll()
	sortByStart(items)
	ids := make([]string, 0, len(items))
	for _, e := range items {
		ids = append(ids, e.Id)
	}
	return ids
}

func (s *ProviderStub) expandAll() []*gcal.Event {
	var result []*gcal.Event
	for _, e := range s.events {
		if len(e.Recurrence) > 0 && e.RecurringEventId == "" {
			result = append(result, s.expand(e)...)
			continue
		}
		c := *e
		result = append(result, &c)
	}
	return result
}

func (s *ProviderStub) expand(master *gcal.Event) []*gcal.Event {
	start, err := time.Parse(time.RFC3339, master.Start.DateTime)
	if err != nil {
		return nil
	}
	end, err := time.Parse(time.RFC3339, master.End.DateTime)
	if err != nil {
		return nil
	}
	rule, err := parseRule(master.Recurrence[0], start)
	if err != nil {
		return nil
	}

	var instances []*gcal.Event
	for _, occurrence := range rule.Between(start, start.AddDate(2, 0, 0), true) {
		id := instanceId(master.Id, occurrence)
		if s.cancelled[id] {
			continue
		}
		if _, overridden := s.events[id]; overridden {
			continue
		}
		instance := *master
		instance.Id = id
		instance.Recurrence = nil
		instance.RecurringEventId = master.Id
		instance.OriginalStartTime = &gcal.EventDateTime{DateTime: occurrence.Format(time.RFC3339)}
		instance.Start = &gcal.EventDateTime{DateTime: occurrence.Format(time.RFC3339), TimeZone: master.Start.TimeZone}
		instance.End = &gcal.EventDateTime{DateTime: occurrence.Add(end.Sub(start)).Format(time.RFC3339), TimeZone: master.End.TimeZone}
		instances = append(instances, &instance)
	}
	return instances
}

func parseRule(recurrence string, start time.Time) (*rrule.RRule, error) {
	option, err := rrule.StrToROption(strings.TrimPrefix(recurrence, recurrenceRulePrefix))
	if err != nil {
		return nil, err
	}
	option.Dtstart = start
	return rrule.NewRRule(*option)
}

func (s *ProviderStub) newId() string {
	s.nextId++
	return fmt.Sprintf("evt%d", s.nextId)
}

func instanceId(seriesId string, originalStart time.Time) string {
	return seriesId + "_" + originalStart.UTC().Format(instanceIdLayout)
}

func inWindow(e *gcal.Event, timeMin, timeMax time.Time) bool {
	start, _, _ := parseEventDateTime(e.Start, time.UTC)
	end, _, _ := parseEventDateTime(e.End, time.UTC)
	if !timeMin.IsZero() && !end.After(timeMin) {
		return false
	}
	if !timeMax.IsZero() && !start.Before(timeMax) {
		return false
	}
	return true
}

func sortByStart(items []*gcal.Event) {
	slices.SortStableFunc(items, func(a, b *gcal.Event) int {
		as, _, _ := parseEventDateTime(a.Start, time.UTC)
		bs, _, _ := parseEventDateTime(b.Start, time.UTC)
		if c := as.Compare(bs); c != 0 {
			return c
		}
		return strings.Compare(a.Id, b.Id)
	})
}

func notFound(eventId string) error {
	return &googleapi.Error{Code: http.StatusNotFound, Message: fmt.Sprintf("event %s not found", eventId)}
}
