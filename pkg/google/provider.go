package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/crmdesk/crmdesk/pkg/calendar"
	"github.com/crmdesk/crmdesk/pkg/contacts"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/people/v1"
)

const (
	personFields  = "names,emailAddresses"
	peoplePage    = 1000
	orderByStart  = "startTime"
	domainProfile = "DIRECTORY_SOURCE_TYPE_DOMAIN_PROFILE"
	domainContact = "DIRECTORY_SOURCE_TYPE_DOMAIN_CONTACT"
)

type CalendarItem struct {
	ID      string
	Summary string
	Primary bool
}

var (
	_ calendar.Provider  = (*Provider)(nil)
	_ contacts.Directory = (*Provider)(nil)
)

// Provider talks to Google Calendar and Google People on behalf of one authenticated user.
type Provider struct {
	calendar *gcal.Service
	people   *people.Service
}

func NewProvider(calendarService *gcal.Service, peopleService *people.Service) *Provider {
	return &Provider{calendar: calendarService, people: peopleService}
}

func (p *Provider) ListEvents(ctx context.Context, calendarId string, query calendar.ListQuery) (*gcal.Events, error) {
	call := p.calendar.Events.List(calendarId).
		SingleEvents(true).
		ShowDeleted(query.SyncToken != "").
		Context(ctx)
	if query.MaxResults > 0 {
		call = call.MaxResults(query.MaxResults)
	}
	// Google rejects time bounds and ordering together with a sync token
	if query.SyncToken != "" {
		call = call.SyncToken(query.SyncToken)
	} else {
		call = call.OrderBy(orderByStart)
		if !query.TimeMin.IsZero() {
			call = call.TimeMin(query.TimeMin.Format(time.RFC3339))
		}
		if !query.TimeMax.IsZero() {
			call = call.TimeMax(query.TimeMax.Format(time.RFC3339))
		}
	}

	events, err := call.Do()
	if err != nil {
		if isStatus(err, http.StatusGone) {
			return nil, fmt.Errorf("%w: %w", calendar.ErrSyncCursorExpired, err)
		}
		return nil, err
	}
	return events, nil
}

func (p *Provider) GetEvent(ctx context.Context, calendarId string, eventId string) (*gcal.Event, error) {
	return p.calendar.Events.Get(calendarId, eventId).Context(ctx).Do()
}

func (p *Provider) InsertEvent(ctx context.Context, calendarId string, event *gcal.Event) (*gcal.Event, error) {
	return p.calendar.Events.Insert(calendarId, event).ConferenceDataVersion(1).Context(ctx).Do()
}

func (p *Provider) UpdateEvent(ctx context.Context, calendarId string, eventId string, event *gcal.Event) (*gcal.Event, error) {
	return p.calendar.Events.Update(calendarId, eventId, event).ConferenceDataVersion(1).Context(ctx).Do()
}

func (p *Provider) DeleteEvent(ctx context.Context, calendarId string, eventId string) error {
	return p.calendar.Events.Delete(calendarId, eventId).Context(ctx).Do()
}

func (p *Provider) ListInstances(ctx context.Context, calendarId string, seriesId string, timeMin time.Time, maxResults int64) ([]*gcal.Event, error) {
	var instances []*gcal.Event
	call := p.calendar.Events.Instances(calendarId, seriesId).MaxResults(maxResults)
	if !timeMin.IsZero() {
		call = call.TimeMin(timeMin.Format(time.RFC3339))
	}
	err := call.Pages(ctx, func(page *gcal.Events) error {
		instances = append(instances, page.Items...)
		if int64(len(instances)) >= maxResults {
			return errStopPaging
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopPaging) {
		return nil, err
	}
	return instances, nil
}

func (p *Provider) ListCalendars(ctx context.Context) ([]CalendarItem, error) {
	var items []CalendarItem
	err := p.calendar.CalendarList.List().Pages(ctx, func(page *gcal.CalendarList) error {
		for _, entry := range page.Items {
			items = append(items, CalendarItem{ID: entry.Id, Summary: entry.Summary, Primary: entry.Primary})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (p *Provider) ListConnections(ctx context.Context) ([]contacts.Contact, error) {
	var result []contacts.Contact
	err := p.people.People.Connections.List("people/me").
		PersonFields(personFields).
		PageSize(peoplePage).
		Pages(ctx, func(page *people.ListConnectionsResponse) error {
			result = appendPeople(result, page.Connections)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SearchDirectory lists the whole domain directory when query is empty.
func (p *Provider) SearchDirectory(ctx context.Context, query string) ([]contacts.Contact, error) {
	var result []contacts.Contact
	var err error
	if query == "" {
		err = p.people.People.ListDirectoryPeople().
			ReadMask(personFields).
			Sources(domainProfile, domainContact).
			PageSize(peoplePage).
			Pages(ctx, func(page *people.ListDirectoryPeopleResponse) error {
				result = appendPeople(result, page.People)
				return nil
			})
	} else {
		err = p.people.People.SearchDirectoryPeople().
			Query(query).
			ReadMask(personFields).
			Sources(domainProfile, domainContact).
			PageSize(500).
			Pages(ctx, func(page *people.SearchDirectoryPeopleResponse) error {
				result = appendPeople(result, page.People)
				return nil
			})
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

var errStopPaging = errors.New("stop paging")

func appendPeople(result []contacts.Contact, persons []*people.Person) []contacts.Contact {
	for _, person := range persons {
		name := ""
		if len(person.Names) > 0 {
			name = person.Names[0].DisplayName
		}
		for _, email := range person.EmailAddresses {
			if email.Value == "" {
				continue
			}
			result = append(result, contacts.Contact{DisplayName: name, Email: email.Value})
		}
	}
	return result
}

func isStatus(err error, code int) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}
