package calendar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/crmdesk/crmdesk/internal/config"
	"github.com/crmdesk/crmdesk/internal/event_bus"
	"github.com/crmdesk/crmdesk/internal/utils"
	"github.com/crmdesk/crmdesk/pkg/user"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	gcal "google.golang.org/api/calendar/v3"
)

// maxCursorRetries bounds the number of full resyncs after the provider rejects a sync token.
const maxCursorRetries = 1

type Service interface {
	ListEvents(ctx context.Context) ([]Event, error)
	GetEvent(ctx context.Context, eventId string) (Event, error)
	CreateEvent(ctx context.Context, event Event) (Event, error)
	UpdateEvent(ctx context.Context, event Event) (Event, error)
	DeleteEvent(ctx context.Context, eventId string, scope DeleteScope) error
	HasConflict(ctx context.Context, start, end time.Time, excludeEventId string) (bool, error)
	ExportICal(ctx context.Context, w io.Writer) error
}

type ServiceImpl struct {
	providers ProviderSource
	cursors   CursorRepository
	eventBus  *event_bus.EventBus
	clock     utils.Clock
	cfg       config.Calendar
	locks     *utils.KeyedMutex
}

func NewService(
	providers ProviderSource,
	cursors CursorRepository,
	eventBus *event_bus.EventBus,
	clock utils.Clock,
	cfg config.Calendar,
) *ServiceImpl {
	return &ServiceImpl{
		providers: providers,
		cursors:   cursors,
		eventBus:  eventBus,
		clock:     clock,
		cfg:       cfg,
		locks:     utils.NewKeyedMutex(),
	}
}

// session is everything one request needs to talk to the user's calendar.
type session struct {
	userId     int
	calendarId string
	timezone   string
	location   *time.Location
	provider   Provider
}

func (s *ServiceImpl) openSession(ctx context.Context) (session, error) {
	currentUser, err := user.CurrentUser(ctx)
	if err != nil {
		return session{}, fmt.Errorf("failed to get current user: %w", err)
	}
	calendarId := currentUser.Settings.GoogleCalendar.CalendarId
	if calendarId == "" {
		calendarId = s.cfg.DefaultCalendarId
	}
	timezone := currentUser.Settings.Timezone
	if timezone == "" {
		timezone = s.cfg.DefaultTimezone
	}
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return session{}, fmt.Errorf("could not load location for timezone %s: %w", timezone, err)
	}
	provider, err := s.providers.CalendarProvider(ctx)
	if err != nil {
		return session{}, err
	}
	return session{
		userId:     currentUser.Id,
		calendarId: calendarId,
		timezone:   timezone,
		location:   location,
		provider:   provider,
	}, nil
}

func (ss session) key(kind string) string {
	return kind + ":" + strconv.Itoa(ss.userId) + ":" + ss.calendarId
}

// ListEvents lists the synced window, resuming from the stored sync cursor when there is one.
func (s *ServiceImpl) ListEvents(ctx context.Context) ([]Event, error) {
	ss, err := s.openSession(ctx)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(ss.key("cursor"))
	defer unlock()

	for attempt := 0; ; attempt++ {
		cursor, err := s.cursors.GetCursor(ctx, ss.userId, ss.calendarId)
		if err != nil {
			return nil, err
		}
		result, err := ss.provider.ListEvents(ctx, ss.calendarId, ListQuery{
			TimeMin:    s.lookbackStart(),
			SyncToken:  cursor,
			MaxResults: maxResults,
		})
		if errors.Is(err, ErrSyncCursorExpired) && attempt < maxCursorRetries {
			log.Infof("sync cursor of user %d expired, running full sync", ss.userId)
			if err := s.cursors.DeleteCursor(ctx, ss.userId, ss.calendarId); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list events: %w", err)
		}

		if result.NextSyncToken != "" {
			if err := s.cursors.StoreCursor(ctx, ss.userId, ss.calendarId, result.NextSyncToken); err != nil {
				return nil, err
			}
		}
		return fromGoogleEvents(result.Items, ss.location)
	}
}

// lookbackStart is the lower bound of a full sync, whole calendar months before now.
func (s *ServiceImpl) lookbackStart() time.Time {
	return s.clock.Now().AddDate(0, -s.cfg.ListLookbackMonths, 0)
}

func (s *ServiceImpl) GetEvent(ctx context.Context, eventId string) (Event, error) {
	ss, err := s.openSession(ctx)
	if err != nil {
		return Event{}, err
	}
	item, err := ss.provider.GetEvent(ctx, ss.calendarId, eventId)
	if err != nil {
		return Event{}, fmt.Errorf("failed to get event %s: %w", eventId, err)
	}
	return fromGoogleEvent(item, ss.location)
}

func (s *ServiceImpl) HasConflict(ctx context.Context, start, end time.Time, excludeEventId string) (bool, error) {
	ss, err := s.openSession(ctx)
	if err != nil {
		return false, err
	}
	_, found, err := s.findConflict(ctx, ss, start, end, excludeEventId)
	return found, err
}

// findConflict widens the query by a second on both sides because provider bounds are exclusive
// and events touching the window must still be returned.
func (s *ServiceImpl) findConflict(ctx context.Context, ss session, start, end time.Time, excludeEventId string) (Event, bool, error) {
	result, err := ss.provider.ListEvents(ctx, ss.calendarId, ListQuery{
		TimeMin:    start.Add(-time.Second),
		TimeMax:    end.Add(time.Second),
		MaxResults: maxResults,
	})
	if err != nil {
		return Event{}, false, fmt.Errorf("failed to check conflicts: %w", err)
	}
	existing, err := fromGoogleEvents(result.Items, ss.location)
	if err != nil {
		return Event{}, false, err
	}
	conflicting, found := findConflict(existing, start, end, excludeEventId)
	return conflicting, found, nil
}

func (s *ServiceImpl) CreateEvent(ctx context.Context, event Event) (Event, error) {
	if strings.TrimSpace(event.Title) == "" {
		return Event{}, ErrTitleRequired
	}
	ss, err := s.openSession(ctx)
	if err != nil {
		return Event{}, err
	}
	unlock := s.locks.Lock(ss.key("write"))
	defer unlock()

	if err := s.checkConflict(ctx, ss, event, ""); err != nil {
		return Event{}, err
	}

	body := toGoogleEvent(event, ss.timezone)
	body.ConferenceData = &gcal.ConferenceData{
		CreateRequest: &gcal.CreateConferenceRequest{
			RequestId:             uuid.NewString(),
			ConferenceSolutionKey: &gcal.ConferenceSolutionKey{Type: conferenceTypeMeet},
		},
	}
	created, err := ss.provider.InsertEvent(ctx, ss.calendarId, body)
	if err != nil {
		return Event{}, fmt.Errorf("failed to create event: %w", err)
	}
	result, err := fromGoogleEvent(created, ss.location)
	if err != nil {
		return Event{}, err
	}
	log.Debugf("Created event %s in calendar %s", result.Id, ss.calendarId)

	s.publish(ctx, event_bus.CalendarEventCreatedType, event_bus.CalendarEventCreated{
		UserId:     ss.userId,
		CalendarId: ss.calendarId,
		EventId:    result.Id,
		Title:      result.Title,
		StartTime:  result.StartTime,
		EndTime:    result.EndTime,
		Attendees:  event.Attendees,
	})
	return result, nil
}

// UpdateEvent replaces the event. An instance of a recurring series gets an exception event
// instead, leaving the series master untouched.
func (s *ServiceImpl) UpdateEvent(ctx context.Context, event Event) (Event, error) {
	if strings.TrimSpace(event.Title) == "" {
		return Event{}, ErrTitleRequired
	}
	ss, err := s.openSession(ctx)
	if err != nil {
		return Event{}, err
	}
	unlock := s.locks.Lock(ss.key("write"))
	defer unlock()

	current, err := ss.provider.GetEvent(ctx, ss.calendarId, event.Id)
	if err != nil {
		return Event{}, fmt.Errorf("failed to get event %s: %w", event.Id, err)
	}
	if err := s.checkConflict(ctx, ss, event, event.Id); err != nil {
		return Event{}, err
	}

	body := toGoogleEvent(event, ss.timezone)
	if current.ConferenceData != nil {
		body.ConferenceData = current.ConferenceData
	}

	var updated *gcal.Event
	if current.RecurringEventId != "" {
		body.RecurringEventId = current.RecurringEventId
		body.OriginalStartTime = current.OriginalStartTime
		if body.OriginalStartTime == nil {
			body.OriginalStartTime = current.Start
		}
		updated, err = ss.provider.InsertEvent(ctx, ss.calendarId, body)
	} else {
		updated, err = ss.provider.UpdateEvent(ctx, ss.calendarId, event.Id, body)
	}
	if err != nil {
		return Event{}, fmt.Errorf("failed to update event %s: %w", event.Id, err)
	}
	result, err := fromGoogleEvent(updated, ss.location)
	if err != nil {
		return Event{}, err
	}

	s.publish(ctx, event_bus.CalendarEventUpdatedType, event_bus.CalendarEventUpdated{
		UserId:      ss.userId,
		CalendarId:  ss.calendarId,
		EventId:     result.Id,
		ExceptionOf: current.RecurringEventId,
		Attendees:   event.Attendees,
	})
	return result, nil
}

func (s *ServiceImpl) checkConflict(ctx context.Context, ss session, event Event, excludeEventId string) error {
	conflicting, found, err := s.findConflict(ctx, ss, event.StartTime, event.EndTime, excludeEventId)
	if err != nil {
		return err
	}
	if found {
		log.Debugf("Event %q conflicts with %s", event.Title, conflicting.Id)
		return &ConflictError{
			Start:           event.StartTime,
			End:             event.EndTime,
			ConflictingId:   conflicting.Id,
			ConflictingName: conflicting.Title,
		}
	}
	return nil
}

func (s *ServiceImpl) DeleteEvent(ctx context.Context, eventId string, scope DeleteScope) error {
	ss, err := s.openSession(ctx)
	if err != nil {
		return err
	}

	if scope == "" {
		scope = DeleteSingle
	}

	var deleted []string
	switch scope {
	case DeleteSingle:
		deleted, err = s.deleteIds(ctx, ss, eventId)
	case DeleteAll:
		deleted, err = s.deleteSeries(ctx, ss, eventId)
	case DeleteFuture:
		deleted, err = s.deleteFuture(ctx, ss, eventId)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDeleteScope, scope)
	}
	if len(deleted) > 0 {
		s.publish(ctx, event_bus.CalendarEventDeletedType, event_bus.CalendarEventDeleted{
			UserId:     ss.userId,
			CalendarId: ss.calendarId,
			EventIds:   deleted,
			Scope:      string(scope),
		})
	}
	return err
}

func (s *ServiceImpl) deleteSeries(ctx context.Context, ss session, eventId string) ([]string, error) {
	target, err := ss.provider.GetEvent(ctx, ss.calendarId, eventId)
	if err != nil {
		return nil, fmt.Errorf("failed to get event %s: %w", eventId, err)
	}
	seriesId := target.RecurringEventId
	if seriesId == "" {
		seriesId = target.Id
	}
	return s.deleteIds(ctx, ss, seriesId)
}

func (s *ServiceImpl) deleteFuture(ctx context.Context, ss session, eventId string) ([]string, error) {
	target, err := ss.provider.GetEvent(ctx, ss.calendarId, eventId)
	if err != nil {
		return nil, fmt.Errorf("failed to get event %s: %w", eventId, err)
	}
	seriesId := target.RecurringEventId
	if seriesId == "" {
		if len(target.Recurrence) == 0 {
			return s.deleteIds(ctx, ss, eventId)
		}
		seriesId = target.Id
	}
	from, err := eventStart(target, ss.location)
	if err != nil {
		return nil, fmt.Errorf("event %s start: %w", eventId, err)
	}

	instances, err := ss.provider.ListInstances(ctx, ss.calendarId, seriesId, from, maxResults)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances of %s: %w", seriesId, err)
	}
	ids := make([]string, 0, len(instances))
	for _, instance := range instances {
		start, err := eventStart(instance, ss.location)
		if err != nil {
			return nil, fmt.Errorf("event %s start: %w", instance.Id, err)
		}
		if start.Before(from) {
			continue
		}
		ids = append(ids, instance.Id)
	}
	log.Debugf("Deleting %d instances of series %s from %s", len(ids), seriesId, from)
	return s.deleteIds(ctx, ss, ids...)
}

// deleteIds stops at the first failure and reports what was already deleted.
func (s *ServiceImpl) deleteIds(ctx context.Context, ss session, ids ...string) ([]string, error) {
	deleted := make([]string, 0, len(ids))
	for _, id := range ids {
		if err := ss.provider.DeleteEvent(ctx, ss.calendarId, id); err != nil {
			return deleted, fmt.Errorf("failed to delete event %s: %w", id, err)
		}
		deleted = append(deleted, id)
	}
	return deleted, nil
}

func (s *ServiceImpl) publish(ctx context.Context, eventType event_bus.EventType, data any) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.Publish(event_bus.NewEvent(ctx, eventType, data)); err != nil {
		log.Warnf("failed to publish %s: %v", eventType, err)
	}
}
