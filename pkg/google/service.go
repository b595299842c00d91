package google

import (
	"context"
	"fmt"

	"github.com/crmdesk/crmdesk/pkg/calendar"
	"github.com/crmdesk/crmdesk/pkg/contacts"
	"github.com/crmdesk/crmdesk/pkg/user"
	log "github.com/sirupsen/logrus"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/people/v1"
)

type Service interface {
	ListCalendars(ctx context.Context) ([]CalendarItem, error)
	CalendarProvider(ctx context.Context) (calendar.Provider, error)
	Directory(ctx context.Context) (contacts.Directory, error)
}

var (
	_ calendar.ProviderSource  = (*ServiceImpl)(nil)
	_ contacts.DirectorySource = (*ServiceImpl)(nil)
)

type ServiceImpl struct {
	tokens  *TokenClient
	options []option.ClientOption
}

// NewService builds provider clients for the current user. Extra options are applied to both
// Google API clients.
func NewService(tokens *TokenClient, options ...option.ClientOption) *ServiceImpl {
	return &ServiceImpl{tokens: tokens, options: options}
}

func (s *ServiceImpl) CalendarProvider(ctx context.Context) (calendar.Provider, error) {
	return s.provider(ctx)
}

func (s *ServiceImpl) Directory(ctx context.Context) (contacts.Directory, error) {
	return s.provider(ctx)
}

func (s *ServiceImpl) ListCalendars(ctx context.Context) ([]CalendarItem, error) {
	provider, err := s.provider(ctx)
	if err != nil {
		return nil, err
	}
	calendars, err := provider.ListCalendars(ctx)
	if err != nil {
		log.Errorf("unable to retrieve calendars from Google Calendar: %v", err)
		return nil, err
	}
	return calendars, nil
}

func (s *ServiceImpl) provider(ctx context.Context) (*Provider, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, err
	}
	client, err := s.tokens.Client(ctx, userId)
	if err != nil {
		return nil, err
	}

	options := append([]option.ClientOption{option.WithHTTPClient(client)}, s.options...)
	calendarService, err := gcal.NewService(ctx, options...)
	if err != nil {
		return nil, &InitializationError{Stage: StageTokenClient, Err: fmt.Errorf("calendar client: %w", err)}
	}
	peopleService, err := people.NewService(ctx, options...)
	if err != nil {
		return nil, &InitializationError{Stage: StageTokenClient, Err: fmt.Errorf("people client: %w", err)}
	}
	return NewProvider(calendarService, peopleService), nil
}
