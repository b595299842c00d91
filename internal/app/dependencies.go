package app

import (
	"github.com/crmdesk/crmdesk/internal/config"
	"github.com/crmdesk/crmdesk/internal/event_bus"
	"github.com/crmdesk/crmdesk/internal/utils"
	"github.com/crmdesk/crmdesk/pkg/calendar"
	"github.com/crmdesk/crmdesk/pkg/contacts"
	"github.com/crmdesk/crmdesk/pkg/google"
	"github.com/crmdesk/crmdesk/pkg/user"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	Clock    utils.Clock
	EventBus *event_bus.EventBus

	UserService user.Service
	UserHandler *user.Handler

	GoogleBootstrap   *google.Bootstrap
	GoogleTokenClient *google.TokenClient
	GoogleService     *google.ServiceImpl
	GoogleHandler     *google.Handler

	CalendarService *calendar.ServiceImpl
	CalendarHandler *calendar.Handler

	ContactsService *contacts.ServiceImpl
	ContactsHandler *contacts.Handler
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(db *pgxpool.Pool, cfg config.Application) *Dependencies {
	deps := &Dependencies{}

	deps.Clock = &utils.SystemClock{}
	deps.EventBus = event_bus.NewEventBus()

	deps.UserService = user.NewUserService(user.NewUserRepo(db))
	deps.UserHandler = user.NewHandler(deps.UserService)

	deps.GoogleBootstrap = google.NewBootstrap(cfg.Google, cfg.Host, google.NewHTTPDiscoveryLoader(nil))
	deps.GoogleTokenClient = google.NewTokenClient(deps.GoogleBootstrap, google.NewTokenStore(db))
	deps.GoogleService = google.NewService(deps.GoogleTokenClient)
	deps.GoogleHandler = google.NewHandler(deps.GoogleService, deps.GoogleTokenClient)

	deps.CalendarService = calendar.NewService(
		deps.GoogleService,
		calendar.NewCursorRepository(db),
		deps.EventBus,
		deps.Clock,
		cfg.Calendar,
	)
	deps.CalendarHandler = calendar.NewHandler(deps.CalendarService)

	deps.ContactsService = contacts.NewService(
		deps.GoogleService,
		contacts.NewRecentAttendeesRepository(db),
		deps.Clock,
		cfg.Contacts,
	)
	deps.ContactsService.Subscribe(deps.EventBus)
	deps.ContactsHandler = contacts.NewHandler(deps.ContactsService)

	return deps
}
