package app

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies) {

	// Calendar events; export.ics has to be matched before {eventId}
	r.HandleFunc("/api/calendar/events", deps.CalendarHandler.ListEvents).Methods("GET")
	r.HandleFunc("/api/calendar/events/export.ics", deps.CalendarHandler.ExportICal).Methods("GET")
	r.HandleFunc("/api/calendar/events/{eventId}", deps.CalendarHandler.GetEvent).Methods("GET")
	r.HandleFunc("/api/calendar/events", deps.CalendarHandler.CreateEvent).Methods("POST")
	r.HandleFunc("/api/calendar/events/{eventId}", deps.CalendarHandler.UpdateEvent).Methods("PUT")
	r.HandleFunc("/api/calendar/events/{eventId}", deps.CalendarHandler.DeleteEvent).Methods("DELETE")
	r.HandleFunc("/api/calendar/conflicts", deps.CalendarHandler.CheckConflict).Methods("GET")

	// Contacts
	r.HandleFunc("/api/contacts/suggestions", deps.ContactsHandler.Suggestions).Methods("GET")

	// User management
	r.HandleFunc("/api/user/current", deps.UserHandler.CurrentUser).Methods("GET")
	r.HandleFunc("/api/user/current", deps.UserHandler.UpdateUser).Methods("PUT")
	r.HandleFunc("/api/user", deps.UserHandler.CreateUser).Methods("POST")

	// Google integration
	r.HandleFunc("/api/integrations/google/auth/login", deps.GoogleHandler.OAuthLogin).Methods("GET")
	r.HandleFunc("/api/integrations/google/auth/logout", deps.GoogleHandler.OAuthLogout).Methods("DELETE")
	r.HandleFunc("/api/integrations/google/auth/callback", deps.GoogleHandler.OAuthCallback).Methods("GET")
	r.HandleFunc("/api/integrations/google/calendars", deps.GoogleHandler.ListCalendars).Methods("GET")
}
