package calendar

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/crmdesk/crmdesk/internal/rest"
	"github.com/crmdesk/crmdesk/pkg/user"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type EventDTO struct {
	Id               string        `json:"id,omitempty"`
	Title            string        `json:"title"`
	Description      string        `json:"description"`
	Location         string        `json:"location"`
	Start            time.Time     `json:"start"`
	End              time.Time     `json:"end"`
	AllDay           bool          `json:"allDay"`
	Attendees        []string      `json:"attendees"`
	Recurrence       string        `json:"recurrence,omitempty"`
	RecurringEventId string        `json:"recurringEventId,omitempty"`
	MeetingLink      string        `json:"meetingLink,omitempty"`
	Reminders        *RemindersDTO `json:"reminders,omitempty"`
	Status           string        `json:"status,omitempty"`
}

type RemindersDTO struct {
	UseDefault bool          `json:"useDefault"`
	Overrides  []ReminderDTO `json:"overrides,omitempty"`
}

type ReminderDTO struct {
	Method  string `json:"method"`
	Minutes int64  `json:"minutes"`
}

type ConflictDTO struct {
	Conflict bool `json:"conflict"`
}

type Handler struct {
	service Service
}

func NewHandler(s Service) *Handler {
	return &Handler{service: s}
}

// ListEvents godoc
// @Summary List calendar events
// @Description List events from one lookback period ago onwards. Subsequent calls resume from the stored sync cursor.
// @Tags Calendar
// @Produce json
// @Success 200 {array} EventDTO
// @Failure 403 {object} rest.ErrorResponse "Google authentication required"
// @Router /api/calendar/events [get]
// @Security XUserId
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.ListEvents(r.Context())
	if err != nil {
		writeServiceError(w, "Failed to list events", err)
		return
	}
	dtos := make([]EventDTO, 0, len(events))
	for _, e := range events {
		dtos = append(dtos, eventToDTO(e))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

// GetEvent godoc
// @Summary Get calendar event
// @Tags Calendar
// @Produce json
// @Param eventId path string true "Event ID"
// @Success 200 {object} EventDTO
// @Failure 404 {object} rest.ErrorResponse "Event not found"
// @Router /api/calendar/events/{eventId} [get]
// @Security XUserId
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.service.GetEvent(r.Context(), mux.Vars(r)["eventId"])
	if err != nil {
		writeServiceError(w, "Failed to get event", err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, eventToDTO(event))
}

// CreateEvent godoc
// @Summary Create calendar event
// @Description Create an event with a generated video conference link. Rejected when it overlaps an existing event.
// @Tags Calendar
// @Accept json
// @Produce json
// @Param event body EventDTO true "Event"
// @Success 201 {object} EventDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Failure 409 {object} rest.ErrorResponse "Conflicting event"
// @Router /api/calendar/events [post]
// @Security XUserId
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var dto EventDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", "")
		return
	}
	created, err := h.service.CreateEvent(r.Context(), dtoToEvent(dto))
	if err != nil {
		writeServiceError(w, "Failed to create event", err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, eventToDTO(created))
}

// UpdateEvent godoc
// @Summary Update calendar event
// @Description Replace an event. Updating one instance of a recurring series creates an exception for it.
// @Tags Calendar
// @Accept json
// @Produce json
// @Param eventId path string true "Event ID"
// @Param event body EventDTO true "Event"
// @Success 200 {object} EventDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Failure 409 {object} rest.ErrorResponse "Conflicting event"
// @Router /api/calendar/events/{eventId} [put]
// @Security XUserId
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var dto EventDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", "")
		return
	}
	dto.Id = mux.Vars(r)["eventId"]
	updated, err := h.service.UpdateEvent(r.Context(), dtoToEvent(dto))
	if err != nil {
		writeServiceError(w, "Failed to update event", err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, eventToDTO(updated))
}

// DeleteEvent godoc
// @Summary Delete calendar event
// @Tags Calendar
// @Param eventId path string true "Event ID"
// @Param scope query string false "single (default), future or all"
// @Success 204
// @Failure 400 {object} rest.ErrorResponse "Invalid scope"
// @Router /api/calendar/events/{eventId} [delete]
// @Security XUserId
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	scope, err := ParseDeleteScope(r.URL.Query().Get("scope"))
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid scope", "'scope' must be one of single, future, all")
		return
	}
	if err := h.service.DeleteEvent(r.Context(), mux.Vars(r)["eventId"], scope); err != nil {
		writeServiceError(w, "Failed to delete event", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckConflict godoc
// @Summary Check for conflicting events
// @Tags Calendar
// @Produce json
// @Param start query string true "Start in RFC3339"
// @Param end query string true "End in RFC3339"
// @Param excludeId query string false "Event ID to ignore"
// @Success 200 {object} ConflictDTO
// @Router /api/calendar/conflicts [get]
// @Security XUserId
func (h *Handler) CheckConflict(w http.ResponseWriter, r *http.Request) {
	start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid start format", "'start' must be in RFC3339 format")
		return
	}
	end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid end format", "'end' must be in RFC3339 format")
		return
	}
	conflict, err := h.service.HasConflict(r.Context(), start, end, r.URL.Query().Get("excludeId"))
	if err != nil {
		writeServiceError(w, "Failed to check conflicts", err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, ConflictDTO{Conflict: conflict})
}

// ExportICal godoc
// @Summary Export events as iCalendar
// @Tags Calendar
// @Produce text/calendar
// @Success 200 {string} string "iCalendar document"
// @Router /api/calendar/events/export.ics [get]
// @Security XUserId
func (h *Handler) ExportICal(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.service.ExportICal(r.Context(), &buf); err != nil {
		writeServiceError(w, "Failed to export events", err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.Errorf("failed to write calendar export: %v", err)
	}
}

func writeServiceError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, ErrTitleRequired), errors.Is(err, ErrInvalidDeleteScope):
		rest.WriteError(w, http.StatusBadRequest, message, err.Error())
	case errors.Is(err, user.ErrNoUser):
		rest.WriteError(w, http.StatusForbidden, message, "user not found")
	default:
		rest.WriteDomainError(w, message, err)
	}
}

func eventToDTO(e Event) EventDTO {
	attendees := e.Attendees
	if attendees == nil {
		attendees = []string{}
	}
	dto := EventDTO{
		Id:               e.Id,
		Title:            e.Title,
		Description:      e.Description,
		Location:         e.Location,
		Start:            e.StartTime,
		End:              e.EndTime,
		AllDay:           e.AllDay,
		Attendees:        attendees,
		Recurrence:       e.Recurrence,
		RecurringEventId: e.RecurringEventId,
		MeetingLink:      e.MeetingLink,
		Status:           e.Status,
		Reminders:        &RemindersDTO{UseDefault: e.Reminders.UseDefault},
	}
	for _, o := range e.Reminders.Overrides {
		dto.Reminders.Overrides = append(dto.Reminders.Overrides, ReminderDTO{Method: o.Method, Minutes: o.MinutesBeforeStart})
	}
	return dto
}

// dtoToEvent treats missing reminders as the calendar default.
func dtoToEvent(dto EventDTO) Event {
	e := Event{
		Id:          dto.Id,
		Title:       dto.Title,
		Description: dto.Description,
		Location:    dto.Location,
		StartTime:   dto.Start,
		EndTime:     dto.End,
		AllDay:      dto.AllDay,
		Attendees:   dto.Attendees,
		Recurrence:  dto.Recurrence,
		Reminders:   DefaultReminders(),
	}
	if dto.Reminders != nil {
		e.Reminders = Reminders{UseDefault: dto.Reminders.UseDefault}
		for _, o := range dto.Reminders.Overrides {
			e.Reminders.Overrides = append(e.Reminders.Overrides, Reminder{Method: o.Method, MinutesBeforeStart: o.Minutes})
		}
	}
	return e
}
