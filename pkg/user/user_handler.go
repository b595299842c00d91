package user

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/crmdesk/crmdesk/internal/rest"
	log "github.com/sirupsen/logrus"
)

type UserDTO struct {
	Uid         string      `json:"uid"`
	Username    string      `json:"username"`
	DisplayName string      `json:"displayName"`
	Settings    SettingsDTO `json:"settings"`
}

type SettingsDTO struct {
	Timezone       string                    `json:"timezone"`
	GoogleCalendar GoogleCalendarSettingsDTO `json:"googleCalendar"`
}

type GoogleCalendarSettingsDTO struct {
	CalendarId string `json:"calendarId"`
}

type Handler struct {
	userService Service
}

func NewHandler(userService Service) *Handler {
	return &Handler{
		userService: userService,
	}
}

// CreateUser godoc
// @Summary Create a new user
// @Description Register a new CRM user
// @Tags User
// @Accept json
// @Produce json
// @Param user body UserDTO true "User"
// @Success 201 {object} UserDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Router /api/user [post]
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating user")

	var user UserDTO
	if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", "")
		return
	}
	if msg := validateDTO(user); msg != "" {
		rest.WriteError(w, http.StatusBadRequest, msg, "")
		return
	}

	createdUser, err := h.userService.CreateUser(r.Context(), dtoToUser(user))
	if err != nil {
		if errors.Is(err, ErrUserDataInvalid) {
			rest.WriteError(w, http.StatusBadRequest, "Invalid user data", err.Error())
			return
		}
		log.Errorf("failed to create user: %v", err)
		rest.WriteError(w, http.StatusInternalServerError, "Failed to create user", "")
		return
	}
	log.Tracef("Created user: %+v", createdUser)

	rest.WriteJSON(w, http.StatusCreated, userToDTO(createdUser))
}

// CurrentUser godoc
// @Summary Get current user
// @Tags User
// @Produce json
// @Success 200 {object} UserDTO
// @Failure 403 {string} string "User not found"
// @Router /api/user/current [get]
// @Security XUserId
func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	currentUser, err := h.userService.GetCurrentUser(r.Context())
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			rest.WriteError(w, http.StatusNotFound, "User not found", "")
			return
		}
		if errors.Is(err, ErrNoUser) {
			rest.WriteError(w, http.StatusForbidden, "User not found", "")
			return
		}
		rest.WriteError(w, http.StatusInternalServerError, "Failed to get user", "")
		return
	}

	rest.WriteJSON(w, http.StatusOK, userToDTO(currentUser))
}

// UpdateUser godoc
// @Summary Update current user
// @Description Update display name, timezone and the Google calendar used for scheduling
// @Tags User
// @Accept json
// @Produce json
// @Param user body UserDTO true "User"
// @Success 200 {object} UserDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Failure 403 {string} string "User not found"
// @Router /api/user/current [put]
// @Security XUserId
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var user UserDTO
	if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", "")
		return
	}
	if len(user.DisplayName) == 0 {
		rest.WriteError(w, http.StatusBadRequest, "Display name is required", "")
		return
	}

	updatedUser, err := h.userService.UpdateCurrentUser(r.Context(), dtoToUser(user))
	if err != nil {
		switch {
		case errors.Is(err, ErrUserDataInvalid):
			rest.WriteError(w, http.StatusBadRequest, "Invalid user data", err.Error())
		case errors.Is(err, ErrNoUser), errors.Is(err, ErrUserNotFound):
			rest.WriteError(w, http.StatusForbidden, "User not found", "")
		default:
			log.Errorf("failed to update user: %v", err)
			rest.WriteError(w, http.StatusInternalServerError, "Failed to update user", "")
		}
		return
	}

	rest.WriteJSON(w, http.StatusOK, userToDTO(updatedUser))
}

func validateDTO(user UserDTO) string {
	if len(user.Username) == 0 {
		return "Username is required"
	}
	if len(user.DisplayName) == 0 {
		return "Display name is required"
	}
	return ""
}

func dtoToUser(dto UserDTO) User {
	return User{
		Uid:         dto.Uid,
		Username:    dto.Username,
		DisplayName: dto.DisplayName,
		Settings: Settings{
			Timezone: dto.Settings.Timezone,
			GoogleCalendar: GoogleCalendarSettings{
				CalendarId: dto.Settings.GoogleCalendar.CalendarId,
			},
		},
	}
}

func userToDTO(u User) UserDTO {
	return UserDTO{
		Uid:         u.Uid,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Settings: SettingsDTO{
			Timezone: u.Settings.Timezone,
			GoogleCalendar: GoogleCalendarSettingsDTO{
				CalendarId: u.Settings.GoogleCalendar.CalendarId,
			},
		},
	}
}
