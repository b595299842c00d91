package google

import (
	"errors"
	"net/http"
	"strings"

	"github.com/crmdesk/crmdesk/internal/rest"
	"github.com/crmdesk/crmdesk/pkg/user"
	log "github.com/sirupsen/logrus"
)

type CalendarItemDto struct {
	Id      string `json:"id"`
	Summary string `json:"summary"`
	Primary bool   `json:"primary"`
}

type authRedirectDto struct {
	RedirectUrl string `json:"redirectUrl"`
}

type Handler struct {
	service Service
	tokens  *TokenClient
}

func NewHandler(s Service, tokens *TokenClient) *Handler {
	return &Handler{service: s, tokens: tokens}
}

// ListCalendars godoc
// @Summary List Google calendars
// @Tags Google
// @Produce json
// @Success 200 {array} CalendarItemDto
// @Failure 403 {object} rest.ErrorResponse "Google authorization required"
// @Failure 503 {object} rest.ErrorResponse "Google integration unavailable"
// @Router /api/integrations/google/calendars [get]
// @Security XUserId
func (h *Handler) ListCalendars(w http.ResponseWriter, r *http.Request) {
	calendars, err := h.service.ListCalendars(r.Context())
	if err != nil {
		writeError(w, "Failed to list Google calendars", err)
		return
	}

	calendarItems := make([]CalendarItemDto, 0, len(calendars))
	for _, c := range calendars {
		calendarItems = append(calendarItems, toCalendarItemDto(c))
	}
	rest.WriteJSON(w, http.StatusOK, calendarItems)
}

// OAuthLogin godoc
// @Summary Initiate Google OAuth login
// @Tags Google
// @Produce json
// @Param finalUrl query string false "URL to redirect to after authentication"
// @Success 200 {object} object{redirectUrl=string} "OAuth redirect URL"
// @Router /api/integrations/google/auth/login [get]
// @Security XUserId
func (h *Handler) OAuthLogin(w http.ResponseWriter, r *http.Request) {
	userId, err := user.CurrentId(r.Context())
	if err != nil {
		writeError(w, "Failed to handle Google authentication", err)
		return
	}

	u, err := h.tokens.LoginURL(r.Context(), userId, r.URL.Query().Get("finalUrl"))
	if err != nil {
		writeError(w, "Failed to handle Google authentication", err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, authRedirectDto{RedirectUrl: u})
}

// OAuthCallback godoc
// @Summary Google OAuth callback
// @Tags Google
// @Param code query string true "Authorization code"
// @Param state query string true "State parameter"
// @Success 302 "Redirect to finalUrl with success=true/false"
// @Router /api/integrations/google/auth/callback [get]
func (h *Handler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	code := r.FormValue("code")
	state := r.FormValue("state")

	parts := strings.SplitN(state, "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		rest.WriteError(w, http.StatusBadRequest, "Invalid state parameter", "")
		return
	}
	finalUrl, nonce := parts[0], parts[1]

	if err := h.tokens.CompleteLogin(r.Context(), nonce, code); err != nil {
		log.Errorf("Google authorization failed: %v", err)
		http.Redirect(w, r, finalUrl+"?success=false", http.StatusFound)
		return
	}
	log.Debug("Successfully stored Google auth token for nonce: ", nonce)
	http.Redirect(w, r, finalUrl+"?success=true", http.StatusFound)
}

// OAuthLogout godoc
// @Summary Disconnect Google account
// @Tags Google
// @Success 204
// @Router /api/integrations/google/auth/logout [delete]
// @Security XUserId
func (h *Handler) OAuthLogout(w http.ResponseWriter, r *http.Request) {
	userId, err := user.CurrentId(r.Context())
	if err != nil {
		writeError(w, "Failed to handle Google authentication", err)
		return
	}
	if err := h.tokens.Logout(r.Context(), userId); err != nil {
		writeError(w, "Failed to handle Google authentication", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, message string, err error) {
	if errors.Is(err, user.ErrNoUser) {
		rest.WriteError(w, http.StatusForbidden, "User not found", "")
		return
	}
	rest.WriteDomainError(w, message, err)
}

func toCalendarItemDto(ci CalendarItem) CalendarItemDto {
	return CalendarItemDto{
		Id:      ci.ID,
		Summary: ci.Summary,
		Primary: ci.Primary,
	}
}
