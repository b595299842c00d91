package contacts

import (
	"errors"
	"net/http"

	"github.com/crmdesk/crmdesk/internal/rest"
	"github.com/crmdesk/crmdesk/pkg/user"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Suggestions godoc
// @Summary Suggest attendees
// @Description Suggest e-mail addresses from contacts and the organization directory, falling back to recently invited attendees.
// @Tags Contacts
// @Produce json
// @Param q query string false "Search text"
// @Success 200 {array} string
// @Failure 403 {object} rest.ErrorResponse "User not found"
// @Router /api/contacts/suggestions [get]
// @Security XUserId
func (h *Handler) Suggestions(w http.ResponseWriter, r *http.Request) {
	suggestions, err := h.service.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		if errors.Is(err, user.ErrNoUser) {
			rest.WriteError(w, http.StatusForbidden, "User not found", "")
			return
		}
		rest.WriteDomainError(w, "Failed to search contacts", err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, suggestions)
}
