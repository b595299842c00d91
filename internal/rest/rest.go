package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"
	"google.golang.org/api/googleapi"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// StatusError is implemented by domain errors that map to a fixed HTTP status.
type StatusError interface {
	error
	HTTPStatus() int
}

// WriteJSON encodes body with the given status. Encoding failures can only be logged because
// the status line has already been sent.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("failed to encode response: %v", err)
	}
}

func WriteError(w http.ResponseWriter, status int, message string, details string) {
	WriteJSON(w, status, ErrorResponse{
		Error:   message,
		Details: details,
	})
}

// StatusFor resolves the response status of err. Provider errors keep their own status code.
func StatusFor(err error) int {
	var statusErr StatusError
	if errors.As(err, &statusErr) {
		return statusErr.HTTPStatus()
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 600 {
		return apiErr.Code
	}
	return http.StatusInternalServerError
}

// WriteDomainError writes err using StatusFor. Server side failures are logged and their details hidden.
func WriteDomainError(w http.ResponseWriter, message string, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		log.Errorf("%s: %v", message, err)
		WriteError(w, status, message, "")
		return
	}
	WriteError(w, status, message, err.Error())
}
