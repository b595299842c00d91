package google

import (
	"errors"
	"fmt"
	"net/http"
)

var ErrUnauthenticated = errors.New("user is unauthenticated, authentication is required")

type Stage string

const (
	StageConfig      Stage = "config"
	StageDiscovery   Stage = "discovery"
	StageTokenClient Stage = "token-client"
)

// ConfigurationError means a required credential is missing. Retrying cannot help.
type ConfigurationError struct {
	Key string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing required configuration value %q", e.Key)
}

func (e *ConfigurationError) HTTPStatus() int {
	return http.StatusServiceUnavailable
}

// InitializationError wraps the failure of one bootstrap stage.
type InitializationError struct {
	Stage Stage
	Err   error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *InitializationError) Unwrap() error {
	return e.Err
}

func (e *InitializationError) HTTPStatus() int {
	return http.StatusServiceUnavailable
}

// AuthenticationError is returned when no usable token exists for the user. ConsentRequired is set
// when the user never granted access, otherwise Err carries the provider's refusal.
type AuthenticationError struct {
	ConsentRequired bool
	Err             error
}

func (e *AuthenticationError) Error() string {
	if e.ConsentRequired {
		return "google consent required: " + e.Err.Error()
	}
	return "google authentication failed: " + e.Err.Error()
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

func (e *AuthenticationError) HTTPStatus() int {
	return http.StatusForbidden
}
