package app

import (
	"errors"
	"net/http"

	"github.com/crmdesk/crmdesk/internal/rest"
	"github.com/crmdesk/crmdesk/pkg/user"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const userIdHeader = "X-User-Id"

// SetupMiddleware wires all HTTP middlewares for the application.
func SetupMiddleware(r *mux.Router, deps *Dependencies) {
	r.Use(requestLogger)
	r.Use(userContext(deps.UserService))
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		log.WithFields(log.Fields{
			"method": req.Method,
			"path":   req.URL.Path,
		}).Debug("Handling request")
		next.ServeHTTP(w, req)
	})
}

// userContext resolves the X-User-Id header into the request context. Requests without the header
// pass through and fail later in handlers that need a user.
func userContext(userService user.Service) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			uid := req.Header.Get(userIdHeader)
			ctx := req.Context()

			if uid != "" {
				u, err := userService.GetUserByUid(ctx, uid)
				if err != nil {
					if errors.Is(err, user.ErrUserNotFound) {
						log.Debugf("user not found: %s", uid)
						rest.WriteError(w, http.StatusForbidden, "User not found", "")
						return
					}
					log.Errorf("failed to get user: %v", err)
					rest.WriteError(w, http.StatusInternalServerError, "Failed to resolve user", "")
					return
				}
				ctx = user.WithUser(ctx, u)
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}
}
