package middleware

import (
	"crypto/subtle"
	"net/http"

	"mailshop-bot/pkg/apierror"
)

// NewLoginKeyMiddleware guards the staff endpoints of the ops API with a
// shared key carried in the X-Login-Key header.
func NewLoginKeyMiddleware(loginKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if loginKey == "" {
				writeError(w, apierror.Unauthorized("Staff API is disabled"))
				return
			}

			provided := r.Header.Get("X-Login-Key")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(loginKey)) != 1 {
				writeError(w, apierror.Unauthorized("Invalid login key"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeError writes an API error response.
func writeError(w http.ResponseWriter, err *apierror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	w.Write(err.ToJSON())
}
