package auth

import (
	"encoding/json"
	"net/http"

	"github.com/pesio-ai/be-hse-inspections/internal/errors"
)

// Middleware rejects requests without a valid principal and stores the
// principal on the request context otherwise.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := v.Authenticate(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{
				"error": err.Error(),
				"code":  string(errors.ErrCodeUnauthorized),
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}
