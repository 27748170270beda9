package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"docvault/internal/store"
)

// changePasswordHandler serves POST /account/password for the signed-in
// identity. The current password must be presented again; a forced-change
// flag on the account is cleared by SetPassword.
func (cfg Config) changePasswordHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		ident := identityFromContext(r.Context())
		if ident == nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req struct {
			Current string `json:"current_password"`
			New     string `json:"new_password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		if _, err := cfg.Creds.Verify(r.Context(), ident.Username, req.Current); err != nil {
			if errors.Is(err, store.ErrInvalidCredentials) {
				http.Error(w, "invalid credentials", http.StatusUnauthorized)
				return
			}
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}

		if ok, msg := validatePassword(req.New); !ok {
			http.Error(w, msg, http.StatusBadRequest)
			return
		}

		if err := cfg.Creds.SetPassword(r.Context(), ident.ID, req.New); err != nil {
			rid := RequestIDFromContext(r.Context())
			log.Printf("rid=%s msg=change_password err=%v", rid, err)
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "password_changed"})
	})
}
