// auth.go - Signed cookie sessions and the login/logout handlers.
//
// Sessions are stateless HMAC-signed cookies carrying the identity id and
// an expiry. The identity itself is re-resolved from the credential store
// on every request so admin-flag changes take effect immediately.
package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"docvault/internal/store"
)

type AuthConfig struct {
	SessionSecret string
	SessionTTL    time.Duration
	CookieName    string
	Creds         store.CredentialStore
}

type sessionPayload struct {
	Sub string `json:"sub"`
	Exp int64  `json:"exp"`
}

func (a AuthConfig) cookieName() string {
	if a.CookieName == "" {
		return "dv_session"
	}
	return a.CookieName
}

func (a AuthConfig) ttl() time.Duration {
	if a.SessionTTL <= 0 {
		return 12 * time.Hour
	}
	return a.SessionTTL
}

func signPayload(secret []byte, msg string) string {
	m := hmac.New(sha256.New, secret)
	_, _ = m.Write([]byte(msg))
	return hex.EncodeToString(m.Sum(nil))
}

// makeToken returns "payload.signature".
func (a AuthConfig) makeToken(sub string) (string, time.Time, error) {
	exp := time.Now().Add(a.ttl())
	b, err := json.Marshal(sessionPayload{Sub: sub, Exp: exp.Unix()})
	if err != nil {
		return "", time.Time{}, err
	}
	payload := base64.RawURLEncoding.EncodeToString(b)
	sig := signPayload([]byte(a.SessionSecret), payload)
	return payload + "." + sig, exp, nil
}

func (a AuthConfig) verifyToken(tok string) (sessionPayload, error) {
	var p sessionPayload
	payload, sig, ok := strings.Cut(tok, ".")
	if !ok {
		return p, errors.New("invalid token format")
	}
	want := signPayload([]byte(a.SessionSecret), payload)
	if !hmac.Equal([]byte(sig), []byte(want)) {
		return p, errors.New("invalid signature")
	}
	b, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return p, err
	}
	if p.Exp <= time.Now().Unix() {
		return p, errors.New("expired")
	}
	return p, nil
}

// currentIdentity resolves the session cookie to an identity, or nil for
// anonymous requests. An invalid or expired cookie counts as anonymous,
// not as an error: the caller decides how to challenge.
func (a AuthConfig) currentIdentity(r *http.Request) *store.Identity {
	c, err := r.Cookie(a.cookieName())
	if err != nil {
		return nil
	}
	p, err := a.verifyToken(c.Value)
	if err != nil {
		return nil
	}
	ident, err := a.Creds.ByID(r.Context(), p.Sub)
	if err != nil {
		return nil
	}
	return &ident
}

// loginHandler verifies credentials and issues the session cookie. Unknown
// username and wrong password produce the identical response: the store
// collapses both into a single invalid-credentials failure.
func (a AuthConfig) loginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var body struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		ident, err := a.Creds.Verify(r.Context(), body.Username, body.Password)
		if err != nil {
			if errors.Is(err, store.ErrInvalidCredentials) {
				http.Error(w, "invalid credentials", http.StatusUnauthorized)
				return
			}
			rid := RequestIDFromContext(r.Context())
			log.Printf("rid=%s msg=login_verify err=%v", rid, err)
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}

		tok, exp, err := a.makeToken(ident.ID)
		if err != nil {
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     a.cookieName(),
			Value:    tok,
			Path:     "/",
			Expires:  exp,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Secure:   true,
		})

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":               "ok",
			"username":             ident.Username,
			"is_admin":             ident.IsAdmin,
			"must_change_password": ident.MustChangePassword,
		})
	}
}

// logoutHandler destroys the session by expiring the cookie. Always
// succeeds, even without a session.
func (a AuthConfig) logoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     a.cookieName(),
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Secure:   true,
		})
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
	}
}

type identityCtxKey struct{}

// identityFromContext returns the identity placed by requireUser.
func identityFromContext(ctx context.Context) *store.Identity {
	ident, _ := ctx.Value(identityCtxKey{}).(*store.Identity)
	return ident
}

// challenge sends an anonymous caller to the login page: a redirect for
// browser navigation, 401 for API calls.
func challenge(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}
