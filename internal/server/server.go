package server

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"time"

	"docvault/internal/access"
	"docvault/internal/storage"
	"docvault/internal/store"
)

type BuildInfo struct {
	Version string
	Commit  string
}

// Config wires the server to its collaborators. Every dependency is passed
// in explicitly; the server holds no ambient state.
type Config struct {
	Addr  string // e.g. ":8080"
	Build BuildInfo
	Auth  AuthConfig

	DB      *sql.DB // readiness probe only; nil in handler tests
	Creds   store.CredentialStore
	Catalog store.Catalog
	Grants  store.GrantRegistry
	Blobs   storage.BlobStore
	Gate    *access.Gate

	MaxUploadBytes int64
}

type Server struct {
	httpServer *http.Server
}

func New(cfg Config) *Server {
	s := &http.Server{
		Addr:              cfg.Addr,
		Handler:           cfg.handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return &Server{httpServer: s}
}

// Handler returns the fully wired HTTP handler for cfg, for embedding in
// tests and alternative entrypoints.
func Handler(cfg Config) http.Handler {
	return cfg.handler()
}

func (cfg Config) handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/login", cfg.Auth.loginHandler())
	mux.Handle("/logout", cfg.Auth.logoutHandler())

	mux.Handle("/documents", cfg.requireUser(cfg.listDocumentsHandler()))
	mux.Handle("/documents/public", cfg.publicDocumentsHandler())
	mux.Handle("/download", cfg.downloadHandler())
	mux.Handle("/account/password", cfg.requireUser(cfg.changePasswordHandler()))

	mux.Handle("/admin/users", cfg.requireAdmin(cfg.adminUsersHandler()))
	mux.Handle("/admin/users/", cfg.requireAdmin(cfg.adminUserHandler()))
	mux.Handle("/admin/documents", cfg.requireAdmin(cfg.adminUploadHandler()))
	mux.Handle("/admin/documents/", cfg.requireAdmin(cfg.adminDeleteDocumentHandler()))
	mux.Handle("/admin/grants", cfg.requireAdmin(cfg.adminGrantsHandler()))

	mux.HandleFunc("/healthz", cfg.liveHandler)
	mux.HandleFunc("/readyz", cfg.readyHandler)

	// Wrap middleware: requestID -> logging -> mux
	var handler http.Handler = mux
	handler = loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

// requireUser resolves the session to an identity and threads it through
// the request context. Anonymous callers get the login challenge.
func (cfg Config) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident := cfg.Auth.currentIdentity(r)
		if ident == nil {
			challenge(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), identityCtxKey{}, ident)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin is the administrative gate check. Every /admin route passes
// through here; there is no second path.
func (cfg Config) requireAdmin(next http.Handler) http.Handler {
	return cfg.requireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident := identityFromContext(r.Context())
		dec, err := cfg.Gate.Authorize(r.Context(), ident, access.OpAdminister, nil)
		if err != nil {
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		if dec != access.Allow {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
