// admin.go - Administrative operations: user management, document
// deletion, and grant assignment. Every route here sits behind
// requireAdmin; handlers can assume a pre-authorized admin identity.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"docvault/internal/store"
)

type userJSON struct {
	ID                 string `json:"id"`
	Username           string `json:"username"`
	IsAdmin            bool   `json:"is_admin"`
	MustChangePassword bool   `json:"must_change_password,omitempty"`
}

type createUserReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"is_admin"`
}

// adminUsersHandler serves GET (list) and POST (create) on /admin/users.
func (cfg Config) adminUsersHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			idents, err := cfg.Creds.List(r.Context())
			if err != nil {
				rid := RequestIDFromContext(r.Context())
				log.Printf("rid=%s msg=list_users err=%v", rid, err)
				http.Error(w, "server error", http.StatusInternalServerError)
				return
			}
			users := make([]userJSON, 0, len(idents))
			for _, ident := range idents {
				users = append(users, userJSON{
					ID:                 ident.ID,
					Username:           ident.Username,
					IsAdmin:            ident.IsAdmin,
					MustChangePassword: ident.MustChangePassword,
				})
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"users": users})

		case http.MethodPost:
			var req createUserReq
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
			req.Username = strings.TrimSpace(req.Username)

			if ok, msg := validateUsername(req.Username); !ok {
				http.Error(w, msg, http.StatusBadRequest)
				return
			}
			if ok, msg := validatePassword(req.Password); !ok {
				http.Error(w, msg, http.StatusBadRequest)
				return
			}

			ident, err := cfg.Creds.Create(r.Context(), req.Username, req.Password, req.IsAdmin)
			if err != nil {
				if errors.Is(err, store.ErrDuplicateIdentity) {
					http.Error(w, "user exists", http.StatusConflict)
					return
				}
				rid := RequestIDFromContext(r.Context())
				log.Printf("rid=%s msg=create_user err=%v", rid, err)
				http.Error(w, "server error", http.StatusInternalServerError)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(userJSON{
				ID:       ident.ID,
				Username: ident.Username,
				IsAdmin:  ident.IsAdmin,
			})

		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}

// adminUserHandler serves the per-user routes:
//
//	DELETE /admin/users/{id}
//	POST   /admin/users/{id}/password
func (cfg Config) adminUserHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/admin/users/"), "/")
		if len(parts) == 0 || parts[0] == "" {
			http.Error(w, "user id required", http.StatusBadRequest)
			return
		}
		userID := parts[0]

		switch {
		case len(parts) == 1 && r.Method == http.MethodDelete:
			// An admin cannot delete their own account through this route.
			if ident := identityFromContext(r.Context()); ident != nil && ident.ID == userID {
				http.Error(w, "cannot delete own account", http.StatusConflict)
				return
			}
			err := cfg.Creds.Delete(r.Context(), userID)
			switch {
			case errors.Is(err, store.ErrNotFound):
				http.Error(w, "user not found", http.StatusNotFound)
			case errors.Is(err, store.ErrLastAdmin):
				http.Error(w, "cannot delete the last admin", http.StatusConflict)
			case err != nil:
				rid := RequestIDFromContext(r.Context())
				log.Printf("rid=%s msg=delete_user err=%v", rid, err)
				http.Error(w, "server error", http.StatusInternalServerError)
			default:
				w.WriteHeader(http.StatusNoContent)
			}

		case len(parts) == 2 && parts[1] == "password" && r.Method == http.MethodPost:
			var req struct {
				Password string `json:"password"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
			if ok, msg := validatePassword(req.Password); !ok {
				http.Error(w, msg, http.StatusBadRequest)
				return
			}
			err := cfg.Creds.SetPassword(r.Context(), userID, req.Password)
			switch {
			case errors.Is(err, store.ErrNotFound):
				http.Error(w, "user not found", http.StatusNotFound)
			case err != nil:
				rid := RequestIDFromContext(r.Context())
				log.Printf("rid=%s msg=set_password err=%v", rid, err)
				http.Error(w, "server error", http.StatusInternalServerError)
			default:
				w.WriteHeader(http.StatusNoContent)
			}

		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	})
}

// adminDeleteDocumentHandler serves DELETE /admin/documents/{id}. The
// catalog row and its grants go first; blob removal is best effort, as in
// the rest of the delete paths.
func (cfg Config) adminDeleteDocumentHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/admin/documents/"), "/")
		if id == "" || strings.Contains(id, "/") {
			http.Error(w, "document id required", http.StatusBadRequest)
			return
		}

		doc, err := cfg.Catalog.ByID(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, "document not found", http.StatusNotFound)
				return
			}
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}

		if err := cfg.Catalog.Delete(r.Context(), id); err != nil {
			rid := RequestIDFromContext(r.Context())
			log.Printf("rid=%s msg=delete_document err=%v", rid, err)
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := cfg.Blobs.Remove(ctx, doc.ObjectKey); err != nil {
			// Record is gone; orphaned bytes are only logged.
			rid := RequestIDFromContext(r.Context())
			log.Printf("rid=%s msg=blob_remove key=%s err=%v", rid, doc.ObjectKey, err)
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

type grantReq struct {
	UserID string `json:"user_id"`
	DocID  string `json:"doc_id"`
}

// adminGrantsHandler serves /admin/grants:
//
//	GET    list all edges
//	POST   assign a document to a user (idempotent)
//	DELETE revoke an assignment
//
// Assignment resolves both sides first and fails loudly on a dangling id
// rather than inserting an orphan edge.
func (cfg Config) adminGrantsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			edges, err := cfg.Grants.ListEdges(r.Context())
			if err != nil {
				rid := RequestIDFromContext(r.Context())
				log.Printf("rid=%s msg=list_grants err=%v", rid, err)
				http.Error(w, "server error", http.StatusInternalServerError)
				return
			}
			type edgeJSON struct {
				UserID string `json:"user_id"`
				DocID  string `json:"doc_id"`
			}
			out := make([]edgeJSON, 0, len(edges))
			for _, e := range edges {
				out = append(out, edgeJSON{UserID: e.IdentityID, DocID: e.DocumentID})
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"grants": out})

		case http.MethodPost, http.MethodDelete:
			var req grantReq
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
			if req.UserID == "" || req.DocID == "" {
				http.Error(w, "user_id and doc_id required", http.StatusBadRequest)
				return
			}

			if _, err := cfg.Creds.ByID(r.Context(), req.UserID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					http.Error(w, "user not found", http.StatusNotFound)
					return
				}
				http.Error(w, "server error", http.StatusInternalServerError)
				return
			}
			if _, err := cfg.Catalog.ByID(r.Context(), req.DocID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					http.Error(w, "document not found", http.StatusNotFound)
					return
				}
				http.Error(w, "server error", http.StatusInternalServerError)
				return
			}

			var err error
			if r.Method == http.MethodPost {
				err = cfg.Grants.Grant(r.Context(), req.UserID, req.DocID)
			} else {
				err = cfg.Grants.Revoke(r.Context(), req.UserID, req.DocID)
			}
			if err != nil {
				rid := RequestIDFromContext(r.Context())
				log.Printf("rid=%s msg=grant_mutation err=%v", rid, err)
				http.Error(w, "server error", http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusNoContent)

		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}
