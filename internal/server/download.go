package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"docvault/internal/access"
	"docvault/internal/storage"
	"docvault/internal/store"
)

// downloadHandler serves GET /download?id={uuid}. Every read passes the
// gate: public documents stream to anyone, private ones only to admins and
// grantees. Denied callers never receive a byte of content; authenticated
// ones are bounced back to their own document list.
func (cfg Config) downloadHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "missing id", http.StatusBadRequest)
			return
		}

		doc, err := cfg.Catalog.ByID(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}

		ident := cfg.Auth.currentIdentity(r)
		dec, err := cfg.Gate.Authorize(r.Context(), ident, access.OpReadDocument, &doc)
		if err != nil {
			rid := RequestIDFromContext(r.Context())
			log.Printf("rid=%s msg=authorize_read err=%v", rid, err)
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		switch dec {
		case access.Allow:
		case access.DenyAnonymous:
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		default:
			// Fail closed, fail quiet: back to the caller's own list.
			http.Redirect(w, r, "/documents", http.StatusSeeOther)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
		defer cancel()

		obj, err := cfg.Blobs.Retrieve(ctx, doc.ObjectKey)
		if err != nil {
			rid := RequestIDFromContext(r.Context())
			log.Printf("rid=%s msg=retrieve key=%s err=%v", rid, doc.ObjectKey, err)
			if errors.Is(err, storage.ErrNotFound) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			http.Error(w, "storage error", http.StatusBadGateway)
			return
		}
		defer func() { _ = obj.Close() }()

		w.Header().Set("Content-Type", "application/octet-stream")
		// Encourage safe download behavior in browsers.
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, doc.Filename))
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(http.StatusOK)

		_, _ = io.Copy(w, obj)
	})
}
