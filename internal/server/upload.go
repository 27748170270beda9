package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var unsafeFilenameRe = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// sanitizeFilename reduces a client-supplied name to a safe display name.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	safe := unsafeFilenameRe.ReplaceAllString(name, "_")
	if safe == "" || safe == "." || safe == ".." {
		return fmt.Sprintf("file_%d", time.Now().Unix())
	}
	return safe
}

type uploadResp struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Public   bool   `json:"public"`
	Status   string `json:"status"`
}

// adminUploadHandler handles POST /admin/documents: a multipart form with a
// "document" file field and an optional "public" flag. The bytes go to blob
// storage first; the catalog record is registered only after the store
// succeeds, so a failed upload leaves no dangling record. Requests without
// file content are a no-op, not an error.
func (cfg Config) adminUploadHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if cfg.MaxUploadBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes)
		}

		mr, err := r.MultipartReader()
		if err != nil {
			http.Error(w, "bad multipart", http.StatusBadRequest)
			return
		}

		var (
			stored    bool
			objectKey string
			filename  string
			public    bool
		)

		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				if tooLarge(err) {
					http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
					return
				}
				http.Error(w, "bad multipart", http.StatusBadRequest)
				return
			}

			switch part.FormName() {
			case "public":
				v, _ := io.ReadAll(io.LimitReader(part, 16))
				s := strings.TrimSpace(string(v))
				public = s == "1" || s == "true" || s == "on"

			case "document":
				if part.FileName() == "" {
					break
				}
				filename = sanitizeFilename(part.FileName())
				// Stable, non-guessable object key; the uuid avoids any
				// path traversal through the client-supplied name.
				objectKey = "uploads/" + uuid.NewString()

				ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
				err := cfg.Blobs.Store(ctx, objectKey, part, -1, part.Header.Get("Content-Type"))
				cancel()
				if err != nil {
					rid := RequestIDFromContext(r.Context())
					log.Printf("rid=%s msg=blob_store key=%s err=%v", rid, objectKey, err)
					if tooLarge(err) {
						http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
						return
					}
					http.Error(w, "upload failed", http.StatusBadGateway)
					return
				}
				stored = true
			}
			_ = part.Close()
		}

		if !stored {
			// No file content supplied: no record, no error.
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "no_file"})
			return
		}

		doc, err := cfg.Catalog.Register(r.Context(), filename, objectKey, public)
		if err != nil {
			rid := RequestIDFromContext(r.Context())
			log.Printf("rid=%s msg=register_document err=%v", rid, err)
			// Best effort: do not leave orphaned bytes behind.
			_ = cfg.Blobs.Remove(r.Context(), objectKey)
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(uploadResp{
			ID:       doc.ID,
			Filename: doc.Filename,
			Public:   doc.Public,
			Status:   "stored",
		})
	})
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
