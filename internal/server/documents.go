package server

import (
	"encoding/json"
	"log"
	"net/http"

	"docvault/internal/store"
)

// docJSON is the wire form of a document. The storage locator is never
// serialized: only the download path resolves it.
type docJSON struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Public   bool   `json:"public"`
}

func toDocJSON(docs []store.Document) []docJSON {
	out := make([]docJSON, 0, len(docs))
	for _, d := range docs {
		out = append(out, docJSON{ID: d.ID, Filename: d.Filename, Public: d.Public})
	}
	return out
}

// listDocumentsHandler answers GET /documents: the full catalog for admins,
// exactly the granted set for everyone else, plus the public segment.
func (cfg Config) listDocumentsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		ident := identityFromContext(r.Context())

		visible, err := cfg.Gate.ListVisible(r.Context(), *ident)
		if err != nil {
			rid := RequestIDFromContext(r.Context())
			log.Printf("rid=%s msg=list_visible err=%v", rid, err)
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}

		public, err := cfg.Catalog.ListPublic(r.Context())
		if err != nil {
			rid := RequestIDFromContext(r.Context())
			log.Printf("rid=%s msg=list_public err=%v", rid, err)
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"documents": toDocJSON(visible),
			"public":    toDocJSON(public),
		})
	})
}

// publicDocumentsHandler answers GET /documents/public without a session.
func (cfg Config) publicDocumentsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		public, err := cfg.Catalog.ListPublic(r.Context())
		if err != nil {
			rid := RequestIDFromContext(r.Context())
			log.Printf("rid=%s msg=list_public err=%v", rid, err)
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"documents": toDocJSON(public),
		})
	})
}
