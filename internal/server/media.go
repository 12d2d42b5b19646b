package server

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ruizzmauri/gsv-sub000/internal/blobstore"
)

// handleMedia serves a previously archived media object at
// /media/{key...}?grant={jwt}, the surface a channel adapter is handed a
// signed link to instead of the gateway's bearer token.
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/media/")
	if key == "" {
		http.NotFound(w, r)
		return
	}

	grant := r.URL.Query().Get("grant")
	grantedKey, err := s.grantor.Verify(grant)
	if err != nil || grantedKey != key {
		http.Error(w, "invalid or missing media grant", http.StatusForbidden)
		return
	}

	obj, err := s.blob.GetMedia(r.Context(), key)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "media fetch failed", http.StatusInternalServerError)
		return
	}
	defer obj.Body.Close()

	if !obj.ExpiresAt.IsZero() && time.Now().After(obj.ExpiresAt) {
		http.Error(w, "media expired", http.StatusGone)
		return
	}

	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}
	io.Copy(w, obj.Body)
}
