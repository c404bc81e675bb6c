package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/holden-dev/photolibbackend/media"
)

// AssetServer serves derived assets (thumbnails, previews) and originals out
// of the media store. The wildcard part of the route is the asset's relative
// path; traversal checks live in the store.
//
// Example usage in main.go:
//
//	r.Get("/api/thumbnails/*", AssetServer(store, media.AssetTypeThumbnail))
//	r.Get("/api/originals/*", AssetServer(store, media.AssetTypeOriginal))
func AssetServer(store media.Store, assetType media.AssetType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		relativePath := chi.URLParam(r, "*")
		if relativePath == "" || strings.Contains(relativePath, "..") {
			WriteAPIError(w, http.StatusBadRequest, "invalid_path", "Invalid asset path")
			return
		}

		reader, info, err := store.Get(assetType, relativePath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				http.NotFound(w, r)
				return
			}
			log.Printf("handler: failed to open %s asset %s: %v", assetType, relativePath, err)
			WriteAPIError(w, http.StatusInternalServerError, "asset_error", "Failed to open asset")
			return
		}
		defer reader.Close()

		if mime := media.MimeTypeForPath(relativePath); mime != nil {
			w.Header().Set("Content-Type", *mime)
		}
		w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size()))
		cacheDuration := 24 * time.Hour
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(cacheDuration.Seconds())))
		w.Header().Set("Expires", time.Now().Add(cacheDuration).Format(http.TimeFormat))

		if _, err := io.Copy(w, reader); err != nil {
			log.Printf("handler: failed to stream %s asset %s: %v", assetType, relativePath, err)
		}
	}
}
