package handlers

import (
	"database/sql"
	"log"
	"net/http"
	"strconv"

	"github.com/holden-dev/photolibbackend/database"
)

const (
	defaultTimelineLimit = 100
	maxTimelineLimit     = 500
)

// MediaHandler serves the read-side media listing
type MediaHandler struct {
	db *sql.DB
}

func NewMediaHandler(db *sql.DB) *MediaHandler {
	return &MediaHandler{db: db}
}

// Timeline handles GET /api/media. Results are ordered newest-first by
// capture date; pass ?cursor=<next_cursor> from the previous page to continue.
func (h *MediaHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	limit := defaultTimelineLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			WriteAPIError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		if parsed > maxTimelineLimit {
			parsed = maxTimelineLimit
		}
		limit = parsed
	}

	var cursor *database.TimelineCursor
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		parsed, err := database.ParseTimelineCursor(raw)
		if err != nil {
			WriteAPIError(w, http.StatusBadRequest, "invalid_cursor", "cursor must come from a previous page")
			return
		}
		cursor = &parsed
	}

	page, err := database.ListTimelinePage(h.db, cursor, limit)
	if err != nil {
		log.Printf("handler: timeline query failed: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, "query_failed", "Failed to list media")
		return
	}

	writeJSON(w, http.StatusOK, page)
}
