package database

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// TimelineEntry is the slim row shape returned to the serving layer when it
// pages through the library by capture date.
type TimelineEntry struct {
	ID            uint    `json:"id"`
	Filename      string  `json:"filename"`
	MediaType     string  `json:"media_type"`
	Width         *int    `json:"width,omitempty"`
	Height        *int    `json:"height,omitempty"`
	TakenAt       *int64  `json:"taken_at,omitempty"`
	ThumbnailPath *string `json:"thumbnail_path,omitempty"`
}

// TimelinePage is one keyset-paginated slice of the timeline.
type TimelinePage struct {
	Items      []TimelineEntry `json:"items"`
	NextCursor *string         `json:"next_cursor,omitempty"`
	HasMore    bool            `json:"has_more"`
}

// TimelineCursor marks the last row of a page. The id breaks ties between
// rows sharing a capture date; rows without one sort as timestamp zero.
type TimelineCursor struct {
	TakenAt int64
	ID      uint
}

func (c TimelineCursor) String() string {
	return fmt.Sprintf("%d:%d", c.TakenAt, c.ID)
}

// ParseTimelineCursor decodes the "<taken_at>:<id>" form produced by String
func ParseTimelineCursor(raw string) (TimelineCursor, error) {
	tsPart, idPart, ok := strings.Cut(raw, ":")
	if !ok {
		return TimelineCursor{}, fmt.Errorf("invalid timeline cursor %q", raw)
	}
	ts, err := strconv.ParseInt(tsPart, 10, 64)
	if err != nil {
		return TimelineCursor{}, fmt.Errorf("invalid timeline cursor %q: %w", raw, err)
	}
	id, err := strconv.ParseUint(idPart, 10, 64)
	if err != nil {
		return TimelineCursor{}, fmt.Errorf("invalid timeline cursor %q: %w", raw, err)
	}
	return TimelineCursor{TakenAt: ts, ID: uint(id)}, nil
}

// ListTimelinePage returns up to limit media rows ordered by capture date
// descending (id descending within a date), starting strictly after the
// cursor. Soft-deleted rows are excluded.
func ListTimelinePage(db *sql.DB, cursor *TimelineCursor, limit int) (TimelinePage, error) {
	if limit <= 0 {
		limit = 100
	}

	queryBuilder := psql.Select(
		"id", "filename", "media_type", "width", "height", "taken_at", "thumbnail_path",
	).From("media").
		Where("deleted_at IS NULL").
		OrderBy("COALESCE(taken_at, 0) DESC", "id DESC").
		Limit(uint64(limit) + 1)

	if cursor != nil {
		queryBuilder = queryBuilder.Where(sq.Or{
			sq.Expr("COALESCE(taken_at, 0) < ?", cursor.TakenAt),
			sq.And{
				sq.Expr("COALESCE(taken_at, 0) = ?", cursor.TakenAt),
				sq.Lt{"id": cursor.ID},
			},
		})
	}

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return TimelinePage{}, fmt.Errorf("failed to build timeline query: %w", err)
	}

	rows, err := db.Query(sqlStr, args...)
	if err != nil {
		return TimelinePage{}, fmt.Errorf("failed to query timeline page: %w", err)
	}
	defer rows.Close()

	var entries []TimelineEntry
	for rows.Next() {
		var e TimelineEntry
		if err := rows.Scan(&e.ID, &e.Filename, &e.MediaType, &e.Width, &e.Height, &e.TakenAt, &e.ThumbnailPath); err != nil {
			return TimelinePage{}, fmt.Errorf("failed to scan timeline row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return TimelinePage{}, fmt.Errorf("timeline row iteration failed: %w", err)
	}

	page := TimelinePage{Items: entries}
	if len(entries) > limit {
		page.Items = entries[:limit]
		page.HasMore = true
		last := page.Items[len(page.Items)-1]
		next := TimelineCursor{ID: last.ID}
		if last.TakenAt != nil {
			next.TakenAt = *last.TakenAt
		}
		encoded := next.String()
		page.NextCursor = &encoded
	}
	return page, nil
}
