package catalog

import (
	"strings"
	"time"
)

// SearchParams is the catalog-level shape a parsed query DSL compiles
// down to: a composed FTS5 match expression plus the SQL predicates that
// can't be expressed inside FTS (app filter, date range).
type SearchParams struct {
	MatchExpr string
	AppName   string
	After     *time.Time
	Before    *time.Time
	Limit     int
}

// SearchResult is one matched frame with a highlighted snippet of its
// full text.
type SearchResult struct {
	FrameID    int64
	SegmentID  int64
	CapturedAt time.Time
	AppName    string
	Snippet    string
}

// Search runs a full-text query composed from SearchParams, returning
// matches ordered most-recent-first.
func (c *Catalog) Search(p SearchParams) ([]SearchResult, error) {
	var b strings.Builder
	args := make([]interface{}, 0, 6)

	b.WriteString(`
SELECT f.frame_id, f.segment_id, f.captured_at, f.app_name,
       snippet(frames_fts, 0, '[', ']', '...', 12)
FROM frames_fts
JOIN frames f ON f.frame_id = frames_fts.frame_id
WHERE frames_fts MATCH ?`)
	args = append(args, p.MatchExpr)

	if p.AppName != "" {
		b.WriteString(` AND f.app_name = ?`)
		args = append(args, p.AppName)
	}
	if p.After != nil {
		b.WriteString(` AND f.captured_at >= ?`)
		args = append(args, p.After.UnixMilli())
	}
	if p.Before != nil {
		b.WriteString(` AND f.captured_at <= ?`)
		args = append(args, p.Before.UnixMilli())
	}
	b.WriteString(` ORDER BY f.captured_at DESC`)

	limit := p.Limit
	if limit <= 0 {
		limit = 100
	}
	b.WriteString(` LIMIT ?`)
	args = append(args, limit)

	rows, err := c.db.Query(b.String(), args...)
	if err != nil {
		return nil, newErr(ErrUnavailable, "run search", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var capturedAtMillis int64
		var appName *string
		if err := rows.Scan(&r.FrameID, &r.SegmentID, &capturedAtMillis, &appName, &r.Snippet); err != nil {
			return nil, newErr(ErrUnavailable, "scan search result", err)
		}
		r.CapturedAt = time.UnixMilli(capturedAtMillis)
		if appName != nil {
			r.AppName = *appName
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
