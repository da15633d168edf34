// Package catalog is the relational store for frames, segments, the OCR
// work queue, and spatial regions, plus the full-text index that makes
// them searchable. It is opened on modernc.org/sqlite (pure Go, no cgo),
// the same driver waddle's session manager used, with the same
// WAL/foreign-keys/busy-timeout pragmas.
package catalog

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Catalog is the single entry point for every catalog operation named in
// the component design: frame/segment CRUD, the durable queue, and
// text/region write-through. All write operations are atomic with respect
// to each other.
type Catalog struct {
	db *sql.DB

	stmtMu    sync.RWMutex
	stmtCache map[string]*sql.Stmt
}

// Open opens (creating if necessary) the catalog file at path, a plain
// SQLite database that is not encrypted, and brings its schema up to date.
func Open(path string) (*Catalog, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)",
		path,
	)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, newErr(ErrUnavailable, "open catalog", err)
	}
	// A single writer connection serializes all actors through one
	// connection, matching the shared-resource policy for the catalog.
	db.SetMaxOpenConns(1)

	c := &Catalog{db: db, stmtCache: make(map[string]*sql.Stmt)}
	if err := c.applyMigrations(); err != nil {
		db.Close()
		return nil, newErr(ErrInvariantViolation, "apply migrations", err)
	}
	return c, nil
}

// Close releases the underlying connection and any cached statements.
func (c *Catalog) Close() error {
	c.stmtMu.Lock()
	for _, stmt := range c.stmtCache {
		stmt.Close()
	}
	c.stmtCache = nil
	c.stmtMu.Unlock()
	return c.db.Close()
}

func (c *Catalog) getStmt(query string) (*sql.Stmt, error) {
	c.stmtMu.RLock()
	if stmt, ok := c.stmtCache[query]; ok {
		c.stmtMu.RUnlock()
		return stmt, nil
	}
	c.stmtMu.RUnlock()

	c.stmtMu.Lock()
	defer c.stmtMu.Unlock()
	if stmt, ok := c.stmtCache[query]; ok {
		return stmt, nil
	}
	stmt, err := c.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	c.stmtCache[query] = stmt
	return stmt, nil
}

// InsertFrame inserts a new frame row and returns its id.
func (c *Catalog) InsertFrame(f Frame) (int64, error) {
	res, err := c.db.Exec(`
INSERT INTO frames (
	captured_at, segment_id, frame_index_in_segment,
	app_bundle_id, app_name, window_title, browser_url, display_id,
	processing_status, source_kind
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.CapturedAt.UnixMilli(), f.SegmentID, f.FrameIndexInSegment,
		f.Metadata.AppBundleID, f.Metadata.AppName, f.Metadata.WindowTitle, f.Metadata.BrowserURL, f.Metadata.DisplayID,
		string(f.ProcessingStatus), string(f.SourceKind),
	)
	if err != nil {
		return 0, classifyWriteErr(err, "insert frame")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, newErr(ErrUnavailable, "read frame id", err)
	}
	return id, nil
}

// InsertSegment inserts a new open segment row and returns its id.
func (c *Catalog) InsertSegment(s Segment) (int64, error) {
	res, err := c.db.Exec(`
INSERT INTO segments (opened_at, closed_at, relative_path, width, height, frame_count)
VALUES (?, NULL, ?, ?, ?, 0)`,
		s.OpenedAt.UnixMilli(), s.RelativePath, s.Width, s.Height,
	)
	if err != nil {
		return 0, classifyWriteErr(err, "insert segment")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, newErr(ErrUnavailable, "read segment id", err)
	}
	return id, nil
}

// SetSegmentPath updates a segment's relative_path after the fact, used
// when the backing file's path embeds the segment id that only becomes
// known once the row is inserted.
func (c *Catalog) SetSegmentPath(segmentID int64, relativePath string) error {
	res, err := c.db.Exec(`UPDATE segments SET relative_path = ? WHERE segment_id = ?`, relativePath, segmentID)
	if err != nil {
		return classifyWriteErr(err, "set segment path")
	}
	return requireAffected(res, "segment not found")
}

// UpdateFrameBrowserURL backfills a frame's browser_url column once OCR
// or the accessibility tree resolves one that capture time did not
// supply; it never overwrites a URL already on the row.
func (c *Catalog) UpdateFrameBrowserURL(frameID int64, url string) error {
	res, err := c.db.Exec(
		`UPDATE frames SET browser_url = ? WHERE frame_id = ? AND (browser_url IS NULL OR browser_url = '')`,
		url, frameID,
	)
	if err != nil {
		return classifyWriteErr(err, "update frame browser url")
	}
	_, err = res.RowsAffected()
	return err
}

// CloseSegment marks a segment closed with its final frame count.
func (c *Catalog) CloseSegment(segmentID int64, closedAt time.Time, frameCount int) error {
	res, err := c.db.Exec(
		`UPDATE segments SET closed_at = ?, frame_count = ? WHERE segment_id = ?`,
		closedAt.UnixMilli(), frameCount, segmentID,
	)
	if err != nil {
		return classifyWriteErr(err, "close segment")
	}
	return requireAffected(res, "segment not found")
}

// EnqueueFrame inserts a queue row for frame_id. It is idempotent: a
// second call for the same frame_id is a no-op, never a duplicate row.
func (c *Catalog) EnqueueFrame(frameID int64, priority int) error {
	_, err := c.db.Exec(
		`INSERT OR IGNORE INTO processing_queue (frame_id, enqueued_at, priority, retry_count, last_error)
		 VALUES (?, ?, ?, 0, NULL)`,
		frameID, time.Now().UnixMilli(), priority,
	)
	if err != nil {
		return classifyWriteErr(err, "enqueue frame")
	}
	return nil
}

// DequeueFrame returns and removes the highest-priority row, ties broken
// by earliest enqueued_at, as one atomic operation. It returns nil, nil
// when the queue is empty.
func (c *Catalog) DequeueFrame() (*QueueRow, error) {
	tx, err := c.db.Begin()
	if err != nil {
		return nil, newErr(ErrUnavailable, "begin dequeue", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`
SELECT queue_id, frame_id, enqueued_at, priority, retry_count, last_error
FROM processing_queue
ORDER BY priority DESC, enqueued_at ASC
LIMIT 1`)

	var q QueueRow
	var enqueuedAtMillis int64
	var lastError sql.NullString
	if err := row.Scan(&q.QueueID, &q.FrameID, &enqueuedAtMillis, &q.Priority, &q.RetryCount, &lastError); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, newErr(ErrUnavailable, "scan dequeue candidate", err)
	}
	q.EnqueuedAt = time.UnixMilli(enqueuedAtMillis)
	if lastError.Valid {
		q.LastError = &lastError.String
	}

	if _, err := tx.Exec(`DELETE FROM processing_queue WHERE queue_id = ?`, q.QueueID); err != nil {
		return nil, classifyWriteErr(err, "remove dequeued row")
	}
	if err := tx.Commit(); err != nil {
		return nil, newErr(ErrUnavailable, "commit dequeue", err)
	}
	return &q, nil
}

// RequeueFrame re-inserts a queue row for frame_id with a bumped retry
// count, used for recoverable-failure retry (crash recovery re-enqueues
// through EnqueueFrame instead).
func (c *Catalog) RequeueFrame(frameID int64, retryCount int, lastError string) error {
	var lastErrArg interface{}
	if lastError != "" {
		lastErrArg = lastError
	}
	_, err := c.db.Exec(`
INSERT INTO processing_queue (frame_id, enqueued_at, priority, retry_count, last_error)
VALUES (?, ?, 0, ?, ?)
ON CONFLICT(frame_id) DO UPDATE SET retry_count = excluded.retry_count, last_error = excluded.last_error`,
		frameID, time.Now().UnixMilli(), retryCount, lastErrArg,
	)
	if err != nil {
		return classifyWriteErr(err, "requeue frame")
	}
	return nil
}

// UpdateFrameStatus transitions a frame's processing_status.
func (c *Catalog) UpdateFrameStatus(frameID int64, status ProcessingStatus) error {
	res, err := c.db.Exec(
		`UPDATE frames SET processing_status = ? WHERE frame_id = ?`,
		string(status), frameID,
	)
	if err != nil {
		return classifyWriteErr(err, "update frame status")
	}
	return requireAffected(res, "frame not found")
}

// DeleteFrame deletes a frame together with its index row and region
// rows.
func (c *Catalog) DeleteFrame(frameID int64) error {
	tx, err := c.db.Begin()
	if err != nil {
		return newErr(ErrUnavailable, "begin delete frame", err)
	}
	defer tx.Rollback()
	if err := deleteFrameTx(tx, frameID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return newErr(ErrUnavailable, "commit delete frame", err)
	}
	return nil
}

func deleteFrameTx(tx *sql.Tx, frameID int64) error {
	if _, err := tx.Exec(`DELETE FROM regions WHERE frame_id = ?`, frameID); err != nil {
		return classifyWriteErr(err, "delete regions")
	}
	if _, err := tx.Exec(`DELETE FROM frames_fts WHERE frame_id = ?`, frameID); err != nil {
		return classifyWriteErr(err, "delete fts row")
	}
	if _, err := tx.Exec(`DELETE FROM processing_queue WHERE frame_id = ?`, frameID); err != nil {
		return classifyWriteErr(err, "delete queue row")
	}
	if _, err := tx.Exec(`DELETE FROM frames WHERE frame_id = ?`, frameID); err != nil {
		return classifyWriteErr(err, "delete frame row")
	}
	return nil
}

// DeleteSegmentCascade deletes all frames, index rows, and region rows
// belonging to segmentID, then the segment row itself.
func (c *Catalog) DeleteSegmentCascade(segmentID int64) error {
	tx, err := c.db.Begin()
	if err != nil {
		return newErr(ErrUnavailable, "begin cascade delete", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`SELECT frame_id FROM frames WHERE segment_id = ?`, segmentID)
	if err != nil {
		return classifyWriteErr(err, "list segment frames")
	}
	var frameIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return newErr(ErrUnavailable, "scan segment frame", err)
		}
		frameIDs = append(frameIDs, id)
	}
	rows.Close()

	for _, id := range frameIDs {
		if err := deleteFrameTx(tx, id); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(`DELETE FROM segments WHERE segment_id = ?`, segmentID); err != nil {
		return classifyWriteErr(err, "delete segment row")
	}
	if err := tx.Commit(); err != nil {
		return newErr(ErrUnavailable, "commit cascade delete", err)
	}
	return nil
}

// ListCrashedProcessingFrames returns frames stuck in processing, used by
// startup recovery.
func (c *Catalog) ListCrashedProcessingFrames() ([]int64, error) {
	rows, err := c.db.Query(
		`SELECT frame_id FROM frames WHERE processing_status = ?`,
		string(StatusProcessing),
	)
	if err != nil {
		return nil, newErr(ErrUnavailable, "list crashed frames", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, newErr(ErrUnavailable, "scan crashed frame", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SegmentsTouchingRange returns every segment whose span overlaps [from, to].
func (c *Catalog) SegmentsTouchingRange(from, to time.Time) ([]Segment, error) {
	rows, err := c.db.Query(`
SELECT segment_id, opened_at, closed_at, relative_path, width, height, frame_count
FROM segments
WHERE opened_at <= ? AND (closed_at IS NULL OR closed_at >= ?)`,
		to.UnixMilli(), from.UnixMilli(),
	)
	if err != nil {
		return nil, newErr(ErrUnavailable, "query segments in range", err)
	}
	defer rows.Close()

	var segments []Segment
	for rows.Next() {
		s, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		segments = append(segments, s)
	}
	return segments, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSegment(row scanner) (Segment, error) {
	var s Segment
	var openedAtMillis int64
	var closedAtMillis sql.NullInt64
	if err := row.Scan(&s.SegmentID, &openedAtMillis, &closedAtMillis, &s.RelativePath, &s.Width, &s.Height, &s.FrameCount); err != nil {
		return Segment{}, newErr(ErrUnavailable, "scan segment", err)
	}
	s.OpenedAt = time.UnixMilli(openedAtMillis)
	if closedAtMillis.Valid {
		t := time.UnixMilli(closedAtMillis.Int64)
		s.ClosedAt = &t
	}
	return s, nil
}

// SegmentByID looks up a single segment, returning (nil, nil) if absent.
func (c *Catalog) SegmentByID(segmentID int64) (*Segment, error) {
	var openedAtMillis int64
	var closedAtMillis sql.NullInt64
	s := Segment{SegmentID: segmentID}
	err := c.db.QueryRow(`
SELECT opened_at, closed_at, relative_path, width, height, frame_count
FROM segments WHERE segment_id = ?`, segmentID,
	).Scan(&openedAtMillis, &closedAtMillis, &s.RelativePath, &s.Width, &s.Height, &s.FrameCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, newErr(ErrUnavailable, "scan segment", err)
	}
	s.OpenedAt = time.UnixMilli(openedAtMillis)
	if closedAtMillis.Valid {
		t := time.UnixMilli(closedAtMillis.Int64)
		s.ClosedAt = &t
	}
	return &s, nil
}

// ListClosedSegmentsByAge returns every closed segment ordered oldest
// first by closed_at, the order both the age and size retention
// policies delete in.
func (c *Catalog) ListClosedSegmentsByAge() ([]Segment, error) {
	rows, err := c.db.Query(`
SELECT segment_id, opened_at, closed_at, relative_path, width, height, frame_count
FROM segments WHERE closed_at IS NOT NULL ORDER BY closed_at ASC`)
	if err != nil {
		return nil, newErr(ErrUnavailable, "list closed segments", err)
	}
	defer rows.Close()

	var segments []Segment
	for rows.Next() {
		s, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		segments = append(segments, s)
	}
	return segments, rows.Err()
}

// ListSegmentRelativePaths returns every segment's (segment_id,
// relative_path), used by the orphan sweep to find catalog rows whose
// backing file is gone.
func (c *Catalog) ListSegmentRelativePaths() (map[int64]string, error) {
	rows, err := c.db.Query(`SELECT segment_id, relative_path FROM segments`)
	if err != nil {
		return nil, newErr(ErrUnavailable, "list segment paths", err)
	}
	defer rows.Close()

	paths := make(map[int64]string)
	for rows.Next() {
		var id int64
		var path sql.NullString
		if err := rows.Scan(&id, &path); err != nil {
			return nil, newErr(ErrUnavailable, "scan segment path", err)
		}
		paths[id] = path.String
	}
	return paths, rows.Err()
}

// DeleteFramesCapturedSince deletes every frame (and its region/FTS/queue
// rows) with captured_at >= cutoff, the operator "quick delete" variant.
// Segment rows and files are left alone: a segment may still hold frames
// older than cutoff.
func (c *Catalog) DeleteFramesCapturedSince(cutoff time.Time) (int, error) {
	rows, err := c.db.Query(`SELECT frame_id FROM frames WHERE captured_at >= ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, newErr(ErrUnavailable, "list frames for quick delete", err)
	}
	var frameIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, newErr(ErrUnavailable, "scan frame for quick delete", err)
		}
		frameIDs = append(frameIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, newErr(ErrUnavailable, "iterate frames for quick delete", err)
	}

	tx, err := c.db.Begin()
	if err != nil {
		return 0, newErr(ErrUnavailable, "begin quick delete", err)
	}
	defer tx.Rollback()
	for _, id := range frameIDs {
		if err := deleteFrameTx(tx, id); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, newErr(ErrUnavailable, "commit quick delete", err)
	}
	return len(frameIDs), nil
}

// FrameByID looks up a single frame, returning (nil, nil) if absent.
func (c *Catalog) FrameByID(frameID int64) (*Frame, error) {
	row := c.db.QueryRow(`
SELECT frame_id, captured_at, segment_id, frame_index_in_segment,
       app_bundle_id, app_name, window_title, browser_url, display_id,
       processing_status, source_kind
FROM frames WHERE frame_id = ?`, frameID)

	var f Frame
	var capturedAtMillis int64
	var bundleID, appName, title, url, displayID sql.NullString
	var status, sourceKind string
	err := row.Scan(&f.FrameID, &capturedAtMillis, &f.SegmentID, &f.FrameIndexInSegment,
		&bundleID, &appName, &title, &url, &displayID, &status, &sourceKind)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, newErr(ErrUnavailable, "scan frame", err)
	}
	f.CapturedAt = time.UnixMilli(capturedAtMillis)
	f.Metadata = FrameMetadata{
		AppBundleID: bundleID.String,
		AppName:     appName.String,
		WindowTitle: title.String,
		BrowserURL:  url.String,
		DisplayID:   displayID.String,
	}
	f.ProcessingStatus = ProcessingStatus(status)
	f.SourceKind = SourceKind(sourceKind)
	return &f, nil
}

// WriteExtractedText writes the full-text row and its region batch as one
// atomic operation, deleting any pre-existing regions first so that
// re-processing a frame is idempotent.
func (c *Catalog) WriteExtractedText(et ExtractedText, regions []Region) error {
	tx, err := c.db.Begin()
	if err != nil {
		return newErr(ErrUnavailable, "begin write extracted text", err)
	}
	defer tx.Rollback()

	var segWidth, segHeight int
	if len(regions) > 0 {
		if err := tx.QueryRow(`SELECT width, height FROM segments WHERE segment_id = ?`, et.SegmentID).Scan(&segWidth, &segHeight); err != nil {
			if err == sql.ErrNoRows {
				return newErr(ErrNotFound, "segment for extracted text not found", nil)
			}
			return newErr(ErrUnavailable, "read segment dimensions", err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM regions WHERE frame_id = ?`, et.FrameID); err != nil {
		return classifyWriteErr(err, "clear old regions")
	}
	if _, err := tx.Exec(`DELETE FROM frames_fts WHERE frame_id = ?`, et.FrameID); err != nil {
		return classifyWriteErr(err, "clear old fts row")
	}
	if _, err := tx.Exec(
		`INSERT INTO frames_fts (full_text, chrome_text, frame_id, segment_id) VALUES (?, ?, ?, ?)`,
		et.FullText, et.ChromeText, et.FrameID, et.SegmentID,
	); err != nil {
		return classifyWriteErr(err, "insert fts row")
	}

	for _, r := range regions {
		textLen := len(et.FullText)
		if r.ChromeBit {
			textLen = len(et.ChromeText)
		}
		if err := validateRegionBounds(r, textLen, segWidth, segHeight); err != nil {
			return err
		}
		if _, err := tx.Exec(`
INSERT INTO regions (frame_id, text_offset, text_length, bounds_x, bounds_y, bounds_w, bounds_h, chrome_bit, window_index)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.FrameID, r.TextOffset, r.TextLength, r.BoundsX, r.BoundsY, r.BoundsW, r.BoundsH, boolToInt(r.ChromeBit), r.WindowIndex,
		); err != nil {
			return classifyWriteErr(err, "insert region")
		}
	}

	if err := tx.Commit(); err != nil {
		return newErr(ErrUnavailable, "commit write extracted text", err)
	}
	return nil
}

// validateRegionBounds enforces that a region's text span falls inside
// the text it annotates (full_text or chrome_text, per ChromeBit) and
// that its pixel bounds fall inside the frame's segment dimensions.
func validateRegionBounds(r Region, textLen, segWidth, segHeight int) error {
	if r.TextOffset < 0 || r.TextLength < 0 {
		return newErr(ErrInvariantViolation, "region offsets must be non-negative", nil)
	}
	if r.TextOffset+r.TextLength > textLen {
		return newErr(ErrInvariantViolation, "region text span exceeds extracted text length", nil)
	}
	if r.BoundsX < 0 || r.BoundsY < 0 || r.BoundsW < 0 || r.BoundsH < 0 {
		return newErr(ErrInvariantViolation, "region bounds must be non-negative", nil)
	}
	if r.BoundsX+r.BoundsW > segWidth || r.BoundsY+r.BoundsH > segHeight {
		return newErr(ErrInvariantViolation, "region bounds exceed frame dimensions", nil)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireAffected(res sql.Result, msg string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return newErr(ErrUnavailable, "read rows affected", err)
	}
	if n == 0 {
		return newErr(ErrNotFound, msg, nil)
	}
	return nil
}

// classifyWriteErr maps a sqlite driver error to the catalog's own error
// taxonomy: uniqueness/foreign-key failures are invariant violations,
// everything else is treated as a transient connection problem.
func classifyWriteErr(err error, op string) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, sub := range []string{"UNIQUE constraint", "CHECK constraint", "FOREIGN KEY constraint"} {
		if strings.Contains(msg, sub) {
			return newErr(ErrInvariantViolation, op, err)
		}
	}
	return newErr(ErrUnavailable, op, err)
}
