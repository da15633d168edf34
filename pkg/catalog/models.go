package catalog

import "time"

// ProcessingStatus is the lifecycle state of a Frame's OCR work.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// SourceKind distinguishes frames captured live from frames imported from
// elsewhere (e.g. a restored backup).
type SourceKind string

const (
	SourceNative   SourceKind = "native"
	SourceImported SourceKind = "imported"
)

// FrameMetadata is the typed record parsed at the OS boundary; no
// heterogeneous map is ever allowed to flow past ScreenSource.
type FrameMetadata struct {
	AppBundleID string
	AppName     string
	WindowTitle string
	BrowserURL  string
	DisplayID   string
}

// Frame is one captured screen image at one instant.
type Frame struct {
	FrameID             int64
	CapturedAt          time.Time
	SegmentID           int64
	FrameIndexInSegment int
	Metadata            FrameMetadata
	ProcessingStatus    ProcessingStatus
	SourceKind          SourceKind
}

// Segment is a time-bucketed compressed video file holding consecutive
// frames of one resolution on one display.
type Segment struct {
	SegmentID    int64
	OpenedAt     time.Time
	ClosedAt     *time.Time
	RelativePath string
	Width        int
	Height       int
	FrameCount   int
}

// IsOpen reports whether the segment is still the active, unclosed one.
func (s Segment) IsOpen() bool { return s.ClosedAt == nil }

// QueueRow is a pending unit of OCR work.
type QueueRow struct {
	QueueID    int64
	FrameID    int64
	EnqueuedAt time.Time
	Priority   int
	RetryCount int
	LastError  *string
}

// ExtractedText is the full-text index row for one completed frame.
type ExtractedText struct {
	FrameID    int64
	SegmentID  int64
	FullText   string
	ChromeText string
}

// Region is one spatial OCR region for a frame.
type Region struct {
	FrameID     int64
	TextOffset  int
	TextLength  int
	BoundsX     int
	BoundsY     int
	BoundsW     int
	BoundsH     int
	ChromeBit   bool
	WindowIndex *int
}
