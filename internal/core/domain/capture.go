package domain

import "time"

type CaptureSource string

const (
	SourceCamera CaptureSource = "camera"
	SourcePicker CaptureSource = "picker"
	SourceInbox  CaptureSource = "inbox"
)

type CaptureState string

const (
	CaptureCaptured  CaptureState = "captured"
	CaptureQueued    CaptureState = "queued"
	CaptureDiscarded CaptureState = "discarded"
	CaptureFiled     CaptureState = "filed"
)

// Capture is one camera photo or picked file between acquisition and
// either discard or filing. TempKey addresses the in-flight copy inside
// the temp storage.
type Capture struct {
	ID           string             `json:"id"`
	Source       CaptureSource      `json:"source"`
	State        CaptureState       `json:"state"`
	TempKey      string             `json:"temp_key"`
	OriginalName string             `json:"original_name,omitempty"`
	MimeType     string             `json:"mime_type"`
	Text         string             `json:"text,omitempty"`
	Classified   ClassifiedDocument `json:"classified"`
	Recognized   bool               `json:"recognized"`
	CapturedAt   time.Time          `json:"captured_at"`
}

// CaptureMillis is the capture timestamp used by the filing convention.
func (c *Capture) CaptureMillis() int64 {
	return c.CapturedAt.UnixMilli()
}

// Session is the capture flow as seen by a client: at most one capture
// awaiting Discard/Continue plus the batch queued for Done.
type Session struct {
	Pending *Capture  `json:"pending,omitempty"`
	Queued  []Capture `json:"queued"`
}
