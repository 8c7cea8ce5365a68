package vid2doc

import "time"

type (
	Video struct {
		ID         string `json:"id"`
		URL        string `json:"url"`
		Title      string `json:"title"`
		Path       string `json:"path"`
		Ext        string `json:"ext"`
		DurationMs uint64 `json:"duration_ms"`
		Blake3Hash string `json:"blake3_hash"`
	}

	Segment struct {
		ID      uint64 `json:"id"`
		StartMs uint64 `json:"start_ms"`
		EndMs   uint64 `json:"end_ms"`
		Text    string `json:"text"`
	}

	// Frame is a still image written to Path, decoded at TimestampMs.
	Frame struct {
		TimestampMs uint64 `json:"timestamp_ms"`
		Path        string `json:"path"`
	}

	Section struct {
		Index    int       `json:"index"`
		StartMs  uint64    `json:"start_ms"`
		EndMs    uint64    `json:"end_ms"`
		Text     string    `json:"text"`
		Segments []Segment `json:"segments"`
		Frames   []Frame   `json:"frames"`
	}

	Run struct {
		ID         string     `json:"id"`
		VideoID    string     `json:"video_id"`
		URL        string     `json:"url"`
		StartedAt  time.Time  `json:"started_at"`
		FinishedAt *time.Time `json:"finished_at"`
		Status     RunStatus  `json:"status"`
		Error      string     `json:"error,omitempty"`
		ReportPath string     `json:"report_path,omitempty"`
	}

	RunStatus string
)

const (
	RunStatusRunning RunStatus = "running"
	RunStatusDone    RunStatus = "done"
	RunStatusFailed  RunStatus = "failed"
)

// Seconds is the whole-second offset used in timestamp links.
func (s Section) Seconds() uint64 {
	return s.StartMs / 1000
}

// VideoRecord is the archived row for a downloaded video, keyed by content hash.
type VideoRecord struct {
	ID            string `json:"id"`
	Blake3Hash    string `json:"blake3_hash"`
	IsTranscribed bool   `json:"is_transcribed"`
}
