package vid2doc

import (
	"context"
	"sort"
	"strings"
	"time"
)

type (
	Fetcher interface {
		Fetch(ctx context.Context, url string) (Video, error)
	}

	Transcriber interface {
		Transcribe(ctx context.Context, filePath string) (TranscribeResult, error)
	}

	FrameSampler interface {
		Sample(ctx context.Context, filePath string, interval time.Duration, maxFrames int) ([]Frame, error)
	}

	Composer interface {
		Compose(doc Document) ([]byte, error)
	}

	TranscribeResult struct {
		Language string
		Segments []Segment
	}

	Document struct {
		Title    string
		URL      string
		Sections []Section
	}
)

// NormalizeSegments orders segments by start time and drops the ones a report
// cannot use: empty text or a window that does not move forward. IDs are
// reassigned in output order.
func NormalizeSegments(segs []Segment) []Segment {
	res := make([]Segment, 0, len(segs))
	for _, s := range segs {
		s.Text = strings.TrimSpace(s.Text)
		if s.Text == "" || s.EndMs <= s.StartMs {
			continue
		}
		res = append(res, s)
	}

	sort.SliceStable(res, func(i, j int) bool {
		return res[i].StartMs < res[j].StartMs
	})
	for n := range res {
		res[n].ID = uint64(n)
	}
	return res
}
