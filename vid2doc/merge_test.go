package vid2doc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frames(ms ...uint64) []Frame {
	res := make([]Frame, len(ms))
	for n, m := range ms {
		res[n] = Frame{TimestampMs: m, Path: "frames/" + (time.Duration(m) * time.Millisecond).String() + ".jpg"}
	}
	return res
}

func timestamps(fs []Frame) []uint64 {
	res := make([]uint64, len(fs))
	for n, f := range fs {
		res[n] = f.TimestampMs
	}
	return res
}

func TestMerge_OneSectionPerSegment(t *testing.T) {
	segs := []Segment{
		{ID: 0, StartMs: 0, EndMs: 10000, Text: "hello"},
		{ID: 1, StartMs: 10000, EndMs: 30000, Text: "world"},
	}

	sections := Merge(segs, frames(0, 10000, 20000, 30000), 0)

	require.Len(t, sections, 2)
	assert.Equal(t, 1, sections[0].Index)
	assert.Equal(t, "hello", sections[0].Text)
	assert.Equal(t, []uint64{0}, timestamps(sections[0].Frames))
	assert.Equal(t, 2, sections[1].Index)
	assert.Equal(t, "world", sections[1].Text)
	assert.Equal(t, []uint64{10000, 20000, 30000}, timestamps(sections[1].Frames))
	assert.Equal(t, uint64(10), sections[1].Seconds())
}

func TestMerge_FramePlacement(t *testing.T) {
	segs := []Segment{
		{StartMs: 5000, EndMs: 10000, Text: "a"},
		{StartMs: 40000, EndMs: 50000, Text: "b"},
	}

	sections := Merge(segs, frames(0, 7000, 20000, 45000, 60000), 0)

	require.Len(t, sections, 2)
	assert.Equal(t, []uint64{7000}, timestamps(sections[0].Frames))
	// 20000 lies between the windows, 60000 past the end of the last one
	assert.Equal(t, []uint64{45000, 60000}, timestamps(sections[1].Frames))
}

func TestMerge_EmptyWindowBorrowsPrecedingFrame(t *testing.T) {
	segs := []Segment{
		{StartMs: 5000, EndMs: 10000, Text: "a"},
		{StartMs: 40000, EndMs: 50000, Text: "b"},
	}

	sections := Merge(segs, frames(0, 20000), 0)

	require.Len(t, sections, 2)
	assert.Equal(t, []uint64{0}, timestamps(sections[0].Frames))
	assert.Equal(t, []uint64{20000}, timestamps(sections[1].Frames))
}

func TestMerge_FramesStayInsideWindows(t *testing.T) {
	segs := []Segment{
		{StartMs: 0, EndMs: 3000, Text: "a"},
		{StartMs: 3000, EndMs: 7000, Text: "b"},
		{StartMs: 12000, EndMs: 19000, Text: "c"},
	}

	sections := Merge(segs, frames(0, 5000, 10000, 15000, 20000), 0)

	require.Len(t, sections, 3)
	assert.Equal(t, []uint64{0}, timestamps(sections[0].Frames))
	assert.Equal(t, []uint64{5000}, timestamps(sections[1].Frames))
	assert.Equal(t, []uint64{15000, 20000}, timestamps(sections[2].Frames))
	for _, s := range sections[:2] {
		for _, f := range s.Frames {
			assert.True(t, f.TimestampMs >= s.StartMs && f.TimestampMs < s.EndMs, "frame %d outside section %d", f.TimestampMs, s.Index)
		}
	}
}

func TestMerge_BorrowsNearestFrame(t *testing.T) {
	segs := []Segment{
		{StartMs: 0, EndMs: 2000, Text: "a"},
		{StartMs: 2000, EndMs: 4000, Text: "b"},
		{StartMs: 4000, EndMs: 9000, Text: "c"},
	}

	sections := Merge(segs, frames(0, 5000), 0)

	require.Len(t, sections, 3)
	assert.Equal(t, []uint64{0}, timestamps(sections[0].Frames))
	assert.Equal(t, []uint64{0}, timestamps(sections[1].Frames))
	assert.Equal(t, []uint64{5000}, timestamps(sections[2].Frames))
}

func TestMerge_BorrowsFollowingFrame(t *testing.T) {
	segs := []Segment{
		{StartMs: 5000, EndMs: 6000, Text: "a"},
		{StartMs: 6000, EndMs: 9000, Text: "b"},
	}

	sections := Merge(segs, frames(7000), 0)

	require.Len(t, sections, 2)
	assert.Equal(t, []uint64{7000}, timestamps(sections[0].Frames))
	assert.Equal(t, []uint64{7000}, timestamps(sections[1].Frames))
}

func TestMerge_NoFrames(t *testing.T) {
	sections := Merge([]Segment{{StartMs: 0, EndMs: 1000, Text: "a"}}, nil, 0)

	require.Len(t, sections, 1)
	assert.Empty(t, sections[0].Frames)
}

func TestMerge_Silent(t *testing.T) {
	sections := Merge(nil, frames(0, 30000, 45000), 0)

	require.Len(t, sections, 1)
	assert.Equal(t, "", sections[0].Text)
	assert.Equal(t, uint64(0), sections[0].StartMs)
	assert.Equal(t, uint64(45000), sections[0].EndMs)
	assert.Len(t, sections[0].Frames, 3)

	assert.Empty(t, Merge(nil, nil, 0))
}

func TestMerge_SectionDuration(t *testing.T) {
	segs := []Segment{
		{StartMs: 0, EndMs: 20000, Text: "one"},
		{StartMs: 20000, EndMs: 45000, Text: " two "},
		{StartMs: 45000, EndMs: 70000, Text: "three"},
		{StartMs: 70000, EndMs: 80000, Text: "four"},
	}

	sections := Merge(segs, frames(0, 30000, 60000), time.Minute)

	require.Len(t, sections, 2)
	assert.Equal(t, "one two three", sections[0].Text)
	assert.Equal(t, uint64(0), sections[0].StartMs)
	assert.Equal(t, uint64(70000), sections[0].EndMs)
	assert.Len(t, sections[0].Segments, 3)
	assert.Equal(t, []uint64{0, 30000, 60000}, timestamps(sections[0].Frames))
	assert.Equal(t, "four", sections[1].Text)
	assert.Equal(t, []uint64{60000}, timestamps(sections[1].Frames))
}

func TestNormalizeSegments(t *testing.T) {
	segs := []Segment{
		{ID: 7, StartMs: 5000, EndMs: 6000, Text: " later "},
		{ID: 3, StartMs: 1000, EndMs: 1000, Text: "zero length"},
		{ID: 4, StartMs: 2000, EndMs: 3000, Text: "   "},
		{ID: 9, StartMs: 0, EndMs: 1500, Text: "first"},
		{ID: 1, StartMs: 5000, EndMs: 5500, Text: "same start"},
	}

	got := NormalizeSegments(segs)

	assert.Equal(t, []Segment{
		{ID: 0, StartMs: 0, EndMs: 1500, Text: "first"},
		{ID: 1, StartMs: 5000, EndMs: 6000, Text: "later"},
		{ID: 2, StartMs: 5000, EndMs: 5500, Text: "same start"},
	}, got)
	assert.Empty(t, NormalizeSegments(nil))
}
