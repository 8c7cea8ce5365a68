package vid2doc

import (
	"strings"
	"time"
)

// Merge groups transcript segments into sections and attaches frames to them.
//
// With a zero sectionDuration every segment becomes its own section, otherwise
// consecutive segments are collected until the group spans sectionDuration.
// A section gets the frames whose timestamp lies in its [start, end) window.
// Frames at or past the end of the last section go to the last section;
// frames in a silence between sections are not shown. A section left without
// frames borrows the nearest preceding frame, or the nearest following one
// when nothing precedes it.
//
// segs must satisfy NormalizeSegments' ordering.
func Merge(segs []Segment, frames []Frame, sectionDuration time.Duration) []Section {
	groups := groupSegments(segs, uint64(sectionDuration.Milliseconds()))
	if len(groups) == 0 {
		return silentSections(frames)
	}

	sections := make([]Section, len(groups))
	for n, g := range groups {
		sections[n] = Section{
			Index:    n + 1,
			StartMs:  g[0].StartMs,
			EndMs:    groupEnd(g),
			Text:     joinText(g),
			Segments: g,
		}
	}

	last := &sections[len(sections)-1]
	for _, f := range frames {
		placed := false
		for n := range sections {
			if sections[n].contains(f.TimestampMs) {
				sections[n].Frames = append(sections[n].Frames, f)
				placed = true
			}
		}
		if !placed && f.TimestampMs >= last.EndMs {
			last.Frames = append(last.Frames, f)
		}
	}

	for n := range sections {
		if len(sections[n].Frames) > 0 {
			continue
		}
		if f, ok := nearestFrame(frames, sections[n].StartMs); ok {
			sections[n].Frames = []Frame{f}
		}
	}

	return sections
}

func (s Section) contains(ms uint64) bool {
	return ms >= s.StartMs && ms < s.EndMs
}

func groupEnd(g []Segment) uint64 {
	var end uint64
	for _, s := range g {
		end = max(end, s.EndMs)
	}
	return end
}

func groupSegments(segs []Segment, sectionMs uint64) [][]Segment {
	var groups [][]Segment
	var current []Segment
	for _, s := range segs {
		current = append(current, s)
		if sectionMs == 0 || groupEnd(current)-current[0].StartMs >= sectionMs {
			groups = append(groups, current)
			current = nil
		}
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

// silentSections keeps frames visible when nothing was said.
func silentSections(frames []Frame) []Section {
	if len(frames) == 0 {
		return []Section{}
	}
	return []Section{{
		Index:   1,
		StartMs: frames[0].TimestampMs,
		EndMs:   frames[len(frames)-1].TimestampMs,
		Frames:  append([]Frame(nil), frames...),
	}}
}

func nearestFrame(frames []Frame, at uint64) (Frame, bool) {
	var before, after *Frame
	for i := range frames {
		f := &frames[i]
		if f.TimestampMs <= at {
			if before == nil || f.TimestampMs > before.TimestampMs {
				before = f
			}
			continue
		}
		if after == nil || f.TimestampMs < after.TimestampMs {
			after = f
		}
	}
	switch {
	case before != nil:
		return *before, true
	case after != nil:
		return *after, true
	}
	return Frame{}, false
}

func joinText(segs []Segment) string {
	parts := make([]string, 0, len(segs))
	for _, s := range segs {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
