// Package ffmpeg samples still frames and extracts audio with ffmpeg and ffprobe.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"vid2doc/proc"
	"vid2doc/vid2doc"
)

const (
	DefaultInterval = 30 * time.Second

	// endBackoffMs is how far before the end the final frame is decoded;
	// nothing decodes at exactly the duration.
	endBackoffMs = 100
)

// Sampler writes one JPEG per interval into OutDir.
type Sampler struct {
	// FFmpegBin and FFprobeBin default to "ffmpeg" and "ffprobe".
	FFmpegBin  string
	FFprobeBin string
	OutDir     string
	Log        zerolog.Logger
}

var _ vid2doc.FrameSampler = Sampler{}

func (s Sampler) Sample(ctx context.Context, filePath string, interval time.Duration, maxFrames int) ([]vid2doc.Frame, error) {
	fail := func(err error) ([]vid2doc.Frame, error) {
		return nil, &vid2doc.FrameExtractionError{Path: filePath, Err: err}
	}

	if interval < time.Millisecond {
		return fail(fmt.Errorf("sampling interval %s must be at least 1ms", interval))
	}
	if _, err := os.Stat(filePath); err != nil {
		return fail(err)
	}

	durationMs, err := s.ProbeDuration(ctx, filePath)
	if err != nil {
		return fail(err)
	}
	if err := os.MkdirAll(s.OutDir, 0o755); err != nil {
		return fail(fmt.Errorf("creating frames dir: %w", err))
	}

	stamps := Timestamps(durationMs, uint64(interval.Milliseconds()), maxFrames)
	frames := make([]vid2doc.Frame, 0, len(stamps))
	var prev uint64
	for _, ts := range stamps {
		seekMs := seekPoint(ts, prev, durationMs)
		prev = ts

		path := filepath.Join(s.OutDir, FrameFileName(ts))
		err := proc.Stream(ctx, s.Log, s.ffmpeg(),
			"-hide_banner",
			"-loglevel", "error",
			"-ss", formatSeconds(seekMs),
			"-i", filePath,
			"-frames:v", "1",
			"-q:v", "2",
			"-y",
			path,
		)
		if err != nil {
			return fail(fmt.Errorf("decoding frame at %s: %w", formatSeconds(ts), err))
		}
		if _, err := os.Stat(path); err != nil {
			return fail(fmt.Errorf("no frame decoded at %s: %w", formatSeconds(ts), err))
		}
		frames = append(frames, vid2doc.Frame{TimestampMs: ts, Path: path})
	}

	s.Log.Debug().Int("frames", len(frames)).Uint64("durationMs", durationMs).Msg("sampled")
	return frames, nil
}

// Timestamps lists the sampling points for a video of durationMs: every
// multiple of intervalMs below the duration, then the duration itself. A
// positive maxFrames keeps only that many leading points.
func Timestamps(durationMs, intervalMs uint64, maxFrames int) []uint64 {
	if intervalMs == 0 {
		return nil
	}

	var stamps []uint64
	for t := uint64(0); t < durationMs; t += intervalMs {
		stamps = append(stamps, t)
	}
	stamps = append(stamps, durationMs)

	if maxFrames > 0 && len(stamps) > maxFrames {
		stamps = stamps[:maxFrames]
	}
	return stamps
}

// seekPoint backs the final point off the end of the stream, where ffmpeg
// decodes no picture, but never behind the previous point.
func seekPoint(ts, prev, durationMs uint64) uint64 {
	if ts != durationMs || ts < endBackoffMs {
		return ts
	}
	return max(ts-endBackoffMs, prev)
}

// FrameFileName is zero padded so frame files sort by time.
func FrameFileName(timestampMs uint64) string {
	return fmt.Sprintf("frame_%09d.jpg", timestampMs)
}

// ProbeDuration returns the container duration in milliseconds.
func (s Sampler) ProbeDuration(ctx context.Context, filePath string) (uint64, error) {
	out, err := proc.Output(ctx, s.Log, s.ffprobe(),
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		filePath,
	)
	if err != nil {
		return 0, fmt.Errorf("probing duration: %w", err)
	}
	return parseDuration(string(out))
}

// ExtractAudio writes lengthMs of the audio track of in, starting at fromMs,
// as mono 16 kHz FLAC to out. A zero lengthMs runs to the end.
func (s Sampler) ExtractAudio(ctx context.Context, in, out string, fromMs, lengthMs uint64) error {
	if _, err := os.Stat(in); err != nil {
		return err
	}
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-ss", formatSeconds(fromMs),
	}
	if lengthMs > 0 {
		args = append(args, "-t", formatSeconds(lengthMs))
	}
	args = append(args,
		"-i", in,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "flac",
		"-y",
		out,
	)
	return proc.Stream(ctx, s.Log, s.ffmpeg(), args...)
}

func (s Sampler) ffmpeg() string {
	if s.FFmpegBin == "" {
		return "ffmpeg"
	}
	return s.FFmpegBin
}

func (s Sampler) ffprobe() string {
	if s.FFprobeBin == "" {
		return "ffprobe"
	}
	return s.FFprobeBin
}

func parseDuration(out string) (uint64, error) {
	out = strings.TrimSpace(out)
	if out == "" || out == "N/A" {
		return 0, errors.New("ffprobe reported no duration")
	}
	seconds, err := strconv.ParseFloat(out, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing duration %q: %w", out, err)
	}
	if seconds < 0 {
		return 0, fmt.Errorf("negative duration %q", out)
	}
	return uint64(seconds*1000 + 0.5), nil
}

func formatSeconds(ms uint64) string {
	return fmt.Sprintf("%d.%03d", ms/1000, ms%1000)
}
