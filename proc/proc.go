// Package proc runs the external tools the pipeline delegates to and routes
// their output into the structured log.
package proc

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// tailLines is how much stderr is kept for error messages.
	tailLines = 8
	// maxLine bounds a line held back while waiting for its newline.
	maxLine = 1024 * 1024
)

// waitDelay bounds how long a cancelled command may hold its output pipes
// open through children it spawned (yt-dlp running ffmpeg for merges).
var waitDelay = 5 * time.Second

// Stream runs name with args, logging every stdout and stderr line at debug level.
// A failing command's error carries the last stderr lines.
func Stream(ctx context.Context, log zerolog.Logger, name string, args ...string) error {
	t := &tail{max: tailLines}
	stdout := &lineWriter{fn: func(line string) {
		log.Debug().Str("stream", "stdout").Msg(line)
	}}
	stderr := &lineWriter{fn: func(line string) {
		log.Debug().Str("stream", "stderr").Msg(line)
		t.add(line)
	}}

	cmd := command(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	log.Debug().Str("cmd", name).Strs("args", args).Msg("starting")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", name, err)
	}
	err := cmd.Wait()
	stdout.flush()
	stderr.flush()
	if err != nil {
		return exitError(name, err, t.String())
	}
	return nil
}

// Output runs name with args and returns its stdout. Stderr is logged at debug level.
func Output(ctx context.Context, log zerolog.Logger, name string, args ...string) ([]byte, error) {
	t := &tail{max: tailLines}
	var stdout bytes.Buffer
	stderr := &lineWriter{fn: func(line string) {
		log.Debug().Str("stream", "stderr").Msg(line)
		t.add(line)
	}}

	cmd := command(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	log.Debug().Str("cmd", name).Strs("args", args).Msg("starting")
	err := cmd.Run()
	stderr.flush()
	if err != nil {
		return nil, exitError(name, err, t.String())
	}
	return stdout.Bytes(), nil
}

func command(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = waitDelay
	return cmd
}

func exitError(name string, err error, stderrTail string) error {
	if stderrTail == "" {
		return fmt.Errorf("running %s: %w", name, err)
	}
	return fmt.Errorf("running %s: %w: %s", name, err, stderrTail)
}

// lineWriter hands every complete, non-blank line written to it to fn.
type lineWriter struct {
	buf []byte
	fn  func(string)
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	if len(w.buf) > maxLine {
		w.flush()
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	if len(w.buf) > 0 {
		w.emit(w.buf)
	}
	w.buf = nil
}

func (w *lineWriter) emit(line []byte) {
	if s := strings.TrimSpace(string(line)); s != "" {
		w.fn(s)
	}
}

type tail struct {
	mu    sync.Mutex
	max   int
	lines []string
}

func (t *tail) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *tail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, " | ")
}
