// Package ytdlp downloads videos with the yt-dlp command line tool.
package ytdlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"vid2doc/proc"
	"vid2doc/vid2doc"
)

const (
	DefaultFormat = "best"
	unknownTitle  = "Unknown Title"
	defaultExt    = "mp4"
)

type (
	info struct {
		ID         string   `json:"id"`
		Title      string   `json:"title"`
		Ext        string   `json:"ext"`
		Duration   *float64 `json:"duration"`
		WebpageURL string   `json:"webpage_url"`
	}
)

// Fetcher resolves a video URL with `yt-dlp -J` and downloads it into WorkDir.
type Fetcher struct {
	// Bin is the executable, "yt-dlp" when empty.
	Bin     string
	Format  string
	WorkDir string
	Log     zerolog.Logger
}

var _ vid2doc.Fetcher = Fetcher{}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func (f Fetcher) Fetch(ctx context.Context, rawURL string) (vid2doc.Video, error) {
	fail := func(err error) (vid2doc.Video, error) {
		return vid2doc.Video{}, &vid2doc.FetchError{URL: rawURL, Err: err}
	}

	if err := ValidateURL(rawURL); err != nil {
		return fail(err)
	}

	out, err := proc.Output(ctx, f.Log, f.bin(), "-J", "--no-playlist", "--no-warnings", "-f", f.format(), rawURL)
	if err != nil {
		return fail(fmt.Errorf("reading video info: %w", err))
	}
	inf, err := parseInfo(out)
	if err != nil {
		return fail(err)
	}

	if err := os.MkdirAll(f.WorkDir, 0o755); err != nil {
		return fail(fmt.Errorf("creating work dir: %w", err))
	}
	path := filepath.Join(f.WorkDir, fileName(inf))

	err = proc.Stream(ctx, f.Log, f.bin(),
		"--no-playlist",
		"--quiet",
		"--no-progress",
		"--no-warnings",
		"-f", f.format(),
		"-o", strings.ReplaceAll(path, "%", "%%"),
		rawURL,
	)
	if err != nil {
		return fail(fmt.Errorf("downloading: %w", err))
	}
	if _, err := os.Stat(path); err != nil {
		return fail(fmt.Errorf("downloaded file missing: %w", err))
	}

	f.Log.Info().Str("id", inf.ID).Str("path", path).Msg("downloaded")

	return vid2doc.Video{
		ID:         inf.ID,
		URL:        rawURL,
		Title:      inf.Title,
		Path:       path,
		Ext:        inf.Ext,
		DurationMs: durationMs(inf.Duration),
	}, nil
}

func (f Fetcher) bin() string {
	if f.Bin == "" {
		return "yt-dlp"
	}
	return f.Bin
}

func (f Fetcher) format() string {
	if f.Format == "" {
		return DefaultFormat
	}
	return f.Format
}

// ValidateURL rejects anything that is not an absolute http(s) URL.
func ValidateURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return errors.New("empty url")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parsing url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("url has no host")
	}
	return nil
}

func parseInfo(data []byte) (info, error) {
	var inf info
	if err := json.Unmarshal(data, &inf); err != nil {
		return info{}, fmt.Errorf("decoding yt-dlp info: %w", err)
	}
	if strings.TrimSpace(inf.Title) == "" {
		inf.Title = unknownTitle
	}
	if inf.Ext == "" {
		inf.Ext = defaultExt
	}
	return inf, nil
}

func fileName(inf info) string {
	name := unsafeName.ReplaceAllString(inf.ID, "_")
	if name == "" {
		name = "video"
	}
	return name + "." + unsafeName.ReplaceAllString(inf.Ext, "")
}

func durationMs(seconds *float64) uint64 {
	if seconds == nil || *seconds <= 0 {
		return 0
	}
	return uint64(math.Round(*seconds * 1000))
}
