// Package config loads vid2doc settings from the environment.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/joho/godotenv"
)

const (
	TranscriberWhisper  = "whisper"
	TranscriberWhisperX = "whisperx"
	TranscriberGoogle   = "google"
)

type Config struct {
	OutputDir       string
	WorkDir         string
	FrameInterval   time.Duration
	MaxFrames       int
	SectionDuration time.Duration
	Transcriber     string
	DBPath          string
	MetricsFile     string
	EmbedImages     bool
	Markdown        bool
	KeepVideo       bool
	ReuseTranscript bool

	YtdlpBin        string
	YtdlpFormat     string
	WhisperBin      string
	WhisperModel    string
	WhisperLanguage string
	FFmpegBin       string
	FFprobeBin      string
	GoogleLanguage  string
	GoogleChunk     time.Duration

	LogLevel  string
	LogFormat string
}

// Load reads .env when present, then the process environment. Unset
// variables take their defaults.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		OutputDir:       env.Str("VID2DOC_OUTPUT_DIR", "output"),
		WorkDir:         env.Str("VID2DOC_WORK_DIR", ""),
		FrameInterval:   env.Duration("VID2DOC_FRAME_INTERVAL", 30*time.Second),
		MaxFrames:       env.Int("VID2DOC_MAX_FRAMES", 0),
		SectionDuration: env.Duration("VID2DOC_SECTION_DURATION", 0),
		Transcriber:     strings.ToLower(env.Str("VID2DOC_TRANSCRIBER", TranscriberWhisper)),
		DBPath:          env.Str("VID2DOC_DB", "output/vid2doc.db"),
		MetricsFile:     env.Str("VID2DOC_METRICS_FILE", ""),
		EmbedImages:     boolean("VID2DOC_EMBED_IMAGES"),
		Markdown:        boolean("VID2DOC_MARKDOWN"),
		KeepVideo:       boolean("VID2DOC_KEEP_VIDEO"),
		ReuseTranscript: boolean("VID2DOC_REUSE_TRANSCRIPT"),

		YtdlpBin:        env.Str("YTDLP_BIN", "yt-dlp"),
		YtdlpFormat:     env.Str("YTDLP_FORMAT", "best"),
		WhisperBin:      env.Str("WHISPER_BIN", "whisper"),
		WhisperModel:    env.Str("WHISPER_MODEL", "base"),
		WhisperLanguage: env.Str("WHISPER_LANGUAGE", ""),
		FFmpegBin:       env.Str("FFMPEG_BIN", "ffmpeg"),
		FFprobeBin:      env.Str("FFPROBE_BIN", "ffprobe"),
		GoogleLanguage:  env.Str("GOOGLE_STT_LANGUAGE", "en-US"),
		GoogleChunk:     env.Duration("GOOGLE_STT_CHUNK", 5*time.Minute),

		LogLevel:  env.Str("LOG_LEVEL", "info"),
		LogFormat: env.Str("LOG_FORMAT", "console"),
	}
}

func boolean(key string) bool {
	v, err := strconv.ParseBool(env.Str(key, "false"))
	return err == nil && v
}

// Validate reports settings no run can start with.
func (c Config) Validate() error {
	var errs []error
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output dir is empty"))
	}
	if c.FrameInterval < time.Millisecond {
		errs = append(errs, fmt.Errorf("frame interval %s is below 1ms", c.FrameInterval))
	}
	if c.MaxFrames < 0 {
		errs = append(errs, fmt.Errorf("max frames %d is negative", c.MaxFrames))
	}
	if c.SectionDuration < 0 {
		errs = append(errs, fmt.Errorf("section duration %s is negative", c.SectionDuration))
	}
	if c.Transcriber == TranscriberGoogle && c.GoogleChunk < time.Second {
		errs = append(errs, fmt.Errorf("google chunk %s is below 1s", c.GoogleChunk))
	}
	switch c.Transcriber {
	case TranscriberWhisper, TranscriberWhisperX, TranscriberGoogle:
	default:
		errs = append(errs, fmt.Errorf("unknown transcriber %q", c.Transcriber))
	}
	return errors.Join(errs...)
}
