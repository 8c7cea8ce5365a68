package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{
		"VID2DOC_OUTPUT_DIR", "VID2DOC_FRAME_INTERVAL", "VID2DOC_MAX_FRAMES",
		"VID2DOC_TRANSCRIBER", "VID2DOC_DB", "VID2DOC_MARKDOWN", "WHISPER_MODEL",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	c := Load()

	assert.Equal(t, "output", c.OutputDir)
	assert.Equal(t, 30*time.Second, c.FrameInterval)
	assert.Zero(t, c.MaxFrames)
	assert.Zero(t, c.SectionDuration)
	assert.Equal(t, TranscriberWhisper, c.Transcriber)
	assert.Equal(t, "output/vid2doc.db", c.DBPath)
	assert.False(t, c.Markdown)
	assert.Equal(t, "base", c.WhisperModel)
	assert.Equal(t, "best", c.YtdlpFormat)
	assert.Equal(t, 5*time.Minute, c.GoogleChunk)
	assert.NoError(t, c.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("VID2DOC_OUTPUT_DIR", "/tmp/docs")
	t.Setenv("VID2DOC_FRAME_INTERVAL", "10s")
	t.Setenv("VID2DOC_MAX_FRAMES", "12")
	t.Setenv("VID2DOC_SECTION_DURATION", "1m")
	t.Setenv("VID2DOC_TRANSCRIBER", "Google")
	t.Setenv("VID2DOC_MARKDOWN", "true")
	t.Setenv("VID2DOC_KEEP_VIDEO", "1")
	t.Setenv("VID2DOC_EMBED_IMAGES", "nope")
	t.Setenv("FFMPEG_BIN", "/opt/ffmpeg/bin/ffmpeg")

	c := Load()

	assert.Equal(t, "/tmp/docs", c.OutputDir)
	assert.Equal(t, 10*time.Second, c.FrameInterval)
	assert.Equal(t, 12, c.MaxFrames)
	assert.Equal(t, time.Minute, c.SectionDuration)
	assert.Equal(t, TranscriberGoogle, c.Transcriber)
	assert.True(t, c.Markdown)
	assert.True(t, c.KeepVideo)
	assert.False(t, c.EmbedImages)
	assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", c.FFmpegBin)
}

func TestValidate(t *testing.T) {
	valid := Config{OutputDir: "output", FrameInterval: time.Second, Transcriber: TranscriberWhisperX}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no output dir", func(c *Config) { c.OutputDir = "" }, "output dir"},
		{"zero interval", func(c *Config) { c.FrameInterval = 0 }, "frame interval"},
		{"negative max frames", func(c *Config) { c.MaxFrames = -1 }, "max frames"},
		{"negative section", func(c *Config) { c.SectionDuration = -time.Second }, "section duration"},
		{"tiny google chunk", func(c *Config) { c.Transcriber = TranscriberGoogle; c.GoogleChunk = time.Millisecond }, "google chunk"},
		{"unknown transcriber", func(c *Config) { c.Transcriber = "vosk" }, `unknown transcriber "vosk"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			assert.ErrorContains(t, c.Validate(), tt.want)
		})
	}
}
