package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_Level(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			initWith(Config{Level: tt.level, Format: "json"}, &bytes.Buffer{})
			assert.Equal(t, tt.want, zerolog.GlobalLevel())
		})
	}
}

func TestInit_JSON(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	var buf bytes.Buffer
	initWith(Config{Level: "info", Format: "json"}, &buf)

	ffmpegLog := WithComponent("ffmpeg")
	ffmpegLog.Info().Msg("frames sampled")
	dropLog := WithComponent("ffmpeg")
	dropLog.Debug().Msg("dropped")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ffmpeg", entry["component"])
	assert.Equal(t, "frames sampled", entry["message"])
	assert.Equal(t, "info", entry["level"])
}

func TestInit_Console(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	var buf bytes.Buffer
	initWith(DefaultConfig(), &buf)

	logger := Logger()
	logger.Info().Str("path", "output/vid2doc.html").Msg("report written")

	assert.Contains(t, buf.String(), "report written")
	assert.Contains(t, buf.String(), "path=output/vid2doc.html")
}
