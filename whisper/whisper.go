package whisper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"vid2doc/proc"
	"vid2doc/vid2doc"
)

type (
	transcribeResult struct {
		Language string    `json:"language"`
		Segments []segment `json:"segments"`
	}

	segment struct {
		Text  string          `json:"text"`
		Start decimal.Decimal `json:"start"`
		End   decimal.Decimal `json:"end"`
	}
)

const DefaultModel = "base"

// Transcriber runs the whisper CLI (openai-whisper, or whisperx which writes
// the same JSON) and reads back its segments.
type Transcriber struct {
	// Bin is the executable, "whisper" when empty.
	Bin      string
	Model    string
	Language string
	// OutputDir receives the JSON result; a temporary directory is used when empty.
	OutputDir string
	Log       zerolog.Logger
}

var _ vid2doc.Transcriber = Transcriber{}

func (w Transcriber) Transcribe(ctx context.Context, filePath string) (vid2doc.TranscribeResult, error) {
	if _, err := os.Stat(filePath); err != nil {
		return vid2doc.TranscribeResult{}, &vid2doc.TranscriptionError{Path: filePath, Err: err}
	}

	outDir := w.OutputDir
	if outDir == "" {
		dir, err := os.MkdirTemp("", "vid2doc-whisper-*")
		if err != nil {
			return vid2doc.TranscribeResult{}, &vid2doc.TranscriptionError{Path: filePath, Err: fmt.Errorf("creating output dir: %w", err)}
		}
		defer os.RemoveAll(dir)
		outDir = dir
	}

	err := proc.Stream(ctx, w.Log, w.bin(), w.args(filePath, outDir)...)
	if err != nil {
		return vid2doc.TranscribeResult{}, &vid2doc.TranscriptionError{Path: filePath, Err: err}
	}

	res, err := readResult(resultPath(filePath, outDir))
	if err != nil {
		return vid2doc.TranscribeResult{}, &vid2doc.TranscriptionError{Path: filePath, Err: err}
	}
	return res, nil
}

func (w Transcriber) bin() string {
	if w.Bin == "" {
		return "whisper"
	}
	return w.Bin
}

func (w Transcriber) args(filePath, outDir string) []string {
	model := w.Model
	if model == "" {
		model = DefaultModel
	}
	args := []string{
		filePath,
		"--model", model,
		"--output_format", "json",
		"--output_dir", outDir,
	}
	if w.Language != "" {
		args = append(args, "--language", w.Language)
	}
	if !strings.Contains(filepath.Base(w.bin()), "whisperx") {
		args = append(args, "--verbose", "False")
	}
	return args
}

func resultPath(filePath, outDir string) string {
	base := filepath.Base(filePath)
	return filepath.Join(outDir, strings.TrimSuffix(base, filepath.Ext(base))+".json")
}

func readResult(path string) (vid2doc.TranscribeResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return vid2doc.TranscribeResult{}, fmt.Errorf("opening whisper transcribe result: %w", err)
	}
	defer f.Close()

	var tr transcribeResult
	if err := json.NewDecoder(f).Decode(&tr); err != nil {
		return vid2doc.TranscribeResult{}, fmt.Errorf("decoding whisper json result: %w", err)
	}
	if tr.Segments == nil {
		return vid2doc.TranscribeResult{}, errors.New("whisper json result has no segments")
	}

	segs := make([]vid2doc.Segment, len(tr.Segments))
	for n, s := range tr.Segments {
		segs[n] = vid2doc.Segment{
			ID:      uint64(n),
			Text:    s.Text,
			StartMs: millis(s.Start),
			EndMs:   millis(s.End),
		}
	}

	return vid2doc.TranscribeResult{
		Language: tr.Language,
		Segments: vid2doc.NormalizeSegments(segs),
	}, nil
}

func millis(seconds decimal.Decimal) uint64 {
	if seconds.IsNegative() {
		return 0
	}
	return seconds.Mul(decimal.NewFromInt(1000)).Round(0).BigInt().Uint64()
}
