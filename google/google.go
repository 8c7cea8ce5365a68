// Package google provides a Google Cloud Speech-to-Text transcriber.
package google

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog"
	"google.golang.org/protobuf/types/known/durationpb"

	"vid2doc/vid2doc"
)

// Config holds recognition settings.
type Config struct {
	LanguageCode string
	SampleRateHz int32
	// ChunkDuration is the length of audio sent per request.
	ChunkDuration time.Duration
}

// DefaultChunkDuration keeps mono 16 kHz FLAC well under the inline audio limit.
const DefaultChunkDuration = 5 * time.Minute

// maxInlineBytes is the request size limit for inline audio content.
var maxInlineBytes = 10 << 20

// DefaultConfig matches the audio the ffmpeg extractor produces.
func DefaultConfig() Config {
	return Config{
		LanguageCode:  "en-US",
		SampleRateHz:  16000,
		ChunkDuration: DefaultChunkDuration,
	}
}

// AudioExtractor cuts the audio track of a video into mono FLAC files.
type AudioExtractor interface {
	ProbeDuration(ctx context.Context, filePath string) (uint64, error)
	ExtractAudio(ctx context.Context, in, out string, fromMs, lengthMs uint64) error
}

type recognizeFunc func(ctx context.Context, audio []byte) ([]*speechpb.SpeechRecognitionResult, error)

// Transcriber sends extracted audio to LongRunningRecognize, one chunk at a time.
// Requires GOOGLE_APPLICATION_CREDENTIALS to be set.
type Transcriber struct {
	client    *speech.Client
	recognize recognizeFunc
	audio     AudioExtractor
	cfg       Config
	log       zerolog.Logger
}

var _ vid2doc.Transcriber = (*Transcriber)(nil)

func New(ctx context.Context, audio AudioExtractor, cfg Config, log zerolog.Logger) (*Transcriber, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating speech client: %w", err)
	}
	t := &Transcriber{client: c, audio: audio, cfg: cfg, log: log}
	t.recognize = t.longRunningRecognize
	return t, nil
}

func (t *Transcriber) Close() error {
	if t.client == nil {
		return nil
	}
	return t.client.Close()
}

func (t *Transcriber) Transcribe(ctx context.Context, filePath string) (vid2doc.TranscribeResult, error) {
	fail := func(err error) (vid2doc.TranscribeResult, error) {
		return vid2doc.TranscribeResult{}, &vid2doc.TranscriptionError{Path: filePath, Err: err}
	}

	totalMs, err := t.audio.ProbeDuration(ctx, filePath)
	if err != nil {
		return fail(err)
	}
	chunkMs := uint64(t.cfg.ChunkDuration.Milliseconds())
	if chunkMs == 0 {
		chunkMs = uint64(DefaultChunkDuration.Milliseconds())
	}

	dir, err := os.MkdirTemp("", "vid2doc-stt-*")
	if err != nil {
		return fail(fmt.Errorf("creating audio dir: %w", err))
	}
	defer os.RemoveAll(dir)

	var segs []vid2doc.Segment
	for n, fromMs := 0, uint64(0); ; n, fromMs = n+1, fromMs+chunkMs {
		chunk, err := t.recognizeChunk(ctx, filePath, filepath.Join(dir, fmt.Sprintf("audio_%03d.flac", n)), fromMs, chunkMs)
		if err != nil {
			return fail(fmt.Errorf("chunk at %dms: %w", fromMs, err))
		}
		for _, s := range chunk {
			s.StartMs += fromMs
			s.EndMs += fromMs
			segs = append(segs, s)
		}
		if fromMs+chunkMs >= totalMs {
			break
		}
	}

	return vid2doc.TranscribeResult{
		Language: t.cfg.LanguageCode,
		Segments: vid2doc.NormalizeSegments(segs),
	}, nil
}

func (t *Transcriber) recognizeChunk(ctx context.Context, filePath, flac string, fromMs, lengthMs uint64) ([]vid2doc.Segment, error) {
	if err := t.audio.ExtractAudio(ctx, filePath, flac, fromMs, lengthMs); err != nil {
		return nil, fmt.Errorf("extracting audio: %w", err)
	}
	data, err := os.ReadFile(flac)
	if err != nil {
		return nil, fmt.Errorf("reading extracted audio: %w", err)
	}
	defer os.Remove(flac)
	if len(data) > maxInlineBytes {
		return nil, fmt.Errorf("audio chunk is %d bytes, over the %d byte inline limit; lower GOOGLE_STT_CHUNK", len(data), maxInlineBytes)
	}

	t.log.Debug().Int("bytes", len(data)).Uint64("fromMs", fromMs).Str("language", t.cfg.LanguageCode).Msg("recognizing")
	results, err := t.recognize(ctx, data)
	if err != nil {
		return nil, err
	}
	return segmentsFromResults(results), nil
}

func (t *Transcriber) longRunningRecognize(ctx context.Context, audio []byte) ([]*speechpb.SpeechRecognitionResult, error) {
	op, err := t.client.LongRunningRecognize(ctx, &speechpb.LongRunningRecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_FLAC,
			SampleRateHertz:            t.cfg.SampleRateHz,
			AudioChannelCount:          1,
			LanguageCode:               t.cfg.LanguageCode,
			EnableWordTimeOffsets:      true,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("starting recognition: %w", err)
	}
	resp, err := op.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("waiting for recognition: %w", err)
	}
	return resp.GetResults(), nil
}

// segmentsFromResults spans each result from its first to its last word. A
// result without word offsets runs from the previous result's end to its own.
func segmentsFromResults(results []*speechpb.SpeechRecognitionResult) []vid2doc.Segment {
	var (
		segs    []vid2doc.Segment
		prevEnd uint64
	)
	for _, r := range results {
		alts := r.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		alt := alts[0]
		resultEnd := millis(r.GetResultEndTime())

		start, end := prevEnd, resultEnd
		if words := alt.GetWords(); len(words) > 0 {
			start = millis(words[0].GetStartTime())
			if e := millis(words[len(words)-1].GetEndTime()); e > start {
				end = e
			}
		}
		if resultEnd > prevEnd {
			prevEnd = resultEnd
		}

		segs = append(segs, vid2doc.Segment{
			ID:      uint64(len(segs)),
			StartMs: start,
			EndMs:   end,
			Text:    alt.GetTranscript(),
		})
	}
	return segs
}

func millis(d *durationpb.Duration) uint64 {
	if d == nil {
		return 0
	}
	ms := d.AsDuration() / time.Millisecond
	if ms < 0 {
		return 0
	}
	return uint64(ms)
}
