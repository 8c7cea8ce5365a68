package vid2doc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vid2doc/b3"
)

const (
	ReportFileName   = "vid2doc.html"
	MarkdownFileName = "vid2doc.md"
)

const (
	StageFetch      = "fetch"
	StageTranscribe = "transcribe"
	StageFrames     = "frames"
	StageRender     = "render"
)

type (
	repo interface {
		UpsertVideo(ctx context.Context, v Video) (VideoRecord, error)
		InsertSegments(ctx context.Context, segs []Segment, videoID string) error
		GetSegments(ctx context.Context, videoID string) ([]Segment, error)
		CreateRun(ctx context.Context, run Run) error
		FinishRun(ctx context.Context, run Run) error
	}

	// MarkdownComposer is implemented by composers that can also emit Markdown.
	MarkdownComposer interface {
		Markdown(html []byte) ([]byte, error)
	}

	// StageObserver receives timings and outcome counts of a run.
	StageObserver interface {
		ObserveStage(stage string, took time.Duration, err error)
		ObserveReport(segments, frames, sections int)
	}

	Options struct {
		OutputDir       string
		FrameInterval   time.Duration
		MaxFrames       int
		SectionDuration time.Duration
		ReuseTranscript bool
		KeepVideo       bool
		Markdown        bool
	}

	Report struct {
		RunID        string
		Video        Video
		Segments     []Segment
		Frames       []Frame
		Sections     []Section
		HTMLPath     string
		MarkdownPath string
	}

	Service struct {
		f    Fetcher
		t    Transcriber
		fs   FrameSampler
		c    Composer
		r    repo
		opts Options
		log  zerolog.Logger
		obs  StageObserver
	}

	ServiceOption func(*Service)
)

func WithLogger(l zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.log = l
	}
}

func WithObserver(o StageObserver) ServiceOption {
	return func(s *Service) {
		s.obs = o
	}
}

// WithRepo archives videos, transcripts and runs. Without it nothing is persisted.
func WithRepo(r repo) ServiceOption {
	return func(s *Service) {
		s.r = r
	}
}

func NewService(f Fetcher, t Transcriber, fs FrameSampler, c Composer, opts Options, options ...ServiceOption) *Service {
	s := &Service{
		f:    f,
		t:    t,
		fs:   fs,
		c:    c,
		r:    noopRepo{},
		opts: opts,
		log:  zerolog.Nop(),
		obs:  noopObserver{},
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// Run downloads, transcribes and samples the video at url and writes the
// report. The first failing stage aborts the run; its error is one of
// FetchError, TranscriptionError, FrameExtractionError or RenderError.
func (s *Service) Run(ctx context.Context, url string) (Report, error) {
	run := Run{
		ID:        uuid.NewString(),
		URL:       url,
		StartedAt: time.Now(),
		Status:    RunStatusRunning,
	}
	log := s.log.With().Str("runId", run.ID).Str("url", url).Logger()

	if err := s.r.CreateRun(ctx, run); err != nil {
		log.Warn().Err(err).Msg("archiving run start")
	}

	report, err := s.run(ctx, log, &run)
	report.RunID = run.ID

	finishedAt := time.Now()
	run.FinishedAt = &finishedAt
	run.ReportPath = report.HTMLPath
	run.Status = RunStatusDone
	if err != nil {
		run.Status = RunStatusFailed
		run.Error = err.Error()
	}
	// Recorded even when ctx was cancelled by an interrupt.
	if archErr := s.r.FinishRun(context.WithoutCancel(ctx), run); archErr != nil {
		log.Warn().Err(archErr).Msg("archiving run outcome")
	}

	return report, err
}

func (s *Service) run(ctx context.Context, log zerolog.Logger, run *Run) (Report, error) {
	var report Report

	err := s.stage(StageFetch, func() (err error) {
		report.Video, err = s.f.Fetch(ctx, run.URL)
		return asFetchError(run.URL, err)
	})
	if err != nil {
		return report, err
	}
	video := report.Video
	log.Info().Str("title", video.Title).Str("path", video.Path).Msg("video downloaded")
	if !s.opts.KeepVideo {
		defer s.removeVideo(log, video.Path)
	}

	record := s.archiveVideo(ctx, log, &report.Video)
	run.VideoID = record.ID

	err = s.stage(StageTranscribe, func() (err error) {
		report.Segments, err = s.transcript(ctx, log, video, record)
		return asTranscriptionError(video.Path, err)
	})
	if err != nil {
		return report, err
	}
	log.Info().Int("segments", len(report.Segments)).Msg("transcribed")

	err = s.stage(StageFrames, func() (err error) {
		report.Frames, err = s.fs.Sample(ctx, video.Path, s.opts.FrameInterval, s.opts.MaxFrames)
		return asFrameExtractionError(video.Path, err)
	})
	if err != nil {
		return report, err
	}
	log.Info().Int("frames", len(report.Frames)).Msg("frames sampled")

	report.Sections = Merge(report.Segments, report.Frames, s.opts.SectionDuration)

	err = s.stage(StageRender, func() error {
		return s.render(&report, run.URL)
	})
	if err != nil {
		return report, err
	}
	s.obs.ObserveReport(len(report.Segments), len(report.Frames), len(report.Sections))
	log.Info().Str("report", report.HTMLPath).Int("sections", len(report.Sections)).Msg("report written")

	return report, nil
}

func (s *Service) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	s.obs.ObserveStage(name, time.Since(start), err)
	return err
}

// archiveVideo hashes the download and records it. Archive failures never
// fail the run; an empty record means the transcript will not be stored.
func (s *Service) archiveVideo(ctx context.Context, log zerolog.Logger, v *Video) VideoRecord {
	if _, ok := s.r.(noopRepo); ok {
		return VideoRecord{}
	}

	hash, err := b3.HashFile(v.Path)
	if err != nil {
		log.Warn().Err(err).Msg("hashing video, archive skipped")
		return VideoRecord{}
	}
	v.Blake3Hash = hash

	rec, err := s.r.UpsertVideo(ctx, *v)
	if err != nil {
		log.Warn().Err(err).Msg("archiving video")
		return VideoRecord{}
	}
	return rec
}

func (s *Service) transcript(ctx context.Context, log zerolog.Logger, v Video, rec VideoRecord) ([]Segment, error) {
	if s.opts.ReuseTranscript && rec.IsTranscribed {
		segs, err := s.r.GetSegments(ctx, rec.ID)
		if err == nil {
			log.Info().Str("hash", rec.Blake3Hash).Msg("reusing archived transcript")
			return NormalizeSegments(segs), nil
		}
		log.Warn().Err(err).Msg("loading archived transcript, transcribing again")
	}

	tr, err := s.t.Transcribe(ctx, v.Path)
	if err != nil {
		return nil, err
	}
	segs := NormalizeSegments(tr.Segments)

	if rec.ID != "" {
		if err := s.r.InsertSegments(ctx, segs, rec.ID); err != nil {
			log.Warn().Err(err).Msg("archiving transcript")
		}
	}
	return segs, nil
}

func (s *Service) render(report *Report, url string) error {
	html, err := s.c.Compose(Document{
		Title:    report.Video.Title,
		URL:      url,
		Sections: report.Sections,
	})
	if err != nil {
		return asRenderError("", err)
	}

	if err := os.MkdirAll(s.opts.OutputDir, 0o755); err != nil {
		return &RenderError{Path: s.opts.OutputDir, Err: err}
	}
	htmlPath := filepath.Join(s.opts.OutputDir, ReportFileName)
	if err := os.WriteFile(htmlPath, html, 0o644); err != nil {
		return &RenderError{Path: htmlPath, Err: err}
	}
	report.HTMLPath = htmlPath

	if !s.opts.Markdown {
		return nil
	}
	mc, ok := s.c.(MarkdownComposer)
	if !ok {
		return &RenderError{Err: errors.New("composer cannot produce markdown")}
	}
	md, err := mc.Markdown(html)
	if err != nil {
		return asRenderError(MarkdownFileName, err)
	}
	mdPath := filepath.Join(s.opts.OutputDir, MarkdownFileName)
	if err := os.WriteFile(mdPath, md, 0o644); err != nil {
		return &RenderError{Path: mdPath, Err: err}
	}
	report.MarkdownPath = mdPath
	return nil
}

func (s *Service) removeVideo(log zerolog.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("path", path).Msg("removing downloaded video")
	}
}

func asFetchError(url string, err error) error {
	var target *FetchError
	if err == nil || errors.As(err, &target) {
		return err
	}
	return &FetchError{URL: url, Err: err}
}

func asTranscriptionError(path string, err error) error {
	var target *TranscriptionError
	if err == nil || errors.As(err, &target) {
		return err
	}
	return &TranscriptionError{Path: path, Err: err}
}

func asFrameExtractionError(path string, err error) error {
	var target *FrameExtractionError
	if err == nil || errors.As(err, &target) {
		return err
	}
	return &FrameExtractionError{Path: path, Err: err}
}

func asRenderError(path string, err error) error {
	var target *RenderError
	if err == nil || errors.As(err, &target) {
		return err
	}
	return &RenderError{Path: path, Err: fmt.Errorf("composing: %w", err)}
}

type noopRepo struct{}

func (noopRepo) UpsertVideo(context.Context, Video) (VideoRecord, error) { return VideoRecord{}, nil }
func (noopRepo) InsertSegments(context.Context, []Segment, string) error { return nil }
func (noopRepo) GetSegments(context.Context, string) ([]Segment, error)  { return nil, nil }
func (noopRepo) CreateRun(context.Context, Run) error                    { return nil }
func (noopRepo) FinishRun(context.Context, Run) error                    { return nil }

type noopObserver struct{}

func (noopObserver) ObserveStage(string, time.Duration, error) {}
func (noopObserver) ObserveReport(int, int, int)               {}
