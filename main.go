package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"vid2doc/config"
	"vid2doc/ffmpeg"
	"vid2doc/google"
	"vid2doc/logging"
	"vid2doc/metrics"
	"vid2doc/report"
	"vid2doc/vid2doc"
	"vid2doc/whisper"
	"vid2doc/ytdlp"
)

func main() {
	os.Exit(execute(newRootCmd(), os.Stderr))
}

func execute(cmd *cobra.Command, stderr io.Writer) int {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	cfg := config.Load()
	var videoURL string

	cmd := &cobra.Command{
		Use:   "vid2doc",
		Short: "Turn a video into an HTML document of transcript sections and frames",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			rep, err := run(ctx, cfg, videoURL)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Vid2Doc complete. Check %s\n", rep.HTMLPath)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := cmd.Flags()
	f.StringVar(&videoURL, "youtube_url", "", "URL of the video to convert")
	f.StringVar(&cfg.OutputDir, "output_dir", cfg.OutputDir, "directory receiving the report and frames")
	f.StringVar(&cfg.WorkDir, "work_dir", cfg.WorkDir, "download directory, a temporary one when empty")
	f.DurationVar(&cfg.FrameInterval, "interval", cfg.FrameInterval, "time between sampled frames")
	f.IntVar(&cfg.MaxFrames, "max_frames", cfg.MaxFrames, "upper bound on sampled frames, 0 for none")
	f.DurationVar(&cfg.SectionDuration, "section_duration", cfg.SectionDuration, "group segments into sections of this length, 0 for one per segment")
	f.StringVar(&cfg.Transcriber, "transcriber", cfg.Transcriber, "whisper, whisperx or google (google sends audio in GOOGLE_STT_CHUNK pieces, each under 10 MB)")
	f.StringVar(&cfg.WhisperModel, "model", cfg.WhisperModel, "whisper model name")
	f.StringVar(&cfg.WhisperLanguage, "language", cfg.WhisperLanguage, "spoken language, detected when empty")
	f.BoolVar(&cfg.EmbedImages, "embed_images", cfg.EmbedImages, "inline frames as data URIs")
	f.BoolVar(&cfg.Markdown, "markdown", cfg.Markdown, "also write a Markdown copy of the report")
	f.BoolVar(&cfg.KeepVideo, "keep_video", cfg.KeepVideo, "keep the downloaded video")
	f.BoolVar(&cfg.ReuseTranscript, "reuse_transcript", cfg.ReuseTranscript, "reuse an archived transcript of the same video")
	f.StringVar(&cfg.DBPath, "db", cfg.DBPath, "sqlite archive path, empty to disable")
	f.StringVar(&cfg.MetricsFile, "metrics_file", cfg.MetricsFile, "write Prometheus textfile metrics here")
	f.StringVar(&cfg.LogLevel, "log_level", cfg.LogLevel, "debug, info, warn or error")
	f.StringVar(&cfg.LogFormat, "log_format", cfg.LogFormat, "console or json")
	_ = cmd.MarkFlagRequired("youtube_url")

	return cmd
}

func run(ctx context.Context, cfg config.Config, videoURL string) (vid2doc.Report, error) {
	log := logging.Logger()

	// Nothing is created on disk for a URL that cannot be fetched.
	if err := ytdlp.ValidateURL(videoURL); err != nil {
		return vid2doc.Report{}, &vid2doc.FetchError{URL: videoURL, Err: err}
	}

	workDir := cfg.WorkDir
	if workDir == "" {
		dir, err := os.MkdirTemp("", "vid2doc-*")
		if err != nil {
			return vid2doc.Report{}, fmt.Errorf("creating work dir: %w", err)
		}
		if !cfg.KeepVideo {
			defer os.RemoveAll(dir)
		}
		workDir = dir
	}

	sampler := ffmpeg.Sampler{
		FFmpegBin:  cfg.FFmpegBin,
		FFprobeBin: cfg.FFprobeBin,
		OutDir:     filepath.Join(cfg.OutputDir, "frames"),
		Log:        logging.WithComponent("ffmpeg"),
	}

	transcriber, closeTranscriber, err := newTranscriber(ctx, cfg, sampler)
	if err != nil {
		return vid2doc.Report{}, err
	}
	defer closeTranscriber()

	m := metrics.New()
	options := []vid2doc.ServiceOption{
		vid2doc.WithLogger(logging.WithComponent("service")),
		vid2doc.WithObserver(m),
	}

	if cfg.DBPath != "" {
		db, err := initDB(ctx, cfg.DBPath)
		if err != nil {
			log.Warn().Err(err).Str("db", cfg.DBPath).Msg("archive unavailable, continuing without it")
		} else {
			defer db.Close()
			options = append(options, vid2doc.WithRepo(vid2doc.NewSQLiteRepo(db)))
		}
	}

	s := vid2doc.NewService(
		ytdlp.Fetcher{
			Bin:     cfg.YtdlpBin,
			Format:  cfg.YtdlpFormat,
			WorkDir: workDir,
			Log:     logging.WithComponent("ytdlp"),
		},
		transcriber,
		sampler,
		report.Composer{BaseDir: cfg.OutputDir, Embed: cfg.EmbedImages},
		vid2doc.Options{
			OutputDir:       cfg.OutputDir,
			FrameInterval:   cfg.FrameInterval,
			MaxFrames:       cfg.MaxFrames,
			SectionDuration: cfg.SectionDuration,
			ReuseTranscript: cfg.ReuseTranscript,
			KeepVideo:       cfg.KeepVideo,
			Markdown:        cfg.Markdown,
		},
		options...,
	)

	rep, err := s.Run(ctx, videoURL)

	if cfg.MetricsFile != "" {
		if mErr := m.WriteTextfile(cfg.MetricsFile); mErr != nil {
			log.Warn().Err(mErr).Str("path", cfg.MetricsFile).Msg("writing metrics")
		}
	}
	return rep, err
}

func newTranscriber(ctx context.Context, cfg config.Config, sampler ffmpeg.Sampler) (vid2doc.Transcriber, func(), error) {
	switch cfg.Transcriber {
	case config.TranscriberGoogle:
		t, err := google.New(
			ctx,
			sampler,
			google.Config{
				LanguageCode:  cfg.GoogleLanguage,
				SampleRateHz:  google.DefaultConfig().SampleRateHz,
				ChunkDuration: cfg.GoogleChunk,
			},
			logging.WithComponent("google"),
		)
		if err != nil {
			return nil, nil, &vid2doc.TranscriptionError{Err: err}
		}
		return t, func() {
			if err := t.Close(); err != nil {
				logging.Logger().Warn().Err(err).Msg("closing speech client")
			}
		}, nil
	default:
		return whisper.Transcriber{
			Bin:      whisperBin(cfg),
			Model:    cfg.WhisperModel,
			Language: cfg.WhisperLanguage,
			Log:      logging.WithComponent("whisper"),
		}, func() {}, nil
	}
}

func whisperBin(cfg config.Config) string {
	if cfg.Transcriber == config.TranscriberWhisperX && cfg.WhisperBin == "whisper" {
		return "whisperx"
	}
	return cfg.WhisperBin
}
