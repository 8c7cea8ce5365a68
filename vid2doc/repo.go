package vid2doc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

type (
	SQLiteRepo struct {
		db *sql.DB
	}
)

func NewSQLiteRepo(db *sql.DB) SQLiteRepo {
	return SQLiteRepo{db}
}

func (r SQLiteRepo) UpsertVideo(ctx context.Context, v Video) (VideoRecord, error) {
	var isTranscribed uint8
	res := VideoRecord{Blake3Hash: v.Blake3Hash}

	err := r.db.
		QueryRowContext(
			ctx,
			`insert into videos (youtube_id, url, title, blake3_hash, duration_ms)
			values ($1, $2, $3, $4, $5)
			on conflict (blake3_hash) do update set
				youtube_id = excluded.youtube_id,
				url = excluded.url,
				title = excluded.title,
				duration_ms = excluded.duration_ms
			returning id, is_transcribed`,
			v.ID,
			v.URL,
			v.Title,
			v.Blake3Hash,
			v.DurationMs,
		).
		Scan(&res.ID, &isTranscribed)
	if err != nil {
		return res, fmt.Errorf("persisting video into sqlite: %w", err)
	}

	res.IsTranscribed = isTranscribed == 1
	return res, nil
}

func (r SQLiteRepo) GetSegments(ctx context.Context, videoID string) ([]Segment, error) {
	rows, err := r.db.QueryContext(
		ctx,
		"select id, text, start_ms, end_ms from segments where video_id = $1 order by start_ms, id",
		videoID,
	)
	if err != nil {
		return nil, fmt.Errorf("get segments: %w", err)
	}
	defer rows.Close()

	var res []Segment
	for rows.Next() {
		var s Segment
		if err := rows.Scan(&s.ID, &s.Text, &s.StartMs, &s.EndMs); err != nil {
			return nil, fmt.Errorf("get segments: scanning row: %w", err)
		}
		res = append(res, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get segments: %w", err)
	}
	return res, nil
}

// InsertSegments replaces the stored transcript of a video and marks it transcribed.
func (r SQLiteRepo) InsertSegments(ctx context.Context, segs []Segment, videoID string) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("inserting segments: begin trx: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			err = errors.Join(err, fmt.Errorf("rollback insert segments: %w", rbErr))
		}
	}()

	if _, err = tx.ExecContext(ctx, "delete from segments where video_id = $1", videoID); err != nil {
		return fmt.Errorf("inserting segments: clearing previous transcript: %w", err)
	}
	if err = r.insertSegments(ctx, tx, segs, videoID); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		update videos
		set is_transcribed = 1
		where id = $1
	`, videoID)
	if err != nil {
		return fmt.Errorf("updating video is_transcribed: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("inserting segments: commiting: %w", err)
	}
	return nil
}

func (r SQLiteRepo) insertSegments(ctx context.Context, tx *sql.Tx, segs []Segment, videoID string) error {
	if len(segs) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString(`insert into segments (
		id,
		video_id,
		text,
		start_ms,
		end_ms) values `)
	args := make([]any, 5*len(segs))
	for n, s := range segs {
		if n > 0 {
			b.WriteString(", ")
		}
		i := n * 5
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d, $%d)", i+1, i+2, i+3, i+4, i+5)

		args[i] = s.ID
		args[i+1] = videoID
		args[i+2] = s.Text
		args[i+3] = s.StartMs
		args[i+4] = s.EndMs
	}
	b.WriteString(";")

	if _, err := tx.ExecContext(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("inserting segments: %w", err)
	}
	return nil
}

func (r SQLiteRepo) CreateRun(ctx context.Context, run Run) error {
	_, err := r.db.ExecContext(
		ctx,
		"insert into runs (id, url, started_at, status) values ($1, $2, $3, $4)",
		run.ID,
		run.URL,
		run.StartedAt.UTC().Format(time.RFC3339),
		string(run.Status),
	)
	if err != nil {
		return fmt.Errorf("persisting run into sqlite: %w", err)
	}
	return nil
}

func (r SQLiteRepo) FinishRun(ctx context.Context, run Run) error {
	var finishedAt, videoID any
	if run.FinishedAt != nil {
		finishedAt = run.FinishedAt.UTC().Format(time.RFC3339)
	}
	if run.VideoID != "" {
		videoID = run.VideoID
	}

	_, err := r.db.ExecContext(ctx, `
		update runs
		set video_id = $1, finished_at = $2, status = $3, error = $4, report_path = $5
		where id = $6
	`, videoID, finishedAt, string(run.Status), run.Error, run.ReportPath, run.ID)
	if err != nil {
		return fmt.Errorf("updating run %s: %w", run.ID, err)
	}
	return nil
}

func (r SQLiteRepo) GetRun(ctx context.Context, id string) (Run, error) {
	var (
		res                 = Run{ID: id}
		videoID, finishedAt sql.NullString
		startedAt, status   string
	)

	err := r.db.
		QueryRowContext(
			ctx,
			"select video_id, url, started_at, finished_at, status, error, report_path from runs where id = $1",
			id,
		).
		Scan(&videoID, &res.URL, &startedAt, &finishedAt, &status, &res.Error, &res.ReportPath)
	if err != nil {
		return res, fmt.Errorf("get run: %w", err)
	}

	res.VideoID = videoID.String
	res.Status = RunStatus(status)
	if res.StartedAt, err = time.Parse(time.RFC3339, startedAt); err != nil {
		return res, fmt.Errorf("get run: parsing started_at: %w", err)
	}
	if finishedAt.Valid {
		t, err := time.Parse(time.RFC3339, finishedAt.String)
		if err != nil {
			return res, fmt.Errorf("get run: parsing finished_at: %w", err)
		}
		res.FinishedAt = &t
	}
	return res, nil
}
