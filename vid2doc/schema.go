package vid2doc

import (
	"context"
	"database/sql"
	"fmt"
)

const schema = `
create table if not exists videos (
	id INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL,
	youtube_id text not null,
	url text not null,
	title text not null,
	blake3_hash text not null unique,
	duration_ms integer not null default 0,
	is_transcribed integer default 0
);

create table if not exists segments (
	id integer not null,
	video_id integer not null,
	text text not null,
	start_ms integer not null,
	end_ms integer not null,
	primary key (id, video_id)
);

create table if not exists runs (
	id text primary key not null,
	video_id integer,
	url text not null,
	started_at text not null,
	finished_at text,
	status text not null,
	error text not null default '',
	report_path text not null default ''
);`

// Migrate creates the archive tables when they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating archive schema: %w", err)
	}
	return nil
}
