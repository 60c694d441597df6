package store

import "context"

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS series (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			primary_image_id TEXT,
			tags TEXT NOT NULL DEFAULT '[]',
			private INTEGER NOT NULL DEFAULT 0,
			created_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS images (
			id TEXT PRIMARY KEY,
			series_id TEXT NOT NULL,
			storage_path TEXT NOT NULL,
			group_id TEXT,
			parent_id TEXT,
			width INTEGER NOT NULL DEFAULT 0,
			height INTEGER NOT NULL DEFAULT 0,
			rating INTEGER NOT NULL DEFAULT 0,
			prompt TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS images_series_idx ON images(series_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS images_group_idx ON images(group_id)`,
		`CREATE INDEX IF NOT EXISTS images_parent_idx ON images(parent_id)`,
		`CREATE TABLE IF NOT EXISTS tag_groups (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tags (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			group_id TEXT,
			series_id TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS image_tags (
			image_id TEXT NOT NULL,
			tag_id TEXT NOT NULL,
			PRIMARY KEY (image_id, tag_id)
		)`,
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			series_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			source_job_id TEXT,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS job_steps (
			id TEXT PRIMARY KEY,
			job_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			status TEXT NOT NULL,
			output_image_id TEXT,
			config TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS job_steps_job_idx ON job_steps(job_id, idx)`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}
