package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"cog-cli/internal/model"
)

const jobColumns = `id, series_id, kind, status, error, source_job_id, created_at, updated_at`

func scanJob(sc interface{ Scan(...any) error }) (model.Job, error) {
	var (
		j       model.Job
		kind    string
		status  string
		source  sql.NullString
		created int64
		updated int64
	)
	if err := sc.Scan(&j.ID, &j.SeriesID, &kind, &status, &j.Error, &source, &created, &updated); err != nil {
		return model.Job{}, err
	}
	j.Kind = model.JobKind(kind)
	j.Status = model.JobStatus(status)
	j.SourceID = strPtr(source)
	j.CreatedAt = fromMs(created)
	j.UpdatedAt = fromMs(updated)
	return j, nil
}

// CreateJob stores a pending job with one pending step per config.
func (s *Store) CreateJob(ctx context.Context, seriesID string, kind model.JobKind, steps []model.StepConfig) (model.Job, error) {
	if _, err := s.GetSeries(ctx, seriesID); err != nil {
		return model.Job{}, err
	}
	if kind == "" {
		kind = model.JobKindPipeline
	}
	now := s.nowMs()
	j := model.Job{
		ID:        newID(prefixJob),
		SeriesID:  seriesID,
		Kind:      kind,
		Status:    model.JobPending,
		CreatedAt: fromMs(now),
		UpdatedAt: fromMs(now),
	}
	for i, cfg := range steps {
		j.Steps = append(j.Steps, model.PipelineStep{
			ID:     newID(prefixStep),
			JobID:  j.ID,
			Index:  i,
			Status: model.JobPending,
			Config: cfg,
		})
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return s.insertJob(ctx, tx, j)
	})
	if err != nil {
		return model.Job{}, err
	}
	return j, nil
}

func (s *Store) insertJob(ctx context.Context, q querier, j model.Job) error {
	if _, err := s.exec(ctx, q, `INSERT INTO jobs(`+jobColumns+`) VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.SeriesID, string(j.Kind), string(j.Status), j.Error, nullString(j.SourceID),
		j.CreatedAt.UnixMilli(), j.UpdatedAt.UnixMilli()); err != nil {
		return err
	}
	for _, st := range j.Steps {
		raw, err := model.MarshalStepConfig(st.Config)
		if err != nil {
			return fmt.Errorf("step %d: %w", st.Index, err)
		}
		if _, err := s.exec(ctx, q, `INSERT INTO job_steps(id, job_id, idx, status, output_image_id, config) VALUES(?, ?, ?, ?, ?, ?)`,
			st.ID, j.ID, st.Index, string(st.Status), nullString(st.OutputImageID), string(raw)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadSteps(ctx context.Context, q querier, jobID string) ([]model.PipelineStep, error) {
	rows, err := s.query(ctx, q, `SELECT id, job_id, idx, status, output_image_id, config FROM job_steps WHERE job_id = ? ORDER BY idx`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.PipelineStep{}
	for rows.Next() {
		var (
			st     model.PipelineStep
			status string
			output sql.NullString
			raw    string
		)
		if err := rows.Scan(&st.ID, &st.JobID, &st.Index, &status, &output, &raw); err != nil {
			return nil, err
		}
		st.Status = model.JobStatus(status)
		st.OutputImageID = strPtr(output)
		cfg, err := model.UnmarshalStepConfig([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("step %s: %w", st.ID, err)
		}
		st.Config = cfg
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) getJob(ctx context.Context, q querier, id string) (model.Job, error) {
	j, err := scanJob(s.queryRow(ctx, q, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Job{}, NotFoundError{Kind: "job", ID: id}
	}
	if err != nil {
		return model.Job{}, err
	}
	j.Steps, err = s.loadSteps(ctx, q, j.ID)
	return j, err
}

func (s *Store) GetJob(ctx context.Context, id string) (model.Job, error) {
	return s.getJob(ctx, s.db, strings.TrimSpace(id))
}

// ListJobs returns jobs newest first. An empty seriesID lists every series.
func (s *Store) ListJobs(ctx context.Context, seriesID string) ([]model.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM jobs`
	var args []any
	if strings.TrimSpace(seriesID) != "" {
		q += ` WHERE series_id = ?`
		args = append(args, seriesID)
	}
	q += ` ORDER BY created_at DESC, id`
	rows, err := s.query(ctx, s.db, q, args...)
	if err != nil {
		return nil, err
	}
	var out []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, j)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Steps, err = s.loadSteps(ctx, s.db, out[i].ID); err != nil {
			return nil, err
		}
	}
	if out == nil {
		out = []model.Job{}
	}
	return out, nil
}

// UpdateJobStatus moves the job along its lifecycle. Cancelling also cancels every
// non-terminal step.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, to model.JobStatus, errMsg string) (model.Job, error) {
	var out model.Job
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		j, err := s.getJob(ctx, tx, jobID)
		if err != nil {
			return err
		}
		if !model.CanTransition(j.Status, to) {
			return fmt.Errorf("job %s: %s -> %s: %w", j.ID, j.Status, to, model.ErrInvalidTransition)
		}
		now := s.nowMs()
		if _, err := s.exec(ctx, tx, `UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
			string(to), strings.TrimSpace(errMsg), now, j.ID); err != nil {
			return err
		}
		if to == model.JobCancelled {
			for _, st := range j.Steps {
				if st.Status.Terminal() {
					continue
				}
				if _, err := s.exec(ctx, tx, `UPDATE job_steps SET status = ? WHERE id = ?`, string(model.JobCancelled), st.ID); err != nil {
					return err
				}
			}
		}
		out, err = s.getJob(ctx, tx, j.ID)
		return err
	})
	return out, err
}

// UpdateStep moves one step along its lifecycle and optionally records its output image.
func (s *Store) UpdateStep(ctx context.Context, stepID string, to model.JobStatus, outputImageID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var status string
		var jobID string
		err := s.queryRow(ctx, tx, `SELECT status, job_id FROM job_steps WHERE id = ?`, stepID).Scan(&status, &jobID)
		if errors.Is(err, sql.ErrNoRows) {
			return NotFoundError{Kind: "step", ID: stepID}
		}
		if err != nil {
			return err
		}
		from := model.JobStatus(status)
		if !model.CanTransition(from, to) {
			return fmt.Errorf("step %s: %s -> %s: %w", stepID, from, to, model.ErrInvalidTransition)
		}
		out := strings.TrimSpace(outputImageID)
		if _, err := s.exec(ctx, tx, `UPDATE job_steps SET status = ?, output_image_id = COALESCE(?, output_image_id) WHERE id = ?`,
			string(to), nullString(&out), stepID); err != nil {
			return err
		}
		_, err = s.exec(ctx, tx, `UPDATE jobs SET updated_at = ? WHERE id = ?`, s.nowMs(), jobID)
		return err
	})
}

// DuplicateJob copies a job's step configs into a new pending job that records its source.
func (s *Store) DuplicateJob(ctx context.Context, jobID string) (model.Job, error) {
	src, err := s.GetJob(ctx, jobID)
	if err != nil {
		return model.Job{}, err
	}
	now := s.nowMs()
	j := model.Job{
		ID:        newID(prefixJob),
		SeriesID:  src.SeriesID,
		Kind:      src.Kind,
		Status:    model.JobPending,
		SourceID:  &src.ID,
		CreatedAt: fromMs(now),
		UpdatedAt: fromMs(now),
	}
	for _, st := range src.Steps {
		j.Steps = append(j.Steps, model.PipelineStep{
			ID:     newID(prefixStep),
			JobID:  j.ID,
			Index:  st.Index,
			Status: model.JobPending,
			Config: st.Config,
		})
	}
	if err := s.withTx(ctx, func(tx *sql.Tx) error { return s.insertJob(ctx, tx, j) }); err != nil {
		return model.Job{}, err
	}
	return j, nil
}
