package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"cog-cli/internal/model"
)

const seriesColumns = `id, title, primary_image_id, tags, private, created_at`

func scanSeries(sc interface{ Scan(...any) error }) (model.Series, error) {
	var (
		out      model.Series
		primary  sql.NullString
		tagsJSON string
		private  int
		created  int64
	)
	if err := sc.Scan(&out.ID, &out.Title, &primary, &tagsJSON, &private, &created); err != nil {
		return model.Series{}, err
	}
	out.PrimaryImageID = strPtr(primary)
	out.Private = private != 0
	out.CreatedAt = fromMs(created)
	if strings.TrimSpace(tagsJSON) != "" {
		_ = json.Unmarshal([]byte(tagsJSON), &out.Tags)
	}
	return out, nil
}

func normalizeSeriesTags(tags []string) []string {
	set := map[string]struct{}{}
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" {
			set[t] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (s *Store) CreateSeries(ctx context.Context, title string, tags []string, private bool) (model.Series, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.Series{}, errors.New("series title is empty")
	}
	sr := model.Series{
		ID:        newID(prefixSeries),
		Title:     title,
		Tags:      normalizeSeriesTags(tags),
		Private:   private,
		CreatedAt: fromMs(s.nowMs()),
	}
	raw, _ := json.Marshal(sr.Tags)
	_, err := s.exec(ctx, s.db, `INSERT INTO series(`+seriesColumns+`) VALUES(?, ?, NULL, ?, ?, ?)`,
		sr.ID, sr.Title, string(raw), boolToInt(sr.Private), sr.CreatedAt.UnixMilli())
	if err != nil {
		return model.Series{}, err
	}
	return sr, nil
}

func (s *Store) GetSeries(ctx context.Context, id string) (model.Series, error) {
	row := s.queryRow(ctx, s.db, `SELECT `+seriesColumns+` FROM series WHERE id = ?`, strings.TrimSpace(id))
	sr, err := scanSeries(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Series{}, NotFoundError{Kind: "series", ID: id}
	}
	return sr, err
}

func (s *Store) ListSeries(ctx context.Context) ([]model.Series, error) {
	rows, err := s.query(ctx, s.db, `SELECT `+seriesColumns+` FROM series ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Series{}
	for rows.Next() {
		sr, err := scanSeries(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sr)
	}
	return out, rows.Err()
}

func (s *Store) SetSeriesTags(ctx context.Context, id string, tags []string) error {
	raw, _ := json.Marshal(normalizeSeriesTags(tags))
	res, err := s.exec(ctx, s.db, `UPDATE series SET tags = ? WHERE id = ?`, string(raw), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return NotFoundError{Kind: "series", ID: id}
	}
	return nil
}

// SetPrimary points the series at imageID, or clears the pointer when imageID is empty.
// The image must belong to the series.
func (s *Store) SetPrimary(ctx context.Context, seriesID, imageID string) error {
	seriesID = strings.TrimSpace(seriesID)
	imageID = strings.TrimSpace(imageID)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.getSeriesTx(ctx, tx, seriesID); err != nil {
			return err
		}
		if imageID == "" {
			_, err := s.exec(ctx, tx, `UPDATE series SET primary_image_id = NULL WHERE id = ?`, seriesID)
			return err
		}
		im, err := s.getImage(ctx, tx, imageID)
		if err != nil {
			return err
		}
		if im.SeriesID != seriesID {
			return ErrForeignImage
		}
		_, err = s.exec(ctx, tx, `UPDATE series SET primary_image_id = ? WHERE id = ?`, imageID, seriesID)
		return err
	})
}

func (s *Store) getSeriesTx(ctx context.Context, q querier, id string) (model.Series, error) {
	sr, err := scanSeries(s.queryRow(ctx, q, `SELECT `+seriesColumns+` FROM series WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Series{}, NotFoundError{Kind: "series", ID: id}
	}
	return sr, err
}
