package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"cog-cli/internal/model"
)

func (s *Store) CreateTagGroup(ctx context.Context, name string) (model.TagGroup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.TagGroup{}, errors.New("tag group name is empty")
	}
	g := model.TagGroup{ID: newID(prefixTagGroup), Name: name}
	_, err := s.exec(ctx, s.db, `INSERT INTO tag_groups(id, name) VALUES(?, ?)`, g.ID, g.Name)
	return g, err
}

func (s *Store) ListTagGroups(ctx context.Context) ([]model.TagGroup, error) {
	rows, err := s.query(ctx, s.db, `SELECT id, name FROM tag_groups ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.TagGroup{}
	for rows.Next() {
		var g model.TagGroup
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// CreateTag creates a global tag when seriesID is empty, otherwise a tag local to that series.
func (s *Store) CreateTag(ctx context.Context, name, groupID, seriesID string) (model.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Tag{}, errors.New("tag name is empty")
	}
	t := model.Tag{ID: newID(prefixTag), Name: name, GroupID: strings.TrimSpace(groupID)}
	if sid := strings.TrimSpace(seriesID); sid != "" {
		if _, err := s.GetSeries(ctx, sid); err != nil {
			return model.Tag{}, err
		}
		t.SeriesID = &sid
	}
	_, err := s.exec(ctx, s.db, `INSERT INTO tags(id, name, group_id, series_id) VALUES(?, ?, ?, ?)`,
		t.ID, t.Name, nullString(&t.GroupID), nullString(t.SeriesID))
	return t, err
}

func scanTag(sc interface{ Scan(...any) error }) (model.Tag, error) {
	var (
		t      model.Tag
		group  sql.NullString
		series sql.NullString
	)
	if err := sc.Scan(&t.ID, &t.Name, &group, &series); err != nil {
		return model.Tag{}, err
	}
	t.GroupID = group.String
	t.SeriesID = strPtr(series)
	return t, nil
}

func (s *Store) getTag(ctx context.Context, q querier, id string) (model.Tag, error) {
	t, err := scanTag(s.queryRow(ctx, q, `SELECT id, name, group_id, series_id FROM tags WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Tag{}, NotFoundError{Kind: "tag", ID: id}
	}
	return t, err
}

// ListTags returns the global tags plus the tags local to seriesID.
func (s *Store) ListTags(ctx context.Context, seriesID string) ([]model.Tag, error) {
	rows, err := s.query(ctx, s.db, `SELECT id, name, group_id, series_id FROM tags
		WHERE series_id IS NULL OR series_id = ? ORDER BY name, id`, seriesID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Tag{}
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteTag removes a tag and its image links. Local tags may only be deleted from
// within their owning series; global tags require an empty seriesID.
func (s *Store) DeleteTag(ctx context.Context, tagID, seriesID string) error {
	seriesID = strings.TrimSpace(seriesID)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		t, err := s.getTag(ctx, tx, tagID)
		if err != nil {
			return err
		}
		if t.Local() && *t.SeriesID != seriesID {
			return ErrTagScope
		}
		if !t.Local() && seriesID != "" {
			return errors.New("global tags cannot be deleted from a series")
		}
		if _, err := s.exec(ctx, tx, `DELETE FROM image_tags WHERE tag_id = ?`, t.ID); err != nil {
			return err
		}
		_, err = s.exec(ctx, tx, `DELETE FROM tags WHERE id = ?`, t.ID)
		return err
	})
}

func (s *Store) checkTagForImage(ctx context.Context, q querier, imageID, tagID string) error {
	im, err := s.getImage(ctx, q, imageID)
	if err != nil {
		return err
	}
	t, err := s.getTag(ctx, q, tagID)
	if err != nil {
		return err
	}
	if !t.VisibleIn(im.SeriesID) {
		return ErrTagScope
	}
	return nil
}

func (s *Store) AddImageTag(ctx context.Context, imageID, tagID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.checkTagForImage(ctx, tx, imageID, tagID); err != nil {
			return err
		}
		if _, err := s.exec(ctx, tx, `DELETE FROM image_tags WHERE image_id = ? AND tag_id = ?`, imageID, tagID); err != nil {
			return err
		}
		_, err := s.exec(ctx, tx, `INSERT INTO image_tags(image_id, tag_id) VALUES(?, ?)`, imageID, tagID)
		return err
	})
}

func (s *Store) RemoveImageTag(ctx context.Context, imageID, tagID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.getImage(ctx, tx, imageID); err != nil {
			return err
		}
		_, err := s.exec(ctx, tx, `DELETE FROM image_tags WHERE image_id = ? AND tag_id = ?`, imageID, tagID)
		return err
	})
}

// ImageTagIDs maps each image of the series to its tag ids.
func (s *Store) ImageTagIDs(ctx context.Context, seriesID string) (map[string][]string, error) {
	rows, err := s.query(ctx, s.db, `SELECT it.image_id, it.tag_id FROM image_tags it
		JOIN images i ON i.id = it.image_id
		WHERE i.series_id = ? ORDER BY it.image_id, it.tag_id`, seriesID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string][]string{}
	for rows.Next() {
		var imageID, tagID string
		if err := rows.Scan(&imageID, &tagID); err != nil {
			return nil, err
		}
		out[imageID] = append(out[imageID], tagID)
	}
	return out, rows.Err()
}
