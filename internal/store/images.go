package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"cog-cli/internal/model"
)

const imageColumns = `id, series_id, storage_path, group_id, parent_id, width, height, rating, prompt, source, created_at`

func scanImage(sc interface{ Scan(...any) error }) (model.Image, error) {
	var (
		im      model.Image
		group   sql.NullString
		parent  sql.NullString
		source  string
		created int64
	)
	if err := sc.Scan(&im.ID, &im.SeriesID, &im.StoragePath, &group, &parent, &im.Width, &im.Height, &im.Rating, &im.Prompt, &source, &created); err != nil {
		return model.Image{}, err
	}
	im.GroupID = strPtr(group)
	im.ParentID = strPtr(parent)
	im.Source = model.ImageSource(source)
	im.CreatedAt = fromMs(created)
	return im, nil
}

func (s *Store) scanImages(ctx context.Context, q querier, query string, args ...any) ([]model.Image, error) {
	rows, err := s.query(ctx, q, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Image{}
	for rows.Next() {
		im, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, im)
	}
	return out, rows.Err()
}

// InsertImage stores im. ID and CreatedAt are assigned when empty.
func (s *Store) InsertImage(ctx context.Context, im model.Image) (model.Image, error) {
	if strings.TrimSpace(im.SeriesID) == "" {
		return model.Image{}, errors.New("image series id is empty")
	}
	if strings.TrimSpace(im.StoragePath) == "" {
		return model.Image{}, errors.New("image storage path is empty")
	}
	if im.ID == "" {
		im.ID = newID(prefixImage)
	}
	if im.CreatedAt.IsZero() {
		im.CreatedAt = fromMs(s.nowMs())
	}
	if im.Source == "" {
		im.Source = model.SourceUploaded
	}
	im.Rating = model.ClampRating(im.Rating)
	_, err := s.exec(ctx, s.db, `INSERT INTO images(`+imageColumns+`) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		im.ID, im.SeriesID, im.StoragePath, nullString(im.GroupID), nullString(im.ParentID),
		im.Width, im.Height, im.Rating, im.Prompt, string(im.Source), im.CreatedAt.UnixMilli())
	if err != nil {
		return model.Image{}, err
	}
	return im, nil
}

func (s *Store) getImage(ctx context.Context, q querier, id string) (model.Image, error) {
	im, err := scanImage(s.queryRow(ctx, q, `SELECT `+imageColumns+` FROM images WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Image{}, NotFoundError{Kind: "image", ID: id}
	}
	return im, err
}

func (s *Store) GetImage(ctx context.Context, id string) (model.Image, error) {
	return s.getImage(ctx, s.db, strings.TrimSpace(id))
}

// ListImages returns the series' images in creation order.
func (s *Store) ListImages(ctx context.Context, seriesID string) ([]model.Image, error) {
	return s.scanImages(ctx, s.db, `SELECT `+imageColumns+` FROM images WHERE series_id = ? ORDER BY created_at, id`, seriesID)
}

func (s *Store) ListGroupImages(ctx context.Context, groupID string) ([]model.Image, error) {
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return []model.Image{}, nil
	}
	return s.scanImages(ctx, s.db, `SELECT `+imageColumns+` FROM images WHERE group_id = ? ORDER BY created_at, id`, groupID)
}

func (s *Store) childrenOf(ctx context.Context, q querier, id string) ([]model.Image, error) {
	return s.scanImages(ctx, q, `SELECT `+imageColumns+` FROM images WHERE parent_id = ? ORDER BY created_at, id`, id)
}

// VersionChain materializes the ancestry of imageID as a simple path root->latest.
// Ancestors are followed to the root; below imageID the most recent child is taken at
// each level, so branches are never exposed.
func (s *Store) VersionChain(ctx context.Context, imageID string) ([]model.Image, error) {
	start, err := s.getImage(ctx, s.db, strings.TrimSpace(imageID))
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{start.ID: true}

	up := []model.Image{start}
	cur := start
	for cur.Parent() != "" {
		p, err := s.getImage(ctx, s.db, cur.Parent())
		if err != nil {
			if IsNotFound(err) {
				break
			}
			return nil, err
		}
		if seen[p.ID] {
			break
		}
		seen[p.ID] = true
		up = append(up, p)
		cur = p
	}
	chain := make([]model.Image, 0, len(up))
	for i := len(up) - 1; i >= 0; i-- {
		chain = append(chain, up[i])
	}

	cur = start
	for {
		kids, err := s.childrenOf(ctx, s.db, cur.ID)
		if err != nil {
			return nil, err
		}
		if len(kids) == 0 {
			break
		}
		next := kids[len(kids)-1]
		if seen[next.ID] {
			break
		}
		seen[next.ID] = true
		chain = append(chain, next)
		cur = next
	}
	return chain, nil
}

// SetRating stores the clamped rating and returns it.
func (s *Store) SetRating(ctx context.Context, imageID string, rating int) (int, error) {
	rating = model.ClampRating(rating)
	res, err := s.exec(ctx, s.db, `UPDATE images SET rating = ? WHERE id = ?`, rating, imageID)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, NotFoundError{Kind: "image", ID: imageID}
	}
	return rating, nil
}

// SetGroup assigns all ids to groupID. An empty groupID ungroups them.
func (s *Store) SetGroup(ctx context.Context, ids []string, groupID string) error {
	groupID = strings.TrimSpace(groupID)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			res, err := s.exec(ctx, tx, `UPDATE images SET group_id = ? WHERE id = ?`, nullString(&groupID), id)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return NotFoundError{Kind: "image", ID: id}
			}
		}
		return nil
	})
}

// NewGroupID returns a fresh group identifier.
func NewGroupID() string {
	return newID("grp")
}

// DeleteImage removes the image row and its tag links only. Children keep a dangling
// parent pointer and the series primary is left untouched; prefer DeleteImageWithCleanup.
func (s *Store) DeleteImage(ctx context.Context, imageID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.getImage(ctx, tx, imageID); err != nil {
			return err
		}
		return s.deleteImageRows(ctx, tx, imageID)
	})
}

func (s *Store) deleteImageRows(ctx context.Context, q querier, imageID string) error {
	if _, err := s.exec(ctx, q, `DELETE FROM image_tags WHERE image_id = ?`, imageID); err != nil {
		return err
	}
	_, err := s.exec(ctx, q, `DELETE FROM images WHERE id = ?`, imageID)
	return err
}

// lockAttempts bounds how often lockForDelete follows a parent that moved under it.
const lockAttempts = 8

// lockForDelete reads imageID for deletion. On postgres it row-locks the parent and
// then the image, ancestor first, so concurrent deletes along one chain queue behind
// each other and children are never re-parented onto a row another transaction is
// removing. SQLite runs one writer at a time and needs no locks.
func (s *Store) lockForDelete(ctx context.Context, tx *sql.Tx, imageID string) (model.Image, error) {
	if s.driver != DriverPostgres {
		return s.getImage(ctx, tx, imageID)
	}
	for range lockAttempts {
		im, err := s.getImage(ctx, tx, imageID)
		if err != nil {
			return model.Image{}, err
		}
		if p := im.Parent(); p != "" {
			var id string
			err := s.queryRow(ctx, tx, `SELECT id FROM images WHERE id = ? FOR UPDATE`, p).Scan(&id)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return model.Image{}, err
			}
		}
		locked, err := scanImage(s.queryRow(ctx, tx, `SELECT `+imageColumns+` FROM images WHERE id = ? FOR UPDATE`, imageID))
		if errors.Is(err, sql.ErrNoRows) {
			return model.Image{}, NotFoundError{Kind: "image", ID: imageID}
		}
		if err != nil {
			return model.Image{}, err
		}
		if locked.Parent() == im.Parent() {
			return locked, nil
		}
	}
	return model.Image{}, fmt.Errorf("delete image %s: parent kept changing", imageID)
}

type DeleteResult struct {
	ImageID        string   `json:"imageId"`
	SeriesID       string   `json:"seriesId"`
	PrimaryCleared bool     `json:"primaryCleared"`
	Reparented     []string `json:"reparented,omitempty"`
}

// DeleteImageWithCleanup deletes the image and keeps dependent state consistent:
// the series primary pointer is cleared when it named the image, and direct children
// are re-parented to the deleted image's parent (or promoted to roots).
func (s *Store) DeleteImageWithCleanup(ctx context.Context, imageID string) (DeleteResult, error) {
	var out DeleteResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		im, err := s.lockForDelete(ctx, tx, imageID)
		if err != nil {
			return err
		}
		out = DeleteResult{ImageID: im.ID, SeriesID: im.SeriesID}

		kids, err := s.childrenOf(ctx, tx, im.ID)
		if err != nil {
			return err
		}
		for _, k := range kids {
			if _, err := s.exec(ctx, tx, `UPDATE images SET parent_id = ? WHERE id = ?`, nullString(im.ParentID), k.ID); err != nil {
				return err
			}
			out.Reparented = append(out.Reparented, k.ID)
		}

		res, err := s.exec(ctx, tx, `UPDATE series SET primary_image_id = NULL WHERE id = ? AND primary_image_id = ?`, im.SeriesID, im.ID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			out.PrimaryCleared = true
		}
		return s.deleteImageRows(ctx, tx, im.ID)
	})
	if err != nil {
		return DeleteResult{}, err
	}
	return out, nil
}
