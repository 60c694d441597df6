package actions

import (
	"context"
	"encoding/base64"
	"errors"
	"mime"
	"path/filepath"
	"strings"

	"cog-cli/internal/model"
	"cog-cli/internal/store"

	"go.uber.org/zap"
)

// Local serves actions from a store in this process.
type Local struct {
	Store *store.Store
	Gen   Generator
	Log   *zap.Logger
}

func NewLocal(st *store.Store, gen Generator, log *zap.Logger) *Local {
	if gen == nil {
		gen = CopyGenerator{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Local{Store: st, Gen: gen, Log: log}
}

// wrap converts store and generator failures into *Error values.
func (l *Local) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	l.Log.Warn("action failed", zap.String("op", op), zap.Error(err))
	return &Error{Op: op, Msg: err.Error()}
}

func (l *Local) GetSeries(ctx context.Context, seriesID string) (model.Series, error) {
	sr, err := l.Store.GetSeries(ctx, seriesID)
	return sr, l.wrap("get series", err)
}

func (l *Local) ListImages(ctx context.Context, seriesID string) ([]model.Image, error) {
	ims, err := l.Store.ListImages(ctx, seriesID)
	return ims, l.wrap("list images", err)
}

func (l *Local) ListGroup(ctx context.Context, groupID string) ([]model.Image, error) {
	ims, err := l.Store.ListGroupImages(ctx, groupID)
	return ims, l.wrap("list group", err)
}

func (l *Local) VersionChain(ctx context.Context, imageID string) ([]model.Image, error) {
	ims, err := l.Store.VersionChain(ctx, imageID)
	return ims, l.wrap("version chain", err)
}

func (l *Local) ListTags(ctx context.Context, seriesID string) ([]model.Tag, error) {
	tags, err := l.Store.ListTags(ctx, seriesID)
	return tags, l.wrap("list tags", err)
}

func (l *Local) ImageTags(ctx context.Context, seriesID string) (map[string][]string, error) {
	m, err := l.Store.ImageTagIDs(ctx, seriesID)
	return m, l.wrap("image tags", err)
}

func (l *Local) SetRating(ctx context.Context, imageID string, rating int) error {
	if rating < model.MinRating || rating > model.MaxRating {
		return Fail("set rating", "rating must be between %d and %d", model.MinRating, model.MaxRating)
	}
	_, err := l.Store.SetRating(ctx, imageID, rating)
	return l.wrap("set rating", err)
}

func (l *Local) SetPrimary(ctx context.Context, seriesID, imageID string) error {
	return l.wrap("set primary", l.Store.SetPrimary(ctx, seriesID, imageID))
}

func (l *Local) AddTag(ctx context.Context, imageID, tagID string) error {
	return l.wrap("add tag", l.Store.AddImageTag(ctx, imageID, tagID))
}

func (l *Local) RemoveTag(ctx context.Context, imageID, tagID string) error {
	return l.wrap("remove tag", l.Store.RemoveImageTag(ctx, imageID, tagID))
}

func (l *Local) SetGroup(ctx context.Context, imageIDs []string, groupID string) error {
	return l.wrap("set group", l.Store.SetGroup(ctx, imageIDs, groupID))
}

func (l *Local) DeleteImage(ctx context.Context, imageID string) (DeleteResult, error) {
	res, err := l.Store.DeleteImageWithCleanup(ctx, imageID)
	if err != nil {
		return DeleteResult{}, l.wrap("delete image", err)
	}
	return DeleteResult(res), nil
}

// derive stores data as a new version of original.
func (l *Local) derive(ctx context.Context, original model.Image, data []byte, src model.ImageSource, prompt string) (string, error) {
	parent := original.ID
	im := model.Image{
		SeriesID: original.SeriesID,
		GroupID:  original.GroupID,
		ParentID: &parent,
		Prompt:   prompt,
		Source:   src,
	}
	out, err := l.Store.AddImageBytes(ctx, im, data)
	if err != nil {
		return "", err
	}
	l.Log.Info("derived image", zap.String("from", original.ID), zap.String("id", out.ID), zap.String("source", string(src)))
	return out.ID, nil
}

func (l *Local) SaveMorph(ctx context.Context, originalImageID string, png []byte) (string, error) {
	if len(png) == 0 {
		return "", Fail("save morph", "image payload is empty")
	}
	orig, err := l.Store.GetImage(ctx, originalImageID)
	if err != nil {
		return "", l.wrap("save morph", err)
	}
	id, err := l.derive(ctx, orig, png, model.SourceMorph, orig.Prompt)
	return id, l.wrap("save morph", err)
}

func (l *Local) source(ctx context.Context, imageID string) (model.Image, []byte, string, error) {
	im, err := l.Store.GetImage(ctx, imageID)
	if err != nil {
		return model.Image{}, nil, "", err
	}
	data, err := l.Store.ReadBlob(im.StoragePath)
	if err != nil {
		return model.Image{}, nil, "", err
	}
	mt := mime.TypeByExtension(filepath.Ext(im.StoragePath))
	if mt == "" {
		mt = "image/png"
	}
	return im, data, mt, nil
}

func (l *Local) Refine(ctx context.Context, req RefineRequest) (string, error) {
	const op = "refine"
	req.Feedback = strings.TrimSpace(req.Feedback)
	if req.Feedback == "" {
		return "", Fail(op, "feedback is required")
	}
	if req.Model == "" {
		req.Model = RefineModels[0]
	}
	if !ValidModel(req.Model) {
		return "", Fail(op, "unknown model %q", req.Model)
	}
	if !ValidSize(req.Size) {
		return "", Fail(op, "unknown size %q", req.Size)
	}
	if !ValidAspectRatio(req.AspectRatio) {
		return "", Fail(op, "unknown aspect ratio %q", req.AspectRatio)
	}
	im, data, mt, err := l.source(ctx, req.ImageID)
	if err != nil {
		return "", l.wrap(op, err)
	}
	out, err := l.Gen.Edit(ctx, EditInput{
		Source:      data,
		SourceMIME:  mt,
		Instruction: req.Feedback,
		Model:       req.Model,
		Size:        req.Size,
		AspectRatio: req.AspectRatio,
	})
	if err != nil {
		return "", l.wrap(op, err)
	}
	id, err := l.derive(ctx, im, out, model.SourceRefine, req.Feedback)
	return id, l.wrap(op, err)
}

func (l *Local) Touchup(ctx context.Context, req TouchupRequest) (string, error) {
	const op = "touchup"
	if req.Mode != TouchupSpotRemoval && req.Mode != TouchupGuidedEdit {
		return "", Fail(op, "unknown mode %q", req.Mode)
	}
	mask, err := base64.StdEncoding.DecodeString(strings.TrimSpace(req.Mask))
	if err != nil || len(mask) == 0 {
		return "", Fail(op, "mask is required")
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Mode == TouchupGuidedEdit && req.Prompt == "" {
		return "", Fail(op, "instruction is required for guided edit")
	}
	instruction := req.Prompt
	if req.Mode == TouchupSpotRemoval {
		instruction = "Remove the blemishes and objects inside the masked area and fill it to match the surroundings."
	}
	im, data, mt, err := l.source(ctx, req.ImageID)
	if err != nil {
		return "", l.wrap(op, err)
	}
	out, err := l.Gen.Edit(ctx, EditInput{
		Source:      data,
		SourceMIME:  mt,
		Mask:        mask,
		Instruction: instruction,
		Model:       RefineModels[0],
	})
	if err != nil {
		return "", l.wrap(op, err)
	}
	id, err := l.derive(ctx, im, out, model.SourceTouchup, req.Prompt)
	return id, l.wrap(op, err)
}

func (l *Local) DuplicateJob(ctx context.Context, jobID string) (string, error) {
	j, err := l.Store.DuplicateJob(ctx, jobID)
	if err != nil {
		return "", l.wrap("duplicate job", err)
	}
	return j.ID, nil
}

func (l *Local) ReadBlob(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := l.Store.ReadBlob(ref)
	return b, l.wrap("read blob", err)
}

var (
	_ Actions = (*Local)(nil)
	_ Blobs   = (*Local)(nil)
)
