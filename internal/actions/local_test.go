package actions

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"cog-cli/internal/model"
	"cog-cli/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newLocal(t *testing.T) (*Local, model.Series, model.Image) {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, store.Options{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	sr, err := st.CreateSeries(ctx, "Harbor", nil, false)
	require.NoError(t, err)
	gid := store.NewGroupID()
	im, err := st.AddImageBytes(ctx, model.Image{SeriesID: sr.ID, GroupID: &gid, Prompt: "boats"}, pngBytes(t))
	require.NoError(t, err)
	return NewLocal(st, nil, nil), sr, im
}

func TestLocal_SaveMorphAppendsVersion(t *testing.T) {
	l, _, im := newLocal(t)
	ctx := context.Background()

	id, err := l.SaveMorph(ctx, im.ID, pngBytes(t))
	require.NoError(t, err)

	chain, err := l.VersionChain(ctx, id)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, im.ID, chain[0].ID)
	assert.Equal(t, model.SourceMorph, chain[1].Source)
	assert.Equal(t, im.Group(), chain[1].Group(), "derived image keeps the group")
}

func TestLocal_RefineRequiresFeedback(t *testing.T) {
	l, _, im := newLocal(t)
	_, err := l.Refine(context.Background(), RefineRequest{ImageID: im.ID, Feedback: "   "})
	var ae *Error
	require.True(t, errors.As(err, &ae), "expected *Error; got %v", err)
	assert.Equal(t, "feedback is required", ae.Msg)
}

func TestLocal_RefineRejectsUnknownEnums(t *testing.T) {
	l, _, im := newLocal(t)
	ctx := context.Background()
	_, err := l.Refine(ctx, RefineRequest{ImageID: im.ID, Feedback: "warmer", Model: "dall-e"})
	assert.Error(t, err)
	_, err = l.Refine(ctx, RefineRequest{ImageID: im.ID, Feedback: "warmer", Size: "8K"})
	assert.Error(t, err)
	_, err = l.Refine(ctx, RefineRequest{ImageID: im.ID, Feedback: "warmer", AspectRatio: "2:1"})
	assert.Error(t, err)

	id, err := l.Refine(ctx, RefineRequest{ImageID: im.ID, Feedback: "warmer", Size: "2K", AspectRatio: "16:9"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestLocal_TouchupValidation(t *testing.T) {
	l, _, im := newLocal(t)
	ctx := context.Background()
	mask := base64.StdEncoding.EncodeToString(pngBytes(t))

	_, err := l.Touchup(ctx, TouchupRequest{ImageID: im.ID, Mode: TouchupSpotRemoval})
	assert.EqualError(t, err, "touchup: mask is required")

	_, err = l.Touchup(ctx, TouchupRequest{ImageID: im.ID, Mode: TouchupGuidedEdit, Mask: mask})
	assert.EqualError(t, err, "touchup: instruction is required for guided edit")

	id, err := l.Touchup(ctx, TouchupRequest{ImageID: im.ID, Mode: TouchupSpotRemoval, Mask: mask})
	require.NoError(t, err)
	got, err := l.Store.GetImage(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.SourceTouchup, got.Source)
	assert.Equal(t, im.ID, got.Parent())
}

func TestLocal_SetRatingOutOfRange(t *testing.T) {
	l, _, im := newLocal(t)
	err := l.SetRating(context.Background(), im.ID, 9)
	assert.Error(t, err)
	assert.Contains(t, Message(err), "between 0 and 5")
}

func TestLocal_DeletePrimaryClearsPointer(t *testing.T) {
	l, sr, im := newLocal(t)
	ctx := context.Background()
	require.NoError(t, l.SetPrimary(ctx, sr.ID, im.ID))

	res, err := l.DeleteImage(ctx, im.ID)
	require.NoError(t, err)
	assert.True(t, res.PrimaryCleared)

	got, err := l.GetSeries(ctx, sr.ID)
	require.NoError(t, err)
	assert.Nil(t, got.PrimaryImageID)
}

func TestLocal_NotFoundIsExpectedFailure(t *testing.T) {
	l, _, _ := newLocal(t)
	_, err := l.DeleteImage(context.Background(), "img-missing")
	var ae *Error
	assert.True(t, errors.As(err, &ae), "expected *Error; got %T", err)
}

func TestReadBlob_RejectsTraversal(t *testing.T) {
	l, _, im := newLocal(t)
	b, err := l.ReadBlob(context.Background(), im.StoragePath)
	require.NoError(t, err)
	assert.Equal(t, pngBytes(t), b)

	_, err = l.ReadBlob(context.Background(), "../secrets")
	var ae *Error
	assert.ErrorAs(t, err, &ae)
}

func TestLimited_WaitsOnContext(t *testing.T) {
	assert.Equal(t, CopyGenerator{}, NewLimited(CopyGenerator{}, 0))

	g := NewLimited(CopyGenerator{}, 1)
	ctx := context.Background()
	_, err := g.Edit(ctx, EditInput{Source: []byte{1}})
	require.NoError(t, err, "first call uses the burst")

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = g.Edit(cctx, EditInput{Source: []byte{1}})
	assert.Error(t, err)
}
