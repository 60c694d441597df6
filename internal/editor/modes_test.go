package editor

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"cog-cli/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int) *image.NRGBA {
	m := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 4), G: uint8(y * 4), B: 10, A: 255})
		}
	}
	return m
}

func TestSwitchingFromMorphToRefine_DiscardsUnsavedCanvas(t *testing.T) {
	f := newFake("ser-1", img("a"), img("b"))
	e := open(t, f, EditorPolicy(), "a")
	s := e.State

	require.NoError(t, s.SetMode(ModeMorph))
	id, ok := s.NeedsCanvas()
	require.True(t, ok)
	require.True(t, s.LoadCanvas(id, solid(40, 40)))
	require.True(t, s.ApplyStroke(20, 20))
	require.True(t, s.Edit.Morph.HasMorphed)

	require.NoError(t, s.SetMode(ModeRefine))
	assert.False(t, s.Edit.Morph.HasMorphed)
	assert.Nil(t, s.Edit.Morph.Canvas)
	assert.Empty(t, s.Edit.Morph.Strokes)

	require.NoError(t, s.SetMode(ModeMorph))
	assert.False(t, s.Edit.Morph.HasMorphed, "returning to morph must start clean")
	_, needs := s.NeedsCanvas()
	assert.True(t, needs, "returning to morph reloads the source pixels")
}

func TestToggleMode_ReselectingReturnsToNone(t *testing.T) {
	f := newFake("ser-1", img("a"))
	e := open(t, f, EditorPolicy(), "a")
	s := e.State

	require.NoError(t, s.ToggleEdit())
	assert.Equal(t, ModeMorph, s.Edit.Mode, "edit toggle enters morph by default")
	require.NoError(t, s.ToggleMode(ModeSpotRemoval))
	assert.Equal(t, ModeSpotRemoval, s.Edit.Mode)
	require.NoError(t, s.ToggleMode(ModeSpotRemoval))
	assert.Equal(t, ModeNone, s.Edit.Mode)
}

func TestNavigatingAway_ResetsEveryModesWorkingState(t *testing.T) {
	f := newFake("ser-1", img("a"), img("b"))
	e := open(t, f, EditorPolicy(), "a")
	s := e.State

	require.NoError(t, s.SetMode(ModeGuidedEdit))
	s.Edit.Mask.Instruction = "add a hat"
	s.PaintMask(10, 10)
	s.Edit.Refine.Feedback = "stale"
	require.False(t, s.MaskEmpty())

	// Edit mode suppresses arrows at the router; a refresh that drops the image moves anyway.
	s.ReplaceImages([]model.Image{img("b")})
	assert.Equal(t, "b", displayedID(s))
	assert.True(t, s.MaskEmpty())
	assert.Empty(t, s.Edit.Mask.Instruction)
	assert.Empty(t, s.Edit.Refine.Feedback)
}

func TestEditRefusedInGroupMode_WhenExclusive(t *testing.T) {
	f := newFake("ser-1", grouped("a", "g"), grouped("b", "g"))

	e := open(t, f, EditorPolicy(), "a")
	require.True(t, e.State.ToggleGroup())
	assert.ErrorIs(t, e.State.SetMode(ModeMorph), ErrGroupExclusive)

	lb := open(t, f, LightboxPolicy(), "a")
	require.True(t, lb.State.ToggleGroup())
	assert.NoError(t, lb.State.SetMode(ModeMorph))
}

func TestEnteringGroupMode_LeavesEditModeWhenExclusive(t *testing.T) {
	f := newFake("ser-1", grouped("a", "g"), grouped("b", "g"))
	e := open(t, f, EditorPolicy(), "a")
	require.NoError(t, e.State.SetMode(ModeRefine))
	require.True(t, e.State.ToggleGroup())
	assert.Equal(t, ModeNone, e.State.Edit.Mode)
}

func TestMorphParameters_AreClamped(t *testing.T) {
	s := New(context.Background(), EditorPolicy(), "ser-1")
	defer s.Close()
	s.AdjustStrength(1000)
	s.AdjustRadius(-1000)
	assert.Equal(t, MaxStrength, s.Edit.Morph.Strength)
	assert.Equal(t, MinRadius, s.Edit.Morph.Radius)
}

func TestSubmit_ValidatesEachMode(t *testing.T) {
	f := newFake("ser-1", img("a"))
	e := open(t, f, EditorPolicy(), "a")
	s := e.State

	_, err := s.SubmitEdit()
	assert.ErrorIs(t, err, ErrNotEditing)

	require.NoError(t, s.SetMode(ModeMorph))
	_, err = s.SubmitEdit()
	assert.ErrorIs(t, err, ErrNothingToSave)

	require.NoError(t, s.SetMode(ModeRefine))
	s.Edit.Refine.Feedback = "   "
	_, err = s.SubmitEdit()
	assert.ErrorIs(t, err, ErrFeedbackRequired)
	assert.Equal(t, ErrFeedbackRequired.Error(), s.Edit.Err)

	require.NoError(t, s.SetMode(ModeGuidedEdit))
	_, err = s.SubmitEdit()
	assert.ErrorIs(t, err, ErrMaskRequired)
	s.PaintMask(5, 5)
	_, err = s.SubmitEdit()
	assert.ErrorIs(t, err, ErrInstructionRequired)

	s.SetMaskTool(ToolEraser)
	s.PaintMask(5, 5)
	assert.True(t, s.MaskEmpty(), "eraser clears the painted dab")
}

func TestSaveMorph_SuccessExitsAndRefreshes(t *testing.T) {
	f := newFake("ser-1", img("a"))
	e := open(t, f, EditorPolicy(), "a")
	s := e.State

	require.NoError(t, s.SetMode(ModeMorph))
	s.LoadCanvas("a", solid(32, 32))
	s.ApplyStroke(16, 16)

	out, err := e.Submit(context.Background())
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Equal(t, ModeNone, s.Edit.Mode)
	assert.False(t, s.Edit.Morph.HasMorphed)
	assert.Len(t, s.Images, 2, "derived image appears after refresh")
	assert.False(t, s.Processing())
}

func TestSaveMorph_FailureKeepsModeAndCanvas(t *testing.T) {
	f := newFake("ser-1", img("a"))
	f.setFail("morph", errors.New("storage unavailable"))
	e := open(t, f, EditorPolicy(), "a")
	s := e.State

	require.NoError(t, s.SetMode(ModeMorph))
	s.LoadCanvas("a", solid(32, 32))
	s.ApplyStroke(16, 16)
	canvas := s.Edit.Morph.Canvas

	_, err := e.Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t, ModeMorph, s.Edit.Mode)
	assert.True(t, s.Edit.Morph.HasMorphed)
	assert.Same(t, canvas, s.Edit.Morph.Canvas)
	assert.Equal(t, "storage unavailable", s.Edit.Err)
}

func TestRefine_AppendsVersionAndKeepsPaletteOpen(t *testing.T) {
	f := newFake("ser-1", img("a"))
	e := open(t, f, EditorPolicy(), "a")
	s := e.State

	require.NoError(t, s.SetMode(ModeRefine))
	s.Edit.Refine.Feedback = "more contrast"
	s.Edit.Refine.Size = "2K"

	out, err := e.Submit(context.Background())
	require.NoError(t, err)
	require.True(t, out.Applied)
	assert.Equal(t, ModeRefine, s.Edit.Mode)
	assert.Equal(t, out.NewID, displayedID(s))
	require.Len(t, s.Versions, 2)
	assert.Equal(t, len(s.Versions)-1, s.VersionIndex)
	assert.Empty(t, s.Edit.Refine.Feedback)
	assert.Equal(t, "2K", s.Edit.Refine.Size, "palette settings survive for the next iteration")
}

func TestEdits_AreSerializedPerImage(t *testing.T) {
	f := newFake("ser-1", img("a"))
	e := open(t, f, EditorPolicy(), "a")
	s := e.State

	require.NoError(t, s.SetMode(ModeRefine))
	s.Edit.Refine.Feedback = "first"
	job, err := s.SubmitEdit()
	require.NoError(t, err)
	assert.True(t, s.Processing())
	assert.True(t, s.ProcessingMode(ModeRefine))

	s.Edit.Refine.Feedback = "second"
	_, err = s.SubmitEdit()
	assert.ErrorIs(t, err, ErrBusy)

	id, err := job.Run(context.Background(), f)
	require.NoError(t, err)
	s.FinishEdit(job, id, nil)
	assert.False(t, s.Processing())
}

func TestEditInFlight_RefusesOtherMutationsOnThatImage(t *testing.T) {
	f := newFake("ser-1", img("a"), img("b"))
	e := open(t, f, EditorPolicy(), "a")
	s := e.State

	require.NoError(t, s.SetMode(ModeRefine))
	s.Edit.Refine.Feedback = "more contrast"
	job, err := s.SubmitEdit()
	require.NoError(t, err)

	_, ok := s.Rate(4)
	assert.False(t, ok)
	assert.Equal(t, ErrBusy.Error(), s.Err)
	_, ok = s.TogglePrimary()
	assert.False(t, ok)
	_, ok = s.ToggleTag("tag-a")
	assert.False(t, ok)
	_, ok = s.Delete("a")
	assert.False(t, ok)
	assert.False(t, s.RequestDelete())
	assert.Nil(t, s.Confirm)

	s.Selected["a"] = true
	s.Selected["b"] = true
	require.True(t, s.RequestDelete())
	assert.Equal(t, []string{"b"}, s.Confirm.IDs, "busy images are left out of a batch delete")
	s.Confirm = nil

	id, err := job.Run(context.Background(), f)
	require.NoError(t, err)
	s.FinishEdit(job, id, nil)
	_, ok = s.Rate(4)
	assert.True(t, ok)
}

func TestFinishEdit_ResultForImageNoLongerDisplayedIsOrphaned(t *testing.T) {
	f := newFake("ser-1", img("a"), img("b"))
	e := open(t, f, LightboxPolicy(), "a")
	s := e.State

	require.NoError(t, s.SetMode(ModeRefine))
	s.Edit.Refine.Feedback = "warmer"
	job, err := s.SubmitEdit()
	require.NoError(t, err)

	s.ExitMode()
	s.Next()
	require.NoError(t, s.SetMode(ModeRefine))

	id, err := job.Run(context.Background(), f)
	require.NoError(t, err)
	out := s.FinishEdit(job, id, nil)
	assert.True(t, out.Orphaned)
	assert.True(t, out.Refresh)
	assert.False(t, out.Applied)
	assert.Equal(t, "b", displayedID(s))
	assert.Empty(t, s.Versions)
}

func TestRadialWarper_ChangesOnlyInsideRadius(t *testing.T) {
	c := solid(50, 50)
	before := image.NewNRGBA(c.Rect)
	copy(before.Pix, c.Pix)

	RadialWarper{}.Warp(c, Stroke{X: 25, Y: 25, Radius: 10, Strength: 100, Tool: ToolBloat})
	assert.Equal(t, before.NRGBAAt(0, 0), c.NRGBAAt(0, 0))
	assert.Equal(t, before.NRGBAAt(25, 25), c.NRGBAAt(25, 25), "the centre maps to itself")
	assert.NotEqual(t, before.Pix, c.Pix)
}

func TestCursor_ClampedAndApplied(t *testing.T) {
	f := newFake("ser-1", img("a"))
	e := open(t, f, EditorPolicy(), "a")
	s := e.State

	assert.False(t, s.MoveCursor(1, 0), "no cursor outside edit modes")
	assert.False(t, s.ApplyAtCursor())

	require.NoError(t, s.SetMode(ModeMorph))
	assert.False(t, s.MoveCursor(1, 0), "no cursor before the canvas loads")
	require.True(t, s.LoadCanvas("a", solid(40, 20)))
	assert.Equal(t, image.Pt(20, 10), s.Edit.Morph.Cursor)
	require.True(t, s.MoveCursor(100, -100))
	assert.Equal(t, image.Pt(39, 0), s.Edit.Morph.Cursor)
	require.True(t, s.ApplyAtCursor())
	require.Len(t, s.Edit.Morph.Strokes, 1)
	assert.Equal(t, 39, s.Edit.Morph.Strokes[0].X)

	require.NoError(t, s.SetMode(ModeSpotRemoval))
	b := s.MaskBounds()
	assert.Equal(t, image.Pt(b.Dx()/2, b.Dy()/2), s.Edit.Mask.Cursor)
	require.True(t, s.MoveCursor(-b.Dx(), 0))
	assert.Equal(t, 0, s.Edit.Mask.Cursor.X)
	assert.True(t, s.MaskEmpty())
	require.True(t, s.ApplyAtCursor())
	assert.False(t, s.MaskEmpty())
}
