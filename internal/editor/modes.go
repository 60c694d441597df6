package editor

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/draw"
	"image/png"
	"strings"

	"cog-cli/internal/actions"
	"cog-cli/internal/model"
)

type Mode string

const (
	ModeNone        Mode = ""
	ModeMorph       Mode = "morph"
	ModeRefine      Mode = "refine"
	ModeSpotRemoval Mode = "spot_removal"
	ModeGuidedEdit  Mode = "guided_edit"
)

func (m Mode) String() string {
	if m == ModeNone {
		return "none"
	}
	return string(m)
}

// Modes lists the edit modes in palette order.
var Modes = []Mode{ModeMorph, ModeRefine, ModeSpotRemoval, ModeGuidedEdit}

const (
	MinStrength     = 10
	MaxStrength     = 100
	MinRadius       = 20
	MaxRadius       = 200
	MinBrush        = 4
	MaxBrush        = 128
	defaultStrength = 50
	defaultRadius   = 80
	defaultBrush    = 24
	defaultOpacity  = 0.5
	fallbackMaskDim = 256
)

var (
	ErrGroupExclusive      = errors.New("leave group mode before editing")
	ErrNotEditing          = errors.New("no edit mode is active")
	ErrBusy                = errors.New("an edit for this image is still processing")
	ErrNothingToSave       = errors.New("nothing to save")
	ErrFeedbackRequired    = errors.New("feedback is required")
	ErrMaskRequired        = errors.New("paint a mask first")
	ErrInstructionRequired = errors.New("an instruction is required")
	ErrNoImage             = errors.New("no image is displayed")
)

type MaskTool string

const (
	ToolBrush  MaskTool = "brush"
	ToolEraser MaskTool = "eraser"
)

type MorphState struct {
	Tool       MorphTool
	Strength   int
	Radius     int
	HasMorphed bool
	Canvas     *image.NRGBA
	Strokes    []Stroke
	Cursor     image.Point
}

type RefineState struct {
	Feedback    string
	Model       string
	Size        string
	AspectRatio string
}

// MaskState is shared by spot removal and guided edit.
type MaskState struct {
	Tool        MaskTool
	BrushSize   int
	Opacity     float64
	Raster      *image.Alpha
	Instruction string
	Cursor      image.Point
}

// EditState is the active mode plus every mode's working state.
type EditState struct {
	Mode   Mode
	Morph  MorphState
	Refine RefineState
	Mask   MaskState
	Err    string
}

func (e *EditState) reset() {
	e.Mode = ModeNone
	e.resetWorking()
}

// resetWorking restores defaults for all modes, active or not.
func (e *EditState) resetWorking() {
	e.Morph = MorphState{Tool: ToolBloat, Strength: defaultStrength, Radius: defaultRadius}
	e.Refine = RefineState{Model: actions.RefineModels[0], Size: actions.OutputSizes[0], AspectRatio: actions.AspectRatios[0]}
	e.Mask = MaskState{Tool: ToolBrush, BrushSize: defaultBrush, Opacity: defaultOpacity}
	e.Err = ""
}

// CanEdit reports whether a mode may be entered now.
func (s *State) CanEdit() error {
	if _, ok := s.Displayed(); !ok {
		return ErrNoImage
	}
	if s.Policy.GroupEditExclusive && s.GroupMode {
		return ErrGroupExclusive
	}
	return nil
}

// SetMode makes m the active mode, leaving whatever was active before.
func (s *State) SetMode(m Mode) error {
	if m == ModeNone {
		s.ExitMode()
		return nil
	}
	if s.Edit.Mode == m {
		return nil
	}
	if err := s.CanEdit(); err != nil {
		s.Err = err.Error()
		return err
	}
	s.Edit.resetWorking()
	s.Edit.Mode = m
	if maskMode(m) {
		b := s.MaskBounds()
		s.Edit.Mask.Cursor = image.Pt(b.Dx()/2, b.Dy()/2)
	}
	return nil
}

// ToggleMode enters m, or returns to none when m is already active.
func (s *State) ToggleMode(m Mode) error {
	if s.Edit.Mode == m {
		s.ExitMode()
		return nil
	}
	return s.SetMode(m)
}

// ToggleEdit enters morph from none, otherwise leaves the active mode.
func (s *State) ToggleEdit() error {
	if s.Edit.Mode != ModeNone {
		s.ExitMode()
		return nil
	}
	return s.SetMode(ModeMorph)
}

// CycleMode moves to the next mode in palette order.
func (s *State) CycleMode() error {
	next := Modes[0]
	for i, m := range Modes {
		if m == s.Edit.Mode {
			next = Modes[(i+1)%len(Modes)]
		}
	}
	return s.SetMode(next)
}

func (s *State) ExitMode() { s.Edit.reset() }

// Processing is true while any edit is in flight.
func (s *State) Processing() bool { return len(s.inflight) > 0 }

// ProcessingMode reports whether an edit of mode m is in flight.
func (s *State) ProcessingMode(m Mode) bool {
	for _, v := range s.inflight {
		if v == m {
			return true
		}
	}
	return false
}

// Busy reports whether imageID has an edit in flight.
func (s *State) Busy(imageID string) bool {
	_, ok := s.inflight[imageID]
	return ok
}

// NeedsCanvas reports the image whose pixels the morph canvas is waiting for.
func (s *State) NeedsCanvas() (string, bool) {
	if s.Edit.Mode != ModeMorph || s.Edit.Morph.Canvas != nil {
		return "", false
	}
	im, ok := s.Displayed()
	return im.ID, ok
}

// LoadCanvas installs the source pixels for imageID as the morph working canvas.
func (s *State) LoadCanvas(imageID string, src image.Image) bool {
	im, ok := s.Displayed()
	if !ok || im.ID != imageID || s.Edit.Mode != ModeMorph || src == nil {
		return false
	}
	b := src.Bounds()
	c := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(c, c.Rect, src, b.Min, draw.Src)
	s.Edit.Morph.Canvas = c
	s.Edit.Morph.Cursor = image.Pt(c.Rect.Dx()/2, c.Rect.Dy()/2)
	return true
}

func (s *State) SetMorphTool(t MorphTool) { s.Edit.Morph.Tool = t }

func (s *State) AdjustStrength(delta int) {
	s.Edit.Morph.Strength = clampInt(s.Edit.Morph.Strength+delta, MinStrength, MaxStrength)
}

func (s *State) AdjustRadius(delta int) {
	s.Edit.Morph.Radius = clampInt(s.Edit.Morph.Radius+delta, MinRadius, MaxRadius)
}

// ApplyStroke warps the canvas at (x, y) with the current tool settings.
func (s *State) ApplyStroke(x, y int) bool {
	m := &s.Edit.Morph
	if s.Edit.Mode != ModeMorph || m.Canvas == nil {
		return false
	}
	st := Stroke{X: x, Y: y, Radius: m.Radius, Strength: m.Strength, Tool: m.Tool}
	s.Warper.Warp(m.Canvas, st)
	m.Strokes = append(m.Strokes, st)
	m.HasMorphed = true
	return true
}

func (s *State) SetMaskTool(t MaskTool) { s.Edit.Mask.Tool = t }

func (s *State) AdjustBrush(delta int) {
	s.Edit.Mask.BrushSize = clampInt(s.Edit.Mask.BrushSize+delta, MinBrush, MaxBrush)
}

func (s *State) AdjustOpacity(delta float64) {
	s.Edit.Mask.Opacity = max(0.1, min(1, s.Edit.Mask.Opacity+delta))
}

func maskMode(m Mode) bool { return m == ModeSpotRemoval || m == ModeGuidedEdit }

// MaskBounds is the mask raster size for the displayed image.
func (s *State) MaskBounds() image.Rectangle {
	if r := s.Edit.Mask.Raster; r != nil {
		return r.Rect
	}
	w, h := fallbackMaskDim, fallbackMaskDim
	if im, ok := s.Displayed(); ok && im.Width > 0 && im.Height > 0 {
		w, h = im.Width, im.Height
	}
	return image.Rect(0, 0, w, h)
}

// PaintMask paints (or erases) a brush dab at (x, y).
func (s *State) PaintMask(x, y int) bool {
	if !maskMode(s.Edit.Mode) {
		return false
	}
	mk := &s.Edit.Mask
	if mk.Raster == nil {
		mk.Raster = image.NewAlpha(s.MaskBounds())
	}
	paintDisc(mk.Raster, x, y, mk.BrushSize, mk.Tool == ToolEraser)
	return true
}

// MaskEmpty reports whether no pixel is painted.
func (s *State) MaskEmpty() bool {
	r := s.Edit.Mask.Raster
	if r == nil {
		return true
	}
	for _, a := range r.Pix {
		if a != 0 {
			return false
		}
	}
	return true
}

// MaskPayload encodes the mask as a base64 PNG.
func (s *State) MaskPayload() (string, error) {
	if s.MaskEmpty() {
		return "", ErrMaskRequired
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, s.Edit.Mask.Raster); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// EditJob is a submitted edit, ready to run against the backend.
type EditJob struct {
	Mode    Mode
	ImageID string
	Morph   []byte
	Refine  actions.RefineRequest
	Touchup actions.TouchupRequest
}

// Run performs the remote call for the job and returns the new image id.
func (j EditJob) Run(ctx context.Context, a actions.Actions) (string, error) {
	switch j.Mode {
	case ModeMorph:
		return a.SaveMorph(ctx, j.ImageID, j.Morph)
	case ModeRefine:
		return a.Refine(ctx, j.Refine)
	case ModeSpotRemoval, ModeGuidedEdit:
		return a.Touchup(ctx, j.Touchup)
	}
	return "", ErrNotEditing
}

// SubmitEdit validates the active mode and marks its image as processing. Failures
// are recorded on the edit state and returned.
func (s *State) SubmitEdit() (EditJob, error) {
	job, err := s.buildJob()
	if err != nil {
		s.Edit.Err = err.Error()
		return EditJob{}, err
	}
	s.Edit.Err = ""
	s.inflight[job.ImageID] = job.Mode
	return job, nil
}

func (s *State) buildJob() (EditJob, error) {
	if s.Edit.Mode == ModeNone {
		return EditJob{}, ErrNotEditing
	}
	im, ok := s.Displayed()
	if !ok {
		return EditJob{}, ErrNoImage
	}
	if s.Busy(im.ID) {
		return EditJob{}, ErrBusy
	}
	job := EditJob{Mode: s.Edit.Mode, ImageID: im.ID}
	switch s.Edit.Mode {
	case ModeMorph:
		m := s.Edit.Morph
		if !m.HasMorphed || m.Canvas == nil {
			return EditJob{}, ErrNothingToSave
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, m.Canvas); err != nil {
			return EditJob{}, err
		}
		job.Morph = buf.Bytes()
	case ModeRefine:
		r := s.Edit.Refine
		if strings.TrimSpace(r.Feedback) == "" {
			return EditJob{}, ErrFeedbackRequired
		}
		job.Refine = actions.RefineRequest{
			ImageID:     im.ID,
			Feedback:    strings.TrimSpace(r.Feedback),
			Model:       r.Model,
			Size:        r.Size,
			AspectRatio: r.AspectRatio,
		}
	case ModeSpotRemoval, ModeGuidedEdit:
		mask, err := s.MaskPayload()
		if err != nil {
			return EditJob{}, err
		}
		req := actions.TouchupRequest{ImageID: im.ID, Mask: mask, Mode: actions.TouchupSpotRemoval}
		if s.Edit.Mode == ModeGuidedEdit {
			instr := strings.TrimSpace(s.Edit.Mask.Instruction)
			if instr == "" {
				return EditJob{}, ErrInstructionRequired
			}
			req.Mode = actions.TouchupGuidedEdit
			req.Prompt = instr
		}
		job.Touchup = req
	}
	return job, nil
}

// EditOutcome says what FinishEdit did with a result.
type EditOutcome struct {
	Applied bool
	// Orphaned is set when the image was no longer displayed; the result is not
	// applied to the working state.
	Orphaned bool
	// Refresh asks the host to refresh the image list.
	Refresh bool
	NewID   string
}

// FinishEdit applies the result of a job. Results for an image that is no longer
// displayed are not applied.
func (s *State) FinishEdit(job EditJob, newID string, err error) EditOutcome {
	delete(s.inflight, job.ImageID)
	shown, ok := s.Displayed()
	here := ok && shown.ID == job.ImageID && !s.Closed

	if err != nil {
		if here && s.Edit.Mode == job.Mode {
			s.Edit.Err = actions.Message(err)
			return EditOutcome{}
		}
		s.Err = job.Mode.String() + " failed: " + actions.Message(err)
		return EditOutcome{Orphaned: true}
	}

	out := EditOutcome{Refresh: true, NewID: newID}
	if !here {
		out.Orphaned = true
		return out
	}
	out.Applied = true
	switch job.Mode {
	case ModeMorph:
		s.ExitMode()
	case ModeRefine:
		s.appendVersion(shown, newID)
		s.Edit.Refine.Feedback = ""
	case ModeSpotRemoval, ModeGuidedEdit:
		s.ExitMode()
		s.appendVersion(shown, newID)
	}
	return out
}

// appendVersion adds newID as the child of from and shows it. The refresh that
// follows replaces the placeholder with the stored image.
func (s *State) appendVersion(from model.Image, newID string) {
	parent := from.ID
	child := model.Image{
		ID:          newID,
		SeriesID:    from.SeriesID,
		GroupID:     from.GroupID,
		ParentID:    &parent,
		StoragePath: from.StoragePath,
		Width:       from.Width,
		Height:      from.Height,
	}
	chain := s.Versions
	if len(chain) == 0 {
		chain = []model.Image{from}
	} else if i := indexOf(chain, from.ID); i >= 0 {
		chain = chain[:i+1]
	}
	s.Versions = append(append([]model.Image(nil), chain...), child)
	s.VersionIndex = len(s.Versions) - 1
	s.lastDisplayed = newID
	s.versionLoad.stale = true
}

// CursorBounds is the pixel area the active tool cursor moves in.
func (s *State) CursorBounds() image.Rectangle {
	if s.Edit.Mode == ModeMorph {
		if c := s.Edit.Morph.Canvas; c != nil {
			return c.Rect
		}
		return image.Rectangle{}
	}
	if maskMode(s.Edit.Mode) {
		return s.MaskBounds()
	}
	return image.Rectangle{}
}

// MoveCursor shifts the active tool cursor by (dx, dy) pixels, clamped to CursorBounds.
func (s *State) MoveCursor(dx, dy int) bool {
	b := s.CursorBounds()
	if b.Empty() {
		return false
	}
	cur := &s.Edit.Morph.Cursor
	if maskMode(s.Edit.Mode) {
		cur = &s.Edit.Mask.Cursor
	}
	cur.X = clampInt(cur.X+dx, b.Min.X, b.Max.X-1)
	cur.Y = clampInt(cur.Y+dy, b.Min.Y, b.Max.Y-1)
	return true
}

// ApplyAtCursor runs the active tool once at its cursor.
func (s *State) ApplyAtCursor() bool {
	switch {
	case s.Edit.Mode == ModeMorph:
		c := s.Edit.Morph.Cursor
		return s.ApplyStroke(c.X, c.Y)
	case maskMode(s.Edit.Mode):
		c := s.Edit.Mask.Cursor
		return s.PaintMask(c.X, c.Y)
	}
	return false
}
