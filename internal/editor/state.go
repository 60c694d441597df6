// Package editor holds the state of the image-series editor: navigation across the
// series, group and version scopes, the edit-mode machine, key dispatch, optimistic
// mutations and preload planning. State itself performs no I/O; hosts run the remote
// calls it describes (or use the helpers in gateway.go) and feed the results back.
package editor

import (
	"context"

	"cog-cli/internal/model"
)

// Policy captures the differences between editor variants.
type Policy struct {
	// Wrap makes prev/next wrap around at the ends instead of clamping.
	Wrap bool
	// GroupEditExclusive refuses edit modes while group mode is on.
	GroupEditExclusive bool
	// PreloadRadius is how many flat neighbours on each side are warmed.
	PreloadRadius int
}

// EditorPolicy is the full editor: clamped navigation, group and edit are exclusive.
func EditorPolicy() Policy {
	return Policy{Wrap: false, GroupEditExclusive: true, PreloadRadius: 3}
}

// LightboxPolicy is the gallery lightbox: navigation wraps around.
func LightboxPolicy() Policy {
	return Policy{Wrap: true, GroupEditExclusive: false, PreloadRadius: 3}
}

const (
	ZoomFit  = 100
	ZoomMin  = 25
	ZoomMax  = 400
	zoomStep = 25
)

// State is the complete editor state. It is owned by a single goroutine.
type State struct {
	Policy   Policy
	SeriesID string
	Title    string
	// PrimaryID mirrors the series primary pointer. Empty means none.
	PrimaryID string

	Images []model.Image
	Index  int

	GroupMode  bool
	Group      []model.Image
	GroupIndex int

	// Versions is the chain root->latest for the displayed base image. It is only
	// kept when the chain has more than one entry.
	Versions     []model.Image
	VersionIndex int

	// Tags maps image id to tag ids. TagDefs are the tags visible in the series.
	Tags    map[string][]string
	TagDefs []model.Tag

	Zoom int
	Edit EditState
	// Warper applies morph strokes to the working canvas.
	Warper Warper

	Confirm  *Confirm
	TagPanel bool
	Help     bool
	// TextFocus is set by the host while a text input owns the keyboard.
	TextFocus bool

	// Selected holds ids picked for batch operations.
	Selected map[string]bool

	// Err is an inline error near the control that failed; Alert blocks until dismissed.
	Err   string
	Alert string

	// Closed is set when the editor exits back to the grid.
	Closed bool

	History History

	ctx         context.Context
	cancel      context.CancelFunc
	groupLoad   loadSlot
	versionLoad loadSlot
	loadSeq     uint64
	mutSeq      uint64

	// inflight maps an image id to the edit running against it.
	inflight map[string]Mode

	// lastDisplayed is the id the edit working state belongs to.
	lastDisplayed string
}

// ConfirmKind names what a confirmation dialog is guarding.
type ConfirmKind int

const (
	ConfirmDelete ConfirmKind = iota
	ConfirmBatchDelete
)

type Confirm struct {
	Kind ConfirmKind
	IDs  []string
}

// New returns an empty editor for seriesID. Cancelling ctx cancels every in-flight load.
func New(ctx context.Context, policy Policy, seriesID string) *State {
	if ctx == nil {
		ctx = context.Background()
	}
	if policy.PreloadRadius < 0 {
		policy.PreloadRadius = 0
	}
	cctx, cancel := context.WithCancel(ctx)
	s := &State{
		Policy:   policy,
		SeriesID: seriesID,
		Tags:     map[string][]string{},
		Selected: map[string]bool{},
		Zoom:     ZoomFit,
		Warper:   RadialWarper{},
		ctx:      cctx,
		cancel:   cancel,
		inflight: map[string]Mode{},
	}
	s.Edit.reset()
	return s
}

// Close exits the editor and cancels in-flight loads.
func (s *State) Close() {
	s.Closed = true
	s.groupLoad.cancel()
	s.versionLoad.cancel()
	s.cancel()
}

// Current is the image at the flat index. ok is false while loading or when the
// series is empty.
func (s *State) Current() (model.Image, bool) {
	if s.Index < 0 || s.Index >= len(s.Images) {
		return model.Image{}, false
	}
	return s.Images[s.Index], true
}

// Base is the image navigation points at: the group image in group mode (once the
// group has loaded), otherwise the current image.
func (s *State) Base() (model.Image, bool) {
	if s.GroupMode && s.GroupIndex >= 0 && s.GroupIndex < len(s.Group) {
		return s.Group[s.GroupIndex], true
	}
	return s.Current()
}

// Displayed is the image on screen: the selected version of the base image when a
// version chain is loaded, otherwise the base image.
func (s *State) Displayed() (model.Image, bool) {
	base, ok := s.Base()
	if !ok {
		return model.Image{}, false
	}
	if s.VersionIndex >= 0 && s.VersionIndex < len(s.Versions) {
		return s.Versions[s.VersionIndex], true
	}
	return base, true
}

// Empty reports that there is nothing to display.
func (s *State) Empty() bool { return len(s.Images) == 0 }

// GroupSize counts the members of the current image's group in the flat list.
func (s *State) GroupSize() int {
	cur, ok := s.Current()
	if !ok || !cur.InGroup() {
		return 0
	}
	n := 0
	for _, im := range s.Images {
		if im.Group() == cur.Group() {
			n++
		}
	}
	return n
}

// Image finds id in any loaded list.
func (s *State) Image(id string) (model.Image, bool) {
	for _, list := range [][]model.Image{s.Images, s.Group, s.Versions} {
		if i := indexOf(list, id); i >= 0 {
			return list[i], true
		}
	}
	return model.Image{}, false
}

// Location is the address for the current state.
func (s *State) Location() Location {
	loc := Location{SeriesID: s.SeriesID, Group: s.GroupMode}
	if cur, ok := s.Current(); ok {
		loc.ImageID = cur.ID
	}
	return loc
}

func (s *State) ZoomIn()  { s.Zoom = min(s.Zoom+zoomStep, ZoomMax) }
func (s *State) ZoomOut() { s.Zoom = max(s.Zoom-zoomStep, ZoomMin) }
func (s *State) ZoomReset() {
	s.Zoom = ZoomFit
}

// KeyContext derives the routing context from the state.
func (s *State) KeyContext() KeyContext {
	return KeyContext{
		TextFocus:    s.TextFocus,
		ConfirmOpen:  s.Confirm != nil,
		AlertOpen:    s.Alert != "",
		HelpOpen:     s.Help,
		EditActive:   s.Edit.Mode != ModeNone,
		TagPanelOpen: s.TagPanel,
		GroupMode:    s.GroupMode,
		GroupSize:    s.GroupSize(),
		Selection:    len(s.Selected),
	}
}

func indexOf(list []model.Image, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}
