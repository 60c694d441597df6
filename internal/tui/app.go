package tui

import (
	"bytes"
	"context"
	"image"
	"strings"

	"cog-cli/internal/actions"
	"cog-cli/internal/editor"
	"cog-cli/internal/model"
	"cog-cli/internal/store"
	"cog-cli/internal/thumbs"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/termenv"
	"go.uber.org/zap"
)

// Messages carrying results of background work back to Update. Work started from a
// state that has since moved on is filtered by the editor (tickets, pending
// mutations) or by a sequence number here.
type (
	snapshotMsg struct {
		seq  uint64
		snap editor.Snapshot
		err  error
	}
	loadMsg struct {
		ticket editor.LoadTicket
		images []model.Image
		err    error
	}
	mutationMsg struct {
		pending *editor.Pending
		err     error
	}
	editMsg struct {
		job editor.EditJob
		id  string
		err error
	}
	batchMsg struct {
		res editor.BatchResult
	}
	canvasMsg struct {
		imageID string
		img     image.Image
		err     error
	}
	thumbMsg struct {
		ref string
		err error
	}
)

type appModel struct {
	ctx     context.Context
	actions actions.Actions
	blobs   actions.Blobs
	prefs   Prefs
	log     *zap.Logger

	state   *editor.State
	initial editor.Location
	opened  bool

	preload *editor.Preloader
	thumbs  *thumbs.Cache
	profile termenv.Profile
	glyphs  glyphSet

	width  int
	height int

	keys    keyMap
	help    help.Model
	spinner spinner.Model
	input   textinput.Model
	panel   tagPanel

	refreshSeq uint64
	watchSeq   uint64
	watch      *storeWatcher
	canvasFor  string
}

func newAppModel(ctx context.Context, opts Options, profile termenv.Profile) appModel {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	policy := opts.Policy
	if policy == (editor.Policy{}) {
		policy = editor.EditorPolicy()
	}
	blobs := opts.Blobs
	if blobs == nil {
		if b, ok := opts.Actions.(actions.Blobs); ok {
			blobs = b
		}
	}

	loc := opts.Location
	st := editor.New(ctx, policy, loc.SeriesID)
	if opts.Prefs != nil {
		if saved, err := opts.Prefs.LoadEditorState(); err == nil && saved != nil {
			if prev, err := editor.ParseLocation(saved.Location); err == nil && prev.SeriesID == loc.SeriesID && loc.ImageID == "" {
				loc = prev
			}
			if saved.Zoom >= editor.ZoomMin && saved.Zoom <= editor.ZoomMax {
				st.Zoom = saved.Zoom
			}
		}
	}

	m := appModel{
		ctx:     ctx,
		actions: opts.Actions,
		blobs:   blobs,
		prefs:   opts.Prefs,
		log:     log,
		state:   st,
		initial: loc,
		preload: editor.NewPreloader(ctx),
		profile: profile,
		glyphs:  glyphPreference(opts.Glyphs),
		keys:    newKeyMap(),
		help:    help.New(),
		spinner: spinner.New(spinner.WithSpinner(spinner.MiniDot)),
		input:   textinput.New(),
		width:   100,
		height:  30,
	}
	m.thumbs = thumbs.New(m.readBlob, opts.ThumbCache)
	m.input.CharLimit = 2000
	return m
}

func (m appModel) readBlob(ctx context.Context, ref string) ([]byte, error) {
	if m.blobs == nil {
		return nil, actions.Fail("read blob", "no image source configured")
	}
	return m.blobs.ReadBlob(ctx, ref)
}

func (m appModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.refresh()}
	if m.watch != nil {
		cmds = append(cmds, m.watch.next())
	}
	return tea.Batch(cmds...)
}

func (m *appModel) close() {
	m.preload.Stop()
	m.state.Close()
}

// saveLocation remembers where the editor was for the next launch. Best effort.
func (m appModel) saveLocation() {
	if m.prefs == nil || !m.opened {
		return
	}
	st := store.EditorState{Location: m.state.Location().String(), Zoom: m.state.Zoom}
	if err := m.prefs.SaveEditorState(&st); err != nil {
		m.log.Debug("save editor state", zap.Error(err))
	}
}

// refresh fetches an authoritative snapshot. Only the latest request is applied.
func (m *appModel) refresh() tea.Cmd {
	m.refreshSeq++
	seq := m.refreshSeq
	ctx, a, seriesID := m.ctx, m.actions, m.state.SeriesID
	return func() tea.Msg {
		snap, err := editor.FetchSnapshot(ctx, a, seriesID)
		return snapshotMsg{seq: seq, snap: snap, err: err}
	}
}

// sync starts whatever background work the current state calls for: list loads,
// preloads for the neighbourhood, and the morph canvas.
func (m *appModel) sync() tea.Cmd {
	var cmds []tea.Cmd
	a := m.actions
	for _, t := range m.state.Reconcile() {
		t := t
		cmds = append(cmds, func() tea.Msg {
			images, err := editor.FetchLoad(a, t)
			return loadMsg{ticket: t, images: images, err: err}
		})
	}

	w, h := m.imageBox()
	hints := editor.Plan(m.state)
	if shown, ok := m.state.Displayed(); ok && shown.StoragePath != "" {
		hints = append([]editor.Hint{{ImageID: shown.ID, StoragePath: shown.StoragePath, Priority: editor.PriorityHigh}}, hints...)
	}
	cache := m.thumbs
	for _, p := range m.preload.Update(hints) {
		p := p
		if p.StoragePath == "" || cache.Has(p.StoragePath, w, h) {
			continue
		}
		cmds = append(cmds, func() tea.Msg {
			return thumbMsg{ref: p.StoragePath, err: cache.Warm(p.Ctx, p.StoragePath, w, h)}
		})
	}

	if id, ok := m.state.NeedsCanvas(); ok && id != m.canvasFor {
		m.canvasFor = id
		im, _ := m.state.Displayed()
		ctx, ref, read := m.ctx, im.StoragePath, m.readBlob
		cmds = append(cmds, func() tea.Msg {
			b, err := read(ctx, ref)
			if err != nil {
				return canvasMsg{imageID: id, err: err}
			}
			img, _, err := image.Decode(bytes.NewReader(b))
			return canvasMsg{imageID: id, img: img, err: err}
		})
	}
	if _, ok := m.state.NeedsCanvas(); !ok {
		m.canvasFor = ""
	}
	if m.state.Processing() {
		cmds = append(cmds, m.spinner.Tick)
	}
	return tea.Batch(cmds...)
}

// mutate applies mut locally and sends it to the backend.
func (m *appModel) mutate(mut editor.Mutation) tea.Cmd {
	p := m.state.Begin(mut)
	ctx, a := m.ctx, m.actions
	return func() tea.Msg {
		return mutationMsg{pending: p, err: mut.Call(ctx, a)}
	}
}

func (m *appModel) batch(op editor.BatchOp, arg string, ids []string) tea.Cmd {
	ctx, a := m.ctx, m.actions
	return func() tea.Msg {
		return batchMsg{res: editor.Batch(ctx, a, op, arg, ids)}
	}
}

// submit starts the active edit.
func (m *appModel) submit() tea.Cmd {
	job, err := m.state.SubmitEdit()
	if err != nil {
		return nil
	}
	ctx, a := m.ctx, m.actions
	return func() tea.Msg {
		id, err := job.Run(ctx, a)
		return editMsg{job: job, id: id, err: err}
	}
}

// imageBox is the pixel box for the image pane at the current zoom.
func (m appModel) imageBox() (uint, uint) {
	cols, rows := m.imagePaneSize()
	w, h := thumbs.Box(cols, rows, m.glyphs.thumbs())
	z := uint(m.state.Zoom)
	return w * z / 100, h * z / 100
}

func (m appModel) imagePaneSize() (int, int) {
	cols := m.width - sidePanelWidth - 1
	rows := m.height - 4
	return max(cols, 10), max(rows, 4)
}

// textTarget is the field the palette text input edits in the current mode.
func (m appModel) textTarget() *string {
	switch m.state.Edit.Mode {
	case editor.ModeRefine:
		return &m.state.Edit.Refine.Feedback
	case editor.ModeGuidedEdit:
		return &m.state.Edit.Mask.Instruction
	}
	return nil
}

func (m *appModel) focusInput() tea.Cmd {
	target := m.textTarget()
	if target == nil {
		return nil
	}
	m.input.SetValue(*target)
	m.input.Placeholder = "describe the change"
	if m.state.Edit.Mode == editor.ModeGuidedEdit {
		m.input.Placeholder = "what should appear in the masked area"
	}
	m.state.TextFocus = true
	return m.input.Focus()
}

func (m *appModel) blurInput() {
	if target := m.textTarget(); target != nil {
		*target = strings.TrimSpace(m.input.Value())
	}
	m.input.Blur()
	m.state.TextFocus = false
}
