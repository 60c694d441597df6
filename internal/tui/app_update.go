package tui

import (
	"context"
	"errors"
	"fmt"

	"cog-cli/internal/actions"
	"cog-cli/internal/editor"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case tea.KeyMsg:
		var quit bool
		cmd, quit = m.handleKey(msg)
		if quit {
			m.saveLocation()
			return m, tea.Quit
		}

	case snapshotMsg:
		if msg.seq != m.refreshSeq {
			return m, nil
		}
		if msg.err != nil {
			m.log.Warn("refresh failed", zap.String("series", m.state.SeriesID), zap.Error(msg.err))
			m.state.Err = "refresh failed: " + actions.Message(msg.err)
			break
		}
		m.state.ApplyRefresh(msg.snap)
		if !m.opened {
			m.opened = true
			m.state.Restore(m.initial)
			m.state.History.Push(m.state.Location())
		}

	case loadMsg:
		if !m.state.ApplyLoad(msg.ticket, msg.images, msg.err) {
			m.log.Debug("dropped stale load", zap.Stringer("kind", msg.ticket.Kind), zap.String("target", msg.ticket.TargetID))
		}

	case mutationMsg:
		if msg.err != nil {
			m.log.Info("mutation rolled back", zap.String("name", msg.pending.Name), zap.String("image", msg.pending.ImageID), zap.Error(msg.err))
		}
		if m.state.Settle(msg.pending, msg.err) {
			cmd = m.refresh()
		}

	case batchMsg:
		if err := msg.res.Err(); err != nil {
			m.log.Warn("batch partially failed", zap.String("op", string(msg.res.Op)), zap.Int("failed", len(msg.res.Failed)), zap.Error(err))
		}
		if m.state.SettleBatch(msg.res) {
			cmd = m.refresh()
		}

	case editMsg:
		out := m.state.FinishEdit(msg.job, msg.id, msg.err)
		if out.Orphaned {
			m.log.Warn("edit result orphaned", zap.String("mode", msg.job.Mode.String()), zap.String("image", msg.job.ImageID), zap.String("new", msg.id), zap.Error(msg.err))
		}
		if out.Refresh {
			cmd = m.refresh()
		}

	case canvasMsg:
		if msg.err != nil {
			if msg.imageID == m.canvasFor {
				m.state.Edit.Err = "could not load image: " + actions.Message(msg.err)
			}
			break
		}
		m.state.LoadCanvas(msg.imageID, msg.img)

	case thumbMsg:
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.log.Debug("preload failed", zap.String("ref", msg.ref), zap.Error(msg.err))
		}
		return m, nil

	case spinner.TickMsg:
		if !m.state.Processing() {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case storeChangedMsg:
		m.watchSeq++
		return m, tea.Batch(settleAfter(m.watchSeq), m.watch.next())

	case storeSettledMsg:
		if msg.seq != m.watchSeq {
			return m, nil
		}
		cmd = m.refresh()

	case watchErrMsg:
		m.log.Warn("store watch", zap.Error(msg.err))
		return m, m.watch.next()
	}
	return m, tea.Batch(cmd, m.sync())
}

// handleKey routes one key press. It reports quit when the editor should exit.
func (m *appModel) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if msg.Type == tea.KeyCtrlC {
		return nil, true
	}
	if m.state.TextFocus {
		return m.handleTextKey(msg), false
	}
	kc := m.state.KeyContext()
	plain := !kc.ConfirmOpen && !kc.AlertOpen && !kc.HelpOpen && !kc.EditActive && !kc.TagPanelOpen
	if plain && msg.Alt {
		switch msg.Type {
		case tea.KeyLeft:
			m.state.Back()
			return nil, false
		case tea.KeyRight:
			m.state.Forward()
			return nil, false
		}
	}
	k := editorKey(msg)
	return m.apply(editor.Dispatch(kc, k), k)
}

func (m *appModel) apply(a editor.Action, k editor.Key) (tea.Cmd, bool) {
	s := m.state
	switch a.Kind {
	case editor.ActCloseConfirm:
		s.Confirm = nil
	case editor.ActConfirm:
		c := s.Confirm
		s.Confirm = nil
		if c == nil || len(c.IDs) == 0 {
			return nil, false
		}
		if c.Kind == editor.ConfirmBatchDelete {
			return m.batch(editor.BatchDelete, "", c.IDs), false
		}
		if mut, ok := s.Delete(c.IDs[0]); ok {
			return m.mutate(mut), false
		}
	case editor.ActDismissAlert:
		s.Alert = ""
	case editor.ActCloseHelp:
		s.Help = false
	case editor.ActExitMode:
		s.ExitMode()
	case editor.ActPalette:
		return m.palette(k), false
	case editor.ActClosePanel:
		s.TagPanel = false
	case editor.ActPanel:
		if t, ok := m.panel.handle(k); ok {
			if mut, ok := s.ToggleTag(t.ID); ok {
				return m.mutate(mut), false
			}
		}
	case editor.ActExitGroup:
		s.ExitGroup()
	case editor.ActExitEditor:
		s.Closed = true
		return nil, true
	case editor.ActPrev:
		s.Prev()
	case editor.ActNext:
		s.Next()
	case editor.ActRate:
		if mut, ok := s.Rate(a.Rating); ok {
			return m.mutate(mut), false
		}
	case editor.ActZoomFit:
		s.ZoomReset()
	case editor.ActZoomOut:
		s.ZoomOut()
	case editor.ActZoomIn:
		s.ZoomIn()
	case editor.ActToggleGroup:
		s.ToggleGroup()
	case editor.ActToggleEdit:
		_ = s.ToggleEdit()
	case editor.ActVersionPrev:
		s.VersionPrev()
	case editor.ActVersionNext:
		s.VersionNext()
	case editor.ActTogglePrimary:
		if mut, ok := s.TogglePrimary(); ok {
			return m.mutate(mut), false
		}
	case editor.ActOpenTags:
		if _, ok := s.Displayed(); ok {
			s.TagPanel = true
			m.panel = newTagPanel(s.TagDefs)
		}
	case editor.ActConfirmDelete:
		s.RequestDelete()
	case editor.ActToggleSelect:
		s.ToggleSelect()
	case editor.ActHelp:
		s.Help = true
	}
	return nil, false
}

// handleTextKey feeds the palette text input. Enter commits and submits.
func (m *appModel) handleTextKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.blurInput()
		return nil
	case tea.KeyEnter:
		m.blurInput()
		return m.submit()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if target := m.textTarget(); target != nil {
		*target = m.input.Value()
	}
	return cmd
}

// palette handles keys while an edit mode owns the keyboard.
func (m *appModel) palette(k editor.Key) tea.Cmd {
	s := m.state
	mode := s.Edit.Mode
	if k.Code == editor.KeyTab {
		_ = s.CycleMode()
		return nil
	}
	if k.Code == editor.KeyCtrlS || k.Code == editor.KeyEnter {
		return m.submit()
	}
	if mode == editor.ModeRefine {
		r := &s.Edit.Refine
		switch {
		case k.Is('i'):
			return m.focusInput()
		case k.Is('m'):
			r.Model = actions.Cycle(actions.RefineModels, r.Model)
		case k.Is('s'):
			r.Size = actions.Cycle(actions.OutputSizes, r.Size)
		case k.Is('a'):
			r.AspectRatio = actions.Cycle(actions.AspectRatios, r.AspectRatio)
		}
		return nil
	}

	b := s.CursorBounds()
	step := max(b.Dx()/32, 1)
	switch k.Code {
	case editor.KeyLeft:
		s.MoveCursor(-step, 0)
	case editor.KeyRight:
		s.MoveCursor(step, 0)
	case editor.KeyUp:
		s.MoveCursor(0, -step)
	case editor.KeyDown:
		s.MoveCursor(0, step)
	case editor.KeySpace:
		s.ApplyAtCursor()
	}
	if k.Code != editor.KeyRune {
		return nil
	}

	if mode == editor.ModeMorph {
		switch k.Rune {
		case 'b':
			s.SetMorphTool(editor.ToolBloat)
		case 'p':
			s.SetMorphTool(editor.ToolPucker)
		case '[':
			s.AdjustRadius(-10)
		case ']':
			s.AdjustRadius(10)
		case '-':
			s.AdjustStrength(-10)
		case '+', '=':
			s.AdjustStrength(10)
		}
		return nil
	}

	switch k.Rune {
	case 'b':
		s.SetMaskTool(editor.ToolBrush)
	case 'x':
		s.SetMaskTool(editor.ToolEraser)
	case '[':
		s.AdjustBrush(-4)
	case ']':
		s.AdjustBrush(4)
	case '-':
		s.AdjustOpacity(-0.1)
	case '+', '=':
		s.AdjustOpacity(0.1)
	case 'i':
		if mode == editor.ModeGuidedEdit {
			return m.focusInput()
		}
	}
	return nil
}

func describeConfirm(c *editor.Confirm) (string, string) {
	if c.Kind == editor.ConfirmBatchDelete {
		return "Delete images", fmt.Sprintf("Delete %d selected images? This cannot be undone.", len(c.IDs))
	}
	return "Delete image", "Delete this image? Newer versions move up to its parent."
}
