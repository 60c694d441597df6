package tui

import (
	"cog-cli/internal/editor"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// editorKey converts a terminal key event into the router's key type.
func editorKey(msg tea.KeyMsg) editor.Key {
	switch msg.Type {
	case tea.KeyEsc:
		return editor.Key{Code: editor.KeyEscape}
	case tea.KeyLeft:
		return editor.Key{Code: editor.KeyLeft}
	case tea.KeyRight:
		return editor.Key{Code: editor.KeyRight}
	case tea.KeyUp:
		return editor.Key{Code: editor.KeyUp}
	case tea.KeyDown:
		return editor.Key{Code: editor.KeyDown}
	case tea.KeyEnter:
		return editor.Key{Code: editor.KeyEnter}
	case tea.KeyTab:
		return editor.Key{Code: editor.KeyTab}
	case tea.KeyBackspace:
		return editor.Key{Code: editor.KeyBackspace}
	case tea.KeyDelete:
		return editor.Key{Code: editor.KeyDelete}
	case tea.KeySpace:
		return editor.Key{Code: editor.KeySpace}
	case tea.KeyCtrlS:
		return editor.Key{Code: editor.KeyCtrlS}
	case tea.KeyRunes:
		if len(msg.Runes) == 1 {
			return editor.R(msg.Runes[0])
		}
	}
	return editor.Key{Code: editor.KeyOther}
}

// keyMap documents the bindings for the help overlay. Routing itself happens in
// editor.Dispatch; these bindings only describe it.
type keyMap struct {
	Prev, Next       key.Binding
	Rate             key.Binding
	Zoom             key.Binding
	Group            key.Binding
	Edit             key.Binding
	Versions         key.Binding
	Primary          key.Binding
	Tags             key.Binding
	Select           key.Binding
	Delete           key.Binding
	History          key.Binding
	Help             key.Binding
	Exit             key.Binding
	PaletteMode      key.Binding
	PaletteTool      key.Binding
	PaletteSize      key.Binding
	PaletteCursor    key.Binding
	PaletteApply     key.Binding
	PaletteText      key.Binding
	PaletteSubmit    key.Binding
	PaletteRefineOpt key.Binding
}

func newKeyMap() keyMap {
	b := func(help, desc string, keys ...string) key.Binding {
		return key.NewBinding(key.WithKeys(keys...), key.WithHelp(help, desc))
	}
	return keyMap{
		Prev:             b("←", "previous", "left"),
		Next:             b("→", "next", "right"),
		Rate:             b("1-5", "rate (again clears)", "1", "2", "3", "4", "5"),
		Zoom:             b("-/+/0", "zoom out/in/fit", "-", "+", "0"),
		Group:            b("g", "group mode", "g"),
		Edit:             b("e", "edit palette", "e"),
		Versions:         b("[/]", "older/newer version", "[", "]"),
		Primary:          b("p", "toggle primary", "p"),
		Tags:             b("t", "tags", "t"),
		Select:           b("space", "select for batch", " "),
		Delete:           b("x/del", "delete", "x", "delete"),
		History:          b("alt+←/→", "back/forward", "alt+left", "alt+right"),
		Help:             b("?", "help", "?"),
		Exit:             b("esc", "leave group / exit", "esc"),
		PaletteMode:      b("tab", "next mode", "tab"),
		PaletteTool:      b("b/p/x", "tool", "b", "p", "x"),
		PaletteSize:      b("[/] -/+", "size / strength", "[", "]", "-", "+"),
		PaletteCursor:    b("arrows", "move cursor", "up", "down", "left", "right"),
		PaletteApply:     b("space", "stroke / paint", " "),
		PaletteText:      b("i", "type prompt", "i"),
		PaletteSubmit:    b("enter/ctrl+s", "apply", "enter", "ctrl+s"),
		PaletteRefineOpt: b("m/s/a", "model/size/aspect", "m", "s", "a"),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Prev, k.Next, k.Rate, k.Edit, k.Tags, k.Help, k.Exit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Prev, k.Next, k.History, k.Group, k.Versions, k.Zoom},
		{k.Rate, k.Primary, k.Tags, k.Select, k.Delete},
		{k.Edit, k.PaletteMode, k.PaletteTool, k.PaletteSize, k.PaletteCursor, k.PaletteApply},
		{k.PaletteText, k.PaletteRefineOpt, k.PaletteSubmit, k.Help, k.Exit},
	}
}

// paletteHelp is the short help shown while an edit mode owns the keyboard.
func (k keyMap) paletteHelp(m editor.Mode) []key.Binding {
	switch m {
	case editor.ModeRefine:
		return []key.Binding{k.PaletteText, k.PaletteRefineOpt, k.PaletteSubmit, k.PaletteMode, k.Exit}
	case editor.ModeGuidedEdit:
		return []key.Binding{k.PaletteCursor, k.PaletteApply, k.PaletteTool, k.PaletteText, k.PaletteSubmit, k.Exit}
	default:
		return []key.Binding{k.PaletteCursor, k.PaletteApply, k.PaletteTool, k.PaletteSize, k.PaletteSubmit, k.Exit}
	}
}
