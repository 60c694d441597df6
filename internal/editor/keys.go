package editor

type KeyCode int

const (
	KeyRune KeyCode = iota
	KeyEscape
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
	KeyEnter
	KeyTab
	KeyBackspace
	KeyDelete
	KeySpace
	KeyCtrlS
	KeyOther
)

// Key is a terminal-independent key press.
type Key struct {
	Code KeyCode
	Rune rune
}

func R(r rune) Key { return Key{Code: KeyRune, Rune: r} }

// Is reports whether k is the printable rune r.
func (k Key) Is(r rune) bool { return k.Code == KeyRune && k.Rune == r }

// KeyContext is everything dispatch needs to know about the open overlays.
type KeyContext struct {
	TextFocus    bool
	ConfirmOpen  bool
	AlertOpen    bool
	HelpOpen     bool
	EditActive   bool
	TagPanelOpen bool
	GroupMode    bool
	GroupSize    int
	Selection    int
}

type ActionKind int

const (
	ActNone ActionKind = iota
	ActCloseConfirm
	ActConfirm
	ActDismissAlert
	ActCloseHelp
	ActExitMode
	// ActPalette forwards the key to the active edit palette.
	ActPalette
	ActClosePanel
	// ActPanel forwards the key to the tag panel.
	ActPanel
	ActExitGroup
	ActExitEditor
	ActPrev
	ActNext
	ActRate
	ActZoomFit
	ActZoomOut
	ActZoomIn
	ActToggleGroup
	ActToggleEdit
	ActVersionPrev
	ActVersionNext
	ActTogglePrimary
	ActOpenTags
	ActConfirmDelete
	ActToggleSelect
	ActHelp
)

var actionNames = map[ActionKind]string{
	ActNone:          "none",
	ActCloseConfirm:  "close-confirm",
	ActConfirm:       "confirm",
	ActDismissAlert:  "dismiss-alert",
	ActCloseHelp:     "close-help",
	ActExitMode:      "exit-mode",
	ActPalette:       "palette",
	ActClosePanel:    "close-panel",
	ActPanel:         "panel",
	ActExitGroup:     "exit-group",
	ActExitEditor:    "exit-editor",
	ActPrev:          "prev",
	ActNext:          "next",
	ActRate:          "rate",
	ActZoomFit:       "zoom-fit",
	ActZoomOut:       "zoom-out",
	ActZoomIn:        "zoom-in",
	ActToggleGroup:   "toggle-group",
	ActToggleEdit:    "toggle-edit",
	ActVersionPrev:   "version-prev",
	ActVersionNext:   "version-next",
	ActTogglePrimary: "toggle-primary",
	ActOpenTags:      "open-tags",
	ActConfirmDelete: "confirm-delete",
	ActToggleSelect:  "toggle-select",
	ActHelp:          "help",
}

func (k ActionKind) String() string { return actionNames[k] }

// Action is the result of dispatching one key.
type Action struct {
	Kind ActionKind
	// Rating is set for ActRate.
	Rating int
}

func act(k ActionKind) Action { return Action{Kind: k} }

// Dispatch maps a key to an action. It is re-evaluated from ctx on every key; the
// first matching layer wins.
func Dispatch(ctx KeyContext, k Key) Action {
	switch {
	case ctx.TextFocus:
		return act(ActNone)
	case ctx.ConfirmOpen:
		switch {
		case k.Code == KeyEscape:
			return act(ActCloseConfirm)
		case k.Code == KeyEnter, k.Code == KeyRune && (k.Rune == 'y' || k.Rune == 'Y'):
			return act(ActConfirm)
		}
		return act(ActNone)
	case ctx.AlertOpen:
		if k.Code == KeyEscape || k.Code == KeyEnter {
			return act(ActDismissAlert)
		}
		return act(ActNone)
	case ctx.HelpOpen:
		if k.Code == KeyEscape || k.Code == KeyRune && k.Rune == '?' {
			return act(ActCloseHelp)
		}
		return act(ActNone)
	case ctx.EditActive:
		if k.Code == KeyEscape {
			return act(ActExitMode)
		}
		return act(ActPalette)
	case ctx.TagPanelOpen:
		if k.Code == KeyEscape {
			return act(ActClosePanel)
		}
		return act(ActPanel)
	}
	return dispatchTable(ctx, k)
}

func dispatchTable(ctx KeyContext, k Key) Action {
	switch k.Code {
	case KeyEscape:
		if ctx.GroupMode {
			return act(ActExitGroup)
		}
		return act(ActExitEditor)
	case KeyLeft:
		return act(ActPrev)
	case KeyRight:
		return act(ActNext)
	case KeyDelete:
		return act(ActConfirmDelete)
	case KeySpace:
		return act(ActToggleSelect)
	case KeyRune:
	default:
		return act(ActNone)
	}

	switch r := k.Rune; {
	case r >= '1' && r <= '5':
		return Action{Kind: ActRate, Rating: int(r - '0')}
	case r == '0':
		return act(ActZoomFit)
	case r == '-' || r == '_':
		return act(ActZoomOut)
	case r == '+' || r == '=':
		return act(ActZoomIn)
	case r == 'g' || r == 'G':
		if ctx.GroupMode || ctx.GroupSize > 1 {
			return act(ActToggleGroup)
		}
	case r == 'e' || r == 'E':
		return act(ActToggleEdit)
	case r == '[':
		return act(ActVersionPrev)
	case r == ']':
		return act(ActVersionNext)
	case r == 'p':
		return act(ActTogglePrimary)
	case r == 't':
		return act(ActOpenTags)
	case r == 'x':
		return act(ActConfirmDelete)
	case r == '?':
		return act(ActHelp)
	}
	return act(ActNone)
}
