package editor

import (
	"context"
	"testing"
)

func TestDispatch_Priority(t *testing.T) {
	cases := []struct {
		name string
		ctx  KeyContext
		key  Key
		want ActionKind
	}{
		{"text focus swallows everything", KeyContext{TextFocus: true, ConfirmOpen: true}, Key{Code: KeyEscape}, ActNone},
		{"confirm honours escape", KeyContext{ConfirmOpen: true, EditActive: true}, Key{Code: KeyEscape}, ActCloseConfirm},
		{"confirm ignores arrows", KeyContext{ConfirmOpen: true}, Key{Code: KeyRight}, ActNone},
		{"confirm accepts y", KeyContext{ConfirmOpen: true}, R('y'), ActConfirm},
		{"confirm ignores rating", KeyContext{ConfirmOpen: true}, R('3'), ActNone},
		{"edit escape exits mode", KeyContext{EditActive: true, GroupMode: true}, Key{Code: KeyEscape}, ActExitMode},
		{"edit suppresses arrows", KeyContext{EditActive: true}, Key{Code: KeyRight}, ActPalette},
		{"edit suppresses rating", KeyContext{EditActive: true}, R('4'), ActPalette},
		{"tag panel escape", KeyContext{TagPanelOpen: true}, Key{Code: KeyEscape}, ActClosePanel},
		{"tag panel owns keys", KeyContext{TagPanelOpen: true}, R('j'), ActPanel},
		{"escape leaves group first", KeyContext{GroupMode: true}, Key{Code: KeyEscape}, ActExitGroup},
		{"escape exits editor", KeyContext{}, Key{Code: KeyEscape}, ActExitEditor},
		{"left", KeyContext{}, Key{Code: KeyLeft}, ActPrev},
		{"right", KeyContext{}, Key{Code: KeyRight}, ActNext},
		{"zero fits", KeyContext{}, R('0'), ActZoomFit},
		{"minus", KeyContext{}, R('-'), ActZoomOut},
		{"underscore", KeyContext{}, R('_'), ActZoomOut},
		{"plus", KeyContext{}, R('+'), ActZoomIn},
		{"equals", KeyContext{}, R('='), ActZoomIn},
		{"g needs a group", KeyContext{GroupSize: 1}, R('g'), ActNone},
		{"g with group", KeyContext{GroupSize: 2}, R('G'), ActToggleGroup},
		{"e toggles edit", KeyContext{}, R('E'), ActToggleEdit},
		{"version prev", KeyContext{}, R('['), ActVersionPrev},
		{"version next", KeyContext{}, R(']'), ActVersionNext},
		{"primary", KeyContext{}, R('p'), ActTogglePrimary},
		{"tags", KeyContext{}, R('t'), ActOpenTags},
		{"delete key", KeyContext{}, Key{Code: KeyDelete}, ActConfirmDelete},
		{"x deletes", KeyContext{}, R('x'), ActConfirmDelete},
		{"space selects", KeyContext{}, Key{Code: KeySpace}, ActToggleSelect},
		{"help", KeyContext{}, R('?'), ActHelp},
		{"help closes", KeyContext{HelpOpen: true}, R('?'), ActCloseHelp},
		{"unbound", KeyContext{}, R('z'), ActNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Dispatch(tc.ctx, tc.key)
			if got.Kind != tc.want {
				t.Fatalf("expected %s; got %s", tc.want, got.Kind)
			}
		})
	}
}

func TestDispatch_Rating(t *testing.T) {
	for r := '1'; r <= '5'; r++ {
		got := Dispatch(KeyContext{}, R(r))
		if got.Kind != ActRate || got.Rating != int(r-'0') {
			t.Fatalf("expected rate %c; got %+v", r, got)
		}
	}
}

func TestDispatch_DerivedFreshFromState(t *testing.T) {
	s := New(context.Background(), EditorPolicy(), "ser-1")
	defer s.Close()

	if got := Dispatch(s.KeyContext(), Key{Code: KeyRight}); got.Kind != ActNext {
		t.Fatalf("expected next; got %s", got.Kind)
	}
	s.Confirm = &Confirm{Kind: ConfirmDelete}
	if got := Dispatch(s.KeyContext(), Key{Code: KeyRight}); got.Kind != ActNone {
		t.Fatalf("expected confirm to block arrows; got %s", got.Kind)
	}
	s.Confirm = nil
	s.Edit.Mode = ModeRefine
	if got := Dispatch(s.KeyContext(), Key{Code: KeyRight}); got.Kind != ActPalette {
		t.Fatalf("expected palette to own arrows; got %s", got.Kind)
	}
}

func TestEndToEnd_ArrowRightClampsAtLastImage(t *testing.T) {
	f := newFake("ser-1", img("A"), img("B"), img("C"))
	e := open(t, f, EditorPolicy(), "B")
	s := e.State
	if s.Index != 1 {
		t.Fatalf("expected index 1; got %d", s.Index)
	}

	press := func() {
		if a := Dispatch(s.KeyContext(), Key{Code: KeyRight}); a.Kind == ActNext {
			s.Next()
		}
	}
	press()
	if displayedID(s) != "C" || s.Index != 2 {
		t.Fatalf("expected C at 2; got %s at %d", displayedID(s), s.Index)
	}
	press()
	if displayedID(s) != "C" || s.Index != 2 {
		t.Fatalf("expected to stay on C; got %s at %d", displayedID(s), s.Index)
	}
}
