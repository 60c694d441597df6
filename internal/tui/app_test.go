package tui

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"cog-cli/internal/actions"
	"cog-cli/internal/editor"
	"cog-cli/internal/model"
	"cog-cli/internal/store"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/termenv"
)

type fixture struct {
	st     *store.Store
	local  *actions.Local
	series model.Series
}

func pngBytes(t *testing.T, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func newFixture(t *testing.T, images int) fixture {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, store.Options{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	sr, err := st.CreateSeries(ctx, "Harbor", nil, false)
	if err != nil {
		t.Fatalf("create series: %v", err)
	}
	for i := 0; i < images; i++ {
		c := color.NRGBA{R: uint8(40 * i), G: 90, B: 200, A: 255}
		if _, err := st.AddImageBytes(ctx, model.Image{SeriesID: sr.ID, Prompt: "boats"}, pngBytes(t, c)); err != nil {
			t.Fatalf("add image: %v", err)
		}
	}
	return fixture{st: st, local: actions.NewLocal(st, nil, nil), series: sr}
}

func (f fixture) open(t *testing.T, a actions.Actions, loc editor.Location) appModel {
	t.Helper()
	if loc.SeriesID == "" {
		loc.SeriesID = f.series.ID
	}
	m := newAppModel(context.Background(), Options{Actions: a, Blobs: f.local, Location: loc, Prefs: f.st}, termenv.Ascii)
	t.Cleanup(m.close)
	m = drain(t, m, m.Init())
	if !m.opened {
		t.Fatalf("expected editor to open; err=%q", m.state.Err)
	}
	return m
}

// drain runs cmd and every command it leads to, feeding results back to Update.
// Spinner ticks and quit are dropped so the loop settles.
func drain(t *testing.T, m appModel, cmd tea.Cmd) appModel {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 500 {
			t.Fatalf("commands did not settle")
		}
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case nil, spinner.TickMsg, tea.QuitMsg:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			next, more := m.Update(msg)
			m = next.(appModel)
			queue = append(queue, more)
		}
	}
	return m
}

func press(t *testing.T, m appModel, keys ...tea.KeyMsg) appModel {
	t.Helper()
	for _, k := range keys {
		next, cmd := m.Update(k)
		m = drain(t, next.(appModel), cmd)
	}
	return m
}

func runes(s string) []tea.KeyMsg {
	var out []tea.KeyMsg
	for _, r := range s {
		out = append(out, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return out
}

var (
	keyRight = tea.KeyMsg{Type: tea.KeyRight}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyTab   = tea.KeyMsg{Type: tea.KeyTab}
)

func TestApp_RightArrowStopsAtLastImage(t *testing.T) {
	f := newFixture(t, 3)
	m := f.open(t, f.local, editor.Location{})
	ids := []string{m.state.Images[0].ID, m.state.Images[1].ID, m.state.Images[2].ID}

	m = press(t, m, keyRight, keyRight)
	if got, _ := m.state.Displayed(); got.ID != ids[2] {
		t.Fatalf("expected last image %s; got %s", ids[2], got.ID)
	}
	m = press(t, m, keyRight)
	if got, _ := m.state.Displayed(); got.ID != ids[2] {
		t.Fatalf("expected to stay on %s; got %s", ids[2], got.ID)
	}
	if v := m.View(); !strings.Contains(v, "3/3") {
		t.Fatalf("expected position 3/3 in header; got:\n%s", v)
	}
}

func TestApp_OpensAtRequestedImage(t *testing.T) {
	f := newFixture(t, 3)
	first := f.open(t, f.local, editor.Location{})
	want := first.state.Images[1].ID

	m := f.open(t, f.local, editor.Location{ImageID: want})
	if got, _ := m.state.Displayed(); got.ID != want {
		t.Fatalf("expected %s; got %s", want, got.ID)
	}
	if m.state.Index != 1 {
		t.Fatalf("expected index 1; got %d", m.state.Index)
	}
}

func TestApp_QuitRemembersLocation(t *testing.T) {
	f := newFixture(t, 3)
	m := f.open(t, f.local, editor.Location{})
	m = press(t, m, keyRight, keyRight)
	want, _ := m.state.Displayed()

	next, cmd := m.Update(keyEsc)
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
	if !next.(appModel).state.Closed {
		t.Fatalf("expected editor to be closed")
	}

	reopened := f.open(t, f.local, editor.Location{})
	if got, _ := reopened.state.Displayed(); got.ID != want.ID {
		t.Fatalf("expected saved location %s; got %s", want.ID, got.ID)
	}
}

type failingRatings struct {
	actions.Actions
}

func (failingRatings) SetRating(context.Context, string, int) error {
	return errors.New("database is locked")
}

func TestApp_RatingRollsBackOnFailure(t *testing.T) {
	f := newFixture(t, 2)
	m := f.open(t, failingRatings{f.local}, editor.Location{})

	next, cmd := m.Update(runes("3")[0])
	m = next.(appModel)
	if got, _ := m.state.Displayed(); got.Rating != 3 {
		t.Fatalf("expected optimistic rating 3; got %d", got.Rating)
	}

	m = drain(t, m, cmd)
	if got, _ := m.state.Displayed(); got.Rating != 0 {
		t.Fatalf("expected rating rolled back to 0; got %d", got.Rating)
	}
	if m.state.Err != "rating failed: database is locked" {
		t.Fatalf("unexpected error %q", m.state.Err)
	}
	if v := m.View(); !strings.Contains(v, "rating failed") {
		t.Fatalf("expected error in status line; got:\n%s", v)
	}
}

func TestApp_RatingPersists(t *testing.T) {
	f := newFixture(t, 2)
	m := f.open(t, f.local, editor.Location{})
	m = press(t, m, runes("4")...)

	shown, _ := m.state.Displayed()
	stored, err := f.st.GetImage(context.Background(), shown.ID)
	if err != nil {
		t.Fatalf("get image: %v", err)
	}
	if stored.Rating != 4 || shown.Rating != 4 {
		t.Fatalf("expected rating 4 locally and stored; got %d and %d", shown.Rating, stored.Rating)
	}
}

func TestApp_DeleteAsksFirst(t *testing.T) {
	f := newFixture(t, 3)
	m := f.open(t, f.local, editor.Location{})
	shown, _ := m.state.Displayed()

	m = press(t, m, runes("x")...)
	if m.state.Confirm == nil {
		t.Fatalf("expected confirm dialog")
	}
	if v := m.View(); !strings.Contains(v, "Delete this image?") {
		t.Fatalf("expected confirm body; got:\n%s", v)
	}
	m = press(t, m, keyRight)
	if got, _ := m.state.Displayed(); got.ID != shown.ID {
		t.Fatalf("expected navigation blocked by dialog; moved to %s", got.ID)
	}

	m = press(t, m, keyEsc)
	if m.state.Confirm != nil || len(m.state.Images) != 3 {
		t.Fatalf("expected dialog closed with nothing deleted")
	}

	m = press(t, m, runes("x")...)
	m = press(t, m, runes("y")...)
	if len(m.state.Images) != 2 {
		t.Fatalf("expected 2 images after delete; got %d", len(m.state.Images))
	}
	if _, err := f.st.GetImage(context.Background(), shown.ID); err == nil {
		t.Fatalf("expected %s to be gone from the store", shown.ID)
	}
}

func TestApp_TagPanelFiltersAndToggles(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	if _, err := f.st.CreateTag(ctx, "harbor", "", ""); err != nil {
		t.Fatalf("create tag: %v", err)
	}
	sunset, err := f.st.CreateTag(ctx, "sunset", "", "")
	if err != nil {
		t.Fatalf("create tag: %v", err)
	}
	m := f.open(t, f.local, editor.Location{})

	m = press(t, m, runes("t")...)
	if !m.state.TagPanel {
		t.Fatalf("expected tag panel open")
	}
	m = press(t, m, runes("sun")...)
	if sel, ok := m.panel.selected(); !ok || sel.ID != sunset.ID {
		t.Fatalf("expected sunset under cursor; got %+v", sel)
	}
	m = press(t, m, keyEnter)

	shown, _ := m.state.Displayed()
	if !m.state.HasTag(shown.ID, sunset.ID) {
		t.Fatalf("expected sunset on %s", shown.ID)
	}
	links, err := f.st.ImageTagIDs(ctx, f.series.ID)
	if err != nil {
		t.Fatalf("image tags: %v", err)
	}
	if got := links[shown.ID]; len(got) != 1 || got[0] != sunset.ID {
		t.Fatalf("expected stored tag %s; got %v", sunset.ID, got)
	}

	m = press(t, m, keyEsc)
	if m.state.TagPanel {
		t.Fatalf("expected escape to close the panel")
	}
}

func TestApp_RefineAppendsVersion(t *testing.T) {
	f := newFixture(t, 1)
	m := f.open(t, f.local, editor.Location{})
	base, _ := m.state.Displayed()

	m = press(t, m, runes("e")...)
	if m.state.Edit.Mode != editor.ModeMorph {
		t.Fatalf("expected morph; got %v", m.state.Edit.Mode)
	}
	m = press(t, m, keyTab)
	if m.state.Edit.Mode != editor.ModeRefine {
		t.Fatalf("expected refine; got %v", m.state.Edit.Mode)
	}
	m = press(t, m, runes("i")...)
	if !m.state.TextFocus {
		t.Fatalf("expected text input focus")
	}
	m = press(t, m, runes("warmer")...)
	if m.state.Edit.Refine.Feedback != "warmer" {
		t.Fatalf("expected feedback %q; got %q", "warmer", m.state.Edit.Refine.Feedback)
	}
	m = press(t, m, keyEnter)

	if m.state.Processing() {
		t.Fatalf("expected edit to finish")
	}
	if m.state.Edit.Err != "" || m.state.Err != "" {
		t.Fatalf("unexpected errors %q %q", m.state.Edit.Err, m.state.Err)
	}
	chain, err := f.local.VersionChain(context.Background(), base.ID)
	if err != nil {
		t.Fatalf("version chain: %v", err)
	}
	if len(chain) != 2 || chain[1].ParentID == nil || *chain[1].ParentID != base.ID {
		t.Fatalf("expected a refined child of %s; got %d versions", base.ID, len(chain))
	}
	if shown, _ := m.state.Displayed(); shown.ID != chain[1].ID {
		t.Fatalf("expected new version %s displayed; got %s", chain[1].ID, shown.ID)
	}
}

func TestApp_StaleSnapshotIgnored(t *testing.T) {
	f := newFixture(t, 2)
	m := f.open(t, f.local, editor.Location{})
	before := len(m.state.Images)

	next, _ := m.Update(snapshotMsg{seq: m.refreshSeq - 1, err: errors.New("late")})
	m = next.(appModel)
	if m.state.Err != "" || len(m.state.Images) != before {
		t.Fatalf("expected stale snapshot to be dropped; err=%q", m.state.Err)
	}
}

func TestApp_StoreChangeDebounced(t *testing.T) {
	f := newFixture(t, 1)
	m := f.open(t, f.local, editor.Location{})
	seq := m.refreshSeq

	next, _ := m.Update(storeChangedMsg{})
	next, _ = next.(appModel).Update(storeChangedMsg{})
	m = next.(appModel)
	if m.watchSeq != 2 {
		t.Fatalf("expected watch seq 2; got %d", m.watchSeq)
	}

	next, cmd := m.Update(storeSettledMsg{seq: 1})
	if cmd != nil || next.(appModel).refreshSeq != seq {
		t.Fatalf("expected superseded settle to be ignored")
	}
	next, _ = m.Update(storeSettledMsg{seq: 2})
	if next.(appModel).refreshSeq != seq+1 {
		t.Fatalf("expected a refresh after the last change settled")
	}
}
