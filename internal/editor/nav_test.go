package editor

import (
	"context"
	"testing"

	"cog-cli/internal/model"

	"github.com/google/go-cmp/cmp"
)

func TestNext_ClampsAtTheEndInEditor(t *testing.T) {
	f := newFake("ser-1", img("a"), img("b"), img("c"), img("d"))
	e := open(t, f, EditorPolicy(), "a")
	s := e.State

	for i := 0; i < len(s.Images)-1; i++ {
		if !s.Next() {
			t.Fatalf("expected move %d to succeed", i)
		}
	}
	if s.Index != len(s.Images)-1 {
		t.Fatalf("expected index %d; got %d", len(s.Images)-1, s.Index)
	}
	for i := 0; i < 3; i++ {
		if s.Next() {
			t.Fatalf("expected Next at the end to be a no-op")
		}
	}
	if s.Index != len(s.Images)-1 {
		t.Fatalf("expected index to stay at %d; got %d", len(s.Images)-1, s.Index)
	}
	s.Index = 0
	if s.Prev() {
		t.Fatalf("expected Prev at the start to be a no-op")
	}
}

func TestNext_WrapsInLightbox(t *testing.T) {
	f := newFake("ser-1", img("a"), img("b"), img("c"))
	e := open(t, f, LightboxPolicy(), "c")
	s := e.State

	if !s.Next() || s.Index != 0 {
		t.Fatalf("expected wrap to 0; got %d", s.Index)
	}
	if !s.Prev() || s.Index != 2 {
		t.Fatalf("expected wrap back to 2; got %d", s.Index)
	}
}

func TestCurrent_EmptyOrOutOfRangeIsLoadingState(t *testing.T) {
	s := New(context.Background(), EditorPolicy(), "ser-1")
	defer s.Close()
	if _, ok := s.Current(); ok {
		t.Fatalf("expected no current image for an empty series")
	}
	if s.Next() || s.Prev() {
		t.Fatalf("expected navigation on an empty series to be a no-op")
	}
	s.Images = []model.Image{img("a")}
	s.Index = 7
	if _, ok := s.Displayed(); ok {
		t.Fatalf("expected out-of-range index to report loading")
	}
}

func TestFlatNavigation_ReplacesLocation(t *testing.T) {
	f := newFake("ser-1", img("a"), img("b"), img("c"))
	e := open(t, f, EditorPolicy(), "b")
	s := e.State

	s.Next()
	loc, _ := s.History.Current()
	if loc.String() != "/tools/cog/ser-1/editor/c" {
		t.Fatalf("unexpected location %q", loc.String())
	}
	if s.History.Len() != 1 {
		t.Fatalf("expected navigation to replace the entry; got %d entries", s.History.Len())
	}
}

func TestHistory_BackRestoresByID(t *testing.T) {
	f := newFake("ser-1", img("a"), img("b"), img("c"))
	e := open(t, f, EditorPolicy(), "a")
	s := e.State

	s.SelectID("c")
	if !s.Back() {
		t.Fatalf("expected a back entry")
	}
	if displayedID(s) != "a" {
		t.Fatalf("expected back to show a; got %q", displayedID(s))
	}
	// The list changes order underneath; forward still resolves by id.
	s.ReplaceImages([]model.Image{img("c"), img("a"), img("b")})
	if !s.Forward() || displayedID(s) != "c" || s.Index != 0 {
		t.Fatalf("expected forward to resolve c at 0; got %q at %d", displayedID(s), s.Index)
	}
}

func TestReplaceImages_ReResolvesByIDOrFallsBackToFirst(t *testing.T) {
	f := newFake("ser-1", img("a"), img("b"), img("c"))
	e := open(t, f, EditorPolicy(), "b")
	s := e.State

	s.ReplaceImages([]model.Image{img("z"), img("a"), img("b")})
	if s.Index != 2 {
		t.Fatalf("expected b re-resolved at 2; got %d", s.Index)
	}
	s.ReplaceImages([]model.Image{img("x"), img("y")})
	if displayedID(s) != "x" {
		t.Fatalf("expected redirect to the first image; got %q", displayedID(s))
	}
	s.ReplaceImages(nil)
	if !s.Empty() {
		t.Fatalf("expected empty state")
	}
}

func TestGroupNavigation_DoesNotTouchFlatIndex(t *testing.T) {
	f := newFake("ser-1", grouped("a", "g1"), img("b"), grouped("c", "g1"), grouped("d", "g1"))
	e := open(t, f, EditorPolicy(), "a")
	s := e.State

	if !s.ToggleGroup() {
		t.Fatalf("expected group mode to open")
	}
	e.SyncLoads()
	if got := len(s.Group); got != 3 {
		t.Fatalf("expected 3 group images; got %d", got)
	}
	s.Next()
	s.Next()
	if displayedID(s) != "d" {
		t.Fatalf("expected d; got %q", displayedID(s))
	}
	if s.Next() {
		t.Fatalf("expected group navigation to clamp")
	}
	if s.Index != 0 {
		t.Fatalf("group navigation changed the flat index to %d", s.Index)
	}
	loc, _ := s.History.Current()
	if !loc.Group || loc.ImageID != "a" {
		t.Fatalf("expected group flag on the flat image; got %+v", loc)
	}
	s.ExitGroup()
	if displayedID(s) != "a" {
		t.Fatalf("expected a after leaving group; got %q", displayedID(s))
	}
}

func TestToggleGroup_NeedsMoreThanOneMember(t *testing.T) {
	f := newFake("ser-1", grouped("a", "g1"), img("b"))
	e := open(t, f, EditorPolicy(), "a")
	if e.State.ToggleGroup() {
		t.Fatalf("expected a single-member group to refuse group mode")
	}
}

func TestRestore_GroupFlagWithoutGroupIsDropped(t *testing.T) {
	f := newFake("ser-1", img("a"), img("b"))
	e := open(t, f, EditorPolicy(), "b")
	s := e.State

	s.Restore(Location{SeriesID: "ser-1", ImageID: "a", Group: true})
	if s.GroupMode {
		t.Fatalf("expected group mode off for an ungrouped image")
	}
	loc, _ := s.History.Current()
	if loc.String() != "/tools/cog/ser-1/editor/a" {
		t.Fatalf("expected history without the group flag; got %q", loc.String())
	}
	if !s.Next() || displayedID(s) != "b" {
		t.Fatalf("expected flat navigation to b; got %q", displayedID(s))
	}
}

func TestGroupMode_PrevNextWaitForTheGroupList(t *testing.T) {
	f := newFake("ser-1", grouped("a", "g1"), grouped("b", "g1"), img("c"))
	e := open(t, f, EditorPolicy(), "a")
	s := e.State

	if !s.ToggleGroup() {
		t.Fatalf("expected group mode to open")
	}
	if s.Next() || s.Prev() {
		t.Fatalf("expected prev/next to be no-ops while the group loads")
	}
	if s.Index != 0 {
		t.Fatalf("expected the flat index untouched; got %d", s.Index)
	}
	e.SyncLoads()
	if !s.Next() || displayedID(s) != "b" {
		t.Fatalf("expected group navigation to b once loaded; got %q", displayedID(s))
	}
}

func TestGroupLoad_LateResponseForPreviousImageIsDiscarded(t *testing.T) {
	s := New(context.Background(), EditorPolicy(), "ser-1")
	defer s.Close()
	s.ReplaceImages([]model.Image{grouped("a", "g1"), grouped("a2", "g1"), grouped("b", "g2"), grouped("b2", "g2")})
	s.Reconcile()

	s.Restore(Location{SeriesID: "ser-1", ImageID: "a", Group: true})
	ticketsA := s.Reconcile()
	var ta LoadTicket
	for _, tk := range ticketsA {
		if tk.Kind == LoadGroup {
			ta = tk
		}
	}
	if ta.TargetID != "g1" {
		t.Fatalf("expected a group ticket for g1; got %+v", ticketsA)
	}

	s.Restore(Location{SeriesID: "ser-1", ImageID: "b", Group: true})
	if ta.Ctx.Err() == nil {
		t.Fatalf("expected the load for a to be cancelled on navigation")
	}
	var tb LoadTicket
	for _, tk := range s.Reconcile() {
		if tk.Kind == LoadGroup {
			tb = tk
		}
	}
	if !s.ApplyGroup(tb, []model.Image{grouped("b", "g2"), grouped("b2", "g2")}) {
		t.Fatalf("expected b's group to apply")
	}
	if s.ApplyGroup(ta, []model.Image{grouped("a", "g1"), grouped("a2", "g1")}) {
		t.Fatalf("expected a's late group response to be rejected")
	}
	got := []string{}
	for _, im := range s.Group {
		got = append(got, im.ID)
	}
	if diff := cmp.Diff([]string{"b", "b2"}, got); diff != "" {
		t.Fatalf("group mismatch (-want +got):\n%s", diff)
	}
}

func TestVersionLoad_LateResponseForPreviousImageIsDiscarded(t *testing.T) {
	s := New(context.Background(), EditorPolicy(), "ser-1")
	defer s.Close()
	s.ReplaceImages([]model.Image{img("a"), img("b")})

	ticketsA := s.Reconcile()
	if len(ticketsA) != 1 || ticketsA[0].Kind != LoadVersions || ticketsA[0].TargetID != "a" {
		t.Fatalf("expected a version ticket for a; got %+v", ticketsA)
	}
	ta := ticketsA[0]

	s.Next()
	if ta.Ctx.Err() == nil {
		t.Fatalf("expected the version load for a to be cancelled on navigation")
	}
	ticketsB := s.Reconcile()
	if len(ticketsB) != 1 || ticketsB[0].TargetID != "b" {
		t.Fatalf("expected a version ticket for b; got %+v", ticketsB)
	}
	parent := "b"
	b1 := img("b1")
	b1.ParentID = &parent
	if !s.ApplyVersions(ticketsB[0], []model.Image{img("b"), b1}) {
		t.Fatalf("expected b's chain to apply")
	}
	if s.ApplyVersions(ta, []model.Image{img("a"), img("a1")}) {
		t.Fatalf("expected a's late chain to be rejected")
	}
	got := []string{}
	for _, im := range s.Versions {
		got = append(got, im.ID)
	}
	if diff := cmp.Diff([]string{"b", "b1"}, got); diff != "" {
		t.Fatalf("chain mismatch (-want +got):\n%s", diff)
	}
	if displayedID(s) != "b" {
		t.Fatalf("expected b displayed; got %q", displayedID(s))
	}
}

func TestGroupLoad_ImageWithoutGroupLeavesGroupEmpty(t *testing.T) {
	s := New(context.Background(), EditorPolicy(), "ser-1")
	defer s.Close()
	s.ReplaceImages([]model.Image{grouped("a", "g1"), grouped("a2", "g1"), img("b")})
	s.Restore(Location{SeriesID: "ser-1", ImageID: "a", Group: true})
	ta := s.Reconcile()[0]

	s.Restore(Location{SeriesID: "ser-1", ImageID: "b", Group: true})
	s.Reconcile()
	if s.ApplyGroup(ta, []model.Image{grouped("a", "g1"), grouped("a2", "g1")}) {
		t.Fatalf("expected stale group to be rejected")
	}
	if len(s.Group) != 0 {
		t.Fatalf("expected no group for b; got %d", len(s.Group))
	}
}

func TestClose_CancelsInFlightLoads(t *testing.T) {
	s := New(context.Background(), EditorPolicy(), "ser-1")
	s.ReplaceImages([]model.Image{img("a")})
	tickets := s.Reconcile()
	if len(tickets) != 1 || tickets[0].Kind != LoadVersions {
		t.Fatalf("expected one version ticket; got %+v", tickets)
	}
	s.Close()
	if tickets[0].Ctx.Err() == nil {
		t.Fatalf("expected close to cancel the version load")
	}
	if s.ApplyVersions(tickets[0], []model.Image{img("a")}) {
		t.Fatalf("expected no loads to apply after close")
	}
}

func TestVersionNavigation_KeepsLocation(t *testing.T) {
	root := img("a")
	mid := img("a1")
	mid.ParentID = &root.ID
	leaf := img("a2")
	leaf.ParentID = &mid.ID
	f := newFake("ser-1", root, mid, leaf)
	e := open(t, f, EditorPolicy(), "a")
	s := e.State

	if len(s.Versions) != 3 || s.VersionIndex != 0 {
		t.Fatalf("expected chain of 3 at index 0; got %d at %d", len(s.Versions), s.VersionIndex)
	}
	s.VersionNext()
	s.VersionNext()
	if s.VersionNext() {
		t.Fatalf("expected version navigation to clamp")
	}
	if displayedID(s) != "a2" {
		t.Fatalf("expected a2 displayed; got %q", displayedID(s))
	}
	if loc := s.Location(); loc.ImageID != "a" {
		t.Fatalf("version navigation must not change the location; got %+v", loc)
	}
}
