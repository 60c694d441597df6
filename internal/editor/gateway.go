package editor

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"cog-cli/internal/actions"
	"cog-cli/internal/model"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Severity decides how a failed mutation is surfaced.
type Severity int

const (
	// SeverityInline shows the error next to the control.
	SeverityInline Severity = iota
	// SeverityAlert blocks until the user dismisses it.
	SeverityAlert
)

// Mutation is one optimistic change: Apply runs locally before Call reaches the
// backend, and the undo it returns runs if Call fails.
type Mutation struct {
	Name     string
	ImageID  string
	Severity Severity
	Apply    func(s *State) (undo func(s *State))
	Call     func(ctx context.Context, a actions.Actions) error
	// Refresh asks for an authoritative reload after success, for changes whose side
	// effects cannot be predicted locally.
	Refresh bool
}

// Pending is a mutation that has been applied but not settled.
type Pending struct {
	Mutation
	Seq  uint64
	undo func(*State)
}

// Begin applies m optimistically.
func (s *State) Begin(m Mutation) *Pending {
	s.mutSeq++
	p := &Pending{Mutation: m, Seq: s.mutSeq}
	s.Err = ""
	if m.Apply != nil {
		p.undo = m.Apply(s)
	}
	s.dropStaleLoads()
	return p
}

// Settle commits or rolls back p. It reports whether the host should refresh.
func (s *State) Settle(p *Pending, err error) bool {
	if err != nil {
		if p.undo != nil {
			p.undo(s)
			s.dropStaleLoads()
		}
		msg := p.Name + " failed: " + actions.Message(err)
		if p.Severity == SeverityAlert {
			s.Alert = msg
		} else {
			s.Err = msg
		}
		return false
	}
	if p.Refresh {
		s.invalidateLoads()
	}
	return p.Refresh
}

// Run begins m, performs the call and settles it.
func Run(ctx context.Context, s *State, a actions.Actions, m Mutation) (refresh bool, err error) {
	p := s.Begin(m)
	err = m.Call(ctx, a)
	return s.Settle(p, err), err
}

// refuseBusy reports whether imageID has an edit in flight, and says so inline.
func (s *State) refuseBusy(imageID string) bool {
	if !s.Busy(imageID) {
		return false
	}
	s.Err = ErrBusy.Error()
	return true
}

// patchImage updates id in every loaded list.
func (s *State) patchImage(id string, fn func(*model.Image)) {
	for _, list := range [][]model.Image{s.Images, s.Group, s.Versions} {
		if i := indexOf(list, id); i >= 0 {
			fn(&list[i])
		}
	}
}

// Rate builds the rating mutation for the displayed image. Pressing the rating the
// image already has clears it.
func (s *State) Rate(n int) (Mutation, bool) {
	im, ok := s.Displayed()
	if !ok || s.refuseBusy(im.ID) {
		return Mutation{}, false
	}
	prior := im.Rating
	next := model.ClampRating(n)
	if next == prior {
		next = model.MinRating
	}
	id := im.ID
	return Mutation{
		Name:    "rating",
		ImageID: id,
		Apply: func(s *State) func(*State) {
			s.patchImage(id, func(im *model.Image) { im.Rating = next })
			return func(s *State) {
				s.patchImage(id, func(im *model.Image) {
					if im.Rating == next {
						im.Rating = prior
					}
				})
			}
		},
		Call: func(ctx context.Context, a actions.Actions) error {
			return a.SetRating(ctx, id, next)
		},
	}, true
}

// TogglePrimary makes the displayed image the series primary, or clears the
// pointer when it already is.
func (s *State) TogglePrimary() (Mutation, bool) {
	im, ok := s.Displayed()
	if !ok || s.refuseBusy(im.ID) {
		return Mutation{}, false
	}
	prior := s.PrimaryID
	next := im.ID
	if prior == next {
		next = ""
	}
	seriesID := s.SeriesID
	return Mutation{
		Name:    "primary",
		ImageID: im.ID,
		Apply: func(s *State) func(*State) {
			s.PrimaryID = next
			return func(s *State) {
				if s.PrimaryID == next {
					s.PrimaryID = prior
				}
			}
		},
		Call: func(ctx context.Context, a actions.Actions) error {
			return a.SetPrimary(ctx, seriesID, next)
		},
	}, true
}

// HasTag reports whether imageID carries tagID locally.
func (s *State) HasTag(imageID, tagID string) bool {
	return slices.Contains(s.Tags[imageID], tagID)
}

// ToggleTag adds or removes tagID on the displayed image.
func (s *State) ToggleTag(tagID string) (Mutation, bool) {
	im, ok := s.Displayed()
	if !ok || tagID == "" || s.refuseBusy(im.ID) {
		return Mutation{}, false
	}
	id := im.ID
	add := !s.HasTag(id, tagID)
	name := "remove tag"
	if add {
		name = "add tag"
	}
	return Mutation{
		Name:    name,
		ImageID: id,
		Apply: func(s *State) func(*State) {
			prior := slices.Clone(s.Tags[id])
			if add {
				s.Tags[id] = append(slices.Clone(prior), tagID)
			} else {
				s.Tags[id] = slices.DeleteFunc(slices.Clone(prior), func(t string) bool { return t == tagID })
			}
			return func(s *State) { s.Tags[id] = prior }
		},
		Call: func(ctx context.Context, a actions.Actions) error {
			if add {
				return a.AddTag(ctx, id, tagID)
			}
			return a.RemoveTag(ctx, id, tagID)
		},
	}, true
}

// deletion is what a single delete took out of local state, kept so a failed call
// puts back that image alone and leaves concurrent changes to other images intact.
type deletion struct {
	id      string
	flat    *model.Image
	member  *model.Image
	groupID string

	// shown and groupShown record that the flat or group index pointed at the image;
	// fallback and groupFallback are the ids the removal moved those indexes to.
	shown         bool
	groupShown    bool
	fallback      string
	groupFallback string
	leftGroup     bool

	primary  bool
	tags     []string
	hadTags  bool
	selected bool
}

func baseID(list []model.Image, idx int) string {
	if idx >= 0 && idx < len(list) {
		return list[idx].ID
	}
	return ""
}

func (s *State) removeOne(id string) *deletion {
	d := &deletion{id: id, primary: s.PrimaryID == id, selected: s.Selected[id]}
	if i := indexOf(s.Images, id); i >= 0 {
		im := s.Images[i]
		d.flat, d.shown = &im, i == s.Index
	}
	if i := indexOf(s.Group, id); i >= 0 {
		im := s.Group[i]
		d.member, d.groupShown, d.groupID = &im, i == s.GroupIndex, s.groupLoad.target
	}
	d.tags, d.hadTags = s.Tags[id]
	groupMode := s.GroupMode

	s.removeImages(map[string]bool{id: true})

	d.fallback = baseID(s.Images, s.Index)
	d.groupFallback = baseID(s.Group, s.GroupIndex)
	d.leftGroup = groupMode && !s.GroupMode
	return d
}

// imageBefore is the series display order: oldest first, ties by id.
func imageBefore(a, b model.Image) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func insertOrdered(list []model.Image, im model.Image) []model.Image {
	if indexOf(list, im.ID) >= 0 {
		return list
	}
	at := len(list)
	for i := range list {
		if imageBefore(im, list[i]) {
			at = i
			break
		}
	}
	return slices.Insert(slices.Clone(list), at, im)
}

// undo puts the deleted image back. Indexes are re-resolved by id, and return to the
// image only when the user is still on the image the removal fell back to.
func (s *State) undo(d *deletion) {
	curID := baseID(s.Images, s.Index)
	groupCurID := baseID(s.Group, s.GroupIndex)

	if d.flat != nil {
		s.Images = insertOrdered(s.Images, *d.flat)
	}
	back := d.shown && curID == d.fallback
	target := curID
	if back {
		target = d.id
	}
	if i := indexOf(s.Images, target); i >= 0 {
		s.Index = i
	}

	if d.member != nil && s.Group != nil && s.groupLoad.target == d.groupID {
		s.Group = insertOrdered(s.Group, *d.member)
		target = groupCurID
		if d.groupShown && groupCurID == d.groupFallback {
			target = d.id
		}
		if i := indexOf(s.Group, target); i >= 0 {
			s.GroupIndex = i
		}
	}
	if d.leftGroup && back && !s.GroupMode && s.GroupSize() > 1 {
		s.GroupMode = true
	}

	if d.primary && s.PrimaryID == "" {
		s.PrimaryID = d.id
	}
	if _, ok := s.Tags[d.id]; d.hadTags && !ok {
		s.Tags[d.id] = d.tags
	}
	if d.selected {
		s.Selected[d.id] = true
	}
	s.invalidateLoads()
	s.History.Replace(s.Location())
}

// removeWithFallback drops ids from list and picks the new index: the same image if
// it survived, else the next survivor, else the previous one.
func removeWithFallback(list []model.Image, idx int, ids map[string]bool) ([]model.Image, int) {
	out := make([]model.Image, 0, len(list))
	next, prev := -1, -1
	for i, im := range list {
		if ids[im.ID] {
			continue
		}
		if i == idx {
			next = len(out)
		}
		if i > idx && next < 0 {
			next = len(out)
		}
		if i < idx {
			prev = len(out)
		}
		out = append(out, im)
	}
	switch {
	case next >= 0:
		return out, next
	case prev >= 0:
		return out, prev
	}
	return out, 0
}

// removeImages drops ids from local state.
func (s *State) removeImages(ids map[string]bool) {
	s.Images, s.Index = removeWithFallback(s.Images, s.Index, ids)
	s.Group, s.GroupIndex = removeWithFallback(s.Group, s.GroupIndex, ids)
	if s.GroupMode && len(s.Group) == 0 {
		s.GroupMode = false
	}
	for _, v := range s.Versions {
		if ids[v.ID] {
			s.Versions, s.VersionIndex = nil, 0
			break
		}
	}
	tags := make(map[string][]string, len(s.Tags))
	for k, v := range s.Tags {
		if !ids[k] {
			tags[k] = v
		}
	}
	s.Tags = tags
	sel := map[string]bool{}
	for k := range s.Selected {
		if !ids[k] {
			sel[k] = true
		}
	}
	s.Selected = sel
	if ids[s.PrimaryID] {
		s.PrimaryID = ""
	}
	s.History.Replace(s.Location())
}

// Delete builds the mutation deleting imageID. Locally the image disappears at once
// and the editor moves to the next image, else the previous, else the empty state.
// An image with an edit in flight is refused.
func (s *State) Delete(imageID string) (Mutation, bool) {
	if s.refuseBusy(imageID) {
		return Mutation{}, false
	}
	return Mutation{
		Name:     "delete",
		ImageID:  imageID,
		Severity: SeverityAlert,
		Refresh:  true,
		Apply: func(s *State) func(*State) {
			d := s.removeOne(imageID)
			return func(s *State) { s.undo(d) }
		},
		Call: func(ctx context.Context, a actions.Actions) error {
			_, err := a.DeleteImage(ctx, imageID)
			return err
		},
	}, true
}

// RequestDelete opens the confirmation for the displayed image, or for the batch
// selection when one exists. Selected images with an edit in flight are left out.
func (s *State) RequestDelete() bool {
	if len(s.Selected) > 0 {
		ids := make([]string, 0, len(s.Selected))
		for id := range s.Selected {
			if !s.Busy(id) {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			s.Err = ErrBusy.Error()
			return false
		}
		sort.Strings(ids)
		s.Confirm = &Confirm{Kind: ConfirmBatchDelete, IDs: ids}
		return true
	}
	im, ok := s.Displayed()
	if !ok || s.refuseBusy(im.ID) {
		return false
	}
	s.Confirm = &Confirm{Kind: ConfirmDelete, IDs: []string{im.ID}}
	return true
}

// ToggleSelect adds or removes the displayed image from the batch selection.
func (s *State) ToggleSelect() bool {
	im, ok := s.Displayed()
	if !ok {
		return false
	}
	if s.Selected[im.ID] {
		delete(s.Selected, im.ID)
	} else {
		s.Selected[im.ID] = true
	}
	return true
}

// Snapshot is an authoritative copy of the series from the backend.
type Snapshot struct {
	Series    model.Series
	Images    []model.Image
	Tags      []model.Tag
	ImageTags map[string][]string
}

// FetchSnapshot loads everything the editor shows for a series, concurrently.
func FetchSnapshot(ctx context.Context, a actions.Actions, seriesID string) (Snapshot, error) {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.Series, err = a.GetSeries(gctx, seriesID)
		return err
	})
	g.Go(func() (err error) {
		snap.Images, err = a.ListImages(gctx, seriesID)
		return err
	})
	g.Go(func() (err error) {
		snap.Tags, err = a.ListTags(gctx, seriesID)
		return err
	})
	g.Go(func() (err error) {
		snap.ImageTags, err = a.ImageTags(gctx, seriesID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// ApplyRefresh replaces the image list and series data wholesale. It is the only
// path that does.
func (s *State) ApplyRefresh(snap Snapshot) {
	s.Title = snap.Series.Title
	s.PrimaryID = ""
	if snap.Series.PrimaryImageID != nil {
		s.PrimaryID = *snap.Series.PrimaryImageID
	}
	s.TagDefs = snap.Tags
	s.Tags = map[string][]string{}
	for k, v := range snap.ImageTags {
		s.Tags[k] = v
	}
	s.ReplaceImages(snap.Images)
	s.invalidateLoads()
}

type BatchOp string

const (
	BatchDelete BatchOp = "delete"
	BatchTag    BatchOp = "tag"
	BatchUntag  BatchOp = "untag"
	BatchGroup  BatchOp = "group"
)

// BatchResult is the single aggregate outcome of a batch.
type BatchResult struct {
	Op        BatchOp
	Arg       string
	Succeeded []string
	Failed    map[string]error
	// PrimaryCleared counts the deletions that cleared the series primary.
	PrimaryCleared int
}

func (r BatchResult) Total() int { return len(r.Succeeded) + len(r.Failed) }

// FailedIDs are sorted for stable display.
func (r BatchResult) FailedIDs() []string {
	ids := make([]string, 0, len(r.Failed))
	for id := range r.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Err combines every per-item failure.
func (r BatchResult) Err() error {
	var err error
	for _, id := range r.FailedIDs() {
		err = multierr.Append(err, fmt.Errorf("%s: %w", id, r.Failed[id]))
	}
	return err
}

// batchLimit bounds concurrent backend calls per batch.
const batchLimit = 8

// RunBatch calls fn for every id concurrently and joins. One failure does not stop
// the others.
func RunBatch(ctx context.Context, op BatchOp, arg string, ids []string, fn func(ctx context.Context, id string) error) BatchResult {
	res := BatchResult{Op: op, Arg: arg, Failed: map[string]error{}}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchLimit)
	for _, id := range ids {
		g.Go(func() error {
			err := fn(gctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed[id] = err
			} else {
				res.Succeeded = append(res.Succeeded, id)
			}
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(res.Succeeded)
	return res
}

// Batch runs op over ids against the backend.
func Batch(ctx context.Context, a actions.Actions, op BatchOp, arg string, ids []string) BatchResult {
	var cleared int
	var mu sync.Mutex
	res := RunBatch(ctx, op, arg, ids, func(ctx context.Context, id string) error {
		switch op {
		case BatchDelete:
			out, err := a.DeleteImage(ctx, id)
			if err == nil && out.PrimaryCleared {
				mu.Lock()
				cleared++
				mu.Unlock()
			}
			return err
		case BatchTag:
			return a.AddTag(ctx, id, arg)
		case BatchUntag:
			return a.RemoveTag(ctx, id, arg)
		case BatchGroup:
			return a.SetGroup(ctx, []string{id}, arg)
		}
		return fmt.Errorf("unknown batch op %q", op)
	})
	res.PrimaryCleared = cleared
	return res
}

// SettleBatch reconciles local state once for the whole batch. Failed ids stay
// selected so the user can retry them. It reports whether the host should refresh.
func (s *State) SettleBatch(res BatchResult) bool {
	done := map[string]bool{}
	for _, id := range res.Succeeded {
		done[id] = true
	}
	switch res.Op {
	case BatchDelete:
		if len(done) > 0 {
			s.removeImages(done)
		}
	case BatchTag:
		for id := range done {
			if !s.HasTag(id, res.Arg) {
				s.Tags[id] = append(slices.Clone(s.Tags[id]), res.Arg)
			}
		}
	case BatchUntag:
		for id := range done {
			s.Tags[id] = slices.DeleteFunc(slices.Clone(s.Tags[id]), func(t string) bool { return t == res.Arg })
		}
	case BatchGroup:
		for id := range done {
			gid := res.Arg
			s.patchImage(id, func(im *model.Image) {
				if gid == "" {
					im.GroupID = nil
				} else {
					im.GroupID = &gid
				}
			})
		}
	}

	s.Selected = map[string]bool{}
	for id := range res.Failed {
		s.Selected[id] = true
	}
	if len(res.Failed) > 0 {
		s.Alert = fmt.Sprintf("%d of %d %s operations failed: %s", len(res.Failed), res.Total(), res.Op, strings.Join(res.FailedIDs(), ", "))
	}
	s.dropStaleLoads()
	s.invalidateLoads()
	return len(done) > 0
}
