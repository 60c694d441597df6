package editor

import (
	"context"

	"cog-cli/internal/model"
)

type LoadKind int

const (
	LoadGroup LoadKind = iota
	LoadVersions
)

func (k LoadKind) String() string {
	if k == LoadGroup {
		return "group"
	}
	return "versions"
}

// LoadTicket authorizes one group or version-chain fetch. Its result is applied only
// while the ticket is still the newest one for its kind and target.
type LoadTicket struct {
	Kind     LoadKind
	Seq      uint64
	TargetID string
	Ctx      context.Context
}

type loadSlot struct {
	target string
	seq    uint64
	stale  bool
	stop   context.CancelFunc
}

func (l *loadSlot) cancel() {
	if l.stop != nil {
		l.stop()
		l.stop = nil
	}
}

func (l *loadSlot) inFlight() bool { return l.stop != nil }

func (s *State) begin(slot *loadSlot, kind LoadKind, target string) LoadTicket {
	slot.cancel()
	s.loadSeq++
	ctx, stop := context.WithCancel(s.ctx)
	*slot = loadSlot{target: target, seq: s.loadSeq, stop: stop}
	return LoadTicket{Kind: kind, Seq: s.loadSeq, TargetID: target, Ctx: ctx}
}

func (s *State) slot(kind LoadKind) *loadSlot {
	if kind == LoadGroup {
		return &s.groupLoad
	}
	return &s.versionLoad
}

func (s *State) current(t LoadTicket) bool {
	if s.Closed {
		return false
	}
	slot := s.slot(t.Kind)
	return slot.inFlight() && slot.seq == t.Seq && slot.target == t.TargetID
}

func (s *State) wants() (group, versions string) {
	if s.GroupMode {
		if cur, ok := s.Current(); ok && cur.InGroup() {
			group = cur.Group()
		}
	}
	if base, ok := s.Base(); ok {
		versions = base.ID
	}
	return group, versions
}

// dropStaleLoads cancels loads whose target is no longer wanted and clears the lists
// they were loading.
func (s *State) dropStaleLoads() {
	wantGroup, _ := s.wants()
	if s.groupLoad.target != wantGroup {
		s.groupLoad.cancel()
		s.groupLoad = loadSlot{}
		s.Group, s.GroupIndex = nil, 0
	}
	_, wantVersions := s.wants()
	if s.versionLoad.target != wantVersions {
		s.versionLoad.cancel()
		s.versionLoad = loadSlot{}
		s.Versions, s.VersionIndex = nil, 0
	}
	s.syncDisplayed()
}

// Reconcile cancels loads whose inputs changed and returns tickets for the loads the
// state now needs. Hosts call it after every transition.
func (s *State) Reconcile() []LoadTicket {
	if s.Closed {
		return nil
	}
	s.dropStaleLoads()
	wantGroup, wantVersions := s.wants()

	var out []LoadTicket
	if wantGroup != "" && (s.groupLoad.target == "" || s.groupLoad.stale) {
		out = append(out, s.begin(&s.groupLoad, LoadGroup, wantGroup))
	}
	if wantVersions != "" && (s.versionLoad.target == "" || s.versionLoad.stale) {
		out = append(out, s.begin(&s.versionLoad, LoadVersions, wantVersions))
	}
	return out
}

// invalidateLoads makes the next Reconcile refetch both lists for the same targets.
// Prior lists stay visible until the new results replace them.
func (s *State) invalidateLoads() {
	s.groupLoad.cancel()
	s.groupLoad.stale = true
	s.versionLoad.cancel()
	s.versionLoad.stale = true
}

// ApplyGroup installs a group list. It reports false for a stale ticket.
func (s *State) ApplyGroup(t LoadTicket, images []model.Image) bool {
	if t.Kind != LoadGroup || !s.current(t) {
		return false
	}
	s.groupLoad.cancel()
	s.Group = append([]model.Image(nil), images...)
	s.GroupIndex = 0
	if cur, ok := s.Current(); ok {
		if i := indexOf(s.Group, cur.ID); i >= 0 {
			s.GroupIndex = i
		}
	}
	return true
}

// ApplyVersions installs a version chain. Chains of one image are not kept.
func (s *State) ApplyVersions(t LoadTicket, chain []model.Image) bool {
	if t.Kind != LoadVersions || !s.current(t) {
		return false
	}
	s.versionLoad.cancel()
	shown, _ := s.Displayed()
	if len(chain) <= 1 {
		s.Versions, s.VersionIndex = nil, 0
		return true
	}
	s.Versions = append([]model.Image(nil), chain...)
	s.VersionIndex = indexOf(s.Versions, shown.ID)
	if s.VersionIndex < 0 {
		s.VersionIndex = indexOf(s.Versions, t.TargetID)
	}
	if s.VersionIndex < 0 {
		s.VersionIndex = len(s.Versions) - 1
	}
	return true
}

// FailLoad ends a load that errored. The target is not retried until its inputs change.
func (s *State) FailLoad(t LoadTicket, err error) bool {
	if !s.current(t) {
		return false
	}
	s.slot(t.Kind).cancel()
	if err != nil {
		s.Err = "could not load " + t.Kind.String() + ": " + err.Error()
	}
	return true
}

// Loading reports whether a group or version fetch is in flight.
func (s *State) Loading() bool {
	return s.groupLoad.inFlight() || s.versionLoad.inFlight()
}
