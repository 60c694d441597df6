package editor

import "cog-cli/internal/model"

// step moves idx by delta inside [0,n). It reports false when nothing moved.
func step(idx, n, delta int, wrap bool) (int, bool) {
	if n == 0 {
		return idx, false
	}
	next := idx + delta
	if wrap {
		next = ((next % n) + n) % n
	} else {
		next = max(0, min(n-1, next))
	}
	return next, next != idx
}

// groupScope reports whether prev/next act on the group list.
func (s *State) groupScope() bool {
	return s.GroupMode && len(s.Group) > 0
}

func (s *State) Prev() bool { return s.move(-1) }
func (s *State) Next() bool { return s.move(+1) }

// move is a no-op in group mode until the group list has loaded.
func (s *State) move(delta int) bool {
	if s.GroupMode && len(s.Group) == 0 {
		return false
	}
	if s.groupScope() {
		i, ok := step(s.GroupIndex, len(s.Group), delta, s.Policy.Wrap)
		if !ok {
			return false
		}
		s.GroupIndex = i
		s.afterMove()
		return true
	}
	i, ok := step(s.Index, len(s.Images), delta, s.Policy.Wrap)
	if !ok {
		return false
	}
	s.Index = i
	s.History.Replace(s.Location())
	s.afterMove()
	return true
}

// afterMove runs after the base image changed.
func (s *State) afterMove() {
	s.Err = ""
	s.dropStaleLoads()
}

// VersionPrev and VersionNext move along the version chain. The location is unchanged.
func (s *State) VersionPrev() bool { return s.versionMove(-1) }
func (s *State) VersionNext() bool { return s.versionMove(+1) }

func (s *State) versionMove(delta int) bool {
	i, ok := step(s.VersionIndex, len(s.Versions), delta, false)
	if !ok {
		return false
	}
	s.VersionIndex = i
	s.syncDisplayed()
	return true
}

// SelectID moves the flat index to id and records a new history entry.
func (s *State) SelectID(id string) bool {
	i := indexOf(s.Images, id)
	if i < 0 {
		return false
	}
	s.Index = i
	s.History.Push(s.Location())
	s.afterMove()
	return true
}

// ToggleGroup enters or leaves group mode. Entering needs more than one member.
func (s *State) ToggleGroup() bool {
	if s.GroupMode {
		s.ExitGroup()
		return true
	}
	if s.GroupSize() <= 1 {
		return false
	}
	if s.Policy.GroupEditExclusive && s.Edit.Mode != ModeNone {
		s.ExitMode()
	}
	s.GroupMode = true
	s.History.Replace(s.Location())
	s.afterMove()
	return true
}

func (s *State) ExitGroup() {
	if !s.GroupMode {
		return
	}
	s.GroupMode = false
	s.History.Replace(s.Location())
	s.afterMove()
}

// Restore applies a location from history or a direct link, resolving the image by id.
// An unknown or empty image id falls back to the first image. Group mode is only
// entered when the resolved image has a group of more than one, and the current
// history entry is rewritten to what was actually applied.
func (s *State) Restore(loc Location) {
	if loc.SeriesID != "" && loc.SeriesID != s.SeriesID {
		return
	}
	s.Index = 0
	if i := indexOf(s.Images, loc.ImageID); i >= 0 {
		s.Index = i
	}
	s.GroupMode = loc.Group && s.GroupSize() > 1
	s.History.Replace(s.Location())
	s.afterMove()
}

func (s *State) Back() bool {
	loc, ok := s.History.Back()
	if ok {
		s.Restore(loc)
	}
	return ok
}

func (s *State) Forward() bool {
	loc, ok := s.History.Forward()
	if ok {
		s.Restore(loc)
	}
	return ok
}

// ReplaceImages installs a fresh series list. The current image is re-resolved by id;
// if it is gone the editor moves to the first image, or to the empty state.
func (s *State) ReplaceImages(images []model.Image) {
	prev, had := s.Current()
	s.Images = append([]model.Image(nil), images...)
	s.Index = 0
	moved := true
	if had {
		if i := indexOf(s.Images, prev.ID); i >= 0 {
			s.Index = i
			moved = false
		}
	}
	for id := range s.Selected {
		if indexOf(s.Images, id) < 0 {
			delete(s.Selected, id)
		}
	}
	if moved && had {
		s.History.Replace(s.Location())
	}
	s.dropStaleLoads()
}

// syncDisplayed resets every mode's working state whenever the displayed image
// changed. The active mode itself is kept.
func (s *State) syncDisplayed() {
	id := ""
	if im, ok := s.Displayed(); ok {
		id = im.ID
	}
	if id == s.lastDisplayed {
		return
	}
	s.lastDisplayed = id
	s.Edit.resetWorking()
}
