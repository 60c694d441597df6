package editor

import (
	"context"
	"sort"

	"cog-cli/internal/model"
)

type Priority int

const (
	PriorityLow Priority = iota
	PriorityHigh
)

func (p Priority) String() string {
	if p == PriorityHigh {
		return "high"
	}
	return "low"
}

// Hint asks for one image to be warmed.
type Hint struct {
	ImageID     string
	StoragePath string
	Priority    Priority
}

// Plan lists the images worth warming from the current position: the whole group in
// group mode, otherwise up to PreloadRadius flat neighbours on each side. Immediate
// neighbours are high priority.
func Plan(s *State) []Hint {
	var out []Hint
	seen := map[string]bool{}
	add := func(list []model.Image, i, dist int) {
		im := list[i]
		if seen[im.ID] {
			return
		}
		seen[im.ID] = true
		p := PriorityLow
		if dist == 1 {
			p = PriorityHigh
		}
		out = append(out, Hint{ImageID: im.ID, StoragePath: im.StoragePath, Priority: p})
	}

	shown, ok := s.Displayed()
	if !ok {
		return nil
	}
	seen[shown.ID] = true

	if s.groupScope() {
		n := len(s.Group)
		for i := range s.Group {
			d := abs(i - s.GroupIndex)
			if s.Policy.Wrap {
				d = min(d, n-d)
			}
			add(s.Group, i, d)
		}
	} else {
		n := len(s.Images)
		for d := 1; d <= s.Policy.PreloadRadius; d++ {
			for _, i := range []int{s.Index + d, s.Index - d} {
				if s.Policy.Wrap && n > 0 {
					i = ((i % n) + n) % n
				}
				if i >= 0 && i < n {
					add(s.Images, i, d)
				}
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Preload is one running warm-up.
type Preload struct {
	Hint
	Ctx context.Context
}

// Preloader keeps exactly the hints of the latest plan alive.
type Preloader struct {
	parent context.Context
	active map[string]context.CancelFunc
}

func NewPreloader(ctx context.Context) *Preloader {
	return &Preloader{parent: ctx, active: map[string]context.CancelFunc{}}
}

// Update starts hints that are new and cancels ones the plan no longer contains.
func (p *Preloader) Update(hints []Hint) []Preload {
	want := make(map[string]bool, len(hints))
	for _, h := range hints {
		want[h.ImageID] = true
	}
	for id, cancel := range p.active {
		if !want[id] {
			cancel()
			delete(p.active, id)
		}
	}
	var start []Preload
	for _, h := range hints {
		if _, ok := p.active[h.ImageID]; ok {
			continue
		}
		ctx, cancel := context.WithCancel(p.parent)
		p.active[h.ImageID] = cancel
		start = append(start, Preload{Hint: h, Ctx: ctx})
	}
	return start
}

// Active is the number of live hints.
func (p *Preloader) Active() int { return len(p.active) }

// Stop cancels everything.
func (p *Preloader) Stop() {
	for id, cancel := range p.active {
		cancel()
		delete(p.active, id)
	}
}
