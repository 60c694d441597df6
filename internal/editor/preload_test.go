package editor

import (
	"context"
	"testing"

	"cog-cli/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hintIDs(hs []Hint) map[string]Priority {
	out := map[string]Priority{}
	for _, h := range hs {
		out[h.ImageID] = h.Priority
	}
	return out
}

func TestPlan_FlatRadiusWithHighPriorityNeighbours(t *testing.T) {
	f := newFake("ser-1", img("a"), img("b"), img("c"), img("d"), img("e"), img("f"), img("g"), img("h"))
	e := open(t, f, EditorPolicy(), "d")

	got := hintIDs(Plan(e.State))
	assert.Equal(t, map[string]Priority{
		"c": PriorityHigh, "e": PriorityHigh,
		"b": PriorityLow, "f": PriorityLow,
		"a": PriorityLow, "g": PriorityLow,
	}, got)

	hints := Plan(e.State)
	assert.Equal(t, PriorityHigh, hints[0].Priority, "high priority hints come first")
}

func TestPlan_GroupModeWarmsWholeGroup(t *testing.T) {
	f := newFake("ser-1", grouped("a", "g"), img("x"), grouped("b", "g"), grouped("c", "g"), grouped("d", "g"))
	e := open(t, f, EditorPolicy(), "a")
	require.True(t, e.State.ToggleGroup())
	e.SyncLoads()

	got := hintIDs(Plan(e.State))
	assert.Equal(t, map[string]Priority{"b": PriorityHigh, "c": PriorityLow, "d": PriorityLow}, got)
}

func TestPreloader_DoesNotAccumulate(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	var images []model.Image
	for _, id := range ids {
		images = append(images, img(id))
	}
	e := open(t, newFake("ser-1", images...), EditorPolicy(), "a")
	s := e.State

	p := NewPreloader(context.Background())
	defer p.Stop()

	first := p.Update(Plan(s))
	require.Len(t, first, 3)
	firstCtx := first[0].Ctx

	var last []Hint
	for range ids {
		s.Next()
		last = Plan(s)
		p.Update(last)
		assert.LessOrEqual(t, p.Active(), 2*s.Policy.PreloadRadius)
	}
	assert.Equal(t, len(last), p.Active())
	assert.Error(t, firstCtx.Err(), "hints that fell out of the plan are cancelled")

	p.Stop()
	assert.Zero(t, p.Active())
}
