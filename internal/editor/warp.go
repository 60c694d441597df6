package editor

import (
	"image"
	"image/color"
	"math"
)

type MorphTool string

const (
	ToolBloat  MorphTool = "bloat"
	ToolPucker MorphTool = "pucker"
)

// Stroke is one application of the morph brush, in canvas pixels.
type Stroke struct {
	X, Y     int
	Radius   int
	Strength int
	Tool     MorphTool
}

// Warper applies a stroke to a canvas in place.
type Warper interface {
	Warp(dst *image.NRGBA, st Stroke)
}

// RadialWarper displaces pixels towards (pucker) or away from (bloat) the stroke
// centre with a quadratic falloff, sampling nearest neighbours from a snapshot.
type RadialWarper struct{}

func (RadialWarper) Warp(dst *image.NRGBA, st Stroke) {
	if dst == nil || st.Radius <= 0 {
		return
	}
	area := image.Rect(st.X-st.Radius, st.Y-st.Radius, st.X+st.Radius+1, st.Y+st.Radius+1).Intersect(dst.Rect)
	if area.Empty() {
		return
	}
	src := image.NewNRGBA(dst.Rect)
	copy(src.Pix, dst.Pix)

	amount := float64(st.Strength) / 100 * 0.5
	r := float64(st.Radius)
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			dx, dy := float64(x-st.X), float64(y-st.Y)
			d := math.Hypot(dx, dy)
			if d >= r {
				continue
			}
			falloff := (1 - d/r) * (1 - d/r)
			scale := 1 - amount*falloff
			if st.Tool == ToolPucker {
				scale = 1 + amount*falloff
			}
			sx := clampInt(int(math.Round(float64(st.X)+dx*scale)), dst.Rect.Min.X, dst.Rect.Max.X-1)
			sy := clampInt(int(math.Round(float64(st.Y)+dy*scale)), dst.Rect.Min.Y, dst.Rect.Max.Y-1)
			dst.SetNRGBA(x, y, src.NRGBAAt(sx, sy))
		}
	}
}

// paintDisc sets (or clears) a filled circle in the mask.
func paintDisc(m *image.Alpha, cx, cy, diameter int, erase bool) {
	r := max(diameter/2, 1)
	v := color.Alpha{A: 255}
	if erase {
		v.A = 0
	}
	area := image.Rect(cx-r, cy-r, cx+r+1, cy+r+1).Intersect(m.Rect)
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			if (x-cx)*(x-cx)+(y-cy)*(y-cy) <= r*r {
				m.SetAlpha(x, y, v)
			}
		}
	}
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
