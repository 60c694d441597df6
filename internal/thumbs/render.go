package thumbs

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/muesli/termenv"
)

// Glyphs selects how pixels become terminal cells.
type Glyphs string

const (
	// GlyphsBlocks packs two pixel rows per cell with the upper half block.
	GlyphsBlocks Glyphs = "blocks"
	// GlyphsASCII maps luminance to a character ramp and emits no colour.
	GlyphsASCII Glyphs = "ascii"
)

func ParseGlyphs(s string) Glyphs {
	if strings.EqualFold(strings.TrimSpace(s), string(GlyphsASCII)) {
		return GlyphsASCII
	}
	return GlyphsBlocks
}

const ramp = " .:-=+*#%@"

// Box is the pixel box that fills cols x rows cells.
func Box(cols, rows int, g Glyphs) (uint, uint) {
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	if g == GlyphsASCII {
		return uint(cols), uint(rows)
	}
	return uint(cols), uint(rows * 2)
}

// Render draws img as terminal text. Ascii profiles always get the character ramp.
func Render(img image.Image, g Glyphs, p termenv.Profile) string {
	if img == nil {
		return ""
	}
	if p == termenv.Ascii {
		g = GlyphsASCII
	}
	b := img.Bounds()
	var sb strings.Builder
	if g == GlyphsASCII {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			if y > b.Min.Y {
				sb.WriteByte('\n')
			}
			for x := b.Min.X; x < b.Max.X; x++ {
				l := luma(img.At(x, y))
				sb.WriteByte(ramp[int(l)*(len(ramp)-1)/255])
			}
		}
		return sb.String()
	}
	for y := b.Min.Y; y < b.Max.Y; y += 2 {
		if y > b.Min.Y {
			sb.WriteByte('\n')
		}
		for x := b.Min.X; x < b.Max.X; x++ {
			cell := p.String("▀").Foreground(p.Color(hex(img.At(x, y))))
			if y+1 < b.Max.Y {
				cell = cell.Background(p.Color(hex(img.At(x, y+1))))
			}
			sb.WriteString(cell.String())
		}
	}
	return sb.String()
}

func hex(c color.Color) string {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return fmt.Sprintf("#%02x%02x%02x", n.R, n.G, n.B)
}

func luma(c color.Color) uint8 {
	return color.GrayModel.Convert(c).(color.Gray).Y
}
