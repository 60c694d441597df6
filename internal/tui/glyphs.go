package tui

import (
	"os"
	"strings"

	"cog-cli/internal/thumbs"
)

// Glyph sets for chrome. ASCII avoids characters some fonts render badly.

type glyphSet int

const (
	glyphSetUnicode glyphSet = iota
	glyphSetASCII
)

// glyphPreference resolves the glyph set: COG_TUI_GLYPHS wins over the configured value.
func glyphPreference(configured string) glyphSet {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("COG_TUI_GLYPHS")))
	if v == "" {
		v = strings.ToLower(strings.TrimSpace(configured))
	}
	if v == "ascii" {
		return glyphSetASCII
	}
	return glyphSetUnicode
}

func (g glyphSet) thumbs() thumbs.Glyphs {
	if g == glyphSetASCII {
		return thumbs.GlyphsASCII
	}
	return thumbs.GlyphsBlocks
}

func (g glyphSet) stars(n, max int) string {
	on, off := "★", "☆"
	if g == glyphSetASCII {
		on, off = "*", "."
	}
	return strings.Repeat(on, n) + strings.Repeat(off, max-n)
}

func (g glyphSet) dot() string {
	if g == glyphSetASCII {
		return "|"
	}
	return "·"
}

func (g glyphSet) check(on bool) string {
	switch {
	case g == glyphSetASCII && on:
		return "[x]"
	case g == glyphSetASCII:
		return "[ ]"
	case on:
		return "◉"
	default:
		return "○"
	}
}

func (g glyphSet) pointer() string {
	if g == glyphSetASCII {
		return ">"
	}
	return "▸"
}
