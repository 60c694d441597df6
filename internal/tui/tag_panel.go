package tui

import (
	"fmt"
	"strings"

	"cog-cli/internal/editor"
	"cog-cli/internal/model"

	"github.com/sahilm/fuzzy"
)

// tagPanel lists the series tags filtered by a fuzzy query.
type tagPanel struct {
	tags    []model.Tag
	query   string
	matches []int
	cursor  int
}

type tagSource []model.Tag

func (t tagSource) String(i int) string { return t[i].Name }
func (t tagSource) Len() int            { return len(t) }

func newTagPanel(tags []model.Tag) tagPanel {
	p := tagPanel{tags: tags}
	p.filter()
	return p
}

func (p *tagPanel) filter() {
	p.matches = p.matches[:0]
	if strings.TrimSpace(p.query) == "" {
		for i := range p.tags {
			p.matches = append(p.matches, i)
		}
	} else {
		for _, m := range fuzzy.FindFrom(p.query, tagSource(p.tags)) {
			p.matches = append(p.matches, m.Index)
		}
	}
	if p.cursor >= len(p.matches) {
		p.cursor = max(len(p.matches)-1, 0)
	}
}

// selected is the tag under the cursor.
func (p tagPanel) selected() (model.Tag, bool) {
	if p.cursor < 0 || p.cursor >= len(p.matches) {
		return model.Tag{}, false
	}
	return p.tags[p.matches[p.cursor]], true
}

// handle applies a panel key. It returns the tag to toggle when enter is pressed.
func (p *tagPanel) handle(k editor.Key) (model.Tag, bool) {
	switch k.Code {
	case editor.KeyUp:
		if p.cursor > 0 {
			p.cursor--
		}
	case editor.KeyDown:
		if p.cursor < len(p.matches)-1 {
			p.cursor++
		}
	case editor.KeyBackspace:
		if r := []rune(p.query); len(r) > 0 {
			p.query = string(r[:len(r)-1])
			p.filter()
		}
	case editor.KeySpace:
		p.query += " "
		p.filter()
	case editor.KeyRune:
		p.query += string(k.Rune)
		p.filter()
	case editor.KeyEnter:
		return p.selected()
	}
	return model.Tag{}, false
}

func (p tagPanel) view(s *editor.State, g glyphSet, width int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tags  %s\n", styleMuted().Render("filter: "+p.query+"_"))
	im, ok := s.Displayed()
	if len(p.matches) == 0 {
		b.WriteString(styleMuted().Render("no matching tags"))
		return b.String()
	}
	for i, idx := range p.matches {
		t := p.tags[idx]
		ptr := " "
		if i == p.cursor {
			ptr = g.pointer()
		}
		on := ok && s.HasTag(im.ID, t.ID)
		line := fmt.Sprintf("%s %s %s", ptr, g.check(on), t.Name)
		if t.Local() {
			line += styleMuted().Render(" (series)")
		}
		b.WriteString(normalizePane(line, width, 1))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
