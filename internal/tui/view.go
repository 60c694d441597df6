package tui

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"

	"cog-cli/internal/editor"
	"cog-cli/internal/model"
	"cog-cli/internal/thumbs"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

const sidePanelWidth = 38

func (m appModel) View() string {
	s := m.state
	switch {
	case s.Alert != "":
		return overlay(m.width, m.height, renderAlertModal(m.width, s.Alert))
	case s.Confirm != nil:
		title, body := describeConfirm(s.Confirm)
		return overlay(m.width, m.height, renderConfirmModal(m.width, title, body, "Delete", "Cancel"))
	case s.Help:
		m.help.ShowAll = true
		return overlay(m.width, m.height, renderModalBox(m.width, "Keys", m.help.View(m.keys)))
	}

	cols, rows := m.imagePaneSize()
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		normalizePane(m.viewImage(), cols, rows),
		" ",
		normalizePane(m.viewSide(), sidePanelWidth, rows),
	)
	return strings.Join([]string{m.viewHeader(), body, m.viewStatus(), m.viewHelp()}, "\n")
}

func (m appModel) viewHeader() string {
	s := m.state
	title := s.Title
	if title == "" {
		title = s.SeriesID
	}
	parts := []string{lipgloss.NewStyle().Bold(true).Render(title)}
	if !s.Empty() {
		parts = append(parts, fmt.Sprintf("%d/%d", s.Index+1, len(s.Images)))
	}
	if s.GroupMode && len(s.Group) > 0 {
		parts = append(parts, styleBadge(colorAccent).Render(fmt.Sprintf("group %d/%d", s.GroupIndex+1, len(s.Group))))
	}
	if len(s.Versions) > 1 {
		parts = append(parts, fmt.Sprintf("v%d/%d", s.VersionIndex+1, len(s.Versions)))
	}
	if s.Zoom != editor.ZoomFit {
		parts = append(parts, fmt.Sprintf("zoom %d%%", s.Zoom))
	}
	if n := len(s.Selected); n > 0 {
		parts = append(parts, fmt.Sprintf("%d selected", n))
	}
	if s.Edit.Mode != editor.ModeNone {
		parts = append(parts, styleBadge(colorAccent).Render(modeLabel(s.Edit.Mode)))
	}
	if s.Processing() {
		parts = append(parts, m.spinner.View()+" processing")
	}
	return normalizePane(styleHeader().Render(strings.Join(parts, "  "+m.glyphs.dot()+"  ")), m.width, 1)
}

func modeLabel(md editor.Mode) string {
	switch md {
	case editor.ModeMorph:
		return "morph"
	case editor.ModeRefine:
		return "refine"
	case editor.ModeSpotRemoval:
		return "spot removal"
	case editor.ModeGuidedEdit:
		return "guided edit"
	}
	return ""
}

func (m appModel) viewImage() string {
	s := m.state
	if s.Empty() {
		return styleMuted().Render("No images in this series.")
	}
	shown, ok := s.Displayed()
	if !ok {
		return ""
	}
	w, h := m.imageBox()
	g := m.glyphs.thumbs()

	if s.Edit.Mode == editor.ModeMorph {
		c := s.Edit.Morph.Canvas
		if c == nil {
			return styleMuted().Render("loading pixels…")
		}
		img := thumbs.Fit(c, w, h)
		return thumbs.Render(markCursor(img, c.Rect, s.Edit.Morph.Cursor), g, m.profile)
	}

	img, ok := m.thumbs.Peek(shown.StoragePath, w, h)
	if !ok {
		return styleMuted().Render("loading " + shown.ID + "…")
	}
	if s.Edit.Mode == editor.ModeSpotRemoval || s.Edit.Mode == editor.ModeGuidedEdit {
		img = overlayMask(img, s.Edit.Mask.Raster, s.MaskBounds())
		img = markCursor(img, s.MaskBounds(), s.Edit.Mask.Cursor)
	}
	return thumbs.Render(img, g, m.profile)
}

// overlayMask tints painted mask pixels red on a copy of img.
func overlayMask(img image.Image, mask *image.Alpha, bounds image.Rectangle) image.Image {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Rect, img, b.Min, draw.Src)
	if mask == nil || bounds.Empty() {
		return out
	}
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			mx := bounds.Min.X + x*bounds.Dx()/b.Dx()
			my := bounds.Min.Y + y*bounds.Dy()/b.Dy()
			if mask.AlphaAt(mx, my).A == 0 {
				continue
			}
			c := out.NRGBAAt(x, y)
			c.R = uint8((int(c.R) + 255) / 2)
			c.G /= 2
			c.B /= 2
			out.SetNRGBA(x, y, c)
		}
	}
	return out
}

// markCursor draws a small cross at p, given in source pixel coordinates.
func markCursor(img image.Image, src image.Rectangle, p image.Point) image.Image {
	b := img.Bounds()
	out, ok := img.(*image.NRGBA)
	if !ok || out.Rect.Min != (image.Point{}) {
		out = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(out, out.Rect, img, b.Min, draw.Src)
	} else {
		cp := image.NewNRGBA(out.Rect)
		copy(cp.Pix, out.Pix)
		out = cp
	}
	if src.Dx() == 0 || src.Dy() == 0 {
		return out
	}
	cx := (p.X - src.Min.X) * b.Dx() / src.Dx()
	cy := (p.Y - src.Min.Y) * b.Dy() / src.Dy()
	mark := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	for d := -1; d <= 1; d++ {
		for _, pt := range []image.Point{{cx + d, cy}, {cx, cy + d}} {
			if pt.In(out.Rect) {
				out.SetNRGBA(pt.X, pt.Y, mark)
			}
		}
	}
	return out
}

func (m appModel) viewSide() string {
	s := m.state
	if s.TagPanel {
		return m.panel.view(s, m.glyphs, sidePanelWidth)
	}
	shown, ok := s.Displayed()
	if !ok {
		return ""
	}
	var lines []string
	stars := lipgloss.NewStyle().Foreground(colorStar).Render(m.glyphs.stars(shown.Rating, model.MaxRating))
	lines = append(lines, stars)

	var flags []string
	if shown.ID == s.PrimaryID {
		flags = append(flags, styleBadge(colorPrimary).Render("primary"))
	}
	if s.Selected[shown.ID] {
		flags = append(flags, styleBadge(colorAccent).Render("selected"))
	}
	if shown.InGroup() {
		flags = append(flags, styleMuted().Render(fmt.Sprintf("group of %d", s.GroupSize())))
	}
	if len(flags) > 0 {
		lines = append(lines, strings.Join(flags, " "))
	}
	meta := fmt.Sprintf("%s  %dx%d", shown.Source, shown.Width, shown.Height)
	if !shown.CreatedAt.IsZero() {
		meta += "  " + humanize.Time(shown.CreatedAt)
	}
	lines = append(lines, styleMuted().Render(meta))

	if names := m.tagNames(shown.ID); len(names) > 0 {
		lines = append(lines, "", "tags: "+strings.Join(names, ", "))
	}
	if s.Edit.Mode != editor.ModeNone {
		lines = append(lines, "", m.viewPalette())
	} else if shown.Prompt != "" {
		lines = append(lines, "", renderMarkdown(shown.Prompt, sidePanelWidth))
	}
	return strings.Join(lines, "\n")
}

func (m appModel) tagNames(imageID string) []string {
	s := m.state
	var out []string
	for _, t := range s.TagDefs {
		if s.HasTag(imageID, t.ID) {
			out = append(out, t.Name)
		}
	}
	return out
}

func (m appModel) viewPalette() string {
	s := m.state
	e := s.Edit
	var lines []string
	lines = append(lines, lipgloss.NewStyle().Bold(true).Render(modeLabel(e.Mode)))
	switch e.Mode {
	case editor.ModeMorph:
		lines = append(lines,
			fmt.Sprintf("tool %s  strength %d  radius %d", e.Morph.Tool, e.Morph.Strength, e.Morph.Radius),
			fmt.Sprintf("strokes %d", len(e.Morph.Strokes)),
		)
	case editor.ModeRefine:
		lines = append(lines,
			fmt.Sprintf("model %s", e.Refine.Model),
			fmt.Sprintf("size %s  aspect %s", e.Refine.Size, e.Refine.AspectRatio),
			"feedback:",
			m.textLine(e.Refine.Feedback),
		)
	case editor.ModeSpotRemoval, editor.ModeGuidedEdit:
		lines = append(lines, fmt.Sprintf("%s %d  opacity %.1f", e.Mask.Tool, e.Mask.BrushSize, e.Mask.Opacity))
		if s.MaskEmpty() {
			lines = append(lines, styleMuted().Render("paint the area to change"))
		}
		if e.Mode == editor.ModeGuidedEdit {
			lines = append(lines, "instruction:", m.textLine(e.Mask.Instruction))
		}
	}
	if s.ProcessingMode(e.Mode) {
		lines = append(lines, m.spinner.View()+" working…")
	}
	if e.Err != "" {
		lines = append(lines, styleError().Render(e.Err))
	}
	return strings.Join(lines, "\n")
}

func (m appModel) textLine(value string) string {
	if m.state.TextFocus {
		return renderInputLine(sidePanelWidth, m.input.View())
	}
	if strings.TrimSpace(value) == "" {
		return styleMuted().Render("(press i to type)")
	}
	return value
}

func (m appModel) viewStatus() string {
	s := m.state
	switch {
	case s.Err != "":
		return normalizePane(styleError().Render(s.Err), m.width, 1)
	case s.Loading():
		return normalizePane(styleMuted().Render("loading…"), m.width, 1)
	}
	if im, ok := s.Displayed(); ok {
		return normalizePane(styleMuted().Render(s.Location().String()+"  "+im.ID), m.width, 1)
	}
	return normalizePane("", m.width, 1)
}

func (m appModel) viewHelp() string {
	var bindings []key.Binding
	if md := m.state.Edit.Mode; md != editor.ModeNone {
		bindings = m.keys.paletteHelp(md)
	} else {
		bindings = m.keys.ShortHelp()
	}
	return normalizePane(m.help.ShortHelpView(bindings), m.width, 1)
}
