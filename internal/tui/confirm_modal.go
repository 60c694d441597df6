package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func modalBodyWidth(width int) int {
	w := width/2 - 4
	if w < 30 {
		w = 30
	}
	if w > 72 {
		w = 72
	}
	return w
}

func renderModalBox(width int, title, content string) string {
	bodyW := modalBodyWidth(width)
	head := lipgloss.NewStyle().
		Width(bodyW).
		Bold(true).
		Foreground(colorSurfaceFg).
		Background(colorControlBg).
		Padding(0, 1).
		Render(title)
	body := lipgloss.NewStyle().
		Width(bodyW).
		Padding(1, 1).
		Foreground(colorSurfaceFg).
		Background(colorSurfaceBg).
		Render(content)
	return lipgloss.JoinVertical(lipgloss.Left, head, body)
}

// renderConfirmModal draws a yes/no dialog. Enter or y confirms, esc cancels.
func renderConfirmModal(width int, title, body, confirmLabel, cancelLabel string) string {
	btn := lipgloss.NewStyle().Padding(0, 1).Foreground(colorSurfaceFg).Background(colorControlBg)
	active := btn.Foreground(colorSelectedFg).Background(colorSelectedBg).Bold(true)
	controls := lipgloss.JoinHorizontal(lipgloss.Top,
		active.Render(confirmLabel),
		lipgloss.NewStyle().Background(colorControlBg).Render(" "),
		btn.Render(cancelLabel),
	)
	help := styleMuted().Width(modalBodyWidth(width)).Render("enter/y: " + strings.ToLower(confirmLabel) + "   esc: " + strings.ToLower(cancelLabel))
	return renderModalBox(width, title, strings.Join([]string{body, "", controls, "", help}, "\n"))
}

// renderAlertModal draws a blocking error that only esc or enter dismisses.
func renderAlertModal(width int, msg string) string {
	head := styleBadge(colorAlertBg).Render("error")
	help := styleMuted().Render("enter/esc: dismiss")
	return renderModalBox(width, "Something went wrong", strings.Join([]string{head, "", msg, "", help}, "\n"))
}
