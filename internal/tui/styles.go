package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/gmsas95/dosewise/internal/medication"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	takenStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	lateStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B"))
	dueStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Bold(true)
	upcomingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A8A8A8"))
	noteStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")).Italic(true)
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
)

// Title renders the date heading of an agenda
func Title(date, now time.Time) string {
	label := date.Format("Mon, Jan 2 2006")
	if medication.IsSameCalendarDay(date, now) {
		label += " · today"
	}
	return titleStyle.Render("DoseWise  " + label)
}

// RenderEntry renders one dose line. now decides whether an untaken dose on
// today's agenda is due.
func RenderEntry(e medication.DoseEntry, now time.Time) string {
	mark, style := "○", upcomingStyle
	switch {
	case e.Taken && e.Late:
		mark, style = "✓", lateStyle
	case e.Taken:
		mark, style = "✓", takenStyle
	case medication.IsSameCalendarDay(e.Date, now) && medication.IsDue(e.Time, now):
		mark, style = "●", dueStyle
	}

	line := fmt.Sprintf("%s %8s  %-24s %s", mark, medication.FormatDisplay(e.Time), e.Prescription.Name, dosage(e.Prescription.Dosage))
	if e.Taken && e.Late {
		line += " (late)"
	}
	out := style.Render(line)
	if note := e.Prescription.FoodRequirements.FoodNote(); note != "" {
		out += "  " + noteStyle.Render(note)
	}
	return out
}

// RenderAgenda renders a full day for non-interactive output
func RenderAgenda(date time.Time, entries []medication.DoseEntry, now time.Time) string {
	var b strings.Builder
	b.WriteString(Title(date, now))
	b.WriteString("\n\n")
	if len(entries) == 0 {
		b.WriteString(statusStyle.Render("  No doses scheduled."))
		b.WriteString("\n")
		return b.String()
	}
	for _, e := range entries {
		b.WriteString("  ")
		b.WriteString(RenderEntry(e, now))
		b.WriteString("\n")
	}
	return b.String()
}

func dosage(n int) string {
	if n == 1 {
		return "1 tab"
	}
	return fmt.Sprintf("%d tabs", n)
}
