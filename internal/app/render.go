package app

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/deadliner/internal/model"
	"github.com/nhle/deadliner/internal/temporal"
	"github.com/nhle/deadliner/internal/theme"
	"github.com/nhle/deadliner/internal/urgency"
)

// view holds the display preferences for rendering.
type view struct {
	now   time.Time
	loc   *time.Location
	style temporal.CountdownStyle
}

func (e *env) view() view {
	return view{now: e.now(), loc: e.loc, style: e.style}
}

// dueLabel uses the configured display zone when there is one.
func (v view) dueLabel(dueAt string) string {
	if v.loc != nil {
		return temporal.FormatDueLabelIn(dueAt, v.loc)
	}
	return temporal.FormatDueLabel(dueAt)
}

var (
	idColumn         = lipgloss.NewStyle().Width(38)
	assignmentColumn = lipgloss.NewStyle().Width(28)
	courseColumn     = lipgloss.NewStyle().Width(14)
	dueColumn        = lipgloss.NewStyle().Width(18)
)

// renderList writes one line per deadline in the given order.
func renderList(w io.Writer, ds []model.Deadline, v view) {
	if len(ds) == 0 {
		fmt.Fprintln(w, theme.HelpStyle.Render("No deadlines. Add one with `deadliner add`."))
		return
	}

	fmt.Fprintln(w, theme.HeaderStyle.Render(fmt.Sprintf("Deadlines (%d)", len(ds))))
	for _, d := range ds {
		fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top,
			theme.UrgencyDot(d.ColorStatus)+" ",
			idColumn.Render(d.ID),
			assignmentColumn.Render(truncate(d.AssignmentName, 26)),
			courseColumn.Render(truncate(d.CourseName, 12)),
			dueColumn.Render(v.dueLabel(d.DueAt)),
			theme.UrgencyStyle(d.ColorStatus).Render(temporal.FormatCountdown(d.DueAt, v.now, v.style)),
		))
	}
}

// renderDetail writes the full view of one deadline.
func renderDetail(w io.Writer, d model.Deadline, v view) {
	remaining := temporal.RemainingDuration(d.DueAt, v.now)

	title := theme.HeaderStyle.Render(d.AssignmentName)
	switch {
	case remaining <= 0:
		title += " " + theme.ErrorStyle.Render(strings.ToUpper(temporal.Overdue))
	case urgency.IsUrgent(remaining):
		title += " " + theme.UrgentBadgeStyle.Render("URGENT")
	}

	rows := []string{
		title,
		"",
		field("Course", d.CourseName),
		field("Due", v.dueLabel(d.DueAt)),
		field("Due (local)", temporal.FormatDueLabel(d.DueAt)),
		field("Remaining", temporal.FormatCountdown(d.DueAt, v.now, temporal.StyleLong)),
		field("Status", theme.UrgencyStyle(d.ColorStatus).Render(string(d.ColorStatus))),
		field("Entered", strings.TrimSpace(d.DueDate+" "+d.DueTime)),
		field("ID", d.ID),
		field("Created", d.CreatedAt),
		field("Updated", d.UpdatedAt),
	}

	fmt.Fprintln(w, theme.DetailPanelStyle.Render(strings.Join(rows, "\n")))
}

func field(label, value string) string {
	return theme.LabelStyle.Render(label) + value
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
