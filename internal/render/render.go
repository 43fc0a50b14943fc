// Package render formats occurrences and alerts for terminal output.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/starford/dagaz/internal/eventservice"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/query"
	"github.com/starford/dagaz/internal/timestr"
	"github.com/starford/dagaz/internal/window"
)

var (
	dayStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	aliasStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	timeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	labelStyle    = lipgloss.NewStyle().Bold(true)
	truncateStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	panelStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// List renders occurrences grouped by calendar day, sorted order preserved.
func List(occs []models.Occurrence, truncated bool) string {
	if len(occs) == 0 {
		return mutedStyle.Render("no events")
	}

	var b strings.Builder
	var day string
	for _, occ := range occs {
		d := occ.Start.Format(timestr.DateLayout)
		if d != day {
			if day != "" {
				b.WriteString("\n")
			}
			day = d
			b.WriteString(dayStyle.Render(occ.Start.Format("Monday, 02 January 2006")) + "\n")
		}
		b.WriteString("  " + line(occ) + "\n")
	}
	if truncated {
		b.WriteString(truncateStyle.Render("(recurrence expansion truncated)") + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func line(occ models.Occurrence) string {
	span := timeStyle.Render(occ.Start.Format("15:04"))
	if !occ.End.IsZero() {
		span += timeStyle.Render("-" + occ.End.Format("15:04"))
	}
	s := fmt.Sprintf("%s  %s  %s", aliasStyle.Render(occ.Event.Alias), span, occ.Event.Description)
	if occ.Event.Location != "" {
		s += mutedStyle.Render(" @ " + occ.Event.Location)
	}
	if len(occ.Event.Tags) > 0 {
		s += mutedStyle.Render(" [" + strings.Join(occ.Event.Tags, ",") + "]")
	}
	return s
}

// Info renders the full detail sheet for a single event.
func Info(ev *models.Event) string {
	var b strings.Builder
	row := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(label+":"), value)
		}
	}
	row("uid", ev.UID)
	row("alias", ev.Alias)
	row("calendar", ev.Calendar)
	row("description", ev.Description)
	row("location", ev.Location)
	row("start", timestr.FormatPretty(ev.Start))
	if !ev.End.IsZero() {
		row("end", timestr.FormatPretty(ev.End))
	}
	if len(ev.Tags) > 0 {
		row("tags", strings.Join(ev.Tags, ", "))
	}
	row("rrule", ev.RRule)
	if ev.Organizer != nil {
		row("organizer", contact(ev.Organizer.Name, ev.Organizer.Email))
	}
	for _, a := range ev.Attendees {
		s := contact(a.Name, a.Email)
		if a.Status != "" && a.Status != models.StatusNone {
			s += mutedStyle.Render(" (" + strings.ToLower(a.Status) + ")")
		}
		row("attendee", s)
	}
	for _, rem := range ev.Reminders {
		row("reminder", rem.Remind+" via "+rem.Notify)
	}
	for _, url := range ev.Attachments {
		row("attachment", url)
	}
	if !ev.Created.IsZero() {
		row("created", timestr.Format(ev.Created))
	}
	if !ev.Updated.IsZero() {
		row("updated", timestr.Format(ev.Updated))
	}
	if ev.Notes != "" {
		b.WriteString(labelStyle.Render("notes:") + "\n" + ev.Notes + "\n")
	}
	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func contact(name, email string) string {
	if name == "" {
		return email
	}
	return name + " <" + email + ">"
}

// Projection renders query output as an aligned table.
func Projection(p query.Projection, truncated bool) string {
	if len(p.Rows) == 0 {
		return mutedStyle.Render("no matches")
	}
	widths := make([]int, len(p.Columns))
	for i, col := range p.Columns {
		widths[i] = len(col)
	}
	for _, row := range p.Rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	for i, col := range p.Columns {
		b.WriteString(labelStyle.Render(pad(col, widths[i])) + "  ")
	}
	b.WriteString("\n")
	for _, row := range p.Rows {
		for i, cell := range row {
			b.WriteString(pad(cell, widths[i]) + "  ")
		}
		b.WriteString("\n")
	}
	if truncated {
		b.WriteString(truncateStyle.Render("(recurrence expansion truncated)") + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func pad(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-len(s))
}

// Alerts renders upcoming reminders sorted by fire time.
func Alerts(alerts []eventservice.Alert) string {
	if len(alerts) == 0 {
		return mutedStyle.Render("no reminders due")
	}
	var b strings.Builder
	for _, a := range alerts {
		fmt.Fprintf(&b, "%s  %s  %s %s\n",
			timeStyle.Render(a.At.Format(timestr.Stamp)),
			aliasStyle.Render(a.Event.Alias),
			a.Event.Description,
			mutedStyle.Render("via "+a.Notify))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FreeBusy renders busy spans within a window as plain text pairs.
func FreeBusy(win window.Window, busy []window.Window) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s .. %s\n", labelStyle.Render("window:"),
		timestr.Format(win.Start), timestr.Format(win.End))
	if len(busy) == 0 {
		b.WriteString(mutedStyle.Render("free"))
		return b.String()
	}
	for _, span := range busy {
		end := span.End
		if end.IsZero() {
			end = span.Start
		}
		fmt.Fprintf(&b, "busy %s .. %s\n", timestr.Format(span.Start), timestr.Format(end))
	}
	return strings.TrimRight(b.String(), "\n")
}
