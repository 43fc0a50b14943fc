package query

import (
	"sort"
	"strings"

	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/timestr"
)

// Fields is the fixed projection field set, in output order.
var Fields = []string{"uid", "alias", "calendar", "start", "end", "description", "location", "tags"}

// Projection is a field-limited, column-stable tabular result set.
type Projection struct {
	Columns []string
	Rows    [][]string
}

// Record is the full-record shape used for JSON output. JSON projection
// always carries the whole record regardless of any field selection.
type Record struct {
	UID         string             `json:"uid"`
	Created     string             `json:"created,omitempty"`
	Updated     string             `json:"updated,omitempty"`
	Alias       string             `json:"alias"`
	Start       string             `json:"start,omitempty"`
	End         string             `json:"end,omitempty"`
	Calendar    string             `json:"calendar,omitempty"`
	Description string             `json:"description,omitempty"`
	Location    string             `json:"location,omitempty"`
	Tags        []string           `json:"tags,omitempty"`
	RRule       string             `json:"rrule,omitempty"`
	Organizer   *models.Organizer  `json:"organizer,omitempty"`
	Attendees   []models.Attendee  `json:"attendees,omitempty"`
	Reminders   []models.Reminder  `json:"reminders,omitempty"`
	Attachments []string           `json:"attachments,omitempty"`
	Notes       string             `json:"notes,omitempty"`
}

// Sort orders occurrences chronologically by start, breaking ties by event
// uid; equal pairs keep their original store order.
func Sort(occs []models.Occurrence) {
	sort.SliceStable(occs, func(i, j int) bool {
		if !occs[i].Start.Equal(occs[j].Start) {
			return occs[i].Start.Before(occs[j].Start)
		}
		return occs[i].Event.UID < occs[j].Event.UID
	})
}

// Project restricts occurrences to the selected fields, preserving the fixed
// field order. A nil or empty selection returns every field. Unknown names
// in the selection are ignored.
func Project(occs []models.Occurrence, selection []string) Projection {
	cols := Fields
	if len(selection) > 0 {
		want := make(map[string]bool, len(selection))
		for _, s := range selection {
			want[strings.ToLower(strings.TrimSpace(s))] = true
		}
		cols = nil
		for _, f := range Fields {
			if want[f] {
				cols = append(cols, f)
			}
		}
	}

	p := Projection{Columns: cols}
	for _, occ := range occs {
		row := make([]string, len(cols))
		for i, col := range cols {
			row[i] = fieldValue(occ, col)
		}
		p.Rows = append(p.Rows, row)
	}
	return p
}

// Records builds full JSON records from occurrences.
func Records(occs []models.Occurrence) []Record {
	out := make([]Record, 0, len(occs))
	for _, occ := range occs {
		ev := occ.Event
		r := Record{
			UID:         ev.UID,
			Alias:       ev.Alias,
			Calendar:    ev.Calendar,
			Description: ev.Description,
			Location:    ev.Location,
			Tags:        ev.Tags,
			RRule:       ev.RRule,
			Organizer:   ev.Organizer,
			Attendees:   ev.Attendees,
			Reminders:   ev.Reminders,
			Attachments: ev.Attachments,
			Notes:       ev.Notes,
		}
		if !ev.Created.IsZero() {
			r.Created = timestr.Format(ev.Created)
		}
		if !ev.Updated.IsZero() {
			r.Updated = timestr.Format(ev.Updated)
		}
		if !occ.Start.IsZero() {
			r.Start = timestr.Format(occ.Start)
		}
		if !occ.End.IsZero() {
			r.End = timestr.Format(occ.End)
		}
		out = append(out, r)
	}
	return out
}

func fieldValue(occ models.Occurrence, col string) string {
	ev := occ.Event
	switch col {
	case "uid":
		return ev.UID
	case "alias":
		return ev.Alias
	case "calendar":
		return ev.Calendar
	case "start":
		if occ.Start.IsZero() {
			return ""
		}
		return timestr.Format(occ.Start)
	case "end":
		if occ.End.IsZero() {
			return ""
		}
		return timestr.Format(occ.End)
	case "description":
		return ev.Description
	case "location":
		return ev.Location
	case "tags":
		return bracketList(ev.Tags)
	default:
		return ""
	}
}

// bracketList serializes a list value as a bracketed, quoted sequence so
// column counts stay stable; an empty list is an explicit [] marker.
func bracketList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('"')
		b.WriteString(item)
		b.WriteByte('"')
	}
	b.WriteByte(']')
	return b.String()
}
