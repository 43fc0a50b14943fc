package query

import (
	"strings"
	"time"

	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/timestr"
)

// rangeOrigin bounds open-ended date ranges on the left.
var rangeOrigin = time.Date(1969, 1, 1, 0, 0, 0, 0, time.UTC)

// Matcher evaluates predicate trees against occurrences. Date literals are
// resolved against Now at match time, so one parsed filter stays valid
// across reference instants.
type Matcher struct {
	Now time.Time
}

// Match applies the full filter: the include tree must match and, when an
// exclude tree is present, it must not.
func (m Matcher) Match(occ models.Occurrence, f Filter) bool {
	if !m.Matches(occ, f.Include) {
		return false
	}
	if f.HasExclude() && m.Matches(occ, f.Exclude) {
		return false
	}
	return true
}

// Matches evaluates an AND-conjunction of terms. An empty conjunction
// matches unconditionally.
func (m Matcher) Matches(occ models.Occurrence, terms []Term) bool {
	for i := range terms {
		if !m.matchTerm(occ, &terms[i]) {
			return false
		}
	}
	return true
}

func (m Matcher) matchTerm(occ models.Occurrence, t *Term) bool {
	ev := occ.Event
	switch t.Field {
	case FieldUID:
		return strings.EqualFold(ev.UID, t.Value)
	case FieldAlias:
		return ev.Alias != "" && strings.EqualFold(ev.Alias, t.Value)
	case FieldCalendar:
		return contains(ev.Calendar, t.Value)
	case FieldDescription:
		return contains(ev.Description, t.Value)
	case FieldLocation:
		return contains(ev.Location, t.Value)
	case FieldNotes:
		return contains(ev.Notes, t.Value)
	case FieldTags:
		for _, want := range t.Tags {
			for _, have := range ev.Tags {
				if strings.EqualFold(have, want) {
					return true
				}
			}
		}
		return false
	case FieldStart:
		if occ.Start.IsZero() {
			return false
		}
		begin, end := m.timeRange(t.Value, occ.Start.Location())
		return within(occ.Start, begin, end)
	case FieldEnd:
		if occ.End.IsZero() {
			return false
		}
		begin, end := m.timeRange(t.Value, occ.End.Location())
		return within(occ.End, begin, end)
	default:
		return false
	}
}

// timeRange resolves a date term literal into an inclusive [begin, end]
// pair. "a~b" is a range; "~b" and "a~" leave one side open, falling back
// to the origin and the reference instant respectively. A date-only literal
// covers its full calendar day. Unparsable pieces degrade to the open-ended
// fallbacks rather than failing.
func (m Matcher) timeRange(v string, loc *time.Location) (time.Time, time.Time) {
	var beginStr, endStr string
	switch {
	case strings.HasPrefix(v, "~"):
		endStr = strings.TrimPrefix(v, "~")
	case strings.HasSuffix(v, "~"):
		beginStr = strings.TrimSuffix(v, "~")
	case strings.Contains(v, "~"):
		parts := strings.SplitN(v, "~", 2)
		beginStr = strings.TrimSpace(parts[0])
		endStr = strings.TrimSpace(parts[1])
	default:
		beginStr = v
		endStr = v
	}

	begin, ok := timestr.Parse(beginStr, loc)
	if !ok {
		begin = rangeOrigin
	}
	end, ok := timestr.Parse(endStr, loc)
	if !ok {
		end = m.Now
	} else if timestr.IsDateOnly(endStr) {
		// Cover the entire calendar day.
		end = end.AddDate(0, 0, 1).Add(-time.Second)
	}
	return begin, end
}

func within(t, begin, end time.Time) bool {
	return !t.Before(begin) && !t.After(end)
}

func contains(field, value string) bool {
	if field == "" {
		return false
	}
	return strings.Contains(strings.ToLower(field), value)
}
