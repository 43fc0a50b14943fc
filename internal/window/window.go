// Package window resolves named or custom view requests into concrete
// half-open datetime windows.
package window

import (
	"fmt"
	"strings"
	"time"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/timestr"
)

// Named calendar views accepted by Resolve.
const (
	ViewAgenda    = "agenda"
	ViewToday     = "today"
	ViewYesterday = "yesterday"
	ViewTomorrow  = "tomorrow"
	ViewThisWeek  = "thisweek"
	ViewLastWeek  = "lastweek"
	ViewNextWeek  = "nextweek"
	ViewThisMonth = "thismonth"
	ViewLastMonth = "lastmonth"
	ViewNextMonth = "nextmonth"
	ViewThisYear  = "thisyear"
	ViewLastYear  = "lastyear"
	ViewNextYear  = "nextyear"
	ViewCustom    = "custom"
)

// Window is a half-open [Start, End) time interval.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window. The end instant is
// never itself contained.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Overlaps reports whether the span [start, end) intersects the window. A
// zero end is treated as a point event at start.
func (w Window) Overlaps(start, end time.Time) bool {
	if end.IsZero() || !end.After(start) {
		return w.Contains(start)
	}
	return start.Before(w.End) && end.After(w.Start)
}

// Duration returns the window length.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Resolve turns a view name into a concrete window relative to ref's local
// calendar date. Week boundaries honor firstWeekday (0=Monday..6=Sunday).
// The custom view requires both bounds; customEnd given as a bare date
// covers that entire day.
func Resolve(view string, ref time.Time, customStart, customEnd string, firstWeekday int) (Window, error) {
	view = strings.ToLower(strings.TrimSpace(view))
	loc := ref.Location()
	day := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, loc)

	switch view {
	case ViewToday, ViewAgenda:
		return Window{day, day.AddDate(0, 0, 1)}, nil
	case ViewYesterday:
		return Window{day.AddDate(0, 0, -1), day}, nil
	case ViewTomorrow:
		return Window{day.AddDate(0, 0, 1), day.AddDate(0, 0, 2)}, nil
	case ViewThisWeek:
		ws := weekStart(day, firstWeekday)
		return Window{ws, ws.AddDate(0, 0, 7)}, nil
	case ViewLastWeek:
		ws := weekStart(day, firstWeekday)
		return Window{ws.AddDate(0, 0, -7), ws}, nil
	case ViewNextWeek:
		ws := weekStart(day, firstWeekday).AddDate(0, 0, 7)
		return Window{ws, ws.AddDate(0, 0, 7)}, nil
	case ViewThisMonth:
		ms := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, loc)
		return Window{ms, ms.AddDate(0, 1, 0)}, nil
	case ViewLastMonth:
		ms := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, loc)
		return Window{ms.AddDate(0, -1, 0), ms}, nil
	case ViewNextMonth:
		ms := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, loc).AddDate(0, 1, 0)
		return Window{ms, ms.AddDate(0, 1, 0)}, nil
	case ViewThisYear:
		ys := time.Date(ref.Year(), 1, 1, 0, 0, 0, 0, loc)
		return Window{ys, ys.AddDate(1, 0, 0)}, nil
	case ViewLastYear:
		ys := time.Date(ref.Year(), 1, 1, 0, 0, 0, 0, loc)
		return Window{ys.AddDate(-1, 0, 0), ys}, nil
	case ViewNextYear:
		ys := time.Date(ref.Year()+1, 1, 1, 0, 0, 0, 0, loc)
		return Window{ys, ys.AddDate(1, 0, 0)}, nil
	case ViewCustom:
		return resolveCustom(customStart, customEnd, loc)
	default:
		return Window{}, fmt.Errorf("%w: unknown view %q", apperr.ErrInvalidRange, view)
	}
}

// ParseInterval resolves a relative interval expression of the form
// ([0-9]+d)?([0-9]+h)?([0-9]+m)? into the window [ref, ref+duration).
func ParseInterval(expr string, ref time.Time) (Window, error) {
	dur, ok := timestr.Span(expr)
	if !ok {
		return Window{}, fmt.Errorf("%w: no duration components in %q", apperr.ErrInvalidInterval, expr)
	}
	if dur <= 0 {
		return Window{}, fmt.Errorf("%w: zero duration in %q", apperr.ErrInvalidInterval, expr)
	}
	return Window{ref, ref.Add(dur)}, nil
}

func resolveCustom(startStr, endStr string, loc *time.Location) (Window, error) {
	if startStr == "" || endStr == "" {
		return Window{}, fmt.Errorf("%w: custom view requires start and end", apperr.ErrInvalidRange)
	}
	start, ok := timestr.Parse(startStr, loc)
	if !ok {
		return Window{}, fmt.Errorf("%w: unparsable start %q", apperr.ErrInvalidRange, startStr)
	}
	end, ok := timestr.Parse(endStr, loc)
	if !ok {
		return Window{}, fmt.Errorf("%w: unparsable end %q", apperr.ErrInvalidRange, endStr)
	}
	if timestr.IsDateOnly(endStr) {
		end = end.AddDate(0, 0, 1)
	}
	if !end.After(start) {
		return Window{}, fmt.Errorf("%w: end %q is not after start %q", apperr.ErrInvalidRange, endStr, startStr)
	}
	return Window{start, end}, nil
}

// weekStart returns the most recent week boundary at or before day.
// firstWeekday uses 0=Monday..6=Sunday, matching the configuration value.
func weekStart(day time.Time, firstWeekday int) time.Time {
	if firstWeekday < 0 || firstWeekday > 6 {
		firstWeekday = 0
	}
	// time.Weekday counts Sunday=0; shift to Monday=0.
	wd := (int(day.Weekday()) + 6) % 7
	back := (wd - firstWeekday + 7) % 7
	return day.AddDate(0, 0, -back)
}
