package recur

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/window"
)

// DefaultLimit is the fallback safety ceiling on generated recurrences when
// the caller does not thread a configured one.
const DefaultLimit = 1000

// Options tune one expansion call. The limit is deliberately a per-call
// parameter rather than package state so it stays tunable and testable.
type Options struct {
	// Limit caps the number of generated recurrences for rules bounded by
	// neither count nor until. Zero selects DefaultLimit.
	Limit int

	// FirstWeekday sets the week boundary (0=Monday..6=Sunday) used by
	// weekly frequencies and byweekno.
	FirstWeekday int
}

// Expansion is the result of expanding one event over a window.
type Expansion struct {
	Occurrences []models.Occurrence

	// Truncated is set when generation hit the safety ceiling before the
	// window was exhausted. Truncation is silent but observable so callers
	// can warn the user.
	Truncated bool
}

var rruleFreqs = map[Frequency]rrule.Frequency{
	Minutely: rrule.MINUTELY,
	Hourly:   rrule.HOURLY,
	Daily:    rrule.DAILY,
	Weekly:   rrule.WEEKLY,
	Monthly:  rrule.MONTHLY,
	Yearly:   rrule.YEARLY,
}

var rruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
	time.Sunday:    rrule.SU,
}

// wkstTable maps the configured first weekday (0=Monday..6=Sunday) onto
// rrule week-start constants.
var wkstTable = [7]rrule.Weekday{
	rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU,
}

// Expand yields the occurrences of ev that intersect win, in chronological
// start order. An event without a rule yields at most its own (start, end).
// Generation is lazy: the candidate stream stops at the window's end instead
// of materializing the full series.
func Expand(ev *models.Event, win window.Window, opts Options) (Expansion, error) {
	if ev.RRule == "" {
		var x Expansion
		if win.Overlaps(ev.Start, ev.End) {
			x.Occurrences = append(x.Occurrences, models.Occurrence{Event: ev, Start: ev.Start, End: ev.End})
		}
		return x, nil
	}
	rule, err := Parse(ev.RRule, ev.Start.Location())
	if err != nil {
		return Expansion{}, err
	}
	return ExpandRule(ev, rule, win, opts)
}

// ExpandRule is Expand for an already-parsed rule.
func ExpandRule(ev *models.Event, rule *Rule, win window.Window, opts Options) (Expansion, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	dur := ev.Duration()

	set, err := buildSet(ev, rule, opts)
	if err != nil {
		return Expansion{}, err
	}

	var x Expansion
	next := set.Iterator()
	generated := 0
	for {
		start, ok := next()
		if !ok {
			return x, nil
		}
		end := occurrenceEnd(start, dur)
		if !start.Before(win.End) {
			// The stream is chronological; nothing later can intersect.
			return x, nil
		}
		if win.Overlaps(start, end) {
			x.Occurrences = append(x.Occurrences, models.Occurrence{Event: ev, Start: start, End: end})
		}
		generated++
		if generated >= limit {
			break
		}
	}

	// The ceiling was reached; only report truncation when the stream still
	// had candidates inside the window.
	if more, ok := next(); ok && more.Before(win.End) {
		x.Truncated = true
	}
	return x, nil
}

// Next returns the first occurrence of ev starting at or after from. An
// event without a rule yields its own (start, end); a recurring series with
// nothing left at or after from yields ok=false.
func Next(ev *models.Event, from time.Time, opts Options) (models.Occurrence, bool, error) {
	if ev.RRule == "" {
		return models.Occurrence{Event: ev, Start: ev.Start, End: ev.End}, true, nil
	}
	rule, err := Parse(ev.RRule, ev.Start.Location())
	if err != nil {
		return models.Occurrence{}, false, err
	}
	set, err := buildSet(ev, rule, opts)
	if err != nil {
		return models.Occurrence{}, false, err
	}
	start := set.After(from, true)
	if start.IsZero() {
		return models.Occurrence{}, false, nil
	}
	return models.Occurrence{Event: ev, Start: start, End: occurrenceEnd(start, ev.Duration())}, true, nil
}

// buildSet assembles the rrule set for a rule: either the explicit date
// list, or the freq-based generator, with excepts subtracted in both cases.
func buildSet(ev *models.Event, rule *Rule, opts Options) (*rrule.Set, error) {
	set := &rrule.Set{}

	if len(rule.Dates) > 0 {
		for _, d := range rule.Dates {
			set.RDate(d)
		}
	} else {
		ropt := rrule.ROption{
			Freq:     rruleFreqs[rule.Freq],
			Dtstart:  ev.Start,
			Interval: rule.Interval,
			Wkst:     wkst(opts.FirstWeekday),
			Count:    rule.Count,
			Until:    rule.Until,
		}
		if rule.ByHour >= 0 {
			ropt.Byhour = []int{rule.ByHour}
		}
		for _, wd := range rule.ByWeekdays {
			ropt.Byweekday = append(ropt.Byweekday, rruleWeekdays[wd])
		}
		if rule.ByMonth != 0 {
			ropt.Bymonth = []int{rule.ByMonth}
		}
		if rule.ByMonthDay != 0 {
			ropt.Bymonthday = []int{rule.ByMonthDay}
		}
		if rule.ByYearDay != 0 {
			ropt.Byyearday = []int{rule.ByYearDay}
		}
		if rule.ByWeekNo != 0 {
			ropt.Byweekno = []int{rule.ByWeekNo}
		}
		if rule.BySetPos != 0 {
			ropt.Bysetpos = []int{rule.BySetPos}
		}
		r, err := rrule.NewRRule(ropt)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidRule, err)
		}
		set.RRule(r)
	}

	for _, ex := range rule.Excepts {
		set.ExDate(ex)
	}
	return set, nil
}

func occurrenceEnd(start time.Time, dur time.Duration) time.Time {
	if dur <= 0 {
		return time.Time{}
	}
	return start.Add(dur)
}

func wkst(firstWeekday int) rrule.Weekday {
	if firstWeekday < 0 || firstWeekday > 6 {
		firstWeekday = 0
	}
	return wkstTable[firstWeekday]
}
