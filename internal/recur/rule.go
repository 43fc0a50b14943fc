// Package recur parses recurrence rules and expands events into concrete
// occurrences within a window.
package recur

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/timestr"
)

// Frequency of a freq-based recurrence rule.
type Frequency int

const (
	Minutely Frequency = iota
	Hourly
	Daily
	Weekly
	Monthly
	Yearly
)

var frequencies = map[string]Frequency{
	"minutely": Minutely,
	"hourly":   Hourly,
	"daily":    Daily,
	"weekly":   Weekly,
	"monthly":  Monthly,
	"yearly":   Yearly,
}

func (f Frequency) String() string {
	for name, freq := range frequencies {
		if freq == f {
			return name
		}
	}
	return "unknown"
}

var weekdayNames = map[string]time.Weekday{
	"su": time.Sunday,
	"mo": time.Monday,
	"tu": time.Tuesday,
	"we": time.Wednesday,
	"th": time.Thursday,
	"fr": time.Friday,
	"sa": time.Saturday,
}

// Rule is a parsed recurrence specification. Explicit Dates bypass the
// frequency generator entirely; Excepts always subtract from whichever set
// results.
type Rule struct {
	Dates   []time.Time
	Excepts []time.Time

	HasFreq  bool
	Freq     Frequency
	Count    int       // 0 means no count limiter
	Until    time.Time // zero means no until limiter
	Interval int       // step between periods, at least 1

	ByHour     int // -1 when unset
	ByWeekdays []time.Weekday
	ByMonth    int // 0 when unset
	ByMonthDay int
	ByYearDay  int
	ByWeekNo   int
	BySetPos   int // 0 when unset; negative counts from the period's end
}

// Parse parses a semicolon-delimited recurrence expression such as
// "freq=monthly;byweekday=mo;bysetpos=-1;until=2021-12-31". Out-of-range
// by* values, unknown directives and ambiguous combinations are rejected
// with apperr.ErrInvalidRule.
func Parse(expr string, loc *time.Location) (*Rule, error) {
	expr = strings.ToLower(strings.TrimSpace(expr))
	if expr == "" {
		return nil, fmt.Errorf("%w: empty expression", apperr.ErrInvalidRule)
	}
	if loc == nil {
		loc = time.Local
	}

	r := &Rule{Interval: 1, ByHour: -1}

	for _, item := range strings.Split(expr, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key, value, found := strings.Cut(item, "=")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if !found || key == "" || value == "" {
			return nil, fmt.Errorf("%w: bad directive %q", apperr.ErrInvalidRule, item)
		}

		switch key {
		case "date":
			dates, err := parseStampList(value, loc)
			if err != nil {
				return nil, err
			}
			r.Dates = dates
		case "except":
			dates, err := parseStampList(value, loc)
			if err != nil {
				return nil, err
			}
			r.Excepts = dates
		case "freq":
			freq, ok := frequencies[value]
			if !ok {
				return nil, fmt.Errorf("%w: unknown frequency %q", apperr.ErrInvalidRule, value)
			}
			r.Freq = freq
			r.HasFreq = true
		case "count":
			n, err := parseBound(key, value, 1, 1<<30)
			if err != nil {
				return nil, err
			}
			r.Count = n
		case "until":
			t, ok := timestr.Parse(value, loc)
			if !ok {
				return nil, fmt.Errorf("%w: unparsable until %q", apperr.ErrInvalidRule, value)
			}
			r.Until = t
		case "interval":
			n, err := parseBound(key, value, 1, 1<<30)
			if err != nil {
				return nil, err
			}
			r.Interval = n
		case "byhour":
			n, err := parseBound(key, value, 0, 23)
			if err != nil {
				return nil, err
			}
			r.ByHour = n
		case "byweekday":
			for _, name := range strings.Split(value, ",") {
				wd, ok := weekdayNames[strings.TrimSpace(name)]
				if !ok {
					return nil, fmt.Errorf("%w: unknown weekday %q", apperr.ErrInvalidRule, name)
				}
				r.ByWeekdays = append(r.ByWeekdays, wd)
			}
		case "bymonth":
			n, err := parseBound(key, value, 1, 12)
			if err != nil {
				return nil, err
			}
			r.ByMonth = n
		case "bymonthday":
			n, err := parseBound(key, value, 1, 31)
			if err != nil {
				return nil, err
			}
			r.ByMonthDay = n
		case "byyearday":
			n, err := parseBound(key, value, 1, 366)
			if err != nil {
				return nil, err
			}
			r.ByYearDay = n
		case "byweekno":
			n, err := parseBound(key, value, 1, 53)
			if err != nil {
				return nil, err
			}
			r.ByWeekNo = n
		case "bysetpos":
			n, err := strconv.Atoi(value)
			if err != nil || n == 0 {
				return nil, fmt.Errorf("%w: bysetpos must be a nonzero integer, got %q", apperr.ErrInvalidRule, value)
			}
			r.BySetPos = n
		default:
			return nil, fmt.Errorf("%w: unknown directive %q", apperr.ErrInvalidRule, key)
		}
	}

	if len(r.Dates) == 0 && !r.HasFreq {
		return nil, fmt.Errorf("%w: rule needs date or freq", apperr.ErrInvalidRule)
	}
	if r.BySetPos != 0 && !r.hasPeriodConstraint() {
		return nil, fmt.Errorf("%w: bysetpos without a period-defining by* constraint", apperr.ErrInvalidRule)
	}
	return r, nil
}

// hasPeriodConstraint reports whether any by* directive defines a candidate
// set that bysetpos could index into.
func (r *Rule) hasPeriodConstraint() bool {
	return r.ByHour >= 0 || len(r.ByWeekdays) > 0 || r.ByMonth != 0 ||
		r.ByMonthDay != 0 || r.ByYearDay != 0 || r.ByWeekNo != 0
}

func parseStampList(value string, loc *time.Location) ([]time.Time, error) {
	var out []time.Time
	for _, entry := range strings.Split(value, ",") {
		t, ok := timestr.Parse(entry, loc)
		if !ok {
			return nil, fmt.Errorf("%w: unparsable date %q", apperr.ErrInvalidRule, entry)
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func parseBound(key, value string, lo, hi int) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", apperr.ErrInvalidRule, key, value)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%w: %s=%d out of range [%d, %d]", apperr.ErrInvalidRule, key, n, lo, hi)
	}
	return n, nil
}
