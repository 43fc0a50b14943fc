// Package timestr parses and formats the timestamp and duration strings
// accepted throughout dagaz.
package timestr

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Stamp is the canonical timestamp layout used for structural output.
const Stamp = "2006-01-02 15:04:05"

// DateLayout is a bare calendar date with no time component.
const DateLayout = "2006-01-02"

var layouts = []string{
	Stamp,
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.RFC3339,
	DateLayout,
}

var (
	daysRe    = regexp.MustCompile(`(\d+)d`)
	hoursRe   = regexp.MustCompile(`(\d+)h`)
	minutesRe = regexp.MustCompile(`(\d+)m`)
)

// Parse interprets s as a local date or datetime in loc. The second return
// is false when s matches none of the accepted layouts.
func Parse(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// IsDateOnly reports whether s is a bare date with no time component.
func IsDateOnly(s string) bool {
	_, err := time.Parse(DateLayout, strings.TrimSpace(s))
	return err == nil
}

// Span converts a duration expression in the form (x)d(y)h(z)m into a
// time.Duration. Each component is optional; ok is false when none are
// present.
func Span(expr string) (time.Duration, bool) {
	expr = strings.ToLower(strings.TrimSpace(expr))
	var (
		total time.Duration
		found bool
	)
	for _, part := range []struct {
		re   *regexp.Regexp
		unit time.Duration
	}{
		{daysRe, 24 * time.Hour},
		{hoursRe, time.Hour},
		{minutesRe, time.Minute},
	} {
		m := part.re.FindStringSubmatch(expr)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		total += time.Duration(n) * part.unit
		found = true
	}
	return total, found
}

// Format renders t in the canonical Stamp layout.
func Format(t time.Time) string {
	return t.Format(Stamp)
}

// FormatPretty renders t as a bare date when it falls on midnight, and as
// date plus hour:minute otherwise.
func FormatPretty(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 {
		return t.Format(DateLayout)
	}
	return t.Format("2006-01-02 15:04")
}
