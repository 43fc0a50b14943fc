package ics

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/timestr"
)

// offsetTrigger turns start-anchored reminder specs into relative VALARM
// triggers. A bare minute count counts back from the start.
func offsetTrigger(spec string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(spec))
	var sign, rest string
	switch {
	case strings.HasPrefix(s, "start-"):
		sign, rest = "-", strings.TrimPrefix(s, "start-")
	case strings.HasPrefix(s, "start+"):
		sign, rest = "", strings.TrimPrefix(s, "start+")
	default:
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return fmt.Sprintf("-PT%dM", n), true
		}
		return "", false
	}
	d, ok := reminderSpan(rest)
	if !ok {
		return "", false
	}
	return sign + icsDuration(d), true
}

// absoluteTrigger resolves end-anchored and absolute reminder specs to a
// concrete instant.
func absoluteTrigger(spec string, ev *models.Event) (time.Time, bool) {
	s := strings.ToLower(strings.TrimSpace(spec))
	if t, ok := timestr.Parse(s, ev.Start.Location()); ok {
		return t, true
	}
	end := ev.End
	if end.IsZero() {
		end = ev.Start
	}
	switch {
	case strings.HasPrefix(s, "end-"):
		if d, ok := reminderSpan(strings.TrimPrefix(s, "end-")); ok {
			return end.Add(-d), true
		}
	case strings.HasPrefix(s, "end+"):
		if d, ok := reminderSpan(strings.TrimPrefix(s, "end+")); ok {
			return end.Add(d), true
		}
	}
	return time.Time{}, false
}

func reminderSpan(s string) (time.Duration, bool) {
	if d, ok := timestr.Span(s); ok {
		return d, true
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return time.Duration(n) * time.Minute, true
	}
	return 0, false
}

func icsDuration(d time.Duration) string {
	total := int(d.Minutes())
	days := total / (24 * 60)
	hours := (total % (24 * 60)) / 60
	mins := total % 60
	switch {
	case days > 0:
		return fmt.Sprintf("P%dDT%dH%dM", days, hours, mins)
	case hours > 0:
		return fmt.Sprintf("PT%dH%dM", hours, mins)
	default:
		return fmt.Sprintf("PT%dM", mins)
	}
}
