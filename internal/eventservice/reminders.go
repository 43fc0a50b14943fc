package eventservice

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/timestr"
	"github.com/starford/dagaz/internal/window"
)

// Alert is one reminder falling due inside a lookahead interval.
type Alert struct {
	Event  *models.Event
	Start  time.Time // occurrence start
	End    time.Time // occurrence end
	At     time.Time // resolved reminder instant
	Notify string
}

// Reminders resolves every reminder spec of every occurrence and returns
// those whose instant falls inside [now-1m, now+interval]. An empty
// interval defaults to one hour, matching the notification daemon's poll
// horizon.
func (s *Service) Reminders(interval string) ([]Alert, error) {
	now := s.now()
	win := window.Window{Start: now, End: now.Add(time.Hour)}
	if interval != "" {
		var err error
		win, err = window.ParseInterval(interval, now)
		if err != nil {
			return nil, err
		}
	}
	// Allow a minute of slack behind the reference instant so reminders
	// firing right around a poll are not missed.
	win.Start = win.Start.Add(-time.Minute)

	m := s.Occurrences(s.Snapshot(), s.wideWindow(now))

	var alerts []Alert
	for _, occ := range m.Occurrences {
		for _, rem := range occ.Event.Reminders {
			at, ok := resolveReminder(rem.Remind, occ.Start, occ.End)
			if !ok {
				s.logger.Warn("reminders: unresolvable spec",
					slog.String("alias", occ.Event.Alias), slog.String("remind", rem.Remind))
				continue
			}
			if at.Before(win.Start) || at.After(win.End) {
				continue
			}
			notify := rem.Notify
			if notify != models.NotifyEmail || s.settings.UserEmail == "" {
				notify = models.NotifyDisplay
			}
			alerts = append(alerts, Alert{
				Event:  occ.Event,
				Start:  occ.Start,
				End:    occ.End,
				At:     at,
				Notify: notify,
			})
		}
	}

	sort.SliceStable(alerts, func(i, j int) bool { return alerts[i].At.Before(alerts[j].At) })
	return alerts, nil
}

// resolveReminder turns a reminder spec into an absolute instant: either a
// literal timestamp, or "start±offset" / "end±offset" where the offset is a
// duration expression or a bare minute count.
func resolveReminder(spec string, start, end time.Time) (time.Time, bool) {
	spec = strings.ToLower(strings.TrimSpace(spec))
	if t, ok := timestr.Parse(spec, start.Location()); ok {
		return t, true
	}

	var anchorStr, offsetStr string
	prior := false
	switch {
	case strings.Contains(spec, "-"):
		parts := strings.SplitN(spec, "-", 2)
		anchorStr, offsetStr = parts[0], parts[1]
		prior = true
	case strings.Contains(spec, "+"):
		parts := strings.SplitN(spec, "+", 2)
		anchorStr, offsetStr = parts[0], parts[1]
	default:
		// A bare minute count means "before the start".
		n, err := strconv.Atoi(spec)
		if err != nil {
			return time.Time{}, false
		}
		return start.Add(-time.Duration(n) * time.Minute), true
	}

	var anchor time.Time
	switch anchorStr {
	case "start":
		anchor = start
	case "end":
		anchor = end
	default:
		return time.Time{}, false
	}
	if anchor.IsZero() {
		return time.Time{}, false
	}

	offset, ok := timestr.Span(offsetStr)
	if !ok {
		// Bare integers are minute counts.
		n, err := strconv.Atoi(offsetStr)
		if err != nil {
			return time.Time{}, false
		}
		offset = time.Duration(n) * time.Minute
	}
	if prior {
		return anchor.Add(-offset), true
	}
	return anchor.Add(offset), true
}
