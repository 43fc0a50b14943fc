// Package ics converts between dagaz events and iCalendar payloads.
package ics

import (
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/recur"
)

const productID = "-//dagaz//calendar//EN"

const icsStampLayout = "20060102T150405Z"

// Export writes events as a VCALENDAR. With invite set the calendar carries
// METHOD:REQUEST so mail clients treat it as an invitation.
func Export(w io.Writer, events []*models.Event, invite bool) error {
	cal := ical.NewCalendar()
	cal.SetProductId(productID)
	if invite {
		cal.SetMethod(ical.MethodRequest)
	}

	now := time.Now()
	for _, ev := range events {
		ve := cal.AddEvent(ev.UID)
		ve.SetDtStampTime(now)
		if !ev.Created.IsZero() {
			ve.SetCreatedTime(ev.Created)
		}
		if !ev.Updated.IsZero() {
			ve.SetModifiedAt(ev.Updated)
		}
		ve.SetStartAt(ev.Start.UTC())
		if !ev.End.IsZero() {
			ve.SetEndAt(ev.End.UTC())
		}
		ve.SetSummary(ev.Description)
		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}
		if ev.Notes != "" {
			ve.SetDescription(ev.Notes)
		}
		if len(ev.Tags) > 0 {
			ve.SetProperty(ical.ComponentProperty("CATEGORIES"), strings.Join(ev.Tags, ","))
		}
		if ev.Organizer != nil {
			if ev.Organizer.Name != "" {
				ve.SetOrganizer("mailto:"+ev.Organizer.Email, ical.WithCN(ev.Organizer.Name))
			} else {
				ve.SetOrganizer("mailto:" + ev.Organizer.Email)
			}
		}
		for _, a := range ev.Attendees {
			var props []ical.PropertyParameter
			if a.Name != "" {
				props = append(props, ical.WithCN(a.Name))
			}
			if a.Status != "" && a.Status != models.StatusNone {
				props = append(props, &ical.KeyValues{Key: "PARTSTAT", Value: []string{a.Status}})
			}
			ve.AddAttendee(a.Email, props...)
		}
		for _, url := range ev.Attachments {
			ve.SetProperty(ical.ComponentProperty("ATTACH"), url)
		}
		if ev.RRule != "" {
			if err := setRecurrence(ve, ev); err != nil {
				return err
			}
		}
		for _, rem := range ev.Reminders {
			addAlarm(ve, rem, ev)
		}
	}
	return cal.SerializeTo(w)
}

// setRecurrence maps a parsed dagaz rule onto RRULE/RDATE/EXDATE properties.
func setRecurrence(ve *ical.VEvent, ev *models.Event) error {
	rule, err := recur.Parse(ev.RRule, ev.Start.Location())
	if err != nil {
		return fmt.Errorf("ics: event %s: %w", ev.Alias, err)
	}
	if len(rule.Dates) > 0 {
		ve.SetProperty(ical.ComponentProperty("RDATE"), stampList(rule.Dates))
	} else {
		ve.SetProperty(ical.ComponentPropertyRrule, rfcRule(rule))
	}
	if len(rule.Excepts) > 0 {
		ve.SetProperty(ical.ComponentPropertyExdate, stampList(rule.Excepts))
	}
	return nil
}

// rfcRule renders a freq-based rule in RFC 5545 RRULE syntax.
func rfcRule(rule *recur.Rule) string {
	parts := []string{"FREQ=" + strings.ToUpper(rule.Freq.String())}
	if rule.Interval > 1 {
		parts = append(parts, fmt.Sprintf("INTERVAL=%d", rule.Interval))
	}
	if rule.Count > 0 {
		parts = append(parts, fmt.Sprintf("COUNT=%d", rule.Count))
	}
	if !rule.Until.IsZero() {
		parts = append(parts, "UNTIL="+rule.Until.UTC().Format(icsStampLayout))
	}
	if len(rule.ByWeekdays) > 0 {
		days := make([]string, len(rule.ByWeekdays))
		for i, wd := range rule.ByWeekdays {
			days[i] = icsDay(wd)
		}
		parts = append(parts, "BYDAY="+strings.Join(days, ","))
	}
	if rule.ByHour >= 0 {
		parts = append(parts, fmt.Sprintf("BYHOUR=%d", rule.ByHour))
	}
	if rule.ByMonth != 0 {
		parts = append(parts, fmt.Sprintf("BYMONTH=%d", rule.ByMonth))
	}
	if rule.ByMonthDay != 0 {
		parts = append(parts, fmt.Sprintf("BYMONTHDAY=%d", rule.ByMonthDay))
	}
	if rule.ByYearDay != 0 {
		parts = append(parts, fmt.Sprintf("BYYEARDAY=%d", rule.ByYearDay))
	}
	if rule.ByWeekNo != 0 {
		parts = append(parts, fmt.Sprintf("BYWEEKNO=%d", rule.ByWeekNo))
	}
	if rule.BySetPos != 0 {
		parts = append(parts, fmt.Sprintf("BYSETPOS=%d", rule.BySetPos))
	}
	return strings.Join(parts, ";")
}

// addAlarm renders a reminder as a VALARM. Offset specs anchored to the
// start map to relative triggers; anything else becomes an absolute one.
func addAlarm(ve *ical.VEvent, rem models.Reminder, ev *models.Event) {
	action := "DISPLAY"
	if rem.Notify == models.NotifyEmail {
		action = "EMAIL"
	}
	alarm := ve.AddAlarm()
	alarm.SetProperty(ical.ComponentProperty("ACTION"), action)
	alarm.SetProperty(ical.ComponentProperty("DESCRIPTION"), ev.Description)

	if trigger, ok := offsetTrigger(rem.Remind); ok {
		alarm.SetProperty(ical.ComponentProperty("TRIGGER"), trigger)
		return
	}
	if t, ok := absoluteTrigger(rem.Remind, ev); ok {
		alarm.SetProperty(ical.ComponentProperty("TRIGGER"), t.UTC().Format(icsStampLayout))
	}
}

func icsDay(wd time.Weekday) string {
	return [...]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}[int(wd)]
}

func stampList(ts []time.Time) string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.UTC().Format(icsStampLayout)
	}
	return strings.Join(out, ",")
}
