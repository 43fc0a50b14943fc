package ics

import (
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/eventservice"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/timestr"
)

// Import reads a VCALENDAR stream and converts every VEVENT into creation
// parameters. Events the stream marks recurring keep their rule in dagaz
// syntax.
func Import(r io.Reader, loc *time.Location) ([]eventservice.EventParams, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("ics: parse calendar: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}

	var out []eventservice.EventParams
	for _, ve := range cal.Events() {
		params, err := importEvent(ve, loc)
		if err != nil {
			return nil, err
		}
		out = append(out, params)
	}
	return out, nil
}

func importEvent(ve *ical.VEvent, loc *time.Location) (eventservice.EventParams, error) {
	var params eventservice.EventParams

	start, err := ve.GetStartAt()
	if err != nil {
		return params, fmt.Errorf("ics: event without DTSTART: %w", err)
	}
	params.Start = timestr.Format(start.In(loc))
	if end, err := ve.GetEndAt(); err == nil && !end.IsZero() {
		params.End = timestr.Format(end.In(loc))
	}

	params.Description = propValue(ve, ical.ComponentPropertySummary)
	params.Location = propValue(ve, ical.ComponentPropertyLocation)
	params.Notes = propValue(ve, ical.ComponentPropertyDescription)
	if cats := propValue(ve, ical.ComponentProperty("CATEGORIES")); cats != "" {
		for _, tag := range strings.Split(cats, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				params.Tags = append(params.Tags, tag)
			}
		}
	}
	if org := propValue(ve, ical.ComponentPropertyOrganizer); org != "" {
		params.Organizer = &models.Organizer{Email: mailAddr(org)}
	}
	for _, p := range ve.Properties {
		if ical.ComponentProperty(p.IANAToken) == ical.ComponentPropertyAttendee {
			params.Attendees = append(params.Attendees, models.Attendee{
				Email:  mailAddr(p.Value),
				Status: partStat(p.ICalParameters),
			})
		}
	}

	rule, err := importRule(ve, loc)
	if err != nil {
		return params, err
	}
	params.RRule = rule
	return params, nil
}

// importRule converts RFC 5545 RRULE/RDATE/EXDATE properties to dagaz rule
// syntax. Multi-valued numeric constraints keep their first element; the
// remainder has no dagaz equivalent.
func importRule(ve *ical.VEvent, loc *time.Location) (string, error) {
	var parts []string

	if rdate := propValue(ve, ical.ComponentProperty("RDATE")); rdate != "" {
		dates, err := convertStampList(rdate, loc)
		if err != nil {
			return "", err
		}
		parts = append(parts, "date="+dates)
	} else if rrule := propValue(ve, ical.ComponentPropertyRrule); rrule != "" {
		converted, err := convertRRule(rrule, loc)
		if err != nil {
			return "", err
		}
		parts = append(parts, converted)
	}
	if exdate := propValue(ve, ical.ComponentPropertyExdate); exdate != "" {
		dates, err := convertStampList(exdate, loc)
		if err != nil {
			return "", err
		}
		parts = append(parts, "except="+dates)
	}
	return strings.Join(parts, ";"), nil
}

func convertRRule(raw string, loc *time.Location) (string, error) {
	var parts []string
	for _, item := range strings.Split(raw, ";") {
		key, value, found := strings.Cut(item, "=")
		if !found {
			return "", fmt.Errorf("%w: bad RRULE part %q", apperr.ErrInvalidRule, item)
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "FREQ":
			parts = append(parts, "freq="+strings.ToLower(value))
		case "INTERVAL", "COUNT", "BYSETPOS":
			parts = append(parts, strings.ToLower(key)+"="+value)
		case "BYDAY":
			parts = append(parts, "byweekday="+strings.ToLower(value))
		case "BYHOUR", "BYMONTH", "BYMONTHDAY", "BYYEARDAY", "BYWEEKNO":
			first, _, _ := strings.Cut(value, ",")
			parts = append(parts, strings.ToLower(key)+"="+first)
		case "UNTIL":
			t, err := parseICSStamp(value, loc)
			if err != nil {
				return "", err
			}
			parts = append(parts, "until="+timestr.Format(t.In(loc)))
		case "WKST":
			// week start comes from configuration, not the payload
		default:
			return "", fmt.Errorf("%w: unsupported RRULE part %q", apperr.ErrInvalidRule, key)
		}
	}
	return strings.Join(parts, ";"), nil
}

func convertStampList(raw string, loc *time.Location) (string, error) {
	var out []string
	for _, entry := range strings.Split(raw, ",") {
		t, err := parseICSStamp(strings.TrimSpace(entry), loc)
		if err != nil {
			return "", err
		}
		out = append(out, timestr.Format(t.In(loc)))
	}
	return strings.Join(out, ","), nil
}

func parseICSStamp(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range []string{icsStampLayout, "20060102T150405", "20060102"} {
		if t, err := time.Parse(layout, s); err == nil {
			if !strings.HasSuffix(layout, "Z") {
				t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc)
			}
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparsable timestamp %q", apperr.ErrInvalidRule, s)
}

func propValue(ve *ical.VEvent, prop ical.ComponentProperty) string {
	p := ve.GetProperty(prop)
	if p == nil {
		return ""
	}
	return p.Value
}

func mailAddr(s string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "mailto:")
}

// partStat maps a PARTSTAT parameter onto the attendee status set; values
// outside it (DELEGATED, NEEDS-ACTION) carry no dagaz equivalent.
func partStat(params map[string][]string) string {
	vals := params["PARTSTAT"]
	if len(vals) == 0 {
		return models.StatusNone
	}
	switch strings.ToUpper(vals[0]) {
	case models.StatusAccepted, models.StatusDeclined, models.StatusTentative:
		return strings.ToUpper(vals[0])
	}
	return models.StatusNone
}
