package ics

import (
	"fmt"
	"io"
	"time"

	"github.com/starford/dagaz/internal/window"
)

// WriteFreeBusy serializes busy spans inside win as a VFREEBUSY calendar.
// golang-ical has no builder for the component, so the block is written by
// hand with the CRLF line endings RFC 5545 requires.
func WriteFreeBusy(w io.Writer, win window.Window, busy []window.Window, now time.Time) error {
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:" + productID,
		"CALSCALE:GREGORIAN",
		"BEGIN:VFREEBUSY",
		"DTSTART:" + win.Start.UTC().Format(icsStampLayout),
		"DTEND:" + win.End.UTC().Format(icsStampLayout),
		"DTSTAMP:" + now.UTC().Format(icsStampLayout),
	}
	for _, span := range busy {
		end := span.End
		if end.IsZero() {
			end = span.Start
		}
		lines = append(lines, fmt.Sprintf("FREEBUSY:%s/%s",
			span.Start.UTC().Format(icsStampLayout), end.UTC().Format(icsStampLayout)))
	}
	lines = append(lines, "END:VFREEBUSY", "END:VCALENDAR")

	for _, line := range lines {
		if _, err := io.WriteString(w, line+"\r\n"); err != nil {
			return err
		}
	}
	return nil
}
