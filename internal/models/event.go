// Package models defines the domain types for dagaz.
package models

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Attendee status values.
const (
	StatusAccepted  = "ACCEPTED"
	StatusDeclined  = "DECLINED"
	StatusTentative = "TENTATIVE"
	StatusNone      = "NONE"
)

// Notification kinds for reminders.
const (
	NotifyDisplay = "display"
	NotifyEmail   = "email"
)

// Event represents one calendar event record.
type Event struct {
	UID         string      `yaml:"uid" json:"uid"`
	Created     time.Time   `yaml:"created" json:"created"`
	Updated     time.Time   `yaml:"updated" json:"updated"`
	Alias       string      `yaml:"alias" json:"alias"`
	Calendar    string      `yaml:"calendar,omitempty" json:"calendar,omitempty"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
	Location    string      `yaml:"location,omitempty" json:"location,omitempty"`
	Tags        []string    `yaml:"tags,omitempty" json:"tags,omitempty"`
	Start       time.Time   `yaml:"start" json:"start"`
	End         time.Time   `yaml:"end,omitempty" json:"end,omitempty"`
	RRule       string      `yaml:"rrule,omitempty" json:"rrule,omitempty"`
	Reminders   []Reminder  `yaml:"reminders,omitempty" json:"reminders,omitempty"`
	Organizer   *Organizer  `yaml:"organizer,omitempty" json:"organizer,omitempty"`
	Attendees   []Attendee  `yaml:"attendees,omitempty" json:"attendees,omitempty"`
	Attachments []string    `yaml:"attachments,omitempty" json:"attachments,omitempty"`
	Notes       string      `yaml:"notes,omitempty" json:"notes,omitempty"`
}

// Reminder is either an absolute timestamp or an offset expression anchored
// to the event start or end (for example "start-15m" or "end+1h"), paired
// with a notification kind.
type Reminder struct {
	Remind string `yaml:"remind" json:"remind"`
	Notify string `yaml:"notify,omitempty" json:"notify,omitempty"`
}

// Organizer identifies the event organizer. When attendees exist and no
// organizer is set, the configured local user is the implicit organizer.
type Organizer struct {
	Name  string `yaml:"name,omitempty" json:"name,omitempty"`
	Email string `yaml:"email" json:"email"`
}

// Attendee is one invited participant.
type Attendee struct {
	Name   string `yaml:"name,omitempty" json:"name,omitempty"`
	Email  string `yaml:"email" json:"email"`
	Status string `yaml:"status,omitempty" json:"status,omitempty"`
}

// Validate checks the structural invariants of an event record.
func (e *Event) Validate() error {
	if err := validation.ValidateStruct(e,
		validation.Field(&e.UID, validation.Required),
		validation.Field(&e.Alias, validation.Required),
		validation.Field(&e.Start, validation.Required),
	); err != nil {
		return err
	}
	if !e.End.IsZero() && !e.End.After(e.Start) {
		return fmt.Errorf("event %s: end must be after start", e.Alias)
	}
	for i := range e.Attendees {
		if err := e.Attendees[i].Validate(); err != nil {
			return err
		}
	}
	for i := range e.Reminders {
		if err := e.Reminders[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the attendee status against the known set.
func (a *Attendee) Validate() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.Email, validation.Required),
		validation.Field(&a.Status, validation.In(
			"", StatusAccepted, StatusDeclined, StatusTentative, StatusNone)),
	)
}

// Validate checks the reminder spec and notification kind.
func (r *Reminder) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Remind, validation.Required),
		validation.Field(&r.Notify, validation.In("", NotifyDisplay, NotifyEmail)),
	)
}

// Duration returns the event length, or zero when no end is set.
func (e *Event) Duration() time.Duration {
	if e.End.IsZero() {
		return 0
	}
	return e.End.Sub(e.Start)
}

// Occurrence is one concrete time instance derived from an event. It is
// computed per query window and never written back.
type Occurrence struct {
	Event *Event    `json:"-"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
