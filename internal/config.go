package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/dagaz/internal/timestr"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Data     DataConfig        `yaml:"data"`
	Index    IndexConfig       `yaml:"index"`
	Calendar CalendarConfig    `yaml:"calendar"`
	User     UserConfig        `yaml:"user"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Data.Validate(); err != nil {
		return err
	}
	if err := c.Index.Validate(); err != nil {
		return err
	}
	if err := c.Calendar.Validate(); err != nil {
		return err
	}
	return c.User.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// DataConfig holds the path to the event data directory.
type DataConfig struct {
	Dir string `yaml:"dir"`
}

// Validate validates the data configuration.
func (c *DataConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
	)
}

// IndexConfig holds SQLite index configuration.
type IndexConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the index configuration.
func (c *IndexConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// CalendarConfig holds calendaring behaviour.
//
// FirstWeekday counts from Monday: 0 is Monday through 6 for Sunday.
type CalendarConfig struct {
	DefaultCalendar string `yaml:"default_calendar"`
	FirstWeekday    int    `yaml:"first_weekday"`
	RecurrenceLimit int    `yaml:"recurrence_limit"`
	DefaultDuration string `yaml:"default_duration"`
	DefaultReminder string `yaml:"default_reminder"`
}

// Validate validates the calendar configuration.
func (c *CalendarConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.FirstWeekday, validation.Min(0), validation.Max(6)),
		validation.Field(&c.RecurrenceLimit, validation.Min(1)),
	); err != nil {
		return err
	}
	if c.DefaultDuration != "" {
		if _, ok := timestr.Span(c.DefaultDuration); !ok {
			return fmt.Errorf("calendar: unparsable default_duration %q", c.DefaultDuration)
		}
	}
	return nil
}

// UserConfig identifies the local user for reminders and invitations.
type UserConfig struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// Validate validates the user configuration.
func (c *UserConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Email, is.Email),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Data: DataConfig{
			Dir: "./events",
		},
		Index: IndexConfig{
			Path: "./dagaz.db",
		},
		Calendar: CalendarConfig{
			DefaultCalendar: "default",
			FirstWeekday:    0,
			RecurrenceLimit: 1000,
			DefaultDuration: "1h",
			DefaultReminder: "start-15m",
		},
	}
}
