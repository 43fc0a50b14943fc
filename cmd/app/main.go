package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/dagaz/internal"
	"github.com/starford/dagaz/internal/eventservice"
	"github.com/starford/dagaz/internal/ics"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/render"
	"github.com/starford/dagaz/internal/window"
	pkgconfig "github.com/starford/dagaz/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOrDefault(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// boot wires the runtime for a one-shot command.
func boot(cmd *cli.Command) (*internal.Runtime, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return internal.Bootstrap(cfg)
}

func runShell(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func runList(_ context.Context, cmd *cli.Command) error {
	rt, err := boot(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	args := cmd.Args().Slice()
	view := window.ViewAgenda
	var customStart, customEnd string
	if len(args) > 0 {
		view = strings.ToLower(args[0])
	}
	if view == window.ViewCustom {
		if len(args) < 3 {
			return fmt.Errorf("custom view needs a start and an end")
		}
		customStart, customEnd = args[1], args[2]
	}

	m, err := rt.Service.List(view, customStart, customEnd, cmd.String("calendar"))
	if err != nil {
		return err
	}
	fmt.Println(render.List(m.Occurrences, m.Truncated))
	return nil
}

func runSearch(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() == 0 {
		return fmt.Errorf("search needs an expression")
	}
	rt, err := boot(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	m, err := rt.Service.Search(strings.Join(cmd.Args().Slice(), " "),
		!cmd.Bool("base"), cmd.Bool("archived"))
	if err != nil {
		return err
	}
	fmt.Println(render.List(m.Occurrences, m.Truncated))
	return nil
}

func runQuery(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() == 0 {
		return fmt.Errorf("query needs an expression")
	}
	rt, err := boot(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	term := cmd.Args().First()
	if cmd.Bool("json") {
		records, truncated, err := rt.Service.QueryRecords(term, true)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			return err
		}
		if truncated {
			rt.Logger.Warn("recurrence expansion truncated")
		}
		return nil
	}

	projection, truncated, err := rt.Service.Query(term, cmd.Args().Tail(), true)
	if err != nil {
		return err
	}
	fmt.Println(render.Projection(projection, truncated))
	return nil
}

func runInfo(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("info needs exactly one alias")
	}
	rt, err := boot(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	ev, err := rt.Service.Get(cmd.Args().First())
	if err != nil {
		return err
	}
	fmt.Println(render.Info(ev))
	return nil
}

func runNew(_ context.Context, cmd *cli.Command) error {
	rt, err := boot(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	params, err := eventParams(cmd)
	if err != nil {
		return err
	}
	ev, err := rt.Service.Create(params)
	if err != nil {
		return err
	}
	fmt.Printf("created %s (%s)\n", ev.Alias, ev.Description)
	return nil
}

func runModify(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("modify needs exactly one alias")
	}
	rt, err := boot(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	params, err := eventParams(cmd)
	if err != nil {
		return err
	}
	ev, err := rt.Service.Modify(cmd.Args().First(), params)
	if err != nil {
		return err
	}
	fmt.Printf("modified %s (%s)\n", ev.Alias, ev.Description)
	return nil
}

func runNotes(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() < 2 {
		return fmt.Errorf("notes needs an alias and text")
	}
	rt, err := boot(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()
	return rt.Service.SetNotes(cmd.Args().First(), strings.Join(cmd.Args().Tail(), " "))
}

func runAttend(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 3 {
		return fmt.Errorf("attend needs an alias, an attendee and a status")
	}
	rt, err := boot(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()
	return rt.Service.Attend(cmd.Args().Get(0), cmd.Args().Get(1), cmd.Args().Get(2))
}

func runUnset(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return fmt.Errorf("unset needs an alias and a field")
	}
	rt, err := boot(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()
	return rt.Service.Unset(cmd.Args().First(), cmd.Args().Get(1))
}

func runArchive(_ context.Context, cmd *cli.Command) error {
	return aliasOp(cmd, func(rt *internal.Runtime, alias string) error {
		return rt.Service.ArchiveEvent(alias)
	})
}

func runDelete(_ context.Context, cmd *cli.Command) error {
	return aliasOp(cmd, func(rt *internal.Runtime, alias string) error {
		return rt.Service.DeleteEvent(alias)
	})
}

func aliasOp(cmd *cli.Command, op func(*internal.Runtime, string) error) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("command needs exactly one alias")
	}
	rt, err := boot(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()
	return op(rt, cmd.Args().First())
}

func runExport(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() == 0 {
		return fmt.Errorf("export needs at least one alias")
	}
	rt, err := boot(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	events, err := rt.Service.GetAll(cmd.Args().Slice())
	if err != nil {
		return err
	}
	return ics.Export(os.Stdout, events, cmd.Bool("invite"))
}

func runImport(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("import needs exactly one iCalendar file")
	}
	rt, err := boot(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	f, err := os.Open(cmd.Args().First())
	if err != nil {
		return err
	}
	defer f.Close()

	batches, err := ics.Import(f, time.Local)
	if err != nil {
		return err
	}
	for _, params := range batches {
		ev, err := rt.Service.Create(params)
		if err != nil {
			return err
		}
		fmt.Printf("imported %s (%s)\n", ev.Alias, ev.Description)
	}
	return nil
}

func runFreeBusy(_ context.Context, cmd *cli.Command) error {
	rt, err := boot(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	win, busy, err := rt.Service.FreeBusy(cmd.Args().First())
	if err != nil {
		return err
	}
	if cmd.Bool("ics") {
		return ics.WriteFreeBusy(os.Stdout, win, busy, time.Now())
	}
	fmt.Println(render.FreeBusy(win, busy))
	return nil
}

func runReminders(_ context.Context, cmd *cli.Command) error {
	rt, err := boot(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	alerts, err := rt.Service.Reminders(cmd.Args().First())
	if err != nil {
		return err
	}
	fmt.Println(render.Alerts(alerts))
	return nil
}

// eventParams collects the shared new/modify flags.
func eventParams(cmd *cli.Command) (eventservice.EventParams, error) {
	params := eventservice.EventParams{
		Calendar:    cmd.String("calendar"),
		Description: cmd.String("description"),
		Location:    cmd.String("location"),
		Start:       cmd.String("start"),
		End:         cmd.String("end"),
		RRule:       cmd.String("rrule"),
		Notes:       cmd.String("notes"),
		Tags:        cmd.StringSlice("tag"),
		Attachments: cmd.StringSlice("attach"),
	}
	for _, spec := range cmd.StringSlice("remind") {
		params.Reminders = append(params.Reminders, parseReminder(spec))
	}
	if org := cmd.String("organizer"); org != "" {
		name, email, err := parseContact(org)
		if err != nil {
			return params, err
		}
		params.Organizer = &models.Organizer{Name: name, Email: email}
	}
	for _, raw := range cmd.StringSlice("attendee") {
		name, email, err := parseContact(raw)
		if err != nil {
			return params, err
		}
		params.Attendees = append(params.Attendees, models.Attendee{Name: name, Email: email})
	}
	return params, nil
}

// parseReminder splits "spec[:display|email]".
func parseReminder(raw string) models.Reminder {
	spec, notify, found := strings.Cut(raw, ":")
	if !found {
		notify = models.NotifyDisplay
	}
	return models.Reminder{Remind: spec, Notify: notify}
}

// parseContact accepts "Name <mail@host>" or a bare address.
func parseContact(raw string) (name, email string, err error) {
	raw = strings.TrimSpace(raw)
	if open := strings.IndexByte(raw, '<'); open >= 0 {
		end := strings.IndexByte(raw, '>')
		if end < open {
			return "", "", fmt.Errorf("malformed contact %q", raw)
		}
		return strings.TrimSpace(raw[:open]), strings.TrimSpace(raw[open+1 : end]), nil
	}
	if !strings.Contains(raw, "@") {
		return "", "", fmt.Errorf("malformed contact %q", raw)
	}
	return "", raw, nil
}

func eventFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "start", Usage: "start date[time]"},
		&cli.StringFlag{Name: "end", Usage: "end datetime or relative expression (+1h30m)"},
		&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "event description"},
		&cli.StringFlag{Name: "calendar", Usage: "calendar name"},
		&cli.StringFlag{Name: "location", Usage: "event location"},
		&cli.StringFlag{Name: "rrule", Usage: "recurrence rule, e.g. freq=weekly;byweekday=mo"},
		&cli.StringFlag{Name: "notes", Usage: "free-form notes"},
		&cli.StringFlag{Name: "organizer", Usage: "organizer, Name <mail@host>"},
		&cli.StringSliceFlag{Name: "tag", Usage: "tag (repeatable)"},
		&cli.StringSliceFlag{Name: "remind", Usage: "reminder spec[:display|email] (repeatable)"},
		&cli.StringSliceFlag{Name: "attendee", Usage: "attendee, Name <mail@host> (repeatable)"},
		&cli.StringSliceFlag{Name: "attach", Usage: "attachment URL (repeatable)"},
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "dagaz",
		Usage:  "Terminal calendar with YAML event storage, recurrence expansion, and query expressions",
		Action: runShell,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List occurrences for a view (agenda, today, week, month, year, custom ...)",
				Action: runList,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "calendar", Usage: "restrict to one calendar"},
				},
			},
			{
				Name:   "search",
				Usage:  "Match events against a filter expression",
				Action: runSearch,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "archived", Usage: "include archived events"},
					&cli.BoolFlag{Name: "base", Usage: "match base events without expanding recurrence"},
				},
			},
			{
				Name:   "query",
				Usage:  "Match events and project selected fields",
				Action: runQuery,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "emit full records as JSON"},
				},
			},
			{Name: "info", Usage: "Show the full detail sheet for an alias", Action: runInfo},
			{Name: "new", Usage: "Create an event", Action: runNew, Flags: eventFlags()},
			{Name: "modify", Usage: "Modify an event", Action: runModify, Flags: eventFlags()},
			{Name: "notes", Usage: "Replace the notes of an event", Action: runNotes},
			{Name: "attend", Usage: "Set an attendee's participation status", Action: runAttend},
			{Name: "unset", Usage: "Clear an optional field of an event", Action: runUnset},
			{Name: "archive", Usage: "Move an event to the archive", Action: runArchive},
			{Name: "delete", Usage: "Delete an event permanently", Action: runDelete},
			{
				Name:   "export",
				Usage:  "Write events as iCalendar to stdout",
				Action: runExport,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "invite", Usage: "mark the calendar as an invitation"},
				},
			},
			{Name: "import", Usage: "Create events from an iCalendar file", Action: runImport},
			{
				Name:   "freebusy",
				Usage:  "Show busy spans inside a relative interval",
				Action: runFreeBusy,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "ics", Usage: "emit a VFREEBUSY calendar"},
				},
			},
			{Name: "reminders", Usage: "Show alerts due inside a relative interval", Action: runReminders},
			{Name: "shell", Usage: "Start the interactive shell", Action: runShell},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
