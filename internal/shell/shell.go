// Package shell implements the interactive command loop.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/starford/dagaz/internal/eventservice"
	"github.com/starford/dagaz/internal/ics"
	"github.com/starford/dagaz/internal/render"
	"github.com/starford/dagaz/internal/window"
)

const prompt = "dagaz> "

const helpText = `commands:
  list [view] [calendar]      agenda|today|yesterday|tomorrow|thisweek|lastweek|nextweek|
                              thismonth|lastmonth|nextmonth|thisyear|lastyear|nextyear|
                              custom <start> <end>
  search <expression>         match events, recurring events expanded
  searchall <expression>      search active and archived events
  query <expression> [field ...]
  info <alias>
  notes <alias> <text>
  attend <alias> <attendee> <accepted|declined|tentative>
  archive <alias>
  delete <alias>
  export <alias> [alias ...]  write matching events as iCalendar
  freebusy [interval]         busy spans, e.g. freebusy 7d
  reminders [interval]        pending alerts, e.g. reminders 2h
  refresh                     reload events from disk
  help
  exit`

// Shell reads commands from in and writes rendered results to out.
type Shell struct {
	svc    *eventservice.Service
	logger *slog.Logger
	in     io.Reader
	out    io.Writer
}

func New(svc *eventservice.Service, logger *slog.Logger, in io.Reader, out io.Writer) *Shell {
	return &Shell{svc: svc, logger: logger, in: in, out: out}
}

// Run processes commands until exit, EOF, or context cancellation. Input is
// read on a separate goroutine so a cancel takes effect even while the
// scanner is blocked waiting for the next line.
func (sh *Shell) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	done := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(sh.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		done <- scanner.Err()
	}()

	fmt.Fprint(sh.out, prompt)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-done:
			return err
		case raw := <-lines:
			line := strings.TrimSpace(raw)
			if line == "" {
				fmt.Fprint(sh.out, prompt)
				continue
			}
			if line == "exit" || line == "quit" {
				return nil
			}
			if err := sh.dispatch(line); err != nil {
				fmt.Fprintf(sh.out, "error: %v\n", err)
			}
			fmt.Fprint(sh.out, prompt)
		}
	}
}

func (sh *Shell) dispatch(line string) error {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "help":
		fmt.Fprintln(sh.out, helpText)
		return nil
	case "list":
		return sh.list(args)
	case "search":
		return sh.search(args, false)
	case "searchall":
		return sh.search(args, true)
	case "query":
		return sh.query(args)
	case "info":
		return sh.info(args)
	case "notes":
		return sh.notes(args)
	case "attend":
		return sh.attend(args)
	case "archive":
		return sh.single(args, sh.svc.ArchiveEvent)
	case "delete":
		return sh.single(args, sh.svc.DeleteEvent)
	case "export":
		return sh.export(args)
	case "freebusy":
		return sh.freebusy(args)
	case "reminders":
		return sh.reminders(args)
	case "refresh":
		return sh.svc.Refresh()
	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}
}

func (sh *Shell) list(args []string) error {
	view := window.ViewAgenda
	var customStart, customEnd, calendar string
	if len(args) > 0 {
		view = strings.ToLower(args[0])
		args = args[1:]
	}
	if view == window.ViewCustom {
		if len(args) < 2 {
			return fmt.Errorf("custom view needs a start and an end")
		}
		customStart, customEnd = args[0], args[1]
		args = args[2:]
	}
	if len(args) > 0 {
		calendar = args[0]
	}
	matches, err := sh.svc.List(view, customStart, customEnd, calendar)
	if err != nil {
		return err
	}
	fmt.Fprintln(sh.out, render.List(matches.Occurrences, matches.Truncated))
	return nil
}

func (sh *Shell) search(args []string, includeArchived bool) error {
	if len(args) == 0 {
		return fmt.Errorf("search needs an expression")
	}
	matches, err := sh.svc.Search(strings.Join(args, " "), true, includeArchived)
	if err != nil {
		return err
	}
	fmt.Fprintln(sh.out, render.List(matches.Occurrences, matches.Truncated))
	return nil
}

func (sh *Shell) query(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("query needs an expression")
	}
	projection, truncated, err := sh.svc.Query(args[0], args[1:], true)
	if err != nil {
		return err
	}
	fmt.Fprintln(sh.out, render.Projection(projection, truncated))
	return nil
}

func (sh *Shell) info(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("info needs exactly one alias")
	}
	ev, err := sh.svc.Get(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(sh.out, render.Info(ev))
	return nil
}

func (sh *Shell) notes(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("notes needs an alias and text")
	}
	return sh.svc.SetNotes(args[0], strings.Join(args[1:], " "))
}

func (sh *Shell) attend(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("attend needs an alias, an attendee and a status")
	}
	return sh.svc.Attend(args[0], args[1], args[2])
}

func (sh *Shell) single(args []string, op func(string) error) error {
	if len(args) != 1 {
		return fmt.Errorf("command needs exactly one alias")
	}
	return op(args[0])
}

func (sh *Shell) export(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("export needs at least one alias")
	}
	events, err := sh.svc.GetAll(args)
	if err != nil {
		return err
	}
	return ics.Export(sh.out, events, false)
}

func (sh *Shell) freebusy(args []string) error {
	interval := ""
	if len(args) > 0 {
		interval = args[0]
	}
	win, busy, err := sh.svc.FreeBusy(interval)
	if err != nil {
		return err
	}
	fmt.Fprintln(sh.out, render.FreeBusy(win, busy))
	return nil
}

func (sh *Shell) reminders(args []string) error {
	interval := ""
	if len(args) > 0 {
		interval = args[0]
	}
	alerts, err := sh.svc.Reminders(interval)
	if err != nil {
		return err
	}
	fmt.Fprintln(sh.out, render.Alerts(alerts))
	return nil
}
