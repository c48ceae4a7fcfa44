// Command calkit-setup reports and requests calendar and reminders access
// for the configured store. Run it once before starting the MCP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tazhate/calkit/config"
	"github.com/tazhate/calkit/internal/backend"
	"github.com/tazhate/calkit/internal/domain"
	"github.com/tazhate/calkit/internal/logging"
	"github.com/tazhate/calkit/internal/permission"
)

type options struct {
	statusOnly bool
	reset      bool
	calendar   string
	list       string
}

func main() {
	var opts options
	flag.BoolVar(&opts.statusOnly, "status", false, "only print the current access status")
	flag.BoolVar(&opts.reset, "reset", false, "forget recorded access decisions first (local store only)")
	flag.StringVar(&opts.calendar, "calendar", "", "create a calendar with this title (local store only)")
	flag.StringVar(&opts.list, "list", "", "create a reminder list with this title (local store only)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	b, err := backend.Open(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer b.Close()

	gate := permission.NewGate(b.Store, logger.Named("permission"))
	ok, err := run(context.Background(), b, gate, opts, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !ok {
		os.Exit(2)
	}
}

var kinds = []domain.Kind{domain.KindEvent, domain.KindReminder}

// run performs the setup steps and reports whether both kinds end up
// authorized.
func run(ctx context.Context, b *backend.Backend, gate *permission.Gate, opts options, w io.Writer) (bool, error) {
	if (opts.reset || opts.calendar != "" || opts.list != "") && b.SQLite == nil {
		return false, fmt.Errorf("-reset, -calendar and -list need the local store (backend %s)", b.Name)
	}

	if opts.reset {
		for _, kind := range kinds {
			if err := b.SQLite.ResetAuthorization(ctx, kind); err != nil {
				return false, fmt.Errorf("reset %s access: %w", kind, err)
			}
		}
		fmt.Fprintln(w, "Recorded access decisions cleared.")
	}

	report, err := gate.Report(ctx)
	if err != nil {
		return false, err
	}
	fmt.Fprintf(w, "\n=== Current Access Status (%s) ===\n", b.Name)
	printStatus(w, report)
	if opts.statusOnly {
		return report.AllAuthorized, nil
	}

	for _, kind := range kinds {
		state, err := gate.Check(ctx, kind)
		if err != nil {
			return false, err
		}
		switch {
		case state == domain.AuthAuthorized:
			fmt.Fprintf(w, "%s: already authorized\n", kind.Entity())
		case state.CanRequest():
			fmt.Fprintf(w, "Requesting %s access...\n", kind.Entity())
			if state, err = gate.RequestAccess(ctx, kind); err != nil {
				return false, err
			}
			fmt.Fprintf(w, "%s: %s\n", kind.Entity(), state)
		default:
			perm := &domain.PermissionError{Kind: kind, State: state}
			fmt.Fprintf(w, "%s: %s\n  %s\n", kind.Entity(), state, perm.Instructions())
		}
	}

	if opts.calendar != "" {
		c, err := b.SQLite.CreateContainer(ctx, domain.KindEvent, opts.calendar, "")
		if err != nil {
			return false, fmt.Errorf("create calendar: %w", err)
		}
		fmt.Fprintf(w, "Created calendar %q (id %s)\n", c.Title, c.ID)
	}
	if opts.list != "" {
		c, err := b.SQLite.CreateContainer(ctx, domain.KindReminder, opts.list, "")
		if err != nil {
			return false, fmt.Errorf("create list: %w", err)
		}
		fmt.Fprintf(w, "Created reminder list %q (id %s)\n", c.Title, c.ID)
	}

	report, err = gate.Report(ctx)
	if err != nil {
		return false, err
	}
	fmt.Fprintln(w, "\n=== Final Access Status ===")
	printStatus(w, report)
	if report.AllAuthorized {
		fmt.Fprintln(w, "\nAll access granted. Restart your MCP client to pick up the change.")
	} else {
		fmt.Fprintf(w, "\nSome access is missing.\n%s\n", report.Instructions)
	}
	return report.AllAuthorized, nil
}

func printStatus(w io.Writer, r *permission.Report) {
	fmt.Fprintf(w, "Calendar:  %s\n", r.Calendar.Status)
	fmt.Fprintf(w, "Reminders: %s\n", r.Reminders.Status)
}
