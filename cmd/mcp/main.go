package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/tazhate/calkit/config"
	"github.com/tazhate/calkit/internal/adapter"
	"github.com/tazhate/calkit/internal/backend"
	"github.com/tazhate/calkit/internal/domain"
	"github.com/tazhate/calkit/internal/logging"
	"github.com/tazhate/calkit/internal/mcpserver"
	"github.com/tazhate/calkit/internal/permission"
	"github.com/tazhate/calkit/internal/recurrence"
	"github.com/tazhate/calkit/internal/service"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "calkit: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	store, err := backend.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gate := permission.NewGate(store.Store, logger.Named("permission"))
	// Errors here are reported again by eventkit_check_permissions
	for _, kind := range []domain.Kind{domain.KindEvent, domain.KindReminder} {
		if _, err := gate.RequestAccess(ctx, kind); err != nil {
			logger.Warn("access request failed", zap.String("kind", string(kind)), zap.Error(err))
		}
	}

	opts := service.Options{
		Timezone:        cfg.Timezone,
		Attribution:     cfg.Attribution,
		SearchBackDays:  cfg.SearchBackDays,
		SearchAheadDays: cfg.SearchAheadDays,
		EventLimit:      cfg.EventLimit,
		ReminderLimit:   cfg.ReminderLimit,
		SearchLimit:     cfg.SearchLimit,
	}
	a := adapter.New(store.Store, logger.Named("adapter"))
	r := recurrence.NewResolver(a, logger.Named("recurrence"))
	calendarSvc := service.NewCalendarService(gate, a, r, opts, logger.Named("calendar"))
	reminderSvc := service.NewReminderService(gate, a, r, opts, logger.Named("reminders"))

	srv := mcpserver.New(gate, calendarSvc, reminderSvc, version, logger.Named("mcp"))
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("calkit stopped")
	return nil
}
