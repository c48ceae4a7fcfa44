// Package backend opens the calendar store selected by configuration.
package backend

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/tazhate/calkit/config"
	"github.com/tazhate/calkit/internal/calstore"
	"github.com/tazhate/calkit/internal/clients/caldav"
	"github.com/tazhate/calkit/internal/storage"
)

// Backend is an open store. Exactly one of CalDAV and SQLite is set.
type Backend struct {
	Store  calstore.Store
	Name   string
	CalDAV *caldav.Client
	SQLite *storage.Storage
}

// Open opens the CalDAV backend when it is selected, and the local SQLite
// database otherwise.
func Open(cfg *config.Config, logger *zap.Logger) (*Backend, error) {
	if cfg.UseCalDAV() {
		client := caldav.NewClient(cfg.CalDAV.URL, cfg.CalDAV.Username, cfg.CalDAV.Password, logger.Named("caldav"))
		client.SetDefaults(cfg.CalDAV.Calendar, cfg.CalDAV.List)
		logger.Info("using CalDAV backend", zap.String("user", cfg.CalDAV.Username))
		return &Backend{Store: client, Name: config.BackendCalDAV, CalDAV: client}, nil
	}

	db, err := storage.New(cfg.DatabasePath, logger.Named("storage"))
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	logger.Info("using SQLite backend", zap.String("path", cfg.DatabasePath))
	return &Backend{Store: db, Name: config.BackendSQLite, SQLite: db}, nil
}

// Close releases the backend.
func (b *Backend) Close() error {
	if b.SQLite != nil {
		return b.SQLite.Close()
	}
	return nil
}
