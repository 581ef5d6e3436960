package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/wkalt/lakelet/routes"
	"github.com/wkalt/lakelet/storage"
	"github.com/wkalt/lakelet/table"
	"github.com/wkalt/lakelet/util/log"
	"github.com/wkalt/lakelet/util/mw"
)

/*
The service package assembles the storage provider, table engine cache, and
HTTP routes into a running server.
*/

////////////////////////////////////////////////////////////////////////////////

// Lakelet is the table storage service.
type Lakelet struct {
	opts Options
}

// NewLakelet constructs a service from the supplied options.
func NewLakelet(opts ...Option) *Lakelet {
	options := Options{
		Port:               8089,
		LogLevel:           slog.LevelInfo,
		CheckpointInterval: 10,
		User:               "unknown",
	}
	for _, opt := range opts {
		opt(&options)
	}
	return &Lakelet{opts: options}
}

// Start runs the HTTP server until the context is canceled or the listener
// fails.
func (l *Lakelet) Start(ctx context.Context) error {
	log.SetLevel(l.opts.LogLevel)
	store := l.opts.Store
	if store == nil {
		var err error
		if store, err = storage.NewDirectoryStore("data"); err != nil {
			return fmt.Errorf("failed to open data directory: %w", err)
		}
	}
	tableOpts := []table.Option{
		table.WithCheckpointInterval(l.opts.CheckpointInterval),
		table.WithUser(l.opts.User),
	}
	if l.opts.MaxFileBytes > 0 {
		tableOpts = append(tableOpts, table.WithMaxFileBytes(l.opts.MaxFileBytes))
	}
	tables := routes.NewTables(store, tableOpts...)

	var handler http.Handler = routes.MakeRoutes(tables)
	if len(l.opts.AllowedOrigins) > 0 {
		handler = mw.WithCORSAllowedOrigins(l.opts.AllowedOrigins)(handler)
	}
	handler = mw.WithRequestID(handler)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", l.opts.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		log.Infow(ctx, "starting server", "port", l.opts.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
		return nil
	case err := <-errs:
		return fmt.Errorf("failed to start server: %w", err)
	}
}
