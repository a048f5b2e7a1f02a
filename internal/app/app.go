// Package app holds the startup sequence shared by the service binaries:
// configuration, logging, tracing, the database pool and the supervisor.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/thejerf/suture/v4"

	"bookexchange/internal/config"
	"bookexchange/internal/database"
	"bookexchange/internal/logging"
	"bookexchange/internal/supervisor"
	"bookexchange/internal/telemetry"
)

// Runtime is a started service process.
type Runtime struct {
	Name   string
	Config *config.Config
	DB     *sql.DB

	closers []func(context.Context) error
}

// Options selects what Start sets up.
type Options struct {
	DefaultPort string
	Database    bool
}

// Start loads configuration and brings up logging, tracing and (optionally)
// the database for the service called name.
func Start(ctx context.Context, name string, opts Options) (*Runtime, error) {
	cfg, err := config.Load(opts.DefaultPort)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: name,
	})

	rt := &Runtime{Name: name, Config: cfg}

	shutdownTracing, err := telemetry.Init(ctx, name, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	rt.closers = append(rt.closers, shutdownTracing)

	if opts.Database {
		db, err := database.Open(ctx, cfg.Database)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.DB = db
		rt.closers = append(rt.closers, func(context.Context) error { return db.Close() })
	}

	logging.Info().Str("port", cfg.Server.Port).Msg("service starting")
	return rt, nil
}

// Run supervises services until ctx is cancelled.
func (rt *Runtime) Run(ctx context.Context, services ...suture.Service) error {
	sup := supervisor.New(rt.Name, logging.NewSlogLogger(), supervisor.Config{
		ShutdownTimeout: rt.Config.Server.ShutdownTimeout,
	})
	for _, svc := range services {
		sup.Add(svc)
	}

	err := sup.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases everything Start acquired, most recent first.
func (rt *Runtime) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			logging.Warn().Err(err).Msg("shutdown step failed")
		}
	}
	rt.closers = nil
}
