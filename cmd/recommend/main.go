// cmd/recommend/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"

	"bookexchange/internal/app"
	"bookexchange/internal/httpx"
	"bookexchange/internal/logging"
	"bookexchange/internal/recommend"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Start(ctx, "recommend", app.Options{DefaultPort: "8084", Database: true})
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to start recommend service")
	}
	defer rt.Close()
	cfg := rt.Config

	store := recommend.NewStore(sqlx.NewDb(rt.DB, "postgres"))
	svc, err := recommend.NewService(store, store)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create recommend service")
	}
	handler := recommend.NewHandler(svc)

	router := httpx.NewRouter(cfg.Server.CORSOrigins)
	handler.Routes(router)

	if err := rt.Run(ctx, httpx.NewServer(cfg.Server.Port, router, cfg.Server.ShutdownTimeout)); err != nil {
		logging.Error().Err(err).Msg("recommend service stopped")
	}
}
