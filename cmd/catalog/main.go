// cmd/catalog/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"bookexchange/internal/app"
	"bookexchange/internal/auth"
	"bookexchange/internal/catalog"
	"bookexchange/internal/httpx"
	"bookexchange/internal/logging"
	"bookexchange/pkg/eventstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Start(ctx, "catalog", app.Options{DefaultPort: "8082", Database: true})
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to start catalog service")
	}
	defer rt.Close()
	cfg := rt.Config

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		logging.Fatal().Err(err).Msg("invalid auth configuration")
	}

	es := eventstore.NewEventStore(rt.DB)
	svc := catalog.NewService(es, rt.DB)
	handler := catalog.NewHandler(svc)

	router := httpx.NewRouter(cfg.Server.CORSOrigins)
	handler.Routes(router, auth.Require(tokens))

	if err := rt.Run(ctx, httpx.NewServer(cfg.Server.Port, router, cfg.Server.ShutdownTimeout)); err != nil {
		logging.Error().Err(err).Msg("catalog service stopped")
	}
}
