// cmd/accounts/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/httprate"

	"bookexchange/internal/accounts"
	"bookexchange/internal/app"
	"bookexchange/internal/auth"
	"bookexchange/internal/httpx"
	"bookexchange/internal/logging"
	"bookexchange/pkg/eventstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Start(ctx, "accounts", app.Options{DefaultPort: "8081", Database: true})
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to start accounts service")
	}
	defer rt.Close()
	cfg := rt.Config

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		logging.Fatal().Err(err).Msg("invalid auth configuration")
	}

	es := eventstore.NewEventStore(rt.DB)
	svc := accounts.NewService(es, rt.DB, tokens)
	handler := accounts.NewHandler(svc)

	router := httpx.NewRouter(cfg.Server.CORSOrigins)
	handler.Routes(router, auth.Require(tokens), httprate.LimitByIP(cfg.Auth.RateLimitReqs, cfg.Auth.RateLimitWin))

	if err := rt.Run(ctx, httpx.NewServer(cfg.Server.Port, router, cfg.Server.ShutdownTimeout)); err != nil {
		logging.Error().Err(err).Msg("accounts service stopped")
	}
}
