// cmd/exchange/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"bookexchange/internal/app"
	"bookexchange/internal/auth"
	"bookexchange/internal/clients"
	"bookexchange/internal/exchange"
	"bookexchange/internal/httpx"
	"bookexchange/internal/logging"
	"bookexchange/internal/notify"
	"bookexchange/pkg/eventstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Start(ctx, "exchange", app.Options{DefaultPort: "8083", Database: true})
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to start exchange service")
	}
	defer rt.Close()
	cfg := rt.Config

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		logging.Fatal().Err(err).Msg("invalid auth configuration")
	}

	es := eventstore.NewEventStore(rt.DB)
	catalogClient := clients.NewCatalogClient(cfg.Services.CatalogURL, nil)
	accountsClient := clients.NewAccountsClient(cfg.Services.AccountsURL, nil)

	svc := exchange.NewService(es, rt.DB, catalogClient)
	handler := exchange.NewHandler(svc)

	router := httpx.NewRouter(cfg.Server.CORSOrigins)
	handler.Routes(router, auth.Require(tokens))

	mailer := notify.NewMailer(cfg.SMTP)
	if !cfg.SMTP.Enabled() {
		logging.Warn().Msg("SMTP not configured, notifications will only be logged")
	}
	projector := notify.NewProjector(es, accountsClient, mailer, cfg.Notify)

	if err := rt.Run(ctx,
		httpx.NewServer(cfg.Server.Port, router, cfg.Server.ShutdownTimeout),
		projector,
	); err != nil {
		logging.Error().Err(err).Msg("exchange service stopped")
	}
}
