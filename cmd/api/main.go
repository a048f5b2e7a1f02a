// cmd/api/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"bookexchange/internal/app"
	"bookexchange/internal/config"
	"bookexchange/internal/httpx"
	"bookexchange/internal/logging"
)

// route forwards prefix to target after removing strip from the path.
type route struct {
	prefix string
	strip  string
	target string
}

func routes(services config.ServicesConfig) []route {
	return []route{
		{prefix: "/api/v1/accounts", strip: "/api/v1/accounts", target: services.AccountsURL},
		{prefix: "/api/v1/catalog", strip: "/api/v1/catalog", target: services.CatalogURL},
		{prefix: "/api/v1/exchanges", strip: "/api/v1", target: services.ExchangeURL},
		{prefix: "/api/v1/recommendations", strip: "/api/v1", target: services.RecommendURL},
	}
}

func newGateway(corsOrigins []string, services config.ServicesConfig) (http.Handler, error) {
	router := httpx.NewRouter(corsOrigins)

	for _, rt := range routes(services) {
		target, err := url.Parse(rt.target)
		if err != nil || target.Host == "" {
			return nil, fmt.Errorf("invalid upstream for %s: %q", rt.prefix, rt.target)
		}

		proxy := httputil.NewSingleHostReverseProxy(target)
		director := proxy.Director
		proxy.Director = func(r *http.Request) {
			director(r)
			if id := logging.RequestIDFromContext(r.Context()); id != "" {
				r.Header.Set("X-Request-ID", id)
			}
		}
		upstream := rt.target
		proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
			logging.Ctx(r.Context()).Error().Err(err).Str("upstream", upstream).Msg("upstream request failed")
			httpx.WriteError(w, http.StatusBadGateway, "upstream service unavailable")
		}

		handler := http.StripPrefix(rt.strip, proxy)
		router.Route(rt.prefix, func(r chi.Router) {
			r.Handle("/*", handler)
		})
	}
	return router, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Start(ctx, "api-gateway", app.Options{DefaultPort: "8080"})
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to start api gateway")
	}
	defer rt.Close()
	cfg := rt.Config

	gateway, err := newGateway(cfg.Server.CORSOrigins, cfg.Services)
	if err != nil {
		logging.Fatal().Err(err).Msg("invalid gateway configuration")
	}

	if err := rt.Run(ctx, httpx.NewServer(cfg.Server.Port, gateway, cfg.Server.ShutdownTimeout)); err != nil {
		logging.Error().Err(err).Msg("api gateway stopped")
	}
}
