package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"ohsync/internal/bootstrap"
	"ohsync/internal/bootstrap/logging"
	"ohsync/internal/errs"
	"ohsync/internal/scheduler"
)

// apiHandler carries the service surface the HTTP routes dispatch into.
type apiHandler struct {
	integrations integrationAPI
	webhooks     webhookAPI
	conflicts    conflictAPI
	portalURL    string
}

func newAPIHandler(integrations integrationAPI, webhooks webhookAPI, conflicts conflictAPI, portalURL string) http.Handler {
	h := &apiHandler{
		integrations: integrations,
		webhooks:     webhooks,
		conflicts:    conflicts,
		portalURL:    portalURL,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Route("/integrations", func(r chi.Router) {
		// Provider-facing endpoints carry no tenant header.
		r.Post("/webhooks/{provider}", h.handleWebhook)
		r.Get("/oauth/{provider}/callback", h.handleOAuthCallback)

		r.Group(func(r chi.Router) {
			r.Use(tenantMiddleware)
			r.Get("/", h.handleOverview)
			r.Delete("/", h.handleDisconnect)
			r.Get("/oauth/{provider}/start", h.handleOAuthStart)
			r.Get("/conflicts", h.handleListConflicts)
			r.Patch("/conflicts", h.handleResolveConflict)
		})
	})
	return r
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync HTTP server and background jobs",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svcs *services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		addr, _ := cmd.Flags().GetString("addr")
		addr = strings.TrimSpace(addr)
		if addr == "" {
			addr = app.Config.HTTP.Addr
		}

		if err := app.InitSchema(ctx); err != nil {
			return errs.Wrap(err, "initialize schema")
		}

		jobs := scheduler.New(svcs.Integrations, svcs.Vault, svcs.Providers, svcs.Ingest, svcs.Audit, app.Config)
		if err := jobs.Start(ctx); err != nil {
			return errs.Wrap(err, "start scheduler")
		}
		defer jobs.Stop()

		server := &http.Server{
			Addr:    addr,
			Handler: newAPIHandler(svcs.Integration, svcs.Ingest, svcs.Conflict, app.Config.HTTP.PortalURL),
			BaseContext: func(_ net.Listener) context.Context {
				return ctx
			},
		}

		signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		serveErr := make(chan error, 1)
		go func() {
			logging.Info(ctx, "http server started", slog.String("addr", addr))
			serveErr <- server.ListenAndServe()
		}()

		select {
		case err := <-serveErr:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error(ctx, "http server failed", slog.Any("err", errs.Loggable(err)))
				return errs.Wrap(err, "serve http")
			}
			return nil
		case <-signalCtx.Done():
			logging.Info(ctx, "shutdown signal received")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return errs.Wrap(err, "shutdown http server")
			}
			return nil
		}
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (defaults to http.addr from config)")
}
