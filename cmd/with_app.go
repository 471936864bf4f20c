package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"ohsync/internal/bootstrap"
	"ohsync/internal/bootstrap/logging"
	"ohsync/internal/errs"
	"ohsync/internal/ports"
	"ohsync/internal/usecase/conflict"
	"ohsync/internal/usecase/ingest"
	"ohsync/internal/usecase/integration"
)

// services bundles everything a command may need beyond the bare app.
type services struct {
	Integration  *integration.Service
	Ingest       *ingest.Service
	Conflict     *conflict.Service
	Integrations ports.IntegrationRepository
	Vault        ports.Vault
	Providers    ports.ProviderResolver
	Audit        ports.AuditSink
	Mappings     ports.FieldMappingRepository
}

func withApp(run func(cmd *cobra.Command, app *bootstrap.App, svcs *services) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := logging.WithAttrs(
			cmd.Context(),
			slog.String("command", cmd.CommandPath()),
			slog.String("config_file", cfgFile),
		)

		var app *bootstrap.App
		svcs := &services{}
		fxApp := fx.New(
			bootstrap.Module,
			fx.Provide(func() context.Context { return ctx }),
			fx.Provide(
				fx.Annotate(
					func() string { return cfgFile },
					fx.ResultTags(`name:"configFile"`),
				),
			),
			fx.Populate(
				&app,
				&svcs.Integration,
				&svcs.Ingest,
				&svcs.Conflict,
				&svcs.Integrations,
				&svcs.Vault,
				&svcs.Providers,
				&svcs.Audit,
				&svcs.Mappings,
			),
		)

		startCtx, cancelStart := context.WithTimeout(ctx, 10*time.Second)
		defer cancelStart()
		if err := fxApp.Start(startCtx); err != nil {
			logging.Error(ctx, "bootstrap application failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "start fx application")
		}

		defer func() {
			stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelStop()
			if err := fxApp.Stop(stopCtx); err != nil {
				logging.Error(ctx, "fx application stop failed", slog.Any("err", errs.Loggable(err)))
			}
		}()

		if err := run(cmd, app, svcs); err != nil {
			return errs.Wrap(err, "run command")
		}
		return nil
	}
}
