package bootstrap

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"ohsync/internal/bootstrap/config"
	"ohsync/internal/bootstrap/database"
	"ohsync/internal/bootstrap/logging"
	cacheinfra "ohsync/internal/infrastructure/cache"
	sqliterepo "ohsync/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "ohsync/internal/infrastructure/persistence/sqlite/uow"
	providerinfra "ohsync/internal/infrastructure/provider"
	vaultinfra "ohsync/internal/infrastructure/vault"
	"ohsync/internal/ports"
	"ohsync/internal/usecase/conflict"
	"ohsync/internal/usecase/ingest"
	"ohsync/internal/usecase/integration"
	"ohsync/internal/usecase/syncengine"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewIntegrationRepository,
			fx.As(new(ports.IntegrationRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewFieldMappingRepository,
			fx.As(new(ports.FieldMappingRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewSnapshotRepository,
			fx.As(new(ports.SnapshotStore)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewConflictRepository,
			fx.As(new(ports.ConflictRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewRecordStore,
			fx.As(new(ports.RecordStore)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewAuditRepository,
			fx.As(new(ports.AuditSink)),
			fx.As(new(ports.AuditReader)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewSQLiteCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(provideSecrets),
	fx.Provide(
		fx.Annotate(
			vaultinfra.New,
			fx.As(new(ports.Vault)),
		),
	),
	fx.Provide(
		fx.Annotate(
			providerinfra.NewResolver,
			fx.As(new(ports.ProviderResolver)),
		),
	),
	fx.Provide(syncengine.NewEngine),
	fx.Provide(func(engine *syncengine.Engine) ingest.GridSyncer { return engine }),
	fx.Provide(provideIntegrationService),
	fx.Provide(ingest.NewService),
	fx.Provide(conflict.NewService),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideSecrets(cfg config.Config) (ports.SecretsProvider, error) {
	return vaultinfra.NewConfigSecrets(cfg.Vault)
}

func provideIntegrationService(
	integrations ports.IntegrationRepository,
	conflicts ports.ConflictRepository,
	audit ports.AuditSink,
	auditReader ports.AuditReader,
	cache ports.Cache,
	vault ports.Vault,
	secrets ports.SecretsProvider,
	providers ports.ProviderResolver,
	uow ports.UnitOfWork,
	cfg config.Config,
) *integration.Service {
	return integration.NewService(integration.Deps{
		Integrations: integrations,
		Conflicts:    conflicts,
		Audit:        audit,
		AuditReader:  auditReader,
		Cache:        cache,
		Vault:        vault,
		Secrets:      secrets,
		Providers:    providers,
		UnitOfWork:   uow,
	}, cfg)
}
