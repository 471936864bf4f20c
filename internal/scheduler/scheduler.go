package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"ohsync/internal/bootstrap/config"
	"ohsync/internal/bootstrap/logging"
	"ohsync/internal/errs"
	"ohsync/internal/ports"
	"ohsync/internal/usecase/ingest"
)

const (
	jobTimeout = 5 * time.Minute
	// refreshWindow: credentials expiring inside this window are refreshed
	// proactively so webhook handling never races an expiry.
	refreshWindow = 10 * time.Minute
)

// Scheduler owns the background jobs: periodic sync for integrations on a
// scheduled frequency, token refresh, and change-subscription renewal. Job
// failures are logged and audited; nothing here is ever fatal.
type Scheduler struct {
	scheduler    *gocron.Scheduler
	integrations ports.IntegrationRepository
	vault        ports.Vault
	providers    ports.ProviderResolver
	ingest       *ingest.Service
	audit        ports.AuditSink

	interval time.Duration
	now      func() time.Time
}

func New(
	integrations ports.IntegrationRepository,
	vault ports.Vault,
	providers ports.ProviderResolver,
	ingestService *ingest.Service,
	audit ports.AuditSink,
	cfg config.Config,
) *Scheduler {
	interval := cfg.Sync.ScheduledInterval
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Scheduler{
		scheduler:    gocron.NewScheduler(time.UTC),
		integrations: integrations,
		vault:        vault,
		providers:    providers,
		ingest:       ingestService,
		audit:        audit,
		interval:     interval,
		now:          time.Now,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "scheduler"))

	if _, err := s.scheduler.Every(s.interval).Do(func() { s.runJob(logCtx, "scheduled_sync", s.syncScheduled) }); err != nil {
		return errs.Wrap(err, "register scheduled sync job")
	}
	if _, err := s.scheduler.Every(refreshWindow).Do(func() { s.runJob(logCtx, "token_refresh", s.refreshTokens) }); err != nil {
		return errs.Wrap(err, "register token refresh job")
	}
	if _, err := s.scheduler.Every(6 * time.Hour).Do(func() { s.runJob(logCtx, "subscription_renewal", s.renewSubscriptions) }); err != nil {
		return errs.Wrap(err, "register subscription renewal job")
	}

	s.scheduler.StartAsync()
	logging.Info(logCtx, "scheduler started", slog.Duration("sync_interval", s.interval))
	return nil
}

func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) runJob(ctx context.Context, name string, job func(ctx context.Context) error) {
	jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	logCtx := logging.WithAttrs(jobCtx, slog.String("job", name))
	if err := job(logCtx); err != nil {
		logging.Error(logCtx, "scheduled job failed", slog.Any("err", errs.Loggable(err)))
		return
	}
}

func (s *Scheduler) syncScheduled(ctx context.Context) error {
	items, err := s.integrations.ListScheduled(ctx)
	if err != nil {
		return errs.Wrap(err, "list scheduled integrations")
	}

	for _, integration := range items {
		if !integration.SyncDirection.AcceptsInbound() {
			continue
		}
		if err := s.ingest.SyncIntegration(ctx, integration); err != nil {
			logging.Warn(ctx, "scheduled sync failed",
				slog.String("integration_id", integration.ID),
				slog.Any("err", errs.Loggable(err)),
			)
		}
	}
	return nil
}

func (s *Scheduler) refreshTokens(ctx context.Context) error {
	items, err := s.integrations.ListConnected(ctx)
	if err != nil {
		return errs.Wrap(err, "list connected integrations")
	}

	for _, integration := range items {
		if err := s.refreshOne(ctx, integration); err != nil {
			logging.Warn(ctx, "token refresh failed",
				slog.String("integration_id", integration.ID),
				slog.Any("err", errs.Loggable(err)),
			)
		}
	}
	return nil
}

func (s *Scheduler) refreshOne(ctx context.Context, integration ports.Integration) error {
	creds, err := s.vault.Decrypt(integration.TenantID, integration.Credentials)
	if err != nil {
		return errs.Wrap(err, "decrypt credentials")
	}
	if creds.ExpiresAt == "" || creds.RefreshToken == "" {
		return nil
	}
	expiresAt, err := time.Parse(time.RFC3339, creds.ExpiresAt)
	if err != nil || s.now().Add(refreshWindow).Before(expiresAt) {
		return nil
	}

	client, err := s.providers.ForType(integration.Type)
	if err != nil {
		return err
	}
	refreshed, err := client.Refresh(ctx, creds)
	if err != nil {
		return errs.Wrap(err, "refresh token")
	}

	blob, err := s.vault.Encrypt(integration.TenantID, refreshed)
	if err != nil {
		return errs.Wrap(err, "encrypt refreshed credentials")
	}
	now := s.now().UTC().Format(time.RFC3339)
	if err := s.integrations.UpdateCredentials(ctx, integration.ID, blob, now); err != nil {
		return errs.Wrap(err, "persist refreshed credentials")
	}

	return s.audit.Emit(ctx, ports.AuditEvent{
		TenantID:  integration.TenantID,
		Action:    ports.AuditTokenRefreshed,
		Actor:     ports.ActorSystem,
		Metadata:  map[string]any{"integration_id": integration.ID},
		CreatedAt: now,
	})
}

func (s *Scheduler) renewSubscriptions(ctx context.Context) error {
	items, err := s.integrations.ListConnected(ctx)
	if err != nil {
		return errs.Wrap(err, "list connected integrations")
	}

	for _, integration := range items {
		creds, err := s.vault.Decrypt(integration.TenantID, integration.Credentials)
		if err != nil {
			logging.Warn(ctx, "subscription renewal skipped",
				slog.String("integration_id", integration.ID),
				slog.Any("err", errs.Loggable(err)),
			)
			continue
		}
		subscriptionID := creds.ProviderMetadata["subscription_id"]
		if subscriptionID == "" {
			continue
		}

		client, err := s.providers.ForType(integration.Type)
		if err != nil {
			continue
		}
		if err := client.RenewSubscription(ctx, creds, subscriptionID); err != nil {
			logging.Warn(ctx, "subscription renewal failed",
				slog.String("integration_id", integration.ID),
				slog.Any("err", errs.Loggable(err)),
			)
		}
	}
	return nil
}
