package ingest

import (
	"context"
	"log/slog"
	"time"

	"ohsync/internal/bootstrap/config"
	"ohsync/internal/bootstrap/logging"
	domainsync "ohsync/internal/domain/sync"
	"ohsync/internal/errs"
	"ohsync/internal/ports"
	"ohsync/internal/usecase/syncengine"
)

// Notification is one change event from a provider delivery, already
// normalized by the transport layer (Graph sends a JSON batch, Drive sends
// channel headers).
type Notification struct {
	SubscriptionID string
	Resource       string
}

// GridSyncer is the merge half of ingestion; satisfied by syncengine.Engine.
type GridSyncer interface {
	SyncRows(ctx context.Context, integration ports.Integration, grid [][]string) (syncengine.Result, error)
}

// Service drains webhook deliveries. Each notification is isolated: one
// bad subscription or one provider failure never poisons the rest of the
// batch. Only a systemic failure (storage down) propagates to the caller.
type Service struct {
	integrations ports.IntegrationRepository
	vault        ports.Vault
	secrets      ports.SecretsProvider
	providers    ports.ProviderResolver
	engine       GridSyncer
	audit        ports.AuditSink

	fetchTimeout        time.Duration
	notificationTimeout time.Duration
	now                 func() time.Time
}

func NewService(
	integrations ports.IntegrationRepository,
	vault ports.Vault,
	secrets ports.SecretsProvider,
	providers ports.ProviderResolver,
	engine GridSyncer,
	audit ports.AuditSink,
	cfg config.Config,
) *Service {
	fetchTimeout := cfg.Sync.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = 30 * time.Second
	}
	notificationTimeout := cfg.Sync.NotificationTimeout
	if notificationTimeout <= 0 {
		notificationTimeout = 45 * time.Second
	}
	return &Service{
		integrations:        integrations,
		vault:               vault,
		secrets:             secrets,
		providers:           providers,
		engine:              engine,
		audit:               audit,
		fetchTimeout:        fetchTimeout,
		notificationTimeout: notificationTimeout,
		now:                 time.Now,
	}
}

// ProcessNotifications handles one delivery's batch in arrival order. The
// returned error is systemic only; per-notification failures are logged,
// audited, and swallowed.
func (s *Service) ProcessNotifications(ctx context.Context, provider domainsync.Provider, notifications []Notification) error {
	lookupKey, err := s.secrets.LookupKey(ctx)
	if err != nil {
		return errs.Wrap(err, "load lookup key")
	}

	for _, notification := range notifications {
		notifCtx, cancel := context.WithTimeout(ctx, s.notificationTimeout)
		integration, err := s.processOne(notifCtx, provider, lookupKey, notification)
		cancel()
		if err == nil {
			continue
		}
		if errs.IsSystemic(err) {
			return err
		}

		logging.Warn(ctx, "notification processing failed",
			slog.String("provider", string(provider)),
			slog.String("subscription_id", notification.SubscriptionID),
			slog.Any("err", errs.Loggable(err)),
		)
		if integration.ID != "" {
			s.auditFailure(ctx, integration, notification, err)
		}
	}
	return nil
}

// processOne returns the resolved integration (zero value when resolution
// never happened) so the caller can attribute the failure to a tenant.
func (s *Service) processOne(ctx context.Context, provider domainsync.Provider, lookupKey []byte, notification Notification) (ports.Integration, error) {
	key := domainsync.SubscriptionKey(lookupKey, notification.SubscriptionID)
	matches, err := s.integrations.FindBySubscriptionKey(ctx, key, domainsync.TypesForProvider(provider))
	if err != nil {
		return ports.Integration{}, errs.Systemic(errs.Wrap(err, "resolve subscription"))
	}
	if len(matches) != 1 {
		// Zero is a stale or foreign subscription; more than one means the
		// lookup key collided. Neither is routable.
		logging.Warn(ctx, "notification does not resolve to one integration",
			slog.String("provider", string(provider)),
			slog.Int("matches", len(matches)),
		)
		return ports.Integration{}, nil
	}

	integration := matches[0]
	if integration.Status != domainsync.StatusConnected || !integration.SyncDirection.AcceptsInbound() {
		logging.Info(ctx, "notification ignored",
			slog.String("integration_id", integration.ID),
			slog.String("status", string(integration.Status)),
			slog.String("direction", string(integration.SyncDirection)),
		)
		return integration, nil
	}

	now := s.now().UTC().Format(time.RFC3339)
	if err := s.audit.Emit(ctx, ports.AuditEvent{
		TenantID: integration.TenantID,
		Action:   ports.AuditWebhookTriggered,
		Actor:    ports.ActorSystem,
		Metadata: map[string]any{
			"integration_id": integration.ID,
			"provider":       string(provider),
			"resource":       notification.Resource,
		},
		CreatedAt: now,
	}); err != nil {
		return integration, errs.Systemic(errs.Wrap(err, "audit webhook"))
	}

	return integration, s.SyncIntegration(ctx, integration)
}

// SyncIntegration runs one full inbound pass for an integration: decrypt,
// refresh when expired, fetch the remote grid, merge. Shared by webhook
// ingestion and the periodic sync job.
func (s *Service) SyncIntegration(ctx context.Context, integration ports.Integration) error {
	creds, err := s.vault.Decrypt(integration.TenantID, integration.Credentials)
	if err != nil {
		return errs.Wrap(err, "decrypt credentials")
	}

	client, err := s.providers.ForType(integration.Type)
	if err != nil {
		return err
	}

	creds, err = s.refreshIfExpired(ctx, client, integration, creds)
	if err != nil {
		return err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	grid, err := client.FetchGrid(fetchCtx, creds, integration.ExternalRef)
	cancel()
	if err != nil {
		return errs.Wrap(err, "fetch remote grid")
	}

	if _, err := s.engine.SyncRows(ctx, integration, grid); err != nil {
		return errs.Wrap(err, "sync grid")
	}
	return nil
}

func (s *Service) refreshIfExpired(ctx context.Context, client ports.ProviderClient, integration ports.Integration, creds ports.Credentials) (ports.Credentials, error) {
	if creds.ExpiresAt == "" {
		return creds, nil
	}
	expiresAt, err := time.Parse(time.RFC3339, creds.ExpiresAt)
	if err != nil || s.now().Before(expiresAt.Add(-time.Minute)) {
		return creds, nil
	}

	refreshed, err := client.Refresh(ctx, creds)
	if err != nil {
		return ports.Credentials{}, errs.Wrap(err, "refresh expired token")
	}

	blob, err := s.vault.Encrypt(integration.TenantID, refreshed)
	if err != nil {
		return ports.Credentials{}, errs.Wrap(err, "encrypt refreshed credentials")
	}

	now := s.now().UTC().Format(time.RFC3339)
	if err := s.integrations.UpdateCredentials(ctx, integration.ID, blob, now); err != nil {
		return ports.Credentials{}, errs.Systemic(errs.Wrap(err, "persist refreshed credentials"))
	}
	_ = s.audit.Emit(ctx, ports.AuditEvent{
		TenantID:  integration.TenantID,
		Action:    ports.AuditTokenRefreshed,
		Actor:     ports.ActorSystem,
		Metadata:  map[string]any{"integration_id": integration.ID},
		CreatedAt: now,
	})
	return refreshed, nil
}

func (s *Service) auditFailure(ctx context.Context, integration ports.Integration, notification Notification, cause error) {
	now := s.now().UTC().Format(time.RFC3339)
	err := s.audit.Emit(ctx, ports.AuditEvent{
		TenantID: integration.TenantID,
		Action:   ports.AuditNotificationFailed,
		Actor:    ports.ActorSystem,
		Metadata: map[string]any{
			"integration_id": integration.ID,
			"resource":       notification.Resource,
			"error":          cause.Error(),
		},
		CreatedAt: now,
	})
	if err != nil {
		logging.Error(ctx, "audit write failed",
			slog.String("integration_id", integration.ID),
			slog.Any("err", errs.Loggable(err)),
		)
	}
}
