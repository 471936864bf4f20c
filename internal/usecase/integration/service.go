package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"ohsync/internal/bootstrap/config"
	"ohsync/internal/bootstrap/logging"
	domainsync "ohsync/internal/domain/sync"
	"ohsync/internal/errs"
	"ohsync/internal/ports"
)

// ErrTokenExchangeFailed is terminal for a connect attempt. The user has to
// restart the OAuth flow; there is nothing to retry with the same code.
var ErrTokenExchangeFailed = errors.New("authorization code exchange failed")

// ErrSaveFailed covers everything after a successful exchange: subscription
// registration, sealing, and the create transaction. Tokens were issued but
// no integration row exists.
var ErrSaveFailed = errors.New("integration save failed")

// Service owns the integration lifecycle: OAuth connect, listing, and
// disconnect. Credentials only ever cross it as sealed vault blobs.
type Service struct {
	integrations ports.IntegrationRepository
	conflicts    ports.ConflictRepository
	audit        ports.AuditSink
	auditReader  ports.AuditReader
	cache        ports.Cache
	vault        ports.Vault
	secrets      ports.SecretsProvider
	providers    ports.ProviderResolver
	uow          ports.UnitOfWork

	baseURL  string
	stateTTL time.Duration
	now      func() time.Time
}

type Deps struct {
	Integrations ports.IntegrationRepository
	Conflicts    ports.ConflictRepository
	Audit        ports.AuditSink
	AuditReader  ports.AuditReader
	Cache        ports.Cache
	Vault        ports.Vault
	Secrets      ports.SecretsProvider
	Providers    ports.ProviderResolver
	UnitOfWork   ports.UnitOfWork
}

func NewService(deps Deps, cfg config.Config) *Service {
	stateTTL := cfg.Sync.StateTTL
	if stateTTL <= 0 {
		stateTTL = 15 * time.Minute
	}
	return &Service{
		integrations: deps.Integrations,
		conflicts:    deps.Conflicts,
		audit:        deps.Audit,
		auditReader:  deps.AuditReader,
		cache:        deps.Cache,
		vault:        deps.Vault,
		secrets:      deps.Secrets,
		providers:    deps.Providers,
		uow:          deps.UnitOfWork,
		baseURL:      strings.TrimRight(cfg.HTTP.BaseURL, "/"),
		stateTTL:     stateTTL,
		now:          time.Now,
	}
}

type BeginConnectRequest struct {
	TenantID      string
	DevelopmentID string
	Type          domainsync.IntegrationType
	Name          string
	ExternalRef   string
}

// BeginConnect parks the connect intent in the cache under a fresh state
// nonce and returns the provider consent URL.
func (s *Service) BeginConnect(ctx context.Context, req BeginConnectRequest) (string, error) {
	if strings.TrimSpace(req.TenantID) == "" {
		return "", errors.New("tenant id is required")
	}
	if _, err := domainsync.ParseIntegrationType(string(req.Type)); err != nil {
		return "", err
	}
	if strings.TrimSpace(req.ExternalRef) == "" {
		return "", errors.New("external ref is required")
	}

	client, err := s.providers.ForType(req.Type)
	if err != nil {
		return "", err
	}

	pending := domainsync.PendingConnect{
		TenantID:      req.TenantID,
		DevelopmentID: req.DevelopmentID,
		Type:          req.Type,
		Name:          req.Name,
		ExternalRef:   req.ExternalRef,
	}
	encoded, err := pending.Encode()
	if err != nil {
		return "", err
	}

	nonce := domainsync.NewStateNonce()
	if err := s.cache.Set(ctx, domainsync.StateCacheKey(nonce), encoded, s.stateTTL); err != nil {
		return "", errs.Wrap(err, "store pending connect state")
	}

	return client.AuthCodeURL(nonce), nil
}

// HandleCallback finishes the connect flow. The exchange is terminal either
// way: success creates the integration atomically, failure discards the
// state so the user restarts from BeginConnect.
func (s *Service) HandleCallback(ctx context.Context, code, state string) (string, error) {
	if strings.TrimSpace(code) == "" || strings.TrimSpace(state) == "" {
		return "", domainsync.ErrInvalidState
	}

	raw, found, err := s.cache.Get(ctx, domainsync.StateCacheKey(state))
	if err != nil {
		return "", errs.Wrap(err, "load pending connect state")
	}
	if !found {
		return "", domainsync.ErrInvalidState
	}
	// One-shot: a replayed state must not mint a second integration.
	if err := s.cache.Delete(ctx, domainsync.StateCacheKey(state)); err != nil {
		return "", errs.Wrap(err, "consume pending connect state")
	}

	pending, err := domainsync.DecodePendingConnect(raw)
	if err != nil {
		return "", err
	}

	client, err := s.providers.ForType(pending.Type)
	if err != nil {
		return "", err
	}

	creds, err := client.Exchange(ctx, code)
	if err != nil {
		logging.Warn(ctx, "token exchange failed",
			slog.String("tenant_id", pending.TenantID),
			slog.String("type", string(pending.Type)),
			slog.Any("err", errs.Loggable(err)),
		)
		return "", fmt.Errorf("%w: %v", ErrTokenExchangeFailed, err)
	}

	callbackURL := fmt.Sprintf("%s/integrations/webhooks/%s", s.baseURL, pending.Type.Provider())
	subscription, err := client.Subscribe(ctx, creds, pending.ExternalRef, callbackURL)
	if err != nil {
		return "", fmt.Errorf("%w: register change subscription: %v", ErrSaveFailed, err)
	}

	if creds.ProviderMetadata == nil {
		creds.ProviderMetadata = map[string]string{}
	}
	creds.ProviderMetadata["subscription_id"] = subscription.ID
	for k, v := range subscription.Metadata {
		creds.ProviderMetadata[k] = v
	}

	lookupKey, err := s.secrets.LookupKey(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: load lookup key: %v", ErrSaveFailed, err)
	}

	blob, err := s.vault.Encrypt(pending.TenantID, creds)
	if err != nil {
		return "", fmt.Errorf("%w: encrypt credentials: %v", ErrSaveFailed, err)
	}

	now := s.now().UTC().Format(time.RFC3339)
	row := ports.Integration{
		ID:              uuid.NewString(),
		TenantID:        pending.TenantID,
		DevelopmentID:   pending.DevelopmentID,
		Type:            pending.Type,
		Name:            pending.Name,
		Status:          domainsync.StatusConnected,
		Credentials:     blob,
		SubscriptionKey: domainsync.SubscriptionKey(lookupKey, subscription.ID),
		SyncDirection:   domainsync.DirectionBidirectional,
		SyncFrequency:   domainsync.FrequencyRealtime,
		ExternalRef:     pending.ExternalRef,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.integrations.Create(txCtx, row); err != nil {
			return errs.Wrap(err, "create integration")
		}
		return s.audit.Emit(txCtx, ports.AuditEvent{
			TenantID: row.TenantID,
			Action:   ports.AuditIntegrationCreated,
			Actor:    ports.ActorUser,
			Metadata: map[string]any{
				"integration_id": row.ID,
				"type":           string(row.Type),
				"name":           row.Name,
			},
			CreatedAt: now,
		})
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	logging.Info(ctx, "integration connected",
		slog.String("integration_id", row.ID),
		slog.String("tenant_id", row.TenantID),
		slog.String("type", string(row.Type)),
	)
	return row.ID, nil
}

// Summary is an integration view with the credential blob withheld.
type Summary struct {
	ID            string
	DevelopmentID string
	Type          domainsync.IntegrationType
	Name          string
	Status        domainsync.IntegrationStatus
	SyncDirection domainsync.Direction
	SyncFrequency domainsync.Frequency
	ExternalRef   string
	CreatedAt     string
	UpdatedAt     string
}

func summarize(row ports.Integration) Summary {
	return Summary{
		ID:            row.ID,
		DevelopmentID: row.DevelopmentID,
		Type:          row.Type,
		Name:          row.Name,
		Status:        row.Status,
		SyncDirection: row.SyncDirection,
		SyncFrequency: row.SyncFrequency,
		ExternalRef:   row.ExternalRef,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

func (s *Service) List(ctx context.Context, tenantID, developmentID string) ([]Summary, error) {
	rows, err := s.integrations.List(ctx, tenantID, developmentID)
	if err != nil {
		return nil, err
	}
	items := make([]Summary, 0, len(rows))
	for _, row := range rows {
		items = append(items, summarize(row))
	}
	return items, nil
}

func (s *Service) Get(ctx context.Context, id, tenantID string) (Summary, error) {
	row, err := s.integrations.Get(ctx, id, tenantID)
	if err != nil {
		return Summary{}, err
	}
	return summarize(row), nil
}

// Overview is the dashboard payload: integrations plus tenant health.
type Overview struct {
	Integrations     []Summary
	PendingConflicts int64
	RecentAuditLogs  []ports.AuditEvent
}

func (s *Service) Overview(ctx context.Context, tenantID, developmentID string) (Overview, error) {
	items, err := s.List(ctx, tenantID, developmentID)
	if err != nil {
		return Overview{}, err
	}

	pending, err := s.conflicts.CountPendingByTenant(ctx, tenantID)
	if err != nil {
		return Overview{}, err
	}

	events, err := s.auditReader.ListRecent(ctx, tenantID, 20)
	if err != nil {
		return Overview{}, err
	}

	return Overview{
		Integrations:     items,
		PendingConflicts: pending,
		RecentAuditLogs:  events,
	}, nil
}

// Disconnect soft-deletes: credentials and the routing key are wiped, the
// row and its history stay. Cross-tenant ids read as not found.
func (s *Service) Disconnect(ctx context.Context, id, tenantID, actorID string) error {
	now := s.now().UTC().Format(time.RFC3339)
	actor := actorID
	if actor == "" {
		actor = ports.ActorUser
	}

	return s.uow.WithTx(ctx, func(txCtx context.Context) error {
		done, err := s.integrations.Disconnect(txCtx, id, tenantID, now)
		if err != nil {
			return errs.Wrap(err, "disconnect integration")
		}
		if !done {
			return ports.ErrIntegrationNotFound
		}
		return s.audit.Emit(txCtx, ports.AuditEvent{
			TenantID:  tenantID,
			Action:    ports.AuditIntegrationDisconnected,
			Actor:     actor,
			Metadata:  map[string]any{"integration_id": id},
			CreatedAt: now,
		})
	})
}
