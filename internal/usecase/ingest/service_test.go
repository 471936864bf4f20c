package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"ohsync/internal/bootstrap/config"
	domainsync "ohsync/internal/domain/sync"
	"ohsync/internal/errs"
	"ohsync/internal/ports"
	"ohsync/internal/usecase/syncengine"
)

type stubSecrets struct{}

func (stubSecrets) VaultKey(_ context.Context) ([]byte, error)  { return []byte("vault-key"), nil }
func (stubSecrets) LookupKey(_ context.Context) ([]byte, error) { return []byte("lookup-key"), nil }

type stubIntegrations struct {
	byKey   map[string][]ports.Integration
	findErr error

	credUpdates int
}

func (s *stubIntegrations) Create(_ context.Context, _ ports.Integration) error { return nil }

func (s *stubIntegrations) List(_ context.Context, _, _ string) ([]ports.Integration, error) {
	return nil, nil
}

func (s *stubIntegrations) Get(_ context.Context, _, _ string) (ports.Integration, error) {
	return ports.Integration{}, ports.ErrIntegrationNotFound
}

func (s *stubIntegrations) FindBySubscriptionKey(_ context.Context, key string, _ []domainsync.IntegrationType) ([]ports.Integration, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.byKey[key], nil
}

func (s *stubIntegrations) ListScheduled(_ context.Context) ([]ports.Integration, error) {
	return nil, nil
}

func (s *stubIntegrations) ListConnected(_ context.Context) ([]ports.Integration, error) {
	return nil, nil
}

func (s *stubIntegrations) Disconnect(_ context.Context, _, _, _ string) (bool, error) {
	return false, nil
}

func (s *stubIntegrations) UpdateCredentials(_ context.Context, _ string, _ []byte, _ string) error {
	s.credUpdates++
	return nil
}

// plainVault passes payloads through JSON-free for test readability.
type plainVault struct{}

func (plainVault) Encrypt(_ string, payload ports.Credentials) ([]byte, error) {
	return []byte(payload.AccessToken), nil
}

func (plainVault) Decrypt(_ string, blob []byte) (ports.Credentials, error) {
	if len(blob) == 0 {
		return ports.Credentials{}, ports.ErrCredentialsEmpty
	}
	return ports.Credentials{AccessToken: string(blob)}, nil
}

type stubClient struct {
	grid     [][]string
	fetchErr error
	fetches  int
	refreshs int
}

func (c *stubClient) AuthCodeURL(_ string) string { return "" }

func (c *stubClient) Exchange(_ context.Context, _ string) (ports.Credentials, error) {
	return ports.Credentials{}, nil
}

func (c *stubClient) Refresh(_ context.Context, creds ports.Credentials) (ports.Credentials, error) {
	c.refreshs++
	creds.AccessToken = "refreshed-" + creds.AccessToken
	return creds, nil
}

func (c *stubClient) FetchGrid(_ context.Context, _ ports.Credentials, _ string) ([][]string, error) {
	c.fetches++
	return c.grid, c.fetchErr
}

func (c *stubClient) Subscribe(_ context.Context, _ ports.Credentials, _, _ string) (ports.Subscription, error) {
	return ports.Subscription{}, nil
}

func (c *stubClient) RenewSubscription(_ context.Context, _ ports.Credentials, _ string) error {
	return nil
}

type stubResolver struct{ client *stubClient }

func (r stubResolver) ForType(_ domainsync.IntegrationType) (ports.ProviderClient, error) {
	return r.client, nil
}

type stubEngine struct {
	calls []ports.Integration
	err   error
}

func (e *stubEngine) SyncRows(_ context.Context, integration ports.Integration, _ [][]string) (syncengine.Result, error) {
	e.calls = append(e.calls, integration)
	return syncengine.Result{}, e.err
}

type stubAudit struct {
	events []ports.AuditEvent
}

func (s *stubAudit) Emit(_ context.Context, event ports.AuditEvent) error {
	s.events = append(s.events, event)
	return nil
}

func (s *stubAudit) actions() []string {
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Action)
	}
	return out
}

type fixture struct {
	service      *Service
	integrations *stubIntegrations
	client       *stubClient
	engine       *stubEngine
	audit        *stubAudit
}

func newFixture() *fixture {
	f := &fixture{
		integrations: &stubIntegrations{byKey: map[string][]ports.Integration{}},
		client:       &stubClient{grid: [][]string{{"Address"}, {"12 Oak Way"}}},
		engine:       &stubEngine{},
		audit:        &stubAudit{},
	}
	f.service = NewService(
		f.integrations,
		plainVault{},
		stubSecrets{},
		stubResolver{client: f.client},
		f.engine,
		f.audit,
		config.Config{},
	)
	return f
}

func keyFor(subscriptionID string) string {
	return domainsync.SubscriptionKey([]byte("lookup-key"), subscriptionID)
}

func connectedIntegration(id string) ports.Integration {
	return ports.Integration{
		ID:            id,
		TenantID:      "tenant-1",
		Type:          domainsync.TypeGoogleSheets,
		Status:        domainsync.StatusConnected,
		Credentials:   []byte("at-1"),
		SyncDirection: domainsync.DirectionBidirectional,
		SyncFrequency: domainsync.FrequencyRealtime,
		ExternalRef:   "sheet-1",
	}
}

func TestProcessNotificationsHappyPath(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.integrations.byKey[keyFor("sub-1")] = []ports.Integration{connectedIntegration("int-1")}

	err := f.service.ProcessNotifications(context.Background(), domainsync.ProviderGoogle, []Notification{
		{SubscriptionID: "sub-1", Resource: "sheet-1"},
	})
	if err != nil {
		t.Fatalf("ProcessNotifications() error = %v", err)
	}

	if len(f.engine.calls) != 1 || f.engine.calls[0].ID != "int-1" {
		t.Fatalf("engine calls = %v", f.engine.calls)
	}
	if actions := f.audit.actions(); len(actions) != 1 || actions[0] != ports.AuditWebhookTriggered {
		t.Fatalf("audit actions = %v", actions)
	}
}

func TestProcessNotificationsUnroutableSkipped(t *testing.T) {
	t.Parallel()

	f := newFixture()
	// sub-2 resolves to two rows, sub-3 to none; sub-1 still syncs.
	f.integrations.byKey[keyFor("sub-1")] = []ports.Integration{connectedIntegration("int-1")}
	f.integrations.byKey[keyFor("sub-2")] = []ports.Integration{
		connectedIntegration("int-2"),
		connectedIntegration("int-3"),
	}

	err := f.service.ProcessNotifications(context.Background(), domainsync.ProviderGoogle, []Notification{
		{SubscriptionID: "sub-2"},
		{SubscriptionID: "sub-3"},
		{SubscriptionID: "sub-1"},
	})
	if err != nil {
		t.Fatalf("ProcessNotifications() error = %v", err)
	}
	if len(f.engine.calls) != 1 || f.engine.calls[0].ID != "int-1" {
		t.Fatalf("engine calls = %v, want only int-1", f.engine.calls)
	}
}

func TestProcessNotificationsFailureIsolation(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.integrations.byKey[keyFor("sub-1")] = []ports.Integration{connectedIntegration("int-1")}
	f.integrations.byKey[keyFor("sub-2")] = []ports.Integration{connectedIntegration("int-2")}
	f.engine.err = errors.New("mapping broken")

	err := f.service.ProcessNotifications(context.Background(), domainsync.ProviderGoogle, []Notification{
		{SubscriptionID: "sub-1"},
		{SubscriptionID: "sub-2"},
	})
	if err != nil {
		t.Fatalf("per-notification failures must not surface, got %v", err)
	}

	// Both notifications were still attempted.
	if len(f.engine.calls) != 2 {
		t.Fatalf("engine calls = %d, want 2", len(f.engine.calls))
	}
	actions := f.audit.actions()
	want := []string{
		ports.AuditWebhookTriggered, ports.AuditNotificationFailed,
		ports.AuditWebhookTriggered, ports.AuditNotificationFailed,
	}
	if len(actions) != len(want) {
		t.Fatalf("audit actions = %v, want %v", actions, want)
	}
	for i := range want {
		if actions[i] != want[i] {
			t.Fatalf("audit actions = %v, want %v", actions, want)
		}
	}
}

func TestProcessNotificationsSystemicFailureAborts(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.integrations.findErr = errors.New("database is locked")

	err := f.service.ProcessNotifications(context.Background(), domainsync.ProviderGoogle, []Notification{
		{SubscriptionID: "sub-1"},
	})
	if err == nil || !errs.IsSystemic(err) {
		t.Fatalf("error = %v, want systemic", err)
	}
}

func TestProcessNotificationsSkipsDisconnectedAndOutbound(t *testing.T) {
	t.Parallel()

	f := newFixture()
	disconnected := connectedIntegration("int-1")
	disconnected.Status = domainsync.StatusDisconnected
	outbound := connectedIntegration("int-2")
	outbound.SyncDirection = domainsync.DirectionOutbound
	f.integrations.byKey[keyFor("sub-1")] = []ports.Integration{disconnected}
	f.integrations.byKey[keyFor("sub-2")] = []ports.Integration{outbound}

	err := f.service.ProcessNotifications(context.Background(), domainsync.ProviderGoogle, []Notification{
		{SubscriptionID: "sub-1"},
		{SubscriptionID: "sub-2"},
	})
	if err != nil {
		t.Fatalf("ProcessNotifications() error = %v", err)
	}
	if len(f.engine.calls) != 0 {
		t.Fatalf("engine calls = %v, want none", f.engine.calls)
	}
}

func TestProcessNotificationsRefreshesExpiredToken(t *testing.T) {
	t.Parallel()

	f := newFixture()
	row := connectedIntegration("int-1")
	f.integrations.byKey[keyFor("sub-1")] = []ports.Integration{row}

	f.service.now = func() time.Time {
		return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	}
	// plainVault round-trips only the access token, so stash the expiry by
	// swapping the vault for one with a fixed payload.
	f.service.vault = fixedVault{creds: ports.Credentials{
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
		ExpiresAt:    "2026-05-01T11:00:00Z",
	}}

	err := f.service.ProcessNotifications(context.Background(), domainsync.ProviderGoogle, []Notification{
		{SubscriptionID: "sub-1"},
	})
	if err != nil {
		t.Fatalf("ProcessNotifications() error = %v", err)
	}

	if f.client.refreshs != 1 {
		t.Fatalf("refresh calls = %d, want 1", f.client.refreshs)
	}
	if f.integrations.credUpdates != 1 {
		t.Fatalf("credential updates = %d, want 1", f.integrations.credUpdates)
	}
	actions := f.audit.actions()
	if len(actions) != 2 || actions[1] != ports.AuditTokenRefreshed {
		t.Fatalf("audit actions = %v", actions)
	}
}

type fixedVault struct{ creds ports.Credentials }

func (v fixedVault) Encrypt(_ string, _ ports.Credentials) ([]byte, error) { return []byte("x"), nil }
func (v fixedVault) Decrypt(_ string, _ []byte) (ports.Credentials, error) {
	return v.creds, nil
}
