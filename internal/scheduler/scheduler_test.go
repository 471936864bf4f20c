package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	domainsync "ohsync/internal/domain/sync"
	"ohsync/internal/ports"
)

type stubIntegrations struct {
	ports.IntegrationRepository

	connected  []ports.Integration
	credUpdate map[string][]byte
}

func (s *stubIntegrations) ListConnected(_ context.Context) ([]ports.Integration, error) {
	return s.connected, nil
}

func (s *stubIntegrations) UpdateCredentials(_ context.Context, id string, credentials []byte, _ string) error {
	if s.credUpdate == nil {
		s.credUpdate = map[string][]byte{}
	}
	s.credUpdate[id] = credentials
	return nil
}

type fixedVault struct {
	creds ports.Credentials
}

func (v fixedVault) Encrypt(_ string, payload ports.Credentials) ([]byte, error) {
	return []byte(payload.AccessToken), nil
}

func (v fixedVault) Decrypt(_ string, _ []byte) (ports.Credentials, error) {
	return v.creds, nil
}

type stubClient struct {
	refreshed    ports.Credentials
	refreshErr   error
	refreshCalls int
	renewCalls   []string
	renewErr     error
}

func (c *stubClient) AuthCodeURL(string) string { return "" }

func (c *stubClient) Exchange(context.Context, string) (ports.Credentials, error) {
	return ports.Credentials{}, errors.New("not implemented")
}

func (c *stubClient) Refresh(context.Context, ports.Credentials) (ports.Credentials, error) {
	c.refreshCalls++
	return c.refreshed, c.refreshErr
}

func (c *stubClient) FetchGrid(context.Context, ports.Credentials, string) ([][]string, error) {
	return nil, errors.New("not implemented")
}

func (c *stubClient) Subscribe(context.Context, ports.Credentials, string, string) (ports.Subscription, error) {
	return ports.Subscription{}, errors.New("not implemented")
}

func (c *stubClient) RenewSubscription(_ context.Context, _ ports.Credentials, subscriptionID string) error {
	c.renewCalls = append(c.renewCalls, subscriptionID)
	return c.renewErr
}

type stubResolver struct {
	client *stubClient
}

func (r *stubResolver) ForType(domainsync.IntegrationType) (ports.ProviderClient, error) {
	return r.client, nil
}

type stubAudit struct {
	actions []string
}

func (s *stubAudit) Emit(_ context.Context, event ports.AuditEvent) error {
	s.actions = append(s.actions, event.Action)
	return nil
}

func TestRefreshOneSkipsFreshToken(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	client := &stubClient{}
	s := &Scheduler{
		integrations: &stubIntegrations{},
		vault: fixedVault{creds: ports.Credentials{
			AccessToken:  "token",
			RefreshToken: "refresh",
			ExpiresAt:    now.Add(time.Hour).Format(time.RFC3339),
		}},
		providers: &stubResolver{client: client},
		audit:     &stubAudit{},
		now:       func() time.Time { return now },
	}

	if err := s.refreshOne(context.Background(), ports.Integration{ID: "int-1", TenantID: "tenant-1"}); err != nil {
		t.Fatalf("refreshOne() error = %v", err)
	}
	if client.refreshCalls != 0 {
		t.Fatalf("refresh calls = %d, want 0", client.refreshCalls)
	}
}

func TestRefreshOneRefreshesExpiringToken(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	integrations := &stubIntegrations{}
	audit := &stubAudit{}
	client := &stubClient{refreshed: ports.Credentials{AccessToken: "fresh"}}
	s := &Scheduler{
		integrations: integrations,
		vault: fixedVault{creds: ports.Credentials{
			AccessToken:  "stale",
			RefreshToken: "refresh",
			ExpiresAt:    now.Add(5 * time.Minute).Format(time.RFC3339),
		}},
		providers: &stubResolver{client: client},
		audit:     audit,
		now:       func() time.Time { return now },
	}

	if err := s.refreshOne(context.Background(), ports.Integration{ID: "int-1", TenantID: "tenant-1"}); err != nil {
		t.Fatalf("refreshOne() error = %v", err)
	}
	if client.refreshCalls != 1 {
		t.Fatalf("refresh calls = %d, want 1", client.refreshCalls)
	}
	if string(integrations.credUpdate["int-1"]) != "fresh" {
		t.Fatalf("persisted credentials = %q, want fresh", integrations.credUpdate["int-1"])
	}
	if len(audit.actions) != 1 || audit.actions[0] != ports.AuditTokenRefreshed {
		t.Fatalf("audit actions = %v, want token refreshed", audit.actions)
	}
}

func TestRefreshOneSkipsWithoutRefreshToken(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	client := &stubClient{}
	s := &Scheduler{
		integrations: &stubIntegrations{},
		vault: fixedVault{creds: ports.Credentials{
			AccessToken: "token",
			ExpiresAt:   now.Add(time.Minute).Format(time.RFC3339),
		}},
		providers: &stubResolver{client: client},
		audit:     &stubAudit{},
		now:       func() time.Time { return now },
	}

	if err := s.refreshOne(context.Background(), ports.Integration{ID: "int-1", TenantID: "tenant-1"}); err != nil {
		t.Fatalf("refreshOne() error = %v", err)
	}
	if client.refreshCalls != 0 {
		t.Fatalf("refresh calls = %d, want 0", client.refreshCalls)
	}
}

func TestRenewSubscriptionsUsesStoredID(t *testing.T) {
	t.Parallel()

	client := &stubClient{}
	s := &Scheduler{
		integrations: &stubIntegrations{connected: []ports.Integration{
			{ID: "int-1", TenantID: "tenant-1", Type: domainsync.TypeExcelOneDrive, Credentials: []byte("sub-1")},
			{ID: "int-2", TenantID: "tenant-1", Type: domainsync.TypeExcelOneDrive, Credentials: []byte("")},
		}},
		vault: subscriptionVault{},
		providers: &stubResolver{
			client: client,
		},
		audit: &stubAudit{},
		now:   time.Now,
	}

	if err := s.renewSubscriptions(context.Background()); err != nil {
		t.Fatalf("renewSubscriptions() error = %v", err)
	}
	if len(client.renewCalls) != 1 || client.renewCalls[0] != "sub-1" {
		t.Fatalf("renew calls = %v, want [sub-1]", client.renewCalls)
	}
}

// subscriptionVault surfaces the blob as the stored subscription id.
type subscriptionVault struct{}

func (subscriptionVault) Encrypt(_ string, payload ports.Credentials) ([]byte, error) {
	return []byte(payload.AccessToken), nil
}

func (subscriptionVault) Decrypt(_ string, blob []byte) (ports.Credentials, error) {
	if len(blob) == 0 {
		return ports.Credentials{AccessToken: "token"}, nil
	}
	return ports.Credentials{
		AccessToken:      "token",
		ProviderMetadata: map[string]string{"subscription_id": string(blob)},
	}, nil
}
