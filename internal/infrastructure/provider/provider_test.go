package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"ohsync/internal/bootstrap/config"
	domainsync "ohsync/internal/domain/sync"
	"ohsync/internal/ports"
)

func TestResolverCoversAllTypes(t *testing.T) {
	t.Parallel()

	r := NewResolver(config.Config{
		HTTP: config.HTTPConfig{BaseURL: "https://sync.example.com/"},
		Providers: config.ProvidersConfig{
			Google:           config.OAuthClientConfig{ClientID: "g", ClientSecret: "gs"},
			Microsoft:        config.OAuthClientConfig{ClientID: "m", ClientSecret: "ms"},
			Dynamics:         config.OAuthClientConfig{ClientID: "d", ClientSecret: "ds"},
			DynamicsResource: "https://org.crm.dynamics.com",
		},
	})

	for _, typ := range []domainsync.IntegrationType{
		domainsync.TypeGoogleSheets,
		domainsync.TypeExcelOneDrive,
		domainsync.TypeExcelSharePoint,
		domainsync.TypeDynamics365,
	} {
		client, err := r.ForType(typ)
		if err != nil {
			t.Fatalf("ForType(%s) error = %v", typ, err)
		}
		if client == nil {
			t.Fatalf("ForType(%s) returned nil client", typ)
		}
	}

	if _, err := r.ForType(domainsync.IntegrationType("csv_upload")); err == nil {
		t.Fatal("unknown type should error")
	}

	// Both Excel variants share one Graph client.
	onedrive, _ := r.ForType(domainsync.TypeExcelOneDrive)
	sharepoint, _ := r.ForType(domainsync.TypeExcelSharePoint)
	if onedrive != sharepoint {
		t.Fatal("excel variants should resolve to the same client")
	}
}

func TestGoogleAuthCodeURL(t *testing.T) {
	t.Parallel()

	c := NewGoogleClient("client-id", "secret", "https://sync.example.com/integrations/oauth/google/callback")
	u := c.AuthCodeURL("nonce-1")

	for _, want := range []string{
		"accounts.google.com",
		"state=nonce-1",
		"access_type=offline",
		"client_id=client-id",
	} {
		if !strings.Contains(u, want) {
			t.Errorf("auth url %q missing %q", u, want)
		}
	}
}

func TestGoogleFetchGrid(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer at-1" {
			t.Errorf("Authorization = %q", got)
		}
		if !strings.Contains(r.URL.Path, "/v4/spreadsheets/sheet-42/values/") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"values": [][]string{{"Address", "Status"}, {"12 Oak Way", "Reserved"}},
		})
	}))
	defer srv.Close()

	c := NewGoogleClient("id", "secret", "http://cb")
	c.sheetsBaseURL = srv.URL

	grid, err := c.FetchGrid(context.Background(), ports.Credentials{AccessToken: "at-1"}, "sheet-42")
	if err != nil {
		t.Fatalf("FetchGrid() error = %v", err)
	}
	want := [][]string{{"Address", "Status"}, {"12 Oak Way", "Reserved"}}
	if !reflect.DeepEqual(grid, want) {
		t.Fatalf("FetchGrid() = %v, want %v", grid, want)
	}
}

func TestGraphFetchGridAndRenew(t *testing.T) {
	t.Parallel()

	var renewedID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/usedRange"):
			_ = json.NewEncoder(w).Encode(map[string]any{
				"text": [][]string{{"Address"}, {"7 Elm St"}},
			})
		case r.Method == http.MethodPatch && strings.Contains(r.URL.Path, "/subscriptions/"):
			renewedID = r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("{}"))
		default:
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewGraphClient("id", "secret", "http://cb")
	c.baseURL = srv.URL

	creds := ports.Credentials{AccessToken: "at-2"}
	grid, err := c.FetchGrid(context.Background(), creds, "me/drive/items/item-1")
	if err != nil {
		t.Fatalf("FetchGrid() error = %v", err)
	}
	if len(grid) != 2 || grid[1][0] != "7 Elm St" {
		t.Fatalf("FetchGrid() = %v", grid)
	}

	if err := c.RenewSubscription(context.Background(), creds, "sub-9"); err != nil {
		t.Fatalf("RenewSubscription() error = %v", err)
	}
	if renewedID != "sub-9" {
		t.Fatalf("renewed subscription id = %q, want sub-9", renewedID)
	}
}

func TestGraphFetchGridErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":"InvalidAuthenticationToken"}}`))
	}))
	defer srv.Close()

	c := NewGraphClient("id", "secret", "http://cb")
	c.baseURL = srv.URL

	_, err := c.FetchGrid(context.Background(), ports.Credentials{AccessToken: "expired"}, "me/drive/items/i")
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("FetchGrid() error = %v, want status 401 surfaced", err)
	}
}

func TestFlattenRecords(t *testing.T) {
	t.Parallel()

	grid := flattenRecords([]map[string]any{
		{
			"fullname":             "Jordan Reeve",
			"budget":               350000.0,
			"numberofchildren":     2.0,
			"donotemail":           false,
			"@odata.etag":          `W/"123"`,
			"_ownerid_value":       "guid",
			"address1_composite":   nil,
			"creditlimit_fraction": 0.5,
		},
		{
			"fullname": "Ash Patel",
			"budget":   nil,
		},
	})

	wantHeaders := []string{"address1_composite", "budget", "creditlimit_fraction", "donotemail", "fullname", "numberofchildren"}
	if !reflect.DeepEqual(grid[0], wantHeaders) {
		t.Fatalf("headers = %v, want %v", grid[0], wantHeaders)
	}

	first := grid[1]
	if first[1] != "350000" {
		t.Errorf("integral float rendered as %q, want 350000", first[1])
	}
	if first[2] != "0.5" {
		t.Errorf("fractional float rendered as %q, want 0.5", first[2])
	}
	if first[3] != "false" {
		t.Errorf("bool rendered as %q, want false", first[3])
	}
	if first[0] != "" {
		t.Errorf("nil rendered as %q, want empty", first[0])
	}

	second := grid[2]
	if second[4] != "Ash Patel" || second[1] != "" {
		t.Errorf("sparse record row = %v", second)
	}

	if flattenRecords(nil) != nil {
		t.Error("no records should flatten to nil")
	}
}

func TestCredentialsFromTokenKeepsRefreshToken(t *testing.T) {
	t.Parallel()

	previous := ports.Credentials{
		RefreshToken:     "rt-keep",
		Scope:            "spreadsheets",
		ProviderMetadata: map[string]string{"subscription_id": "sub-1"},
	}
	token := tokenFromCredentials(ports.Credentials{
		AccessToken: "at-new",
		ExpiresAt:   "2026-06-01T10:00:00Z",
	})

	got := credentialsFromToken(token, previous)
	if got.RefreshToken != "rt-keep" {
		t.Errorf("RefreshToken = %q, want carried forward", got.RefreshToken)
	}
	if got.AccessToken != "at-new" {
		t.Errorf("AccessToken = %q", got.AccessToken)
	}
	if got.ExpiresAt != "2026-06-01T10:00:00Z" {
		t.Errorf("ExpiresAt = %q", got.ExpiresAt)
	}
	if got.ProviderMetadata["subscription_id"] != "sub-1" {
		t.Errorf("ProviderMetadata lost: %v", got.ProviderMetadata)
	}
}
