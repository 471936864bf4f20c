package ports

import (
	"context"

	domainsync "ohsync/internal/domain/sync"
)

// Subscription is the provider-side change notification registration.
type Subscription struct {
	ID string
	// Metadata carries provider extras (resource path, channel token)
	// into the credential blob's provider_metadata.
	Metadata map[string]string
}

// ProviderClient is one external provider's API surface, scoped to what
// the sync engine needs. All calls honor ctx deadlines; a hung provider
// becomes a context error, never an indefinite block.
type ProviderClient interface {
	AuthCodeURL(state string) string
	// Exchange trades an authorization code for tokens. Terminal for this
	// connect attempt on failure; the caller restarts the OAuth flow.
	Exchange(ctx context.Context, code string) (Credentials, error)
	Refresh(ctx context.Context, creds Credentials) (Credentials, error)
	// FetchGrid returns the used range as raw cells, header row first.
	// Providers without a cell grid flatten their records into one.
	FetchGrid(ctx context.Context, creds Credentials, externalRef string) ([][]string, error)
	Subscribe(ctx context.Context, creds Credentials, externalRef, callbackURL string) (Subscription, error)
	RenewSubscription(ctx context.Context, creds Credentials, subscriptionID string) error
}

// ProviderResolver dispatches on the closed integration-type enum.
type ProviderResolver interface {
	ForType(t domainsync.IntegrationType) (ProviderClient, error)
}
