package ports

import (
	"context"
	"errors"
)

// Credentials is the decrypted OAuth payload. The encrypted blob format is
// opaque to every component but the vault.
type Credentials struct {
	AccessToken      string            `json:"access_token"`
	RefreshToken     string            `json:"refresh_token,omitempty"`
	ExpiresAt        string            `json:"expires_at,omitempty"`
	TokenType        string            `json:"token_type,omitempty"`
	Scope            string            `json:"scope,omitempty"`
	ProviderMetadata map[string]string `json:"provider_metadata,omitempty"`
}

// ErrCredentialTamper: integrity check failed or the blob was encrypted for
// a different tenant. Never returns garbage plaintext.
var ErrCredentialTamper = errors.New("credential blob failed integrity check")

// ErrCredentialsEmpty: the integration is disconnected and holds no blob.
var ErrCredentialsEmpty = errors.New("credentials are empty")

// Vault encrypts credential payloads with the owning tenant bound as
// associated data, so a blob leaked from one tenant cannot be replayed
// against another even with the shared key material.
type Vault interface {
	Encrypt(tenantID string, payload Credentials) ([]byte, error)
	Decrypt(tenantID string, blob []byte) (Credentials, error)
}

// SecretsProvider supplies key material to the vault and the subscription
// lookup-key derivation. Injected so tests run with fake keys and rotation
// needs no code change.
type SecretsProvider interface {
	VaultKey(ctx context.Context) ([]byte, error)
	LookupKey(ctx context.Context) ([]byte, error)
}
