package sync

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// PendingConnect is the server-side half of the OAuth state parameter.
// The state sent to the provider is an opaque nonce; this payload sits in
// the KV cache under that nonce until the callback returns, which is the
// awaiting_code half of the connect state machine.
type PendingConnect struct {
	TenantID      string          `json:"tenant_id"`
	DevelopmentID string          `json:"development_id,omitempty"`
	Type          IntegrationType `json:"type"`
	Name          string          `json:"name"`
	ExternalRef   string          `json:"external_ref"`
}

var ErrInvalidState = errors.New("invalid oauth state")

func NewStateNonce() string {
	return uuid.NewString()
}

// StateCacheKey namespaces pending-connect entries in the shared KV cache.
func StateCacheKey(nonce string) string {
	return "oauth_state:" + nonce
}

func (p PendingConnect) Encode() (string, error) {
	if strings.TrimSpace(p.TenantID) == "" {
		return "", ErrInvalidState
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodePendingConnect rejects payloads without a tenant binding; a state
// that cannot name its tenant must never produce an integration.
func DecodePendingConnect(raw string) (PendingConnect, error) {
	var p PendingConnect
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return PendingConnect{}, ErrInvalidState
	}
	if strings.TrimSpace(p.TenantID) == "" {
		return PendingConnect{}, ErrInvalidState
	}
	if _, err := ParseIntegrationType(string(p.Type)); err != nil {
		return PendingConnect{}, ErrInvalidState
	}
	return p, nil
}
