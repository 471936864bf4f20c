package vault

import (
	"context"
	"encoding/hex"
	"fmt"

	"ohsync/internal/bootstrap/config"
	"ohsync/internal/errs"
	"ohsync/internal/ports"
)

// ConfigSecrets backs the SecretsProvider with hex-encoded keys from
// configuration. Decoding happens once at construction so a malformed key
// fails at startup, not mid-request.
type ConfigSecrets struct {
	vaultKey  []byte
	lookupKey []byte
}

var _ ports.SecretsProvider = (*ConfigSecrets)(nil)

func NewConfigSecrets(cfg config.VaultConfig) (*ConfigSecrets, error) {
	vaultKey, err := hex.DecodeString(cfg.Key)
	if err != nil {
		return nil, errs.Wrap(err, "decode vault.key")
	}
	if len(vaultKey) != 32 {
		return nil, fmt.Errorf("vault.key must decode to 32 bytes, got %d", len(vaultKey))
	}

	lookupKey, err := hex.DecodeString(cfg.LookupKey)
	if err != nil {
		return nil, errs.Wrap(err, "decode vault.lookup_key")
	}
	if len(lookupKey) == 0 {
		return nil, fmt.Errorf("vault.lookup_key must not be empty")
	}

	return &ConfigSecrets{vaultKey: vaultKey, lookupKey: lookupKey}, nil
}

func (s *ConfigSecrets) VaultKey(_ context.Context) ([]byte, error) {
	return s.vaultKey, nil
}

func (s *ConfigSecrets) LookupKey(_ context.Context) ([]byte, error) {
	return s.lookupKey, nil
}
