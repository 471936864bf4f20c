package vault

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"ohsync/internal/errs"
	"ohsync/internal/ports"
)

// Vault seals credential payloads with XChaCha20-Poly1305. The tenant id
// is bound as associated data, so decrypting tenant A's blob under tenant
// B's id fails the integrity check even though the key is shared.
//
// Blob layout: 24-byte nonce || ciphertext+tag. Opaque to every caller.
type Vault struct {
	secrets ports.SecretsProvider
}

var _ ports.Vault = (*Vault)(nil)

func New(secrets ports.SecretsProvider) *Vault {
	return &Vault{secrets: secrets}
}

func (v *Vault) aead() (interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	NonceSize() int
}, error) {
	key, err := v.secrets.VaultKey(context.Background())
	if err != nil {
		return nil, errs.Wrap(err, "load vault key")
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("vault key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errs.Wrap(err, "init aead")
	}
	return aead, nil
}

func (v *Vault) Encrypt(tenantID string, payload ports.Credentials) ([]byte, error) {
	if tenantID == "" {
		return nil, errors.New("tenant id is required")
	}

	aead, err := v.aead()
	if err != nil {
		return nil, err
	}

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nil, errs.Wrap(err, "encode credential payload")
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errs.Wrap(err, "generate nonce")
	}

	blob := aead.Seal(nonce, nonce, plaintext, []byte(tenantID))
	return blob, nil
}

func (v *Vault) Decrypt(tenantID string, blob []byte) (ports.Credentials, error) {
	if tenantID == "" {
		return ports.Credentials{}, errors.New("tenant id is required")
	}
	if len(blob) == 0 {
		return ports.Credentials{}, ports.ErrCredentialsEmpty
	}

	aead, err := v.aead()
	if err != nil {
		return ports.Credentials{}, err
	}

	if len(blob) <= aead.NonceSize() {
		return ports.Credentials{}, ports.ErrCredentialTamper
	}

	nonce, ciphertext := blob[:aead.NonceSize()], blob[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(tenantID))
	if err != nil {
		// Wrong tenant binding and corrupted ciphertext are
		// indistinguishable here; both are tamper.
		return ports.Credentials{}, ports.ErrCredentialTamper
	}

	var payload ports.Credentials
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return ports.Credentials{}, ports.ErrCredentialTamper
	}
	return payload, nil
}
