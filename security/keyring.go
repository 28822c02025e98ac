package security

import (
	"context"
	"fmt"

	"github.com/goliatone/go-vaultrest/core"
)

// Keyring encrypts with its active provider and decrypts with whichever
// provider matches the envelope's key id and version, so stored API keys
// stay readable across key rotations.
type Keyring struct {
	active  *AppKeySecretProvider
	retired map[string]*AppKeySecretProvider
}

func NewKeyring(active *AppKeySecretProvider, retired ...*AppKeySecretProvider) (*Keyring, error) {
	if active == nil {
		return nil, fmt.Errorf("security: active provider is required")
	}
	ring := &Keyring{active: active, retired: map[string]*AppKeySecretProvider{}}
	for _, provider := range retired {
		if provider == nil {
			continue
		}
		ref := keyRef(provider.KeyID(), provider.Version())
		if ref == keyRef(active.KeyID(), active.Version()) {
			return nil, fmt.Errorf("security: retired key %s duplicates the active key", ref)
		}
		ring.retired[ref] = provider
	}
	return ring, nil
}

func (k *Keyring) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	if k == nil || k.active == nil {
		return nil, fmt.Errorf("security: keyring is not configured")
	}
	return k.active.Encrypt(ctx, plaintext)
}

func (k *Keyring) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if k == nil || k.active == nil {
		return nil, fmt.Errorf("security: keyring is not configured")
	}
	meta, err := ParseEnvelopeMetadata(ciphertext)
	if err != nil {
		return nil, err
	}
	ref := keyRef(meta.KeyID, meta.Version)
	if ref == keyRef(k.active.KeyID(), k.active.Version()) {
		return k.active.Decrypt(ctx, ciphertext)
	}
	if provider, ok := k.retired[ref]; ok {
		return provider.Decrypt(ctx, ciphertext)
	}
	return nil, fmt.Errorf("security: no key registered for %s", ref)
}

// NeedsRotation reports whether ciphertext was sealed by a retired key.
func (k *Keyring) NeedsRotation(ciphertext []byte) (bool, error) {
	if k == nil || k.active == nil {
		return false, fmt.Errorf("security: keyring is not configured")
	}
	meta, err := ParseEnvelopeMetadata(ciphertext)
	if err != nil {
		return false, err
	}
	return keyRef(meta.KeyID, meta.Version) != keyRef(k.active.KeyID(), k.active.Version()), nil
}

func keyRef(keyID string, version int) string {
	return fmt.Sprintf("%s@v%d", keyID, version)
}

var _ core.SecretProvider = (*Keyring)(nil)
