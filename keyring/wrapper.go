package keyring

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/localfirst/eventcore/apperr"
	"gocloud.dev/secrets"
	"golang.org/x/crypto/hkdf"
)

// Wrapper wraps and unwraps per-grant resource keys under a scope's master
// key material, held by a vendor-agnostic secrets.Keeper (file://, awskms://,
// gcpkms://, azurekeyvault://, hashivault://, or base64key:// in tests).
// Each grant gets its own subkey via HKDF, keyed on resourceKeyID, so that
// compromising one grant's derived key never exposes the scope master key
// or any sibling grant's key.
type Wrapper struct {
	keeper *secrets.Keeper
}

// NewWrapper opens a Keeper against the given gocloud secrets URL.
func NewWrapper(ctx context.Context, url string) (*Wrapper, error) {
	keeper, err := secrets.OpenKeeper(ctx, url)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeDbInvalidState, err, "open secret keeper %s", url)
	}
	return &Wrapper{keeper: keeper}, nil
}

func (w *Wrapper) Close() error {
	return w.keeper.Close()
}

// Wrap derives a per-grant subkey from resourceKeyID via HKDF-SHA256,
// XOR-masks resourceKey with it, and asks the keeper to encrypt the masked
// bytes, producing the wrapped_key bytes stored on a ResourceGrant.
func (w *Wrapper) Wrap(ctx context.Context, resourceKeyID string, resourceKey []byte) ([]byte, error) {
	subkey, err := deriveSubkey(resourceKeyID, len(resourceKey))
	if err != nil {
		return nil, err
	}
	masked := xorBytes(resourceKey, subkey)
	wrapped, err := w.keeper.Encrypt(ctx, masked)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeDbInvalidState, err, "wrap resource key %s", resourceKeyID)
	}
	return wrapped, nil
}

// Unwrap reverses Wrap: decrypt via the keeper, then unmask with the same
// HKDF-derived subkey.
func (w *Wrapper) Unwrap(ctx context.Context, resourceKeyID string, wrappedKey []byte) ([]byte, error) {
	masked, err := w.keeper.Decrypt(ctx, wrappedKey)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeDbInvalidState, err, "unwrap resource key %s", resourceKeyID)
	}
	subkey, err := deriveSubkey(resourceKeyID, len(masked))
	if err != nil {
		return nil, err
	}
	return xorBytes(masked, subkey), nil
}

func deriveSubkey(resourceKeyID string, length int) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	hk := hkdf.New(sha256.New, []byte(resourceKeyID), nil, []byte("eventcore-keyring-subkey"))
	subkey := make([]byte, length)
	if _, err := io.ReadFull(hk, subkey); err != nil {
		return nil, fmt.Errorf("keyring: deriving subkey for %s: %w", resourceKeyID, err)
	}
	return subkey, nil
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}
