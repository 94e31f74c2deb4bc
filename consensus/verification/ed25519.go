package verification

import (
	"crypto/ed25519"
	"fmt"

	"github.com/simplexbft/simplex-go/consensus"
)

// Ed25519Key adapts a raw ed25519 public key to consensus.PublicKey.
// The default signing scheme for sessions without external key
// management is plain ed25519 over the canonical vote encoding.
type Ed25519Key struct {
	key ed25519.PublicKey
}

var _ consensus.PublicKey = (*Ed25519Key)(nil)

// NewEd25519Key wraps the given public key. Errors if the key has the
// wrong length.
func NewEd25519Key(key ed25519.PublicKey) (*Ed25519Key, error) {
	if len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid ed25519 public key length %d", len(key))
	}
	return &Ed25519Key{key: key}, nil
}

// Verify returns true if sig is a valid ed25519 signature of msg.
func (k *Ed25519Key) Verify(sig []byte, msg []byte) bool {
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(k.key, msg, sig)
}
