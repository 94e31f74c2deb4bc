// Package local implements the default module.Local: the identity and
// ed25519 signing key of the local validator held in process memory.
package local

import (
	"crypto/ed25519"
	"fmt"

	"github.com/simplexbft/simplex-go/module"
)

// Local holds the local validator's index and private key.
type Local struct {
	index uint32
	key   ed25519.PrivateKey
}

var _ module.Local = (*Local)(nil)

// New instantiates a Local from the validator's committee index and
// private key.
func New(index uint32, key ed25519.PrivateKey) (*Local, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid ed25519 private key length %d", len(key))
	}
	return &Local{index: index, key: key}, nil
}

// Index returns the local validator's index in the committee.
func (l *Local) Index() uint32 {
	return l.index
}

// Sign signs the given message with the local validator's key.
func (l *Local) Sign(msg []byte) ([]byte, error) {
	return ed25519.Sign(l.key, msg), nil
}
