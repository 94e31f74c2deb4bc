package badger

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"
	lru "github.com/hashicorp/golang-lru"

	"github.com/simplexbft/simplex-go/model/simplex"
	"github.com/simplexbft/simplex-go/storage"
	"github.com/simplexbft/simplex-go/storage/badger/operation"
)

// Certificates implements storage.Certificates on badger.
type Certificates struct {
	db    *badger.DB
	cache *lru.Cache
}

var _ storage.Certificates = (*Certificates)(nil)

// NewCertificates instantiates a certificate store on the given
// database.
func NewCertificates(db *badger.DB) (*Certificates, error) {
	cache, err := lru.New(defaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("could not create cache: %w", err)
	}
	return &Certificates{db: db, cache: cache}, nil
}

// Store persists the certificate. Storing a certificate for an
// already-covered candidate ID is a no-op.
func (c *Certificates) Store(cert *simplex.Certificate) error {
	err := c.db.Update(operation.InsertCertificate(cert))
	if errors.Is(err, storage.ErrAlreadyExists) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not store certificate: %w", err)
	}
	c.cache.Add(cert.Vote.CandidateID(), cert)
	return nil
}

// ByCandidateID returns the stored certificate whose vote points at the
// given candidate ID.
// Error returns:
//   - storage.ErrNotFound if no certificate for the ID is stored
func (c *Certificates) ByCandidateID(id simplex.CandidateID) (*simplex.Certificate, error) {
	if cached, ok := c.cache.Get(id); ok {
		return cached.(*simplex.Certificate), nil
	}
	var cert *simplex.Certificate
	err := c.db.View(operation.RetrieveCertificate(id, &cert))
	if err != nil {
		return nil, err
	}
	c.cache.Add(id, cert)
	return cert, nil
}

// Traverse invokes handle for every stored certificate with a slot at
// or above from, in slot order.
func (c *Certificates) Traverse(from simplex.Slot, handle func(*simplex.Certificate) error) error {
	return c.db.View(operation.TraverseCertificates(from, handle))
}
