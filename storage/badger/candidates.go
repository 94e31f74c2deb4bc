// Package badger implements the persistence interfaces on a badger
// key-value database, with a read-through LRU cache in front of each
// keyspace.
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

// defaultCacheSize bounds the number of entities kept in memory per
// store.
const defaultCacheSize = 1000

// Candidates implements storage.Candidates on badger.
type Candidates struct {
	db    *badger.DB
	cache *lru.Cache
}

var _ storage.Candidates = (*Candidates)(nil)

// NewCandidates instantiates a candidate store on the given database.
func NewCandidates(db *badger.DB) (*Candidates, error) {
	cache, err := lru.New(defaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("could not create cache: %w", err)
	}
	return &Candidates{db: db, cache: cache}, nil
}

// Store persists the candidate. Storing an already-stored candidate is
// a no-op.
func (c *Candidates) Store(candidate *simplex.Candidate) error {
	err := c.db.Update(operation.InsertCandidate(candidate))
	if errors.Is(err, storage.ErrAlreadyExists) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not store candidate: %w", err)
	}
	c.cache.Add(candidate.ID(), candidate)
	return nil
}

// ByID returns the candidate with the given ID.
// Error returns:
//   - storage.ErrNotFound if no candidate with the ID is stored
func (c *Candidates) ByID(id simplex.CandidateID) (*simplex.Candidate, error) {
	if cached, ok := c.cache.Get(id); ok {
		return cached.(*simplex.Candidate), nil
	}
	var candidate *simplex.Candidate
	err := c.db.View(operation.RetrieveCandidate(id, &candidate))
	if err != nil {
		return nil, err
	}
	c.cache.Add(id, candidate)
	return candidate, nil
}

// Traverse invokes handle for every stored candidate with a slot at or
// above from, in slot order.
func (c *Candidates) Traverse(from simplex.Slot, handle func(*simplex.Candidate) error) error {
	return c.db.View(operation.TraverseCandidates(from, handle))
}
