package operation

import (
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/simplexbft/simplex-go/model/simplex"
)

// InsertCandidate persists a candidate in its canonical wire encoding,
// keyed by its ID. Returns storage.ErrAlreadyExists if the candidate
// was already stored.
func InsertCandidate(candidate *simplex.Candidate) func(*badger.Txn) error {
	data, err := simplex.EncodeCandidate(candidate)
	if err != nil {
		return func(*badger.Txn) error {
			return fmt.Errorf("could not encode candidate: %w", err)
		}
	}
	return insert(makePrefix(codeCandidate, candidate.ID()), data)
}

// RetrieveCandidate loads and decodes the candidate with the given ID.
// Returns storage.ErrNotFound if no candidate with the ID is stored.
func RetrieveCandidate(id simplex.CandidateID, candidate **simplex.Candidate) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		var data []byte
		err := retrieve(makePrefix(codeCandidate, id), &data)(tx)
		if err != nil {
			return err
		}
		*candidate, err = simplex.DecodeCandidate(data)
		if err != nil {
			return fmt.Errorf("could not decode stored candidate: %w", err)
		}
		return nil
	}
}

// TraverseCandidates iterates over all stored candidates with slots at
// or above from, in slot order.
func TraverseCandidates(from simplex.Slot, handle func(*simplex.Candidate) error) func(*badger.Txn) error {
	return traverse(makePrefix(codeCandidate), makePrefix(codeCandidate, from), func(_ []byte, val []byte) error {
		candidate, err := simplex.DecodeCandidate(val)
		if err != nil {
			return fmt.Errorf("could not decode stored candidate: %w", err)
		}
		return handle(candidate)
	})
}
