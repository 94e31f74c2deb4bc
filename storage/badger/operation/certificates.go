package operation

import (
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/simplexbft/simplex-go/model/simplex"
)

// InsertCertificate persists a certificate in its canonical wire
// encoding, keyed by the candidate ID its vote points at. Returns
// storage.ErrAlreadyExists if a certificate for the ID was already
// stored.
func InsertCertificate(cert *simplex.Certificate) func(*badger.Txn) error {
	data, err := simplex.EncodeCertificate(cert)
	if err != nil {
		return func(*badger.Txn) error {
			return fmt.Errorf("could not encode certificate: %w", err)
		}
	}
	return insert(makePrefix(codeCertificate, cert.Vote.CandidateID()), data)
}

// RetrieveCertificate loads and decodes the certificate stored for the
// given candidate ID. Returns storage.ErrNotFound if no certificate for
// the ID is stored.
func RetrieveCertificate(id simplex.CandidateID, cert **simplex.Certificate) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		var data []byte
		err := retrieve(makePrefix(codeCertificate, id), &data)(tx)
		if err != nil {
			return err
		}
		*cert, err = simplex.DecodeCertificate(data)
		if err != nil {
			return fmt.Errorf("could not decode stored certificate: %w", err)
		}
		return nil
	}
}

// TraverseCertificates iterates over all stored certificates with slots
// at or above from, in slot order.
func TraverseCertificates(from simplex.Slot, handle func(*simplex.Certificate) error) func(*badger.Txn) error {
	return traverse(makePrefix(codeCertificate), makePrefix(codeCertificate, from), func(_ []byte, val []byte) error {
		cert, err := simplex.DecodeCertificate(val)
		if err != nil {
			return fmt.Errorf("could not decode stored certificate: %w", err)
		}
		return handle(cert)
	})
}
