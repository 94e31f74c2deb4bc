package operation

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/simplexbft/simplex-go/storage"
)

// insert stores the value under the provided key. It errors with
// storage.ErrAlreadyExists if the key already exists.
func insert(key []byte, val []byte) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {

		// check if the key already exists in the db
		_, err := tx.Get(key)
		if err == nil {
			return storage.ErrAlreadyExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("could not check key: %w", err)
		}

		err = tx.Set(key, val)
		if err != nil {
			return fmt.Errorf("could not store data: %w", err)
		}
		return nil
	}
}

// exists checks whether an entry with the given key exists.
func exists(key []byte, found *bool) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		_, err := tx.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			*found = false
			return nil
		}
		if err != nil {
			return fmt.Errorf("could not check existence: %w", err)
		}
		*found = true
		return nil
	}
}

// retrieve loads the value stored under the given key. It errors with
// storage.ErrNotFound if the key does not exist.
func retrieve(key []byte, val *[]byte) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		item, err := tx.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return fmt.Errorf("could not load data: %w", err)
		}
		*val, err = item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("could not load value: %w", err)
		}
		return nil
	}
}

// traverse iterates over all entries whose key carries the given
// prefix, starting at the given start key, in lexicographic key order.
// It calls handle for each entry and stops at the first error.
func traverse(prefix []byte, start []byte, handle func(key []byte, val []byte) error) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		if len(prefix) == 0 {
			return fmt.Errorf("prefix must not be empty")
		}

		options := badger.DefaultIteratorOptions
		options.Prefix = prefix

		it := tx.NewIterator(options)
		defer it.Close()

		for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				return handle(item.Key(), val)
			})
			if err != nil {
				return err
			}
		}
		return nil
	}
}
