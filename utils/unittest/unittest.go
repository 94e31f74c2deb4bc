package unittest

import (
	"os"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/require"
)

func TempDir(t testing.TB) string {
	dir, err := os.MkdirTemp("", "simplex-testing-temp-")
	require.NoError(t, err)
	return dir
}

func RunWithTempDir(t testing.TB, f func(string)) {
	dbDir := TempDir(t)
	defer os.RemoveAll(dbDir)
	f(dbDir)
}

func BadgerDB(t testing.TB, dir string) *badger.DB {
	opts := badger.
		DefaultOptions(dir).
		WithKeepL0InMemory(true).
		WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	return db
}

func RunWithBadgerDB(t testing.TB, f func(*badger.DB)) {
	RunWithTempDir(t, func(dir string) {
		db := BadgerDB(t, dir)
		defer db.Close()
		f(db)
	})
}

// RequireCloseBefore requires that the given channel closes before the
// duration expires.
func RequireCloseBefore(t testing.TB, c <-chan struct{}, duration time.Duration, message string) {
	select {
	case <-c:
	case <-time.After(duration):
		require.Fail(t, "could not close channel before timeout: "+message)
	}
}

// RequireReceiveBefore requires that the given channel delivers before
// the duration expires, and returns what was delivered.
func RequireReceiveBefore[T any](t testing.TB, c <-chan T, duration time.Duration, message string) T {
	select {
	case v := <-c:
		return v
	case <-time.After(duration):
		require.Fail(t, "could not receive from channel before timeout: "+message)
		var zero T
		return zero
	}
}
