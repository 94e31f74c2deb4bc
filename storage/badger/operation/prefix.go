package operation

import (
	"encoding/binary"
	"fmt"

	"github.com/simplexbft/simplex-go/model/simplex"
)

// Key prefix codes. Every code owns one keyspace; keys within a
// keyspace are ordered by slot, then content hash, so prefix scans
// yield entries in slot order.
const (
	codeCandidate   = 10
	codeCertificate = 11
)

// makePrefix assembles a storage key from a prefix code and a sequence
// of key parts.
func makePrefix(code byte, keys ...interface{}) []byte {
	prefix := make([]byte, 1)
	prefix[0] = code
	for _, key := range keys {
		prefix = append(prefix, b(key)...)
	}
	return prefix
}

func b(v interface{}) []byte {
	switch i := v.(type) {
	case uint64:
		val := make([]byte, 8)
		binary.BigEndian.PutUint64(val, i)
		return val
	case simplex.Slot:
		return b(uint64(i))
	case simplex.Identifier:
		return i[:]
	case simplex.CandidateID:
		return append(b(i.Slot), b(i.Hash)...)
	case []byte:
		return i
	default:
		panic(fmt.Sprintf("unsupported type to convert (%T)", v))
	}
}
