package simplex

import (
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/sha3"
)

// Identifier is a 32-byte cryptographic digest used to identify
// candidates, sessions and other consensus entities by content.
type Identifier [32]byte

// ZeroID is the lowest value in the 32-byte ID space.
var ZeroID = Identifier{}

// canonical encoding mode used for fingerprinting; CBOR core
// deterministic encoding guarantees a unique byte representation
// for a given value.
var fingerprintMode cbor.EncMode

func init() {
	var err error
	fingerprintMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("could not init deterministic cbor encoder: %s", err))
	}
}

// MakeID hashes the canonical encoding of the given entity and returns
// it as an Identifier. Two entities with equal canonical encodings are
// guaranteed to receive the same ID.
func MakeID(entity interface{}) Identifier {
	data, err := fingerprintMode.Marshal(entity)
	if err != nil {
		panic(fmt.Sprintf("could not fingerprint entity: %s", err))
	}
	return HashToID(data)
}

// HashToID returns the SHA3-256 digest of the given data as an Identifier.
func HashToID(data []byte) Identifier {
	var id Identifier
	h := sha3.Sum256(data)
	copy(id[:], h[:])
	return id
}

// HexStringToIdentifier converts a hex string to an Identifier. Returns
// an error if the hex string is malformed or of the wrong length.
func HexStringToIdentifier(hexString string) (Identifier, error) {
	var id Identifier
	bz, err := hex.DecodeString(hexString)
	if err != nil {
		return id, fmt.Errorf("could not decode hex string: %w", err)
	}
	if len(bz) != len(id) {
		return id, fmt.Errorf("malformed input, expected %d bytes, got %d", len(id), len(bz))
	}
	copy(id[:], bz)
	return id, nil
}

func (id Identifier) String() string {
	return hex.EncodeToString(id[:])
}

// MarshalText implements encoding.TextMarshaler, so identifiers render
// as hex in logs and JSON output.
func (id Identifier) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}
