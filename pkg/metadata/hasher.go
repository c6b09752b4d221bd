package metadata

import (
	"bytes"
	"fmt"

	"github.com/centrifuge/go-substrate-rpc-client/v4/xxhash"
	"golang.org/x/crypto/blake2b"
)

// Hasher is a storage key hasher used by map storage items.
type Hasher byte

// Storage hashers supported by FRAME.
const (
	Blake2_128 Hasher = iota
	Blake2_256
	Blake2_128Concat
	Twox128
	Twox256
	Twox64Concat
	Identity
)

var hasherNames = map[Hasher]string{
	Blake2_128:       "Blake2_128",
	Blake2_256:       "Blake2_256",
	Blake2_128Concat: "Blake2_128Concat",
	Twox128:          "Twox128",
	Twox256:          "Twox256",
	Twox64Concat:     "Twox64Concat",
	Identity:         "Identity",
}

// String implements the fmt.Stringer interface.
func (h Hasher) String() string {
	if s, ok := hasherNames[h]; ok {
		return s
	}
	return fmt.Sprintf("Hasher(%d)", byte(h))
}

// HashLen returns the length of the hash part of the output.
func (h Hasher) HashLen() int {
	switch h {
	case Blake2_128, Blake2_128Concat, Twox128:
		return 16
	case Blake2_256, Twox256:
		return 32
	case Twox64Concat:
		return 8
	default:
		return 0
	}
}

// IsConcat returns true for hashers that append the original data to the
// hash, so that it can be recovered from the key.
func (h Hasher) IsConcat() bool {
	return h == Blake2_128Concat || h == Twox64Concat || h == Identity
}

// Hash hashes the given data.
func (h Hasher) Hash(data []byte) []byte {
	switch h {
	case Blake2_128, Blake2_128Concat:
		d, _ := blake2b.New(16, nil) // Never fails for a valid size and no key.
		d.Write(data)
		return h.concat(d.Sum(nil), data)
	case Blake2_256:
		s := blake2b.Sum256(data)
		return s[:]
	case Twox128:
		d := xxhash.New128(nil)
		d.Write(data)
		return d.Sum(nil)
	case Twox256:
		d := xxhash.New256(nil)
		d.Write(data)
		return d.Sum(nil)
	case Twox64Concat:
		d := xxhash.New64Concat(nil)
		d.Write(data)
		return d.Sum(nil)
	default:
		return bytes.Clone(data)
	}
}

func (h Hasher) concat(hash, data []byte) []byte {
	if !h.IsConcat() {
		return hash
	}
	return append(hash, data...)
}
