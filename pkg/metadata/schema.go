/*
Package metadata exposes the parts of the node's published schema the client
needs: constants, storage entry layouts and call indices. Metadata decoding
itself is done by go-substrate-rpc-client, this package adapts it to the
Schema interface and computes storage keys.
*/
package metadata

import (
	"errors"
	"fmt"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	lru "github.com/hashicorp/golang-lru"
)

// ErrNotFound is returned when the schema doesn't contain the requested item.
var ErrNotFound = errors.New("not found in metadata")

// Schema describes a node runtime.
type Schema interface {
	// Constant returns SCALE-encoded value of the pallet constant.
	Constant(module, name string) ([]byte, error)
	// Storage returns storage entry layout.
	Storage(module, item string) (*StorageEntry, error)
	// CallIndex returns pallet and call indices of the dispatchable.
	CallIndex(module, call string) (types.CallIndex, error)
	// Pallets returns names of all pallets.
	Pallets() []string
}

// StorageEntry is the layout of a storage item.
type StorageEntry struct {
	Module string
	Item   string
	// Hashers are key hashers of a map, empty for plain values.
	Hashers []Hasher
	// Optional is true for OptionQuery items, absent values have no
	// default then.
	Optional bool
	// Fallback is SCALE-encoded default value for ValueQuery items.
	Fallback []byte
}

// prefixCache keeps twox128(module)+twox128(item) prefixes, they're computed
// for every key and don't depend on the runtime.
var prefixCache, _ = lru.New(1024) // Never errors for positive size.

// IsMap returns true for map items.
func (e *StorageEntry) IsMap() bool {
	return len(e.Hashers) > 0
}

// Prefix returns storage prefix of the item, all of its keys start with it.
func (e *StorageEntry) Prefix() []byte {
	id := e.Module + "." + e.Item
	if p, ok := prefixCache.Get(id); ok {
		return append([]byte(nil), p.([]byte)...)
	}
	p := append(Twox128.Hash([]byte(e.Module)), Twox128.Hash([]byte(e.Item))...)
	prefixCache.Add(id, p)
	return append([]byte(nil), p...)
}

// Key returns full storage key for the given SCALE-encoded map arguments.
func (e *StorageEntry) Key(args ...[]byte) ([]byte, error) {
	if len(args) != len(e.Hashers) {
		return nil, fmt.Errorf("%s.%s expects %d key(s), got %d", e.Module, e.Item, len(e.Hashers), len(args))
	}
	key := e.Prefix()
	for i, h := range e.Hashers {
		key = append(key, h.Hash(args[i])...)
	}
	return key, nil
}

// Default returns the value to decode when nothing is stored under a key,
// nil if the item has no default.
func (e *StorageEntry) Default() []byte {
	if e.Optional {
		return nil
	}
	return e.Fallback
}
