package result

import (
	"encoding/json"
	"fmt"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
)

type (
	// StorageChangeSet is a set of storage changes at some block. It's
	// returned by state_queryStorageAt and pushed by state_subscribeStorage.
	StorageChangeSet struct {
		Block   types.Hash
		Changes []StorageChange
	}

	// StorageChange is a single key-value pair. Data is nil for keys that
	// have no value stored.
	StorageChange struct {
		Key  []byte
		Data []byte
	}

	storageChangeSetAux struct {
		Block   string      `json:"block"`
		Changes [][]*string `json:"changes"`
	}
)

// UnmarshalJSON implements the json.Unmarshaler interface.
func (s *StorageChangeSet) UnmarshalJSON(data []byte) error {
	aux := new(storageChangeSetAux)
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	if aux.Block != "" {
		h, err := types.NewHashFromHexString(aux.Block)
		if err != nil {
			return fmt.Errorf("block hash: %w", err)
		}
		s.Block = h
	}
	s.Changes = make([]StorageChange, 0, len(aux.Changes))
	for i, pair := range aux.Changes {
		if len(pair) != 2 || pair[0] == nil {
			return fmt.Errorf("change #%d: malformed pair", i)
		}
		key, err := codec.HexDecodeString(*pair[0])
		if err != nil {
			return fmt.Errorf("change #%d key: %w", i, err)
		}
		var val []byte
		if pair[1] != nil {
			val, err = codec.HexDecodeString(*pair[1])
			if err != nil {
				return fmt.Errorf("change #%d value: %w", i, err)
			}
		}
		s.Changes = append(s.Changes, StorageChange{Key: key, Data: val})
	}
	return nil
}

// MarshalJSON implements the json.Marshaler interface.
func (s StorageChangeSet) MarshalJSON() ([]byte, error) {
	aux := storageChangeSetAux{
		Block:   s.Block.Hex(),
		Changes: make([][]*string, len(s.Changes)),
	}
	for i, c := range s.Changes {
		k := codec.HexEncodeToString(c.Key)
		pair := []*string{&k, nil}
		if c.Data != nil {
			v := codec.HexEncodeToString(c.Data)
			pair[1] = &v
		}
		aux.Changes[i] = pair
	}
	return json.Marshal(aux)
}

// Get returns data stored for the given key and whether the key is present
// in the set at all.
func (s *StorageChangeSet) Get(key []byte) ([]byte, bool) {
	for _, c := range s.Changes {
		if string(c.Key) == string(key) {
			return c.Data, true
		}
	}
	return nil, false
}
