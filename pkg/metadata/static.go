package metadata

import (
	"fmt"
	"slices"
	"strings"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
)

// Static is a Schema defined in code. It's useful for nodes that can't serve
// metadata and in tests.
type Static struct {
	// Constants are keyed by "Module.Name".
	Constants map[string][]byte
	// Entries are storage entry layouts.
	Entries []StorageEntry
	// Calls are keyed by "Module.call".
	Calls map[string]types.CallIndex
}

// Constant implements the Schema interface.
func (s *Static) Constant(module, name string) ([]byte, error) {
	v, ok := s.Constants[module+"."+name]
	if !ok {
		return nil, fmt.Errorf("constant %s.%s: %w", module, name, ErrNotFound)
	}
	return v, nil
}

// Storage implements the Schema interface.
func (s *Static) Storage(module, item string) (*StorageEntry, error) {
	for i := range s.Entries {
		if s.Entries[i].Module == module && s.Entries[i].Item == item {
			e := s.Entries[i]
			return &e, nil
		}
	}
	return nil, fmt.Errorf("storage %s.%s: %w", module, item, ErrNotFound)
}

// CallIndex implements the Schema interface.
func (s *Static) CallIndex(module, call string) (types.CallIndex, error) {
	idx, ok := s.Calls[module+"."+call]
	if !ok {
		return types.CallIndex{}, fmt.Errorf("call %s.%s: %w", module, call, ErrNotFound)
	}
	return idx, nil
}

// Pallets implements the Schema interface.
func (s *Static) Pallets() []string {
	var res []string
	add := func(id string) {
		mod, _, _ := strings.Cut(id, ".")
		if !slices.Contains(res, mod) {
			res = append(res, mod)
		}
	}
	for k := range s.Constants {
		add(k)
	}
	for _, e := range s.Entries {
		add(e.Module + ".")
	}
	for k := range s.Calls {
		add(k)
	}
	slices.Sort(res)
	return res
}
