package metadata

import (
	"fmt"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
)

// Metadata is a Schema backed by runtime metadata V14 returned by
// state_getMetadata.
type Metadata struct {
	raw *types.Metadata
}

// Decode decodes hex-encoded metadata as returned by state_getMetadata.
func Decode(hexMeta string) (*Metadata, error) {
	var m types.Metadata
	if err := codec.DecodeFromHex(hexMeta, &m); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if m.Version != 14 {
		return nil, fmt.Errorf("unsupported metadata version %d", m.Version)
	}
	return &Metadata{raw: &m}, nil
}

// Decoder returns a Schema for the given state_getMetadata result.
func Decoder(hexMeta string) (Schema, error) {
	return Decode(hexMeta)
}

// Raw returns decoded go-substrate-rpc-client metadata.
func (m *Metadata) Raw() *types.Metadata {
	return m.raw
}

func (m *Metadata) pallet(module string) (*types.PalletMetadataV14, error) {
	for i := range m.raw.AsMetadataV14.Pallets {
		if string(m.raw.AsMetadataV14.Pallets[i].Name) == module {
			return &m.raw.AsMetadataV14.Pallets[i], nil
		}
	}
	return nil, fmt.Errorf("pallet %s: %w", module, ErrNotFound)
}

// Constant implements the Schema interface.
func (m *Metadata) Constant(module, name string) ([]byte, error) {
	p, err := m.pallet(module)
	if err != nil {
		return nil, err
	}
	for _, c := range p.Constants {
		if string(c.Name) == name {
			return []byte(c.Value), nil
		}
	}
	return nil, fmt.Errorf("constant %s.%s: %w", module, name, ErrNotFound)
}

// Storage implements the Schema interface.
func (m *Metadata) Storage(module, item string) (*StorageEntry, error) {
	p, err := m.pallet(module)
	if err != nil {
		return nil, err
	}
	if !p.HasStorage {
		return nil, fmt.Errorf("storage %s.%s: %w", module, item, ErrNotFound)
	}
	for _, s := range p.Storage.Items {
		if string(s.Name) != item {
			continue
		}
		e := &StorageEntry{
			Module:   string(p.Storage.Prefix),
			Item:     item,
			Optional: s.Modifier.IsOptional,
			Fallback: []byte(s.Fallback),
		}
		if s.Type.IsMap {
			for _, h := range s.Type.AsMap.Hashers {
				hasher, err := hasherFromV10(h)
				if err != nil {
					return nil, fmt.Errorf("storage %s.%s: %w", module, item, err)
				}
				e.Hashers = append(e.Hashers, hasher)
			}
		}
		return e, nil
	}
	return nil, fmt.Errorf("storage %s.%s: %w", module, item, ErrNotFound)
}

// CallIndex implements the Schema interface.
func (m *Metadata) CallIndex(module, call string) (types.CallIndex, error) {
	if _, err := m.pallet(module); err != nil {
		return types.CallIndex{}, err
	}
	idx, err := m.raw.FindCallIndex(module + "." + call)
	if err != nil {
		return types.CallIndex{}, fmt.Errorf("call %s.%s: %w (%w)", module, call, ErrNotFound, err)
	}
	return idx, nil
}

// Pallets implements the Schema interface.
func (m *Metadata) Pallets() []string {
	res := make([]string, 0, len(m.raw.AsMetadataV14.Pallets))
	for _, p := range m.raw.AsMetadataV14.Pallets {
		res = append(res, string(p.Name))
	}
	return res
}

func hasherFromV10(h types.StorageHasherV10) (Hasher, error) {
	switch {
	case h.IsBlake2_128:
		return Blake2_128, nil
	case h.IsBlake2_256:
		return Blake2_256, nil
	case h.IsBlake2_128Concat:
		return Blake2_128Concat, nil
	case h.IsTwox128:
		return Twox128, nil
	case h.IsTwox256:
		return Twox256, nil
	case h.IsTwox64Concat:
		return Twox64Concat, nil
	case h.IsIdentity:
		return Identity, nil
	}
	return 0, fmt.Errorf("unknown storage hasher")
}
