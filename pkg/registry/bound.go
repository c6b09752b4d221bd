package registry

import (
	"errors"
	"fmt"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/nspcc-dev/substrate-go/pkg/metadata"
	"github.com/nspcc-dev/substrate-go/pkg/subrpc"
	"github.com/nspcc-dev/substrate-go/pkg/subrpc/result"
	"go.uber.org/zap"
)

type (
	// Bound is a registry validated against a particular node runtime. It's
	// immutable and safe for concurrent use.
	Bound struct {
		schema    metadata.Schema
		constants map[string]*BoundConstant
		storage   map[string]*BoundStorage
		calls     map[string]*BoundCall
		runtime   map[string]*BoundRuntimeCall
	}

	// BoundConstant is a constant with its SCALE-encoded value.
	BoundConstant struct {
		Constant
		Raw []byte
	}

	// BoundStorage is a storage item with its layout.
	BoundStorage struct {
		Storage
		Entry *metadata.StorageEntry
	}

	// BoundCall is a call with its index.
	BoundCall struct {
		Call
		Index types.CallIndex
	}

	// BoundRuntimeCall is a runtime call implemented by the node.
	BoundRuntimeCall struct {
		RuntimeCall
	}
)

// Bind checks every registered item against the schema and the runtime
// version. Items the node doesn't publish and items with mismatching layout
// are logged and skipped.
func (r *Registry) Bind(schema metadata.Schema, rv *result.RuntimeVersion, log *zap.Logger) *Bound {
	if log == nil {
		log = zap.NewNop()
	}
	b := &Bound{
		schema:    schema,
		constants: make(map[string]*BoundConstant, len(r.constants)),
		storage:   make(map[string]*BoundStorage, len(r.storage)),
		calls:     make(map[string]*BoundCall, len(r.calls)),
		runtime:   make(map[string]*BoundRuntimeCall, len(r.runtime)),
	}
	skip := func(kind, name string, err error) {
		log.Debug("registry item is not available", zap.String("kind", kind), zap.String("name", name), zap.Error(err))
	}
	for id, c := range r.constants {
		raw, err := schema.Constant(c.Module, c.Name)
		if err != nil {
			skip("constant", c.Module+"."+c.Name, err)
			continue
		}
		b.constants[id] = &BoundConstant{Constant: c, Raw: raw}
	}
	for id, s := range r.storage {
		e, err := schema.Storage(s.Module, s.Item)
		if err != nil {
			skip("storage", s.Module+"."+s.Item, err)
			continue
		}
		if len(e.Hashers) != len(s.Keys) {
			log.Warn("storage layout mismatch",
				zap.String("name", s.Module+"."+s.Item),
				zap.Int("node keys", len(e.Hashers)),
				zap.Int("known keys", len(s.Keys)))
			continue
		}
		b.storage[id] = &BoundStorage{Storage: s, Entry: e}
	}
	for id, c := range r.calls {
		idx, err := schema.CallIndex(c.Module, c.Name)
		if err != nil {
			skip("call", c.Module+"."+c.Name, err)
			continue
		}
		b.calls[id] = &BoundCall{Call: c, Index: idx}
	}
	for id, c := range r.runtime {
		if rv == nil || !rv.HasAPI(APIID(c.API)) {
			skip("runtime call", c.ID(), errors.New("API is not implemented"))
			continue
		}
		b.runtime[id] = &BoundRuntimeCall{RuntimeCall: c}
	}
	log.Debug("registry bound",
		zap.Int("constants", len(b.constants)),
		zap.Int("storage", len(b.storage)),
		zap.Int("calls", len(b.calls)),
		zap.Int("runtime calls", len(b.runtime)))
	return b
}

// Schema returns the schema the registry is bound to.
func (b *Bound) Schema() metadata.Schema {
	return b.schema
}

func unknown(kind, module, item string) error {
	return fmt.Errorf("%w: unknown %s %s.%s", subrpc.ErrInvalidArgument, kind, module, item)
}

// Constant returns a constant by name.
func (b *Bound) Constant(module, name string) (*BoundConstant, error) {
	c, ok := b.constants[pairID(module, name)]
	if !ok {
		return nil, unknown("constant", module, name)
	}
	return c, nil
}

// Storage returns a storage item by name.
func (b *Bound) Storage(module, item string) (*BoundStorage, error) {
	s, ok := b.storage[pairID(module, item)]
	if !ok {
		return nil, unknown("storage item", module, item)
	}
	return s, nil
}

// Call returns a call by name.
func (b *Bound) Call(module, name string) (*BoundCall, error) {
	c, ok := b.calls[pairID(module, name)]
	if !ok {
		return nil, unknown("call", module, name)
	}
	return c, nil
}

// RuntimeCall returns a runtime call by API and method names.
func (b *Bound) RuntimeCall(api, method string) (*BoundRuntimeCall, error) {
	c, ok := b.runtime[pairID(api, method)]
	if !ok {
		return nil, unknown("runtime call", api, method)
	}
	return c, nil
}

// Decode decodes constant value.
func (c *BoundConstant) Decode() (any, error) {
	v, _, err := c.Value.Decode(c.Raw)
	return v, err
}

// Key returns storage key for the given map arguments.
func (s *BoundStorage) Key(args ...any) ([]byte, error) {
	if len(args) != len(s.Keys) {
		return nil, fmt.Errorf("%w: %s.%s expects %d argument(s), got %d",
			subrpc.ErrInvalidArgument, s.Module, s.Item, len(s.Keys), len(args))
	}
	encoded := make([][]byte, len(args))
	for i := range args {
		b, err := s.Keys[i].Encode(args[i])
		if err != nil {
			return nil, fmt.Errorf("%s.%s key %d: %w", s.Module, s.Item, i, err)
		}
		encoded[i] = b
	}
	return s.Entry.Key(encoded...)
}

// Args recovers map arguments from the full storage key. Arguments hashed with
// non-concat hashers can't be recovered and are returned as nil.
func (s *BoundStorage) Args(key []byte) ([]any, error) {
	prefix := s.Entry.Prefix()
	if len(key) < len(prefix) || string(key[:len(prefix)]) != string(prefix) {
		return nil, fmt.Errorf("key doesn't belong to %s.%s", s.Module, s.Item)
	}
	var (
		rest = key[len(prefix):]
		args = make([]any, len(s.Keys))
	)
	for i, h := range s.Entry.Hashers {
		if len(rest) < h.HashLen() {
			return nil, fmt.Errorf("key %d of %s.%s is too short", i, s.Module, s.Item)
		}
		rest = rest[h.HashLen():]
		if !h.IsConcat() {
			if i != len(s.Entry.Hashers)-1 {
				// Can't find where the next one starts.
				return args, nil
			}
			break
		}
		v, n, err := s.Keys[i].Decode(rest)
		if err != nil {
			return nil, fmt.Errorf("key %d of %s.%s: %w", i, s.Module, s.Item, err)
		}
		args[i] = v
		rest = rest[n:]
	}
	return args, nil
}

// DecodeValue decodes stored value. Absent values (nil raw) decode to the
// item default or to the zero value of its type, they're not an error.
func (s *BoundStorage) DecodeValue(raw []byte) (any, error) {
	if raw == nil {
		raw = s.Entry.Default()
		if len(raw) == 0 {
			return s.Value.Zero(), nil
		}
	}
	v, _, err := s.Value.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", s.Module, s.Item, err)
	}
	return v, nil
}

// Build encodes arguments into a call.
func (c *BoundCall) Build(args ...any) (types.Call, error) {
	data, err := encodeParams(c.String(), c.Params, args)
	if err != nil {
		return types.Call{}, err
	}
	return types.Call{CallIndex: c.Index, Args: types.Args(data)}, nil
}

// Encode encodes runtime call arguments.
func (c *BoundRuntimeCall) Encode(args ...any) ([]byte, error) {
	return encodeParams(c.ID(), c.Params, args)
}

func encodeParams(name string, params []Param, args []any) ([]byte, error) {
	if len(args) != len(params) {
		return nil, fmt.Errorf("%w: %s expects %d argument(s), got %d",
			subrpc.ErrInvalidArgument, name, len(params), len(args))
	}
	var data []byte
	for i, p := range params {
		b, err := p.Codec.Encode(args[i])
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", name, p.Name, err)
		}
		data = append(data, b...)
	}
	return data, nil
}

// Decode decodes runtime call result.
func (c *BoundRuntimeCall) Decode(raw []byte) (any, error) {
	v, _, err := c.Result.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.ID(), err)
	}
	return v, nil
}
