/*
Package query provides read-only access to node state: runtime constants,
storage items (single, batched and whole maps) and runtime API calls.

Every lookup goes through the registry bound by the RPC client at ready time,
so module and item names are checked and arguments are encoded before any
request is sent. Values are decoded into the registry types, absent storage
values are replaced with the item's default.
*/
package query

import (
	"fmt"
	"iter"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/nspcc-dev/substrate-go/pkg/human"
	"github.com/nspcc-dev/substrate-go/pkg/registry"
	"github.com/nspcc-dev/substrate-go/pkg/rpcclient"
	"github.com/nspcc-dev/substrate-go/pkg/subrpc"
	"github.com/nspcc-dev/substrate-go/pkg/subrpc/result"
	"go.uber.org/zap"
)

// RPCQuery is a set of RPC methods needed to query node state.
type RPCQuery interface {
	Registry() (*registry.Bound, error)
	PageSize() uint32
	GetBestBlockHash() (types.Hash, error)
	GetStorage(key []byte, block *types.Hash) ([]byte, error)
	QueryStorageAt(keys [][]byte, block *types.Hash) ([]result.StorageChangeSet, error)
	GetKeysPaged(prefix []byte, count uint32, startKey []byte, block *types.Hash) ([][]byte, error)
	StateCall(method string, data []byte, block *types.Hash) ([]byte, error)
	SubscribeStorage(keys [][]byte, cb func(*result.StorageChangeSet)) (*rpcclient.Subscription, error)
}

type (
	// Key identifies a storage value: module, item and map arguments (none
	// for plain values).
	Key struct {
		Module string
		Item   string
		Args   []any
	}

	// Result is a decoded query result. Value is never nil, absent storage
	// values are replaced with the item's default and Found is false for them.
	Result struct {
		Key        Key
		StorageKey []byte
		Raw        []byte
		Found      bool
		Value      any
	}
)

// Executor performs queries using the given RPC client. It's safe for
// concurrent use as long as the client is.
type Executor struct {
	client RPCQuery
	log    *zap.Logger
}

// NewKey is a convenience Key constructor.
func NewKey(module, item string, args ...any) Key {
	return Key{Module: module, Item: item, Args: args}
}

// String implements the fmt.Stringer interface.
func (k Key) String() string {
	if len(k.Args) == 0 {
		return k.Module + "." + k.Item
	}
	return fmt.Sprintf("%s.%s%v", k.Module, k.Item, k.Args)
}

// Human returns a human-readable representation of the value.
func (r Result) Human() string {
	return human.String(r.Value)
}

// New creates an Executor. Decoding failures in subscriptions are logged with
// the given logger, nil disables logging.
func New(client RPCQuery, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{client: client, log: log}
}

// GetConstant returns a runtime constant. It doesn't perform any I/O, the
// value is taken from the node schema fetched at connection time.
func (e *Executor) GetConstant(module, name string) (Result, error) {
	reg, err := e.client.Registry()
	if err != nil {
		return Result{}, err
	}
	c, err := reg.Constant(module, name)
	if err != nil {
		return Result{}, err
	}
	v, err := c.Decode()
	if err != nil {
		return Result{}, fmt.Errorf("failed to decode %s.%s: %w", module, name, err)
	}
	return Result{
		Key:   Key{Module: module, Item: name},
		Raw:   c.Raw,
		Found: true,
		Value: v,
	}, nil
}

// resolve finds the item and computes the storage key.
func (e *Executor) resolve(k Key) (*registry.BoundStorage, []byte, error) {
	reg, err := e.client.Registry()
	if err != nil {
		return nil, nil, err
	}
	s, err := reg.Storage(k.Module, k.Item)
	if err != nil {
		return nil, nil, err
	}
	sk, err := s.Key(k.Args...)
	if err != nil {
		return nil, nil, err
	}
	return s, sk, nil
}

func newResult(s *registry.BoundStorage, k Key, sk []byte, raw []byte) (Result, error) {
	v, err := s.DecodeValue(raw)
	if err != nil {
		return Result{}, fmt.Errorf("failed to decode %s: %w", k, err)
	}
	return Result{
		Key:        k,
		StorageKey: sk,
		Raw:        raw,
		Found:      raw != nil,
		Value:      v,
	}, nil
}

// GetSingle returns a single storage value. Absent values are not an error,
// the default one is returned.
func (e *Executor) GetSingle(k Key) (Result, error) {
	s, sk, err := e.resolve(k)
	if err != nil {
		return Result{}, err
	}
	raw, err := e.client.GetStorage(sk, nil)
	if err != nil {
		return Result{}, err
	}
	return newResult(s, k, sk, raw)
}

// GetMulti returns values for a number of keys using a single request. The
// result has the same length and order as keys. The batch either succeeds
// or fails as a whole.
func (e *Executor) GetMulti(keys []Key) ([]Result, error) {
	return e.batch(keys, nil)
}

// GetComposite is GetMulti for keys of different modules and items. It's
// mostly useful to get a consistent view of unrelated values, they're all
// fetched at the same block.
func (e *Executor) GetComposite(keys []Key) ([]Result, error) {
	if len(keys) == 0 {
		return []Result{}, nil
	}
	block, err := e.client.GetBestBlockHash()
	if err != nil {
		return nil, err
	}
	return e.batch(keys, &block)
}

func (e *Executor) batch(keys []Key, block *types.Hash) ([]Result, error) {
	if len(keys) == 0 {
		return []Result{}, nil
	}
	var (
		items = make([]*registry.BoundStorage, len(keys))
		sks   = make([][]byte, len(keys))
	)
	for i := range keys {
		s, sk, err := e.resolve(keys[i])
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		items[i], sks[i] = s, sk
	}
	sets, err := e.client.QueryStorageAt(sks, block)
	if err != nil {
		return nil, err
	}
	res := make([]Result, len(keys))
	for i := range keys {
		res[i], err = newResult(items[i], keys[i], sks[i], lookup(sets, sks[i]))
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

func lookup(sets []result.StorageChangeSet, key []byte) []byte {
	for i := len(sets) - 1; i >= 0; i-- {
		if data, ok := sets[i].Get(key); ok {
			return data
		}
	}
	return nil
}

// Entries returns all values stored in a map. Keys are fetched lazily page
// by page and every page of values is fetched with a single request, all at
// the block that was the best one when the iteration started. Map arguments
// are recovered from storage keys where hashers allow that. Each iteration
// starts afresh, the order is the one of storage keys. Iteration stops after
// the first error. Plain items are rejected with subrpc.ErrInvalidArgument.
func (e *Executor) Entries(module, item string) iter.Seq2[Result, error] {
	return func(yield func(Result, error) bool) {
		reg, err := e.client.Registry()
		if err != nil {
			yield(Result{}, err)
			return
		}
		s, err := reg.Storage(module, item)
		if err != nil {
			yield(Result{}, err)
			return
		}
		if !s.Entry.IsMap() {
			yield(Result{}, fmt.Errorf("%w: %s.%s is not a map", subrpc.ErrInvalidArgument, module, item))
			return
		}
		block, err := e.client.GetBestBlockHash()
		if err != nil {
			yield(Result{}, err)
			return
		}
		var (
			prefix = s.Entry.Prefix()
			count  = e.client.PageSize()
			start  []byte
		)
		for {
			page, err := e.client.GetKeysPaged(prefix, count, start, &block)
			if err != nil {
				yield(Result{}, err)
				return
			}
			if len(page) == 0 {
				return
			}
			sets, err := e.client.QueryStorageAt(page, &block)
			if err != nil {
				yield(Result{}, err)
				return
			}
			for _, sk := range page {
				args, err := s.Args(sk)
				if err != nil {
					yield(Result{}, err)
					return
				}
				r, err := newResult(s, Key{Module: module, Item: item, Args: args}, sk, lookup(sets, sk))
				if !yield(r, err) || err != nil {
					return
				}
			}
			if uint32(len(page)) < count {
				return
			}
			start = page[len(page)-1]
		}
	}
}

// Call invokes a runtime API method. Node errors are returned as
// *subrpc.Error. An empty result is the zero value of the result type with
// Found set to false, like for absent storage values.
func (e *Executor) Call(api, method string, args ...any) (Result, error) {
	reg, err := e.client.Registry()
	if err != nil {
		return Result{}, err
	}
	c, err := reg.RuntimeCall(api, method)
	if err != nil {
		return Result{}, err
	}
	data, err := c.Encode(args...)
	if err != nil {
		return Result{}, err
	}
	raw, err := e.client.StateCall(c.ID(), data, nil)
	if err != nil {
		return Result{}, err
	}
	r := Result{
		Key: Key{Module: api, Item: method, Args: args},
	}
	if len(raw) == 0 {
		r.Value = c.Result.Zero()
		return r, nil
	}
	v, err := c.Decode(raw)
	if err != nil {
		return Result{}, fmt.Errorf("failed to decode %s result: %w", c.ID(), err)
	}
	r.Raw, r.Found, r.Value = raw, true, v
	return r, nil
}

// Subscribe calls cb with the current value of the given key and then with
// every new one. Values that can't be decoded are logged and skipped.
func (e *Executor) Subscribe(k Key, cb func(Result)) (*rpcclient.Subscription, error) {
	s, sk, err := e.resolve(k)
	if err != nil {
		return nil, err
	}
	if cb == nil {
		return nil, fmt.Errorf("%w: nil callback", subrpc.ErrInvalidArgument)
	}
	return e.client.SubscribeStorage([][]byte{sk}, func(set *result.StorageChangeSet) {
		raw, ok := set.Get(sk)
		if !ok {
			return
		}
		r, err := newResult(s, k, sk, raw)
		if err != nil {
			e.log.Warn("failed to decode storage change", zap.Stringer("key", k), zap.Error(err))
			return
		}
		cb(r)
	})
}
