/*
Package registry maps (module, item) pairs to typed constant, storage, call and
runtime call descriptions. A Registry is bound against the node schema when the
client becomes ready, producing a Bound registry that contains only the pairs
the node actually publishes. Lookups of anything else fail with
subrpc.ErrInvalidArgument before any I/O happens.
*/
package registry

import (
	"encoding/hex"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/crypto/blake2b"
)

type (
	// Param is a named call parameter.
	Param struct {
		Name  string
		Codec Codec
	}

	// Constant describes a pallet constant.
	Constant struct {
		Module string
		Name   string
		Value  Codec
	}

	// Storage describes a storage item. Keys are codecs of map keys, empty
	// for plain values.
	Storage struct {
		Module string
		Item   string
		Keys   []Codec
		Value  Codec
	}

	// Call describes a dispatchable call.
	Call struct {
		Module string
		Name   string
		Params []Param
	}

	// RuntimeCall describes a runtime API method invoked via state_call.
	RuntimeCall struct {
		API    string
		Method string
		Params []Param
		Result Codec
	}

	// Registry is a set of known items. It's not safe for concurrent
	// modification, fill it before creating clients.
	Registry struct {
		constants map[string]Constant
		storage   map[string]Storage
		calls     map[string]Call
		runtime   map[string]RuntimeCall
	}
)

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		constants: make(map[string]Constant),
		storage:   make(map[string]Storage),
		calls:     make(map[string]Call),
		runtime:   make(map[string]RuntimeCall),
	}
}

// Normalize converts metadata (transfer_keep_alive, TemplateModule) and
// polkadot.js (transferKeepAlive, templateModule) spellings to the same form.
func Normalize(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", ""))
}

func pairID(module, item string) string {
	return Normalize(module) + "." + Normalize(item)
}

// AddConstant registers a constant replacing the previous one with the same name.
func (r *Registry) AddConstant(c Constant) {
	r.constants[pairID(c.Module, c.Name)] = c
}

// AddStorage registers a storage item.
func (r *Registry) AddStorage(s Storage) {
	r.storage[pairID(s.Module, s.Item)] = s
}

// AddCall registers a dispatchable call.
func (r *Registry) AddCall(c Call) {
	r.calls[pairID(c.Module, c.Name)] = c
}

// AddRuntimeCall registers a runtime API method.
func (r *Registry) AddRuntimeCall(c RuntimeCall) {
	r.runtime[pairID(c.API, c.Method)] = c
}

// Copy returns an independent copy of the registry, it's useful to extend
// the Default one.
func (r *Registry) Copy() *Registry {
	c := New()
	for k, v := range r.constants {
		c.constants[k] = v
	}
	for k, v := range r.storage {
		c.storage[k] = v
	}
	for k, v := range r.calls {
		c.calls[k] = v
	}
	for k, v := range r.runtime {
		c.runtime[k] = v
	}
	return c
}

// Names returns sorted "Module.item" names of all registered items.
func (r *Registry) Names() []string {
	var res []string
	for _, c := range r.constants {
		res = append(res, c.Module+"."+c.Name)
	}
	for _, s := range r.storage {
		res = append(res, s.Module+"."+s.Item)
	}
	for _, c := range r.calls {
		res = append(res, c.Module+"."+c.Name)
	}
	for _, c := range r.runtime {
		res = append(res, c.API+"."+c.Method)
	}
	slices.Sort(res)
	return res
}

// ID returns the method name used by state_call.
func (c RuntimeCall) ID() string {
	return c.API + "_" + c.Method
}

// APIID returns runtime API identifier as listed in runtime version, it's
// blake2b-64 of the API name.
func APIID(api string) string {
	h, _ := blake2b.New(8, nil) // Never fails for a valid size and no key.
	h.Write([]byte(api))
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

func (c Call) String() string {
	return fmt.Sprintf("%s.%s", c.Module, c.Name)
}
