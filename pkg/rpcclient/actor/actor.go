/*
Package actor provides a way to change chain state via RPC client.

This layer builds on top of the basic RPC client and the registry bound by
it, it simplifies creating, signing and sending extrinsics to the network
(since that's the only way chain state is changed). Commands are built from
module and method names with regular Go values as arguments, signed by
keys.Identity and submitted via author_submitExtrinsic.
*/
package actor

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/nspcc-dev/substrate-go/pkg/crypto/keys"
	"github.com/nspcc-dev/substrate-go/pkg/registry"
	"github.com/nspcc-dev/substrate-go/pkg/subrpc"
	"github.com/nspcc-dev/substrate-go/pkg/subrpc/result"
	"go.uber.org/atomic"
	"golang.org/x/crypto/blake2b"
)

// RPCActor is an interface required from the RPC client to successfully
// create and send extrinsics.
type RPCActor interface {
	Registry() (*registry.Bound, error)
	RuntimeVersion() (result.RuntimeVersion, error)
	GenesisHash() (types.Hash, error)
	AccountNextIndex(address string) (uint32, error)
	SubmitExtrinsic(ext types.Extrinsic) (types.Hash, error)
}

// SignatureModifier is a callback that receives signature options before
// the extrinsic is signed. It can change the tip or the nonce taking full
// responsibility on the effects of these modifications (bad nonce renders
// extrinsic invalid or replaces another one in the pool).
type SignatureModifier func(o *types.SignatureOptions) error

// Options are used to create Actor with non-standard signature options.
type Options struct {
	// Tip is added to every extrinsic signed by Actor.
	Tip *big.Int
	// Modifier is applied to signature options of every extrinsic after
	// the tip and the nonce are set.
	Modifier SignatureModifier
}

// Actor keeps a connection to the RPC endpoint and allows to perform
// state-changing actions via extrinsics. Commands are created with Make*
// methods (that never perform I/O), signed with Sign (that fetches the
// next nonce of the signer) and submitted with Send. Send* methods combine
// all of these steps.
//
// Every extrinsic is immortal and bound to the genesis hash and the runtime
// version the RPC client was initialized with.
//
// Actor also provides a Waiter interface to wait until the command is
// included into a block. It's EventWaiter if the underlying RPCActor
// implements RPCEventWaiter and NullWaiter (returning
// ErrAwaitingNotSupported) otherwise.
type Actor struct {
	Waiter

	client RPCActor
	opts   Options
}

// Command is an unsigned call of some module method.
type Command struct {
	Module string
	Method string
	Call   types.Call
}

// SignedCommand is a command signed by some identity. It can only be sent
// once.
type SignedCommand struct {
	Command
	Signer    string
	Nonce     uint32
	Extrinsic types.Extrinsic

	sent      *atomic.Bool
	submitted *atomic.Pointer[types.Hash]
}

// New creates an Actor using default Options.
func New(ra RPCActor) *Actor {
	return NewTuned(ra, Options{})
}

// NewTuned creates an Actor that will use the specified Options for all
// extrinsics it signs.
func NewTuned(ra RPCActor, opts Options) *Actor {
	return &Actor{
		Waiter: newWaiter(ra),
		client: ra,
		opts:   opts,
	}
}

// String implements the fmt.Stringer interface.
func (c *Command) String() string {
	return c.Module + "." + c.Method
}

// Bytes returns SCALE-encoded extrinsic.
func (s *SignedCommand) Bytes() ([]byte, error) {
	return codec.Encode(s.Extrinsic)
}

// Hash returns extrinsic hash, it's the same hash the node returns on
// successful submission.
func (s *SignedCommand) Hash() (types.Hash, error) {
	b, err := s.Bytes()
	if err != nil {
		return types.Hash{}, err
	}
	return types.NewHash(blake2bSum(b)), nil
}

// Submitted returns the hash returned by the node and true if the command
// was accepted.
func (s *SignedCommand) Submitted() (types.Hash, bool) {
	h := s.submitted.Load()
	if h == nil {
		return types.Hash{}, false
	}
	return *h, true
}

func blake2bSum(b []byte) []byte {
	h := blake2b.Sum256(b)
	return h[:]
}

// Send submits signed command and returns its hash once the node accepts it
// into the pool. It doesn't wait for inclusion (see Waiter). Node refusal is
// returned as an error wrapping both subrpc.ErrRejected and *subrpc.Error
// with the node's reason. Send never retries, a command can't be sent twice.
func (a *Actor) Send(s *SignedCommand) (types.Hash, error) {
	if s == nil || s.sent == nil {
		return types.Hash{}, fmt.Errorf("%w: command is not signed", subrpc.ErrInvalidArgument)
	}
	if !s.sent.CompareAndSwap(false, true) {
		return types.Hash{}, fmt.Errorf("%w: %s is already sent", subrpc.ErrInvalidArgument, s)
	}
	h, err := a.client.SubmitExtrinsic(s.Extrinsic)
	if err != nil {
		var rpcErr *subrpc.Error
		if errors.As(err, &rpcErr) {
			return types.Hash{}, fmt.Errorf("%w: %w", subrpc.ErrRejected, rpcErr)
		}
		return types.Hash{}, err
	}
	s.submitted.Store(&h)
	return h, nil
}

// sendWrapper simplifies wrapping methods that create commands.
func (a *Actor) sendWrapper(s *SignedCommand, err error) (types.Hash, error) {
	if err != nil {
		return types.Hash{}, err
	}
	return a.Send(s)
}

// SignAndSend signs the command (see Sign) and sends it to the network.
func (a *Actor) SignAndSend(c *Command, id *keys.Identity) (types.Hash, error) {
	return a.sendWrapper(a.Sign(c, id))
}

// SendCall creates a command calling the given method of the given module
// (see MakeCall), signs it by id and sends it to the network.
func (a *Actor) SendCall(id *keys.Identity, module, method string, args ...any) (*SignedCommand, types.Hash, error) {
	c, err := a.MakeCall(module, method, args...)
	if err != nil {
		return nil, types.Hash{}, err
	}
	s, err := a.Sign(c, id)
	if err != nil {
		return nil, types.Hash{}, err
	}
	h, err := a.Send(s)
	return s, h, err
}
