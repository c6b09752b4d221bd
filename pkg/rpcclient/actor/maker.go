package actor

import (
	"fmt"
	"math/big"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/nspcc-dev/substrate-go/pkg/crypto/keys"
	"github.com/nspcc-dev/substrate-go/pkg/subrpc"
	"go.uber.org/atomic"
)

// MakeCall creates a command that calls the given method of the given module
// with the given arguments. It doesn't perform any I/O, unknown methods and
// bad arguments are reported with subrpc.ErrInvalidArgument.
func (a *Actor) MakeCall(module, method string, args ...any) (*Command, error) {
	reg, err := a.client.Registry()
	if err != nil {
		return nil, err
	}
	c, err := reg.Call(module, method)
	if err != nil {
		return nil, err
	}
	call, err := c.Build(args...)
	if err != nil {
		return nil, err
	}
	return &Command{
		Module: c.Module,
		Method: c.Name,
		Call:   call,
	}, nil
}

// MakeRawCall creates a command from already encoded call arguments. It's
// the caller's responsibility to provide correct ones, the node will reject
// the extrinsic otherwise.
func (a *Actor) MakeRawCall(module, method string, args []byte) (*Command, error) {
	reg, err := a.client.Registry()
	if err != nil {
		return nil, err
	}
	idx, err := reg.Schema().CallIndex(module, method)
	if err != nil {
		return nil, fmt.Errorf("%w: %s.%s: %w", subrpc.ErrInvalidArgument, module, method, err)
	}
	return &Command{
		Module: module,
		Method: method,
		Call:   types.Call{CallIndex: idx, Args: types.Args(args)},
	}, nil
}

// Sign signs the command by the given identity. It fetches the next nonce
// of the signer (taking the transaction pool into account), so two commands
// signed in a row without sending the first one will have the same nonce.
// Problems with the identity are reported as subrpc.ErrSigning.
func (a *Actor) Sign(c *Command, id *keys.Identity) (*SignedCommand, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil command", subrpc.ErrInvalidArgument)
	}
	if id == nil {
		return nil, fmt.Errorf("%w: no identity", subrpc.ErrSigning)
	}
	rv, err := a.client.RuntimeVersion()
	if err != nil {
		return nil, err
	}
	genesis, err := a.client.GenesisHash()
	if err != nil {
		return nil, err
	}
	nonce, err := a.client.AccountNextIndex(id.Address())
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce of %s: %w", id, err)
	}

	o := types.SignatureOptions{
		Era:                types.ExtrinsicEra{IsImmortalEra: true},
		Nonce:              types.NewUCompactFromUInt(uint64(nonce)),
		Tip:                types.NewUCompactFromUInt(0),
		SpecVersion:        types.U32(rv.SpecVersion),
		TransactionVersion: types.U32(rv.TransactionVersion),
		GenesisHash:        genesis,
		BlockHash:          genesis,
	}
	if a.opts.Tip != nil {
		o.Tip = types.NewUCompact(a.opts.Tip)
	}
	if a.opts.Modifier != nil {
		if err := a.opts.Modifier(&o); err != nil {
			return nil, err
		}
	}

	nonce = uint32((*big.Int)(&o.Nonce).Uint64())

	ext := types.NewExtrinsic(c.Call)
	if err := ext.Sign(id.KeyringPair(), o); err != nil {
		return nil, fmt.Errorf("%w: %s by %s: %w", subrpc.ErrSigning, c, id, err)
	}
	return &SignedCommand{
		Command:   *c,
		Signer:    id.Address(),
		Nonce:     nonce,
		Extrinsic: ext,
		sent:      atomic.NewBool(false),
		submitted: atomic.NewPointer[types.Hash](nil),
	}, nil
}
