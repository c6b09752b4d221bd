package actor

import (
	"context"
	"errors"
	"fmt"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/nspcc-dev/substrate-go/pkg/registry"
	"github.com/nspcc-dev/substrate-go/pkg/rpcclient"
	"github.com/nspcc-dev/substrate-go/pkg/subrpc"
	"go.uber.org/atomic"
)

var (
	// ErrContextDone is returned when Waiter context has been done in the middle
	// of awaiting process and no result was received yet.
	ErrContextDone = errors.New("waiter context done")
	// ErrAwaitingNotSupported is returned from Wait method if Waiter instance
	// doesn't support awaiting.
	ErrAwaitingNotSupported = errors.New("awaiting not supported")
	// ErrNotSubmitted is returned when waiting for a command that wasn't
	// accepted by the node.
	ErrNotSubmitted = errors.New("command is not submitted")
)

type (
	// Waiter is an interface providing inclusion awaiting functionality to
	// Actor.
	Waiter interface {
		// Wait waits until the signed command is included into a block. It
		// can be used as a wrapper for Send and accepts the same SignedCommand
		// and the error returned by Send. It returns the number of the first
		// block announced with the command applied. Inclusion is detected by
		// the signer's nonce, so any other command with the same nonce counts
		// as well.
		Wait(ctx context.Context, s *SignedCommand, err error) (uint32, error)
	}

	// RPCEventWaiter is an interface that enables inclusion awaiting
	// functionality for Actor instance based on new head notifications.
	RPCEventWaiter interface {
		Registry() (*registry.Bound, error)
		GetStorage(key []byte, block *types.Hash) ([]byte, error)
		SubscribeNewHeads(cb func(*types.Header)) (*rpcclient.Subscription, error)
	}
)

// NullWaiter is a Waiter stub that doesn't support awaiting functionality.
type NullWaiter struct{}

// EventWaiter is a websocket-based Waiter.
type EventWaiter struct {
	ws RPCEventWaiter
}

// newWaiter creates Waiter instance. It's websocket-based if possible,
// otherwise Waiter stub is returned.
func newWaiter(ra RPCActor) Waiter {
	if eventW, ok := ra.(RPCEventWaiter); ok {
		return NewEventWaiter(eventW)
	}
	return NewNullWaiter()
}

// NewNullWaiter creates an instance of Waiter stub.
func NewNullWaiter() NullWaiter {
	return NullWaiter{}
}

// Wait implements Waiter interface.
func (NullWaiter) Wait(ctx context.Context, s *SignedCommand, err error) (uint32, error) {
	if err != nil {
		return 0, err
	}
	return 0, ErrAwaitingNotSupported
}

// NewEventWaiter creates an instance of Waiter using head subscriptions.
func NewEventWaiter(waiter RPCEventWaiter) *EventWaiter {
	return &EventWaiter{ws: waiter}
}

// Wait implements Waiter interface.
func (w *EventWaiter) Wait(ctx context.Context, s *SignedCommand, err error) (uint32, error) {
	if err != nil {
		return 0, err
	}
	if s == nil {
		return 0, fmt.Errorf("%w: nil command", subrpc.ErrInvalidArgument)
	}
	if _, ok := s.Submitted(); !ok {
		return 0, ErrNotSubmitted
	}
	reg, err := w.ws.Registry()
	if err != nil {
		return 0, err
	}
	accounts, err := reg.Storage("System", "Account")
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrAwaitingNotSupported, err)
	}
	key, err := accounts.Key(s.Signer)
	if err != nil {
		return 0, err
	}

	var (
		latest = atomic.NewPointer[types.Header](nil)
		wake   = make(chan struct{}, 1)
	)
	sub, err := w.ws.SubscribeNewHeads(func(h *types.Header) {
		latest.Store(h)
		select {
		case wake <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return 0, fmt.Errorf("failed to subscribe for new heads: %w", err)
	}
	defer func() { _ = sub.Cancel() }()

	for {
		select {
		case <-ctx.Done():
			return 0, fmt.Errorf("%w: %w", ErrContextDone, ctx.Err())
		case <-sub.Done():
			return 0, fmt.Errorf("%w: head subscription closed", subrpc.ErrConnection)
		case <-wake:
			h := latest.Load()
			raw, err := w.ws.GetStorage(key, nil)
			if err != nil {
				return 0, err
			}
			v, err := accounts.DecodeValue(raw)
			if err != nil {
				return 0, err
			}
			info, ok := v.(registry.AccountInfo)
			if !ok {
				return 0, fmt.Errorf("%w: unexpected account type %T", ErrAwaitingNotSupported, v)
			}
			if uint32(info.Nonce) > s.Nonce {
				return uint32(h.Number), nil
			}
		}
	}
}
