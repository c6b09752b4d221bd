package rpcclient

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/google/uuid"
	"github.com/nspcc-dev/substrate-go/pkg/subrpc"
	"github.com/nspcc-dev/substrate-go/pkg/subrpc/result"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Subscription is an active node subscription. Its callback is invoked on the
// client dispatcher goroutine, never concurrently with other callbacks of the
// same client, in the order notifications are received. A Subscription never
// outlives its Client.
type Subscription struct {
	id          uuid.UUID
	client      *Client
	serverID    subrpc.SubscriptionID
	unsubscribe string
	handler     func(json.RawMessage)

	// lock is held while the callback runs.
	lock      sync.Mutex
	cancelled *atomic.Bool
	done      chan struct{}
	doneOnce  sync.Once
}

// ID returns the client-side subscription identifier.
func (s *Subscription) ID() string {
	return s.id.String()
}

// ServerID returns the node-assigned subscription identifier.
func (s *Subscription) ServerID() subrpc.SubscriptionID {
	return s.serverID
}

// Done returns a channel that's closed when the subscription is cancelled or
// its client is closed.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Cancel deregisters the subscription. No callback starts after Cancel
// returns and a callback running in another goroutine is waited for. It can
// be called multiple times and from any callback, subsequent calls are
// no-op. The returned error is the result of the unsubscription request,
// local deregistration never fails.
func (s *Subscription) Cancel() error {
	if !s.cancelled.CompareAndSwap(false, true) {
		return nil
	}
	if !s.client.inCallback() {
		// Wait for the callback if it's running right now.
		s.lock.Lock()
		s.lock.Unlock() //nolint:staticcheck // Empty critical section is intended.
	}
	c := s.client
	c.subsLock.Lock()
	_, registered := c.subs[s.serverID]
	delete(c.subs, s.serverID)
	c.pending.Remove(s.serverID)
	c.subsLock.Unlock()
	s.closeDone()
	if registered {
		activeSubscriptions.Dec()
	}
	if !registered || c.State() != Ready {
		return nil
	}
	var ok bool
	if err := c.performRequest(s.unsubscribe, []any{s.serverID}, &ok); err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	return nil
}

func (s *Subscription) closeDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

// terminate cancels subscription locally without unsubscription request.
func (s *Subscription) terminate() {
	s.cancelled.Store(true)
	s.closeDone()
}

func (s *Subscription) deliver(data json.RawMessage) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.cancelled.Load() {
		return
	}
	s.handler(data)
}

func (c *Client) subscribe(method, unsubscribe string, params []any, handler func(json.RawMessage)) (*Subscription, error) {
	if err := c.checkReady(); err != nil {
		return nil, err
	}
	var id subrpc.SubscriptionID
	if err := c.performRequest(method, params, &id); err != nil {
		return nil, err
	}
	s := &Subscription{
		id:          uuid.New(),
		client:      c,
		serverID:    id,
		unsubscribe: unsubscribe,
		handler:     handler,
		cancelled:   atomic.NewBool(false),
		done:        make(chan struct{}),
	}
	c.subsLock.Lock()
	defer c.subsLock.Unlock()
	select {
	case <-c.done:
		return nil, fmt.Errorf("%w: connection lost", subrpc.ErrConnection)
	default:
	}
	c.subs[id] = s
	if v, ok := c.pending.Get(id); ok {
		for _, data := range v.([]json.RawMessage) {
			c.events.push(event{sub: s, data: data})
		}
		c.pending.Remove(id)
	}
	activeSubscriptions.Inc()
	c.log.Debug("subscribed", zap.String("method", method), zap.String("id", s.ID()),
		zap.String("server id", string(id)))
	return s, nil
}

// SubscribeNewHeads subscribes to new best block headers
// (chain_subscribeNewHeads).
func (c *Client) SubscribeNewHeads(cb func(*types.Header)) (*Subscription, error) {
	return c.subscribe("chain_subscribeNewHeads", "chain_unsubscribeNewHeads", nil, c.headerHandler(cb))
}

// SubscribeFinalizedHeads subscribes to finalized block headers
// (chain_subscribeFinalizedHeads).
func (c *Client) SubscribeFinalizedHeads(cb func(*types.Header)) (*Subscription, error) {
	return c.subscribe("chain_subscribeFinalizedHeads", "chain_unsubscribeFinalizedHeads", nil, c.headerHandler(cb))
}

// SubscribeStorage subscribes to changes of the given storage keys
// (state_subscribeStorage). The first notification contains current values.
func (c *Client) SubscribeStorage(keys [][]byte, cb func(*result.StorageChangeSet)) (*Subscription, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: no keys to subscribe to", subrpc.ErrInvalidArgument)
	}
	hexKeys := make([]string, len(keys))
	for i := range keys {
		hexKeys[i] = codec.HexEncodeToString(keys[i])
	}
	return c.subscribe("state_subscribeStorage", "state_unsubscribeStorage", []any{hexKeys}, func(data json.RawMessage) {
		set := new(result.StorageChangeSet)
		if err := json.Unmarshal(data, set); err != nil {
			c.log.Debug("malformed storage change set", zap.Error(err))
			return
		}
		cb(set)
	})
}

func (c *Client) headerHandler(cb func(*types.Header)) func(json.RawMessage) {
	return func(data json.RawMessage) {
		h := new(types.Header)
		if err := json.Unmarshal(data, h); err != nil {
			c.log.Debug("malformed header", zap.Error(err))
			return
		}
		cb(h)
	}
}
