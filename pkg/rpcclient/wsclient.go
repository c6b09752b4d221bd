package rpcclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nspcc-dev/substrate-go/pkg/subrpc"
	"go.uber.org/zap"
)

const (
	// Message limit for receiving side. Metadata of big runtimes is a couple
	// of megabytes.
	wsReadLimit = 32 * 1024 * 1024

	// Disconnection timeout.
	wsPongLimit = 60 * time.Second

	// Ping period for connection liveness check.
	wsPingPeriod = wsPongLimit / 2

	// Write deadline.
	wsWriteLimit = wsPingPeriod / 2
)

// message is a combined type for responses and notifications since we can
// get any of them here.
type message struct {
	subrpc.HeaderAndError
	Result json.RawMessage `json:"result,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

func (c *Client) wsReader() {
	c.ws.SetReadLimit(wsReadLimit)
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(wsPongLimit))
	})
	var connErr error
readloop:
	for {
		msg := new(message)
		_ = c.ws.SetReadDeadline(time.Now().Add(wsPongLimit))
		err := c.ws.ReadJSON(msg)
		if err != nil {
			// Timeout/connection loss/malformed response.
			connErr = err
			break readloop
		}
		switch {
		case len(msg.ID) == 0 && msg.Method != "":
			var params subrpc.NotificationParams
			if err := json.Unmarshal(msg.Params, &params); err != nil {
				c.log.Debug("malformed notification", zap.String("method", msg.Method), zap.Error(err))
				continue
			}
			c.notify(msg.Method, &params)
		case len(msg.ID) != 0:
			id, ok := msg.NumericID()
			if !ok {
				c.log.Debug("response with unexpected ID", zap.ByteString("id", msg.ID))
				continue
			}
			c.respLock.Lock()
			ch, ok := c.respChannels[id]
			delete(c.respChannels, id)
			c.respLock.Unlock()
			if !ok {
				c.log.Debug("response to unknown request", zap.Uint64("id", id))
				continue
			}
			ch <- &subrpc.Response{HeaderAndError: msg.HeaderAndError, Result: msg.Result}
		default:
			// Malformed response, neither valid notification, nor valid response.
			connErr = fmt.Errorf("malformed message")
			break readloop
		}
	}
	c.teardown(connErr)
}

func (c *Client) wsWriter() {
	pingTicker := time.NewTicker(wsPingPeriod)
	defer c.ws.Close()
	defer pingTicker.Stop()
	for {
		select {
		case <-c.shutdown:
			return
		case <-c.ctx.Done():
			return
		case <-c.done:
			return
		case req := <-c.requests:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.RequestTimeout))
			if err := c.ws.WriteJSON(req); err != nil {
				c.log.Debug("failed to write request", zap.String("method", req.Method), zap.Error(err))
				return
			}
		case <-pingTicker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteLimit))
			if err := c.ws.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		}
	}
}

// teardown is called once the reader is done. It moves the client to Closed,
// fails in-flight requests and cancels all subscriptions.
func (c *Client) teardown(err error) {
	c.teardownOnce.Do(func() {
		if c.state.CompareAndSwap(uint32(Ready), uint32(Closed)) {
			c.log.Info("connection lost", zap.Error(err))
		}

		c.subsLock.Lock()
		activeSubscriptions.Sub(float64(len(c.subs)))
		for id, s := range c.subs {
			s.terminate()
			delete(c.subs, id)
		}
		// Under subsLock, so that no subscription is registered after that.
		close(c.done)
		c.subsLock.Unlock()

		c.respLock.Lock()
		for id, ch := range c.respChannels {
			close(ch)
			delete(c.respChannels, id)
		}
		c.respLock.Unlock()
	})
}

func (c *Client) registerRespChannel(id uint64) (chan *subrpc.Response, error) {
	ch := make(chan *subrpc.Response, 1)
	c.respLock.Lock()
	defer c.respLock.Unlock()
	select {
	case <-c.done:
		return nil, fmt.Errorf("%w: connection lost", subrpc.ErrConnection)
	default:
	}
	c.respChannels[id] = ch
	return ch, nil
}

func (c *Client) unregisterRespChannel(id uint64) {
	c.respLock.Lock()
	defer c.respLock.Unlock()
	delete(c.respChannels, id)
}

func (c *Client) makeWsRequest(r *subrpc.Request) (*subrpc.Response, error) {
	ch, err := c.registerRespChannel(r.ID)
	if err != nil {
		return nil, err
	}
	select {
	case <-c.done:
		c.unregisterRespChannel(r.ID)
		return nil, fmt.Errorf("%w: connection lost before sending request", subrpc.ErrConnection)
	case <-c.ctx.Done():
		c.unregisterRespChannel(r.ID)
		return nil, fmt.Errorf("%w: %w", subrpc.ErrConnection, c.ctx.Err())
	case c.requests <- r:
	}
	select {
	case <-c.ctx.Done():
		c.unregisterRespChannel(r.ID)
		return nil, fmt.Errorf("%w: %w", subrpc.ErrConnection, c.ctx.Err())
	case resp, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("%w: connection lost while waiting for response", subrpc.ErrConnection)
		}
		return resp, nil
	}
}

// performRequest sends a request and unmarshals its result into v. Node
// errors are returned as *subrpc.Error, transport failures wrap
// subrpc.ErrConnection.
func (c *Client) performRequest(method string, p []any, v any) error {
	if !c.transportUp.Load() {
		return fmt.Errorf("%w (%s)", subrpc.ErrNotReady, c.State())
	}
	if p == nil {
		p = []any{}
	}
	var r = subrpc.Request{
		JSONRPC: subrpc.JSONRPCVersion,
		Method:  method,
		Params:  p,
		ID:      c.getNextRequestID(),
	}
	requestsTotal.WithLabelValues(method).Inc()
	start := time.Now()
	raw, err := c.makeWsRequest(&r)
	requestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		requestErrors.WithLabelValues(method).Inc()
		return err
	}
	if raw.Error != nil {
		requestErrors.WithLabelValues(method).Inc()
		return raw.Error
	}
	if v == nil {
		return nil
	}
	if len(raw.Result) == 0 {
		return fmt.Errorf("%s: no result returned", method)
	}
	if err := json.Unmarshal(raw.Result, v); err != nil {
		return fmt.Errorf("%s: failed to unmarshal result: %w", method, err)
	}
	return nil
}

// eventQueue is an unbounded FIFO of subscription events. The reader never
// blocks on it, so slow callbacks don't stall responses.
type eventQueue struct {
	lock   sync.Mutex
	events []event
	signal chan struct{}
}

type event struct {
	sub  *Subscription
	data json.RawMessage
}

func (q *eventQueue) init() {
	q.signal = make(chan struct{}, 1)
}

func (q *eventQueue) push(e event) {
	q.lock.Lock()
	q.events = append(q.events, e)
	q.lock.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *eventQueue) pop() (event, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()
	if len(q.events) == 0 {
		return event{}, false
	}
	e := q.events[0]
	q.events[0] = event{}
	q.events = q.events[1:]
	return e, true
}

// dispatcher runs all subscription callbacks of the client one by one.
func (c *Client) dispatcher() {
	defer close(c.dispatched)
	c.dispatcherID.Store(goroutineID())
	for {
		select {
		case <-c.done:
			return
		case <-c.events.signal:
		}
		for {
			e, ok := c.events.pop()
			if !ok {
				break
			}
			e.sub.deliver(e.data)
		}
	}
}

// inCallback returns true if called from a subscription callback of c.
func (c *Client) inCallback() bool {
	id := c.dispatcherID.Load()
	return id != 0 && id == goroutineID()
}

// goroutineID returns the ID of the calling goroutine, it's the number in
// the "goroutine N [status]:" stack header.
func goroutineID() uint64 {
	var buf [64]byte
	b := bytes.TrimPrefix(buf[:runtime.Stack(buf[:], false)], []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// notify routes a notification to its subscription. Notifications may come
// before the subscription request returns, they're kept in pending until the
// subscription is registered.
func (c *Client) notify(method string, p *subrpc.NotificationParams) {
	c.subsLock.Lock()
	defer c.subsLock.Unlock()
	s, ok := c.subs[p.Subscription]
	if !ok {
		var queued []json.RawMessage
		if v, ok := c.pending.Get(p.Subscription); ok {
			queued = v.([]json.RawMessage)
		}
		if len(queued) >= maxPendingNotifications {
			notificationsDropped.Inc()
			c.log.Debug("notification for unknown subscription dropped",
				zap.String("method", method), zap.String("subscription", string(p.Subscription)))
			return
		}
		c.pending.Add(p.Subscription, append(queued, p.Result))
		return
	}
	c.events.push(event{sub: s, data: p.Result})
}
