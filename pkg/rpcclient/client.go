package rpcclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/gorilla/websocket"
	lru "github.com/hashicorp/golang-lru"
	"github.com/nspcc-dev/substrate-go/pkg/metadata"
	"github.com/nspcc-dev/substrate-go/pkg/registry"
	"github.com/nspcc-dev/substrate-go/pkg/subrpc"
	"github.com/nspcc-dev/substrate-go/pkg/subrpc/result"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const (
	defaultDialTimeout    = 4 * time.Second
	defaultRequestTimeout = 4 * time.Second
	defaultPageSize       = 100

	// Number of unknown subscription IDs to keep notifications for and the
	// number of notifications kept per ID.
	maxPendingSubscriptions = 64
	maxPendingNotifications = 16
)

// State is the Client lifecycle state.
type State uint32

// Client states. Connecting is the initial one, it's followed by either Ready
// or Failed. Ready is followed by Closed.
const (
	Connecting State = iota
	Ready
	Failed
	Closed
)

// String implements the fmt.Stringer interface.
func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", uint32(s))
}

// Client is a websocket JSON-RPC client of a Substrate node. It owns a single
// connection, requests are multiplexed over it by ID, so Client is thread-safe
// and can be used from multiple goroutines. Client connects in background,
// use AwaitReady to wait for it.
type Client struct {
	endpoint *url.URL
	ctx      context.Context
	cancel   context.CancelFunc
	opts     Options
	log      *zap.Logger

	state *atomic.Uint32
	// ready is closed when the client gets Ready or Failed, readyErr is set
	// before that.
	ready    chan struct{}
	readyErr error
	// connected is closed when background connection routine finishes.
	connected chan struct{}
	// transportUp is set when the websocket is dialed and reader/writer
	// routines are running.
	transportUp *atomic.Bool

	ws           *websocket.Conn
	requests     chan *subrpc.Request
	shutdown     chan struct{}
	done         chan struct{}
	closeOnce    sync.Once
	teardownOnce sync.Once

	respLock     sync.Mutex
	respChannels map[uint64]chan *subrpc.Response

	subsLock sync.Mutex
	subs     map[subrpc.SubscriptionID]*Subscription
	// pending keeps notifications for subscription IDs that are not yet
	// known.
	pending *lru.Cache
	// dispatcherID is the goroutine running subscription callbacks.
	dispatcherID *atomic.Uint64

	events     eventQueue
	dispatched chan struct{}

	cacheLock sync.RWMutex
	cache     cache

	latestReqID *atomic.Uint64
	// getNextRequestID returns an ID to be used for the subsequent request creation.
	// It is defined on Client, so that our testing code can override this method
	// for the sake of more predictable request IDs generation behavior.
	getNextRequestID func() uint64
}

// Options defines options for the RPC client. All values are optional. If any
// duration is not specified, a default of 4 seconds is used.
type Options struct {
	// DialTimeout limits websocket connection establishment.
	DialTimeout time.Duration
	// RequestTimeout is a write deadline for requests.
	RequestTimeout time.Duration
	// PageSize is the number of keys requested per state_getKeysPaged
	// call, 100 by default.
	PageSize uint32
	// Registry is a set of known items, registry.Default() is used if nil.
	Registry *registry.Registry
	// Schema decodes state_getMetadata result, metadata.Decoder is used if
	// nil.
	Schema func(hexMetadata string) (metadata.Schema, error)
	// Logger is used for connection lifecycle events, no logging by default.
	Logger *zap.Logger
}

// cache stores node-related information the client is bound to. It's filled
// in once the connection is established.
type cache struct {
	schema     metadata.Schema
	registry   *registry.Bound
	version    result.RuntimeVersion
	genesis    types.Hash
	chain      string
	properties result.Properties
}

// New validates the endpoint and returns a new Client that starts connecting
// in background. It never blocks on I/O, use AwaitReady to get the connection
// result. Only ws:// and wss:// endpoints are supported. Cancelling ctx
// closes the Client.
func New(ctx context.Context, endpoint string, opts Options) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: bad endpoint: %w", subrpc.ErrInvalidArgument, err)
	}
	if (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return nil, fmt.Errorf("%w: bad endpoint %q: ws:// or wss:// URL expected", subrpc.ErrInvalidArgument, endpoint)
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.PageSize == 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.Registry == nil {
		opts.Registry = registry.Default()
	}
	if opts.Schema == nil {
		opts.Schema = metadata.Decoder
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	c := &Client{
		endpoint:     u,
		opts:         opts,
		log:          opts.Logger.With(zap.String("endpoint", u.Redacted())),
		state:        atomic.NewUint32(uint32(Connecting)),
		ready:        make(chan struct{}),
		connected:    make(chan struct{}),
		transportUp:  atomic.NewBool(false),
		requests:     make(chan *subrpc.Request),
		shutdown:     make(chan struct{}),
		done:         make(chan struct{}),
		respChannels: make(map[uint64]chan *subrpc.Response),
		subs:         make(map[subrpc.SubscriptionID]*Subscription),
		dispatcherID: atomic.NewUint64(0),
		dispatched:   make(chan struct{}),
		latestReqID:  atomic.NewUint64(0),
	}
	c.pending, _ = lru.New(maxPendingSubscriptions) // Never errors for positive size.
	c.events.init()
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.getNextRequestID = c.getRequestID
	go c.connect()
	return c, nil
}

func (c *Client) getRequestID() uint64 {
	return c.latestReqID.Inc()
}

// Endpoint returns the node address.
func (c *Client) Endpoint() string {
	return c.endpoint.String()
}

// State returns the current client state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// AwaitReady waits for the client to become Ready. It returns an error
// wrapping subrpc.ErrConnection if the endpoint is unreachable, the handshake
// or initial requests fail. ctx limits the wait, the connection attempt
// itself is limited by Options.DialTimeout.
func (c *Client) AwaitReady(ctx context.Context) error {
	select {
	case <-c.ready:
		return c.readyErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the connection rendering this client instance unusable. All
// active subscriptions are cancelled and in-flight calls fail with
// subrpc.ErrConnection. It's safe to call Close multiple times. Close waits
// for the running subscription callback unless it's called from one.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.state.Store(uint32(Closed))
		c.cancel()
		close(c.shutdown)
	})
	<-c.connected
	if c.transportUp.Load() {
		<-c.done
		if !c.inCallback() {
			<-c.dispatched
		}
	}
}

func (c *Client) connect() {
	defer close(c.connected)
	err := c.dial()
	if err == nil {
		err = c.init()
	}
	if err != nil {
		if !errors.Is(err, subrpc.ErrConnection) {
			err = fmt.Errorf("%w: %w", subrpc.ErrConnection, err)
		}
		c.readyErr = err
		if !c.state.CompareAndSwap(uint32(Connecting), uint32(Failed)) {
			c.readyErr = fmt.Errorf("%w: client closed", subrpc.ErrConnection)
		}
		c.log.Warn("failed to connect", zap.Error(err))
		if c.transportUp.Load() {
			c.closeOnce.Do(func() {
				c.cancel()
				close(c.shutdown)
			})
		}
		close(c.ready)
		return
	}
	if !c.state.CompareAndSwap(uint32(Connecting), uint32(Ready)) {
		c.readyErr = fmt.Errorf("%w: client closed", subrpc.ErrConnection)
	} else {
		c.log.Info("connected", zap.String("chain", c.cache.chain),
			zap.String("runtime", c.cache.version.SpecName),
			zap.Uint32("spec version", c.cache.version.SpecVersion))
	}
	close(c.ready)
}

func (c *Client) dial() error {
	ctx, cancel := context.WithTimeout(c.ctx, c.opts.DialTimeout)
	defer cancel()
	dialer := websocket.Dialer{
		NetDialContext:   (&net.Dialer{Timeout: c.opts.DialTimeout}).DialContext,
		HandshakeTimeout: c.opts.DialTimeout,
	}
	ws, resp, err := dialer.DialContext(ctx, c.endpoint.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("%w: failed to dial: %w", subrpc.ErrConnection, err)
	}
	c.ws = ws
	c.transportUp.Store(true)
	go c.wsReader()
	go c.wsWriter()
	go c.dispatcher()
	return nil
}

// init fetches everything the client needs to build queries and extrinsics
// and binds the registry to the node schema.
func (c *Client) init() error {
	meta, err := c.GetMetadata()
	if err != nil {
		return fmt.Errorf("failed to get metadata: %w", err)
	}
	schema, err := c.opts.Schema(meta)
	if err != nil {
		return fmt.Errorf("failed to decode metadata: %w", err)
	}
	version, err := c.GetRuntimeVersion(nil)
	if err != nil {
		return fmt.Errorf("failed to get runtime version: %w", err)
	}
	genesis, err := c.GetBlockHash(0)
	if err != nil {
		return fmt.Errorf("failed to get genesis hash: %w", err)
	}
	chain, err := c.SystemChain()
	if err != nil {
		return fmt.Errorf("failed to get chain name: %w", err)
	}
	props, err := c.SystemProperties()
	if err != nil {
		return fmt.Errorf("failed to get chain properties: %w", err)
	}
	bound := c.opts.Registry.Bind(schema, version, c.log)

	c.cacheLock.Lock()
	defer c.cacheLock.Unlock()
	c.cache = cache{
		schema:     schema,
		registry:   bound,
		version:    *version,
		genesis:    genesis,
		chain:      chain,
		properties: *props,
	}
	return nil
}

func (c *Client) checkReady() error {
	if s := c.State(); s != Ready {
		return fmt.Errorf("%w (%s)", subrpc.ErrNotReady, s)
	}
	return nil
}

// Schema returns the node schema decoded from its metadata.
func (c *Client) Schema() (metadata.Schema, error) {
	if err := c.checkReady(); err != nil {
		return nil, err
	}
	c.cacheLock.RLock()
	defer c.cacheLock.RUnlock()
	return c.cache.schema, nil
}

// Registry returns the registry bound to the node schema.
func (c *Client) Registry() (*registry.Bound, error) {
	if err := c.checkReady(); err != nil {
		return nil, err
	}
	c.cacheLock.RLock()
	defer c.cacheLock.RUnlock()
	return c.cache.registry, nil
}

// RuntimeVersion returns the runtime version the client was initialized with.
func (c *Client) RuntimeVersion() (result.RuntimeVersion, error) {
	if err := c.checkReady(); err != nil {
		return result.RuntimeVersion{}, err
	}
	c.cacheLock.RLock()
	defer c.cacheLock.RUnlock()
	return c.cache.version, nil
}

// GenesisHash returns the hash of block zero.
func (c *Client) GenesisHash() (types.Hash, error) {
	if err := c.checkReady(); err != nil {
		return types.Hash{}, err
	}
	c.cacheLock.RLock()
	defer c.cacheLock.RUnlock()
	return c.cache.genesis, nil
}

// Chain returns the chain name.
func (c *Client) Chain() (string, error) {
	if err := c.checkReady(); err != nil {
		return "", err
	}
	c.cacheLock.RLock()
	defer c.cacheLock.RUnlock()
	return c.cache.chain, nil
}

// Properties returns chain properties (token symbol, decimals, SS58 prefix).
func (c *Client) Properties() (result.Properties, error) {
	if err := c.checkReady(); err != nil {
		return result.Properties{}, err
	}
	c.cacheLock.RLock()
	defer c.cacheLock.RUnlock()
	return c.cache.properties, nil
}

// PageSize returns the number of keys requested per state_getKeysPaged call.
func (c *Client) PageSize() uint32 {
	return c.opts.PageSize
}
