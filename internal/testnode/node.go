/*
Package testnode implements an in-process mock Substrate node serving JSON-RPC
over websocket. It keeps storage in memory, pushes heads and storage changes
to subscribers on demand and accepts every well-formed extrinsic returning a
fixed hash.
*/
package testnode

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/gorilla/websocket"
	"github.com/nspcc-dev/substrate-go/pkg/encoding/address"
	"github.com/nspcc-dev/substrate-go/pkg/metadata"
	"github.com/nspcc-dev/substrate-go/pkg/registry"
	"github.com/nspcc-dev/substrate-go/pkg/subrpc"
	"golang.org/x/crypto/blake2b"
)

// Error codes returned by the node.
const (
	// BadFormatCode is returned for extrinsics that can't be decoded.
	BadFormatCode = 1001
)

var (
	// GenesisHash is the hash of block zero.
	GenesisHash = types.NewHash(bytes.Repeat([]byte{0x42}, 32))
	// SubmitHash is returned for every accepted extrinsic.
	SubmitHash = types.NewHash(bytes.Repeat([]byte{0xab}, 32))
)

type (
	// Node is a mock Substrate node.
	Node struct {
		srv    *httptest.Server
		schema *metadata.Static

		lock       sync.Mutex
		storage    map[string][]byte
		best       header
		headers    []header
		conns      map[*conn]struct{}
		subs       map[string]*subscription
		lastSubID  int
		delays     map[string]time.Duration
		submitErr  *subrpc.Error
		submitted  [][]byte
		requests   map[string]int
		authorites []types.AccountID
		calls      map[string][]byte
	}

	conn struct {
		ws   *websocket.Conn
		lock sync.Mutex
	}

	subscription struct {
		id     string
		conn   *conn
		method string
		keys   []string
	}

	header struct {
		hash       types.Hash
		parentHash types.Hash
		number     uint32
	}

	request struct {
		JSONRPC string            `json:"jsonrpc"`
		ID      json.RawMessage   `json:"id"`
		Method  string            `json:"method"`
		Params  []json.RawMessage `json:"params"`
	}

	response struct {
		JSONRPC string
		ID      json.RawMessage
		Result  any
		Error   *subrpc.Error
	}

	notification struct {
		JSONRPC string `json:"jsonrpc"`
		Method  string `json:"method"`
		Params  struct {
			Subscription string `json:"subscription"`
			Result       any    `json:"result"`
		} `json:"params"`
	}
)

// New starts a new mock node, it's stopped on test cleanup.
func New(t testing.TB) *Node {
	n := &Node{
		schema:   StaticSchema(),
		storage:  make(map[string][]byte),
		best:     header{hash: GenesisHash},
		conns:    make(map[*conn]struct{}),
		subs:     make(map[string]*subscription),
		delays:   make(map[string]time.Duration),
		requests: make(map[string]int),
		calls:    make(map[string][]byte),
	}
	n.headers = []header{n.best}
	n.srv = httptest.NewServer(http.HandlerFunc(n.serveWS))
	t.Cleanup(n.Close)
	return n
}

// URL returns the websocket endpoint of the node.
func (n *Node) URL() string {
	return "ws" + strings.TrimPrefix(n.srv.URL, "http")
}

// Close drops all connections and stops the node.
func (n *Node) Close() {
	n.DropConnections()
	n.srv.Close()
}

// DropConnections closes all client connections keeping the node running.
func (n *Node) DropConnections() {
	n.lock.Lock()
	conns := make([]*conn, 0, len(n.conns))
	for c := range n.conns {
		conns = append(conns, c)
	}
	n.lock.Unlock()
	for _, c := range conns {
		_ = c.ws.Close()
	}
}

// SetDelay makes the node wait before answering the method.
func (n *Node) SetDelay(method string, d time.Duration) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.delays[method] = d
}

// SetSubmitError makes author_submitExtrinsic fail with the given error, nil
// restores normal behavior.
func (n *Node) SetSubmitError(err *subrpc.Error) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.submitErr = err
}

// SetCallResult makes state_call of the runtime method return raw, nil
// restores normal behavior.
func (n *Node) SetCallResult(method string, raw []byte) {
	n.lock.Lock()
	defer n.lock.Unlock()
	if raw == nil {
		delete(n.calls, method)
		return
	}
	n.calls[method] = raw
}

// SetAuthorities sets Aura authorities.
func (n *Node) SetAuthorities(ids ...types.AccountID) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.authorites = ids
}

// Submitted returns all accepted extrinsics.
func (n *Node) Submitted() [][]byte {
	n.lock.Lock()
	defer n.lock.Unlock()
	return slices.Clone(n.submitted)
}

// Requests returns the number of requests received for the method.
func (n *Node) Requests(method string) int {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.requests[method]
}

// Subscriptions returns the number of active subscriptions.
func (n *Node) Subscriptions() int {
	n.lock.Lock()
	defer n.lock.Unlock()
	return len(n.subs)
}

// StorageKey returns storage key of the item for the given SCALE-encoded map
// keys.
func (n *Node) StorageKey(module, item string, args ...[]byte) []byte {
	e, err := n.schema.Storage(module, item)
	if err != nil {
		panic(err)
	}
	k, err := e.Key(args...)
	if err != nil {
		panic(err)
	}
	return k
}

// SetStorage stores the value (nil deletes it) and notifies storage
// subscribers.
func (n *Node) SetStorage(key []byte, value []byte) {
	n.lock.Lock()
	hexKey := codec.HexEncodeToString(key)
	if value == nil {
		delete(n.storage, hexKey)
	} else {
		n.storage[hexKey] = bytes.Clone(value)
	}
	var targets []*subscription
	for _, s := range n.subs {
		if s.method == "state_storage" && slices.Contains(s.keys, hexKey) {
			targets = append(targets, s)
		}
	}
	block := n.best.hash
	n.lock.Unlock()
	for _, s := range targets {
		s.conn.notify(s.method, s.id, changeSet(block, [][2]any{{hexKey, hexValue(value)}}))
	}
}

// SetAccount stores account info of the given public key.
func (n *Node) SetAccount(pub []byte, info registry.AccountInfo) {
	n.SetStorage(n.StorageKey("System", "Account", pub), mustEncode(info))
}

// PushHead produces a new best block and notifies new and finalized head
// subscribers. It returns the new block number.
func (n *Node) PushHead() uint32 {
	n.lock.Lock()
	h := header{parentHash: n.best.hash, number: n.best.number + 1}
	var num [4]byte
	binary.LittleEndian.PutUint32(num[:], h.number)
	h.hash = types.NewHash(blake2bSum(append(h.parentHash[:], num[:]...)))
	n.best = h
	n.headers = append(n.headers, h)
	var targets []*subscription
	for _, s := range n.subs {
		if s.method == "chain_newHead" || s.method == "chain_finalizedHead" {
			targets = append(targets, s)
		}
	}
	n.lock.Unlock()
	slices.SortFunc(targets, func(a, b *subscription) int { return strings.Compare(a.id, b.id) })
	for _, s := range targets {
		s.conn.notify(s.method, s.id, h.toJSON())
	}
	return h.number
}

func blake2bSum(data []byte) []byte {
	h := blake2b.Sum256(data)
	return h[:]
}

func hexValue(v []byte) any {
	if v == nil {
		return nil
	}
	return codec.HexEncodeToString(v)
}

func changeSet(block types.Hash, changes [][2]any) map[string]any {
	list := make([][]any, len(changes))
	for i := range changes {
		list[i] = []any{changes[i][0], changes[i][1]}
	}
	return map[string]any{"block": block.Hex(), "changes": list}
}

func (h header) toJSON() map[string]any {
	return map[string]any{
		"parentHash":     h.parentHash.Hex(),
		"number":         "0x" + strconv.FormatUint(uint64(h.number), 16),
		"stateRoot":      types.NewHash(blake2bSum(h.hash[:])).Hex(),
		"extrinsicsRoot": types.NewHash(make([]byte, 32)).Hex(),
		"digest":         map[string]any{"logs": []string{}},
	}
}

func (n *Node) serveWS(w http.ResponseWriter, req *http.Request) {
	var upgrader = websocket.Upgrader{}
	ws, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}
	c := &conn{ws: ws}
	n.lock.Lock()
	n.conns[c] = struct{}{}
	n.lock.Unlock()

	var wg sync.WaitGroup
	for {
		_, p, err := ws.ReadMessage()
		if err != nil {
			break
		}
		r := new(request)
		if err := json.Unmarshal(p, r); err != nil {
			c.write(response{JSONRPC: subrpc.JSONRPCVersion, Error: subrpc.NewError(subrpc.ParseErrorCode, "Parse error", "")})
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			n.handle(c, r)
		}()
	}
	wg.Wait()
	_ = ws.Close()

	n.lock.Lock()
	delete(n.conns, c)
	for id, s := range n.subs {
		if s.conn == c {
			delete(n.subs, id)
		}
	}
	n.lock.Unlock()
}

// MarshalJSON implements the json.Marshaler interface. Result is present
// (possibly null) only when there is no error.
func (r response) MarshalJSON() ([]byte, error) {
	id := r.ID
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	if r.Error != nil {
		return json.Marshal(struct {
			JSONRPC string          `json:"jsonrpc"`
			ID      json.RawMessage `json:"id"`
			Error   *subrpc.Error   `json:"error"`
		}{r.JSONRPC, id, r.Error})
	}
	return json.Marshal(struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Result  any             `json:"result"`
	}{r.JSONRPC, id, r.Result})
}

func (c *conn) write(v any) {
	c.lock.Lock()
	defer c.lock.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(2 * time.Second))
	_ = c.ws.WriteJSON(v)
}

func (c *conn) notify(method, id string, result any) {
	var msg = notification{JSONRPC: subrpc.JSONRPCVersion, Method: method}
	msg.Params.Subscription = id
	msg.Params.Result = result
	c.write(msg)
}

func (n *Node) handle(c *conn, r *request) {
	n.lock.Lock()
	n.requests[r.Method]++
	delay := n.delays[r.Method]
	n.lock.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	resp := response{JSONRPC: subrpc.JSONRPCVersion, ID: r.ID}
	res, after, err := n.dispatch(c, r)
	if err != nil {
		resp.Error = err
	} else {
		resp.Result = res
	}
	c.write(resp)
	if after != nil {
		after()
	}
}

func paramString(r *request, i int) (string, bool) {
	if len(r.Params) <= i {
		return "", false
	}
	var s *string
	if err := json.Unmarshal(r.Params[i], &s); err != nil || s == nil {
		return "", false
	}
	return *s, true
}

func invalidParams(format string, args ...any) *subrpc.Error {
	return subrpc.NewError(subrpc.InvalidParamsCode, "Invalid params", fmt.Sprintf(format, args...))
}

// dispatch returns the result of the call and an optional function to run
// after the response is sent.
func (n *Node) dispatch(c *conn, r *request) (any, func(), *subrpc.Error) {
	switch r.Method {
	case "state_getMetadata":
		return "0x6d657461", nil, nil
	case "state_getRuntimeVersion":
		return RuntimeVersion(), nil, nil
	case "chain_getBlockHash":
		n.lock.Lock()
		defer n.lock.Unlock()
		if len(r.Params) == 0 || string(r.Params[0]) == "null" {
			return n.best.hash.Hex(), nil, nil
		}
		num, err := strconv.ParseUint(string(r.Params[0]), 10, 32)
		if err != nil {
			return nil, nil, invalidParams("bad block number")
		}
		if int(num) >= len(n.headers) {
			return nil, nil, nil
		}
		return n.headers[num].hash.Hex(), nil, nil
	case "chain_getHeader":
		n.lock.Lock()
		defer n.lock.Unlock()
		if h, ok := paramString(r, 0); ok {
			for _, hdr := range n.headers {
				if strings.EqualFold(hdr.hash.Hex(), h) {
					return hdr.toJSON(), nil, nil
				}
			}
			return nil, nil, nil
		}
		return n.best.toJSON(), nil, nil
	case "chain_getFinalizedHead":
		n.lock.Lock()
		defer n.lock.Unlock()
		return n.best.hash.Hex(), nil, nil
	case "system_chain":
		return "Development", nil, nil
	case "system_name":
		return "Substrate Node", nil, nil
	case "system_version":
		return "4.0.0-dev", nil, nil
	case "system_properties":
		return map[string]any{"ss58Format": address.DefaultPrefix, "tokenDecimals": 12, "tokenSymbol": "UNIT"}, nil, nil
	case "system_health":
		return map[string]any{"peers": 0, "isSyncing": false, "shouldHavePeers": false}, nil, nil
	case "state_getStorage":
		k, ok := paramString(r, 0)
		if !ok {
			return nil, nil, invalidParams("no key")
		}
		n.lock.Lock()
		defer n.lock.Unlock()
		return hexValue(n.storage[strings.ToLower(k)]), nil, nil
	case "state_queryStorageAt":
		var keys []string
		if len(r.Params) == 0 || json.Unmarshal(r.Params[0], &keys) != nil {
			return nil, nil, invalidParams("bad keys")
		}
		n.lock.Lock()
		defer n.lock.Unlock()
		changes := make([][2]any, len(keys))
		for i, k := range keys {
			changes[i] = [2]any{k, hexValue(n.storage[strings.ToLower(k)])}
		}
		return []any{changeSet(n.best.hash, changes)}, nil, nil
	case "state_getKeysPaged":
		return n.keysPaged(r)
	case "state_call":
		return n.stateCall(r)
	case "system_accountNextIndex":
		addr, ok := paramString(r, 0)
		if !ok {
			return nil, nil, invalidParams("no account")
		}
		pub, err := address.Decode(addr)
		if err != nil {
			return nil, nil, invalidParams("bad account: %s", err)
		}
		return n.nonce(pub), nil, nil
	case "author_submitExtrinsic":
		return n.submit(r)
	case "chain_subscribeNewHeads":
		return n.subscribe(c, "chain_newHead", nil)
	case "chain_subscribeFinalizedHeads":
		return n.subscribe(c, "chain_finalizedHead", nil)
	case "state_subscribeStorage":
		var keys []string
		if len(r.Params) == 0 || json.Unmarshal(r.Params[0], &keys) != nil || len(keys) == 0 {
			return nil, nil, invalidParams("bad keys")
		}
		for i := range keys {
			keys[i] = strings.ToLower(keys[i])
		}
		return n.subscribe(c, "state_storage", keys)
	case "chain_unsubscribeNewHeads", "chain_unsubscribeFinalizedHeads", "state_unsubscribeStorage":
		id, ok := paramString(r, 0)
		if !ok {
			return nil, nil, invalidParams("no subscription id")
		}
		n.lock.Lock()
		defer n.lock.Unlock()
		_, found := n.subs[id]
		delete(n.subs, id)
		return found, nil, nil
	}
	return nil, nil, subrpc.NewError(subrpc.MethodNotFoundCode, "Method not found", r.Method)
}

func (n *Node) nonce(pub []byte) uint32 {
	n.lock.Lock()
	defer n.lock.Unlock()
	raw, ok := n.storage[codec.HexEncodeToString(n.StorageKey("System", "Account", pub))]
	if !ok {
		return 0
	}
	var info registry.AccountInfo
	if err := codec.Decode(raw, &info); err != nil {
		return 0
	}
	return uint32(info.Nonce)
}

func (n *Node) keysPaged(r *request) (any, func(), *subrpc.Error) {
	prefix, ok := paramString(r, 0)
	if !ok {
		return nil, nil, invalidParams("no prefix")
	}
	var count int
	if len(r.Params) < 2 || json.Unmarshal(r.Params[1], &count) != nil || count <= 0 {
		return nil, nil, invalidParams("bad count")
	}
	start, _ := paramString(r, 2)
	prefix, start = strings.ToLower(prefix), strings.ToLower(start)

	n.lock.Lock()
	defer n.lock.Unlock()
	var keys []string
	for k := range n.storage {
		if strings.HasPrefix(k, prefix) && k > start {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	if len(keys) > count {
		keys = keys[:count]
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil, nil
}

func (n *Node) stateCall(r *request) (any, func(), *subrpc.Error) {
	method, ok := paramString(r, 0)
	if !ok {
		return nil, nil, invalidParams("no method")
	}
	data, ok := paramString(r, 1)
	if !ok {
		return nil, nil, invalidParams("no data")
	}
	args, err := codec.HexDecodeString(data)
	if err != nil {
		return nil, nil, invalidParams("bad data: %s", err)
	}
	n.lock.Lock()
	raw, ok := n.calls[method]
	n.lock.Unlock()
	if ok {
		return codec.HexEncodeToString(raw), nil, nil
	}
	switch method {
	case "AccountNonceApi_account_nonce":
		if len(args) != 32 {
			return nil, nil, subrpc.NewError(subrpc.InternalErrorCode, "Execution failed", "bad account")
		}
		return codec.HexEncodeToString(mustEncode(types.U32(n.nonce(args)))), nil, nil
	case "AuraApi_authorities":
		n.lock.Lock()
		defer n.lock.Unlock()
		auth := n.authorites
		if auth == nil {
			auth = []types.AccountID{}
		}
		return codec.HexEncodeToString(mustEncode(auth)), nil, nil
	case "Core_version":
		rv := RuntimeVersion()
		v := registry.RuntimeVersion{
			SpecName:           types.Text(rv.SpecName),
			ImplName:           types.Text(rv.ImplName),
			AuthoringVersion:   types.U32(rv.AuthoringVersion),
			SpecVersion:        types.U32(rv.SpecVersion),
			ImplVersion:        types.U32(rv.ImplVersion),
			TransactionVersion: types.U32(rv.TransactionVersion),
			StateVersion:       types.U8(rv.StateVersion),
		}
		for _, a := range rv.APIs {
			var api registry.RuntimeAPI
			id, _ := codec.HexDecodeString(a.ID)
			copy(api.ID[:], id)
			api.Version = types.U32(a.Version)
			v.APIs = append(v.APIs, api)
		}
		return codec.HexEncodeToString(mustEncode(v)), nil, nil
	}
	return nil, nil, subrpc.NewError(subrpc.InternalErrorCode, "Execution failed", "Exported method "+method+" is not found")
}

func (n *Node) submit(r *request) (any, func(), *subrpc.Error) {
	data, ok := paramString(r, 0)
	if !ok {
		return nil, nil, invalidParams("no extrinsic")
	}
	raw, err := codec.HexDecodeString(data)
	if err != nil {
		return nil, nil, invalidParams("bad extrinsic: %s", err)
	}
	var ext types.Extrinsic
	if err := codec.Decode(raw, &ext); err != nil || !ext.IsSigned() {
		return nil, nil, subrpc.NewError(BadFormatCode, "Extrinsic has invalid format", "")
	}
	n.lock.Lock()
	defer n.lock.Unlock()
	if n.submitErr != nil {
		return nil, nil, n.submitErr
	}
	n.submitted = append(n.submitted, raw)
	return SubmitHash.Hex(), nil, nil
}

func (n *Node) subscribe(c *conn, method string, keys []string) (any, func(), *subrpc.Error) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.lastSubID++
	s := &subscription{
		id:     fmt.Sprintf("sub%04d", n.lastSubID),
		conn:   c,
		method: method,
		keys:   keys,
	}
	n.subs[s.id] = s
	if method != "state_storage" {
		return s.id, nil, nil
	}
	changes := make([][2]any, len(keys))
	for i, k := range keys {
		changes[i] = [2]any{k, hexValue(n.storage[k])}
	}
	initial := changeSet(n.best.hash, changes)
	return s.id, func() { c.notify(method, s.id, initial) }, nil
}

// Unreachable returns an endpoint nothing listens at.
func Unreachable(t testing.TB) string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	_ = l.Close()
	return "ws://" + addr
}

// Silent returns an endpoint that accepts TCP connections, but never answers
// the websocket handshake.
func Silent(t testing.TB) string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	var (
		wg    sync.WaitGroup
		lock  sync.Mutex
		conns []net.Conn
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			c, err := l.Accept()
			if err != nil {
				return
			}
			lock.Lock()
			conns = append(conns, c)
			lock.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = l.Close()
		wg.Wait()
		lock.Lock()
		defer lock.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	return "ws://" + l.Addr().String()
}
