package query

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/nspcc-dev/substrate-go/internal/testnode"
	"github.com/nspcc-dev/substrate-go/pkg/crypto/keys"
	"github.com/nspcc-dev/substrate-go/pkg/registry"
	"github.com/nspcc-dev/substrate-go/pkg/rpcclient"
	"github.com/nspcc-dev/substrate-go/pkg/subrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestExecutor(t *testing.T, opts rpcclient.Options) (*Executor, *testnode.Node) {
	n := testnode.New(t)
	opts.Schema = testnode.Schema
	opts.Logger = zaptest.NewLogger(t)
	c, err := rpcclient.New(context.Background(), n.URL(), opts)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.AwaitReady(ctx))
	return New(c, opts.Logger), n
}

func mustIdentity(t *testing.T, uri string) *keys.Identity {
	id, err := keys.DeriveIdentity(uri)
	require.NoError(t, err)
	return id
}

func encode(t *testing.T, v any) []byte {
	b, err := codec.Encode(v)
	require.NoError(t, err)
	return b
}

// decodedAccount returns AccountInfo the way it comes from the node, with
// all balances set.
func decodedAccount(t *testing.T, raw []byte) registry.AccountInfo {
	var info registry.AccountInfo
	require.NoError(t, codec.Decode(raw, &info))
	return info
}

func accountID(id *keys.Identity) types.AccountID {
	var a types.AccountID
	copy(a[:], id.PublicKey())
	return a
}

func TestGetConstant(t *testing.T) {
	e, n := newTestExecutor(t, rpcclient.Options{})
	before := n.Requests("state_getStorage")

	r, err := e.GetConstant("Balances", "ExistentialDeposit")
	require.NoError(t, err)
	require.True(t, r.Found)
	require.Equal(t, types.NewU128(*big.NewInt(testnode.ExistentialDeposit)), r.Value)
	require.Equal(t, `"500"`, r.Human())

	r, err = e.GetConstant("timestamp", "minimumPeriod")
	require.NoError(t, err)
	require.Equal(t, types.U64(testnode.MinimumPeriod), r.Value)

	_, err = e.GetConstant("Balances", "NoSuchConstant")
	require.ErrorIs(t, err, subrpc.ErrInvalidArgument)
	// Not published by the node.
	_, err = e.GetConstant("Balances", "MaxLocks")
	require.ErrorIs(t, err, subrpc.ErrInvalidArgument)

	require.Equal(t, before, n.Requests("state_getStorage"))
}

func TestGetSingle(t *testing.T) {
	e, n := newTestExecutor(t, rpcclient.Options{})
	alice := mustIdentity(t, "//Alice")

	t.Run("default", func(t *testing.T) {
		r, err := e.GetSingle(NewKey("System", "Account", alice.Address()))
		require.NoError(t, err)
		require.False(t, r.Found)
		require.Nil(t, r.Raw)
		require.Equal(t, decodedAccount(t, make([]byte, 80)), r.Value)
		require.Zero(t, r.Value.(registry.AccountInfo).Data.Free.Sign())
		require.Equal(t, n.StorageKey("System", "Account", alice.PublicKey()), r.StorageKey)

		r, err = e.GetSingle(NewKey("TemplateModule", "Something"))
		require.NoError(t, err)
		require.False(t, r.Found)
		require.Equal(t, types.U32(0), r.Value)
	})
	t.Run("stored", func(t *testing.T) {
		info := registry.AccountInfo{Nonce: 3, Providers: 1}
		info.Data.Free = types.NewU128(*big.NewInt(1_000_000_000_000_000))
		n.SetAccount(alice.PublicKey(), info)

		r, err := e.GetSingle(NewKey("system", "account", alice))
		require.NoError(t, err)
		require.True(t, r.Found)
		require.Equal(t, decodedAccount(t, encode(t, info)), r.Value)
		require.Zero(t, r.Value.(registry.AccountInfo).Data.Reserved.Sign())
		require.Contains(t, r.Human(), `"free":"1,000,000,000,000,000"`)
	})
	t.Run("bad arguments", func(t *testing.T) {
		_, err := e.GetSingle(NewKey("System", "Account"))
		require.ErrorIs(t, err, subrpc.ErrInvalidArgument)
		_, err = e.GetSingle(NewKey("System", "Account", "not an address"))
		require.ErrorIs(t, err, subrpc.ErrInvalidArgument)
		_, err = e.GetSingle(NewKey("System", "Unknown"))
		require.ErrorIs(t, err, subrpc.ErrInvalidArgument)
	})
}

func TestGetMultiOrder(t *testing.T) {
	e, n := newTestExecutor(t, rpcclient.Options{})
	var (
		names = []string{"//Alice", "//Bob", "//Charlie", "//Dave"}
		ids   = make([]*keys.Identity, len(names))
		qs    = make([]Key, len(names))
	)
	for i := range names {
		ids[i] = mustIdentity(t, names[i])
		qs[i] = NewKey("System", "Account", ids[i].Address())
		if i%2 == 0 {
			n.SetAccount(ids[i].PublicKey(), registry.AccountInfo{Nonce: types.U32(i + 1)})
		}
	}
	before := n.Requests("state_queryStorageAt")
	res, err := e.GetMulti(qs)
	require.NoError(t, err)
	require.Equal(t, before+1, n.Requests("state_queryStorageAt"))
	require.Len(t, res, len(qs))
	for i := range res {
		require.Equal(t, qs[i], res[i].Key)
		require.Equal(t, i%2 == 0, res[i].Found, i)
		info := res[i].Value.(registry.AccountInfo)
		if i%2 == 0 {
			require.EqualValues(t, i+1, info.Nonce)
		} else {
			require.Zero(t, info.Nonce)
		}
	}

	res, err = e.GetMulti(nil)
	require.NoError(t, err)
	require.Empty(t, res)

	_, err = e.GetMulti([]Key{qs[0], NewKey("System", "Nope")})
	require.ErrorIs(t, err, subrpc.ErrInvalidArgument)
}

func TestGetComposite(t *testing.T) {
	e, n := newTestExecutor(t, rpcclient.Options{})
	alice := mustIdentity(t, "//Alice")

	n.SetStorage(n.StorageKey("Timestamp", "Now"), encode(t, types.U64(1700000000000)))
	n.SetStorage(n.StorageKey("TemplateModule", "Something"), encode(t, types.U32(42)))

	res, err := e.GetComposite([]Key{
		NewKey("Timestamp", "Now"),
		NewKey("System", "Account", alice.Address()),
		NewKey("TemplateModule", "Something"),
	})
	require.NoError(t, err)
	require.Len(t, res, 3)
	require.Equal(t, types.U64(1700000000000), res[0].Value)
	require.False(t, res[1].Found)
	require.Equal(t, types.U32(42), res[2].Value)
}

func TestEntries(t *testing.T) {
	e, n := newTestExecutor(t, rpcclient.Options{PageSize: 2})
	alice := mustIdentity(t, "//Alice")

	const kitties = 5
	want := make(map[types.U32][16]byte)
	for i := range kitties {
		var dna [16]byte
		dna[0] = byte(i + 1)
		want[types.U32(i)] = dna
		n.SetStorage(n.StorageKey("Kitties", "Kitties", encode(t, types.U32(i))), encode(t, dna))
		n.SetStorage(n.StorageKey("Kitties", "KittyOwner", encode(t, types.U32(i))), alice.PublicKey())
	}

	collect := func() map[types.U32][16]byte {
		got := make(map[types.U32][16]byte)
		for r, err := range e.Entries("Kitties", "Kitties") {
			require.NoError(t, err)
			require.True(t, r.Found)
			require.Len(t, r.Key.Args, 1)
			got[r.Key.Args[0].(types.U32)] = r.Value.([16]byte)
		}
		return got
	}
	require.Equal(t, want, collect())
	// Restartable, not a continuation.
	require.Equal(t, want, collect())

	// Early stop.
	var count int
	for range e.Entries("Kitties", "KittyOwner") {
		count++
		if count == 3 {
			break
		}
	}
	require.Equal(t, 3, count)

	for r, err := range e.Entries("Kitties", "KittyOwner") {
		require.NoError(t, err)
		require.Equal(t, accountID(alice), r.Value)
	}

	for _, err := range e.Entries("PoeModule", "Proofs") {
		require.NoError(t, err)
		t.Fatal("unexpected entry")
	}

	for _, err := range e.Entries("Kitties", "Unknown") {
		require.ErrorIs(t, err, subrpc.ErrInvalidArgument)
	}

	t.Run("plain item", func(t *testing.T) {
		before := n.Requests("state_getKeysPaged")
		var errs int
		for r, err := range e.Entries("Timestamp", "Now") {
			require.ErrorIs(t, err, subrpc.ErrInvalidArgument)
			require.Nil(t, r.Value)
			errs++
		}
		require.Equal(t, 1, errs)
		require.Equal(t, before, n.Requests("state_getKeysPaged"))
	})
}

func TestCall(t *testing.T) {
	e, n := newTestExecutor(t, rpcclient.Options{})
	alice := mustIdentity(t, "//Alice")
	bob := mustIdentity(t, "//Bob")

	n.SetAccount(alice.PublicKey(), registry.AccountInfo{Nonce: 7})
	r, err := e.Call("AccountNonceApi", "account_nonce", alice.Address())
	require.NoError(t, err)
	require.Equal(t, types.U32(7), r.Value)

	n.SetAuthorities(accountID(alice), accountID(bob))
	r, err = e.Call("auraApi", "authorities")
	require.NoError(t, err)
	require.Equal(t, []types.AccountID{accountID(alice), accountID(bob)}, r.Value)

	r, err = e.Call("Core", "version")
	require.NoError(t, err)
	v := r.Value.(registry.RuntimeVersion)
	require.EqualValues(t, testnode.SpecVersion, v.SpecVersion)
	require.Len(t, v.APIs, 3)

	_, err = e.Call("AccountNonceApi", "account_nonce")
	require.ErrorIs(t, err, subrpc.ErrInvalidArgument)
	_, err = e.Call("BabeApi", "configuration")
	require.ErrorIs(t, err, subrpc.ErrInvalidArgument)

	t.Run("empty result", func(t *testing.T) {
		n.SetCallResult("AccountNonceApi_account_nonce", []byte{})
		t.Cleanup(func() { n.SetCallResult("AccountNonceApi_account_nonce", nil) })

		r, err := e.Call("AccountNonceApi", "account_nonce", alice.Address())
		require.NoError(t, err)
		require.False(t, r.Found)
		require.Equal(t, types.U32(0), r.Value)
		require.Equal(t, `"0"`, r.Human())

		n.SetCallResult("AuraApi_authorities", []byte{})
		r, err = e.Call("AuraApi", "authorities")
		require.NoError(t, err)
		require.False(t, r.Found)
		require.Empty(t, r.Value)
	})
	t.Run("malformed result", func(t *testing.T) {
		n.SetCallResult("AccountNonceApi_account_nonce", []byte{1})
		t.Cleanup(func() { n.SetCallResult("AccountNonceApi_account_nonce", nil) })

		_, err := e.Call("AccountNonceApi", "account_nonce", alice.Address())
		require.Error(t, err)
	})
}

func TestBatchConnectionLoss(t *testing.T) {
	alice := mustIdentity(t, "//Alice")
	keys := []Key{
		NewKey("Timestamp", "Now"),
		NewKey("System", "Account", alice.Address()),
	}
	for name, get := range map[string]func(*Executor) ([]Result, error){
		"multi":     func(e *Executor) ([]Result, error) { return e.GetMulti(keys[1:]) },
		"composite": func(e *Executor) ([]Result, error) { return e.GetComposite(keys) },
	} {
		t.Run(name, func(t *testing.T) {
			e, n := newTestExecutor(t, rpcclient.Options{})
			n.SetDelay("state_queryStorageAt", 200*time.Millisecond)

			type batch struct {
				res []Result
				err error
			}
			done := make(chan batch, 1)
			go func() {
				res, err := get(e)
				done <- batch{res, err}
			}()
			require.Eventually(t, func() bool { return n.Requests("state_queryStorageAt") == 1 },
				time.Second, time.Millisecond)
			n.DropConnections()

			select {
			case b := <-done:
				require.ErrorIs(t, b.err, subrpc.ErrConnection)
				require.Nil(t, b.res)
			case <-time.After(5 * time.Second):
				t.Fatal("batch hangs after connection loss")
			}
		})
	}
}

func TestSubscribe(t *testing.T) {
	e, n := newTestExecutor(t, rpcclient.Options{})
	key := n.StorageKey("TemplateModule", "Something")

	values := make(chan Result, 10)
	sub, err := e.Subscribe(NewKey("TemplateModule", "Something"), func(r Result) {
		values <- r
	})
	require.NoError(t, err)

	next := func() Result {
		select {
		case r := <-values:
			return r
		case <-time.After(5 * time.Second):
			t.Fatal("no value")
		}
		return Result{}
	}
	r := next()
	assert.False(t, r.Found)
	assert.Equal(t, types.U32(0), r.Value)

	n.SetStorage(key, encode(t, types.U32(10)))
	r = next()
	assert.True(t, r.Found)
	assert.Equal(t, types.U32(10), r.Value)

	require.NoError(t, sub.Cancel())
	n.SetStorage(key, encode(t, types.U32(11)))
	select {
	case r := <-values:
		t.Fatalf("value after cancellation: %v", r.Value)
	case <-time.After(100 * time.Millisecond):
	}

	_, err = e.Subscribe(NewKey("TemplateModule", "Something"), nil)
	require.ErrorIs(t, err, subrpc.ErrInvalidArgument)
}
