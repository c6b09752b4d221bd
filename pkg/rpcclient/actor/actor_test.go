package actor

import (
	"context"
	"encoding/hex"
	"errors"
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
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestActor(t *testing.T) (*Actor, *rpcclient.Client, *testnode.Node) {
	n := testnode.New(t)
	c, err := rpcclient.New(context.Background(), n.URL(), rpcclient.Options{
		Schema: testnode.Schema,
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(c.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.AwaitReady(ctx))
	return New(c), c, n
}

func mustIdentity(t *testing.T, uri string) *keys.Identity {
	id, err := keys.DeriveIdentity(uri)
	require.NoError(t, err)
	return id
}

func decodeSubmitted(t *testing.T, n *testnode.Node, i int) types.Extrinsic {
	sent := n.Submitted()
	require.Greater(t, len(sent), i)
	var ext types.Extrinsic
	require.NoError(t, codec.Decode(sent[i], &ext))
	return ext
}

func TestMakeCall(t *testing.T) {
	a, _, n := newTestActor(t)
	bob := mustIdentity(t, "//Bob")

	c, err := a.MakeCall("balances", "transferKeepAlive", bob.Address(), "12,345")
	require.NoError(t, err)
	require.Equal(t, "Balances.transfer_keep_alive", c.String())
	require.Equal(t, types.CallIndex{SectionIndex: 5, MethodIndex: 3}, c.Call.CallIndex)
	require.Equal(t, "00"+hex.EncodeToString(bob.PublicKey())+"e5c0", hex.EncodeToString(c.Call.Args))

	c, err = a.MakeCall("TemplateModule", "cause_error")
	require.NoError(t, err)
	require.Empty(t, c.Call.Args)

	for name, args := range map[string][]any{
		"no args":    nil,
		"extra args": {bob.Address(), 1, 2},
		"bad dest":   {"nobody", 1},
		"negative":   {bob.Address(), -1},
	} {
		_, err = a.MakeCall("Balances", "transfer_keep_alive", args...)
		require.ErrorIs(t, err, subrpc.ErrInvalidArgument, name)
	}
	_, err = a.MakeCall("Balances", "burn", 1)
	require.ErrorIs(t, err, subrpc.ErrInvalidArgument)

	// No I/O for building.
	require.Zero(t, n.Requests("system_accountNextIndex"))

	c, err = a.MakeRawCall("System", "remark", []byte{0x04, 0x01})
	require.NoError(t, err)
	require.Equal(t, types.Args{0x04, 0x01}, c.Call.Args)
	_, err = a.MakeRawCall("System", "nope", nil)
	require.ErrorIs(t, err, subrpc.ErrInvalidArgument)
}

func TestSignAndSend(t *testing.T) {
	a, _, n := newTestActor(t)
	alice := mustIdentity(t, "//Alice")
	n.SetAccount(alice.PublicKey(), registry.AccountInfo{Nonce: 5})

	c, err := a.MakeCall("TemplateModule", "do_something", 42)
	require.NoError(t, err)
	s, err := a.Sign(c, alice)
	require.NoError(t, err)
	require.Equal(t, alice.Address(), s.Signer)
	require.EqualValues(t, 5, s.Nonce)
	_, ok := s.Submitted()
	require.False(t, ok)

	h, err := a.Send(s)
	require.NoError(t, err)
	require.Equal(t, testnode.SubmitHash, h)
	got, ok := s.Submitted()
	require.True(t, ok)
	require.Equal(t, h, got)

	ext := decodeSubmitted(t, n, 0)
	require.True(t, ext.IsSigned())
	require.True(t, ext.Signature.Era.IsImmortalEra)
	require.True(t, ext.Signature.Signer.IsID)
	require.Equal(t, alice.PublicKey(), ext.Signature.Signer.AsID[:])
	nonce := ext.Signature.Nonce
	require.EqualValues(t, 5, (*big.Int)(&nonce).Uint64())
	require.Equal(t, c.Call.CallIndex, ext.Method.CallIndex)
	require.Equal(t, c.Call.Args, ext.Method.Args)

	raw, err := s.Bytes()
	require.NoError(t, err)
	require.Equal(t, n.Submitted()[0], raw)

	_, err = a.Send(s)
	require.ErrorIs(t, err, subrpc.ErrInvalidArgument)
	require.Len(t, n.Submitted(), 1)

	_, err = a.Send(&SignedCommand{Command: *c})
	require.ErrorIs(t, err, subrpc.ErrInvalidArgument)
}

func TestSendCall(t *testing.T) {
	a, _, n := newTestActor(t)
	alice := mustIdentity(t, "//Alice")
	bob := mustIdentity(t, "//Bob")

	s, h, err := a.SendCall(alice, "Balances", "transfer_keep_alive", bob, 12345)
	require.NoError(t, err)
	require.Equal(t, testnode.SubmitHash, h)
	require.Equal(t, "Balances.transfer_keep_alive", s.Command.String())

	c, err := a.MakeCall("System", "remark", "0x1234")
	require.NoError(t, err)
	h, err = a.SignAndSend(c, bob)
	require.NoError(t, err)
	require.Equal(t, testnode.SubmitHash, h)

	ext := decodeSubmitted(t, n, 1)
	require.Equal(t, bob.PublicKey(), ext.Signature.Signer.AsID[:])

	_, _, err = a.SendCall(alice, "Balances", "transfer_keep_alive", "bad address", 1)
	require.ErrorIs(t, err, subrpc.ErrInvalidArgument)
	require.Len(t, n.Submitted(), 2)
}

func TestSendRejected(t *testing.T) {
	a, _, n := newTestActor(t)
	alice := mustIdentity(t, "//Alice")

	n.SetSubmitError(subrpc.NewError(subrpc.InvalidTransactionCode, "Invalid Transaction", "Inability to pay some fees (e.g. account balance too low)"))
	_, h, err := a.SendCall(alice, "System", "remark", "0x00")
	require.ErrorIs(t, err, subrpc.ErrRejected)
	require.Equal(t, types.Hash{}, h)

	var rpcErr *subrpc.Error
	require.True(t, errors.As(err, &rpcErr))
	require.EqualValues(t, subrpc.InvalidTransactionCode, rpcErr.Code)
	require.Equal(t, "Inability to pay some fees (e.g. account balance too low)", rpcErr.Reason())
	require.Empty(t, n.Submitted())
}

func TestSendConnectionLost(t *testing.T) {
	a, c, _ := newTestActor(t)
	alice := mustIdentity(t, "//Alice")

	cmd, err := a.MakeCall("System", "remark", "0x00")
	require.NoError(t, err)
	s, err := a.Sign(cmd, alice)
	require.NoError(t, err)

	c.Close()
	_, err = a.Send(s)
	require.Error(t, err)
	require.NotErrorIs(t, err, subrpc.ErrRejected)
	_, ok := s.Submitted()
	require.False(t, ok)
}

func TestSignErrors(t *testing.T) {
	a, _, _ := newTestActor(t)
	cmd, err := a.MakeCall("System", "remark", "0x00")
	require.NoError(t, err)

	_, err = a.Sign(cmd, nil)
	require.ErrorIs(t, err, subrpc.ErrSigning)

	_, err = a.Sign(nil, mustIdentity(t, "//Alice"))
	require.ErrorIs(t, err, subrpc.ErrInvalidArgument)
}

func TestTunedSign(t *testing.T) {
	_, c, _ := newTestActor(t)
	alice := mustIdentity(t, "//Alice")

	a := NewTuned(c, Options{
		Tip: big.NewInt(100),
		Modifier: func(o *types.SignatureOptions) error {
			o.Nonce = types.NewUCompactFromUInt(10)
			return nil
		},
	})
	cmd, err := a.MakeCall("System", "remark", "0x00")
	require.NoError(t, err)
	s, err := a.Sign(cmd, alice)
	require.NoError(t, err)
	require.EqualValues(t, 10, s.Nonce)
	tip := s.Extrinsic.Signature.Tip
	require.EqualValues(t, 100, (*big.Int)(&tip).Uint64())

	a = NewTuned(c, Options{Modifier: func(*types.SignatureOptions) error {
		return errors.New("no way")
	}})
	_, err = a.Sign(cmd, alice)
	require.Error(t, err)
}

func TestWait(t *testing.T) {
	a, _, n := newTestActor(t)
	alice := mustIdentity(t, "//Alice")
	require.IsType(t, &EventWaiter{}, a.Waiter)

	s, _, err := a.SendCall(alice, "TemplateModule", "do_something", 1)
	require.NoError(t, err)

	type res struct {
		block uint32
		err   error
	}
	done := make(chan res, 1)
	go func() {
		b, err := a.Wait(context.Background(), s, nil)
		done <- res{b, err}
	}()
	require.Eventually(t, func() bool { return n.Subscriptions() == 1 }, 5*time.Second, 10*time.Millisecond)

	// Not included yet.
	n.PushHead()
	select {
	case r := <-done:
		t.Fatalf("unexpected result: %d, %v", r.block, r.err)
	case <-time.After(200 * time.Millisecond):
	}
	n.SetAccount(alice.PublicKey(), registry.AccountInfo{Nonce: 1})
	included := n.PushHead()

	select {
	case r := <-done:
		require.NoError(t, r.err)
		require.Equal(t, included, r.block)
	case <-time.After(5 * time.Second):
		t.Fatal("no inclusion")
	}
	require.Eventually(t, func() bool { return n.Subscriptions() == 0 }, 5*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	s, _, err = a.SendCall(alice, "TemplateModule", "do_something", 2)
	require.NoError(t, err)
	_, err = a.Wait(ctx, s, nil)
	require.ErrorIs(t, err, ErrContextDone)

	cmd, err := a.MakeCall("System", "remark", "0x00")
	require.NoError(t, err)
	s, err = a.Sign(cmd, alice)
	require.NoError(t, err)
	_, err = a.Wait(context.Background(), s, nil)
	require.ErrorIs(t, err, ErrNotSubmitted)

	sendErr := errors.New("send failed")
	_, err = a.Wait(context.Background(), s, sendErr)
	require.ErrorIs(t, err, sendErr)
}

func TestNullWaiter(t *testing.T) {
	_, err := NewNullWaiter().Wait(context.Background(), nil, nil)
	require.ErrorIs(t, err, ErrAwaitingNotSupported)
}
