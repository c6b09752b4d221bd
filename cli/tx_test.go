package main

import (
	"bytes"
	"math/big"
	"testing"
	"time"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/nspcc-dev/substrate-go/internal/testnode"
	"github.com/nspcc-dev/substrate-go/pkg/registry"
	"github.com/nspcc-dev/substrate-go/pkg/subrpc"
	"github.com/stretchr/testify/require"
)

func decodeSubmitted(t *testing.T, n *testnode.Node, i int) types.Extrinsic {
	sub := n.Submitted()
	require.Greater(t, len(sub), i)
	var ext types.Extrinsic
	require.NoError(t, codec.Decode(sub[i], &ext))
	return ext
}

func TestTxRemark(t *testing.T) {
	e := newExecutor(t, true)

	e.Run(t, "substrate-go", "tx", "remark", "-r", e.URL(), "--seed", "//Alice", "0x1234")
	e.checkNextLine(t, "^"+testnode.SubmitHash.Hex()+"$")
	e.checkEOF(t)

	ext := decodeSubmitted(t, e.Node, 0)
	require.True(t, ext.IsSigned())
	require.Equal(t, mustIdentity(t, "//Alice").PublicKey(), ext.Signature.Signer.AsID[:])
	require.Equal(t, types.CallIndex{SectionIndex: 0, MethodIndex: 0}, ext.Method.CallIndex)
	require.Equal(t, []byte{0x08, 0x12, 0x34}, []byte(ext.Method.Args))

	t.Run("text", func(t *testing.T) {
		e.Run(t, "substrate-go", "tx", "remark", "-r", e.URL(), "--seed", "//Alice", "hi")
		ext := decodeSubmitted(t, e.Node, 1)
		require.Equal(t, []byte{0x08, 'h', 'i'}, []byte(ext.Method.Args))
	})
	t.Run("no data", func(t *testing.T) {
		e.RunWithError(t, "substrate-go", "tx", "remark", "-r", e.URL(), "--seed", "//Alice")
	})
}

func TestTxSignerPrompt(t *testing.T) {
	e := newExecutor(t, true)

	e.In.WriteString("//Bob\r")
	e.Run(t, "substrate-go", "tx", "do-something", "-r", e.URL(), "42")
	e.checkNextLine(t, "^"+testnode.SubmitHash.Hex()+"$")
	ext := decodeSubmitted(t, e.Node, 0)
	require.Equal(t, mustIdentity(t, "//Bob").PublicKey(), ext.Signature.Signer.AsID[:])
	require.Equal(t, types.CallIndex{SectionIndex: 8, MethodIndex: 0}, ext.Method.CallIndex)
	require.Equal(t, []byte{42, 0, 0, 0}, []byte(ext.Method.Args))

	e.In.WriteString("\r")
	e.RunWithError(t, "substrate-go", "tx", "do-something", "-r", e.URL(), "42")
	e.In.WriteString("//Bob\r")
	e.RunWithError(t, "substrate-go", "tx", "do-something", "-r", e.URL(), "notanumber")
	require.Len(t, e.Node.Submitted(), 1)
}

func TestTxTransfer(t *testing.T) {
	e := newExecutor(t, true)

	e.Run(t, "substrate-go", "tx", "transfer", "-r", e.URL(), "--seed", "//Alice", "--tip", "100", bobAddr, "12,345")
	e.checkNextLine(t, "^"+testnode.SubmitHash.Hex()+"$")
	e.checkEOF(t)

	ext := decodeSubmitted(t, e.Node, 0)
	require.Equal(t, types.CallIndex{SectionIndex: 5, MethodIndex: 3}, ext.Method.CallIndex)
	tip := ext.Signature.Tip
	require.EqualValues(t, 100, (*big.Int)(&tip).Uint64())

	e.Run(t, "substrate-go", "tx", "transfer", "-r", e.URL(), "--seed", "//Alice", "--decimal", bobAddr, "1.5")
	amount, err := codec.Encode(types.NewUCompactFromUInt(1500000000000))
	require.NoError(t, err)
	require.True(t, bytes.HasSuffix(decodeSubmitted(t, e.Node, 1).Method.Args, amount))

	e.RunWithError(t, "substrate-go", "tx", "transfer", "-r", e.URL(), "--seed", "//Alice", bobAddr)
	e.RunWithError(t, "substrate-go", "tx", "transfer", "-r", e.URL(), "--seed", "//Alice", "--tip", "lots", bobAddr, "1")
	e.RunWithErrorCheck(t, "bad amount", "substrate-go", "tx", "transfer", "-r", e.URL(), "--seed", "//Alice", "-D", bobAddr, "0.0000000000001")
	require.Len(t, e.Node.Submitted(), 2)
}

func TestTxCall(t *testing.T) {
	e := newExecutor(t, true)

	e.Run(t, "substrate-go", "tx", "call", "-r", e.URL(), "--seed", "//Alice", "Balances.transferKeepAlive", bobAddr, "1")
	e.checkNextLine(t, "^"+testnode.SubmitHash.Hex()+"$")
	require.Equal(t, types.CallIndex{SectionIndex: 5, MethodIndex: 3}, decodeSubmitted(t, e.Node, 0).Method.CallIndex)

	e.Run(t, "substrate-go", "tx", "call", "-r", e.URL(), "--seed", "//Alice", "TemplateModule.cause_error")
	require.Equal(t, types.CallIndex{SectionIndex: 8, MethodIndex: 1}, decodeSubmitted(t, e.Node, 1).Method.CallIndex)

	e.RunWithErrorCheck(t, "invalid argument", "substrate-go", "tx", "call", "-r", e.URL(), "--seed", "//Alice", "Unknown.call")
	e.RunWithError(t, "substrate-go", "tx", "call", "-r", e.URL(), "--seed", "//Alice", "Balances.transfer_keep_alive", bobAddr)
	require.Len(t, e.Node.Submitted(), 2)
}

func TestTxRaw(t *testing.T) {
	e := newExecutor(t, true)

	e.Run(t, "substrate-go", "tx", "raw", "-r", e.URL(), "--seed", "//Alice", "System.remark", "0x0c010203")
	e.checkNextLine(t, "^"+testnode.SubmitHash.Hex()+"$")
	ext := decodeSubmitted(t, e.Node, 0)
	require.Equal(t, []byte{0x0c, 1, 2, 3}, []byte(ext.Method.Args))

	e.Run(t, "substrate-go", "tx", "raw", "-r", e.URL(), "--seed", "//Alice", "Kitties.create")
	require.Empty(t, decodeSubmitted(t, e.Node, 1).Method.Args)

	e.RunWithError(t, "substrate-go", "tx", "raw", "-r", e.URL(), "--seed", "//Alice", "System.remark", "0xzz")
	e.RunWithError(t, "substrate-go", "tx", "raw", "-r", e.URL(), "--seed", "//Alice")
}

func TestTxRejected(t *testing.T) {
	e := newExecutor(t, true)
	e.Node.SetSubmitError(subrpc.NewError(1010, "Invalid Transaction", "Inability to pay some fees"))

	e.RunWithErrorCheck(t, "failed to send", "substrate-go", "tx", "remark", "-r", e.URL(), "--seed", "//Alice", "0x00")
	e.checkEOF(t)
}

func TestTxAwait(t *testing.T) {
	e := newExecutor(t, true)
	alice := mustIdentity(t, "//Alice")

	go func() {
		for e.Node.Subscriptions() == 0 {
			time.Sleep(10 * time.Millisecond)
		}
		e.Node.SetAccount(alice.PublicKey(), registry.AccountInfo{Nonce: 1})
		e.Node.PushHead()
	}()
	e.Run(t, "substrate-go", "tx", "remark", "-r", e.URL(), "--seed", "//Alice", "--await", "0x00")
	e.checkNextLine(t, "^"+testnode.SubmitHash.Hex()+"$")
	e.checkNextLine(t, "^Included in block 1$")
	e.checkEOF(t)

	t.Run("timeout", func(t *testing.T) {
		e.RunWithErrorCheck(t, "failed to await", "substrate-go", "tx", "remark", "-r", e.URL(), "--seed", "//Alice", "--await", "--timeout", "300ms", "0x00")
	})
}
