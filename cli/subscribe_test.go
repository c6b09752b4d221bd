package main

import (
	"testing"
	"time"

	"github.com/nspcc-dev/substrate-go/internal/testnode"
	"github.com/nspcc-dev/substrate-go/pkg/registry"
)

// afterSubscribed runs f in a separate goroutine once the node has n active
// subscriptions.
func afterSubscribed(n *testnode.Node, count int, f func()) {
	go func() {
		for n.Subscriptions() < count {
			time.Sleep(10 * time.Millisecond)
		}
		f()
	}()
}

func TestSubscribeHeads(t *testing.T) {
	t.Run("best", func(t *testing.T) {
		e := newExecutor(t, true)
		afterSubscribed(e.Node, 1, func() {
			e.Node.PushHead()
			e.Node.PushHead()
		})
		e.Run(t, "substrate-go", "subscribe", "heads", "-r", e.URL(), "--count", "2")
		e.checkNextLine(t, `^Chain is at block: #1 \(parent `+testnode.GenesisHash.Hex()+`\)$`)
		e.checkNextLine(t, `^Chain is at block: #2 \(parent 0x[0-9a-f]{64}\)$`)
		e.checkEOF(t)
	})
	t.Run("finalized", func(t *testing.T) {
		e := newExecutor(t, true)
		afterSubscribed(e.Node, 1, func() {
			e.Node.PushHead()
		})
		e.Run(t, "substrate-go", "subscribe", "heads", "-r", e.URL(), "--finalized", "-n", "1", "--dump")
		e.checkNextLine(t, `^\(\*types\.Header\)\(0x[0-9a-f]+\)\({$`)
		e.skipUntil(t, "ParentHash: (types.Hash)")
		e.skipUntil(t, "Number: (types.BlockNumber) 1,")
	})
	t.Run("timeout", func(t *testing.T) {
		e := newExecutor(t, true)
		e.Run(t, "substrate-go", "subscribe", "heads", "-r", e.URL(), "--timeout", "200ms")
		e.checkEOF(t)
	})
	t.Run("arguments", func(t *testing.T) {
		e := newExecutor(t, true)
		e.RunWithError(t, "substrate-go", "subscribe", "heads", "-r", e.URL(), "extra")
	})
}

func TestSubscribeStorage(t *testing.T) {
	e := newExecutor(t, true)
	alice := mustIdentity(t, "//Alice")

	afterSubscribed(e.Node, 1, func() {
		e.Node.SetAccount(alice.PublicKey(), registry.AccountInfo{Nonce: 1})
	})
	e.Run(t, "substrate-go", "subscribe", "storage", "-r", e.URL(), "--count", "2", "System.Account", aliceAddr)
	e.checkNextLine(t, `^System.Account\[`+aliceAddr+`\]: {"nonce":"0",`)
	e.checkNextLine(t, `^System.Account\[`+aliceAddr+`\]: {"nonce":"1",`)
	e.checkEOF(t)

	t.Run("unknown item", func(t *testing.T) {
		e.RunWithErrorCheck(t, "invalid argument", "substrate-go", "subscribe", "storage", "-r", e.URL(), "-n", "1", "System.Unknown")
	})
	t.Run("no pair", func(t *testing.T) {
		e.RunWithError(t, "substrate-go", "subscribe", "storage", "-r", e.URL(), "-n", "1")
	})
}
