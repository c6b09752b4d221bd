package main

import (
	"testing"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/nspcc-dev/substrate-go/internal/testnode"
	"github.com/stretchr/testify/require"
)

func TestWalkthrough(t *testing.T) {
	e := newExecutor(t, true)
	var aura types.AccountID
	copy(aura[:], mustIdentity(t, "//Alice").PublicKey())
	e.Node.SetAuthorities(aura)

	// Heads, sender account and TemplateModule.Something.
	afterSubscribed(e.Node, 3, func() {
		e.Node.PushHead()
	})
	e.Run(t, "substrate-go", "walkthrough", "-r", e.URL(), "--blocks", "1")

	e.checkNextLine(t, `^--- constants$`)
	e.checkNextLine(t, `^Balances.ExistentialDeposit: "500"$`)
	e.checkNextLine(t, `^Timestamp.MinimumPeriod: "3,000"$`)
	e.checkNextLine(t, `^--- storage$`)
	e.checkNextLine(t, `^Timestamp.Now: "0"$`)
	e.skipUntil(t, "--- node")
	e.checkNextLine(t, `^Chain: Development$`)
	e.skipUntil(t, "Metadata:")
	var pallets []string
	for line := e.getNextLine(t); line != "--- multi"; line = e.getNextLine(t) {
		pallets = append(pallets, line)
	}
	require.Subset(t, pallets, []string{"Balances", "System", "TemplateModule", "Timestamp"})
	e.skipUntil(t, "--- identities")
	e.checkNextLine(t, "^"+aliceAddr+" "+bobAddr+"$")
	e.checkNextLine(t, `^--- extrinsics$`)
	e.checkNextLine(t, `^System.remark.* sent with hash `+testnode.SubmitHash.Hex())
	e.checkNextLine(t, `^Balances.transfer_keep_alive.* sent with hash `+testnode.SubmitHash.Hex())
	e.checkNextLine(t, `^TemplateModule.do_something.* sent with hash `+testnode.SubmitHash.Hex())
	e.checkNextLine(t, `^--- subscriptions$`)
	var sub []string
	for range 3 {
		sub = append(sub, e.getNextLine(t))
	}
	require.Contains(t, sub, "Chain is at block: #1")
	require.Contains(t, sub, "Current nonce is 0, balance is 0 (0 UNIT)")
	e.checkNextLine(t, `^--- runtime calls$`)
	e.checkNextLine(t, `^AccountNonceApi.account_nonce\[`+aliceAddr+`\]: "0"$`)
	e.checkNextLine(t, `^AuraApi.authorities: \["`+aliceAddr+`"\]$`)
	e.checkNextLine(t, `^Best block: 1$`)
	e.checkEOF(t)
	require.Len(t, e.Node.Submitted(), 3)

	t.Run("unreachable", func(t *testing.T) {
		e.RunWithError(t, "substrate-go", "walkthrough", "-r", testnode.Unreachable(t), "--timeout", "1s")
	})
	t.Run("bad identity", func(t *testing.T) {
		e.RunWithError(t, "substrate-go", "walkthrough", "-r", e.URL(), "--to", "not a valid mnemonic phrase")
	})
}
