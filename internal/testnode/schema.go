package testnode

import (
	"math/big"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/nspcc-dev/substrate-go/pkg/metadata"
	"github.com/nspcc-dev/substrate-go/pkg/registry"
	"github.com/nspcc-dev/substrate-go/pkg/subrpc/result"
)

// Constants served by the node.
const (
	ExistentialDeposit = 500
	MinimumPeriod      = 3000
	BlockHashCount     = 2400
	SpecVersion        = 100
	TxVersion          = 1
)

func mustEncode(v any) []byte {
	b, err := codec.Encode(v)
	if err != nil {
		panic(err)
	}
	return b
}

// StaticSchema returns the schema of a node-template runtime with the
// kitties and proof-of-existence pallets.
func StaticSchema() *metadata.Static {
	bc := []metadata.Hasher{metadata.Blake2_128Concat}
	return &metadata.Static{
		Constants: map[string][]byte{
			"Balances.ExistentialDeposit": mustEncode(types.NewU128(*big.NewInt(ExistentialDeposit))),
			"Timestamp.MinimumPeriod":     mustEncode(types.U64(MinimumPeriod)),
			"System.BlockHashCount":       mustEncode(types.U32(BlockHashCount)),
		},
		Entries: []metadata.StorageEntry{
			{Module: "Timestamp", Item: "Now", Fallback: make([]byte, 8)},
			{Module: "System", Item: "Account", Hashers: bc, Fallback: make([]byte, 80)},
			{Module: "System", Item: "Number", Fallback: make([]byte, 4)},
			{Module: "System", Item: "BlockHash", Hashers: []metadata.Hasher{metadata.Twox64Concat}, Fallback: make([]byte, 32)},
			{Module: "Balances", Item: "TotalIssuance", Fallback: make([]byte, 16)},
			{Module: "TemplateModule", Item: "Something", Optional: true},
			{Module: "Kitties", Item: "NextKittyId", Fallback: make([]byte, 4)},
			{Module: "Kitties", Item: "Kitties", Hashers: bc, Optional: true},
			{Module: "Kitties", Item: "KittyOwner", Hashers: bc, Optional: true},
			{Module: "PoeModule", Item: "Proofs", Hashers: bc, Optional: true},
		},
		Calls: map[string]types.CallIndex{
			"System.remark":                 {SectionIndex: 0, MethodIndex: 0},
			"Balances.transfer_allow_death": {SectionIndex: 5, MethodIndex: 0},
			"Balances.transfer_keep_alive":  {SectionIndex: 5, MethodIndex: 3},
			"TemplateModule.do_something":   {SectionIndex: 8, MethodIndex: 0},
			"TemplateModule.cause_error":    {SectionIndex: 8, MethodIndex: 1},
			"Kitties.create":                {SectionIndex: 9, MethodIndex: 0},
			"Kitties.breed":                 {SectionIndex: 9, MethodIndex: 1},
			"Kitties.transfer":              {SectionIndex: 9, MethodIndex: 2},
			"PoeModule.create_claim":        {SectionIndex: 10, MethodIndex: 0},
			"PoeModule.revoke_claim":        {SectionIndex: 10, MethodIndex: 1},
			"PoeModule.transfer_claim":      {SectionIndex: 10, MethodIndex: 2},
		},
	}
}

// Schema can be used as rpcclient.Options.Schema, the node doesn't serve real
// metadata.
func Schema(string) (metadata.Schema, error) {
	return StaticSchema(), nil
}

// RuntimeVersion returns the runtime version served by the node.
func RuntimeVersion() result.RuntimeVersion {
	return result.RuntimeVersion{
		SpecName:         "node-template",
		ImplName:         "node-template",
		AuthoringVersion: 1,
		SpecVersion:      SpecVersion,
		ImplVersion:      1,
		APIs: []result.RuntimeAPI{
			{ID: registry.APIID("Core"), Version: 4},
			{ID: registry.APIID("AccountNonceApi"), Version: 1},
			{ID: registry.APIID("AuraApi"), Version: 1},
		},
		TransactionVersion: TxVersion,
		StateVersion:       1,
	}
}
