package registry

import "github.com/centrifuge/go-substrate-rpc-client/v4/types"

type (
	// AccountInfo is frame_system account state.
	AccountInfo struct {
		Nonce       types.U32
		Consumers   types.U32
		Providers   types.U32
		Sufficients types.U32
		Data        AccountData
	}

	// AccountData is pallet_balances account data.
	AccountData struct {
		Free     types.U128
		Reserved types.U128
		Frozen   types.U128
		Flags    types.U128
	}

	// ClaimInfo is a proof-of-existence claim: owner and the block it was
	// created at.
	ClaimInfo struct {
		Owner types.AccountID
		Block types.U32
	}

	// RuntimeVersion is SCALE-encoded runtime version returned by the
	// Core_version runtime call.
	RuntimeVersion struct {
		SpecName           types.Text
		ImplName           types.Text
		AuthoringVersion   types.U32
		SpecVersion        types.U32
		ImplVersion        types.U32
		APIs               []RuntimeAPI `json:"apis"`
		TransactionVersion types.U32
		StateVersion       types.U8
	}

	// RuntimeAPI is an API id with its version.
	RuntimeAPI struct {
		ID      [8]byte `json:"id"`
		Version types.U32
	}
)
