package registry

// Default returns a registry with the items of a node-template based chain
// with kitties and proof-of-existence pallets. Items the node doesn't have are
// dropped at bind time, so it's safe to use with any Substrate node.
func Default() *Registry {
	r := New()

	r.AddConstant(Constant{Module: "Balances", Name: "ExistentialDeposit", Value: Balance})
	r.AddConstant(Constant{Module: "Timestamp", Name: "MinimumPeriod", Value: U64})
	r.AddConstant(Constant{Module: "System", Name: "BlockHashCount", Value: U32})
	r.AddConstant(Constant{Module: "Balances", Name: "MaxLocks", Value: U32})

	r.AddStorage(Storage{Module: "Timestamp", Item: "Now", Value: U64})
	r.AddStorage(Storage{Module: "System", Item: "Account", Keys: []Codec{AccountID}, Value: Account})
	r.AddStorage(Storage{Module: "System", Item: "Number", Value: U32})
	r.AddStorage(Storage{Module: "System", Item: "BlockHash", Keys: []Codec{U32}, Value: Hash})
	r.AddStorage(Storage{Module: "Balances", Item: "TotalIssuance", Value: Balance})
	r.AddStorage(Storage{Module: "TemplateModule", Item: "Something", Value: U32})
	r.AddStorage(Storage{Module: "Kitties", Item: "NextKittyId", Value: U32})
	r.AddStorage(Storage{Module: "Kitties", Item: "Kitties", Keys: []Codec{U32}, Value: Kitty})
	r.AddStorage(Storage{Module: "Kitties", Item: "KittyOwner", Keys: []Codec{U32}, Value: AccountID})
	r.AddStorage(Storage{Module: "PoeModule", Item: "Proofs", Keys: []Codec{Bytes}, Value: Claim})

	r.AddCall(Call{Module: "System", Name: "remark", Params: []Param{{"remark", Bytes}}})
	r.AddCall(Call{Module: "Balances", Name: "transfer_keep_alive", Params: []Param{{"dest", Address}, {"value", Compact}}})
	r.AddCall(Call{Module: "Balances", Name: "transfer_allow_death", Params: []Param{{"dest", Address}, {"value", Compact}}})
	r.AddCall(Call{Module: "TemplateModule", Name: "do_something", Params: []Param{{"something", U32}}})
	r.AddCall(Call{Module: "TemplateModule", Name: "cause_error"})
	r.AddCall(Call{Module: "Kitties", Name: "create"})
	r.AddCall(Call{Module: "Kitties", Name: "breed", Params: []Param{{"kitty_1", U32}, {"kitty_2", U32}}})
	r.AddCall(Call{Module: "Kitties", Name: "transfer", Params: []Param{{"to", AccountID}, {"kitty_id", U32}}})
	r.AddCall(Call{Module: "PoeModule", Name: "create_claim", Params: []Param{{"claim", Bytes}}})
	r.AddCall(Call{Module: "PoeModule", Name: "revoke_claim", Params: []Param{{"claim", Bytes}}})
	r.AddCall(Call{Module: "PoeModule", Name: "transfer_claim", Params: []Param{{"claim", Bytes}, {"dest", AccountID}}})

	r.AddRuntimeCall(RuntimeCall{API: "AccountNonceApi", Method: "account_nonce", Params: []Param{{"account", AccountID}}, Result: U32})
	r.AddRuntimeCall(RuntimeCall{API: "AuraApi", Method: "authorities", Result: Aura})
	r.AddRuntimeCall(RuntimeCall{API: "Core", Method: "version", Result: Version})
	return r
}
