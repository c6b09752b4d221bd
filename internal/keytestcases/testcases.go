package keytestcases

// Ktype represents key testcase values (different encodings of the key).
type Ktype struct {
	URI,
	Address,
	PublicKey string
	Invalid bool
}

// Arr contains a set of well-known development keys in Ktype format.
var Arr = []Ktype{
	{
		URI:       "//Alice",
		Address:   "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY",
		PublicKey: "d43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d",
	},
	{
		URI:       "//Bob",
		Address:   "5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty",
		PublicKey: "8eaf04151687736326c9fea17e25fc5287613693c912909cb226aa4794f26a48",
	},
	{
		URI:     "",
		Invalid: true,
	},
	{
		URI:     "not a valid mnemonic phrase",
		Invalid: true,
	},
	{
		URI:     "//Alice///",
		Invalid: true,
	},
}
