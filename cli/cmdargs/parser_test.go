package cmdargs

import (
	"flag"
	"testing"

	"github.com/nspcc-dev/substrate-go/pkg/rpcclient/query"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

func TestParseKey(t *testing.T) {
	testCases := map[string]query.Key{
		"Timestamp.Now":           query.NewKey("Timestamp", "Now"),
		"system.account:5Grw":     query.NewKey("system", "account", "5Grw"),
		"Kitties.Kitties:1":       query.NewKey("Kitties", "Kitties", "1"),
		"PoeModule.Proofs:0x1234": query.NewKey("PoeModule", "Proofs", "0x1234"),
	}
	for s, expected := range testCases {
		actual, err := ParseKey(s)
		require.NoError(t, err, s)
		require.Equal(t, expected, actual)
	}
	errorCases := []string{
		"",
		"Timestamp",
		".Now",
		"Timestamp.",
		":1",
	}
	for _, s := range errorCases {
		_, err := ParseKey(s)
		require.Error(t, err, s)
	}
}

func newContext(t *testing.T, args ...string) *cli.Context {
	set := flag.NewFlagSet("flagSet", flag.ContinueOnError)
	require.NoError(t, set.Parse(args))
	return cli.NewContext(cli.NewApp(), set, nil)
}

func TestGetPairFromContext(t *testing.T) {
	module, item, args, ec := GetPairFromContext(newContext(t, "Balances.transferKeepAlive", "5Grw", "12,345"))
	require.Nil(t, ec)
	require.Equal(t, "Balances", module)
	require.Equal(t, "transferKeepAlive", item)
	require.Equal(t, []any{"5Grw", "12,345"}, args)

	_, _, _, ec = GetPairFromContext(newContext(t))
	require.NotNil(t, ec)
	require.Equal(t, 1, ec.ExitCode())

	_, _, _, ec = GetPairFromContext(newContext(t, "Balances"))
	require.NotNil(t, ec)
}

func TestEnsure(t *testing.T) {
	require.Nil(t, EnsureNone(newContext(t)))
	require.NotNil(t, EnsureNone(newContext(t, "something")))

	require.Nil(t, EnsureCount(newContext(t, "a"), 1, 1))
	require.Nil(t, EnsureCount(newContext(t), 0, 1))
	require.NotNil(t, EnsureCount(newContext(t, "a", "b"), 1, 1))
	require.NotNil(t, EnsureCount(newContext(t), 1, 2))
}
