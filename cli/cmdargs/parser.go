/*
Package cmdargs contains helpers to parse positional command line arguments.
*/
package cmdargs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nspcc-dev/substrate-go/pkg/rpcclient/query"
	"github.com/urfave/cli"
)

const (
	// PairSeparator separates module and item names.
	PairSeparator = "."
	// KeyArgsSeparator separates storage item name from map keys in
	// composite queries.
	KeyArgsSeparator = ":"
)

// ArgsParsingDoc is a documentation for item arguments parsing.
const ArgsParsingDoc = `   Items are specified as 'Module.Item' pairs, both metadata ('System.Account',
   'transfer_keep_alive') and camelCase ('system.account', 'transferKeepAlive')
   spellings are accepted.

   Arguments are converted to the item parameter types:
    * integers are decimal numbers, ',' can be used to group digits;
    * accounts are SS58 addresses or 0x-prefixed hex public keys;
    * byte strings are 0x-prefixed hex values, anything else is taken
      as UTF-8 text;
    * hashes are 0x-prefixed hex values.`

// ErrNoPair is returned for missing 'Module.Item' argument.
var ErrNoPair = errors.New("no 'Module.Item' argument given")

// ParsePair splits 'Module.Item' string.
func ParsePair(s string) (string, string, error) {
	module, item, ok := strings.Cut(s, PairSeparator)
	if !ok || module == "" || item == "" {
		return "", "", fmt.Errorf("bad item %q: 'Module.Item' expected", s)
	}
	return module, item, nil
}

// ParseKey parses 'Module.Item[:arg[:arg]]' string into storage query key.
func ParseKey(s string) (query.Key, error) {
	parts := strings.Split(s, KeyArgsSeparator)
	module, item, err := ParsePair(parts[0])
	if err != nil {
		return query.Key{}, err
	}
	return query.NewKey(module, item, Args(parts[1:])...), nil
}

// Args converts string arguments to the form accepted by registry items.
func Args(args []string) []any {
	if len(args) == 0 {
		return nil
	}
	res := make([]any, len(args))
	for i := range args {
		res[i] = args[i]
	}
	return res
}

// GetPairFromContext returns module and item from the first command
// argument and the rest of arguments.
func GetPairFromContext(ctx *cli.Context) (string, string, []any, cli.ExitCoder) {
	if !ctx.Args().Present() {
		return "", "", nil, cli.NewExitError(ErrNoPair, 1)
	}
	module, item, err := ParsePair(ctx.Args().First())
	if err != nil {
		return "", "", nil, cli.NewExitError(err, 1)
	}
	return module, item, Args(ctx.Args().Tail()), nil
}

// EnsureNone returns an error if there are any positional arguments present.
// It can be used to check for them in commands that don't accept arguments.
func EnsureNone(ctx *cli.Context) cli.ExitCoder {
	if ctx.Args().Present() {
		return cli.NewExitError(fmt.Errorf("additional arguments given while this command expects none"), 1)
	}
	return nil
}

// EnsureCount returns an error if the number of positional arguments is not
// in [min, max] range.
func EnsureCount(ctx *cli.Context, min, max int) cli.ExitCoder {
	if n := ctx.NArg(); n < min || n > max {
		if min == max {
			return cli.NewExitError(fmt.Errorf("%d arguments expected, got %d", min, n), 1)
		}
		return cli.NewExitError(fmt.Errorf("from %d to %d arguments expected, got %d", min, max, n), 1)
	}
	return nil
}
