/*
Package identity implements commands dealing with signing identities and
addresses. They don't need a node.
*/
package identity

import (
	"encoding/hex"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/nspcc-dev/substrate-go/cli/cmdargs"
	"github.com/nspcc-dev/substrate-go/cli/options"
	"github.com/nspcc-dev/substrate-go/pkg/encoding/address"
	"github.com/urfave/cli"
)

var prefixFlag = cli.IntFlag{
	Name:  "prefix, p",
	Value: -1,
	Usage: "SS58 network prefix for the address (configured or 42 by default)",
}

// NewCommands returns 'keys' command.
func NewCommands() []cli.Command {
	flags := []cli.Flag{prefixFlag, options.Seed, options.ConfigFile}
	return []cli.Command{{
		Name:  "keys",
		Usage: "Derive identities and convert addresses",
		Subcommands: []cli.Command{
			{
				Name:      "derive",
				Usage:     "Derive sr25519 identity from secret URI",
				UsageText: "substrate-go keys derive [--seed uri] [--prefix n]",
				Description: `Derives an identity from the secret URI and prints its address and public
   key. Secret URI is a mnemonic or 0x-prefixed hex seed with an optional
   derivation path like '//hard/soft', '//Alice' is a well-known development
   key. It's requested interactively if not given.`,
				Action: derive,
				Flags:  flags,
			},
			{
				Name:      "address",
				Usage:     "Convert address or public key to address with another prefix",
				UsageText: "substrate-go keys address [--prefix n] address|0xpublickey",
				Action:    convert,
				Flags:     []cli.Flag{prefixFlag, options.ConfigFile},
			},
		},
	}}
}

func getPrefix(ctx *cli.Context) (uint16, error) {
	if _, err := options.GetConfigFromContext(ctx); err != nil {
		return 0, err
	}
	p := ctx.Int("prefix")
	if p < 0 {
		return address.Prefix, nil
	}
	if p > address.MaxPrefix {
		return 0, fmt.Errorf("prefix %d is out of range", p)
	}
	return uint16(p), nil
}

func derive(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	prefix, err := getPrefix(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	id, err := options.GetIdentity(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	addr, err := address.EncodeWithPrefix(id.PublicKey(), prefix)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	tw := tabwriter.NewWriter(ctx.App.Writer, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Address:\t%s\n", addr)
	_, _ = fmt.Fprintf(tw, "Public key:\t0x%s\n", hex.EncodeToString(id.PublicKey()))
	_, _ = fmt.Fprintf(tw, "Prefix:\t%d\n", prefix)
	return tw.Flush()
}

func convert(ctx *cli.Context) error {
	if err := cmdargs.EnsureCount(ctx, 1, 1); err != nil {
		return err
	}
	prefix, err := getPrefix(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	var (
		arg = ctx.Args().First()
		pub []byte
	)
	if strings.HasPrefix(arg, "0x") {
		pub, err = hex.DecodeString(arg[2:])
	} else {
		_, pub, err = address.DecodeAny(arg)
	}
	if err != nil {
		return cli.NewExitError(fmt.Errorf("bad address or key %q: %w", arg, err), 1)
	}
	addr, err := address.EncodeWithPrefix(pub, prefix)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Fprintln(ctx.App.Writer, addr)
	return nil
}
