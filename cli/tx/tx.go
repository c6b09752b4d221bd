/*
Package tx implements commands sending extrinsics to the node.
*/
package tx

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/nspcc-dev/substrate-go/cli/cmdargs"
	"github.com/nspcc-dev/substrate-go/cli/options"
	"github.com/nspcc-dev/substrate-go/pkg/encoding/fixedn"
	"github.com/nspcc-dev/substrate-go/pkg/rpcclient"
	"github.com/nspcc-dev/substrate-go/pkg/rpcclient/actor"
	"github.com/urfave/cli"
)

// NewCommands returns 'tx' command.
func NewCommands() []cli.Command {
	txFlags := append([]cli.Flag{
		options.Seed,
		cli.BoolFlag{
			Name:  "await",
			Usage: "wait for the extrinsic to be included into a block",
		},
		cli.StringFlag{
			Name:  "tip",
			Usage: "tip for the block author in the smallest token units",
		},
	}, options.Common...)
	return []cli.Command{{
		Name:  "tx",
		Usage: "Sign and send extrinsics",
		Subcommands: []cli.Command{
			{
				Name:      "remark",
				Usage:     "Make a remark (System.remark)",
				UsageText: "substrate-go tx remark -r endpoint [--seed uri] [--await] data",
				Description: `Sends System.remark extrinsic with the given data, 0x-prefixed data is
   hex-decoded, anything else is sent as text.`,
				Action: func(ctx *cli.Context) error {
					return sendFixed(ctx, "System", "remark", 1)
				},
				Flags: txFlags,
			},
			{
				Name:      "transfer",
				Usage:     "Transfer funds keeping the sender alive (Balances.transfer_keep_alive)",
				UsageText: "substrate-go tx transfer -r endpoint [--seed uri] [--await] address amount",
				Description: `Transfers the amount (in the smallest token units) to the given address.
   The node refuses transfers that would leave the sender below the existential
   deposit. With --decimal the amount is given in whole tokens, like 1.5,
   and converted using the token decimals announced by the node.

   Example:
     substrate-go tx transfer --seed //Alice 5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty 12345`,
				Action: sendTransfer,
				Flags: append([]cli.Flag{
					cli.BoolFlag{
						Name:  "decimal, D",
						Usage: "amount is given in tokens with fractional part (like 1.5) using the chain decimals",
					},
				}, txFlags...),
			},
			{
				Name:      "do-something",
				Usage:     "Store a number (TemplateModule.do_something)",
				UsageText: "substrate-go tx do-something -r endpoint [--seed uri] [--await] number",
				Action: func(ctx *cli.Context) error {
					return sendFixed(ctx, "TemplateModule", "do_something", 1)
				},
				Flags: txFlags,
			},
			{
				Name:      "call",
				Usage:     "Call any known pallet method",
				UsageText: "substrate-go tx call -r endpoint [--seed uri] [--await] Module.method [arg...]",
				Description: `Builds, signs and sends a call of the given pallet method.

` + cmdargs.ArgsParsingDoc,
				Action: sendCall,
				Flags:  txFlags,
			},
			{
				Name:      "raw",
				Usage:     "Call pallet method with already encoded arguments",
				UsageText: "substrate-go tx raw -r endpoint [--seed uri] [--await] Module.method [hex]",
				Description: `Sends a call of any method present in the runtime metadata, arguments
   are given as hex-encoded SCALE data and are not checked.`,
				Action: sendRaw,
				Flags:  txFlags,
			},
		},
	}}
}

func sendFixed(ctx *cli.Context, module, method string, args int) error {
	if err := cmdargs.EnsureCount(ctx, args, args); err != nil {
		return err
	}
	return send(ctx, func(_ *rpcclient.Client, a *actor.Actor) (*actor.Command, error) {
		return a.MakeCall(module, method, cmdargs.Args(ctx.Args())...)
	})
}

func sendTransfer(ctx *cli.Context) error {
	if err := cmdargs.EnsureCount(ctx, 2, 2); err != nil {
		return err
	}
	var (
		dest       = ctx.Args()[0]
		amount any = ctx.Args()[1]
	)
	return send(ctx, func(c *rpcclient.Client, a *actor.Actor) (*actor.Command, error) {
		if ctx.Bool("decimal") {
			props, err := c.Properties()
			if err != nil {
				return nil, err
			}
			v, err := fixedn.FromString(ctx.Args()[1], int(props.Decimals()))
			if err != nil {
				return nil, fmt.Errorf("bad amount %q: %w", ctx.Args()[1], err)
			}
			amount = v
		}
		return a.MakeCall("Balances", "transfer_keep_alive", dest, amount)
	})
}

func sendCall(ctx *cli.Context) error {
	module, method, args, exitErr := cmdargs.GetPairFromContext(ctx)
	if exitErr != nil {
		return exitErr
	}
	return send(ctx, func(_ *rpcclient.Client, a *actor.Actor) (*actor.Command, error) {
		return a.MakeCall(module, method, args...)
	})
}

func sendRaw(ctx *cli.Context) error {
	if err := cmdargs.EnsureCount(ctx, 1, 2); err != nil {
		return err
	}
	module, method, _, exitErr := cmdargs.GetPairFromContext(ctx)
	if exitErr != nil {
		return exitErr
	}
	var data []byte
	if ctx.NArg() == 2 {
		var err error
		data, err = hex.DecodeString(strings.TrimPrefix(ctx.Args()[1], "0x"))
		if err != nil {
			return cli.NewExitError(fmt.Errorf("bad call arguments: %w", err), 1)
		}
	}
	return send(ctx, func(_ *rpcclient.Client, a *actor.Actor) (*actor.Command, error) {
		return a.MakeRawCall(module, method, data)
	})
}

// send connects to the node, creates a command with build, signs and sends it
// and waits for its inclusion if --await is set. The extrinsic hash is
// printed on success.
func send(ctx *cli.Context, build func(*rpcclient.Client, *actor.Actor) (*actor.Command, error)) error {
	id, err := options.GetIdentity(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()
	c, a, exitErr := options.GetRPCWithActor(gctx, ctx)
	if exitErr != nil {
		return exitErr
	}
	defer c.Close()

	cmd, err := build(c, a)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	s, err := a.Sign(cmd, id)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	h, err := a.Send(s)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("failed to send %s: %w", cmd, err), 1)
	}
	fmt.Fprintln(ctx.App.Writer, h.Hex())
	if !ctx.Bool("await") {
		return nil
	}
	block, err := a.Wait(gctx, s, nil)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("failed to await %s: %w", cmd, err), 1)
	}
	fmt.Fprintf(ctx.App.Writer, "Included in block %d\n", block)
	return nil
}
