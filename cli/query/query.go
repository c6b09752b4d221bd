package query

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/davecgh/go-spew/spew"
	"github.com/nspcc-dev/substrate-go/cli/cmdargs"
	"github.com/nspcc-dev/substrate-go/cli/options"
	"github.com/nspcc-dev/substrate-go/pkg/human"
	"github.com/nspcc-dev/substrate-go/pkg/rpcclient/query"
	"github.com/urfave/cli"
)

// NewCommands returns 'query' command.
func NewCommands() []cli.Command {
	queryFlags := options.Common
	entriesFlags := append([]cli.Flag{
		cli.UintFlag{
			Name:  "limit, l",
			Usage: "Maximum number of entries to print (all by default)",
		},
	}, options.Common...)
	return []cli.Command{{
		Name:  "query",
		Usage: "Query data from the node",
		Subcommands: []cli.Command{
			{
				Name:      "const",
				Usage:     "Get pallet constant",
				UsageText: "substrate-go query const -r endpoint Module.Constant",
				Action:    queryConst,
				Flags:     queryFlags,
			},
			{
				Name:      "storage",
				Usage:     "Get storage item value (the default one if it's not stored)",
				UsageText: "substrate-go query storage -r endpoint Module.Item [key...]",
				Description: `Gets the current value of the storage item, map items require keys.

` + cmdargs.ArgsParsingDoc,
				Action: queryStorage,
				Flags:  queryFlags,
			},
			{
				Name:      "entries",
				Usage:     "Iterate over all entries of a storage map",
				UsageText: "substrate-go query entries -r endpoint [--limit n] Module.Item",
				Action:    queryEntries,
				Flags:     entriesFlags,
			},
			{
				Name:      "multi",
				Usage:     "Get several values of a storage map at once",
				UsageText: "substrate-go query multi -r endpoint Module.Item key [key...]",
				Description: `Gets values of a single-key storage map for all of the given keys in a
   single request, values are printed in the order of keys.

` + cmdargs.ArgsParsingDoc,
				Action: queryMulti,
				Flags:  queryFlags,
			},
			{
				Name:      "composite",
				Usage:     "Get values of different storage items at the same block",
				UsageText: "substrate-go query composite -r endpoint Module.Item[:key[:key]] [...]",
				Description: `Gets values of all given items in a single request, map keys follow
   the item name separated by ':', like 'System.Account:5GrwvaEF...'.

` + cmdargs.ArgsParsingDoc,
				Action: queryComposite,
				Flags:  queryFlags,
			},
			{
				Name:      "call",
				Usage:     "Perform runtime API call",
				UsageText: "substrate-go query call -r endpoint Api.method [arg...]",
				Description: `Calls runtime API method via state_call and prints the result.

   Example:
     substrate-go query call -r ws://127.0.0.1:9944 AccountNonceApi.account_nonce 5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY`,
				Action: queryCall,
				Flags:  queryFlags,
			},
			{
				Name:      "header",
				Usage:     "Get block header (the best one by default)",
				UsageText: "substrate-go query header -r endpoint [hash]",
				Action:    queryHeader,
				Flags:     queryFlags,
			},
			{
				Name:      "chain",
				Usage:     "Print node and runtime information",
				UsageText: "substrate-go query chain -r endpoint",
				Action:    queryChain,
				Flags:     queryFlags,
			},
			{
				Name:      "metadata",
				Usage:     "List pallets of the runtime metadata",
				UsageText: "substrate-go query metadata -r endpoint",
				Action:    queryMetadata,
				Flags:     queryFlags,
			},
		},
	}}
}

// printResult prints the value of the result, --dump prints the whole result.
func printResult(ctx *cli.Context, r query.Result) {
	if ctx.Bool("dump") {
		spew.Fdump(ctx.App.Writer, r)
		return
	}
	options.PrintValue(ctx, r.Value)
}

func queryConst(ctx *cli.Context) error {
	if err := cmdargs.EnsureCount(ctx, 1, 1); err != nil {
		return err
	}
	module, item, _, exitErr := cmdargs.GetPairFromContext(ctx)
	if exitErr != nil {
		return exitErr
	}
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()
	c, e, exitErr := options.GetRPCWithExecutor(gctx, ctx)
	if exitErr != nil {
		return exitErr
	}
	defer c.Close()

	r, err := e.GetConstant(module, item)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	printResult(ctx, r)
	return nil
}

func queryStorage(ctx *cli.Context) error {
	module, item, args, exitErr := cmdargs.GetPairFromContext(ctx)
	if exitErr != nil {
		return exitErr
	}
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()
	c, e, exitErr := options.GetRPCWithExecutor(gctx, ctx)
	if exitErr != nil {
		return exitErr
	}
	defer c.Close()

	r, err := e.GetSingle(query.NewKey(module, item, args...))
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	printResult(ctx, r)
	return nil
}

func queryEntries(ctx *cli.Context) error {
	if err := cmdargs.EnsureCount(ctx, 1, 1); err != nil {
		return err
	}
	module, item, _, exitErr := cmdargs.GetPairFromContext(ctx)
	if exitErr != nil {
		return exitErr
	}
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()
	c, e, exitErr := options.GetRPCWithExecutor(gctx, ctx)
	if exitErr != nil {
		return exitErr
	}
	defer c.Close()

	var (
		limit = ctx.Uint("limit")
		count uint
		dump  = ctx.Bool("dump")
	)
	for r, err := range e.Entries(module, item) {
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		if dump {
			spew.Fdump(ctx.App.Writer, r)
		} else {
			fmt.Fprintf(ctx.App.Writer, "%s: %s\n", human.String(r.Key.Args), r.Human())
		}
		count++
		if count == limit {
			break
		}
	}
	return nil
}

func queryMulti(ctx *cli.Context) error {
	module, item, args, exitErr := cmdargs.GetPairFromContext(ctx)
	if exitErr != nil {
		return exitErr
	}
	if len(args) == 0 {
		return cli.NewExitError(errors.New("no keys given"), 1)
	}
	keys := make([]query.Key, len(args))
	for i := range args {
		keys[i] = query.NewKey(module, item, args[i])
	}
	return getAndPrint(ctx, keys, false)
}

func queryComposite(ctx *cli.Context) error {
	if !ctx.Args().Present() {
		return cli.NewExitError(cmdargs.ErrNoPair, 1)
	}
	keys := make([]query.Key, ctx.NArg())
	for i, s := range ctx.Args() {
		k, err := cmdargs.ParseKey(s)
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		keys[i] = k
	}
	return getAndPrint(ctx, keys, true)
}

func getAndPrint(ctx *cli.Context, keys []query.Key, composite bool) error {
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()
	c, e, exitErr := options.GetRPCWithExecutor(gctx, ctx)
	if exitErr != nil {
		return exitErr
	}
	defer c.Close()

	var (
		res []query.Result
		err error
	)
	if composite {
		res, err = e.GetComposite(keys)
	} else {
		res, err = e.GetMulti(keys)
	}
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	if ctx.Bool("dump") {
		spew.Fdump(ctx.App.Writer, res)
		return nil
	}
	for _, r := range res {
		fmt.Fprintf(ctx.App.Writer, "%s: %s\n", r.Key, r.Human())
	}
	return nil
}

func queryCall(ctx *cli.Context) error {
	api, method, args, exitErr := cmdargs.GetPairFromContext(ctx)
	if exitErr != nil {
		return exitErr
	}
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()
	c, e, exitErr := options.GetRPCWithExecutor(gctx, ctx)
	if exitErr != nil {
		return exitErr
	}
	defer c.Close()

	r, err := e.Call(api, method, args...)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	printResult(ctx, r)
	return nil
}

func queryHeader(ctx *cli.Context) error {
	if err := cmdargs.EnsureCount(ctx, 0, 1); err != nil {
		return err
	}
	var block *types.Hash
	if ctx.Args().Present() {
		h, err := types.NewHashFromHexString(ctx.Args().First())
		if err != nil {
			return cli.NewExitError(fmt.Errorf("bad block hash: %w", err), 1)
		}
		block = &h
	}
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()
	c, exitErr := options.GetRPCClient(gctx, ctx)
	if exitErr != nil {
		return exitErr
	}
	defer c.Close()

	h, err := c.GetHeader(block)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	if h == nil {
		return cli.NewExitError(errors.New("block not found"), 1)
	}
	options.PrintValue(ctx, h)
	return nil
}

func queryChain(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()
	c, exitErr := options.GetRPCClient(gctx, ctx)
	if exitErr != nil {
		return exitErr
	}
	defer c.Close()

	name, err := c.SystemName()
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	version, err := c.SystemVersion()
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	health, err := c.SystemHealth()
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	best, err := c.GetHeader(nil)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	// These are cached on connection.
	chain, _ := c.Chain()
	genesis, _ := c.GenesisHash()
	rv, _ := c.RuntimeVersion()
	props, _ := c.Properties()

	tw := tabwriter.NewWriter(ctx.App.Writer, 0, 4, 2, ' ', 0)
	writeRow(tw, "Chain", chain)
	writeRow(tw, "Node", fmt.Sprintf("%s %s", name, version))
	writeRow(tw, "Genesis", genesis.Hex())
	writeRow(tw, "Runtime", fmt.Sprintf("%s v%d (tx v%d)", rv.SpecName, rv.SpecVersion, rv.TransactionVersion))
	writeRow(tw, "Token", fmt.Sprintf("%s (%d decimals)", props.Symbol(), props.Decimals()))
	writeRow(tw, "Best block", fmt.Sprintf("%d", best.Number))
	writeRow(tw, "Peers", fmt.Sprintf("%d", health.Peers))
	writeRow(tw, "Syncing", fmt.Sprintf("%t", health.IsSyncing))
	return tw.Flush()
}

func writeRow(w io.Writer, name, value string) {
	_, _ = fmt.Fprintf(w, "%s:\t%s\n", name, value)
}

func queryMetadata(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()
	c, exitErr := options.GetRPCClient(gctx, ctx)
	if exitErr != nil {
		return exitErr
	}
	defer c.Close()

	schema, err := c.Schema()
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	options.PrintMetadata(ctx.App.Writer, schema)
	return nil
}
