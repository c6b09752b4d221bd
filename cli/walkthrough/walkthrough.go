/*
Package walkthrough implements a command demonstrating the whole client API
against a node-template based chain: constants, storage queries, node RPC,
identities, extrinsics, subscriptions and runtime calls.
*/
package walkthrough

import (
	"context"
	"fmt"
	"io"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/nspcc-dev/substrate-go/cli/cmdargs"
	"github.com/nspcc-dev/substrate-go/cli/options"
	"github.com/nspcc-dev/substrate-go/cli/subscribe"
	"github.com/nspcc-dev/substrate-go/pkg/crypto/keys"
	"github.com/nspcc-dev/substrate-go/pkg/encoding/fixedn"
	"github.com/nspcc-dev/substrate-go/pkg/human"
	"github.com/nspcc-dev/substrate-go/pkg/registry"
	"github.com/nspcc-dev/substrate-go/pkg/rpcclient"
	"github.com/nspcc-dev/substrate-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/substrate-go/pkg/rpcclient/query"
	"github.com/nspcc-dev/substrate-go/pkg/subrpc"
	"github.com/urfave/cli"
)

// NewCommands returns 'walkthrough' command.
func NewCommands() []cli.Command {
	flags := append([]cli.Flag{
		cli.StringFlag{
			Name:  "from",
			Value: "//Alice",
			Usage: "secret URI of the account sending extrinsics",
		},
		cli.StringFlag{
			Name:  "to",
			Value: "//Bob",
			Usage: "secret URI of the second account (transfer recipient)",
		},
		cli.StringFlag{
			Name:  "remark",
			Value: "0x1234",
			Usage: "System.remark data",
		},
		cli.StringFlag{
			Name:  "amount",
			Value: "12345",
			Usage: "amount to transfer",
		},
		cli.StringFlag{
			Name:  "something",
			Value: "12345",
			Usage: "number to store with TemplateModule.do_something",
		},
		cli.UintFlag{
			Name:  "blocks, b",
			Usage: "number of new heads to wait for after sending extrinsics",
		},
	}, options.Common...)
	return []cli.Command{{
		Name:      "walkthrough",
		Usage:     "Run through the client features against a node-template chain",
		UsageText: "substrate-go walkthrough -r endpoint [--from uri] [--to uri] [--blocks n]",
		Description: `Prints pallet constants, storage values (single, map entries, multi and
   composite queries), chain information, sends System.remark,
   Balances.transfer_keep_alive and TemplateModule.do_something extrinsics,
   follows new heads and storage changes and performs runtime API calls.

   Subscriptions print the initial values and then wait for the given number
   of new heads, set --timeout accordingly when waiting for blocks.`,
		Action: run,
		Flags:  flags,
	}}
}

// walker keeps everything the walkthrough steps need.
type walker struct {
	w    io.Writer
	dump bool

	c *rpcclient.Client
	e *query.Executor
	a *actor.Actor

	from *keys.Identity
	to   *keys.Identity

	// Token symbol and decimals announced by the node.
	symbol   string
	decimals int
}

func run(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	from, err := keys.DeriveIdentity(ctx.String("from"))
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	to, err := keys.DeriveIdentity(ctx.String("to"))
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	log, exitErr := options.GetLogger(ctx, cfg)
	if exitErr != nil {
		return exitErr
	}
	stop, err := options.StartMonitoring(cfg, log)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer stop()

	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()
	c, e, exitErr := options.GetRPCWithExecutor(gctx, ctx)
	if exitErr != nil {
		return exitErr
	}
	defer c.Close()

	props, err := c.Properties()
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	wk := &walker{
		w:    ctx.App.Writer,
		dump: ctx.Bool("dump"),
		c:    c,
		e:    e,
		a:    actor.New(c),
		from: from,
		to:   to,

		symbol:   props.Symbol(),
		decimals: int(props.Decimals()),
	}
	steps := []func() error{
		wk.constants,
		wk.storage,
		wk.entries,
		wk.node,
		wk.multi,
		wk.identities,
		func() error {
			return wk.extrinsics(ctx.String("remark"), ctx.String("amount"), ctx.String("something"))
		},
		func() error {
			return wk.subscriptions(gctx, ctx.Uint("blocks"))
		},
		wk.runtimeCalls,
		wk.bestNumber,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return cli.NewExitError(err, 1)
		}
	}
	return nil
}

func (wk *walker) section(name string) {
	fmt.Fprintf(wk.w, "--- %s\n", name)
}

func (wk *walker) print(v any) {
	options.PrintValueTo(wk.w, wk.dump, v)
}

func (wk *walker) printResult(r query.Result) {
	if wk.dump {
		wk.print(r)
		return
	}
	fmt.Fprintf(wk.w, "%s: %s\n", r.Key, r.Human())
}

func (wk *walker) constants() error {
	wk.section("constants")
	for _, k := range []query.Key{
		query.NewKey("Balances", "ExistentialDeposit"),
		query.NewKey("Timestamp", "MinimumPeriod"),
	} {
		r, err := wk.e.GetConstant(k.Module, k.Item)
		if err != nil {
			return err
		}
		wk.printResult(r)
	}
	return nil
}

func (wk *walker) storage() error {
	wk.section("storage")
	for _, k := range []query.Key{
		query.NewKey("Timestamp", "Now"),
		query.NewKey("System", "Account", wk.from.Address()),
	} {
		r, err := wk.e.GetSingle(k)
		if err != nil {
			return err
		}
		wk.printResult(r)
	}
	return nil
}

func (wk *walker) entries() error {
	wk.section("System.Account entries")
	for r, err := range wk.e.Entries("System", "Account") {
		if err != nil {
			return err
		}
		if wk.dump {
			wk.print(r)
			continue
		}
		fmt.Fprintf(wk.w, "%s: %s\n", human.String(r.Key.Args), r.Human())
	}
	return nil
}

func (wk *walker) node() error {
	wk.section("node")
	chain, err := wk.c.SystemChain()
	if err != nil {
		return err
	}
	fmt.Fprintf(wk.w, "Chain: %s\n", chain)
	h, err := wk.c.GetHeader(nil)
	if err != nil {
		return err
	}
	wk.print(h)
	schema, err := wk.c.Schema()
	if err != nil {
		return err
	}
	fmt.Fprintln(wk.w, "Metadata:")
	options.PrintMetadata(wk.w, schema)
	return nil
}

func (wk *walker) multi() error {
	wk.section("multi")
	res, err := wk.e.GetMulti([]query.Key{
		query.NewKey("System", "Account", wk.from.Address()),
		query.NewKey("System", "Account", wk.to.Address()),
	})
	if err != nil {
		return err
	}
	for _, r := range res {
		wk.printResult(r)
	}
	res, err = wk.e.GetComposite([]query.Key{
		query.NewKey("Timestamp", "Now"),
		query.NewKey("System", "Account", wk.from.Address()),
	})
	if err != nil {
		return err
	}
	for _, r := range res {
		wk.printResult(r)
	}
	return nil
}

func (wk *walker) identities() error {
	wk.section("identities")
	fmt.Fprintf(wk.w, "%s %s\n", wk.from.Address(), wk.to.Address())
	return nil
}

func (wk *walker) extrinsics(remark, amount, something string) error {
	wk.section("extrinsics")
	for _, call := range []struct {
		module, method string
		args           []any
	}{
		{"System", "remark", []any{remark}},
		{"Balances", "transfer_keep_alive", []any{wk.to, amount}},
		{"TemplateModule", "do_something", []any{something}},
	} {
		s, h, err := wk.a.SendCall(wk.from, call.module, call.method, call.args...)
		if err != nil {
			return fmt.Errorf("failed to send %s.%s: %w", call.module, call.method, err)
		}
		fmt.Fprintf(wk.w, "%s sent with hash %s (nonce %d)\n", s.Command.String(), h.Hex(), s.Nonce)
	}
	return nil
}

// subscriptions follows new heads, the sender account and the template
// pallet value. It returns after both storage values are received and the
// given number of heads is printed.
func (wk *walker) subscriptions(gctx context.Context, blocks uint) error {
	wk.section("subscriptions")
	var (
		heads     = subscribe.NewRelay[*types.Header]()
		account   = subscribe.NewRelay[query.Result]()
		something = subscribe.NewRelay[query.Result]()
	)
	for _, r := range []interface{ Close() }{heads, account, something} {
		defer r.Close()
	}

	subs := make([]*rpcclient.Subscription, 0, 3)
	defer func() {
		for _, s := range subs {
			_ = s.Cancel()
		}
	}()
	sub, err := wk.c.SubscribeNewHeads(heads.Push)
	if err != nil {
		return err
	}
	subs = append(subs, sub)
	sub, err = wk.e.Subscribe(query.NewKey("System", "Account", wk.from.Address()), account.Push)
	if err != nil {
		return err
	}
	subs = append(subs, sub)
	sub, err = wk.e.Subscribe(query.NewKey("TemplateModule", "Something"), something.Push)
	if err != nil {
		return err
	}
	subs = append(subs, sub)

	var (
		gotAccount   bool
		gotSomething bool
		received     uint
	)
	for !gotAccount || !gotSomething || received < blocks {
		select {
		case <-gctx.Done():
			return fmt.Errorf("subscriptions: %w", gctx.Err())
		case <-sub.Done():
			return fmt.Errorf("%w: subscription closed", subrpc.ErrConnection)
		case h := <-heads.C():
			received++
			fmt.Fprintf(wk.w, "Chain is at block: #%d\n", h.Number)
		case r := <-account.C():
			gotAccount = true
			wk.printAccount(r)
		case r := <-something.C():
			gotSomething = true
			if wk.dump {
				wk.print(r)
				continue
			}
			fmt.Fprintf(wk.w, "Chain data: %s\n", r.Human())
		}
	}
	return nil
}

func (wk *walker) printAccount(r query.Result) {
	if wk.dump {
		wk.print(r)
		return
	}
	info, ok := r.Value.(registry.AccountInfo)
	if !ok {
		wk.printResult(r)
		return
	}
	fmt.Fprintf(wk.w, "Current nonce is %d, balance is %s (%s %s)\n", info.Nonce,
		human.Number(info.Data.Free.Int), fixedn.ToString(info.Data.Free.Int, wk.decimals), wk.symbol)
}

func (wk *walker) runtimeCalls() error {
	wk.section("runtime calls")
	r, err := wk.e.Call("AccountNonceApi", "account_nonce", wk.from.Address())
	if err != nil {
		return err
	}
	wk.printResult(r)
	r, err = wk.e.Call("AuraApi", "authorities")
	if err != nil {
		return err
	}
	wk.printResult(r)
	return nil
}

func (wk *walker) bestNumber() error {
	h, err := wk.c.GetHeader(nil)
	if err != nil {
		return err
	}
	fmt.Fprintf(wk.w, "Best block: %d\n", h.Number)
	return nil
}
