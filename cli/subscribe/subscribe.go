/*
Package subscribe implements commands following node events.
*/
package subscribe

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/nspcc-dev/substrate-go/cli/cmdargs"
	"github.com/nspcc-dev/substrate-go/cli/options"
	"github.com/nspcc-dev/substrate-go/pkg/rpcclient"
	"github.com/nspcc-dev/substrate-go/pkg/rpcclient/query"
	"github.com/nspcc-dev/substrate-go/pkg/subrpc"
	"github.com/urfave/cli"
)

// CountFlag limits the number of notifications to print.
var CountFlag = cli.UintFlag{
	Name:  "count, n",
	Usage: "Exit after the given number of notifications (run until interrupted or timed out if 0)",
}

// NewCommands returns 'subscribe' command.
func NewCommands() []cli.Command {
	subFlags := append([]cli.Flag{CountFlag}, options.Common...)
	headFlags := append([]cli.Flag{
		cli.BoolFlag{
			Name:  "finalized, f",
			Usage: "Follow finalized heads instead of the best ones",
		},
	}, subFlags...)
	return []cli.Command{{
		Name:  "subscribe",
		Usage: "Follow node events",
		Description: `Subscription commands print notifications until the given number of them
   is received, the timeout expires (only if it's given explicitly) or
   the process is interrupted.`,
		Subcommands: []cli.Command{
			{
				Name:      "heads",
				Usage:     "Print new block headers",
				UsageText: "substrate-go subscribe heads -r endpoint [--finalized] [--count n]",
				Action:    subscribeHeads,
				Flags:     headFlags,
			},
			{
				Name:      "storage",
				Usage:     "Print storage item value on every change",
				UsageText: "substrate-go subscribe storage -r endpoint [--count n] Module.Item [key...]",
				Description: `Prints the current value of the storage item and then every new one.

` + cmdargs.ArgsParsingDoc,
				Action: subscribeStorage,
				Flags:  subFlags,
			},
		},
	}}
}

// GetRunContext returns a context for long-running commands. It's done on
// interrupt and after the timeout if it's set explicitly.
func GetRunContext(ctx *cli.Context) (context.Context, func()) {
	var (
		gctx   context.Context
		cancel context.CancelFunc
	)
	if ctx.IsSet("timeout") {
		gctx, cancel = context.WithTimeout(context.Background(), ctx.Duration("timeout"))
	} else {
		gctx, cancel = context.WithCancel(context.Background())
	}
	sctx, stop := signal.NotifyContext(gctx, os.Interrupt, syscall.SIGTERM)
	return sctx, func() {
		stop()
		cancel()
	}
}

// Relay passes values from subscription callbacks to the goroutine following
// them. Push never blocks after the follower is gone.
type Relay[T any] struct {
	ch       chan T
	quit     chan struct{}
	quitOnce sync.Once
}

// NewRelay creates a new Relay.
func NewRelay[T any]() *Relay[T] {
	return &Relay[T]{
		ch:   make(chan T),
		quit: make(chan struct{}),
	}
}

// Push passes v to the follower. It can be used as a subscription callback.
func (r *Relay[T]) Push(v T) {
	select {
	case r.ch <- v:
	case <-r.quit:
	}
}

// C returns the channel values are delivered to.
func (r *Relay[T]) C() <-chan T {
	return r.ch
}

// Close makes all pending and subsequent Push calls return immediately.
func (r *Relay[T]) Close() {
	r.quitOnce.Do(func() { close(r.quit) })
}

// Follow prints values received from r until count of them is printed, gctx
// is done or the subscription is terminated by the client.
func Follow[T any](gctx context.Context, sub *rpcclient.Subscription, r *Relay[T], count uint, show func(T)) error {
	defer r.Close()
	var received uint
	for {
		select {
		case <-gctx.Done():
			return nil
		case <-sub.Done():
			if gctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: subscription closed", subrpc.ErrConnection)
		case v := <-r.ch:
			show(v)
			received++
			if received == count {
				return nil
			}
		}
	}
}

func startMonitoring(ctx *cli.Context) (func(), cli.ExitCoder) {
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return nil, cli.NewExitError(err, 1)
	}
	log, exitErr := options.GetLogger(ctx, cfg)
	if exitErr != nil {
		return nil, exitErr
	}
	stop, err := options.StartMonitoring(cfg, log)
	if err != nil {
		return nil, cli.NewExitError(err, 1)
	}
	return stop, nil
}

func subscribeHeads(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	gctx, cancel := GetRunContext(ctx)
	defer cancel()
	stop, exitErr := startMonitoring(ctx)
	if exitErr != nil {
		return exitErr
	}
	defer stop()
	c, exitErr := options.GetRPCClient(gctx, ctx)
	if exitErr != nil {
		return exitErr
	}
	defer c.Close()

	var (
		heads     = NewRelay[*types.Header]()
		subscribe = c.SubscribeNewHeads
	)
	if ctx.Bool("finalized") {
		subscribe = c.SubscribeFinalizedHeads
	}
	sub, err := subscribe(heads.Push)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer func() { _ = sub.Cancel() }()

	err = Follow(gctx, sub, heads, ctx.Uint("count"), func(h *types.Header) {
		if ctx.Bool("dump") {
			options.PrintValue(ctx, h)
			return
		}
		fmt.Fprintf(ctx.App.Writer, "Chain is at block: #%d (parent %s)\n", h.Number, h.ParentHash.Hex())
	})
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	return nil
}

func subscribeStorage(ctx *cli.Context) error {
	module, item, args, exitErr := cmdargs.GetPairFromContext(ctx)
	if exitErr != nil {
		return exitErr
	}
	gctx, cancel := GetRunContext(ctx)
	defer cancel()
	stop, exitErr := startMonitoring(ctx)
	if exitErr != nil {
		return exitErr
	}
	defer stop()
	c, e, exitErr := options.GetRPCWithExecutor(gctx, ctx)
	if exitErr != nil {
		return exitErr
	}
	defer c.Close()

	values := NewRelay[query.Result]()
	sub, err := e.Subscribe(query.NewKey(module, item, args...), values.Push)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer func() { _ = sub.Cancel() }()

	err = Follow(gctx, sub, values, ctx.Uint("count"), func(r query.Result) {
		if ctx.Bool("dump") {
			options.PrintValue(ctx, r)
			return
		}
		fmt.Fprintf(ctx.App.Writer, "%s: %s\n", r.Key, r.Human())
	})
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	return nil
}
