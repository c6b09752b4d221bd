/*
Package options contains a set of common CLI options and helper functions to use them.
*/
package options

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/nspcc-dev/substrate-go/cli/input"
	"github.com/nspcc-dev/substrate-go/pkg/config"
	"github.com/nspcc-dev/substrate-go/pkg/crypto/keys"
	"github.com/nspcc-dev/substrate-go/pkg/encoding/address"
	"github.com/nspcc-dev/substrate-go/pkg/human"
	"github.com/nspcc-dev/substrate-go/pkg/metadata"
	"github.com/nspcc-dev/substrate-go/pkg/rpcclient"
	"github.com/nspcc-dev/substrate-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/substrate-go/pkg/rpcclient/query"
	"github.com/nspcc-dev/substrate-go/pkg/services/metrics"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// DefaultTimeout is the default timeout used for RPC requests.
	DefaultTimeout = 10 * time.Second
	// DefaultAwaitableTimeout is the default timeout used for commands that
	// wait for extrinsic inclusion. It's about ten blocks of a node-template
	// chain.
	DefaultAwaitableTimeout = 60 * time.Second
)

// RPCEndpointFlag is a long flag name for an RPC endpoint. It can be used to
// check for flag presence in the context.
const RPCEndpointFlag = "rpc-endpoint"

// RPC is a set of flags used for RPC connections (endpoint and timeout).
var RPC = []cli.Flag{
	cli.StringFlag{
		Name:  RPCEndpointFlag + ", r",
		Usage: "RPC node websocket address (overrides configuration)",
	},
	cli.DurationFlag{
		Name:  "timeout, s",
		Value: DefaultTimeout,
		Usage: "Timeout for the operation",
	},
}

// ConfigFile is a flag for commands that use CLI configuration.
var ConfigFile = cli.StringFlag{
	Name:  "config-file",
	Usage: "path to the configuration file (" + config.DefaultConfigPath + " is used if present)",
}

// Debug is a flag for commands that allow debug logging.
var Debug = cli.BoolFlag{
	Name:  "debug, d",
	Usage: "enable debug logging (LOTS of output, overrides configuration)",
}

// Dump is a flag to print raw Go values instead of human-readable ones.
var Dump = cli.BoolFlag{
	Name:  "dump",
	Usage: "dump raw decoded values instead of human-readable output",
}

// Seed is a flag for commands that sign extrinsics.
var Seed = cli.StringFlag{
	Name:  "seed",
	Usage: "secret URI of the signer (like '//Alice' or mnemonic); configured Signer is used if omitted, it's requested interactively if there is none",
}

// Common is a set of flags accepted by every command talking to the node.
var Common = []cli.Flag{
	RPC[0],
	RPC[1],
	ConfigFile,
	Debug,
	Dump,
}

// Schema decodes node metadata for every client created by CLI,
// metadata.Decoder is used if nil.
var Schema func(hexMetadata string) (metadata.Schema, error)

var errNoSigner = errors.New("no signer specified, use option '--seed' or configure Signer")

// GetTimeoutContext returns a context.Context with the default or a user-set timeout.
func GetTimeoutContext(ctx *cli.Context) (context.Context, func()) {
	dur := ctx.Duration("timeout")
	if dur == 0 {
		dur = DefaultTimeout
	}
	if !ctx.IsSet("timeout") && ctx.Bool("await") {
		dur = DefaultAwaitableTimeout
	}
	return context.WithTimeout(context.Background(), dur)
}

// GetConfigFromContext loads the configuration specified by the --config-file
// flag or the default one. SS58 prefix of the configuration is applied
// globally.
func GetConfigFromContext(ctx *cli.Context) (config.Config, error) {
	cfg, err := config.Load(ctx.String("config-file"))
	if err != nil {
		return cfg, err
	}
	if p := cfg.ApplicationConfiguration.SS58Prefix; p != nil {
		address.Prefix = *p
	}
	return cfg, nil
}

// HandleLoggingParams reads logging parameters.
// If a user selected debug level -- function enables it.
// If logPath is configured -- function creates a dir and a file for logging.
func HandleLoggingParams(debug bool, cfg config.ApplicationConfiguration) (*zap.Logger, *zap.AtomicLevel, error) {
	var (
		level = zapcore.InfoLevel
		err   error
	)
	if len(cfg.LogLevel) > 0 {
		level, err = zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, nil, fmt.Errorf("log setting: %w", err)
		}
	}
	if debug {
		level = zapcore.DebugLevel
	}

	cc := zap.NewProductionConfig()
	cc.DisableCaller = true
	cc.DisableStacktrace = true
	cc.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	cc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cc.Encoding = "console"
	if cfg.LogEncoding != "" {
		cc.Encoding = cfg.LogEncoding
	}
	cc.Level = zap.NewAtomicLevelAt(level)
	cc.Sampling = nil

	if logPath := cfg.LogPath; logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
			return nil, nil, fmt.Errorf("could not create dir for logger: %w", err)
		}
		cc.OutputPaths = []string{logPath}
	}

	log, err := cc.Build()
	return log, &cc.Level, err
}

// GetLogger returns a logger configured by the context flags and the given
// configuration.
func GetLogger(ctx *cli.Context, cfg config.Config) (*zap.Logger, cli.ExitCoder) {
	log, _, err := HandleLoggingParams(ctx.Bool("debug"), cfg.ApplicationConfiguration)
	if err != nil {
		return nil, cli.NewExitError(err, 1)
	}
	return log, nil
}

// GetRPCClient returns an RPC client instance for the given Context. It's
// ready to use, the connection is established within gctx limits.
func GetRPCClient(gctx context.Context, ctx *cli.Context) (*rpcclient.Client, cli.ExitCoder) {
	c, _, err := getClient(gctx, ctx)
	return c, err
}

func getClient(gctx context.Context, ctx *cli.Context) (*rpcclient.Client, *zap.Logger, cli.ExitCoder) {
	cfg, err := GetConfigFromContext(ctx)
	if err != nil {
		return nil, nil, cli.NewExitError(err, 1)
	}
	log, exitErr := GetLogger(ctx, cfg)
	if exitErr != nil {
		return nil, nil, exitErr
	}
	endpoint := ctx.String(RPCEndpointFlag)
	if len(endpoint) == 0 {
		endpoint = cfg.ApplicationConfiguration.Endpoint
	}
	c, err := rpcclient.New(gctx, endpoint, rpcclient.Options{
		DialTimeout:    cfg.ApplicationConfiguration.DialTimeout,
		RequestTimeout: cfg.ApplicationConfiguration.RequestTimeout,
		PageSize:       cfg.ApplicationConfiguration.PageSize,
		Schema:         Schema,
		Logger:         log,
	})
	if err != nil {
		return nil, nil, cli.NewExitError(err, 1)
	}
	err = c.AwaitReady(gctx)
	if err != nil {
		c.Close()
		return nil, nil, cli.NewExitError(err, 1)
	}
	return c, log, nil
}

// GetRPCWithExecutor returns an RPC client instance and query Executor for
// the given context.
func GetRPCWithExecutor(gctx context.Context, ctx *cli.Context) (*rpcclient.Client, *query.Executor, cli.ExitCoder) {
	c, log, err := getClient(gctx, ctx)
	if err != nil {
		return nil, nil, err
	}
	return c, query.New(c, log), nil
}

// GetRPCWithActor returns an RPC client instance and Actor instance for the
// given context. Actor uses a tip from the "tip" flag if it's present.
func GetRPCWithActor(gctx context.Context, ctx *cli.Context) (*rpcclient.Client, *actor.Actor, cli.ExitCoder) {
	var opts actor.Options
	if s := ctx.String("tip"); s != "" {
		tip, ok := new(big.Int).SetString(s, 10)
		if !ok || tip.Sign() < 0 {
			return nil, nil, cli.NewExitError(fmt.Errorf("bad tip %q", s), 1)
		}
		opts.Tip = tip
	}
	c, err := GetRPCClient(gctx, ctx)
	if err != nil {
		return nil, nil, err
	}
	return c, actor.NewTuned(c, opts), nil
}

// GetIdentity returns the signer identity. It's derived from the --seed flag,
// the configured Signer or a secret URI entered interactively.
func GetIdentity(ctx *cli.Context) (*keys.Identity, error) {
	uri := ctx.String("seed")
	if uri == "" {
		cfg, err := GetConfigFromContext(ctx)
		if err != nil {
			return nil, err
		}
		uri = cfg.ApplicationConfiguration.Signer
	}
	if uri == "" {
		var err error
		uri, err = input.ReadSecret("Enter signer secret URI > ")
		if err != nil {
			return nil, fmt.Errorf("error reading secret URI: %w", err)
		}
		if uri == "" {
			return nil, errNoSigner
		}
	}
	return keys.DeriveIdentity(uri)
}

// StartMonitoring starts Prometheus and pprof services if they're enabled in
// the configuration. The returned function stops them.
func StartMonitoring(cfg config.Config, log *zap.Logger) (func(), error) {
	var (
		app      = cfg.ApplicationConfiguration
		services = []*metrics.Service{
			metrics.NewPrometheusService(app.Prometheus, nil, log),
			metrics.NewPprofService(app.Pprof, log),
		}
		started []*metrics.Service
	)
	stop := func() {
		for _, s := range started {
			s.ShutDown()
		}
	}
	for _, s := range services {
		if err := s.Start(); err != nil {
			stop()
			return nil, fmt.Errorf("failed to start %s service: %w", s.Name(), err)
		}
		started = append(started, s)
	}
	return stop, nil
}

// PrintMetadata writes the runtime metadata summary to w: pallet names, one
// per line.
func PrintMetadata(w io.Writer, schema metadata.Schema) {
	for _, p := range schema.Pallets() {
		fmt.Fprintln(w, p)
	}
}

// PrintValue writes v to the application output either in human-readable
// form or as a raw dump if the --dump flag is set.
func PrintValue(ctx *cli.Context, v any) {
	PrintValueTo(ctx.App.Writer, ctx.Bool("dump"), v)
}

// PrintValueTo writes v to w either in human-readable form or as a raw dump.
func PrintValueTo(w io.Writer, dump bool, v any) {
	if dump {
		spew.Fdump(w, v)
		return
	}
	fmt.Fprintln(w, human.Indent(v))
}
