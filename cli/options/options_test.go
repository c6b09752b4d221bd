package options

import (
	"bytes"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nspcc-dev/substrate-go/cli/input"
	"github.com/nspcc-dev/substrate-go/internal/testnode"
	"github.com/nspcc-dev/substrate-go/pkg/config"
	"github.com/nspcc-dev/substrate-go/pkg/subrpc"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
	"go.uber.org/zap/zaptest"
	"golang.org/x/term"
)

func newContext(t *testing.T, f func(set *flag.FlagSet)) *cli.Context {
	set := flag.NewFlagSet("flagSet", flag.ContinueOnError)
	set.String(RPCEndpointFlag, "", "")
	set.Duration("timeout", 0, "")
	set.String("config-file", "", "")
	set.Bool("debug", false, "")
	set.Bool("dump", false, "")
	set.String("seed", "", "")
	set.String("tip", "", "")
	set.Bool("await", false, "")
	if f != nil {
		f(set)
	}
	return cli.NewContext(cli.NewApp(), set, nil)
}

func writeConfig(t *testing.T, data string) string {
	p := filepath.Join(t.TempDir(), "substrate.yml")
	require.NoError(t, os.WriteFile(p, []byte(data), 0o644))
	return p
}

func TestGetTimeoutContext(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		start := time.Now()
		ctx := newContext(t, nil)
		actualCtx, cancel := GetTimeoutContext(ctx)
		defer cancel()
		end := time.Now()
		dl, _ := actualCtx.Deadline()
		require.True(t, start.Before(dl) && dl.Before(end.Add(DefaultTimeout+time.Millisecond)))
	})

	t.Run("await", func(t *testing.T) {
		ctx := newContext(t, func(set *flag.FlagSet) {
			require.NoError(t, set.Set("await", "true"))
		})
		actualCtx, cancel := GetTimeoutContext(ctx)
		defer cancel()
		dl, _ := actualCtx.Deadline()
		require.True(t, time.Until(dl) > DefaultTimeout)
	})

	t.Run("set", func(t *testing.T) {
		start := time.Now()
		ctx := newContext(t, func(set *flag.FlagSet) {
			require.NoError(t, set.Set("timeout", "20ns"))
		})
		actualCtx, cancel := GetTimeoutContext(ctx)
		defer cancel()
		end := time.Now()
		dl, _ := actualCtx.Deadline()
		require.True(t, start.Before(dl) && dl.Before(end.Add(time.Nanosecond*20)))
	})
}

func TestGetRPCClient(t *testing.T) {
	Schema = testnode.Schema
	t.Cleanup(func() { Schema = nil })
	n := testnode.New(t)

	t.Run("bad endpoint", func(t *testing.T) {
		ctx := newContext(t, func(set *flag.FlagSet) {
			require.NoError(t, set.Set(RPCEndpointFlag, "http://127.0.0.1:9944"))
		})
		gctx, cancel := GetTimeoutContext(ctx)
		defer cancel()
		_, ec := GetRPCClient(gctx, ctx)
		require.Equal(t, 1, ec.ExitCode())
		require.Contains(t, ec.Error(), subrpc.ErrInvalidArgument.Error())
	})

	t.Run("unreachable", func(t *testing.T) {
		ctx := newContext(t, func(set *flag.FlagSet) {
			require.NoError(t, set.Set(RPCEndpointFlag, testnode.Unreachable(t)))
		})
		gctx, cancel := GetTimeoutContext(ctx)
		defer cancel()
		_, ec := GetRPCClient(gctx, ctx)
		require.Equal(t, 1, ec.ExitCode())
	})

	t.Run("from config", func(t *testing.T) {
		cfg := writeConfig(t, "ApplicationConfiguration:\n  Endpoint: \""+n.URL()+"\"\n  PageSize: 7\n")
		ctx := newContext(t, func(set *flag.FlagSet) {
			require.NoError(t, set.Set("config-file", cfg))
		})
		gctx, cancel := GetTimeoutContext(ctx)
		defer cancel()
		c, e, ec := GetRPCWithExecutor(gctx, ctx)
		require.Nil(t, ec)
		defer c.Close()
		require.EqualValues(t, 7, c.PageSize())
		require.NotNil(t, e)
	})

	t.Run("with actor", func(t *testing.T) {
		ctx := newContext(t, func(set *flag.FlagSet) {
			require.NoError(t, set.Set(RPCEndpointFlag, n.URL()))
			require.NoError(t, set.Set("tip", "bad"))
		})
		gctx, cancel := GetTimeoutContext(ctx)
		defer cancel()
		_, _, ec := GetRPCWithActor(gctx, ctx)
		require.Equal(t, 1, ec.ExitCode())

		require.NoError(t, ctx.Set("tip", "100"))
		c, a, ec := GetRPCWithActor(gctx, ctx)
		require.Nil(t, ec)
		defer c.Close()
		require.NotNil(t, a)
	})
}

func TestGetIdentity(t *testing.T) {
	t.Run("flag", func(t *testing.T) {
		ctx := newContext(t, func(set *flag.FlagSet) {
			require.NoError(t, set.Set("seed", "//Alice"))
		})
		id, err := GetIdentity(ctx)
		require.NoError(t, err)
		require.Equal(t, "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY", id.Address())
	})

	t.Run("config", func(t *testing.T) {
		cfg := writeConfig(t, "ApplicationConfiguration:\n  Signer: \"//Bob\"\n")
		ctx := newContext(t, func(set *flag.FlagSet) {
			require.NoError(t, set.Set("config-file", cfg))
		})
		id, err := GetIdentity(ctx)
		require.NoError(t, err)
		require.Equal(t, "5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty", id.Address())
	})

	t.Run("prompt", func(t *testing.T) {
		in := bytes.NewBufferString("//Alice\r")
		input.Terminal = term.NewTerminal(input.ReadWriter{Reader: in, Writer: io.Discard}, "")
		t.Cleanup(func() { input.Terminal = nil })
		cfg := writeConfig(t, "ApplicationConfiguration:\n  LogLevel: debug\n")
		ctx := newContext(t, func(set *flag.FlagSet) {
			require.NoError(t, set.Set("config-file", cfg))
		})
		id, err := GetIdentity(ctx)
		require.NoError(t, err)
		require.Equal(t, "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY", id.Address())

		in.WriteString("\r")
		_, err = GetIdentity(ctx)
		require.ErrorIs(t, err, errNoSigner)
	})

	t.Run("invalid", func(t *testing.T) {
		ctx := newContext(t, func(set *flag.FlagSet) {
			require.NoError(t, set.Set("seed", "not a valid mnemonic phrase"))
		})
		_, err := GetIdentity(ctx)
		require.ErrorIs(t, err, subrpc.ErrInvalidSeed)
	})
}

func TestHandleLoggingParams(t *testing.T) {
	d := t.TempDir()

	t.Run("logdir is a file", func(t *testing.T) {
		logfile := filepath.Join(d, "logdir")
		require.NoError(t, os.WriteFile(logfile, []byte{1, 2, 3}, os.ModePerm))
		cfg := config.ApplicationConfiguration{
			LogPath: filepath.Join(logfile, "file.log"),
		}
		_, _, err := HandleLoggingParams(false, cfg)
		require.Error(t, err)
	})

	t.Run("default", func(t *testing.T) {
		cfg := config.ApplicationConfiguration{
			LogPath: filepath.Join(d, "file.log"),
		}
		logger, lvl, err := HandleLoggingParams(false, cfg)
		require.NoError(t, err)
		t.Cleanup(func() { _ = logger.Sync() })
		require.Equal(t, "info", lvl.String())
		require.True(t, logger.Core().Enabled(0))
		require.False(t, logger.Core().Enabled(-1))
	})

	t.Run("debug", func(t *testing.T) {
		cfg := config.ApplicationConfiguration{
			LogPath:     filepath.Join(d, "debug.log"),
			LogEncoding: "json",
		}
		logger, lvl, err := HandleLoggingParams(true, cfg)
		require.NoError(t, err)
		t.Cleanup(func() { _ = logger.Sync() })
		require.Equal(t, "debug", lvl.String())
		require.True(t, logger.Core().Enabled(-1))
	})

	t.Run("bad level", func(t *testing.T) {
		_, _, err := HandleLoggingParams(false, config.ApplicationConfiguration{LogLevel: "loud"})
		require.Error(t, err)
	})
}

func TestStartMonitoring(t *testing.T) {
	cfg := config.Default()
	cfg.ApplicationConfiguration.Prometheus = config.BasicService{Enabled: true, Addresses: []string{"127.0.0.1:0"}}
	stop, err := StartMonitoring(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	stop()

	cfg.ApplicationConfiguration.Pprof = config.BasicService{Enabled: true, Addresses: []string{"256.0.0.1:0"}}
	_, err = StartMonitoring(cfg, zaptest.NewLogger(t))
	require.Error(t, err)
}

func TestPrintValue(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	PrintValueTo(buf, false, struct{ FreeBalance uint64 }{1234567})
	require.Equal(t, "{\n  \"freeBalance\": \"1,234,567\"\n}\n", buf.String())

	buf.Reset()
	PrintValueTo(buf, true, uint32(5))
	require.Contains(t, buf.String(), "(uint32) 5")
}

func TestPrintMetadata(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	PrintMetadata(buf, testnode.StaticSchema())
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Equal(t, testnode.StaticSchema().Pallets(), lines)
	require.Contains(t, lines, "Balances")
}
