package app

import (
	"fmt"
	"os"
	"runtime"

	"github.com/nspcc-dev/substrate-go/cli/identity"
	"github.com/nspcc-dev/substrate-go/cli/query"
	"github.com/nspcc-dev/substrate-go/cli/subscribe"
	"github.com/nspcc-dev/substrate-go/cli/tx"
	"github.com/nspcc-dev/substrate-go/cli/walkthrough"
	"github.com/nspcc-dev/substrate-go/pkg/config"
	"github.com/urfave/cli"
)

func versionPrinter(c *cli.Context) {
	_, _ = fmt.Fprintf(c.App.Writer, "substrate-go\nVersion: %s\nGoVersion: %s\n",
		config.Version,
		runtime.Version(),
	)
}

// New creates a substrate-go instance of [cli.App] with all commands included.
func New() *cli.App {
	cli.VersionPrinter = versionPrinter
	ctl := cli.NewApp()
	ctl.Name = "substrate-go"
	ctl.Version = config.Version
	ctl.Usage = "Go client for Substrate-based nodes"
	ctl.ErrWriter = os.Stdout

	ctl.Commands = append(ctl.Commands, query.NewCommands()...)
	ctl.Commands = append(ctl.Commands, tx.NewCommands()...)
	ctl.Commands = append(ctl.Commands, subscribe.NewCommands()...)
	ctl.Commands = append(ctl.Commands, identity.NewCommands()...)
	ctl.Commands = append(ctl.Commands, walkthrough.NewCommands()...)
	return ctl
}
