package rpcclient_test

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/nspcc-dev/substrate-go/pkg/rpcclient"
)

func Example() {
	endpoint := "ws://127.0.0.1:9944"
	opts := rpcclient.Options{}

	c, err := rpcclient.New(context.TODO(), endpoint, opts)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.AwaitReady(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	chain, _ := c.Chain()
	fmt.Println(chain)

	sub, err := c.SubscribeNewHeads(func(h *types.Header) {
		fmt.Printf("Chain is at block: #%d\n", h.Number)
	})
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	<-ctx.Done()
	_ = sub.Cancel()
}
