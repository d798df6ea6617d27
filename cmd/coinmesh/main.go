// Command coinmesh builds the boundary surface of a flow box with a tilted
// coin resting on its floor and writes it with one solid per boundary patch,
// ready for OpenFOAM's constant/triSurface.
package main

import (
	"context"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd(run).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
