// Command vericas is the CLI client for the vericas store. It dials a
// server over the wire protocol and exposes branch, path and object graph
// operations as subcommands.
package main

import (
	"context"

	"github.com/scott-cotton/cli"
)

func main() {
	cli.MainContext(context.Background(), MainCommand())
}
