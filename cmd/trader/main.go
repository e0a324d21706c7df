// trader runs the multi-timeframe FX trend-following engine.
package main

import (
	"context"
	"fmt"
	"os"

	"trend-trader/internal/cli"
)

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
