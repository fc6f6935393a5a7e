// Command pulsectl drives the round contract from a terminal: reading
// rounds, placing bets, finalizing and claiming, and running a local
// devnet for development.
package main

import (
	"fmt"
	"os"

	"github.com/blockberries/pulse"
)

func main() {
	root := newRootCmd(os.Stdout)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if c := pulse.Category(err); c != pulse.CategoryUnknown {
			fmt.Fprintln(os.Stderr, pulse.Describe(err))
		}
		os.Exit(1)
	}
}
