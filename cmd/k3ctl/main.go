// Command k3ctl inspects stage catalogues, evaluates approval history
// snapshots offline and submits decisions to a running service.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
