// Command kvbench is a load generator and latency-measurement harness for
// a distributed key/value database, modeled on the donor's cmd/stormdb
// cobra-based entry point.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
