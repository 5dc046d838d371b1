/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Command sawtooth-stress drives the adaptive concurrency limiter against a simulated downstream
// whose supported concurrency changes over time and writes sampled limiter state into a CSV file.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
