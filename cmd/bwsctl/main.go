// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Command bwsctl administers a bestworst database from the shell.
package main

import (
	"os"

	"github.com/danielhkuo/bestworst/cmd/bwsctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
