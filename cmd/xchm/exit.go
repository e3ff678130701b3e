//go:build !windows

package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

// exit sets a non-zero status unless the error came from printing help.
func exit(err error) {
	if err != nil && !flags.WroteHelp(err) {
		os.Exit(1)
	}
}
