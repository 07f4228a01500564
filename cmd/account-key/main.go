// Package main generates access token keypairs and mints account
// tokens for the registry API.
package main

import (
	"flag"
	"os"

	"github.com/louisbranch/keybazaar/internal/platform/config"
	"github.com/louisbranch/keybazaar/internal/tools/accountkey"
)

func main() {
	cfg, err := accountkey.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	if err := accountkey.Run(cfg, os.Stdout, nil); err != nil {
		config.Exitf("account key: %v", err)
	}
}
