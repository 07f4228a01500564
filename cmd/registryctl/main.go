// Package main is the operator CLI for a running registry.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/louisbranch/keybazaar/internal/platform/config"
	"github.com/louisbranch/keybazaar/internal/tools/registryctl"
)

func main() {
	cfg, args, err := registryctl.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := registryctl.Run(ctx, cfg, args, os.Stdout); err != nil {
		config.Exitf("registryctl: %v", err)
	}
}
