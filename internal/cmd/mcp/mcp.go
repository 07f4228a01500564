// Package mcp parses MCP command flags and selects stdio or HTTP transport.
package mcp

import (
	"context"
	"flag"

	mcpapp "github.com/louisbranch/keybazaar/internal/mcp"
	entrypoint "github.com/louisbranch/keybazaar/internal/platform/cmd"
)

// Config holds MCP command configuration.
type Config struct {
	RegistryAddr string `env:"KEYBAZAAR_REGISTRY_ADDR"  envDefault:"localhost:8080"`
	HTTPAddr     string `env:"KEYBAZAAR_MCP_HTTP_ADDR"  envDefault:"localhost:8085"`
	Transport    string `env:"KEYBAZAAR_MCP_TRANSPORT"  envDefault:"stdio"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.RegistryAddr, "registry-addr", cfg.RegistryAddr, "registry gRPC address")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address (for http transport)")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "transport type: stdio or http")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the MCP protocol adapter.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMCP, func(context.Context) error {
		return mcpapp.Run(ctx, mcpapp.Config{
			RegistryAddr: cfg.RegistryAddr,
			HTTPAddr:     cfg.HTTPAddr,
			Transport:    mcpapp.TransportKind(cfg.Transport),
		})
	})
}
