// Package registryctl drives the registry API from the command line.
// Commands map one-to-one onto registry RPCs; mutations need an access
// token minted by the account-key tool.
package registryctl

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"google.golang.org/grpc/metadata"

	"github.com/louisbranch/keybazaar/internal/api/grpc/auth"
	"github.com/louisbranch/keybazaar/internal/api/grpc/registryv1"
	entrypoint "github.com/louisbranch/keybazaar/internal/platform/cmd"
	platformgrpc "github.com/louisbranch/keybazaar/internal/platform/grpc"
	"github.com/louisbranch/keybazaar/internal/registry/ident"
)

// Config holds registryctl configuration.
type Config struct {
	RegistryAddr string        `env:"KEYBAZAAR_REGISTRY_ADDR" envDefault:"localhost:8080"`
	Token        string        `env:"KEYBAZAAR_ACCESS_TOKEN"`
	DialTimeout  time.Duration `env:"KEYBAZAAR_DIAL_TIMEOUT"  envDefault:"10s"`
}

// ParseConfig parses environment and flags into a Config plus the
// remaining command arguments.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, []string, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, nil, err
	}
	fs.StringVar(&cfg.RegistryAddr, "registry-addr", cfg.RegistryAddr, "registry gRPC address")
	fs.StringVar(&cfg.Token, "token", cfg.Token, "access token for authenticated commands")
	fs.DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "registry dial timeout")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, nil, err
	}
	return cfg, fs.Args(), nil
}

type command struct {
	usage string
	help  string
	run   func(ctx context.Context, client *registryv1.Client, args []string, out io.Writer) error
}

// Run dials the registry and executes one command.
func Run(ctx context.Context, cfg Config, args []string, out io.Writer) error {
	if len(args) == 0 {
		printUsage(out)
		return errors.New("command is required")
	}
	name := args[0]
	cmd, ok := commands[name]
	if !ok {
		printUsage(out)
		return fmt.Errorf("unknown command %q", name)
	}

	conn, err := platformgrpc.DialWithHealth(ctx, nil, cfg.RegistryAddr, cfg.DialTimeout, nil,
		platformgrpc.DefaultClientDialOptions()...)
	if err != nil {
		return fmt.Errorf("dial registry %s: %w", cfg.RegistryAddr, err)
	}
	defer func() { _ = conn.Close() }()

	if cfg.Token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, auth.AuthorizationHeader, "Bearer "+cfg.Token)
	}
	return cmd.run(ctx, registryv1.NewClient(conn), args[1:], out)
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "usage: registryctl [flags] <command> [args]")
	fmt.Fprintln(out, "commands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-60s %s\n", commands[name].usage, commands[name].help)
	}
}

func need(args []string, names ...string) error {
	if len(args) != len(names) {
		return fmt.Errorf("expected arguments: %v", names)
	}
	return nil
}

func parseAmount(raw string) (uint64, error) {
	amount, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("amount %q: %w", raw, err)
	}
	return amount, nil
}

func parseFlag(raw string) (bool, error) {
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("flag %q: %w", raw, err)
	}
	return value, nil
}

func printService(out io.Writer, svc registryv1.Service) {
	fmt.Fprintf(out, "%s\t%s\towner=%s\n", svc.ID, svc.URL, svc.Owner)
}

func printKey(out io.Writer, key registryv1.Key) {
	fmt.Fprintf(out, "%s\tservice=%s\towner=%s\tshare=%t trade=%t sell=%t\n",
		key.ID, key.ServiceID, key.Owner, key.CanShare, key.CanTrade, key.CanSell)
}

func printEvent(out io.Writer, evt registryv1.Event) {
	fmt.Fprintf(out, "%s\t%s\t%s", evt.Time.Format(time.RFC3339), evt.Type, evt.ID)
	if evt.ServiceID != "" {
		fmt.Fprintf(out, "\tservice=%s", evt.ServiceID)
	}
	if evt.KeyID != "" {
		fmt.Fprintf(out, "\tkey=%s", evt.KeyID)
	}
	if evt.Owner != "" {
		fmt.Fprintf(out, "\towner=%s", evt.Owner)
	}
	if evt.Price > 0 {
		fmt.Fprintf(out, "\tprice=%d", evt.Price)
	}
	fmt.Fprintln(out)
}

var commands = map[string]command{
	"service-create": {
		usage: "service-create <url>",
		help:  "register a service owned by the token account",
		run: func(ctx context.Context, client *registryv1.Client, args []string, out io.Writer) error {
			if err := need(args, "url"); err != nil {
				return err
			}
			svc, err := client.CreateService(ctx, args[0])
			if err != nil {
				return err
			}
			printService(out, svc)
			return nil
		},
	},
	"service-get": {
		usage: "service-get <service-id>",
		help:  "look up a service",
		run: func(ctx context.Context, client *registryv1.Client, args []string, out io.Writer) error {
			if err := need(args, "service-id"); err != nil {
				return err
			}
			svc, err := client.GetService(ctx, args[0])
			if err != nil {
				return err
			}
			printService(out, svc)
			return nil
		},
	},
	"service-list": {
		usage: "service-list [filter]",
		help:  "list services, optionally filtered",
		run: func(ctx context.Context, client *registryv1.Client, args []string, out io.Writer) error {
			var filter string
			if len(args) == 1 {
				filter = args[0]
			} else if len(args) > 1 {
				return errors.New("expected at most one filter argument")
			}
			var token string
			for {
				page, next, err := client.ListServices(ctx, registryv1.ListPage{Filter: filter, PageToken: token})
				if err != nil {
					return err
				}
				for _, svc := range page {
					printService(out, svc)
				}
				if next == "" {
					return nil
				}
				token = next
			}
		},
	},
	"service-url": {
		usage: "service-url <service-id> <url>",
		help:  "update a service url",
		run: func(ctx context.Context, client *registryv1.Client, args []string, out io.Writer) error {
			if err := need(args, "service-id", "url"); err != nil {
				return err
			}
			svc, err := client.UpdateServiceURL(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			printService(out, svc)
			return nil
		},
	},
	"key-issue": {
		usage: "key-issue <service-id> <recipient>",
		help:  "issue a key under a service",
		run: func(ctx context.Context, client *registryv1.Client, args []string, out io.Writer) error {
			if err := need(args, "service-id", "recipient"); err != nil {
				return err
			}
			key, err := client.IssueKey(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			printKey(out, key)
			return nil
		},
	},
	"key-get": {
		usage: "key-get <key-id>",
		help:  "look up a key",
		run: func(ctx context.Context, client *registryv1.Client, args []string, out io.Writer) error {
			if err := need(args, "key-id"); err != nil {
				return err
			}
			key, err := client.GetKey(ctx, args[0])
			if err != nil {
				return err
			}
			printKey(out, key)
			return nil
		},
	},
	"key-list": {
		usage: "key-list [filter]",
		help:  "list keys, optionally filtered",
		run: func(ctx context.Context, client *registryv1.Client, args []string, out io.Writer) error {
			var filter string
			if len(args) == 1 {
				filter = args[0]
			} else if len(args) > 1 {
				return errors.New("expected at most one filter argument")
			}
			var token string
			for {
				page, next, err := client.ListKeys(ctx, registryv1.ListPage{Filter: filter, PageToken: token})
				if err != nil {
					return err
				}
				for _, key := range page {
					printKey(out, key)
				}
				if next == "" {
					return nil
				}
				token = next
			}
		},
	},
	"key-perms": {
		usage: "key-perms <key-id> <can-share> <can-trade> <can-sell>",
		help:  "set key capability flags (service owner only)",
		run: func(ctx context.Context, client *registryv1.Client, args []string, out io.Writer) error {
			if err := need(args, "key-id", "can-share", "can-trade", "can-sell"); err != nil {
				return err
			}
			canShare, err := parseFlag(args[1])
			if err != nil {
				return err
			}
			canTrade, err := parseFlag(args[2])
			if err != nil {
				return err
			}
			canSell, err := parseFlag(args[3])
			if err != nil {
				return err
			}
			key, err := client.SetKeyPermissions(ctx, args[0], canShare, canTrade, canSell)
			if err != nil {
				return err
			}
			printKey(out, key)
			return nil
		},
	},
	"share": {
		usage: "share <entity-id> <account>",
		help:  "grant an account co-ownership of a service or key",
		run: func(ctx context.Context, client *registryv1.Client, args []string, out io.Writer) error {
			if err := need(args, "entity-id", "account"); err != nil {
				return err
			}
			if ident.IsService(args[0]) {
				return client.ShareService(ctx, args[0], args[1])
			}
			return client.ShareKey(ctx, args[0], args[1])
		},
	},
	"unshare": {
		usage: "unshare <entity-id> <account>",
		help:  "remove an account's co-ownership of a service or key",
		run: func(ctx context.Context, client *registryv1.Client, args []string, out io.Writer) error {
			if err := need(args, "entity-id", "account"); err != nil {
				return err
			}
			if ident.IsService(args[0]) {
				return client.UnshareService(ctx, args[0], args[1])
			}
			return client.UnshareKey(ctx, args[0], args[1])
		},
	},
	"owner": {
		usage: "owner <entity-id> <account>",
		help:  "check whether an account owns an entity",
		run: func(ctx context.Context, client *registryv1.Client, args []string, out io.Writer) error {
			if err := need(args, "entity-id", "account"); err != nil {
				return err
			}
			owns, err := client.CheckOwnership(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(out, owns)
			return nil
		},
	},
	"offer-sell": {
		usage: "offer-sell <key-id> <buyer> <price> <resellable>",
		help:  "put a key up for sale to a designated buyer",
		run: func(ctx context.Context, client *registryv1.Client, args []string, out io.Writer) error {
			if err := need(args, "key-id", "buyer", "price", "resellable"); err != nil {
				return err
			}
			price, err := parseAmount(args[2])
			if err != nil {
				return err
			}
			resellable, err := parseFlag(args[3])
			if err != nil {
				return err
			}
			return client.CreateSalesOffer(ctx, args[0], args[1], price, resellable)
		},
	},
	"offer-cancel": {
		usage: "offer-cancel <key-id>",
		help:  "withdraw a key's sales offer",
		run: func(ctx context.Context, client *registryv1.Client, args []string, out io.Writer) error {
			if err := need(args, "key-id"); err != nil {
				return err
			}
			return client.CancelSalesOffer(ctx, args[0])
		},
	},
	"offer-get": {
		usage: "offer-get <key-id>",
		help:  "read a key's sales and trade offers",
		run: func(ctx context.Context, client *registryv1.Client, args []string, out io.Writer) error {
			if err := need(args, "key-id"); err != nil {
				return err
			}
			sale, live, err := client.GetSalesOffer(ctx, args[0])
			if err != nil {
				return err
			}
			if live {
				fmt.Fprintf(out, "sale\tbuyer=%s\tprice=%d\tresellable=%t\n", sale.Buyer, sale.Price, sale.Resellable)
			}
			trade, pending, err := client.GetTradeOffer(ctx, args[0])
			if err != nil {
				return err
			}
			if pending {
				fmt.Fprintf(out, "trade\twants=%s\n", trade.WantKeyID)
			}
			if !live && !pending {
				fmt.Fprintln(out, "no offers")
			}
			return nil
		},
	},
	"buy": {
		usage: "buy <key-id> <amount>",
		help:  "purchase a key at its offered price",
		run: func(ctx context.Context, client *registryv1.Client, args []string, out io.Writer) error {
			if err := need(args, "key-id", "amount"); err != nil {
				return err
			}
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			key, err := client.PurchaseKey(ctx, args[0], amount)
			if err != nil {
				return err
			}
			printKey(out, key)
			return nil
		},
	},
	"trade": {
		usage: "trade <key-id> <want-key-id>",
		help:  "propose or complete a barter between two keys",
		run: func(ctx context.Context, client *registryv1.Client, args []string, out io.Writer) error {
			if err := need(args, "key-id", "want-key-id"); err != nil {
				return err
			}
			matched, err := client.TradeKey(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			if matched {
				fmt.Fprintln(out, "matched")
			} else {
				fmt.Fprintln(out, "offer recorded")
			}
			return nil
		},
	},
	"data-set": {
		usage: "data-set <service-id> <key-id> <sub-key> <value>",
		help:  "store an annotation under a key",
		run: func(ctx context.Context, client *registryv1.Client, args []string, out io.Writer) error {
			if err := need(args, "service-id", "key-id", "sub-key", "value"); err != nil {
				return err
			}
			return client.SetKeyData(ctx, args[0], args[1], args[2], args[3])
		},
	},
	"data-get": {
		usage: "data-get <key-id> <sub-key>",
		help:  "read an annotation under a key",
		run: func(ctx context.Context, client *registryv1.Client, args []string, out io.Writer) error {
			if err := need(args, "key-id", "sub-key"); err != nil {
				return err
			}
			value, err := client.GetKeyData(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(out, value)
			return nil
		},
	},
	"events": {
		usage: "events [filter]",
		help:  "list audit events, optionally filtered",
		run: func(ctx context.Context, client *registryv1.Client, args []string, out io.Writer) error {
			var filter string
			if len(args) == 1 {
				filter = args[0]
			} else if len(args) > 1 {
				return errors.New("expected at most one filter argument")
			}
			var token string
			for {
				page, next, err := client.ListAuditEvents(ctx, registryv1.ListPage{Filter: filter, PageToken: token})
				if err != nil {
					return err
				}
				for _, evt := range page {
					printEvent(out, evt)
				}
				if next == "" {
					return nil
				}
				token = next
			}
		},
	},
	"info": {
		usage: "info",
		help:  "show registry counts and pointers",
		run: func(ctx context.Context, client *registryv1.Client, args []string, out io.Writer) error {
			if len(args) != 0 {
				return errors.New("info takes no arguments")
			}
			info, err := client.GetRegistryInfo(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "services\t%d\n", info.ServiceCount)
			fmt.Fprintf(out, "keys\t%d\n", info.KeyCount)
			fmt.Fprintf(out, "ledger\t%s\n", info.LedgerTarget)
			fmt.Fprintf(out, "successor\t%s\n", info.Successor)
			return nil
		},
	},
	"set-ledger": {
		usage: "set-ledger <target>",
		help:  "re-point the settlement ledger (admin)",
		run: func(ctx context.Context, client *registryv1.Client, args []string, out io.Writer) error {
			if err := need(args, "target"); err != nil {
				return err
			}
			return client.SetLedgerTarget(ctx, args[0])
		},
	},
	"set-successor": {
		usage: "set-successor <address>",
		help:  "record the authoritative deployment address (admin)",
		run: func(ctx context.Context, client *registryv1.Client, args []string, out io.Writer) error {
			if err := need(args, "address"); err != nil {
				return err
			}
			return client.SetSuccessorAddress(ctx, args[0])
		},
	},
	"reclaim": {
		usage: "reclaim <from-account> <amount>",
		help:  "move approved ledger balance back to the admin (admin)",
		run: func(ctx context.Context, client *registryv1.Client, args []string, out io.Writer) error {
			if err := need(args, "from-account", "amount"); err != nil {
				return err
			}
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			return client.ReclaimLedgerBalance(ctx, args[0], amount)
		},
	},
}
