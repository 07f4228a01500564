package seed

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	grpcmetadata "google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/louisbranch/keybazaar/internal/api/grpc/auth"
	"github.com/louisbranch/keybazaar/internal/api/grpc/ledgerv1"
	"github.com/louisbranch/keybazaar/internal/api/grpc/registryv1"
	"github.com/louisbranch/keybazaar/internal/registry/ident"
)

// labelSubKey is the annotation that ties an issued key back to its
// manifest declaration across runs.
const labelSubKey = "seed.label"

// Runner applies manifests over the public APIs. It holds the token
// signing key so it can act as each declared account.
type Runner struct {
	// Registry drives the registry API. Required.
	Registry *registryv1.Client
	// Ledger mints balances and approvals. Nil skips account funding.
	Ledger *ledgerv1.Client
	// Minter signs access tokens for manifest accounts. Required.
	Minter *auth.Minter
	// RegistryAccount receives purchase allowances.
	RegistryAccount string
	// TokenLifetime bounds minted seed tokens.
	TokenLifetime time.Duration
	// Logf reports progress. Nil discards it.
	Logf func(format string, args ...any)
}

func (r *Runner) logf(format string, args ...any) {
	if r.Logf != nil {
		r.Logf(format, args...)
	}
}

func (r *Runner) as(ctx context.Context, account string) (context.Context, error) {
	lifetime := r.TokenLifetime
	if lifetime <= 0 {
		lifetime = 10 * time.Minute
	}
	token, err := r.Minter.Mint(account, "seed", lifetime)
	if err != nil {
		return nil, fmt.Errorf("mint token for %s: %w", account, err)
	}
	return grpcmetadata.AppendToOutgoingContext(ctx, auth.AuthorizationHeader, "Bearer "+token), nil
}

// Apply converges the registry and ledger on the manifest's records.
func (r *Runner) Apply(ctx context.Context, manifest Manifest) error {
	if err := manifest.Validate(); err != nil {
		return err
	}
	for _, account := range manifest.Accounts {
		if err := r.applyAccount(ctx, account); err != nil {
			return err
		}
	}
	for _, svc := range manifest.Services {
		if err := r.applyService(ctx, svc); err != nil {
			return err
		}
	}
	return nil
}

// applyAccount tops the balance up to the declared amount and sets the
// purchase allowance. Minting only the shortfall keeps re-runs stable.
func (r *Runner) applyAccount(ctx context.Context, account Account) error {
	if r.Ledger == nil {
		return nil
	}
	balance, err := r.Ledger.BalanceOf(ctx, account.ID)
	if err != nil {
		return fmt.Errorf("balance of %s: %w", account.ID, err)
	}
	if balance < account.Balance {
		if err := r.Ledger.Mint(ctx, account.ID, account.Balance-balance); err != nil {
			return fmt.Errorf("mint for %s: %w", account.ID, err)
		}
		r.logf("seed: minted %d for %s", account.Balance-balance, account.ID)
	}
	if account.Approve > 0 && r.RegistryAccount != "" {
		if err := r.Ledger.Approve(ctx, account.ID, r.RegistryAccount, account.Approve); err != nil {
			return fmt.Errorf("approve for %s: %w", account.ID, err)
		}
	}
	return nil
}

func (r *Runner) applyService(ctx context.Context, svc Service) error {
	ownerCtx, err := r.as(ctx, svc.Owner)
	if err != nil {
		return err
	}

	created, err := r.Registry.CreateService(ownerCtx, svc.URL)
	switch {
	case err == nil:
		r.logf("seed: created service %s (%s)", created.ID, svc.URL)
	case status.Code(err) == codes.AlreadyExists:
		id, derr := ident.ServiceID(svc.URL)
		if derr != nil {
			return derr
		}
		created, err = r.Registry.GetService(ctx, id)
		if err != nil {
			return fmt.Errorf("look up existing service %s: %w", svc.URL, err)
		}
	default:
		return fmt.Errorf("create service %s: %w", svc.URL, err)
	}

	for _, account := range svc.SharedWith {
		if err := r.Registry.ShareService(ownerCtx, created.ID, account); err != nil {
			return fmt.Errorf("share service %s with %s: %w", created.ID, account, err)
		}
	}

	for _, key := range svc.Keys {
		if err := r.applyKey(ctx, ownerCtx, created.ID, key); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) applyKey(ctx, ownerCtx context.Context, serviceID string, decl Key) error {
	keyID, err := r.findKeyByLabel(ctx, serviceID, decl.Label)
	if err != nil {
		return err
	}
	if keyID == "" {
		issued, err := r.Registry.IssueKey(ownerCtx, serviceID, decl.Recipient)
		if err != nil {
			return fmt.Errorf("issue key %q: %w", decl.Label, err)
		}
		keyID = issued.ID
		if err := r.Registry.SetKeyData(ownerCtx, serviceID, keyID, labelSubKey, decl.Label); err != nil {
			return fmt.Errorf("label key %q: %w", decl.Label, err)
		}
		r.logf("seed: issued key %s (%s)", keyID, decl.Label)
	}

	if _, err := r.Registry.SetKeyPermissions(ownerCtx, keyID, decl.CanShare, decl.CanTrade, decl.CanSell); err != nil {
		return fmt.Errorf("set permissions on %q: %w", decl.Label, err)
	}
	for subKey, value := range decl.Data {
		if err := r.Registry.SetKeyData(ownerCtx, serviceID, keyID, subKey, value); err != nil {
			return fmt.Errorf("set data %s on %q: %w", subKey, decl.Label, err)
		}
	}

	holder, err := r.Registry.GetKey(ctx, keyID)
	if err != nil {
		return fmt.Errorf("read key %q: %w", decl.Label, err)
	}
	holderCtx, err := r.as(ctx, holder.Owner)
	if err != nil {
		return err
	}
	for _, account := range decl.SharedWith {
		if err := r.Registry.ShareKey(holderCtx, keyID, account); err != nil {
			return fmt.Errorf("share key %q with %s: %w", decl.Label, account, err)
		}
	}
	if decl.Sale != nil {
		err := r.Registry.CreateSalesOffer(holderCtx, keyID, decl.Sale.Buyer, decl.Sale.Price, decl.Sale.Resellable)
		if err != nil {
			return fmt.Errorf("offer key %q: %w", decl.Label, err)
		}
	}
	return nil
}

// findKeyByLabel scans the service's keys for one carrying the label
// annotation from a previous run.
func (r *Runner) findKeyByLabel(ctx context.Context, serviceID, label string) (string, error) {
	filter := fmt.Sprintf("service_id = %q", serviceID)
	var token string
	for {
		page, next, err := r.Registry.ListKeys(ctx, registryv1.ListPage{Filter: filter, PageToken: token})
		if err != nil {
			return "", fmt.Errorf("list keys for %s: %w", serviceID, err)
		}
		for _, key := range page {
			value, err := r.Registry.GetKeyData(ctx, key.ID, labelSubKey)
			if err != nil {
				return "", fmt.Errorf("read label of %s: %w", key.ID, err)
			}
			if value == label {
				return key.ID, nil
			}
		}
		if next == "" {
			return "", nil
		}
		token = next
	}
}
