// Package seed replays a TOML manifest of accounts, services, keys, and
// offers against a running registry. Applying the same manifest twice is
// a no-op, so manifests double as reusable local development datasets.
package seed

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Manifest declares the records a seed run should converge on.
type Manifest struct {
	Name     string    `toml:"name"`
	Accounts []Account `toml:"accounts"`
	Services []Service `toml:"services"`
}

// Account declares a ledger identity with a target balance and an
// allowance approved to the registry account for purchases.
type Account struct {
	ID      string `toml:"id"`
	Balance uint64 `toml:"balance"`
	Approve uint64 `toml:"approve"`
}

// Service declares one registered service and its keys.
type Service struct {
	Owner      string   `toml:"owner"`
	URL        string   `toml:"url"`
	SharedWith []string `toml:"shared_with"`
	Keys       []Key    `toml:"keys"`
}

// Key declares one issued key. Label identifies the key across runs: it
// is stored as an annotation so a re-run finds the key it issued before.
type Key struct {
	Label      string            `toml:"label"`
	Recipient  string            `toml:"recipient"`
	CanShare   bool              `toml:"can_share"`
	CanTrade   bool              `toml:"can_trade"`
	CanSell    bool              `toml:"can_sell"`
	SharedWith []string          `toml:"shared_with"`
	Data       map[string]string `toml:"data"`
	Sale       *Sale             `toml:"sale"`
}

// Sale declares a live sales offer on a key.
type Sale struct {
	Buyer      string `toml:"buyer"`
	Price      uint64 `toml:"price"`
	Resellable bool   `toml:"resellable"`
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (Manifest, error) {
	var manifest Manifest
	if _, err := toml.DecodeFile(path, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("load manifest: %w", err)
	}
	if err := manifest.Validate(); err != nil {
		return Manifest{}, err
	}
	return manifest, nil
}

// Validate checks manifest invariants before any API call is made.
func (m Manifest) Validate() error {
	for i, account := range m.Accounts {
		if account.ID == "" {
			return fmt.Errorf("accounts[%d]: id is required", i)
		}
	}
	for i, svc := range m.Services {
		if svc.Owner == "" {
			return fmt.Errorf("services[%d]: owner is required", i)
		}
		if svc.URL == "" {
			return fmt.Errorf("services[%d]: url is required", i)
		}
		labels := map[string]bool{}
		for j, key := range svc.Keys {
			if key.Label == "" {
				return fmt.Errorf("services[%d].keys[%d]: label is required", i, j)
			}
			if labels[key.Label] {
				return fmt.Errorf("services[%d]: duplicate key label %q", i, key.Label)
			}
			labels[key.Label] = true
			if key.Recipient == "" {
				return fmt.Errorf("services[%d].keys[%d]: recipient is required", i, j)
			}
			if key.Sale != nil {
				if key.Sale.Buyer == "" {
					return fmt.Errorf("services[%d].keys[%d]: sale buyer is required", i, j)
				}
				if key.Sale.Price == 0 {
					return fmt.Errorf("services[%d].keys[%d]: sale price must be positive", i, j)
				}
				if !key.CanSell {
					return fmt.Errorf("services[%d].keys[%d]: sale requires can_sell", i, j)
				}
			}
			if len(key.SharedWith) > 0 && !key.CanShare {
				return fmt.Errorf("services[%d].keys[%d]: shared_with requires can_share", i, j)
			}
		}
	}
	return nil
}
