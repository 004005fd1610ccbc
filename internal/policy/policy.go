// Package policy loads the operator policy file: the record storage
// deposit and the genesis of the embedded token ledger.
package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/meatcoin/meatcoin/internal/identity"
)

// DefaultRecordDeposit is the storage deposit charged when a redemption
// record is created and refunded when it is closed.
const DefaultRecordDeposit = 1_000_000

// GenesisAccount is a pre-funded holding account for development setups.
type GenesisAccount struct {
	Address identity.Identity
	Owner   identity.Identity
	Balance uint64
}

// Genesis seeds the embedded token ledger at startup.
type Genesis struct {
	Mint      identity.Identity
	Authority identity.Identity
	Accounts  []GenesisAccount
}

// Policy is the parsed operator policy.
type Policy struct {
	RecordDeposit uint64
	Genesis       *Genesis
}

// filePolicy is the YAML shape of the policy file.
type filePolicy struct {
	RecordDeposit *uint64 `yaml:"record_deposit"`
	Genesis       *struct {
		Mint      string `yaml:"mint"`
		Authority string `yaml:"authority"`
		Accounts  []struct {
			Address string `yaml:"address"`
			Owner   string `yaml:"owner"`
			Balance uint64 `yaml:"balance"`
		} `yaml:"accounts"`
	} `yaml:"genesis"`
}

// Default returns the policy used when no file is configured.
func Default() *Policy {
	return &Policy{RecordDeposit: DefaultRecordDeposit}
}

// Load reads and parses the policy file at path. An empty path returns the
// default policy.
func Load(path string) (*Policy, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}

	var raw filePolicy
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}

	p := Default()
	if raw.RecordDeposit != nil {
		p.RecordDeposit = *raw.RecordDeposit
	}

	if raw.Genesis != nil {
		mint, err := identity.Parse(raw.Genesis.Mint)
		if err != nil {
			return nil, fmt.Errorf("genesis mint: %w", err)
		}
		authority, err := identity.Parse(raw.Genesis.Authority)
		if err != nil {
			return nil, fmt.Errorf("genesis authority: %w", err)
		}

		g := &Genesis{Mint: mint, Authority: authority}
		for i, a := range raw.Genesis.Accounts {
			addr, err := identity.Parse(a.Address)
			if err != nil {
				return nil, fmt.Errorf("genesis account %d address: %w", i, err)
			}
			owner, err := identity.Parse(a.Owner)
			if err != nil {
				return nil, fmt.Errorf("genesis account %d owner: %w", i, err)
			}
			g.Accounts = append(g.Accounts, GenesisAccount{
				Address: addr,
				Owner:   owner,
				Balance: a.Balance,
			})
		}
		p.Genesis = g
	}

	return p, nil
}
