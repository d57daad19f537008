/*
Package config provides JSON to Go accounting configuration conversion.

PURPOSE:
  Converts a JSON configuration file into the chart extensions and fee
  schedule the engine runs with. This enables accounting configuration
  without code changes - operations staff can add expense accounts or
  waive fees per property in JSON, and the engine picks it up at start.

WHY JSON?
  - Non-developers can modify the fee schedule
  - Version control for accounting configuration
  - Per-environment overrides without rebuilds

JSON SCHEMA:
  {
    "extra_accounts": [
      {"code": "5300", "name": "Gardening", "class": "expense"}
    ],
    "fee_schedule": {
      "version": 2,
      "base_income_account": "4000",
      "fee_income_account": "4100",
      "default_one_time_fee": 25.0,
      "scope_policies": {
        "prop-cedar": "waived"
      }
    }
  }

KEY FEATURES:
  - Validates account classes and referenced income accounts
  - Sets sensible defaults (the default chart and schedule)
  - Unknown scope policies are rejected, not ignored

USAGE:
  cfg, err := config.Load("./rentledger.json")
  chart := cfg.Chart()
  schedule := cfg.FeeSchedule()

SEE ALSO:
  - ledger/account.go: Chart of accounts registry
  - accrual/obligation.go: FeeSchedule consumed by the generator
*/
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/hearthstay/rentledger/accrual"
	"github.com/hearthstay/rentledger/ledger"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// AccountJSON is one extra account merged into the default chart.
type AccountJSON struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Class string `json:"class"` // asset, liability, equity, income, expense
}

// FeeScheduleJSON is the JSON representation of the fee schedule.
type FeeScheduleJSON struct {
	Version           int               `json:"version,omitempty"`
	BaseIncomeAccount string            `json:"base_income_account,omitempty"`
	FeeIncomeAccount  string            `json:"fee_income_account,omitempty"`
	DefaultOneTimeFee float64           `json:"default_one_time_fee,omitempty"`
	ScopePolicies     map[string]string `json:"scope_policies,omitempty"` // property -> "waived"|"first_period_full"
}

// ConfigJSON is the file-level schema.
type ConfigJSON struct {
	ExtraAccounts []AccountJSON    `json:"extra_accounts,omitempty"`
	FeeSchedule   *FeeScheduleJSON `json:"fee_schedule,omitempty"`
}

// Config is the validated configuration.
type Config struct {
	extraAccounts []ledger.Account
	schedule      accrual.FeeSchedule
}

// =============================================================================
// LOADING
// =============================================================================

var validClasses = map[string]ledger.AccountClass{
	"asset":     ledger.ClassAsset,
	"liability": ledger.ClassLiability,
	"equity":    ledger.ClassEquity,
	"income":    ledger.ClassIncome,
	"expense":   ledger.ClassExpense,
}

// Default returns the configuration the engine runs with when no file
// is given: the default chart and fee schedule, unchanged.
func Default() Config {
	return Config{schedule: accrual.DefaultFeeSchedule()}
}

// Load reads and parses a configuration file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse validates raw JSON configuration.
func Parse(data []byte) (Config, error) {
	var raw ConfigJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg := Default()

	for _, a := range raw.ExtraAccounts {
		if a.Code == "" {
			return Config{}, fmt.Errorf("extra account missing code")
		}
		class, ok := validClasses[a.Class]
		if !ok {
			return Config{}, fmt.Errorf("account %s: unknown class %q", a.Code, a.Class)
		}
		cfg.extraAccounts = append(cfg.extraAccounts, ledger.Account{
			Code:   a.Code,
			Name:   a.Name,
			Class:  class,
			Active: true,
		})
	}

	if raw.FeeSchedule != nil {
		s := raw.FeeSchedule
		if s.Version != 0 {
			cfg.schedule.Version = s.Version
		}
		if s.BaseIncomeAccount != "" {
			cfg.schedule.BaseIncomeAccount = s.BaseIncomeAccount
		}
		if s.FeeIncomeAccount != "" {
			cfg.schedule.FeeIncomeAccount = s.FeeIncomeAccount
		}
		if s.DefaultOneTimeFee != 0 {
			cfg.schedule.DefaultOneTimeFee = decimal.NewFromFloat(s.DefaultOneTimeFee).Round(2)
		}
		for scope, policy := range s.ScopePolicies {
			p := accrual.FeePolicy(policy)
			if p != accrual.FeeWaived && p != accrual.FeeFirstPeriodFull {
				return Config{}, fmt.Errorf("scope %s: unknown fee policy %q", scope, policy)
			}
			if cfg.schedule.PolicyByScope == nil {
				cfg.schedule.PolicyByScope = make(map[ledger.PropertyID]accrual.FeePolicy)
			}
			cfg.schedule.PolicyByScope[ledger.PropertyID(scope)] = p
		}
	}

	// The schedule's income accounts must resolve against the chart the
	// config itself produces.
	chart := cfg.Chart()
	for _, code := range []string{cfg.schedule.BaseIncomeAccount, cfg.schedule.FeeIncomeAccount} {
		if _, ok := chart.Lookup(code); !ok {
			return Config{}, fmt.Errorf("fee schedule references unknown account %s", code)
		}
	}

	return cfg, nil
}

// Chart returns the default chart merged with the extra accounts.
func (c Config) Chart() *ledger.StaticChart {
	accounts := ledger.DefaultChart().Accounts()
	accounts = append(accounts, c.extraAccounts...)
	return ledger.NewStaticChart(accounts, ledger.AcctRentReceivable)
}

// FeeSchedule returns the effective schedule.
func (c Config) FeeSchedule() accrual.FeeSchedule {
	return c.schedule
}
