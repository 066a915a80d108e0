// Package credit holds the credit limit rule. IsExecutable is the only place the numeric rule lives.
package credit

import (
	"fmt"
	"os"

	"github.com/chris/mutual-credit-ledger/pkg/models"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// DefaultLimit is the credit limit applied to agents without an override.
var DefaultLimit = decimal.NewFromInt(100)

// Role is the side an agent takes in a prospective transaction.
type Role int

const (
	Debtor Role = iota
	Creditor
)

// IsExecutable reports whether an agent may reach prospective without breaching limit.
func IsExecutable(prospective, limit decimal.Decimal) bool {
	return prospective.GreaterThanOrEqual(limit.Neg())
}

// Prospective returns the balance an agent would have after the transaction.
func Prospective(balance, amount decimal.Decimal, role Role) decimal.Decimal {
	if role == Debtor {
		return balance.Sub(amount)
	}
	return balance.Add(amount)
}

// RoleOf returns agent's role in tx.
func RoleOf(agent models.AgentID, tx models.Transaction) Role {
	if tx.Debtor == agent {
		return Debtor
	}
	return Creditor
}

// Limits resolves the credit limit of an agent.
type Limits interface {
	LimitFor(agent models.AgentID) decimal.Decimal
}

// StaticLimits is a global default with optional per-agent overrides.
type StaticLimits struct {
	Default   decimal.Decimal
	Overrides map[models.AgentID]decimal.Decimal
}

// NewStaticLimits creates limits where every agent gets def.
func NewStaticLimits(def decimal.Decimal) *StaticLimits {
	return &StaticLimits{Default: def, Overrides: map[models.AgentID]decimal.Decimal{}}
}

// LimitFor returns the override for agent, or the default.
func (l *StaticLimits) LimitFor(agent models.AgentID) decimal.Decimal {
	if limit, ok := l.Overrides[agent]; ok {
		return limit
	}
	return l.Default
}

type limitsFile struct {
	Default string            `yaml:"default"`
	Limits  map[string]string `yaml:"limits"`
}

// LoadLimits reads per-agent overrides from a YAML file of the form
//
//	default: "100"
//	limits:
//	  <agent id>: "250"
//
// def is used when the file has no default.
func LoadLimits(path string, def decimal.Decimal) (*StaticLimits, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credit limits file: %w", err)
	}

	var file limitsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse credit limits file: %w", err)
	}

	limits := NewStaticLimits(def)
	if file.Default != "" {
		d, err := parseLimit(file.Default)
		if err != nil {
			return nil, fmt.Errorf("invalid default limit: %w", err)
		}
		limits.Default = d
	}
	for agent, value := range file.Limits {
		d, err := parseLimit(value)
		if err != nil {
			return nil, fmt.Errorf("invalid limit for %s: %w", agent, err)
		}
		limits.Overrides[models.AgentID(agent)] = d
	}
	return limits, nil
}

func parseLimit(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("limit %s is negative", s)
	}
	return d, nil
}
