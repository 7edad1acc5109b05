// Package proofgate decides whether a payment needs proof-of-completion
// before funds can move, based on an ordered amount-range rule table.
package proofgate

import (
	"fmt"
	"time"

	derrors "giftvault/pkg/domain-errors"
)

// Requirement is the proof policy for an amount band.
type Requirement string

const (
	// RequirementNone bypasses escrow entirely: funds move directly.
	RequirementNone Requirement = "none"
	// RequirementOptional lets the sender choose at creation time.
	RequirementOptional Requirement = "optional"
	// RequirementRequired gates release on external proof verification.
	RequirementRequired Requirement = "required"
)

// Rule is one amount band of the gate. [MinAmount, MaxAmount), nil max means
// unbounded, amounts in minor units.
type Rule struct {
	MinAmount     int64
	MaxAmount     *int64
	Requirement   Requirement
	TransferDelay time.Duration
}

// Decision is the classification for a specific amount.
type Decision struct {
	Requirement   Requirement
	TransferDelay time.Duration
}

// Table is a validated, immutable proof rule table.
type Table struct {
	rules []Rule
}

// LoadRules validates and freezes a rule table using the same range
// discipline as the commission tiers: contiguous from zero, last unbounded.
func LoadRules(rules []Rule) (*Table, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("proofgate: rule table is empty")
	}
	var next int64
	for i, r := range rules {
		switch r.Requirement {
		case RequirementNone, RequirementOptional, RequirementRequired:
		default:
			return nil, fmt.Errorf("proofgate: rule %d has unknown requirement %q", i, r.Requirement)
		}
		if r.MinAmount != next {
			return nil, fmt.Errorf("proofgate: rule %d starts at %d, want %d (ranges must be contiguous)", i, r.MinAmount, next)
		}
		if r.TransferDelay < 0 {
			return nil, fmt.Errorf("proofgate: rule %d has negative transfer delay", i)
		}
		if r.MaxAmount == nil {
			if i != len(rules)-1 {
				return nil, fmt.Errorf("proofgate: unbounded rule %d must be last", i)
			}
			break
		}
		if *r.MaxAmount <= r.MinAmount {
			return nil, fmt.Errorf("proofgate: rule %d has empty range", i)
		}
		next = *r.MaxAmount
	}
	if rules[len(rules)-1].MaxAmount != nil {
		return nil, fmt.Errorf("proofgate: last rule must be unbounded")
	}
	out := make([]Rule, len(rules))
	copy(out, rules)
	return &Table{rules: out}, nil
}

// DefaultRules: below 30.00 direct pay, 30.00-100.00 sender's choice,
// above 100.00 proof required with a 72h transfer delay.
func DefaultRules() []Rule {
	max1 := int64(3000)
	max2 := int64(10000)
	return []Rule{
		{MinAmount: 0, MaxAmount: &max1, Requirement: RequirementNone},
		{MinAmount: 3000, MaxAmount: &max2, Requirement: RequirementOptional, TransferDelay: 24 * time.Hour},
		{MinAmount: 10000, MaxAmount: nil, Requirement: RequirementRequired, TransferDelay: 72 * time.Hour},
	}
}

// Classify returns the proof decision for amount.
func (t *Table) Classify(amount int64) (Decision, error) {
	if amount <= 0 {
		return Decision{}, derrors.New(derrors.CodeValidation, "amount must be positive")
	}
	for _, r := range t.rules {
		if amount < r.MinAmount {
			continue
		}
		if r.MaxAmount == nil || amount < *r.MaxAmount {
			return Decision{Requirement: r.Requirement, TransferDelay: r.TransferDelay}, nil
		}
	}
	return Decision{}, derrors.New(derrors.CodeValidation, "no proof rule covers amount")
}
