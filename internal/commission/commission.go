// Package commission computes the platform's cut for a payment amount from an
// immutable tier table. The table is validated once at load time; Compute is a
// pure function over it.
package commission

import (
	"fmt"

	"github.com/shopspring/decimal"

	derrors "giftvault/pkg/domain-errors"
)

// AccountType distinguishes recipients whose commission is charged entirely
// to the sender.
type AccountType string

const (
	AccountStandard AccountType = "standard"
	// AccountVerifiedCreator recipients receive the full nominal amount; the
	// whole commission is surcharged to the sender.
	AccountVerifiedCreator AccountType = "verified_creator"
)

// Tier is one amount range of the commission table. Amounts are minor
// currency units; the range is [MinAmount, MaxAmount), nil MaxAmount means
// unbounded.
type Tier struct {
	Name       string
	MinAmount  int64
	MaxAmount  *int64
	Rate       decimal.Decimal
	GiverShare decimal.Decimal
}

// Table is a validated, immutable commission tier table.
type Table struct {
	tiers []Tier
}

// Breakdown is the result of a commission computation. Giver + Receiver always
// equals Total exactly: Receiver is derived by subtraction, never rounded
// independently.
type Breakdown struct {
	TierName     string `json:"tierName"`
	Total        int64  `json:"totalCommission"`
	Giver        int64  `json:"giverCommission"`
	Receiver     int64  `json:"receiverCommission"`
	GiverPays    int64  `json:"giverPays"`
	ReceiverGets int64  `json:"receiverGets"`
}

// LoadTiers validates and freezes a tier table. Ranges must start at zero, be
// contiguous and non-overlapping, and end with an unbounded tier. Rates live
// in [0,1), shares in [0,1]. Called at process start; config errors abort
// startup rather than surfacing at request time.
func LoadTiers(tiers []Tier) (*Table, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("commission: tier table is empty")
	}
	one := decimal.NewFromInt(1)
	var next int64
	for i, t := range tiers {
		if t.Name == "" {
			return nil, fmt.Errorf("commission: tier %d has no name", i)
		}
		if t.MinAmount != next {
			return nil, fmt.Errorf("commission: tier %q starts at %d, want %d (ranges must be contiguous)", t.Name, t.MinAmount, next)
		}
		if t.Rate.IsNegative() || t.Rate.GreaterThanOrEqual(one) {
			return nil, fmt.Errorf("commission: tier %q rate %s outside [0,1)", t.Name, t.Rate)
		}
		if t.GiverShare.IsNegative() || t.GiverShare.GreaterThan(one) {
			return nil, fmt.Errorf("commission: tier %q giver share %s outside [0,1]", t.Name, t.GiverShare)
		}
		if t.MaxAmount == nil {
			if i != len(tiers)-1 {
				return nil, fmt.Errorf("commission: unbounded tier %q must be last", t.Name)
			}
			break
		}
		if *t.MaxAmount <= t.MinAmount {
			return nil, fmt.Errorf("commission: tier %q has empty range", t.Name)
		}
		next = *t.MaxAmount
	}
	if tiers[len(tiers)-1].MaxAmount != nil {
		return nil, fmt.Errorf("commission: last tier %q must be unbounded", tiers[len(tiers)-1].Name)
	}
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	return &Table{tiers: out}, nil
}

// DefaultTiers is the stock table used when no override is configured.
// Amounts are minor units.
func DefaultTiers() []Tier {
	max1 := int64(1000)
	max2 := int64(5000)
	return []Tier{
		{Name: "micro", MinAmount: 0, MaxAmount: &max1, Rate: decimal.NewFromFloat(0.05), GiverShare: decimal.NewFromFloat(0.5)},
		{Name: "standard", MinAmount: 1000, MaxAmount: &max2, Rate: decimal.NewFromFloat(0.10), GiverShare: decimal.NewFromFloat(0.7)},
		{Name: "premium", MinAmount: 5000, MaxAmount: nil, Rate: decimal.NewFromFloat(0.12), GiverShare: decimal.NewFromFloat(0.8)},
	}
}

// Compute looks up the tier containing amount and splits the commission.
//
// Standard recipients bear the commission out of the nominal amount: the
// receiver gets amount − total and the sender is debited exactly the amount.
// The giver/receiver split attributes the fee between the parties for
// receipts. Verified creators invert this: the sender is surcharged the full
// commission on top and the receiver gets the full nominal amount.
//
// All fee math truncates toward zero at the minor-currency-unit boundary; the
// receiver portion is total − giver so the parts always sum exactly.
func (t *Table) Compute(amount int64, accountType AccountType) (Breakdown, error) {
	if amount <= 0 {
		return Breakdown{}, derrors.New(derrors.CodeValidation, "amount must be positive")
	}
	tier, ok := t.lookup(amount)
	if !ok {
		return Breakdown{}, derrors.New(derrors.CodeValidation, "no commission tier covers amount")
	}

	amt := decimal.NewFromInt(amount)
	total := amt.Mul(tier.Rate).Truncate(0).IntPart()

	giverShare := tier.GiverShare
	if accountType == AccountVerifiedCreator {
		giverShare = decimal.NewFromInt(1)
	}
	giver := decimal.NewFromInt(total).Mul(giverShare).Truncate(0).IntPart()
	receiver := total - giver

	b := Breakdown{
		TierName:  tier.Name,
		Total:     total,
		Giver:     giver,
		Receiver:  receiver,
		GiverPays: amount,
	}
	if accountType == AccountVerifiedCreator {
		b.GiverPays = amount + total
		b.ReceiverGets = amount
	} else {
		b.ReceiverGets = amount - total
	}
	return b, nil
}

func (t *Table) lookup(amount int64) (Tier, bool) {
	for _, tier := range t.tiers {
		if amount < tier.MinAmount {
			continue
		}
		if tier.MaxAmount == nil || amount < *tier.MaxAmount {
			return tier, true
		}
	}
	return Tier{}, false
}
