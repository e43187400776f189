// Package pricing computes tour quotes from region, party size and trip
// length using an immutable tier catalog.
package pricing

import (
	"errors"
	"fmt"
)

// ErrInsufficientData means region, pax or days is missing.
var ErrInsufficientData = errors.New("pricing: insufficient data")

// Modifiers adjust the per-day per-person rate.
type Modifiers struct {
	NoMeal         bool `json:"no_meal,omitempty" yaml:"no_meal,omitempty"`
	UpgradeHotel   bool `json:"upgrade_hotel,omitempty" yaml:"upgrade_hotel,omitempty"`
	GuideFromStart bool `json:"guide_from_start,omitempty" yaml:"guide_from_start,omitempty"`
	NoESIM         bool `json:"no_esim,omitempty" yaml:"no_esim,omitempty"`
}

// Quote is a derived price. It is never persisted by the engine.
type Quote struct {
	Region          Region    `json:"region" yaml:"region"`
	Label           string    `json:"label" yaml:"label"`
	Pax             int       `json:"pax" yaml:"pax"`
	Days            int       `json:"days" yaml:"days"`
	Tier            Tier      `json:"tier" yaml:"tier"`
	BaseRate        Money     `json:"base_rate" yaml:"base_rate"`
	DiscountApplied bool      `json:"discount_applied" yaml:"discount_applied"`
	DiscountPct     float64   `json:"discount_pct,omitempty" yaml:"discount_pct,omitempty"`
	Modifiers       Modifiers `json:"modifiers" yaml:"modifiers"`
	RatePerDay      Money     `json:"rate_per_day" yaml:"rate_per_day"`
	PerPerson       Money     `json:"per_person" yaml:"per_person"`
	Total           Money     `json:"total" yaml:"total"`
}

// Quote prices a trip. It is deterministic and safe for concurrent use.
func (c *Catalog) Quote(region Region, pax int, days int, mods Modifiers) (Quote, error) {
	if region == "" {
		return Quote{}, fmt.Errorf("%w: region", ErrInsufficientData)
	}
	if pax <= 0 {
		return Quote{}, fmt.Errorf("%w: pax", ErrInsufficientData)
	}
	if days <= 0 {
		return Quote{}, fmt.Errorf("%w: days", ErrInsufficientData)
	}

	table, ok := c.byID[region]
	if !ok {
		table = c.byID[c.DefaultRegion]
	}

	tier := selectTier(table.Tiers, pax)
	q := Quote{
		Region:    table.ID,
		Label:     c.Label(table.ID),
		Pax:       pax,
		Days:      days,
		Tier:      tier,
		BaseRate:  tier.BaseRate,
		Modifiers: mods,
	}

	rate := tier.BaseRate
	if days >= tier.LongDays && tier.LongDiscountPct > 0 {
		rate = rate.PercentOff(tier.discountBasisPoints())
		q.DiscountApplied = true
		q.DiscountPct = tier.LongDiscountPct
	}

	rate += ModifierDelta(tier, pax, mods)
	if rate < 0 {
		rate = 0
	}

	q.RatePerDay = rate
	q.PerPerson = rate.MulInt(days)
	q.Total = q.PerPerson.MulInt(pax)
	return q, nil
}

// ModifierDelta is the per-day per-person change that mods apply on top of
// the (possibly discounted) base rate.
func ModifierDelta(tier Tier, pax int, mods Modifiers) Money {
	var delta Money
	if mods.NoMeal {
		delta += tier.NoMealDelta
	}
	if mods.UpgradeHotel {
		delta += tier.UpgradeHotelFee
	}
	if mods.GuideFromStart {
		delta += tier.GuideFee.DivRound(pax)
	}
	return delta
}

// QuoteDestination resolves destination text and prices it. The second
// result reports whether the destination was recognized.
func (c *Catalog) QuoteDestination(destination string, pax int, days int, mods Modifiers) (Quote, bool, error) {
	region, known := c.Resolve(destination)
	q, err := c.Quote(region, pax, days, mods)
	return q, known, err
}

// IncludedServices lists what the quote covers, adjusted for modifiers.
func (c *Catalog) IncludedServices(mods Modifiers) []string {
	services := make([]string, 0, len(c.Services))
	for _, s := range c.Services {
		switch {
		case mods.NoMeal && s == mealService:
			services = append(services, breakfastOnlyService)
		case mods.NoESIM && s == esimService:
			continue
		case mods.UpgradeHotel && s == hotelService:
			services = append(services, upgradedHotelService)
		default:
			services = append(services, s)
		}
	}
	return services
}
