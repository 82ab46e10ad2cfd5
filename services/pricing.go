package services

import (
	"math"
)

// Material rates and fixed charges used by the quote calculation, in
// currency units. Area rates are per square centimetre.
const (
	GlassRatePerSqCM  = 0.85
	MDFRatePerSqCM    = 0.45
	FixedSuppliesCost = 250.0
	LaborBaseCost     = 500.0
)

// Deadline multipliers applied on top of the base quote.
const (
	DeadlineStandard = "standard"
	DeadlineExpress  = "express"
	DeadlineCustom   = "custom"
)

// Quote is the cost breakdown for an order. All amounts are zero when the
// dimensions are invalid.
type Quote struct {
	BaseFramePrice float64 `json:"base_frame_price"`
	GlassCost      float64 `json:"glass_cost"`
	MDFCost        float64 `json:"mdf_cost"`
	SuppliesCost   float64 `json:"supplies_cost"`
	LaborCost      float64 `json:"labor_cost"`
	Total          float64 `json:"total"`
}

// CalculateCost computes a quote from the frame dimensions and the base
// frame price. Non-positive dimensions yield a zero quote; the total is
// rounded up to the nearest currency unit and is never negative.
func CalculateCost(widthCM, heightCM, baseFramePrice float64) Quote {
	if widthCM <= 0 || heightCM <= 0 || baseFramePrice < 0 {
		return Quote{}
	}

	area := widthCM * heightCM
	quote := Quote{
		BaseFramePrice: baseFramePrice,
		GlassCost:      area * GlassRatePerSqCM,
		MDFCost:        area * MDFRatePerSqCM,
		SuppliesCost:   FixedSuppliesCost,
		LaborCost:      LaborBaseCost,
	}
	quote.Total = math.Ceil(quote.BaseFramePrice + quote.GlassCost + quote.MDFCost + quote.SuppliesCost + quote.LaborCost)
	return quote
}

// DeadlineMultiplier returns the surcharge factor for a deadline kind.
// Unknown kinds are treated as standard.
func DeadlineMultiplier(kind string) float64 {
	switch kind {
	case DeadlineExpress:
		return 1.5
	case DeadlineCustom:
		return 1.25
	default:
		return 1.0
	}
}

// WithDeadline returns the quote total with the deadline surcharge
// applied, rounded up to the nearest currency unit.
func (q Quote) WithDeadline(kind string) float64 {
	return math.Ceil(q.Total * DeadlineMultiplier(kind))
}
