package commission_fee

import "math"

// FlatCommissionFee charges a fixed amount per unit traded.
type FlatCommissionFee struct {
	Rate float64
}

// NewFlatCommissionFee creates a per-unit commission of rate.
func NewFlatCommissionFee(rate float64) CommissionFee {
	return &FlatCommissionFee{Rate: rate}
}

// Calculate returns Rate * |quantity|.
func (c *FlatCommissionFee) Calculate(quantity float64) float64 {
	return c.Rate * math.Abs(quantity)
}
