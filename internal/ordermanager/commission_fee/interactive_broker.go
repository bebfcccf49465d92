package commission_fee

import "math"

const (
	ibPerUnit    = 0.005
	ibMinimumFee = 1.0
)

// InteractiveBrokerCommissionFee is the fixed-rate IB schedule: 0.005 per
// unit with a 1.0 minimum per order.
type InteractiveBrokerCommissionFee struct{}

func NewInteractiveBrokerCommissionFee() CommissionFee {
	return &InteractiveBrokerCommissionFee{}
}

func (c *InteractiveBrokerCommissionFee) Calculate(quantity float64) float64 {
	fee := ibPerUnit * math.Abs(quantity)
	if fee < ibMinimumFee {
		return ibMinimumFee
	}

	return fee
}
