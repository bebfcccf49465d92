package commission_fee

// ZeroCommissionFee never charges.
type ZeroCommissionFee struct{}

func NewZeroCommissionFee() CommissionFee {
	return &ZeroCommissionFee{}
}

func (c *ZeroCommissionFee) Calculate(float64) float64 {
	return 0.0
}
