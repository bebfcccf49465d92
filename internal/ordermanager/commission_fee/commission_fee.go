package commission_fee

import "github.com/rxtech-lab/argo-engine/pkg/errors"

type CommissionFee interface {
	// Calculate returns the commission for filling quantity units.
	Calculate(quantity float64) float64
}

type Broker string

const (
	BrokerFlat              Broker = "flat"
	BrokerInteractiveBroker Broker = "interactive_broker"
	BrokerZero              Broker = "zero_commission"
)

// AllBrokers lists the accepted commission models, used for the config schema enum.
var AllBrokers = []any{
	BrokerFlat,
	BrokerInteractiveBroker,
	BrokerZero,
}

// GetCommissionFeeHandler returns the commission model for broker. rate is only
// used by the flat model.
func GetCommissionFeeHandler(broker Broker, rate float64) (CommissionFee, error) {
	switch broker {
	case BrokerFlat:
		if rate < 0 {
			return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "commission rate must not be negative, got %v", rate)
		}

		return NewFlatCommissionFee(rate), nil
	case BrokerInteractiveBroker:
		return NewInteractiveBrokerCommissionFee(), nil
	case BrokerZero, "":
		return NewZeroCommissionFee(), nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "unknown commission model %q", broker)
	}
}
