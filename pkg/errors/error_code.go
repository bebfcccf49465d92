package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

// Category groups error codes by the kind of failure they describe.
type Category string

const (
	CategoryGeneral    Category = "general"
	CategoryValidation Category = "validation"
	CategoryData       Category = "data"
	CategoryOrder      Category = "order"
	CategoryBacktest   Category = "backtest"
	CategoryMarketData Category = "market_data"
	CategoryBroker     Category = "broker"
)

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter         ErrorCode = 100
	ErrCodeInvalidConfiguration     ErrorCode = 101
	ErrCodeInvalidBracketPricing    ErrorCode = 102
	ErrCodeUnsupportedInstrument    ErrorCode = 103
	ErrCodeInvalidSampling          ErrorCode = 104
	ErrCodeInvalidBarRow            ErrorCode = 105
	ErrCodeInvalidQuantity          ErrorCode = 106
	ErrCodeInvalidVersionConstraint ErrorCode = 107
	ErrCodeInvalidWireOrder         ErrorCode = 108

	// Data errors (200-299)
	ErrCodeDataNotFound         ErrorCode = 200
	ErrCodeQueryFailed          ErrorCode = 202
	ErrCodeHistoricalDataFailed ErrorCode = 203
	ErrCodeBarSizeMismatch      ErrorCode = 206

	// Order errors (500-599)
	ErrCodeInvalidOrderState ErrorCode = 500
	ErrCodeOrderNotFilled    ErrorCode = 501
	ErrCodeOrderFailed       ErrorCode = 502
	ErrCodeUnknownOrder      ErrorCode = 503
	ErrCodeTransmitFailed    ErrorCode = 504
	ErrCodeOverfill          ErrorCode = 505

	// Backtest errors (600-699)
	ErrCodeBacktestInitFailed   ErrorCode = 601
	ErrCodeBacktestConfigError  ErrorCode = 602
	ErrCodeBacktestNoStrategy   ErrorCode = 604
	ErrCodeSubscriptionFailed   ErrorCode = 609
	ErrCodeBacktestWriteFailed  ErrorCode = 610
	ErrCodeStrategyRuntimeError ErrorCode = 611

	// Market data errors (700-799)
	ErrCodeMarketDataFetchFailed ErrorCode = 700
	ErrCodeMarketDataWriteFailed ErrorCode = 701
	ErrCodeMarketDataParseFailed ErrorCode = 702

	// Broker errors (900-999)
	ErrCodeBrokerNotConnected     ErrorCode = 900
	ErrCodeBrokerConnectionFailed ErrorCode = 901
	ErrCodeBrokerUnsupported      ErrorCode = 902
)

// Category returns the category the code belongs to, derived from its range.
func (c ErrorCode) Category() Category {
	switch {
	case c >= 100 && c < 200:
		return CategoryValidation
	case c >= 200 && c < 300:
		return CategoryData
	case c >= 500 && c < 600:
		return CategoryOrder
	case c >= 600 && c < 700:
		return CategoryBacktest
	case c >= 700 && c < 800:
		return CategoryMarketData
	case c >= 900 && c < 1000:
		return CategoryBroker
	default:
		return CategoryGeneral
	}
}
