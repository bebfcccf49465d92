package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestNewError() {
	err := New(ErrCodeInvalidOrderState, "can only transmit from untransmitted")
	suite.NotNil(err)
	suite.Equal(ErrCodeInvalidOrderState, err.Code)
	suite.Equal("can only transmit from untransmitted", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestNewfError() {
	err := Newf(ErrCodeUnsupportedInstrument, "no multiplier for %s", "XYZ")
	suite.Equal(ErrCodeUnsupportedInstrument, err.Code)
	suite.Equal("no multiplier for XYZ", err.Message)
}

func (suite *ErrorTestSuite) TestWrapError() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeQueryFailed, "query failed", cause)
	suite.Equal(cause, err.Cause)
	suite.Equal(cause, err.Unwrap())
	suite.Equal("[202] query failed: underlying error", err.Error())
}

func (suite *ErrorTestSuite) TestWrapfError() {
	cause := errors.New("boom")
	err := Wrapf(ErrCodeMarketDataFetchFailed, cause, "fetching %s", "AAPL")
	suite.Equal("fetching AAPL", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestErrorString() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.Equal("[100] invalid parameter", err.Error())
}

func (suite *ErrorTestSuite) TestGetCodeFromWrapped() {
	inner := New(ErrCodeBarSizeMismatch, "bar size mismatch")
	wrapped := fmt.Errorf("ingest: %w", inner)
	suite.Equal(ErrCodeBarSizeMismatch, GetCode(wrapped))
	suite.True(HasCode(wrapped, ErrCodeBarSizeMismatch))
	suite.False(HasCode(wrapped, ErrCodeQueryFailed))
}

func (suite *ErrorTestSuite) TestGetCodeFromPlainError() {
	suite.Equal(ErrCodeUnknown, GetCode(errors.New("plain")))
}

func (suite *ErrorTestSuite) TestCategories() {
	tests := []struct {
		code     ErrorCode
		expected Category
	}{
		{ErrCodeUnknown, CategoryGeneral},
		{ErrCodeInvalidBracketPricing, CategoryValidation},
		{ErrCodeInvalidSampling, CategoryValidation},
		{ErrCodeBarSizeMismatch, CategoryData},
		{ErrCodeInvalidOrderState, CategoryOrder},
		{ErrCodeOrderNotFilled, CategoryOrder},
		{ErrCodeSubscriptionFailed, CategoryBacktest},
		{ErrCodeMarketDataParseFailed, CategoryMarketData},
		{ErrCodeBrokerNotConnected, CategoryBroker},
	}

	for _, tc := range tests {
		suite.Run(string(tc.expected), func() {
			suite.Equal(tc.expected, tc.code.Category())
		})
	}
}

func (suite *ErrorTestSuite) TestHasCategory() {
	err := fmt.Errorf("wrapped: %w", New(ErrCodeInvalidOrderState, "bad"))
	suite.True(HasCategory(err, CategoryOrder))
	suite.False(HasCategory(err, CategoryValidation))
	suite.False(HasCategory(errors.New("plain"), CategoryOrder))
}

func (suite *ErrorTestSuite) TestIsAndAs() {
	inner := New(ErrCodeOrderFailed, "failed")
	wrapped := fmt.Errorf("outer: %w", inner)
	suite.True(Is(wrapped, inner))

	var target *Error
	suite.True(As(wrapped, &target))
	suite.Equal(ErrCodeOrderFailed, target.Code)
}
