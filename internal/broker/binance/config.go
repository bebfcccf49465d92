package binance

import (
	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-engine/pkg/errors"
)

// Config holds the credentials for the order gateway. Market data needs none.
type Config struct {
	ApiKey    string `json:"apiKey" yaml:"api_key" jsonschema:"title=API Key,description=Binance API key" validate:"required"`
	SecretKey string `json:"secretKey" yaml:"secret_key" jsonschema:"title=Secret Key,description=Binance API secret key" validate:"required"`
	// BaseURL overrides the REST endpoint, e.g. https://testnet.binance.vision.
	BaseURL string `json:"baseUrl,omitempty" yaml:"base_url,omitempty" jsonschema:"title=Base URL,description=Override for the REST endpoint" validate:"omitempty,url"`
}

// Validate validates the Config struct.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid binance config", err)
	}

	return nil
}
