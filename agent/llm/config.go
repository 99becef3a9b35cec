package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/contract"
	openrouterx "github.com/tanpawarit/Chative-Apple-Support-Agent/pkg/openrouter"
)

// Config is the OPENROUTER_* group. Credentials are only required when the
// model-backed classifier is selected, so nothing here is marked required.
type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"512"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`
	ProbeOnStart       bool          `envconfig:"PROBE_ON_START" split_words:"true" default:"true"`

	ClassifierModel       string  `envconfig:"CLASSIFIER_MODEL" split_words:"true"`
	ClassifierTemperature float32 `envconfig:"CLASSIFIER_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if c.ModelName() == "" {
		return fmt.Errorf("%w: classifier model is required", contractx.ErrValidation)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: openrouter timeout must be >= 0", contractx.ErrValidation)
	}
	return nil
}

// ModelName resolves the classifier model, falling back to the default model.
func (c Config) ModelName() string {
	if v := strings.TrimSpace(c.ClassifierModel); v != "" {
		return v
	}
	return strings.TrimSpace(c.Model)
}

func (c Config) OpenRouter() openrouterx.Config {
	temp := c.Temperature
	if c.ClassifierTemperature >= 0 {
		temp = c.ClassifierTemperature
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              c.ModelName(),
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
