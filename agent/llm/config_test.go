package llm

import (
	"errors"
	"testing"

	contractx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/contract"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "ok", cfg: Config{APIKey: "k", Model: "m"}},
		{name: "classifier model only", cfg: Config{APIKey: "k", ClassifierModel: "m"}},
		{name: "missing key", cfg: Config{Model: "m"}, wantErr: true},
		{name: "missing model", cfg: Config{APIKey: "k", Model: "  "}, wantErr: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.cfg.Validate()
			if tc.wantErr {
				if !errors.Is(err, contractx.ErrValidation) {
					t.Fatalf("Validate() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
		})
	}
}

func TestConfigOpenRouterAppliesClassifierOverrides(t *testing.T) {
	t.Parallel()

	cfg := Config{
		BaseURL:               " https://example.test/v1 ",
		APIKey:                " key ",
		Model:                 "default-model",
		MaxCompletionToken:    256,
		Temperature:           0.7,
		ClassifierModel:       "router-model",
		ClassifierTemperature: 0,
	}

	got := cfg.OpenRouter()
	if got.Model != "router-model" {
		t.Fatalf("Model = %q, want router-model", got.Model)
	}
	if got.Temperature != 0 {
		t.Fatalf("Temperature = %v, want 0", got.Temperature)
	}
	if got.APIKey != "key" || got.BaseURL != "https://example.test/v1" {
		t.Fatalf("unexpected trimmed fields: %#v", got)
	}
	if got.MaxCompletionToken == nil || *got.MaxCompletionToken != 256 {
		t.Fatalf("MaxCompletionToken = %v, want 256", got.MaxCompletionToken)
	}
}

func TestConfigOpenRouterKeepsDefaultsWithoutOverrides(t *testing.T) {
	t.Parallel()

	cfg := Config{APIKey: "k", Model: "default-model", Temperature: 0.3, ClassifierTemperature: -1}
	got := cfg.OpenRouter()
	if got.Model != "default-model" || got.Temperature != 0.3 {
		t.Fatalf("unexpected config: model=%q temp=%v", got.Model, got.Temperature)
	}
}
