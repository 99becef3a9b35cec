// Package knowledge loads the static data the tools and the rule classifier
// run on: lookup tables, canned answers and routing markers. Defaults are
// embedded; a YAML file can override or extend them at startup.
package knowledge

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	contractx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/contract"
)

//go:embed default.yaml
var defaultYAML []byte

type Base struct {
	DeclineMessage string    `mapstructure:"decline_message"`
	Support        ToolData  `mapstructure:"support"`
	Product        ToolData  `mapstructure:"product"`
	Weight         ToolData  `mapstructure:"weight"`
	Markers        MarkerSet `mapstructure:"markers"`
}

type ToolData struct {
	Description string            `mapstructure:"description"`
	QueryPrefix string            `mapstructure:"query_prefix"`
	Canned      string            `mapstructure:"canned"`
	MissMessage string            `mapstructure:"miss_message"`
	Domains     []string          `mapstructure:"domains"`
	Entries     map[string]string `mapstructure:"entries"`
}

type MarkerSet struct {
	Competitors []string `mapstructure:"competitors"`
	Support     []string `mapstructure:"support"`
	Product     []string `mapstructure:"product"`
}

// Default returns the embedded knowledge base.
func Default() (Base, error) {
	return Load("")
}

// Load reads the embedded defaults and merges path over them when set. Maps
// merge key by key; lists in the file replace the defaults.
func Load(path string) (Base, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaultYAML)); err != nil {
		return Base{}, fmt.Errorf("read default knowledge: %w", err)
	}

	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return Base{}, fmt.Errorf("merge knowledge file=%s: %w", path, err)
		}
	}

	var kb Base
	if err := v.Unmarshal(&kb, strictDecode); err != nil {
		return Base{}, fmt.Errorf("decode knowledge: %w", err)
	}
	if err := kb.Validate(); err != nil {
		return Base{}, err
	}
	return kb, nil
}

// strictDecode rejects unknown keys so a typo in a knowledge file fails at
// startup instead of silently dropping data.
func strictDecode(dc *mapstructure.DecoderConfig) {
	dc.ErrorUnused = true
	dc.WeaklyTypedInput = true
}

func (b Base) Validate() error {
	if strings.TrimSpace(b.DeclineMessage) == "" {
		return fmt.Errorf("%w: decline_message is required", contractx.ErrValidation)
	}
	if len(b.Markers.Support) == 0 || len(b.Markers.Product) == 0 {
		return fmt.Errorf("%w: support and product markers are required", contractx.ErrValidation)
	}
	return nil
}
