package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz         int    `yaml:"tick_rate_hz"`
	RequestExpiryTicks uint64 `yaml:"request_expiry_ticks"`

	RateLimits RateLimits `yaml:"rate_limits"`
}

type RateLimits struct {
	TpaWindowTicks uint64 `yaml:"tpa_window_ticks"`
	TpaMax         int    `yaml:"tpa_max"`
	SayWindowTicks uint64 `yaml:"say_window_ticks"`
	SayMax         int    `yaml:"say_max"`
}

// Defaults match the classic TPA behavior: 20 ticks per second, requests
// expire after 60 seconds.
func Defaults() Tuning {
	return Tuning{
		TickRateHz:         20,
		RequestExpiryTicks: 1200,
		RateLimits: RateLimits{
			TpaWindowTicks: 100,
			TpaMax:         3,
			SayWindowTicks: 100,
			SayMax:         10,
		},
	}
}

// Load reads tuning.yaml over the defaults, so a partial file only overrides
// the keys it names.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if t.TickRateHz <= 0 {
		return t, fmt.Errorf("tuning.yaml: tick_rate_hz must be positive")
	}
	if t.RequestExpiryTicks == 0 {
		return t, fmt.Errorf("tuning.yaml: request_expiry_ticks must be positive")
	}
	return t, nil
}
