package matcher

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig() should be valid, got: %v", err)
	}

	if cfg.Thresholds.Auto != 85 || cfg.Thresholds.Suggestion != 60 {
		t.Errorf("unexpected thresholds: auto=%d suggestion=%d", cfg.Thresholds.Auto, cfg.Thresholds.Suggestion)
	}

	weights := []struct {
		name     string
		got      int
		expected int
	}{
		{"exact amount", cfg.Rules.ExactAmount.Weight, 40},
		{"exact reference", cfg.Rules.ExactReference.Weight, 30},
		{"partial reference", cfg.Rules.PartialReference.Weight, 15},
		{"same client", cfg.Rules.SameClient.Weight, 10},
		{"close date", cfg.Rules.CloseDate.Weight, 5},
	}
	for _, w := range weights {
		if w.got != w.expected {
			t.Errorf("%s weight = %d, expected %d", w.name, w.got, w.expected)
		}
	}

	if !cfg.Complex.AmountTolerance.Equal(decimal.NewFromFloat(5.00)) {
		t.Errorf("amount tolerance = %s, expected 5", cfg.Complex.AmountTolerance)
	}
	if !cfg.Complex.EnableNTo1 || !cfg.Complex.Enable1ToN {
		t.Error("combination matching should be enabled by default")
	}
	if cfg.Complex.DateRangeDays != 60 || cfg.Complex.MaxGroupSize != 4 {
		t.Errorf("unexpected combination bounds: days=%d size=%d", cfg.Complex.DateRangeDays, cfg.Complex.MaxGroupSize)
	}
	if !cfg.EnablePatternLearning {
		t.Error("pattern learning should be enabled by default")
	}
}

func TestStrictConfig(t *testing.T) {
	cfg := StrictConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("StrictConfig() should be valid, got: %v", err)
	}
	if cfg.Thresholds.Auto != 95 || cfg.Thresholds.Suggestion != 75 {
		t.Errorf("unexpected thresholds: auto=%d suggestion=%d", cfg.Thresholds.Auto, cfg.Thresholds.Suggestion)
	}
	if !cfg.Complex.AmountTolerance.IsZero() {
		t.Errorf("amount tolerance = %s, expected 0", cfg.Complex.AmountTolerance)
	}
	if cfg.Complex.EnableNTo1 || cfg.Complex.Enable1ToN || cfg.EnablePatternLearning {
		t.Error("strict configuration should disable combinations and pattern learning")
	}
}

func TestRelaxedConfig(t *testing.T) {
	cfg := RelaxedConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("RelaxedConfig() should be valid, got: %v", err)
	}
	if cfg.Thresholds.Auto != 80 || cfg.Thresholds.Suggestion != 45 {
		t.Errorf("unexpected thresholds: auto=%d suggestion=%d", cfg.Thresholds.Auto, cfg.Thresholds.Suggestion)
	}
	if cfg.Complex.DateRangeDays != 120 || cfg.Complex.MaxGroupSize != 5 {
		t.Errorf("unexpected combination bounds: days=%d size=%d", cfg.Complex.DateRangeDays, cfg.Complex.MaxGroupSize)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid default",
			mutate: func(*Config) {},
		},
		{
			name:    "auto threshold above cap",
			mutate:  func(c *Config) { c.Thresholds.Auto = 101 },
			wantErr: "auto threshold",
		},
		{
			name:    "negative suggestion threshold",
			mutate:  func(c *Config) { c.Thresholds.Suggestion = -1 },
			wantErr: "suggestion threshold",
		},
		{
			name: "suggestion exceeds auto",
			mutate: func(c *Config) {
				c.Thresholds.Auto = 50
				c.Thresholds.Suggestion = 70
			},
			wantErr: "cannot exceed auto threshold",
		},
		{
			name:    "negative rule weight",
			mutate:  func(c *Config) { c.Rules.SameClient.Weight = -10 },
			wantErr: "same client weight",
		},
		{
			name:    "rule weight above cap",
			mutate:  func(c *Config) { c.Rules.ExactAmount.Weight = 150 },
			wantErr: "exact amount weight",
		},
		{
			name:    "negative amount tolerance",
			mutate:  func(c *Config) { c.Complex.AmountTolerance = decimal.NewFromFloat(-0.01) },
			wantErr: "amount tolerance",
		},
		{
			name:    "negative date range",
			mutate:  func(c *Config) { c.Complex.DateRangeDays = -1 },
			wantErr: "date range",
		},
		{
			name:    "group size too small with combinations enabled",
			mutate:  func(c *Config) { c.Complex.MaxGroupSize = 1 },
			wantErr: "max group size",
		},
		{
			name: "group size ignored when combinations disabled",
			mutate: func(c *Config) {
				c.Complex.EnableNTo1 = false
				c.Complex.Enable1ToN = false
				c.Complex.MaxGroupSize = 0
			},
		},
		{
			name:    "negative candidate cap",
			mutate:  func(c *Config) { c.MaxCandidatesPerPayment = -5 },
			wantErr: "max candidates",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, expected it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigClone(t *testing.T) {
	original := DefaultConfig()
	clone := original.Clone()

	clone.Thresholds.Auto = 99
	clone.Complex.AmountTolerance = decimal.NewFromFloat(50.00)

	if original.Thresholds.Auto != 85 {
		t.Errorf("mutating the clone changed the original auto threshold: %d", original.Thresholds.Auto)
	}
	if !original.Complex.AmountTolerance.Equal(decimal.NewFromFloat(5.00)) {
		t.Errorf("mutating the clone changed the original tolerance: %s", original.Complex.AmountTolerance)
	}

	var nilConfig *Config
	if nilConfig.Clone() != nil {
		t.Error("Clone() of nil should return nil")
	}
}

func TestConfigString(t *testing.T) {
	s := DefaultConfig().String()
	for _, fragment := range []string{"Auto: 85", "Suggestion: 60", "PatternLearning: true"} {
		if !strings.Contains(s, fragment) {
			t.Errorf("String() = %q, expected it to contain %q", s, fragment)
		}
	}
}
