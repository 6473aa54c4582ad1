// Package matcher provides the invoice/payment matching engine and configuration.
//
// This package implements confidence-scored matching of incoming payments
// against open invoices, handling various real-world scenarios including:
//   - Noisy payment references (bank prefixes, truncation, accents)
//   - Amount tolerances for fees and rounding differences
//   - Multi-invoice settlements (several invoices paid at once)
//   - Split payments (one invoice paid in installments)
//   - Learned per-client payment patterns
//
// The matching engine uses a multi-stage approach:
//  1. Candidate selection using indexed lookups
//  2. Additive integer scoring across amount, reference, client and date criteria
//  3. Threshold-based classification into automatic and suggested matches
//  4. Combination search for N:1 and 1:N settlements
//
// Example usage:
//
//	config := matcher.DefaultConfig()
//	config.Thresholds.Auto = 90
//
//	engine := matcher.NewEngine(config)
//	engine.LoadInvoices(invoices)
//
//	groups, err := engine.GenerateCandidates(ctx, payments)
package matcher

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Date proximity cutoffs in days. Within closeDateDays of the due date a
// payment earns the full date weight, within relativelyCloseDateDays it
// earns half.
const (
	closeDateDays           = 5
	relativelyCloseDateDays = 15
)

// maxScore caps the total confidence score of any pair
const maxScore = 100

// Thresholds classify total scores into confidence levels.
// Scores at or above Auto qualify for automatic validation; scores at or
// above Suggestion are surfaced for manual review; everything below is
// discarded.
type Thresholds struct {
	Auto       int `json:"auto"`
	Suggestion int `json:"suggestion"`
}

// Rule carries the weight a scoring criterion awards when it fires
type Rule struct {
	Weight int `json:"weight"`
}

// Rules holds the weights of the five primary scoring criteria.
// Derived criteria (partial reference number match, similar client,
// relatively close date) award fixed fractions of these weights.
type Rules struct {
	ExactAmount      Rule `json:"exactAmount"`
	ExactReference   Rule `json:"exactReference"`
	PartialReference Rule `json:"partialReference"`
	SameClient       Rule `json:"sameClient"`
	CloseDate        Rule `json:"closeDate"`
}

// ComplexConfig controls the multi-record combination search
type ComplexConfig struct {
	// AmountTolerance is the maximum absolute gap allowed between the
	// summed side and the single side of a proposed combination. It also
	// bounds the closeAmount criterion in 1:1 scoring.
	AmountTolerance decimal.Decimal `json:"amountTolerance"`

	// EnableNTo1 allows grouping several invoices against one payment
	EnableNTo1 bool `json:"enableNTo1"`

	// Enable1ToN allows grouping several payments against one invoice
	Enable1ToN bool `json:"enable1ToN"`

	// DateRangeDays restricts combination members to records dated
	// within this many days of the anchor record
	DateRangeDays int `json:"dateRangeDays"`

	// MaxGroupSize bounds the number of records combined on the N side
	MaxGroupSize int `json:"maxGroupSize"`
}

// Config holds all parameters of the matching engine. A Config is an
// explicit value: the engine clones it at construction so a run is never
// affected by later mutation of the original.
//
// Use the provided factory functions for common scenarios:
//   - DefaultConfig(): balanced weights for most use cases
//   - StrictConfig(): high thresholds, no tolerance, for critical runs
//   - RelaxedConfig(): low thresholds and wide tolerances for exploration
type Config struct {
	// Thresholds classify candidate scores
	Thresholds Thresholds `json:"thresholds"`

	// Rules weight the scoring criteria
	Rules Rules `json:"rules"`

	// Complex controls N:1 and 1:N combination matching
	Complex ComplexConfig `json:"complex"`

	// EnablePatternLearning feeds the injected pattern scorer into the
	// total when a pair already scores on at least one other criterion
	EnablePatternLearning bool `json:"enablePatternLearning"`

	// MaxCandidatesPerPayment limits the candidates kept per payment.
	// Zero means unlimited.
	MaxCandidatesPerPayment int `json:"maxCandidatesPerPayment"`
}

// DefaultConfig returns a configuration with the standard weights.
// The full-criteria score (40+30+10+5) is 85, exactly the automatic
// validation threshold.
func DefaultConfig() *Config {
	return &Config{
		Thresholds: Thresholds{
			Auto:       85,
			Suggestion: 60,
		},
		Rules: Rules{
			ExactAmount:      Rule{Weight: 40},
			ExactReference:   Rule{Weight: 30},
			PartialReference: Rule{Weight: 15},
			SameClient:       Rule{Weight: 10},
			CloseDate:        Rule{Weight: 5},
		},
		Complex: ComplexConfig{
			AmountTolerance: decimal.NewFromFloat(5.00),
			EnableNTo1:      true,
			Enable1ToN:      true,
			DateRangeDays:   60,
			MaxGroupSize:    4,
		},
		EnablePatternLearning: true,
	}
}

// StrictConfig returns a configuration for strict matching
func StrictConfig() *Config {
	cfg := DefaultConfig()
	cfg.Thresholds = Thresholds{Auto: 95, Suggestion: 75}
	cfg.Complex.AmountTolerance = decimal.Zero
	cfg.Complex.EnableNTo1 = false
	cfg.Complex.Enable1ToN = false
	cfg.EnablePatternLearning = false
	return cfg
}

// RelaxedConfig returns a configuration for exploratory matching
func RelaxedConfig() *Config {
	cfg := DefaultConfig()
	cfg.Thresholds = Thresholds{Auto: 80, Suggestion: 45}
	cfg.Complex.AmountTolerance = decimal.NewFromFloat(20.00)
	cfg.Complex.DateRangeDays = 120
	cfg.Complex.MaxGroupSize = 5
	return cfg
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Thresholds.Auto < 0 || c.Thresholds.Auto > maxScore {
		return fmt.Errorf("auto threshold must be between 0 and %d: %d", maxScore, c.Thresholds.Auto)
	}

	if c.Thresholds.Suggestion < 0 || c.Thresholds.Suggestion > maxScore {
		return fmt.Errorf("suggestion threshold must be between 0 and %d: %d", maxScore, c.Thresholds.Suggestion)
	}

	if c.Thresholds.Suggestion > c.Thresholds.Auto {
		return fmt.Errorf("suggestion threshold %d cannot exceed auto threshold %d",
			c.Thresholds.Suggestion, c.Thresholds.Auto)
	}

	if err := c.Rules.Validate(); err != nil {
		return fmt.Errorf("invalid rules: %w", err)
	}

	if c.Complex.AmountTolerance.IsNegative() {
		return fmt.Errorf("amount tolerance cannot be negative: %s", c.Complex.AmountTolerance)
	}

	if c.Complex.DateRangeDays < 0 {
		return fmt.Errorf("date range days cannot be negative: %d", c.Complex.DateRangeDays)
	}

	if (c.Complex.EnableNTo1 || c.Complex.Enable1ToN) && c.Complex.MaxGroupSize < 2 {
		return fmt.Errorf("max group size must be at least 2: %d", c.Complex.MaxGroupSize)
	}

	if c.MaxCandidatesPerPayment < 0 {
		return fmt.Errorf("max candidates per payment cannot be negative: %d", c.MaxCandidatesPerPayment)
	}

	return nil
}

// Validate checks if the rule weights are valid
func (r *Rules) Validate() error {
	weights := []struct {
		name string
		rule Rule
	}{
		{"exact amount", r.ExactAmount},
		{"exact reference", r.ExactReference},
		{"partial reference", r.PartialReference},
		{"same client", r.SameClient},
		{"close date", r.CloseDate},
	}

	for _, w := range weights {
		if w.rule.Weight < 0 {
			return fmt.Errorf("%s weight cannot be negative: %d", w.name, w.rule.Weight)
		}
		if w.rule.Weight > maxScore {
			return fmt.Errorf("%s weight cannot exceed %d: %d", w.name, maxScore, w.rule.Weight)
		}
	}

	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}

	clone := *c
	clone.Complex.AmountTolerance = c.Complex.AmountTolerance.Copy()
	return &clone
}

// String returns a human-readable description of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Auto: %d, Suggestion: %d, AmountTolerance: %s, NTo1: %t, 1ToN: %t, PatternLearning: %t}",
		c.Thresholds.Auto, c.Thresholds.Suggestion, c.Complex.AmountTolerance.String(),
		c.Complex.EnableNTo1, c.Complex.Enable1ToN, c.EnablePatternLearning)
}
