// Package config assembles the component configurations used by the CLI
// from flags and profiles.
package config

import (
	"fmt"
	"strings"

	"github.com/PocKeTio/Reco/internal/matcher"
	"github.com/PocKeTio/Reco/internal/parsers"
	"github.com/PocKeTio/Reco/internal/reconciler"
	"github.com/PocKeTio/Reco/internal/reporter"

	"github.com/shopspring/decimal"
)

// CreateInvoiceParserConfig creates a default invoice parser configuration
// with aliases for commonly seen column names
func CreateInvoiceParserConfig() (*parsers.InvoiceParserConfig, error) {
	cfg := parsers.DefaultInvoiceParserConfig()
	cfg.ColumnAliases = map[string]string{
		// Common aliases for invoice columns
		"id":             "invoice_id",
		"inv_id":         "invoice_id",
		"invoice_number": "invoice_id",
		"ref":            "reference",
		"invoice_ref":    "reference",
		"client":         "client_name",
		"customer":       "client_name",
		"customer_name":  "client_name",
		"amt":            "amount",
		"total":          "amount",
		"invoice_amount": "amount",
		"date":           "due_date",
		"maturity_date":  "due_date",
		"state":          "status",
	}
	return cfg, nil
}

// CreateBankConfigs builds the per-file bank configurations. An empty
// format name leaves the map empty so every file goes through header
// auto-detection.
func CreateBankConfigs(paymentFiles []string, formatName string) (map[string]*parsers.BankConfig, error) {
	bankConfigs := make(map[string]*parsers.BankConfig)

	if formatName == "" {
		return bankConfigs, nil
	}

	bankConfig := parsers.GetBankConfig(formatName)
	if bankConfig == nil {
		return nil, fmt.Errorf("unknown bank format %q, available formats: %s",
			formatName, strings.Join(ListBankFormats(), ", "))
	}

	for _, paymentFile := range paymentFiles {
		bankConfigs[paymentFile] = bankConfig
	}

	return bankConfigs, nil
}

// ListBankFormats returns the names of the predefined bank formats
func ListBankFormats() []string {
	configs := parsers.ListAvailableBankConfigs()
	names := make([]string, 0, len(configs))
	for _, cfg := range configs {
		names = append(names, cfg.Name)
	}
	return names
}

// MatchingOverrides carries the CLI flag overrides applied on top of a
// matching profile. Negative numeric values mean "keep the profile value".
type MatchingOverrides struct {
	AutoThreshold       int
	SuggestionThreshold int
	AmountTolerance     float64
	MaxGroupSize        int
	DisableComplex      bool
	DisablePatterns     bool
}

// CreateMatchingConfig creates a matching configuration from a named
// profile with CLI overrides applied
func CreateMatchingConfig(profile string, overrides MatchingOverrides) (*matcher.Config, error) {
	var config *matcher.Config

	switch strings.ToLower(strings.TrimSpace(profile)) {
	case "", "default":
		config = matcher.DefaultConfig()
	case "strict":
		config = matcher.StrictConfig()
	case "relaxed":
		config = matcher.RelaxedConfig()
	default:
		return nil, fmt.Errorf("unknown matching profile %q, available profiles: default, strict, relaxed", profile)
	}

	if overrides.AutoThreshold >= 0 {
		config.Thresholds.Auto = overrides.AutoThreshold
	}
	if overrides.SuggestionThreshold >= 0 {
		config.Thresholds.Suggestion = overrides.SuggestionThreshold
	}
	if overrides.AmountTolerance >= 0 {
		config.Complex.AmountTolerance = decimal.NewFromFloat(overrides.AmountTolerance)
	}
	if overrides.MaxGroupSize > 0 {
		config.Complex.MaxGroupSize = overrides.MaxGroupSize
	}
	if overrides.DisableComplex {
		config.Complex.EnableNTo1 = false
		config.Complex.Enable1ToN = false
	}
	if overrides.DisablePatterns {
		config.EnablePatternLearning = false
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid matching configuration: %w", err)
	}

	return config, nil
}

// CreateReconcilerConfig creates a reconciler configuration
func CreateReconcilerConfig(showProgress, autoValidate bool) *reconciler.Config {
	config := reconciler.DefaultConfig()

	// Apply CLI overrides
	config.ProgressReporting = showProgress
	config.AutoValidate = autoValidate
	config.IncludeStatistics = true

	return config
}

// CreateReportConfig creates a report configuration for the specified output format
func CreateReportConfig(format string) *reporter.ReportConfig {
	config := reporter.DefaultReportConfig()

	switch format {
	case "console":
		config.Format = reporter.FormatConsole
	case "json":
		config.Format = reporter.FormatJSON
	case "csv":
		config.Format = reporter.FormatCSV
		config.CSVHeaders = true
		config.CSVDelimiter = ','
		config.IncludeDiscrepancies = false // CSV carries matching rows only
		config.IncludeProcessingStats = false
	}

	return config
}

// ValidateConfig validates that all required configurations are valid
func ValidateConfig(invoiceConfig *parsers.InvoiceParserConfig, bankConfigs map[string]*parsers.BankConfig, matchingConfig *matcher.Config) error {
	if err := invoiceConfig.Validate(); err != nil {
		return fmt.Errorf("invalid invoice config: %w", err)
	}

	for file, bankConfig := range bankConfigs {
		if err := bankConfig.Validate(); err != nil {
			return fmt.Errorf("invalid bank config for file %s: %w", file, err)
		}
	}

	if err := matchingConfig.Validate(); err != nil {
		return fmt.Errorf("invalid matching config: %w", err)
	}

	return nil
}
