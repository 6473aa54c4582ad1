package reconciler

import (
	"fmt"
	"strings"
	"time"

	"github.com/PocKeTio/Reco/internal/models"
)

// DataPreprocessor normalizes and validates parsed records before they
// reach the matching engine. It never mutates its inputs; records that
// fail validation are dropped and reported.
type DataPreprocessor struct {
	config *PreprocessingConfig
}

// PreprocessingConfig contains configuration for data preprocessing
type PreprocessingConfig struct {
	// Date normalization options
	NormalizeTimezone bool
	DefaultTimezone   *time.Location

	// Amount normalization options
	NormalizeDecimalPlaces int // -1 means no rounding

	// String normalization options
	TrimWhitespace bool
	UppercaseIDs   bool

	// Validation options
	ValidateAmounts bool
	ValidateDates   bool
	ValidateIDs     bool

	// RemoveDuplicates drops records whose identifier, amount and date
	// all repeat an earlier record
	RemoveDuplicates bool
}

// DefaultPreprocessingConfig returns a default preprocessing configuration
func DefaultPreprocessingConfig() *PreprocessingConfig {
	return &PreprocessingConfig{
		NormalizeTimezone:      true,
		DefaultTimezone:        time.UTC,
		NormalizeDecimalPlaces: 2,
		TrimWhitespace:         true,
		UppercaseIDs:           false,
		ValidateAmounts:        true,
		ValidateDates:          true,
		ValidateIDs:            true,
		RemoveDuplicates:       false,
	}
}

// NewDataPreprocessor creates a new data preprocessor
func NewDataPreprocessor(config *PreprocessingConfig) *DataPreprocessor {
	if config == nil {
		config = DefaultPreprocessingConfig()
	}

	return &DataPreprocessor{
		config: config,
	}
}

// PreprocessInvoices normalizes and validates invoice data
func (dp *DataPreprocessor) PreprocessInvoices(invoices []*models.Invoice) ([]*models.Invoice, error) {
	var processed []*models.Invoice
	var errs []error

	for i, inv := range invoices {
		normalized, err := dp.preprocessInvoice(inv)
		if err != nil {
			errs = append(errs, fmt.Errorf("invoice %d (%s): %w", i, inv.ID, err))
			continue
		}

		processed = append(processed, normalized)
	}

	if dp.config.RemoveDuplicates {
		processed = dp.removeDuplicateInvoices(processed)
	}

	if len(errs) > 0 {
		return processed, fmt.Errorf("preprocessing errors: %v", errs)
	}

	return processed, nil
}

// PreprocessPayments normalizes and validates payment data
func (dp *DataPreprocessor) PreprocessPayments(payments []*models.Payment) ([]*models.Payment, error) {
	var processed []*models.Payment
	var errs []error

	for i, p := range payments {
		normalized, err := dp.preprocessPayment(p)
		if err != nil {
			errs = append(errs, fmt.Errorf("payment %d (%s): %w", i, p.ID, err))
			continue
		}

		processed = append(processed, normalized)
	}

	if dp.config.RemoveDuplicates {
		processed = dp.removeDuplicatePayments(processed)
	}

	if len(errs) > 0 {
		return processed, fmt.Errorf("preprocessing errors: %v", errs)
	}

	return processed, nil
}

func (dp *DataPreprocessor) preprocessInvoice(inv *models.Invoice) (*models.Invoice, error) {
	processed := &models.Invoice{
		ID:         dp.normalizeID(inv.ID),
		Reference:  dp.normalizeString(inv.Reference),
		ClientName: dp.normalizeString(inv.ClientName),
		Amount:     inv.Amount,
		DueDate:    inv.DueDate,
		Status:     inv.Status,
	}

	if dp.config.NormalizeDecimalPlaces >= 0 {
		processed.Amount = processed.Amount.Round(int32(dp.config.NormalizeDecimalPlaces))
	}

	if dp.config.NormalizeTimezone {
		processed.DueDate = dp.normalizeDateTime(inv.DueDate)
	}

	if err := dp.validateInvoice(processed); err != nil {
		return nil, err
	}

	return processed, nil
}

func (dp *DataPreprocessor) preprocessPayment(p *models.Payment) (*models.Payment, error) {
	processed := &models.Payment{
		ID:            dp.normalizeID(p.ID),
		Reference:     dp.normalizeString(p.Reference),
		ClientName:    dp.normalizeString(p.ClientName),
		Amount:        p.Amount,
		ReceptionDate: p.ReceptionDate,
	}

	if dp.config.NormalizeDecimalPlaces >= 0 {
		processed.Amount = processed.Amount.Round(int32(dp.config.NormalizeDecimalPlaces))
	}

	if dp.config.NormalizeTimezone {
		processed.ReceptionDate = dp.normalizeDateTime(p.ReceptionDate)
	}

	if err := dp.validatePayment(processed); err != nil {
		return nil, err
	}

	return processed, nil
}

// normalizeString applies string normalization rules
func (dp *DataPreprocessor) normalizeString(s string) string {
	if dp.config.TrimWhitespace {
		return strings.TrimSpace(s)
	}
	return s
}

// normalizeID applies ID normalization rules
func (dp *DataPreprocessor) normalizeID(s string) string {
	result := dp.normalizeString(s)
	if dp.config.UppercaseIDs {
		result = strings.ToUpper(result)
	}
	return result
}

// normalizeDateTime applies date/time normalization rules
func (dp *DataPreprocessor) normalizeDateTime(t time.Time) time.Time {
	if dp.config.DefaultTimezone != nil {
		return t.In(dp.config.DefaultTimezone)
	}
	return t
}

func (dp *DataPreprocessor) validateInvoice(inv *models.Invoice) error {
	if dp.config.ValidateIDs && strings.TrimSpace(inv.ID) == "" {
		return fmt.Errorf("invoice ID cannot be empty")
	}

	if dp.config.ValidateAmounts && inv.Amount.IsZero() {
		return fmt.Errorf("invoice amount cannot be zero")
	}

	if dp.config.ValidateDates {
		if inv.DueDate.IsZero() {
			return fmt.Errorf("invoice due date cannot be zero")
		}
		if inv.DueDate.Before(time.Now().AddDate(-20, 0, 0)) {
			return fmt.Errorf("invoice due date is too far in the past: %s", inv.DueDate)
		}
	}

	return nil
}

func (dp *DataPreprocessor) validatePayment(p *models.Payment) error {
	if dp.config.ValidateIDs && strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("payment ID cannot be empty")
	}

	if dp.config.ValidateAmounts && p.Amount.IsZero() {
		return fmt.Errorf("payment amount cannot be zero")
	}

	if dp.config.ValidateDates {
		if p.ReceptionDate.IsZero() {
			return fmt.Errorf("payment reception date cannot be zero")
		}
		if p.ReceptionDate.After(time.Now().Add(24 * time.Hour)) {
			return fmt.Errorf("payment reception date is in the future: %s", p.ReceptionDate)
		}
		if p.ReceptionDate.Before(time.Now().AddDate(-20, 0, 0)) {
			return fmt.Errorf("payment reception date is too far in the past: %s", p.ReceptionDate)
		}
	}

	return nil
}

// removeDuplicateInvoices removes exact repeats based on key fields
func (dp *DataPreprocessor) removeDuplicateInvoices(invoices []*models.Invoice) []*models.Invoice {
	seen := make(map[string]bool)
	var unique []*models.Invoice

	for _, inv := range invoices {
		key := fmt.Sprintf("%s_%s_%s",
			inv.ID,
			inv.Amount.String(),
			inv.DueDate.Format("2006-01-02"))

		if !seen[key] {
			seen[key] = true
			unique = append(unique, inv)
		}
	}

	return unique
}

// removeDuplicatePayments removes exact repeats based on key fields
func (dp *DataPreprocessor) removeDuplicatePayments(payments []*models.Payment) []*models.Payment {
	seen := make(map[string]bool)
	var unique []*models.Payment

	for _, p := range payments {
		key := fmt.Sprintf("%s_%s_%s",
			p.ID,
			p.Amount.String(),
			p.ReceptionDate.Format("2006-01-02"))

		if !seen[key] {
			seen[key] = true
			unique = append(unique, p)
		}
	}

	return unique
}
