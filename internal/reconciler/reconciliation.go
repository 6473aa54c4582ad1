// Package reconciler orchestrates the complete reconciliation run: it
// parses invoice and payment files, drives the matching engine, applies
// the validation policy and analyzes the results for discrepancies.
package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/PocKeTio/Reco/internal/matcher"
	"github.com/PocKeTio/Reco/internal/models"
	"github.com/PocKeTio/Reco/internal/parsers"
	"github.com/PocKeTio/Reco/pkg/logger"

	"github.com/shopspring/decimal"
)

// ReconciliationService orchestrates the complete reconciliation process
type ReconciliationService struct {
	invoiceParser *parsers.InvoiceParser
	engine        *matcher.Engine
	patterns      *matcher.HistoryPatternScorer
	config        *Config
	log           logger.Logger
}

// Config holds configuration options for the reconciliation service
type Config struct {
	// Date range filtering applied to payment reception dates
	StartDate *time.Time
	EndDate   *time.Time

	// Processing options
	BatchSize          int
	MaxConcurrentFiles int
	ProgressReporting  bool

	// AutoValidate transitions groups whose best candidate clears the
	// auto threshold to AUTO_VALIDATED and feeds them into the pattern
	// learner so future runs recognize the client's payment habits
	AutoValidate bool

	// Validation options
	ValidateInputs bool

	// Output options
	IncludeStatistics bool
	DetectEdgeCases   bool
}

// DefaultConfig returns a default configuration for the reconciliation service
func DefaultConfig() *Config {
	return &Config{
		BatchSize:          1000,
		MaxConcurrentFiles: 4,
		ProgressReporting:  false,
		AutoValidate:       true,
		ValidateInputs:     true,
		IncludeStatistics:  true,
		DetectEdgeCases:    true,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}

	if c.MaxConcurrentFiles <= 0 {
		return fmt.Errorf("max concurrent files must be positive, got %d", c.MaxConcurrentFiles)
	}

	if c.StartDate != nil && c.EndDate != nil && c.StartDate.After(*c.EndDate) {
		return fmt.Errorf("start date must be before end date")
	}

	return nil
}

// ReconciliationRequest represents a request for reconciliation
type ReconciliationRequest struct {
	InvoiceFile   string
	PaymentFiles  []string
	StartDate     *time.Time
	EndDate       *time.Time
	InvoiceConfig *parsers.InvoiceParserConfig

	// BankConfigs maps payment file paths to their export format.
	// Files without an entry go through format auto-detection.
	BankConfigs map[string]*parsers.BankConfig
}

// Validate validates the reconciliation request
func (r *ReconciliationRequest) Validate() error {
	if r.InvoiceFile == "" {
		return fmt.Errorf("invoice file path is required")
	}

	if len(r.PaymentFiles) == 0 {
		return fmt.Errorf("at least one payment file is required")
	}

	if r.StartDate != nil && r.EndDate != nil && r.StartDate.After(*r.EndDate) {
		return fmt.Errorf("start date must be before end date")
	}

	return nil
}

// ReconciliationResult contains the complete results of reconciliation
type ReconciliationResult struct {
	Summary *ResultSummary `json:"summary"`

	// Detailed results
	Groups            []*models.MatchGroup        `json:"groups,omitempty"`
	ComplexGroups     []*models.ComplexMatchGroup `json:"complex_groups,omitempty"`
	UnmatchedPayments []*models.Payment           `json:"unmatched_payments,omitempty"`

	// Additional analysis
	Discrepancies []*Discrepancy `json:"discrepancies,omitempty"`

	// Processing information
	ProcessingStats *ProcessingStats `json:"processing_stats,omitempty"`

	ProcessedAt time.Time              `json:"processed_at"`
	Request     *ReconciliationRequest `json:"request,omitempty"`
}

// ResultSummary provides a high-level overview of reconciliation results
type ResultSummary struct {
	TotalInvoices int `json:"total_invoices"`
	TotalPayments int `json:"total_payments"`

	// Outcome breakdown
	AutoValidated     int `json:"auto_validated"`
	Suggested         int `json:"suggested"`
	ComplexGroups     int `json:"complex_groups"`
	UnmatchedPayments int `json:"unmatched_payments"`

	// Financial summary
	TotalAmountMatched   decimal.Decimal `json:"total_amount_matched"`
	TotalAmountUnmatched decimal.Decimal `json:"total_amount_unmatched"`

	ProcessingDuration time.Duration `json:"processing_duration"`
	DateRange          *DateRange    `json:"date_range,omitempty"`
}

// ProcessingStats contains detailed processing statistics
type ProcessingStats struct {
	FilesProcessed   int `json:"files_processed"`
	ParseErrors      int `json:"parse_errors"`
	ValidationErrors int `json:"validation_errors"`

	RecordsPerSecond    float64       `json:"records_per_second"`
	TotalProcessingTime time.Duration `json:"total_processing_time"`
	ParsingTime         time.Duration `json:"parsing_time"`
	MatchingTime        time.Duration `json:"matching_time"`
}

// Discrepancy represents an anomaly detected around the matching run
type Discrepancy struct {
	Type        DiscrepancyType   `json:"type"`
	Payments    []*models.Payment `json:"payments,omitempty"`
	Invoices    []*models.Invoice `json:"invoices,omitempty"`
	Description string            `json:"description"`
	Amount      decimal.Decimal   `json:"amount,omitempty"`
	Severity    Severity          `json:"severity"`
}

// DiscrepancyType represents the type of discrepancy
type DiscrepancyType string

const (
	DiscrepancyDuplicatePayment DiscrepancyType = "duplicate_payment"
	DiscrepancyAmbiguousAmount  DiscrepancyType = "ambiguous_invoice_amounts"
	DiscrepancyUnmatchedPayment DiscrepancyType = "unmatched_payment"
	DiscrepancyAmountGap        DiscrepancyType = "amount_gap"
)

// Severity represents the severity level of a discrepancy
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// DateRange represents a date range filter
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// String renders the range with open bounds shown as "..".
func (r *DateRange) String() string {
	start, end := "..", ".."
	if !r.Start.IsZero() {
		start = r.Start.Format("2006-01-02")
	}
	if !r.End.IsZero() {
		end = r.End.Format("2006-01-02")
	}
	return fmt.Sprintf("%s to %s", start, end)
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(
	invoiceConfig *parsers.InvoiceParserConfig,
	matchingConfig *matcher.Config,
	config *Config,
) (*ReconciliationService, error) {

	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	invoiceParser, err := parsers.NewInvoiceParser(invoiceConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice parser: %w", err)
	}

	engine, err := matcher.NewEngine(matchingConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create matching engine: %w", err)
	}

	patterns := matcher.NewHistoryPatternScorer(matcher.DefaultPatternConfig())
	engine.SetPatternScorer(patterns)

	return &ReconciliationService{
		invoiceParser: invoiceParser,
		engine:        engine,
		patterns:      patterns,
		config:        config,
		log:           logger.GetGlobalLogger().WithComponent("reconciler"),
	}, nil
}

// ProcessReconciliation performs the complete reconciliation process
func (rs *ReconciliationService) ProcessReconciliation(
	ctx context.Context,
	request *ReconciliationRequest,
) (*ReconciliationResult, error) {

	if err := request.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	op := logger.NewOperationLogger("reconciliation", rs.log)

	startTime := time.Now()
	result := &ReconciliationResult{
		ProcessedAt:     startTime,
		Request:         request,
		Summary:         &ResultSummary{},
		ProcessingStats: &ProcessingStats{},
	}

	if request.StartDate != nil && request.EndDate != nil {
		result.Summary.DateRange = &DateRange{
			Start: *request.StartDate,
			End:   *request.EndDate,
		}
	}

	op.Step("parse invoices")
	parsingStart := time.Now()
	invoices, invoiceStats, err := rs.parseInvoices(ctx, request)
	if err != nil {
		op.Error(err, "Invoice parsing failed")
		return nil, fmt.Errorf("failed to parse invoices: %w", err)
	}

	op.Step("parse payments")
	payments, paymentStats, err := rs.parsePayments(ctx, request)
	if err != nil {
		op.Error(err, "Payment parsing failed")
		return nil, fmt.Errorf("failed to parse payments: %w", err)
	}
	result.ProcessingStats.ParsingTime = time.Since(parsingStart)

	payments = rs.applyDateRangeFiltering(payments, request)

	op.Step("match")
	matchingStart := time.Now()
	matchingResult, err := rs.performMatching(ctx, invoices, payments)
	if err != nil {
		op.Error(err, "Matching failed")
		return nil, fmt.Errorf("failed to perform matching: %w", err)
	}
	result.ProcessingStats.MatchingTime = time.Since(matchingStart)

	if rs.config.AutoValidate {
		op.Step("auto-validate")
		rs.autoValidate(matchingResult)
	}

	var discrepancies []*Discrepancy
	if rs.config.DetectEdgeCases {
		op.Step("analyze discrepancies")
		discrepancies = rs.analyzeDiscrepancies(matchingResult, invoices, payments)
	}

	rs.buildFinalResult(result, matchingResult, discrepancies, invoiceStats, paymentStats)

	result.Summary.ProcessingDuration = time.Since(startTime)
	result.ProcessingStats.TotalProcessingTime = result.Summary.ProcessingDuration

	totalRecords := len(invoices) + len(payments)
	if seconds := result.Summary.ProcessingDuration.Seconds(); seconds > 0 {
		result.ProcessingStats.RecordsPerSecond = float64(totalRecords) / seconds
	}

	op.WithFields(logger.Fields{
		"auto_validated": result.Summary.AutoValidated,
		"suggested":      result.Summary.Suggested,
		"complex":        result.Summary.ComplexGroups,
		"unmatched":      result.Summary.UnmatchedPayments,
	}).Success("Reconciliation completed")

	return result, nil
}

// PatternHistorySize reports how many validated matches have been
// observed for a client, for diagnostics.
func (rs *ReconciliationService) PatternHistorySize(clientName string) int {
	return rs.patterns.HistorySize(clientName)
}

// UpdateConfiguration updates the service configuration
func (rs *ReconciliationService) UpdateConfiguration(config *Config) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	rs.config = config
	return nil
}

// GetConfiguration returns the current configuration
func (rs *ReconciliationService) GetConfiguration() *Config {
	return rs.config
}

// GetMatchingConfiguration returns the engine configuration in use
func (rs *ReconciliationService) GetMatchingConfiguration() *matcher.Config {
	return rs.engine.GetConfiguration()
}
