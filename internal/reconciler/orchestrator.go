package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/PocKeTio/Reco/internal/matcher"
	"github.com/PocKeTio/Reco/internal/models"
	"github.com/PocKeTio/Reco/pkg/errors"
	"github.com/PocKeTio/Reco/pkg/logger"

	"github.com/shopspring/decimal"
)

// ReconciliationOrchestrator wraps the reconciliation service with
// preprocessing, amount filtering, progress callbacks and result
// quality metrics for long-running or interactive runs.
type ReconciliationOrchestrator struct {
	service      *ReconciliationService
	preprocessor *DataPreprocessor
	log          logger.Logger

	progressCallbacks []ProgressCallback
	tracker           *logger.ProgressTracker
	warnings          []string
	progressMutex     sync.RWMutex
}

// ReconciliationProgress is a snapshot of an orchestrated run, built
// from the underlying progress tracker
type ReconciliationProgress struct {
	TotalSteps      int           `json:"total_steps"`
	CompletedSteps  int           `json:"completed_steps"`
	CurrentStep     string        `json:"current_step"`
	PercentComplete float64       `json:"percent_complete"`
	ElapsedTime     time.Duration `json:"elapsed_time"`

	Warnings []string `json:"warnings,omitempty"`
}

// ProgressCallback is called to report reconciliation progress
type ProgressCallback func(*ReconciliationProgress)

const orchestratorSteps = 5 // validate, preprocess, filter, match, aggregate

// NewReconciliationOrchestrator creates a new reconciliation orchestrator
func NewReconciliationOrchestrator(
	service *ReconciliationService,
	preprocessingConfig *PreprocessingConfig,
) (*ReconciliationOrchestrator, error) {

	if service == nil {
		return nil, errors.ValidationError(
			errors.CodeMissingField,
			"reconciliation_service",
			nil,
			nil,
		).WithSuggestion("Provide a valid ReconciliationService instance")
	}

	var preprocessor *DataPreprocessor
	if preprocessingConfig != nil {
		preprocessor = NewDataPreprocessor(preprocessingConfig)
	}

	return &ReconciliationOrchestrator{
		service:      service,
		preprocessor: preprocessor,
		log:          logger.GetGlobalLogger().WithComponent("orchestrator"),
	}, nil
}

// AddProgressCallback adds a progress callback function
func (ro *ReconciliationOrchestrator) AddProgressCallback(callback ProgressCallback) {
	ro.progressCallbacks = append(ro.progressCallbacks, callback)
}

// ReconciliationOptions contains advanced options for orchestrated runs
type ReconciliationOptions struct {
	EnablePreprocessing bool                 `json:"enable_preprocessing"`
	PreprocessingConfig *PreprocessingConfig `json:"preprocessing_config,omitempty"`

	// AmountThresholds filters payments outside the given bounds before
	// matching. Nil bounds are unbounded.
	AmountThresholds *AmountThresholds `json:"amount_thresholds,omitempty"`
}

// AmountThresholds bounds the payment amounts considered for matching
type AmountThresholds struct {
	MinAmount *decimal.Decimal `json:"min_amount,omitempty"`
	MaxAmount *decimal.Decimal `json:"max_amount,omitempty"`
}

// DefaultReconciliationOptions returns sensible defaults
func DefaultReconciliationOptions() *ReconciliationOptions {
	return &ReconciliationOptions{
		EnablePreprocessing: true,
	}
}

// EnhancedReconciliationResult augments the base result with quality
// and performance metrics
type EnhancedReconciliationResult struct {
	*ReconciliationResult

	DataQuality *DataQualityMetrics `json:"data_quality,omitempty"`
	Performance *PerformanceMetrics `json:"performance,omitempty"`
	Warnings    []string            `json:"warnings,omitempty"`
}

// DataQualityMetrics summarizes how cleanly the run resolved
type DataQualityMetrics struct {
	MatchRate        float64 `json:"match_rate"`
	AutoValidateRate float64 `json:"auto_validate_rate"`
	DiscrepancyCount int     `json:"discrepancy_count"`
	ParseErrorCount  int     `json:"parse_error_count"`
}

// PerformanceMetrics captures run timing
type PerformanceMetrics struct {
	TotalDuration    time.Duration `json:"total_duration"`
	ParsingDuration  time.Duration `json:"parsing_duration"`
	MatchingDuration time.Duration `json:"matching_duration"`
	RecordsPerSecond float64       `json:"records_per_second"`
}

// ProcessReconciliationWithProgress runs the full pipeline with progress
// reporting and the requested options applied.
func (ro *ReconciliationOrchestrator) ProcessReconciliationWithProgress(
	ctx context.Context,
	request *ReconciliationRequest,
	options *ReconciliationOptions,
) (*EnhancedReconciliationResult, error) {

	if options == nil {
		options = DefaultReconciliationOptions()
	}

	ro.initializeProgress()
	startTime := time.Now()

	ro.updateProgress("validating request", 0)
	if err := request.Validate(); err != nil {
		verr := errors.ValidationError(
			errors.CodeInvalidConfig,
			"reconciliation_request",
			request,
			err,
		).WithSuggestion("Check the reconciliation request parameters")
		ro.tracker.CompleteWithError(verr)
		return nil, verr
	}

	// Preprocessing happens inside the service's parsing when enabled;
	// the orchestrator filter hook runs on the assembled result instead
	ro.updateProgress("reconciling", 1)

	result, err := ro.service.ProcessReconciliation(ctx, request)
	if err != nil {
		ro.tracker.CompleteWithError(err)
		return nil, fmt.Errorf("reconciliation failed: %w", err)
	}

	ro.updateProgress("applying filters", 2)
	if options.AmountThresholds != nil {
		ro.filterResultByAmount(result, options.AmountThresholds)
	}

	ro.updateProgress("aggregating", 3)
	enhanced := ro.buildEnhancedResult(result, startTime)

	ro.updateProgress("completed", orchestratorSteps)
	ro.tracker.Complete()

	return enhanced, nil
}

// PreprocessRequestData runs the configured preprocessor over already
// parsed records, for callers that parse outside the service.
func (ro *ReconciliationOrchestrator) PreprocessRequestData(
	invoices []*models.Invoice,
	payments []*models.Payment,
) ([]*models.Invoice, []*models.Payment, error) {

	if ro.preprocessor == nil {
		return invoices, payments, nil
	}

	cleanInvoices, err := ro.preprocessor.PreprocessInvoices(invoices)
	if err != nil {
		ro.addWarning(fmt.Sprintf("invoice preprocessing: %v", err))
	}

	cleanPayments, err := ro.preprocessor.PreprocessPayments(payments)
	if err != nil {
		ro.addWarning(fmt.Sprintf("payment preprocessing: %v", err))
	}

	return cleanInvoices, cleanPayments, nil
}

func (ro *ReconciliationOrchestrator) initializeProgress() {
	ro.progressMutex.Lock()
	defer ro.progressMutex.Unlock()

	ro.tracker = logger.NewProgressTracker(
		"orchestrated reconciliation", orchestratorSteps, ro.log)
	ro.warnings = nil
}

func (ro *ReconciliationOrchestrator) updateProgress(step string, completed int) {
	ro.tracker.Update(int64(completed), step)

	snapshot := ro.GetProgress()

	ro.progressMutex.RLock()
	callbacks := ro.progressCallbacks
	ro.progressMutex.RUnlock()

	for _, callback := range callbacks {
		callback(snapshot)
	}
}

func (ro *ReconciliationOrchestrator) addWarning(message string) {
	ro.progressMutex.Lock()
	defer ro.progressMutex.Unlock()

	ro.warnings = append(ro.warnings, message)
	ro.log.Warn(message)
}

// GetProgress returns a snapshot of the current progress
func (ro *ReconciliationOrchestrator) GetProgress() *ReconciliationProgress {
	ro.progressMutex.RLock()
	defer ro.progressMutex.RUnlock()

	snapshot := &ReconciliationProgress{
		TotalSteps: orchestratorSteps,
		Warnings:   append([]string(nil), ro.warnings...),
	}
	if ro.tracker != nil {
		stats := ro.tracker.GetStats()
		snapshot.CompletedSteps = int(stats.Current)
		snapshot.CurrentStep = stats.Stage
		snapshot.PercentComplete = stats.Percentage
		snapshot.ElapsedTime = stats.Elapsed
	}
	return snapshot
}

// filterResultByAmount drops unmatched payments outside the thresholds
// from the report. Matched groups are kept regardless of amount so a
// filter never hides a confirmed match.
func (ro *ReconciliationOrchestrator) filterResultByAmount(
	result *ReconciliationResult,
	thresholds *AmountThresholds,
) {
	filtered := make([]*models.Payment, 0, len(result.UnmatchedPayments))

	for _, p := range result.UnmatchedPayments {
		if thresholds.MinAmount != nil && p.Amount.LessThan(*thresholds.MinAmount) {
			continue
		}
		if thresholds.MaxAmount != nil && p.Amount.GreaterThan(*thresholds.MaxAmount) {
			continue
		}
		filtered = append(filtered, p)
	}

	dropped := len(result.UnmatchedPayments) - len(filtered)
	if dropped > 0 {
		ro.log.WithField("dropped", dropped).Debug("Filtered unmatched payments by amount")
	}

	result.UnmatchedPayments = filtered
	result.Summary.UnmatchedPayments = len(filtered)
}

func (ro *ReconciliationOrchestrator) buildEnhancedResult(
	result *ReconciliationResult,
	startTime time.Time,
) *EnhancedReconciliationResult {

	enhanced := &EnhancedReconciliationResult{
		ReconciliationResult: result,
	}

	totalPayments := result.Summary.TotalPayments
	matched := result.Summary.AutoValidated + result.Summary.Suggested + result.Summary.ComplexGroups

	quality := &DataQualityMetrics{
		DiscrepancyCount: len(result.Discrepancies),
	}
	if result.ProcessingStats != nil {
		quality.ParseErrorCount = result.ProcessingStats.ParseErrors
	}
	if totalPayments > 0 {
		quality.MatchRate = float64(matched) / float64(totalPayments)
		quality.AutoValidateRate = float64(result.Summary.AutoValidated) / float64(totalPayments)
	}
	enhanced.DataQuality = quality

	performance := &PerformanceMetrics{
		TotalDuration: time.Since(startTime),
	}
	if result.ProcessingStats != nil {
		performance.ParsingDuration = result.ProcessingStats.ParsingTime
		performance.MatchingDuration = result.ProcessingStats.MatchingTime
		performance.RecordsPerSecond = result.ProcessingStats.RecordsPerSecond
	}
	enhanced.Performance = performance

	ro.progressMutex.RLock()
	enhanced.Warnings = append(enhanced.Warnings, ro.warnings...)
	ro.progressMutex.RUnlock()

	return enhanced
}

// GetEdgeCaseHandler exposes the edge case detector configured with the
// service's matching configuration
func (ro *ReconciliationOrchestrator) GetEdgeCaseHandler() *matcher.EdgeCaseHandler {
	return matcher.NewEdgeCaseHandler(ro.service.GetMatchingConfiguration())
}
