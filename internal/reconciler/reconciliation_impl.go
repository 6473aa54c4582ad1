package reconciler

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/PocKeTio/Reco/internal/matcher"
	"github.com/PocKeTio/Reco/internal/models"
	"github.com/PocKeTio/Reco/internal/parsers"
	"github.com/PocKeTio/Reco/pkg/logger"

	"github.com/shopspring/decimal"
)

// parseInvoices parses the accounts-receivable invoice file
func (rs *ReconciliationService) parseInvoices(
	ctx context.Context,
	request *ReconciliationRequest,
) ([]*models.Invoice, *parsers.ParseStats, error) {

	if request.InvoiceConfig != nil {
		parser, err := parsers.NewInvoiceParser(request.InvoiceConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create invoice parser: %w", err)
		}
		rs.invoiceParser = parser
	}

	invoices, stats, err := rs.invoiceParser.ParseInvoicesWithContext(ctx, request.InvoiceFile)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to parse invoices from %s: %w", request.InvoiceFile, err)
	}

	if rs.config.ValidateInputs {
		valid := make([]*models.Invoice, 0, len(invoices))
		for _, inv := range invoices {
			if err := inv.Validate(); err != nil {
				stats.ErrorCount++
				continue
			}
			valid = append(valid, inv)
		}
		invoices = valid
	}

	return invoices, stats, nil
}

// parsePayments parses all payment files
func (rs *ReconciliationService) parsePayments(
	ctx context.Context,
	request *ReconciliationRequest,
) ([]*models.Payment, map[string]*parsers.ParseStats, error) {

	if len(request.PaymentFiles) == 0 {
		return nil, nil, fmt.Errorf("no payment files provided")
	}

	if len(request.PaymentFiles) == 1 {
		return rs.parseSinglePaymentFile(ctx, request.PaymentFiles[0], request.BankConfigs)
	}

	return rs.parseMultiplePaymentFiles(ctx, request.PaymentFiles, request.BankConfigs)
}

// paymentParserFor builds a parser for a payment file, auto-detecting
// the export format when no configuration was provided for it.
func (rs *ReconciliationService) paymentParserFor(
	filePath string,
	bankConfigs map[string]*parsers.BankConfig,
) (*parsers.PaymentParser, error) {

	if config, exists := bankConfigs[filePath]; exists {
		return parsers.NewPaymentParser(config)
	}

	parser, err := parsers.NewPaymentParserWithAutoDetect(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to detect export format for %s: %w", filePath, err)
	}

	rs.log.WithFields(logger.Fields{
		"file_path": filePath,
		"format":    parser.GetBankConfig().Name,
	}).Info("Auto-detected payment export format")

	return parser, nil
}

// parseSinglePaymentFile parses a single payment file
func (rs *ReconciliationService) parseSinglePaymentFile(
	ctx context.Context,
	filePath string,
	bankConfigs map[string]*parsers.BankConfig,
) ([]*models.Payment, map[string]*parsers.ParseStats, error) {

	parser, err := rs.paymentParserFor(filePath, bankConfigs)
	if err != nil {
		return nil, nil, err
	}

	payments, stats, err := parser.ParsePaymentsWithContext(ctx, filePath)
	if err != nil {
		return nil, map[string]*parsers.ParseStats{filePath: stats},
			fmt.Errorf("failed to parse payments from %s: %w", filePath, err)
	}

	if rs.config.ValidateInputs {
		valid := make([]*models.Payment, 0, len(payments))
		for _, p := range payments {
			if err := p.Validate(); err != nil {
				stats.ErrorCount++
				continue
			}
			valid = append(valid, p)
		}
		payments = valid
	}

	return payments, map[string]*parsers.ParseStats{filePath: stats}, nil
}

// parseMultiplePaymentFiles parses multiple payment files concurrently,
// bounded by MaxConcurrentFiles.
func (rs *ReconciliationService) parseMultiplePaymentFiles(
	ctx context.Context,
	filePaths []string,
	bankConfigs map[string]*parsers.BankConfig,
) ([]*models.Payment, map[string]*parsers.ParseStats, error) {

	type fileResult struct {
		filePath string
		payments []*models.Payment
		stats    *parsers.ParseStats
		err      error
	}

	results := make(chan fileResult, len(filePaths))
	semaphore := make(chan struct{}, rs.config.MaxConcurrentFiles)

	var wg sync.WaitGroup
	for _, filePath := range filePaths {
		wg.Add(1)

		go func(path string) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			parser, err := rs.paymentParserFor(path, bankConfigs)
			if err != nil {
				results <- fileResult{filePath: path, err: err}
				return
			}

			payments, stats, err := parser.ParsePaymentsWithContext(ctx, path)
			results <- fileResult{filePath: path, payments: payments, stats: stats, err: err}
		}(filePath)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	allPayments := make([]*models.Payment, 0)
	allStats := make(map[string]*parsers.ParseStats, len(filePaths))

	for result := range results {
		if result.err != nil {
			return nil, allStats, fmt.Errorf("failed to parse %s: %w", result.filePath, result.err)
		}

		allStats[result.filePath] = result.stats

		if rs.config.ValidateInputs {
			for _, p := range result.payments {
				if err := p.Validate(); err != nil {
					result.stats.ErrorCount++
					continue
				}
				allPayments = append(allPayments, p)
			}
		} else {
			allPayments = append(allPayments, result.payments...)
		}
	}

	// Concurrent completion order is nondeterministic; sort for stable output
	sort.Slice(allPayments, func(i, j int) bool {
		return allPayments[i].ID < allPayments[j].ID
	})

	return allPayments, allStats, nil
}

// applyDateRangeFiltering drops payments received outside the requested window
func (rs *ReconciliationService) applyDateRangeFiltering(
	payments []*models.Payment,
	request *ReconciliationRequest,
) []*models.Payment {

	startDate := request.StartDate
	endDate := request.EndDate
	if startDate == nil {
		startDate = rs.config.StartDate
	}
	if endDate == nil {
		endDate = rs.config.EndDate
	}

	if startDate == nil && endDate == nil {
		return payments
	}

	filtered := make([]*models.Payment, 0, len(payments))
	for _, p := range payments {
		if startDate != nil && p.ReceptionDate.Before(*startDate) {
			continue
		}
		if endDate != nil && p.ReceptionDate.After(*endDate) {
			continue
		}
		filtered = append(filtered, p)
	}

	rs.log.WithFields(logger.Fields{
		"before_filter": len(payments),
		"after_filter":  len(filtered),
	}).Debug("Applied date range filtering")

	return filtered
}

// performMatching loads invoices into the engine and runs the full match
func (rs *ReconciliationService) performMatching(
	ctx context.Context,
	invoices []*models.Invoice,
	payments []*models.Payment,
) (*matcher.MatchingResult, error) {

	if err := rs.engine.LoadInvoices(invoices); err != nil {
		return nil, fmt.Errorf("failed to load invoices: %w", err)
	}

	result, err := rs.engine.Match(ctx, payments)
	if err != nil {
		return nil, fmt.Errorf("matching failed: %w", err)
	}

	return result, nil
}

// autoValidate transitions auto-confidence groups to AUTO_VALIDATED and
// records them in the pattern learner. Suggested groups stay proposed
// for manual review.
func (rs *ReconciliationService) autoValidate(result *matcher.MatchingResult) {
	for _, group := range result.Groups {
		best := group.Best()
		if best == nil || best.Confidence != models.ConfidenceAuto {
			continue
		}

		if err := group.AutoValidate(); err != nil {
			rs.log.WithError(err).WithField("payment_id", group.Payment.ID).
				Warn("Could not auto-validate match group")
			continue
		}

		rs.patterns.Observe(group.Payment, best.Invoice)
	}
}

// analyzeDiscrepancies inspects inputs and results for anomalies worth
// surfacing alongside the match groups
func (rs *ReconciliationService) analyzeDiscrepancies(
	result *matcher.MatchingResult,
	invoices []*models.Invoice,
	payments []*models.Payment,
) []*Discrepancy {

	discrepancies := make([]*Discrepancy, 0)

	edgeCases := matcher.NewEdgeCaseHandler(rs.engine.GetConfiguration())

	for _, dup := range edgeCases.DetectDuplicatePayments(payments) {
		discrepancies = append(discrepancies, &Discrepancy{
			Type:     DiscrepancyDuplicatePayment,
			Payments: dup.Payments,
			Description: fmt.Sprintf("%d payments share amount %s and reference %q",
				len(dup.Payments), dup.Payments[0].Amount, dup.Payments[0].Reference),
			Amount:   dup.Payments[0].Amount,
			Severity: SeverityHigh,
		})
	}

	for _, ambiguous := range edgeCases.DetectAmbiguousInvoices(invoices) {
		discrepancies = append(discrepancies, &Discrepancy{
			Type:     DiscrepancyAmbiguousAmount,
			Invoices: ambiguous.Invoices,
			Description: fmt.Sprintf("%d open invoices share amount %s with close due dates",
				len(ambiguous.Invoices), ambiguous.Invoices[0].Amount),
			Amount:   ambiguous.Invoices[0].Amount,
			Severity: SeverityMedium,
		})
	}

	for _, group := range result.ComplexGroups {
		gap := group.AmountGap()
		if gap.IsZero() {
			continue
		}

		discrepancies = append(discrepancies, &Discrepancy{
			Type:     DiscrepancyAmountGap,
			Payments: group.Payments,
			Invoices: group.Invoices,
			Description: fmt.Sprintf("%s combination leaves a gap of %s",
				group.Type, gap),
			Amount:   gap,
			Severity: SeverityLow,
		})
	}

	for _, payment := range result.UnmatchedPayments {
		discrepancies = append(discrepancies, &Discrepancy{
			Type:     DiscrepancyUnmatchedPayment,
			Payments: []*models.Payment{payment},
			Description: fmt.Sprintf("payment %s (%s) matched no open invoice",
				payment.ID, payment.Amount),
			Amount:   payment.Amount,
			Severity: rs.unmatchedSeverity(payment.Amount),
		})

		// An unmatched payment sitting within amount tolerance of open
		// invoices is worth a closer look even though it never scored.
		nearMiss := rs.engine.NearAmountInvoices(payment.Amount)
		if len(nearMiss) == 0 {
			continue
		}
		discrepancies = append(discrepancies, &Discrepancy{
			Type:     DiscrepancyAmountGap,
			Payments: []*models.Payment{payment},
			Invoices: nearMiss,
			Description: fmt.Sprintf("payment %s is within amount tolerance of %d open invoice(s) yet scored below the suggestion threshold",
				payment.ID, len(nearMiss)),
			Amount:   payment.Amount,
			Severity: SeverityInfo,
		})
	}

	return discrepancies
}

// unmatchedSeverity grades unmatched payments by amount
func (rs *ReconciliationService) unmatchedSeverity(amount decimal.Decimal) Severity {
	switch {
	case amount.GreaterThanOrEqual(decimal.NewFromInt(10000)):
		return SeverityCritical
	case amount.GreaterThanOrEqual(decimal.NewFromInt(1000)):
		return SeverityHigh
	case amount.GreaterThanOrEqual(decimal.NewFromInt(100)):
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// buildFinalResult assembles the result from the matching output and stats
func (rs *ReconciliationService) buildFinalResult(
	result *ReconciliationResult,
	matchingResult *matcher.MatchingResult,
	discrepancies []*Discrepancy,
	invoiceStats *parsers.ParseStats,
	paymentStats map[string]*parsers.ParseStats,
) {

	result.Groups = matchingResult.Groups
	result.ComplexGroups = matchingResult.ComplexGroups
	result.UnmatchedPayments = matchingResult.UnmatchedPayments
	result.Discrepancies = discrepancies

	summary := matchingResult.Summary
	result.Summary.TotalInvoices = summary.TotalInvoices
	result.Summary.TotalPayments = summary.TotalPayments
	result.Summary.AutoValidated = summary.AutoGroups
	result.Summary.Suggested = summary.SuggestedGroups
	result.Summary.ComplexGroups = summary.ComplexGroups
	result.Summary.UnmatchedPayments = summary.UnmatchedPayments
	result.Summary.TotalAmountMatched = summary.TotalAmountMatched
	result.Summary.TotalAmountUnmatched = summary.TotalAmountUnmatched

	if rs.config.IncludeStatistics {
		result.ProcessingStats.FilesProcessed = 1 + len(paymentStats)

		if invoiceStats != nil {
			result.ProcessingStats.ParseErrors += invoiceStats.ErrorCount
		}
		for _, stats := range paymentStats {
			result.ProcessingStats.ParseErrors += stats.ErrorCount
		}
	} else {
		result.ProcessingStats = nil
	}
}
