// Package reporter renders reconciliation results for people and machines.
//
// Reports are generated from a reconciler.ReconciliationResult and can be
// written in three formats:
//   - Console: human-readable output for terminal display
//   - JSON: structured data for programmatic consumption
//   - CSV: flat rows for spreadsheet applications
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(nil)
//	if err != nil {
//		return err
//	}
//	err = generator.GenerateReport(result, os.Stdout)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/PocKeTio/Reco/internal/models"
	"github.com/PocKeTio/Reco/internal/reconciler"

	"github.com/shopspring/decimal"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	// Output format
	Format OutputFormat `json:"format"`

	// Detail level options
	IncludeMatchGroups       bool `json:"include_match_groups"`
	IncludeComplexGroups     bool `json:"include_complex_groups"`
	IncludeUnmatchedPayments bool `json:"include_unmatched_payments"`
	IncludeDiscrepancies     bool `json:"include_discrepancies"`
	IncludeProcessingStats   bool `json:"include_processing_stats"`
	IncludeScoreDetails      bool `json:"include_score_details"`

	// Console formatting options
	TableMaxWidth int `json:"table_max_width"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`

	// Ordering options
	SortByAmount bool `json:"sort_by_amount"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:                   FormatConsole,
		IncludeMatchGroups:       true,
		IncludeComplexGroups:     true,
		IncludeUnmatchedPayments: true,
		IncludeDiscrepancies:     true,
		IncludeProcessingStats:   true,
		IncludeScoreDetails:      true,
		TableMaxWidth:            120,
		CSVDelimiter:             ',',
		CSVHeaders:               true,
		SortByAmount:             false,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}

	if c.TableMaxWidth < 50 {
		return fmt.Errorf("table max width must be at least 50 characters, got %d", c.TableMaxWidth)
	}

	return nil
}

// ReportGenerator generates reconciliation reports in various formats
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &ReportGenerator{
		config: config,
	}, nil
}

// GenerateReport generates a report from reconciliation results and writes it to the provided writer
func (rg *ReportGenerator) GenerateReport(result *reconciler.ReconciliationResult, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("reconciliation result cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(result, writer)
	case FormatJSON:
		return rg.generateJSONReport(result, writer)
	case FormatCSV:
		return rg.generateCSVReport(result, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

// generateConsoleReport generates a human-readable console report
func (rg *ReportGenerator) generateConsoleReport(result *reconciler.ReconciliationResult, writer io.Writer) error {
	fmt.Fprintf(writer, "RECONCILIATION REPORT\n")
	fmt.Fprintf(writer, "Generated: %s\n", result.ProcessedAt.Format(time.RFC3339))
	fmt.Fprintf(writer, "Processing Duration: %v\n\n", result.Summary.ProcessingDuration)

	fmt.Fprintf(writer, "=== SUMMARY ===\n")
	rg.printSummaryTable(result.Summary, writer)
	fmt.Fprintf(writer, "\n")

	fmt.Fprintf(writer, "=== FINANCIAL SUMMARY ===\n")
	rg.printFinancialSummary(result.Summary, writer)
	fmt.Fprintf(writer, "\n")

	if rg.config.IncludeMatchGroups && len(result.Groups) > 0 {
		fmt.Fprintf(writer, "=== MATCH GROUPS ===\n")
		rg.printMatchGroups(result.Groups, writer)
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeComplexGroups && len(result.ComplexGroups) > 0 {
		fmt.Fprintf(writer, "=== COMPLEX MATCHES ===\n")
		rg.printComplexGroups(result.ComplexGroups, writer)
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeUnmatchedPayments && len(result.UnmatchedPayments) > 0 {
		fmt.Fprintf(writer, "=== UNMATCHED PAYMENTS ===\n")
		rg.printUnmatchedPayments(result.UnmatchedPayments, writer)
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeDiscrepancies && len(result.Discrepancies) > 0 {
		fmt.Fprintf(writer, "=== DISCREPANCIES ===\n")
		rg.printDiscrepancies(result.Discrepancies, writer)
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeProcessingStats && result.ProcessingStats != nil {
		fmt.Fprintf(writer, "=== PROCESSING STATISTICS ===\n")
		rg.printProcessingStats(result.ProcessingStats, writer)
	}

	return nil
}

// generateJSONReport generates a structured JSON report
func (rg *ReportGenerator) generateJSONReport(result *reconciler.ReconciliationResult, writer io.Writer) error {
	filteredResult := rg.filterResultForOutput(result)

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")

	return encoder.Encode(filteredResult)
}

// generateCSVReport generates a CSV report with one row per matching outcome
func (rg *ReportGenerator) generateCSVReport(result *reconciler.ReconciliationResult, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter
	defer csvWriter.Flush()

	if rg.config.CSVHeaders {
		headers := []string{
			"Type",
			"Payment_ID",
			"Invoice_ID",
			"Payment_Amount",
			"Invoice_Amount",
			"Reception_Date",
			"Confidence",
			"Score",
			"State",
			"Notes",
		}
		if err := csvWriter.Write(headers); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	if rg.config.IncludeMatchGroups {
		for _, group := range result.Groups {
			best := group.Best()
			if best == nil {
				continue
			}
			record := []string{
				"Match",
				group.Payment.ID,
				best.Invoice.ID,
				group.Payment.Amount.StringFixed(2),
				best.Invoice.Amount.StringFixed(2),
				group.Payment.ReceptionDate.Format("2006-01-02"),
				best.Confidence.String(),
				fmt.Sprintf("%d", best.Score.Total),
				group.State.String(),
				rg.scoreNotes(best.Score),
			}
			if err := csvWriter.Write(record); err != nil {
				return fmt.Errorf("failed to write match record: %w", err)
			}
		}
	}

	if rg.config.IncludeComplexGroups {
		for _, group := range result.ComplexGroups {
			record := []string{
				"Complex " + group.Type.String(),
				joinPaymentIDs(group.Payments),
				joinInvoiceIDs(group.Invoices),
				group.PaymentTotal().StringFixed(2),
				group.InvoiceTotal().StringFixed(2),
				"",
				"",
				fmt.Sprintf("%d", group.Score.Total),
				group.State.String(),
				fmt.Sprintf("amount gap %s", group.AmountGap().StringFixed(2)),
			}
			if err := csvWriter.Write(record); err != nil {
				return fmt.Errorf("failed to write complex match record: %w", err)
			}
		}
	}

	if rg.config.IncludeUnmatchedPayments {
		for _, payment := range result.UnmatchedPayments {
			record := []string{
				"Unmatched Payment",
				payment.ID,
				"",
				payment.Amount.StringFixed(2),
				"",
				payment.ReceptionDate.Format("2006-01-02"),
				"",
				"",
				"",
				"No invoice candidate reached the suggestion threshold",
			}
			if err := csvWriter.Write(record); err != nil {
				return fmt.Errorf("failed to write unmatched payment record: %w", err)
			}
		}
	}

	return nil
}

// Helper methods for console output formatting

func (rg *ReportGenerator) printSummaryTable(summary *reconciler.ResultSummary, writer io.Writer) {
	fmt.Fprintf(writer, "Invoices Loaded:  %d\n", summary.TotalInvoices)
	fmt.Fprintf(writer, "Payments:         %d\n", summary.TotalPayments)

	fmt.Fprintf(writer, "\nOutcome Breakdown:\n")
	fmt.Fprintf(writer, "  Auto-Validated: %d (%.1f%%)\n",
		summary.AutoValidated,
		rg.calculatePercentage(summary.AutoValidated, summary.TotalPayments))
	fmt.Fprintf(writer, "  Suggested:      %d (%.1f%%)\n",
		summary.Suggested,
		rg.calculatePercentage(summary.Suggested, summary.TotalPayments))
	fmt.Fprintf(writer, "  Complex Groups: %d\n", summary.ComplexGroups)
	fmt.Fprintf(writer, "  Unmatched:      %d (%.1f%%)\n",
		summary.UnmatchedPayments,
		rg.calculatePercentage(summary.UnmatchedPayments, summary.TotalPayments))

	if summary.DateRange != nil {
		fmt.Fprintf(writer, "\nDate Range: %s\n", summary.DateRange)
	}
}

func (rg *ReportGenerator) printFinancialSummary(summary *reconciler.ResultSummary, writer io.Writer) {
	fmt.Fprintf(writer, "Total Amount Matched:   %s\n", summary.TotalAmountMatched.StringFixed(2))
	fmt.Fprintf(writer, "Total Amount Unmatched: %s\n", summary.TotalAmountUnmatched.StringFixed(2))

	total := summary.TotalAmountMatched.Add(summary.TotalAmountUnmatched)
	if !total.IsZero() {
		matchedPct := summary.TotalAmountMatched.Div(total).Mul(decimal.NewFromInt(100))
		fmt.Fprintf(writer, "Matched Percentage:     %s%%\n", matchedPct.StringFixed(2))
	}
}

func (rg *ReportGenerator) printMatchGroups(groups []*models.MatchGroup, writer io.Writer) {
	if rg.config.SortByAmount {
		sort.Slice(groups, func(i, j int) bool {
			return groups[i].Payment.Amount.GreaterThan(groups[j].Payment.Amount)
		})
	}

	fmt.Fprintf(writer, "Total Match Groups: %d\n\n", len(groups))

	for i, group := range groups {
		best := group.Best()
		if best == nil {
			continue
		}

		fmt.Fprintf(writer, "  %d. Payment %s (%s) -> Invoice %s (%s)\n",
			i+1,
			group.Payment.ID,
			group.Payment.Amount.StringFixed(2),
			best.Invoice.ID,
			best.Invoice.Amount.StringFixed(2))
		fmt.Fprintf(writer, "     Confidence: %s, Score: %d, State: %s\n",
			best.Confidence, best.Score.Total, group.State)

		if rg.config.IncludeScoreDetails {
			fmt.Fprintf(writer, "     Criteria: %s\n", rg.scoreNotes(best.Score))
		}

		if len(group.Candidates) > 1 {
			fmt.Fprintf(writer, "     Other candidates: %d\n", len(group.Candidates)-1)
		}

		// Limit output for very long lists
		if i >= 19 && len(groups) > 20 {
			fmt.Fprintf(writer, "  ... and %d more\n", len(groups)-20)
			break
		}
	}
}

func (rg *ReportGenerator) printComplexGroups(groups []*models.ComplexMatchGroup, writer io.Writer) {
	fmt.Fprintf(writer, "Total Complex Matches: %d\n\n", len(groups))

	for i, group := range groups {
		fmt.Fprintf(writer, "  %d. %s: payments [%s] <-> invoices [%s]\n",
			i+1,
			group.Type,
			joinPaymentIDs(group.Payments),
			joinInvoiceIDs(group.Invoices))
		fmt.Fprintf(writer, "     Payment Total: %s, Invoice Total: %s, Gap: %s\n",
			group.PaymentTotal().StringFixed(2),
			group.InvoiceTotal().StringFixed(2),
			group.AmountGap().StringFixed(2))
		fmt.Fprintf(writer, "     Score: %d, State: %s\n", group.Score.Total, group.State)
	}
}

func (rg *ReportGenerator) printUnmatchedPayments(payments []*models.Payment, writer io.Writer) {
	if rg.config.SortByAmount {
		sort.Slice(payments, func(i, j int) bool {
			return payments[i].Amount.GreaterThan(payments[j].Amount)
		})
	}

	fmt.Fprintf(writer, "Total Unmatched Payments: %d\n\n", len(payments))

	for i, payment := range payments {
		fmt.Fprintf(writer, "  %d. ID: %s, Amount: %s, Client: %s, Received: %s\n",
			i+1,
			payment.ID,
			payment.Amount.StringFixed(2),
			payment.ClientName,
			payment.ReceptionDate.Format("2006-01-02"))

		// Limit output for very long lists
		if i >= 9 && len(payments) > 10 {
			fmt.Fprintf(writer, "  ... and %d more\n", len(payments)-10)
			break
		}
	}
}

func (rg *ReportGenerator) printDiscrepancies(discrepancies []*reconciler.Discrepancy, writer io.Writer) {
	fmt.Fprintf(writer, "Total Discrepancies Found: %d\n\n", len(discrepancies))

	// Group by severity
	severityGroups := make(map[reconciler.Severity][]*reconciler.Discrepancy)
	for _, disc := range discrepancies {
		severityGroups[disc.Severity] = append(severityGroups[disc.Severity], disc)
	}

	// Print in severity order
	severities := []reconciler.Severity{
		reconciler.SeverityCritical,
		reconciler.SeverityHigh,
		reconciler.SeverityMedium,
		reconciler.SeverityLow,
		reconciler.SeverityInfo,
	}

	for _, severity := range severities {
		discs := severityGroups[severity]
		if len(discs) == 0 {
			continue
		}

		fmt.Fprintf(writer, "%s Severity (%d):\n", strings.ToUpper(string(severity)), len(discs))
		for _, disc := range discs {
			fmt.Fprintf(writer, "  - %s: %s", disc.Type, disc.Description)
			if !disc.Amount.IsZero() {
				fmt.Fprintf(writer, " (Amount: %s)", disc.Amount.StringFixed(2))
			}
			fmt.Fprintf(writer, "\n")
		}
		fmt.Fprintf(writer, "\n")
	}
}

func (rg *ReportGenerator) printProcessingStats(stats *reconciler.ProcessingStats, writer io.Writer) {
	fmt.Fprintf(writer, "Files Processed:      %d\n", stats.FilesProcessed)
	fmt.Fprintf(writer, "Parse Errors:         %d\n", stats.ParseErrors)
	fmt.Fprintf(writer, "Validation Errors:    %d\n", stats.ValidationErrors)
	fmt.Fprintf(writer, "Records/Second:       %.2f\n", stats.RecordsPerSecond)
	fmt.Fprintf(writer, "Total Processing:     %v\n", stats.TotalProcessingTime)
	fmt.Fprintf(writer, "Parsing Time:         %v\n", stats.ParsingTime)
	fmt.Fprintf(writer, "Matching Time:        %v\n", stats.MatchingTime)
}

// Helper methods

// scoreNotes renders a score's criterion breakdown in a stable order,
// e.g. "exactAmount:40; exactReference:30; sameClient:10".
func (rg *ReportGenerator) scoreNotes(score models.MatchScore) string {
	if len(score.Details) == 0 {
		return ""
	}

	criteria := make([]string, 0, len(score.Details))
	for criterion := range score.Details {
		criteria = append(criteria, criterion)
	}
	sort.Strings(criteria)

	parts := make([]string, 0, len(criteria))
	for _, criterion := range criteria {
		parts = append(parts, fmt.Sprintf("%s:%d", criterion, score.Details[criterion]))
	}
	return strings.Join(parts, "; ")
}

func (rg *ReportGenerator) calculatePercentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}

func (rg *ReportGenerator) filterResultForOutput(result *reconciler.ReconciliationResult) map[string]interface{} {
	output := map[string]interface{}{
		"summary":      result.Summary,
		"processed_at": result.ProcessedAt,
	}

	if rg.config.IncludeMatchGroups && result.Groups != nil {
		output["groups"] = result.Groups
	}

	if rg.config.IncludeComplexGroups && result.ComplexGroups != nil {
		output["complex_groups"] = result.ComplexGroups
	}

	if rg.config.IncludeUnmatchedPayments && result.UnmatchedPayments != nil {
		output["unmatched_payments"] = result.UnmatchedPayments
	}

	if rg.config.IncludeDiscrepancies && result.Discrepancies != nil {
		output["discrepancies"] = result.Discrepancies
	}

	if rg.config.IncludeProcessingStats && result.ProcessingStats != nil {
		output["processing_stats"] = result.ProcessingStats
	}

	return output
}

func joinPaymentIDs(payments []*models.Payment) string {
	ids := make([]string, 0, len(payments))
	for _, p := range payments {
		ids = append(ids, p.ID)
	}
	return strings.Join(ids, ", ")
}

func joinInvoiceIDs(invoices []*models.Invoice) string {
	ids := make([]string, 0, len(invoices))
	for _, inv := range invoices {
		ids = append(ids, inv.ID)
	}
	return strings.Join(ids, ", ")
}

// UpdateConfiguration updates the report generator configuration
func (rg *ReportGenerator) UpdateConfiguration(config *ReportConfig) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid report configuration: %w", err)
	}

	rg.config = config
	return nil
}

// GetConfiguration returns the current configuration
func (rg *ReportGenerator) GetConfiguration() *ReportConfig {
	return rg.config
}
