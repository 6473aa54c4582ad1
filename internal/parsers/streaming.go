package parsers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/PocKeTio/Reco/internal/models"
)

// ProgressReport contains information about parsing progress for
// long-running operations. PercentComplete is only accurate when
// EstimatedTotal is known.
type ProgressReport struct {
	ProcessedRecords int
	ValidRecords     int
	ErrorCount       int
	ElapsedTime      time.Duration
	EstimatedTotal   int
	PercentComplete  float64
}

// ProgressCallback is called periodically to report parsing progress
type ProgressCallback func(*ProgressReport)

// StreamingInvoiceParser provides memory-efficient streaming
// capabilities for invoice parsing. It processes data in configurable
// batches and supports progress reporting, for files that may not fit
// in memory.
type StreamingInvoiceParser struct {
	*InvoiceParser
	config *StreamingConfig
}

// NewStreamingInvoiceParser creates a new streaming invoice parser
func NewStreamingInvoiceParser(config *InvoiceParserConfig, streamConfig *StreamingConfig) (*StreamingInvoiceParser, error) {
	if streamConfig == nil {
		streamConfig = DefaultStreamingConfig()
	}

	if err := streamConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid streaming configuration: %w", err)
	}

	invoiceParser, err := NewInvoiceParser(config)
	if err != nil {
		return nil, err
	}

	return &StreamingInvoiceParser{
		InvoiceParser: invoiceParser,
		config:        streamConfig,
	}, nil
}

// ParseInvoicesStreamAdvanced parses invoices with batching, progress
// reporting and cancellation support.
func (sip *StreamingInvoiceParser) ParseInvoicesStreamAdvanced(
	ctx context.Context,
	filePath string,
	callback ParseInvoicesCallback,
	progressCallback ProgressCallback,
) (*ParseStats, error) {
	startTime := time.Now()
	stats := NewParseStats()

	var estimatedTotal int
	if sip.config.ReportProgress && progressCallback != nil {
		if total, err := sip.estimateRecordCount(filePath); err == nil {
			estimatedTotal = total
		}
	}

	batchCallback := func(invoices []*models.Invoice) error {
		select {
		case <-ctx.Done():
			return fmt.Errorf("processing cancelled")
		default:
			if err := callback(invoices); err != nil {
				return fmt.Errorf("user callback error: %w", err)
			}

			stats.RecordsValid += len(invoices)

			if sip.config.ReportProgress && progressCallback != nil &&
				stats.RecordsValid%sip.config.ProgressInterval == 0 {
				progressCallback(buildProgressReport(stats, startTime, estimatedTotal, false))
			}

			return nil
		}
	}

	parseStats, err := sip.ParseInvoicesStreamWithContext(
		ctx, filePath, sip.config.BatchSize, batchCallback)

	if parseStats != nil {
		stats.TotalLines = parseStats.TotalLines
		stats.RecordsParsed = parseStats.RecordsParsed
		stats.ErrorCount = parseStats.ErrorCount
		stats.Errors = parseStats.Errors
	}

	if sip.config.ReportProgress && progressCallback != nil {
		progressCallback(buildProgressReport(stats, startTime, estimatedTotal, true))
	}

	return stats, err
}

// estimateRecordCount attempts to estimate the total number of records in the file
func (sip *StreamingInvoiceParser) estimateRecordCount(filePath string) (int, error) {
	file, reader, err := sip.OpenFile(filePath)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	parseCtx := NewParseContext(context.Background())

	if sip.InvoiceParser.config.HasHeader {
		if err := sip.ReadHeaders(reader, parseCtx, nil); err != nil {
			return 0, err
		}
	}

	count := 0
	for {
		if _, err := sip.ReadRecord(reader, parseCtx); err != nil {
			break
		}
		count++
	}

	return count, nil
}

// StreamingPaymentParser provides streaming capabilities for payment parsing
type StreamingPaymentParser struct {
	*PaymentParser
	config *StreamingConfig
}

// NewStreamingPaymentParser creates a new streaming payment parser
func NewStreamingPaymentParser(bankConfig *BankConfig, streamConfig *StreamingConfig) (*StreamingPaymentParser, error) {
	if streamConfig == nil {
		streamConfig = DefaultStreamingConfig()
	}

	if err := streamConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid streaming configuration: %w", err)
	}

	paymentParser, err := NewPaymentParser(bankConfig)
	if err != nil {
		return nil, err
	}

	return &StreamingPaymentParser{
		PaymentParser: paymentParser,
		config:        streamConfig,
	}, nil
}

// ParsePaymentsStreamAdvanced parses payments with batching, progress
// reporting and cancellation support.
func (spp *StreamingPaymentParser) ParsePaymentsStreamAdvanced(
	ctx context.Context,
	filePath string,
	callback ParsePaymentsCallback,
	progressCallback ProgressCallback,
) (*ParseStats, error) {
	startTime := time.Now()
	stats := NewParseStats()

	var estimatedTotal int
	if spp.config.ReportProgress && progressCallback != nil {
		if total, err := spp.estimateRecordCount(filePath); err == nil {
			estimatedTotal = total
		}
	}

	batchCallback := func(payments []*models.Payment) error {
		select {
		case <-ctx.Done():
			return fmt.Errorf("processing cancelled")
		default:
			if err := callback(payments); err != nil {
				return fmt.Errorf("user callback error: %w", err)
			}

			stats.RecordsValid += len(payments)

			if spp.config.ReportProgress && progressCallback != nil &&
				stats.RecordsValid%spp.config.ProgressInterval == 0 {
				progressCallback(buildProgressReport(stats, startTime, estimatedTotal, false))
			}

			return nil
		}
	}

	parseStats, err := spp.ParsePaymentsStreamWithContext(
		ctx, filePath, spp.config.BatchSize, batchCallback)

	if parseStats != nil {
		stats.TotalLines = parseStats.TotalLines
		stats.RecordsParsed = parseStats.RecordsParsed
		stats.ErrorCount = parseStats.ErrorCount
		stats.Errors = parseStats.Errors
	}

	if spp.config.ReportProgress && progressCallback != nil {
		progressCallback(buildProgressReport(stats, startTime, estimatedTotal, true))
	}

	return stats, err
}

// estimateRecordCount attempts to estimate the total number of records in the file
func (spp *StreamingPaymentParser) estimateRecordCount(filePath string) (int, error) {
	file, reader, err := spp.OpenFile(filePath)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	parseCtx := NewParseContext(context.Background())

	if spp.bankConfig.HasHeader {
		if err := spp.ReadHeaders(reader, parseCtx, nil); err != nil {
			return 0, err
		}
	}

	count := 0
	for {
		if _, err := spp.ReadRecord(reader, parseCtx); err != nil {
			break
		}
		count++
	}

	return count, nil
}

// buildProgressReport assembles a progress snapshot from running stats
func buildProgressReport(stats *ParseStats, startTime time.Time, estimatedTotal int, final bool) *ProgressReport {
	elapsed := time.Since(startTime)

	percentComplete := 0.0
	if final {
		percentComplete = 100.0
	} else if estimatedTotal > 0 {
		percentComplete = float64(stats.RecordsValid) / float64(estimatedTotal) * 100
	}

	return &ProgressReport{
		ProcessedRecords: stats.RecordsParsed,
		ValidRecords:     stats.RecordsValid,
		ErrorCount:       stats.ErrorCount,
		ElapsedTime:      elapsed,
		EstimatedTotal:   estimatedTotal,
		PercentComplete:  percentComplete,
	}
}

// ConcurrentParser provides concurrent parsing capabilities for multiple files
type ConcurrentParser struct {
	maxConcurrency int
	semaphore      chan struct{}
}

// NewConcurrentParser creates a new concurrent parser
func NewConcurrentParser(maxConcurrency int) *ConcurrentParser {
	if maxConcurrency <= 0 {
		maxConcurrency = 4 // Default concurrency
	}

	return &ConcurrentParser{
		maxConcurrency: maxConcurrency,
		semaphore:      make(chan struct{}, maxConcurrency),
	}
}

// ConcurrentParseResult holds the result of a concurrent parsing operation
type ConcurrentParseResult struct {
	FilePath string
	Invoices []*models.Invoice
	Payments []*models.Payment
	Stats    *ParseStats
	Error    error
}

// ParseInvoicesConcurrently parses multiple invoice files concurrently
func (cp *ConcurrentParser) ParseInvoicesConcurrently(
	ctx context.Context,
	files map[string]*InvoiceParserConfig,
) <-chan *ConcurrentParseResult {
	results := make(chan *ConcurrentParseResult, len(files))

	var wg sync.WaitGroup

	for filePath, config := range files {
		wg.Add(1)

		go func(path string, cfg *InvoiceParserConfig) {
			defer wg.Done()

			cp.semaphore <- struct{}{}
			defer func() { <-cp.semaphore }()

			result := &ConcurrentParseResult{FilePath: path}

			parser, err := NewInvoiceParser(cfg)
			if err != nil {
				result.Error = fmt.Errorf("failed to create parser: %w", err)
				results <- result
				return
			}

			invoices, stats, err := parser.ParseInvoicesWithContext(ctx, path)
			result.Invoices = invoices
			result.Stats = stats
			result.Error = err

			results <- result
		}(filePath, config)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// ParsePaymentsConcurrently parses multiple payment files concurrently
func (cp *ConcurrentParser) ParsePaymentsConcurrently(
	ctx context.Context,
	files map[string]*BankConfig,
) <-chan *ConcurrentParseResult {
	results := make(chan *ConcurrentParseResult, len(files))

	var wg sync.WaitGroup

	for filePath, config := range files {
		wg.Add(1)

		go func(path string, cfg *BankConfig) {
			defer wg.Done()

			cp.semaphore <- struct{}{}
			defer func() { <-cp.semaphore }()

			result := &ConcurrentParseResult{FilePath: path}

			parser, err := NewPaymentParser(cfg)
			if err != nil {
				result.Error = fmt.Errorf("failed to create parser: %w", err)
				results <- result
				return
			}

			payments, stats, err := parser.ParsePaymentsWithContext(ctx, path)
			result.Payments = payments
			result.Stats = stats
			result.Error = err

			results <- result
		}(filePath, config)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}
