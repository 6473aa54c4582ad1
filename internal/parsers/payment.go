package parsers

import (
	"context"
	"fmt"
	"io"

	"github.com/PocKeTio/Reco/internal/models"
)

// PaymentParser handles parsing of incoming payment CSV files with
// multi-bank format support
type PaymentParser struct {
	*BaseParser
	bankConfig *BankConfig
}

// NewPaymentParser creates a new PaymentParser with the given bank configuration
func NewPaymentParser(bankConfig *BankConfig) (*PaymentParser, error) {
	if bankConfig == nil {
		bankConfig = StandardBankConfig
	}

	if err := bankConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bank configuration: %w", err)
	}

	parseConfig := &ParseConfig{
		HasHeader:        bankConfig.HasHeader,
		Delimiter:        bankConfig.Delimiter,
		Comment:          0,
		TrimLeadingSpace: true,
		SkipEmptyRows:    true,
		MaxFieldSize:     1000000,
		ValidateEncoding: true,
	}

	return &PaymentParser{
		BaseParser: NewBaseParser(parseConfig),
		bankConfig: bankConfig,
	}, nil
}

// ParsePayments parses a CSV file containing incoming payments
func (pp *PaymentParser) ParsePayments(filePath string) ([]*models.Payment, *ParseStats, error) {
	return pp.ParsePaymentsWithContext(context.Background(), filePath)
}

// ParsePaymentsWithContext parses payments with cancellation support
func (pp *PaymentParser) ParsePaymentsWithContext(ctx context.Context, filePath string) ([]*models.Payment, *ParseStats, error) {
	file, reader, err := pp.OpenFile(filePath)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	parseCtx := NewParseContext(ctx)
	stats := NewParseStats()

	requiredHeaders := pp.getRequiredHeaders()
	if err := pp.ReadHeaders(reader, parseCtx, requiredHeaders); err != nil {
		return nil, stats, fmt.Errorf("failed to read headers: %w", err)
	}

	var payments []*models.Payment

	for {
		if parseCtx.IsCancelled() {
			return payments, stats, fmt.Errorf("parsing cancelled")
		}

		record, err := pp.ReadRecord(reader, parseCtx)
		if err != nil {
			if err == io.EOF {
				break
			}
			stats.AddError(&ParseError{
				Line:    parseCtx.LineNumber,
				Message: "failed to read record",
				Err:     err,
			})
			continue
		}

		stats.RecordsParsed++

		payment, parseErr := pp.parsePaymentFromRecord(record, parseCtx)
		if parseErr != nil {
			stats.AddError(parseErr)
			continue
		}

		if err := payment.Validate(); err != nil {
			stats.AddError(&ParseError{
				Line:    parseCtx.LineNumber,
				Message: "payment validation failed",
				Err:     err,
			})
			continue
		}

		payments = append(payments, payment)
		stats.RecordsValid++
	}

	stats.TotalLines = parseCtx.LineNumber

	return payments, stats, nil
}

// getRequiredHeaders returns the required header names for the
// configured bank. Reference and client columns are optional since
// some exports omit them.
func (pp *PaymentParser) getRequiredHeaders() []string {
	return []string{
		pp.bankConfig.GetColumnName("identifier"),
		pp.bankConfig.GetColumnName("amount"),
		pp.bankConfig.GetColumnName("date"),
	}
}

// parsePaymentFromRecord creates a Payment from a CSV record
func (pp *PaymentParser) parsePaymentFromRecord(record []string, parseCtx *ParseContext) (*models.Payment, *ParseError) {
	identifier, err := pp.GetFieldValue(record, parseCtx, pp.bankConfig.GetColumnName("identifier"))
	if err != nil {
		return nil, &ParseError{
			Line:    parseCtx.LineNumber,
			Field:   pp.bankConfig.GetColumnName("identifier"),
			Message: "failed to get payment identifier",
			Err:     err,
		}
	}

	amountStr, err := pp.GetFieldValue(record, parseCtx, pp.bankConfig.GetColumnName("amount"))
	if err != nil {
		return nil, &ParseError{
			Line:    parseCtx.LineNumber,
			Field:   pp.bankConfig.GetColumnName("amount"),
			Message: "failed to get amount",
			Err:     err,
		}
	}

	dateStr, err := pp.GetFieldValue(record, parseCtx, pp.bankConfig.GetColumnName("date"))
	if err != nil {
		return nil, &ParseError{
			Line:    parseCtx.LineNumber,
			Field:   pp.bankConfig.GetColumnName("date"),
			Message: "failed to get date",
			Err:     err,
		}
	}

	// Reference and client are best-effort: exports without them still
	// produce matchable payments, they just score on fewer criteria.
	reference := ""
	if column := pp.bankConfig.GetColumnName("reference"); column != "" {
		if value, err := pp.GetFieldValue(record, parseCtx, column); err == nil {
			reference = value
		}
	}

	clientName := ""
	if column := pp.bankConfig.GetColumnName("client"); column != "" {
		if value, err := pp.GetFieldValue(record, parseCtx, column); err == nil {
			clientName = value
		}
	}

	payment, err := models.CreatePaymentFromCSV(identifier, reference, clientName, amountStr, dateStr)
	if err != nil {
		return nil, &ParseError{
			Line:    parseCtx.LineNumber,
			Message: "failed to create payment from CSV data",
			Err:     err,
		}
	}

	return payment, nil
}

// ParsePaymentsCallback defines a callback function for streaming payment parsing
type ParsePaymentsCallback func([]*models.Payment) error

// ParsePaymentsStream parses payments in streaming mode with batching
func (pp *PaymentParser) ParsePaymentsStream(
	filePath string,
	batchSize int,
	callback ParsePaymentsCallback,
) (*ParseStats, error) {
	return pp.ParsePaymentsStreamWithContext(context.Background(), filePath, batchSize, callback)
}

// ParsePaymentsStreamWithContext parses payments in streaming mode with context support
func (pp *PaymentParser) ParsePaymentsStreamWithContext(
	ctx context.Context,
	filePath string,
	batchSize int,
	callback ParsePaymentsCallback,
) (*ParseStats, error) {
	if batchSize <= 0 {
		batchSize = 1000 // Default batch size
	}

	file, reader, err := pp.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	parseCtx := NewParseContext(ctx)
	stats := NewParseStats()

	requiredHeaders := pp.getRequiredHeaders()
	if err := pp.ReadHeaders(reader, parseCtx, requiredHeaders); err != nil {
		return stats, fmt.Errorf("failed to read headers: %w", err)
	}

	batch := make([]*models.Payment, 0, batchSize)

	for {
		if parseCtx.IsCancelled() {
			return stats, fmt.Errorf("parsing cancelled")
		}

		record, err := pp.ReadRecord(reader, parseCtx)
		if err != nil {
			if err == io.EOF {
				// Process remaining batch
				if len(batch) > 0 {
					if callbackErr := callback(batch); callbackErr != nil {
						return stats, fmt.Errorf("callback error: %w", callbackErr)
					}
				}
				break
			}
			stats.AddError(&ParseError{
				Line:    parseCtx.LineNumber,
				Message: "failed to read record",
				Err:     err,
			})
			continue
		}

		stats.RecordsParsed++

		payment, parseErr := pp.parsePaymentFromRecord(record, parseCtx)
		if parseErr != nil {
			stats.AddError(parseErr)
			continue
		}

		if err := payment.Validate(); err != nil {
			stats.AddError(&ParseError{
				Line:    parseCtx.LineNumber,
				Message: "payment validation failed",
				Err:     err,
			})
			continue
		}

		batch = append(batch, payment)
		stats.RecordsValid++

		if len(batch) >= batchSize {
			if err := callback(batch); err != nil {
				return stats, fmt.Errorf("callback error: %w", err)
			}
			batch = batch[:0] // Reset batch
		}
	}

	stats.TotalLines = parseCtx.LineNumber

	return stats, nil
}

// DetectBankFormat attempts to detect the export format from the CSV file
func (pp *PaymentParser) DetectBankFormat(filePath string) (*BankConfig, error) {
	file, reader, err := pp.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read headers for format detection: %w", err)
	}

	return AutoDetectBankConfig(headers), nil
}

// ValidatePaymentFile validates that a CSV file has the correct format for payments
func (pp *PaymentParser) ValidatePaymentFile(filePath string) error {
	file, reader, err := pp.OpenFile(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	parseCtx := NewParseContext(context.Background())

	requiredHeaders := pp.getRequiredHeaders()
	if err := pp.ReadHeaders(reader, parseCtx, requiredHeaders); err != nil {
		return fmt.Errorf("header validation failed: %w", err)
	}

	recordCount := 0
	maxValidation := 10

	for recordCount < maxValidation {
		record, err := pp.ReadRecord(reader, parseCtx)
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to read record %d: %w", recordCount+1, err)
		}

		recordCount++

		if _, parseErr := pp.parsePaymentFromRecord(record, parseCtx); parseErr != nil {
			return fmt.Errorf("failed to parse record %d: %w", recordCount, parseErr)
		}
	}

	if recordCount == 0 {
		return fmt.Errorf("file contains no data records")
	}

	return nil
}

// GetBankConfig returns the current bank configuration
func (pp *PaymentParser) GetBankConfig() *BankConfig {
	return pp.bankConfig
}

// SetBankConfig updates the bank configuration and reinitializes the parser
func (pp *PaymentParser) SetBankConfig(config *BankConfig) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid bank configuration: %w", err)
	}

	pp.bankConfig = config

	parseConfig := &ParseConfig{
		HasHeader:        config.HasHeader,
		Delimiter:        config.Delimiter,
		Comment:          0,
		TrimLeadingSpace: true,
		SkipEmptyRows:    true,
		MaxFieldSize:     1000000,
		ValidateEncoding: true,
	}

	pp.BaseParser = NewBaseParser(parseConfig)

	return nil
}

// NewPaymentParserWithAutoDetect creates a parser by auto-detecting the export format
func NewPaymentParserWithAutoDetect(filePath string) (*PaymentParser, error) {
	tempParser, err := NewPaymentParser(StandardBankConfig)
	if err != nil {
		return nil, err
	}

	config, err := tempParser.DetectBankFormat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to detect export format: %w", err)
	}

	return NewPaymentParser(config)
}

// ParseMultipleBankFiles parses multiple payment files with different formats
func ParseMultipleBankFiles(files map[string]string) (map[string][]*models.Payment, map[string]*ParseStats, error) {
	results := make(map[string][]*models.Payment)
	stats := make(map[string]*ParseStats)

	for bankName, filePath := range files {
		config := GetBankConfig(bankName)
		if config == nil {
			return nil, nil, fmt.Errorf("unsupported bank: %s", bankName)
		}

		parser, err := NewPaymentParser(config)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create parser for %s: %w", bankName, err)
		}

		payments, parseStats, err := parser.ParsePayments(filePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse file for %s: %w", bankName, err)
		}

		results[bankName] = payments
		stats[bankName] = parseStats
	}

	return results, stats, nil
}
