package parsers

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PocKeTio/Reco/internal/models"
	"github.com/PocKeTio/Reco/pkg/errors"
	"github.com/PocKeTio/Reco/pkg/logger"
)

// InvoiceParser handles parsing of accounts-receivable invoice CSV files
type InvoiceParser struct {
	*BaseParser
	config *InvoiceParserConfig
	logger logger.Logger
}

// NewInvoiceParser creates a new InvoiceParser with the given configuration
func NewInvoiceParser(config *InvoiceParserConfig) (*InvoiceParser, error) {
	if config == nil {
		config = DefaultInvoiceParserConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"invoice_parser_config",
			config,
			err,
		).WithSuggestion("Check the invoice parser configuration values")
	}

	parseConfig := &ParseConfig{
		HasHeader:        config.HasHeader,
		Delimiter:        config.Delimiter,
		Comment:          0,
		TrimLeadingSpace: true,
		SkipEmptyRows:    true,
		MaxFieldSize:     1000000,
		ValidateEncoding: true,
	}

	baseParser := NewBaseParser(parseConfig)
	log := logger.GetGlobalLogger().WithComponent("invoice_parser")

	log.WithFields(logger.Fields{
		"has_header": config.HasHeader,
		"delimiter":  string(config.Delimiter),
	}).Debug("Created invoice parser")

	return &InvoiceParser{
		BaseParser: baseParser,
		config:     config,
		logger:     log,
	}, nil
}

// ParseInvoices parses a CSV file containing invoices
func (ip *InvoiceParser) ParseInvoices(filePath string) ([]*models.Invoice, *ParseStats, error) {
	return ip.ParseInvoicesWithContext(context.Background(), filePath)
}

// ParseInvoicesWithContext parses invoices with cancellation support
func (ip *InvoiceParser) ParseInvoicesWithContext(ctx context.Context, filePath string) ([]*models.Invoice, *ParseStats, error) {
	ip.logger.WithFields(logger.Fields{
		"file_path": filePath,
		"operation": "parse_invoices",
	}).Info("Starting invoice parsing")

	file, reader, err := ip.OpenFile(filePath)
	if err != nil {
		ip.logger.WithError(err).WithField("file_path", filePath).Error("Failed to open invoice file")
		return nil, nil, err
	}
	defer file.Close()

	parseCtx := NewParseContext(ctx)
	stats := NewParseStats()

	requiredHeaders := ip.getRequiredHeaders()
	if err := ip.ReadHeaders(reader, parseCtx, requiredHeaders); err != nil {
		ip.logger.WithError(err).WithFields(logger.Fields{
			"file_path":        filePath,
			"required_headers": requiredHeaders,
		}).Error("Failed to read or validate headers")

		return nil, stats, errors.ParseError(
			errors.CodeMissingColumn,
			filePath,
			parseCtx.LineNumber,
			"headers",
			"",
			err,
		).WithSuggestion("Ensure the CSV file has the required headers: " + fmt.Sprintf("%v", requiredHeaders))
	}

	var invoices []*models.Invoice

	for {
		if parseCtx.IsCancelled() {
			ip.logger.Warn("Invoice parsing was cancelled")
			return invoices, stats, errors.InternalError(
				errors.CodeUnexpectedError,
				"invoice_parsing",
				fmt.Errorf("parsing cancelled by context"),
			)
		}

		record, err := ip.ReadRecord(reader, parseCtx)
		if err != nil {
			if err == io.EOF {
				break
			}

			ip.logger.WithError(err).WithField("line_number", parseCtx.LineNumber).Warn("Failed to read record")

			parseError := errors.ParseError(
				errors.CodeInvalidFormat,
				filePath,
				parseCtx.LineNumber,
				"record",
				"",
				err,
			)

			stats.AddError(&ParseError{
				Line:    parseCtx.LineNumber,
				Message: parseError.Message,
				Err:     parseError,
			})
			continue
		}

		stats.RecordsParsed++

		invoice, parseErr := ip.parseInvoiceFromRecord(record, parseCtx, filePath)
		if parseErr != nil {
			stats.AddError(parseErr)
			continue
		}

		if err := invoice.Validate(); err != nil {
			ip.logger.WithError(err).WithFields(logger.Fields{
				"line_number": parseCtx.LineNumber,
				"invoice_id":  invoice.ID,
			}).Warn("Invoice validation failed")

			validationError := errors.ValidationError(
				errors.CodeInvalidData,
				"invoice",
				invoice.ID,
				err,
			)

			stats.AddError(&ParseError{
				Line:    parseCtx.LineNumber,
				Message: validationError.Message,
				Err:     validationError,
			})
			continue
		}

		invoices = append(invoices, invoice)
		stats.RecordsValid++
	}

	stats.TotalLines = parseCtx.LineNumber

	ip.logger.WithFields(logger.Fields{
		"file_path":      filePath,
		"total_lines":    stats.TotalLines,
		"records_parsed": stats.RecordsParsed,
		"records_valid":  stats.RecordsValid,
		"error_count":    len(stats.Errors),
	}).Info("Invoice parsing completed")

	if len(stats.Errors) > 0 {
		ip.logger.WithField("sample_errors", stats.GetSampleErrors(3)).Warn("Encountered errors during parsing")
	}

	return invoices, stats, nil
}

// getRequiredHeaders returns the list of required header names.
// The status column is optional and therefore excluded.
func (ip *InvoiceParser) getRequiredHeaders() []string {
	return []string{
		ip.config.GetColumnName("invoice_id"),
		ip.config.GetColumnName("reference"),
		ip.config.GetColumnName("client_name"),
		ip.config.GetColumnName("amount"),
		ip.config.GetColumnName("due_date"),
	}
}

// parseInvoiceFromRecord creates an Invoice from a CSV record
func (ip *InvoiceParser) parseInvoiceFromRecord(record []string, parseCtx *ParseContext, filePath string) (*models.Invoice, *ParseError) {
	fields := make(map[string]string, 5)
	for _, name := range []string{"invoice_id", "reference", "client_name", "amount", "due_date"} {
		column := ip.config.GetColumnName(name)
		value, err := ip.GetFieldValue(record, parseCtx, column)
		if err != nil {
			parseError := errors.ParseError(
				errors.CodeMissingField,
				filePath,
				parseCtx.LineNumber,
				column,
				"",
				err,
			).WithSuggestion(fmt.Sprintf("Ensure the %s column exists and has a value", column))

			return nil, &ParseError{
				Line:    parseCtx.LineNumber,
				Field:   column,
				Message: parseError.Message,
				Err:     parseError,
			}
		}
		fields[name] = value
	}

	// Status is optional: missing column or empty value means open
	statusStr := ""
	if statusColumn := ip.config.GetColumnName("status"); statusColumn != "" {
		if value, err := ip.GetFieldValue(record, parseCtx, statusColumn); err == nil {
			statusStr = value
		}
	}

	invoice, err := models.CreateInvoiceFromCSV(
		fields["invoice_id"],
		fields["reference"],
		fields["client_name"],
		fields["amount"],
		fields["due_date"],
		statusStr,
	)
	if err != nil {
		ip.logger.WithError(err).WithFields(logger.Fields{
			"line_number": parseCtx.LineNumber,
			"invoice_id":  fields["invoice_id"],
			"amount":      fields["amount"],
			"due_date":    fields["due_date"],
			"status":      statusStr,
		}).Warn("Failed to create invoice from CSV data")

		var errorCode errors.ErrorCode
		var suggestion string

		switch {
		case strings.Contains(err.Error(), "amount"):
			errorCode = errors.CodeInvalidAmount
			suggestion = "Check the amount format - use decimal numbers like '123.45'"
		case strings.Contains(err.Error(), "status"):
			errorCode = errors.CodeInvalidData
			suggestion = "Use OPEN or PAID for invoice statuses"
		case strings.Contains(err.Error(), "date") || strings.Contains(err.Error(), "time"):
			errorCode = errors.CodeInvalidDate
			suggestion = "Use date format like '2024-01-15'"
		default:
			errorCode = errors.CodeInvalidData
			suggestion = "Check the data format for all fields"
		}

		parseError := errors.ParseError(
			errorCode,
			filePath,
			parseCtx.LineNumber,
			"invoice_data",
			fmt.Sprintf("invoice_id=%s, amount=%s, due_date=%s, status=%s",
				fields["invoice_id"], fields["amount"], fields["due_date"], statusStr),
			err,
		).WithSuggestion(suggestion)

		return nil, &ParseError{
			Line:    parseCtx.LineNumber,
			Message: parseError.Message,
			Err:     parseError,
		}
	}

	return invoice, nil
}

// ParseInvoicesCallback defines a callback function for streaming parsing
type ParseInvoicesCallback func([]*models.Invoice) error

// ParseInvoicesStream parses invoices in streaming mode with batching
func (ip *InvoiceParser) ParseInvoicesStream(
	filePath string,
	batchSize int,
	callback ParseInvoicesCallback,
) (*ParseStats, error) {
	return ip.ParseInvoicesStreamWithContext(context.Background(), filePath, batchSize, callback)
}

// ParseInvoicesStreamWithContext parses invoices in streaming mode with context support
func (ip *InvoiceParser) ParseInvoicesStreamWithContext(
	ctx context.Context,
	filePath string,
	batchSize int,
	callback ParseInvoicesCallback,
) (*ParseStats, error) {
	if batchSize <= 0 {
		batchSize = 1000 // Default batch size
	}

	file, reader, err := ip.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	parseCtx := NewParseContext(ctx)
	stats := NewParseStats()

	requiredHeaders := ip.getRequiredHeaders()
	if err := ip.ReadHeaders(reader, parseCtx, requiredHeaders); err != nil {
		return stats, fmt.Errorf("failed to read headers: %w", err)
	}

	batch := make([]*models.Invoice, 0, batchSize)

	for {
		if parseCtx.IsCancelled() {
			return stats, fmt.Errorf("parsing cancelled")
		}

		record, err := ip.ReadRecord(reader, parseCtx)
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

		invoice, parseErr := ip.parseInvoiceFromRecord(record, parseCtx, filePath)
		if parseErr != nil {
			stats.AddError(parseErr)
			continue
		}

		if err := invoice.Validate(); err != nil {
			stats.AddError(&ParseError{
				Line:    parseCtx.LineNumber,
				Message: "invoice validation failed",
				Err:     err,
			})
			continue
		}

		batch = append(batch, invoice)
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

// ValidateInvoiceFile validates that a CSV file has the correct format for invoices
func (ip *InvoiceParser) ValidateInvoiceFile(filePath string) error {
	ip.logger.WithField("file_path", filePath).Info("Validating invoice file format")

	file, reader, err := ip.OpenFile(filePath)
	if err != nil {
		ip.logger.WithError(err).WithField("file_path", filePath).Error("Failed to open file for validation")
		return err
	}
	defer file.Close()

	parseCtx := NewParseContext(context.Background())

	requiredHeaders := ip.getRequiredHeaders()
	if err := ip.ReadHeaders(reader, parseCtx, requiredHeaders); err != nil {
		ip.logger.WithError(err).WithFields(logger.Fields{
			"file_path":        filePath,
			"required_headers": requiredHeaders,
		}).Error("Header validation failed")

		return errors.ParseError(
			errors.CodeMissingColumn,
			filePath,
			parseCtx.LineNumber,
			"headers",
			"",
			err,
		).WithSuggestion("Ensure the CSV file has the required headers: " + fmt.Sprintf("%v", requiredHeaders))
	}

	recordCount := 0
	maxValidation := 10
	var validationErrors []error

	for recordCount < maxValidation {
		record, err := ip.ReadRecord(reader, parseCtx)
		if err != nil {
			if err == io.EOF {
				break
			}

			validationError := errors.ParseError(
				errors.CodeInvalidFormat,
				filePath,
				parseCtx.LineNumber,
				"record",
				"",
				err,
			)
			validationErrors = append(validationErrors, validationError)

			ip.logger.WithError(err).WithField("line_number", parseCtx.LineNumber).Warn("Failed to read record during validation")
			continue
		}

		recordCount++

		if _, parseErr := ip.parseInvoiceFromRecord(record, parseCtx, filePath); parseErr != nil {
			validationErrors = append(validationErrors, parseErr.Err)
			ip.logger.WithError(parseErr.Err).WithField("line_number", parseCtx.LineNumber).Warn("Failed to parse record during validation")
		}
	}

	if recordCount == 0 {
		err := errors.ValidationError(
			errors.CodeMissingField,
			"data_records",
			0,
			nil,
		).WithSuggestion("Ensure the file contains data rows after the header")

		ip.logger.WithField("file_path", filePath).Error("File contains no data records")
		return err
	}

	if len(validationErrors) > 0 {
		ip.logger.WithFields(logger.Fields{
			"file_path":      filePath,
			"error_count":    len(validationErrors),
			"records_tested": recordCount,
		}).Error("File validation failed with errors")

		return errors.ValidationError(
			errors.CodeInvalidData,
			"file_format",
			fmt.Sprintf("%d validation errors out of %d records tested", len(validationErrors), recordCount),
			validationErrors[0], // Return first error as cause
		).WithSuggestion("Fix the data format issues and try again")
	}

	ip.logger.WithFields(logger.Fields{
		"file_path":      filePath,
		"records_tested": recordCount,
	}).Info("Invoice file validation completed successfully")

	return nil
}

