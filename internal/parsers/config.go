package parsers

import (
	"fmt"
	"strings"
)

// BankConfig represents configuration for parsing bank-specific payment
// export formats
type BankConfig struct {
	Name             string            `json:"name"`
	IdentifierColumn string            `json:"identifier_column"`
	ReferenceColumn  string            `json:"reference_column"`
	ClientColumn     string            `json:"client_column"`
	AmountColumn     string            `json:"amount_column"`
	DateColumn       string            `json:"date_column"`
	DateFormat       string            `json:"date_format"`
	HasHeader        bool              `json:"has_header"`
	Delimiter        rune              `json:"delimiter"`
	ColumnAliases    map[string]string `json:"column_aliases,omitempty"`
	Description      string            `json:"description,omitempty"`
}

// Validate checks if the bank configuration is valid
func (bc *BankConfig) Validate() error {
	if strings.TrimSpace(bc.Name) == "" {
		return fmt.Errorf("bank name cannot be empty")
	}

	if strings.TrimSpace(bc.IdentifierColumn) == "" {
		return fmt.Errorf("identifier column cannot be empty")
	}

	if strings.TrimSpace(bc.AmountColumn) == "" {
		return fmt.Errorf("amount column cannot be empty")
	}

	if strings.TrimSpace(bc.DateColumn) == "" {
		return fmt.Errorf("date column cannot be empty")
	}

	return nil
}

// GetColumnName returns the actual column name, checking aliases first
func (bc *BankConfig) GetColumnName(standardName string) string {
	if alias, exists := bc.ColumnAliases[standardName]; exists {
		return alias
	}

	switch standardName {
	case "identifier":
		return bc.IdentifierColumn
	case "reference":
		return bc.ReferenceColumn
	case "client":
		return bc.ClientColumn
	case "amount":
		return bc.AmountColumn
	case "date":
		return bc.DateColumn
	default:
		return standardName
	}
}

// InvoiceParserConfig holds configuration for parsing invoice CSV files
type InvoiceParserConfig struct {
	IDColumn        string            `json:"id_column"`
	ReferenceColumn string            `json:"reference_column"`
	ClientColumn    string            `json:"client_column"`
	AmountColumn    string            `json:"amount_column"`
	DueDateColumn   string            `json:"due_date_column"`
	StatusColumn    string            `json:"status_column"`
	HasHeader       bool              `json:"has_header"`
	Delimiter       rune              `json:"delimiter"`
	ColumnAliases   map[string]string `json:"column_aliases,omitempty"`
}

// Validate checks if the invoice parser configuration is valid.
// The status column is optional: files without it default every
// invoice to open.
func (ipc *InvoiceParserConfig) Validate() error {
	if strings.TrimSpace(ipc.IDColumn) == "" {
		return fmt.Errorf("invoice ID column cannot be empty")
	}

	if strings.TrimSpace(ipc.ReferenceColumn) == "" {
		return fmt.Errorf("reference column cannot be empty")
	}

	if strings.TrimSpace(ipc.ClientColumn) == "" {
		return fmt.Errorf("client column cannot be empty")
	}

	if strings.TrimSpace(ipc.AmountColumn) == "" {
		return fmt.Errorf("amount column cannot be empty")
	}

	if strings.TrimSpace(ipc.DueDateColumn) == "" {
		return fmt.Errorf("due date column cannot be empty")
	}

	return nil
}

// GetColumnName returns the actual column name, checking aliases first
func (ipc *InvoiceParserConfig) GetColumnName(standardName string) string {
	if alias, exists := ipc.ColumnAliases[standardName]; exists {
		return alias
	}

	switch standardName {
	case "invoice_id":
		return ipc.IDColumn
	case "reference":
		return ipc.ReferenceColumn
	case "client_name":
		return ipc.ClientColumn
	case "amount":
		return ipc.AmountColumn
	case "due_date":
		return ipc.DueDateColumn
	case "status":
		return ipc.StatusColumn
	default:
		return standardName
	}
}

// DefaultInvoiceParserConfig returns a configuration with standard defaults
func DefaultInvoiceParserConfig() *InvoiceParserConfig {
	return &InvoiceParserConfig{
		IDColumn:        "invoice_id",
		ReferenceColumn: "reference",
		ClientColumn:    "client_name",
		AmountColumn:    "amount",
		DueDateColumn:   "due_date",
		StatusColumn:    "status",
		HasHeader:       true,
		Delimiter:       ',',
		ColumnAliases:   make(map[string]string),
	}
}

// Predefined bank configurations for common payment export formats
var (
	// StandardBankConfig represents a generic payment export format
	StandardBankConfig = &BankConfig{
		Name:             "Standard",
		IdentifierColumn: "payment_id",
		ReferenceColumn:  "reference",
		ClientColumn:     "client_name",
		AmountColumn:     "amount",
		DateColumn:       "reception_date",
		DateFormat:       "2006-01-02",
		HasHeader:        true,
		Delimiter:        ',',
		Description:      "Standard payment export format",
	}

	// SepaExportConfig represents a SEPA credit transfer export
	SepaExportConfig = &BankConfig{
		Name:             "SEPA",
		IdentifierColumn: "end_to_end_id",
		ReferenceColumn:  "remittance_info",
		ClientColumn:     "debtor_name",
		AmountColumn:     "instructed_amount",
		DateColumn:       "settlement_date",
		DateFormat:       "2006-01-02",
		HasHeader:        true,
		Delimiter:        ';',
		Description:      "SEPA credit transfer export with semicolon delimiter",
	}

	// LegacyExportConfig represents an older US-style export format
	LegacyExportConfig = &BankConfig{
		Name:             "Legacy",
		IdentifierColumn: "transaction_id",
		ReferenceColumn:  "memo",
		ClientColumn:     "payer",
		AmountColumn:     "transaction_amount",
		DateColumn:       "posting_date",
		DateFormat:       "01/02/2006",
		HasHeader:        true,
		Delimiter:        ',',
		Description:      "Legacy export format with MM/DD/YYYY dates",
	}
)

// GetBankConfig returns a predefined bank configuration by name
func GetBankConfig(name string) *BankConfig {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "standard":
		return StandardBankConfig
	case "sepa":
		return SepaExportConfig
	case "legacy":
		return LegacyExportConfig
	default:
		return nil
	}
}

// ListAvailableBankConfigs returns all available predefined bank configurations
func ListAvailableBankConfigs() []*BankConfig {
	return []*BankConfig{
		StandardBankConfig,
		SepaExportConfig,
		LegacyExportConfig,
	}
}

// AutoDetectBankConfig attempts to detect the export format from headers
func AutoDetectBankConfig(headers []string) *BankConfig {
	headerMap := make(map[string]bool)
	for _, header := range headers {
		headerMap[strings.ToLower(strings.TrimSpace(header))] = true
	}

	configs := ListAvailableBankConfigs()

	for _, config := range configs {
		score := 0
		totalFields := 3 // identifier, amount, date

		if headerMap[strings.ToLower(config.IdentifierColumn)] {
			score++
		}
		if headerMap[strings.ToLower(config.AmountColumn)] {
			score++
		}
		if headerMap[strings.ToLower(config.DateColumn)] {
			score++
		}

		// If all key fields match, this is likely the right config
		if score == totalFields {
			return config
		}
	}

	// Return standard config as fallback
	return StandardBankConfig
}

// StreamingConfig holds configuration for streaming operations
type StreamingConfig struct {
	BatchSize        int  `json:"batch_size"`
	MaxConcurrency   int  `json:"max_concurrency"`
	BufferSize       int  `json:"buffer_size"`
	ContinueOnError  bool `json:"continue_on_error"`
	MaxErrors        int  `json:"max_errors"`
	ReportProgress   bool `json:"report_progress"`
	ProgressInterval int  `json:"progress_interval"`
}

// DefaultStreamingConfig returns a configuration with sensible defaults for streaming
func DefaultStreamingConfig() *StreamingConfig {
	return &StreamingConfig{
		BatchSize:        1000,
		MaxConcurrency:   4,
		BufferSize:       8192,
		ContinueOnError:  true,
		MaxErrors:        100,
		ReportProgress:   false,
		ProgressInterval: 10000,
	}
}

// Validate checks if the streaming configuration is valid
func (sc *StreamingConfig) Validate() error {
	if sc.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", sc.BatchSize)
	}

	if sc.MaxConcurrency <= 0 {
		return fmt.Errorf("max concurrency must be positive, got %d", sc.MaxConcurrency)
	}

	if sc.BufferSize <= 0 {
		return fmt.Errorf("buffer size must be positive, got %d", sc.BufferSize)
	}

	if sc.MaxErrors < 0 {
		return fmt.Errorf("max errors cannot be negative, got %d", sc.MaxErrors)
	}

	if sc.ProgressInterval <= 0 {
		return fmt.Errorf("progress interval must be positive, got %d", sc.ProgressInterval)
	}

	return nil
}
