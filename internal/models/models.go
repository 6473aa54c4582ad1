package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the settlement status of an invoice
type InvoiceStatus string

const (
	// InvoiceStatusOpen represents an invoice awaiting payment
	InvoiceStatusOpen InvoiceStatus = "OPEN"
	// InvoiceStatusPaid represents a settled invoice
	InvoiceStatusPaid InvoiceStatus = "PAID"
)

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsValid checks if the invoice status is valid
func (s InvoiceStatus) IsValid() bool {
	return s == InvoiceStatusOpen || s == InvoiceStatusPaid
}

// Invoice represents a receivable awaiting reconciliation
type Invoice struct {
	ID         string          `json:"id" csv:"id"`
	Reference  string          `json:"reference" csv:"reference"`
	ClientName string          `json:"clientName" csv:"clientName"`
	Amount     decimal.Decimal `json:"amount" csv:"amount"`
	DueDate    time.Time       `json:"dueDate" csv:"dueDate"`
	Status     InvoiceStatus   `json:"status" csv:"status"`
}

// NewInvoice creates a new Invoice instance
func NewInvoice(id, reference, clientName string, amount decimal.Decimal, dueDate time.Time) *Invoice {
	return &Invoice{
		ID:         id,
		Reference:  reference,
		ClientName: clientName,
		Amount:     amount,
		DueDate:    dueDate,
		Status:     InvoiceStatusOpen,
	}
}

// Validate performs basic validation on the Invoice
func (inv *Invoice) Validate() error {
	if strings.TrimSpace(inv.ID) == "" {
		return fmt.Errorf("invoice ID cannot be empty")
	}

	if strings.TrimSpace(inv.Reference) == "" {
		return fmt.Errorf("invoice reference cannot be empty")
	}

	if inv.Amount.IsZero() {
		return fmt.Errorf("invoice amount cannot be zero")
	}

	if inv.DueDate.IsZero() {
		return fmt.Errorf("invoice due date cannot be zero")
	}

	if inv.Status != "" && !inv.Status.IsValid() {
		return fmt.Errorf("invalid invoice status: %s", inv.Status)
	}

	return nil
}

// String returns a string representation of the Invoice
func (inv *Invoice) String() string {
	return fmt.Sprintf("Invoice{ID: %s, Ref: %s, Client: %s, Amount: %s, Due: %s}",
		inv.ID, inv.Reference, inv.ClientName, inv.Amount.String(), inv.DueDate.Format("2006-01-02"))
}

// MarshalJSON implements custom JSON marshaling for Invoice
func (inv *Invoice) MarshalJSON() ([]byte, error) {
	type Alias Invoice
	return json.Marshal(&struct {
		Amount  string `json:"amount"`
		DueDate string `json:"dueDate"`
		*Alias
	}{
		Amount:  inv.Amount.String(),
		DueDate: inv.DueDate.Format("2006-01-02"),
		Alias:   (*Alias)(inv),
	})
}

// UnmarshalJSON implements custom JSON unmarshaling for Invoice
func (inv *Invoice) UnmarshalJSON(data []byte) error {
	type Alias Invoice
	aux := &struct {
		Amount  string `json:"amount"`
		DueDate string `json:"dueDate"`
		*Alias
	}{
		Alias: (*Alias)(inv),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	inv.Amount, err = decimal.NewFromString(aux.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount format: %w", err)
	}

	inv.DueDate, err = ParseTimeWithFormats(aux.DueDate)
	if err != nil {
		return fmt.Errorf("invalid due date format: %w", err)
	}

	return nil
}

// Equals compares two Invoice instances for equality
func (inv *Invoice) Equals(other *Invoice) bool {
	if other == nil {
		return false
	}

	return inv.ID == other.ID &&
		inv.Reference == other.Reference &&
		inv.ClientName == other.ClientName &&
		inv.Amount.Equal(other.Amount) &&
		inv.DueDate.Format("2006-01-02") == other.DueDate.Format("2006-01-02")
}

// ReferenceNumber returns the first run of digits in the invoice
// reference, or "" when the reference carries no digits.
func (inv *Invoice) ReferenceNumber() string {
	start := -1
	for i, r := range inv.Reference {
		if r >= '0' && r <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			return inv.Reference[start:i]
		}
	}
	if start >= 0 {
		return inv.Reference[start:]
	}
	return ""
}

// Payment represents an incoming payment to be matched against invoices
type Payment struct {
	ID            string          `json:"id" csv:"id"`
	Reference     string          `json:"reference" csv:"reference"`
	ClientName    string          `json:"clientName" csv:"clientName"`
	Amount        decimal.Decimal `json:"amount" csv:"amount"`
	ReceptionDate time.Time       `json:"receptionDate" csv:"receptionDate"`
}

// NewPayment creates a new Payment instance
func NewPayment(id, reference, clientName string, amount decimal.Decimal, receptionDate time.Time) *Payment {
	return &Payment{
		ID:            id,
		Reference:     reference,
		ClientName:    clientName,
		Amount:        amount,
		ReceptionDate: receptionDate,
	}
}

// Validate performs basic validation on the Payment
func (p *Payment) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("payment ID cannot be empty")
	}

	if p.Amount.IsZero() {
		return fmt.Errorf("payment amount cannot be zero")
	}

	if p.ReceptionDate.IsZero() {
		return fmt.Errorf("payment reception date cannot be zero")
	}

	return nil
}

// String returns a string representation of the Payment
func (p *Payment) String() string {
	return fmt.Sprintf("Payment{ID: %s, Ref: %s, Client: %s, Amount: %s, Received: %s}",
		p.ID, p.Reference, p.ClientName, p.Amount.String(), p.ReceptionDate.Format("2006-01-02"))
}

// MarshalJSON implements custom JSON marshaling for Payment
func (p *Payment) MarshalJSON() ([]byte, error) {
	type Alias Payment
	return json.Marshal(&struct {
		Amount        string `json:"amount"`
		ReceptionDate string `json:"receptionDate"`
		*Alias
	}{
		Amount:        p.Amount.String(),
		ReceptionDate: p.ReceptionDate.Format("2006-01-02"),
		Alias:         (*Alias)(p),
	})
}

// UnmarshalJSON implements custom JSON unmarshaling for Payment
func (p *Payment) UnmarshalJSON(data []byte) error {
	type Alias Payment
	aux := &struct {
		Amount        string `json:"amount"`
		ReceptionDate string `json:"receptionDate"`
		*Alias
	}{
		Alias: (*Alias)(p),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	p.Amount, err = decimal.NewFromString(aux.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount format: %w", err)
	}

	p.ReceptionDate, err = ParseTimeWithFormats(aux.ReceptionDate)
	if err != nil {
		return fmt.Errorf("invalid reception date format: %w", err)
	}

	return nil
}

// Equals compares two Payment instances for equality
func (p *Payment) Equals(other *Payment) bool {
	if other == nil {
		return false
	}

	return p.ID == other.ID &&
		p.Reference == other.Reference &&
		p.ClientName == other.ClientName &&
		p.Amount.Equal(other.Amount) &&
		p.ReceptionDate.Format("2006-01-02") == other.ReceptionDate.Format("2006-01-02")
}

// Utility functions for type conversion and validation

// ParseDecimalFromString parses a decimal value from string with validation
func ParseDecimalFromString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	// Remove common currency symbols and thousand separators
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}

	return d, nil
}

// ParseInvoiceStatus parses and validates an invoice status from string.
// An empty value defaults to OPEN.
func ParseInvoiceStatus(s string) (InvoiceStatus, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	switch s {
	case "", "OPEN", "O":
		return InvoiceStatusOpen, nil
	case "PAID", "P":
		return InvoiceStatusPaid, nil
	default:
		return "", fmt.Errorf("invalid invoice status '%s': must be OPEN or PAID", s)
	}
}

// ParseTimeWithFormats attempts to parse time from string using multiple common formats
func ParseTimeWithFormats(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("time string cannot be empty")
	}

	// Common time formats used in CSV files
	formats := []string{
		time.RFC3339,          // "2006-01-02T15:04:05Z07:00"
		"2006-01-02 15:04:05", // "2006-01-02 15:04:05"
		"2006-01-02T15:04:05", // "2006-01-02T15:04:05"
		"2006-01-02",          // "2006-01-02"
		"01/02/2006 15:04:05", // "01/02/2006 15:04:05"
		"01/02/2006",          // "01/02/2006"
		"02-01-2006",          // "02-01-2006"
		"2006/01/02",          // "2006/01/02"
		"Jan 2, 2006",         // "Jan 2, 2006"
		"January 2, 2006",     // "January 2, 2006"
	}

	var lastErr error
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse time '%s': %w", s, lastErr)
}

// CompareAmountsWithTolerance compares two decimal amounts with a tolerance
func CompareAmountsWithTolerance(a, b, tolerance decimal.Decimal) bool {
	diff := a.Sub(b).Abs()
	return diff.LessThanOrEqual(tolerance)
}

// DayDifference returns the absolute difference between two timestamps in
// whole days, rounding any partial day up.
func DayDifference(a, b time.Time) int {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}

	days := int(diff / (24 * time.Hour))
	if diff%(24*time.Hour) != 0 {
		days++
	}
	return days
}

// CreateInvoiceFromCSV creates an Invoice from CSV field values
func CreateInvoiceFromCSV(id, reference, clientName, amountStr, dueDateStr, statusStr string) (*Invoice, error) {
	amount, err := ParseDecimalFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("invalid amount in CSV: %w", err)
	}

	dueDate, err := ParseTimeWithFormats(dueDateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid due date in CSV: %w", err)
	}

	status, err := ParseInvoiceStatus(statusStr)
	if err != nil {
		return nil, fmt.Errorf("invalid status in CSV: %w", err)
	}

	invoice := NewInvoice(strings.TrimSpace(id), strings.TrimSpace(reference),
		strings.TrimSpace(clientName), amount, dueDate)
	invoice.Status = status

	if err := invoice.Validate(); err != nil {
		return nil, fmt.Errorf("invalid invoice data: %w", err)
	}

	return invoice, nil
}

// CreatePaymentFromCSV creates a Payment from CSV field values
func CreatePaymentFromCSV(id, reference, clientName, amountStr, receptionDateStr string) (*Payment, error) {
	amount, err := ParseDecimalFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("invalid amount in CSV: %w", err)
	}

	receptionDate, err := ParseTimeWithFormats(receptionDateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid reception date in CSV: %w", err)
	}

	payment := NewPayment(strings.TrimSpace(id), strings.TrimSpace(reference),
		strings.TrimSpace(clientName), amount, receptionDate)

	if err := payment.Validate(); err != nil {
		return nil, fmt.Errorf("invalid payment data: %w", err)
	}

	return payment, nil
}
