package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestInvoiceStatus_IsValid(t *testing.T) {
	tests := []struct {
		status InvoiceStatus
		valid  bool
	}{
		{InvoiceStatusOpen, true},
		{InvoiceStatusPaid, true},
		{"INVALID", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsValid(); got != tt.valid {
				t.Errorf("InvoiceStatus.IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestNewInvoice(t *testing.T) {
	amount := decimal.NewFromFloat(1500.00)
	due := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	inv := NewInvoice("INV001", "FAC-2024-001", "ACME Corp", amount, due)

	if inv.ID != "INV001" {
		t.Errorf("Expected ID 'INV001', got %s", inv.ID)
	}
	if inv.Reference != "FAC-2024-001" {
		t.Errorf("Expected reference 'FAC-2024-001', got %s", inv.Reference)
	}
	if !inv.Amount.Equal(amount) {
		t.Errorf("Expected amount %s, got %s", amount.String(), inv.Amount.String())
	}
	if inv.Status != InvoiceStatusOpen {
		t.Errorf("Expected status OPEN, got %s", inv.Status)
	}
}

func TestInvoice_Validate(t *testing.T) {
	validAmount := decimal.NewFromFloat(1500.00)
	validDate := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		invoice   Invoice
		wantError bool
	}{
		{
			name: "Valid invoice",
			invoice: Invoice{
				ID:         "INV001",
				Reference:  "FAC-2024-001",
				ClientName: "ACME Corp",
				Amount:     validAmount,
				DueDate:    validDate,
			},
			wantError: false,
		},
		{
			name: "Empty ID",
			invoice: Invoice{
				Reference: "FAC-2024-001",
				Amount:    validAmount,
				DueDate:   validDate,
			},
			wantError: true,
		},
		{
			name: "Empty reference",
			invoice: Invoice{
				ID:      "INV001",
				Amount:  validAmount,
				DueDate: validDate,
			},
			wantError: true,
		},
		{
			name: "Zero amount",
			invoice: Invoice{
				ID:        "INV001",
				Reference: "FAC-2024-001",
				Amount:    decimal.Zero,
				DueDate:   validDate,
			},
			wantError: true,
		},
		{
			name: "Zero due date",
			invoice: Invoice{
				ID:        "INV001",
				Reference: "FAC-2024-001",
				Amount:    validAmount,
			},
			wantError: true,
		},
		{
			name: "Invalid status",
			invoice: Invoice{
				ID:        "INV001",
				Reference: "FAC-2024-001",
				Amount:    validAmount,
				DueDate:   validDate,
				Status:    "PENDING",
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.invoice.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Invoice.Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestInvoice_ReferenceNumber(t *testing.T) {
	tests := []struct {
		reference string
		expected  string
	}{
		{"FAC-2024-001", "2024"},
		{"INV12345", "12345"},
		{"12345", "12345"},
		{"NO-DIGITS-HERE", ""},
		{"", ""},
		{"A1B2", "1"},
	}

	for _, tt := range tests {
		t.Run(tt.reference, func(t *testing.T) {
			inv := Invoice{Reference: tt.reference}
			if got := inv.ReferenceNumber(); got != tt.expected {
				t.Errorf("ReferenceNumber() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestPayment_Validate(t *testing.T) {
	validAmount := decimal.NewFromFloat(1500.00)
	validDate := time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		payment   Payment
		wantError bool
	}{
		{
			name: "Valid payment",
			payment: Payment{
				ID:            "PAY001",
				Reference:     "VIR FAC-2024-001",
				ClientName:    "ACME Corp",
				Amount:        validAmount,
				ReceptionDate: validDate,
			},
			wantError: false,
		},
		{
			name: "Empty reference is allowed",
			payment: Payment{
				ID:            "PAY001",
				Amount:        validAmount,
				ReceptionDate: validDate,
			},
			wantError: false,
		},
		{
			name: "Empty ID",
			payment: Payment{
				Amount:        validAmount,
				ReceptionDate: validDate,
			},
			wantError: true,
		},
		{
			name: "Zero amount",
			payment: Payment{
				ID:            "PAY001",
				Amount:        decimal.Zero,
				ReceptionDate: validDate,
			},
			wantError: true,
		},
		{
			name: "Zero reception date",
			payment: Payment{
				ID:     "PAY001",
				Amount: validAmount,
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payment.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Payment.Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestInvoice_JSONMarshaling(t *testing.T) {
	original := &Invoice{
		ID:         "INV001",
		Reference:  "FAC-2024-001",
		ClientName: "ACME Corp",
		Amount:     decimal.NewFromFloat(1500.00),
		DueDate:    time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Status:     InvoiceStatusOpen,
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Failed to marshal invoice: %v", err)
	}

	var decoded Invoice
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal invoice: %v", err)
	}

	if !original.Equals(&decoded) {
		t.Errorf("Round-trip mismatch: original %s, decoded %s", original, &decoded)
	}
}

func TestPayment_JSONMarshaling(t *testing.T) {
	original := &Payment{
		ID:            "PAY001",
		Reference:     "VIR FAC-2024-001",
		ClientName:    "ACME Corp",
		Amount:        decimal.NewFromFloat(1500.00),
		ReceptionDate: time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Failed to marshal payment: %v", err)
	}

	var decoded Payment
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal payment: %v", err)
	}

	if !original.Equals(&decoded) {
		t.Errorf("Round-trip mismatch: original %s, decoded %s", original, &decoded)
	}
}

func TestParseDecimalFromString(t *testing.T) {
	tests := []struct {
		input     string
		expected  string
		wantError bool
	}{
		{"1500.00", "1500", false},
		{"$1,500.00", "1500", false},
		{"  42.50  ", "42.5", false},
		{"-100", "-100", false},
		{"", "", true},
		{"abc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDecimalFromString(tt.input)
			if (err != nil) != tt.wantError {
				t.Fatalf("ParseDecimalFromString(%q) error = %v, wantError %v", tt.input, err, tt.wantError)
			}
			if !tt.wantError && got.String() != tt.expected {
				t.Errorf("ParseDecimalFromString(%q) = %s, want %s", tt.input, got.String(), tt.expected)
			}
		})
	}
}

func TestParseInvoiceStatus(t *testing.T) {
	tests := []struct {
		input     string
		expected  InvoiceStatus
		wantError bool
	}{
		{"OPEN", InvoiceStatusOpen, false},
		{"open", InvoiceStatusOpen, false},
		{"", InvoiceStatusOpen, false},
		{"PAID", InvoiceStatusPaid, false},
		{"p", InvoiceStatusPaid, false},
		{"PENDING", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseInvoiceStatus(tt.input)
			if (err != nil) != tt.wantError {
				t.Fatalf("ParseInvoiceStatus(%q) error = %v, wantError %v", tt.input, err, tt.wantError)
			}
			if got != tt.expected {
				t.Errorf("ParseInvoiceStatus(%q) = %s, want %s", tt.input, got, tt.expected)
			}
		})
	}
}

func TestDayDifference(t *testing.T) {
	base := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		a, b     time.Time
		expected int
	}{
		{"Same instant", base, base, 0},
		{"Exactly three days", base, base.AddDate(0, 0, 3), 3},
		{"Partial day rounds up", base, base.Add(25 * time.Hour), 2},
		{"Order independent", base.AddDate(0, 0, 7), base, 7},
		{"One hour", base, base.Add(time.Hour), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DayDifference(tt.a, tt.b); got != tt.expected {
				t.Errorf("DayDifference() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestCreateInvoiceFromCSV(t *testing.T) {
	inv, err := CreateInvoiceFromCSV("INV001", "FAC-2024-001", "ACME Corp", "1500.00", "2024-03-15", "")
	if err != nil {
		t.Fatalf("CreateInvoiceFromCSV() error = %v", err)
	}

	if inv.ID != "INV001" || inv.Reference != "FAC-2024-001" {
		t.Errorf("Unexpected invoice: %s", inv)
	}
	if inv.Status != InvoiceStatusOpen {
		t.Errorf("Expected default status OPEN, got %s", inv.Status)
	}

	if _, err := CreateInvoiceFromCSV("INV002", "FAC-2024-002", "ACME Corp", "not-a-number", "2024-03-15", ""); err == nil {
		t.Error("Expected error for invalid amount")
	}

	if _, err := CreateInvoiceFromCSV("INV003", "FAC-2024-003", "ACME Corp", "100.00", "not-a-date", ""); err == nil {
		t.Error("Expected error for invalid date")
	}
}

func TestCreatePaymentFromCSV(t *testing.T) {
	p, err := CreatePaymentFromCSV("PAY001", "VIR FAC-2024-001", "ACME Corp", "1500.00", "2024-03-18")
	if err != nil {
		t.Fatalf("CreatePaymentFromCSV() error = %v", err)
	}

	if p.ID != "PAY001" || !p.Amount.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("Unexpected payment: %s", p)
	}

	if _, err := CreatePaymentFromCSV("", "ref", "client", "100.00", "2024-03-18"); err == nil {
		t.Error("Expected error for empty payment ID")
	}
}
