package matcher

import (
	"sort"
	"time"

	"github.com/PocKeTio/Reco/internal/models"

	"github.com/shopspring/decimal"
)

// InvoiceIndex provides efficient lookups over the loaded invoice
// snapshot. The combination search pools and the near-miss amount
// lookups read from it, as does the client bucketing of edge case
// detection. Scoring semantics never depend on the index; it only
// narrows the records considered.
type InvoiceIndex struct {
	// ExactAmountIndex maps exact amounts to invoice slices
	ExactAmountIndex map[string][]*models.Invoice

	// DueDateIndex maps date strings (YYYY-MM-DD) to invoice slices
	DueDateIndex map[string][]*models.Invoice

	// ClientIndex maps normalized client names to invoice slices
	ClientIndex map[string][]*models.Invoice

	// AmountRangeIndex provides sorted amounts for range-based lookups
	AmountRangeIndex []*InvoiceAmountEntry

	// AllInvoices holds all indexed invoices in load order
	AllInvoices []*models.Invoice
}

// InvoiceAmountEntry represents an entry in the sorted amount index
type InvoiceAmountEntry struct {
	Amount   decimal.Decimal
	Invoices []*models.Invoice
}

// PaymentIndex provides the same lookups over a payment snapshot, used
// by the 1:N combination search.
type PaymentIndex struct {
	// DateIndex maps reception date strings (YYYY-MM-DD) to payment slices
	DateIndex map[string][]*models.Payment

	// ClientIndex maps normalized client names to payment slices
	ClientIndex map[string][]*models.Payment

	// AllPayments holds all indexed payments in load order
	AllPayments []*models.Payment
}

// NewInvoiceIndex creates a new invoice index from a slice of invoices
func NewInvoiceIndex(invoices []*models.Invoice) *InvoiceIndex {
	index := &InvoiceIndex{
		ExactAmountIndex: make(map[string][]*models.Invoice),
		DueDateIndex:     make(map[string][]*models.Invoice),
		ClientIndex:      make(map[string][]*models.Invoice),
		AllInvoices:      invoices,
	}

	index.buildIndexes()
	return index
}

// NewPaymentIndex creates a new payment index from a slice of payments
func NewPaymentIndex(payments []*models.Payment) *PaymentIndex {
	index := &PaymentIndex{
		DateIndex:   make(map[string][]*models.Payment),
		ClientIndex: make(map[string][]*models.Payment),
		AllPayments: payments,
	}

	for _, p := range payments {
		dateKey := p.ReceptionDate.Format("2006-01-02")
		index.DateIndex[dateKey] = append(index.DateIndex[dateKey], p)

		clientKey := Normalize(p.ClientName)
		index.ClientIndex[clientKey] = append(index.ClientIndex[clientKey], p)
	}

	return index
}

// buildIndexes constructs all internal indexes for invoices
func (ii *InvoiceIndex) buildIndexes() {
	for _, inv := range ii.AllInvoices {
		amountKey := inv.Amount.String()
		dateKey := inv.DueDate.Format("2006-01-02")
		clientKey := Normalize(inv.ClientName)

		ii.ExactAmountIndex[amountKey] = append(ii.ExactAmountIndex[amountKey], inv)
		ii.DueDateIndex[dateKey] = append(ii.DueDateIndex[dateKey], inv)
		ii.ClientIndex[clientKey] = append(ii.ClientIndex[clientKey], inv)
	}

	ii.buildAmountRangeIndex()
}

// GetByExactAmount returns invoices with the exact amount
func (ii *InvoiceIndex) GetByExactAmount(amount decimal.Decimal) []*models.Invoice {
	return ii.ExactAmountIndex[amount.String()]
}

// GetByAmountRange returns invoices within the specified amount range (inclusive)
func (ii *InvoiceIndex) GetByAmountRange(minAmount, maxAmount decimal.Decimal) []*models.Invoice {
	var result []*models.Invoice

	startIdx := sort.Search(len(ii.AmountRangeIndex), func(i int) bool {
		return ii.AmountRangeIndex[i].Amount.GreaterThanOrEqual(minAmount)
	})

	for i := startIdx; i < len(ii.AmountRangeIndex); i++ {
		entry := ii.AmountRangeIndex[i]
		if entry.Amount.GreaterThan(maxAmount) {
			break
		}
		result = append(result, entry.Invoices...)
	}

	return result
}

// GetByClient returns invoices for the normalized form of the given client name
func (ii *InvoiceIndex) GetByClient(clientName string) []*models.Invoice {
	return ii.ClientIndex[Normalize(clientName)]
}

// GetByDueDateWindow returns invoices whose due date falls within the
// given number of days on either side of the anchor date, preserving
// load order.
func (ii *InvoiceIndex) GetByDueDateWindow(anchor time.Time, days int) []*models.Invoice {
	var result []*models.Invoice
	for _, inv := range ii.AllInvoices {
		if models.DayDifference(inv.DueDate, anchor) <= days {
			result = append(result, inv)
		}
	}
	return result
}

// GetByClient returns payments for the normalized form of the given client name
func (pi *PaymentIndex) GetByClient(clientName string) []*models.Payment {
	return pi.ClientIndex[Normalize(clientName)]
}

// GetByDateWindow returns payments received within the given number of
// days on either side of the anchor date, preserving load order.
func (pi *PaymentIndex) GetByDateWindow(anchor time.Time, days int) []*models.Payment {
	var result []*models.Payment
	for _, p := range pi.AllPayments {
		if models.DayDifference(p.ReceptionDate, anchor) <= days {
			result = append(result, p)
		}
	}
	return result
}

// buildAmountRangeIndex rebuilds only the sorted amount index
func (ii *InvoiceIndex) buildAmountRangeIndex() {
	amountMap := make(map[string]*InvoiceAmountEntry)

	for _, inv := range ii.AllInvoices {
		amountKey := inv.Amount.String()
		if entry, exists := amountMap[amountKey]; exists {
			entry.Invoices = append(entry.Invoices, inv)
		} else {
			amountMap[amountKey] = &InvoiceAmountEntry{
				Amount:   inv.Amount,
				Invoices: []*models.Invoice{inv},
			}
		}
	}

	ii.AmountRangeIndex = make([]*InvoiceAmountEntry, 0, len(amountMap))
	for _, entry := range amountMap {
		ii.AmountRangeIndex = append(ii.AmountRangeIndex, entry)
	}

	sort.Slice(ii.AmountRangeIndex, func(i, j int) bool {
		return ii.AmountRangeIndex[i].Amount.LessThan(ii.AmountRangeIndex[j].Amount)
	})
}

// IndexStats provides statistics about index contents
type IndexStats struct {
	TotalInvoices  int
	UniqueAmounts  int
	UniqueDueDates int
	UniqueClients  int
}

// GetIndexStats returns statistics about the invoice index
func (ii *InvoiceIndex) GetIndexStats() IndexStats {
	return IndexStats{
		TotalInvoices:  len(ii.AllInvoices),
		UniqueAmounts:  len(ii.AmountRangeIndex),
		UniqueDueDates: len(ii.DueDateIndex),
		UniqueClients:  len(ii.ClientIndex),
	}
}
