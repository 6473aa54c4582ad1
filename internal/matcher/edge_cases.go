package matcher

import (
	"fmt"

	"github.com/PocKeTio/Reco/internal/models"
)

// EdgeCaseHandler detects data conditions that make matching results
// unreliable: duplicate payments and groups of indistinguishable
// equal-amount invoices. These findings are surfaced as warnings
// alongside the matching result, never silently resolved.
type EdgeCaseHandler struct {
	Config *Config
}

// NewEdgeCaseHandler creates a new edge case handler
func NewEdgeCaseHandler(config *Config) *EdgeCaseHandler {
	return &EdgeCaseHandler{
		Config: config,
	}
}

// DuplicateGroup represents a group of potentially duplicate payments
type DuplicateGroup struct {
	Payments []*models.Payment
	GroupID  string
	Reason   string
}

// AmbiguousAmountGroup represents invoices a scorer cannot tell apart
// on amount alone: same client, same amount, due dates close together.
type AmbiguousAmountGroup struct {
	Invoices []*models.Invoice
	Reason   string
}

// DetectDuplicatePayments identifies payments that look like accidental
// double submissions: same client, same amount, received within the
// close-date window of each other. Comparisons stay inside each
// normalized-client bucket of the payment index.
func (ech *EdgeCaseHandler) DetectDuplicatePayments(payments []*models.Payment) []DuplicateGroup {
	var groups []DuplicateGroup
	index := NewPaymentIndex(payments)
	processed := make(map[string]bool)

	for _, p1 := range payments {
		if processed[p1.ID] {
			continue
		}

		duplicates := []*models.Payment{p1}

		// Bucket entries keep input order, so only look at payments
		// after p1 itself.
		past := false
		for _, p2 := range index.GetByClient(p1.ClientName) {
			if p2.ID == p1.ID {
				past = true
				continue
			}
			if !past || processed[p2.ID] {
				continue
			}

			if ech.isPotentialDuplicate(p1, p2) {
				duplicates = append(duplicates, p2)
				processed[p2.ID] = true
			}
		}

		if len(duplicates) > 1 {
			groups = append(groups, DuplicateGroup{
				Payments: duplicates,
				GroupID:  fmt.Sprintf("DUP_%s", p1.ID),
				Reason: fmt.Sprintf("Found %d payments of %s from %q within %d days",
					len(duplicates), p1.Amount.String(), p1.ClientName, closeDateDays),
			})
		}

		processed[p1.ID] = true
	}

	return groups
}

// DetectAmbiguousInvoices finds same-client invoices with identical
// amounts and nearby due dates. A payment matching one of them matches
// all of them equally, so such groups need manual attention.
func (ech *EdgeCaseHandler) DetectAmbiguousInvoices(invoices []*models.Invoice) []AmbiguousAmountGroup {
	index := NewInvoiceIndex(invoices)
	processed := make(map[string]bool)

	var groups []AmbiguousAmountGroup
	for _, inv := range invoices {
		if processed[inv.ID] {
			continue
		}

		var bucket []*models.Invoice
		for _, other := range index.GetByClient(inv.ClientName) {
			if other.Amount.Equal(inv.Amount) {
				bucket = append(bucket, other)
			}
		}
		for _, b := range bucket {
			processed[b.ID] = true
		}
		if len(bucket) < 2 {
			continue
		}

		ambiguous := ech.clusterByDueDate(bucket)
		if len(ambiguous) < 2 {
			continue
		}

		groups = append(groups, AmbiguousAmountGroup{
			Invoices: ambiguous,
			Reason: fmt.Sprintf("%d invoices of %s for the same client with due dates within %d days",
				len(ambiguous), bucket[0].Amount.String(), relativelyCloseDateDays),
		})
	}

	return groups
}

// isPotentialDuplicate checks if two payments are potentially duplicates
func (ech *EdgeCaseHandler) isPotentialDuplicate(p1, p2 *models.Payment) bool {
	if !p1.Amount.Equal(p2.Amount) {
		return false
	}

	if Normalize(p1.ClientName) != Normalize(p2.ClientName) {
		return false
	}

	return models.DayDifference(p1.ReceptionDate, p2.ReceptionDate) <= closeDateDays
}

// clusterByDueDate returns the subset of the bucket whose due dates all
// fall within the relatively-close window of the earliest invoice.
func (ech *EdgeCaseHandler) clusterByDueDate(bucket []*models.Invoice) []*models.Invoice {
	earliest := bucket[0]
	for _, inv := range bucket[1:] {
		if inv.DueDate.Before(earliest.DueDate) {
			earliest = inv
		}
	}

	var cluster []*models.Invoice
	for _, inv := range bucket {
		if models.DayDifference(inv.DueDate, earliest.DueDate) <= relativelyCloseDateDays {
			cluster = append(cluster, inv)
		}
	}
	return cluster
}
