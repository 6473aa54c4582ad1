package matcher

import (
	"context"
	"testing"
	"time"

	"github.com/PocKeTio/Reco/internal/models"

	"github.com/shopspring/decimal"
)

func TestResolveComplexMatches_NTo1(t *testing.T) {
	engine := newTestEngine(t, nil)
	due := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	invoices := []*models.Invoice{
		testInvoice("INV001", "FAC-001", "ACME Corp", 100.00, due),
		testInvoice("INV002", "FAC-002", "ACME Corp", 198.00, due.AddDate(0, 0, 3)),
		testInvoice("INV003", "FAC-003", "Globex", 300.00, due),
	}
	// One payment covering INV001 + INV002 with a 2.00 gap, inside the
	// default tolerance of 5.00.
	payment := testPayment("PAY001", "REGLEMENT GROUPE", "ACME Corp", 300.00, due.AddDate(0, 0, 4))

	if err := engine.LoadInvoices(invoices); err != nil {
		t.Fatalf("LoadInvoices() error = %v", err)
	}

	result, err := engine.Match(context.Background(), []*models.Payment{payment})
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}

	if len(result.ComplexGroups) != 1 {
		t.Fatalf("Expected 1 complex group, got %d", len(result.ComplexGroups))
	}

	group := result.ComplexGroups[0]
	if group.Type != models.ComplexMatchNTo1 {
		t.Errorf("Expected N:1 group, got %s", group.Type)
	}
	if len(group.Invoices) != 2 {
		t.Fatalf("Expected 2 invoices in group, got %d", len(group.Invoices))
	}
	if group.Invoices[0].ID != "INV001" || group.Invoices[1].ID != "INV002" {
		t.Errorf("Unexpected group members: %s, %s", group.Invoices[0].ID, group.Invoices[1].ID)
	}
	if gap := group.AmountGap(); !gap.Equal(decimal.NewFromFloat(2.00)) {
		t.Errorf("Expected gap 2.00, got %s", gap)
	}
	if group.State != models.MatchStateProposed {
		t.Errorf("Complex group must start Proposed, got %s", group.State)
	}

	// Same-client invoices only: Globex stays out even though
	// 100 + 198 and 300 - 198 offer other sums.
	for _, inv := range group.Invoices {
		if inv.ClientName != "ACME Corp" {
			t.Errorf("Foreign-client invoice in group: %s", inv.ID)
		}
	}
}

func TestResolveComplexMatches_ToleranceIsHardLimit(t *testing.T) {
	engine := newTestEngine(t, nil)
	due := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	invoices := []*models.Invoice{
		testInvoice("INV001", "FAC-001", "ACME Corp", 100.00, due),
		testInvoice("INV002", "FAC-002", "ACME Corp", 190.00, due),
	}
	// 290 vs 300: gap of 10 exceeds the tolerance of 5.
	payment := testPayment("PAY001", "REGLEMENT", "ACME Corp", 300.00, due)

	if err := engine.LoadInvoices(invoices); err != nil {
		t.Fatalf("LoadInvoices() error = %v", err)
	}

	result, err := engine.Match(context.Background(), []*models.Payment{payment})
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}

	for _, g := range result.ComplexGroups {
		if g.Type == models.ComplexMatchNTo1 {
			t.Errorf("No N:1 group may exceed tolerance, got gap %s", g.AmountGap())
		}
	}
}

func TestResolveComplexMatches_PrefersFewestInvoices(t *testing.T) {
	engine := newTestEngine(t, nil)
	due := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	// Both {INV003, INV004} (2 members) and {INV001, INV002, INV003}
	// (3 members) sum to 300 exactly.
	invoices := []*models.Invoice{
		testInvoice("INV001", "FAC-001", "ACME Corp", 50.00, due),
		testInvoice("INV002", "FAC-002", "ACME Corp", 100.00, due),
		testInvoice("INV003", "FAC-003", "ACME Corp", 150.00, due),
		testInvoice("INV004", "FAC-004", "ACME Corp", 150.00, due),
	}
	payment := testPayment("PAY001", "REGLEMENT", "ACME Corp", 300.00, due)

	if err := engine.LoadInvoices(invoices); err != nil {
		t.Fatalf("LoadInvoices() error = %v", err)
	}

	result, err := engine.Match(context.Background(), []*models.Payment{payment})
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}

	var nTo1 *models.ComplexMatchGroup
	for _, g := range result.ComplexGroups {
		if g.Type == models.ComplexMatchNTo1 {
			nTo1 = g
			break
		}
	}
	if nTo1 == nil {
		t.Fatal("Expected an N:1 group")
	}
	if len(nTo1.Invoices) != 2 {
		t.Fatalf("Expected the 2-member combination to win, got %d members", len(nTo1.Invoices))
	}
	if nTo1.Invoices[0].ID != "INV003" || nTo1.Invoices[1].ID != "INV004" {
		t.Errorf("Expected first-found 2-member combination INV003+INV004, got %s+%s",
			nTo1.Invoices[0].ID, nTo1.Invoices[1].ID)
	}
}

func TestResolveComplexMatches_1ToN(t *testing.T) {
	engine := newTestEngine(t, nil)
	due := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	invoices := []*models.Invoice{
		testInvoice("INV001", "FAC-001", "ACME Corp", 1000.00, due),
	}
	// Two installments settling INV001 exactly.
	payments := []*models.Payment{
		testPayment("PAY001", "ACOMPTE FAC-001", "ACME Corp", 400.00, due.AddDate(0, 0, -10)),
		testPayment("PAY002", "SOLDE FAC-001", "ACME Corp", 600.00, due.AddDate(0, 0, 5)),
	}

	if err := engine.LoadInvoices(invoices); err != nil {
		t.Fatalf("LoadInvoices() error = %v", err)
	}

	result, err := engine.Match(context.Background(), payments)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}

	var oneToN *models.ComplexMatchGroup
	for _, g := range result.ComplexGroups {
		if g.Type == models.ComplexMatch1ToN {
			oneToN = g
			break
		}
	}
	if oneToN == nil {
		t.Fatal("Expected a 1:N group")
	}
	if len(oneToN.Payments) != 2 {
		t.Fatalf("Expected 2 payments in group, got %d", len(oneToN.Payments))
	}
	if !oneToN.PaymentTotal().Equal(decimal.NewFromFloat(1000.00)) {
		t.Errorf("Expected payment total 1000, got %s", oneToN.PaymentTotal())
	}
	if !oneToN.Score.Has(models.CriterionExactAmount) {
		t.Errorf("Exact sum must award exactAmount, details: %v", oneToN.Score.Details)
	}
}

func TestResolveComplexMatches_DisabledFlags(t *testing.T) {
	config := DefaultConfig()
	config.Complex.EnableNTo1 = false
	config.Complex.Enable1ToN = false
	engine := newTestEngine(t, config)

	due := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	invoices := []*models.Invoice{
		testInvoice("INV001", "FAC-001", "ACME Corp", 100.00, due),
		testInvoice("INV002", "FAC-002", "ACME Corp", 200.00, due),
	}
	payment := testPayment("PAY001", "REGLEMENT", "ACME Corp", 300.00, due)

	if err := engine.LoadInvoices(invoices); err != nil {
		t.Fatalf("LoadInvoices() error = %v", err)
	}

	groups, err := engine.ResolveComplexMatches(context.Background(), []*models.Payment{payment}, nil)
	if err != nil {
		t.Fatalf("ResolveComplexMatches() error = %v", err)
	}
	if len(groups) != 0 {
		t.Errorf("Expected no complex groups with both flags disabled, got %d", len(groups))
	}
}

func TestResolveComplexMatches_DateWindowExcludes(t *testing.T) {
	engine := newTestEngine(t, nil)
	due := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	invoices := []*models.Invoice{
		testInvoice("INV001", "FAC-001", "ACME Corp", 100.00, due),
		// Far outside the 60 day window.
		testInvoice("INV002", "FAC-002", "ACME Corp", 200.00, due.AddDate(0, -8, 0)),
	}
	payment := testPayment("PAY001", "REGLEMENT", "ACME Corp", 300.00, due)

	if err := engine.LoadInvoices(invoices); err != nil {
		t.Fatalf("LoadInvoices() error = %v", err)
	}

	result, err := engine.Match(context.Background(), []*models.Payment{payment})
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}

	for _, g := range result.ComplexGroups {
		if g.Type == models.ComplexMatchNTo1 {
			t.Errorf("Out-of-window invoice must not form a group: %v", g.Invoices)
		}
	}
}

func TestResolveComplexMatches_SkipsStrongOneToOne(t *testing.T) {
	engine := newTestEngine(t, nil)
	due := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	// PAY001 has a perfect 1:1 on INV003; no N:1 search should run for
	// it even though INV001 + INV002 also sum to its amount.
	invoices := []*models.Invoice{
		testInvoice("INV001", "FAC-001", "ACME Corp", 100.00, due),
		testInvoice("INV002", "FAC-002", "ACME Corp", 200.00, due),
		testInvoice("INV003", "FAC-003", "ACME Corp", 300.00, due),
	}
	payment := testPayment("PAY001", "VIR FAC-003", "ACME Corp", 300.00, due)

	if err := engine.LoadInvoices(invoices); err != nil {
		t.Fatalf("LoadInvoices() error = %v", err)
	}

	result, err := engine.Match(context.Background(), []*models.Payment{payment})
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}

	for _, g := range result.ComplexGroups {
		for _, p := range g.Payments {
			if p.ID == "PAY001" {
				t.Error("Payment with an auto-confidence 1:1 must skip the N:1 search")
			}
		}
	}
}
