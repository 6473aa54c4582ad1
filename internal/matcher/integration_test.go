package matcher

import (
	"context"
	"testing"
	"time"

	"github.com/PocKeTio/Reco/internal/models"

	"github.com/shopspring/decimal"
)

// createPipelineDataset builds a dataset that exercises every stage of
// the pipeline: an automatic match, a suggested match, a two-invoice
// settlement, an unmatched payment and a settled invoice that must be
// ignored entirely.
func createPipelineDataset() ([]*models.Invoice, []*models.Payment) {
	base := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	invoices := []*models.Invoice{
		testInvoice("INV001", "FAC-2024-001", "Acme Corp", 1500.00, base),
		testInvoice("INV002", "FAC-2024-002", "Globex SA", 820.50, base.AddDate(0, 0, 5)),
		testInvoice("INV003", "FAC-2024-003", "Initech", 400.00, base.AddDate(0, 0, -5)),
		testInvoice("INV004", "FAC-2024-004", "Initech", 350.00, base.AddDate(0, 0, -3)),
		testInvoice("INV005", "FAC-2024-005", "Umbrella", 999.99, base.AddDate(0, 0, 10)),
	}

	settled := testInvoice("INV006", "FAC-2024-006", "Acme Corp", 1500.00, base)
	settled.Status = models.InvoiceStatusPaid
	invoices = append(invoices, settled)

	payments := []*models.Payment{
		// Exact amount, exact reference, same client, next day: automatic
		testPayment("PAY001", "VIR FAC-2024-001", "Acme Corp", 1500.00, base.AddDate(0, 0, 1)),
		// Exact amount, partial reference, same client, 8 days late: suggested
		testPayment("PAY002", "VIREMENT FAC2024002", "Globex SA", 820.50, base.AddDate(0, 0, 13)),
		// Settles INV003 and INV004 together, short by 2.00 in fees
		testPayment("PAY003", "VIR INITECH MARS", "Initech", 748.00, base.AddDate(0, 0, -1)),
		// Unknown counterparty, no plausible invoice
		testPayment("PAY004", "CHQ 9981", "Wayne Enterprises", 123.45, base.AddDate(0, 0, -14)),
	}

	return invoices, payments
}

func TestMatch_FullPipeline(t *testing.T) {
	invoices, payments := createPipelineDataset()

	engine := newTestEngine(t, nil)
	if err := engine.LoadInvoices(invoices); err != nil {
		t.Fatalf("LoadInvoices() error = %v", err)
	}

	result, err := engine.Match(context.Background(), payments)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}

	// Settled invoices never enter the run
	if result.Summary.TotalInvoices != 5 {
		t.Errorf("TotalInvoices = %d, expected 5", result.Summary.TotalInvoices)
	}
	if result.Summary.TotalPayments != 4 {
		t.Errorf("TotalPayments = %d, expected 4", result.Summary.TotalPayments)
	}

	groups := make(map[string]*models.MatchGroup)
	for _, g := range result.Groups {
		groups[g.Payment.ID] = g
	}

	auto, ok := groups["PAY001"]
	if !ok {
		t.Fatal("expected a match group for PAY001")
	}
	best := auto.Best()
	if best == nil || best.Invoice.ID != "INV001" {
		t.Fatalf("PAY001 best candidate = %+v, expected INV001", best)
	}
	if best.Confidence != models.ConfidenceAuto {
		t.Errorf("PAY001 confidence = %s, expected auto (score %d)", best.Confidence, best.Score.Total)
	}

	suggested, ok := groups["PAY002"]
	if !ok {
		t.Fatal("expected a match group for PAY002")
	}
	best = suggested.Best()
	if best == nil || best.Invoice.ID != "INV002" {
		t.Fatalf("PAY002 best candidate = %+v, expected INV002", best)
	}
	if best.Confidence != models.ConfidenceSuggested {
		t.Errorf("PAY002 confidence = %s, expected suggested (score %d)", best.Confidence, best.Score.Total)
	}
	if !best.Score.Has(models.CriterionPartialReference) {
		t.Error("PAY002 should match INV002 on partial reference")
	}

	if len(result.ComplexGroups) != 1 {
		t.Fatalf("ComplexGroups = %d, expected 1", len(result.ComplexGroups))
	}
	combo := result.ComplexGroups[0]
	if combo.Type != models.ComplexMatchNTo1 {
		t.Errorf("combination type = %s, expected N:1", combo.Type)
	}
	if len(combo.Payments) != 1 || combo.Payments[0].ID != "PAY003" {
		t.Errorf("combination payment = %+v, expected PAY003", combo.Payments)
	}
	if len(combo.Invoices) != 2 {
		t.Fatalf("combination invoices = %d, expected 2", len(combo.Invoices))
	}
	comboIDs := map[string]bool{combo.Invoices[0].ID: true, combo.Invoices[1].ID: true}
	if !comboIDs["INV003"] || !comboIDs["INV004"] {
		t.Errorf("combination invoices = %v, expected INV003 and INV004", comboIDs)
	}
	if !combo.AmountGap().Equal(decimal.NewFromFloat(2.00)) {
		t.Errorf("combination amount gap = %s, expected 2", combo.AmountGap())
	}

	if len(result.UnmatchedPayments) != 1 || result.UnmatchedPayments[0].ID != "PAY004" {
		t.Errorf("unmatched payments = %+v, expected only PAY004", result.UnmatchedPayments)
	}

	summary := result.Summary
	if summary.AutoGroups != 1 || summary.SuggestedGroups != 1 || summary.ComplexGroups != 1 || summary.UnmatchedPayments != 1 {
		t.Errorf("summary counts = auto:%d suggested:%d complex:%d unmatched:%d, expected 1 of each",
			summary.AutoGroups, summary.SuggestedGroups, summary.ComplexGroups, summary.UnmatchedPayments)
	}
	if !summary.TotalAmountMatched.Equal(decimal.NewFromFloat(2320.50)) {
		t.Errorf("TotalAmountMatched = %s, expected 2320.50", summary.TotalAmountMatched)
	}
	if !summary.TotalAmountUnmatched.Equal(decimal.NewFromFloat(123.45)) {
		t.Errorf("TotalAmountUnmatched = %s, expected 123.45", summary.TotalAmountUnmatched)
	}
}

func TestMatch_ConfigurationsStayConsistent(t *testing.T) {
	invoices, payments := createPipelineDataset()

	configs := map[string]*Config{
		"strict":  StrictConfig(),
		"default": DefaultConfig(),
		"relaxed": RelaxedConfig(),
	}

	for name, config := range configs {
		t.Run(name, func(t *testing.T) {
			engine := newTestEngine(t, config)
			if err := engine.LoadInvoices(invoices); err != nil {
				t.Fatalf("LoadInvoices() error = %v", err)
			}

			result, err := engine.Match(context.Background(), payments)
			if err != nil {
				t.Fatalf("Match() error = %v", err)
			}

			// Every payment is accounted for exactly once
			accounted := len(result.UnmatchedPayments)
			seen := make(map[string]bool)
			for _, g := range result.Groups {
				if seen[g.Payment.ID] {
					t.Errorf("payment %s appears in more than one group", g.Payment.ID)
				}
				seen[g.Payment.ID] = true
				accounted++
			}
			for _, cg := range result.ComplexGroups {
				for _, p := range cg.Payments {
					if seen[p.ID] {
						continue
					}
					seen[p.ID] = true
					accounted++
				}
			}
			if accounted != len(payments) {
				t.Errorf("accounted for %d payments, expected %d", accounted, len(payments))
			}

			// Candidate scores respect the thresholds of the active config
			for _, g := range result.Groups {
				for _, c := range g.Candidates {
					if c.Score.Total < config.Thresholds.Suggestion {
						t.Errorf("candidate for %s scored %d, below suggestion threshold %d",
							g.Payment.ID, c.Score.Total, config.Thresholds.Suggestion)
					}
				}
			}
		})
	}
}

func TestMatch_PatternLearningPromotesRecurringClient(t *testing.T) {
	base := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	invoice := testInvoice("INV010", "FAC-2024-010", "Acme Corp", 2400.00, base)

	// Exact amount, exact reference, same client, 8 days late:
	// 40 + 30 + 10 + 2 = 82, just under the automatic threshold.
	payment := testPayment("PAY010", "VIR FAC-2024-010", "Acme Corp", 2400.00, base.AddDate(0, 0, 8))

	run := func(t *testing.T, scorer PatternScorer) models.Confidence {
		t.Helper()

		engine := newTestEngine(t, nil)
		if scorer != nil {
			engine.SetPatternScorer(scorer)
		}
		if err := engine.LoadInvoices([]*models.Invoice{invoice}); err != nil {
			t.Fatalf("LoadInvoices() error = %v", err)
		}

		result, err := engine.Match(context.Background(), []*models.Payment{payment})
		if err != nil {
			t.Fatalf("Match() error = %v", err)
		}
		if len(result.Groups) != 1 {
			t.Fatalf("Groups = %d, expected 1", len(result.Groups))
		}
		return result.Groups[0].Best().Confidence
	}

	if got := run(t, nil); got != models.ConfidenceSuggested {
		t.Fatalf("confidence without history = %s, expected suggested", got)
	}

	// Acme habitually pays by VIR with the invoice number, 2 to 10 days
	// after the due date. Three observations activate the learned pattern.
	learner := NewHistoryPatternScorer(DefaultPatternConfig())
	for i, days := range []int{2, 6, 10} {
		past := testInvoice("HIST", "FAC-2024-000", "Acme Corp", 100.00, base.AddDate(0, -1-i, 0))
		learner.Observe(testPayment("HISTPAY", "VIR FAC-2024-000", "Acme Corp", 100.00, past.DueDate.AddDate(0, 0, days)), past)
	}

	if got := run(t, learner); got != models.ConfidenceAuto {
		t.Errorf("confidence with learned history = %s, expected auto", got)
	}
}

func TestMatch_ValidationLifecycle(t *testing.T) {
	invoices, payments := createPipelineDataset()

	engine := newTestEngine(t, nil)
	if err := engine.LoadInvoices(invoices); err != nil {
		t.Fatalf("LoadInvoices() error = %v", err)
	}

	result, err := engine.Match(context.Background(), payments)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}

	for _, g := range result.Groups {
		if g.State != models.MatchStateProposed {
			t.Errorf("group %s starts in state %s, expected proposed", g.Payment.ID, g.State)
		}

		best := g.Best()
		if best != nil && best.Confidence == models.ConfidenceAuto {
			if err := g.AutoValidate(); err != nil {
				t.Errorf("AutoValidate(%s) error = %v", g.Payment.ID, err)
			}
			if err := g.Ignore(); err == nil {
				t.Errorf("Ignore(%s) after validation should fail", g.Payment.ID)
			}
		}
	}

	for _, cg := range result.ComplexGroups {
		if err := cg.Validate(); err != nil {
			t.Errorf("Validate() combination error = %v", err)
		}
	}
}
