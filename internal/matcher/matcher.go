package matcher

import (
	"context"
	"fmt"
	"sort"

	"github.com/PocKeTio/Reco/internal/models"
	"github.com/PocKeTio/Reco/pkg/logger"

	"github.com/shopspring/decimal"
)

var decimalOne = decimal.NewFromInt(1)

func decimalFromInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

// Engine is the core matching engine. It scores payments against a
// loaded invoice snapshot and produces ranked match groups. The
// configuration is cloned at construction, so an engine is never
// affected by later mutation of the config it was built from.
type Engine struct {
	config       *Config
	invoiceIndex *InvoiceIndex
	patterns     PatternScorer
	log          logger.Logger
}

// MatchingResult represents the complete result of a matching run
type MatchingResult struct {
	Groups            []*models.MatchGroup
	ComplexGroups     []*models.ComplexMatchGroup
	UnmatchedPayments []*models.Payment
	Summary           Summary
}

// Summary provides aggregate statistics about a matching run
type Summary struct {
	TotalInvoices        int
	TotalPayments        int
	AutoGroups           int
	SuggestedGroups      int
	ComplexGroups        int
	UnmatchedPayments    int
	TotalAmountMatched   decimal.Decimal
	TotalAmountUnmatched decimal.Decimal
}

// NewEngine creates a matching engine with the specified configuration.
// A nil configuration falls back to DefaultConfig.
func NewEngine(config *Config) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid matching configuration: %w", err)
	}

	return &Engine{
		config:   config.Clone(),
		patterns: NopPatternScorer{},
		log:      logger.GetGlobalLogger().WithComponent("matcher"),
	}, nil
}

// SetPatternScorer injects the pattern scoring strategy. Passing nil
// restores the no-op scorer.
func (e *Engine) SetPatternScorer(scorer PatternScorer) {
	if scorer == nil {
		scorer = NopPatternScorer{}
	}
	e.patterns = scorer
}

// LoadInvoices validates the invoice snapshot and builds the
// engine's indexes. Invoices already marked paid are excluded from
// matching.
func (e *Engine) LoadInvoices(invoices []*models.Invoice) error {
	open := make([]*models.Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if err := inv.Validate(); err != nil {
			return fmt.Errorf("invoice %s: %w", inv.ID, err)
		}
		if inv.Status == models.InvoiceStatusPaid {
			continue
		}
		open = append(open, inv)
	}

	e.invoiceIndex = NewInvoiceIndex(open)

	stats := e.invoiceIndex.GetIndexStats()
	e.log.WithFields(logger.Fields{
		"invoices":       stats.TotalInvoices,
		"unique_amounts": stats.UniqueAmounts,
		"unique_clients": stats.UniqueClients,
	}).Debug("Invoice index built")

	return nil
}

// GenerateCandidates scores every payment against the loaded invoices
// and returns one match group per payment with at least one candidate
// at or above the suggestion threshold. Candidates within a group are
// ordered by descending total score; ties keep invoice load order.
// Cancellation is checked only between payment iterations, so a run
// over a given snapshot is an atomic unit of work per payment.
func (e *Engine) GenerateCandidates(ctx context.Context, payments []*models.Payment) ([]*models.MatchGroup, error) {
	if e.invoiceIndex == nil {
		return nil, fmt.Errorf("invoices must be loaded before generating candidates")
	}

	groups := make([]*models.MatchGroup, 0, len(payments))

	for _, payment := range payments {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if err := payment.Validate(); err != nil {
			return nil, fmt.Errorf("payment %s: %w", payment.ID, err)
		}

		candidates := e.scorePaymentCandidates(payment, e.invoiceIndex.AllInvoices)
		if len(candidates) == 0 {
			continue
		}

		groups = append(groups, models.NewMatchGroup(payment, candidates))
	}

	e.log.WithFields(logger.Fields{
		"payments": len(payments),
		"groups":   len(groups),
	}).Debug("Candidate generation complete")

	return groups, nil
}

// scorePaymentCandidates scores the given invoices for a payment and
// retains those at or above the suggestion threshold, sorted by
// descending score with stable ties.
func (e *Engine) scorePaymentCandidates(payment *models.Payment, invoices []*models.Invoice) []models.MatchCandidate {
	var candidates []models.MatchCandidate

	for _, inv := range invoices {
		score := e.Score(payment, inv)
		if score.Total < e.config.Thresholds.Suggestion {
			continue
		}

		candidates = append(candidates, models.MatchCandidate{
			Invoice:    inv,
			Score:      score,
			Confidence: e.Classify(score.Total),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score.Total > candidates[j].Score.Total
	})

	if e.config.MaxCandidatesPerPayment > 0 && len(candidates) > e.config.MaxCandidatesPerPayment {
		candidates = candidates[:e.config.MaxCandidatesPerPayment]
	}

	return candidates
}

// Match runs the complete matching pipeline: candidate generation
// followed by the N:1/1:N combination search, with aggregate summary
// statistics over the outcome.
func (e *Engine) Match(ctx context.Context, payments []*models.Payment) (*MatchingResult, error) {
	groups, err := e.GenerateCandidates(ctx, payments)
	if err != nil {
		return nil, err
	}

	complexGroups, err := e.ResolveComplexMatches(ctx, payments, groups)
	if err != nil {
		return nil, err
	}

	result := &MatchingResult{
		Groups:            groups,
		ComplexGroups:     complexGroups,
		UnmatchedPayments: e.collectUnmatched(payments, groups, complexGroups),
	}
	result.Summary = e.calculateSummary(payments, result)

	return result, nil
}

// collectUnmatched returns the payments that appear in no simple group
// and no complex group, preserving input order.
func (e *Engine) collectUnmatched(payments []*models.Payment, groups []*models.MatchGroup, complexGroups []*models.ComplexMatchGroup) []*models.Payment {
	matched := make(map[string]bool)
	for _, g := range groups {
		matched[g.Payment.ID] = true
	}
	for _, cg := range complexGroups {
		for _, p := range cg.Payments {
			matched[p.ID] = true
		}
	}

	var unmatched []*models.Payment
	for _, p := range payments {
		if !matched[p.ID] {
			unmatched = append(unmatched, p)
		}
	}
	return unmatched
}

// calculateSummary calculates summary statistics for a matching result
func (e *Engine) calculateSummary(payments []*models.Payment, result *MatchingResult) Summary {
	summary := Summary{
		TotalInvoices:        len(e.invoiceIndex.AllInvoices),
		TotalPayments:        len(payments),
		ComplexGroups:        len(result.ComplexGroups),
		UnmatchedPayments:    len(result.UnmatchedPayments),
		TotalAmountMatched:   decimal.Zero,
		TotalAmountUnmatched: decimal.Zero,
	}

	for _, group := range result.Groups {
		best := group.Best()
		if best == nil {
			continue
		}

		switch best.Confidence {
		case models.ConfidenceAuto:
			summary.AutoGroups++
		case models.ConfidenceSuggested:
			summary.SuggestedGroups++
		}

		summary.TotalAmountMatched = summary.TotalAmountMatched.Add(group.Payment.Amount.Abs())
	}

	for _, p := range result.UnmatchedPayments {
		summary.TotalAmountUnmatched = summary.TotalAmountUnmatched.Add(p.Amount.Abs())
	}

	return summary
}

// GetConfiguration returns a copy of the current configuration
func (e *Engine) GetConfiguration() *Config {
	return e.config.Clone()
}

// UpdateConfiguration replaces the engine configuration. The new
// configuration only affects runs started after the call.
func (e *Engine) UpdateConfiguration(config *Config) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	e.config = config.Clone()
	return nil
}

// NearAmountInvoices returns loaded invoices whose amount falls within
// the complex tolerance of the given amount. With a zero tolerance only
// exact-amount invoices are returned. Used to explain unmatched
// payments that almost settle an invoice.
func (e *Engine) NearAmountInvoices(amount decimal.Decimal) []*models.Invoice {
	if e.invoiceIndex == nil {
		return nil
	}

	tolerance := e.config.Complex.AmountTolerance
	if tolerance.IsZero() || tolerance.IsNegative() {
		return e.invoiceIndex.GetByExactAmount(amount)
	}
	return e.invoiceIndex.GetByAmountRange(amount.Sub(tolerance), amount.Add(tolerance))
}

// GetStats returns statistics about the loaded invoice index
func (e *Engine) GetStats() IndexStats {
	if e.invoiceIndex == nil {
		return IndexStats{}
	}
	return e.invoiceIndex.GetIndexStats()
}
