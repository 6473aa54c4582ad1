package matcher

import (
	"context"

	"github.com/PocKeTio/Reco/internal/models"
	"github.com/PocKeTio/Reco/pkg/logger"

	"github.com/shopspring/decimal"
)

// ResolveComplexMatches searches for multi-record settlements among the
// records that have no strong 1:1 match. N:1 groups several invoices
// against one payment; 1:N groups several payments against one invoice.
// Each direction runs only when its feature flag is enabled.
//
// The combination search is bounded: group size 2 to
// Complex.MaxGroupSize, members restricted to the anchor's date window,
// and a proposed combination never differs from the anchor amount by
// more than Complex.AmountTolerance. Among valid combinations the
// smallest group wins, then the highest aggregate score, then the first
// found in input order.
func (e *Engine) ResolveComplexMatches(ctx context.Context, payments []*models.Payment, oneToOne []*models.MatchGroup) ([]*models.ComplexMatchGroup, error) {
	if !e.config.Complex.EnableNTo1 && !e.config.Complex.Enable1ToN {
		return nil, nil
	}

	if e.invoiceIndex == nil {
		return nil, nil
	}

	strongPayments := make(map[string]bool)
	strongInvoices := make(map[string]bool)
	for _, g := range oneToOne {
		best := g.Best()
		if best == nil || best.Confidence != models.ConfidenceAuto {
			continue
		}
		strongPayments[g.Payment.ID] = true
		strongInvoices[best.Invoice.ID] = true
	}

	var groups []*models.ComplexMatchGroup

	if e.config.Complex.EnableNTo1 {
		for _, payment := range payments {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}

			if strongPayments[payment.ID] {
				continue
			}

			if group := e.findNTo1Match(payment, strongInvoices); group != nil {
				groups = append(groups, group)
			}
		}
	}

	if e.config.Complex.Enable1ToN {
		paymentIndex := NewPaymentIndex(payments)

		for _, invoice := range e.invoiceIndex.AllInvoices {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}

			if strongInvoices[invoice.ID] {
				continue
			}

			if group := e.find1ToNMatch(invoice, paymentIndex, strongPayments); group != nil {
				groups = append(groups, group)
			}
		}
	}

	e.log.WithFields(logger.Fields{
		"complex_groups": len(groups),
	}).Debug("Complex match resolution complete")

	return groups, nil
}

// findNTo1Match searches for a combination of invoices settled together
// by the given payment.
func (e *Engine) findNTo1Match(payment *models.Payment, excluded map[string]bool) *models.ComplexMatchGroup {
	pool := e.nTo1Pool(payment, excluded)
	if len(pool) < 2 {
		return nil
	}

	amounts := make([]decimal.Decimal, len(pool))
	for i, inv := range pool {
		amounts[i] = inv.Amount
	}

	combo := e.searchCombination(payment.Amount, amounts, func(indices []int) models.MatchScore {
		members := make([]*models.Invoice, len(indices))
		for i, idx := range indices {
			members[i] = pool[idx]
		}
		return e.scoreInvoiceCombination(payment, members)
	})
	if combo == nil {
		return nil
	}

	invoices := make([]*models.Invoice, len(combo.indices))
	for i, idx := range combo.indices {
		invoices[i] = pool[idx]
	}

	return models.NewComplexMatchGroup(models.ComplexMatchNTo1,
		[]*models.Payment{payment}, invoices, combo.score)
}

// find1ToNMatch searches for a combination of payments that together
// settle the given invoice.
func (e *Engine) find1ToNMatch(invoice *models.Invoice, paymentIndex *PaymentIndex, excluded map[string]bool) *models.ComplexMatchGroup {
	pool := e.oneToNPool(invoice, paymentIndex, excluded)
	if len(pool) < 2 {
		return nil
	}

	amounts := make([]decimal.Decimal, len(pool))
	for i, p := range pool {
		amounts[i] = p.Amount
	}

	combo := e.searchCombination(invoice.Amount, amounts, func(indices []int) models.MatchScore {
		members := make([]*models.Payment, len(indices))
		for i, idx := range indices {
			members[i] = pool[idx]
		}
		return e.scorePaymentCombination(invoice, members)
	})
	if combo == nil {
		return nil
	}

	members := make([]*models.Payment, len(combo.indices))
	for i, idx := range combo.indices {
		members[i] = pool[idx]
	}

	return models.NewComplexMatchGroup(models.ComplexMatch1ToN,
		members, []*models.Invoice{invoice}, combo.score)
}

// nTo1Pool selects candidate invoices for an N:1 search: same-client
// invoices first, all invoices only when no same-client candidate
// exists. The index narrows the scan to the payment's date window;
// members must carry positive amounts no larger than the payment plus
// tolerance.
func (e *Engine) nTo1Pool(payment *models.Payment, excluded map[string]bool) []*models.Invoice {
	windowed := e.invoiceIndex.GetByDueDateWindow(payment.ReceptionDate, e.config.Complex.DateRangeDays)

	eligible := func(inv *models.Invoice) bool {
		if excluded[inv.ID] {
			return false
		}
		if !inv.Amount.IsPositive() {
			return false
		}
		ceiling := payment.Amount.Add(e.config.Complex.AmountTolerance)
		return inv.Amount.LessThanOrEqual(ceiling)
	}

	var sameClient []*models.Invoice
	for _, inv := range windowed {
		if !eligible(inv) {
			continue
		}
		probe := models.NewMatchScore()
		e.scoreClient(&probe, payment, inv)
		if probe.Total > 0 {
			sameClient = append(sameClient, inv)
		}
	}
	if len(sameClient) > 0 {
		return sameClient
	}

	// No client signal anywhere: fall back to the full date-windowed pool.
	var all []*models.Invoice
	for _, inv := range windowed {
		if eligible(inv) {
			all = append(all, inv)
		}
	}
	return all
}

// oneToNPool selects candidate payments for a 1:N search, symmetric to
// nTo1Pool.
func (e *Engine) oneToNPool(invoice *models.Invoice, paymentIndex *PaymentIndex, excluded map[string]bool) []*models.Payment {
	windowed := paymentIndex.GetByDateWindow(invoice.DueDate, e.config.Complex.DateRangeDays)

	eligible := func(p *models.Payment) bool {
		if excluded[p.ID] {
			return false
		}
		if !p.Amount.IsPositive() {
			return false
		}
		ceiling := invoice.Amount.Add(e.config.Complex.AmountTolerance)
		return p.Amount.LessThanOrEqual(ceiling)
	}

	var sameClient []*models.Payment
	for _, p := range windowed {
		if !eligible(p) {
			continue
		}
		probe := models.NewMatchScore()
		e.scoreClient(&probe, p, invoice)
		if probe.Total > 0 {
			sameClient = append(sameClient, p)
		}
	}
	if len(sameClient) > 0 {
		return sameClient
	}

	var all []*models.Payment
	for _, p := range windowed {
		if eligible(p) {
			all = append(all, p)
		}
	}
	return all
}

// combination holds the outcome of a combination search
type combination struct {
	indices []int
	score   models.MatchScore
}

// searchCombination finds the best index combination whose amounts sum
// to within the tolerance of the target. Sizes are tried smallest
// first, so the fewest-members combination always wins; within a size,
// the highest aggregate score wins and ties keep the first combination
// found in input order. Pool amounts are positive, which makes the
// partial-sum prune safe.
func (e *Engine) searchCombination(target decimal.Decimal, amounts []decimal.Decimal, scoreFn func([]int) models.MatchScore) *combination {
	tolerance := e.config.Complex.AmountTolerance
	ceiling := target.Add(tolerance)
	floor := target.Sub(tolerance)

	maxSize := e.config.Complex.MaxGroupSize
	if maxSize > len(amounts) {
		maxSize = len(amounts)
	}

	for size := 2; size <= maxSize; size++ {
		var best *combination

		indices := make([]int, 0, size)
		var walk func(start int, sum decimal.Decimal)
		walk = func(start int, sum decimal.Decimal) {
			if len(indices) == size {
				if sum.GreaterThanOrEqual(floor) && sum.LessThanOrEqual(ceiling) {
					score := scoreFn(indices)
					if best == nil || score.Total > best.score.Total {
						best = &combination{indices: append([]int(nil), indices...), score: score}
					}
				}
				return
			}

			for i := start; i < len(amounts); i++ {
				next := sum.Add(amounts[i])
				if next.GreaterThan(ceiling) {
					continue
				}
				indices = append(indices, i)
				walk(i+1, next)
				indices = indices[:len(indices)-1]
			}
		}
		walk(0, decimal.Zero)

		if best != nil {
			return best
		}
	}

	return nil
}

// scoreInvoiceCombination computes the aggregate score of an invoice
// combination against a payment, reusing the amount, client and date
// rules on the summed amount, the worst-case client signal and the
// worst-case day difference.
func (e *Engine) scoreInvoiceCombination(payment *models.Payment, invoices []*models.Invoice) models.MatchScore {
	score := models.NewMatchScore()

	total := decimal.Zero
	for _, inv := range invoices {
		total = total.Add(inv.Amount)
	}
	aggregate := &models.Invoice{Amount: total}
	e.scoreAmount(&score, payment, aggregate)

	e.scoreWorstClient(&score, func(apply func(payment *models.Payment, invoice *models.Invoice)) {
		for _, inv := range invoices {
			apply(payment, inv)
		}
	})

	worstDays := 0
	for _, inv := range invoices {
		if d := models.DayDifference(payment.ReceptionDate, inv.DueDate); d > worstDays {
			worstDays = d
		}
	}
	e.scoreWorstDate(&score, worstDays)

	score.Clamp(maxScore)
	return score
}

// scorePaymentCombination is the 1:N counterpart of
// scoreInvoiceCombination.
func (e *Engine) scorePaymentCombination(invoice *models.Invoice, payments []*models.Payment) models.MatchScore {
	score := models.NewMatchScore()

	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	aggregate := &models.Payment{Amount: total}
	e.scoreAmount(&score, aggregate, invoice)

	e.scoreWorstClient(&score, func(apply func(payment *models.Payment, invoice *models.Invoice)) {
		for _, p := range payments {
			apply(p, invoice)
		}
	})

	worstDays := 0
	for _, p := range payments {
		if d := models.DayDifference(p.ReceptionDate, invoice.DueDate); d > worstDays {
			worstDays = d
		}
	}
	e.scoreWorstDate(&score, worstDays)

	score.Clamp(maxScore)
	return score
}

// scoreWorstClient awards the weakest client sub-score observed across
// all member pairs, so one mismatching member drags the whole group.
func (e *Engine) scoreWorstClient(score *models.MatchScore, forEach func(func(payment *models.Payment, invoice *models.Invoice))) {
	worstCriterion := models.CriterionSameClient
	worstPoints := -1

	forEach(func(payment *models.Payment, invoice *models.Invoice) {
		probe := models.NewMatchScore()
		e.scoreClient(&probe, payment, invoice)

		points := probe.Total
		criterion := models.CriterionSameClient
		if probe.Has(models.CriterionSimilarClient) {
			criterion = models.CriterionSimilarClient
		}

		if worstPoints < 0 || points < worstPoints {
			worstPoints = points
			worstCriterion = criterion
		}
	})

	if worstPoints > 0 {
		score.Award(worstCriterion, worstPoints)
	}
}

// scoreWorstDate applies the date proximity rule to the worst-case day
// difference within the group.
func (e *Engine) scoreWorstDate(score *models.MatchScore, worstDays int) {
	switch {
	case worstDays <= closeDateDays:
		score.Award(models.CriterionCloseDate, e.config.Rules.CloseDate.Weight)
	case worstDays <= relativelyCloseDateDays:
		score.Award(models.CriterionRelativelyCloseDate, e.config.Rules.CloseDate.Weight/2)
	}
}
