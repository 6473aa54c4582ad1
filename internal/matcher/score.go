package matcher

import (
	"strings"

	"github.com/PocKeTio/Reco/internal/models"
)

// Score computes the confidence score for a payment/invoice pair.
// Sub-scores for amount, reference, client and date proximity are
// computed independently, summed and clamped to 100. The details map of
// the returned score only carries criteria that awarded points.
func (e *Engine) Score(payment *models.Payment, invoice *models.Invoice) models.MatchScore {
	score := models.NewMatchScore()

	e.scoreAmount(&score, payment, invoice)
	e.scoreReference(&score, payment, invoice)
	e.scoreClient(&score, payment, invoice)
	e.scoreDate(&score, payment, invoice)

	// Learned patterns contribute like any other criterion, so a pair
	// can surface on pattern evidence alone.
	if e.config.EnablePatternLearning && e.patterns != nil {
		score.Award(models.CriterionPatternMatching, e.patterns.Score(payment, invoice))
	}

	score.Clamp(maxScore)
	return score
}

// scoreAmount awards the full weight on an exact amount match, or a
// linearly interpolated fraction when the difference is within the
// configured tolerance.
func (e *Engine) scoreAmount(score *models.MatchScore, payment *models.Payment, invoice *models.Invoice) {
	if payment.Amount.Equal(invoice.Amount) {
		score.Award(models.CriterionExactAmount, e.config.Rules.ExactAmount.Weight)
		return
	}

	tolerance := e.config.Complex.AmountTolerance
	if tolerance.IsZero() || tolerance.IsNegative() {
		return
	}

	diff := payment.Amount.Sub(invoice.Amount).Abs()
	if diff.GreaterThan(tolerance) {
		return
	}

	weight := decimalFromInt(e.config.Rules.ExactAmount.Weight)
	partial := weight.Mul(decimalOne.Sub(diff.Div(tolerance)))
	score.Award(models.CriterionCloseAmount, int(partial.Round(0).IntPart()))
}

// scoreReference evaluates the three reference outcomes in priority
// order; only the first that fires awards points. An empty reference on
// either side never earns points.
func (e *Engine) scoreReference(score *models.MatchScore, payment *models.Payment, invoice *models.Invoice) {
	if invoice.Reference != "" && strings.Contains(payment.Reference, invoice.Reference) {
		score.Award(models.CriterionExactReference, e.config.Rules.ExactReference.Weight)
		return
	}

	normPayment := Normalize(payment.Reference)
	normInvoice := Normalize(invoice.Reference)
	if normPayment != "" && normInvoice != "" && mutuallyContains(normPayment, normInvoice) {
		score.Award(models.CriterionPartialReference, e.config.Rules.PartialReference.Weight)
		return
	}

	if num := invoice.ReferenceNumber(); num != "" && strings.Contains(payment.Reference, num) {
		score.Award(models.CriterionNumberReference, e.config.Rules.PartialReference.Weight/2)
	}
}

// scoreClient awards the full weight on exact client equality, half on
// normalized mutual containment. An empty client name on either side
// never earns points.
func (e *Engine) scoreClient(score *models.MatchScore, payment *models.Payment, invoice *models.Invoice) {
	if payment.ClientName == invoice.ClientName && payment.ClientName != "" {
		score.Award(models.CriterionSameClient, e.config.Rules.SameClient.Weight)
		return
	}

	normPayment := Normalize(payment.ClientName)
	normInvoice := Normalize(invoice.ClientName)
	if normPayment == "" || normInvoice == "" {
		return
	}
	if mutuallyContains(normPayment, normInvoice) {
		score.Award(models.CriterionSimilarClient, e.config.Rules.SameClient.Weight/2)
	}
}

// scoreDate awards the full weight when the payment arrived within
// closeDateDays of the invoice due date, half within
// relativelyCloseDateDays.
func (e *Engine) scoreDate(score *models.MatchScore, payment *models.Payment, invoice *models.Invoice) {
	days := models.DayDifference(payment.ReceptionDate, invoice.DueDate)

	switch {
	case days <= closeDateDays:
		score.Award(models.CriterionCloseDate, e.config.Rules.CloseDate.Weight)
	case days <= relativelyCloseDateDays:
		score.Award(models.CriterionRelativelyCloseDate, e.config.Rules.CloseDate.Weight/2)
	}
}

// Classify maps a total score to its confidence level under the
// engine's thresholds.
func (e *Engine) Classify(total int) models.Confidence {
	switch {
	case total >= e.config.Thresholds.Auto:
		return models.ConfidenceAuto
	case total >= e.config.Thresholds.Suggestion:
		return models.ConfidenceSuggested
	default:
		return models.ConfidenceNone
	}
}
