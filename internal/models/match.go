package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Score criteria keys used in MatchScore.Details. A key is present only
// when the criterion awarded points.
const (
	CriterionExactAmount         = "exactAmount"
	CriterionCloseAmount         = "closeAmount"
	CriterionExactReference      = "exactReference"
	CriterionPartialReference    = "partialReference"
	CriterionNumberReference     = "numberReference"
	CriterionSameClient          = "sameClient"
	CriterionSimilarClient       = "similarClient"
	CriterionCloseDate           = "closeDate"
	CriterionRelativelyCloseDate = "relativelyCloseDate"
	CriterionPatternMatching     = "patternMatching"
)

// MatchScore holds the total confidence score for a payment/invoice pair
// together with the per-criterion breakdown that produced it.
type MatchScore struct {
	Total   int            `json:"total"`
	Details map[string]int `json:"details"`
}

// NewMatchScore creates an empty MatchScore
func NewMatchScore() MatchScore {
	return MatchScore{Details: make(map[string]int)}
}

// Award records points for a criterion and adds them to the total.
// Zero or negative awards are ignored so the detail map only carries
// criteria that contributed.
func (s *MatchScore) Award(criterion string, points int) {
	if points <= 0 {
		return
	}
	if s.Details == nil {
		s.Details = make(map[string]int)
	}
	s.Details[criterion] = points
	s.Total += points
}

// Clamp caps the total at the given maximum
func (s *MatchScore) Clamp(max int) {
	if s.Total > max {
		s.Total = max
	}
}

// Has reports whether the given criterion awarded points
func (s *MatchScore) Has(criterion string) bool {
	_, ok := s.Details[criterion]
	return ok
}

// Confidence classifies a match score against the configured thresholds
type Confidence string

const (
	// ConfidenceAuto marks scores eligible for automatic validation
	ConfidenceAuto Confidence = "auto"
	// ConfidenceSuggested marks scores surfaced for manual review
	ConfidenceSuggested Confidence = "suggested"
	// ConfidenceNone marks scores below the suggestion threshold
	ConfidenceNone Confidence = "none"
)

// String returns the string representation of Confidence
func (c Confidence) String() string {
	return string(c)
}

// MatchCandidate pairs an invoice with its score against a payment
type MatchCandidate struct {
	Invoice    *Invoice   `json:"invoice"`
	Score      MatchScore `json:"score"`
	Confidence Confidence `json:"confidence"`
}

// MatchState tracks the lifecycle of a proposed match group.
// Groups start as Proposed and move to exactly one terminal state.
type MatchState string

const (
	// MatchStateProposed is the initial state of every generated group
	MatchStateProposed MatchState = "PROPOSED"
	// MatchStateAutoValidated is entered when the top candidate clears
	// the auto threshold and automatic validation is enabled
	MatchStateAutoValidated MatchState = "AUTO_VALIDATED"
	// MatchStateManuallyValidated is entered by an explicit user action
	MatchStateManuallyValidated MatchState = "MANUALLY_VALIDATED"
	// MatchStateIgnored is entered when a user dismisses the group
	MatchStateIgnored MatchState = "IGNORED"
)

// String returns the string representation of MatchState
func (s MatchState) String() string {
	return string(s)
}

// IsTerminal reports whether the state accepts no further transitions
func (s MatchState) IsTerminal() bool {
	return s == MatchStateAutoValidated ||
		s == MatchStateManuallyValidated ||
		s == MatchStateIgnored
}

// CanTransitionTo reports whether a transition to the target state is allowed
func (s MatchState) CanTransitionTo(target MatchState) bool {
	if s != MatchStateProposed {
		return false
	}
	return target == MatchStateAutoValidated ||
		target == MatchStateManuallyValidated ||
		target == MatchStateIgnored
}

// MatchGroup collects the scored invoice candidates for a single payment,
// ordered by descending total score.
type MatchGroup struct {
	Payment    *Payment         `json:"payment"`
	Candidates []MatchCandidate `json:"candidates"`
	State      MatchState       `json:"state"`
}

// NewMatchGroup creates a MatchGroup in the Proposed state
func NewMatchGroup(payment *Payment, candidates []MatchCandidate) *MatchGroup {
	return &MatchGroup{
		Payment:    payment,
		Candidates: candidates,
		State:      MatchStateProposed,
	}
}

// Best returns the highest scored candidate, or nil for an empty group
func (g *MatchGroup) Best() *MatchCandidate {
	if len(g.Candidates) == 0 {
		return nil
	}
	return &g.Candidates[0]
}

// transition moves the group to the target state, enforcing the
// Proposed -> terminal state machine.
func (g *MatchGroup) transition(target MatchState) error {
	if !g.State.CanTransitionTo(target) {
		return fmt.Errorf("cannot transition match group for payment %s from %s to %s",
			g.Payment.ID, g.State, target)
	}
	g.State = target
	return nil
}

// AutoValidate marks the group as validated by the automatic policy
func (g *MatchGroup) AutoValidate() error {
	return g.transition(MatchStateAutoValidated)
}

// Validate marks the group as validated by an explicit user action
func (g *MatchGroup) Validate() error {
	return g.transition(MatchStateManuallyValidated)
}

// Ignore dismisses the group
func (g *MatchGroup) Ignore() error {
	return g.transition(MatchStateIgnored)
}

// ComplexMatchType distinguishes the two multi-record match shapes
type ComplexMatchType string

const (
	// ComplexMatchNTo1 groups several invoices against one payment
	ComplexMatchNTo1 ComplexMatchType = "N_TO_1"
	// ComplexMatch1ToN groups several payments against one invoice
	ComplexMatch1ToN ComplexMatchType = "1_TO_N"
)

// String returns the string representation of ComplexMatchType
func (t ComplexMatchType) String() string {
	return string(t)
}

// ComplexMatchGroup proposes a multi-record match: either several
// invoices settled by one payment or one invoice settled by several
// payments. The summed side never differs from the single side by more
// than the configured amount tolerance.
type ComplexMatchGroup struct {
	Type     ComplexMatchType `json:"type"`
	Payments []*Payment       `json:"payments"`
	Invoices []*Invoice       `json:"invoices"`
	Score    MatchScore       `json:"score"`
	State    MatchState       `json:"state"`
}

// NewComplexMatchGroup creates a ComplexMatchGroup in the Proposed state
func NewComplexMatchGroup(matchType ComplexMatchType, payments []*Payment, invoices []*Invoice, score MatchScore) *ComplexMatchGroup {
	return &ComplexMatchGroup{
		Type:     matchType,
		Payments: payments,
		Invoices: invoices,
		Score:    score,
		State:    MatchStateProposed,
	}
}

// InvoiceTotal returns the summed amount of the grouped invoices
func (g *ComplexMatchGroup) InvoiceTotal() decimal.Decimal {
	total := decimal.Zero
	for _, inv := range g.Invoices {
		total = total.Add(inv.Amount)
	}
	return total
}

// PaymentTotal returns the summed amount of the grouped payments
func (g *ComplexMatchGroup) PaymentTotal() decimal.Decimal {
	total := decimal.Zero
	for _, p := range g.Payments {
		total = total.Add(p.Amount)
	}
	return total
}

// AmountGap returns the absolute difference between the payment side
// and the invoice side of the group.
func (g *ComplexMatchGroup) AmountGap() decimal.Decimal {
	return g.PaymentTotal().Sub(g.InvoiceTotal()).Abs()
}

// Validate marks the group as validated by an explicit user action
func (g *ComplexMatchGroup) Validate() error {
	if !g.State.CanTransitionTo(MatchStateManuallyValidated) {
		return fmt.Errorf("cannot transition complex match group from %s to %s",
			g.State, MatchStateManuallyValidated)
	}
	g.State = MatchStateManuallyValidated
	return nil
}

// Ignore dismisses the group
func (g *ComplexMatchGroup) Ignore() error {
	if !g.State.CanTransitionTo(MatchStateIgnored) {
		return fmt.Errorf("cannot transition complex match group from %s to %s",
			g.State, MatchStateIgnored)
	}
	g.State = MatchStateIgnored
	return nil
}
