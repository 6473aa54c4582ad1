package matcher

import (
	"strings"
	"sync"

	"github.com/PocKeTio/Reco/internal/models"
)

// PatternScorer is the pluggable strategy behind the patternMatching
// criterion. Implementations return a non-negative number of points for
// a payment/invoice pair; zero means no learned signal. Negative
// returns are treated as zero by the engine.
type PatternScorer interface {
	Score(payment *models.Payment, invoice *models.Invoice) int
}

// NopPatternScorer is the default scorer. It never awards points.
type NopPatternScorer struct{}

// Score always returns zero
func (NopPatternScorer) Score(*models.Payment, *models.Invoice) int { return 0 }

// PatternConfig controls the history-based pattern scorer
type PatternConfig struct {
	// MinHistoryItems is the number of validated matches required per
	// client before learned patterns contribute points
	MinHistoryItems int `json:"minHistoryItems"`

	// ClientPatternWeight is awarded when the payment's reference shape
	// matches the client's dominant learned shape
	ClientPatternWeight int `json:"clientPatternWeight"`

	// GlobalPatternWeight is awarded when the payment's timing falls in
	// the client's historical payment window
	GlobalPatternWeight int `json:"globalPatternWeight"`
}

// DefaultPatternConfig returns the standard pattern learning parameters
func DefaultPatternConfig() PatternConfig {
	return PatternConfig{
		MinHistoryItems:     3,
		ClientPatternWeight: 15,
		GlobalPatternWeight: 5,
	}
}

// clientHistory accumulates learned signals for one normalized client
type clientHistory struct {
	count       int
	shapeCounts map[string]int
	minDays     int
	maxDays     int
}

// HistoryPatternScorer learns per-client payment habits from validated
// matches. After MinHistoryItems observations for a client it awards
// ClientPatternWeight when a payment's reference shape matches the
// client's dominant shape, and GlobalPatternWeight when the
// payment-to-due-date timing falls inside the client's historical
// window. Scoring is deterministic for a given observation history and
// memory is bounded by the number of distinct clients and shapes.
type HistoryPatternScorer struct {
	mu      sync.RWMutex
	config  PatternConfig
	clients map[string]*clientHistory
}

// NewHistoryPatternScorer creates a scorer with the given parameters
func NewHistoryPatternScorer(config PatternConfig) *HistoryPatternScorer {
	if config.MinHistoryItems <= 0 {
		config.MinHistoryItems = DefaultPatternConfig().MinHistoryItems
	}

	return &HistoryPatternScorer{
		config:  config,
		clients: make(map[string]*clientHistory),
	}
}

// Observe records a validated payment/invoice pair, updating the
// client's learned reference shape and timing window.
func (h *HistoryPatternScorer) Observe(payment *models.Payment, invoice *models.Invoice) {
	client := Normalize(invoice.ClientName)
	if client == "" {
		return
	}

	days := models.DayDifference(payment.ReceptionDate, invoice.DueDate)
	shape := referenceShape(payment.Reference)

	h.mu.Lock()
	defer h.mu.Unlock()

	history, ok := h.clients[client]
	if !ok {
		history = &clientHistory{
			shapeCounts: make(map[string]int),
			minDays:     days,
			maxDays:     days,
		}
		h.clients[client] = history
	}

	history.count++
	if shape != "" {
		history.shapeCounts[shape]++
	}
	if days < history.minDays {
		history.minDays = days
	}
	if days > history.maxDays {
		history.maxDays = days
	}
}

// Score awards points when the client has enough history and the pair
// matches the learned shape or timing window.
func (h *HistoryPatternScorer) Score(payment *models.Payment, invoice *models.Invoice) int {
	client := Normalize(invoice.ClientName)
	if client == "" {
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	history, ok := h.clients[client]
	if !ok || history.count < h.config.MinHistoryItems {
		return 0
	}

	points := 0

	if dominant := history.dominantShape(); dominant != "" && referenceShape(payment.Reference) == dominant {
		points += h.config.ClientPatternWeight
	}

	days := models.DayDifference(payment.ReceptionDate, invoice.DueDate)
	if days >= history.minDays && days <= history.maxDays {
		points += h.config.GlobalPatternWeight
	}

	return points
}

// HistorySize returns the number of observations recorded for a client
func (h *HistoryPatternScorer) HistorySize(clientName string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if history, ok := h.clients[Normalize(clientName)]; ok {
		return history.count
	}
	return 0
}

// dominantShape returns the most frequent reference shape, breaking
// ties by lexicographic order so results do not depend on map iteration.
func (c *clientHistory) dominantShape() string {
	best := ""
	bestCount := 0
	for shape, count := range c.shapeCounts {
		if count > bestCount || (count == bestCount && shape < best) {
			best = shape
			bestCount = count
		}
	}
	return best
}

// referenceShape canonicalizes a payment reference into its structural
// shape: normalized text with every digit run collapsed to '#'. Two
// references like "VIR FAC-2024-001" and "VIR FAC-2024-017" share the
// shape "vir fac#".
func referenceShape(reference string) string {
	norm := Normalize(reference)
	if norm == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(norm))
	inDigits := false
	for _, r := range norm {
		if r >= '0' && r <= '9' {
			if !inDigits {
				b.WriteByte('#')
				inDigits = true
			}
			continue
		}
		inDigits = false
		b.WriteRune(r)
	}

	return b.String()
}
