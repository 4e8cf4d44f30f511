package domain

import (
	"log/slog"
	"strings"

	"github.com/pulseline-ai/agent-backend/internal/model"
)

const (
	// MinSwitchConfidence is the bar a keyword-scored detection must clear
	// to move a user out of their current domain.
	MinSwitchConfidence = 0.8
	// ambiguityRatio is the share of meaningful words that must be ambiguous
	// before the classifier falls back to conversational context.
	ambiguityRatio = 0.7
	// secondaryRatio and multiDomainRatio are the score fractions (of the
	// top domain) that qualify runners-up as secondary / multi-domain.
	secondaryRatio   = 0.3
	multiDomainRatio = 0.5
)

// Classifier scores queries against the domain table. It is pure with
// respect to a snapshot of the user's current domain; the returned
// DomainUpdate (nil when no change) is committed by the caller.
type Classifier struct {
	table *Table
}

// NewClassifier creates a Classifier over the given table.
func NewClassifier(table *Table) *Classifier {
	return &Classifier{table: table}
}

// Table exposes the underlying domain table for consumers that need
// per-domain declarations (retrieval filters, prompt prefixes).
func (c *Classifier) Table() *Table {
	return c.table
}

type domainScore struct {
	key     string
	score   float64
	matched []string
}

// Classify routes a query given the user's current domain snapshot.
func (c *Classifier) Classify(query string, userKey int64, currentDomain string) (model.DomainVerdict, *model.DomainUpdate) {
	lower := strings.ToLower(query)
	scores := c.scoreDomains(lower)

	// Explicit indicators short-circuit everything else.
	if key, token := c.explicitIndicator(lower); key != "" {
		verdict := model.DomainVerdict{
			Primary:           key,
			Secondary:         secondaries(scores, key),
			Confidence:        0.95,
			Reason:            model.ReasonExplicitIndicator,
			MatchedTokens:     []string{token},
			IsContextOverride: currentDomain != key,
			IsMultiDomain:     isMultiDomain(scores),
		}
		return verdict, &model.DomainUpdate{UserKey: userKey, Domain: key}
	}

	if c.isAmbiguous(lower) {
		if currentDomain != "" {
			slog.Debug("ambiguous query, staying in current domain", "domain", currentDomain)
			return model.DomainVerdict{
				Primary:           currentDomain,
				Confidence:        0.7,
				Reason:            model.ReasonAmbiguousContext,
				MatchedTokens:     []string{"context-based"},
				IsContextOverride: true,
			}, nil
		}
		return model.DomainVerdict{
			Confidence: 0.3,
			Reason:     model.ReasonAmbiguousNoContext,
		}, nil
	}

	if len(scores) == 0 {
		return model.DomainVerdict{Reason: model.ReasonNoMatch}, nil
	}

	top := scores[0]

	// Sticky-domain rule: resist low-confidence switches.
	if currentDomain != "" && currentDomain != top.key {
		confidence := 0.5 + 0.1*float64(totalMatches(scores))
		if confidence > 0.9 {
			confidence = 0.9
		}
		if confidence < MinSwitchConfidence {
			slog.Debug("resisting domain switch",
				"from", currentDomain, "to", top.key, "confidence", confidence)
			return model.DomainVerdict{
				Primary:           currentDomain,
				Confidence:        confidence,
				Reason:            model.ReasonSwitchResisted,
				MatchedTokens:     []string{"context-override"},
				IsContextOverride: true,
			}, nil
		}
	}

	verdict := model.DomainVerdict{
		Primary:       top.key,
		Secondary:     secondaries(scores, top.key),
		Confidence:    0.9,
		Reason:        model.ReasonClearDetection,
		MatchedTokens: top.matched,
		IsMultiDomain: isMultiDomain(scores),
	}
	var update *model.DomainUpdate
	if currentDomain != top.key {
		update = &model.DomainUpdate{UserKey: userKey, Domain: top.key}
	}
	return verdict, update
}

// scoreDomains counts matched keywords per domain and applies the priority
// boost. The result is ordered best-first, ties kept in declaration order.
func (c *Classifier) scoreDomains(lower string) []domainScore {
	var scores []domainScore
	for _, d := range c.table.Domains {
		var matched []string
		for _, kw := range d.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				matched = append(matched, kw)
			}
		}
		if len(matched) == 0 {
			continue
		}
		scores = append(scores, domainScore{
			key:     d.Key,
			score:   float64(len(matched)) * d.Boost(),
			matched: matched,
		})
	}

	// Stable insertion sort: slices are tiny and declaration order must
	// survive ties.
	for i := 1; i < len(scores); i++ {
		for j := i; j > 0 && scores[j].score > scores[j-1].score; j-- {
			scores[j], scores[j-1] = scores[j-1], scores[j]
		}
	}
	return scores
}

// explicitIndicator returns the first domain (in declaration order) with a
// high-signal token present in the query.
func (c *Classifier) explicitIndicator(lower string) (domainKey, token string) {
	for _, d := range c.table.Domains {
		for _, ind := range d.ExplicitIndicators {
			if strings.Contains(lower, strings.ToLower(ind)) {
				return d.Key, ind
			}
		}
	}
	return "", ""
}

// isAmbiguous reports whether the query needs conversational context:
// either it contains a contextual follow-up term, or at least 70% of its
// meaningful words are ambiguous terms.
func (c *Classifier) isAmbiguous(lower string) bool {
	trimmed := strings.TrimSpace(lower)
	for _, term := range c.table.ContextualTerms {
		if strings.Contains(trimmed, term) {
			return true
		}
	}

	filler := make(map[string]bool, len(c.table.FillerWords))
	for _, w := range c.table.FillerWords {
		filler[w] = true
	}
	var meaningful []string
	for _, w := range strings.Fields(trimmed) {
		if !filler[w] {
			meaningful = append(meaningful, w)
		}
	}
	if len(meaningful) == 0 {
		return true
	}

	ambiguous := 0
	for _, w := range meaningful {
		for _, term := range c.table.AmbiguousTerms {
			if strings.Contains(w, term) {
				ambiguous++
				break
			}
		}
	}
	return float64(ambiguous)/float64(len(meaningful)) >= ambiguityRatio
}

func secondaries(scores []domainScore, primary string) []string {
	if len(scores) == 0 {
		return nil
	}
	top := scores[0].score
	var out []string
	for _, s := range scores {
		if s.key == primary {
			continue
		}
		if s.score >= top*secondaryRatio {
			out = append(out, s.key)
		}
	}
	return out
}

func isMultiDomain(scores []domainScore) bool {
	return len(scores) > 1 && scores[1].score >= scores[0].score*multiDomainRatio
}

func totalMatches(scores []domainScore) int {
	n := 0
	for _, s := range scores {
		n += len(s.matched)
	}
	return n
}
