package service

import (
	"strings"

	"github.com/pulseline-ai/agent-backend/internal/model"
)

// contextFacts captures everything the sufficiency rules inspect. Computing
// it once keeps the decision table itself side-effect free.
type contextFacts struct {
	isStatistical bool
	isCareer      bool
	hasOverrides  bool
	hasDates      bool
	hasNumbers    bool
	yearCoverage  int
	hasCareerWord bool
	totalContent  int
	avgDistance   float64
}

type sufficiencyRule struct {
	reason         string
	when           func(f contextFacts) bool
	confidence     float64
	recommendation model.Recommendation
}

// sufficiencyRules is the routing decision table, evaluated top to bottom;
// the first matching row wins. The trailing catch-all always matches.
var sufficiencyRules = []sufficiencyRule{
	{
		reason:         "override_directives_available",
		when:           func(f contextFacts) bool { return f.hasOverrides && !f.isStatistical },
		confidence:     0.9,
		recommendation: model.RecommendUseRAG,
	},
	{
		// Career-wide statistical asks need multi-year coverage or explicit
		// career totals; a single season's data cannot answer them.
		reason: "insufficient_career_coverage",
		when: func(f contextFacts) bool {
			return f.isCareer && f.yearCoverage < 2 && !f.hasCareerWord
		},
		confidence:     0.2,
		recommendation: model.RecommendWebSearch,
	},
	{
		reason: "specific_data_available",
		when: func(f contextFacts) bool {
			return f.isStatistical && f.hasDates && f.hasNumbers
		},
		confidence:     0.8,
		recommendation: model.RecommendUseRAG,
	},
	{
		reason:         "insufficient_specific_data",
		when:           func(f contextFacts) bool { return f.isStatistical },
		confidence:     0.3,
		recommendation: model.RecommendWebSearch,
	},
	{
		reason: "good_general_context",
		when: func(f contextFacts) bool {
			return f.totalContent > 300 && f.avgDistance < 0.6
		},
		confidence:     0.7,
		recommendation: model.RecommendUseRAG,
	},
	{
		reason: "moderate_context",
		when: func(f contextFacts) bool {
			return f.totalContent > 100 && f.avgDistance < 0.8
		},
		confidence:     0.5,
		recommendation: model.RecommendRAGWithWeb,
	},
	{
		reason:         "low_relevance_or_content",
		when:           func(f contextFacts) bool { return true },
		confidence:     0.2,
		recommendation: model.RecommendWebSearch,
	},
}

// AssessSufficiency decides whether retrieved context answers the query,
// needs web augmentation, or needs replacement. Pure and deterministic.
func AssessSufficiency(query string, chunks []model.Chunk) model.Assessment {
	if len(chunks) == 0 {
		return model.Assessment{
			Confidence:     0.0,
			Recommendation: model.RecommendWebSearch,
			Reason:         "no_rag_results",
		}
	}

	f := gatherContextFacts(query, chunks)
	for _, rule := range sufficiencyRules {
		if rule.when(f) {
			return model.Assessment{
				Confidence:     rule.confidence,
				Recommendation: rule.recommendation,
				Reason:         rule.reason,
			}
		}
	}
	// Unreachable: the last rule always matches.
	return model.Assessment{Recommendation: model.RecommendBasicResponse, Reason: "no_rule_matched"}
}

func gatherContextFacts(query string, chunks []model.Chunk) contextFacts {
	f := contextFacts{
		isStatistical: IsStatisticalQuery(query),
		isCareer:      IsCareerQuery(query),
		hasOverrides:  HasOverrides(chunks),
	}

	years := make(map[string]struct{})
	var totalDistance float64
	for _, c := range chunks {
		f.totalContent += len(c.Content)
		totalDistance += c.Distance
		if dateToken.MatchString(c.Content) {
			f.hasDates = true
		}
		if numberToken.MatchString(c.Content) {
			f.hasNumbers = true
		}
		for _, y := range yearToken.FindAllString(c.Content, -1) {
			years[y] = struct{}{}
		}
		lower := strings.ToLower(c.Content)
		for _, kw := range careerKeywords {
			if strings.Contains(lower, kw) {
				f.hasCareerWord = true
				break
			}
		}
	}
	f.yearCoverage = len(years)
	f.avgDistance = totalDistance / float64(len(chunks))
	return f
}
