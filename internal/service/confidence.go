package service

import (
	"strings"

	"github.com/pulseline-ai/agent-backend/internal/model"
)

// queryOverlapRatio is the share of query words that must appear in a
// result before it counts as relevant.
const queryOverlapRatio = 0.3

// AssessWebConfidence scores web results for relevance before they are
// fused into the prompt. Pure and deterministic.
func AssessWebConfidence(results []model.WebResult, query string) model.Assessment {
	if len(results) == 0 {
		return model.Assessment{
			Confidence:     0.0,
			Recommendation: model.RecommendAskClarification,
			Reason:         "no_web_results",
		}
	}

	totalContent := 0
	validURLs := 0
	for _, r := range results {
		totalContent += len(r.Snippet)
		if strings.Contains(r.URL, "http") {
			validURLs++
		}
	}
	relevant := hasRelevantContent(results, query)

	switch {
	case totalContent > 500 && validURLs > 0 && relevant:
		return model.Assessment{
			Confidence:     0.8,
			Recommendation: model.RecommendUseWeb,
			Reason:         "good_web_results",
		}
	case totalContent > 200 && relevant:
		return model.Assessment{
			Confidence:     0.6,
			Recommendation: model.RecommendUseWeb,
			Reason:         "moderate_web_results",
		}
	case totalContent > 100:
		return model.Assessment{
			Confidence:     0.4,
			Recommendation: model.RecommendUseWebWithCaution,
			Reason:         "basic_web_results",
		}
	default:
		return model.Assessment{
			Confidence:     0.2,
			Recommendation: model.RecommendAskClarification,
			Reason:         "poor_web_results",
		}
	}
}

// hasRelevantContent reports whether any result's content contains at least
// 30% of the query's meaningful words (longer than two characters).
func hasRelevantContent(results []model.WebResult, query string) bool {
	var queryWords []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if len(w) > 2 {
			queryWords = append(queryWords, w)
		}
	}
	if len(queryWords) == 0 {
		return false
	}

	for _, r := range results {
		content := strings.ToLower(r.Snippet)
		matching := 0
		for _, w := range queryWords {
			if strings.Contains(content, w) {
				matching++
			}
		}
		if float64(matching) >= float64(len(queryWords))*queryOverlapRatio {
			return true
		}
	}
	return false
}
