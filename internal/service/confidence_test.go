package service

import (
	"reflect"
	"strings"
	"testing"

	"github.com/pulseline-ai/agent-backend/internal/model"
)

func TestAssessWebConfidence_NoResults(t *testing.T) {
	got := AssessWebConfidence(nil, "who won the race")

	if got.Confidence != 0.0 {
		t.Errorf("Confidence = %v, want 0.0", got.Confidence)
	}
	if got.Recommendation != model.RecommendAskClarification {
		t.Errorf("Recommendation = %q, want ask_for_clarification", got.Recommendation)
	}
}

func TestAssessWebConfidence_GoodResults(t *testing.T) {
	results := []model.WebResult{
		{
			Title:   "Race report",
			Snippet: strings.Repeat("The race winner crossed the line first after a dramatic final lap. ", 10),
			URL:     "https://example.com/report",
		},
	}

	got := AssessWebConfidence(results, "who won the race")

	if got.Confidence != 0.8 {
		t.Errorf("Confidence = %v, want 0.8", got.Confidence)
	}
	if got.Recommendation != model.RecommendUseWeb {
		t.Errorf("Recommendation = %q, want use_web_results", got.Recommendation)
	}
}

func TestAssessWebConfidence_ModerateResults(t *testing.T) {
	results := []model.WebResult{
		{
			Title:   "Summary",
			Snippet: "The race winner was decided on the final lap after the leaders collided. The stewards reviewed the incident, and the race result stood as the winner celebrated a famous victory in front of the home crowd.",
			URL:     model.NoSourceURL,
		},
	}

	got := AssessWebConfidence(results, "who won the race")

	if got.Confidence != 0.6 {
		t.Errorf("Confidence = %v, want 0.6", got.Confidence)
	}
	if got.Recommendation != model.RecommendUseWeb {
		t.Errorf("Recommendation = %q, want use_web_results", got.Recommendation)
	}
}

func TestAssessWebConfidence_ThinButPresent(t *testing.T) {
	results := []model.WebResult{
		{
			Title:   "Note",
			Snippet: "Unrelated page content with nothing matching the terms of the question but over the size floor anyway.",
			URL:     "https://example.com",
		},
	}

	got := AssessWebConfidence(results, "who won the race")

	if got.Confidence != 0.4 {
		t.Errorf("Confidence = %v, want 0.4", got.Confidence)
	}
	if got.Recommendation != model.RecommendUseWebWithCaution {
		t.Errorf("Recommendation = %q, want use_web_results_with_caution", got.Recommendation)
	}
}

func TestAssessWebConfidence_Poor(t *testing.T) {
	got := AssessWebConfidence([]model.WebResult{{Title: "x", Snippet: "tiny", URL: ""}}, "who won the race")

	if got.Confidence != 0.2 {
		t.Errorf("Confidence = %v, want 0.2", got.Confidence)
	}
	if got.Recommendation != model.RecommendAskClarification {
		t.Errorf("Recommendation = %q, want ask_for_clarification", got.Recommendation)
	}
}

func TestAssessWebConfidence_Deterministic(t *testing.T) {
	results := []model.WebResult{{Title: "a", Snippet: "the race winner was announced", URL: "https://x"}}
	first := AssessWebConfidence(results, "who won the race")
	second := AssessWebConfidence(results, "who won the race")
	if !reflect.DeepEqual(first, second) {
		t.Errorf("assessments differ: %+v vs %+v", first, second)
	}
}

func TestValidateAssessment(t *testing.T) {
	got := model.ValidateAssessment(model.Assessment{Confidence: 1.7, Recommendation: "nonsense"})

	if got.Recommendation != model.RecommendBasicResponse {
		t.Errorf("Recommendation = %q, want basic_response", got.Recommendation)
	}
	if got.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0", got.Confidence)
	}

	clamped := model.ValidateAssessment(model.Assessment{Confidence: -0.3, Recommendation: model.RecommendUseRAG})
	if clamped.Confidence != 0 {
		t.Errorf("Confidence = %v, want clamped to 0", clamped.Confidence)
	}
}
