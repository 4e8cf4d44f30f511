package service

import (
	"strings"

	"github.com/pulseline-ai/agent-backend/internal/model"
)

const (
	// minFormatLength is the response size below which no paragraph
	// formatting is attempted.
	minFormatLength = 50
	// paragraphChars is the rough paragraph size before a break is allowed.
	paragraphChars = 120
)

// FormatParagraphs regroups a response into short paragraphs: a break after
// two sentences once ~120 characters accumulate, or after three sentences
// regardless.
func FormatParagraphs(text string) string {
	if len(text) <= minFormatLength {
		return text
	}
	sentences := splitSentences(text)
	if len(sentences) <= 1 {
		return text
	}

	var paragraphs []string
	var current []string
	currentLen := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		paragraphs = append(paragraphs, strings.Join(current, " "))
		current = nil
		currentLen = 0
	}

	for _, s := range sentences {
		current = append(current, s)
		currentLen += len(s)
		if (len(current) >= 2 && currentLen >= paragraphChars) || len(current) >= 3 {
			flush()
		}
	}
	flush()

	return strings.Join(paragraphs, "\n\n")
}

// AppendWebCitations adds a plain-text sources block when web results with
// real URLs contributed to the response.
func AppendWebCitations(content string, results []model.WebResult) string {
	var citations []string
	for _, r := range results {
		if !strings.Contains(r.URL, "http") || r.URL == model.NoSourceURL {
			continue
		}
		citations = append(citations, "• "+r.Title+": "+r.URL)
	}
	if len(citations) == 0 {
		return content
	}
	return content + "\n\n**Sources:**\n" + strings.Join(citations, "\n")
}

// contextualIndicators mark a query as a follow-up whose retrieval benefits
// from terms carried over from the recent conversation.
var contextualIndicators = []string{
	"updates", "update", "latest", "recent", "new", "this", "that", "it",
}

// EnhanceContextualQuery appends up to three domain keywords found in the
// conversation context to a follow-up query, so retrieval and web search see
// what "it" refers to. The raw query is still used for assessment and the
// final prompt.
func EnhanceContextualQuery(query, conversationContext string, keywords []string) (string, bool) {
	if conversationContext == "" {
		return query, false
	}
	lower := strings.ToLower(query)
	contextual := false
	for _, ind := range contextualIndicators {
		if strings.Contains(lower, ind) {
			contextual = true
			break
		}
	}
	if !contextual {
		return query, false
	}

	convo := strings.ToLower(conversationContext)
	var carried []string
	for _, kw := range keywords {
		if strings.Contains(convo, strings.ToLower(kw)) {
			carried = append(carried, kw)
			if len(carried) == 3 {
				break
			}
		}
	}
	if len(carried) == 0 {
		return query, false
	}
	return query + " " + strings.Join(carried, " "), true
}
