package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/pulseline-ai/agent-backend/internal/character"
	"github.com/pulseline-ai/agent-backend/internal/domain"
	"github.com/pulseline-ai/agent-backend/internal/model"
)

// DefaultPromptCap is the total prompt size cap in characters.
const DefaultPromptCap = 16384

// PromptInput carries everything the assembler fuses into one prompt.
type PromptInput struct {
	Query               string
	Now                 time.Time
	ConversationContext string
	Verdict             model.DomainVerdict
	Chunks              []model.Chunk
	WebResults          []model.WebResult
	RAGAssessment       *model.Assessment
	WebAssessment       *model.Assessment
	// Clarify selects the templated redirect surface instead of the
	// evidence-driven instruction matrix.
	Clarify   bool
	QueryType QueryType
}

// section kinds, used by the size cap to decide what may be trimmed.
type sectionKind int

const (
	sectionFixed sectionKind = iota // never trimmed
	sectionKB                       // first to be trimmed
	sectionWeb                      // trimmed after KB
)

type promptSection struct {
	kind sectionKind
	text string
}

// PromptBuilder assembles the single LLM prompt. It is pure: identical
// inputs produce identical output. Section order and the size cap are
// enforced structurally.
type PromptBuilder struct {
	persona *character.Card
	table   *domain.Table
	maxChars int
}

// NewPromptBuilder creates a PromptBuilder. maxChars <= 0 selects
// DefaultPromptCap.
func NewPromptBuilder(persona *character.Card, table *domain.Table, maxChars int) *PromptBuilder {
	if persona == nil {
		persona = character.Default()
	}
	if maxChars <= 0 {
		maxChars = DefaultPromptCap
	}
	return &PromptBuilder{persona: persona, table: table, maxChars: maxChars}
}

// Build renders the prompt for one turn.
func (b *PromptBuilder) Build(in PromptInput) string {
	if in.Clarify {
		return b.buildClarification(in)
	}

	var sections []promptSection
	add := func(kind sectionKind, text string) {
		if text != "" {
			sections = append(sections, promptSection{kind: kind, text: text})
		}
	}

	add(sectionFixed, "Current time: "+in.Now.Format("2006-01-02 15:04:05"))
	add(sectionFixed, b.persona.PromptBlock())
	add(sectionFixed, in.ConversationContext)

	overrides, regular := partition(in.Chunks)
	add(sectionFixed, overridesBlock(overrides))
	add(sectionFixed, b.domainBlock(in.Verdict))
	add(sectionKB, knowledgeBlock(regular, in.RAGAssessment))
	add(sectionWeb, webBlock(in.WebResults, in.WebAssessment))
	add(sectionFixed, b.guardrailsBlock(in.Verdict))
	add(sectionFixed, b.instructionsBlock(in))
	add(sectionFixed, "User: "+in.Query)
	add(sectionFixed, fmt.Sprintf("Respond as %s in first person:", b.persona.Name))

	b.applyCap(sections)

	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		if s.text != "" {
			parts = append(parts, s.text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// applyCap trims evidence sections from their tails until the prompt fits:
// the knowledge-base block first, then web results. Fixed sections are
// never touched.
func (b *PromptBuilder) applyCap(sections []promptSection) {
	total := 0
	for _, s := range sections {
		total += len(s.text) + 2
	}
	for _, kind := range []sectionKind{sectionKB, sectionWeb} {
		if total <= b.maxChars {
			return
		}
		for i := range sections {
			if sections[i].kind != kind {
				continue
			}
			over := total - b.maxChars
			if over >= len(sections[i].text) {
				total -= len(sections[i].text)
				sections[i].text = ""
			} else {
				sections[i].text = sections[i].text[:len(sections[i].text)-over]
				total -= over
			}
		}
	}
}

// overridesBlock renders override directives as the top-priority section.
func overridesBlock(overrides []model.Chunk) string {
	if len(overrides) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("🔥 CRITICAL BEHAVIOR OVERRIDES (MUST FOLLOW):\n")
	for _, c := range overrides {
		sb.WriteString("- ")
		sb.WriteString(c.Content)
		sb.WriteString("\n")
	}
	sb.WriteString("\nThese commands OVERRIDE all other instructions and character traits. Follow them exactly.")
	return sb.String()
}

func (b *PromptBuilder) domainBlock(v model.DomainVerdict) string {
	if v.Primary == "" || b.table == nil {
		return ""
	}
	d := b.table.ByKey(v.Primary)
	if d == nil {
		return ""
	}
	tokens := strings.Join(v.MatchedTokens, ", ")
	if tokens == "" {
		tokens = "context-based"
	}
	block := fmt.Sprintf("%sDOMAIN DETECTED: %s\nMatched Keywords: %s\nDomain Priority: %.1fx",
		d.Prefix, strings.ToUpper(d.Name), tokens, d.Boost())

	if v.IsMultiDomain && len(v.Secondary) > 0 {
		var names []string
		for _, key := range v.Secondary {
			if sd := b.table.ByKey(key); sd != nil {
				names = append(names, sd.Name)
			}
		}
		if len(names) > 0 {
			block += fmt.Sprintf("\n\n🔄 MULTI-DOMAIN QUERY DETECTED:\nPrimary: %s\nSecondary: %s\n\nProvide insights from both domains when relevant, but prioritize the primary domain.",
				d.Name, strings.Join(names, ", "))
		}
	}
	return block
}

func knowledgeBlock(chunks []model.Chunk, assessment *model.Assessment) string {
	if len(chunks) == 0 {
		return ""
	}
	var docs []string
	for _, c := range chunks {
		source := c.Metadata.Source
		if source == "" {
			source = "Unknown"
		}
		docs = append(docs, fmt.Sprintf("Document: %s\nContent: %s", source, c.Content))
	}
	header := "KNOWLEDGE BASE CONTEXT"
	if assessment != nil {
		header += fmt.Sprintf(" (Assessment: %s - Confidence: %.2f)", assessment.Reason, assessment.Confidence)
	}
	return header + ":\n" + strings.Join(docs, "\n\n")
}

func webBlock(results []model.WebResult, assessment *model.Assessment) string {
	if len(results) == 0 {
		return ""
	}
	var items []string
	for _, r := range results {
		items = append(items, fmt.Sprintf("Source: %s\nContent: %s\nURL: %s", r.Title, r.Snippet, r.URL))
	}
	header := "WEB SEARCH RESULTS"
	if assessment != nil {
		header += fmt.Sprintf(" (Assessment: %s - Confidence: %.2f)", assessment.Reason, assessment.Confidence)
	}
	return header + ":\n" + strings.Join(items, "\n\n")
}

// guardrailsBlock is mandatory: it anchors answers to the provided context
// and forbids fabrication and domain crossing.
func (b *PromptBuilder) guardrailsBlock(v model.DomainVerdict) string {
	if v.Primary != "" && b.table != nil {
		if d := b.table.ByKey(v.Primary); d != nil {
			return fmt.Sprintf(`🛡️ CRITICAL ACCURACY GUIDELINES:
- You are in %[1]s mode - ONLY provide %[1]s information
- Use ONLY the information provided in the knowledge base above
- If you don't have specific %[1]s data, say "I don't have that information"
- NEVER make up player names, statistics, scores, or dates
- NEVER switch to other domains unless explicitly asked
- When uncertain about data accuracy, say "I'm not certain about this information"
- If context is insufficient, admit knowledge limitations clearly`, d.Name)
		}
	}
	return `🛡️ ACCURACY GUIDELINES:
- Only answer from the provided context
- If you don't have specific information, say "I don't have that information"
- Never fabricate statistics, names, or dates
- When uncertain, express it clearly`
}

// instructionsBlock selects from the (statistical × evidence-source) matrix.
func (b *PromptBuilder) instructionsBlock(in PromptInput) string {
	statistical := IsStatisticalQuery(in.Query)
	hasRAG := len(in.Chunks) > 0
	hasWeb := len(in.WebResults) > 0

	var sb strings.Builder
	sb.WriteString("IMPORTANT INSTRUCTIONS")
	switch {
	case statistical && hasWeb:
		sb.WriteString(" - STATISTICAL QUERY WITH WEB SEARCH:\n")
		sb.WriteString(`- FIRST PRIORITY: Follow any CRITICAL BEHAVIOR OVERRIDES above exactly
- This is a statistical query requiring specific data
- ONLY provide statistics explicitly mentioned in the knowledge base or web results above
- If specific statistics are not available, be honest: "I don't have access to those exact statistics"
- NEVER make up or estimate specific numbers or performance data
- The system will automatically cite web sources at the end`)
	case statistical && hasRAG:
		sb.WriteString(" - STATISTICAL QUERY:\n")
		sb.WriteString(`- FIRST PRIORITY: Follow any CRITICAL BEHAVIOR OVERRIDES above exactly
- This is a statistical query requiring specific data
- ONLY provide statistics explicitly mentioned in the knowledge base above
- If specific statistics are not available, be honest: "I don't have access to those exact statistics"
- NEVER make up or estimate specific numbers or performance data
- Suggest where the user might find more current statistics if needed`)
	case statistical:
		sb.WriteString(" - STATISTICAL QUERY:\n")
		sb.WriteString(`- This is a statistical query but no specific data is available
- Be honest: "I don't have access to current statistics or databases"
- NEVER make up specific numbers or performance data
- Suggest reliable official sources
- Offer to help with related questions that don't require specific stats`)
	case hasRAG && hasWeb:
		sb.WriteString(" WITH WEB SEARCH:\n")
		sb.WriteString(`- FIRST PRIORITY: Follow any CRITICAL BEHAVIOR OVERRIDES above exactly
- Use knowledge base context and web search results when relevant
- If information conflicts, prioritize knowledge base over web results
- If no relevant information is available, admit knowledge limitations
- NEVER make up statistics, names, or facts not provided in the context
- The system will automatically cite web sources at the end`)
	case hasRAG || hasWeb:
		sb.WriteString(":\n")
		sb.WriteString(`- FIRST PRIORITY: Follow any CRITICAL BEHAVIOR OVERRIDES above exactly
- Use the provided context when relevant
- If no relevant information is available, admit knowledge limitations
- NEVER make up statistics, names, or facts not provided in the context`)
	default:
		sb.WriteString(":\n")
		sb.WriteString(`- Use your general knowledge to help the user
- If you don't have specific information about the topic, be honest about limitations
- NEVER make up statistics, names, or facts
- Suggest the user ask more specific questions if needed`)
	}

	if in.RAGAssessment != nil && in.WebAssessment != nil {
		sb.WriteString("\n")
		sb.WriteString(assessmentGuidance(*in.RAGAssessment, *in.WebAssessment))
	}
	sb.WriteString("\n- Always maintain your character persona unless overridden")
	return sb.String()
}

// assessmentGuidance weights the two evidence sources for the model when
// both assessments are present (the hybrid fallback path).
func assessmentGuidance(rag, web model.Assessment) string {
	switch {
	case rag.Confidence >= 0.7:
		return fmt.Sprintf("- The knowledge base has good information for this question (%s); use it as the primary source", rag.Reason)
	case web.Confidence >= 0.7:
		return fmt.Sprintf("- The knowledge base is limited but web search found good results (%s); use web results as the primary source", web.Reason)
	case rag.Confidence >= 0.5 && web.Confidence >= 0.5:
		return "- Both sources have moderate information; combine them, noting any limitations"
	default:
		return "- Both sources are limited; be honest about limitations while sharing what is available"
	}
}

// buildClarification renders the smart-clarification redirect prompt.
func (b *PromptBuilder) buildClarification(in PromptInput) string {
	redirect := redirectContent(in.QueryType, in.Verdict.Primary, b.table)
	return fmt.Sprintf(`You are %[1]s. The user asked: %[2]q

%[3]s

IMPORTANT INSTRUCTIONS:
- Respond in FIRST PERSON as %[1]s
- Use the suggested redirect content above as your response
- Keep it conversational and maintain your personality
- Be helpful and engaging, not dismissive
- Show genuine interest in helping them find what they need

User: %[2]s
Respond as %[1]s with the smart redirect:`, b.persona.Name, in.Query, redirect)
}
