package service

import (
	"fmt"
	"strings"

	"github.com/pulseline-ai/agent-backend/internal/domain"
)

// The clarification surface is a lookup matrix keyed by (query type, domain):
// an honest capability disclosure, pointers to authoritative sources, and a
// redirect toward questions the knowledge base can answer.

type redirectTemplate struct {
	disclosure   string
	alternatives []string
}

var redirectTemplates = map[QueryType]redirectTemplate{
	QueryTypeCurrentStats: {
		disclosure: "I don't have access to current season statistics that update in real-time.",
		alternatives: []string{
			"Historical achievements and records",
			"How the scoring and standings systems work",
			"Backgrounds and career highlights",
			"Championship history and memorable moments",
		},
	},
	QueryTypeHistoricalStats: {
		disclosure: "I don't have the detailed historical statistics you're asking about in my knowledge base.",
		alternatives: []string{
			"General historical context and storylines",
			"How eras and rule changes shaped the sport",
			"Famous records and who holds them",
		},
	},
	QueryTypeNewsEvents: {
		disclosure: "I don't have access to breaking news or very recent events.",
		alternatives: []string{
			"Background on the people and teams involved",
			"Historical precedents for similar events",
			"How the season structure works",
		},
	},
	QueryTypeSchedule: {
		disclosure: "I don't have access to live schedules or fixture calendars.",
		alternatives: []string{
			"How the season calendar is typically structured",
			"Background on the venues",
			"What to watch for in upcoming matchups",
		},
	},
	QueryTypeComparison: {
		disclosure: "I don't have enough verified data to make that comparison responsibly.",
		alternatives: []string{
			"Career overviews of each side",
			"What analysts typically weigh in such comparisons",
			"Head-to-head history where my knowledge base covers it",
		},
	},
	QueryTypePrediction: {
		disclosure: "I can't predict results, and I don't offer betting or wagering advice.",
		alternatives: []string{
			"Current form and historical performance context",
			"Factors that typically decide such contests",
			"How past matchups between these sides played out",
		},
	},
	QueryTypeGeneral: {
		disclosure: "I don't have enough information in my knowledge base to answer that well.",
		alternatives: []string{
			"Historical facts and records",
			"Rules and how things work",
			"Background on teams and athletes",
		},
	},
}

// domainSources maps a domain key to its authoritative external sources.
// The empty key is the general-sports fallback.
var domainSources = map[string][]string{
	"f1": {
		"Formula1.com - official standings, driver stats, and race results",
		"ESPN F1 - current season analysis",
		"Team websites for detailed team data",
	},
	"nba": {
		"NBA.com - official stats, standings, and player performance",
		"ESPN.com - current season analysis and team breakdowns",
		"Basketball-Reference.com - detailed statistical history",
	},
	"": {
		"ESPN.com - comprehensive current sports coverage",
		"Official league websites - most accurate current data",
		"Team websites - direct from the source",
	},
}

// redirectContent renders the redirect body for the given query type and
// domain. Unknown domains fall back to the general source list.
func redirectContent(qt QueryType, domainKey string, table *domain.Table) string {
	tmpl, ok := redirectTemplates[qt]
	if !ok {
		tmpl = redirectTemplates[QueryTypeGeneral]
	}
	sources, ok := domainSources[domainKey]
	if !ok {
		sources = domainSources[""]
	}

	prefix := "📊 "
	if table != nil {
		if d := table.ByKey(domainKey); d != nil && d.Prefix != "" {
			prefix = d.Prefix
		}
	}

	var sb strings.Builder
	sb.WriteString(tmpl.disclosure)
	sb.WriteString("\n\nFor the most up-to-date information, I'd recommend:\n")
	for _, s := range sources {
		fmt.Fprintf(&sb, "%s**%s**\n", prefix, s)
	}
	sb.WriteString("\nAlternatively, I can help you with:\n")
	for _, a := range tmpl.alternatives {
		sb.WriteString("• ")
		sb.WriteString(a)
		sb.WriteString("\n")
	}
	sb.WriteString("\nWhat would you like to explore instead?")
	return sb.String()
}
