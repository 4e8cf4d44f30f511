package service

import (
	"regexp"
	"strings"
)

// The intent detectors below are configuration data in spirit: the pattern
// lists mirror the production routing tables and can be replaced wholesale
// without touching the assessors that consume them.

// statPatterns flag queries that ask for specific figures the knowledge base
// may not hold: averages, results, standings, schedules, comparisons,
// recommendations, predictions.
var statPatterns = compileAll([]string{
	`averaged?\s+\d+[\.\d]*\s*\+?\s*(ppg|rpg|apg|points|rebounds|assists)`,
	`scored?\s+\d+[\.\d]*\s*\+?\s*(points|goals)`,
	`list\s+all\s+.*players?\s+who\s+averaged?`,
	`how\s+many\s+.*games?\s+did\s+.*\s+have`,
	`what\s+was\s+.*\s+average\s+in\s+\d{4}`,
	`stats?\s+for\s+.*\s+in\s+\d{4}`,
	`season\s+stats?\s+for`,
	`career\s+stats?\s+for`,
	`playoff\s+stats?\s+for`,
	`specific\s+(date|data|statistics|stats|numbers|figures|info|information)`,
	`exact\s+(date|data|statistics|stats|numbers|figures|info|information)`,
	`precise\s+(date|data|statistics|stats|numbers|figures|info|information)`,
	`detailed\s+(date|data|statistics|stats|numbers|figures|info|information)`,
	`current\s+(date|data|statistics|stats|numbers|figures|standings|results)`,
	`latest\s+(date|data|statistics|stats|numbers|figures|standings|results)`,
	`recent\s+(date|data|statistics|stats|numbers|figures|standings|results)`,
	`when\s+(did|was|were)\s+.*\s+(happen|occur|take place)`,
	`what\s+(date|time|year|month|day)`,
	`(show|give|tell)\s+me\s+.*\s+(date|data|statistics|stats|numbers)`,
	`how\s+(many|much)\s+.*\s+(points|goals|wins|losses|games)`,
	`which\s+.*\s+(scored|had|achieved|won)\s+.*\s+(points|goals|games)`,
	`(schedule|fixture|calendar)\s+for`,
	`(results|scores|standings)\s+(from|for|of)`,
	`(performance|record)\s+(in|during|for)\s+\d{4}`,
	`specifics?\s+on`,
	`details?\s+(about|on)`,
	`breakdown\s+(of|for)`,
	`analysis\s+(of|for)`,
	`(give|provide|suggest|offer)\s+.*recommendations?`,
	`recommendations?\s+(for|about|on)`,
	`(predictions?|forecast|predict)\s+(for|about|on)`,
	`who\s+(will|should|might)\s+(win|lose)`,
	`odds\s+(for|on|of)`,
	`(race|game|match)\s+(today|tomorrow|tonight)`,
	`schedule\s+(for|this)\s+(week|weekend|today|tomorrow)`,
	`(current|upcoming|next)\s+(race|game|match)`,
})

// careerPatterns flag career-total asks ("how many total podiums ...").
var careerPatterns = compileAll([]string{
	`how\s+many.*total`,
	`total.*finishes`,
	`total.*wins`,
	`total.*championships`,
	`total.*podiums`,
	`career.*total`,
	`all.*time`,
	`overall.*record`,
	`lifetime.*statistics`,
	`how\s+many.*\bdoes\b.*\bhave\b`,
	`how\s+many.*\bhas\b.*\bhad\b`,
	`how\s+many.*championships.*\bhas\b`,
	`what\s+is.*total.*number`,
	`total.*race.*wins`,
})

// seasonPatterns flag season-specific asks (a concrete year or season ref).
var seasonPatterns = compileAll([]string{
	`\b(19|20)\d{2}\b`,
	`that\s+season`,
	`this\s+season`,
	`last\s+season`,
})

var (
	yearToken   = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	dateToken   = regexp.MustCompile(`\d{4}[-/]\d{1,2}[-/]\d{1,2}|\d{1,2}[-/]\d{1,2}[-/]\d{4}|\b(19|20)\d{2}\b`)
	numberToken = regexp.MustCompile(`\d+\.?\d*\s*(points|goals|wins|losses|games|%|percent|podiums?|finishes?)`)
)

// careerKeywords mark chunk content as covering career-wide totals.
var careerKeywords = []string{"career", "total", "all-time", "overall", "lifetime"}

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

func matchesAny(patterns []*regexp.Regexp, lower string) bool {
	for _, re := range patterns {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}

// IsStatisticalQuery reports whether the query asks for specific data.
func IsStatisticalQuery(query string) bool {
	return matchesAny(statPatterns, strings.ToLower(query))
}

// IsCareerQuery reports whether the query asks for career-wide totals
// without pinning a specific season. A query naming both is treated as
// season-specific.
func IsCareerQuery(query string) bool {
	lower := strings.ToLower(query)
	return matchesAny(careerPatterns, lower) && !matchesAny(seasonPatterns, lower)
}

// IsSmallTalk reports whether the query is a short conversational turn with
// no data ask. Small talk never warrants a web search or a clarification
// redirect.
func IsSmallTalk(query string) bool {
	return len(strings.Fields(query)) <= 4 && !IsStatisticalQuery(query)
}

// QueryType buckets a query for the clarification redirect matrix.
type QueryType string

const (
	QueryTypeCurrentStats    QueryType = "current_stats"
	QueryTypeHistoricalStats QueryType = "historical_stats"
	QueryTypeNewsEvents      QueryType = "news_events"
	QueryTypeSchedule        QueryType = "schedule"
	QueryTypeComparison      QueryType = "comparison"
	QueryTypePrediction      QueryType = "prediction"
	QueryTypeGeneral         QueryType = "general"
)

var queryTypeTable = []struct {
	qtype    QueryType
	patterns []*regexp.Regexp
}{
	{QueryTypeCurrentStats, compileAll([]string{
		`this\s+(season|year)`, `current.*stats`, `how\s+many.*this`,
		`standings.*now`, `right\s+now`, `so\s+far\s+this`, `currently`,
	})},
	{QueryTypeHistoricalStats, compileAll([]string{
		`\b(19|20)\d{2}\b`, `back\s+in`, `used\s+to`, `career.*stats`,
		`all.*time.*record`, `throughout.*career`, `historically`,
	})},
	{QueryTypeNewsEvents, compileAll([]string{
		`what.*happened`, `latest.*news`, `recently`, `last.*race`,
		`got.*traded`, `signed.*with`, `just.*announced`, `yesterday`, `this.*week`,
	})},
	{QueryTypeSchedule, compileAll([]string{
		`when.*next`, `schedule\s+for`, `what.*time`, `upcoming.*games`,
		`when.*is.*the`, `what.*day`, `tomorrow.*race`, `this.*weekend`,
	})},
	{QueryTypeComparison, compileAll([]string{
		`better.*than`, `vs\.?`, `versus`, `compare.*to`, `who.*best`,
		`which.*is.*better`, `stronger.*than`, `faster.*than`,
	})},
	{QueryTypePrediction, compileAll([]string{
		`who.*will.*win`, `predict`, `odds\s+(for|on)`, `chances\s+of`,
		`going.*to.*win`, `likely.*to`, `think.*will`,
	})},
}

// ClassifyQueryType buckets the query for redirect template selection.
// First matching bucket wins; the order encodes specificity.
func ClassifyQueryType(query string) QueryType {
	lower := strings.ToLower(query)
	for _, row := range queryTypeTable {
		if matchesAny(row.patterns, lower) {
			return row.qtype
		}
	}
	return QueryTypeGeneral
}
