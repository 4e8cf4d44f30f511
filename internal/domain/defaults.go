package domain

// DefaultTable returns the built-in domain declarations. Deployments
// normally replace these via the domain configuration file; the defaults
// cover the two sports verticals the knowledge base ships with.
func DefaultTable() *Table {
	return &Table{
		Domains: []Domain{
			{
				Key:  "nba",
				Name: "NBA Basketball",
				Keywords: []string{
					"nba", "basketball", "lakers", "warriors", "celtics", "heat", "bulls", "knicks",
					"playoff", "finals", "championship", "draft", "trade", "player", "coach", "team",
					"lebron", "curry", "jordan", "kobe", "luka", "doncic", "giannis", "antetokounmpo",
					"tatum", "booker", "embiid", "jokic", "morant", "kawhi", "leonard", "harden",
					"durant", "westbrook", "butler", "lillard", "adebayo", "siakam", "towns",
					"points", "assists", "rebounds", "stats", "mvp", "rookie", "veteran",
					"season", "game", "conference", "eastern", "western", "division",
					"arena", "court", "hoops", "dunk", "shot", "three-pointer",
				},
				ExplicitIndicators: []string{
					"luka", "doncic", "giannis", "antetokounmpo", "lebron",
					"stephen curry", "steph", "tatum", "booker", "embiid", "jokic", "morant",
					"kawhi", "leonard", "harden", "durant", "westbrook", "paul george",
					"lillard", "adebayo",
					"lakers", "warriors", "celtics", "mavericks", "mavs", "bucks", "suns",
					"sixers", "nuggets", "grizzlies", "clippers", "blazers",
					"nba", "basketball", "playoff", "finals",
				},
				SourceTypes:      []string{"nba_data"},
				OverridePrefixes: []string{"NBA_ANALYST", "BASKETBALL"},
				Prefix:           "🏀 ",
				PriorityBoost:    1.2,
			},
			{
				Key:  "f1",
				Name: "Formula 1 Racing",
				Keywords: []string{
					"f1", "formula1", "formula 1", "racing", "ferrari", "mercedes", "redbull",
					"red bull", "mclaren", "aston martin", "alpine", "williams", "haas",
					"verstappen", "hamilton", "leclerc", "russell", "norris", "piastri",
					"alonso", "vettel", "sainz", "perez", "gasly", "ocon", "stroll", "bottas",
					"monaco", "silverstone", "monza", "spa", "suzuka", "interlagos", "bahrain",
					"qualifying", "pole position", "fastest lap", "pit stop", "drs",
					"championship", "constructor", "driver", "grand prix", "circuit", "track",
					"race", "lap", "sector", "tire", "tyre", "strategy", "podium", "points",
				},
				ExplicitIndicators: []string{
					"verstappen", "hamilton", "leclerc", "russell", "norris", "lando",
					"piastri", "alonso", "sainz", "perez", "gasly", "ocon",
					"ferrari", "mercedes", "red bull", "redbull", "mclaren", "aston martin",
					"alpine", "williams", "haas",
					"formula 1", "formula1", "f1", "grand prix", "qualifying", "pole position",
				},
				SourceTypes:      []string{"f1_data"},
				OverridePrefixes: []string{"F1_ANALYST", "RACING"},
				Prefix:           "🏎️ ",
				PriorityBoost:    1.2,
			},
		},
		AmbiguousTerms: []string{
			"stats", "performance", "results", "standings", "scores", "rankings",
			"season", "games", "matches", "data", "numbers", "info", "information",
			"updates", "latest",
		},
		ContextualTerms: []string{
			"updates", "update", "latest", "recent", "what happened", "how about",
			"tell me more",
		},
		FillerWords: []string{"tell", "me", "show", "give", "about", "the", "some", "any"},
	}
}
