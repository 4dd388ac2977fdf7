package parser

import "strings"

// bankIndicator pairs a bank's display name with its detection keywords
// (Chinese full names, abbreviations, English brand names).
type bankIndicator struct {
	name     string
	keywords []string
}

// Declaration order doubles as the tie-break order: when two banks score the
// same number of keyword hits, the earlier entry wins. Keep this list in sync
// with the selector's parser order.
var bankIndicators = []bankIndicator{
	{name: "CTBC", keywords: []string{"中國信託", "CTBC", "中信", "Chinatrust"}},
	{name: "Cathay United Bank", keywords: []string{"國泰世華", "Cathay", "CUB", "世華"}},
	{name: "Taishin Bank", keywords: []string{"台新", "Taishin", "TSBank", "Richart"}},
}

// DetectBank scores each known bank by counting case-insensitive keyword
// occurrences in the text and returns the best match, or "" when no keyword
// of any bank appears.
func DetectBank(text string) string {
	lower := strings.ToLower(text)

	best := ""
	bestScore := 0
	for _, bank := range bankIndicators {
		score := 0
		for _, kw := range bank.keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				score++
			}
		}
		if score > bestScore {
			best = bank.name
			bestScore = score
		}
	}
	return best
}
