package search

import (
	"strings"
)

// domain terms count double, they mark an article as actually about the field
var domainKeywords = []string{
	"synthetic biology", "genetic engineering",
	"crispr", "gene editing", "bioengineering", "biotechnology",
	"metabolic engineering", "synthetic genome", "synthetic cell",
}

// novelty terms count single, they mark an article as recent work
var noveltyKeywords = []string{
	"breakthrough", "discovery", "novel", "new", "advance",
	"innovation", "development", "progress", "achievement",
}

// keywordTerms are the tags attached to stored articles
var keywordTerms = []string{
	"synthetic biology", "crispr", "gene editing", "bioengineering",
	"genetic engineering", "metabolic engineering", "synthetic genome",
}

// Score rates how relevant an article is to the newsletter on a 0-10 scale.
// Every domain keyword occurrence in title+content adds 2, every novelty
// keyword occurrence adds 1, the total is clamped to [0, 10].
func Score(title, content string) float64 {
	text := strings.ToLower(title + " " + content)

	score := 0.0
	for _, keyword := range domainKeywords {
		score += float64(strings.Count(text, keyword)) * 2
	}
	for _, keyword := range noveltyKeywords {
		score += float64(strings.Count(text, keyword))
	}

	if score > 10 {
		return 10
	}
	if score < 0 {
		return 0
	}
	return score
}

// ExtractKeywords returns the known domain terms present in the text
func ExtractKeywords(text string) []string {
	lower := strings.ToLower(text)
	keywords := []string{}
	for _, term := range keywordTerms {
		if strings.Contains(lower, term) {
			keywords = append(keywords, term)
		}
	}
	return keywords
}
