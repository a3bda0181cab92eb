package digest

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/genewire/genewire/pkg/repository"
)

// ArticleSummary is one article's summary recovered from a digest text
type ArticleSummary struct {
	ArticleID int64
	Title     string
	Source    string
	Published time.Time
	Summary   string
}

// block boundaries in the digest text, primary form is "Title: summary",
// fallback is a numbered list "1. Title: summary"
var (
	titleLineRe    = regexp.MustCompile(`^([A-Z][^:\n]{0,200}):\s*(.*)$`)
	numberedLineRe = regexp.MustCompile(`^\d+\.\s*([^:\n]+):\s*(.*)$`)
)

// minimum summary length kept at parse time, shorter fragments are noise
const minParsedSummaryLen = 20

// Extractor recovers per-article summaries from the day's combined digest
// text so comparison sessions can reuse them without extra API calls
type Extractor struct{}

// NewExtractor creates a summary extractor
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractSummaries parses the digest text into per-article summaries.
// Tries the "Title: summary" block form first, then the numbered-list form.
func (e *Extractor) ExtractSummaries(digestText string) []ArticleSummary {
	summaries := e.parseBlocks(digestText, titleLineRe)
	if len(summaries) == 0 {
		summaries = e.parseBlocks(digestText, numberedLineRe)
	}
	return summaries
}

// parseBlocks scans line by line, a line matching the block pattern starts a
// new block and following non-matching lines extend the current summary
func (e *Extractor) parseBlocks(text string, startRe *regexp.Regexp) []ArticleSummary {
	var summaries []ArticleSummary
	var title string
	var summary strings.Builder

	flush := func() {
		s := strings.TrimSpace(summary.String())
		if title != "" && len(s) > minParsedSummaryLen {
			summaries = append(summaries, ArticleSummary{Title: title, Summary: s})
		}
		title = ""
		summary.Reset()
	}

	for _, line := range strings.Split(text, "\n") {
		if m := startRe.FindStringSubmatch(line); m != nil {
			flush()
			title = strings.TrimSpace(m[1])
			summary.WriteString(strings.TrimSpace(m[2]))
			continue
		}
		if title != "" {
			if summary.Len() > 0 {
				summary.WriteString(" ")
			}
			summary.WriteString(strings.TrimSpace(line))
		}
	}
	flush()

	return summaries
}

// ValidateExtraction reports whether the extraction is good enough to build a
// comparison session from. Requires at least 3 summaries, and at least 80%
// (rounded up) of them must have a meaningful title and a 50-500 char summary.
func (e *Extractor) ValidateExtraction(summaries []ArticleSummary) bool {
	if len(summaries) < 3 {
		return false
	}

	valid := 0
	for _, s := range summaries {
		if len(s.Title) > 5 && len(s.Summary) > 50 && len(s.Summary) < 500 {
			valid++
		}
	}

	required := int(math.Ceil(float64(len(summaries)) * 0.8))
	return valid >= required
}

// MapToArticles attaches extracted summaries to stored articles by title
// similarity. A summary is kept only when its best match clears 0.6.
func (e *Extractor) MapToArticles(summaries []ArticleSummary, articles []repository.Article) []ArticleSummary {
	var mapped []ArticleSummary
	for _, s := range summaries {
		var best *repository.Article
		bestScore := 0.0
		for i := range articles {
			if score := titleSimilarity(s.Title, articles[i].Title); score > bestScore {
				best = &articles[i]
				bestScore = score
			}
		}

		if best == nil || bestScore <= 0.6 {
			continue
		}

		s.ArticleID = best.ID
		s.Source = best.Source
		s.Published = best.Published
		mapped = append(mapped, s)
	}
	return mapped
}

// titleSimilarity is the share of words the titles have in common relative to
// the longer title
func titleSimilarity(title1, title2 string) float64 {
	words1 := strings.Fields(strings.ToLower(title1))
	words2 := strings.Fields(strings.ToLower(title2))
	if len(words1) == 0 || len(words2) == 0 {
		return 0
	}

	set2 := make(map[string]bool, len(words2))
	for _, w := range words2 {
		set2[w] = true
	}

	common := 0
	for _, w := range words1 {
		if set2[w] {
			common++
		}
	}

	total := len(words1)
	if len(words2) > total {
		total = len(words2)
	}
	return float64(common) / float64(total)
}
