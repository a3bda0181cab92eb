package email

import (
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/genewire/genewire/pkg/repository"
)

// sanitizer strips anything dangerous from model-generated text before it is
// embedded in the email body
var sanitizer = bluemonday.UGCPolicy()

// buildDigestHTML renders the digest email for one recipient. Feedback and
// comparison links carry the recipient id so votes can be attributed.
func buildDigestHTML(summary *repository.DailySummary, articles []repository.Article, recipient repository.Recipient, baseURL string) string {
	var sb strings.Builder

	sb.WriteString(`<!DOCTYPE html><html><head><meta charset="utf-8"><style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 640px; margin: 0 auto; padding: 20px; color: #333; line-height: 1.6; }
h1 { color: #1a1a2e; border-bottom: 2px solid #4a9eff; padding-bottom: 10px; }
h2 { color: #16213e; }
.overview { background: #f0f4f8; padding: 15px; border-radius: 8px; margin-bottom: 20px; }
.summary { background: #fdf6ec; padding: 15px; border-left: 4px solid #4a9eff; border-radius: 0 8px 8px 0; white-space: pre-line; }
.article { border: 1px solid #ddd; border-radius: 8px; padding: 15px; margin-bottom: 15px; }
.article h3 { margin-top: 0; color: #0f3460; }
.meta { color: #666; font-size: 0.9em; margin-bottom: 10px; }
.feedback { margin-top: 10px; font-size: 14px; }
.feedback a { margin-left: 8px; font-size: 20px; text-decoration: none; }
.footer { text-align: center; margin-top: 30px; color: #888; font-size: 13px; }
</style></head><body>`)

	sb.WriteString("<h1>Synthetic Biology Daily Digest</h1>")
	sb.WriteString(fmt.Sprintf("<p><em>%s</em></p>", html.EscapeString(summary.Date)))

	greeting := recipient.Name
	if greeting == "" {
		greeting = "there"
	}
	sb.WriteString(fmt.Sprintf("<p>Hello %s,</p>", html.EscapeString(greeting)))

	sb.WriteString(fmt.Sprintf(`<div class="overview"><h2>Daily Overview</h2><p>%s</p></div>`,
		sanitizer.Sanitize(summary.DailyOverview)))

	sb.WriteString(fmt.Sprintf(`<h2>Top Articles Summary</h2><div class="summary">%s</div>`,
		sanitizer.Sanitize(summary.Top10Summary)))
	sb.WriteString(feedbackBlock(baseURL, recipient.ID, summary.ID))

	if len(articles) > 0 {
		sb.WriteString("<h2>Today's Articles</h2>")
		for i, article := range articles {
			sb.WriteString(`<div class="article">`)
			sb.WriteString(fmt.Sprintf(`<h3>%d. <a href="%s">%s</a></h3>`,
				i+1, html.EscapeString(article.URL), html.EscapeString(article.Title)))
			sb.WriteString(fmt.Sprintf(`<div class="meta">%s | relevance %.1f</div>`,
				html.EscapeString(article.Source), article.RelevanceScore))
			sb.WriteString(fmt.Sprintf("<p>%s</p>", html.EscapeString(article.Summary)))
			sb.WriteString("</div>")
		}
	}

	if baseURL != "" {
		sb.WriteString(fmt.Sprintf(`<p><a href="%s/compare?recipientId=%d&summaryId=%d">Help us improve: compare two summary styles</a></p>`,
			baseURL, recipient.ID, summary.ID))
	}

	sb.WriteString(`<div class="footer"><p>This digest is generated automatically by Genewire</p>` +
		`<p>Designed for students with an interest in synthetic biology</p></div>`)
	sb.WriteString("</body></html>")
	return sb.String()
}

// buildDigestText renders the plain-text alternative for clients that do not
// display HTML
func buildDigestText(summary *repository.DailySummary, articles []repository.Article, recipient repository.Recipient) string {
	var sb strings.Builder

	sb.WriteString("Synthetic Biology Daily Digest - " + summary.Date + "\n\n")

	greeting := recipient.Name
	if greeting == "" {
		greeting = "there"
	}
	sb.WriteString("Hello " + greeting + ",\n\n")

	sb.WriteString("DAILY OVERVIEW\n")
	sb.WriteString(summary.DailyOverview + "\n\n")

	sb.WriteString("TOP ARTICLES SUMMARY\n")
	sb.WriteString(summary.Top10Summary + "\n")

	if len(articles) > 0 {
		sb.WriteString("\nTODAY'S ARTICLES\n")
		for i, article := range articles {
			sb.WriteString(fmt.Sprintf("%d. %s (%s, relevance %.1f)\n   %s\n",
				i+1, article.Title, article.Source, article.RelevanceScore, article.URL))
		}
	}

	sb.WriteString("\nThis digest is generated automatically by Genewire\n")
	return sb.String()
}

// feedbackBlock renders the thumbs up/down links for the top summary
func feedbackBlock(baseURL string, recipientID, summaryID int64) string {
	if baseURL == "" {
		return ""
	}

	link := func(value string) string {
		return fmt.Sprintf("%s/feedback?recipientId=%d&summaryId=%d&feedbackType=top10&feedbackValue=%s",
			baseURL, recipientID, summaryID, value)
	}

	return fmt.Sprintf(`<div class="feedback"><span>Was the Top Articles Summary helpful?</span>`+
		`<a href="%s" target="_blank">&#128077;</a><a href="%s" target="_blank">&#128078;</a></div>`,
		link("up"), link("down"))
}
