package extract

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Page is the webpage handed to the extractor.
type Page struct {
	URL   string
	Title string
	HTML  string
}

// BuildPrompt assembles the extraction prompt: page identity, schema
// description, optional caller instructions, then the HTML capped at
// htmlBudget characters.
func BuildPrompt(page Page, v Variant, instructions string, htmlBudget int) string {
	var b strings.Builder
	b.WriteString("I need to extract structured information from the following webpage:\n\n")
	fmt.Fprintf(&b, "URL: %s\n", page.URL)
	fmt.Fprintf(&b, "Title: %s\n\n", page.Title)
	b.WriteString("I need to extract data according to this schema:\n")
	b.WriteString(v.SchemaInfo())
	if instructions != "" {
		fmt.Fprintf(&b, "\nAdditional instructions: %s\n", instructions)
	}
	b.WriteString("\nHTML Content:\n")
	b.WriteString(TruncateHTML(page.HTML, htmlBudget))
	return b.String()
}

// BuildSearchPrompt assembles the vision prompt used to read search
// results off a results-page screenshot.
func BuildSearchPrompt(query, homepage string, maxResults int) string {
	var b strings.Builder
	b.WriteString("I need you to extract search results from this web page.\n\n")
	fmt.Fprintf(&b, "The user searched for: %s\n", query)
	fmt.Fprintf(&b, "The website is: %s\n\n", homepage)
	fmt.Fprintf(&b, "Please extract up to %d search results.\n", maxResults)
	b.WriteString("Each result should have a title, URL, and a brief snippet or description.\n\n")
	b.WriteString("Focus only on actual search results, not ads or other elements.")
	return b.String()
}

// TruncateHTML caps html at budget characters and appends "..." when
// content was dropped. The budget counts runes, not bytes, so non-ASCII
// pages keep their full allowance.
func TruncateHTML(html string, budget int) string {
	if budget <= 0 || len(html) <= budget {
		return html
	}
	seen := 0
	for i := range html {
		if seen == budget {
			return html[:i] + "..."
		}
		seen++
	}
	return html
}

// excerpt 截取字符串前 n 字节用于错误消息，长于 n 时追加省略号。
func excerpt(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
