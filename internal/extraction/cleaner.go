package extraction

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var nonContentTags = []string{"script", "style", "nav", "footer", "header", "aside", "noscript"}

func parseCleaned(rawHTML string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}
	doc.Find(strings.Join(nonContentTags, ", ")).Remove()
	return doc, nil
}

// contentRoot picks the element most likely to hold the posting: <main>, then
// the first div whose class mentions "job", then <body>.
func contentRoot(doc *goquery.Document) *goquery.Selection {
	if doc == nil {
		return nil
	}
	if m := doc.Find("main").First(); m.Length() > 0 {
		return m
	}

	var found *goquery.Selection
	doc.Find("div[class]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(strings.ToLower(s.AttrOr("class", "")), "job") {
			found = s
			return false
		}
		return true
	})
	if found != nil {
		return found
	}

	if b := doc.Find("body").First(); b.Length() > 0 {
		return b
	}
	return doc.Selection
}

// CleanText strips non-content nodes from rawHTML and returns the readable
// text of the content root, one text node per line, capped at maxChars.
func CleanText(rawHTML string, maxChars int) (string, error) {
	doc, err := parseCleaned(rawHTML)
	if err != nil {
		return "", err
	}
	return truncate(blockText(contentRoot(doc)), maxChars), nil
}

func blockText(sel *goquery.Selection) string {
	if sel == nil {
		return ""
	}
	parts := make([]string, 0, 64)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.Join(parts, "\n")
}

func inlineText(sel *goquery.Selection) string {
	if sel == nil {
		return ""
	}
	return strings.Join(strings.Fields(sel.Text()), " ")
}

// truncate keeps the head of s; job postings front-load the useful parts.
func truncate(s string, maxChars int) string {
	if maxChars <= 0 || len(s) <= maxChars {
		return s
	}
	cut := maxChars
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
