// Package parser turns HTML email bodies into clean plain text for the
// language model.
package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLParser converts HTML emails to plain text
type HTMLParser struct {
	spaceRe     *regexp.Regexp
	newlineRe   *regexp.Regexp
	invisibleRe *regexp.Regexp
}

// NewHTMLParser creates an HTML parser
func NewHTMLParser() *HTMLParser {
	return &HTMLParser{
		spaceRe:   regexp.MustCompile(`[^\S\n]+`),
		newlineRe: regexp.MustCompile(`\n{3,}`),
		// Zero-width and other invisible Unicode characters
		invisibleRe: regexp.MustCompile(`[\x{200B}-\x{200D}\x{FEFF}\x{00AD}\x{2060}-\x{2064}]+`),
	}
}

// Parse converts HTML to clean plain text
func (p *HTMLParser) Parse(html string) (string, error) {
	if html == "" {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, head, meta, link").Remove()

	// Block elements become line breaks
	doc.Find("p, div, br, h1, h2, h3, h4, h5, h6, li, tr").Each(func(i int, s *goquery.Selection) {
		s.PrependHtml("\n")
	})

	text := doc.Text()
	text = p.invisibleRe.ReplaceAllString(text, "")
	text = p.spaceRe.ReplaceAllString(text, " ")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	text = strings.Join(lines, "\n")
	text = p.newlineRe.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text), nil
}
