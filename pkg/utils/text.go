package utils

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	ratingRe     = regexp.MustCompile(`[\d.]+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// ParseRating converts a rating string to float64 (e.g. "4.50" -> 4.5).
// Unparseable or out-of-range input yields 0.
func ParseRating(ratingStr string) float64 {
	if ratingStr == "" {
		return 0
	}

	match := ratingRe.FindString(ratingStr)
	if match == "" {
		return 0
	}

	rating, err := strconv.ParseFloat(match, 64)
	if err != nil || rating < 0 || rating > 5 {
		return 0
	}

	return rating
}

// PlainText strips markup from a WooCommerce description and collapses
// whitespace. Block elements are separated by a single space.
func PlainText(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	if !strings.ContainsAny(html, "<&") {
		return collapse(html)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return collapse(html)
	}

	doc.Find("script, style").Remove()
	doc.Find("p, br, li, div, h1, h2, h3, h4").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})

	return collapse(doc.Text())
}

func collapse(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
