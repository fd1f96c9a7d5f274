// Package extract converts provider markup (HTML fragments from feeds and APIs) into plain text.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hyperjump/yomu/pkg/utils"
)

// Text returns the readable text of s. Markup, scripts and styles are removed
// and whitespace is collapsed. Strings without markup are returned cleaned
// but otherwise unchanged.
func Text(s string) string {
	s = validUTF8(s)
	if !looksLikeHTML(s) {
		return utils.CollapseWhitespace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return utils.CollapseWhitespace(s)
	}
	doc.Find("script, style, noscript, iframe").Remove()
	// Block elements would otherwise glue adjacent words together.
	doc.Find("p, br, div, li, h1, h2, h3, h4, h5, h6, tr").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml(" ")
	})
	return utils.CollapseWhitespace(doc.Text())
}

// FirstImage returns the src of the first <img> in s, or "".
func FirstImage(s string) string {
	if !looksLikeHTML(s) {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return ""
	}
	src, _ := doc.Find("img[src]").First().Attr("src")
	return strings.TrimSpace(src)
}

func looksLikeHTML(s string) bool {
	i := strings.IndexByte(s, '<')
	return i >= 0 && strings.IndexByte(s[i:], '>') > 0 || strings.Contains(s, "&")
}
