package locator

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Texts returns the direct child text nodes of every element matching sel
// inside root, in document order. Whitespace-only nodes are kept so that
// positional strides over the result line up with the page markup.
func Texts(root *goquery.Selection, sel string) []string {
	if sel == "" {
		return nil
	}
	var out []string
	root.Find(sel).Each(func(_ int, s *goquery.Selection) {
		s.Contents().Each(func(_ int, c *goquery.Selection) {
			if goquery.NodeName(c) == "#text" {
				out = append(out, c.Text())
			}
		})
	})
	return out
}

// FirstText returns the first non-blank direct text of sel inside root,
// trimmed.
func FirstText(root *goquery.Selection, sel string) string {
	for _, t := range Texts(root, sel) {
		if t = strings.TrimSpace(t); t != "" {
			return t
		}
	}
	return ""
}

// Links returns the href of every element matching sel, resolved against
// base. Elements without an href are skipped.
func Links(root *goquery.Selection, sel string, base *url.URL) []string {
	if sel == "" {
		return nil
	}
	var out []string
	root.Find(sel).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		out = append(out, resolveLink(base, strings.TrimSpace(href)))
	})
	return out
}

func resolveLink(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	u, err := base.Parse(href)
	if err != nil {
		return href
	}
	u.Fragment = ""
	return u.String()
}

// trimAll trims every entry in place and returns the slice.
func trimAll(ss []string) []string {
	for i, s := range ss {
		ss[i] = strings.TrimSpace(s)
	}
	return ss
}
