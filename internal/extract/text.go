package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// skipText lists elements whose content is never visible text.
var skipText = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
}

// textOf returns the visible text of sel with one space between text runs.
// goquery's Text concatenates runs directly, which glues a price to the
// rating that follows it.
func textOf(sel *goquery.Selection) string {
	var parts []string
	for _, n := range sel.Nodes {
		parts = appendText(parts, n)
	}
	return collapse(strings.Join(parts, " "))
}

func appendText(parts []string, n *html.Node) []string {
	switch n.Type {
	case html.TextNode:
		if t := strings.TrimSpace(n.Data); t != "" {
			parts = append(parts, t)
		}
		return parts
	case html.ElementNode:
		if skipText[n.DataAtom] {
			return parts
		}
	case html.CommentNode:
		return parts
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		parts = appendText(parts, c)
	}
	return parts
}

// firstText returns the first non-blank visible text run under n.
func firstText(n *html.Node) string {
	switch n.Type {
	case html.TextNode:
		return collapse(n.Data)
	case html.ElementNode:
		if skipText[n.DataAtom] {
			return ""
		}
	case html.CommentNode:
		return ""
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := firstText(c); t != "" {
			return t
		}
	}
	return ""
}
