package editor

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// FromHTML builds a project from template markup and its stylesheet.
// Whitespace-only text and comments are dropped.
func FromHTML(markup, css string) (*Project, error) {
	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), context)
	if err != nil {
		return nil, fmt.Errorf("parse template html: %w", err)
	}

	p := &Project{Styles: ParseCSS(css)}
	for _, n := range nodes {
		if c := fromHTMLNode(n); c != nil {
			p.Components = append(p.Components, c)
		}
	}
	return p, nil
}

func fromHTMLNode(n *html.Node) *Component {
	switch n.Type {
	case html.TextNode:
		if strings.TrimSpace(n.Data) == "" {
			return nil
		}
		return &Component{Type: TextNodeType, Content: n.Data}
	case html.ElementNode:
		c := &Component{TagName: n.Data}
		if len(n.Attr) > 0 {
			c.Attributes = make(map[string]string, len(n.Attr))
			for _, a := range n.Attr {
				c.Attributes[a.Key] = a.Val
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if cc := fromHTMLNode(child); cc != nil {
				c.Components = append(c.Components, cc)
			}
		}
		return c
	default:
		return nil
	}
}

// ParseCSS splits a stylesheet into rules. At-rule blocks are kept verbatim.
func ParseCSS(css string) []*Rule {
	css = stripComments(css)
	var rules []*Rule
	for {
		css = strings.TrimSpace(css)
		if css == "" {
			return rules
		}
		open := strings.IndexByte(css, '{')
		if strings.HasPrefix(css, "@") {
			// statement at-rules such as @import end at the first semicolon
			if semi := strings.IndexByte(css, ';'); semi >= 0 && (open < 0 || semi < open) {
				rules = append(rules, &Rule{Selectors: strings.TrimSpace(css[:semi]), Raw: css[:semi+1]})
				css = css[semi+1:]
				continue
			}
		}
		if open < 0 {
			return rules
		}
		selector := strings.TrimSpace(css[:open])

		if strings.HasPrefix(selector, "@") {
			end := matchingBrace(css, open)
			rules = append(rules, &Rule{Selectors: selector, Raw: css[:end]})
			css = css[end:]
			continue
		}

		rbrace := strings.IndexByte(css[open:], '}')
		if rbrace < 0 {
			return rules
		}
		body := css[open+1 : open+rbrace]
		css = css[open+rbrace+1:]

		style := map[string]string{}
		for _, decl := range strings.Split(body, ";") {
			k, v, ok := strings.Cut(decl, ":")
			if !ok {
				continue
			}
			k, v = strings.TrimSpace(k), strings.TrimSpace(v)
			if k == "" {
				continue
			}
			style[k] = v
		}
		rules = append(rules, &Rule{Selectors: selector, Style: style})
	}
}

func stripComments(s string) string {
	for {
		start := strings.Index(s, "/*")
		if start < 0 {
			return s
		}
		end := strings.Index(s[start+2:], "*/")
		if end < 0 {
			return s[:start]
		}
		s = s[:start] + s[start+2+end+2:]
	}
}

// matchingBrace returns the index just past the brace closing the block opened at open.
func matchingBrace(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return len(s)
}
