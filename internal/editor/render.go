package editor

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// voidElements cannot carry content or children.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true, "hr": true,
	"img": true, "input": true, "keygen": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// HTML serializes the component tree the way the editor does: wrapped in a single <body>.
func (p *Project) HTML() string {
	var b strings.Builder
	b.WriteString("<body>")
	for _, c := range p.Components {
		if c == nil {
			continue
		}
		_ = html.Render(&b, toHTMLNode(c))
	}
	b.WriteString("</body>")
	return b.String()
}

// CSS serializes the stylesheet with declarations in a stable order.
func (p *Project) CSS() string {
	var b strings.Builder
	for _, r := range p.Styles {
		if r == nil {
			continue
		}
		if r.Raw != "" {
			b.WriteString(r.Raw)
			continue
		}
		if len(r.Style) == 0 {
			continue
		}
		b.WriteString(r.Selectors)
		b.WriteByte('{')
		for _, k := range sortedKeys(r.Style) {
			b.WriteString(k)
			b.WriteByte(':')
			b.WriteString(r.Style[k])
			b.WriteByte(';')
		}
		b.WriteByte('}')
	}
	return b.String()
}

func toHTMLNode(c *Component) *html.Node {
	if c.Type == TextNodeType {
		return &html.Node{Type: html.TextNode, Data: c.Content}
	}

	tag := strings.ToLower(c.TagName)
	if tag == "" {
		tag = "div"
	}
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	for _, k := range sortedKeys(c.Attributes) {
		n.Attr = append(n.Attr, html.Attribute{Key: k, Val: c.Attributes[k]})
	}
	if voidElements[tag] {
		// The renderer rejects void elements with children; content on them is dropped.
		return n
	}
	if c.Content != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: c.Content})
	}
	for _, child := range c.Components {
		if child == nil {
			continue
		}
		n.AppendChild(toHTMLNode(child))
	}
	return n
}
