// Package editor defines the narrow document-model contract the site builder depends on
// and a JSON component tree that implements it.
//
// The visual editor owns the document; this package only needs to walk nodes, read and
// write their content and attributes, touch style rules, and serialize the whole document
// to HTML and CSS.
package editor

import (
	"encoding/json"
	"fmt"
	"sort"
)

// TextNodeType marks a component that is a plain text node.
const TextNodeType = "textnode"

// Node is one element of the editor tree.
type Node interface {
	Type() string
	Content() string
	SetContent(content string)
	// Attributes returns a copy; mutate through SetAttributes.
	Attributes() map[string]string
	SetAttributes(attrs map[string]string)
	Children() []Node
}

// StyleRule is a single CSS rule of the document stylesheet.
type StyleRule interface {
	Selector() string
	// Style returns a copy of the declarations.
	Style() map[string]string
	SetStyle(style map[string]string)
}

// Document is the editor state as a whole.
type Document interface {
	Root() Node
	FindRule(selector string) (StyleRule, bool)
	AddRule(selector string, style map[string]string) StyleRule
	HTML() string
	CSS() string
}

// Component is the persisted form of a Node.
type Component struct {
	Type       string            `json:"type,omitempty"`
	TagName    string            `json:"tagName,omitempty"`
	Content    string            `json:"content,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Components []*Component      `json:"components,omitempty"`

	// Extra keeps editor keys this package does not model, such as classes or traits.
	Extra map[string]json.RawMessage `json:"-"`
}

// Rule is the persisted form of a StyleRule. Raw holds at-rule blocks verbatim.
type Rule struct {
	Selectors string            `json:"selectors"`
	Style     map[string]string `json:"style,omitempty"`
	Raw       string            `json:"raw,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Project is the editor document as stored in a site's editor_data column.
type Project struct {
	Components []*Component `json:"components"`
	Styles     []*Rule      `json:"styles"`

	// Extra keeps top-level editor state such as pages and assets.
	Extra map[string]json.RawMessage `json:"-"`
}

var (
	componentKeys = []string{"type", "tagName", "content", "attributes", "components"}
	ruleKeys      = []string{"selectors", "style", "raw"}
	projectKeys   = []string{"components", "styles"}
)

func (c *Component) UnmarshalJSON(data []byte) error {
	type plain Component
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	extra, err := unknownKeys(data, componentKeys)
	if err != nil {
		return err
	}
	*c = Component(v)
	c.Extra = extra
	return nil
}

func (c Component) MarshalJSON() ([]byte, error) {
	type plain Component
	return withExtra(plain(c), c.Extra)
}

func (r *Rule) UnmarshalJSON(data []byte) error {
	type plain Rule
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	extra, err := unknownKeys(data, ruleKeys)
	if err != nil {
		return err
	}
	*r = Rule(v)
	r.Extra = extra
	return nil
}

func (r Rule) MarshalJSON() ([]byte, error) {
	type plain Rule
	return withExtra(plain(r), r.Extra)
}

func (p *Project) UnmarshalJSON(data []byte) error {
	type plain Project
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	extra, err := unknownKeys(data, projectKeys)
	if err != nil {
		return err
	}
	*p = Project(v)
	p.Extra = extra
	return nil
}

func (p Project) MarshalJSON() ([]byte, error) {
	type plain Project
	return withExtra(plain(p), p.Extra)
}

// unknownKeys returns the members of a JSON object that are not in known, or nil.
func unknownKeys(data []byte, known []string) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// withExtra encodes v and adds the preserved members. Modelled fields win on a clash.
func withExtra(v any, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, raw := range extra {
		if _, ok := merged[k]; !ok {
			merged[k] = raw
		}
	}
	return json.Marshal(merged)
}

// Parse decodes stored editor data. Empty input yields an empty project.
func Parse(data []byte) (*Project, error) {
	p := &Project{}
	if len(data) == 0 || string(data) == "null" {
		return p, nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("decode editor data: %w", err)
	}
	return p, nil
}

// Marshal encodes the project for storage. Keys the model does not know are written back
// unchanged.
func (p *Project) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

// Root returns the wrapper node holding the top-level components.
func (p *Project) Root() Node {
	return &wrapperNode{project: p}
}

// FindRule returns the first plain rule with exactly the given selector.
func (p *Project) FindRule(selector string) (StyleRule, bool) {
	for _, r := range p.Styles {
		if r.Raw == "" && r.Selectors == selector {
			return &ruleRef{rule: r}, true
		}
	}
	return nil, false
}

// AddRule appends a new rule and returns it.
func (p *Project) AddRule(selector string, style map[string]string) StyleRule {
	r := &Rule{Selectors: selector, Style: copyMap(style)}
	p.Styles = append(p.Styles, r)
	return &ruleRef{rule: r}
}

type componentNode struct {
	c *Component
}

func (n *componentNode) Type() string {
	if n.c.Type != "" {
		return n.c.Type
	}
	return "default"
}

func (n *componentNode) Content() string           { return n.c.Content }
func (n *componentNode) SetContent(content string) { n.c.Content = content }

func (n *componentNode) Attributes() map[string]string { return copyMap(n.c.Attributes) }

func (n *componentNode) SetAttributes(attrs map[string]string) {
	n.c.Attributes = copyMap(attrs)
}

func (n *componentNode) Children() []Node {
	return wrap(n.c.Components)
}

// wrapperNode stands in for the editor's body wrapper. It has no content or attributes.
type wrapperNode struct {
	project *Project
}

func (w *wrapperNode) Type() string                   { return "wrapper" }
func (w *wrapperNode) Content() string                { return "" }
func (w *wrapperNode) SetContent(string)              {}
func (w *wrapperNode) Attributes() map[string]string  { return map[string]string{} }
func (w *wrapperNode) SetAttributes(map[string]string) {}
func (w *wrapperNode) Children() []Node               { return wrap(w.project.Components) }

type ruleRef struct {
	rule *Rule
}

func (r *ruleRef) Selector() string                 { return r.rule.Selectors }
func (r *ruleRef) Style() map[string]string         { return copyMap(r.rule.Style) }
func (r *ruleRef) SetStyle(style map[string]string) { r.rule.Style = copyMap(style) }

func wrap(cs []*Component) []Node {
	out := make([]Node, 0, len(cs))
	for _, c := range cs {
		if c == nil {
			continue
		}
		out = append(out, &componentNode{c: c})
	}
	return out
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
