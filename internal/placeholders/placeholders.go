// Package placeholders fills {{token}} placeholders in a template document with a site's
// business information and writes the brand colours into the theme rule.
package placeholders

import (
	"strings"

	"github.com/sitecraft/sitecraft-backend/internal/editor"
	"github.com/sitecraft/sitecraft-backend/internal/sites/domain"
)

// ThemeSelector is the rule that carries the brand colour custom properties.
const ThemeSelector = "body"

const (
	PrimaryColorProperty   = "--brand-primary"
	SecondaryColorProperty = "--brand-secondary"
)

// substitutedAttributes are the only attributes whose values are searched for tokens.
var substitutedAttributes = []string{"href", "src", "alt", "title", "placeholder", "content"}

type field struct {
	token string
	value func(domain.BusinessInfo) string
}

// fields maps every token to the BusinessInfo value it stands for.
// Colours have no token; they go to the theme rule instead.
var fields = []field{
	{"{{business_name}}", func(b domain.BusinessInfo) string { return b.BusinessName }},
	{"{{slogan}}", func(b domain.BusinessInfo) string { return b.Slogan }},
	{"{{phone}}", func(b domain.BusinessInfo) string { return b.Phone }},
	{"{{email}}", func(b domain.BusinessInfo) string { return b.Email }},
	{"{{address}}", func(b domain.BusinessInfo) string { return b.Address }},
	{"{{hours}}", func(b domain.BusinessInfo) string { return b.Hours }},
	{"{{short_description}}", func(b domain.BusinessInfo) string { return b.ShortDescription }},
	{"{{social_facebook}}", func(b domain.BusinessInfo) string { return b.SocialFacebook }},
	{"{{social_instagram}}", func(b domain.BusinessInfo) string { return b.SocialInstagram }},
	{"{{social_twitter}}", func(b domain.BusinessInfo) string { return b.SocialTwitter }},
	{"{{social_linkedin}}", func(b domain.BusinessInfo) string { return b.SocialLinkedIn }},
}

// Tokens lists every recognised placeholder token.
func Tokens() []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.token
	}
	return out
}

// Apply replaces every token whose field is non-empty, across text content, node content
// and the substituted attributes, then writes the brand colours if any are set.
// Tokens for empty fields are left in place. The document is untouched when info is empty.
func Apply(doc editor.Document, info domain.BusinessInfo) {
	if doc == nil {
		return
	}

	if r := newReplacer(info); r != nil {
		walk(doc.Root(), r)
	}

	applyBrandColors(doc, info)
}

// CountRemaining counts unresolved tokens in serialized document markup.
func CountRemaining(html string) int {
	count := 0
	for _, f := range fields {
		count += strings.Count(html, f.token)
	}
	return count
}

// newReplacer returns nil when no field has a value.
// strings.Replacer never rescans its own output, so replacement text is final.
func newReplacer(info domain.BusinessInfo) *strings.Replacer {
	var pairs []string
	for _, f := range fields {
		if v := f.value(info); v != "" {
			pairs = append(pairs, f.token, v)
		}
	}
	if len(pairs) == 0 {
		return nil
	}
	return strings.NewReplacer(pairs...)
}

func walk(n editor.Node, r *strings.Replacer) {
	if content := n.Content(); content != "" {
		if updated := r.Replace(content); updated != content {
			n.SetContent(updated)
		}
	}

	attrs := n.Attributes()
	changed := false
	for _, key := range substitutedAttributes {
		val, ok := attrs[key]
		if !ok || val == "" {
			continue
		}
		if updated := r.Replace(val); updated != val {
			attrs[key] = updated
			changed = true
		}
	}
	if changed {
		n.SetAttributes(attrs)
	}

	for _, child := range n.Children() {
		walk(child, r)
	}
}

func applyBrandColors(doc editor.Document, info domain.BusinessInfo) {
	if info.PrimaryColor == "" && info.SecondaryColor == "" {
		return
	}

	rule, ok := doc.FindRule(ThemeSelector)
	if !ok {
		primary, secondary := info.PrimaryColor, info.SecondaryColor
		if primary == "" {
			primary = domain.DefaultPrimaryColor
		}
		if secondary == "" {
			secondary = domain.DefaultSecondaryColor
		}
		doc.AddRule(ThemeSelector, map[string]string{
			PrimaryColorProperty:   primary,
			SecondaryColorProperty: secondary,
		})
		return
	}

	style := rule.Style()
	if info.PrimaryColor != "" {
		style[PrimaryColorProperty] = info.PrimaryColor
	}
	if info.SecondaryColor != "" {
		style[SecondaryColorProperty] = info.SecondaryColor
	}
	rule.SetStyle(style)
}
