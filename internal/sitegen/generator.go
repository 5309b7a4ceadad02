// Package sitegen compiles an editor document plus SEO and business settings into one
// standalone HTML page.
package sitegen

import (
	"encoding/json"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/sitecraft/sitecraft-backend/internal/sites/domain"
)

// DefaultTitle is used when neither the SEO title nor the business name is set.
const DefaultTitle = "My Website"

// FormMarkerAttribute marks a form whose submissions are sent to the forms endpoint.
const FormMarkerAttribute = "data-site-form"

// DefaultFontsURL is the only external stylesheet a generated page links to.
const DefaultFontsURL = "https://fonts.googleapis.com/css2?family=Playfair+Display:wght@400;600;700&family=Inter:wght@300;400;500&family=Poppins:wght@300;400;500;600;700&family=Montserrat:wght@300;400;500;600;700&display=swap"

var bodyWrapper = regexp.MustCompile(`^<body[^>]*>([\s\S]*)</body>$`)

// Config holds the fixed parts of every generated page.
type Config struct {
	AnalyticsEndpoint string
	FormEndpoint      string
	FontsURL          string
	BrandName         string
	BrandURL          string
}

// Input is everything a single page is generated from.
type Input struct {
	HTML      string
	CSS       string
	Business  domain.BusinessInfo
	SEO       domain.SeoSettings
	SiteID    string
	Subdomain string
}

// Generator builds published pages.
type Generator struct {
	cfg Config
	now func() time.Time
}

// New creates a Generator. Empty config fields fall back to defaults.
func New(cfg Config) *Generator {
	if cfg.FontsURL == "" {
		cfg.FontsURL = DefaultFontsURL
	}
	if cfg.BrandName == "" {
		cfg.BrandName = "Sitecraft"
	}
	if cfg.BrandURL == "" {
		cfg.BrandURL = "https://sitecraft.app"
	}
	return &Generator{cfg: cfg, now: time.Now}
}

// WithClock overrides the clock used for the generated-at timestamp.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate renders the complete document. Output depends only on in, the config and the clock.
func (g *Generator) Generate(in Input) string {
	body := StripBody(in.HTML)
	biz, seo := in.Business, in.SEO

	title := firstNonEmpty(seo.Title, biz.BusinessName, DefaultTitle)
	description := firstNonEmpty(seo.Description, biz.ShortDescription)
	lang := firstNonEmpty(seo.Lang, "en")

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n")
	b.WriteString(`<html lang="` + esc(lang) + "\">\n<head>\n")

	for _, tag := range g.headTags(title, description, seo) {
		b.WriteString("  ")
		b.WriteString(tag)
		b.WriteByte('\n')
	}

	b.WriteString("  <style>\n")
	b.WriteString(in.CSS)
	b.WriteString("\n")
	b.WriteString(g.brandingCSS())
	b.WriteString("  </style>\n")

	b.WriteString(`  <script type="application/ld+json">` + websiteSchema(title, description, seo.Canonical) + "</script>\n")
	if ld := localBusinessSchema(biz, title, description, seo.Canonical); ld != "" {
		b.WriteString(`  <script type="application/ld+json">` + ld + "</script>\n")
	}

	b.WriteString("</head>\n<body>\n")
	b.WriteString(body)
	b.WriteString("\n")
	b.WriteString(g.brandingHTML())

	if in.Subdomain != "" {
		b.WriteString(trackingScript(g.cfg.AnalyticsEndpoint, in.Subdomain))
	}
	if in.SiteID != "" && strings.Contains(body, FormMarkerAttribute) {
		b.WriteString(formHandlerScript(g.cfg.FormEndpoint, in.SiteID))
	}

	b.WriteString("</body>\n</html>\n")
	return b.String()
}

func (g *Generator) headTags(title, description string, seo domain.SeoSettings) []string {
	tags := []string{
		`<meta charset="UTF-8">`,
		`<meta name="viewport" content="width=device-width, initial-scale=1.0">`,
		`<title>` + esc(title) + `</title>`,
	}
	if description != "" {
		tags = append(tags, meta("name", "description", description))
	}
	if seo.Keywords != "" {
		tags = append(tags, meta("name", "keywords", seo.Keywords))
	}
	if seo.NoIndex {
		tags = append(tags, `<meta name="robots" content="noindex, nofollow">`)
	}
	tags = append(tags,
		meta("name", "generator", g.cfg.BrandName),
		meta("name", "generated-at", g.now().UTC().Format(time.RFC3339)),
	)

	tags = append(tags,
		`<meta property="og:type" content="website">`,
		meta("property", "og:title", title),
	)
	if description != "" {
		tags = append(tags, meta("property", "og:description", description))
	}
	if seo.OGImage != "" {
		tags = append(tags, meta("property", "og:image", seo.OGImage))
	}
	if seo.Canonical != "" {
		tags = append(tags, meta("property", "og:url", seo.Canonical))
	}

	tags = append(tags,
		`<meta name="twitter:card" content="summary_large_image">`,
		meta("name", "twitter:title", title),
	)
	if description != "" {
		tags = append(tags, meta("name", "twitter:description", description))
	}
	if seo.OGImage != "" {
		tags = append(tags, meta("name", "twitter:image", seo.OGImage))
	}

	if seo.Canonical != "" {
		tags = append(tags, `<link rel="canonical" href="`+esc(seo.Canonical)+`">`)
	}
	if seo.Favicon != "" {
		tags = append(tags, `<link rel="icon" href="`+esc(seo.Favicon)+`">`)
	}

	tags = append(tags,
		`<link rel="preconnect" href="https://fonts.googleapis.com">`,
		`<link rel="preconnect" href="https://fonts.gstatic.com" crossorigin>`,
		`<link rel="stylesheet" href="`+esc(g.cfg.FontsURL)+`">`,
	)
	return tags
}

func (g *Generator) brandingCSS() string {
	return `.site-branding{padding:12px 0;text-align:center;font-family:'Inter',sans-serif;font-size:12px;color:#999;border-top:1px solid #eee;margin-top:40px}
.site-branding a{color:#999;text-decoration:none;transition:color .2s}
.site-branding a:hover{color:#CDFF50}
`
}

func (g *Generator) brandingHTML() string {
	return `<footer class="site-branding">
  <a href="` + esc(g.cfg.BrandURL) + `" target="_blank" rel="noopener noreferrer">Built with ` + esc(g.cfg.BrandName) + `</a>
</footer>
`
}

// StripBody removes a single outer <body> wrapper added by the editor's serializer.
func StripBody(markup string) string {
	if m := bodyWrapper.FindStringSubmatch(strings.TrimSpace(markup)); m != nil {
		return m[1]
	}
	return markup
}

// Filename turns a site name into a download filename.
func Filename(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	s := strings.Trim(b.String(), "-")
	if len(s) > 50 {
		s = strings.Trim(s[:50], "-")
	}
	if s == "" {
		s = "my-site"
	}
	return s + ".html"
}

// esc escapes & < > " and ' for attribute values and text.
func esc(s string) string {
	return html.EscapeString(s)
}

func meta(attr, key, content string) string {
	return `<meta ` + attr + `="` + key + `" content="` + esc(content) + `">`
}

// jsString encodes s as a JavaScript string literal safe inside a <script> element.
func jsString(s string) string {
	out, _ := json.Marshal(s)
	return string(out)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
