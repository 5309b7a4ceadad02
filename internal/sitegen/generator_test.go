package sitegen

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitecraft/sitecraft-backend/internal/sites/domain"
)

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestGenerator() *Generator {
	return New(Config{
		AnalyticsEndpoint: "https://api.example.com/api/v1/public/track-visit",
		FormEndpoint:      "https://api.example.com/api/v1/public/forms",
	}).WithClock(func() time.Time { return fixedTime })
}

func TestGenerate_TitleFallbacks(t *testing.T) {
	g := newTestGenerator()

	out := g.Generate(Input{SEO: domain.SeoSettings{Title: "SEO Title"}, Business: domain.BusinessInfo{BusinessName: "Biz"}})
	assert.Contains(t, out, "<title>SEO Title</title>")

	out = g.Generate(Input{Business: domain.BusinessInfo{BusinessName: "Biz"}})
	assert.Contains(t, out, "<title>Biz</title>")

	out = g.Generate(Input{})
	assert.Contains(t, out, "<title>"+DefaultTitle+"</title>")
}

func TestGenerate_OptionalTagsOmittedWhenEmpty(t *testing.T) {
	out := newTestGenerator().Generate(Input{HTML: "<body><p>hi</p></body>"})

	assert.NotContains(t, out, `name="description"`)
	assert.NotContains(t, out, `name="keywords"`)
	assert.NotContains(t, out, `rel="canonical"`)
	assert.NotContains(t, out, `rel="icon"`)
	assert.NotContains(t, out, `og:image`)
	assert.NotContains(t, out, `og:description`)
	assert.NotContains(t, out, `twitter:image`)
	assert.NotContains(t, out, `content=""`)

	assert.Contains(t, out, `<meta property="og:type" content="website">`)
	assert.Contains(t, out, `<meta property="og:title" content="My Website">`)
	assert.Contains(t, out, `<meta name="twitter:card" content="summary_large_image">`)
	assert.Contains(t, out, `<meta name="twitter:title" content="My Website">`)
}

func TestGenerate_AllSeoTags(t *testing.T) {
	seo := domain.SeoSettings{
		Title:       "Luna",
		Description: "Bread & more",
		Keywords:    "bakery, paris",
		OGImage:     "https://cdn.example.com/og.png",
		Canonical:   "https://luna.example.com/",
		Favicon:     "https://cdn.example.com/favicon.ico",
		Lang:        "fr",
	}

	out := newTestGenerator().Generate(Input{SEO: seo})

	assert.Contains(t, out, `<html lang="fr">`)
	assert.Contains(t, out, `<meta name="description" content="Bread &amp; more">`)
	assert.Contains(t, out, `<meta name="keywords" content="bakery, paris">`)
	assert.Contains(t, out, `<meta property="og:description" content="Bread &amp; more">`)
	assert.Contains(t, out, `<meta property="og:image" content="https://cdn.example.com/og.png">`)
	assert.Contains(t, out, `<meta property="og:url" content="https://luna.example.com/">`)
	assert.Contains(t, out, `<meta name="twitter:description" content="Bread &amp; more">`)
	assert.Contains(t, out, `<meta name="twitter:image" content="https://cdn.example.com/og.png">`)
	assert.Contains(t, out, `<link rel="canonical" href="https://luna.example.com/">`)
	assert.Contains(t, out, `<link rel="icon" href="https://cdn.example.com/favicon.ico">`)
}

func TestGenerate_DescriptionFallsBackToBusiness(t *testing.T) {
	out := newTestGenerator().Generate(Input{Business: domain.BusinessInfo{ShortDescription: "Artisan bakery"}})

	assert.Contains(t, out, `<meta name="description" content="Artisan bakery">`)
}

func TestGenerate_Robots(t *testing.T) {
	g := newTestGenerator()

	out := g.Generate(Input{SEO: domain.SeoSettings{NoIndex: true}})
	assert.Contains(t, out, `<meta name="robots" content="noindex, nofollow">`)

	out = g.Generate(Input{SEO: domain.SeoSettings{NoIndex: false}})
	assert.NotContains(t, out, `name="robots"`)
}

func TestGenerate_StructuredData(t *testing.T) {
	g := newTestGenerator()

	out := g.Generate(Input{})
	assert.Contains(t, out, `<script type="application/ld+json">{"@context":"https://schema.org","@type":"WebSite","name":"My Website"}</script>`)
	assert.NotContains(t, out, "LocalBusiness")

	out = g.Generate(Input{Business: domain.BusinessInfo{Phone: "555"}})
	assert.Contains(t, out, `{"@context":"https://schema.org","@type":"LocalBusiness","name":"My Website","telephone":"555"}`)
	assert.NotContains(t, out, "PostalAddress")

	out = g.Generate(Input{
		Business: domain.BusinessInfo{BusinessName: "Luna", Email: "a@b.c", Address: "1 Main St"},
		SEO:      domain.SeoSettings{Canonical: "https://luna.example.com"},
	})
	assert.Contains(t, out, `"address":{"@type":"PostalAddress","streetAddress":"1 Main St"}`)
	assert.Contains(t, out, `"@type":"WebSite","name":"Luna","url":"https://luna.example.com"`)
}

func TestGenerate_EscapesBusinessData(t *testing.T) {
	evil := `<script>"</script>`
	out := newTestGenerator().Generate(Input{
		Business: domain.BusinessInfo{BusinessName: evil, Address: evil},
		SEO:      domain.SeoSettings{Description: evil, Keywords: evil, OGImage: evil, Canonical: evil},
	})

	// the raw payload may only appear where we never put it: inside attribute values
	for _, m := range regexp.MustCompile(`="([^"]*)"`).FindAllStringSubmatch(out, -1) {
		assert.NotContains(t, m[1], "<script>", "unescaped value %q", m[1])
	}
	assert.NotContains(t, out, evil)
	assert.Contains(t, out, `<title>&lt;script&gt;&#34;&lt;/script&gt;</title>`)
	assert.Contains(t, out, `content="&lt;script&gt;&#34;&lt;/script&gt;"`)
	assert.NotContains(t, out, `"name":"<script>`)
}

func TestGenerate_BrandingAlwaysPresent(t *testing.T) {
	out := newTestGenerator().Generate(Input{HTML: "<p>x</p>"})

	assert.Contains(t, out, `<footer class="site-branding">`)
	assert.Contains(t, out, `.site-branding{`)
	assert.Less(t, strings.Index(out, "<p>x</p>"), strings.Index(out, `<footer class="site-branding">`))
}

func TestGenerate_TrackingOnlyWithSubdomain(t *testing.T) {
	g := newTestGenerator()

	out := g.Generate(Input{})
	assert.NotContains(t, out, "track-visit")

	out = g.Generate(Input{Subdomain: "luna"})
	assert.Contains(t, out, `subdomain:"luna"`)
	assert.Contains(t, out, `fetch("https://api.example.com/api/v1/public/track-visit"`)
	assert.Contains(t, out, "try{")
	assert.Contains(t, out, "catch(e){}")
}

func TestGenerate_FormHandler(t *testing.T) {
	g := newTestGenerator()
	withForm := `<body><form data-site-form="contact"><button type="submit">Send</button></form></body>`

	out := g.Generate(Input{HTML: withForm})
	assert.NotContains(t, out, "/public/forms", "no site id, no handler")

	out = g.Generate(Input{HTML: "<p>no form</p>", SiteID: "site-1"})
	assert.NotContains(t, out, "/public/forms", "no marker, no handler")

	out = g.Generate(Input{HTML: withForm, SiteID: "site-1"})
	assert.Contains(t, out, `projectId:"site-1"`)
	assert.Contains(t, out, `querySelectorAll('form[data-site-form]')`)
	assert.Contains(t, out, `fetch("https://api.example.com/api/v1/public/forms"`)
}

func TestGenerate_StripsBodyWrapper(t *testing.T) {
	out := newTestGenerator().Generate(Input{HTML: `<body id="wrapper"><main>content</main></body>`})

	assert.Equal(t, 1, strings.Count(out, "<body"))
	assert.Contains(t, out, "<body>\n<main>content</main>\n")
}

func TestGenerate_Deterministic(t *testing.T) {
	in := Input{
		HTML:      "<body><h1>Luna</h1><form data-site-form></form></body>",
		CSS:       "h1{color:red;}",
		Business:  domain.BusinessInfo{BusinessName: "Luna", Phone: "555", Address: "1 Main St"},
		SEO:       domain.SeoSettings{Title: "Luna", Keywords: "bread"},
		SiteID:    "site-1",
		Subdomain: "luna",
	}

	first := newTestGenerator().Generate(in)
	second := newTestGenerator().Generate(in)

	require.Equal(t, first, second)
	assert.Contains(t, first, `<meta name="generated-at" content="2026-03-01T12:00:00Z">`)
	assert.True(t, strings.HasPrefix(first, "<!DOCTYPE html>\n"))
	assert.True(t, strings.HasSuffix(first, "</html>\n"))
}

func TestStripBody(t *testing.T) {
	assert.Equal(t, "<p>x</p>", StripBody("<body><p>x</p></body>"))
	assert.Equal(t, "<p>x</p>", StripBody(`<body class="a"><p>x</p></body>`))
	assert.Equal(t, "<p>x</p>", StripBody("<p>x</p>"))
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "luna-bakery-paris.html", Filename("Luna Bakery (Paris)"))
	assert.Equal(t, "my-site.html", Filename("!!!"))
	assert.Equal(t, strings.Repeat("a", 50)+".html", Filename(strings.Repeat("a", 80)))
}
