package domain

import (
	"encoding/json"
	"time"
)

// Site status values
const (
	StatusDraft       = "draft"
	StatusPublished   = "published"
	StatusUnpublished = "unpublished"
)

// Default brand colours used when a theme rule has to be created with only one colour set.
const (
	DefaultPrimaryColor   = "#CDFF50"
	DefaultSecondaryColor = "#111111"
)

// BusinessInfo holds the facts a user enters about their business.
// Every field is optional; empty means "not provided".
type BusinessInfo struct {
	BusinessName     string `json:"business_name"`
	Slogan           string `json:"slogan"`
	Phone            string `json:"phone"`
	Email            string `json:"email"`
	Address          string `json:"address"`
	Hours            string `json:"hours"`
	ShortDescription string `json:"short_description"`
	PrimaryColor     string `json:"primary_color"`
	SecondaryColor   string `json:"secondary_color"`
	SocialFacebook   string `json:"social_facebook"`
	SocialInstagram  string `json:"social_instagram"`
	SocialTwitter    string `json:"social_twitter"`
	SocialLinkedIn   string `json:"social_linkedin"`
}

// SeoSettings are the per-site search and social metadata.
type SeoSettings struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Keywords    string `json:"keywords"`
	OGImage     string `json:"og_image"`
	Canonical   string `json:"canonical"`
	Favicon     string `json:"favicon"`
	Lang        string `json:"lang"`
	NoIndex     bool   `json:"no_index"`
}

// Site is a user's editable and publishable website.
// Subdomain is set if and only if Status is StatusPublished.
type Site struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	TemplateSlug  string          `json:"template_slug"`
	Name          string          `json:"name"`
	EditorData    json.RawMessage `json:"editor_data,omitempty"`
	BusinessInfo  BusinessInfo    `json:"business_info"`
	SeoSettings   SeoSettings     `json:"seo_settings"`
	Status        string          `json:"status"`
	PublishedHTML *string         `json:"published_html,omitempty"`
	PublishedAt   *time.Time      `json:"published_at,omitempty"`
	Subdomain     *string         `json:"subdomain,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// CurrentSubdomain returns the claimed name or "" when the site holds none.
func (s *Site) CurrentSubdomain() string {
	if s == nil || s.Subdomain == nil {
		return ""
	}
	return *s.Subdomain
}

// CreateSiteRequest represents data needed to create a new site
type CreateSiteRequest struct {
	UserID       string
	TemplateSlug string
	Name         string
	EditorData   json.RawMessage
	BusinessInfo *BusinessInfo
}

// SaveSiteRequest represents an editor save. Nil fields are left unchanged.
type SaveSiteRequest struct {
	EditorData   json.RawMessage
	BusinessInfo *BusinessInfo
	SeoSettings  *SeoSettings
}

// UploadedAsset describes an image stored for a site.
type UploadedAsset struct {
	URL  string `json:"url"`
	Path string `json:"path"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}
