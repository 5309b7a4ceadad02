package sitegen

import (
	"encoding/json"

	"github.com/sitecraft/sitecraft-backend/internal/sites/domain"
)

const schemaContext = "https://schema.org"

type websiteLD struct {
	Context     string `json:"@context"`
	Type        string `json:"@type"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
}

type postalAddressLD struct {
	Type          string `json:"@type"`
	StreetAddress string `json:"streetAddress"`
}

type localBusinessLD struct {
	Context     string           `json:"@context"`
	Type        string           `json:"@type"`
	Name        string           `json:"name"`
	Telephone   string           `json:"telephone,omitempty"`
	Email       string           `json:"email,omitempty"`
	Address     *postalAddressLD `json:"address,omitempty"`
	Description string           `json:"description,omitempty"`
	URL         string           `json:"url,omitempty"`
}

// websiteSchema is emitted on every page.
func websiteSchema(title, description, canonical string) string {
	return encodeLD(websiteLD{
		Context:     schemaContext,
		Type:        "WebSite",
		Name:        title,
		Description: description,
		URL:         canonical,
	})
}

// localBusinessSchema returns "" unless at least one of name, phone, email or address is set.
func localBusinessSchema(biz domain.BusinessInfo, title, description, canonical string) string {
	if biz.BusinessName == "" && biz.Phone == "" && biz.Email == "" && biz.Address == "" {
		return ""
	}

	lb := localBusinessLD{
		Context:     schemaContext,
		Type:        "LocalBusiness",
		Name:        firstNonEmpty(biz.BusinessName, title),
		Telephone:   biz.Phone,
		Email:       biz.Email,
		Description: description,
		URL:         canonical,
	}
	if biz.Address != "" {
		lb.Address = &postalAddressLD{Type: "PostalAddress", StreetAddress: biz.Address}
	}
	return encodeLD(lb)
}

// encodeLD relies on json.Marshal escaping <, > and & so the payload cannot close its script tag.
func encodeLD(v any) string {
	out, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(out)
}
