// Package subdomain validates, normalizes and checks availability of public site names.
package subdomain

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/sitecraft/sitecraft-backend/internal/sites/domain"
)

// MaxLength is the longest accepted name.
const MaxLength = 30

// MinLength is the shortest accepted name.
const MinLength = 3

var pattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{1,28}[a-z0-9])?$`)

var reserved = func() map[string]struct{} {
	names := []string{
		"www", "admin", "api", "app", "mail", "smtp", "ftp", "blog", "shop", "store",
		"help", "support", "status", "cdn", "static", "assets", "media", "img", "images",
		"test", "dev", "staging", "demo", "preview", "editor", "dashboard", "login",
		"register", "account", "settings", "billing", "docs", "templates",
	}
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return m
}()

// Reason explains why a name is or is not available.
type Reason string

const (
	ReasonInvalid  Reason = "invalid"
	ReasonReserved Reason = "reserved"
	ReasonTaken    Reason = "taken"
	ReasonOwn      Reason = "own"
)

// CheckResult is returned by Registry.Check.
type CheckResult struct {
	Available bool   `json:"available"`
	Reason    Reason `json:"reason,omitempty"`
}

// IsValid reports whether name is 3-30 characters of lower-case letters, digits and
// inner hyphens.
func IsValid(name string) bool {
	return len(name) >= MinLength && pattern.MatchString(name)
}

// IsReserved reports whether name belongs to the system.
func IsReserved(name string) bool {
	_, ok := reserved[strings.ToLower(name)]
	return ok
}

// Sanitize turns arbitrary input into a name candidate. The result may still be too short
// to be valid.
func Sanitize(input string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(input) {
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
	if len(s) > MaxLength {
		s = strings.TrimRight(s[:MaxLength], "-")
	}
	return s
}

// PublishedURL is where the host layer serves a published name.
func PublishedURL(origin, name string) string {
	return strings.TrimRight(origin, "/") + "/site/" + name
}

// Lookup finds the site currently holding a name. It returns domain.ErrSiteNotFound when
// the name is free.
type Lookup interface {
	FindBySubdomain(ctx context.Context, name string) (*domain.Site, error)
}

// Registry answers availability questions against the site store.
type Registry struct {
	sites Lookup
}

func NewRegistry(sites Lookup) *Registry {
	return &Registry{sites: sites}
}

// Check evaluates name for the site currentSiteID (may be empty). A failing store lookup
// reports the name as taken.
func (r *Registry) Check(ctx context.Context, name, currentSiteID string) CheckResult {
	if !IsValid(name) {
		return CheckResult{Available: false, Reason: ReasonInvalid}
	}
	if IsReserved(name) {
		return CheckResult{Available: false, Reason: ReasonReserved}
	}

	holder, err := r.sites.FindBySubdomain(ctx, name)
	switch {
	case errors.Is(err, domain.ErrSiteNotFound):
		return CheckResult{Available: true}
	case err != nil:
		return CheckResult{Available: false, Reason: ReasonTaken}
	case holder == nil:
		return CheckResult{Available: true}
	case currentSiteID != "" && holder.ID == currentSiteID:
		return CheckResult{Available: true, Reason: ReasonOwn}
	default:
		return CheckResult{Available: false, Reason: ReasonTaken}
	}
}
