// Package ingest receives page views and form submissions from published pages and
// serves the owner-facing statistics built from them.
package ingest

import (
	"errors"
	"time"
)

var ErrInvalidSubmission = errors.New("invalid form submission")

// Visit is one page view reported by the tracking snippet.
type Visit struct {
	ID        string    `json:"id"`
	SiteID    string    `json:"site_id"`
	Path      string    `json:"path"`
	Referrer  string    `json:"referrer"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Submission is one form post from a published page.
type Submission struct {
	ID        string            `json:"id"`
	SiteID    string            `json:"site_id"`
	FormName  string            `json:"form_name"`
	FormData  map[string]string `json:"form_data"`
	CreatedAt time.Time         `json:"created_at"`
}

type SiteStats struct {
	TotalViews int64 `json:"total_views"`
	Today      int64 `json:"today"`
	Last7Days  int64 `json:"last_7_days"`
	Last30Days int64 `json:"last_30_days"`
}

type DailyVisit struct {
	Date  string `json:"date"` // YYYY-MM-DD, UTC
	Views int64  `json:"views"`
}

type FormStats struct {
	Total    int64 `json:"total"`
	Today    int64 `json:"today"`
	ThisWeek int64 `json:"this_week"`
}

type SubmissionPage struct {
	Items []Submission `json:"items"`
	Count int64        `json:"count"`
}
