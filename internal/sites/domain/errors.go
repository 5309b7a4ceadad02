package domain

import "errors"

var (
	ErrSiteNotFound       = errors.New("site not found")
	ErrInvalidSubdomain   = errors.New("invalid subdomain")
	ErrSubdomainReserved  = errors.New("subdomain is reserved")
	ErrSubdomainTaken     = errors.New("subdomain is already taken")
	ErrInvalidEditorData  = errors.New("invalid editor data")
	ErrBlobUpload         = errors.New("failed to upload published site")
	ErrSiteNotPublished   = errors.New("site is not published")
	ErrSubmissionNotFound = errors.New("form submission not found")
	ErrInvalidSiteName    = errors.New("site name is required")
)
