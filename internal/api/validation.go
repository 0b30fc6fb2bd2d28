package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/STRATINT/eventfeed/internal/ingestion"
	"github.com/STRATINT/eventfeed/internal/models"
	"github.com/STRATINT/eventfeed/internal/moderation"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200

	maxTitleLength  = 300
	maxReasonLength = 500
	maxTagLength    = 50
	maxTags         = 20
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ParseEventFilter reads status, source, limit and offset query parameters.
func ParseEventFilter(q url.Values) (ingestion.CandidateFilter, error) {
	filter := ingestion.CandidateFilter{Limit: defaultPageSize}

	if s := q.Get("status"); s != "" {
		status := models.Status(strings.ToLower(s))
		if !status.Valid() {
			return filter, ValidationError{Field: "status", Message: "must be one of pending, approved, archived"}
		}
		filter.Status = status
	}
	filter.Source = models.SourceTag(strings.TrimSpace(q.Get("source")))

	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxPageSize {
			return filter, ValidationError{Field: "limit", Message: fmt.Sprintf("must be between 1 and %d", maxPageSize)}
		}
		filter.Limit = n
	}
	if s := q.Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return filter, ValidationError{Field: "offset", Message: "must be a non-negative integer"}
		}
		filter.Offset = n
	}
	return filter, nil
}

// ParseRunOptions reads strategy and force_deduplication query parameters.
// Unknown strategies are passed through; the orchestrator falls back to
// comprehensive for them.
func ParseRunOptions(q url.Values) (ingestion.RunOptions, error) {
	opts := ingestion.RunOptions{Strategy: strings.TrimSpace(q.Get("strategy"))}
	if s := q.Get("force_deduplication"); s != "" {
		force, err := strconv.ParseBool(s)
		if err != nil {
			return opts, ValidationError{Field: "force_deduplication", Message: "must be true or false"}
		}
		opts.ForceDedup = force
	}
	return opts, nil
}

// ValidateReason bounds the rejection reason.
func ValidateReason(reason string) error {
	if len(reason) > maxReasonLength {
		return ValidationError{Field: "reason", Message: fmt.Sprintf("must be at most %d characters", maxReasonLength)}
	}
	return nil
}

// ValidateEdit checks the shape of edited fields. Business rules such as a
// non-empty title are enforced by the moderator.
func ValidateEdit(f moderation.EditFields) error {
	if f.Title != nil && len(*f.Title) > maxTitleLength {
		return ValidationError{Field: "title", Message: fmt.Sprintf("must be at most %d characters", maxTitleLength)}
	}
	if f.SourceURL != nil && *f.SourceURL != "" {
		if err := ValidateURL(*f.SourceURL); err != nil {
			return ValidationError{Field: "source_url", Message: err.(ValidationError).Message}
		}
	}
	if f.ImageURL != nil && *f.ImageURL != "" {
		if err := ValidateURL(*f.ImageURL); err != nil {
			return ValidationError{Field: "image_url", Message: err.(ValidationError).Message}
		}
	}
	if f.Tags != nil {
		if len(*f.Tags) > maxTags {
			return ValidationError{Field: "tags", Message: fmt.Sprintf("at most %d tags allowed", maxTags)}
		}
		for _, tag := range *f.Tags {
			if len(tag) > maxTagLength {
				return ValidationError{Field: "tags", Message: fmt.Sprintf("tag %q is longer than %d characters", tag, maxTagLength)}
			}
		}
	}
	return nil
}

// ValidateURL validates a URL string
func ValidateURL(urlStr string) error {
	if urlStr == "" {
		return ValidationError{Field: "url", Message: "URL is required"}
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return ValidationError{Field: "url", Message: "Invalid URL format"}
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return ValidationError{Field: "url", Message: "URL must use http or https scheme"}
	}

	if parsedURL.Host == "" {
		return ValidationError{Field: "url", Message: "URL must have a host"}
	}

	return nil
}
