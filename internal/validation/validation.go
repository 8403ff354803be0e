package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mikedesigns-nvisia/spiral-journal/internal/types"
)

// MaxContentLength bounds journal entry content in runes.
const MaxContentLength = 10000

// MaxMoodCount bounds how many mood labels an entry may carry.
const MaxMoodCount = 10

// MaxMoodLength bounds a single mood label in runes.
const MaxMoodLength = 50

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Collector accumulates validation errors without failing on first.
type Collector struct {
	errors []ValidationError
}

// Add appends a validation error to the collector if non-nil.
func (c *Collector) Add(err *ValidationError) {
	if err != nil {
		c.errors = append(c.errors, *err)
	}
}

// HasErrors returns true if the collector has accumulated any errors.
func (c *Collector) HasErrors() bool {
	return len(c.errors) > 0
}

// Errors returns all accumulated validation errors.
func (c *Collector) Errors() []ValidationError {
	return c.errors
}

// ValidateSubmitRequest validates an entry submission.
// Content rules mirror the pipeline contract: empty content is rejected
// before any provider call or queue write.
func ValidateSubmitRequest(req types.SubmitRequest) []ValidationError {
	var c Collector

	c.Add(ValidateRequired("content", req.Content))
	c.Add(ValidateUTF8("content", req.Content))
	c.Add(ValidateNoNullBytes("content", req.Content))
	c.Add(ValidateMaxLength("content", req.Content, MaxContentLength))

	if req.ID != "" {
		c.Add(ValidateULID("id", req.ID))
	}

	if len(req.Moods) > MaxMoodCount {
		c.Add(&ValidationError{
			Field:   "moods",
			Message: fmt.Sprintf("exceeds maximum of %d labels", MaxMoodCount),
		})
	}
	for i, mood := range req.Moods {
		field := fmt.Sprintf("moods[%d]", i)
		c.Add(ValidateRequired(field, mood))
		c.Add(ValidateUTF8(field, mood))
		c.Add(ValidateMaxLength(field, mood, MaxMoodLength))
	}

	return c.Errors()
}

// ValidateUTF8 returns an error if the value is not valid UTF-8.
func ValidateUTF8(field, value string) *ValidationError {
	if !utf8.ValidString(value) {
		return &ValidationError{
			Field:   field,
			Message: "must be valid UTF-8",
		}
	}
	return nil
}

// ValidateNoNullBytes returns an error if the value contains null bytes.
func ValidateNoNullBytes(field, value string) *ValidationError {
	if strings.Contains(value, "\x00") {
		return &ValidationError{
			Field:   field,
			Message: "must not contain null bytes",
		}
	}
	return nil
}

// ValidateMaxLength returns an error if the value exceeds max runes.
func ValidateMaxLength(field, value string, max int) *ValidationError {
	if utf8.RuneCountInString(value) > max {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("exceeds maximum length of %d characters", max),
		}
	}
	return nil
}

// ValidateULID returns an error if the value is not a valid ULID format.
// ULIDs are 26 characters using Crockford Base32 (excludes I, L, O, U).
func ValidateULID(field, value string) *ValidationError {
	if len(value) != 26 {
		return &ValidationError{
			Field:   field,
			Message: "must be a valid ULID (26 characters)",
		}
	}

	const crockfordBase32 = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"
	for _, r := range value {
		upper := strings.ToUpper(string(r))
		if !strings.Contains(crockfordBase32, upper) {
			return &ValidationError{
				Field:   field,
				Message: "must be a valid ULID (invalid character)",
			}
		}
	}
	return nil
}

// ValidateRequired returns an error if the value is empty or whitespace-only.
func ValidateRequired(field, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{
			Field:   field,
			Message: "is required",
		}
	}
	return nil
}

// ValidateRange returns an error if the value is outside [min, max].
func ValidateRange(field string, value, min, max float64) *ValidationError {
	if value < min || value > max {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be between %.1f and %.1f", min, max),
		}
	}
	return nil
}
