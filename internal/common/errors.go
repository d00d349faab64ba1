package common

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotFound          = errors.New("not found")
	ErrRemoteUnavailable = errors.New("remote store unavailable")

	// wizard specific errors
	ErrDraftNotInitialized = errors.New("draft has not been created yet")
	ErrDraftSubmitted      = errors.New("draft has already been submitted")
	ErrStepOutOfRange      = errors.New("step out of range")
	ErrDraftBusy           = errors.New("draft is being saved by another request")
	ErrInvalidTransition   = errors.New("invalid application status transition")
)

// QuotaExceededError is returned when an owner already holds as many stores
// as the plan allows. Its message is shown to the user as is.
type QuotaExceededError struct {
	Limit int
	Plan  string
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("store limit reached: the %s plan allows %d store(s)", e.Plan, e.Limit)
}

// UploadRejectedError is returned when an attachment violates the plan's upload policy.
type UploadRejectedError struct {
	Reason string
}

func (e *UploadRejectedError) Error() string {
	return "upload rejected: " + e.Reason
}

// ValidationError maps field names to messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
