package service

import (
	"errors"
	"fmt"
)

// Internal denial causes. They are logged and published to the audit stream
// with full detail, but every one of them surfaces externally as the same
// uniform ErrAccessDenied so that callers cannot enumerate resources,
// accounts, or whitelisted emails.
var (
	ErrResourceNotFound     = errors.New("resource not found")
	ErrMethodNotOffered     = errors.New("method not offered")
	ErrInvalidCredential    = errors.New("invalid credential")
	ErrEmailNotAuthorized   = errors.New("email not authorized")
	ErrChallengeExpired     = errors.New("challenge expired")
	ErrChallengeRateLimited = errors.New("challenge issue rate exceeded")
	ErrInvalidCode          = errors.New("invalid code")
	ErrStoreUnavailable     = errors.New("store unavailable")
)

// ErrAccessDenied is the only authentication error the HTTP surface exposes.
var ErrAccessDenied = errors.New("access denied")

// ValidationError reports which customization field failed which rule. It is
// administrator-facing and carries field-level detail.
type ValidationError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: field %q violates rule %q", e.Field, e.Rule)
}
