package models

import (
	"net/mail"
	"strings"
	"time"
)

// WhitelistEntry authorizes an email (or a whole domain via the wildcard form
// "*@domain.tld") to request one-time codes for a resource.
type WhitelistEntry struct {
	ResourceID   int       `db:"resource_id"`
	EmailPattern string    `db:"email_pattern"`
	CreatedAt    time.Time `db:"created_at"`
}

// Matches reports whether the entry authorizes the given email. Matching is
// case-insensitive; a wildcard entry matches when the email's domain equals
// the pattern's domain exactly (no subdomain matching).
func (e WhitelistEntry) Matches(email string) bool {
	pattern := strings.ToLower(strings.TrimSpace(e.EmailPattern))
	email = strings.ToLower(strings.TrimSpace(email))
	if pattern == "" || email == "" {
		return false
	}

	if domain, ok := strings.CutPrefix(pattern, "*@"); ok {
		at := strings.LastIndex(email, "@")
		if at < 0 {
			return false
		}
		return email[at+1:] == domain
	}

	return pattern == email
}

// ValidWhitelistPattern reports whether a pattern is acceptable at entry
// creation time: either a parseable address or the exact wildcard form
// "*@domain". Partial local-part wildcards are rejected here so the matcher
// never has to consider them.
func ValidWhitelistPattern(pattern string) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return false
	}
	if domain, ok := strings.CutPrefix(pattern, "*@"); ok {
		return domain != "" && !strings.ContainsAny(domain, "*@ ")
	}
	if strings.Contains(pattern, "*") {
		return false
	}
	addr, err := mail.ParseAddress(pattern)
	return err == nil && addr.Address == pattern
}
