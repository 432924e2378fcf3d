package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWhitelistEntryMatchesExact(t *testing.T) {
	entry := WhitelistEntry{ResourceID: 1, EmailPattern: "alice@example.com"}

	assert.True(t, entry.Matches("alice@example.com"))
	assert.True(t, entry.Matches("Alice@Example.COM"), "matching is case-insensitive")
	assert.True(t, entry.Matches("  alice@example.com  "), "surrounding whitespace is ignored")

	assert.False(t, entry.Matches("bob@example.com"))
	assert.False(t, entry.Matches("alice@example.org"))
	assert.False(t, entry.Matches(""))
}

func TestWhitelistEntryMatchesWildcard(t *testing.T) {
	entry := WhitelistEntry{ResourceID: 1, EmailPattern: "*@example.com"}

	assert.True(t, entry.Matches("alice@example.com"))
	assert.True(t, entry.Matches("BOB@EXAMPLE.COM"))

	assert.False(t, entry.Matches("alice@sub.example.com"), "subdomains do not match")
	assert.False(t, entry.Matches("alice@examplex.com"))
	assert.False(t, entry.Matches("alice@xexample.com"))
	assert.False(t, entry.Matches("example.com"), "bare domain is not an address")
	assert.False(t, entry.Matches(""))
}

func TestWhitelistEntryMatchesEmptyPattern(t *testing.T) {
	entry := WhitelistEntry{ResourceID: 1, EmailPattern: ""}
	assert.False(t, entry.Matches("alice@example.com"))
}

func TestValidWhitelistPattern(t *testing.T) {
	valid := []string{
		"alice@example.com",
		"a.b+tag@example.co.uk",
		"*@example.com",
		"*@sub.example.com",
	}
	for _, p := range valid {
		assert.True(t, ValidWhitelistPattern(p), "pattern %q should be valid", p)
	}

	invalid := []string{
		"",
		"   ",
		"*@",
		"*@*",
		"*@exa mple.com",
		"*@exa@mple.com",
		"ali*ce@example.com",
		"alice@*.example.com",
		"not-an-address",
		"alice@",
	}
	for _, p := range invalid {
		assert.False(t, ValidWhitelistPattern(p), "pattern %q should be rejected", p)
	}
}
