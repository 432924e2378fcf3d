package models

import "time"

// AuthCustomization carries administrator-supplied branding for a resource's
// auth page. Rows are replaced wholesale on every administrative write, never
// partially patched.
type AuthCustomization struct {
	ResourceID  int       `db:"resource_id" json:"-"`
	Enabled     bool      `db:"enabled" json:"authCustomEnabled"`
	Title       string    `db:"title" json:"authCustomTitle"`
	Description string    `db:"description" json:"authCustomDescription"`
	Logo        string    `db:"logo" json:"authCustomLogo"`
	Background  string    `db:"background" json:"authCustomBackground"`
	CSS         string    `db:"css" json:"authCustomCSS"`
	HTML        string    `db:"html" json:"authCustomHTML"`
	UpdatedAt   time.Time `db:"updated_at" json:"-"`
}
