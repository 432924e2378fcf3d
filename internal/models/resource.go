package models

import "time"

// AuthMethod identifies one way of authenticating to a protected resource.
type AuthMethod string

const (
	MethodPassword  AuthMethod = "password"
	MethodPincode   AuthMethod = "pincode"
	MethodSSO       AuthMethod = "sso"
	MethodWhitelist AuthMethod = "whitelist"
)

// Resource is a protected destination guarded by the auth portal.
type Resource struct {
	ResourceID       int       `db:"resource_id"`
	Name             string    `db:"name"`
	PasswordEnabled  bool      `db:"password_enabled"`
	PasswordHash     string    `db:"password_hash"`
	PincodeEnabled   bool      `db:"pincode_enabled"`
	PincodeHash      string    `db:"pincode_hash"`
	SSOEnabled       bool      `db:"sso_enabled"`
	WhitelistEnabled bool      `db:"whitelist_enabled"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// MethodSet is the set of methods actually offered to an authenticating user,
// computed once per resource fetch and consumed identically by the dispatcher
// and the portal bootstrap response.
type MethodSet struct {
	Password  bool `json:"password"`
	Pincode   bool `json:"pincode"`
	SSO       bool `json:"sso"`
	Whitelist bool `json:"whitelist"`
}

// OfferedMethods derives the MethodSet from the resource. A method is offered
// only when its flag is enabled AND its backing secret/config is present; an
// enabled-but-unconfigured method is never offered.
func (r *Resource) OfferedMethods() MethodSet {
	return MethodSet{
		Password:  r.PasswordEnabled && r.PasswordHash != "",
		Pincode:   r.PincodeEnabled && r.PincodeHash != "",
		SSO:       r.SSOEnabled,
		Whitelist: r.WhitelistEnabled,
	}
}

// Offers reports whether a single method is in the offered set.
func (m MethodSet) Offers(method AuthMethod) bool {
	switch method {
	case MethodPassword:
		return m.Password
	case MethodPincode:
		return m.Pincode
	case MethodSSO:
		return m.SSO
	case MethodWhitelist:
		return m.Whitelist
	default:
		return false
	}
}

// Empty reports whether no method is offered at all.
func (m MethodSet) Empty() bool {
	return !m.Password && !m.Pincode && !m.SSO && !m.Whitelist
}
