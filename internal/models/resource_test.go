package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOfferedMethodsRequiresFlagAndSecret(t *testing.T) {
	res := Resource{
		ResourceID:      1,
		PasswordEnabled: true,
		PasswordHash:    "$argon2id$...",
		PincodeEnabled:  true,
		PincodeHash:     "",
	}

	offered := res.OfferedMethods()
	assert.True(t, offered.Password)
	assert.False(t, offered.Pincode, "enabled without a stored hash is not offered")
	assert.False(t, offered.SSO)
	assert.False(t, offered.Whitelist)
}

func TestOfferedMethodsSecretWithoutFlag(t *testing.T) {
	res := Resource{
		ResourceID:   1,
		PasswordHash: "$argon2id$...",
	}

	offered := res.OfferedMethods()
	assert.False(t, offered.Password, "a stored hash alone does not offer the method")
	assert.True(t, offered.Empty())
}

func TestMethodSetOffers(t *testing.T) {
	m := MethodSet{Password: true, SSO: true}

	assert.True(t, m.Offers(MethodPassword))
	assert.True(t, m.Offers(MethodSSO))
	assert.False(t, m.Offers(MethodPincode))
	assert.False(t, m.Offers(MethodWhitelist))
	assert.False(t, m.Offers(AuthMethod("bogus")))
}

func TestMethodSetEmpty(t *testing.T) {
	assert.True(t, MethodSet{}.Empty())
	assert.False(t, MethodSet{Whitelist: true}.Empty())
}
