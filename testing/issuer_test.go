package jwtauth_testing

import (
	"testing"
	"time"

	"github.com/bwplotka/jwtauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenClaims_Claims(t *testing.T) {
	exp := time.Unix(1500000000, 0)
	c := TokenClaims{
		Audience:    []string{"client1"},
		Subject:     "sub1",
		Scopes:      []string{"openid", "profile"},
		Permissions: []string{"admin"},
		ExpiresAt:   exp,
		Extra:       jwtauth.Claims{"custom": "x"},
	}.Claims("https://issuer.org", "realm_access/roles")

	assert.Equal(t, "https://issuer.org", c[jwtauth.ClaimIssuer])
	assert.Equal(t, "sub1", c[jwtauth.ClaimSubject])
	assert.Equal(t, []string{"client1"}, c[jwtauth.ClaimAudience])
	assert.Equal(t, "openid profile", c[jwtauth.ClaimScope])
	assert.Equal(t, jwtauth.NewNumericDate(exp), c[jwtauth.ClaimExpiry])
	assert.Equal(t, "x", c["custom"])
	assert.Equal(t, []string{"admin"}, jwtauth.DerivePermissions(c, "realm_access/roles").List())

	empty := TokenClaims{}.Claims("https://issuer.org", jwtauth.DefaultPermissionsClaimKey)
	for _, name := range []string{jwtauth.ClaimSubject, jwtauth.ClaimAudience, jwtauth.ClaimScope, jwtauth.DefaultPermissionsClaimKey} {
		_, ok := empty[name]
		assert.False(t, ok, name)
	}
	expiry, ok := empty.Time(jwtauth.ClaimExpiry)
	require.True(t, ok)
	assert.True(t, expiry.After(time.Now()))

	overridden := TokenClaims{Extra: jwtauth.Claims{jwtauth.ClaimIssuer: "https://other.org"}}.Claims("https://issuer.org", "p")
	assert.Equal(t, "https://other.org", overridden[jwtauth.ClaimIssuer])
}
