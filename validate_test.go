package jwtauth

import (
	"fmt"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Unix(1500000000, 0)

func mustClaims(t *testing.T, jsonFormat string, args ...interface{}) Claims {
	t.Helper()
	c, err := ParseClaims([]byte(fmt.Sprintf(jsonFormat, args...)))
	require.NoError(t, err)
	return c
}

func future() int64 { return testNow.Add(1 * time.Hour).Unix() }
func past() int64   { return testNow.Add(-1 * time.Hour).Unix() }

func testValidator() *Validator {
	return NewValidator(testclock.NewClock(testNow))
}

func TestValidate_Expired(t *testing.T) {
	v := testValidator()
	strictPolicy := ValidationPolicy{
		Audience:       []string{"A"},
		Issuer:         "iss1",
		RequiredScopes: []string{"read"},
	}

	for _, claims := range []Claims{
		mustClaims(t, `{"exp": %d}`, past()),
		mustClaims(t, `{"exp": %d, "aud": "A", "iss": "iss1", "scope": "read"}`, past()),
		mustClaims(t, `{"exp": %d, "aud": ["B"], "iss": "other"}`, past()),
		mustClaims(t, `{"exp": %d}`, testNow.Unix()),
		mustClaims(t, `{"aud": "A", "iss": "iss1", "scope": "read"}`),
		mustClaims(t, `{"exp": "tomorrow", "aud": "A", "iss": "iss1", "scope": "read"}`),
		mustClaims(t, `{"exp": %d, "nbf": %d, "aud": "A", "iss": "iss1", "scope": "read"}`, future(), future()),
	} {
		for _, policy := range []ValidationPolicy{{}, strictPolicy} {
			d := v.Validate(claims, policy)
			assert.Equal(t, ReasonExpired, d.Reason, "claims %v policy %+v", claims, policy)
			assert.False(t, d.Accepted())
			assert.Nil(t, d.Claims)
		}
	}
}

func TestValidate_Leeway(t *testing.T) {
	v := testValidator()
	policy := ValidationPolicy{Leeway: 30 * time.Second}

	expiredRecently := mustClaims(t, `{"exp": %d}`, testNow.Add(-10*time.Second).Unix())
	assert.True(t, v.Validate(expiredRecently, policy).Accepted())
	assert.Equal(t, ReasonExpired, v.Validate(expiredRecently, ValidationPolicy{}).Reason)

	expiredLongAgo := mustClaims(t, `{"exp": %d}`, testNow.Add(-31*time.Second).Unix())
	assert.Equal(t, ReasonExpired, v.Validate(expiredLongAgo, policy).Reason)

	notYetValid := mustClaims(t, `{"exp": %d, "nbf": %d}`, future(), testNow.Add(10*time.Second).Unix())
	assert.True(t, v.Validate(notYetValid, policy).Accepted())
	assert.Equal(t, ReasonExpired, v.Validate(notYetValid, ValidationPolicy{}).Reason)
}

func TestValidate_IgnoreExpiration(t *testing.T) {
	v := testValidator()
	policy := ValidationPolicy{IgnoreExpiration: true}

	assert.True(t, v.Validate(mustClaims(t, `{"exp": %d}`, past()), policy).Accepted())
	assert.True(t, v.Validate(mustClaims(t, `{}`), policy).Accepted())
}

func TestValidate_ClockAdvance(t *testing.T) {
	clk := testclock.NewClock(testNow)
	v := NewValidator(clk)
	claims := mustClaims(t, `{"exp": %d}`, testNow.Add(1*time.Minute).Unix())

	assert.True(t, v.Validate(claims, ValidationPolicy{}).Accepted())
	clk.Advance(1 * time.Minute)
	assert.Equal(t, ReasonExpired, v.Validate(claims, ValidationPolicy{}).Reason)
}

func TestValidate_Audience(t *testing.T) {
	v := testValidator()
	policy := ValidationPolicy{Audience: []string{"A"}}

	for _, tcase := range []struct {
		aud      string
		expected Reason
	}{
		{aud: `"aud": "A",`, expected: ReasonNone},
		{aud: `"aud": ["B", "A"],`, expected: ReasonNone},
		{aud: `"aud": ["B", "C"],`, expected: ReasonInvalidAudience},
		{aud: `"aud": "B",`, expected: ReasonInvalidAudience},
		{aud: `"aud": [],`, expected: ReasonInvalidAudience},
		{aud: `"aud": [1, {"A": "A"}],`, expected: ReasonInvalidAudience},
		{aud: ``, expected: ReasonInvalidAudience},
	} {
		claims := mustClaims(t, `{%s "exp": %d}`, tcase.aud, future())
		assert.Equal(t, tcase.expected, v.Validate(claims, policy).Reason, "aud %s", tcase.aud)
	}

	// No audience policy, no audience check.
	assert.True(t, v.Validate(mustClaims(t, `{"exp": %d, "aud": "B"}`, future()), ValidationPolicy{}).Accepted())

	multiPolicy := ValidationPolicy{Audience: []string{"X", "C"}}
	assert.True(t, v.Validate(mustClaims(t, `{"exp": %d, "aud": ["B", "C"]}`, future()), multiPolicy).Accepted())

	// Configured but empty audience matches nothing.
	emptyPolicy := ValidationPolicy{Audience: []string{}}
	assert.Equal(t, ReasonInvalidAudience, v.Validate(mustClaims(t, `{"exp": %d, "aud": "A"}`, future()), emptyPolicy).Reason)
	assert.Equal(t, ReasonInvalidAudience, v.Validate(mustClaims(t, `{"exp": %d}`, future()), emptyPolicy).Reason)
}

func TestValidate_Issuer(t *testing.T) {
	v := testValidator()
	policy := ValidationPolicy{Issuer: "iss1"}

	for _, tcase := range []struct {
		iss      string
		expected Reason
	}{
		{iss: `"iss": "iss1",`, expected: ReasonNone},
		{iss: ``, expected: ReasonInvalidIssuer},
		{iss: `"iss": "iss2",`, expected: ReasonInvalidIssuer},
		{iss: `"iss": "ISS1",`, expected: ReasonInvalidIssuer},
		{iss: `"iss": "iss1 ",`, expected: ReasonInvalidIssuer},
		{iss: `"iss": ["iss1"],`, expected: ReasonInvalidIssuer},
		{iss: `"iss": null,`, expected: ReasonInvalidIssuer},
	} {
		claims := mustClaims(t, `{%s "exp": %d}`, tcase.iss, future())
		assert.Equal(t, tcase.expected, v.Validate(claims, policy).Reason, "iss %s", tcase.iss)
	}
}

func TestValidate_Scopes(t *testing.T) {
	v := testValidator()
	policy := ValidationPolicy{RequiredScopes: []string{"read", "write"}}

	for _, tcase := range []struct {
		scope    string
		expected Reason
	}{
		{scope: `"scope": "read write",`, expected: ReasonNone},
		{scope: `"scope": "write  admin read",`, expected: ReasonNone},
		{scope: `"scope": ["write", "read"],`, expected: ReasonNone},
		{scope: `"scope": "read",`, expected: ReasonMissingScope},
		{scope: `"scope": "readwrite",`, expected: ReasonMissingScope},
		{scope: `"scope": ["read", 1],`, expected: ReasonMissingScope},
		{scope: `"scope": 42,`, expected: ReasonMissingScope},
		{scope: ``, expected: ReasonMissingScope},
	} {
		claims := mustClaims(t, `{%s "exp": %d}`, tcase.scope, future())
		assert.Equal(t, tcase.expected, v.Validate(claims, policy).Reason, "scope %s", tcase.scope)
	}

	commaPolicy := ValidationPolicy{RequiredScopes: []string{"read"}, ScopeDelimiter: ","}
	assert.True(t, v.Validate(mustClaims(t, `{"exp": %d, "scope": "write,read"}`, future()), commaPolicy).Accepted())
	assert.Equal(t, ReasonMissingScope, v.Validate(mustClaims(t, `{"exp": %d, "scope": "write read"}`, future()), commaPolicy).Reason)

	// Empty required scopes means no check, even without scope claim.
	assert.True(t, v.Validate(mustClaims(t, `{"exp": %d}`, future()), ValidationPolicy{RequiredScopes: []string{}}).Accepted())
}

func TestValidate_CheckOrder(t *testing.T) {
	v := testValidator()
	policy := ValidationPolicy{
		Audience:       []string{"A"},
		Issuer:         "iss1",
		RequiredScopes: []string{"read"},
	}

	for _, tcase := range []struct {
		claims   Claims
		expected Reason
	}{
		{claims: mustClaims(t, `{"exp": %d, "aud": "B", "iss": "x"}`, past()), expected: ReasonExpired},
		{claims: mustClaims(t, `{"exp": %d, "aud": "B", "iss": "x"}`, future()), expected: ReasonInvalidAudience},
		{claims: mustClaims(t, `{"exp": %d, "aud": "A", "iss": "x"}`, future()), expected: ReasonInvalidIssuer},
		{claims: mustClaims(t, `{"exp": %d, "aud": "A", "iss": "iss1"}`, future()), expected: ReasonMissingScope},
		{claims: mustClaims(t, `{"exp": %d, "aud": "A", "iss": "iss1", "scope": "read"}`, future()), expected: ReasonNone},
	} {
		assert.Equal(t, tcase.expected, v.Validate(tcase.claims, policy).Reason, "claims %v", tcase.claims)
	}
}

func TestValidate_AcceptedScenario(t *testing.T) {
	v := testValidator()
	claims := mustClaims(t, `{"exp": %d, "iss": "s", "aud": "s", "scope": "read write", "permissions": ["p1", 2, "p2"]}`, future())
	policy := ValidationPolicy{
		Issuer:         "s",
		Audience:       []string{"s"},
		RequiredScopes: []string{"read"},
	}

	d := v.Validate(claims, policy)
	require.True(t, d.Accepted())
	require.NoError(t, d.Err())
	assert.Equal(t, claims, d.Claims)
	assert.Equal(t, []string{"p1", "p2"}, d.Permissions.List())
	assert.Equal(t, PermissionsSource, d.Permissions.Source)
}

func TestValidate_Idempotent(t *testing.T) {
	v := testValidator()
	policy := ValidationPolicy{Audience: []string{"A"}, PermissionsClaimKey: "realm/roles"}

	for _, claims := range []Claims{
		mustClaims(t, `{"exp": %d, "aud": "A", "realm": {"roles": ["admin"]}}`, future()),
		mustClaims(t, `{"exp": %d, "aud": "B"}`, future()),
		mustClaims(t, `{"exp": %d}`, past()),
	} {
		first := v.Validate(claims, policy)
		second := v.Validate(claims, policy)
		assert.Equal(t, first, second)
	}
}

func TestAuthDecision_Err(t *testing.T) {
	err := Rejected(ReasonInvalidIssuer).Err()
	require.Error(t, err)
	assert.EqualError(t, err, "jwtauth: invalid JWT issuer")

	reason, ok := RejectionReason(err)
	assert.True(t, ok)
	assert.Equal(t, ReasonInvalidIssuer, reason)
	assert.False(t, IsVerificationError(err))

	assert.Equal(t, "missing_scope", ReasonMissingScope.String())
	assert.Equal(t, "unknown(42)", Reason(42).String())
}
