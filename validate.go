package jwtauth

import (
	"github.com/juju/clock"
)

// Validator decides whether verified claims satisfy a ValidationPolicy.
// It holds no state apart from the clock and is safe for concurrent use.
type Validator struct {
	clock clock.Clock
}

// NewValidator constructs Validator. Nil clock means wall clock.
func NewValidator(clk clock.Clock) *Validator {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Validator{clock: clk}
}

// Validate runs the checks in fixed order: expiry, audience, issuer, scopes. The first failing check determines
// the rejection reason and no further checks are evaluated. Accepted decisions carry the claims and permissions
// derived from policy.PermissionsClaimKey.
func (v *Validator) Validate(claims Claims, policy ValidationPolicy) AuthDecision {
	if !policy.IgnoreExpiration && v.isExpired(claims, policy) {
		return Rejected(ReasonExpired)
	}

	if policy.Audience != nil {
		// Missing aud is an empty set, so it never intersects. Neither does an empty, but set, policy audience.
		if !claims.Audience().Intersects(policy.Audience) {
			return Rejected(ReasonInvalidAudience)
		}
	}

	if policy.Issuer != "" {
		if iss, ok := claims.StringValue(ClaimIssuer); !ok || iss != policy.Issuer {
			return Rejected(ReasonInvalidIssuer)
		}
	}

	if len(policy.RequiredScopes) > 0 && !scopesGranted(claims, policy) {
		return Rejected(ReasonMissingScope)
	}

	return Accepted(claims, DerivePermissions(claims, policy.permissionsClaimKey()))
}

// isExpired returns true if token is outside its valid time window. Token without exp is treated as expired.
func (v *Validator) isExpired(claims Claims, policy ValidationPolicy) bool {
	now := v.clock.Now()

	exp, ok := claims.Time(ClaimExpiry)
	if !ok {
		return true
	}
	if !now.Before(exp.Add(policy.Leeway)) {
		return true
	}

	if _, present := claims[ClaimNotBefore]; present {
		nbf, ok := claims.Time(ClaimNotBefore)
		if !ok {
			return true
		}
		if now.Add(policy.Leeway).Before(nbf) {
			return true
		}
	}
	return false
}

func scopesGranted(claims Claims, policy ValidationPolicy) bool {
	scopes, ok := claims.Scopes(policy.scopeDelimiter())
	if !ok {
		return false
	}

	granted := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		granted[s] = struct{}{}
	}
	for _, required := range policy.RequiredScopes {
		if _, ok := granted[required]; !ok {
			return false
		}
	}
	return true
}
