package jwtauth

import (
	"fmt"
	"time"
)

const (
	// DefaultPermissionsClaimKey is the claim holding user permissions when policy does not specify one.
	DefaultPermissionsClaimKey = "permissions"
	// DefaultScopeDelimiter separates scopes inside string form of scope claim.
	DefaultScopeDelimiter = " "
)

// ValidationPolicy describes what a verified token needs to carry to be accepted.
// Zero value accepts any non-expired token and reads permissions from DefaultPermissionsClaimKey.
type ValidationPolicy struct {
	// Audience, if not nil, must intersect with the token's aud claim. Empty non nil Audience rejects every token.
	Audience []string
	// Issuer, if not empty, must be exactly equal to the token's iss claim.
	Issuer string
	// RequiredScopes, if not empty, must all be present in the token's scope claim.
	RequiredScopes []string
	// ScopeDelimiter splits string form of scope claim. Defaults to DefaultScopeDelimiter.
	ScopeDelimiter string

	// PermissionsClaimKey locates array of permissions. It can be "/" delimited path into nested claim objects,
	// e.g "realm_access/roles". Defaults to DefaultPermissionsClaimKey.
	PermissionsClaimKey string

	// Leeway is tolerance applied to exp and nbf comparisons.
	Leeway time.Duration
	// IgnoreExpiration skips exp and nbf checks.
	IgnoreExpiration bool
}

func (p ValidationPolicy) permissionsClaimKey() string {
	if p.PermissionsClaimKey == "" {
		return DefaultPermissionsClaimKey
	}
	return p.PermissionsClaimKey
}

func (p ValidationPolicy) scopeDelimiter() string {
	if p.ScopeDelimiter == "" {
		return DefaultScopeDelimiter
	}
	return p.ScopeDelimiter
}

// Reason tells why token was rejected.
type Reason int

const (
	// ReasonNone is set on accepted decisions.
	ReasonNone Reason = iota
	ReasonExpired
	ReasonInvalidAudience
	ReasonInvalidIssuer
	ReasonMissingScope
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonExpired:
		return "expired"
	case ReasonInvalidAudience:
		return "invalid_audience"
	case ReasonInvalidIssuer:
		return "invalid_issuer"
	case ReasonMissingScope:
		return "missing_scope"
	}
	return fmt.Sprintf("unknown(%d)", int(r))
}

// AuthDecision is result of claims validation. It is either accepted, with claims and granted permissions,
// or rejected with Reason.
type AuthDecision struct {
	// Reason is ReasonNone for accepted decisions.
	Reason Reason

	// Claims and Permissions are only set on accepted decisions.
	Claims      Claims
	Permissions Permissions
}

// Accepted constructs accepted decision.
func Accepted(claims Claims, perms Permissions) AuthDecision {
	return AuthDecision{Reason: ReasonNone, Claims: claims, Permissions: perms}
}

// Rejected constructs rejected decision.
func Rejected(reason Reason) AuthDecision {
	return AuthDecision{Reason: reason}
}

// Accepted returns true if token passed all checks.
func (d AuthDecision) Accepted() bool {
	return d.Reason == ReasonNone
}

// Err returns nil for accepted decisions and *RejectedError otherwise.
func (d AuthDecision) Err() error {
	if d.Accepted() {
		return nil
	}
	return &RejectedError{Reason: d.Reason}
}
