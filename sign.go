package jwtauth

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/pkg/errors"
	"gopkg.in/square/go-jose.v2"
)

// SignOptions are applied to claims before signing. Non empty options override claims of the same name,
// except Permissions which are only added when the token has no permissions claim yet.
type SignOptions struct {
	Issuer   string
	Subject  string
	Audience []string

	// ExpiresIn sets exp relative to now.
	ExpiresIn time.Duration
	// NoTimestamp skips setting iat.
	NoTimestamp bool
	// GenerateID sets random jti unless one is present.
	GenerateID bool

	Permissions []string
}

// Signer signs claims into compact JWS tokens.
type Signer struct {
	signer              jose.Signer
	permissionsClaimKey string
	clock               clock.Clock
}

// NewSigner constructs Signer using private (or symmetric) key. Algorithm is taken from key and defaults to RS256.
// Permissions given in SignOptions are stored under permissionsClaimKey (DefaultPermissionsClaimKey if empty).
func NewSigner(key jose.JSONWebKey, permissionsClaimKey string, clk clock.Clock) (*Signer, error) {
	alg := jose.SignatureAlgorithm(key.Algorithm)
	if alg == "" {
		alg = jose.RS256
	}
	so := (&jose.SignerOptions{}).WithType("JWT")
	if key.KeyID != "" {
		// Symmetric keys do not get kid header on their own.
		so = so.WithHeader(jose.HeaderKey("kid"), key.KeyID)
	}
	s, err := jose.NewSigner(jose.SigningKey{Algorithm: alg, Key: key}, so)
	if err != nil {
		return nil, errors.Wrapf(err, "jwtauth: create %s signer", alg)
	}

	if permissionsClaimKey == "" {
		permissionsClaimKey = DefaultPermissionsClaimKey
	}
	if clk == nil {
		clk = clock.WallClock
	}
	return &Signer{signer: s, permissionsClaimKey: permissionsClaimKey, clock: clk}, nil
}

// Sign returns compact serialized token. Given claims are not modified.
func (s *Signer) Sign(claims Claims, opts SignOptions) (string, error) {
	c := claims.Copy()
	now := s.clock.Now()

	if !opts.NoTimestamp {
		c[ClaimIssuedAt] = NewNumericDate(now)
	}
	if opts.ExpiresIn > 0 {
		c[ClaimExpiry] = NewNumericDate(now.Add(opts.ExpiresIn))
	}
	if opts.Issuer != "" {
		c[ClaimIssuer] = opts.Issuer
	}
	if opts.Subject != "" {
		c[ClaimSubject] = opts.Subject
	}
	switch len(opts.Audience) {
	case 0:
	case 1:
		c[ClaimAudience] = opts.Audience[0]
	default:
		c[ClaimAudience] = opts.Audience
	}
	if _, ok := c[ClaimID]; !ok && opts.GenerateID {
		c[ClaimID] = uuid.NewString()
	}
	if opts.Permissions != nil {
		c = withPermissions(c, s.permissionsClaimKey, opts.Permissions)
	}

	payload, err := json.Marshal(c)
	if err != nil {
		return "", errors.Wrap(err, "jwtauth: marshal claims")
	}
	obj, err := s.signer.Sign(payload)
	if err != nil {
		return "", errors.Wrap(err, "jwtauth: sign")
	}
	return obj.CompactSerialize()
}

// withPermissions puts perms at claimPath unless something is there already. Objects along the path are copied,
// so nested objects shared with caller claims are never modified. If an intermediate segment is not an object,
// claims are returned untouched.
func withPermissions(c Claims, claimPath string, perms []string) Claims {
	segments := strings.Split(claimPath, "/")
	last := len(segments) - 1

	node := c
	for _, seg := range segments[:last] {
		v, present := node[seg]
		if !present {
			child := Claims{}
			node[seg] = child
			node = child
			continue
		}
		obj, ok := asObject(v)
		if !ok {
			return c
		}
		child := obj.Copy()
		node[seg] = child
		node = child
	}

	if _, present := node[segments[last]]; !present {
		node[segments[last]] = append([]string(nil), perms...)
	}
	return c
}
