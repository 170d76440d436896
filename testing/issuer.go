// Package jwtauth_testing issues signed tokens for tests. Every token is signed with a fresh RSA key, and the
// issuer's discovery document and JWKS endpoint are served by a mocked HTTP client.
package jwtauth_testing

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Bplotka/go-httpt"
	"github.com/Bplotka/go-httpt/rt"
	"github.com/Bplotka/go-jwt"
	"github.com/bwplotka/jwtauth"
	"github.com/stretchr/testify/require"
	"gopkg.in/square/go-jose.v2"
)

// DefaultIssuerURL is used when Issuer.URL is empty.
const DefaultIssuerURL = "https://issuer.org"

// TokenClaims describes a token to issue. Zero value is a token without audience, subject, scopes or permissions
// that expires in an hour.
type TokenClaims struct {
	Audience []string
	Subject  string

	// Scopes are joined with a space into the scope claim. Nil means no scope claim.
	Scopes []string
	// Permissions are stored under Issuer.PermissionsClaimKey. Nil means no permissions claim.
	Permissions []string

	// ExpiresAt defaults to an hour from now.
	ExpiresAt time.Time
	// Extra claims are set last and override everything above, including iss.
	Extra jwtauth.Claims
}

// Claims builds the payload for issuer. Permissions key can be a "/" delimited path.
func (c TokenClaims) Claims(issuer string, permissionsClaimKey string) jwtauth.Claims {
	now := time.Now()
	exp := c.ExpiresAt
	if exp.IsZero() {
		exp = now.Add(1 * time.Hour)
	}

	out := jwtauth.Claims{
		jwtauth.ClaimIssuer:   issuer,
		jwtauth.ClaimIssuedAt: jwtauth.NewNumericDate(now),
		jwtauth.ClaimExpiry:   jwtauth.NewNumericDate(exp),
	}
	if c.Subject != "" {
		out[jwtauth.ClaimSubject] = c.Subject
	}
	if len(c.Audience) > 0 {
		out[jwtauth.ClaimAudience] = c.Audience
	}
	if c.Scopes != nil {
		out[jwtauth.ClaimScope] = strings.Join(c.Scopes, " ")
	}
	if c.Permissions != nil {
		setPath(out, permissionsClaimKey, c.Permissions)
	}
	for k, v := range c.Extra {
		out[k] = v
	}
	return out
}

func setPath(c jwtauth.Claims, path string, v interface{}) {
	segments := strings.Split(path, "/")
	node := map[string]interface{}(c)
	for _, seg := range segments[:len(segments)-1] {
		child, ok := node[seg].(map[string]interface{})
		if !ok {
			child = map[string]interface{}{}
			node[seg] = child
		}
		node = child
	}
	node[segments[len(segments)-1]] = v
}

// Issuer is a fake token issuer with mocked discovery and JWKS endpoints.
type Issuer struct {
	URL                 string
	PermissionsClaimKey string

	t       *testing.T
	srv     *httpt.Server
	testCtx context.Context
}

// NewIssuer constructs Issuer at DefaultIssuerURL that stores permissions under jwtauth.DefaultPermissionsClaimKey.
func NewIssuer(t *testing.T) *Issuer {
	i := &Issuer{}
	i.Setup(t)
	return i
}

// Setup fills defaults and prepares mocked HTTP server. Must be called before anything else.
func (i *Issuer) Setup(t *testing.T) {
	i.t = t
	if i.URL == "" {
		i.URL = DefaultIssuerURL
	}
	if i.PermissionsClaimKey == "" {
		i.PermissionsClaimKey = jwtauth.DefaultPermissionsClaimKey
	}
	i.srv = httpt.NewServer(t)
	i.testCtx = context.WithValue(context.TODO(), jwtauth.HTTPClientCtxKey, i.srv.HTTPClient())
}

// Context carries the mocked HTTP client. Pass it to jwtauth.NewProviderFromConfig.
func (i *Issuer) Context() context.Context {
	return i.testCtx
}

// JWKSURL is the keys endpoint advertised in discovery.
func (i *Issuer) JWKSURL() string {
	return i.URL + "/jwks"
}

// Config returns provider config that discovers this issuer's keys without caching them, since every token
// is signed with a different key.
func (i *Issuer) Config() jwtauth.Config {
	noCache := 0
	return jwtauth.Config{
		Issuer:                i.URL,
		Discovery:             true,
		JWKSExpirationSeconds: &noCache,
		PermissionsClaimKey:   i.PermissionsClaimKey,
	}
}

// ExpectDiscovery queues one discovery response. advertisedIssuer overrides issuer in the document when not empty.
func (i *Issuer) ExpectDiscovery(advertisedIssuer string) {
	d := jwtauth.DiscoveryJSON{Issuer: i.URL, JWKSURL: i.JWKSURL()}
	if advertisedIssuer != "" {
		d.Issuer = advertisedIssuer
	}
	b, err := json.Marshal(d)
	require.NoError(i.t, err)

	i.srv.On("GET", i.URL+jwtauth.DiscoveryEndpoint).Push(rt.JSONResponseFunc(http.StatusOK, b))
}

// ExpectKeys queues one JWKS response.
func (i *Issuer) ExpectKeys(jwks []byte) {
	i.srv.On("GET", i.JWKSURL()).Push(rt.JSONResponseFunc(http.StatusOK, jwks))
}

// Issue signs claims with a fresh key and returns the token and JWKS holding its public key.
func (i *Issuer) Issue(c TokenClaims) (token string, jwks []byte) {
	builder, err := jwt.NewDefaultBuilder()
	require.NoError(i.t, err)

	token, err = builder.JWS().Claims(map[string]interface{}(c.Claims(i.URL, i.PermissionsClaimKey))).CompactSerialize()
	require.NoError(i.t, err)

	jwks, err = json.Marshal(&jose.JSONWebKeySet{Keys: []jose.JSONWebKey{builder.PublicJWK()}})
	require.NoError(i.t, err)
	return token, jwks
}

// IssueAndExpect issues token and queues JWKS response needed to verify it.
func (i *Issuer) IssueAndExpect(c TokenClaims) string {
	token, jwks := i.Issue(c)
	i.ExpectKeys(jwks)
	return token
}

// Pending returns number of queued mocked responses that were not consumed.
func (i *Issuer) Pending() int {
	return i.srv.Len()
}
