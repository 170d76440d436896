package jwtauth

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/square/go-jose.v2"

	"github.com/bwplotka/jwtauth/xerrors"
)

// PEMFile points to a PEM encoded key on disk.
type PEMFile struct {
	Path      string `json:"path"`
	Algorithm string `json:"algorithm"`
	KeyID     string `json:"key_id,omitempty"`
}

// Config is a provider configuration, usually read from YAML.
type Config struct {
	// Policy.
	Issuer              string   `json:"issuer,omitempty"`
	Audience            []string `json:"audience,omitempty"`
	RequiredScopes      []string `json:"required_scopes,omitempty"`
	ScopeDelimiter      string   `json:"scope_delimiter,omitempty"`
	PermissionsClaimKey string   `json:"permissions_claim_key,omitempty"`
	LeewaySeconds       int      `json:"leeway_seconds,omitempty"`
	IgnoreExpiration    bool     `json:"ignore_expiration,omitempty"`

	// Verification.
	SupportedSigningAlgs []string `json:"supported_signing_algs,omitempty"`

	// Keys. At least one source is required.
	// Discovery fetches jwks_uri from issuer's OpenID Connect discovery document. Requires Issuer.
	Discovery bool   `json:"discovery,omitempty"`
	JWKSURL   string `json:"jwks_url,omitempty"`
	// JWKSExpirationSeconds overrides DefaultKeySetExpiration for remote keys. 0 disables caching.
	JWKSExpirationSeconds *int              `json:"jwks_expiration_seconds,omitempty"`
	JWKs                  []json.RawMessage `json:"jwks,omitempty"`
	PubSecKeys            []PubSecKey       `json:"pub_sec_keys,omitempty"`
	PEMFiles              []PEMFile         `json:"pem_files,omitempty"`
}

// ConfigFromYaml parses and validates config.
func ConfigFromYaml(yamlContent []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(yamlContent, &c); err != nil {
		return Config{}, errors.Wrap(err, "jwtauth: failed to parse config")
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports all problems found in config.
func (c Config) Validate() error {
	errs := xerrors.New()
	if c.LeewaySeconds < 0 {
		errs.Addf("leeway_seconds must not be negative, got %d", c.LeewaySeconds)
	}
	if c.JWKSExpirationSeconds != nil && *c.JWKSExpirationSeconds < 0 {
		errs.Addf("jwks_expiration_seconds must not be negative, got %d", *c.JWKSExpirationSeconds)
	}
	if c.Discovery && c.Issuer == "" {
		errs.Addf("discovery requires issuer")
	}
	if c.Discovery && c.JWKSURL != "" {
		errs.Addf("discovery and jwks_url are mutually exclusive")
	}
	if c.JWKSURL != "" {
		if u, err := url.Parse(c.JWKSURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs.Addf("jwks_url %q is not an absolute URL", c.JWKSURL)
		}
	}
	for i, k := range c.PubSecKeys {
		if k.Algorithm == "" {
			errs.Addf("pub_sec_keys[%d]: algorithm is required", i)
		}
	}
	for i, f := range c.PEMFiles {
		if f.Path == "" {
			errs.Addf("pem_files[%d]: path is required", i)
		}
		if f.Algorithm == "" {
			errs.Addf("pem_files[%d]: algorithm is required", i)
		}
	}
	if !c.Discovery && c.JWKSURL == "" && len(c.JWKs) == 0 && len(c.PubSecKeys) == 0 && len(c.PEMFiles) == 0 {
		errs.Addf("no key source configured: set one of discovery, jwks_url, jwks, pub_sec_keys or pem_files")
	}

	if err := errs.ErrorOrNil(); err != nil {
		return errors.Wrap(err, "jwtauth: invalid config")
	}
	return nil
}

// Policy returns validation policy described by config.
func (c Config) Policy() ValidationPolicy {
	return ValidationPolicy{
		Audience:            c.Audience,
		Issuer:              c.Issuer,
		RequiredScopes:      c.RequiredScopes,
		ScopeDelimiter:      c.ScopeDelimiter,
		PermissionsClaimKey: c.PermissionsClaimKey,
		Leeway:              time.Duration(c.LeewaySeconds) * time.Second,
		IgnoreExpiration:    c.IgnoreExpiration,
	}
}

// LoadKeys loads all locally configured keys: inline JWKs, PEM strings and PEM files.
func (c Config) LoadKeys() ([]jose.JSONWebKey, error) {
	keys, err := ParseJWKs(c.JWKs...)
	if err != nil {
		return nil, err
	}
	for _, k := range c.PubSecKeys {
		jwk, err := k.JWK()
		if err != nil {
			return nil, err
		}
		keys = append(keys, jwk)
	}
	for _, f := range c.PEMFiles {
		jwk, err := LoadPEMFile(f.Path, f.Algorithm, f.KeyID)
		if err != nil {
			return nil, err
		}
		keys = append(keys, jwk)
	}
	return keys, nil
}

func (c Config) jwksExpiration() time.Duration {
	if c.JWKSExpirationSeconds == nil {
		return DefaultKeySetExpiration
	}
	return time.Duration(*c.JWKSExpirationSeconds) * time.Second
}

// NewProviderFromConfig loads keys and constructs Provider. Local keys are tried before remote ones.
// The first private or symmetric key, if any, is used for GenerateToken.
//
// ctx is used for discovery and remote key fetches for the whole life of the provider.
func NewProviderFromConfig(ctx context.Context, c Config, opts ...Option) (*Provider, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	keys, err := c.LoadKeys()
	if err != nil {
		return nil, err
	}

	var sets []KeySet
	if len(keys) > 0 {
		sets = append(sets, NewStaticKeySet(keys...))
	}

	jwksURL := c.JWKSURL
	if c.Discovery {
		d, err := Discover(ctx, c.Issuer)
		if err != nil {
			return nil, err
		}
		jwksURL = d.JWKSURL
	}
	if jwksURL != "" {
		sets = append(sets, NewCachedKeySet(NewRemoteKeySet(ctx, jwksURL), c.jwksExpiration()))
	}

	algs := c.SupportedSigningAlgs
	if len(algs) == 0 {
		algs = algorithmsOf(keys)
		if jwksURL != "" && len(algs) > 0 && !contains(algs, string(jose.RS256)) {
			algs = append(algs, string(jose.RS256))
		}
	}
	verifier := NewVerifier(NewMultiKeySet(sets...), VerificationConfig{SupportedSigningAlgs: algs})

	p := NewProvider(verifier, c.Policy(), opts...)
	if p.signer == nil {
		for _, k := range keys {
			if k.Key == nil || k.IsPublic() {
				continue
			}
			s, err := NewSigner(k, c.PermissionsClaimKey, p.validator.clock)
			if err != nil {
				return nil, err
			}
			p.signer = s
			p.logger.Debug("token signing enabled", zap.String("kid", k.KeyID), zap.String("alg", k.Algorithm))
			break
		}
	}
	return p, nil
}

// algorithmsOf returns distinct algorithms of keys. Nil result falls back to verifier default.
func algorithmsOf(keys []jose.JSONWebKey) []string {
	var algs []string
	for _, k := range keys {
		if k.Algorithm != "" && !contains(algs, k.Algorithm) {
			algs = append(algs, k.Algorithm)
		}
	}
	return algs
}
