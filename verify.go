package jwtauth

// This file was heavily inspired by github.com/coreos/go-oidc/verify.go

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"

	"gopkg.in/square/go-jose.v2"
)

// Verifier is anything that can verify token signature and return its claims.
// Verifier does not validate claims themselves, see Validator.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (Claims, error)
}

// VerifierFunc adapts function to Verifier.
type VerifierFunc func(ctx context.Context, rawToken string) (Claims, error)

// Verify calls f.
func (f VerifierFunc) Verify(ctx context.Context, rawToken string) (Claims, error) {
	return f(ctx, rawToken)
}

// VerificationConfig is the configuration for a JWSVerifier.
type VerificationConfig struct {
	// If specified, only this set of algorithms may be used to sign the JWT.
	//
	// Since many providers only support RS256, SupportedSigningAlgs defaults to this value.
	SupportedSigningAlgs []string
}

// JWSVerifier verifies compact serialized JWS tokens against keys from KeySet.
type JWSVerifier struct {
	keySet KeySet
	cfg    VerificationConfig
}

// NewVerifier constructs JWSVerifier.
func NewVerifier(keySet KeySet, cfg VerificationConfig) *JWSVerifier {
	if len(cfg.SupportedSigningAlgs) == 0 {
		cfg.SupportedSigningAlgs = []string{string(jose.RS256)}
	}
	return &JWSVerifier{keySet: keySet, cfg: cfg}
}

func parseJWT(p string) ([]byte, error) {
	parts := strings.Split(p, ".")
	if len(parts) != 3 {
		return nil, newVerificationError(nil, "malformed jwt, expected 3 parts got %d", len(parts))
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, newVerificationError(err, "malformed jwt payload")
	}
	return payload, nil
}

func contains(sli []string, ele string) bool {
	for _, s := range sli {
		if s == ele {
			return true
		}
	}
	return false
}

// Verify parses a raw token, verifies it's been signed by one of the keys in KeySet using one of
// the supported algorithms, and returns the payload claims. All errors are *VerificationError.
func (v *JWSVerifier) Verify(ctx context.Context, rawToken string) (Claims, error) {
	jws, err := jose.ParseSigned(rawToken)
	if err != nil {
		return nil, newVerificationError(err, "malformed jwt")
	}

	payload, err := parseJWT(rawToken)
	if err != nil {
		return nil, err
	}
	claims, err := ParseClaims(payload)
	if err != nil {
		return nil, newVerificationError(err, "malformed jwt")
	}

	var keyIDs, gotAlgs []string
	for _, sig := range jws.Signatures {
		if contains(v.cfg.SupportedSigningAlgs, sig.Header.Algorithm) {
			keyIDs = append(keyIDs, sig.Header.KeyID)
		} else {
			gotAlgs = append(gotAlgs, sig.Header.Algorithm)
		}
	}
	if len(keyIDs) == 0 {
		return nil, newVerificationError(nil, "no signatures use a supported algorithm, expected %q got %q", v.cfg.SupportedSigningAlgs, gotAlgs)
	}

	keys, err := v.keySet.KeysWithID(ctx, keyIDs)
	if err != nil {
		return nil, newVerificationError(err, "get keys for token")
	}
	if len(keys) == 0 {
		return nil, newVerificationError(nil, "no keys match signature ID(s) %q", keyIDs)
	}

	var gotPayload []byte
	for i := range keys {
		if p, err := jws.Verify(&keys[i]); err == nil {
			gotPayload = p
			break
		}
	}
	if len(gotPayload) == 0 {
		return nil, newVerificationError(nil, "failed to verify signature")
	}

	if !bytes.Equal(gotPayload, payload) {
		return nil, newVerificationError(nil, "internal error, payload parsed did not match previous payload")
	}
	return claims, nil
}
