package jwtauth

import (
	"crypto"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/square/go-jose.v2"
)

// PubSecKey describes key given as PEM (or bare base64 DER) strings.
type PubSecKey struct {
	// Algorithm is the JWS algorithm, e.g RS256, ES256 or HS256.
	Algorithm string `json:"algorithm"`
	KeyID     string `json:"key_id,omitempty"`
	// PublicKey is PKIX public key or certificate. For symmetric keys it holds the shared secret.
	PublicKey string `json:"public_key,omitempty"`
	// SecretKey is PKCS#8 or PKCS#1 private key. Required for signing.
	SecretKey string `json:"secret_key,omitempty"`
	Symmetric bool   `json:"symmetric,omitempty"`
}

// JWK converts key into JSON Web Key. Private key takes precedence over public one.
func (k PubSecKey) JWK() (jose.JSONWebKey, error) {
	jwk := jose.JSONWebKey{Algorithm: k.Algorithm, KeyID: k.KeyID, Use: "sig"}

	if k.Symmetric {
		secret := k.SecretKey
		if secret == "" {
			secret = k.PublicKey
		}
		if secret == "" {
			return jose.JSONWebKey{}, errors.New("jwtauth: symmetric key has no secret")
		}
		jwk.Key = []byte(secret)
		return jwk, nil
	}

	var err error
	switch {
	case k.SecretKey != "":
		jwk.Key, err = parsePrivateKey(k.SecretKey)
	case k.PublicKey != "":
		jwk.Key, err = parsePublicKey(k.PublicKey)
	default:
		return jose.JSONWebKey{}, errors.Errorf("jwtauth: key %q has neither public nor secret key", k.KeyID)
	}
	if err != nil {
		return jose.JSONWebKey{}, errors.Wrapf(err, "jwtauth: key %q", k.KeyID)
	}
	if !jwk.Valid() {
		return jose.JSONWebKey{}, errors.Errorf("jwtauth: key %q is not valid JWK", k.KeyID)
	}
	return jwk, nil
}

// ParseJWKs decodes JSON Web Keys.
func ParseJWKs(raw ...json.RawMessage) ([]jose.JSONWebKey, error) {
	keys := make([]jose.JSONWebKey, 0, len(raw))
	for i, r := range raw {
		var k jose.JSONWebKey
		if err := json.Unmarshal(r, &k); err != nil {
			return nil, errors.Wrapf(err, "jwtauth: decode JWK #%d", i)
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// LoadPEMFile reads a single PEM encoded key from path. Private keys are detected by PEM block type.
func LoadPEMFile(path string, algorithm string, keyID string) (jose.JSONWebKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return jose.JSONWebKey{}, errors.Wrapf(err, "jwtauth: read key file %s", path)
	}

	k := PubSecKey{Algorithm: algorithm, KeyID: keyID}
	if strings.Contains(string(b), "PRIVATE KEY") {
		k.SecretKey = string(b)
	} else {
		k.PublicKey = string(b)
	}
	return k.JWK()
}

// derBytes accepts both PEM armored and bare base64 DER.
func derBytes(s string) ([]byte, string, error) {
	if block, _ := pem.Decode([]byte(s)); block != nil {
		return block.Bytes, block.Type, nil
	}
	der, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, "", errors.Wrap(err, "neither PEM nor base64 DER")
	}
	return der, "", nil
}

func parsePublicKey(s string) (crypto.PublicKey, error) {
	der, typ, err := derBytes(s)
	if err != nil {
		return nil, err
	}
	if typ == "CERTIFICATE" {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, errors.Wrap(err, "parse certificate")
		}
		return cert.PublicKey, nil
	}
	if pub, err := x509.ParsePKIXPublicKey(der); err == nil {
		return pub, nil
	}
	pub, err := x509.ParsePKCS1PublicKey(der)
	if err != nil {
		return nil, errors.Wrap(err, "parse public key")
	}
	return pub, nil
}

func parsePrivateKey(s string) (crypto.PrivateKey, error) {
	der, _, err := derBytes(s)
	if err != nil {
		return nil, err
	}
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	key, err := x509.ParseECPrivateKey(der)
	if err != nil {
		return nil, errors.Wrap(err, "parse private key")
	}
	return key, nil
}
