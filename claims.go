package jwtauth

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Standard claim names used by the validator.
const (
	ClaimIssuer    = "iss"
	ClaimSubject   = "sub"
	ClaimAudience  = "aud"
	ClaimExpiry    = "exp"
	ClaimNotBefore = "nbf"
	ClaimIssuedAt  = "iat"
	ClaimID        = "jti"
	ClaimScope     = "scope"
)

// Claims is the decoded payload of a verified token.
//
// Values follow encoding/json conventions: objects are map[string]interface{}, arrays are
// []interface{} and numbers are float64. Claims must be treated as read only once decoded.
type Claims map[string]interface{}

// ParseClaims decodes raw JSON payload into Claims.
func ParseClaims(payload []byte) (Claims, error) {
	var c Claims
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, fmt.Errorf("jwtauth: failed to unmarshal claims: %v", err)
	}
	if c == nil {
		return nil, fmt.Errorf("jwtauth: claims payload is not a JSON object")
	}
	return c, nil
}

// StringValue returns the claim as a string. ok is false if it is missing or of other type.
func (c Claims) StringValue(name string) (string, bool) {
	s, ok := c[name].(string)
	return s, ok
}

// Object returns the claim as a nested claims object.
func (c Claims) Object(name string) (Claims, bool) {
	return asObject(c[name])
}

// Time returns the claim as time, parsing it as NumericDate.
func (c Claims) Time(name string) (time.Time, bool) {
	v, ok := c[name]
	if !ok || v == nil {
		return time.Time{}, false
	}
	n, err := numericDateOf(v)
	if err != nil {
		return time.Time{}, false
	}
	return n.Time(), true
}

// Audience returns the aud claim as a set. Single string is one element set, array is a set of its string
// elements. Missing claim gives an empty audience.
func (c Claims) Audience() Audience {
	switch aud := c[ClaimAudience].(type) {
	case string:
		return Audience{aud}
	case []string:
		return Audience(aud)
	case []interface{}:
		return Audience(stringsOf(aud))
	}
	return nil
}

// Scopes returns the scope claim split by delimiter if it is a string, or its string elements if it is an array.
// ok is false when the claim is missing or of unexpected type.
func (c Claims) Scopes(delimiter string) (scopes []string, ok bool) {
	switch s := c[ClaimScope].(type) {
	case string:
		if delimiter == "" {
			delimiter = DefaultScopeDelimiter
		}
		for _, sc := range strings.Split(s, delimiter) {
			if sc != "" {
				scopes = append(scopes, sc)
			}
		}
		return scopes, true
	case []string:
		return s, true
	case []interface{}:
		return stringsOf(s), true
	}
	return nil, false
}

// Copy returns shallow copy of claims.
func (c Claims) Copy() Claims {
	out := make(Claims, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

func asObject(v interface{}) (Claims, bool) {
	switch o := v.(type) {
	case Claims:
		return o, true
	case map[string]interface{}:
		return Claims(o), true
	}
	return nil, false
}

func stringsOf(items []interface{}) []string {
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Audience is a set of audiences the token was issued for.
type Audience []string

// Contains returns true if a is in audience.
func (a Audience) Contains(aud string) bool {
	for _, s := range a {
		if s == aud {
			return true
		}
	}
	return false
}

// Intersects returns true if at least one of the given audiences is in a.
func (a Audience) Intersects(other []string) bool {
	for _, o := range other {
		if a.Contains(o) {
			return true
		}
	}
	return false
}

// UnmarshalJSON accepts both single string and array forms.
func (a *Audience) UnmarshalJSON(b []byte) error {
	var audience []string
	err := json.Unmarshal(b, &audience)
	if err == nil {
		*a = Audience(audience)
		return nil
	}

	var audienceString string
	err = json.Unmarshal(b, &audienceString)
	if err != nil {
		return err
	}

	*a = Audience([]string{audienceString})
	return nil
}

// NumericDate is a JWT date: seconds since the epoch. Fractional values are accepted
// when decoding and truncated to whole seconds.
type NumericDate int64

// NewNumericDate constructs NumericDate from time.Time value.
func NewNumericDate(t time.Time) NumericDate {
	if t.IsZero() {
		return NumericDate(0)
	}
	return NumericDate(t.Unix())
}

// MarshalJSON serializes the given NumericDate into its JSON representation.
func (n NumericDate) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(n), 10)), nil
}

// UnmarshalJSON reads a date from its JSON representation.
func (n *NumericDate) UnmarshalJSON(b []byte) error {
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("jwtauth: failed to unmarshal NumericDate: %v", err)
	}

	*n = NumericDate(f)
	return nil
}

// Time returns time.Time representation of NumericDate.
func (n NumericDate) Time() time.Time {
	return time.Unix(int64(n), 0)
}

func numericDateOf(v interface{}) (NumericDate, error) {
	switch d := v.(type) {
	case float64:
		return NumericDate(d), nil
	case json.Number:
		f, err := d.Float64()
		if err != nil {
			return 0, err
		}
		return NumericDate(f), nil
	case int64:
		return NumericDate(d), nil
	case int:
		return NumericDate(d), nil
	case NumericDate:
		return d, nil
	}
	return 0, fmt.Errorf("jwtauth: unexpected NumericDate type %T", v)
}
