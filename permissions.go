package jwtauth

import (
	"sort"
	"strings"
)

// PermissionsSource labels permissions granted from token claims.
const PermissionsSource = "jwt-authentication"

// Permissions is a set of permission strings together with a label of where they came from.
type Permissions struct {
	Source string
	set    map[string]struct{}
}

// NewPermissions constructs Permissions from given list. Duplicates are collapsed.
func NewPermissions(source string, perms ...string) Permissions {
	p := Permissions{Source: source, set: make(map[string]struct{}, len(perms))}
	for _, perm := range perms {
		p.set[perm] = struct{}{}
	}
	return p
}

// Has returns true if permission is granted.
func (p Permissions) Has(perm string) bool {
	_, ok := p.set[perm]
	return ok
}

// Len returns number of granted permissions.
func (p Permissions) Len() int {
	return len(p.set)
}

// List returns sorted permissions.
func (p Permissions) List() []string {
	out := make([]string, 0, len(p.set))
	for perm := range p.set {
		out = append(out, perm)
	}
	sort.Strings(out)
	return out
}

// DerivePermissions reads permissions array located by claimPath. claimPath with "/" is a path through nested
// claim objects, where every segment except the last must resolve to an object and the last one to an array.
// Only string elements are granted. Any missing segment or unexpected type yields empty permissions.
func DerivePermissions(claims Claims, claimPath string) Permissions {
	perms := NewPermissions(PermissionsSource)

	arr, ok := lookupArray(claims, claimPath)
	if !ok {
		return perms
	}
	for _, item := range arr {
		if s, ok := item.(string); ok {
			perms.set[s] = struct{}{}
		}
	}
	return perms
}

func lookupArray(claims Claims, claimPath string) ([]interface{}, bool) {
	if !strings.Contains(claimPath, "/") {
		return asArray(claims[claimPath])
	}

	segments := strings.Split(claimPath, "/")
	node := claims
	for _, seg := range segments[:len(segments)-1] {
		next, ok := node.Object(seg)
		if !ok {
			return nil, false
		}
		node = next
	}
	return asArray(node[segments[len(segments)-1]])
}

func asArray(v interface{}) ([]interface{}, bool) {
	switch a := v.(type) {
	case []interface{}:
		return a, true
	case []string:
		out := make([]interface{}, 0, len(a))
		for _, s := range a {
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
