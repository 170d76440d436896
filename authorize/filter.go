package authorize

import (
	"strings"

	"github.com/bwplotka/jwtauth"
)

// Condition is a boolean condition on permissions granted by a token.
type Condition interface {
	Satisfied(perms jwtauth.Permissions) bool
	// String describes the condition in error messages, e.g "(perm1 && perm2)".
	String() string
}

type contains string

// Contains is a condition that is true when permission perm was granted.
func Contains(perm string) Condition {
	return contains(perm)
}

func (c contains) Satisfied(perms jwtauth.Permissions) bool { return perms.Has(string(c)) }
func (c contains) String() string                           { return string(c) }

type or []Condition

// OR is a list of conditions with logic OR. If no condition is passed it is never satisfied.
func OR(conditions ...Condition) Condition {
	return or(conditions)
}

func (o or) Satisfied(perms jwtauth.Permissions) bool {
	for _, condition := range o {
		if condition.Satisfied(perms) {
			return true
		}
	}
	return false
}

func (o or) String() string { return join(o, " || ") }

type and []Condition

// AND is a list of conditions with logic AND. If no condition is passed it is never satisfied.
func AND(conditions ...Condition) Condition {
	return and(conditions)
}

func (a and) Satisfied(perms jwtauth.Permissions) bool {
	if len(a) == 0 {
		return false
	}
	for _, condition := range a {
		if !condition.Satisfied(perms) {
			return false
		}
	}
	return true
}

func (a and) String() string { return join(a, " && ") }

func join(conditions []Condition, op string) string {
	parts := make([]string, 0, len(conditions))
	for _, c := range conditions {
		parts = append(parts, c.String())
	}
	return "(" + strings.Join(parts, op) + ")"
}
