package jwtauth

import (
	"fmt"

	"github.com/pkg/errors"
)

// RejectedError is returned when verified token does not satisfy ValidationPolicy.
type RejectedError struct {
	Reason Reason
}

func (e *RejectedError) Error() string {
	switch e.Reason {
	case ReasonExpired:
		return "jwtauth: expired JWT token"
	case ReasonInvalidAudience:
		return "jwtauth: invalid JWT audience"
	case ReasonInvalidIssuer:
		return "jwtauth: invalid JWT issuer"
	case ReasonMissingScope:
		return "jwtauth: invalid JWT token: missing required scopes"
	}
	return fmt.Sprintf("jwtauth: JWT token rejected: %s", e.Reason)
}

// VerificationError is returned when token could not be parsed or its signature could not be verified.
type VerificationError struct {
	cause error
}

func newVerificationError(err error, format string, args ...interface{}) *VerificationError {
	if err == nil {
		return &VerificationError{cause: errors.Errorf(format, args...)}
	}
	return &VerificationError{cause: errors.Wrapf(err, format, args...)}
}

func (e *VerificationError) Error() string {
	return "jwtauth: verification failed: " + e.cause.Error()
}

// Cause returns underlying error.
func (e *VerificationError) Cause() error {
	return e.cause
}

// Unwrap returns underlying error.
func (e *VerificationError) Unwrap() error {
	return e.cause
}

// IsVerificationError returns true if err (or any error it wraps) is *VerificationError.
func IsVerificationError(err error) bool {
	var verr *VerificationError
	return errors.As(err, &verr)
}

// RejectionReason returns reason of rejection if err is *RejectedError.
func RejectionReason(err error) (Reason, bool) {
	var rerr *RejectedError
	if !errors.As(err, &rerr) {
		return ReasonNone, false
	}
	return rerr.Reason, true
}
