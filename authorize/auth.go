package authorize

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/bwplotka/jwtauth"
)

// Authenticator turns raw token into authenticated user, e.g *jwtauth.Provider.
type Authenticator interface {
	Authenticate(ctx context.Context, rawToken string) (*jwtauth.User, error)
}

// Authorizer checks if token gives authority for the user.
type Authorizer interface {
	// IsAuthorized returns nil if token gives authority for the user.
	IsAuthorized(ctx context.Context, token string) error
}

type authorizer struct {
	authn     Authenticator
	condition Condition
}

// New constructs Authorizer that requires permissions granted by the token to satisfy condition.
func New(authn Authenticator, condition Condition) Authorizer {
	return &authorizer{authn: authn, condition: condition}
}

func (a *authorizer) IsAuthorized(ctx context.Context, token string) error {
	// Authenticate checks signature, expiry, audience, issuer and scopes.
	user, err := a.authn.Authenticate(ctx, token)
	if err != nil {
		return fmt.Errorf("Unauthenticated. %v", err)
	}

	if !a.condition.Satisfied(user.Permissions) {
		return fmt.Errorf("Unauthorized. User %q has permissions %v and needs to have permissions %s.",
			user.Subject(), user.Permissions.List(), a.condition)
	}
	return nil
}

// IsRequestAuthorized extracts Bearer token from headerName header and authorizes it.
func IsRequestAuthorized(req *http.Request, a Authorizer, headerName string) error {
	auth := strings.TrimSpace(req.Header.Get(headerName))
	if auth == "" {
		return fmt.Errorf("Unauthenticated. No %q header.", headerName)
	}
	parts := strings.Fields(auth)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return fmt.Errorf("Unauthenticated. %q header does not have Bearer format.", headerName)
	}

	return a.IsAuthorized(req.Context(), parts[1])
}
