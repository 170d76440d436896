package jwtauth

import (
	"context"

	"github.com/juju/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// User is an authenticated principal: its token claims and the permissions granted by them.
type User struct {
	Claims      Claims
	Permissions Permissions
}

// Subject returns sub claim.
func (u *User) Subject() string {
	s, _ := u.Claims.StringValue(ClaimSubject)
	return s
}

// HasPermission returns true if token granted perm.
func (u *User) HasPermission(perm string) bool {
	return u.Permissions.Has(perm)
}

// Provider authenticates raw tokens: verifies signature with Verifier and validates claims against
// ValidationPolicy. Provider is safe for concurrent use.
type Provider struct {
	verifier  Verifier
	validator *Validator
	policy    ValidationPolicy

	signer  *Signer
	logger  *zap.Logger
	metrics *Metrics
}

// Option configures Provider.
type Option func(*Provider)

// WithLogger sets logger for debug logging of failed authentications. Tokens are never logged.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// WithClock sets clock used for expiry checks.
func WithClock(clk clock.Clock) Option {
	return func(p *Provider) {
		p.validator = NewValidator(clk)
	}
}

// WithMetrics enables decision metrics.
func WithMetrics(m *Metrics) Option {
	return func(p *Provider) {
		p.metrics = m
	}
}

// WithSigner enables GenerateToken.
func WithSigner(s *Signer) Option {
	return func(p *Provider) {
		p.signer = s
	}
}

// NewProvider constructs Provider.
func NewProvider(verifier Verifier, policy ValidationPolicy, opts ...Option) *Provider {
	p := &Provider{
		verifier:  verifier,
		validator: NewValidator(nil),
		policy:    policy,
		logger:    zap.NewNop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Policy returns validation policy of the provider.
func (p *Provider) Policy() ValidationPolicy {
	return p.policy
}

// Authenticate verifies and validates raw token. It returns *VerificationError if token could not be verified
// and *RejectedError if verified claims do not satisfy the policy.
func (p *Provider) Authenticate(ctx context.Context, rawToken string) (*User, error) {
	claims, err := p.verifier.Verify(ctx, rawToken)
	if err != nil {
		p.logger.Debug("token verification failed", zap.Error(err))
		p.metrics.observe(resultVerificationFailed, ReasonNone)
		if !IsVerificationError(err) {
			err = &VerificationError{cause: err}
		}
		return nil, err
	}

	decision := p.validator.Validate(claims, p.policy)
	if !decision.Accepted() {
		sub, _ := claims.StringValue(ClaimSubject)
		p.logger.Debug("token rejected", zap.Stringer("reason", decision.Reason), zap.String("sub", sub))
		p.metrics.observe(resultRejected, decision.Reason)
		return nil, decision.Err()
	}

	p.metrics.observe(resultAccepted, ReasonNone)
	return &User{Claims: decision.Claims, Permissions: decision.Permissions}, nil
}

// GenerateToken signs claims. Provider needs to be constructed WithSigner.
func (p *Provider) GenerateToken(claims Claims, opts SignOptions) (string, error) {
	if p.signer == nil {
		return "", errors.New("jwtauth: provider has no signing key")
	}
	return p.signer.Sign(claims, opts)
}
