// Package identity resolves the caller of an HTTP request.
//
// Authentication happens upstream; claimguard only maps an already verified
// identity to a role.
package identity

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/opensource-finance/claimguard/internal/domain"
)

// ErrMissingIdentity is returned when a request carries no caller.
var ErrMissingIdentity = errors.New("missing caller identity")

// DefaultHeader carries the caller email set by the auth gateway.
const DefaultHeader = "X-Caller-ID"

// Provider resolves the caller of a request.
type Provider interface {
	Resolve(r *http.Request) (domain.Caller, error)
}

// GatewayProvider trusts a header written by the auth gateway in front of
// the service. Callers listed as reviewers get the hr role; everyone else is
// an employee.
type GatewayProvider struct {
	header    string
	reviewers map[string]struct{}
}

// NewGatewayProvider builds a provider from identity configuration.
func NewGatewayProvider(cfg domain.IdentityConfig) *GatewayProvider {
	header := cfg.CallerHeader
	if header == "" {
		header = DefaultHeader
	}

	reviewers := make(map[string]struct{}, len(cfg.Reviewers))
	for _, r := range cfg.Reviewers {
		if r = normalize(r); r != "" {
			reviewers[r] = struct{}{}
		}
	}

	return &GatewayProvider{header: header, reviewers: reviewers}
}

// Resolve implements Provider.
func (p *GatewayProvider) Resolve(r *http.Request) (domain.Caller, error) {
	id := strings.TrimSpace(r.Header.Get(p.header))
	if id == "" {
		return domain.Caller{}, ErrMissingIdentity
	}

	role := domain.RoleEmployee
	if _, ok := p.reviewers[normalize(id)]; ok {
		role = domain.RoleHR
	}
	return domain.Caller{ID: id, Role: role}, nil
}

// Header returns the header the provider reads.
func (p *GatewayProvider) Header() string {
	return p.header
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type contextKey struct{}

// WithCaller returns a context carrying the caller.
func WithCaller(ctx context.Context, c domain.Caller) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext extracts the caller placed by WithCaller.
func FromContext(ctx context.Context) (domain.Caller, bool) {
	c, ok := ctx.Value(contextKey{}).(domain.Caller)
	return c, ok
}
