package context

import "context"

// ScopeFields is the untyped projection of a storefront tenant scope used for logging.
// The typed scope lives in the tenant package.
type ScopeFields struct {
	CompanyID string
	City      string
}

type scopeFieldsKey struct{}

// WithScopeFields adds ScopeFields to ctx.
func WithScopeFields(ctx context.Context, s *ScopeFields) context.Context {
	return context.WithValue(ctx, scopeFieldsKey{}, s)
}

// GetScopeFields returns ScopeFields from ctx or nil.
func GetScopeFields(ctx context.Context) *ScopeFields {
	if v, ok := ctx.Value(scopeFieldsKey{}).(*ScopeFields); ok {
		return v
	}
	return nil
}
