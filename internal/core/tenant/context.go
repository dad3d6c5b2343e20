package tenant

import (
	"context"

	appctx "catalogue/internal/core/context"
)

type ctxKey int

const (
	scopeKey ctxKey = iota
	outletKey
)

// WithScope stores the storefront scope in ctx and exposes it to logging.
func WithScope(ctx context.Context, s Scope) context.Context {
	ctx = appctx.WithScopeFields(ctx, &appctx.ScopeFields{CompanyID: s.CompanyID, City: string(s.City)})
	return context.WithValue(ctx, scopeKey, s)
}

// GetScope retrieves the storefront scope from ctx.
func GetScope(ctx context.Context) (Scope, error) {
	s, ok := ctx.Value(scopeKey).(Scope)
	if !ok {
		return Scope{}, ErrNoScopeInContext
	}
	return s, nil
}

// WithOutlet stores the outlet resolved from a feed token.
func WithOutlet(ctx context.Context, o *Outlet) context.Context {
	return context.WithValue(ctx, outletKey, o)
}

// GetOutlet returns the outlet stored in ctx or nil.
func GetOutlet(ctx context.Context) *Outlet {
	o, _ := ctx.Value(outletKey).(*Outlet)
	return o
}
