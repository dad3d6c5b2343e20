package context

import (
	"context"
	"slices"
)

// UserContext describes the authenticated CMS operator.
type UserContext struct {
	UserID      string
	CompanyID   string
	Email       string
	Permissions []string
	IsAdmin     bool
}

// HasPermission reports whether the operator holds the permission slug.
func (u *UserContext) HasPermission(slug string) bool {
	if u == nil {
		return false
	}
	return u.IsAdmin || slices.Contains(u.Permissions, slug)
}

type userContextKey struct{}

// WithUser adds UserContext to ctx.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from ctx or nil.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns the operator ID from ctx or empty string.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}
