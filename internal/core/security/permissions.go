// Package security provides CMS operation permission checks.
package security

import (
	"context"
	"fmt"

	appctx "catalogue/internal/core/context"
	"catalogue/internal/core/apperror"
)

// Permission is an operation slug granted to CMS operators.
type Permission string

const (
	PermissionBarcodeCheck     Permission = "barcode:check"
	PermissionStockWrite       Permission = "stock:write"
	PermissionProductRecompute Permission = "product:recompute"
	PermissionOutletDeactivate Permission = "outlet:deactivate"
)

// Allow reports whether the operator in ctx may perform perm, and a message
// suitable for the client when not.
func Allow(ctx context.Context, perm Permission) (bool, string) {
	user := appctx.GetUser(ctx)
	if user == nil {
		return false, "authentication required"
	}
	if !user.HasPermission(string(perm)) {
		return false, fmt.Sprintf("permission %s required", perm)
	}
	return true, ""
}

// Require is Allow as an error.
func Require(ctx context.Context, perm Permission) error {
	ok, msg := Allow(ctx, perm)
	if ok {
		return nil
	}
	if appctx.GetUser(ctx) == nil {
		return apperror.NewUnauthorized(msg)
	}
	return apperror.NewForbidden(msg).WithDetail("permission", string(perm))
}

// CanAccessCompany reports whether the operator may act on companyID.
// Admins and operators not bound to a company act on any company.
func CanAccessCompany(ctx context.Context, companyID string) bool {
	user := appctx.GetUser(ctx)
	if user == nil {
		return false
	}
	if user.IsAdmin || user.CompanyID == "" {
		return true
	}
	return user.CompanyID == companyID
}

// RequireCompany rejects a company-bound operator acting on another company's
// resources. Callers without an operator, such as the queue worker, pass.
func RequireCompany(ctx context.Context, companyID string) error {
	if appctx.GetUser(ctx) == nil || CanAccessCompany(ctx, companyID) {
		return nil
	}
	return apperror.NewForbidden("resource belongs to another company").WithDetail("companyId", companyID)
}
