package tenant

import "errors"

var (
	// ErrOutletNotFound is returned when no outlet matches an id or access token.
	ErrOutletNotFound = errors.New("outlet not found")

	// ErrOutletNotActive is returned when the outlet exists but was deactivated.
	ErrOutletNotActive = errors.New("outlet is not active")

	// ErrUnknownCity is returned when a city slug is not in the directory.
	ErrUnknownCity = errors.New("unknown city")

	// ErrNoScopeInContext is returned when a storefront scope was not resolved.
	ErrNoScopeInContext = errors.New("tenant scope not found in context")
)
