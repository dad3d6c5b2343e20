// Package tenant describes the storefront tenant boundary (company and city) and the
// registry of outlets, companies and known cities kept in PostgreSQL.
package tenant

import (
	"context"
	"time"
)

// CitySlug identifies a city. Only slugs present in the city directory are valid keys
// for per-city aggregates.
type CitySlug string

func (s CitySlug) String() string { return string(s) }

// City is a row of the known-cities registry.
type City struct {
	Slug      CitySlug `db:"slug" json:"slug"`
	Name      string   `db:"name" json:"name"`
	SortIndex int      `db:"sort_index" json:"sortIndex"`
	Active    bool     `db:"active" json:"active"`
}

// Company owns outlets.
type Company struct {
	ID        string    `db:"id"`
	Slug      string    `db:"slug"`
	Name      string    `db:"name"`
	Active    bool      `db:"active"`
	CreatedAt time.Time `db:"created_at"`
}

// Outlet is a point of sale with its own stock and prices.
type Outlet struct {
	ID             string     `db:"id"`
	CompanyID      string     `db:"company_id"`
	City           CitySlug   `db:"city_slug"`
	Name           string     `db:"name"`
	TokenHash      string     `db:"token_hash"`
	Active         bool       `db:"active"`
	MarkdownPolicy *string    `db:"markdown_policy"` // CEL expression, nil means default
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
	DeactivatedAt  *time.Time `db:"deactivated_at"`
}

// Policy returns the outlet's markdown expression or empty string.
func (o *Outlet) Policy() string {
	if o == nil || o.MarkdownPolicy == nil {
		return ""
	}
	return *o.MarkdownPolicy
}

// Scope is the hard boundary every storefront query is restricted to.
// City is mandatory for listing; CompanyID narrows to one company's storefront.
type Scope struct {
	CompanyID string
	City      CitySlug
}

// IsZero reports whether no boundary is set.
func (s Scope) IsZero() bool {
	return s.CompanyID == "" && s.City == ""
}

// CityDirectory answers whether a city slug is known.
type CityDirectory interface {
	IsKnownCity(ctx context.Context, slug CitySlug) bool
}

// CreateOutletInput contains data for registering an outlet.
type CreateOutletInput struct {
	CompanyID      string
	City           CitySlug
	Name           string
	MarkdownPolicy *string
}
