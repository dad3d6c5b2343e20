package tenant

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	"catalogue/internal/core/tx"
)

// Registry provides access to outlets, companies and cities.
type Registry interface {
	// ResolveOutletByToken finds an active outlet by its raw access token.
	ResolveOutletByToken(ctx context.Context, token string) (*Outlet, error)

	// GetOutlet retrieves an outlet by UUID.
	GetOutlet(ctx context.Context, outletID string) (*Outlet, error)

	// ListCities returns active cities ordered for display.
	ListCities(ctx context.Context) ([]City, error)

	// DeactivateOutlet marks the outlet inactive. Deactivating twice is a no-op.
	DeactivateOutlet(ctx context.Context, outletID string) (*Outlet, error)
}

var outletColumns = []string{
	"id", "company_id", "city_slug", "name", "token_hash", "active",
	"markdown_policy", "created_at", "updated_at", "deactivated_at",
}

// PostgresRegistry implements Registry on the registry database.
type PostgresRegistry struct {
	txm     tx.QuerierManager
	builder sq.StatementBuilderType
}

func NewPostgresRegistry(txm tx.QuerierManager) *PostgresRegistry {
	return &PostgresRegistry{
		txm:     txm,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *PostgresRegistry) selectOutlets() sq.SelectBuilder {
	return r.builder.Select(outletColumns...).From("outlets")
}

func (r *PostgresRegistry) getOutlet(ctx context.Context, q sq.SelectBuilder) (*Outlet, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build outlet query: %w", err)
	}
	var o Outlet
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &o, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrOutletNotFound
		}
		return nil, fmt.Errorf("get outlet: %w", err)
	}
	return &o, nil
}

func (r *PostgresRegistry) ResolveOutletByToken(ctx context.Context, token string) (*Outlet, error) {
	if token == "" {
		return nil, ErrOutletNotFound
	}
	o, err := r.getOutlet(ctx, r.selectOutlets().Where(sq.Eq{"token_hash": HashToken(token)}))
	if err != nil {
		return nil, err
	}
	if !o.Active {
		return nil, ErrOutletNotActive
	}
	return o, nil
}

func (r *PostgresRegistry) GetOutlet(ctx context.Context, outletID string) (*Outlet, error) {
	if _, err := uuid.Parse(outletID); err != nil {
		return nil, ErrOutletNotFound
	}
	return r.getOutlet(ctx, r.selectOutlets().Where(sq.Eq{"id": outletID}))
}

func (r *PostgresRegistry) ListCities(ctx context.Context) ([]City, error) {
	query, args, err := r.builder.
		Select("slug", "name", "sort_index", "active").
		From("cities").
		Where(sq.Eq{"active": true}).
		OrderBy("sort_index", "slug").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build cities query: %w", err)
	}

	var cities []City
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &cities, query, args...); err != nil {
		return nil, fmt.Errorf("list cities: %w", err)
	}
	return cities, nil
}

func (r *PostgresRegistry) DeactivateOutlet(ctx context.Context, outletID string) (*Outlet, error) {
	if _, err := uuid.Parse(outletID); err != nil {
		return nil, ErrOutletNotFound
	}

	var out *Outlet
	err := r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		o, err := r.getOutlet(ctx, r.selectOutlets().Where(sq.Eq{"id": outletID}).Suffix("FOR UPDATE"))
		if err != nil {
			return err
		}
		out = o
		if !o.Active {
			return nil
		}

		query, args, err := r.builder.Update("outlets").
			Set("active", false).
			Set("deactivated_at", sq.Expr("NOW()")).
			Set("updated_at", sq.Expr("NOW()")).
			Where(sq.Eq{"id": outletID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build deactivate query: %w", err)
		}
		if _, err := r.txm.GetQuerier(ctx).Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("deactivate outlet: %w", err)
		}
		out.Active = false
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertCity inserts or renames a city.
func (r *PostgresRegistry) UpsertCity(ctx context.Context, c City) error {
	query, args, err := r.builder.Insert("cities").
		Columns("slug", "name", "sort_index", "active").
		Values(c.Slug, c.Name, c.SortIndex, c.Active).
		Suffix("ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name, sort_index = EXCLUDED.sort_index, active = EXCLUDED.active").
		ToSql()
	if err != nil {
		return fmt.Errorf("build city upsert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert city: %w", err)
	}
	return nil
}

// CreateCompany inserts a company and fills its ID.
func (r *PostgresRegistry) CreateCompany(ctx context.Context, c *Company) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	query, args, err := r.builder.Insert("companies").
		Columns("id", "slug", "name", "active").
		Values(c.ID, c.Slug, c.Name, true).
		Suffix("ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build company insert: %w", err)
	}
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, query, args...).Scan(&c.ID); err != nil {
		return fmt.Errorf("create company: %w", err)
	}
	c.Active = true
	return nil
}

// CreateOutlet registers an outlet and returns it with its raw access token.
// The token is not recoverable afterwards.
func (r *PostgresRegistry) CreateOutlet(ctx context.Context, in CreateOutletInput) (*Outlet, string, error) {
	token, err := GenerateToken()
	if err != nil {
		return nil, "", err
	}
	o := &Outlet{
		ID:             uuid.NewString(),
		CompanyID:      in.CompanyID,
		City:           in.City,
		Name:           in.Name,
		TokenHash:      HashToken(token),
		Active:         true,
		MarkdownPolicy: in.MarkdownPolicy,
	}

	query, args, err := r.builder.Insert("outlets").
		Columns("id", "company_id", "city_slug", "name", "token_hash", "active", "markdown_policy").
		Values(o.ID, o.CompanyID, o.City, o.Name, o.TokenHash, o.Active, o.MarkdownPolicy).
		Suffix("RETURNING created_at, updated_at").
		ToSql()
	if err != nil {
		return nil, "", fmt.Errorf("build outlet insert: %w", err)
	}
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, query, args...).Scan(&o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, "", fmt.Errorf("create outlet: %w", err)
	}
	return o, token, nil
}

var _ Registry = (*PostgresRegistry)(nil)
