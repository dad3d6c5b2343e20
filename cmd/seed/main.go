// Package main provides a CLI tool for seeding the registry with cities, a company
// and an outlet, and for issuing a development CMS token.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"catalogue/internal/app"
	appctx "catalogue/internal/core/context"
	"catalogue/internal/core/tenant"
	"catalogue/internal/domain/auth"
	"catalogue/internal/infrastructure/storage/postgres"
	"catalogue/pkg/logger"
)

func main() {
	app.LoadDotEnv()

	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dbURL := os.Getenv("REGISTRY_DATABASE_URL")
	if dbURL == "" {
		log.Fatal("REGISTRY_DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dbURL))
	if err != nil {
		log.Fatalw("failed to connect to registry", "error", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, tenant.Schema); err != nil {
		log.Fatalw("failed to apply registry schema", "error", err)
	}
	log.Info("registry schema applied")

	registry := tenant.NewPostgresRegistry(postgres.NewTxManager(pool))

	cities, err := parseCities(app.Getenv("SEED_CITIES", "msk:Moscow,spb:Saint Petersburg"))
	if err != nil {
		log.Fatalw("invalid SEED_CITIES", "error", err)
	}
	for _, c := range cities {
		if err := registry.UpsertCity(ctx, c); err != nil {
			log.Fatalw("failed to seed city", "city", c.Slug, "error", err)
		}
	}
	log.Infow("cities seeded", "count", len(cities))

	company := &tenant.Company{
		Slug: app.Getenv("SEED_COMPANY_SLUG", "demo"),
		Name: app.Getenv("SEED_COMPANY_NAME", "Demo Retail"),
	}
	if err := registry.CreateCompany(ctx, company); err != nil {
		log.Fatalw("failed to seed company", "error", err)
	}
	log.Infow("company seeded", "company_id", company.ID, "slug", company.Slug)

	if os.Getenv("SEED_OUTLET") != "false" {
		outlet, token, err := registry.CreateOutlet(ctx, tenant.CreateOutletInput{
			CompanyID: company.ID,
			City:      cities[0].Slug,
			Name:      app.Getenv("SEED_OUTLET_NAME", "Demo Outlet"),
		})
		if err != nil {
			log.Fatalw("failed to seed outlet", "error", err)
		}
		log.Infow("outlet created", "outlet_id", outlet.ID, "city", outlet.City)
		fmt.Printf("outlet %s feed token: %s\n", outlet.ID, token)
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		token, exp, err := auth.NewJWTService(auth.DefaultJWTConfig(secret)).GenerateAccessToken(appctx.UserContext{
			UserID:  "seed-admin",
			IsAdmin: true,
		})
		if err != nil {
			log.Fatalw("failed to issue CMS token", "error", err)
		}
		fmt.Printf("CMS admin token (expires %s): %s\n", exp.Format("15:04:05"), token)
	}

	log.Info("seeding completed successfully")
}

// parseCities reads "slug:Name,slug:Name". Order sets the sort index.
func parseCities(raw string) ([]tenant.City, error) {
	var out []tenant.City
	for i, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		slug, name, ok := strings.Cut(part, ":")
		slug = strings.ToLower(strings.TrimSpace(slug))
		if !ok || slug == "" || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("malformed city %q", part)
		}
		out = append(out, tenant.City{
			Slug:      tenant.CitySlug(slug),
			Name:      strings.TrimSpace(name),
			SortIndex: i,
			Active:    true,
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no cities")
	}
	return out, nil
}
