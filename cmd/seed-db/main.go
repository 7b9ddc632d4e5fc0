// Command seed-db loads the initial catalog and pricing settings into
// the database: products from a JSON file, the single settings row with
// its starting local margin and discounts.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/madraim/shopdesk/internal/domain/catalog"
	"github.com/madraim/shopdesk/internal/domain/pricing"
	"github.com/madraim/shopdesk/internal/settings"
	"github.com/madraim/shopdesk/internal/storage/postgres"
)

type productJSON struct {
	ID          string          `json:"id"`
	CategoryID  string          `json:"category_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	NormalPrice decimal.Decimal `json:"normal_price"`
	MemberPrice decimal.Decimal `json:"member_price"`
	Points      decimal.Decimal `json:"points"`
}

type settingsJSON struct {
	LocalMargin decimal.Decimal `json:"local_margin"`
	Discounts   []struct {
		Target     string          `json:"target"`
		Percentage decimal.Decimal `json:"percentage"`
	} `json:"discounts"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		settingsFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&settingsFile, "settings-file", "", "optional path to settings JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, settingsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, settingsFile string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, postgres.NewProductRepository(pool), productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if settingsFile != "" {
		if err := seedSettings(ctx, postgres.NewSettingsRepository(pool), settingsFile); err != nil {
			return errors.Wrap(err, "seed settings")
		}
	}

	return nil
}

func seedProducts(ctx context.Context, repo *postgres.ProductRepository, path string) error {
	slog.Info("reading products file", slog.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		entry := catalog.Product{
			ID:              p.ID,
			CategoryID:      p.CategoryID,
			Name:            p.Name,
			Description:     p.Description,
			BaseNormalPrice: p.NormalPrice,
			BaseMemberPrice: p.MemberPrice,
			PointsPerUnit:   p.Points,
			Available:       true,
			CreatedAt:       time.Now().UTC(),
		}
		if err := repo.Upsert(ctx, &entry); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedSettings(ctx context.Context, store settings.Store, path string) error {
	slog.Info("reading settings file", slog.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read settings file")
	}

	var sj settingsJSON
	if err := json.Unmarshal(data, &sj); err != nil {
		return errors.Wrap(err, "parse settings JSON")
	}

	stored := settings.Stored{LocalMargin: sj.LocalMargin}
	for _, d := range sj.Discounts {
		stored.Discounts, err = pricing.AddDiscount(stored.Discounts, d.Target, d.Percentage)
		if err != nil {
			return errors.Wrapf(err, "discount for %s", d.Target)
		}
	}

	if err := store.Update(ctx, stored); err != nil {
		return errors.Wrap(err, "write settings")
	}

	slog.Info("settings written",
		slog.String("local_margin", stored.LocalMargin.String()),
		slog.Int("discounts", len(stored.Discounts)),
	)
	return nil
}
