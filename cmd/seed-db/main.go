package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/provapub/internal/domain/customer"
	"github.com/xenking/provapub/internal/domain/product"
	"github.com/xenking/provapub/internal/repository"
)

type customerJSON struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type productJSON struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

func main() {
	var (
		databaseURL   string
		customersFile string
		productsFile  string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&customersFile, "customers-file", "db/seed/customers.json", "path to customers JSON file")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
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

	if err := run(ctx, databaseURL, customersFile, productsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, customersFile, productsFile string) error {
	customers, err := readCustomers(customersFile)
	if err != nil {
		return errors.Wrap(err, "read customers")
	}
	products, err := readProducts(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products")
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	slog.Info("upserting customers", slog.Int("count", len(customers)))
	if err := repository.NewCustomerRepository(pool).Upsert(ctx, customers...); err != nil {
		return errors.Wrap(err, "seed customers")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))
	if err := repository.NewProductRepository(pool).Upsert(ctx, products...); err != nil {
		return errors.Wrap(err, "seed products")
	}

	return nil
}

func readCustomers(path string) ([]customer.Customer, error) {
	slog.Info("reading customers file", slog.String("path", path))

	var rows []customerJSON
	if err := readJSON(path, &rows); err != nil {
		return nil, err
	}

	out := make([]customer.Customer, 0, len(rows))
	for _, r := range rows {
		if r.ID <= 0 || r.Name == "" {
			return nil, errors.Errorf("invalid customer %+v", r)
		}
		out = append(out, customer.Customer{ID: r.ID, Name: r.Name})
	}
	return out, nil
}

func readProducts(path string) ([]product.Product, error) {
	slog.Info("reading products file", slog.String("path", path))

	var rows []productJSON
	if err := readJSON(path, &rows); err != nil {
		return nil, err
	}

	out := make([]product.Product, 0, len(rows))
	for _, r := range rows {
		if r.ID <= 0 || r.Name == "" || r.Price.IsNegative() {
			return nil, errors.Errorf("invalid product %d %q", r.ID, r.Name)
		}
		out = append(out, product.Product{ID: r.ID, Name: r.Name, Price: r.Price})
	}
	return out, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "parse %s", path)
	}
	return nil
}
