// Package sample generates synthetic store exports for demos and tests.
package sample

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ErrInvalidConfig is returned for generator settings that cannot produce data
var ErrInvalidConfig = errors.New("invalid sample config")

// MenuItem is one sellable product
type MenuItem struct {
	Name     string
	Category string
	Price    decimal.Decimal
}

// DefaultMenu is a small coffee-shop menu covering every tracked category
var DefaultMenu = []MenuItem{
	{"Latte", "Drink", decimal.RequireFromString("4.75")},
	{"Cappuccino", "Drink", decimal.RequireFromString("4.50")},
	{"Cold Brew", "Drink", decimal.RequireFromString("4.25")},
	{"Americano", "Drink", decimal.RequireFromString("3.50")},
	{"Mocha", "Drink", decimal.RequireFromString("5.25")},
	{"Chai Latte", "Drink", decimal.RequireFromString("4.95")},
	{"Croissant", "Food", decimal.RequireFromString("3.25")},
	{"Blueberry Muffin", "Food", decimal.RequireFromString("3.45")},
	{"Turkey Sandwich", "Food", decimal.RequireFromString("7.95")},
	{"Egg Bites", "Food", decimal.RequireFromString("5.45")},
	{"Pumpkin Spice Latte", "Seasonal", decimal.RequireFromString("5.95")},
	{"Peppermint Mocha", "Seasonal", decimal.RequireFromString("6.25")},
	{"Tumbler", "Merchandise", decimal.RequireFromString("19.95")},
}

// Config controls what the generator writes
type Config struct {
	Stores       int       `validate:"gt=0"`
	Days         int       `validate:"gt=0"`
	End          time.Time `validate:"required"` // exclusive; the last generated day is End-1
	MinOrders    int       `validate:"gt=0"`
	MaxOrders    int       `validate:"gtefield=MinOrders"`
	MaxItems     int       `validate:"gt=0"`
	FirstStoreID int       `validate:"gte=0"`
	Flat         bool      // one store<id>_sales.csv per store instead of store<id>/<day>.csv
	Seed         uint64    // 0 picks a random seed
}

// DefaultConfig returns a config for three stores over the last 35 days
func DefaultConfig(end time.Time) Config {
	return Config{
		Stores:       3,
		Days:         35,
		End:          end,
		MinOrders:    20,
		MaxOrders:    60,
		MaxItems:     4,
		FirstStoreID: 101,
	}
}

// Result summarizes a generation run
type Result struct {
	Dir       string   `json:"dir" yaml:"dir"`
	Stores    []string `json:"stores" yaml:"stores"`
	Files     int      `json:"files" yaml:"files"`
	Orders    int      `json:"orders" yaml:"orders"`
	LineItems int      `json:"line_items" yaml:"line_items"`
}

// Generator writes synthetic store exports
type Generator struct {
	cfg   Config
	menu  []MenuItem
	faker *gofakeit.Faker
}

// NewGenerator validates cfg and creates a Generator
func NewGenerator(cfg Config) (*Generator, error) {
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &Generator{
		cfg:   cfg,
		menu:  DefaultMenu,
		faker: gofakeit.New(cfg.Seed),
	}, nil
}

var header = []string{"date", "order_id", "item", "category", "revenue"}

// Generate writes the exports below dir
func (g *Generator) Generate(ctx context.Context, dir string) (*Result, error) {
	result := &Result{Dir: dir}
	y, m, d := g.cfg.End.Date()
	end := time.Date(y, m, d, 0, 0, 0, 0, g.cfg.End.Location())

	for s := 0; s < g.cfg.Stores; s++ {
		storeID := g.cfg.FirstStoreID + s
		folder := fmt.Sprintf("store%d", storeID)
		result.Stores = append(result.Stores, folder)

		var flat [][]string
		for day := g.cfg.Days; day >= 1; day-- {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			date := end.AddDate(0, 0, -day)
			records, orders := g.day(storeID, date)
			result.Orders += orders
			result.LineItems += len(records)

			if g.cfg.Flat {
				flat = append(flat, records...)
				continue
			}
			path := filepath.Join(dir, folder, date.Format(time.DateOnly)+".csv")
			if err := writeCSV(path, records); err != nil {
				return nil, err
			}
			result.Files++
		}

		if g.cfg.Flat {
			if err := writeCSV(filepath.Join(dir, folder+"_sales.csv"), flat); err != nil {
				return nil, err
			}
			result.Files++
		}
	}

	return result, nil
}

// day produces the line items of one store for one calendar day
func (g *Generator) day(storeID int, date time.Time) ([][]string, int) {
	orders := g.faker.Number(g.cfg.MinOrders, g.cfg.MaxOrders)
	records := make([][]string, 0, orders*2)
	for o := 1; o <= orders; o++ {
		orderID := fmt.Sprintf("S%d-%s-%04d", storeID, date.Format("20060102"), o)
		placed := date.Add(time.Duration(g.faker.Number(6*60, 20*60)) * time.Minute)
		items := g.faker.Number(1, g.cfg.MaxItems)
		for i := 0; i < items; i++ {
			item := g.menu[g.faker.Number(0, len(g.menu)-1)]
			records = append(records, []string{
				placed.Format(time.DateTime),
				orderID,
				item.Name,
				item.Category,
				item.Price.StringFixed(2),
			})
		}
	}
	return records, orders
}

func writeCSV(path string, records [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := w.WriteAll(records); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
