// Command reset-db drops and recreates the sneakers table and seeds the
// sample records.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/fairyhunter13/sneaker-customizer-service/internal/catalog"
	"github.com/fairyhunter13/sneaker-customizer-service/internal/config"
	"github.com/fairyhunter13/sneaker-customizer-service/internal/db"
	"github.com/fairyhunter13/sneaker-customizer-service/internal/obs"
	"github.com/fairyhunter13/sneaker-customizer-service/internal/ownership"
	"github.com/fairyhunter13/sneaker-customizer-service/internal/pricing"
	"github.com/fairyhunter13/sneaker-customizer-service/internal/store"
)

func main() {
	clearOwned := flag.Bool("clear-owned", false, "also empty the ownership index")
	timeout := flag.Duration("timeout", 30*time.Second, "overall deadline")
	flag.Parse()

	if err := run(*clearOwned, *timeout); err != nil {
		obs.Logger.Error("reset_failed", "error", err.Error())
		obs.Logger.Sync()
		os.Exit(1)
	}
	obs.Logger.Sync()
}

func run(clearOwned bool, timeout time.Duration) error {
	cfg := config.Load()
	if err := obs.InitLogger(cfg.LogMode); err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	if cfg.DBDriver == "memory" {
		return fmt.Errorf("DB_DRIVER=memory has nothing to reset")
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	g, err := db.Open(cfg)
	if err != nil {
		return err
	}
	defer db.Close(g)

	if err := db.Reset(ctx, g); err != nil {
		return err
	}
	obs.Logger.Info("sneakers_table_recreated", "driver", cfg.DBDriver)

	rules, err := pricing.RulesFor(cfg.RulesFile)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	svc := catalog.NewService(store.NewSQL(g), pricing.NewEngine(rules), nil, nil)
	rows, err := svc.Seed(ctx)
	if err != nil {
		return err
	}
	obs.Logger.Info("sample_data_seeded", "count", len(rows))

	if clearOwned {
		idx, closeIdx, err := ownership.Open(ctx, cfg, g)
		if err != nil {
			return err
		}
		defer closeIdx()
		if err := idx.Clear(ctx); err != nil {
			return err
		}
	}
	return nil
}
