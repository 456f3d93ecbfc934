package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"agri-sponsorship/internal/config"
	"agri-sponsorship/internal/domain/model"
	"agri-sponsorship/internal/domain/ports/repository"
	pg "agri-sponsorship/internal/infra/db/postgres"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	tierRepo := pg.NewTierRepo(pool)

	// If tiers already exist, do nothing
	tiers, err := tierRepo.ListAll(ctx, repository.NoTX)
	if err != nil {
		log.Fatalf("list tiers: %v", err)
	}
	if len(tiers) > 0 {
		fmt.Printf("%d tiers already present. No changes.\n", len(tiers))
		for _, t := range tiers {
			fmt.Printf("  - %s (access=%d%%, qty=[%d,%d], price=%d %s)\n",
				t.TierName, t.DataAccessPercentage, t.MinPurchaseQuantity, t.MaxPurchaseQuantity, t.MonthlyPrice, t.Currency)
		}
		return
	}

	seed := []struct {
		Name    model.TierName
		Display string
		Access  int
		MinQty  int
		MaxQty  int
		Price   int64
	}{
		{model.TierTrial, "Trial", 0, 1, 10, 0},
		{model.TierS, "Small", 30, 1, 50, 50_000},
		{model.TierM, "Medium", 30, 10, 200, 45_000},
		{model.TierL, "Large", 60, 50, 1000, 40_000},
		{model.TierXL, "Extra Large", 100, 200, 5000, 35_000},
	}

	for _, s := range seed {
		t, err := model.NewSubscriptionTier(uuid.NewString(), s.Name, s.Display, s.Access, s.MinQty, s.MaxQty, s.Price, "USD")
		if err != nil {
			log.Fatalf("build tier %q: %v", s.Name, err)
		}
		if err := tierRepo.Save(ctx, repository.NoTX, t); err != nil {
			log.Fatalf("save tier %q: %v", s.Name, err)
		}
		fmt.Printf("seeded: %s (id=%s, access=%d%%, qty=[%d,%d])\n", t.TierName, t.ID, t.DataAccessPercentage, t.MinPurchaseQuantity, t.MaxPurchaseQuantity)
	}

	fmt.Println("✅ Seeding complete.")
}
