package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"gocanopy/adapters/excel"
	"gocanopy/adapters/postgres"
	"gocanopy/adapters/stats/bayes"
	"gocanopy/adapters/stats/optimizer"
	"gocanopy/app"
	"gocanopy/domain/canopy"
	"gocanopy/domain/fit"
	"gocanopy/internal/config"
	"gocanopy/internal/testkit"
	"gocanopy/ports"
	"gocanopy/ui"
)

func main() {
	// Load .env file if present (ignore errors, env vars might be set directly)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	var repo ports.FitResultRepository
	if cfg.Database.Enabled {
		db, err := sqlx.Connect("postgres", cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		pgRepo := postgres.NewFitRepository(db)
		if err := pgRepo.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to prepare result schema: %v", err)
		}
		repo = pgRepo
	}

	service := app.NewFitService(repo)

	if cfg.Server.Enabled {
		api := ui.NewApp(ui.Config{Port: cfg.Server.Port}, service, repo)
		if err := api.Start(); err != nil {
			log.Fatalf("API server failed: %v", err)
		}
		return
	}

	observations, err := loadObservations(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to load observations: %v", err)
	}

	methods := make(map[fit.Method]optimizer.Method, len(cfg.Optimizer.MethodOverrides))
	for m, alg := range cfg.Optimizer.MethodOverrides {
		methods[fit.Method(m)] = optimizer.Method(alg)
	}

	outcome, err := service.Run(ctx, app.FitRequest{
		Observations: observations,
		Optimizer: optimizer.Config{
			Restarts:   cfg.Optimizer.Restarts,
			BaseSeed:   cfg.Optimizer.BaseSeed,
			Method:     optimizer.Method(cfg.Optimizer.Method),
			InitLow:    0.2,
			InitHigh:   0.8,
			MaxWorkers: cfg.Optimizer.MaxWorkers,
			MaxRuntime: cfg.Optimizer.MaxRuntime,
			Methods:    methods,
		},
		Sampler: bayes.Config{
			Chains:        cfg.Sampler.Chains,
			Warmup:        cfg.Sampler.Warmup,
			Samples:       cfg.Sampler.Samples,
			BaseSeed:      cfg.Sampler.BaseSeed,
			RHatThreshold: cfg.Sampler.RHatThreshold,
		},
		Level:    cfg.Inference.Level,
		RunBayes: true,
	})
	if err != nil {
		log.Fatalf("Fit failed: %v", err)
	}

	printOutcome(outcome)
}

// loadObservations reads the configured input file, falling back to a
// seeded synthetic scenario when none is configured
func loadObservations(ctx context.Context, cfg *config.Config) ([]canopy.Observation, error) {
	if cfg.Data.InputFile != "" {
		reader := excel.NewDataReader(cfg.Data.InputFile)
		return reader.ReadObservations(ctx)
	}
	log.Println("No INPUT_FILE configured, generating synthetic demo data")
	gen := testkit.NewGenerator(cfg.Optimizer.BaseSeed)
	return gen.Generate(testkit.DefaultScenario()), nil
}

// printOutcome writes the comparison tables to stdout. Anything fancier
// belongs to downstream tooling.
func printOutcome(outcome *app.FitOutcome) {
	fmt.Printf("run %s (%d ms)\n", outcome.RunID, outcome.RuntimeMs)

	for _, table := range outcome.Tables {
		fmt.Printf("\n%s (%.0f%% CI)", table.Method, table.Level*100)
		if table.Diagnostics.Multimodal {
			fmt.Printf("  [WARNING: possible multimodality, spread %.3g]", table.Diagnostics.ObjectiveSpread)
		}
		fmt.Println()
		for _, row := range table.Rows {
			if table.Diagnostics.HessianUsable {
				fmt.Printf("  %-12s %8.4f  SE %7.4f  [%7.4f, %7.4f]\n",
					row.Group, row.Estimate, row.StdErr, row.Lower, row.Upper)
			} else {
				fmt.Printf("  %-12s %8.4f  (no usable curvature estimate)\n", row.Group, row.Estimate)
			}
		}
	}

	if outcome.Posterior != nil {
		fmt.Printf("\nposterior (%d chains x %d draws, accept %.2f)\n",
			outcome.Posterior.Chains, outcome.Posterior.DrawsPerChain, outcome.Posterior.AcceptRate)
		for _, s := range outcome.Posterior.Summaries {
			fmt.Printf("  %-12s mean %7.4f  sd %7.4f  [%7.4f, %7.4f]  r-hat %.3f\n",
				s.Name, s.Mean, s.SD, s.Q2_5, s.Q97_5, s.RHat)
		}
		for _, w := range outcome.Posterior.Warnings {
			fmt.Printf("  WARNING: %s\n", w)
		}
	}

	for method, msg := range outcome.MethodErrors {
		fmt.Fprintf(os.Stderr, "method %s failed: %s\n", method, msg)
	}
}
