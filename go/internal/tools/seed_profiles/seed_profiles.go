package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/voyager/go/internal/config"
	"github.com/mcdev12/voyager/go/internal/profiles"
	"github.com/mcdev12/voyager/go/internal/sqlutil"
)

// Seeds the players table from a JSON array of profiles, all in one tx.
func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	input := flag.String("profiles", "go/internal/assets/profiles.json", "profiles JSON file")
	flag.Parse()

	ctx := context.Background()

	// 1) Load profiles
	data, err := os.ReadFile(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", *input, err)
		os.Exit(1)
	}
	var seed []profiles.Profile
	if err := json.Unmarshal(data, &seed); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal profiles: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect to DB
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect error: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := profiles.NewQueries(pool).EnsureSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "schema: %v\n", err)
		os.Exit(1)
	}

	// 3) Seed players
	total, upserted, skipped := len(seed), 0, 0
	err = sqlutil.Run(ctx, pool,
		func(tx pgx.Tx) *profiles.Queries { return profiles.NewQueries(tx) },
		func(q *profiles.Queries) error {
			repo := profiles.NewRepository(q, nil)
			for _, p := range seed {
				if p.PlayerID == "" {
					skipped++
					continue
				}
				if err := repo.UpsertProfile(ctx, p); err != nil {
					return err
				}
				upserted++
			}
			return nil
		},
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed aborted, nothing written: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Profiles seed: total=%d upserted=%d skipped=%d\n", total, upserted, skipped)
}
