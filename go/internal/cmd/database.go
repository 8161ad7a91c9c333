package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/voyager/go/internal/config"
	"github.com/mcdev12/voyager/go/internal/profiles"
)

// setupProfiles picks the profile store. A nil store disables persistence.
func setupProfiles(ctx context.Context, cfg config.Config) (profiles.Store, func(), error) {
	switch {
	case cfg.Profiles.BaseURL != "":
		log.Info().Str("base_url", cfg.Profiles.BaseURL).Msg("persisting profiles over REST")
		return profiles.NewHTTPStore(cfg.Profiles.BaseURL), func() {}, nil

	case cfg.Profiles.UseDatabase:
		pool, err := setupDatabase(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		queries := profiles.NewQueries(pool)
		if err := queries.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return profiles.NewRepository(queries, nil), pool.Close, nil
	}

	log.Info().Msg("profile persistence disabled")
	return nil, func() {}, nil
}

func setupDatabase(ctx context.Context, db config.Database) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, db.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("user", db.User).
		Str("host", db.Host).
		Int("port", db.Port).
		Str("database", db.Name).
		Msg("connected to database")
	return pool, nil
}
