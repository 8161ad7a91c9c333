package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/voyager/go/internal/config"
	"github.com/mcdev12/voyager/go/internal/identity"
	"github.com/mcdev12/voyager/go/internal/logging"
	"github.com/mcdev12/voyager/go/internal/multiplayer"
	"github.com/mcdev12/voyager/go/internal/multiplayer/gateway"
	"github.com/mcdev12/voyager/go/internal/multiplayer/reconciler"
)

const (
	frameInterval = time.Second / 60
	rejoinDelay   = 5 * time.Second
)

func main() {
	configPath := flag.String("config", getEnv("VOYAGER_CONFIG", ""), "path to a YAML config file")
	sessionID := flag.String("session", "", "session to join (overrides config)")
	name := flag.String("name", "", "display name to persist before joining")
	runFor := flag.Duration("duration", 0, "stop after this long; zero runs until interrupted")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if *sessionID != "" {
		cfg.Session.ID = *sessionID
	}

	logCloser, err := logging.Setup(logging.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		Pretty:     cfg.Log.Pretty,
	}, os.Stderr)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up logging")
	}
	defer logCloser.Close()

	ids := identity.NewFileStore(cfg.Session.IdentityPath)
	me, err := ids.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load identity")
	}
	if n := firstNonEmpty(*name, cfg.Session.DisplayName); n != "" && n != me.DisplayName {
		if me, err = ids.SetDisplayName(n); err != nil {
			log.Fatal().Err(err).Msg("failed to set display name")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *runFor > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *runFor)
		defer cancel()
	}

	transport, closeTransport, err := setupTransport(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up transport")
	}
	defer closeTransport()

	store, closeStore, err := setupProfiles(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up profile store")
	}
	defer closeStore()

	board := &statusBoard{}
	feedback := &logFeedback{}
	client, err := multiplayer.New(multiplayer.Options{
		Transport:      transport,
		Identity:       me,
		Scene:          &logScene{},
		Feedback:       feedback,
		Profiles:       store,
		Connection:     connectionConfig(cfg),
		Reconciler:     reconcilerConfig(cfg),
		ReportInterval: cfg.Connection.ReportInterval,
		ConfirmTimeout: cfg.Collection.ConfirmTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create client")
	}
	client.OnStateChange(func(from, to gateway.State) {
		log.Info().Stringer("from", from).Stringer("to", to).Msg("connection state changed")
	})

	server := setupServer(cfg.Debug.Addr, board, store)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("debug server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("debug server failed")
		}
	}()

	log.Info().
		Str("session_id", cfg.Session.ID).
		Str("player_id", me.PlayerID).
		Str("name", me.DisplayName).
		Str("transport", cfg.Server.Transport).
		Msg("starting voyager bot")

	run(ctx, client, newBot(client, defaultCourse()), board, cfg.Session.ID)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client.Close(shutdownCtx)
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("debug server shutdown failed")
	}
	log.Info().Int("score", board.Get().ConfirmedScore).Msg("voyager bot stopped")
}

// run is the game loop. It owns the client until ctx is done.
func run(ctx context.Context, client *multiplayer.Client, b *bot, board *statusBoard, sessionID string) {
	var nextJoin time.Time
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if client.State() == gateway.StateDisconnected && !client.Reconnecting() && !now.Before(nextJoin) {
				joinCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
				if err := client.Join(joinCtx, sessionID); err != nil {
					log.Warn().Err(err).Str("session_id", sessionID).Dur("retry_in", rejoinDelay).Msg("join failed")
					nextJoin = time.Now().Add(rejoinDelay)
				}
				cancel()
				last = time.Now()
				continue
			}

			dt := now.Sub(last)
			last = now
			client.Frame(dt)
			b.Step(dt)
			board.Publish(client.Status())
		}
	}
}

func connectionConfig(cfg config.Config) gateway.ConnectionConfig {
	c := gateway.DefaultConnectionConfig()
	c.JoinTimeout = cfg.Connection.JoinTimeout
	c.PingInterval = cfg.Connection.PingInterval
	c.Reconnect.Enabled = cfg.Connection.Reconnect.Enabled
	c.Reconnect.BaseDelay = cfg.Connection.Reconnect.BaseDelay
	c.Reconnect.MaxDelay = cfg.Connection.Reconnect.MaxDelay
	c.Reconnect.MaxAttempts = cfg.Connection.Reconnect.MaxAttempts
	return c
}

func reconcilerConfig(cfg config.Config) reconciler.Config {
	c := reconciler.DefaultConfig()
	if cfg.Reconcile.Rate > 0 {
		c.Rate = cfg.Reconcile.Rate
	}
	c.TeleportDistance = cfg.Reconcile.TeleportDistance
	return c
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
