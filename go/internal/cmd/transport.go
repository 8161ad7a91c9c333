package main

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/voyager/go/internal/config"
	"github.com/mcdev12/voyager/go/internal/multiplayer/gateway"
)

func setupTransport(cfg config.Config) (gateway.Transport, func(), error) {
	switch cfg.Server.Transport {
	case config.TransportNATS:
		natsCfg := gateway.DefaultNATSConfig()
		natsCfg.URL = cfg.Server.NATSURL
		natsCfg.SubjectPrefix = cfg.Server.SubjectPrefix

		t, err := gateway.NewNATSTransport(natsCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		log.Info().Str("nats_url", natsCfg.URL).Str("subject_prefix", natsCfg.SubjectPrefix).Msg("using NATS transport")
		return t, t.Close, nil

	case config.TransportWebSocket:
		wsCfg := gateway.DefaultWebSocketConfig(cfg.Server.URL)
		log.Info().Str("url", wsCfg.URL).Msg("using websocket transport")
		return gateway.NewWebSocketTransport(wsCfg), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown transport %q", cfg.Server.Transport)
}
