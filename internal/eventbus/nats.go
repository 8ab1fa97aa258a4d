// PakLoad - Offline-Tolerant Freight Tracking
// Copyright 2026 The PakLoad Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/awakeelkhan/pakload

package eventbus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/nats-io/nats-server/v2/server"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/awakeelkhan/pakload-sub003/internal/config"
	"github.com/awakeelkhan/pakload-sub003/internal/logging"
)

// EmbeddedServer runs a JetStream-enabled NATS server in process.
type EmbeddedServer struct {
	server    *server.Server
	clientURL string
}

// NewEmbeddedServer starts a server and waits until it accepts clients.
// A port of -1 picks a free one.
func NewEmbeddedServer(cfg config.NATSConfig) (*EmbeddedServer, error) {
	opts := &server.Options{
		ServerName:         "pakload-events",
		Host:               cfg.Host,
		Port:               cfg.Port,
		JetStream:          true,
		StoreDir:           cfg.StoreDir,
		JetStreamMaxMemory: cfg.MaxMemory,
		JetStreamMaxStore:  cfg.MaxStore,
		NoLog:              true,
		MaxPayload:         1024 * 1024,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready within timeout")
	}

	logging.Info().Str("url", ns.ClientURL()).Msg("Embedded NATS server started")
	return &EmbeddedServer{server: ns, clientURL: ns.ClientURL()}, nil
}

// ClientURL returns the URL clients connect to.
func (s *EmbeddedServer) ClientURL() string {
	return s.clientURL
}

// Shutdown stops the server and waits for it to exit.
func (s *EmbeddedServer) Shutdown() error {
	s.server.Shutdown()
	s.server.WaitForShutdown()
	return nil
}

// streamConfig is the JetStream stream holding every tracking topic.
func streamConfig(name string) jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:       name,
		Subjects:   []string{"tracking.>"},
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     7 * 24 * time.Hour,
		Duplicates: 10 * time.Minute,
		Storage:    jetstream.FileStorage,
		Discard:    jetstream.DiscardOld,
	}
}

// EnsureStream creates or updates the tracking stream.
func EnsureStream(ctx context.Context, js jetstream.JetStream, name string) (jetstream.Stream, error) {
	cfg := streamConfig(name)

	_, err := js.Stream(ctx, name)
	if err == nil {
		stream, err := js.UpdateStream(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("update stream %s: %w", name, err)
		}
		return stream, nil
	}
	if errors.Is(err, jetstream.ErrStreamNotFound) {
		stream, err := js.CreateStream(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("create stream %s: %w", name, err)
		}
		return stream, nil
	}
	return nil, fmt.Errorf("check stream %s: %w", name, err)
}

// NewNATSBus connects to NATS, making sure the stream exists, and returns a
// bus publishing to JetStream. With cfg.EmbeddedServer set it first starts
// a server and connects to that instead of cfg.URL.
func NewNATSBus(ctx context.Context, cfg config.NATSConfig, logger watermill.LoggerAdapter) (*Bus, error) {
	if logger == nil {
		logger = NewLogger()
	}
	streamName := cfg.StreamName
	if streamName == "" {
		streamName = "TRACKING"
	}

	bus := &Bus{logger: logger, transport: "nats", dedup: cfg.TrackMsgID}
	url := cfg.URL

	if cfg.EmbeddedServer {
		es, err := NewEmbeddedServer(cfg)
		if err != nil {
			return nil, err
		}
		url = es.ClientURL()
		bus.onClose = append(bus.onClose, es.Shutdown)
	}

	cleanup := func() {
		for i := len(bus.onClose) - 1; i >= 0; i-- {
			_ = bus.onClose[i]()
		}
	}

	nc, err := natsgo.Connect(url, natsgo.Timeout(10*time.Second))
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		cleanup()
		return nil, fmt.Errorf("open JetStream: %w", err)
	}
	if _, err := EnsureStream(ctx, js, streamName); err != nil {
		nc.Close()
		cleanup()
		return nil, err
	}
	nc.Close()

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false,
			// Publish sets the dedup header from the event key instead of
			// the random message UUID.
			TrackMsgId: false,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}
	bus.publisher = pub
	bus.natsURL = url
	bus.SetCircuitBreaker(NewCircuitBreaker(DefaultCircuitBreakerConfig("event-bus")))

	logging.Info().Str("url", url).Str("stream", streamName).Msg("Event bus connected to NATS JetStream")
	return bus, nil
}

// NewFromConfig returns the NATS bus when cfg.Enabled, else the in-process
// bus.
func NewFromConfig(ctx context.Context, cfg config.NATSConfig) (*Bus, error) {
	if !cfg.Enabled {
		return NewGoChannelBus(nil), nil
	}
	return NewNATSBus(ctx, cfg, nil)
}
