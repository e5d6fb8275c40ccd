package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/internal/store"
)

// app wires the engine for one command invocation.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	persist   store.StateStore
	publisher events.Publisher
	client    *api.Client
	session   *session.Store
	cart      *cart.Store
	checkout  *checkout.Pipeline
}

func newApp(ctx context.Context, envFile string) (*app, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	log := logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	persist, err := store.Open(ctx, cfg.StoreBackend, cfg.StoreDSN, cfg.StoreNamespace)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaTopic, cfg.KafkaBrokers...)
	}

	client := api.NewClient(cfg.APIBaseURL, cfg.RequestTimeout, api.WithLogger(log))
	sess := session.NewStore(client, persist,
		session.WithPublisher(publisher),
		session.WithLogger(log))
	c := cart.NewStore(ctx, persist,
		cart.WithPublisher(publisher),
		cart.WithIdentity(sess.UserID),
		cart.WithLogger(log))
	pipeline := checkout.NewPipeline(client, sess, c,
		checkout.WithPublisher(publisher),
		checkout.WithLogger(log))

	a := &app{
		cfg:       cfg,
		logger:    log,
		persist:   persist,
		publisher: publisher,
		client:    client,
		session:   sess,
		cart:      c,
		checkout:  pipeline,
	}

	if _, err := sess.Bootstrap(ctx); err != nil {
		log.WarnContext(ctx, "session could not be resolved", "error", err)
	}
	return a, nil
}

func (a *app) Close() {
	a.session.Close()
	if err := a.publisher.Close(); err != nil {
		a.logger.Warn("failed to close event publisher", "error", err)
	}
	if err := a.persist.Close(); err != nil {
		a.logger.Warn("failed to close state store", "error", err)
	}
}

// userMessage is what the terminal shows for err.
func userMessage(err error) string {
	var e *apperr.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
