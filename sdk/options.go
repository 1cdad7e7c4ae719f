package sdk

import (
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/domini04/bluestar/pkg/config"
	"github.com/domini04/bluestar/runtime/providers"
	"github.com/domini04/bluestar/runtime/publish"
	"github.com/domini04/bluestar/runtime/stages"
	"github.com/domini04/bluestar/runtime/statestore"
	"github.com/domini04/bluestar/runtime/types"
)

// options holds what New assembles an Engine from.
// It is populated by Option functions.
type options struct {
	cfg *config.Config

	// Collaborators that replace the ones built from cfg.
	generator providers.Generator
	fetcher   stages.ChangeFetcher
	store     statestore.Store
	sinks     map[types.PublishChoice]publish.Sink

	// Interactive collaborators; nil means the run suspends.
	reviewer stages.Reviewer
	chooser  stages.Chooser

	log            *slog.Logger
	clock          func() time.Time
	tracerProvider trace.TracerProvider
}

// Option configures an Engine.
type Option func(*options) error

// WithConfig sets the configuration. Without it New uses config.Default
// overlaid with the environment.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return fmt.Errorf("WithConfig: %w", ErrNilOption)
		}
		o.cfg = cfg
		return nil
	}
}

// WithGenerator uses gen instead of building the provider named by llm.provider.
//
// This is how tests inject a scripted generator:
//
//	eng, _ := sdk.New(ctx, sdk.WithGenerator(mock.NewProvider()))
func WithGenerator(gen providers.Generator) Option {
	return func(o *options) error {
		if gen == nil {
			return fmt.Errorf("WithGenerator: %w", ErrNilOption)
		}
		o.generator = gen
		return nil
	}
}

// WithFetcher replaces the GitHub client.
func WithFetcher(f stages.ChangeFetcher) Option {
	return func(o *options) error {
		if f == nil {
			return fmt.Errorf("WithFetcher: %w", ErrNilOption)
		}
		o.fetcher = f
		return nil
	}
}

// WithReviewer sets the interactive reviewer consulted at the human checkpoint.
func WithReviewer(r stages.Reviewer) Option {
	return func(o *options) error {
		o.reviewer = r
		return nil
	}
}

// WithChooser sets the interactive publishing chooser.
func WithChooser(c stages.Chooser) Option {
	return func(o *options) error {
		o.chooser = c
		return nil
	}
}

// WithStore uses store for checkpoints instead of opening store.backend.
// The engine does not close a store it was given.
func WithStore(store statestore.Store) Option {
	return func(o *options) error {
		if store == nil {
			return fmt.Errorf("WithStore: %w", ErrNilOption)
		}
		o.store = store
		return nil
	}
}

// WithSink registers sink for choice, replacing the one built from the configuration.
func WithSink(choice types.PublishChoice, sink publish.Sink) Option {
	return func(o *options) error {
		if !choice.Valid() || choice == types.PublishDiscard {
			return fmt.Errorf("WithSink: %q is not a publishing destination", choice)
		}
		if sink == nil {
			return fmt.Errorf("WithSink: %w", ErrNilOption)
		}
		if o.sinks == nil {
			o.sinks = map[types.PublishChoice]publish.Sink{}
		}
		o.sinks[choice] = sink
		return nil
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) error {
		o.log = l
		return nil
	}
}

// WithClock sets the time source for stage completion stamps and checkpoints.
func WithClock(now func() time.Time) Option {
	return func(o *options) error {
		o.clock = now
		return nil
	}
}

// WithTracerProvider sets the provider stage and generation spans are created on.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) error {
		o.tracerProvider = tp
		return nil
	}
}
