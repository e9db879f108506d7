package repository

import (
	"fmt"
	"log/slog"

	"github.com/samber/oops"

	"wildsats-api/internal/clock"
	"wildsats-api/internal/model"
)

type options struct {
	clock            clock.Clock
	defaultCharacter string
	logger           *slog.Logger
}

// Option configures a repository.
type Option func(*options)

// WithClock sets the time source for CreatedAt and LastLogin.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithDefaultCharacter sets the character granted on first login.
func WithDefaultCharacter(name string) Option {
	return func(o *options) {
		if name != "" {
			o.defaultCharacter = name
		}
	}
}

// WithLogger sets the repository logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(backend string, opts []Option) options {
	o := options{
		clock:            clock.New(),
		defaultCharacter: model.DefaultCharacter,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With("component", "repository", "backend", backend)
	return o
}

func notFound(op, identity string) error {
	return oops.Code("USER_NOT_FOUND").
		In("repository").
		With("operation", op).
		With("identity", identity).
		Wrap(model.ErrUserNotFound)
}

func storageError(op, identity string, err error) error {
	return oops.Code("STORAGE_FAILURE").
		In("repository").
		With("operation", op).
		With("identity", identity).
		Wrap(fmt.Errorf("%w: %s: %w", model.ErrStorageFailure, op, err))
}
