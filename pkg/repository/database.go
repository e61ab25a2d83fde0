package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/writer"
)

// Database wraps a DocumentStore with snapshot semantics. Reads get their own
// snapshot; updates run load, modify and save on the single writer so two
// updates never interleave on stale data.
type Database struct {
	store  DocumentStore
	writer *writer.Writer
	logger *zap.Logger
}

func NewDatabase(store DocumentStore, w *writer.Writer, logger *zap.Logger) *Database {
	return &Database{
		store:  store,
		writer: w,
		logger: logger,
	}
}

// View loads a snapshot and hands it to fn. Changes made by fn are discarded.
func (d *Database) View(ctx context.Context, fn func(doc *models.Document) error) error {
	doc, err := d.store.Load(ctx)
	if err != nil {
		d.logger.Error("Failed to read database", zap.Error(err))
		return fmt.Errorf("failed to read database: %w", err)
	}
	return fn(doc)
}

// Update loads a snapshot, lets fn modify it and saves it whole. If fn
// returns an error nothing is written. A failed save is reported as a
// transaction error.
func (d *Database) Update(ctx context.Context, fn func(doc *models.Document) error) error {
	return d.writer.Do(ctx, func(ctx context.Context) error {
		doc, err := d.store.Load(ctx)
		if err != nil {
			d.logger.Error("Failed to read database", zap.Error(err))
			return fmt.Errorf("failed to read database: %w", err)
		}

		if err := fn(doc); err != nil {
			return err
		}

		if err := d.store.Save(ctx, doc); err != nil {
			d.logger.Error("Failed to write database", zap.Error(err))
			return apperr.Transaction("Failed to save changes", err)
		}
		return nil
	})
}

// Pinger is implemented by backends that hold a network connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks the backend connection. Backends without one always succeed.
func (d *Database) Ping(ctx context.Context) error {
	if p, ok := d.store.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
