// Package usecase contains application business logic.
package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/activity_mon/internal/domain"
)

// DayStoreResolver keeps the day document for "today" open and rotates it
// when the local date changes. Not safe for concurrent use; the Aggregator
// serializes access.
type DayStoreResolver struct {
	store  domain.DocumentStore
	logger *zap.Logger

	key string
	doc *domain.DayDocument
}

// NewDayStoreResolver creates a resolver over store.
func NewDayStoreResolver(store domain.DocumentStore, logger *zap.Logger) *DayStoreResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DayStoreResolver{store: store, logger: logger}
}

// Resolve returns the active document for the day containing now.
// A cached document is reused until the day key changes.
func (r *DayStoreResolver) Resolve(ctx context.Context, now time.Time) (string, *domain.DayDocument, error) {
	key := domain.DayKey(now)
	if r.doc != nil && r.key == key {
		return r.key, r.doc, nil
	}

	doc, existed, migrated, err := r.store.Open(ctx, key)
	if err != nil {
		return "", nil, fmt.Errorf("failed to open day %s: %w", key, err)
	}

	if !existed || migrated {
		if err := r.store.Write(ctx, key, doc); err != nil {
			// The in-memory document is still usable; the next flush retries.
			r.logger.Warn("failed to persist day document",
				zap.String("day", key),
				zap.Error(err))
		}
	}

	if r.key != "" {
		r.logger.Info("rotated day store",
			zap.String("from", r.key),
			zap.String("to", key))
	}

	r.key = key
	r.doc = doc
	return key, doc, nil
}

// Current returns the cached key and document, or an empty key before the first Resolve.
func (r *DayStoreResolver) Current() (string, *domain.DayDocument) {
	return r.key, r.doc
}

// Lookup reads a day straight from storage, ignoring the cache.
func (r *DayStoreResolver) Lookup(ctx context.Context, date string) (*domain.DayRecord, error) {
	if _, err := time.ParseInLocation(domain.DayKeyLayout, date, time.Local); err != nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidDate, date)
	}

	doc, exists, err := r.store.Read(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to read day %s: %w", date, err)
	}

	record := &domain.DayRecord{
		Date:       date,
		Goals:      []string{},
		Activities: []domain.Activity{},
		Exists:     exists,
	}
	if doc != nil {
		if doc.Goals != nil {
			record.Goals = doc.Goals
		}
		if doc.Activities != nil {
			record.Activities = doc.Activities
		}
	}
	return record, nil
}
