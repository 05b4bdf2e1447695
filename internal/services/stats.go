package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/campusbuzz/backend/internal/mirror"
	"github.com/campusbuzz/backend/internal/models"
	"github.com/campusbuzz/backend/internal/storage"
)

// StatsService serves the dashboard counters. The counters are a cache that
// callers nudge; nothing recomputes them from the collections.
type StatsService struct {
	store   storage.Store
	mirror  mirror.Mirror
	timeout time.Duration
}

func NewStatsService(store storage.Store, m mirror.Mirror, timeout time.Duration) *StatsService {
	if timeout <= 0 {
		timeout = defaultMirrorTimeout
	}
	return &StatsService{store: store, mirror: m, timeout: timeout}
}

func (s *StatsService) Get(ctx context.Context) (*models.SystemStats, error) {
	return s.store.GetStats(ctx)
}

// Patch overwrites the given counters.
func (s *StatsService) Patch(ctx context.Context, patch models.StatsPatch) (*models.SystemStats, error) {
	if patch.Empty() {
		return nil, ErrEmptyStatsPatch
	}
	for field, v := range map[string]*int64{
		"totalUsers":           patch.TotalUsers,
		"pendingVerifications": patch.PendingVerifications,
		"activeChats":          patch.ActiveChats,
		"apiRequests":          patch.APIRequests,
	} {
		if v != nil && *v < 0 {
			return nil, &ValidationError{
				Field:   field,
				Message: field + " must not be negative",
				Fields:  []models.FieldError{{Field: field, Message: field + " must not be negative"}},
			}
		}
	}
	return s.store.PatchStats(ctx, patch)
}

// RecordAPIRequest counts one served API call.
func (s *StatsService) RecordAPIRequest(ctx context.Context) {
	if _, err := s.store.AdjustStats(ctx, models.StatsDelta{APIRequests: 1}); err != nil && !errors.Is(err, storage.ErrNotFound) {
		zap.L().Debug("Failed to count api request", zap.Error(err))
	}
}

// TestMirrorConnection pings the mirror and pushes the current counters.
func (s *StatsService) TestMirrorConnection(ctx context.Context) (mirror.Mode, error) {
	mctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	mode := s.mirror.Mode()
	if err := s.mirror.Ping(mctx); err != nil {
		return mode, err
	}

	stats, err := s.store.GetStats(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return mode, nil
		}
		return mode, fmt.Errorf("load stats: %w", err)
	}
	if err := s.mirror.PushStats(mctx, *stats); err != nil {
		return mode, err
	}
	return mode, nil
}
