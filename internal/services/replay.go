package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/campusbuzz/backend/internal/mirror"
	"github.com/campusbuzz/backend/internal/models"
	"github.com/campusbuzz/backend/internal/storage"
)

// ReplayResult counts the outcome of one replay pass.
type ReplayResult struct {
	Replayed int `json:"replayed"`
	Failed   int `json:"failed"`
}

// MirrorReplayer drains the mirror outbox.
type MirrorReplayer struct {
	store   storage.Store
	mirror  mirror.Mirror
	timeout time.Duration
}

func NewMirrorReplayer(store storage.Store, m mirror.Mirror, timeout time.Duration) *MirrorReplayer {
	if timeout <= 0 {
		timeout = defaultMirrorTimeout
	}
	return &MirrorReplayer{store: store, mirror: m, timeout: timeout}
}

// Replay pushes up to limit pending tasks, oldest first. Failed tasks stay
// pending with their attempt count raised.
func (r *MirrorReplayer) Replay(ctx context.Context, limit int) (ReplayResult, error) {
	var res ReplayResult
	tasks, err := r.store.PendingMirrorTasks(ctx, limit)
	if err != nil {
		return res, fmt.Errorf("load mirror tasks: %w", err)
	}

	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := r.replayOne(ctx, task); err != nil {
			res.Failed++
			zap.L().Warn("Mirror replay failed",
				zap.String("task_id", task.ID),
				zap.String("op", string(task.Kind)),
				zap.String("key", task.Key),
				zap.Int("attempts", task.Attempts+1),
				zap.Error(err),
			)
			if ferr := r.store.FailMirrorTask(ctx, task.ID, err); ferr != nil {
				zap.L().Error("Failed to record mirror task failure", zap.String("task_id", task.ID), zap.Error(ferr))
			}
			continue
		}
		if err := r.store.CompleteMirrorTask(ctx, task.ID); err != nil {
			zap.L().Error("Failed to complete mirror task", zap.String("task_id", task.ID), zap.Error(err))
			continue
		}
		res.Replayed++
	}

	if len(tasks) > 0 {
		zap.L().Info("Mirror replay finished", zap.Int("replayed", res.Replayed), zap.Int("failed", res.Failed))
	}
	return res, nil
}

func (r *MirrorReplayer) replayOne(ctx context.Context, task models.MirrorTask) error {
	mctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	switch task.Kind {
	case models.MirrorTaskVerification:
		var push models.VerificationPush
		if err := json.Unmarshal(task.Payload, &push); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		return r.mirror.PushVerification(mctx, task.Key, push)
	case models.MirrorTaskModeration:
		var push models.ModerationPush
		if err := json.Unmarshal(task.Payload, &push); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		return r.mirror.PushModeration(mctx, task.Key, push)
	case models.MirrorTaskStats:
		var stats models.SystemStats
		if err := json.Unmarshal(task.Payload, &stats); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		return r.mirror.PushStats(mctx, stats)
	}
	return fmt.Errorf("unknown mirror task kind %q", task.Kind)
}
