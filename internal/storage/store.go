// Package storage holds the authoritative record of verification requests,
// posts, the moderation log, users, the stats cache and the mirror outbox.
package storage

import (
	"context"
	"errors"

	"github.com/campusbuzz/backend/internal/models"
)

var (
	// ErrNotFound is returned when an id does not resolve.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a conditional update sees a different version.
	ErrConflict = errors.New("version conflict")
)

// Store is implemented by MemoryStore, MongoStore and SQLStore.
//
// List calls without a status filter are sorted newest first. With a filter
// the records come back in natural (id ascending) order.
type Store interface {
	CreateVerification(ctx context.Context, req *models.VerificationRequest) (*models.VerificationRequest, error)
	GetVerification(ctx context.Context, id int64) (*models.VerificationRequest, error)
	ListVerifications(ctx context.Context, status models.VerificationStatus) ([]models.VerificationRequest, error)
	UpdateVerification(ctx context.Context, id int64, patch models.VerificationPatch) (*models.VerificationRequest, error)

	CreatePost(ctx context.Context, post *models.Post) (*models.Post, error)
	GetPost(ctx context.Context, id int64) (*models.Post, error)
	ListPosts(ctx context.Context, status models.ModerationStatus) ([]models.Post, error)
	UpdatePost(ctx context.Context, id int64, patch models.PostPatch) (*models.Post, error)

	AppendModerationLog(ctx context.Context, entry *models.ModerationLog) (*models.ModerationLog, error)
	ListModerationLogs(ctx context.Context) ([]models.ModerationLog, error)

	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)

	// GetStats returns ErrNotFound until InitStats has been called.
	GetStats(ctx context.Context) (*models.SystemStats, error)
	InitStats(ctx context.Context, stats models.SystemStats) (*models.SystemStats, error)
	PatchStats(ctx context.Context, patch models.StatsPatch) (*models.SystemStats, error)
	AdjustStats(ctx context.Context, delta models.StatsDelta) (*models.SystemStats, error)

	EnqueueMirrorTask(ctx context.Context, task *models.MirrorTask) error
	PendingMirrorTasks(ctx context.Context, limit int) ([]models.MirrorTask, error)
	CompleteMirrorTask(ctx context.Context, id string) error
	FailMirrorTask(ctx context.Context, id string, cause error) error

	Close(ctx context.Context) error
}
