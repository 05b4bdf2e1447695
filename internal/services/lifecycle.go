package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusbuzz/backend/internal/mirror"
	"github.com/campusbuzz/backend/internal/models"
	"github.com/campusbuzz/backend/internal/storage"
	"github.com/campusbuzz/backend/internal/validators"
)

// Delivery selects what happens to a mirror push that fails.
type Delivery string

const (
	// DeliveryDirect logs the failure and drops the push.
	DeliveryDirect Delivery = "direct"
	// DeliveryOutbox records the push as a MirrorTask for later replay.
	DeliveryOutbox Delivery = "outbox"
)

const (
	defaultMirrorTimeout = 5 * time.Second
	reviewRetries        = 3
)

type LifecycleOptions struct {
	// Admin is recorded as reviewer and moderator unless Actor names
	// someone for the request.
	Admin         string
	Actor         func(ctx context.Context) string
	MirrorTimeout time.Duration
	Delivery      Delivery
	// Notifier and Screener are optional.
	Notifier Notifier
	Screener ImageScreener
}

// LifecycleService runs verification review and post moderation: the local
// store is written first, then the mirror is updated best-effort.
type LifecycleService struct {
	store    storage.Store
	mirror   mirror.Mirror
	admin    string
	actor    func(ctx context.Context) string
	timeout  time.Duration
	delivery Delivery
	notifier Notifier
	screener ImageScreener

	now   func() time.Time
	newID func() string
}

func NewLifecycleService(store storage.Store, m mirror.Mirror, opts LifecycleOptions) *LifecycleService {
	s := &LifecycleService{
		store:    store,
		mirror:   m,
		admin:    opts.Admin,
		actor:    opts.Actor,
		timeout:  opts.MirrorTimeout,
		delivery: opts.Delivery,
		notifier: opts.Notifier,
		screener: opts.Screener,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.New().String() },
	}
	if s.admin == "" {
		s.admin = "admin"
	}
	if s.timeout <= 0 {
		s.timeout = defaultMirrorTimeout
	}
	if s.delivery == "" {
		s.delivery = DeliveryDirect
	}
	return s
}

func (s *LifecycleService) actingAdmin(ctx context.Context) string {
	if s.actor != nil {
		if id := s.actor(ctx); id != "" {
			return id
		}
	}
	return s.admin
}

// SubmitVerification validates and stores a new request. The request always
// starts pending and is not mirrored until it is reviewed.
func (s *LifecycleService) SubmitVerification(ctx context.Context, req models.SubmitVerificationRequest) (*models.VerificationRequest, error) {
	if errs := validators.Struct(req); errs != nil {
		return nil, newValidationError(errs)
	}

	rec := &models.VerificationRequest{
		UserID:   req.UserID,
		Email:    strings.TrimSpace(req.Email),
		FullName: strings.TrimSpace(req.FullName),
		College:  strings.TrimSpace(req.College),
		Status:   models.VerificationPending,
	}
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		rec.Notes = &notes
	}

	created, err := s.store.CreateVerification(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("create verification: %w", err)
	}
	s.adjustStats(ctx, models.StatsDelta{PendingVerifications: 1})

	zap.L().Info("Verification request submitted",
		zap.Int64("verification_id", created.ID),
		zap.String("college", created.College),
	)
	return created, nil
}

// ReviewVerification moves a request to approved or rejected. A terminal
// request may be reviewed again; the last review wins.
func (s *LifecycleService) ReviewVerification(ctx context.Context, id int64, status models.VerificationStatus, notes *string, expectedVersion *int64) (*models.VerificationRequest, error) {
	if !status.IsReviewOutcome() {
		return nil, ErrInvalidStatus
	}

	updated, wasPending, err := s.applyReview(ctx, id, status, notes, expectedVersion)
	if err != nil {
		return nil, err
	}
	s.afterReview(ctx, updated, wasPending)
	return updated, nil
}

// applyReview reads the current version and writes conditionally on it, so the
// pending-to-terminal transition is counted exactly once even when two
// reviewers race. Without a caller version a lost race is retried.
func (s *LifecycleService) applyReview(ctx context.Context, id int64, status models.VerificationStatus, notes *string, expectedVersion *int64) (*models.VerificationRequest, bool, error) {
	var lastErr error
	for attempt := 0; attempt < reviewRetries; attempt++ {
		current, err := s.store.GetVerification(ctx, id)
		if err != nil {
			return nil, false, err
		}
		if expectedVersion != nil && *expectedVersion != current.Version {
			return nil, false, storage.ErrConflict
		}

		reviewer := s.actingAdmin(ctx)
		reviewedAt := s.now()
		version := current.Version
		updated, err := s.store.UpdateVerification(ctx, id, models.VerificationPatch{
			Status:          &status,
			ReviewedBy:      &reviewer,
			ReviewedAt:      &reviewedAt,
			Notes:           notes,
			ExpectedVersion: &version,
		})
		if err == nil {
			return updated, current.Status == models.VerificationPending, nil
		}
		if !errors.Is(err, storage.ErrConflict) || expectedVersion != nil {
			return nil, false, err
		}
		lastErr = err
	}
	return nil, false, lastErr
}

func (s *LifecycleService) afterReview(ctx context.Context, rec *models.VerificationRequest, wasPending bool) {
	key := strconv.FormatInt(rec.ID, 10)
	if rec.UserID != nil {
		key = strconv.FormatInt(*rec.UserID, 10)
	}
	push := models.VerificationPush{Email: rec.Email, Status: rec.Status}
	if rec.Notes != nil {
		push.Notes = *rec.Notes
	}
	if rec.ReviewedBy != nil {
		push.ReviewedBy = *rec.ReviewedBy
	}
	s.push(ctx, models.MirrorTaskVerification, key, push, func(ctx context.Context) error {
		return s.mirror.PushVerification(ctx, key, push)
	})

	if wasPending {
		s.adjustStats(ctx, models.StatsDelta{PendingVerifications: -1})
	}

	if s.notifier != nil {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		if err := s.notifier.NotifyDecision(nctx, rec); err != nil {
			zap.L().Warn("Decision email failed", zap.Int64("verification_id", rec.ID), zap.Error(err))
		}
	}

	zap.L().Info("Verification reviewed",
		zap.Int64("verification_id", rec.ID),
		zap.String("status", string(rec.Status)),
		zap.Stringp("reviewer", rec.ReviewedBy),
	)
}

// ParseBulkAction accepts approve|reject and approved|rejected.
func ParseBulkAction(action string) (models.VerificationStatus, error) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "approve", "approved":
		return models.VerificationApproved, nil
	case "reject", "rejected":
		return models.VerificationRejected, nil
	}
	return "", ErrInvalidAction
}

// BulkReview reviews each id independently. Unknown ids are skipped; the
// returned slice holds only the records that were updated.
func (s *LifecycleService) BulkReview(ctx context.Context, ids []int64, action string, notes *string) ([]models.VerificationRequest, error) {
	status, err := ParseBulkAction(action)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, &ValidationError{
			Field:   "ids",
			Message: "ids must not be empty",
			Fields:  []models.FieldError{{Field: "ids", Message: "ids must not be empty"}},
		}
	}

	out := make([]models.VerificationRequest, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		updated, wasPending, err := s.applyReview(ctx, id, status, notes, nil)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				zap.L().Debug("Bulk review skipped unknown id", zap.Int64("verification_id", id))
			} else {
				zap.L().Error("Bulk review failed", zap.Int64("verification_id", id), zap.Error(err))
			}
			continue
		}
		s.afterReview(ctx, updated, wasPending)
		out = append(out, *updated)
	}
	return out, nil
}

// ModeratePost approves or rejects a post and appends a log entry every time.
func (s *LifecycleService) ModeratePost(ctx context.Context, id int64, action models.ModerationAction, reason *string, expectedVersion *int64) (*models.ModerationResult, error) {
	if !action.Valid() {
		return nil, ErrInvalidAction
	}

	status := action.Outcome()
	post, err := s.store.UpdatePost(ctx, id, models.PostPatch{
		ModerationStatus: &status,
		ExpectedVersion:  expectedVersion,
	})
	if err != nil {
		return nil, err
	}

	reasonText := ""
	if reason != nil {
		reasonText = *reason
	}
	moderator := s.actingAdmin(ctx)
	postID := id
	if _, err := s.store.AppendModerationLog(ctx, &models.ModerationLog{
		PostID:      &postID,
		Action:      action.LogAction(),
		ModeratorID: moderator,
		Reason:      &reasonText,
		CreatedAt:   s.now(),
	}); err != nil {
		return nil, fmt.Errorf("append moderation log: %w", err)
	}

	key := strconv.FormatInt(id, 10)
	push := models.ModerationPush{Action: action, Reason: reasonText, ModeratorID: moderator}
	s.push(ctx, models.MirrorTaskModeration, key, push, func(ctx context.Context) error {
		return s.mirror.PushModeration(ctx, key, push)
	})

	zap.L().Info("Post moderated",
		zap.Int64("post_id", id),
		zap.String("action", string(action)),
		zap.String("moderator", moderator),
	)
	return &models.ModerationResult{Post: post, Action: action}, nil
}

func (s *LifecycleService) ListPendingVerifications(ctx context.Context) ([]models.VerificationRequest, error) {
	return s.store.ListVerifications(ctx, models.VerificationPending)
}

func (s *LifecycleService) ListFlaggedPosts(ctx context.Context) ([]models.Post, error) {
	return s.store.ListPosts(ctx, models.ModerationFlagged)
}

func (s *LifecycleService) ListModerationLogs(ctx context.Context) ([]models.ModerationLog, error) {
	return s.store.ListModerationLogs(ctx)
}

func (s *LifecycleService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.store.ListUsers(ctx)
}

func (s *LifecycleService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return s.store.GetUser(ctx, id)
}

// UploadIDDocument stores an already validated image under the user's
// document folder and returns its read URL.
func (s *LifecycleService) UploadIDDocument(ctx context.Context, userID string, img *validators.UploadedImage) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrUserIDRequired
	}
	if img == nil || len(img.Data) == 0 {
		return "", validators.ErrNoFile
	}

	if s.screener != nil && s.mirror.Mode() == mirror.ModeConnected {
		if err := s.screener.Screen(ctx, img.Data); err != nil {
			if errors.Is(err, ErrImageRejected) {
				zap.L().Warn("ID document rejected by SafeSearch", zap.String("user_id", userID))
			}
			return "", err
		}
	}

	filename := path.Base(img.Filename)
	if filename == "." || filename == "/" {
		filename = s.newID()
	}

	mctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	url, err := s.mirror.UploadDocument(mctx, userID, img.Data, filename, img.ContentType)
	if err != nil {
		return "", fmt.Errorf("upload id document: %w", err)
	}

	zap.L().Info("ID document uploaded",
		zap.String("user_id", userID),
		zap.Int("bytes", len(img.Data)),
		zap.String("mode", string(s.mirror.Mode())),
	)
	return url, nil
}

// ReadChat returns the monitored chat, or an empty chat when it cannot be read.
func (s *LifecycleService) ReadChat(ctx context.Context, chatID string) (*models.ChatData, error) {
	mctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	chat, err := s.mirror.ReadChat(mctx, chatID)
	if err != nil {
		zap.L().Warn("Chat read failed",
			zap.String("chat_id", chatID),
			zap.String("mode", string(s.mirror.Mode())),
			zap.Error(err),
		)
		return models.EmptyChat(), nil
	}
	if chat == nil {
		return models.EmptyChat(), nil
	}
	return chat, nil
}

// push runs a mirror write after the local commit. It never fails the caller.
func (s *LifecycleService) push(ctx context.Context, kind models.MirrorTaskKind, key string, payload interface{}, fn func(ctx context.Context) error) {
	mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	err := fn(mctx)
	if err == nil {
		return
	}
	zap.L().Warn("Mirror push failed",
		zap.String("op", string(kind)),
		zap.String("key", key),
		zap.String("mode", string(s.mirror.Mode())),
		zap.Error(err),
	)

	if s.delivery != DeliveryOutbox {
		return
	}
	if err := enqueueMirrorTask(context.WithoutCancel(ctx), s.store, s.newID(), kind, key, payload, err, s.now()); err != nil {
		zap.L().Error("Failed to enqueue mirror task",
			zap.String("op", string(kind)),
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

func enqueueMirrorTask(ctx context.Context, store storage.Store, id string, kind models.MirrorTaskKind, key string, payload interface{}, cause error, now time.Time) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return store.EnqueueMirrorTask(ctx, &models.MirrorTask{
		ID:        id,
		Kind:      kind,
		Key:       key,
		Payload:   b,
		LastError: cause.Error(),
		CreatedAt: now,
	})
}

// adjustStats nudges the cached counters. The cache is advisory, so failures
// are logged only.
func (s *LifecycleService) adjustStats(ctx context.Context, delta models.StatsDelta) {
	if _, err := s.store.AdjustStats(ctx, delta); err != nil && !errors.Is(err, storage.ErrNotFound) {
		zap.L().Warn("Failed to adjust stats", zap.Error(err))
	}
}
