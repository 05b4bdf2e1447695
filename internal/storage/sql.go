package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/campusbuzz/backend/internal/models"
)

const statsRowID = 1

type verificationRow struct {
	ID         int64 `gorm:"primaryKey"`
	UserID     *int64
	Email      string
	FullName   string
	College    string
	Status     string `gorm:"index"`
	ReviewedBy *string
	ReviewedAt *time.Time
	Notes      *string
	CreatedAt  time.Time `gorm:"index"`
	Version    int64
}

func (verificationRow) TableName() string { return "verification_requests" }

type postRow struct {
	ID               int64 `gorm:"primaryKey"`
	UserID           *int64
	Content          string
	ModerationStatus string   `gorm:"index"`
	FlaggedBy        []string `gorm:"serializer:json"`
	FlagReason       *string
	Priority         string
	CreatedAt        time.Time `gorm:"index"`
	UpdatedAt        time.Time
	Version          int64
}

func (postRow) TableName() string { return "posts" }

type moderationLogRow struct {
	ID          int64 `gorm:"primaryKey"`
	PostID      *int64
	Action      string
	ModeratorID string
	Reason      *string
	CreatedAt   time.Time `gorm:"index"`
}

func (moderationLogRow) TableName() string { return "moderation_logs" }

type userRow struct {
	ID                 int64  `gorm:"primaryKey"`
	Email              string `gorm:"index"`
	Username           string
	FullName           string
	College            string
	Verified           bool
	VerificationStatus string
	IDUploaded         bool
	IDURL              *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (userRow) TableName() string { return "users" }

type statsRow struct {
	ID                   int64 `gorm:"primaryKey;autoIncrement:false"`
	TotalUsers           int64
	PendingVerifications int64
	ActiveChats          int64
	APIRequests          int64
	UpdatedAt            time.Time
}

func (statsRow) TableName() string { return "system_stats" }

type mirrorTaskRow struct {
	ID          string `gorm:"primaryKey"`
	Kind        string
	Key         string
	Payload     []byte
	Attempts    int
	LastError   string
	CreatedAt   time.Time  `gorm:"index"`
	CompletedAt *time.Time `gorm:"index"`
}

func (mirrorTaskRow) TableName() string { return "mirror_tasks" }

// SQLStore persists through gorm to PostgreSQL or SQLite.
type SQLStore struct {
	db *gorm.DB
}

// NewSQLStore opens driver ("postgres" or "sqlite") at dsn and migrates the schema.
func NewSQLStore(driver, dsn string) (*SQLStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database, %w", driver, err)
	}

	if driver == "sqlite" {
		// One connection keeps in-memory databases shared and writes serialized.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	err = db.AutoMigrate(&verificationRow{}, &postRow{}, &moderationLogRow{}, &userRow{}, &statsRow{}, &mirrorTaskRow{})
	if err != nil {
		return nil, fmt.Errorf("failed to automigrate tables, %w", err)
	}

	zap.L().Info("SQL store ready", zap.String("driver", driver))
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Close(_ context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translateErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func listOrder(filtered bool) string {
	if filtered {
		return "id asc"
	}
	return "created_at desc, id asc"
}

func verificationFromRow(r verificationRow) models.VerificationRequest {
	return models.VerificationRequest{
		ID:         r.ID,
		UserID:     r.UserID,
		Email:      r.Email,
		FullName:   r.FullName,
		College:    r.College,
		Status:     models.VerificationStatus(r.Status),
		ReviewedBy: r.ReviewedBy,
		ReviewedAt: r.ReviewedAt,
		Notes:      r.Notes,
		CreatedAt:  r.CreatedAt,
		Version:    r.Version,
	}
}

func postFromRow(r postRow) models.Post {
	flagged := r.FlaggedBy
	if flagged == nil {
		flagged = []string{}
	}
	return models.Post{
		ID:               r.ID,
		UserID:           r.UserID,
		Content:          r.Content,
		ModerationStatus: models.ModerationStatus(r.ModerationStatus),
		FlaggedBy:        flagged,
		FlagReason:       r.FlagReason,
		Priority:         models.Priority(r.Priority),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
		Version:          r.Version,
	}
}

func logFromRow(r moderationLogRow) models.ModerationLog {
	return models.ModerationLog{
		ID:          r.ID,
		PostID:      r.PostID,
		Action:      models.CustomLogAction(r.Action),
		ModeratorID: r.ModeratorID,
		Reason:      r.Reason,
		CreatedAt:   r.CreatedAt,
	}
}

func userFromRow(r userRow) models.User {
	return models.User{
		ID:                 r.ID,
		Email:              r.Email,
		Username:           r.Username,
		FullName:           r.FullName,
		College:            r.College,
		Verified:           r.Verified,
		VerificationStatus: models.VerificationStatus(r.VerificationStatus),
		IDUploaded:         r.IDUploaded,
		IDURL:              r.IDURL,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func statsFromRow(r statsRow) models.SystemStats {
	return models.SystemStats{
		TotalUsers:           r.TotalUsers,
		PendingVerifications: r.PendingVerifications,
		ActiveChats:          r.ActiveChats,
		APIRequests:          r.APIRequests,
		UpdatedAt:            r.UpdatedAt,
	}
}

func (s *SQLStore) CreateVerification(ctx context.Context, req *models.VerificationRequest) (*models.VerificationRequest, error) {
	row := verificationRow{
		UserID:     req.UserID,
		Email:      req.Email,
		FullName:   req.FullName,
		College:    req.College,
		Status:     string(req.Status),
		ReviewedBy: req.ReviewedBy,
		ReviewedAt: req.ReviewedAt,
		Notes:      req.Notes,
		CreatedAt:  req.CreatedAt,
		Version:    1,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}
	out := verificationFromRow(row)
	return &out, nil
}

func (s *SQLStore) GetVerification(ctx context.Context, id int64) (*models.VerificationRequest, error) {
	var row verificationRow
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, translateErr(err)
	}
	out := verificationFromRow(row)
	return &out, nil
}

func (s *SQLStore) ListVerifications(ctx context.Context, status models.VerificationStatus) ([]models.VerificationRequest, error) {
	q := s.db.WithContext(ctx).Order(listOrder(status != ""))
	if status != "" {
		q = q.Where("status = ?", string(status))
	}
	var rows []verificationRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.VerificationRequest, 0, len(rows))
	for _, r := range rows {
		out = append(out, verificationFromRow(r))
	}
	return out, nil
}

func (s *SQLStore) UpdateVerification(ctx context.Context, id int64, patch models.VerificationPatch) (*models.VerificationRequest, error) {
	var out models.VerificationRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row verificationRow
		if err := tx.First(&row, id).Error; err != nil {
			return translateErr(err)
		}
		if !versionMatches(patch.ExpectedVersion, row.Version) {
			return ErrConflict
		}

		rec := verificationFromRow(row)
		applyVerificationPatch(&rec, patch)

		res := tx.Model(&verificationRow{}).
			Where("id = ? AND version = ?", id, row.Version).
			Updates(map[string]any{
				"status":      string(rec.Status),
				"reviewed_by": rec.ReviewedBy,
				"reviewed_at": rec.ReviewedAt,
				"notes":       rec.Notes,
				"version":     rec.Version,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *SQLStore) CreatePost(ctx context.Context, post *models.Post) (*models.Post, error) {
	row := postRow{
		UserID:           post.UserID,
		Content:          post.Content,
		ModerationStatus: string(post.ModerationStatus),
		FlaggedBy:        append([]string{}, post.FlaggedBy...),
		FlagReason:       post.FlagReason,
		Priority:         string(post.Priority),
		CreatedAt:        post.CreatedAt,
		Version:          1,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	row.UpdatedAt = row.CreatedAt
	if row.ModerationStatus == "" {
		row.ModerationStatus = string(models.ModerationPending)
	}
	if row.Priority == "" {
		row.Priority = string(models.PriorityLow)
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}
	out := postFromRow(row)
	return &out, nil
}

func (s *SQLStore) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	var row postRow
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, translateErr(err)
	}
	out := postFromRow(row)
	return &out, nil
}

func (s *SQLStore) ListPosts(ctx context.Context, status models.ModerationStatus) ([]models.Post, error) {
	q := s.db.WithContext(ctx).Order(listOrder(status != ""))
	if status != "" {
		q = q.Where("moderation_status = ?", string(status))
	}
	var rows []postRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.Post, 0, len(rows))
	for _, r := range rows {
		out = append(out, postFromRow(r))
	}
	return out, nil
}

func (s *SQLStore) UpdatePost(ctx context.Context, id int64, patch models.PostPatch) (*models.Post, error) {
	var out models.Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row postRow
		if err := tx.First(&row, id).Error; err != nil {
			return translateErr(err)
		}
		if !versionMatches(patch.ExpectedVersion, row.Version) {
			return ErrConflict
		}

		rec := postFromRow(row)
		applyPostPatch(&rec, patch, time.Now().UTC())

		res := tx.Model(&postRow{}).
			Where("id = ? AND version = ?", id, row.Version).
			Updates(map[string]any{
				"moderation_status": string(rec.ModerationStatus),
				"flag_reason":       rec.FlagReason,
				"updated_at":        rec.UpdatedAt,
				"version":           rec.Version,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *SQLStore) AppendModerationLog(ctx context.Context, entry *models.ModerationLog) (*models.ModerationLog, error) {
	row := moderationLogRow{
		PostID:      entry.PostID,
		Action:      string(entry.Action),
		ModeratorID: entry.ModeratorID,
		Reason:      entry.Reason,
		CreatedAt:   entry.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}
	out := logFromRow(row)
	return &out, nil
}

func (s *SQLStore) ListModerationLogs(ctx context.Context) ([]models.ModerationLog, error) {
	var rows []moderationLogRow
	if err := s.db.WithContext(ctx).Order(listOrder(false)).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.ModerationLog, 0, len(rows))
	for _, r := range rows {
		out = append(out, logFromRow(r))
	}
	return out, nil
}

func (s *SQLStore) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	row := userRow{
		Email:              user.Email,
		Username:           user.Username,
		FullName:           user.FullName,
		College:            user.College,
		Verified:           user.Verified,
		VerificationStatus: string(user.VerificationStatus),
		IDUploaded:         user.IDUploaded,
		IDURL:              user.IDURL,
		CreatedAt:          user.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	row.UpdatedAt = row.CreatedAt
	if row.VerificationStatus == "" {
		row.VerificationStatus = string(models.VerificationPending)
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}
	out := userFromRow(row)
	return &out, nil
}

func (s *SQLStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, translateErr(err)
	}
	out := userFromRow(row)
	return &out, nil
}

func (s *SQLStore) ListUsers(ctx context.Context) ([]models.User, error) {
	var rows []userRow
	if err := s.db.WithContext(ctx).Order(listOrder(false)).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, userFromRow(r))
	}
	return out, nil
}

func (s *SQLStore) GetStats(ctx context.Context) (*models.SystemStats, error) {
	var row statsRow
	if err := s.db.WithContext(ctx).First(&row, statsRowID).Error; err != nil {
		return nil, translateErr(err)
	}
	out := statsFromRow(row)
	return &out, nil
}

func (s *SQLStore) InitStats(ctx context.Context, stats models.SystemStats) (*models.SystemStats, error) {
	row := statsRow{
		ID:                   statsRowID,
		TotalUsers:           stats.TotalUsers,
		PendingVerifications: stats.PendingVerifications,
		ActiveChats:          stats.ActiveChats,
		APIRequests:          stats.APIRequests,
		UpdatedAt:            time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return nil, err
	}
	out := statsFromRow(row)
	return &out, nil
}

func (s *SQLStore) updateStats(ctx context.Context, updates map[string]any) (*models.SystemStats, error) {
	var out models.SystemStats
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&statsRow{}).Where("id = ?", statsRowID).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		var row statsRow
		if err := tx.First(&row, statsRowID).Error; err != nil {
			return translateErr(err)
		}
		out = statsFromRow(row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *SQLStore) PatchStats(ctx context.Context, patch models.StatsPatch) (*models.SystemStats, error) {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if patch.TotalUsers != nil {
		updates["total_users"] = *patch.TotalUsers
	}
	if patch.PendingVerifications != nil {
		updates["pending_verifications"] = *patch.PendingVerifications
	}
	if patch.ActiveChats != nil {
		updates["active_chats"] = *patch.ActiveChats
	}
	if patch.APIRequests != nil {
		updates["api_requests"] = *patch.APIRequests
	}
	return s.updateStats(ctx, updates)
}

func (s *SQLStore) AdjustStats(ctx context.Context, delta models.StatsDelta) (*models.SystemStats, error) {
	return s.updateStats(ctx, map[string]any{
		"total_users":           gorm.Expr("total_users + ?", delta.TotalUsers),
		"pending_verifications": gorm.Expr("pending_verifications + ?", delta.PendingVerifications),
		"active_chats":          gorm.Expr("active_chats + ?", delta.ActiveChats),
		"api_requests":          gorm.Expr("api_requests + ?", delta.APIRequests),
		"updated_at":            time.Now().UTC(),
	})
}

func (s *SQLStore) EnqueueMirrorTask(ctx context.Context, task *models.MirrorTask) error {
	row := mirrorTaskRow{
		ID:        task.ID,
		Kind:      string(task.Kind),
		Key:       task.Key,
		Payload:   []byte(task.Payload),
		Attempts:  task.Attempts,
		LastError: task.LastError,
		CreatedAt: task.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *SQLStore) PendingMirrorTasks(ctx context.Context, limit int) ([]models.MirrorTask, error) {
	q := s.db.WithContext(ctx).Where("completed_at IS NULL").Order("created_at asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []mirrorTaskRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.MirrorTask, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.MirrorTask{
			ID:          r.ID,
			Kind:        models.MirrorTaskKind(r.Kind),
			Key:         r.Key,
			Payload:     r.Payload,
			Attempts:    r.Attempts,
			LastError:   r.LastError,
			CreatedAt:   r.CreatedAt,
			CompletedAt: r.CompletedAt,
		})
	}
	return out, nil
}

func (s *SQLStore) CompleteMirrorTask(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&mirrorTaskRow{}).Where("id = ?", id).Updates(map[string]any{
		"completed_at": time.Now().UTC(),
		"attempts":     gorm.Expr("attempts + ?", 1),
		"last_error":   "",
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) FailMirrorTask(ctx context.Context, id string, cause error) error {
	updates := map[string]any{"attempts": gorm.Expr("attempts + ?", 1)}
	if cause != nil {
		updates["last_error"] = cause.Error()
	}
	res := s.db.WithContext(ctx).Model(&mirrorTaskRow{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
