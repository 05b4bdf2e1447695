package mirror

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/campusbuzz/backend/internal/models"
)

const defaultDemoBucket = "campusbuzz-project.appspot.com"

// DemoMirror stands in when no Firebase credentials are configured. It logs
// what it would have written and returns deterministic data.
type DemoMirror struct {
	bucket string
	now    func() time.Time
}

func NewDemoMirror(bucket string) *DemoMirror {
	if bucket == "" {
		bucket = defaultDemoBucket
	}
	return &DemoMirror{bucket: bucket, now: time.Now}
}

func (d *DemoMirror) Mode() Mode { return ModeDemo }

func (d *DemoMirror) Ping(context.Context) error { return nil }

func (d *DemoMirror) PushVerification(_ context.Context, key string, push models.VerificationPush) error {
	zap.L().Info("Demo mode: verification not mirrored",
		zap.String("key", key),
		zap.String("status", string(push.Status)),
		zap.String("reviewed_by", push.ReviewedBy),
	)
	return nil
}

func (d *DemoMirror) PushModeration(_ context.Context, postID string, push models.ModerationPush) error {
	zap.L().Info("Demo mode: moderation not mirrored",
		zap.String("post_id", postID),
		zap.String("action", string(push.Action)),
		zap.String("moderator", push.ModeratorID),
	)
	return nil
}

func (d *DemoMirror) UploadDocument(_ context.Context, userID string, data []byte, filename, _ string) (string, error) {
	url := fmt.Sprintf("https://storage.googleapis.com/%s/%s", d.bucket, documentPath(userID, filename))
	zap.L().Info("Demo mode: document upload simulated",
		zap.String("user_id", userID),
		zap.Int("bytes", len(data)),
	)
	return url, nil
}

func (d *DemoMirror) ReadChat(_ context.Context, chatID string) (*models.ChatData, error) {
	zap.L().Debug("Demo mode: chat read", zap.String("chat_id", chatID))
	return &models.ChatData{
		Messages: []models.ChatMessage{
			{ID: 1, Text: "Demo chat message", Timestamp: d.now().UTC(), UserID: "user1"},
		},
		Participants: []string{"user1", "user2"},
	}, nil
}

func (d *DemoMirror) PushStats(_ context.Context, stats models.SystemStats) error {
	zap.L().Info("Demo mode: stats not mirrored", zap.Int64("total_users", stats.TotalUsers))
	return nil
}
