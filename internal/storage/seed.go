package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/campusbuzz/backend/internal/models"
)

const seedAdmin = "admin@campusbuzz.com"

// DefaultStats is the stats row a fresh store starts with.
var DefaultStats = models.SystemStats{
	TotalUsers:           2847,
	PendingVerifications: 43,
	ActiveChats:          186,
	APIRequests:          12400,
}

func int64Ptr(v int64) *int64   { return &v }
func stringPtr(s string) *string { return &s }

// Seed loads the sample dashboard data into an empty store. It is a no-op when
// the stats row already exists, so restarting a persistent store does not
// duplicate records.
func Seed(ctx context.Context, s Store, now time.Time) error {
	if _, err := s.GetStats(ctx); err == nil {
		zap.L().Debug("Store already seeded")
		return nil
	}

	users := []models.User{
		{Email: "john.doe@stanford.edu", Username: "johndoe", FullName: "John Doe", College: "Stanford University", Verified: true, VerificationStatus: models.VerificationApproved, IDUploaded: true, IDURL: stringPtr("https://example.com/id1.jpg")},
		{Email: "sarah.smith@mit.edu", Username: "sarahsmith", FullName: "Sarah Smith", College: "MIT", VerificationStatus: models.VerificationPending, IDUploaded: true, IDURL: stringPtr("https://example.com/id2.jpg")},
		{Email: "mike.johnson@harvard.edu", Username: "mikej", FullName: "Mike Johnson", College: "Harvard University", Verified: true, VerificationStatus: models.VerificationApproved, IDUploaded: true, IDURL: stringPtr("https://example.com/id3.jpg")},
		{Email: "alice.wong@berkeley.edu", Username: "alicew", FullName: "Alice Wong", College: "UC Berkeley", VerificationStatus: models.VerificationRejected, IDUploaded: true, IDURL: stringPtr("https://example.com/id4.jpg")},
		{Email: "raj.patel@iitm.ac.in", Username: "rajpatel", FullName: "Raj Patel", College: "IIT Madras", VerificationStatus: models.VerificationPending},
	}
	for i := range users {
		users[i].CreatedAt = now.Add(-time.Duration(len(users)-i) * 24 * time.Hour)
		if _, err := s.CreateUser(ctx, &users[i]); err != nil {
			return fmt.Errorf("seed user %s: %w", users[i].Email, err)
		}
	}

	verifications := []models.VerificationRequest{
		{UserID: int64Ptr(1), Email: "sarah.j@stanford.edu", FullName: "Sarah Johnson", College: "Stanford University", Status: models.VerificationPending, CreatedAt: now.Add(-2 * time.Minute)},
		{UserID: int64Ptr(2), Email: "mchen@mit.edu", FullName: "Michael Chen", College: "MIT", Status: models.VerificationPending, CreatedAt: now.Add(-5 * time.Minute)},
		{UserID: int64Ptr(3), Email: "priya@iitm.ac.in", FullName: "Priya Sharma", College: "IIT Madras", Status: models.VerificationPending, CreatedAt: now.Add(-8 * time.Minute)},
	}
	for i := range verifications {
		if _, err := s.CreateVerification(ctx, &verifications[i]); err != nil {
			return fmt.Errorf("seed verification %s: %w", verifications[i].Email, err)
		}
	}

	posts := []models.Post{
		{
			UserID:           int64Ptr(4),
			Content:          "Post contains inappropriate language and was flagged by multiple users. Content discusses exam cheating methods...",
			ModerationStatus: models.ModerationFlagged,
			FlaggedBy:        []string{"user123", "user456", "user789"},
			FlagReason:       stringPtr("Inappropriate content and academic dishonesty"),
			Priority:         models.PriorityHigh,
			CreatedAt:        now.Add(-10 * time.Minute),
		},
		{
			UserID:           int64Ptr(5),
			Content:          "Spam detection: User posted the same content multiple times across different forums...",
			ModerationStatus: models.ModerationFlagged,
			FlaggedBy:        []string{"user101"},
			FlagReason:       stringPtr("Spam"),
			Priority:         models.PriorityMedium,
			CreatedAt:        now.Add(-25 * time.Minute),
		},
	}
	for i := range posts {
		if _, err := s.CreatePost(ctx, &posts[i]); err != nil {
			return fmt.Errorf("seed post: %w", err)
		}
	}

	logs := []models.ModerationLog{
		{Action: models.LogApprovePost, ModeratorID: seedAdmin, Reason: stringPtr("Content meets community guidelines"), PostID: int64Ptr(1), CreatedAt: now.Add(-4 * time.Hour)},
		{Action: models.LogFlagPost, ModeratorID: "system", Reason: stringPtr("Automated content filter detected inappropriate language"), PostID: int64Ptr(2), CreatedAt: now.Add(-3 * time.Hour)},
		{Action: models.LogVerifyStudent, ModeratorID: seedAdmin, Reason: stringPtr("Student verification approved - valid .edu email and ID document"), CreatedAt: now.Add(-2 * time.Hour)},
		{Action: models.LogRejectVerification, ModeratorID: seedAdmin, Reason: stringPtr("Document quality insufficient for verification process"), CreatedAt: now.Add(-1 * time.Hour)},
	}
	for i := range logs {
		if _, err := s.AppendModerationLog(ctx, &logs[i]); err != nil {
			return fmt.Errorf("seed moderation log: %w", err)
		}
	}

	if _, err := s.InitStats(ctx, DefaultStats); err != nil {
		return fmt.Errorf("seed stats: %w", err)
	}

	zap.L().Info("Seeded store",
		zap.Int("users", len(users)),
		zap.Int("verifications", len(verifications)),
		zap.Int("posts", len(posts)),
		zap.Int("moderation_logs", len(logs)),
	)
	return nil
}
