package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/campusbuzz/backend/internal/models"
)

var baseTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// runStoreSuite exercises the behavior every Store implementation shares.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("VerificationLifecycle", func(t *testing.T) { testVerificationLifecycle(t, newStore(t)) })
	t.Run("VerificationListOrder", func(t *testing.T) { testVerificationListOrder(t, newStore(t)) })
	t.Run("VerificationConflict", func(t *testing.T) { testVerificationConflict(t, newStore(t)) })
	t.Run("PostUpdate", func(t *testing.T) { testPostUpdate(t, newStore(t)) })
	t.Run("ModerationLogs", func(t *testing.T) { testModerationLogs(t, newStore(t)) })
	t.Run("Stats", func(t *testing.T) { testStats(t, newStore(t)) })
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("MirrorTasks", func(t *testing.T) { testMirrorTasks(t, newStore(t)) })
	t.Run("Seed", func(t *testing.T) { testSeed(t, newStore(t)) })
}

func createVerification(t *testing.T, s Store, email string, created time.Time) *models.VerificationRequest {
	t.Helper()
	rec, err := s.CreateVerification(context.Background(), &models.VerificationRequest{
		Email:     email,
		FullName:  "Test Student",
		College:   "Test College",
		Status:    models.VerificationPending,
		CreatedAt: created,
	})
	if err != nil {
		t.Fatalf("create verification: %v", err)
	}
	return rec
}

func testVerificationLifecycle(t *testing.T, s Store) {
	ctx := context.Background()
	first := createVerification(t, s, "a@mit.edu", baseTime)
	second := createVerification(t, s, "b@mit.edu", baseTime.Add(time.Minute))
	if first.ID != 1 || second.ID != 2 {
		t.Fatalf("expected ids 1 and 2, got %d and %d", first.ID, second.ID)
	}
	if first.Version != 1 {
		t.Fatalf("expected version 1, got %d", first.Version)
	}

	status := models.VerificationApproved
	reviewer := "admin"
	notes := "looks good"
	at := baseTime.Add(time.Hour)
	updated, err := s.UpdateVerification(ctx, first.ID, models.VerificationPatch{
		Status:     &status,
		ReviewedBy: &reviewer,
		ReviewedAt: &at,
		Notes:      &notes,
	})
	if err != nil {
		t.Fatalf("update verification: %v", err)
	}
	if updated.Status != models.VerificationApproved {
		t.Fatalf("expected approved, got %s", updated.Status)
	}
	if updated.ReviewedBy == nil || *updated.ReviewedBy != "admin" {
		t.Fatalf("expected reviewedBy admin, got %v", updated.ReviewedBy)
	}
	if updated.Email != "a@mit.edu" || !updated.CreatedAt.Equal(baseTime) {
		t.Fatalf("immutable fields changed: %+v", updated)
	}
	if updated.Version != 2 {
		t.Fatalf("expected version 2, got %d", updated.Version)
	}

	// A patch with only notes keeps the status.
	more := "second look"
	updated, err = s.UpdateVerification(ctx, first.ID, models.VerificationPatch{Notes: &more})
	if err != nil {
		t.Fatalf("notes-only update: %v", err)
	}
	if updated.Status != models.VerificationApproved || *updated.Notes != "second look" {
		t.Fatalf("unexpected merge result %+v", updated)
	}

	got, err := s.GetVerification(ctx, first.ID)
	if err != nil {
		t.Fatalf("get verification: %v", err)
	}
	if got.Version != 3 {
		t.Fatalf("expected persisted version 3, got %d", got.Version)
	}

	if _, err := s.GetVerification(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.UpdateVerification(ctx, 99, models.VerificationPatch{Status: &status}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
}

func testVerificationListOrder(t *testing.T, s Store) {
	ctx := context.Background()
	createVerification(t, s, "old@mit.edu", baseTime)
	createVerification(t, s, "new@mit.edu", baseTime.Add(2*time.Hour))
	createVerification(t, s, "mid@mit.edu", baseTime.Add(time.Hour))

	all, err := s.ListVerifications(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].Email != "new@mit.edu" || all[2].Email != "old@mit.edu" {
		t.Fatalf("expected newest first, got %+v", all)
	}

	pending, err := s.ListVerifications(ctx, models.VerificationPending)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 3 || pending[0].ID != 1 || pending[1].ID != 2 || pending[2].ID != 3 {
		t.Fatalf("expected natural order for filtered list, got %+v", pending)
	}

	rejected, err := s.ListVerifications(ctx, models.VerificationRejected)
	if err != nil {
		t.Fatalf("list rejected: %v", err)
	}
	if len(rejected) != 0 {
		t.Fatalf("expected no rejected requests, got %d", len(rejected))
	}
}

func testVerificationConflict(t *testing.T, s Store) {
	ctx := context.Background()
	rec := createVerification(t, s, "c@mit.edu", baseTime)

	status := models.VerificationRejected
	stale := int64(5)
	if _, err := s.UpdateVerification(ctx, rec.ID, models.VerificationPatch{Status: &status, ExpectedVersion: &stale}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	current := rec.Version
	updated, err := s.UpdateVerification(ctx, rec.ID, models.VerificationPatch{Status: &status, ExpectedVersion: &current})
	if err != nil {
		t.Fatalf("conditional update: %v", err)
	}
	if updated.Status != models.VerificationRejected {
		t.Fatalf("expected rejected, got %s", updated.Status)
	}

	// The same expected version is now stale.
	if _, err := s.UpdateVerification(ctx, rec.ID, models.VerificationPatch{Status: &status, ExpectedVersion: &current}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on replay, got %v", err)
	}
}

func testPostUpdate(t *testing.T, s Store) {
	ctx := context.Background()
	reason := "Spam"
	post, err := s.CreatePost(ctx, &models.Post{
		Content:          "buy now",
		ModerationStatus: models.ModerationFlagged,
		FlaggedBy:        []string{"u1", "u2"},
		FlagReason:       &reason,
		Priority:         models.PriorityMedium,
		CreatedAt:        baseTime,
	})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	if len(post.FlaggedBy) != 2 {
		t.Fatalf("expected flaggedBy to round-trip, got %v", post.FlaggedBy)
	}

	approved := models.ModerationApproved
	updated, err := s.UpdatePost(ctx, post.ID, models.PostPatch{ModerationStatus: &approved})
	if err != nil {
		t.Fatalf("update post: %v", err)
	}
	if updated.ModerationStatus != models.ModerationApproved {
		t.Fatalf("expected approved, got %s", updated.ModerationStatus)
	}
	if !updated.UpdatedAt.After(post.UpdatedAt) {
		t.Fatalf("expected updatedAt to advance: before %v after %v", post.UpdatedAt, updated.UpdatedAt)
	}
	if updated.Content != "buy now" || updated.FlagReason == nil || *updated.FlagReason != "Spam" {
		t.Fatalf("unexpected post after update %+v", updated)
	}

	flagged, err := s.ListPosts(ctx, models.ModerationFlagged)
	if err != nil {
		t.Fatalf("list flagged: %v", err)
	}
	if len(flagged) != 0 {
		t.Fatalf("expected no flagged posts after approval, got %d", len(flagged))
	}

	if _, err := s.UpdatePost(ctx, 42, models.PostPatch{ModerationStatus: &approved}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testModerationLogs(t *testing.T, s Store) {
	ctx := context.Background()
	postID := int64(7)
	for i, action := range []models.LogAction{models.LogApprove, models.LogReject, models.LogApprove} {
		_, err := s.AppendModerationLog(ctx, &models.ModerationLog{
			PostID:      &postID,
			Action:      action,
			ModeratorID: "admin",
			CreatedAt:   baseTime.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("append log: %v", err)
		}
	}
	logs, err := s.ListModerationLogs(ctx)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("expected 3 log entries, got %d", len(logs))
	}
	if logs[0].ID != 3 || logs[2].ID != 1 {
		t.Fatalf("expected newest first, got ids %d..%d", logs[0].ID, logs[2].ID)
	}
	if logs[0].PostID == nil || *logs[0].PostID != 7 {
		t.Fatalf("expected postId 7, got %v", logs[0].PostID)
	}
}

func testStats(t *testing.T, s Store) {
	ctx := context.Background()
	if _, err := s.GetStats(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before init, got %v", err)
	}
	if _, err := s.PatchStats(ctx, models.StatsPatch{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound patching uninitialized stats, got %v", err)
	}

	if _, err := s.InitStats(ctx, DefaultStats); err != nil {
		t.Fatalf("init stats: %v", err)
	}
	stats, err := s.AdjustStats(ctx, models.StatsDelta{PendingVerifications: 1, APIRequests: 2})
	if err != nil {
		t.Fatalf("adjust stats: %v", err)
	}
	if stats.PendingVerifications != 44 || stats.APIRequests != 12402 {
		t.Fatalf("unexpected stats after delta %+v", stats)
	}

	users := int64(10)
	stats, err = s.PatchStats(ctx, models.StatsPatch{TotalUsers: &users})
	if err != nil {
		t.Fatalf("patch stats: %v", err)
	}
	if stats.TotalUsers != 10 || stats.ActiveChats != 186 {
		t.Fatalf("unexpected stats after patch %+v", stats)
	}
}

func testUsers(t *testing.T, s Store) {
	ctx := context.Background()
	for i, email := range []string{"first@mit.edu", "second@mit.edu"} {
		_, err := s.CreateUser(ctx, &models.User{
			Email:     email,
			Username:  email,
			CreatedAt: baseTime.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("create user: %v", err)
		}
	}
	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 2 || users[0].Email != "second@mit.edu" {
		t.Fatalf("expected newest user first, got %+v", users)
	}
	user, err := s.GetUser(ctx, 1)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.VerificationStatus != models.VerificationPending {
		t.Fatalf("expected default pending status, got %q", user.VerificationStatus)
	}
	if _, err := s.GetUser(ctx, 3); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testMirrorTasks(t *testing.T, s Store) {
	ctx := context.Background()
	for i, id := range []string{"task-b", "task-a"} {
		err := s.EnqueueMirrorTask(ctx, &models.MirrorTask{
			ID:        id,
			Kind:      models.MirrorTaskVerification,
			Key:       "1",
			Payload:   []byte(`{"email":"a@mit.edu","status":"approved","notes":""}`),
			CreatedAt: baseTime.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	pending, err := s.PendingMirrorTasks(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != "task-b" {
		t.Fatalf("expected oldest task first, got %+v", pending)
	}

	if err := s.FailMirrorTask(ctx, "task-b", errors.New("firestore unavailable")); err != nil {
		t.Fatalf("fail task: %v", err)
	}
	if err := s.CompleteMirrorTask(ctx, "task-a"); err != nil {
		t.Fatalf("complete task: %v", err)
	}

	pending, err = s.PendingMirrorTasks(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected one pending task, got %d", len(pending))
	}
	if pending[0].Attempts != 1 || pending[0].LastError != "firestore unavailable" {
		t.Fatalf("unexpected failed task state %+v", pending[0])
	}
	if string(pending[0].Payload) == "" {
		t.Fatal("expected payload to be kept")
	}

	if err := s.CompleteMirrorTask(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testSeed(t *testing.T, s Store) {
	ctx := context.Background()
	if err := Seed(ctx, s, baseTime); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// Seeding twice must not duplicate anything.
	if err := Seed(ctx, s, baseTime); err != nil {
		t.Fatalf("second seed: %v", err)
	}

	pending, err := s.ListVerifications(ctx, models.VerificationPending)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 3 || pending[0].Email != "sarah.j@stanford.edu" {
		t.Fatalf("unexpected seeded verifications %+v", pending)
	}

	flagged, err := s.ListPosts(ctx, models.ModerationFlagged)
	if err != nil {
		t.Fatalf("list flagged: %v", err)
	}
	if len(flagged) != 2 || flagged[0].Priority != models.PriorityHigh {
		t.Fatalf("unexpected seeded posts %+v", flagged)
	}

	stats, err := s.GetStats(ctx)
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	if stats.TotalUsers != 2847 || stats.PendingVerifications != 43 || stats.ActiveChats != 186 || stats.APIRequests != 12400 {
		t.Fatalf("unexpected seeded stats %+v", stats)
	}

	logs, err := s.ListModerationLogs(ctx)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 4 || logs[0].Action != models.LogRejectVerification {
		t.Fatalf("unexpected seeded logs %+v", logs)
	}
	if logs[0].PostID != nil {
		t.Fatalf("expected verification log without post id, got %v", *logs[0].PostID)
	}
}
