package services

import (
	"context"
	"errors"
	"testing"

	"github.com/campusbuzz/backend/internal/models"
	"github.com/campusbuzz/backend/internal/storage"
	"github.com/campusbuzz/backend/internal/validators"
)

func TestSubmitVerificationStartsPending(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestLifecycle(t, &fakeMirror{}, LifecycleOptions{})

	rec, err := svc.SubmitVerification(ctx, models.SubmitVerificationRequest{
		Email:    "x@stanford.edu",
		FullName: "X Y",
		College:  "Stanford University",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if rec.Status != models.VerificationPending {
		t.Fatalf("expected pending, got %s", rec.Status)
	}
	if rec.ID != 4 {
		t.Fatalf("expected id 4 after three seeded requests, got %d", rec.ID)
	}

	stats, err := store.GetStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.PendingVerifications != storage.DefaultStats.PendingVerifications+1 {
		t.Fatalf("expected pending counter +1, got %d", stats.PendingVerifications)
	}
}

func TestSubmitVerificationValidation(t *testing.T) {
	svc, _ := newTestLifecycle(t, &fakeMirror{}, LifecycleOptions{})

	_, err := svc.SubmitVerification(context.Background(), models.SubmitVerificationRequest{
		Email:    "someone@gmail.com",
		FullName: "Some One",
		College:  "Nowhere",
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != "email" || verr.Message != validators.ErrEmailNotEducational.Error() {
		t.Fatalf("unexpected validation error %+v", verr)
	}
}

func TestReviewVerificationApproveThenOverwrite(t *testing.T) {
	ctx := context.Background()
	m := &fakeMirror{}
	svc, store := newTestLifecycle(t, m, LifecycleOptions{Admin: "admin@campusbuzz.com"})

	approved, err := svc.ReviewVerification(ctx, 1, models.VerificationApproved, ptr("ok"), nil)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != models.VerificationApproved {
		t.Fatalf("expected approved, got %s", approved.Status)
	}
	if approved.ReviewedAt == nil || !approved.ReviewedAt.Equal(fixedNow) {
		t.Fatalf("expected reviewedAt to be stamped, got %v", approved.ReviewedAt)
	}
	if approved.ReviewedBy == nil || *approved.ReviewedBy != "admin@campusbuzz.com" {
		t.Fatalf("expected reviewer identity, got %v", approved.ReviewedBy)
	}

	rejected, err := svc.ReviewVerification(ctx, 1, models.VerificationRejected, nil, nil)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != models.VerificationRejected {
		t.Fatalf("expected last write to win, got %s", rejected.Status)
	}
	if rejected.Notes == nil || *rejected.Notes != "ok" {
		t.Fatalf("expected notes kept when not supplied, got %v", rejected.Notes)
	}

	// Only the first review moved the request out of pending.
	stats, _ := store.GetStats(ctx)
	if stats.PendingVerifications != storage.DefaultStats.PendingVerifications-1 {
		t.Fatalf("expected pending counter -1, got %d", stats.PendingVerifications)
	}

	if len(m.verifications) != 2 {
		t.Fatalf("expected two mirror pushes, got %d", len(m.verifications))
	}
	// Seeded request 1 belongs to user 1.
	if m.verifications[0].Key != "1" || m.verifications[0].Push.Email != "sarah.j@stanford.edu" {
		t.Fatalf("unexpected mirror push %+v", m.verifications[0])
	}
	if m.verifications[1].Push.Status != models.VerificationRejected {
		t.Fatalf("expected second push to carry rejected, got %s", m.verifications[1].Push.Status)
	}
}

func TestReviewVerificationInvalidStatus(t *testing.T) {
	svc, store := newTestLifecycle(t, &fakeMirror{}, LifecycleOptions{})
	for _, status := range []models.VerificationStatus{models.VerificationPending, "done", ""} {
		if _, err := svc.ReviewVerification(context.Background(), 1, status, nil, nil); !errors.Is(err, ErrInvalidStatus) {
			t.Fatalf("status %q: expected ErrInvalidStatus, got %v", status, err)
		}
	}
	rec, _ := store.GetVerification(context.Background(), 1)
	if rec.Status != models.VerificationPending || rec.Version != 1 {
		t.Fatalf("expected record untouched, got %+v", rec)
	}
}

func TestReviewVerificationUnknownID(t *testing.T) {
	ctx := context.Background()
	m := &fakeMirror{}
	svc, store := newTestLifecycle(t, m, LifecycleOptions{})

	before, _ := store.ListVerifications(ctx, "")
	if _, err := svc.ReviewVerification(ctx, 999, models.VerificationApproved, nil, nil); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	after, _ := store.ListVerifications(ctx, "")
	for i := range before {
		if before[i].Version != after[i].Version || before[i].Status != after[i].Status {
			t.Fatalf("record %d mutated: %+v -> %+v", before[i].ID, before[i], after[i])
		}
	}
	if len(m.verifications) != 0 {
		t.Fatalf("expected no mirror push, got %d", len(m.verifications))
	}
}

func TestReviewVerificationStaleVersion(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestLifecycle(t, &fakeMirror{}, LifecycleOptions{})

	if _, err := svc.ReviewVerification(ctx, 2, models.VerificationApproved, nil, ptr(int64(1))); err != nil {
		t.Fatalf("first review: %v", err)
	}
	// A second reviewer still holding version 1 loses.
	if _, err := svc.ReviewVerification(ctx, 2, models.VerificationRejected, nil, ptr(int64(1))); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	rec, _ := store.GetVerification(ctx, 2)
	if rec.Status != models.VerificationApproved {
		t.Fatalf("expected first review to stand, got %s", rec.Status)
	}
}

func TestReviewVerificationSurvivesMirrorFailure(t *testing.T) {
	ctx := context.Background()
	m := &fakeMirror{err: errMirrorDown}
	svc, store := newTestLifecycle(t, m, LifecycleOptions{Delivery: DeliveryDirect})

	if _, err := svc.ReviewVerification(ctx, 1, models.VerificationApproved, nil, nil); err != nil {
		t.Fatalf("expected mirror failure to be swallowed, got %v", err)
	}
	if _, err := svc.ReviewVerification(ctx, 2, models.VerificationRejected, nil, nil); err != nil {
		t.Fatalf("expected mirror failure to be swallowed, got %v", err)
	}

	first, _ := store.GetVerification(ctx, 1)
	second, _ := store.GetVerification(ctx, 2)
	if first.Status != models.VerificationApproved || second.Status != models.VerificationRejected {
		t.Fatalf("local store lost the review: %s / %s", first.Status, second.Status)
	}

	// Direct delivery drops failed pushes.
	tasks, _ := store.PendingMirrorTasks(ctx, 0)
	if len(tasks) != 0 {
		t.Fatalf("expected no outbox tasks in direct mode, got %d", len(tasks))
	}
}

func TestReviewVerificationOutboxEnqueuesFailedPush(t *testing.T) {
	ctx := context.Background()
	m := &fakeMirror{err: errMirrorDown}
	svc, store := newTestLifecycle(t, m, LifecycleOptions{Delivery: DeliveryOutbox})

	if _, err := svc.ReviewVerification(ctx, 3, models.VerificationApproved, ptr("welcome"), nil); err != nil {
		t.Fatalf("review: %v", err)
	}

	tasks, err := store.PendingMirrorTasks(ctx, 0)
	if err != nil {
		t.Fatalf("pending tasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected one outbox task, got %d", len(tasks))
	}
	task := tasks[0]
	if task.Kind != models.MirrorTaskVerification || task.Key != "3" || task.ID != "task-a" {
		t.Fatalf("unexpected task %+v", task)
	}
	if task.LastError == "" {
		t.Fatal("expected the mirror error to be recorded")
	}
}

func TestReviewVerificationNotifies(t *testing.T) {
	n := &fakeNotifier{err: errors.New("smtp down")}
	svc, _ := newTestLifecycle(t, &fakeMirror{}, LifecycleOptions{Notifier: n})

	if _, err := svc.ReviewVerification(context.Background(), 1, models.VerificationApproved, nil, nil); err != nil {
		t.Fatalf("expected notifier failure to be swallowed, got %v", err)
	}
	if len(n.sent) != 1 || n.sent[0].Status != models.VerificationApproved {
		t.Fatalf("expected one decision notification, got %+v", n.sent)
	}
}

func TestBulkReviewSkipsUnknownIDs(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestLifecycle(t, &fakeMirror{}, LifecycleOptions{})

	updated, err := svc.BulkReview(ctx, []int64{1, 999}, "approve", ptr("batch"))
	if err != nil {
		t.Fatalf("bulk review: %v", err)
	}
	if len(updated) != 1 || updated[0].ID != 1 {
		t.Fatalf("expected exactly request 1 updated, got %+v", updated)
	}
	rec, _ := store.GetVerification(ctx, 1)
	if rec.Status != models.VerificationApproved {
		t.Fatalf("expected approved, got %s", rec.Status)
	}
}

func TestBulkReviewIgnoresRepeatedIDs(t *testing.T) {
	ctx := context.Background()
	m := &fakeMirror{}
	svc, store := newTestLifecycle(t, m, LifecycleOptions{})

	updated, err := svc.BulkReview(ctx, []int64{1, 1, 2, 1}, "reject", nil)
	if err != nil {
		t.Fatalf("bulk review: %v", err)
	}
	if len(updated) != 2 || updated[0].ID != 1 || updated[1].ID != 2 {
		t.Fatalf("expected requests 1 and 2 once each, got %+v", updated)
	}
	if len(m.verifications) != 2 {
		t.Fatalf("expected two mirror pushes, got %d", len(m.verifications))
	}
	rec, _ := store.GetVerification(ctx, 1)
	if rec.Version != 2 {
		t.Fatalf("expected request 1 written once, got version %d", rec.Version)
	}
}

func TestParseBulkAction(t *testing.T) {
	tests := []struct {
		in   string
		want models.VerificationStatus
		err  error
	}{
		{"approve", models.VerificationApproved, nil},
		{"approved", models.VerificationApproved, nil},
		{"Reject", models.VerificationRejected, nil},
		{"rejected", models.VerificationRejected, nil},
		{"pending", "", ErrInvalidAction},
		{"", "", ErrInvalidAction},
	}
	for _, tt := range tests {
		got, err := ParseBulkAction(tt.in)
		if !errors.Is(err, tt.err) || got != tt.want {
			t.Fatalf("ParseBulkAction(%q) = %q, %v; want %q, %v", tt.in, got, err, tt.want, tt.err)
		}
	}
}

func TestBulkReviewRequiresIDs(t *testing.T) {
	svc, _ := newTestLifecycle(t, &fakeMirror{}, LifecycleOptions{})
	_, err := svc.BulkReview(context.Background(), nil, "approve", nil)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "ids" {
		t.Fatalf("expected ids validation error, got %v", err)
	}
}

func TestModeratePostTwiceLogsTwice(t *testing.T) {
	ctx := context.Background()
	m := &fakeMirror{}
	svc, store := newTestLifecycle(t, m, LifecycleOptions{})

	for i := 0; i < 2; i++ {
		res, err := svc.ModeratePost(ctx, 1, models.ActionApprove, nil, nil)
		if err != nil {
			t.Fatalf("moderate #%d: %v", i+1, err)
		}
		if res.Action != models.ActionApprove || res.Post.ModerationStatus != models.ModerationApproved {
			t.Fatalf("unexpected result %+v", res)
		}
	}

	logs, err := store.ListModerationLogs(ctx)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	count := 0
	for _, l := range logs {
		if l.PostID != nil && *l.PostID == 1 && l.Action == models.LogApprove {
			count++
		}
	}
	if count != 2 {
		t.Fatalf("expected two approve entries for post 1, got %d", count)
	}
	if len(m.moderations) != 2 || m.moderations[0].Push.Action != models.ActionApprove {
		t.Fatalf("expected two moderation pushes, got %+v", m.moderations)
	}
}

func TestModeratePostErrors(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestLifecycle(t, &fakeMirror{}, LifecycleOptions{})

	if _, err := svc.ModeratePost(ctx, 1, "delete", nil, nil); !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("expected ErrInvalidAction, got %v", err)
	}
	if _, err := svc.ModeratePost(ctx, 404, models.ActionReject, nil, nil); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	logs, _ := store.ListModerationLogs(ctx)
	if len(logs) != 4 {
		t.Fatalf("expected only seeded log entries, got %d", len(logs))
	}
}

func TestModeratePostSurvivesMirrorFailure(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestLifecycle(t, &fakeMirror{err: errMirrorDown}, LifecycleOptions{})

	res, err := svc.ModeratePost(ctx, 2, models.ActionReject, ptr("spam"), nil)
	if err != nil {
		t.Fatalf("moderate: %v", err)
	}
	if res.Post.ModerationStatus != models.ModerationRejected {
		t.Fatalf("expected rejected, got %s", res.Post.ModerationStatus)
	}
	post, _ := store.GetPost(ctx, 2)
	if post.ModerationStatus != models.ModerationRejected {
		t.Fatalf("local post not updated: %s", post.ModerationStatus)
	}
}

func TestUploadIDDocument(t *testing.T) {
	ctx := context.Background()
	img := &validators.UploadedImage{Filename: "../../card.png", ContentType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}

	t.Run("requires user id", func(t *testing.T) {
		svc, _ := newTestLifecycle(t, &fakeMirror{}, LifecycleOptions{})
		if _, err := svc.UploadIDDocument(ctx, "  ", img); !errors.Is(err, ErrUserIDRequired) {
			t.Fatalf("expected ErrUserIDRequired, got %v", err)
		}
	})

	t.Run("strips directories from the file name", func(t *testing.T) {
		m := &fakeMirror{}
		svc, _ := newTestLifecycle(t, m, LifecycleOptions{})
		url, err := svc.UploadIDDocument(ctx, "7", img)
		if err != nil {
			t.Fatalf("upload: %v", err)
		}
		if url != "https://docs.example/7/card.png" {
			t.Fatalf("unexpected url %s", url)
		}
	})

	t.Run("screener rejection", func(t *testing.T) {
		sc := &fakeScreener{err: ErrImageRejected}
		m := &fakeMirror{}
		svc, _ := newTestLifecycle(t, m, LifecycleOptions{Screener: sc})
		if _, err := svc.UploadIDDocument(ctx, "7", img); !errors.Is(err, ErrImageRejected) {
			t.Fatalf("expected ErrImageRejected, got %v", err)
		}
		if len(m.uploads) != 0 {
			t.Fatal("rejected image must not be uploaded")
		}
	})

	t.Run("mirror failure surfaces", func(t *testing.T) {
		svc, _ := newTestLifecycle(t, &fakeMirror{err: errMirrorDown}, LifecycleOptions{})
		if _, err := svc.UploadIDDocument(ctx, "7", img); !errors.Is(err, errMirrorDown) {
			t.Fatalf("expected upload failure, got %v", err)
		}
	})
}

func TestReadChatFallsBackToEmpty(t *testing.T) {
	svc, _ := newTestLifecycle(t, &fakeMirror{err: errMirrorDown}, LifecycleOptions{})
	chat, err := svc.ReadChat(context.Background(), "c1")
	if err != nil {
		t.Fatalf("read chat: %v", err)
	}
	if len(chat.Messages) != 0 || len(chat.Participants) != 0 || chat.Messages == nil {
		t.Fatalf("expected empty chat, got %+v", chat)
	}
}

type actorKey struct{}

func TestActingAdminFromContext(t *testing.T) {
	m := &fakeMirror{}
	svc, store := newTestLifecycle(t, m, LifecycleOptions{
		Admin: "admin",
		Actor: func(ctx context.Context) string {
			id, _ := ctx.Value(actorKey{}).(string)
			return id
		},
	})

	ctx := context.WithValue(context.Background(), actorKey{}, "dean@campusbuzz.com")
	rec, err := svc.ReviewVerification(ctx, 2, models.VerificationApproved, nil, nil)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if rec.ReviewedBy == nil || *rec.ReviewedBy != "dean@campusbuzz.com" {
		t.Fatalf("expected acting admin as reviewer, got %v", rec.ReviewedBy)
	}

	if _, err := svc.ModeratePost(context.Background(), 1, models.ActionApprove, nil, nil); err != nil {
		t.Fatalf("moderate: %v", err)
	}
	logs, _ := store.ListModerationLogs(context.Background())
	if logs[0].ModeratorID != "admin" {
		t.Fatalf("expected fallback moderator, got %q", logs[0].ModeratorID)
	}
}

func TestMirrorPushesCarryActingAdmin(t *testing.T) {
	actor := func(ctx context.Context) string {
		id, _ := ctx.Value(actorKey{}).(string)
		return id
	}
	ctx := context.WithValue(context.Background(), actorKey{}, "dean@campusbuzz.com")

	check := func(t *testing.T, m *fakeMirror) {
		t.Helper()
		if len(m.verifications) != 1 || m.verifications[0].Push.ReviewedBy != "dean@campusbuzz.com" {
			t.Fatalf("expected reviewer on verification push, got %+v", m.verifications)
		}
		if len(m.moderations) != 1 || m.moderations[0].Push.ModeratorID != "dean@campusbuzz.com" {
			t.Fatalf("expected moderator on moderation push, got %+v", m.moderations)
		}
	}

	t.Run("direct", func(t *testing.T) {
		m := &fakeMirror{}
		svc, _ := newTestLifecycle(t, m, LifecycleOptions{Admin: "admin", Actor: actor})
		if _, err := svc.ReviewVerification(ctx, 2, models.VerificationApproved, nil, nil); err != nil {
			t.Fatalf("review: %v", err)
		}
		if _, err := svc.ModeratePost(ctx, 1, models.ActionApprove, nil, nil); err != nil {
			t.Fatalf("moderate: %v", err)
		}
		check(t, m)
	})

	t.Run("replayed", func(t *testing.T) {
		down := &fakeMirror{err: errMirrorDown}
		svc, store := newTestLifecycle(t, down, LifecycleOptions{Admin: "admin", Actor: actor, Delivery: DeliveryOutbox})
		if _, err := svc.ReviewVerification(ctx, 2, models.VerificationApproved, nil, nil); err != nil {
			t.Fatalf("review: %v", err)
		}
		if _, err := svc.ModeratePost(ctx, 1, models.ActionApprove, nil, nil); err != nil {
			t.Fatalf("moderate: %v", err)
		}

		up := &fakeMirror{}
		if _, err := NewMirrorReplayer(store, up, 0).Replay(context.Background(), 10); err != nil {
			t.Fatalf("replay: %v", err)
		}
		check(t, up)
	})
}
