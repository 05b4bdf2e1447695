package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/campusbuzz/backend/internal/mirror"
	"github.com/campusbuzz/backend/internal/models"
	"github.com/campusbuzz/backend/internal/storage"
)

var errMirrorDown = errors.New("firestore unavailable")

type verificationCall struct {
	Key  string
	Push models.VerificationPush
}

type moderationCall struct {
	PostID string
	Push   models.ModerationPush
}

// fakeMirror records every push. When err is set every call fails with it.
type fakeMirror struct {
	mu sync.Mutex

	mode mirror.Mode
	err  error

	verifications []verificationCall
	moderations   []moderationCall
	stats         []models.SystemStats
	uploads       []string
	pings         int
}

func (f *fakeMirror) Mode() mirror.Mode {
	if f.mode == "" {
		return mirror.ModeConnected
	}
	return f.mode
}

func (f *fakeMirror) failure(op string) error {
	if f.err == nil {
		return nil
	}
	return &mirror.Failure{Op: op, Err: f.err}
}

func (f *fakeMirror) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	return f.failure("ping")
}

func (f *fakeMirror) PushVerification(_ context.Context, key string, push models.VerificationPush) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("verification"); err != nil {
		return err
	}
	f.verifications = append(f.verifications, verificationCall{Key: key, Push: push})
	return nil
}

func (f *fakeMirror) PushModeration(_ context.Context, postID string, push models.ModerationPush) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("moderation"); err != nil {
		return err
	}
	f.moderations = append(f.moderations, moderationCall{PostID: postID, Push: push})
	return nil
}

func (f *fakeMirror) UploadDocument(_ context.Context, userID string, _ []byte, filename, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("upload"); err != nil {
		return "", err
	}
	url := "https://docs.example/" + userID + "/" + filename
	f.uploads = append(f.uploads, url)
	return url, nil
}

func (f *fakeMirror) ReadChat(_ context.Context, chatID string) (*models.ChatData, error) {
	if err := f.failure("chat"); err != nil {
		return nil, err
	}
	return &models.ChatData{
		Messages:     []models.ChatMessage{{ID: chatID, Text: "hello", UserID: "u1"}},
		Participants: []string{"u1"},
	}, nil
}

func (f *fakeMirror) PushStats(_ context.Context, stats models.SystemStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("stats"); err != nil {
		return err
	}
	f.stats = append(f.stats, stats)
	return nil
}

type fakeNotifier struct {
	sent []models.VerificationRequest
	err  error
}

func (n *fakeNotifier) NotifyDecision(_ context.Context, req *models.VerificationRequest) error {
	n.sent = append(n.sent, *req)
	return n.err
}

type fakeScreener struct {
	err   error
	calls int
}

func (s *fakeScreener) Screen(context.Context, []byte) error {
	s.calls++
	return s.err
}

var fixedNow = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

// newTestLifecycle returns a service over a fresh seeded memory store.
func newTestLifecycle(t *testing.T, m mirror.Mirror, opts LifecycleOptions) (*LifecycleService, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	if err := storage.Seed(context.Background(), store, fixedNow); err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc := NewLifecycleService(store, m, opts)
	svc.now = func() time.Time { return fixedNow }
	n := 0
	svc.newID = func() string {
		n++
		return "task-" + string(rune('a'+n-1))
	}
	return svc, store
}

func ptr[T any](v T) *T { return &v }
