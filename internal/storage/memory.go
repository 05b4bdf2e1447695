package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/campusbuzz/backend/internal/models"
)

const (
	seqVerification = "verification"
	seqPost         = "post"
	seqLog          = "moderation_log"
	seqUser         = "user"
)

// MemoryStore keeps everything in process memory. A single mutex serializes
// every write, so two reviewers acting on the same id cannot lose an update;
// ExpectedVersion on a patch turns last-write-wins into a conflict error.
type MemoryStore struct {
	mu sync.RWMutex

	nextIDs       map[string]int64
	verifications map[int64]*models.VerificationRequest
	posts         map[int64]*models.Post
	logs          map[int64]*models.ModerationLog
	users         map[int64]*models.User
	stats         *models.SystemStats
	tasks         map[string]*models.MirrorTask

	file *snapshotFile
	// dirty marks counter changes not yet written to file.
	dirty bool
	now   func() time.Time
}

// NewMemoryStore returns an empty, non-persistent store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextIDs:       map[string]int64{seqVerification: 1, seqPost: 1, seqLog: 1, seqUser: 1},
		verifications: make(map[int64]*models.VerificationRequest),
		posts:         make(map[int64]*models.Post),
		logs:          make(map[int64]*models.ModerationLog),
		users:         make(map[int64]*models.User),
		tasks:         make(map[string]*models.MirrorTask),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// NewPersistentMemoryStore is a MemoryStore that loads from and writes
// through to a JSON snapshot in dataDir.
func NewPersistentMemoryStore(dataDir string) (*MemoryStore, error) {
	f, err := newSnapshotFile(dataDir, "campusbuzz.json")
	if err != nil {
		return nil, err
	}
	s := NewMemoryStore()
	s.file = f

	snap, err := f.load()
	if err != nil {
		return nil, err
	}
	if snap != nil {
		s.restore(snap)
		zap.L().Info("Loaded store snapshot", zap.String("path", f.path), zap.Int("verifications", len(snap.Verifications)))
	}
	return s, nil
}

func (s *MemoryStore) nextID(seq string) int64 {
	id := s.nextIDs[seq]
	s.nextIDs[seq] = id + 1
	return id
}

// persist must be called with the write lock held. Snapshot failures are
// logged; the in-memory state stays authoritative.
func (s *MemoryStore) persist() {
	if s.file == nil {
		return
	}
	if err := s.file.save(s.snapshot()); err != nil {
		zap.L().Error("Failed to write store snapshot", zap.Error(err))
		s.dirty = true
		return
	}
	s.dirty = false
}

func (s *MemoryStore) CreateVerification(_ context.Context, req *models.VerificationRequest) (*models.VerificationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := *req
	rec.ID = s.nextID(seqVerification)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	rec.Version = 1
	s.verifications[rec.ID] = &rec
	s.persist()

	out := rec
	return &out, nil
}

func (s *MemoryStore) GetVerification(_ context.Context, id int64) (*models.VerificationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.verifications[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *rec
	return &out, nil
}

func (s *MemoryStore) ListVerifications(_ context.Context, status models.VerificationStatus) ([]models.VerificationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.VerificationRequest, 0, len(s.verifications))
	for _, id := range sortedKeys(s.verifications) {
		rec := s.verifications[id]
		if status != "" && rec.Status != status {
			continue
		}
		out = append(out, *rec)
	}
	if status == "" {
		sortVerificationsNewestFirst(out)
	}
	return out, nil
}

func (s *MemoryStore) UpdateVerification(_ context.Context, id int64, patch models.VerificationPatch) (*models.VerificationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.verifications[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !versionMatches(patch.ExpectedVersion, rec.Version) {
		return nil, ErrConflict
	}
	applyVerificationPatch(rec, patch)
	s.persist()

	out := *rec
	return &out, nil
}

func (s *MemoryStore) CreatePost(_ context.Context, post *models.Post) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := clonePost(post)
	rec.ID = s.nextID(seqPost)
	now := s.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = rec.CreatedAt
	rec.Version = 1
	if rec.ModerationStatus == "" {
		rec.ModerationStatus = models.ModerationPending
	}
	if rec.Priority == "" {
		rec.Priority = models.PriorityLow
	}
	s.posts[rec.ID] = rec
	s.persist()

	return clonePost(rec), nil
}

func (s *MemoryStore) GetPost(_ context.Context, id int64) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePost(rec), nil
}

func (s *MemoryStore) ListPosts(_ context.Context, status models.ModerationStatus) ([]models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Post, 0, len(s.posts))
	for _, id := range sortedKeys(s.posts) {
		rec := s.posts[id]
		if status != "" && rec.ModerationStatus != status {
			continue
		}
		out = append(out, *clonePost(rec))
	}
	if status == "" {
		sortPostsNewestFirst(out)
	}
	return out, nil
}

func (s *MemoryStore) UpdatePost(_ context.Context, id int64, patch models.PostPatch) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !versionMatches(patch.ExpectedVersion, rec.Version) {
		return nil, ErrConflict
	}
	applyPostPatch(rec, patch, s.now())
	s.persist()

	return clonePost(rec), nil
}

func (s *MemoryStore) AppendModerationLog(_ context.Context, entry *models.ModerationLog) (*models.ModerationLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := *entry
	rec.ID = s.nextID(seqLog)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	s.logs[rec.ID] = &rec
	s.persist()

	out := rec
	return &out, nil
}

func (s *MemoryStore) ListModerationLogs(_ context.Context) ([]models.ModerationLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.ModerationLog, 0, len(s.logs))
	for _, id := range sortedKeys(s.logs) {
		out = append(out, *s.logs[id])
	}
	sortLogsNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) CreateUser(_ context.Context, user *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := *user
	rec.ID = s.nextID(seqUser)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	rec.UpdatedAt = rec.CreatedAt
	if rec.VerificationStatus == "" {
		rec.VerificationStatus = models.VerificationPending
	}
	s.users[rec.ID] = &rec
	s.persist()

	out := rec
	return &out, nil
}

func (s *MemoryStore) GetUser(_ context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *rec
	return &out, nil
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.User, 0, len(s.users))
	for _, id := range sortedKeys(s.users) {
		out = append(out, *s.users[id])
	}
	sortUsersNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) GetStats(_ context.Context) (*models.SystemStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.stats == nil {
		return nil, ErrNotFound
	}
	out := *s.stats
	return &out, nil
}

func (s *MemoryStore) InitStats(_ context.Context, stats models.SystemStats) (*models.SystemStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := stats
	rec.UpdatedAt = s.now()
	s.stats = &rec
	s.persist()

	out := rec
	return &out, nil
}

func (s *MemoryStore) PatchStats(_ context.Context, patch models.StatsPatch) (*models.SystemStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stats == nil {
		return nil, ErrNotFound
	}
	applyStatsPatch(s.stats, patch, s.now())
	s.persist()

	out := *s.stats
	return &out, nil
}

func (s *MemoryStore) AdjustStats(_ context.Context, delta models.StatsDelta) (*models.SystemStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stats == nil {
		return nil, ErrNotFound
	}
	applyStatsDelta(s.stats, delta, s.now())
	// The API counter moves on every request; it rides along with the next
	// real write or Close.
	if delta == (models.StatsDelta{APIRequests: delta.APIRequests}) {
		s.dirty = true
	} else {
		s.persist()
	}

	out := *s.stats
	return &out, nil
}

func (s *MemoryStore) EnqueueMirrorTask(_ context.Context, task *models.MirrorTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := *task
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	s.tasks[rec.ID] = &rec
	s.persist()
	return nil
}

// PendingMirrorTasks returns uncompleted tasks oldest first.
func (s *MemoryStore) PendingMirrorTasks(_ context.Context, limit int) ([]models.MirrorTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.MirrorTask, 0)
	for _, t := range s.tasks {
		if t.CompletedAt == nil {
			out = append(out, *t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) CompleteMirrorTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return ErrNotFound
	}
	now := s.now()
	t.Attempts++
	t.CompletedAt = &now
	t.LastError = ""
	s.persist()
	return nil
}

func (s *MemoryStore) FailMirrorTask(_ context.Context, id string, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return ErrNotFound
	}
	t.Attempts++
	if cause != nil {
		t.LastError = cause.Error()
	}
	s.persist()
	return nil
}

func (s *MemoryStore) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dirty {
		s.persist()
	}
	return nil
}

func (s *MemoryStore) snapshot() *snapshot {
	snap := &snapshot{
		NextIDs: make(map[string]int64, len(s.nextIDs)),
	}
	for k, v := range s.nextIDs {
		snap.NextIDs[k] = v
	}
	for _, id := range sortedKeys(s.verifications) {
		snap.Verifications = append(snap.Verifications, *s.verifications[id])
	}
	for _, id := range sortedKeys(s.posts) {
		snap.Posts = append(snap.Posts, *s.posts[id])
	}
	for _, id := range sortedKeys(s.logs) {
		snap.Logs = append(snap.Logs, *s.logs[id])
	}
	for _, id := range sortedKeys(s.users) {
		snap.Users = append(snap.Users, *s.users[id])
	}
	for _, t := range s.tasks {
		snap.MirrorTasks = append(snap.MirrorTasks, *t)
	}
	if s.stats != nil {
		st := *s.stats
		snap.Stats = &st
	}
	return snap
}

func (s *MemoryStore) restore(snap *snapshot) {
	for k, v := range snap.NextIDs {
		s.nextIDs[k] = v
	}
	for i := range snap.Verifications {
		v := snap.Verifications[i]
		s.verifications[v.ID] = &v
	}
	for i := range snap.Posts {
		p := snap.Posts[i]
		s.posts[p.ID] = &p
	}
	for i := range snap.Logs {
		l := snap.Logs[i]
		s.logs[l.ID] = &l
	}
	for i := range snap.Users {
		u := snap.Users[i]
		s.users[u.ID] = &u
	}
	for i := range snap.MirrorTasks {
		t := snap.MirrorTasks[i]
		s.tasks[t.ID] = &t
	}
	if snap.Stats != nil {
		st := *snap.Stats
		s.stats = &st
	}
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
