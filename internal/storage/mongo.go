package storage

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/campusbuzz/backend/internal/models"
)

const statsDocID = "current"

// MongoStore persists to MongoDB. Integer ids come from a counters collection;
// updates are conditional on the stored version when the patch asks for it.
type MongoStore struct {
	client        *mongo.Client
	counters      *mongo.Collection
	verifications *mongo.Collection
	posts         *mongo.Collection
	logs          *mongo.Collection
	users         *mongo.Collection
	stats         *mongo.Collection
	tasks         *mongo.Collection
}

type mongoStatsDoc struct {
	ID                 string `bson:"_id"`
	models.SystemStats `bson:",inline"`
}

type mongoTaskDoc struct {
	ID          string                `bson:"_id"`
	Kind        models.MirrorTaskKind `bson:"kind"`
	Key         string                `bson:"key"`
	Payload     []byte                `bson:"payload"`
	Attempts    int                   `bson:"attempts"`
	LastError   string                `bson:"last_error,omitempty"`
	CreatedAt   time.Time             `bson:"created_at"`
	CompletedAt *time.Time            `bson:"completed_at,omitempty"`
}

func NewMongoStore(ctx context.Context, mongoURI, dbName string) (*MongoStore, error) {
	// Atlas occasionally fails TLS negotiation unless TLS 1.2 is forced.
	tlsCfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		MaxVersion: tls.VersionTLS12,
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI).SetTLSConfig(tlsCfg))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	db := client.Database(dbName)
	s := &MongoStore{
		client:        client,
		counters:      db.Collection("counters"),
		verifications: db.Collection("verification_requests"),
		posts:         db.Collection("posts"),
		logs:          db.Collection("moderation_logs"),
		users:         db.Collection("users"),
		stats:         db.Collection("system_stats"),
		tasks:         db.Collection("mirror_tasks"),
	}

	// Best-effort indexes.
	_, _ = s.verifications.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	_, _ = s.posts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "moderation_status", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	_, _ = s.logs.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "created_at", Value: -1}}})
	_, _ = s.users.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "email", Value: 1}}})
	_, _ = s.tasks.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "completed_at", Value: 1}, {Key: "created_at", Value: 1}}})

	zap.L().Info("MongoDB connected", zap.String("db", dbName))
	return s, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) nextID(ctx context.Context, seq string) (int64, error) {
	var out struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": seq},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&out)
	if err != nil {
		return 0, fmt.Errorf("next %s id: %w", seq, err)
	}
	return out.Seq, nil
}

// listOptions sorts newest first without a filter and by id with one.
func listOptions(filtered bool) *options.FindOptions {
	if filtered {
		return options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	}
	return options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
}

// conditionalUpdate applies update to the document with the given id and
// returns the post-update document in out.
func (s *MongoStore) conditionalUpdate(ctx context.Context, coll *mongo.Collection, id int64, expected *int64, update bson.M, out interface{}) error {
	filter := bson.M{"_id": id}
	if expected != nil {
		filter["version"] = *expected
	}
	err := coll.FindOneAndUpdate(ctx, filter, update, options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if expected == nil {
			return ErrNotFound
		}
		n, cerr := coll.CountDocuments(ctx, bson.M{"_id": id})
		if cerr != nil {
			return cerr
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrConflict
	}
	return err
}

func (s *MongoStore) CreateVerification(ctx context.Context, req *models.VerificationRequest) (*models.VerificationRequest, error) {
	id, err := s.nextID(ctx, seqVerification)
	if err != nil {
		return nil, err
	}
	rec := *req
	rec.ID = id
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.Version = 1
	if _, err := s.verifications.InsertOne(ctx, rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *MongoStore) GetVerification(ctx context.Context, id int64) (*models.VerificationRequest, error) {
	var rec models.VerificationRequest
	if err := s.verifications.FindOne(ctx, bson.M{"_id": id}).Decode(&rec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (s *MongoStore) ListVerifications(ctx context.Context, status models.VerificationStatus) ([]models.VerificationRequest, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	cur, err := s.verifications.Find(ctx, filter, listOptions(status != ""))
	if err != nil {
		return nil, err
	}
	out := make([]models.VerificationRequest, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) UpdateVerification(ctx context.Context, id int64, patch models.VerificationPatch) (*models.VerificationRequest, error) {
	set := bson.M{}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	if patch.ReviewedBy != nil {
		set["reviewed_by"] = *patch.ReviewedBy
	}
	if patch.ReviewedAt != nil {
		set["reviewed_at"] = *patch.ReviewedAt
	}
	if patch.Notes != nil {
		set["notes"] = *patch.Notes
	}
	update := bson.M{"$inc": bson.M{"version": 1}}
	if len(set) > 0 {
		update["$set"] = set
	}

	var rec models.VerificationRequest
	if err := s.conditionalUpdate(ctx, s.verifications, id, patch.ExpectedVersion, update, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *MongoStore) CreatePost(ctx context.Context, post *models.Post) (*models.Post, error) {
	id, err := s.nextID(ctx, seqPost)
	if err != nil {
		return nil, err
	}
	rec := clonePost(post)
	rec.ID = id
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.UpdatedAt = rec.CreatedAt
	rec.Version = 1
	if rec.ModerationStatus == "" {
		rec.ModerationStatus = models.ModerationPending
	}
	if rec.Priority == "" {
		rec.Priority = models.PriorityLow
	}
	if rec.FlaggedBy == nil {
		rec.FlaggedBy = []string{}
	}
	if _, err := s.posts.InsertOne(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *MongoStore) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	var rec models.Post
	if err := s.posts.FindOne(ctx, bson.M{"_id": id}).Decode(&rec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (s *MongoStore) ListPosts(ctx context.Context, status models.ModerationStatus) ([]models.Post, error) {
	filter := bson.M{}
	if status != "" {
		filter["moderation_status"] = status
	}
	cur, err := s.posts.Find(ctx, filter, listOptions(status != ""))
	if err != nil {
		return nil, err
	}
	out := make([]models.Post, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) UpdatePost(ctx context.Context, id int64, patch models.PostPatch) (*models.Post, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if patch.ModerationStatus != nil {
		set["moderation_status"] = *patch.ModerationStatus
	}
	if patch.FlagReason != nil {
		set["flag_reason"] = *patch.FlagReason
	}
	update := bson.M{"$set": set, "$inc": bson.M{"version": 1}}

	var rec models.Post
	if err := s.conditionalUpdate(ctx, s.posts, id, patch.ExpectedVersion, update, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *MongoStore) AppendModerationLog(ctx context.Context, entry *models.ModerationLog) (*models.ModerationLog, error) {
	id, err := s.nextID(ctx, seqLog)
	if err != nil {
		return nil, err
	}
	rec := *entry
	rec.ID = id
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if _, err := s.logs.InsertOne(ctx, rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *MongoStore) ListModerationLogs(ctx context.Context) ([]models.ModerationLog, error) {
	cur, err := s.logs.Find(ctx, bson.M{}, listOptions(false))
	if err != nil {
		return nil, err
	}
	out := make([]models.ModerationLog, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	id, err := s.nextID(ctx, seqUser)
	if err != nil {
		return nil, err
	}
	rec := *user
	rec.ID = id
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.UpdatedAt = rec.CreatedAt
	if rec.VerificationStatus == "" {
		rec.VerificationStatus = models.VerificationPending
	}
	if _, err := s.users.InsertOne(ctx, rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *MongoStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var rec models.User
	if err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&rec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (s *MongoStore) ListUsers(ctx context.Context) ([]models.User, error) {
	cur, err := s.users.Find(ctx, bson.M{}, listOptions(false))
	if err != nil {
		return nil, err
	}
	out := make([]models.User, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) GetStats(ctx context.Context) (*models.SystemStats, error) {
	var doc mongoStatsDoc
	if err := s.stats.FindOne(ctx, bson.M{"_id": statsDocID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &doc.SystemStats, nil
}

func (s *MongoStore) InitStats(ctx context.Context, stats models.SystemStats) (*models.SystemStats, error) {
	doc := mongoStatsDoc{ID: statsDocID, SystemStats: stats}
	doc.UpdatedAt = time.Now().UTC()
	_, err := s.stats.ReplaceOne(ctx, bson.M{"_id": statsDocID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return nil, err
	}
	return &doc.SystemStats, nil
}

func (s *MongoStore) updateStats(ctx context.Context, update bson.M) (*models.SystemStats, error) {
	var doc mongoStatsDoc
	err := s.stats.FindOneAndUpdate(ctx, bson.M{"_id": statsDocID}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &doc.SystemStats, nil
}

func (s *MongoStore) PatchStats(ctx context.Context, patch models.StatsPatch) (*models.SystemStats, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if patch.TotalUsers != nil {
		set["total_users"] = *patch.TotalUsers
	}
	if patch.PendingVerifications != nil {
		set["pending_verifications"] = *patch.PendingVerifications
	}
	if patch.ActiveChats != nil {
		set["active_chats"] = *patch.ActiveChats
	}
	if patch.APIRequests != nil {
		set["api_requests"] = *patch.APIRequests
	}
	return s.updateStats(ctx, bson.M{"$set": set})
}

func (s *MongoStore) AdjustStats(ctx context.Context, delta models.StatsDelta) (*models.SystemStats, error) {
	return s.updateStats(ctx, bson.M{
		"$inc": bson.M{
			"total_users":           delta.TotalUsers,
			"pending_verifications": delta.PendingVerifications,
			"active_chats":          delta.ActiveChats,
			"api_requests":          delta.APIRequests,
		},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
}

func (s *MongoStore) EnqueueMirrorTask(ctx context.Context, task *models.MirrorTask) error {
	doc := mongoTaskDoc{
		ID:        task.ID,
		Kind:      task.Kind,
		Key:       task.Key,
		Payload:   []byte(task.Payload),
		Attempts:  task.Attempts,
		LastError: task.LastError,
		CreatedAt: task.CreatedAt,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	_, err := s.tasks.InsertOne(ctx, doc)
	return err
}

func (s *MongoStore) PendingMirrorTasks(ctx context.Context, limit int) ([]models.MirrorTask, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.tasks.Find(ctx, bson.M{"completed_at": bson.M{"$exists": false}}, opts)
	if err != nil {
		return nil, err
	}
	var docs []mongoTaskDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]models.MirrorTask, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.MirrorTask{
			ID:          d.ID,
			Kind:        d.Kind,
			Key:         d.Key,
			Payload:     d.Payload,
			Attempts:    d.Attempts,
			LastError:   d.LastError,
			CreatedAt:   d.CreatedAt,
			CompletedAt: d.CompletedAt,
		})
	}
	return out, nil
}

func (s *MongoStore) CompleteMirrorTask(ctx context.Context, id string) error {
	res, err := s.tasks.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set":   bson.M{"completed_at": time.Now().UTC()},
		"$inc":   bson.M{"attempts": 1},
		"$unset": bson.M{"last_error": ""},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) FailMirrorTask(ctx context.Context, id string, cause error) error {
	update := bson.M{"$inc": bson.M{"attempts": 1}}
	if cause != nil {
		update["$set"] = bson.M{"last_error": cause.Error()}
	}
	res, err := s.tasks.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
