package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/campusbuzz/backend/internal/models"
)

// Config carries the Firebase service account and routing for the mirror.
type Config struct {
	ProjectID       string
	ClientEmail     string
	PrivateKey      string
	PrivateKeyID    string
	ClientID        string
	CredentialsFile string
	DatabaseURL     string
	StorageBucket   string

	// Moderator is written as verifiedBy / moderatedBy when a push does not
	// name the acting admin.
	Moderator string

	// DocumentsBackend is "firebase" (default) or "s3".
	DocumentsBackend string
	S3               S3Config
}

// HasCredentials reports whether a connected mirror can be attempted.
func (c Config) HasCredentials() bool {
	if c.CredentialsFile != "" {
		return true
	}
	return c.PrivateKey != "" && c.ClientEmail != "" && c.ProjectID != ""
}

// ClientOption builds the credentials option. Private keys from the
// environment usually carry escaped newlines.
func (c Config) ClientOption() (option.ClientOption, error) {
	if c.CredentialsFile != "" {
		return option.WithCredentialsFile(c.CredentialsFile), nil
	}
	account := map[string]string{
		"type":                        "service_account",
		"project_id":                  c.ProjectID,
		"private_key_id":              c.PrivateKeyID,
		"private_key":                 strings.ReplaceAll(c.PrivateKey, `\n`, "\n"),
		"client_email":                c.ClientEmail,
		"client_id":                   c.ClientID,
		"auth_uri":                    "https://accounts.google.com/o/oauth2/auth",
		"token_uri":                   "https://oauth2.googleapis.com/token",
		"auth_provider_x509_cert_url": "https://www.googleapis.com/oauth2/v1/certs",
	}
	b, err := json.Marshal(account)
	if err != nil {
		return nil, err
	}
	return option.WithCredentialsJSON(b), nil
}

// New returns a connected FirebaseMirror when credentials are configured and
// initialization succeeds, and a DemoMirror otherwise.
func New(ctx context.Context, cfg Config) Mirror {
	if !cfg.HasCredentials() {
		zap.L().Info("No Firebase credentials found, mirror running in demo mode")
		return NewDemoMirror(cfg.StorageBucket)
	}
	m, err := NewFirebaseMirror(ctx, cfg)
	if err != nil {
		zap.L().Error("Firebase initialization failed, continuing in demo mode", zap.Error(err))
		return NewDemoMirror(cfg.StorageBucket)
	}
	zap.L().Info("Firebase mirror connected",
		zap.String("project_id", cfg.ProjectID),
		zap.String("documents", cfg.DocumentsBackend),
	)
	return m
}

// FirebaseMirror writes to Firestore, reads chats from the Realtime Database
// and stores documents through a DocumentStore.
type FirebaseMirror struct {
	fs        *firestore.Client
	rtdb      *db.Client
	docs      DocumentStore
	moderator string
}

func NewFirebaseMirror(ctx context.Context, cfg Config) (*FirebaseMirror, error) {
	opt, err := cfg.ClientOption()
	if err != nil {
		return nil, fmt.Errorf("firebase credentials: %w", err)
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:     cfg.ProjectID,
		DatabaseURL:   cfg.DatabaseURL,
		StorageBucket: cfg.StorageBucket,
	}, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	fs, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firestore client: %w", err)
	}

	m := &FirebaseMirror{fs: fs, moderator: cfg.Moderator}
	if m.moderator == "" {
		m.moderator = "admin"
	}

	if cfg.DatabaseURL != "" {
		rtdb, err := app.Database(ctx)
		if err != nil {
			return nil, fmt.Errorf("error getting realtime database client: %w", err)
		}
		m.rtdb = rtdb
	}

	switch cfg.DocumentsBackend {
	case "s3":
		m.docs, err = NewS3Documents(ctx, cfg.S3)
	default:
		m.docs, err = NewFirebaseDocuments(ctx, app, cfg.StorageBucket)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Close releases the Firestore connection.
func (m *FirebaseMirror) Close() error {
	return m.fs.Close()
}

func (m *FirebaseMirror) Mode() Mode { return ModeConnected }

func (m *FirebaseMirror) Ping(ctx context.Context) error {
	_, err := m.fs.Collections(ctx).Next()
	if err != nil && !errors.Is(err, iterator.Done) {
		return fail("ping", err)
	}
	return nil
}

// actor falls back to the configured moderator for tasks queued before the
// acting admin was recorded.
func (m *FirebaseMirror) actor(id string) string {
	if id != "" {
		return id
	}
	return m.moderator
}

func (m *FirebaseMirror) PushVerification(ctx context.Context, key string, push models.VerificationPush) error {
	now := time.Now().UTC()
	_, err := m.fs.Collection("verifications").Doc(key).Set(ctx, map[string]interface{}{
		"email":      push.Email,
		"status":     string(push.Status),
		"notes":      push.Notes,
		"verifiedAt": now,
		"verifiedBy": m.actor(push.ReviewedBy),
	})
	if err != nil {
		return fail("verification", err)
	}

	_, err = m.fs.Collection("users").Doc(key).Update(ctx, []firestore.Update{
		{Path: "verified", Value: push.Status == models.VerificationApproved},
		{Path: "verificationStatus", Value: string(push.Status)},
		{Path: "updatedAt", Value: now},
	})
	if err != nil {
		return fail("verification user update", err)
	}
	return nil
}

func (m *FirebaseMirror) PushModeration(ctx context.Context, postID string, push models.ModerationPush) error {
	now := time.Now().UTC()
	_, err := m.fs.Collection("posts").Doc(postID).Update(ctx, []firestore.Update{
		{Path: "moderationStatus", Value: string(push.Action.Outcome())},
		{Path: "moderatedAt", Value: now},
		{Path: "moderatedBy", Value: m.actor(push.ModeratorID)},
		{Path: "moderationReason", Value: push.Reason},
	})
	if err != nil {
		return fail("moderation", err)
	}

	_, _, err = m.fs.Collection("moderationLogs").Add(ctx, map[string]interface{}{
		"postId":      postID,
		"action":      string(push.Action),
		"reason":      push.Reason,
		"moderatorId": m.actor(push.ModeratorID),
		"createdAt":   now,
	})
	if err != nil {
		return fail("moderation log", err)
	}
	return nil
}

func (m *FirebaseMirror) UploadDocument(ctx context.Context, userID string, data []byte, filename, contentType string) (string, error) {
	url, err := m.docs.Put(ctx, documentPath(userID, filename), data, contentType)
	if err != nil {
		return "", fail("upload", err)
	}

	_, err = m.fs.Collection("users").Doc(userID).Update(ctx, []firestore.Update{
		{Path: "idUploaded", Value: true},
		{Path: "idUrl", Value: url},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
	if err != nil {
		return "", fail("upload user update", err)
	}
	return url, nil
}

func (m *FirebaseMirror) ReadChat(ctx context.Context, chatID string) (*models.ChatData, error) {
	if m.rtdb == nil {
		return models.EmptyChat(), fail("chat", errors.New("realtime database not configured"))
	}
	var raw interface{}
	if err := m.rtdb.NewRef("chats/"+chatID).Get(ctx, &raw); err != nil {
		return models.EmptyChat(), fail("chat", err)
	}
	return decodeChat(raw), nil
}

func (m *FirebaseMirror) PushStats(ctx context.Context, stats models.SystemStats) error {
	_, err := m.fs.Collection("systemStats").Doc("current").Set(ctx, map[string]interface{}{
		"totalUsers":           stats.TotalUsers,
		"pendingVerifications": stats.PendingVerifications,
		"activeChats":          stats.ActiveChats,
		"apiRequests":          stats.APIRequests,
		"updatedAt":            time.Now().UTC(),
	})
	if err != nil {
		return fail("stats", err)
	}
	return nil
}
