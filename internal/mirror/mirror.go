// Package mirror writes lifecycle outcomes to the external Firebase directory.
// The mirror is a best-effort copy of the local store and is never read back.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campusbuzz/backend/internal/models"
)

// Mode tells whether pushes reach a real backend.
type Mode string

const (
	ModeConnected Mode = "connected"
	ModeDemo      Mode = "demo"
)

// ErrMirror matches every *Failure through errors.Is.
var ErrMirror = errors.New("mirror failure")

// Failure wraps a provider error with the operation that produced it.
type Failure struct {
	Op  string
	Err error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("mirror %s: %v", f.Op, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

func (f *Failure) Is(target error) bool { return target == ErrMirror }

func fail(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Failure{Op: op, Err: err}
}

// Mirror is implemented by FirebaseMirror and DemoMirror.
type Mirror interface {
	Mode() Mode
	Ping(ctx context.Context) error
	PushVerification(ctx context.Context, key string, push models.VerificationPush) error
	PushModeration(ctx context.Context, postID string, push models.ModerationPush) error
	UploadDocument(ctx context.Context, userID string, data []byte, filename, contentType string) (string, error)
	ReadChat(ctx context.Context, chatID string) (*models.ChatData, error)
	PushStats(ctx context.Context, stats models.SystemStats) error
}

// DocumentStore holds uploaded ID documents. Put returns a time-limited read URL.
type DocumentStore interface {
	Put(ctx context.Context, objectPath string, data []byte, contentType string) (string, error)
}

// DocumentURLTTL is how long a signed document URL stays valid.
const DocumentURLTTL = 7 * 24 * time.Hour

func documentPath(userID, filename string) string {
	return fmt.Sprintf("id-documents/%s/%s", userID, filename)
}
