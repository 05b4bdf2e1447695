package models

import (
	"encoding/json"
	"time"
)

// MirrorTaskKind selects the mirror operation a queued task replays.
type MirrorTaskKind string

const (
	MirrorTaskVerification MirrorTaskKind = "verification"
	MirrorTaskModeration   MirrorTaskKind = "moderation"
	MirrorTaskStats        MirrorTaskKind = "stats"
)

// MirrorTask is an outbox entry for a mirror push that failed and is waiting
// for replay.
type MirrorTask struct {
	ID          string          `json:"id" bson:"_id"`
	Kind        MirrorTaskKind  `json:"kind" bson:"kind"`
	Key         string          `json:"key" bson:"key"`
	Payload     json.RawMessage `json:"payload" bson:"payload"`
	Attempts    int             `json:"attempts" bson:"attempts"`
	LastError   string          `json:"lastError,omitempty" bson:"last_error,omitempty"`
	CreatedAt   time.Time       `json:"createdAt" bson:"created_at"`
	CompletedAt *time.Time      `json:"completedAt,omitempty" bson:"completed_at,omitempty"`
}

// VerificationPush is the payload of a verification mirror task.
type VerificationPush struct {
	Email      string             `json:"email"`
	Status     VerificationStatus `json:"status"`
	Notes      string             `json:"notes"`
	ReviewedBy string             `json:"reviewedBy,omitempty"`
}

// ModerationPush is the payload of a moderation mirror task.
type ModerationPush struct {
	Action      ModerationAction `json:"action"`
	Reason      string           `json:"reason"`
	ModeratorID string           `json:"moderatorId,omitempty"`
}
