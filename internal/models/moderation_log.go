package models

import "time"

// LogAction names an audited admin action.
type LogAction string

const (
	LogApprove            LogAction = "approve"
	LogReject             LogAction = "reject"
	LogApprovePost        LogAction = "approve_post"
	LogFlagPost           LogAction = "flag_post"
	LogVerifyStudent      LogAction = "verify_student"
	LogRejectVerification LogAction = "reject_verification"
)

// CustomLogAction wraps a free-text action for entries that predate the
// known set (imported or seeded history).
func CustomLogAction(s string) LogAction { return LogAction(s) }

// ModerationLog is an append-only audit entry. PostID is nil for actions
// that are not post-scoped, such as verify_student.
type ModerationLog struct {
	ID          int64     `json:"id" bson:"_id"`
	PostID      *int64    `json:"postId" bson:"post_id,omitempty"`
	Action      LogAction `json:"action" bson:"action"`
	ModeratorID string    `json:"moderatorId" bson:"moderator_id"`
	Reason      *string   `json:"reason" bson:"reason,omitempty"`
	CreatedAt   time.Time `json:"createdAt" bson:"created_at"`
}
