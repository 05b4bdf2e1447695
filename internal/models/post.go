package models

import "time"

// ModerationStatus is the moderation state of a post. Flagged is a sub-state
// of pending that is entered by user or automated reports.
type ModerationStatus string

const (
	ModerationPending  ModerationStatus = "pending"
	ModerationApproved ModerationStatus = "approved"
	ModerationRejected ModerationStatus = "rejected"
	ModerationFlagged  ModerationStatus = "flagged"
)

func (s ModerationStatus) Valid() bool {
	switch s {
	case ModerationPending, ModerationApproved, ModerationRejected, ModerationFlagged:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ModerationAction is what an admin does to a post.
type ModerationAction string

const (
	ActionApprove ModerationAction = "approve"
	ActionReject  ModerationAction = "reject"
)

func (a ModerationAction) Valid() bool {
	return a == ActionApprove || a == ActionReject
}

// LogAction is the audit entry written for the action.
func (a ModerationAction) LogAction() LogAction {
	if a == ActionApprove {
		return LogApprove
	}
	return LogReject
}

// Outcome maps the action to the resulting moderation status.
func (a ModerationAction) Outcome() ModerationStatus {
	if a == ActionApprove {
		return ModerationApproved
	}
	return ModerationRejected
}

type Post struct {
	ID               int64            `json:"id" bson:"_id"`
	UserID           *int64           `json:"userId" bson:"user_id,omitempty"`
	Content          string           `json:"content" bson:"content"`
	ModerationStatus ModerationStatus `json:"moderationStatus" bson:"moderation_status"`
	FlaggedBy        []string         `json:"flaggedBy" bson:"flagged_by"`
	FlagReason       *string          `json:"flagReason" bson:"flag_reason,omitempty"`
	Priority         Priority         `json:"priority" bson:"priority"`
	CreatedAt        time.Time        `json:"createdAt" bson:"created_at"`
	UpdatedAt        time.Time        `json:"updatedAt" bson:"updated_at"`
	Version          int64            `json:"version" bson:"version"`
}

// PostPatch is a merge-patch for posts; UpdatedAt is always bumped by the store.
type PostPatch struct {
	ModerationStatus *ModerationStatus
	FlagReason       *string

	ExpectedVersion *int64
}

// ModeratePostRequest is the body of PUT /api/posts/{id}/moderate.
type ModeratePostRequest struct {
	Action  ModerationAction `json:"action"`
	Reason  *string          `json:"reason"`
	Version *int64           `json:"version"`
}

// ModerationResult echoes the applied action alongside the updated post.
type ModerationResult struct {
	Post   *Post            `json:"post"`
	Action ModerationAction `json:"action"`
}
