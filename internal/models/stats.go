package models

import "time"

// SystemStats is the dashboard counter cache. It is seeded once and nudged by
// callers; it is never recomputed from the underlying collections.
type SystemStats struct {
	TotalUsers           int64     `json:"totalUsers" bson:"total_users"`
	PendingVerifications int64     `json:"pendingVerifications" bson:"pending_verifications"`
	ActiveChats          int64     `json:"activeChats" bson:"active_chats"`
	APIRequests          int64     `json:"apiRequests" bson:"api_requests"`
	UpdatedAt            time.Time `json:"updatedAt" bson:"updated_at"`
}

// StatsPatch overwrites the given counters.
type StatsPatch struct {
	TotalUsers           *int64 `json:"totalUsers,omitempty"`
	PendingVerifications *int64 `json:"pendingVerifications,omitempty"`
	ActiveChats          *int64 `json:"activeChats,omitempty"`
	APIRequests          *int64 `json:"apiRequests,omitempty"`
}

// Empty reports whether the patch sets nothing.
func (p StatsPatch) Empty() bool {
	return p.TotalUsers == nil && p.PendingVerifications == nil && p.ActiveChats == nil && p.APIRequests == nil
}

// StatsDelta adds to the counters atomically.
type StatsDelta struct {
	TotalUsers           int64
	PendingVerifications int64
	ActiveChats          int64
	APIRequests          int64
}

