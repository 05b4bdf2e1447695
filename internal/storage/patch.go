package storage

import (
	"sort"
	"time"

	"github.com/campusbuzz/backend/internal/models"
)

func applyVerificationPatch(v *models.VerificationRequest, p models.VerificationPatch) {
	if p.Status != nil {
		v.Status = *p.Status
	}
	if p.ReviewedBy != nil {
		v.ReviewedBy = p.ReviewedBy
	}
	if p.ReviewedAt != nil {
		v.ReviewedAt = p.ReviewedAt
	}
	if p.Notes != nil {
		v.Notes = p.Notes
	}
	v.Version++
}

func applyPostPatch(post *models.Post, p models.PostPatch, now time.Time) {
	if p.ModerationStatus != nil {
		post.ModerationStatus = *p.ModerationStatus
	}
	if p.FlagReason != nil {
		post.FlagReason = p.FlagReason
	}
	post.UpdatedAt = now
	post.Version++
}

func applyStatsPatch(s *models.SystemStats, p models.StatsPatch, now time.Time) {
	if p.TotalUsers != nil {
		s.TotalUsers = *p.TotalUsers
	}
	if p.PendingVerifications != nil {
		s.PendingVerifications = *p.PendingVerifications
	}
	if p.ActiveChats != nil {
		s.ActiveChats = *p.ActiveChats
	}
	if p.APIRequests != nil {
		s.APIRequests = *p.APIRequests
	}
	s.UpdatedAt = now
}

func applyStatsDelta(s *models.SystemStats, d models.StatsDelta, now time.Time) {
	s.TotalUsers += d.TotalUsers
	s.PendingVerifications += d.PendingVerifications
	s.ActiveChats += d.ActiveChats
	s.APIRequests += d.APIRequests
	s.UpdatedAt = now
}

func versionMatches(expected *int64, current int64) bool {
	return expected == nil || *expected == current
}

func sortVerificationsNewestFirst(list []models.VerificationRequest) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
}

func sortPostsNewestFirst(list []models.Post) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
}

func sortLogsNewestFirst(list []models.ModerationLog) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
}

func sortUsersNewestFirst(list []models.User) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
}

func clonePost(p *models.Post) *models.Post {
	c := *p
	if p.FlaggedBy != nil {
		c.FlaggedBy = append([]string(nil), p.FlaggedBy...)
	}
	return &c
}
