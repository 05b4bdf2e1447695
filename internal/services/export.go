package services

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/campusbuzz/backend/internal/storage"
)

var (
	ErrInvalidExportType   = errors.New("Invalid export type. Must be one of verifications, posts, moderation-logs, users")
	ErrInvalidExportFormat = errors.New("Invalid export format. Must be 'csv' or 'json'")
)

type ExportKind string

const (
	ExportVerifications  ExportKind = "verifications"
	ExportPosts          ExportKind = "posts"
	ExportModerationLogs ExportKind = "moderation-logs"
	ExportUsers          ExportKind = "users"
)

type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

func ParseExportKind(s string) (ExportKind, error) {
	switch k := ExportKind(s); k {
	case ExportVerifications, ExportPosts, ExportModerationLogs, ExportUsers:
		return k, nil
	}
	return "", ErrInvalidExportType
}

// ParseExportFormat defaults to csv.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(s)); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatJSON:
		return f, nil
	}
	return "", ErrInvalidExportFormat
}

// ContentType is the response media type for the format.
func (f ExportFormat) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/csv"
}

// ExportService dumps collections for offline review.
type ExportService struct {
	store storage.Store
}

func NewExportService(store storage.Store) *ExportService {
	return &ExportService{store: store}
}

// Export writes every record of kind to w, newest first.
func (s *ExportService) Export(ctx context.Context, w io.Writer, kind ExportKind, format ExportFormat) error {
	header, rows, data, err := s.collect(ctx, kind)
	if err != nil {
		return err
	}
	if format == FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func (s *ExportService) collect(ctx context.Context, kind ExportKind) ([]string, [][]string, interface{}, error) {
	switch kind {
	case ExportVerifications:
		list, err := s.store.ListVerifications(ctx, "")
		if err != nil {
			return nil, nil, nil, fmt.Errorf("list verifications: %w", err)
		}
		rows := make([][]string, 0, len(list))
		for _, v := range list {
			rows = append(rows, []string{
				strconv.FormatInt(v.ID, 10), optInt(v.UserID), v.Email, v.FullName, v.College,
				string(v.Status), optString(v.ReviewedBy), optTime(v.ReviewedAt), optString(v.Notes),
				v.CreatedAt.Format(time.RFC3339),
			})
		}
		return []string{"id", "userId", "email", "fullName", "college", "status", "reviewedBy", "reviewedAt", "notes", "createdAt"}, rows, list, nil

	case ExportPosts:
		list, err := s.store.ListPosts(ctx, "")
		if err != nil {
			return nil, nil, nil, fmt.Errorf("list posts: %w", err)
		}
		rows := make([][]string, 0, len(list))
		for _, p := range list {
			rows = append(rows, []string{
				strconv.FormatInt(p.ID, 10), optInt(p.UserID), p.Content, string(p.ModerationStatus),
				strings.Join(p.FlaggedBy, ";"), optString(p.FlagReason), string(p.Priority),
				p.CreatedAt.Format(time.RFC3339), p.UpdatedAt.Format(time.RFC3339),
			})
		}
		return []string{"id", "userId", "content", "moderationStatus", "flaggedBy", "flagReason", "priority", "createdAt", "updatedAt"}, rows, list, nil

	case ExportModerationLogs:
		list, err := s.store.ListModerationLogs(ctx)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("list moderation logs: %w", err)
		}
		rows := make([][]string, 0, len(list))
		for _, l := range list {
			rows = append(rows, []string{
				strconv.FormatInt(l.ID, 10), optInt(l.PostID), string(l.Action), l.ModeratorID,
				optString(l.Reason), l.CreatedAt.Format(time.RFC3339),
			})
		}
		return []string{"id", "postId", "action", "moderatorId", "reason", "createdAt"}, rows, list, nil

	case ExportUsers:
		list, err := s.store.ListUsers(ctx)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("list users: %w", err)
		}
		rows := make([][]string, 0, len(list))
		for _, u := range list {
			rows = append(rows, []string{
				strconv.FormatInt(u.ID, 10), u.Email, u.Username, u.FullName, u.College,
				strconv.FormatBool(u.Verified), string(u.VerificationStatus),
				strconv.FormatBool(u.IDUploaded), optString(u.IDURL), u.CreatedAt.Format(time.RFC3339),
			})
		}
		return []string{"id", "email", "username", "fullName", "college", "verified", "verificationStatus", "idUploaded", "idUrl", "createdAt"}, rows, list, nil
	}
	return nil, nil, nil, ErrInvalidExportType
}

func optInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func optString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func optTime(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.Format(time.RFC3339)
}
