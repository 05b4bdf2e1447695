package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/campusbuzz/backend/internal/models"
)

// Notifier tells a student about the outcome of their verification request.
type Notifier interface {
	NotifyDecision(ctx context.Context, req *models.VerificationRequest) error
}

type SendGridMailer struct {
	APIKey     string
	FromEmail  string
	HTTPClient *http.Client
	Endpoint   string
}

func NewSendGridMailer(apiKey string, fromEmail string) *SendGridMailer {
	return &SendGridMailer{
		APIKey:    strings.TrimSpace(apiKey),
		FromEmail: strings.TrimSpace(fromEmail),
		Endpoint:  "https://api.sendgrid.com/v3/mail/send",
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type sendGridEmailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridPersonalization struct {
	To         []sendGridEmailAddress `json:"to"`
	Subject    string                 `json:"subject"`
	CustomArgs map[string]string      `json:"custom_args,omitempty"`
}

type sendGridMailSendRequest struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridEmailAddress      `json:"from"`
	Content          []sendGridContent         `json:"content"`
}

func decisionBody(req *models.VerificationRequest) (string, string) {
	var subject, outcome string
	if req.Status == models.VerificationApproved {
		subject = "Your CampusBuzz student verification was approved"
		outcome = "Your student status has been verified. You now have full access to CampusBuzz."
	} else {
		subject = "Your CampusBuzz student verification was not approved"
		outcome = "We could not verify your student status with the information provided."
	}

	plain := fmt.Sprintf("Hi %s,\n\n%s\n", strings.TrimSpace(req.FullName), outcome)
	if req.Notes != nil && strings.TrimSpace(*req.Notes) != "" {
		plain += fmt.Sprintf("\nReviewer notes:\n%s\n", strings.TrimSpace(*req.Notes))
	}
	plain += "\nThe CampusBuzz team\n"
	return subject, plain
}

// NotifyDecision emails the reviewed student. Pending requests are ignored.
func (m *SendGridMailer) NotifyDecision(ctx context.Context, req *models.VerificationRequest) error {
	if m == nil {
		return fmt.Errorf("sendgrid mailer not configured")
	}
	if m.APIKey == "" {
		return fmt.Errorf("missing SENDGRID_API_KEY")
	}
	if m.FromEmail == "" {
		return fmt.Errorf("missing SENDGRID_FROM_EMAIL")
	}
	if !req.Status.IsReviewOutcome() {
		return nil
	}

	subject, plain := decisionBody(req)
	reqBody := sendGridMailSendRequest{
		Personalizations: []sendGridPersonalization{
			{
				To:      []sendGridEmailAddress{{Email: req.Email, Name: strings.TrimSpace(req.FullName)}},
				Subject: subject,
				CustomArgs: map[string]string{
					"verification_id": fmt.Sprint(req.ID),
					"status":          string(req.Status),
				},
			},
		},
		From: sendGridEmailAddress{
			Email: m.FromEmail,
			Name:  "CampusBuzz Admin",
		},
		Content: []sendGridContent{
			{Type: "text/plain", Value: plain},
		},
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Authorization", "Bearer "+m.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	client := m.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// SendGrid returns 202 Accepted on success.
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("sendgrid mail send http %d", resp.StatusCode)
	}
	return nil
}
