package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrCaptchaFailed is returned when a token is missing or rejected by Google.
var ErrCaptchaFailed = errors.New("reCAPTCHA verification failed")

// RecaptchaVerifier checks reCAPTCHA v2 tokens sent with student submissions.
type RecaptchaVerifier struct {
	Secret     string
	HTTPClient *http.Client
	Endpoint   string
}

type recaptchaVerifyResponse struct {
	Success    bool      `json:"success"`
	ChallengeT time.Time `json:"challenge_ts"`
	Hostname   string    `json:"hostname"`
	ErrorCodes []string  `json:"error-codes"`
}

func NewRecaptchaVerifier(secret string) *RecaptchaVerifier {
	return &RecaptchaVerifier{
		Secret:   secret,
		Endpoint: "https://www.google.com/recaptcha/api/siteverify",
		HTTPClient: &http.Client{
			Timeout: 8 * time.Second,
		},
	}
}

// Verify returns nil for an accepted token. Rejections wrap ErrCaptchaFailed
// with Google's error codes; transport failures are returned as they are.
func (v *RecaptchaVerifier) Verify(ctx context.Context, token string, remoteIP string) error {
	tok := strings.TrimSpace(token)
	if tok == "" {
		return fmt.Errorf("%w: missing_token", ErrCaptchaFailed)
	}

	form := url.Values{}
	form.Set("secret", v.Secret)
	form.Set("response", tok)
	if ip := strings.TrimSpace(remoteIP); ip != "" {
		form.Set("remoteip", ip)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := v.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 8 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("recaptcha verify: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("recaptcha verify http %d", resp.StatusCode)
	}

	var out recaptchaVerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("recaptcha verify: %w", err)
	}
	if out.Success {
		return nil
	}
	reason := "verification_failed"
	if len(out.ErrorCodes) > 0 {
		reason = strings.Join(out.ErrorCodes, ",")
	}
	return fmt.Errorf("%w: %s", ErrCaptchaFailed, reason)
}
