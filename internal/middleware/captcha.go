package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/campusbuzz/backend/internal/models"
)

const CaptchaHeader = "X-Recaptcha-Token"

// CaptchaVerifier returns an error wrapping rejected for a refused token.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// RequireCaptcha guards student-facing submissions. A refused token is a 403;
// an unreachable verifier is a 503.
func RequireCaptcha(v CaptchaVerifier, rejected error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := v.Verify(r.Context(), r.Header.Get(CaptchaHeader), clientIP(r))
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			if errors.Is(err, rejected) {
				zap.L().Info("Captcha rejected", zap.String("path", r.URL.Path), zap.Error(err))
				w.WriteHeader(http.StatusForbidden)
				json.NewEncoder(w).Encode(models.NewErrorResponse(rejected.Error()))
				return
			}
			zap.L().Error("Captcha verification unavailable", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(models.NewErrorResponse("Captcha verification unavailable"))
		})
	}
}
