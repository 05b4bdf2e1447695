package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRecaptchaVerifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("secret") != "s3cret" {
			t.Errorf("secret not sent")
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.PostForm.Get("response") {
		case "good":
			w.Write([]byte(`{"success":true,"hostname":"campusbuzz.app"}`))
		case "down":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response"]}`))
		}
	}))
	defer srv.Close()

	v := NewRecaptchaVerifier("s3cret")
	v.Endpoint = srv.URL
	ctx := context.Background()

	if err := v.Verify(ctx, "good", "10.0.0.1"); err != nil {
		t.Fatalf("good token: %v", err)
	}
	if err := v.Verify(ctx, "bad", ""); !errors.Is(err, ErrCaptchaFailed) {
		t.Fatalf("bad token: expected ErrCaptchaFailed, got %v", err)
	}
	if err := v.Verify(ctx, "  ", ""); !errors.Is(err, ErrCaptchaFailed) {
		t.Fatalf("empty token: expected ErrCaptchaFailed, got %v", err)
	}
	err := v.Verify(ctx, "down", "")
	if err == nil || errors.Is(err, ErrCaptchaFailed) {
		t.Fatalf("outage should be a transport error, got %v", err)
	}
}
