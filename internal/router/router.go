package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/campusbuzz/backend/internal/handlers"
	appMiddleware "github.com/campusbuzz/backend/internal/middleware"
	"github.com/campusbuzz/backend/internal/mirror"
	"github.com/campusbuzz/backend/internal/services"
)

type Deps struct {
	Lifecycle *services.LifecycleService
	Stats     *services.StatsService
	Export    *services.ExportService
	Replayer  *services.MirrorReplayer
	Mirror    mirror.Mirror

	StoreDriver     string
	AdminIdentity   string
	MaxUploadSizeMB int64

	// RateLimiter is optional; nil serves without limits.
	RateLimiter *appMiddleware.RateLimiter
	// Captcha, when set, guards the student-facing submissions.
	Captcha appMiddleware.CaptchaVerifier
}

func New(d Deps) http.Handler {
	verificationHandler := handlers.NewVerificationHandler(d.Lifecycle)
	postHandler := handlers.NewPostHandler(d.Lifecycle)
	uploadHandler := handlers.NewUploadHandler(d.Lifecycle, d.MaxUploadSizeMB)
	chatHandler := handlers.NewChatHandler(d.Lifecycle)
	userHandler := handlers.NewUserHandler(d.Lifecycle)
	statsHandler := handlers.NewStatsHandler(d.Stats)
	exportHandler := handlers.NewExportHandler(d.Export)
	mirrorHandler := handlers.NewMirrorHandler(d.Replayer)
	healthHandler := handlers.NewHealthHandler(d.Mirror, d.StoreDriver)

	student := func(h http.HandlerFunc) http.Handler { return h }
	if d.Captcha != nil {
		guard := appMiddleware.RequireCaptcha(d.Captcha, services.ErrCaptchaFailed)
		student = func(h http.HandlerFunc) http.Handler { return guard(h) }
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(appMiddleware.AdminIdentity(d.AdminIdentity))
	r.Use(appMiddleware.RequestLogger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", appMiddleware.AdminHeader, appMiddleware.CaptchaHeader},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if d.RateLimiter != nil {
		r.Use(d.RateLimiter.Handler)
	}

	r.Get("/health", healthHandler.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.Health)

		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.CountRequests(func(req *http.Request) {
				ctx, cancel := context.WithTimeout(context.WithoutCancel(req.Context()), time.Second)
				defer cancel()
				d.Stats.RecordAPIRequest(ctx)
			}))

			r.Post("/validate-email", verificationHandler.ValidateEmail)
			r.Method(http.MethodPost, "/verify-student", student(verificationHandler.Submit))

			r.Route("/verifications", func(r chi.Router) {
				r.Get("/pending", verificationHandler.ListPending)
				r.Post("/bulk-action", verificationHandler.BulkAction)
				r.Put("/{id}", verificationHandler.Review)
			})

			r.Get("/posts/flagged", postHandler.ListFlagged)
			r.Put("/posts/{id}/moderate", postHandler.Moderate)
			r.Get("/moderation-logs", postHandler.ListModerationLogs)

			r.Method(http.MethodPost, "/upload-id", student(uploadHandler.UploadIDDocument))
			r.Get("/chats/{chatId}", chatHandler.Get)

			r.Get("/stats", statsHandler.Get)
			r.Patch("/stats", statsHandler.Patch)
			r.Post("/test-firebase-connection", statsHandler.TestMirrorConnection)

			r.Get("/users", userHandler.List)
			r.Get("/users/{id}", userHandler.Get)

			r.Get("/export/{type}", exportHandler.Export)
			r.Post("/mirror/replay", mirrorHandler.Replay)
		})
	})

	return r
}
