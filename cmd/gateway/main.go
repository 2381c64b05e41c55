package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	api "github.com/mrich-apps/assessment-backend/internal/api/http"
	"github.com/mrich-apps/assessment-backend/internal/auth"
	authmw "github.com/mrich-apps/assessment-backend/internal/auth/middleware"
	"github.com/mrich-apps/assessment-backend/internal/config"
	"github.com/mrich-apps/assessment-backend/internal/db"
	"github.com/mrich-apps/assessment-backend/internal/exam"
	"github.com/mrich-apps/assessment-backend/internal/ratelimit"
	"github.com/mrich-apps/assessment-backend/internal/rbac"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	store := exam.NewSQLStore(dbh, cfg.DBDriver)
	svc := exam.NewService(store)

	// --- Auth ---
	authSvc := authmw.NewAuthService(cfg.SessionSecret)
	admins := auth.NewAllowlist(cfg.AdminEmails)

	// --- Rate limiter for the submission endpoint ---
	var limiter ratelimit.Limiter = ratelimit.NewFixedWindow(cfg.RateLimit, cfg.RateWindow)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		limiter = ratelimit.NewRedisWindow(rdb, cfg.RateLimit, cfg.RateWindow)
	}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "x-admin-password"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Identity provider
	r.Get("/api/auth/google/login", auth.GoogleLoginHandler(cfg))
	r.Get("/api/auth/google/callback", auth.GoogleCallbackHandler(authSvc, store, admins, cfg))

	// Session-protected surface
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.Authenticate(authSvc))

		pr.With(rbac.Require("exam:state")).
			Get("/api/exam/state", api.ExamStateHandler(svc))
		pr.With(rbac.Require("exam:submit"), ratelimit.Middleware(limiter)).
			Post("/api/exam/submit", api.SubmitHandler(svc))

		pr.With(rbac.Require("admin:attempts")).
			Get("/api/admin/attempts", api.AdminAttemptsHandler(svc))
		pr.With(rbac.Require("admin:states")).
			Get("/api/admin/exam-states", api.AdminExamStatesHandler(svc))
		pr.With(rbac.Require("admin:unlock")).
			Post("/api/admin/unlock", api.AdminUnlockHandler(svc))
	})

	// Shared-secret export surface (no session)
	r.Get("/api/admin/export", api.AdminExportHandler(svc, cfg.AdminPassHash))
	r.Get("/api/admin/responses", api.AdminResponsesHandler(svc, cfg.AdminPassHash))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (db=%s)", cfg.HTTPAddr, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
