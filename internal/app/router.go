package app

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"schoolexams/internal/app/observability"
	"schoolexams/internal/auth"
	"schoolexams/internal/freeexam"
	"schoolexams/internal/report"
)

func NewRouter(cfg Config, db *sql.DB) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	collector := observability.NewCollector(db)
	r.Use(collector.Middleware)

	authSvc := auth.NewService(db, auth.ServiceConfig{
		SessionTTL: cfg.SessionTTL,
		BcryptCost: cfg.BcryptCost,
	})
	authHandler := auth.NewHandler(authSvc)

	examSvc := freeexam.NewService(db)
	examHandler := freeexam.NewHandler(examSvc)

	reportSvc := report.NewService(db)
	reportHandler := report.NewHandler(reportSvc)

	loginLimiter := NewIPRateLimiter(cfg.AuthRateLimitPerMin, time.Minute)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Get("/metrics", collector.MetricsHandler)

	r.Route("/api/v1", func(api chi.Router) {
		api.Group(func(login chi.Router) {
			login.Use(RateLimitMiddleware(loginLimiter))
			login.Post("/auth/login", authHandler.Login)
		})

		api.Group(func(secure chi.Router) {
			secure.Use(authHandler.RequireAuth)
			secure.Get("/auth/me", authHandler.Me)
			secure.Post("/auth/logout", authHandler.Logout)

			secure.Group(func(admin chi.Router) {
				admin.Use(authHandler.RequireRoles(auth.RoleAdmin))
				admin.Post("/admin/users", authHandler.CreateUser)
				admin.Get("/admin/users", authHandler.ListUsers)
			})

			secure.Route("/free-exams", func(exams chi.Router) {
				exams.With(authHandler.RequireRoles(auth.RoleTeacher, auth.RoleSchoolDirector)).Post("/", examHandler.Create)
				exams.With(authHandler.RequireRoles(auth.RoleTeacher, auth.RoleSchoolDirector)).Get("/", examHandler.ListMine)
				exams.With(authHandler.RequireRoles(auth.RoleSchoolDirector, auth.RoleAdmin)).Get("/all", examHandler.ListAll)
				exams.With(authHandler.RequireRoles(auth.RoleStudent)).Get("/available", examHandler.ListAvailable)
				exams.With(authHandler.RequireRoles(auth.RoleStudent)).Get("/attempts", examHandler.ListAttempts)

				exams.Get("/{id}", examHandler.Get)
				exams.With(authHandler.RequireRoles(auth.RoleTeacher, auth.RoleSchoolDirector)).Patch("/{id}/questions/{questionID}", examHandler.UpdateQuestion)
				exams.With(authHandler.RequireRoles(auth.RoleSchoolDirector)).Post("/{id}/approve", examHandler.Approve)
				exams.With(authHandler.RequireRoles(auth.RoleSchoolDirector)).Post("/{id}/reject", examHandler.Reject)
				exams.With(authHandler.RequireRoles(auth.RoleStudent)).Post("/{id}/submit", examHandler.Submit)
			})

			secure.Group(func(reports chi.Router) {
				reports.Use(authHandler.RequireRoles(auth.RoleSchoolDirector, auth.RoleAdmin))
				reports.Get("/reports/exams/{id}", reportHandler.ExamResults)
				reports.Get("/reports/exams/{id}/export", reportHandler.ExportExamResults)
			})
		})
	})

	return r
}
