package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/matching"
	"github.com/kozaktomas/face-attendance/internal/session"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
)

func (s *Server) setupRoutes(
	repo Repository,
	engine *matching.Engine,
	trainer *session.Trainer,
	sessions *session.Manager,
	marker *attendance.Marker,
) {
	recognizeHandler := handlers.NewRecognizeHandler(s.config, engine)
	trainHandler := handlers.NewTrainHandler(trainer, s.jobManager)
	sessionsHandler := handlers.NewSessionsHandler(sessions)
	attendanceHandler := handlers.NewAttendanceHandler(repo, marker)
	rosterHandler := handlers.NewRosterHandler(repo, repo)
	studentsHandler := handlers.NewStudentsHandler(repo, repo, s.config.Gallery.SamplesDir)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// One-shot recognition
		r.Post("/recognize", recognizeHandler.Recognize)

		// Training (long-running operations)
		r.Post("/train", trainHandler.Start)
		r.Get("/train", trainHandler.List)
		r.Get("/train/{jobId}", trainHandler.Status)
		r.Get("/train/{jobId}/events", trainHandler.Events)

		// Live sessions
		r.Post("/sessions", sessionsHandler.Start)
		r.Get("/sessions", sessionsHandler.List)
		r.Get("/sessions/{sessionId}", sessionsHandler.Get)
		r.Post("/sessions/{sessionId}/frames", sessionsHandler.PushFrame)
		r.Delete("/sessions/{sessionId}", sessionsHandler.Stop)
		r.Get("/sessions/{sessionId}/events", sessionsHandler.Events)

		// Attendance
		r.Get("/attendance", attendanceHandler.List)
		r.Delete("/attendance", attendanceHandler.ResetAll)

		// Roster administration
		r.Post("/tenants", rosterHandler.CreateTenant)
		r.Get("/tenants", rosterHandler.ListTenants)
		r.Post("/classes", rosterHandler.CreateClass)
		r.Get("/classes", rosterHandler.ListClasses)

		// Students
		r.Post("/students", studentsHandler.Create)
		r.Get("/students", studentsHandler.List)
		r.Get("/students/{studentId}", studentsHandler.Get)
		r.Delete("/students/{studentId}", studentsHandler.Deactivate)
		r.Post("/students/{studentId}/samples", studentsHandler.AddSample)
	})
}
