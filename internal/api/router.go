package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"educrm.io/ai-agent/internal/logger"
)

func NewRouter(apiHandler *APIHandler, log *logger.Logger, corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", apiHandler.HealthHandler)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", apiHandler.RegisterHandler)
		r.Post("/login", apiHandler.LoginHandler)
	})

	// Course reads are public
	r.Get("/courses", apiHandler.ListCoursesHandler)
	r.Get("/courses/{courseID}", apiHandler.GetCourseHandler)
	r.Get("/courses/instructor/{instructorID}", apiHandler.ListInstructorCoursesHandler)

	// User-authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(apiHandler.JWTAuthMiddleware)

		r.Get("/users", apiHandler.ListUsersHandler)
		r.Get("/users/me", apiHandler.MeHandler)
		r.Patch("/users/me", apiHandler.UpdateMeHandler)
		r.Get("/users/me/profile", apiHandler.ProfileHandler)
		r.Get("/users/{userID}", apiHandler.GetUserHandler)

		r.Post("/conversations", apiHandler.CreateConversationHandler)
		r.Get("/conversations", apiHandler.ListConversationsHandler)
		r.Get("/conversations/search", apiHandler.SearchConversationsHandler)
		r.Get("/conversations/{conversationID}", apiHandler.GetConversationHandler)
		r.Post("/conversations/{conversationID}/messages", apiHandler.PostMessageHandler)
		r.Delete("/conversations/{conversationID}", apiHandler.DeleteConversationHandler)

		r.Post("/courses", apiHandler.CreateCourseHandler)
		r.Post("/courses/recommendations", apiHandler.RecommendHandler)
		r.Patch("/courses/{courseID}", apiHandler.UpdateCourseHandler)
		r.Delete("/courses/{courseID}", apiHandler.DeleteCourseHandler)
	})

	return r
}
