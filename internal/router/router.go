package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/habits/api/handler"
)

type Handlers struct {
	Auth   *apiHandler.AuthHandler
	Habit  *apiHandler.HabitHandler
	Health *apiHandler.HealthHandler
}

func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	// Auth routes
	r.POST("/api/v1/auth/register", handlers.Auth.Register)
	r.POST("/api/v1/auth/login", handlers.Auth.Login)
	r.POST("/api/v1/auth/refresh", handlers.Auth.Refresh)

	// Protected routes
	r.POST("/api/v1/auth/logout", authMiddleware(handlers.Auth.Logout))
	r.GET("/api/v1/me", authMiddleware(handlers.Auth.Me))

	r.GET("/api/v1/habits", authMiddleware(handlers.Habit.List))
	r.POST("/api/v1/habits", authMiddleware(handlers.Habit.Create))
	r.POST("/api/v1/habits/{id}/complete", authMiddleware(handlers.Habit.Complete))
	r.DELETE("/api/v1/habits/{id}", authMiddleware(handlers.Habit.Delete))
	r.GET("/api/v1/habits/{id}/completions", authMiddleware(handlers.Habit.Completions))

	return r
}
