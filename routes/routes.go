package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/playgrid/arena/handlers"
	"github.com/playgrid/arena/middleware"
	"github.com/playgrid/arena/models"
)

// SetupRoutes wires the full HTTP surface onto the router.
func SetupRoutes(
	router *chi.Mux,
	auth *middleware.Authenticator,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	tournamentHandler *handlers.TournamentHandler,
	leaderboardHandler *handlers.LeaderboardHandler,
	chatHandler *handlers.ChatHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Post("/auth/register", authHandler.Register)
	router.Post("/auth/login", authHandler.Login)

	router.Route("/users", func(r chi.Router) {
		r.Get("/{userID}", userHandler.GetProfile)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Get("/me", userHandler.GetCurrentUser)
			r.Post("/me/avatar", userHandler.UploadAvatar)
		})
	})

	router.Route("/tournaments", func(r chi.Router) {
		r.Get("/", tournamentHandler.List)
		r.Get("/{id}", tournamentHandler.Get)
		r.Get("/{id}/bracket", tournamentHandler.GetBracket)
		r.Get("/{id}/chat", chatHandler.ListMessages)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)

			r.Post("/", tournamentHandler.Create)
			r.Put("/{id}", tournamentHandler.Update)
			r.Delete("/{id}", tournamentHandler.Delete)
			r.Post("/{id}/cancel", tournamentHandler.Cancel)
			r.Post("/{id}/banner", tournamentHandler.UploadBanner)

			r.Post("/{id}/register", tournamentHandler.Register)
			r.Delete("/{id}/register", tournamentHandler.Unregister)
			r.Post("/{id}/teams/{teamID}/confirm", tournamentHandler.ConfirmTeam)

			r.Post("/{id}/bracket", tournamentHandler.GenerateBracket)
			r.Post("/{id}/matches/{matchUID}/result", tournamentHandler.RecordMatchResult)

			r.Post("/{id}/chat", chatHandler.PostMessage)
		})
	})

	router.Route("/leaderboard", func(r chi.Router) {
		r.Get("/", leaderboardHandler.List)
		r.Get("/top3", leaderboardHandler.Top3)
		r.Get("/rank/{userID}", leaderboardHandler.UserRank)
		r.Get("/search", leaderboardHandler.Search)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Use(middleware.Authorize(models.RoleAdmin))
			r.Post("/recalculate", leaderboardHandler.Recalculate)
		})
	})

	router.Get("/ws/tournaments/{id}", webSocketHandler.ServeWs)
}
