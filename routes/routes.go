package routes

import (
	"net/http"

	_ "github.com/Dosada05/pong-tournaments/docs"
	"github.com/Dosada05/pong-tournaments/handlers"
	"github.com/Dosada05/pong-tournaments/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

func SetupRoutes(
	router chi.Router,
	verifier *middleware.TokenVerifier,
	allowedOrigins []string,
	tournamentHandler *handlers.TournamentHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// Токен проверяется внутри хендлера: до апгрейда нужен JSON-ответ 401.
	router.Get("/ws", webSocketHandler.ServeWs)

	router.Route("/api/tournaments", func(r chi.Router) {
		r.Get("/", tournamentHandler.ListHandler)
		r.Get("/{tournamentID}", tournamentHandler.GetByIDHandler)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(verifier))

			r.Post("/", tournamentHandler.CreateHandler)
			r.Post("/{tournamentID}/players", tournamentHandler.RegisterPlayerHandler)
			r.Delete("/{tournamentID}/players/{userID}", tournamentHandler.RemovePlayerHandler)
			r.Post("/{tournamentID}/start", tournamentHandler.StartHandler)
			r.Post("/matches/{matchID}/result", tournamentHandler.SubmitResultHandler)
		})
	})
}
