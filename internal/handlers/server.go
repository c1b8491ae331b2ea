// internal/handlers/server.go
package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/jason-s-yu/typerace/internal/auth"
	"github.com/jason-s-yu/typerace/internal/lobby"
	"github.com/jason-s-yu/typerace/internal/middleware"
	"github.com/jason-s-yu/typerace/internal/models"
	"github.com/jason-s-yu/typerace/internal/race"
	"github.com/sirupsen/logrus"
)

// UserStore creates and checks accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	AuthenticateUser(ctx context.Context, username, password string) (models.User, error)
}

// Server holds the dependencies of every HTTP and websocket endpoint.
type Server struct {
	Coordinator    *race.Coordinator
	Lobbies        *lobby.Manager
	Users          UserStore
	Issuer         *auth.Issuer
	Logger         logrus.FieldLogger
	AllowedOrigins []string
	SendBuffer     int
}

type ctxKey struct{}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.LogMiddleware(s.Logger))
	r.Use(chimw.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/user", func(r chi.Router) {
		r.Post("/create", s.CreateUserHandler)
		r.Post("/login", s.LoginHandler)
	})

	r.Route("/lobby", func(r chi.Router) {
		r.Get("/list", s.ListLobbiesHandler)
		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/create", s.CreateLobbyHandler)
			r.Get("/{code}", s.GetLobbyHandler)
		})
	})

	r.Get("/ws", s.WSHandler)
	return r
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.Issuer.AuthenticateRequest(r)
		if err != nil {
			s.Logger.WithError(err).WithField("path", r.URL.Path).Debug("rejected unauthenticated request")
			writeError(w, http.StatusUnauthorized, models.ErrAuthenticationFailed.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, userID)))
	})
}

func userFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(ctxKey{}).(uuid.UUID)
	return id
}
