package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/handlers"

	"github.com/clubhive/chat-service/internal/chat"
	"github.com/clubhive/chat-service/internal/config"
	"github.com/clubhive/chat-service/internal/server"
)

type ChatApp struct {
	log            *log.Logger
	service        *chat.RoomService
	dispatcher     *chat.MessageDispatcher
	cs             *server.ChatServer
	mux            *http.Server
	signingKey     []byte
	allowedOrigins []string
	validate       *validator.Validate
}

func NewChatApp(mux *http.ServeMux, logger *log.Logger, service *chat.RoomService, dispatcher *chat.MessageDispatcher, cs *server.ChatServer, cfg *config.Config) *ChatApp {
	s := &ChatApp{
		log:            logger,
		service:        service,
		dispatcher:     dispatcher,
		cs:             cs,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
		validate:       validator.New(),
	}

	mux.HandleFunc("GET /api/rooms", s.authMiddleware(s.listRooms))
	mux.HandleFunc("GET /api/rooms/popular", s.authMiddleware(s.listPopularRooms))
	mux.HandleFunc("GET /api/rooms/recent", s.authMiddleware(s.listRecentRooms))
	mux.HandleFunc("GET /api/rooms/my", s.authMiddleware(s.listJoinedRooms))
	mux.HandleFunc("GET /api/rooms/created", s.authMiddleware(s.listCreatedRooms))
	mux.HandleFunc("POST /api/rooms", s.authMiddleware(s.createRoom))
	mux.HandleFunc("GET /api/rooms/{id}", s.authMiddleware(s.getRoom))
	mux.HandleFunc("DELETE /api/rooms/{id}", s.authMiddleware(s.deleteRoom))
	mux.HandleFunc("POST /api/rooms/{id}/join", s.authMiddleware(s.joinRoom))
	mux.HandleFunc("POST /api/rooms/{id}/leave", s.authMiddleware(s.leaveRoom))
	mux.HandleFunc("GET /api/rooms/{id}/messages", s.authMiddleware(s.getMessages))
	mux.HandleFunc("GET /api/rooms/{id}/messages/recent", s.authMiddleware(s.getRecentMessages))
	mux.HandleFunc("GET /api/rooms/{id}/messages/unread-count", s.authMiddleware(s.getUnreadCount))
	mux.HandleFunc("POST /api/rooms/{id}/messages/mark-read", s.authMiddleware(s.markRead))
	mux.HandleFunc("GET /api/rooms/{id}/participation-status", s.authMiddleware(s.participationStatus))
	mux.HandleFunc("GET /api/rooms/{id}/participants", s.authMiddleware(s.listParticipants))
	mux.HandleFunc("DELETE /api/rooms/{id}/participants/{memberId}", s.authMiddleware(s.kickParticipant))
	mux.HandleFunc("PUT /api/rooms/{id}/participants/{memberId}/role", s.authMiddleware(s.changeRole))
	mux.HandleFunc("DELETE /api/messages/{id}", s.authMiddleware(s.deleteMessage))
	mux.HandleFunc("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *ChatApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *ChatApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
