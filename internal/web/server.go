package web

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/cursorbeacon/cursorbeacon/internal/config"
)

type Server struct {
	config  *config.Config
	handler *Handler
	server  *http.Server
}

func NewServer(cfg *config.Config, handler *Handler) *Server {
	r := mux.NewRouter()
	handler.SetupRoutes(r)

	httpServer := &http.Server{
		Addr:        cfg.WebAddress(),
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		// no WriteTimeout: /api/stream connections are long-lived
		IdleTimeout: 60 * time.Second,
	}

	return &Server{
		config:  cfg,
		handler: handler,
		server:  httpServer,
	}
}

func (s *Server) Start() error {
	log.Printf("Starting web server on http://%s", s.server.Addr)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")
	if s.handler.hub != nil {
		s.handler.hub.Close()
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) GetAddress() string {
	return s.server.Addr
}
