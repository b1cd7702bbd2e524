package server

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/splitlab/splitlab/internal/experiments"
	"github.com/splitlab/splitlab/internal/store"
	"github.com/splitlab/splitlab/internal/suggest"
)

type Server struct {
	svc       *experiments.Service
	suggester *suggest.Generator
	db        *store.SQLiteStore
	port      int
	token     string
	router    *http.ServeMux
	startTime time.Time
	logger    *zap.Logger
}

func New(svc *experiments.Service, suggester *suggest.Generator, db *store.SQLiteStore, port int, token string, logger *zap.Logger) *Server {
	if token == "" {
		token = generateToken()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	srv := &Server{
		svc:       svc,
		suggester: suggester,
		db:        db,
		port:      port,
		token:     token,
		router:    http.NewServeMux(),
		startTime: time.Now(),
		logger:    logger,
	}

	srv.setupRoutes()
	return srv
}

func (s *Server) setupRoutes() {
	// Public endpoints
	s.router.HandleFunc("/health", s.handleHealth)
	s.router.HandleFunc("/b", s.handleBeacon)

	// API endpoints (protected)
	s.router.Handle("/api/tests", s.authMiddleware(http.HandlerFunc(s.handleTests)))
	s.router.Handle("/api/tests/", s.authMiddleware(http.HandlerFunc(s.handleTestByID)))
	s.router.Handle("/api/suggestions", s.authMiddleware(http.HandlerFunc(s.handleSuggestions)))
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("server listening",
		zap.String("addr", addr),
		zap.String("api_token", s.token))
	return http.ListenAndServe(addr, s.loggingMiddleware(s.router))
}

func (s *Server) Token() string {
	return s.token
}

func (s *Server) Handler() http.Handler {
	return s.loggingMiddleware(s.router)
}

func generateToken() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "insecure-fallback-token"
	}
	return hex.EncodeToString(bytes)
}
