// Package api exposes the conversation persistence service over HTTP:
// chatbot administration, conversation creation, welcome/gate facts,
// the batched intake commit, and suggestion pills.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/chatforms/intakegate/internal/models"
	"github.com/chatforms/intakegate/internal/store"
)

// DefaultAddr is the default listen address for the API server.
const DefaultAddr = ":8080"

// SuggestionGenerator produces post-completion suggestion pills for a
// chatbot. Implementations may call a model; the handler degrades to a
// static fallback on failure.
type SuggestionGenerator interface {
	Suggestions(ctx context.Context, bot models.Chatbot) ([]string, error)
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string // listen address
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// Server serves the IntakeGate HTTP API.
type Server struct {
	st      store.Store
	suggest SuggestionGenerator
	addr    string
}

// NewServer creates an API server over the given store. suggest may be
// nil; suggestion requests then always use the static fallback.
func NewServer(st store.Store, suggest SuggestionGenerator, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("api.NewServer: creating server", "addr", cfg.Addr, "hasSuggestionGenerator", suggest != nil)
	return &Server{st: st, suggest: suggest, addr: cfg.Addr}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chatbots", s.createChatbotHandler)
	mux.HandleFunc("POST /chatbots/{id}/questions", s.saveQuestionsHandler)
	mux.HandleFunc("POST /chatbots/{id}/conversations", s.createConversationHandler)
	mux.HandleFunc("GET /chatbots/{id}/welcome", s.welcomeHandler)
	mux.HandleFunc("GET /chatbots/{id}/suggestions", s.suggestionsHandler)
	mux.HandleFunc("POST /conversations/{id}/commit", s.commitHandler)
	mux.HandleFunc("GET /health", s.healthHandler)
	return mux
}

// Run starts the HTTP server and blocks until it exits.
func (s *Server) Run() error {
	slog.Info("api.Server.Run: listening", "addr", s.addr)
	return http.ListenAndServe(s.addr, s.Handler())
}
