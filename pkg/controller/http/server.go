// Package http exposes the runtime over a small JSON API: a message
// endpoint for transport collaborators (bot frontends, webhooks) and a
// health probe.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/goerr/v2"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/usecase"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/utils/errutil"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/utils/logging"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/utils/safe"
)

type Server struct {
	router  *chi.Mux
	runtime *usecase.Runtime
	token   string
}

type Options func(*Server)

// WithAuthToken requires a Bearer token on the message endpoints.
// Without it the API is open, which is only sane on localhost.
func WithAuthToken(token string) Options {
	return func(s *Server) {
		s.token = token
	}
}

func New(rt *usecase.Runtime, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:  r,
		runtime: rt,
	}
	for _, opt := range opts {
		opt(s)
	}

	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler)

	r.Route("/v1", func(r chi.Router) {
		if s.token != "" {
			r.Use(bearerAuthMiddleware(s.token))
		}
		r.Post("/messages", s.handleMessage)
		r.Post("/facts", s.handleFact)
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	safe.Write(r.Context(), w, []byte(`{"status":"ok"}`))
}

// messageRequest is the collaborator contract: transports normalize
// their updates into this shape. IDs may be raw external identifiers;
// they are mapped to stable internal IDs here.
type messageRequest struct {
	MessageID  string `json:"messageId,omitempty"`
	RoomID     string `json:"roomId"`
	UserID     string `json:"userId"`
	SenderName string `json:"senderName,omitempty"`
	Text       string `json:"text"`
}

type messageResponse struct {
	Replied bool           `json:"replied"`
	Content *model.Content `json:"content,omitempty"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to decode message request"), http.StatusBadRequest)
		return
	}
	if req.RoomID == "" || req.UserID == "" || req.Text == "" {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(types.ErrValidation, "roomId, userId and text are required"), http.StatusBadRequest)
		return
	}

	memory := &model.Memory{
		RoomID:    types.RoomID(types.DeterministicID(req.RoomID)),
		UserID:    types.UserID(types.DeterministicID(req.UserID)),
		Content:   model.Content{Text: req.Text},
		CreatedAt: time.Now(),
	}
	if req.MessageID != "" {
		memory.ID = types.MemoryID(types.DeterministicID(req.MessageID))
	}
	if req.SenderName != "" {
		memory.Content.Metadata = map[string]any{"senderName": req.SenderName}
	}

	content, err := s.runtime.HandleMessage(ctx, memory)
	if err != nil {
		errutil.HandleHTTP(ctx, w, err, http.StatusInternalServerError)
		return
	}

	writeJSON(ctx, w, http.StatusOK, messageResponse{Replied: content != nil, Content: content})
}

// factRequest ingests a knowledge fragment into the fact store, scoped
// to a room so retrieval stays per-conversation.
type factRequest struct {
	RoomID string `json:"roomId"`
	Text   string `json:"text"`
}

func (s *Server) handleFact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req factRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to decode fact request"), http.StatusBadRequest)
		return
	}
	if req.RoomID == "" || req.Text == "" {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(types.ErrValidation, "roomId and text are required"), http.StatusBadRequest)
		return
	}

	agentID := s.runtime.AgentID()
	memory := &model.Memory{
		AgentID:   agentID,
		RoomID:    types.RoomID(types.DeterministicID(req.RoomID)),
		UserID:    agentID,
		Content:   model.Content{Text: req.Text},
		Kind:      types.KindFacts,
		CreatedAt: time.Now(),
	}

	facts := s.runtime.Facts()
	if err := facts.AddEmbedding(ctx, memory); err != nil {
		errutil.HandleHTTP(ctx, w, err, http.StatusBadGateway)
		return
	}
	if err := facts.Create(ctx, memory, false); err != nil {
		errutil.HandleHTTP(ctx, w, err, http.StatusInternalServerError)
		return
	}

	writeJSON(ctx, w, http.StatusCreated, map[string]any{"id": memory.ID, "unique": memory.Unique})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to marshal response"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	safe.Write(ctx, w, data)
}

// accessLogger logs each HTTP request with its outcome.
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.Default().Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

func bearerAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+token {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
