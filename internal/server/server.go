// Package server exposes the HTTP ingress for the pipeline: the
// message-sent event that starts a workflow run and the cancel event that
// aborts one, plus read endpoints for transcripts and project file trees.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"atelier/internal/logging"
	"atelier/internal/pipeline"
	"atelier/internal/store"
)

// Dispatcher runs and cancels workflow instances. *pipeline.Pipeline
// satisfies it; tests substitute a stub.
type Dispatcher interface {
	ProcessMessage(ctx context.Context, evt pipeline.Event) error
	Cancel(messageID string) bool
}

// Server handles the pipeline's HTTP surface.
type Server struct {
	store      *store.Store
	dispatcher Dispatcher
	logger     *logging.StructuredLogger
	router     chi.Router
}

func New(st *store.Store, dispatcher Dispatcher, logger *logging.StructuredLogger) *Server {
	if logger == nil {
		logger = logging.NewStructuredLogger(nil, "http", false)
	}
	s := &Server{store: st, dispatcher: dispatcher, logger: logger}
	s.router = s.buildRouter()
	return s
}

// ServeHTTP delegates to the chi router, satisfying http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe starts the server with sane timeouts and shuts it down
// when ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Post("/conversations", s.handleCreateConversation)
		r.Get("/conversations/{id}/messages", s.handleListMessages)
		r.Post("/messages", s.handleSendMessage)
		r.Post("/messages/{id}/cancel", s.handleCancelMessage)
		r.Get("/projects/{id}/files", s.handleProjectFiles)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request", map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).Round(time.Millisecond).String(),
		})
	})
}

type createConversationRequest struct {
	ProjectID string `json:"project_id"`
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.ProjectID) == "" {
		writeError(w, http.StatusBadRequest, "project_id is required")
		return
	}
	conv, err := s.store.CreateConversation(r.Context(), req.ProjectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "create conversation failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         conv.ID,
		"project_id": conv.ProjectID,
		"title":      conv.Title,
	})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetConversation(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "load conversation failed")
		return
	}
	msgs, err := s.store.ConversationMessages(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load messages failed")
		return
	}
	out := make([]map[string]any, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, map[string]any{
			"id":         msg.ID,
			"role":       msg.Role,
			"content":    msg.Content,
			"status":     msg.Status,
			"created_at": msg.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": out})
}

type sendMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	ProjectID      string `json:"project_id"`
	Message        string `json:"message"`
}

// handleSendMessage records the user turn, creates the assistant placeholder
// in processing status, and dispatches the workflow. The placeholder id is
// the workflow instance id the client can later cancel with.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.ConversationID) == "" || strings.TrimSpace(req.ProjectID) == "" || strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "conversation_id, project_id, and message are required")
		return
	}

	ctx := r.Context()
	if _, err := s.store.CreateMessage(ctx, req.ConversationID, store.RoleUser, req.Message, store.StatusCompleted); err != nil {
		writeError(w, http.StatusInternalServerError, "record user message failed")
		return
	}
	placeholder, err := s.store.CreateMessage(ctx, req.ConversationID, store.RoleAssistant, "", store.StatusProcessing)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "create assistant message failed")
		return
	}

	evt := pipeline.Event{
		MessageID:      placeholder.ID,
		ConversationID: req.ConversationID,
		ProjectID:      req.ProjectID,
		Message:        req.Message,
	}
	go func() {
		if err := s.dispatcher.ProcessMessage(context.Background(), evt); err != nil {
			s.logger.Error("workflow failed", map[string]interface{}{
				"message_id": evt.MessageID,
				"error":      err.Error(),
			})
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{"message_id": placeholder.ID})
}

func (s *Server) handleCancelMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cancelled := s.dispatcher.Cancel(id)
	writeJSON(w, http.StatusOK, map[string]any{"cancelled": cancelled})
}

type fileNodeView struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Type     string         `json:"type"`
	Children []fileNodeView `json:"children,omitempty"`
}

func (s *Server) handleProjectFiles(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")
	tree, err := s.fileTree(r.Context(), projectID, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load file tree failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": tree})
}

func (s *Server) fileTree(ctx context.Context, projectID string, parentID *string) ([]fileNodeView, error) {
	nodes, err := s.store.ChildNodes(ctx, projectID, parentID)
	if err != nil {
		return nil, err
	}
	views := make([]fileNodeView, 0, len(nodes))
	for _, node := range nodes {
		view := fileNodeView{ID: node.ID, Name: node.Name, Type: node.Type}
		if node.IsFolder() {
			children, err := s.fileTree(ctx, projectID, &node.ID)
			if err != nil {
				return nil, err
			}
			view.Children = children
		}
		views = append(views, view)
	}
	return views, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
