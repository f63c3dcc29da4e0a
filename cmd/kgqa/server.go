package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
	"github.com/smallnest/kgqa/assistant"
	"github.com/smallnest/kgqa/log"
)

// Server exposes the assistant over HTTP.
type Server struct {
	assistant    *assistant.Assistant
	documentsDir string
	logger       log.Logger
	sanitizer    *bluemonday.Policy
}

// NewServer creates a new HTTP server.
func NewServer(a *assistant.Assistant, documentsDir string, logger log.Logger) *Server {
	return &Server{
		assistant:    a,
		documentsDir: documentsDir,
		logger:       log.OrDefault(logger),
		sanitizer:    bluemonday.UGCPolicy(),
	}
}

// Handler returns the routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ask", s.handleAsk)
	mux.HandleFunc("/refresh-vector-store", s.handleRefreshVectorStore)
	mux.HandleFunc("/refresh-index", s.handleRefreshIndex)
	mux.HandleFunc("/refresh-documents", s.handleRefreshDocuments)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/connections", s.handleConnections)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// AskRequest is the body of POST /ask.
type AskRequest struct {
	Query string `json:"query"`
}

// AskResponse is the reply to POST /ask.
type AskResponse struct {
	*assistant.Answer
	AnswerHTML string `json:"answer_html,omitempty"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ans, err := s.assistant.AnswerQuestion(r.Context(), req.Query)
	if errors.Is(err, assistant.ErrEmptyQuestion) {
		sendJSONError(w, "Query is required", http.StatusBadRequest)
		return
	}
	if err != nil {
		s.logger.Error("ask failed: %v", err)
		sendJSONError(w, "Failed to answer question", http.StatusInternalServerError)
		return
	}

	resp := AskResponse{Answer: ans}
	if r.URL.Query().Get("format") == "html" {
		resp.AnswerHTML = s.renderHTML(ans.Answer)
	}
	sendJSONResponse(w, resp)
}

// renderHTML converts a markdown answer to sanitized HTML.
func (s *Server) renderHTML(md string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	out := markdown.Render(p.Parse([]byte(md)), renderer)
	return string(s.sanitizer.SanitizeBytes(out))
}

func (s *Server) handleRefreshVectorStore(w http.ResponseWriter, r *http.Request) {
	s.refresh(w, r, true)
}

func (s *Server) handleRefreshIndex(w http.ResponseWriter, r *http.Request) {
	force := false
	if v := r.URL.Query().Get("force"); v != "" {
		var err error
		if force, err = strconv.ParseBool(v); err != nil {
			sendJSONError(w, "Invalid force parameter", http.StatusBadRequest)
			return
		}
	}
	s.refresh(w, r, force)
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request, force bool) {
	if r.Method != http.MethodPost {
		sendJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status, err := s.assistant.RefreshIndex(r.Context(), force)
	if err != nil {
		s.logger.Error("refresh failed: %v", err)
		sendJSONError(w, "Failed to refresh index", http.StatusInternalServerError)
		return
	}
	sendJSONResponse(w, map[string]any{
		"status":        "success",
		"action":        status.Action,
		"entities":      status.Entities,
		"relationships": status.Relationships,
		"index_entries": status.IndexEntries,
		"duration_ms":   status.Duration.Milliseconds(),
	})
}

func (s *Server) handleRefreshDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	n, err := s.assistant.RefreshDocuments(r.Context(), s.documentsDir)
	if errors.Is(err, assistant.ErrSemanticDisabled) {
		sendJSONError(w, "Document retrieval is not configured", http.StatusConflict)
		return
	}
	if err != nil {
		s.logger.Error("document refresh failed: %v", err)
		sendJSONError(w, "Failed to refresh documents", http.StatusInternalServerError)
		return
	}
	sendJSONResponse(w, map[string]any{
		"status": "success",
		"chunks": n,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := s.assistant.Stats(r.Context())
	if err != nil {
		s.logger.Error("stats failed: %v", err)
		sendJSONError(w, "Failed to read stats", http.StatusInternalServerError)
		return
	}
	sendJSONResponse(w, stats)
}

// defaultConnectionDepth is used when GET /connections names no depth.
const defaultConnectionDepth = 2

func (s *Server) handleConnections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		sendJSONError(w, "Name is required", http.StatusBadRequest)
		return
	}
	depth := defaultConnectionDepth
	if v := r.URL.Query().Get("depth"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			sendJSONError(w, "Invalid depth parameter", http.StatusBadRequest)
			return
		}
		depth = n
	}

	records, err := s.assistant.Connections(r.Context(), name, depth)
	if err != nil {
		s.logger.Error("connections failed: %v", err)
		sendJSONError(w, "Failed to read connections", http.StatusInternalServerError)
		return
	}
	sendJSONResponse(w, map[string]any{
		"name":        name,
		"depth":       depth,
		"connections": records,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendJSONResponse(w, map[string]any{"status": "ok"})
}

// sendJSONResponse sends a JSON response.
func sendJSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

// sendJSONError sends a JSON error response.
func sendJSONError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": message,
	})
}
