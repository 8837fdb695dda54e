package kernel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"

	"github.com/manthysbr/travelagent/internal/config"
	"github.com/manthysbr/travelagent/internal/core/domain"
	"github.com/manthysbr/travelagent/internal/core/ports"
	"github.com/manthysbr/travelagent/internal/core/services"
)

const maxBodyBytes = 1 << 20

// Agent runs one request and reports progress to sink.
type Agent interface {
	Run(ctx context.Context, req domain.AgentRequest, sink ports.EventSink) error
}

type Server struct {
	logger        *slog.Logger
	agent         Agent
	tools         *domain.ToolRegistry
	settings      *config.Store
	requestSchema *openapi3.Schema
}

func NewServer(
	ctx context.Context,
	logger *slog.Logger,
	agent Agent,
	tools *domain.ToolRegistry,
	settings *config.Store,
) (*Server, error) {
	doc, err := LoadOpenAPI(ctx)
	if err != nil {
		return nil, err
	}
	schema, err := componentSchema(doc, "AgentRequest")
	if err != nil {
		return nil, err
	}
	return &Server{
		logger:        logger,
		agent:         agent,
		tools:         tools,
		settings:      settings,
		requestSchema: schema,
	}, nil
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/api/agent", s.handleAgent)
	r.Get("/api/agent", s.handleAgentStream)
	r.Get("/api/tools", s.handleListTools)
	r.Get("/api/tools/{name}", s.handleGetTool)
	r.Get("/api/settings", s.handleGetSettings)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.Write(openAPISpec) //nolint:errcheck
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, "ok") //nolint:errcheck
	})
	return r
}

type errorBody struct {
	Summary string `json:"summary"`
	Error   string `json:"error"`
}

type errorResponse struct {
	Result errorBody `json:"result"`
}

type agentResponse struct {
	Result domain.AgentResult `json:"result"`
	Meta   domain.Meta        `json:"meta"`
}

type clarifyResponse struct {
	Clarify domain.ClarifyPayload `json:"clarify"`
	Meta    domain.Meta           `json:"meta"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	summary := "Internal error"
	if status < http.StatusInternalServerError {
		summary = "Invalid request"
	}
	s.writeJSON(w, status, errorResponse{Result: errorBody{Summary: summary, Error: msg}})
}

// statusFor maps a fatal pipeline error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// handleAgent runs one request to completion and returns the final result.
func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	var body any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "request body must be a JSON object: "+err.Error())
		return
	}
	if err := s.requestSchema.VisitJSON(body); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	obj, _ := body.(map[string]any)
	message, _ := obj["message"].(string)

	req := domain.AgentRequest{RequestID: uuid.NewString(), Message: message}
	logger := s.logger.With("request_id", req.RequestID)
	logger.Info("agent request", "mode", domain.ModeOneShot)

	sink := services.NewBufferSink()
	runErr := s.agent.Run(r.Context(), req, sink)
	out := sink.Outcome()

	switch {
	case out.Result != nil:
		s.writeJSON(w, http.StatusOK, agentResponse{Result: out.Result.Result, Meta: out.Result.Meta})
	case out.Clarify != nil:
		var meta domain.Meta
		if out.Done != nil && out.Done.Meta != nil {
			meta = *out.Done.Meta
		}
		s.writeJSON(w, http.StatusOK, clarifyResponse{Clarify: *out.Clarify, Meta: meta})
	case out.Error != nil:
		s.writeError(w, statusFor(runErr), out.Error.Error)
	case runErr != nil:
		if r.Context().Err() != nil {
			logger.Info("client went away", "error", runErr)
			return
		}
		s.writeError(w, statusFor(runErr), runErr.Error())
	default:
		logger.Error("agent finished without a terminal event")
		s.writeError(w, http.StatusInternalServerError, "agent finished without a result")
	}
}

// handleAgentStream runs one request and streams its events as SSE.
func (s *Server) handleAgentStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	var message, forcePlan *string
	if err := runtime.BindQueryParameter("form", true, false, "message", r.URL.Query(), &message); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "forcePlan", r.URL.Query(), &forcePlan); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := domain.AgentRequest{RequestID: uuid.NewString(), Stream: true}
	if message != nil {
		req.Message = *message
	}
	logger := s.logger.With("request_id", req.RequestID)

	if forcePlan != nil && strings.TrimSpace(*forcePlan) != "" {
		if !s.settings.GetConfig().Debug.AllowPlanOverride {
			logger.Debug("ignoring forcePlan, overrides are disabled")
		} else {
			decision, err := services.ParsePlanOverride(*forcePlan)
			if err != nil {
				s.writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			req.ForcePlan = &decision
		}
	}

	logger.Info("agent request", "mode", domain.ModeStream, "forced", req.ForcePlan != nil)
	sink := startSSE(w, flusher)
	if err := s.agent.Run(r.Context(), req, sink); err != nil {
		if r.Context().Err() != nil {
			logger.Info("stream closed by client", "error", err)
			return
		}
		logger.Warn("stream ended with error", "error", err)
	}
}

type toolInfo struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Parameters  domain.ToolParameters `json:"parameters"`
}

func newToolInfo(t *domain.Tool) toolInfo {
	return toolInfo{Name: t.Name, Description: t.Description, Parameters: t.Parameters}
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	tools := s.tools.ListTools()
	out := make([]toolInfo, 0, len(tools))
	for _, t := range tools {
		out = append(out, newToolInfo(t))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	tool, ok := s.tools.GetTool(name)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("%v: %s", domain.ErrToolNotFound, name))
		return
	}
	s.writeJSON(w, http.StatusOK, newToolInfo(tool))
}
