// Package httpapi exposes the assistant over HTTP: session lifecycle,
// push-to-talk voice commands, direct action execution, and the usual
// health, metrics and perf surfaces.
package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/anvesh29/mitra/internal/assistant"
	"github.com/anvesh29/mitra/internal/capture"
	"github.com/anvesh29/mitra/internal/config"
	"github.com/anvesh29/mitra/internal/intent"
	"github.com/anvesh29/mitra/internal/observability"
	"github.com/anvesh29/mitra/internal/router"
	"github.com/anvesh29/mitra/internal/session"
)

// Pipeline is the assistant surface the API drives.
type Pipeline interface {
	ProcessVoiceCommand(ctx context.Context, utt capture.Utterance) (router.ActionResult, error)
	ExecuteAction(ctx context.Context, in intent.Intent) (router.ActionResult, error)
}

type Server struct {
	cfg      config.Config
	sessions *session.Manager
	pipeline Pipeline
	metrics  *observability.Metrics
	window   *observability.StageWindow
	validate *validator.Validate
}

func New(cfg config.Config, sessions *session.Manager, pipeline Pipeline, metrics *observability.Metrics, window *observability.StageWindow) *Server {
	return &Server{
		cfg:      cfg,
		sessions: sessions,
		pipeline: pipeline,
		metrics:  metrics,
		window:   window,
		validate: validator.New(),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	r.Post("/v1/sessions", s.handleCreateSession)
	r.Post("/v1/sessions/{id}/end", s.handleEndSession)
	r.Post("/v1/voice/command", s.handleVoiceCommand)
	r.Post("/v1/actions", s.handleExecuteAction)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"active_sessions": s.sessions.ActiveCount(),
	})
}

func (s *Server) handlePerfLatency(w http.ResponseWriter, _ *http.Request) {
	if s.window == nil {
		respondJSON(w, http.StatusOK, observability.StageSnapshot{
			GeneratedAt: time.Now().UTC(),
			Stages:      []observability.StageStats{},
		})
		return
	}
	respondJSON(w, http.StatusOK, s.window.Snapshot())
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req session.CreateRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		req.UserID = "anonymous"
	}

	sess := s.sessions.Create(req.UserID)
	// The first live session takes the wake listener; later ones are
	// push-to-talk only until the owner ends.
	if err := s.sessions.ClaimWake(sess.ID); err == nil {
		sess.WakeOwner = true
		if binder, ok := s.pipeline.(interface{ BindSession(string, string) }); ok {
			binder.BindSession(sess.ID, sess.UserID)
		}
	}
	if s.metrics != nil {
		s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	}

	respondJSON(w, http.StatusCreated, session.CreateResponse{
		SessionID:       sess.ID,
		UserID:          sess.UserID,
		Status:          sess.Status,
		WakeOwner:       sess.WakeOwner,
		StartedAt:       sess.StartedAt,
		LastActivityAt:  sess.LastActivityAt,
		InactivityTTLMS: s.cfg.SessionInactivityTimeout.Milliseconds(),
	})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}

	sess, err := s.sessions.End(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	if s.metrics != nil {
		s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	}
	respondJSON(w, http.StatusOK, sess)
}

type voiceCommandRequest struct {
	AudioB64   string `json:"audio_b64" validate:"required"`
	SampleRate int    `json:"sample_rate" validate:"omitempty,gte=8000,lte=48000"`
	SessionID  string `json:"session_id"`
}

// handleVoiceCommand is the push-to-talk surface: caller-supplied audio
// runs the full pipeline minus the wake word.
func (s *Server) handleVoiceCommand(w http.ResponseWriter, r *http.Request) {
	var req voiceCommandRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	pcm, err := base64.StdEncoding.DecodeString(req.AudioB64)
	if err != nil || len(pcm) == 0 {
		respondError(w, http.StatusBadRequest, "invalid_audio", "audio_b64 must be non-empty base64 PCM")
		return
	}
	sampleRate := req.SampleRate
	if sampleRate == 0 {
		sampleRate = s.cfg.SampleRate
	}
	if req.SessionID != "" {
		if err := s.sessions.Touch(req.SessionID); err != nil {
			respondError(w, http.StatusNotFound, "session_not_found", err.Error())
			return
		}
	}

	res, err := s.pipeline.ProcessVoiceCommand(r.Context(), capture.Utterance{
		PCM:        pcm,
		SampleRate: sampleRate,
	})
	if err != nil {
		s.respondPipelineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

type actionRequest struct {
	Intent     string            `json:"intent" validate:"required"`
	Entities   map[string]string `json:"entities"`
	Confidence float64           `json:"confidence" validate:"gte=0,lte=1"`
	SourceText string            `json:"source_text"`
	SessionID  string            `json:"session_id"`
}

// handleExecuteAction runs an intent directly, e.g. from a text-command
// surface, with the same result contract as the voice pipeline.
func (s *Server) handleExecuteAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.SessionID != "" {
		if err := s.sessions.Touch(req.SessionID); err != nil {
			respondError(w, http.StatusNotFound, "session_not_found", err.Error())
			return
		}
	}

	res, err := s.pipeline.ExecuteAction(r.Context(), intent.Intent{
		Kind:       intent.NormalizeKind(req.Intent),
		Entities:   req.Entities,
		Confidence: req.Confidence,
		SourceText: req.SourceText,
	})
	if err != nil {
		s.respondPipelineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) respondPipelineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, assistant.ErrBusy):
		respondError(w, http.StatusConflict, "busy", "another command is in progress, try again shortly")
	case errors.Is(err, capture.ErrTranscription):
		respondError(w, http.StatusUnprocessableEntity, "no_speech", "no speech recognized in the audio")
	default:
		respondError(w, http.StatusBadGateway, "pipeline_error", err.Error())
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
