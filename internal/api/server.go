// Package api exposes the console's REST surface: document upload, run
// control, presentation state, settings and the demo narration asset.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"edugen/internal/config"
	"edugen/internal/contract"
	"edugen/internal/demo"
	"edugen/internal/document"
	"edugen/internal/models"
	"edugen/internal/pipeline"
	"edugen/internal/storage"
	"edugen/internal/store"
	"edugen/internal/transport"
	"edugen/internal/util"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const demoAudioPath = "/demo/narration.wav"

type Server struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *store.Store
	orch      *pipeline.Orchestrator
	transport *transport.Client
	runRepo   *storage.RunRepo

	mu       sync.RWMutex
	settings models.Settings

	narration []byte
}

// NewServer wires the state store, transport and orchestrator. runRepo may be
// nil when no database is configured; run history is then unavailable.
func NewServer(cfg config.Config, logger *slog.Logger, runRepo *storage.RunRepo) *Server {
	s := &Server{
		cfg:       cfg,
		logger:    logger,
		store:     store.New(),
		transport: transport.New(),
		runRepo:   runRepo,
		settings:  loadSettings(cfg),
		narration: demo.NarrationWAV(14),
	}
	s.orch = pipeline.New(pipeline.Config{
		Sink:         s.store,
		Transport:    s.transport,
		Settings:     s.Settings,
		DemoAudioURL: demoAudioPath,
		Timings:      pipeline.DefaultTimings(),
		OnTerminal:   s.recordRun,
	})
	return s
}

func loadSettings(cfg config.Config) models.Settings {
	settings := models.Settings{
		WebhookURL:       cfg.WebhookURL,
		RequestTimeoutMs: cfg.RequestTimeoutMs,
		DemoMode:         cfg.DemoMode,
		DemoScenario:     cfg.DemoScenario,
	}
	raw, err := util.ReadJSONFile(settingsPath(cfg))
	if err != nil {
		return settings
	}
	var saved models.Settings
	if json.Unmarshal(raw, &saved) == nil {
		settings = sanitizeSettings(saved, settings)
	}
	return settings
}

func settingsPath(cfg config.Config) string {
	return filepath.Join(cfg.DataInRoot, "settings.json")
}

// Settings returns the current integration settings. The orchestrator reads
// them at the start of each run.
func (s *Server) Settings() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Close stops the orchestrator and any in-flight run bookkeeping.
func (s *Server) Close() {
	s.orch.Close()
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(withCORS)

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/documents", s.handleUploadDocument)
	r.Delete("/documents", s.handleDeleteDocument)
	r.Post("/generate", s.handleGenerate)
	r.Get("/state", s.handleState)
	r.Get("/settings", s.handleGetSettings)
	r.Put("/settings", s.handlePutSettings)
	r.Post("/test-connection", s.handleTestConnection)
	r.Get("/runs", s.handleRuns)
	r.Get(demoAudioPath, s.handleNarration)
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("no file provided"))
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("not a pdf"))
		return
	}

	path, sha, size, err := util.SaveUpload(s.cfg.DataInRoot, header.Filename, file)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	doc, err := document.Parse(path, filepath.Base(header.Filename), size)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	s.store.SetDocument(store.DocumentView{
		Name:       doc.Name,
		Pages:      doc.Pages,
		Words:      doc.Words,
		Size:       doc.Size,
		Subject:    doc.Subject,
		Language:   doc.Language,
		Complexity: doc.Complexity,
	})
	s.orch.LoadDocument(doc)
	s.logger.Info("document loaded", "name", doc.Name, "pages", doc.Pages, "words", doc.Words, "sha256", sha)

	writeJSON(w, http.StatusCreated, map[string]any{
		"name":       doc.Name,
		"pages":      doc.Pages,
		"words":      doc.Words,
		"size":       doc.Size,
		"sizeLabel":  util.FormatFileSize(doc.Size),
		"subject":    doc.Subject,
		"language":   doc.Language,
		"complexity": doc.Complexity,
	})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, _ *http.Request) {
	s.orch.ClearDocument()
	s.store.ClearDocument()
	s.store.AppendLog("info", "Input cleared.")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Style       string `json:"style"`
		VideoPreset string `json:"videoPreset"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
	}
	if !s.orch.HasDocument() {
		writeErr(w, http.StatusConflict, fmt.Errorf("no document loaded"))
		return
	}
	if !s.orch.Start(pipeline.GenerateRequest{Style: req.Style, VideoPreset: req.VideoPreset}) {
		writeErr(w, http.StatusConflict, fmt.Errorf("generation already in progress"))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": pipeline.StatusProcessing})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	snap := s.store.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"document":            snap.Document,
		"pipeline":            snap.Pipeline,
		"statusLabel":         util.TitleCase(snap.Pipeline.Status),
		"output":              snap.Output,
		"warnings":            snap.Warnings,
		"logs":                snap.Logs,
		"stats":               snap.Stats,
		"elapsedLabel":        util.FormatElapsedTime(snap.Stats.ElapsedTime),
		"lastRequestPayload":  snap.LastRequest,
		"lastResponsePayload": snap.LastResponse,
	})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Settings())
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req models.Settings
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	if req.WebhookURL != "" {
		parsed, err := url.Parse(req.WebhookURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid webhook url"))
			return
		}
	}

	s.mu.Lock()
	current := s.settings
	s.settings = sanitizeSettings(req, current)
	saved := s.settings
	s.mu.Unlock()

	if err := util.WriteJSONAtomic(settingsPath(s.cfg), saved); err != nil {
		s.logger.Warn("persist settings", "error", err)
	}

	demoLabel := "OFF"
	if saved.DemoMode {
		demoLabel = "ON"
	}
	s.store.AppendLog("info", fmt.Sprintf("Settings saved. DemoMode=%s Scenario=%s Timeout=%dms Webhook=%s",
		demoLabel, saved.DemoScenario, saved.RequestTimeoutMs, saved.WebhookURL))
	writeJSON(w, http.StatusOK, saved)
}

// sanitizeSettings fills gaps from the current settings and clamps the
// timeout to its floor.
func sanitizeSettings(next, current models.Settings) models.Settings {
	if next.WebhookURL == "" {
		next.WebhookURL = current.WebhookURL
	}
	if next.WebhookURL == "" {
		next.WebhookURL = contract.DefaultWebhookURL
	}
	if next.RequestTimeoutMs <= 0 {
		next.RequestTimeoutMs = current.RequestTimeoutMs
	}
	if next.RequestTimeoutMs <= 0 {
		next.RequestTimeoutMs = contract.DefaultRequestTimeoutMs
	}
	if next.RequestTimeoutMs < contract.MinRequestTimeoutMs {
		next.RequestTimeoutMs = contract.MinRequestTimeoutMs
	}
	if !demo.ValidScenario(next.DemoScenario) {
		next.DemoScenario = demo.ScenarioFastSuccess
	}
	return next
}

func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WebhookURL       string `json:"webhookUrl"`
		RequestTimeoutMs int    `json:"requestTimeoutMs"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
	}
	settings := s.Settings()
	endpoint := req.WebhookURL
	if endpoint == "" {
		endpoint = settings.WebhookURL
	}
	timeoutMs := req.RequestTimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = settings.RequestTimeoutMs
	}

	result := s.transport.TestConnection(r.Context(), endpoint, time.Duration(timeoutMs)*time.Millisecond)
	writeJSON(w, http.StatusOK, map[string]any{
		"state":   result.State,
		"message": result.Message,
		"payload": result.Payload,
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.runRepo == nil {
		writeErr(w, http.StatusServiceUnavailable, fmt.Errorf("run history requires a database"))
		return
	}
	runs, err := s.runRepo.ListRuns(r.Context(), s.cfg.RunHistoryLimit)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleNarration(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(s.narration)
}

// recordRun persists a terminal run outcome when a database is configured.
func (s *Server) recordRun(outcome pipeline.RunOutcome) {
	s.logger.Info("pipeline run finished",
		"runId", outcome.RunID,
		"status", outcome.Status,
		"mode", outcome.Mode,
		"scenes", outcome.SceneCount,
		"duration", outcome.Duration.Round(time.Millisecond).String(),
	)
	if s.runRepo == nil {
		return
	}

	requestJSON, _ := json.Marshal(outcome.Request)
	responseJSON := ""
	if outcome.Response != nil {
		if raw, err := json.Marshal(outcome.Response); err == nil {
			responseJSON = string(raw)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.runRepo.InsertRun(ctx, models.RunRecord{
		RunID:           outcome.RunID,
		Status:          outcome.Status,
		Mode:            outcome.Mode,
		SceneCount:      outcome.SceneCount,
		Battute:         outcome.Battute,
		RequestPayload:  string(requestJSON),
		ResponsePayload: responseJSON,
		FailReason:      outcome.FailReason,
	})
	if err != nil {
		s.logger.Error("record pipeline run", "runId", outcome.RunID, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status >= 500 && status != http.StatusServiceUnavailable:
		if strings.Contains(raw, "connect") || strings.Contains(raw, "dial tcp") || strings.Contains(raw, "connection refused") {
			return apiError{Code: "EG-DB-5002", Message: "Database connection is unavailable. Check local services and retry."}
		}
		return apiError{Code: "EG-API-5000", Message: "Internal server error. Please retry or check service logs."}
	case status == http.StatusServiceUnavailable:
		return apiError{Code: "EG-API-5030", Message: "Run history is not available without a configured database."}
	case status == http.StatusBadRequest:
		msg := "Invalid request. Check inputs and retry."
		switch {
		case strings.Contains(raw, "no file provided"):
			msg = "No PDF file was provided."
		case strings.Contains(raw, "not a pdf"):
			msg = "Only PDF files are accepted."
		case strings.Contains(raw, "invalid json"):
			msg = "Malformed JSON request body."
		case strings.Contains(raw, "invalid webhook url"):
			msg = "The webhook URL is not a valid absolute URL."
		}
		return apiError{Code: "EG-API-4001", Message: msg}
	case status == http.StatusNotFound:
		return apiError{Code: "EG-API-4004", Message: "Requested resource was not found."}
	case status == http.StatusConflict:
		msg := "Operation conflicts with current state."
		switch {
		case strings.Contains(raw, "no document loaded"):
			msg = "Load a PDF before starting a generation."
		case strings.Contains(raw, "already in progress"):
			msg = "A generation is already in progress."
		}
		return apiError{Code: "EG-API-4009", Message: msg}
	case status == http.StatusMethodNotAllowed:
		return apiError{Code: "EG-API-4005", Message: "This endpoint does not support the requested method."}
	}
	return apiError{Code: "EG-API-4000", Message: "Request failed."}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).Round(time.Microsecond).String(),
			"requestId", middleware.GetReqID(r.Context()),
		)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
