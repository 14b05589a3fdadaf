// Package store holds the presentation state the console renders: document,
// pipeline graph, output, warnings, logs and counters. It is the single
// source the state endpoint reads from.
package store

import (
	"sync"
	"time"

	"edugen/internal/contract"
	"edugen/internal/pipeline"

	"github.com/google/uuid"
)

// Logs are capped so a long-lived session cannot grow without bound.
const maxLogEntries = 500

var stepDefinitions = []struct {
	ID    string
	Label string
}{
	{"input", "Input PDF"},
	{"parsing", "Parsing"},
	{"llm", "LLM Analysis"},
	{"style", "Style Engine"},
	{"image", "Image Generation"},
	{"voice", "Voice Synthesis"},
	{"output", "Output"},
}

// LogRecord is one rendered console log line.
type LogRecord struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Message   string `json:"message"`
}

// Step is one node of the pipeline graph.
type Step struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	State string `json:"state"`
}

// PipelineState is the visual state of the run in progress.
type PipelineState struct {
	Status      string `json:"status"`
	CurrentStep string `json:"currentStep"`
	Progress    int    `json:"progress"`
	Steps       []Step `json:"steps"`
}

// DocumentView is the loaded document as shown to the console.
type DocumentView struct {
	Name       string `json:"name"`
	Pages      int    `json:"pages"`
	Words      int    `json:"words"`
	Size       int64  `json:"size"`
	Subject    string `json:"subject"`
	Language   string `json:"language"`
	Complexity string `json:"complexity"`
}

// StatsView extends run counters with wall-clock seconds.
type StatsView struct {
	Tokens          int `json:"tokens"`
	ElapsedTime     int `json:"elapsedTime"`
	ScenesGenerated int `json:"scenesGenerated"`
	Battute         int `json:"battute"`
}

// Snapshot is a consistent copy of the whole presentation state.
type Snapshot struct {
	Document     *DocumentView            `json:"document"`
	Pipeline     PipelineState            `json:"pipeline"`
	Output       pipeline.Output          `json:"output"`
	Warnings     []contract.Warning       `json:"warnings"`
	Logs         []LogRecord              `json:"logs"`
	Stats        StatsView                `json:"stats"`
	LastRequest  *contract.RequestPayload `json:"lastRequestPayload"`
	LastResponse map[string]any           `json:"lastResponsePayload"`
}

// Store is a thread-safe presentation state container. It satisfies
// pipeline.StateSink.
type Store struct {
	mu           sync.RWMutex
	document     *DocumentView
	status       string
	currentStep  string
	progress     int
	stepStates   map[string]string
	output       pipeline.Output
	warnings     []contract.Warning
	logs         []LogRecord
	stats        StatsView
	lastRequest  *contract.RequestPayload
	lastResponse map[string]any
}

func New() *Store {
	return &Store{
		status:      pipeline.StatusIdle,
		currentStep: "Waiting",
		stepStates:  initialStepStates(),
	}
}

func initialStepStates() map[string]string {
	states := make(map[string]string, len(stepDefinitions))
	for _, def := range stepDefinitions {
		states[def.ID] = pipeline.StateIdle
	}
	return states
}

// SetDocument installs the document view and wipes state from any previous
// one.
func (s *Store) SetDocument(doc DocumentView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.document = &doc
}

// ClearDocument removes the document and resets everything derived from it.
func (s *Store) ClearDocument() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.document = nil
	s.resetRunLocked()
}

func (s *Store) SetPipelineStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func (s *Store) SetCurrentStep(step string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentStep = step
}

func (s *Store) SetProgress(progress int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = progress
}

// SetStepStates applies a partial update: named nodes change, unnamed nodes
// keep their state, unknown names are dropped.
func (s *Store) SetStepStates(states map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, state := range states {
		if _, ok := s.stepStates[id]; ok {
			s.stepStates[id] = state
		}
	}
}

func (s *Store) AppendLog(logType, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLogLocked(LogRecord{
		ID:        uuid.NewString(),
		Timestamp: time.Now().Format("15:04:05"),
		Type:      logType,
		Message:   message,
	})
}

func (s *Store) AppendLogs(entries []contract.LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range entries {
		timestamp := entry.Time
		if timestamp == "" {
			timestamp = time.Now().Format("15:04:05")
		}
		logType := entry.Type
		if logType == "" {
			logType = "info"
		}
		s.appendLogLocked(LogRecord{
			ID:        uuid.NewString(),
			Timestamp: timestamp,
			Type:      logType,
			Message:   entry.Message,
		})
	}
}

func (s *Store) appendLogLocked(record LogRecord) {
	s.logs = append(s.logs, record)
	if len(s.logs) > maxLogEntries {
		s.logs = s.logs[len(s.logs)-maxLogEntries:]
	}
}

func (s *Store) SetWarnings(warnings []contract.Warning) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = warnings
}

func (s *Store) SetOutput(output pipeline.Output) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.output = output
}

func (s *Store) SetStats(stats pipeline.Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Tokens = stats.Tokens
	s.stats.ScenesGenerated = stats.ScenesGenerated
	s.stats.Battute = stats.Battute
}

func (s *Store) ResetElapsed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.ElapsedTime = 0
}

func (s *Store) IncrementElapsed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.ElapsedTime++
}

// ResetPipelineRun clears pipeline, output, logs and stats while keeping the
// document and the request/response snapshots.
func (s *Store) ResetPipelineRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetRunLocked()
}

func (s *Store) resetRunLocked() {
	s.status = pipeline.StatusIdle
	s.currentStep = "Waiting"
	s.progress = 0
	s.stepStates = initialStepStates()
	s.output = pipeline.Output{}
	s.warnings = nil
	s.logs = nil
	s.stats = StatsView{}
}

func (s *Store) SetLastRequest(payload contract.RequestPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRequest = &payload
}

func (s *Store) SetLastResponse(payload map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastResponse = payload
}

// Snapshot copies the whole state under one read lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	steps := make([]Step, len(stepDefinitions))
	for i, def := range stepDefinitions {
		steps[i] = Step{ID: def.ID, Label: def.Label, State: s.stepStates[def.ID]}
	}

	snap := Snapshot{
		Pipeline: PipelineState{
			Status:      s.status,
			CurrentStep: s.currentStep,
			Progress:    s.progress,
			Steps:       steps,
		},
		Output:       s.output,
		Warnings:     append([]contract.Warning(nil), s.warnings...),
		Logs:         append([]LogRecord(nil), s.logs...),
		Stats:        s.stats,
		LastResponse: s.lastResponse,
	}
	if snap.Warnings == nil {
		snap.Warnings = []contract.Warning{}
	}
	if snap.Logs == nil {
		snap.Logs = []LogRecord{}
	}
	if s.document != nil {
		doc := *s.document
		snap.Document = &doc
	}
	if s.lastRequest != nil {
		req := *s.lastRequest
		snap.LastRequest = &req
	}
	return snap
}
