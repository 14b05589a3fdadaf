// Package contract defines the request payload sent to the automation
// webhook and validates the untrusted response envelope coming back.
package contract

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultWebhookURL       = "http://localhost:5678/webhook/edugen-process"
	DefaultRequestTimeoutMs = 60000
	MinRequestTimeoutMs     = 5000

	UISource = "edugen-ui"

	ModeLive = "live"
	ModeDemo = "demo"
)

// Warning codes emitted by the normalizer and accepted from the backend.
const (
	CodeSceneTitleMissing  = "SCENE_TITLE_MISSING"
	CodeSceneScriptMissing = "SCENE_SCRIPT_MISSING"
	CodeSceneImageMissing  = "SCENE_IMAGE_MISSING"
	CodeSceneAudioMissing  = "SCENE_AUDIO_MISSING"
	CodeBackendWarning     = "BACKEND_WARNING"
)

const (
	SeverityWarning = "warning"
	SeverityError   = "error"

	SourceBackend    = "backend"
	SourceUIFallback = "ui-fallback"
)

// PipelineStages is the fixed stage set, in visual order.
var PipelineStages = []string{"input", "parsing", "llm", "style", "voice", "image", "output"}

var stageSet = map[string]struct{}{
	"input": {}, "parsing": {}, "llm": {}, "style": {}, "voice": {}, "image": {}, "output": {},
}

var statusSet = map[string]struct{}{
	"idle": {}, "active": {}, "complete": {}, "error": {},
}

// RequestPayload is the outbound webhook body. Immutable once built; the
// request ID is the correlation key for the whole run.
type RequestPayload struct {
	RequestID   string `json:"requestId"`
	PDFPath     string `json:"pdfPath"`
	PDFContent  string `json:"pdfContent,omitempty"`
	StyleModule string `json:"styleModule"`
	VideoPreset string `json:"videoPreset"`
	SentAt      string `json:"sentAt"`
	UISource    string `json:"uiSource"`
}

// BuildRequestPayload creates the webhook payload for one submission. The
// request ID is a millisecond timestamp plus a random hex suffix, unique with
// overwhelming probability.
func BuildRequestPayload(pdfPath, pdfContent, styleModule, videoPreset string) RequestPayload {
	return RequestPayload{
		RequestID:   newRequestID(),
		PDFPath:     pdfPath,
		PDFContent:  pdfContent,
		StyleModule: styleModule,
		VideoPreset: videoPreset,
		SentAt:      time.Now().UTC().Format(time.RFC3339),
		UISource:    UISource,
	}
}

func newRequestID() string {
	buf := make([]byte, 3)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("req_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(buf))
}

// LogEntry is a single console log line, either local or backend-supplied.
type LogEntry struct {
	Time    string `json:"time"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Warning describes a degraded-but-valid condition for one run.
type Warning struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Message     string `json:"message"`
	SceneNumber *int   `json:"sceneNumber"`
	Severity    string `json:"severity"`
	Source      string `json:"source"`
}

// DedupeKey identifies a warning for merge purposes.
func (w Warning) DedupeKey() string {
	scene := "na"
	if w.SceneNumber != nil {
		scene = fmt.Sprintf("%d", *w.SceneNumber)
	}
	return w.Code + "|" + scene + "|" + w.Message
}

// TraceEntry is one backend-reported stage/status pair.
type TraceEntry struct {
	Stage  string `json:"stage"`
	Status string `json:"status"`
}

// Validation accumulates every shape violation found in a response envelope.
type Validation struct {
	Valid  bool
	Errors []string
}

// ValidateResponseShape checks the envelope against the response contract.
// It accumulates all violations instead of failing fast; callers log the full
// list. The stricter contract applies: requestId and mode are required.
func ValidateResponseShape(payload map[string]any) Validation {
	if payload == nil {
		return Validation{Valid: false, Errors: []string{"response is not an object"}}
	}

	var errs []string
	if _, ok := payload["success"].(bool); !ok {
		errs = append(errs, "missing/invalid `success` (boolean)")
	}
	if id, ok := payload["requestId"].(string); !ok || strings.TrimSpace(id) == "" {
		errs = append(errs, "missing/invalid `requestId` (non-empty string)")
	}
	if mode, ok := payload["mode"].(string); !ok || (mode != ModeLive && mode != ModeDemo) {
		errs = append(errs, "missing/invalid `mode` (expected \"live\" or \"demo\")")
	}

	data, ok := payload["data"].(map[string]any)
	if !ok {
		errs = append(errs, "missing/invalid `data` object")
	}
	var storyboard map[string]any
	if data != nil {
		storyboard, ok = data["storyboard"].(map[string]any)
	}
	if storyboard == nil {
		errs = append(errs, "missing/invalid `data.storyboard` object")
	} else {
		scenes, ok := storyboard["scenes"].([]any)
		if !ok {
			errs = append(errs, "missing/invalid `data.storyboard.scenes` (array)")
		} else {
			for i, raw := range scenes {
				scene, ok := raw.(map[string]any)
				if !ok {
					errs = append(errs, fmt.Sprintf("scene %d: not an object", i+1))
					continue
				}
				if _, ok := scene["sceneNumber"].(float64); !ok {
					errs = append(errs, fmt.Sprintf("scene %d: missing/invalid sceneNumber", i+1))
				}
			}
		}
	}

	if logs, present := payload["logs"]; present && logs != nil {
		if _, ok := logs.([]any); !ok {
			errs = append(errs, "invalid `logs` field (must be array if present)")
		}
	}

	return Validation{Valid: len(errs) == 0, Errors: errs}
}

// NormalizeInboundLogs is a tolerant pass through backend log entries:
// non-object entries are dropped, missing fields get defaults.
func NormalizeInboundLogs(raw any) []LogEntry {
	entries, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]LogEntry, 0, len(entries))
	for _, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		entry := LogEntry{
			Time:    stringValue(m["time"]),
			Type:    stringValue(m["type"]),
			Message: stringValue(m["message"]),
		}
		if entry.Time == "" {
			entry.Time = time.Now().Format("15:04:05")
		}
		if entry.Type == "" {
			entry.Type = "info"
		}
		out = append(out, entry)
	}
	return out
}

// NormalizeInboundWarnings keeps backend warnings that carry a non-empty
// message, defaulting code and severity and tagging them as backend-sourced.
func NormalizeInboundWarnings(raw any) []Warning {
	entries, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]Warning, 0, len(entries))
	for _, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		message := strings.TrimSpace(stringValue(m["message"]))
		if message == "" {
			continue
		}
		w := Warning{
			ID:       uuid.NewString(),
			Code:     stringValue(m["code"]),
			Message:  message,
			Severity: SeverityWarning,
			Source:   SourceBackend,
		}
		if w.Code == "" {
			w.Code = CodeBackendWarning
		}
		if stringValue(m["severity"]) == SeverityError {
			w.Severity = SeverityError
		}
		if n, ok := m["sceneNumber"].(float64); ok {
			scene := int(n)
			w.SceneNumber = &scene
		}
		out = append(out, w)
	}
	return out
}

// IsValidProgressTrace reports whether raw is a usable backend progress trace:
// a non-empty sequence whose entries all carry a known stage and status.
func IsValidProgressTrace(raw any) bool {
	return ParseProgressTrace(raw) != nil
}

// ParseProgressTrace returns the typed trace, or nil when the trace is absent
// or malformed. A nil result is never fatal; callers fall back to synthetic
// animation.
func ParseProgressTrace(raw any) []TraceEntry {
	entries, ok := raw.([]any)
	if !ok || len(entries) == 0 {
		return nil
	}
	out := make([]TraceEntry, 0, len(entries))
	for _, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			return nil
		}
		stage := stringValue(m["stage"])
		status := stringValue(m["status"])
		if _, ok := stageSet[stage]; !ok {
			return nil
		}
		if _, ok := statusSet[status]; !ok {
			return nil
		}
		out = append(out, TraceEntry{Stage: stage, Status: status})
	}
	return out
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}
