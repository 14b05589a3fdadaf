// Package pipeline drives a generation run end to end: request dispatch,
// synthetic stage animation while waiting, response validation, scene
// normalization and the final state transition. All presentation state goes
// through a StateSink; the orchestrator never reads it back.
package pipeline

import (
	"edugen/internal/contract"
	"edugen/internal/storyboard"
)

// Output is the renderable result of a completed run.
type Output struct {
	Storyboard    []storyboard.Scene `json:"storyboard"`
	AudioURL      string             `json:"audioUrl,omitempty"`
	AudioDuration float64            `json:"audioDuration"`
}

// Stats are the run counters shown alongside the pipeline.
type Stats struct {
	Tokens          int `json:"tokens"`
	ScenesGenerated int `json:"scenesGenerated"`
	Battute         int `json:"battute"`
}

// StateSink receives every presentation-state mutation. Implementations must
// be safe for concurrent use; the orchestrator only ever writes.
type StateSink interface {
	SetPipelineStatus(status string)
	SetCurrentStep(step string)
	SetProgress(progress int)
	SetStepStates(states map[string]string)
	AppendLog(logType, message string)
	AppendLogs(entries []contract.LogEntry)
	SetWarnings(warnings []contract.Warning)
	SetOutput(output Output)
	SetStats(stats Stats)
	ResetElapsed()
	IncrementElapsed()
	ResetPipelineRun()
	SetLastRequest(payload contract.RequestPayload)
	SetLastResponse(payload map[string]any)
}
