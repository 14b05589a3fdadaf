package models

import "time"

// Document is the loaded source PDF plus the lightweight analysis shown in the
// console's input panel. Content carries the full PDF as a base64 data URL so
// it can travel inside the webhook payload.
type Document struct {
	Name       string `json:"name"`
	Pages      int    `json:"pages"`
	Words      int    `json:"words"`
	Size       int64  `json:"size"`
	Content    string `json:"-"`
	Subject    string `json:"subject"`
	Language   string `json:"language"`
	Complexity string `json:"complexity"`
}

// Settings is the integration surface owned by the settings UI and consumed by
// the orchestrator at the start of each run.
type Settings struct {
	WebhookURL       string `json:"webhookUrl"`
	RequestTimeoutMs int    `json:"requestTimeoutMs"`
	DemoMode         bool   `json:"demoMode"`
	DemoScenario     string `json:"demoScenario"`
}

// RunRecord is the persisted snapshot of one terminal generation attempt.
type RunRecord struct {
	RunID           string    `json:"run_id"`
	Status          string    `json:"status"`
	Mode            string    `json:"mode"`
	SceneCount      int       `json:"scene_count"`
	Battute         int       `json:"battute"`
	RequestPayload  string    `json:"request_payload,omitempty"`
	ResponsePayload string    `json:"response_payload,omitempty"`
	FailReason      string    `json:"fail_reason,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
