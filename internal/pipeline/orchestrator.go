package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"edugen/internal/contract"
	"edugen/internal/demo"
	"edugen/internal/metrics"
	"edugen/internal/models"
	"edugen/internal/storyboard"
	"edugen/internal/transport"
)

// errStale marks a run superseded by a newer one; no further state may be
// written for it.
var errStale = errors.New("request superseded")

// Transport delivers a request payload and returns the decoded response.
type Transport interface {
	Send(ctx context.Context, payload contract.RequestPayload, opts transport.SendOptions) (map[string]any, error)
}

// Timings control run pacing. Tests compress them.
type Timings struct {
	StageInterval     time.Duration
	TraceReplayDelay  time.Duration
	SlowScenarioDelay time.Duration
	ElapsedTick       time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		StageInterval:     1400 * time.Millisecond,
		TraceReplayDelay:  140 * time.Millisecond,
		SlowScenarioDelay: 1800 * time.Millisecond,
		ElapsedTick:       time.Second,
	}
}

// RunOutcome describes a finished run for history recording.
type RunOutcome struct {
	RunID      string
	Status     string
	Mode       string
	SceneCount int
	Battute    int
	Request    contract.RequestPayload
	Response   map[string]any
	FailReason string
	Duration   time.Duration
}

// GenerateRequest selects the style and rendering preset for a run.
type GenerateRequest struct {
	Style       string
	VideoPreset string
}

// Config wires an Orchestrator.
type Config struct {
	Sink         StateSink
	Transport    Transport
	Settings     func() models.Settings
	DemoAudioURL string
	Timings      Timings
	OnTerminal   func(RunOutcome)
}

// Orchestrator runs one generation at a time. A run is identified by its
// request ID; once a newer run or a document change takes over, everything
// the old run still produces is discarded.
type Orchestrator struct {
	sink         StateSink
	transport    Transport
	settings     func() models.Settings
	demoAudioURL string
	timings      Timings
	onTerminal   func(RunOutcome)

	mu              sync.Mutex
	doc             *models.Document
	status          string
	inFlight        bool
	activeRequestID string
	activeStage     visualStage
	tokens          int
	animStop        chan struct{}
	animDone        chan struct{}
	elapsedStop     chan struct{}
}

func New(cfg Config) *Orchestrator {
	timings := cfg.Timings
	if timings.StageInterval <= 0 {
		timings = DefaultTimings()
	}
	return &Orchestrator{
		sink:         cfg.Sink,
		transport:    cfg.Transport,
		settings:     cfg.Settings,
		demoAudioURL: cfg.DemoAudioURL,
		timings:      timings,
		onTerminal:   cfg.OnTerminal,
		status:       StatusIdle,
		activeStage:  syntheticSequence[0],
	}
}

// LoadDocument installs a new source document. Any in-flight run is
// invalidated and the presentation state starts over.
func (o *Orchestrator) LoadDocument(doc models.Document) {
	o.mu.Lock()
	done := o.stopAnimatorLocked()
	o.stopElapsedLocked()
	o.activeRequestID = ""
	o.inFlight = false
	o.doc = &doc
	o.status = StatusIdle
	o.mu.Unlock()
	if done != nil {
		<-done
	}

	o.sink.ResetPipelineRun()
	o.sink.SetPipelineStatus(StatusIdle)
	o.sink.SetCurrentStep("Ready to generate")
	o.sink.SetProgress(0)
	o.sink.SetStepStates(map[string]string{"input": StateComplete})
	o.sink.AppendLog("success", fmt.Sprintf("PDF loaded: %s (%d pages)", doc.Name, doc.Pages))
}

// ClearDocument removes the document and invalidates any in-flight run.
func (o *Orchestrator) ClearDocument() {
	o.mu.Lock()
	done := o.stopAnimatorLocked()
	o.stopElapsedLocked()
	o.activeRequestID = ""
	o.inFlight = false
	o.doc = nil
	o.status = StatusIdle
	o.mu.Unlock()
	if done != nil {
		<-done
	}

	o.sink.ResetPipelineRun()
	o.sink.AppendLog("info", "Input cleared.")
}

// Close invalidates any in-flight run and stops background tickers.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	done := o.stopAnimatorLocked()
	o.stopElapsedLocked()
	o.activeRequestID = ""
	o.inFlight = false
	o.mu.Unlock()
	if done != nil {
		<-done
	}
}

// run is one reserved generation attempt.
type run struct {
	payload  contract.RequestPayload
	settings models.Settings
	style    string
	doc      models.Document
	started  time.Time
}

// Generate runs the full pipeline synchronously. It reports false without
// touching any state when there is no document or a run is already in
// flight.
func (o *Orchestrator) Generate(ctx context.Context, req GenerateRequest) bool {
	r, ok := o.begin(req)
	if !ok {
		return false
	}
	o.runPipeline(ctx, r)
	return true
}

// Start reserves the run slot synchronously and drives the pipeline in the
// background. The caller learns immediately whether the run was accepted.
func (o *Orchestrator) Start(req GenerateRequest) bool {
	r, ok := o.begin(req)
	if !ok {
		return false
	}
	go o.runPipeline(context.Background(), r)
	return true
}

func (o *Orchestrator) begin(req GenerateRequest) (run, bool) {
	style := req.Style
	if style == "" {
		style = "storia"
	}
	videoPreset := req.VideoPreset
	if videoPreset == "" {
		videoPreset = "didattico"
	}

	o.mu.Lock()
	if o.doc == nil || o.status == StatusProcessing || o.inFlight {
		o.mu.Unlock()
		return run{}, false
	}
	doc := *o.doc
	payload := contract.BuildRequestPayload(doc.Name, doc.Content, style, videoPreset)
	o.inFlight = true
	o.activeRequestID = payload.RequestID
	o.status = StatusProcessing
	o.tokens = 0
	o.activeStage = syntheticSequence[0]
	o.mu.Unlock()

	settings := o.settings()

	o.sink.ResetPipelineRun()
	o.sink.SetWarnings([]contract.Warning{})
	o.sink.ResetElapsed()
	o.sink.SetPipelineStatus(StatusProcessing)
	o.sink.SetCurrentStep("Sending webhook request")
	o.sink.SetProgress(4)
	o.sink.SetStepStates(map[string]string{"input": StateActive})
	o.sink.SetLastRequest(payload)
	// The previous run's response stays visible only until a new run is
	// accepted; mixing it with this run's request would mislead the console.
	o.sink.SetLastResponse(nil)
	o.sink.AppendLog("info", fmt.Sprintf("Request queued. requestId=%s", payload.RequestID))
	o.sink.AppendLog("info", fmt.Sprintf("Sending payload requestId=%s style=%s videoPreset=%s", payload.RequestID, style, videoPreset))

	o.startAnimator(payload.RequestID)
	o.startElapsedTicker(payload.RequestID)

	return run{payload: payload, settings: settings, style: style, doc: doc, started: time.Now()}, true
}

func (o *Orchestrator) runPipeline(ctx context.Context, r run) {
	response, err := o.execute(ctx, r.settings, r.payload, r.style, r.doc.Name)
	o.finish(ctx, r.settings, r.payload, r.style, r.doc, response, err, r.started)
}

func (o *Orchestrator) execute(ctx context.Context, settings models.Settings, payload contract.RequestPayload, style, pdfName string) (map[string]any, error) {
	if settings.DemoMode {
		scenario := settings.DemoScenario
		if !demo.ValidScenario(scenario) {
			scenario = demo.ScenarioFastSuccess
		}
		if scenario == demo.ScenarioSlowSuccess {
			select {
			case <-time.After(o.timings.SlowScenarioDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return demo.BuildResponse(payload.RequestID, style, pdfName, scenario, o.demoAudioURL), nil
	}

	timeout := time.Duration(settings.RequestTimeoutMs) * time.Millisecond
	return o.transport.Send(ctx, payload, transport.SendOptions{
		Endpoint: settings.WebhookURL,
		Timeout:  timeout,
		OnAttempt: func(info transport.AttemptInfo) {
			if info.IsRetry {
				o.sink.AppendLog("warning", fmt.Sprintf("Retry %d/%d to %s (timeout %dms)", info.Attempt, info.TotalAttempts, info.Endpoint, info.Timeout.Milliseconds()))
				return
			}
			o.sink.AppendLog("info", fmt.Sprintf("Request sent to %s (timeout %dms)", info.Endpoint, info.Timeout.Milliseconds()))
		},
		OnResponse: func(info transport.ResponseInfo) {
			o.sink.AppendLog("info", fmt.Sprintf("Response received (HTTP %d, attempt %d)", info.Status, info.Attempt))
		},
	})
}

func (o *Orchestrator) finish(ctx context.Context, settings models.Settings, payload contract.RequestPayload, style string, doc models.Document, response map[string]any, sendErr error, started time.Time) {
	mode := contract.ModeLive
	if settings.DemoMode {
		mode = contract.ModeDemo
	}

	// A superseded run must not leave a single trace, so identity is checked
	// before the response snapshot is stored.
	if !o.isActive(payload.RequestID) {
		return
	}

	o.stopAnimator()
	o.stopElapsed()

	if response != nil {
		o.sink.SetLastResponse(response)
		if settings.DemoMode {
			o.sink.AppendLog("info", "Demo mode active: webhook bypassed, using deterministic local response.")
		}
	}

	runErr := sendErr
	sceneCount := 0
	battute := 0
	if runErr == nil {
		sceneCount, battute, runErr = o.applyResponse(ctx, payload, style, doc, response)
	}
	if errors.Is(runErr, errStale) {
		return
	}
	if runErr != nil {
		if !o.isActive(payload.RequestID) {
			return
		}
		o.failRun(payload, mode, response, runErr)
	}

	o.mu.Lock()
	if o.activeRequestID == payload.RequestID {
		o.activeRequestID = ""
		o.inFlight = false
	}
	status := o.status
	o.mu.Unlock()

	metrics.RecordPipelineRun(status, mode, time.Since(started).Seconds())
	if o.onTerminal != nil {
		failReason := ""
		if runErr != nil {
			failReason = runErr.Error()
		}
		o.onTerminal(RunOutcome{
			RunID:      payload.RequestID,
			Status:     status,
			Mode:       mode,
			SceneCount: sceneCount,
			Battute:    battute,
			Request:    payload,
			Response:   response,
			FailReason: failReason,
			Duration:   time.Since(started),
		})
	}
}

// applyResponse validates the envelope, normalizes the storyboard and walks
// the presentation state to completion.
func (o *Orchestrator) applyResponse(ctx context.Context, payload contract.RequestPayload, style string, doc models.Document, response map[string]any) (int, int, error) {
	if success, ok := response["success"].(bool); ok && !success {
		message := "backend responded with success=false"
		if m, ok := response["message"].(string); ok && m != "" {
			message = m
		}
		return 0, 0, errors.New(message)
	}

	responseID, _ := response["requestId"].(string)
	if responseID != payload.RequestID {
		return 0, 0, fmt.Errorf("requestId mismatch: expected %s, received %s", payload.RequestID, responseID)
	}
	o.sink.AppendLog("info", fmt.Sprintf("Response matched requestId=%s", responseID))
	o.sink.AppendLog("info", "Validating response contract...")

	validation := contract.ValidateResponseShape(response)
	if !validation.Valid {
		return 0, 0, fmt.Errorf("invalid response contract: %s", strings.Join(validation.Errors, " | "))
	}
	o.sink.AppendLog("success", "Response validation complete.")

	if inbound := contract.NormalizeInboundLogs(response["logs"]); len(inbound) > 0 {
		o.sink.AppendLogs(inbound)
	}
	inboundWarnings := contract.NormalizeInboundWarnings(response["warnings"])

	sb := contract.StoryboardFromPayload(response)
	fallbackAudio, _ := response["demoAudioUrl"].(string)
	result := storyboard.Normalize(sb.Scenes, style, fallbackAudio)
	if len(result.Scenes) == 0 {
		return 0, 0, errors.New("no scenes received from backend")
	}

	merged := dedupeWarnings(append(inboundWarnings, result.Warnings...))
	o.sink.SetWarnings(merged)
	for _, warning := range merged {
		o.sink.AppendLog(warning.Severity, warning.Message)
	}
	if result.PlayableAudioCount == 0 {
		o.sink.AppendLog("warning", "No playable audio track received from backend.")
	}

	battute := 0
	for _, scene := range result.Scenes {
		battute += utf8.RuneCountInString(scene.NarrationScript)
	}
	totalDuration := sb.TotalDuration
	if !(totalDuration > 0) {
		totalDuration = math.Max(1, math.Round(float64(battute)/900*60))
	}

	if trace := contract.ParseProgressTrace(response["progressTrace"]); trace != nil {
		if err := o.replayTrace(ctx, payload.RequestID, trace); err != nil {
			return 0, 0, err
		}
	}

	if !o.isActive(payload.RequestID) {
		return 0, 0, errStale
	}

	o.sink.SetOutput(Output{
		Storyboard:    result.Scenes,
		AudioURL:      result.Scenes[0].AudioPath,
		AudioDuration: totalDuration,
	})
	o.mu.Lock()
	tokens := doc.Words * 2
	if o.tokens > tokens {
		tokens = o.tokens
	}
	o.tokens = tokens
	o.status = StatusComplete
	o.mu.Unlock()
	o.sink.SetStats(Stats{Tokens: tokens, ScenesGenerated: len(result.Scenes), Battute: battute})
	o.sink.SetPipelineStatus(StatusComplete)
	o.sink.SetCurrentStep("Completed")
	o.sink.SetProgress(100)
	o.sink.SetStepStates(completeMap())
	o.sink.AppendLog("success", fmt.Sprintf("Pipeline complete. Scenes generated: %d", len(result.Scenes)))
	return len(result.Scenes), battute, nil
}

func (o *Orchestrator) failRun(payload contract.RequestPayload, mode string, response map[string]any, runErr error) {
	o.mu.Lock()
	stage := o.activeStage
	o.status = StatusError
	o.mu.Unlock()

	states := toStateMap(stage)
	for _, id := range stage.Active {
		states[id] = StateError
	}
	o.sink.SetPipelineStatus(StatusError)
	o.sink.SetCurrentStep("Backend error")
	o.sink.SetStepStates(states)
	o.sink.AppendLog("error", fmt.Sprintf("Pipeline error: %s", runErr))
	o.sink.SetWarnings([]contract.Warning{})
	if response == nil {
		o.sink.SetLastResponse(map[string]any{
			"requestId": payload.RequestID,
			"mode":      mode,
			"error":     runErr.Error(),
		})
	}
}

// replayTrace walks backend-reported stage events through the visual graph,
// pacing them so the transitions are visible. It bails out the moment the
// run loses its identity.
func (o *Orchestrator) replayTrace(ctx context.Context, requestID string, trace []contract.TraceEntry) error {
	o.stopAnimator()

	for _, entry := range trace {
		// ParseProgressTrace only accepts known stages, so the lookup cannot
		// miss as long as traceStageMeta covers the contract stage set.
		meta := traceStageMeta[entry.Stage]

		var applied bool
		switch entry.Status {
		case "complete":
			frame := meta
			frame.Complete = appendUnique(meta.Complete, entry.Stage)
			frame.Active = nil
			applied = o.applyFrame(requestID, frame, toStateMap(frame), meta.Label, meta.Progress)
		case "error":
			states := toStateMap(meta)
			for _, id := range meta.Active {
				states[id] = StateError
			}
			applied = o.applyFrame(requestID, meta, states, meta.Label, meta.Progress)
		default:
			applied = o.applyFrame(requestID, meta, toStateMap(meta), meta.Label, meta.Progress)
		}
		if !applied {
			return errStale
		}

		select {
		case <-time.After(o.timings.TraceReplayDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// applyFrame writes one visual frame, refusing if the run is no longer the
// active one.
func (o *Orchestrator) applyFrame(requestID string, stage visualStage, states map[string]string, label string, progress int) bool {
	o.mu.Lock()
	if o.activeRequestID != requestID {
		o.mu.Unlock()
		return false
	}
	o.activeStage = stage
	o.mu.Unlock()

	o.sink.SetStepStates(states)
	o.sink.SetCurrentStep(label)
	o.sink.SetProgress(min(progress, maxSyntheticProgress))
	return true
}

func (o *Orchestrator) startAnimator(requestID string) {
	o.mu.Lock()
	o.stopAnimatorLocked()
	stop := make(chan struct{})
	done := make(chan struct{})
	o.animStop, o.animDone = stop, done
	o.mu.Unlock()

	first := syntheticSequence[0]
	o.applyFrame(requestID, first, toStateMap(first), first.label(), first.Progress)

	go func() {
		defer close(done)
		ticker := time.NewTicker(o.timings.StageInterval)
		defer ticker.Stop()
		index := 0
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if index < len(syntheticSequence)-1 {
					index++
				}
				stage := syntheticSequence[index]
				if !o.applyFrame(requestID, stage, toStateMap(stage), stage.label(), stage.Progress) {
					return
				}
			}
		}
	}()
}

func (o *Orchestrator) stopAnimator() {
	o.mu.Lock()
	done := o.stopAnimatorLocked()
	o.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (o *Orchestrator) stopAnimatorLocked() chan struct{} {
	if o.animStop != nil {
		close(o.animStop)
		o.animStop = nil
	}
	done := o.animDone
	o.animDone = nil
	return done
}

func (o *Orchestrator) startElapsedTicker(requestID string) {
	stop := make(chan struct{})
	o.mu.Lock()
	o.stopElapsedLocked()
	o.elapsedStop = stop
	o.mu.Unlock()

	go func() {
		ticker := time.NewTicker(o.timings.ElapsedTick)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if o.isActive(requestID) {
					o.sink.IncrementElapsed()
				}
			}
		}
	}()
}

func (o *Orchestrator) stopElapsed() {
	o.mu.Lock()
	o.stopElapsedLocked()
	o.mu.Unlock()
}

func (o *Orchestrator) stopElapsedLocked() {
	if o.elapsedStop != nil {
		close(o.elapsedStop)
		o.elapsedStop = nil
	}
}

func (o *Orchestrator) isActive(requestID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.activeRequestID == requestID
}

// Status returns the current run status.
func (o *Orchestrator) Status() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// HasDocument reports whether a source document is loaded.
func (o *Orchestrator) HasDocument() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.doc != nil
}

func dedupeWarnings(warnings []contract.Warning) []contract.Warning {
	seen := make(map[string]bool, len(warnings))
	deduped := make([]contract.Warning, 0, len(warnings))
	for _, warning := range warnings {
		key := warning.DedupeKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, warning)
	}
	return deduped
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	out := make([]string, 0, len(ids)+1)
	out = append(out, ids...)
	return append(out, id)
}
