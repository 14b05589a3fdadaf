package store

import (
	"fmt"
	"testing"

	"edugen/internal/contract"
	"edugen/internal/pipeline"
)

func TestSnapshotDefaults(t *testing.T) {
	snap := New().Snapshot()
	if snap.Document != nil {
		t.Fatal("expected no document")
	}
	if snap.Pipeline.Status != pipeline.StatusIdle || snap.Pipeline.Progress != 0 {
		t.Fatalf("pipeline = %+v", snap.Pipeline)
	}
	if len(snap.Pipeline.Steps) != 7 {
		t.Fatalf("steps = %d", len(snap.Pipeline.Steps))
	}
	for _, step := range snap.Pipeline.Steps {
		if step.State != pipeline.StateIdle {
			t.Fatalf("step %s = %s", step.ID, step.State)
		}
	}
	if snap.Warnings == nil || snap.Logs == nil {
		t.Fatal("warnings and logs must serialize as arrays")
	}
}

func TestSetStepStatesPartialUpdate(t *testing.T) {
	s := New()
	s.SetStepStates(map[string]string{"input": pipeline.StateComplete, "parsing": pipeline.StateActive})
	s.SetStepStates(map[string]string{"parsing": pipeline.StateComplete, "llm": pipeline.StateActive})

	states := map[string]string{}
	for _, step := range s.Snapshot().Pipeline.Steps {
		states[step.ID] = step.State
	}
	if states["input"] != pipeline.StateComplete {
		t.Fatalf("input = %s, want complete to survive partial update", states["input"])
	}
	if states["parsing"] != pipeline.StateComplete || states["llm"] != pipeline.StateActive {
		t.Fatalf("states = %v", states)
	}
	if states["voice"] != pipeline.StateIdle {
		t.Fatalf("voice = %s", states["voice"])
	}
}

func TestSetStepStatesIgnoresUnknownNodes(t *testing.T) {
	s := New()
	s.SetStepStates(map[string]string{"parallel": pipeline.StateActive, "bogus": pipeline.StateError})
	for _, step := range s.Snapshot().Pipeline.Steps {
		if step.State != pipeline.StateIdle {
			t.Fatalf("step %s = %s", step.ID, step.State)
		}
	}
}

func TestAppendLogsDefaults(t *testing.T) {
	s := New()
	s.AppendLogs([]contract.LogEntry{
		{Time: "10:00:01", Type: "success", Message: "done"},
		{Message: "bare"},
	})
	logs := s.Snapshot().Logs
	if len(logs) != 2 {
		t.Fatalf("logs = %d", len(logs))
	}
	if logs[0].Timestamp != "10:00:01" || logs[0].Type != "success" {
		t.Fatalf("log = %+v", logs[0])
	}
	if logs[1].Type != "info" || logs[1].Timestamp == "" || logs[1].ID == "" {
		t.Fatalf("log = %+v", logs[1])
	}
}

func TestLogCap(t *testing.T) {
	s := New()
	for i := 0; i < maxLogEntries+25; i++ {
		s.AppendLog("info", fmt.Sprintf("line %d", i))
	}
	logs := s.Snapshot().Logs
	if len(logs) != maxLogEntries {
		t.Fatalf("logs = %d, want %d", len(logs), maxLogEntries)
	}
	if logs[len(logs)-1].Message != fmt.Sprintf("line %d", maxLogEntries+24) {
		t.Fatalf("last = %q", logs[len(logs)-1].Message)
	}
}

func TestResetPipelineRunKeepsDocumentAndSnapshots(t *testing.T) {
	s := New()
	s.SetDocument(DocumentView{Name: "lezione.pdf", Pages: 12})
	payload := contract.BuildRequestPayload("lezione.pdf", "", "storia", "didattico")
	s.SetLastRequest(payload)
	s.SetLastResponse(map[string]any{"success": true})
	s.SetPipelineStatus(pipeline.StatusComplete)
	s.SetProgress(100)
	s.AppendLog("success", "done")
	s.SetStats(pipeline.Stats{Tokens: 10, ScenesGenerated: 6, Battute: 900})

	s.ResetPipelineRun()
	snap := s.Snapshot()
	if snap.Document == nil || snap.Document.Name != "lezione.pdf" {
		t.Fatalf("document = %+v", snap.Document)
	}
	if snap.LastRequest == nil || snap.LastRequest.RequestID != payload.RequestID {
		t.Fatal("last request should survive a run reset")
	}
	if snap.LastResponse == nil {
		t.Fatal("last response should survive a run reset")
	}
	if snap.Pipeline.Status != pipeline.StatusIdle || snap.Pipeline.Progress != 0 {
		t.Fatalf("pipeline = %+v", snap.Pipeline)
	}
	if len(snap.Logs) != 0 || snap.Stats.Tokens != 0 {
		t.Fatalf("logs = %d, stats = %+v", len(snap.Logs), snap.Stats)
	}
}

func TestClearDocumentResetsEverything(t *testing.T) {
	s := New()
	s.SetDocument(DocumentView{Name: "lezione.pdf"})
	s.SetPipelineStatus(pipeline.StatusProcessing)
	s.AppendLog("info", "running")

	s.ClearDocument()
	snap := s.Snapshot()
	if snap.Document != nil {
		t.Fatal("document should be gone")
	}
	if snap.Pipeline.Status != pipeline.StatusIdle || len(snap.Logs) != 0 {
		t.Fatalf("snapshot = %+v", snap.Pipeline)
	}
}

func TestElapsedCounter(t *testing.T) {
	s := New()
	s.IncrementElapsed()
	s.IncrementElapsed()
	if got := s.Snapshot().Stats.ElapsedTime; got != 2 {
		t.Fatalf("elapsed = %d", got)
	}
	s.ResetElapsed()
	if got := s.Snapshot().Stats.ElapsedTime; got != 0 {
		t.Fatalf("elapsed = %d", got)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	s := New()
	s.SetWarnings([]contract.Warning{{Code: "X", Message: "m"}})
	snap := s.Snapshot()
	snap.Warnings[0].Message = "mutated"
	if s.Snapshot().Warnings[0].Message != "m" {
		t.Fatal("snapshot must not alias store state")
	}
}
