package demo

import (
	"encoding/binary"
	"testing"

	"edugen/internal/contract"
)

func TestBuildResponsePassesValidation(t *testing.T) {
	for _, scenario := range []string{ScenarioFastSuccess, ScenarioSlowSuccess, ScenarioDegradedMedia} {
		t.Run(scenario, func(t *testing.T) {
			resp := BuildResponse("req_1_abc", "storia", "lezione.pdf", scenario, "/demo/narration.wav")
			validation := contract.ValidateResponseShape(resp)
			if !validation.Valid {
				t.Fatalf("invalid envelope: %v", validation.Errors)
			}
			if resp["mode"] != "demo" || resp["requestId"] != "req_1_abc" {
				t.Fatalf("envelope = %v", resp)
			}
		})
	}
}

func TestBuildResponseDegradedMedia(t *testing.T) {
	resp := BuildResponse("req_1_abc", "scienze", "lezione.pdf", ScenarioDegradedMedia, "/demo/narration.wav")

	scenes := resp["data"].(map[string]any)["storyboard"].(map[string]any)["scenes"].([]any)
	for _, s := range scenes {
		scene := s.(map[string]any)
		n := int(scene["sceneNumber"].(float64))
		stripped := n%2 == 0
		if stripped && (scene["imagePath"] != "" || scene["audioPath"] != "") {
			t.Fatalf("scene %d should have no media: %v", n, scene)
		}
		if !stripped && (scene["imagePath"] == "" || scene["audioPath"] == "") {
			t.Fatalf("scene %d should keep media: %v", n, scene)
		}
	}

	warnings := resp["warnings"].([]any)
	// Two warnings per stripped scene.
	if len(warnings) != 2*(len(scenes)/2) {
		t.Fatalf("warnings = %d", len(warnings))
	}
}

func TestBuildResponseSuccessHasNoWarnings(t *testing.T) {
	resp := BuildResponse("req_1_abc", "arte", "lezione.pdf", ScenarioFastSuccess, "/demo/narration.wav")
	if warnings := resp["warnings"].([]any); len(warnings) != 0 {
		t.Fatalf("warnings = %v", warnings)
	}
}

func TestBuildResponseProgressTraceCoversAllStages(t *testing.T) {
	resp := BuildResponse("req_1_abc", "storia", "lezione.pdf", ScenarioFastSuccess, "/demo/narration.wav")
	trace := contract.ParseProgressTrace(resp["progressTrace"])
	if len(trace) != len(contract.PipelineStages) {
		t.Fatalf("trace = %d entries, want %d", len(trace), len(contract.PipelineStages))
	}
	for _, entry := range trace {
		if entry.Status != "complete" {
			t.Fatalf("trace entry = %+v", entry)
		}
	}
}

func TestValidScenario(t *testing.T) {
	if !ValidScenario(ScenarioDegradedMedia) || ValidScenario("chaos") {
		t.Fatal("scenario validation broken")
	}
}

func TestNarrationWAVHeader(t *testing.T) {
	wav := NarrationWAV(2)
	if len(wav) != 44+2*sampleRate*2 {
		t.Fatalf("length = %d", len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[36:40]) != "data" {
		t.Fatal("bad RIFF header")
	}
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != sampleRate {
		t.Fatalf("sample rate = %d", rate)
	}
	if channels := binary.LittleEndian.Uint16(wav[22:24]); channels != 1 {
		t.Fatalf("channels = %d", channels)
	}
	if dataLen := binary.LittleEndian.Uint32(wav[40:44]); int(dataLen) != len(wav)-44 {
		t.Fatalf("data length = %d", dataLen)
	}
}
