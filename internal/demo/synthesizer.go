// Package demo fabricates webhook responses locally so the console can be
// exercised without a reachable backend. The fabricated envelope goes through
// the same validation and normalization path as a live one.
package demo

import (
	"fmt"
	"time"

	"edugen/internal/storyboard"
)

// Demo scenarios. Each one produces a well-formed envelope; degraded-media
// additionally strips media from every even-numbered scene.
const (
	ScenarioFastSuccess   = "fast-success"
	ScenarioSlowSuccess   = "slow-success"
	ScenarioDegradedMedia = "degraded-media"
)

var scenarios = map[string]bool{
	ScenarioFastSuccess:   true,
	ScenarioSlowSuccess:   true,
	ScenarioDegradedMedia: true,
}

func ValidScenario(name string) bool { return scenarios[name] }

// BuildResponse fabricates a complete response envelope for the given run.
// audioURL is where the synthetic narration track is served.
func BuildResponse(requestID, styleKey, pdfName, scenario, audioURL string) map[string]any {
	presetScenes := storyboard.FallbackStoryboard(styleKey)
	degraded := scenario == ScenarioDegradedMedia

	warnings := make([]any, 0)
	scenes := make([]any, 0, len(presetScenes))
	for _, scene := range presetScenes {
		stripped := degraded && scene.Number%2 == 0
		if stripped {
			warnings = append(warnings,
				map[string]any{
					"code":        "SCENE_AUDIO_MISSING",
					"message":     fmt.Sprintf("Scene %d missing audioPath", scene.Number),
					"sceneNumber": float64(scene.Number),
					"severity":    "warning",
				},
				map[string]any{
					"code":        "SCENE_IMAGE_MISSING",
					"message":     fmt.Sprintf("Scene %d missing imagePath", scene.Number),
					"sceneNumber": float64(scene.Number),
					"severity":    "warning",
				})
		}

		imagePath := scene.ImageURL
		audioPath := audioURL
		if stripped {
			imagePath = ""
			audioPath = ""
		}
		// Numbers go in as float64 so the envelope is indistinguishable
		// from a JSON-decoded one.
		scenes = append(scenes, map[string]any{
			"sceneNumber":     float64(scene.Number),
			"title":           scene.Title,
			"narrationScript": fmt.Sprintf("Script demo scena %d per %s. Contenuto narrativo generato a scopo di presentazione.", scene.Number, pdfName),
			"imagePath":       imagePath,
			"audioPath":       audioPath,
			"duration":        float64(20),
		})
	}

	return map[string]any{
		"success":   true,
		"requestId": requestID,
		"mode":      "demo",
		"data": map[string]any{
			"storyboard": map[string]any{
				"title":         "Storyboard Demo",
				"totalScenes":   float64(len(scenes)),
				"totalDuration": float64(len(scenes) * 20),
				"scenes":        scenes,
			},
		},
		"warnings": warnings,
		"logs": []any{
			map[string]any{
				"time":    time.Now().Format("15:04:05"),
				"type":    "info",
				"message": "Modalità demo locale attiva.",
			},
		},
		"progressTrace": progressTrace(),
		"demoAudioUrl":  audioURL,
	}
}

// progressTrace covers every visual stage so replaying it walks the whole
// graph to completion.
func progressTrace() []any {
	stages := []string{"input", "parsing", "llm", "style", "voice", "image", "output"}
	trace := make([]any, len(stages))
	base := time.Now()
	for i, stage := range stages {
		trace[i] = map[string]any{
			"stage":  stage,
			"status": "complete",
			"time":   base.Add(time.Duration(i) * time.Second).Format("15:04:05"),
		}
	}
	return trace
}
