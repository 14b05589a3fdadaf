package storyboard

import (
	"fmt"
	"math"
	"strings"

	"edugen/internal/contract"

	"github.com/google/uuid"
)

// Shown in place of narration that the backend has not produced yet.
const placeholderNarration = "Narrazione in elaborazione. Questo testo verrà aggiornato dal backend."

// Scene is a fully resolved scene: every field is renderable, whatever the
// backend sent.
type Scene struct {
	ID              string  `json:"id"`
	Number          int     `json:"number"`
	Title           string  `json:"title"`
	NarrationScript string  `json:"narrationScript"`
	ImageURL        string  `json:"imageUrl"`
	AudioPath       string  `json:"audioPath,omitempty"`
	Duration        float64 `json:"duration"`
}

// Result carries the normalized scenes plus every substitution made.
type Result struct {
	Scenes             []Scene
	Warnings           []contract.Warning
	PlayableAudioCount int
}

// Normalize fills each raw scene's gaps from the style preset and records one
// warning per substituted field. The scene count never changes: a degraded
// scene is repaired, not dropped.
func Normalize(raw []contract.RawScene, styleKey, fallbackAudioURL string) Result {
	fallback := FallbackStoryboard(styleKey)
	result := Result{Scenes: make([]Scene, 0, len(raw))}

	for i, scene := range raw {
		fallbackScene := fallback[i%len(fallback)]
		sceneNumber := i + 1
		if scene.SceneNumber != nil && !math.IsNaN(*scene.SceneNumber) && !math.IsInf(*scene.SceneNumber, 0) {
			sceneNumber = int(*scene.SceneNumber)
		}
		hasTitle := strings.TrimSpace(scene.Title) != ""
		hasNarration := strings.TrimSpace(scene.NarrationScript) != ""
		hasImage := strings.TrimSpace(scene.ImagePath) != ""
		hasAudio := strings.TrimSpace(scene.AudioPath) != ""

		resolvedAudio := scene.AudioPath
		if resolvedAudio == "" {
			resolvedAudio = fallbackAudioURL
		}

		if !hasTitle {
			result.Warnings = append(result.Warnings, fallbackWarning(sceneNumber,
				contract.CodeSceneTitleMissing,
				fmt.Sprintf("Scene %d missing title, using fallback label.", sceneNumber)))
		}
		if !hasNarration {
			result.Warnings = append(result.Warnings, fallbackWarning(sceneNumber,
				contract.CodeSceneScriptMissing,
				fmt.Sprintf("Scene %d missing narrationScript, using placeholder copy.", sceneNumber)))
		}
		if !hasImage {
			result.Warnings = append(result.Warnings, fallbackWarning(sceneNumber,
				contract.CodeSceneImageMissing,
				fmt.Sprintf("Scene %d missing imagePath, using generated placeholder.", sceneNumber)))
		}
		if !hasAudio {
			message := fmt.Sprintf("Scene %d missing audioPath, no audio available.", sceneNumber)
			if resolvedAudio != "" {
				message = fmt.Sprintf("Scene %d missing audioPath, using fallback audio.", sceneNumber)
			}
			result.Warnings = append(result.Warnings, fallbackWarning(sceneNumber,
				contract.CodeSceneAudioMissing, message))
		}
		if resolvedAudio != "" {
			result.PlayableAudioCount++
		}

		title := strings.TrimSpace(scene.Title)
		if !hasTitle {
			title = fmt.Sprintf("Scene %d", sceneNumber)
		}
		narration := scene.NarrationScript
		if !hasNarration {
			narration = placeholderNarration
		}
		image := scene.ImagePath
		if !hasImage {
			image = fallbackScene.ImageURL
		}
		duration := scene.Duration
		if !(duration > 0) {
			duration = 20
		}

		result.Scenes = append(result.Scenes, Scene{
			ID:              fmt.Sprintf("scene_%d", sceneNumber),
			Number:          sceneNumber,
			Title:           title,
			NarrationScript: narration,
			ImageURL:        image,
			AudioPath:       resolvedAudio,
			Duration:        duration,
		})
	}
	return result
}

func fallbackWarning(sceneNumber int, code, message string) contract.Warning {
	n := sceneNumber
	return contract.Warning{
		ID:          uuid.NewString(),
		Code:        code,
		Message:     message,
		SceneNumber: &n,
		Severity:    contract.SeverityWarning,
		Source:      contract.SourceUIFallback,
	}
}
