package contract

// Storyboard is the typed view of data.storyboard lifted out of a validated
// envelope.
type Storyboard struct {
	Title         string
	TotalScenes   int
	TotalDuration float64
	Scenes        []RawScene
}

// RawScene is one backend scene record. Every field except SceneNumber may be
// absent or malformed; extraction degrades such fields to their zero value and
// the normalizer repairs them.
type RawScene struct {
	SceneNumber     *float64
	Title           string
	NarrationScript string
	ImagePath       string
	AudioPath       string
	Duration        float64
}

// StoryboardFromPayload extracts the storyboard from an envelope. Tolerant:
// missing pieces yield an empty storyboard rather than an error; shape
// enforcement belongs to ValidateResponseShape.
func StoryboardFromPayload(payload map[string]any) Storyboard {
	data, _ := payload["data"].(map[string]any)
	raw, _ := data["storyboard"].(map[string]any)
	if raw == nil {
		return Storyboard{}
	}
	sb := Storyboard{Title: stringValue(raw["title"])}
	if n, ok := raw["totalScenes"].(float64); ok {
		sb.TotalScenes = int(n)
	}
	if d, ok := raw["totalDuration"].(float64); ok {
		sb.TotalDuration = d
	}
	scenes, _ := raw["scenes"].([]any)
	sb.Scenes = make([]RawScene, 0, len(scenes))
	for _, s := range scenes {
		m, ok := s.(map[string]any)
		if !ok {
			sb.Scenes = append(sb.Scenes, RawScene{})
			continue
		}
		sb.Scenes = append(sb.Scenes, SceneFromMap(m))
	}
	return sb
}

// SceneFromMap extracts one raw scene with per-field type checks.
func SceneFromMap(m map[string]any) RawScene {
	scene := RawScene{
		Title:           stringValue(m["title"]),
		NarrationScript: stringValue(m["narrationScript"]),
		ImagePath:       stringValue(m["imagePath"]),
		AudioPath:       stringValue(m["audioPath"]),
	}
	if n, ok := m["sceneNumber"].(float64); ok {
		scene.SceneNumber = &n
	}
	if d, ok := m["duration"].(float64); ok {
		scene.Duration = d
	}
	return scene
}
