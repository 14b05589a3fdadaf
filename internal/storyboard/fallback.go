// Package storyboard turns raw storyboard scenes into a fully renderable
// form, filling gaps with style-preset placeholders and recording a warning
// for each substitution.
package storyboard

import (
	"fmt"
	"net/url"
)

// StylePreset drives placeholder visuals for a subject module.
type StylePreset struct {
	Label       string
	Palette     [3]string
	SceneTitles []string
}

var stylePresets = map[string]StylePreset{
	"storia": {
		Label:   "Storia",
		Palette: [3]string{"#4f46e5", "#f59e0b", "#14b8a6"},
		SceneTitles: []string{
			"Contesto storico",
			"Cause principali",
			"Snodo narrativo",
			"Evoluzione degli eventi",
			"Conseguenze",
			"Sintesi finale",
		},
	},
	"scienze": {
		Label:   "Scienze",
		Palette: [3]string{"#0ea5e9", "#22c55e", "#6366f1"},
		SceneTitles: []string{
			"Ipotesi iniziale",
			"Setup sperimentale",
			"Osservazione",
			"Analisi dati",
			"Risultati",
			"Conclusioni",
		},
	},
	"arte": {
		Label:   "Arte",
		Palette: [3]string{"#ec4899", "#f97316", "#8b5cf6"},
		SceneTitles: []string{
			"Introduzione opera",
			"Composizione",
			"Uso della luce",
			"Dettagli simbolici",
			"Contesto culturale",
			"Lettura critica",
		},
	},
}

// StyleLabels maps style keys to their display names, including the
// custom option that has no preset of its own.
var StyleLabels = map[string]string{
	"storia":  "Storia",
	"scienze": "Scienze",
	"arte":    "Arte",
	"custom":  "Custom LoRA",
}

// PresetFor returns the preset for a style key, falling back to storia for
// unknown keys (including "custom").
func PresetFor(styleKey string) StylePreset {
	if preset, ok := stylePresets[styleKey]; ok {
		return preset
	}
	return stylePresets["storia"]
}

// FallbackScene is a preset-derived placeholder scene.
type FallbackScene struct {
	ID       string
	Number   int
	Title    string
	ImageURL string
}

// FallbackStoryboard builds one placeholder scene per preset title, each with
// a generated card image.
func FallbackStoryboard(styleKey string) []FallbackScene {
	preset := PresetFor(styleKey)
	scenes := make([]FallbackScene, len(preset.SceneTitles))
	for i, title := range preset.SceneTitles {
		n := i + 1
		scenes[i] = FallbackScene{
			ID:       fmt.Sprintf("scene_%d", n),
			Number:   n,
			Title:    title,
			ImageURL: sceneDataURL(n, title, preset.Palette),
		}
	}
	return scenes
}

// sceneDataURL renders a gradient title card as an inline SVG data URL so
// placeholder scenes need no asset pipeline.
func sceneDataURL(sceneNumber int, title string, colors [3]string) string {
	svg := fmt.Sprintf(`
    <svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 400 220">
      <defs>
        <linearGradient id="bg" x1="0" y1="0" x2="1" y2="1">
          <stop offset="0%%" stop-color="%s" />
          <stop offset="55%%" stop-color="%s" />
          <stop offset="100%%" stop-color="%s" />
        </linearGradient>
      </defs>
      <rect width="400" height="220" fill="#09090f" />
      <rect x="14" y="14" width="372" height="192" rx="12" fill="url(#bg)" opacity="0.85" />
      <circle cx="328" cy="64" r="44" fill="#ffffff" fill-opacity="0.12" />
      <rect x="34" y="34" width="160" height="18" rx="9" fill="#ffffff" fill-opacity="0.23" />
      <rect x="34" y="66" width="280" height="10" rx="5" fill="#ffffff" fill-opacity="0.16" />
      <rect x="34" y="86" width="218" height="10" rx="5" fill="#ffffff" fill-opacity="0.16" />
      <rect x="34" y="152" width="118" height="34" rx="6" fill="#111827" fill-opacity="0.46" />
      <text x="44" y="174" fill="#ffffff" font-family="Inter, sans-serif" font-size="16" font-weight="700">Scene %d</text>
      <text x="34" y="126" fill="#ffffff" font-family="Inter, sans-serif" font-size="18" font-weight="600">%s</text>
    </svg>
  `, colors[0], colors[1], colors[2], sceneNumber, title)
	return "data:image/svg+xml;utf8," + url.PathEscape(svg)
}
