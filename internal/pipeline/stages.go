package pipeline

// Pipeline run statuses.
const (
	StatusIdle       = "idle"
	StatusProcessing = "processing"
	StatusComplete   = "complete"
	StatusError      = "error"
)

// Per-node visual states.
const (
	StateIdle     = "idle"
	StateActive   = "active"
	StateComplete = "complete"
	StateError    = "error"
)

// Progress never exceeds this while a run is in flight; only a confirmed
// result moves it to 100.
const maxSyntheticProgress = 90

// visualStage is one frame of the pipeline graph.
type visualStage struct {
	ID       string
	Complete []string
	Active   []string
	Progress int
	Label    string
}

var stepLabels = map[string]string{
	"input":    "PDF Input",
	"parsing":  "Parse request",
	"llm":      "LLM analysis",
	"parallel": "Style + Voice in parallel",
	"image":    "Image generation",
	"output":   "Aggregate output",
}

// syntheticSequence is the timed animation shown while no backend progress
// information is available. Style and voice run as one parallel frame.
var syntheticSequence = []visualStage{
	{ID: "input", Complete: []string{}, Active: []string{"input"}, Progress: 8},
	{ID: "parsing", Complete: []string{"input"}, Active: []string{"parsing"}, Progress: 18},
	{ID: "llm", Complete: []string{"input", "parsing"}, Active: []string{"llm"}, Progress: 34},
	{ID: "parallel", Complete: []string{"input", "parsing", "llm"}, Active: []string{"style", "voice"}, Progress: 56},
	{ID: "image", Complete: []string{"input", "parsing", "llm", "voice", "style"}, Active: []string{"image"}, Progress: 76},
	{ID: "output", Complete: []string{"input", "parsing", "llm", "voice", "style", "image"}, Active: []string{"output"}, Progress: 90},
}

// traceStageMeta maps a backend-reported stage to its position in the visual
// graph. Style and voice share a frame.
var traceStageMeta = map[string]visualStage{
	"input":   {ID: "input", Complete: []string{}, Active: []string{"input"}, Progress: 8, Label: "PDF Input"},
	"parsing": {ID: "parsing", Complete: []string{"input"}, Active: []string{"parsing"}, Progress: 18, Label: "Parse request"},
	"llm":     {ID: "llm", Complete: []string{"input", "parsing"}, Active: []string{"llm"}, Progress: 34, Label: "LLM analysis"},
	"style":   {ID: "style", Complete: []string{"input", "parsing", "llm"}, Active: []string{"style", "voice"}, Progress: 56, Label: "Style + Voice in parallel"},
	"voice":   {ID: "voice", Complete: []string{"input", "parsing", "llm"}, Active: []string{"style", "voice"}, Progress: 56, Label: "Style + Voice in parallel"},
	"image":   {ID: "image", Complete: []string{"input", "parsing", "llm", "style", "voice"}, Active: []string{"image"}, Progress: 76, Label: "Image generation"},
	"output":  {ID: "output", Complete: []string{"input", "parsing", "llm", "style", "voice", "image"}, Active: []string{"output"}, Progress: 90, Label: "Aggregate output"},
}

func (s visualStage) label() string {
	if label, ok := stepLabels[s.ID]; ok {
		return label
	}
	if s.Label != "" {
		return s.Label
	}
	return "Processing"
}

// toStateMap flattens a stage into per-node states. Nodes not named keep
// whatever state they had.
func toStateMap(stage visualStage) map[string]string {
	states := make(map[string]string, len(stage.Complete)+len(stage.Active))
	for _, id := range stage.Complete {
		states[id] = StateComplete
	}
	for _, id := range stage.Active {
		states[id] = StateActive
	}
	return states
}

func completeMap() map[string]string {
	states := make(map[string]string, 7)
	for _, id := range []string{"input", "parsing", "llm", "style", "image", "voice", "output"} {
		states[id] = StateComplete
	}
	return states
}
