package agent

import "strings"

// Classification names the agent a fresh request should be routed to and the
// reason for the choice.
type Classification struct {
	NextAgent string `json:"nextAgent"`
	Reason    string `json:"reason"`
}

// Classifier decides the first pipeline stage for a request. Implementations
// must be pure: identical text yields an identical classification. The
// keyword variant below stands in for a model-backed classifier; swapping it
// never touches orchestration logic.
type Classifier interface {
	Classify(text string) Classification
}

// KeywordClassifier routes on domain signal words in the request text.
type KeywordClassifier struct{}

func (KeywordClassifier) Classify(text string) Classification {
	lc := strings.ToLower(text)
	switch {
	case containsAny(lc, "animation", "animate", "bouncing", "bounce"):
		return Classification{NextAgent: ScenePlannerName, Reason: "request mentions animation"}
	case containsAny(lc, "design brief", "adb"):
		return Classification{NextAgent: BriefGeneratorName, Reason: "request asks for a design brief directly"}
	case containsAny(lc, "fix", "error"):
		return Classification{NextAgent: ErrorFixerName, Reason: "request asks for a repair"}
	default:
		return Classification{NextAgent: ScenePlannerName, Reason: "default route for video requests"}
	}
}

func containsAny(text string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
