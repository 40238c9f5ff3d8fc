package domain

import (
	"encoding/json"
	"strings"
	"time"
)

type TaskState string

const (
	TaskStateSubmitted TaskState = "submitted"
	TaskStateWorking   TaskState = "working"
	TaskStateCompleted TaskState = "completed"
	TaskStateFailed    TaskState = "failed"
)

// IsFinal reports whether the state admits no further transitions.
func (s TaskState) IsFinal() bool {
	return s == TaskStateCompleted || s == TaskStateFailed
}

// rank orders states along the permitted direction of travel. Working may
// repeat (repair sub-stages), final states are absorbing.
func (s TaskState) rank() int {
	switch s {
	case TaskStateSubmitted:
		return 0
	case TaskStateWorking:
		return 1
	case TaskStateCompleted, TaskStateFailed:
		return 2
	default:
		return -1
	}
}

// CanTransitionTo reports whether moving from s to next keeps the task on
// the monotonic submitted -> working* -> {completed|failed} path.
func (s TaskState) CanTransitionTo(next TaskState) bool {
	if s.rank() < 0 || next.rank() < 0 {
		return false
	}
	if s.IsFinal() {
		return false
	}
	if next == TaskStateWorking {
		return true
	}
	return next.rank() >= s.rank()
}

type StageLabel string

const (
	StagePlanning        StageLabel = "planning"
	StageGeneratingBrief StageLabel = "generating_brief"
	StageBuilding        StageLabel = "building"
	StageFixingErrors    StageLabel = "fixing_errors"
)

type MessageType string

const (
	MessageTypeCreateVideoRequest         MessageType = "CREATE_VIDEO_REQUEST"
	MessageTypePlanSceneRequest           MessageType = "PLAN_SCENE_REQUEST"
	MessageTypeScenePlanCreated           MessageType = "SCENE_PLAN_CREATED"
	MessageTypeGenerateDesignBriefRequest MessageType = "GENERATE_DESIGN_BRIEF_REQUEST"
	MessageTypeCreateComponentRequest     MessageType = "CREATE_COMPONENT_REQUEST"
	MessageTypeBuildComponentRequest      MessageType = "BUILD_COMPONENT_REQUEST"
	MessageTypeRebuildComponentRequest    MessageType = "REBUILD_COMPONENT_REQUEST"
	MessageTypeComponentSyntaxError       MessageType = "COMPONENT_SYNTAX_ERROR"
	MessageTypeComponentBuildSuccess      MessageType = "COMPONENT_BUILD_SUCCESS"
)

// IsError reports whether the type belongs to the *_ERROR family, which the
// coordinator handles generically when no specific entry exists.
func (t MessageType) IsError() bool {
	return strings.HasSuffix(string(t), "_ERROR")
}

type ArtifactKind string

const (
	ArtifactKindData ArtifactKind = "data"
	ArtifactKindFile ArtifactKind = "file"
)

// Artifact is an immutable output attached to a task. Data artifacts carry
// an inline JSON payload, file artifacts reference an external location.
type Artifact struct {
	ID          string          `json:"id"`
	Kind        ArtifactKind    `json:"kind"`
	MimeType    string          `json:"mimeType"`
	Data        json.RawMessage `json:"data,omitempty"`
	URL         string          `json:"url,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type Task struct {
	ID             string     `json:"id"`
	ProjectID      string     `json:"project_id"`
	Description    string     `json:"description"`
	State          TaskState  `json:"state"`
	Stage          StageLabel `json:"stage,omitempty"`
	StatusMessage  string     `json:"status_message"`
	RepairAttempts int        `json:"repair_attempts"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type MessagePart struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

type HumanMessage struct {
	Role  string        `json:"role"`
	Parts []MessagePart `json:"parts"`
}

// AgentMessage is the unit of agent-to-agent communication. ID doubles as
// the correlation id threading a request through its forwarded chain.
type AgentMessage struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Message   *HumanMessage   `json:"message,omitempty"`
	Artifacts []Artifact      `json:"artifacts,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Text returns the message's concatenated text parts, or "" for nil.
func (m *HumanMessage) Text() string {
	if m == nil {
		return ""
	}
	var out []string
	for _, p := range m.Parts {
		if p.Kind == "text" && p.Text != "" {
			out = append(out, p.Text)
		}
	}
	return strings.Join(out, " ")
}

// TextMessage builds the optional human-readable companion of a message.
func TextMessage(text string) *HumanMessage {
	return &HumanMessage{
		Role:  "agent",
		Parts: []MessagePart{{Kind: "text", Text: text}},
	}
}

type CreateVideoRequestPayload struct {
	TaskID      string `json:"taskId"`
	Description string `json:"description"`
	ProjectID   string `json:"projectId"`
}

type PlanSceneRequestPayload struct {
	TaskID      string `json:"taskId"`
	Description string `json:"description"`
	ProjectID   string `json:"projectId"`
}

type ScenePlanCreatedPayload struct {
	TaskID      string `json:"taskId"`
	ProjectID   string `json:"projectId"`
	SceneID     string `json:"sceneId"`
	Description string `json:"description"`
}

type GenerateDesignBriefRequestPayload struct {
	TaskID      string `json:"taskId"`
	Description string `json:"description"`
	ProjectID   string `json:"projectId"`
	SceneID     string `json:"sceneId"`
}

type CreateComponentRequestPayload struct {
	TaskID      string               `json:"taskId"`
	ProjectID   string               `json:"projectId"`
	SceneID     string               `json:"sceneId"`
	DesignBrief AnimationDesignBrief `json:"designBrief"`
}

type BuildComponentRequestPayload struct {
	TaskID      string               `json:"taskId"`
	ProjectID   string               `json:"projectId"`
	DesignBrief AnimationDesignBrief `json:"designBrief"`
}

type RebuildComponentRequestPayload struct {
	TaskID        string               `json:"taskId"`
	ComponentCode string               `json:"componentCode"`
	DesignBrief   AnimationDesignBrief `json:"designBrief"`
}

type ComponentSyntaxErrorPayload struct {
	TaskID        string               `json:"taskId"`
	ComponentCode string               `json:"componentCode"`
	Errors        []string             `json:"errors"`
	DesignBrief   AnimationDesignBrief `json:"designBrief"`
}

type ComponentBuildSuccessPayload struct {
	TaskID      string `json:"taskId"`
	ComponentID string `json:"componentId"`
	OutputURL   string `json:"outputUrl"`
}

// AgentErrorPayload carries any *_ERROR message the coordinator handles
// generically.
type AgentErrorPayload struct {
	TaskID string `json:"taskId"`
	Stage  string `json:"stage,omitempty"`
	Error  string `json:"error"`
}

type SceneElement struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

type SceneTransition struct {
	Type     string  `json:"type"`
	Duration float64 `json:"duration"`
}

// ScenePlan is the planner's structured breakdown of a request. Duration is
// in seconds.
type ScenePlan struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Type        string            `json:"type"`
	Elements    []SceneElement    `json:"elements"`
	Transitions []SceneTransition `json:"transitions"`
	Duration    float64           `json:"duration"`
}

type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type BriefElement struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Shape    string   `json:"shape,omitempty"`
	Color    string   `json:"color,omitempty"`
	Text     string   `json:"text,omitempty"`
	Position Position `json:"position"`
	Size     float64  `json:"size,omitempty"`
}

// Keyframe is a (time, value) control point; time is in frames.
type Keyframe struct {
	Time  float64 `json:"time"`
	Value float64 `json:"value"`
}

type Animation struct {
	ElementID string     `json:"elementId"`
	Type      string     `json:"type"`
	Property  string     `json:"property"`
	Keyframes []Keyframe `json:"keyframes"`
}

type AnimationDesignBrief struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Description      string         `json:"description"`
	DurationInFrames int            `json:"durationInFrames"`
	Dimensions       Dimensions     `json:"dimensions"`
	Elements         []BriefElement `json:"elements"`
	Animations       []Animation    `json:"animations"`
}

type FixDetail struct {
	ErrorType   string `json:"errorType"`
	Explanation string `json:"explanation"`
	Original    string `json:"original"`
	Fixed       string `json:"fixed"`
}

type FixReport struct {
	OriginalErrors []string    `json:"originalErrors"`
	FixesApplied   int         `json:"fixesApplied"`
	FixDetails     []FixDetail `json:"fixDetails"`
}

type BuildResult struct {
	ComponentID string    `json:"componentId"`
	OutputURL   string    `json:"outputUrl"`
	SizeBytes   int       `json:"sizeBytes"`
	BuiltAt     time.Time `json:"builtAt"`
}
