package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"vidsmith/internal/domain"
)

// syntaxDefectMarker is the token a faulty build plants in generated source.
// It is never valid in the output language, so syntax checking reduces to
// scanning for it.
const syntaxDefectMarker = "<<DEFECT>>"

// BuilderOptions control code generation and the simulated build step.
// FaultRate is the probability in [0,1] that a fresh build emits source
// with an injected syntax defect; rebuilds of repaired code never inject.
type BuilderOptions struct {
	OutputBaseURL string
	FaultRate     float64
	Seed          int64
}

// Builder synthesizes renderable component source from a design brief and
// runs a simulated compile over it.
type Builder struct {
	tasks  Tasks
	opts   BuilderOptions
	rng    *rand.Rand
	logger *log.Logger
}

func NewBuilder(tasks Tasks, opts BuilderOptions, logger *log.Logger) *Builder {
	if opts.OutputBaseURL == "" {
		opts.OutputBaseURL = "builds"
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Builder{
		tasks:  tasks,
		opts:   opts,
		rng:    rand.New(rand.NewSource(seed)),
		logger: logger,
	}
}

func (b *Builder) Name() string { return BuilderName }

func (b *Builder) ProcessMessage(ctx context.Context, msg domain.AgentMessage) (*domain.AgentMessage, error) {
	switch msg.Type {
	case domain.MessageTypeBuildComponentRequest:
		var req domain.BuildComponentRequestPayload
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return nil, fmt.Errorf("parse %s payload: %w", msg.Type, err)
		}
		source := SynthesizeComponent(req.DesignBrief)
		if b.opts.FaultRate > 0 && b.rng.Float64() < b.opts.FaultRate {
			source = injectDefect(source)
		}
		return b.compile(ctx, msg, req.TaskID, source, req.DesignBrief)
	case domain.MessageTypeRebuildComponentRequest:
		var req domain.RebuildComponentRequestPayload
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return nil, fmt.Errorf("parse %s payload: %w", msg.Type, err)
		}
		return b.compile(ctx, msg, req.TaskID, req.ComponentCode, req.DesignBrief)
	default:
		b.logger.Printf("builder ignored message type=%s from=%s", msg.Type, msg.From)
		return nil, nil
	}
}

func (b *Builder) compile(ctx context.Context, msg domain.AgentMessage, taskID, source string, brief domain.AnimationDesignBrief) (*domain.AgentMessage, error) {
	if errs := DetectSyntaxErrors(source); len(errs) > 0 {
		b.logger.Printf("build failed task=%s syntax_errors=%d", taskID, len(errs))
		if _, err := b.tasks.AddArtifact(ctx, taskID, dataArtifact("component-source-broken", "Component source that failed to compile", "text/javascript", source)); err != nil {
			return nil, err
		}
		return newMessage(BuilderName, CoordinatorName, domain.MessageTypeComponentSyntaxError, msg.ID,
			domain.ComponentSyntaxErrorPayload{
				TaskID:        taskID,
				ComponentCode: source,
				Errors:        errs,
				DesignBrief:   brief,
			}, fmt.Sprintf("Build failed with %d syntax error(s)", len(errs))), nil
	}

	componentID := uuid.NewString()
	outputURL := fmt.Sprintf("%s/%s.js", strings.TrimRight(b.opts.OutputBaseURL, "/"), componentID)
	result := domain.BuildResult{
		ComponentID: componentID,
		OutputURL:   outputURL,
		SizeBytes:   len(source),
		BuiltAt:     time.Now().UTC(),
	}
	sourceArt := dataArtifact("component-source", "Generated component source", "text/javascript", source)
	bundleArt := fileArtifact("component-bundle", "Compiled component bundle", "application/javascript", outputURL)
	if _, err := b.tasks.UpdateStatus(ctx, taskID, domain.TaskStateWorking, "Component built", domain.StageBuilding, sourceArt, bundleArt); err != nil {
		return nil, err
	}
	if _, err := b.tasks.AddArtifact(ctx, taskID, dataArtifact("build-result", "Build metadata", "application/json", result)); err != nil {
		return nil, err
	}

	return newMessage(BuilderName, CoordinatorName, domain.MessageTypeComponentBuildSuccess, msg.ID,
		domain.ComponentBuildSuccessPayload{
			TaskID:      taskID,
			ComponentID: componentID,
			OutputURL:   outputURL,
		}, "Component built: "+outputURL, bundleArt), nil
}

// SynthesizeComponent renders a design brief as standalone component source.
// The background element is emitted first so later elements draw on top, and
// each animation carries a sampled value table alongside its keyframes.
func SynthesizeComponent(brief domain.AnimationDesignBrief) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "// %s\n", brief.Name)
	fmt.Fprintf(&sb, "export const meta = { durationInFrames: %d, width: %d, height: %d };\n\n",
		brief.DurationInFrames, brief.Dimensions.Width, brief.Dimensions.Height)

	sb.WriteString("export const elements = [\n")
	for _, el := range brief.Elements {
		raw, _ := json.Marshal(el)
		fmt.Fprintf(&sb, "  %s,\n", raw)
	}
	sb.WriteString("];\n\n")

	sb.WriteString("export const animations = {\n")
	for _, an := range brief.Animations {
		fmt.Fprintf(&sb, "  %q: { property: %q, frames: [", an.ElementID+":"+an.Property, an.Property)
		for i, kf := range an.Keyframes {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "[%g, %g]", kf.Time, kf.Value)
		}
		sb.WriteString("], samples: [")
		for i, frame := range sampleFrames(an.Keyframes) {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%g", Interpolate(frame, an.Keyframes))
		}
		sb.WriteString("] },\n")
	}
	sb.WriteString("};\n")
	return sb.String()
}

// sampleFrames yields evenly spaced probe frames across a track, endpoints
// included.
func sampleFrames(keyframes []domain.Keyframe) []float64 {
	if len(keyframes) == 0 {
		return nil
	}
	start := keyframes[0].Time
	end := keyframes[len(keyframes)-1].Time
	const steps = 8
	frames := make([]float64, 0, steps+1)
	for i := 0; i <= steps; i++ {
		frames = append(frames, start+(end-start)*float64(i)/steps)
	}
	return frames
}

func injectDefect(source string) string {
	lines := strings.Split(source, "\n")
	if len(lines) > 2 {
		at := len(lines) / 2
		lines = append(lines[:at], append([]string{syntaxDefectMarker}, lines[at:]...)...)
		return strings.Join(lines, "\n")
	}
	return source + "\n" + syntaxDefectMarker + "\n"
}

// DetectSyntaxErrors runs the simulated syntax check, reporting one error
// per line containing the defect token.
func DetectSyntaxErrors(source string) []string {
	var errs []string
	for i, line := range strings.Split(source, "\n") {
		if strings.Contains(line, syntaxDefectMarker) {
			errs = append(errs, fmt.Sprintf("line %d: unexpected token %s", i+1, syntaxDefectMarker))
		}
	}
	return errs
}
