package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"vidsmith/internal/domain"
)

// ErrorFixer repairs component source that failed the syntax check and hands
// the repaired code back to the builder for another attempt.
type ErrorFixer struct {
	tasks  Tasks
	logger *log.Logger
}

func NewErrorFixer(tasks Tasks, logger *log.Logger) *ErrorFixer {
	if logger == nil {
		logger = log.Default()
	}
	return &ErrorFixer{tasks: tasks, logger: logger}
}

func (f *ErrorFixer) Name() string { return ErrorFixerName }

func (f *ErrorFixer) ProcessMessage(ctx context.Context, msg domain.AgentMessage) (*domain.AgentMessage, error) {
	if msg.Type != domain.MessageTypeComponentSyntaxError {
		f.logger.Printf("error fixer ignored message type=%s from=%s", msg.Type, msg.From)
		return nil, nil
	}
	var req domain.ComponentSyntaxErrorPayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return nil, fmt.Errorf("parse %s payload: %w", msg.Type, err)
	}

	fixed, report := RepairSource(req.ComponentCode, req.Errors)
	reportArt := dataArtifact("fix-report", "Syntax fixes applied to the component", "application/json", report)
	fixedArt := dataArtifact("component-source-fixed", "Component source after syntax repair", "text/javascript", fixed)
	if _, err := f.tasks.UpdateStatus(ctx, req.TaskID, domain.TaskStateWorking,
		fmt.Sprintf("Applied %d syntax fix(es)", report.FixesApplied), domain.StageFixingErrors, reportArt, fixedArt); err != nil {
		return nil, err
	}

	// The repaired code goes straight to the builder. The builder reports
	// the outcome to the coordinator, which owns the retry budget.
	return newMessage(ErrorFixerName, BuilderName, domain.MessageTypeRebuildComponentRequest, msg.ID,
		domain.RebuildComponentRequestPayload{
			TaskID:        req.TaskID,
			ComponentCode: fixed,
			DesignBrief:   req.DesignBrief,
		}, fmt.Sprintf("Repaired component, requesting rebuild (%d fixes)", report.FixesApplied)), nil
}

// RepairSource removes defect tokens from the source, dropping lines that
// contain nothing else and stripping the token from mixed lines.
func RepairSource(source string, reportedErrors []string) (string, domain.FixReport) {
	report := domain.FixReport{OriginalErrors: reportedErrors}
	var kept []string
	for _, line := range strings.Split(source, "\n") {
		if !strings.Contains(line, syntaxDefectMarker) {
			kept = append(kept, line)
			continue
		}
		report.FixesApplied++
		stripped := strings.TrimSpace(strings.ReplaceAll(line, syntaxDefectMarker, ""))
		detail := domain.FixDetail{
			ErrorType: "unexpected_token",
			Original:  line,
			Fixed:     stripped,
		}
		if stripped == "" {
			detail.Explanation = "removed line containing only an invalid token"
		} else {
			detail.Explanation = "stripped invalid token from line"
			kept = append(kept, stripped)
		}
		report.FixDetails = append(report.FixDetails, detail)
	}
	return strings.Join(kept, "\n"), report
}
