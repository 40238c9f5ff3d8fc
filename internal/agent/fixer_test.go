package agent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"vidsmith/internal/domain"
)

func TestRepairSource(t *testing.T) {
	broken := "const a = 1;\n" + syntaxDefectMarker + "\nconst b = 2; " + syntaxDefectMarker + "\nconst c = 3;"
	fixed, report := RepairSource(broken, []string{"line 2", "line 3"})

	if strings.Contains(fixed, syntaxDefectMarker) {
		t.Fatalf("defect token survived repair:\n%s", fixed)
	}
	if errs := DetectSyntaxErrors(fixed); len(errs) != 0 {
		t.Fatalf("repaired source still reports errors: %v", errs)
	}
	if len(report.OriginalErrors) != 2 || report.FixesApplied != 2 {
		t.Errorf("report = %+v, want 2 original / 2 applied", report)
	}
	if report.OriginalErrors[0] != "line 2" {
		t.Errorf("original errors not carried through: %v", report.OriginalErrors)
	}
	if len(report.FixDetails) != 2 {
		t.Fatalf("fix details = %+v", report.FixDetails)
	}
	// the token-only line is dropped, the mixed line keeps its code
	if !strings.Contains(fixed, "const b = 2;") {
		t.Error("code on a mixed line was lost")
	}
	if lines := strings.Split(fixed, "\n"); len(lines) != 3 {
		t.Errorf("expected 3 surviving lines, got %d:\n%s", len(lines), fixed)
	}
}

func TestErrorFixerForwardsRebuild(t *testing.T) {
	ctx := context.Background()
	manager, created := newTestTasks(t, "fix my component")
	fixer := NewErrorFixer(manager, discardLogger())

	broken := "export const x = 1;\n" + syntaxDefectMarker + "\n"
	resp, err := fixer.ProcessMessage(ctx, requestMessage(
		domain.MessageTypeComponentSyntaxError, ErrorFixerName,
		domain.ComponentSyntaxErrorPayload{
			TaskID:        created.ID,
			ComponentCode: broken,
			Errors:        []string{"line 2: unexpected token"},
			DesignBrief:   testBrief(),
		}))
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if resp == nil || resp.Type != domain.MessageTypeRebuildComponentRequest || resp.To != BuilderName {
		t.Fatalf("expected %s reply to builder, got %+v", domain.MessageTypeRebuildComponentRequest, resp)
	}
	var out domain.RebuildComponentRequestPayload
	if err := json.Unmarshal(resp.Payload, &out); err != nil {
		t.Fatalf("decode reply payload: %v", err)
	}
	if strings.Contains(out.ComponentCode, syntaxDefectMarker) {
		t.Error("forwarded code still carries the defect token")
	}
	if len(out.DesignBrief.Elements) == 0 {
		t.Error("design brief dropped on forward")
	}

	arts, err := manager.GetArtifacts(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetArtifacts: %v", err)
	}
	names := map[string]bool{}
	for _, a := range arts {
		names[a.Name] = true
	}
	if !names["fix-report"] || !names["component-source-fixed"] {
		t.Errorf("missing fix artifacts, have %v", names)
	}
}

func TestErrorFixerIgnoresOtherTypes(t *testing.T) {
	manager, created := newTestTasks(t, "anything")
	fixer := NewErrorFixer(manager, discardLogger())
	resp, err := fixer.ProcessMessage(context.Background(), requestMessage(
		domain.MessageTypeBuildComponentRequest, ErrorFixerName,
		domain.BuildComponentRequestPayload{TaskID: created.ID}))
	if err != nil || resp != nil {
		t.Fatalf("expected silent drop, got resp=%+v err=%v", resp, err)
	}
}
