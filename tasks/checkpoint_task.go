package tasks

import (
	"context"
	"regexp"
	"strings"

	"github.com/drivevox/validator/control"
	"github.com/drivevox/validator/events"
	"github.com/drivevox/validator/workflow"
)

var alnumOnly = regexp.MustCompile(`[^0-9a-zA-Z\p{Han}]`)

// CheckpointTask declares a trial's wake-success by checking whether the
// active detector task (visual-wake or OCR gate) finished completed, or the
// recognized ASR text matches one of ExpectedResponses under a three-rung
// matching ladder (spec §4.8).
type CheckpointTask struct {
	TaskID            string
	ActiveTaskID      string
	ASRTaskID         string
	ExpectedResponses []string
}

func (t *CheckpointTask) ID() string { return t.TaskID }

// Execute implements workflow.Task.
func (t *CheckpointTask) Execute(ctx context.Context, recv *control.Receiver, wfctx *workflow.Context, emit *events.Emitter) error {
	signal := recv.AwaitRunning(ctx)
	if signal == control.Stopped {
		return nil
	}

	activeCompleted := false
	if v, ok := wfctx.Get(t.ActiveTaskID); ok {
		if m, ok := v.(map[string]any); ok {
			if status, _ := m["status"].(string); status == "completed" {
				activeCompleted = true
			}
		}
	}

	asrText := ""
	if v, ok := wfctx.Get(t.ASRTaskID); ok {
		if asr, ok := v.(ASROutput); ok {
			asrText = asr.Response
		}
	}

	success := activeCompleted || matchesAny(asrText, t.ExpectedResponses)

	wfctx.Set("wake_detection_success", success)
	wfctx.Set("should_skip_task", !success)

	_ = emit.Emit(ctx, events.NewWakeDetectionResult(emit.TaskID(), success))
	return nil
}

// matchesAny applies the matching ladder from spec §4.8: exact match,
// substring either way, then alphanumeric-only equality, each against the
// trimmed, lowercased ASR text.
func matchesAny(asrText string, expected []string) bool {
	if len(expected) == 0 {
		return false
	}
	normalized := strings.ToLower(strings.TrimSpace(asrText))
	if normalized == "" {
		return false
	}
	for _, candidate := range expected {
		c := strings.ToLower(strings.TrimSpace(candidate))
		if c == "" {
			continue
		}
		if normalized == c {
			return true
		}
		if strings.Contains(normalized, c) || strings.Contains(c, normalized) {
			return true
		}
		if alnumOnly.ReplaceAllString(normalized, "") == alnumOnly.ReplaceAllString(c, "") {
			return true
		}
	}
	return false
}
