package tasks

import (
	"context"

	"github.com/drivevox/validator/control"
	"github.com/drivevox/validator/errs"
	"github.com/drivevox/validator/events"
	"github.com/drivevox/validator/model"
	"github.com/drivevox/validator/store"
	"github.com/drivevox/validator/workflow"
)

// FinalizeTask writes the trial's MachineResponse and AnalysisResult rows,
// updates the parent task's progress, and emits a completion event (spec
// §4.9). It must tolerate being asked to finalize a trial twice (e.g. after
// a retried run) without creating duplicate rows; store.Repository upserts
// by (task, sample). When this is the last sample, it also flips the
// parent task's status to completed itself — the lifecycle rule "on
// success status -> completed, progress -> 1" is enforced by the finalize
// step, not left to an external caller.
type FinalizeTask struct {
	TaskID         string
	ParentTaskID   int64
	SampleID       int64
	ASRTaskID      string
	AnalysisTaskID string
	Repo           store.Repository

	TotalSamples int
	SampleIndex  int
}

func (t *FinalizeTask) ID() string { return t.TaskID }

// Execute implements workflow.Task.
func (t *FinalizeTask) Execute(ctx context.Context, recv *control.Receiver, wfctx *workflow.Context, emit *events.Emitter) error {
	signal := recv.AwaitRunning(ctx)
	if signal == control.Stopped {
		return nil
	}

	asrText := ""
	if v, ok := wfctx.Get(t.ASRTaskID); ok {
		if asr, ok := v.(ASROutput); ok {
			asrText = asr.Response
		}
	}

	response := &model.MachineResponse{
		TaskID:    t.ParentTaskID,
		SampleID:  t.SampleID,
		Text:      asrText,
		Connected: asrText != "",
	}
	if err := t.Repo.SaveMachineResponse(ctx, response); err != nil {
		return errs.Wrap(errs.Downstream, "save machine response", err)
	}

	if v, ok := wfctx.Get(t.AnalysisTaskID); ok {
		if result, ok := v.(*model.AnalysisResult); ok {
			result.TaskID = t.ParentTaskID
			result.SampleID = t.SampleID
			if err := t.Repo.SaveAnalysisResult(ctx, result); err != nil {
				return errs.Wrap(errs.Downstream, "save analysis result", err)
			}
		}
	}

	progress := 1.0
	if t.TotalSamples > 0 {
		progress = float64(t.SampleIndex+1) / float64(t.TotalSamples)
	}
	if err := t.Repo.UpdateTaskProgress(ctx, t.ParentTaskID, progress); err != nil {
		return errs.Wrap(errs.Downstream, "update task progress", err)
	}

	if t.SampleIndex+1 >= t.TotalSamples {
		if err := t.Repo.UpdateTaskStatus(ctx, t.ParentTaskID, model.TaskCompleted, ""); err != nil {
			return errs.Wrap(errs.Downstream, "update task status", err)
		}
	}

	_ = emit.Emit(ctx, events.NewTaskCompleted(t.ParentTaskID, "trial finalized"))
	return nil
}
