package meta

import (
	"context"
	"fmt"
	"time"

	"github.com/drivevox/validator/audio"
	"github.com/drivevox/validator/control"
	"github.com/drivevox/validator/errs"
	"github.com/drivevox/validator/events"
	"github.com/drivevox/validator/model"
	"github.com/drivevox/validator/tasks"
	"github.com/drivevox/validator/visualwake"
	"github.com/drivevox/validator/workflow"
)

// interTrialDelay is the pause between wake-only trials (spec §4.11).
const interTrialDelay = 2 * time.Second

// WakeOnlyExecutor exercises every wake word against a single audio/visual
// gate plus ASR, without the command-audio, OCR and LLM-scoring stages of
// TrialExecutor (spec §4.11). Success is classified by the same rule CheckpointTask uses:
// the visual-wake detector completing, or the recognized ASR text matching
// the wake word.
type WakeOnlyExecutor struct {
	TaskID    int64
	WakeWords []*model.WakeWord
	AudioDir  string

	AudioController *audio.Controller
	Detector        *visualwake.Detector
	MaxDetectionTime time.Duration

	NewRecognizer func(wakeWordID int64) tasks.Recognizer

	Bus *events.Bus
}

// Run iterates WakeWords in order, sleeping interTrialDelay between trials,
// and emits a per-trial wake_detection_test_result event plus one
// aggregated wake_detection_final_stats event at the end.
func (e *WakeOnlyExecutor) Run(ctx context.Context, bus *control.Bus) error {
	recv := bus.Receiver()
	emitter := events.NewEmitter(e.Bus, e.TaskID)

	results := make([]events.WakeTrialOutcome, 0, len(e.WakeWords))

	for i, ww := range e.WakeWords {
		signal := recv.AwaitRunning(ctx)
		if signal == control.Stopped {
			return errs.New(errs.Cancelled, "wake-only loop stopped before all wake words ran")
		}

		outcome, asrText, err := e.runTrial(ctx, bus, ww)
		if err != nil {
			return fmt.Errorf("wake-only trial for wake word %d: %w", ww.ID, err)
		}
		results = append(results, outcome)

		_ = emitter.Emit(ctx, events.NewWakeDetectionTestResult(e.TaskID, ww.ID, outcome.Success, asrText))

		if i < len(e.WakeWords)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interTrialDelay):
			}
		}
	}

	_ = emitter.Emit(ctx, events.NewWakeDetectionFinalStats(e.TaskID, results))
	return nil
}

func (e *WakeOnlyExecutor) runTrial(ctx context.Context, bus *control.Bus, ww *model.WakeWord) (events.WakeTrialOutcome, string, error) {
	wakeAudioID := fmt.Sprintf("wake_audio_%d", ww.ID)
	asrID := fmt.Sprintf("wake_asr_%d", ww.ID)
	visualID := fmt.Sprintf("wake_visual_%d", ww.ID)
	finalizeID := fmt.Sprintf("wake_finalize_%d", ww.ID)

	k := workflow.NewKernel()
	k.AddTask(&tasks.AudioTask{TaskID: wakeAudioID, Controller: e.AudioController, Dir: e.AudioDir, Keyword: ww.Text})
	k.AddTask(&tasks.ASRTask{TaskID: asrID, Recognizer: e.NewRecognizer(ww.ID), ExpectedText: ww.Text, Timeout: 10 * time.Second})
	k.AddTask(visualwake.NewTask(visualID, e.Detector, e.MaxDetectionTime))
	k.AddTask(&tasks.CheckpointTask{TaskID: finalizeID, ActiveTaskID: visualID, ASRTaskID: asrID, ExpectedResponses: []string{ww.Text}})

	k.AddDependency(asrID, wakeAudioID)
	k.AddDependency(visualID, wakeAudioID)
	k.AddDependency(finalizeID, asrID)
	k.AddDependency(finalizeID, visualID)

	emitter := events.NewEmitter(e.Bus, e.TaskID)
	wfctx, err := k.RunAndWait(ctx, emitter, bus)
	if err != nil {
		return events.WakeTrialOutcome{WakeWordID: ww.ID}, "", err
	}

	success, _ := wfctx.GetBool("wake_detection_success")

	asrText := ""
	if v, ok := wfctx.Get(asrID); ok {
		if asr, ok := v.(tasks.ASROutput); ok {
			asrText = asr.Response
		}
	}

	duration := trialDuration(wfctx, visualID, asrID)

	return events.WakeTrialOutcome{WakeWordID: ww.ID, Success: success, DurationMS: duration}, asrText, nil
}

// trialDuration prefers the visual-wake detector's duration when it
// produced one, then the ASR call's duration, else zero (spec §4.11:
// "visual-success duration if detector succeeded, else ASR duration, else 0").
func trialDuration(wfctx *workflow.Context, visualID, asrID string) int64 {
	if v, ok := wfctx.Get(visualID); ok {
		if m, ok := v.(map[string]any); ok {
			if status, _ := m["status"].(string); status == "completed" {
				if ms, ok := m["duration_ms"].(int64); ok {
					return ms
				}
			}
		}
	}
	if v, ok := wfctx.Get(asrID); ok {
		if asr, ok := v.(tasks.ASROutput); ok {
			return asr.DurationMS
		}
	}
	return 0
}
