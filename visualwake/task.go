package visualwake

import (
	"context"
	"time"

	"github.com/drivevox/validator/control"
	"github.com/drivevox/validator/events"
	"github.com/drivevox/validator/workflow"
)

const pollInterval = 500 * time.Millisecond

// Task gates a shared Detector behind the workflow control signal and a
// wall-clock ceiling (spec §4.5). It does not itself decode frames; the UI
// pushes frames into the Detector out of band via SubmitFrame.
type Task struct {
	taskID          string
	detector        *Detector
	maxDetectionTime time.Duration
}

// NewTask returns a Task gating detector, with maxDetectionTime defaulting
// to DefaultMaxDetectionTime when <= 0.
func NewTask(id string, detector *Detector, maxDetectionTime time.Duration) *Task {
	if maxDetectionTime <= 0 {
		maxDetectionTime = DefaultMaxDetectionTime
	}
	return &Task{taskID: id, detector: detector, maxDetectionTime: maxDetectionTime}
}

func (t *Task) ID() string { return t.taskID }

// Execute implements workflow.Task.
func (t *Task) Execute(ctx context.Context, recv *control.Receiver, wfctx *workflow.Context, emit *events.Emitter) error {
	signal := recv.AwaitRunning(ctx)
	if signal == control.Stopped {
		return nil
	}

	t.detector.Enable()
	start := time.Now()
	defer t.detector.Disable()

	_ = emit.Emit(ctx, events.NewVisualWake(emit.TaskID(), "start", nil, ""))

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		cur := recv.Current()
		if cur == control.Stopped {
			return nil
		}
		if cur == control.Paused {
			t.detector.Disable()
			signal := recv.AwaitRunning(ctx)
			if signal == control.Stopped {
				return nil
			}
			t.detector.Enable()
			continue
		}

		if matched, score := t.detector.Matched(); matched {
			wfctx.Set(t.taskID, map[string]any{"status": "completed", "duration_ms": time.Since(start).Milliseconds(), "confidence": score})
			s := score
			_ = emit.Emit(ctx, events.NewVisualWake(emit.TaskID(), "match", &s, ""))
			return nil
		}

		if time.Since(start) >= t.maxDetectionTime {
			wfctx.Set(t.taskID, map[string]any{"status": "timeout", "duration_ms": time.Since(start).Milliseconds()})
			_ = emit.Emit(ctx, events.NewVisualWake(emit.TaskID(), "timeout", nil, ""))
			return nil
		}
	}
}
