package tasks

import (
	"context"
	"time"

	"github.com/drivevox/validator/control"
	"github.com/drivevox/validator/events"
	"github.com/drivevox/validator/ocr"
	"github.com/drivevox/validator/workflow"
)

// FrameFeed delivers recognized-text frames from the UI-driven OCR flow;
// the UI pushes frames into the engine out of band and the OCR task
// forwards them through this channel (spec §4.4: "the actual per-frame
// recognition is performed by a separate UI-driven flow").
type FrameFeed interface {
	// Next blocks until the next (text, timestamp) pair is available, or
	// returns ctx.Err() if ctx is done first.
	Next(ctx context.Context) (text string, ts time.Time, err error)
}

// OCRTask is the gating task: it emits UI lifecycle events tied to the
// control signal and drives Session.Observe for each frame, streaming
// results back through emit as ocr_channel events (spec §4.4, §6.1).
type OCRTask struct {
	TaskID  string
	Session *ocr.Session
	Frames  FrameFeed
}

func (t *OCRTask) ID() string { return t.TaskID }

// Execute implements workflow.Task.
func (t *OCRTask) Execute(ctx context.Context, recv *control.Receiver, wfctx *workflow.Context, emit *events.Emitter) error {
	taskID := emit.TaskID()

	signal := recv.AwaitRunning(ctx)
	if signal == control.Stopped {
		return nil
	}
	_ = emit.Emit(ctx, events.NewOCRControl(taskID, events.OCRStart))

	frameCtx, cancel := control.WithStopCancel(ctx, recv)
	defer cancel()

	for {
		cur := recv.Current()
		if cur == control.Stopped {
			_ = emit.Emit(ctx, events.NewOCRControl(taskID, events.OCRStop))
			return nil
		}
		if cur == control.Paused {
			_ = emit.Emit(ctx, events.NewOCRControl(taskID, events.OCRPause))
			signal := recv.AwaitRunning(ctx)
			if signal == control.Stopped {
				_ = emit.Emit(ctx, events.NewOCRControl(taskID, events.OCRStop))
				return nil
			}
			_ = emit.Emit(ctx, events.NewOCRControl(taskID, events.OCRResume))
			continue
		}

		text, ts, err := t.Frames.Next(frameCtx)
		if err != nil {
			if frameCtx.Err() != nil {
				return nil
			}
			_ = emit.Emit(ctx, events.NewOCRChannelError(taskID, err.Error()))
			return nil
		}

		result := t.Session.Observe(text, ts)
		if result.FinalText != "" {
			_ = emit.Emit(ctx, events.NewOCRChannelData(taskID, []string{result.FinalText}))
		}
		if result.ShouldStopOCR {
			wfctx.Set(t.TaskID, result)
			_ = emit.Emit(ctx, events.NewOCRChannelSession(taskID, result))
			_ = emit.Emit(ctx, events.NewOCRControl(taskID, events.OCRStop))
			return nil
		}
	}
}
