package tasks

import (
	"context"
	"time"

	"github.com/drivevox/validator/control"
	"github.com/drivevox/validator/events"
	"github.com/drivevox/validator/workflow"
)

// Recognizer awaits one recognized transcript from the ASR vendor. An empty
// string is a permitted result and signals a recognition failure downstream
// (spec §4.6: "Checkpoint interprets it").
type Recognizer interface {
	Recognize(ctx context.Context) (string, error)
}

// ASROutput is the value ASRTask writes to the workflow context under its
// own id.
type ASROutput struct {
	Example     string
	Response    string
	DurationMS  int64
}

// ASRTask awaits a recognized transcript for ExpectedText within Timeout
// (spec §4.6).
type ASRTask struct {
	TaskID       string
	Recognizer   Recognizer
	ExpectedText string
	Timeout      time.Duration
}

func (t *ASRTask) ID() string { return t.TaskID }

// Execute implements workflow.Task.
func (t *ASRTask) Execute(ctx context.Context, recv *control.Receiver, wfctx *workflow.Context, emit *events.Emitter) error {
	signal := recv.AwaitRunning(ctx)
	if signal == control.Stopped {
		return nil
	}

	asrCtx, cancel := control.WithStopCancel(ctx, recv)
	defer cancel()
	if t.Timeout > 0 {
		var timeoutCancel context.CancelFunc
		asrCtx, timeoutCancel = context.WithTimeout(asrCtx, t.Timeout)
		defer timeoutCancel()
	}

	start := time.Now()
	response, err := t.Recognizer.Recognize(asrCtx)
	duration := time.Since(start)

	if recv.Current() == control.Stopped {
		return nil
	}
	if err != nil && asrCtx.Err() == nil {
		return err
	}
	// Timeout/cancellation yields an empty response rather than a task
	// failure: downstream checkpoint logic treats it as a recognition miss.

	wfctx.Set(t.TaskID, ASROutput{
		Example:    t.ExpectedText,
		Response:   response,
		DurationMS: duration.Milliseconds(),
	})
	return nil
}
