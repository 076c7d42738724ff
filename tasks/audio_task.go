// Package tasks implements the built-in task primitives a meta-executor
// wires into a per-trial sub-DAG: audio, OCR gate, ASR, LLM analysis,
// checkpoint, and finalize (spec §4.3, §4.4, §4.6-4.9).
package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/drivevox/validator/audio"
	"github.com/drivevox/validator/control"
	"github.com/drivevox/validator/errs"
	"github.com/drivevox/validator/events"
	"github.com/drivevox/validator/model"
	"github.com/drivevox/validator/workflow"
)

// AudioTask resolves one file in Dir whose name contains Keyword, stops any
// prior playback, and plays it to completion (spec §4.3). It records
// VoiceCommandStart/End into the context under "<id>_timing".
type AudioTask struct {
	TaskID     string
	Controller *audio.Controller
	Dir        string
	Keyword    string
}

func (t *AudioTask) ID() string { return t.TaskID }

// Execute implements workflow.Task.
func (t *AudioTask) Execute(ctx context.Context, recv *control.Receiver, wfctx *workflow.Context, emit *events.Emitter) error {
	signal := recv.AwaitRunning(ctx)
	if signal == control.Stopped {
		return nil
	}

	path, err := audio.ResolveFile(t.Dir, t.Keyword)
	if err != nil {
		return err
	}

	playCtx, cancel := control.WithStopCancel(ctx, recv)
	defer cancel()

	start := time.Now()
	err = t.Controller.Play(playCtx, path)
	end := time.Now()

	if recv.Current() == control.Stopped {
		return nil
	}
	if err != nil {
		return errs.Wrap(errs.Downstream, fmt.Sprintf("play audio file %q", path), err)
	}

	wfctx.Set(t.TaskID+"_timing", model.TimingData{
		VoiceCommandStart: &start,
		VoiceCommandEnd:   &end,
	})
	return nil
}
