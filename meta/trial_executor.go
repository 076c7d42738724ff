// Package meta implements the meta-executors that turn one validation Task
// into a sequence of per-trial sub-DAGs: the full trial loop (spec §4.10)
// and the wake-only loop (spec §4.11).
package meta

import (
	"context"
	"fmt"
	"time"

	"github.com/drivevox/validator/audio"
	"github.com/drivevox/validator/control"
	"github.com/drivevox/validator/errs"
	"github.com/drivevox/validator/events"
	"github.com/drivevox/validator/llm"
	"github.com/drivevox/validator/model"
	"github.com/drivevox/validator/ocr"
	"github.com/drivevox/validator/store"
	"github.com/drivevox/validator/tasks"
	"github.com/drivevox/validator/workflow"
)

// TrialExecutor runs the Cartesian product of one wake word against a
// task's sample list as a sequence of per-trial sub-DAGs (spec §4.10).
// Across trials execution is strictly sequential: the next trial starts
// only after the prior trial's finalize has committed (spec §5).
type TrialExecutor struct {
	TaskID       int64
	WakeWordID   int64
	WakeWordText string
	WakeWordFile string
	AudioDir     string

	Samples []*model.TestSample

	AudioController *audio.Controller
	NewAudioFrameFeed      func(sampleID int64) tasks.FrameFeed
	NewTranscriptFrameFeed func(sampleID int64) tasks.FrameFeed
	NewRecognizer          func(sampleID int64) tasks.Recognizer

	LLMClient llm.ChatClient
	LLMModel  string

	Repo store.Repository
	Bus  *events.Bus
}

// Run executes every sample in order, returning the first error encountered.
func (e *TrialExecutor) Run(ctx context.Context, bus *control.Bus) error {
	recv := bus.Receiver()
	total := len(e.Samples)

	for i, sample := range e.Samples {
		signal := recv.AwaitRunning(ctx)
		if signal == control.Stopped {
			return errs.New(errs.Cancelled, "trial loop stopped before all samples ran")
		}

		if err := e.runTrial(ctx, bus, sample, i, total); err != nil {
			return fmt.Errorf("trial for sample %d: %w", sample.ID, err)
		}

		emitter := events.NewEmitter(e.Bus, e.TaskID)
		_ = emitter.Emit(ctx, events.NewProgressUpdate(e.TaskID, 100*float64(i+1)/float64(total), sample.ID, int64(total), "trial_complete"))
	}
	return nil
}

func (e *TrialExecutor) runTrial(ctx context.Context, bus *control.Bus, sample *model.TestSample, index, total int) error {
	suffix := fmt.Sprintf("_%d", sample.ID)
	wakeAudioID := "wake_audio" + suffix
	commandAudioID := "command_audio" + suffix
	audioOCRID := "audio_ocr" + suffix
	joinID := "join" + suffix
	transcriptOCRID := "transcript_ocr" + suffix
	asrID := "asr" + suffix
	analysisID := "analysis" + suffix
	finalizeID := "finalize" + suffix

	k := workflow.NewKernel()

	k.AddTask(&tasks.AudioTask{TaskID: wakeAudioID, Controller: e.AudioController, Dir: e.AudioDir, Keyword: e.WakeWordText})
	k.AddTask(&tasks.AudioTask{TaskID: commandAudioID, Controller: e.AudioController, Dir: e.AudioDir, Keyword: sample.Text})
	k.AddTask(&tasks.OCRTask{TaskID: audioOCRID, Session: ocr.NewSession(), Frames: e.NewAudioFrameFeed(sample.ID)})
	k.AddTask(workflow.TaskFunc{TaskID: joinID, Fn: joinNoOp})
	k.AddTask(&tasks.OCRTask{TaskID: transcriptOCRID, Session: ocr.NewSession(), Frames: e.NewTranscriptFrameFeed(sample.ID)})
	k.AddTask(&tasks.ASRTask{TaskID: asrID, Recognizer: e.NewRecognizer(sample.ID), ExpectedText: sample.Text, Timeout: 10 * time.Second})
	k.AddTask(&tasks.LLMAnalysisTask{TaskID: analysisID, ASRTaskID: asrID, ActiveTaskID: audioOCRID, Client: e.LLMClient, Model: e.LLMModel})
	k.AddTask(&tasks.FinalizeTask{
		TaskID: finalizeID, ParentTaskID: e.TaskID, SampleID: sample.ID,
		ASRTaskID: asrID, AnalysisTaskID: analysisID, Repo: e.Repo,
		TotalSamples: total, SampleIndex: index,
	})

	k.AddDependency(commandAudioID, wakeAudioID)
	k.AddDependency(audioOCRID, wakeAudioID)
	k.AddDependency(joinID, commandAudioID)
	k.AddDependency(joinID, audioOCRID)
	k.AddDependency(asrID, joinID)
	k.AddDependency(transcriptOCRID, joinID)
	k.AddDependency(analysisID, asrID)
	k.AddDependency(analysisID, transcriptOCRID)
	k.AddDependency(finalizeID, analysisID)

	emitter := events.NewEmitter(e.Bus, e.TaskID)
	if _, err := k.RunAndWait(ctx, emitter, bus); err != nil {
		return err
	}
	return nil
}

func joinNoOp(ctx context.Context, recv *control.Receiver, wfctx *workflow.Context, emit *events.Emitter) error {
	return nil
}
