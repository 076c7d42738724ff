package tasks_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drivevox/validator/control"
	"github.com/drivevox/validator/events"
	"github.com/drivevox/validator/model"
	"github.com/drivevox/validator/store/memory"
	"github.com/drivevox/validator/tasks"
	"github.com/drivevox/validator/workflow"
)

func TestFinalizeTaskIsIdempotentAcrossRetries(t *testing.T) {
	repo := memory.New()
	taskID, err := repo.CreateTask(context.Background(), &model.Task{Name: "t"})
	require.NoError(t, err)

	wfctx := workflow.NewContext()
	wfctx.Set("asr", tasks.ASROutput{Response: "好的已打开"})
	wfctx.Set("analysis", &model.AnalysisResult{Overall: 0.9, Valid: true})

	ft := &tasks.FinalizeTask{
		TaskID: "finalize", ParentTaskID: taskID, SampleID: 1,
		ASRTaskID: "asr", AnalysisTaskID: "analysis", Repo: repo,
		TotalSamples: 1, SampleIndex: 0,
	}
	recv := control.NewBus().Receiver()
	emit := events.NewEmitter(events.NewBus(), 1)

	require.NoError(t, ft.Execute(context.Background(), recv, wfctx, emit))
	require.NoError(t, ft.Execute(context.Background(), recv, wfctx, emit))

	results, err := repo.GetAnalysisResultsByTask(context.Background(), taskID)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	got, err := repo.GetTaskByID(context.Background(), taskID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Progress)
}
