package tasks_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drivevox/validator/control"
	"github.com/drivevox/validator/events"
	"github.com/drivevox/validator/tasks"
	"github.com/drivevox/validator/workflow"
)

func TestCheckpointSucceedsWhenActiveTaskCompleted(t *testing.T) {
	wfctx := workflow.NewContext()
	wfctx.Set("active", map[string]any{"status": "completed"})
	wfctx.Set("asr", tasks.ASROutput{Response: ""})

	ck := &tasks.CheckpointTask{TaskID: "checkpoint", ActiveTaskID: "active", ASRTaskID: "asr"}
	recv := control.NewBus().Receiver()
	emit := events.NewEmitter(events.NewBus(), 1)

	require.NoError(t, ck.Execute(context.Background(), recv, wfctx, emit))

	success, ok := wfctx.GetBool("wake_detection_success")
	require.True(t, ok)
	assert.True(t, success)
}

func TestCheckpointMatchesExpectedResponseLadder(t *testing.T) {
	cases := []struct {
		name     string
		asr      string
		expected []string
		want     bool
	}{
		{"exact", "你好", []string{"你好"}, true},
		{"substring", "你好呀小度", []string{"你好"}, true},
		{"alnum-only", "你好, 小度!", []string{"你好 小度"}, true},
		{"no-match", "晚安", []string{"你好"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wfctx := workflow.NewContext()
			wfctx.Set("active", map[string]any{"status": "timeout"})
			wfctx.Set("asr", tasks.ASROutput{Response: tc.asr})

			ck := &tasks.CheckpointTask{TaskID: "checkpoint", ActiveTaskID: "active", ASRTaskID: "asr", ExpectedResponses: tc.expected}
			recv := control.NewBus().Receiver()
			emit := events.NewEmitter(events.NewBus(), 1)

			require.NoError(t, ck.Execute(context.Background(), recv, wfctx, emit))
			success, _ := wfctx.GetBool("wake_detection_success")
			assert.Equal(t, tc.want, success)
		})
	}
}
