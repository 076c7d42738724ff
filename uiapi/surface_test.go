package uiapi_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drivevox/validator/control"
	"github.com/drivevox/validator/model"
	"github.com/drivevox/validator/store/memory"
	"github.com/drivevox/validator/uiapi"
	"github.com/drivevox/validator/visualwake"
)

type grantingProbe struct{}

func (grantingProbe) ProbeMicrophone(ctx context.Context) (uiapi.MicrophonePermission, error) {
	return uiapi.MicrophoneGranted, nil
}

func TestServiceCreateAndPrecheckSamples(t *testing.T) {
	repo := memory.New()
	detector := visualwake.NewDetector(visualwake.NewNCCMatcher(), nil, visualwake.DefaultThreshold)
	svc := uiapi.NewService(repo, detector, grantingProbe{})

	taskID, err := svc.CreateTask(context.Background(), &model.Task{Name: "demo"})
	require.NoError(t, err)
	assert.NotZero(t, taskID)

	created, duplicates, err := svc.CreateSamples(context.Background(), []*model.TestSample{
		{Text: "打开车窗", AudioFile: "open_window.wav"},
	})
	require.NoError(t, err)
	assert.Len(t, created, 1)
	assert.Empty(t, duplicates)

	_, duplicates, err = svc.CreateSamples(context.Background(), []*model.TestSample{
		{Text: "打开车窗", AudioFile: "open_window.wav"},
	})
	require.NoError(t, err)
	assert.Len(t, duplicates, 1)

	perm, err := svc.ProbeMicrophone(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uiapi.MicrophoneGranted, perm)
}

func TestServiceStartRoutesToRegisteredBus(t *testing.T) {
	repo := memory.New()
	detector := visualwake.NewDetector(visualwake.NewNCCMatcher(), nil, visualwake.DefaultThreshold)
	svc := uiapi.NewService(repo, detector, nil)

	taskID, err := repo.CreateTask(context.Background(), &model.Task{Name: "demo"})
	require.NoError(t, err)

	bus := control.NewBus()
	bus.Set(control.Paused)
	queue := uiapi.NewFrameQueue()
	svc.RegisterRun(taskID, bus, queue)

	require.NoError(t, svc.Start(context.Background(), taskID))
	assert.Equal(t, control.Running, bus.Current())

	require.NoError(t, svc.PushOCRFrame(context.Background(), taskID, "你好", time.Now()))
	text, _, err := queue.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "你好", text)
}
