package meta_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drivevox/validator/audio"
	"github.com/drivevox/validator/control"
	"github.com/drivevox/validator/events"
	"github.com/drivevox/validator/meta"
	"github.com/drivevox/validator/model"
	"github.com/drivevox/validator/tasks"
	"github.com/drivevox/validator/visualwake"
)

type silentPlayer struct{}

func (silentPlayer) Play(ctx context.Context, path string) error { return nil }
func (silentPlayer) Stop()                                       {}

type scriptedRecognizer struct{ text string }

func (r scriptedRecognizer) Recognize(ctx context.Context) (string, error) { return r.text, nil }

func TestWakeOnlyExecutorClassifiesSuccessByASRMatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "xiaozhi.wav"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nohit.wav"), []byte("x"), 0o644))

	ctrl := audio.NewController(silentPlayer{})
	defer ctrl.Close()

	detector := visualwake.NewDetector(visualwake.NewNCCMatcher(), nil, visualwake.DefaultThreshold)

	bus := events.NewBus()
	var captured []*events.WakeDetectionFinalStatsEvent
	bus.Register(events.SubscriberFunc(func(ctx context.Context, e events.Event) error {
		if final, ok := e.(*events.WakeDetectionFinalStatsEvent); ok {
			captured = append(captured, final)
		}
		return nil
	}))

	exec := &meta.WakeOnlyExecutor{
		TaskID:           1,
		WakeWords:        []*model.WakeWord{{ID: 10, Text: "xiaozhi"}, {ID: 11, Text: "nohit"}},
		AudioDir:         dir,
		AudioController:  ctrl,
		Detector:         detector,
		MaxDetectionTime: 50 * time.Millisecond,
		NewRecognizer: func(wakeWordID int64) tasks.Recognizer {
			if wakeWordID == 10 {
				return scriptedRecognizer{text: "xiaozhi"}
			}
			return scriptedRecognizer{text: "something else entirely"}
		},
		Bus: bus,
	}

	cbus := control.NewBus()

	require.NoError(t, exec.Run(context.Background(), cbus))
	require.Len(t, captured, 1)

	stats := captured[0]
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.SuccessCount)
	assert.InDelta(t, 0.5, stats.SuccessRate, 1e-9)
	require.Len(t, stats.Results, 2)
	assert.True(t, stats.Results[0].Success)
	assert.False(t, stats.Results[1].Success)
}
