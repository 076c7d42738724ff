package workflow_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drivevox/validator/control"
	"github.com/drivevox/validator/events"
	"github.com/drivevox/validator/workflow"
)

func recordingTask(id string, order *[]string, mu *atomicMutex) workflow.TaskFunc {
	return workflow.TaskFunc{
		TaskID: id,
		Fn: func(ctx context.Context, recv *control.Receiver, wfctx *workflow.Context, emit *events.Emitter) error {
			mu.Lock()
			*order = append(*order, id)
			mu.Unlock()
			wfctx.Set(id+"_done", true)
			return nil
		},
	}
}

// atomicMutex avoids importing sync just for one mutex in the test file.
type atomicMutex struct{ flag int32 }

func (m *atomicMutex) Lock() {
	for !atomic.CompareAndSwapInt32(&m.flag, 0, 1) {
	}
}
func (m *atomicMutex) Unlock() { atomic.StoreInt32(&m.flag, 0) }

func TestRunAndWaitRespectsDependencyOrder(t *testing.T) {
	k := workflow.NewKernel()
	var order []string
	var mu atomicMutex

	k.AddTask(recordingTask("A", &order, &mu))
	k.AddTask(recordingTask("B", &order, &mu))
	k.AddTask(recordingTask("C", &order, &mu))
	k.AddDependency("B", "A")
	k.AddDependency("C", "B")

	bus := control.NewBus()
	emitter := events.NewEmitter(events.NewBus(), 1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	wfctx, err := k.RunAndWait(ctx, emitter, bus)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, order)

	done, ok := wfctx.GetBool("C_done")
	assert.True(t, ok)
	assert.True(t, done)
}

func TestRunAndWaitStopsOnFirstFailure(t *testing.T) {
	k := workflow.NewKernel()

	failing := workflow.TaskFunc{TaskID: "fail", Fn: func(ctx context.Context, recv *control.Receiver, wfctx *workflow.Context, emit *events.Emitter) error {
		return errors.New("boom")
	}}
	blocked := workflow.TaskFunc{TaskID: "downstream", Fn: func(ctx context.Context, recv *control.Receiver, wfctx *workflow.Context, emit *events.Emitter) error {
		t.Error("downstream task must not run after its prerequisite fails")
		return nil
	}}
	k.AddTask(failing)
	k.AddTask(blocked)
	k.AddDependency("downstream", "fail")

	bus := control.NewBus()
	emitter := events.NewEmitter(events.NewBus(), 1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := k.RunAndWait(ctx, emitter, bus)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, control.Stopped, bus.Current())
}

func TestRunAndWaitDetectsCycle(t *testing.T) {
	k := workflow.NewKernel()
	k.AddTask(workflow.TaskFunc{TaskID: "A", Fn: noop})
	k.AddTask(workflow.TaskFunc{TaskID: "B", Fn: noop})
	k.AddDependency("A", "B")
	k.AddDependency("B", "A")

	bus := control.NewBus()
	emitter := events.NewEmitter(events.NewBus(), 1)

	_, err := k.RunAndWait(context.Background(), emitter, bus)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestRunAndWaitDetectsPartialCycle(t *testing.T) {
	k := workflow.NewKernel()
	var order []string
	var mu atomicMutex

	k.AddTask(recordingTask("A", &order, &mu))
	k.AddTask(workflow.TaskFunc{TaskID: "B", Fn: noop})
	k.AddTask(workflow.TaskFunc{TaskID: "C", Fn: noop})
	k.AddDependency("B", "C")
	k.AddDependency("C", "B")

	bus := control.NewBus()
	emitter := events.NewEmitter(events.NewBus(), 1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := k.RunAndWait(ctx, emitter, bus)
	require.Error(t, err, "A completing alone must not mask B/C's cycle")
	assert.Contains(t, err.Error(), "cycle")
}

func noop(ctx context.Context, recv *control.Receiver, wfctx *workflow.Context, emit *events.Emitter) error {
	return nil
}

func TestContextSetPanicsOnDuplicateKey(t *testing.T) {
	c := workflow.NewContext()
	c.Set("k", 1)
	assert.Panics(t, func() { c.Set("k", 2) })
}
