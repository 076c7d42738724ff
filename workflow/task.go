package workflow

import (
	"context"

	"github.com/drivevox/validator/control"
	"github.com/drivevox/validator/events"
)

// Task is one node of a run's DAG. Execute must poll recv for Paused/Stopped
// at least every ~500ms (spec §4.2): Paused parks without returning, Stopped
// returns nil promptly without doing further work.
type Task interface {
	ID() string
	Execute(ctx context.Context, recv *control.Receiver, wfctx *Context, emit *events.Emitter) error
}

// TaskFunc adapts a function to the Task interface for nodes with no
// meaningful standalone type (e.g. a join/barrier or a trivial relay).
type TaskFunc struct {
	TaskID string
	Fn     func(ctx context.Context, recv *control.Receiver, wfctx *Context, emit *events.Emitter) error
}

func (f TaskFunc) ID() string { return f.TaskID }

func (f TaskFunc) Execute(ctx context.Context, recv *control.Receiver, wfctx *Context, emit *events.Emitter) error {
	return f.Fn(ctx, recv, wfctx, emit)
}
