package events

import "context"

// Emitter is the narrow publishing handle a Task receives: a Bus bound to
// the task it runs under, so task code never has to thread a task ID
// through every Publish call.
type Emitter struct {
	bus    *Bus
	taskID int64
}

// NewEmitter binds bus to taskID.
func NewEmitter(bus *Bus, taskID int64) *Emitter {
	return &Emitter{bus: bus, taskID: taskID}
}

// TaskID returns the task this emitter is bound to.
func (e *Emitter) TaskID() int64 { return e.taskID }

// Emit publishes event on the underlying bus. A publish error (a subscriber
// rejected the event) is logged by the caller via the returned error; tasks
// generally treat emit failures as non-fatal unless the subscriber is a
// persistence-critical one.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	return e.bus.Publish(ctx, event)
}
