// Package workflow implements the concurrent DAG workflow kernel: the task
// set and its "B depends on A" edges, in-degree-zero scheduling, dynamic
// goroutine dispatch, and control-signal propagation on failure.
package workflow

import (
	"context"
	"fmt"

	"github.com/drivevox/validator/control"
	"github.com/drivevox/validator/events"
)

// Kernel owns one run's task set and dependency edges. It is single-use:
// build it, call AddTask/AddDependency to describe the DAG, then RunAndWait
// once.
type Kernel struct {
	tasks      map[string]Task
	dependents map[string][]string // prerequisite -> dependents
	prereqsOf  map[string][]string // dependent -> prerequisites
	order      []string            // insertion order, for deterministic iteration
}

// NewKernel returns an empty Kernel.
func NewKernel() *Kernel {
	return &Kernel{
		tasks:      make(map[string]Task),
		dependents: make(map[string][]string),
		prereqsOf:  make(map[string][]string),
	}
}

// AddTask registers t. Panics if a task with the same ID is already
// registered, since that would make the DAG ambiguous.
func (k *Kernel) AddTask(t Task) {
	id := t.ID()
	if _, exists := k.tasks[id]; exists {
		panic(fmt.Sprintf("workflow: task %q already added", id))
	}
	k.tasks[id] = t
	k.order = append(k.order, id)
}

// AddDependency records that dependent may not start until prerequisite
// completes. Both must already be registered via AddTask.
func (k *Kernel) AddDependency(dependent, prerequisite string) {
	if _, ok := k.tasks[dependent]; !ok {
		panic(fmt.Sprintf("workflow: unknown dependent task %q", dependent))
	}
	if _, ok := k.tasks[prerequisite]; !ok {
		panic(fmt.Sprintf("workflow: unknown prerequisite task %q", prerequisite))
	}
	k.dependents[prerequisite] = append(k.dependents[prerequisite], dependent)
	k.prereqsOf[dependent] = append(k.prereqsOf[dependent], prerequisite)
}

// taskResult is the outcome of one spawned task, carried over the
// completion channel.
type taskResult struct {
	id  string
	err error
}

// RunAndWait schedules in-degree-zero tasks, dispatches each to its own
// goroutine, and advances the ready set as completions arrive. On the first
// task failure it flips bus to control.Stopped, waits for every
// already-spawned task to observe the stop and return, then surfaces the
// first error. Returns the populated Context on success.
//
// A graph in which no task has zero in-degree is rejected before anything
// is spawned. A cycle confined to part of the graph is detected only once
// every task outside it has run and returned; RunAndWait then returns an
// error naming the tasks that never reached zero in-degree.
func (k *Kernel) RunAndWait(ctx context.Context, emitter *events.Emitter, bus *control.Bus) (*Context, error) {
	inDegree := make(map[string]int, len(k.tasks))
	for id := range k.tasks {
		inDegree[id] = len(k.prereqsOf[id])
	}

	var ready []string
	for _, id := range k.order {
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	if len(ready) == 0 && len(k.tasks) > 0 {
		return nil, fmt.Errorf("workflow: no task has zero in-degree, graph has a cycle")
	}

	wfctx := NewContext()
	results := make(chan taskResult, len(k.tasks))
	recv := bus.Receiver()

	spawned := 0
	spawn := func(id string) {
		spawned++
		t := k.tasks[id]
		go func() {
			err := t.Execute(ctx, recv, wfctx, emitter)
			results <- taskResult{id: id, err: err}
		}()
	}
	for _, id := range ready {
		spawn(id)
	}

	remaining := spawned
	pendingInDegree := inDegree
	var firstErr error
	stopping := false
	completed := 0

	for completed < len(k.tasks) {
		if remaining == 0 {
			// Every spawned task has reported but the graph still has
			// unvisited nodes. If nothing failed, those nodes never
			// reached zero in-degree on their own: a cycle among them,
			// not yet caught by the initial ready-set check (which only
			// rejects a DAG with no zero in-degree task at all, not a
			// cycle confined to a subgraph). Treat it the same way:
			// fail fast rather than return a context the cyclic nodes
			// never wrote to.
			if firstErr == nil {
				unvisited := make([]string, 0, len(k.tasks)-completed)
				for _, id := range k.order {
					if pendingInDegree[id] != 0 {
						unvisited = append(unvisited, id)
					}
				}
				firstErr = fmt.Errorf("workflow: cycle among tasks %v, never reached zero in-degree", unvisited)
			}
			break
		}
		res := <-results
		remaining--
		completed++

		if res.err != nil && firstErr == nil {
			firstErr = fmt.Errorf("task %q: %w", res.id, res.err)
			if !stopping {
				stopping = true
				bus.Set(control.Stopped)
			}
			continue
		}
		if stopping {
			continue
		}

		for _, dependent := range k.dependents[res.id] {
			pendingInDegree[dependent]--
			if pendingInDegree[dependent] == 0 {
				spawn(dependent)
				remaining++
			}
		}
	}

	if firstErr != nil {
		return wfctx, firstErr
	}
	return wfctx, nil
}

// Receiver exposes the control-signal receiver a caller can hand to tasks
// built outside the kernel's own spawn loop (e.g. meta-executors composing
// sub-kernels). Unused by RunAndWait itself, which mints its own.
func Receiver(bus *control.Bus) *control.Receiver {
	return bus.Receiver()
}
