// Package pulsesink streams validation-engine events onto a
// goa.design/pulse stream backed by Redis, so a desktop-shell UI running in
// a separate process can observe a run. It implements events.Subscriber and
// is registered on an events.Bus alongside (or instead of) the default
// in-process sink.
package pulsesink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"goa.design/pulse/streaming"
	streamopts "goa.design/pulse/streaming/options"

	"github.com/drivevox/validator/events"
)

// envelope is the wire shape written to the stream: the event's type tag
// plus its JSON-encoded payload, so a consumer can dispatch before decoding.
type envelope struct {
	Type   events.EventType `json:"type"`
	TaskID int64            `json:"task_id"`
	Data   json.RawMessage  `json:"data"`
}

// Sink publishes events onto a named Pulse stream per task.
type Sink struct {
	redis      *redis.Client
	streamName func(taskID int64) string
}

// Options configures a Sink.
type Options struct {
	// Redis is the connection backing Pulse streams. Required.
	Redis *redis.Client
	// StreamName derives the Pulse stream name for a task. Defaults to
	// "validator-task-<id>" when nil.
	StreamName func(taskID int64) string
}

// New constructs a Sink. Returns an error if opts.Redis is nil.
func New(opts Options) (*Sink, error) {
	if opts.Redis == nil {
		return nil, fmt.Errorf("pulsesink: redis client is required")
	}
	name := opts.StreamName
	if name == nil {
		name = func(taskID int64) string { return fmt.Sprintf("validator-task-%d", taskID) }
	}
	return &Sink{redis: opts.Redis, streamName: name}, nil
}

// HandleEvent implements events.Subscriber by appending event to the
// task-scoped Pulse stream.
func (s *Sink) HandleEvent(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("pulsesink: encode event: %w", err)
	}
	env := envelope{Type: event.Type(), TaskID: event.TaskID(), Data: payload}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("pulsesink: encode envelope: %w", err)
	}
	stream, err := streaming.NewStream(s.streamName(event.TaskID()), s.redis, streamopts.WithStreamMaxLen(1000))
	if err != nil {
		return fmt.Errorf("pulsesink: open stream: %w", err)
	}
	if _, err := stream.Add(ctx, string(event.Type()), body); err != nil {
		return fmt.Errorf("pulsesink: publish event: %w", err)
	}
	return nil
}

// Subscribe opens a consumer-group sink on the task's stream and returns a
// channel of raw Pulse events, for a UI process to observe a run started
// elsewhere.
func Subscribe(ctx context.Context, rdb *redis.Client, taskID int64, consumerGroup string) (<-chan *streaming.Event, func(context.Context), error) {
	stream, err := streaming.NewStream(fmt.Sprintf("validator-task-%d", taskID), rdb)
	if err != nil {
		return nil, nil, fmt.Errorf("pulsesink: open stream: %w", err)
	}
	sink, err := stream.NewSink(ctx, consumerGroup)
	if err != nil {
		return nil, nil, fmt.Errorf("pulsesink: open sink: %w", err)
	}
	return sink.Subscribe(), sink.Close, nil
}
