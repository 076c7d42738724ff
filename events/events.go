// Package events defines the control-plane events a run emits to an
// observing UI and the Bus that fans them out to subscribers.
package events

import (
	"context"
	"errors"
	"sync"
	"time"
)

// EventType is the closed set of event kinds a Task or meta-executor may
// publish.
type EventType string

const (
	ProgressUpdate         EventType = "progress_update"
	LLMAnalysisStart       EventType = "llm_analysis_event"
	LLMAnalysisResult      EventType = "llm_analysis_result"
	OCRControl             EventType = "ocr_event"
	OCRChannel             EventType = "ocr_channel"
	WakeDetectionResult    EventType = "wake_detection_result"
	WakeDetectionTestRun   EventType = "wake_detection_test_result"
	WakeDetectionFinalStat EventType = "wake_detection_final_stats"
	VisualWake             EventType = "visual_wake_event"
	TaskCompleted          EventType = "task_completed"
	MetaTaskUpdate         EventType = "meta_task_update"
	MetaTaskError          EventType = "meta_task_error"
)

// Event is the interface all published events satisfy. Subscribers use a
// type switch on the concrete event to read its payload.
type Event interface {
	Type() EventType
	TaskID() int64
	Timestamp() time.Time
}

type baseEvent struct {
	taskID int64
	at     time.Time
}

func (b baseEvent) TaskID() int64       { return b.taskID }
func (b baseEvent) Timestamp() time.Time { return b.at }

func newBase(taskID int64) baseEvent {
	return baseEvent{taskID: taskID, at: time.Now()}
}

// ProgressUpdateEvent reports overall completion of a task (spec §6.1).
type ProgressUpdateEvent struct {
	baseEvent
	Value         float64
	CurrentSample int64
	CurrentStage  string
	Total         int64
}

func (ProgressUpdateEvent) Type() EventType { return ProgressUpdate }

// NewProgressUpdate builds a ProgressUpdateEvent.
func NewProgressUpdate(taskID int64, value float64, currentSample, total int64, stage string) *ProgressUpdateEvent {
	return &ProgressUpdateEvent{baseEvent: newBase(taskID), Value: value, CurrentSample: currentSample, CurrentStage: stage, Total: total}
}

// LLMAnalysisStartEvent announces that rubric scoring has begun for a trial.
type LLMAnalysisStartEvent struct {
	baseEvent
	SampleID int64
}

func (LLMAnalysisStartEvent) Type() EventType { return LLMAnalysisStart }

// NewLLMAnalysisStart builds an LLMAnalysisStartEvent.
func NewLLMAnalysisStart(taskID, sampleID int64) *LLMAnalysisStartEvent {
	return &LLMAnalysisStartEvent{baseEvent: newBase(taskID), SampleID: sampleID}
}

// LLMAnalysisResultEvent carries a scored AnalysisResult. Result is any to
// avoid an import cycle with package model; callers pass a *model.AnalysisResult.
type LLMAnalysisResultEvent struct {
	baseEvent
	Result any
}

func (LLMAnalysisResultEvent) Type() EventType { return LLMAnalysisResult }

// NewLLMAnalysisResult builds an LLMAnalysisResultEvent.
func NewLLMAnalysisResult(taskID int64, result any) *LLMAnalysisResultEvent {
	return &LLMAnalysisResultEvent{baseEvent: newBase(taskID), Result: result}
}

// OCRControlKind is the closed set of OCR session lifecycle signals.
type OCRControlKind string

const (
	OCRStart  OCRControlKind = "start"
	OCRPause  OCRControlKind = "pause"
	OCRResume OCRControlKind = "resume"
	OCRStop   OCRControlKind = "stop"
)

// OCRControlEvent announces an OCR session lifecycle transition.
type OCRControlEvent struct {
	baseEvent
	Kind OCRControlKind
}

func (OCRControlEvent) Type() EventType { return OCRControl }

// NewOCRControl builds an OCRControlEvent.
func NewOCRControl(taskID int64, kind OCRControlKind) *OCRControlEvent {
	return &OCRControlEvent{baseEvent: newBase(taskID), Kind: kind}
}

// OCRChannelEvent is a streaming tagged-union update from an OCR session:
// exactly one of Data, Session, or Err is populated.
type OCRChannelEvent struct {
	baseEvent
	Data    []string // merged sentences recognized since the previous tick
	Session any      // ocr.Result (a value) once the session concludes
	Err     string
}

func (OCRChannelEvent) Type() EventType { return OCRChannel }

// NewOCRChannelData builds an OCRChannelEvent carrying recognized text.
func NewOCRChannelData(taskID int64, merged []string) *OCRChannelEvent {
	return &OCRChannelEvent{baseEvent: newBase(taskID), Data: merged}
}

// NewOCRChannelSession builds an OCRChannelEvent carrying the session's final result.
func NewOCRChannelSession(taskID int64, result any) *OCRChannelEvent {
	return &OCRChannelEvent{baseEvent: newBase(taskID), Session: result}
}

// NewOCRChannelError builds an OCRChannelEvent carrying a session-ending error.
func NewOCRChannelError(taskID int64, err string) *OCRChannelEvent {
	return &OCRChannelEvent{baseEvent: newBase(taskID), Err: err}
}

// WakeDetectionResultEvent reports a single trial's wake-success classification.
type WakeDetectionResultEvent struct {
	baseEvent
	Success bool
}

func (WakeDetectionResultEvent) Type() EventType { return WakeDetectionResult }

// NewWakeDetectionResult builds a WakeDetectionResultEvent.
func NewWakeDetectionResult(taskID int64, success bool) *WakeDetectionResultEvent {
	return &WakeDetectionResultEvent{baseEvent: newBase(taskID), Success: success}
}

// WakeDetectionTestResultEvent carries a richer per-trial wake-detection
// outcome than WakeDetectionResultEvent, including the wake word exercised.
type WakeDetectionTestResultEvent struct {
	baseEvent
	WakeWordID int64
	Success    bool
	ASRText    string
}

func (WakeDetectionTestResultEvent) Type() EventType { return WakeDetectionTestRun }

// NewWakeDetectionTestResult builds a WakeDetectionTestResultEvent.
func NewWakeDetectionTestResult(taskID, wakeWordID int64, success bool, asrText string) *WakeDetectionTestResultEvent {
	return &WakeDetectionTestResultEvent{baseEvent: newBase(taskID), WakeWordID: wakeWordID, Success: success, ASRText: asrText}
}

// WakeTrialOutcome is one entry of a WakeDetectionFinalStatsEvent's Results.
type WakeTrialOutcome struct {
	WakeWordID int64
	Success    bool
	DurationMS int64
}

// WakeDetectionFinalStatsEvent summarizes a completed wake-only run
// (spec §4.11: `{total, success_count, success_rate, avg_duration_ms, results[]}`).
type WakeDetectionFinalStatsEvent struct {
	baseEvent
	Total         int
	SuccessCount  int
	SuccessRate   float64
	AvgDurationMS float64
	Results       []WakeTrialOutcome
}

func (WakeDetectionFinalStatsEvent) Type() EventType { return WakeDetectionFinalStat }

// NewWakeDetectionFinalStats builds a WakeDetectionFinalStatsEvent, deriving
// SuccessRate and AvgDurationMS from results.
func NewWakeDetectionFinalStats(taskID int64, results []WakeTrialOutcome) *WakeDetectionFinalStatsEvent {
	total := len(results)
	successes := 0
	var durationSum int64
	for _, r := range results {
		if r.Success {
			successes++
		}
		durationSum += r.DurationMS
	}
	var rate, avg float64
	if total > 0 {
		rate = float64(successes) / float64(total)
		avg = float64(durationSum) / float64(total)
	}
	return &WakeDetectionFinalStatsEvent{
		baseEvent:     newBase(taskID),
		Total:         total,
		SuccessCount:  successes,
		SuccessRate:   rate,
		AvgDurationMS: avg,
		Results:       results,
	}
}

// VisualWakeEvent reports a visual-wake detector lifecycle or match event.
type VisualWakeEvent struct {
	baseEvent
	Kind       string
	Confidence *float64
	Message    string
}

func (VisualWakeEvent) Type() EventType { return VisualWake }

// NewVisualWake builds a VisualWakeEvent.
func NewVisualWake(taskID int64, kind string, confidence *float64, message string) *VisualWakeEvent {
	return &VisualWakeEvent{baseEvent: newBase(taskID), Kind: kind, Confidence: confidence, Message: message}
}

// TaskCompletedEvent announces a task's terminal outcome.
type TaskCompletedEvent struct {
	baseEvent
	Reason string
}

func (TaskCompletedEvent) Type() EventType { return TaskCompleted }

// NewTaskCompleted builds a TaskCompletedEvent.
func NewTaskCompleted(taskID int64, reason string) *TaskCompletedEvent {
	return &TaskCompletedEvent{baseEvent: newBase(taskID), Reason: reason}
}

// MetaTaskUpdateEvent carries a human-readable progress note from a meta-executor.
type MetaTaskUpdateEvent struct {
	baseEvent
	Message string
}

func (MetaTaskUpdateEvent) Type() EventType { return MetaTaskUpdate }

// NewMetaTaskUpdate builds a MetaTaskUpdateEvent.
func NewMetaTaskUpdate(taskID int64, message string) *MetaTaskUpdateEvent {
	return &MetaTaskUpdateEvent{baseEvent: newBase(taskID), Message: message}
}

// MetaTaskErrorEvent carries a human-readable terminal error from a meta-executor.
type MetaTaskErrorEvent struct {
	baseEvent
	Message string
}

func (MetaTaskErrorEvent) Type() EventType { return MetaTaskError }

// NewMetaTaskError builds a MetaTaskErrorEvent.
func NewMetaTaskError(taskID int64, message string) *MetaTaskErrorEvent {
	return &MetaTaskErrorEvent{baseEvent: newBase(taskID), Message: message}
}

// Subscriber reacts to events published on a Bus.
type Subscriber interface {
	HandleEvent(ctx context.Context, event Event) error
}

// StreamSink is a Subscriber that forwards events to an observing UI
// process rather than handling them in-process. The default in-process
// Bus registration satisfies this trivially; events/pulsesink.Sink is the
// out-of-process implementation.
type StreamSink = Subscriber

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(ctx context.Context, event Event) error

func (f SubscriberFunc) HandleEvent(ctx context.Context, event Event) error { return f(ctx, event) }

// Subscription is an active registration on a Bus; Close unregisters it.
type Subscription interface {
	Close() error
}

// Bus fans out published events to every registered Subscriber, stopping at
// the first subscriber error (mirrors the runtime event bus's synchronous
// fail-fast fan-out). Subscribers are held in a map, so the delivery order
// is not defined.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[*subscription]Subscriber
}

// NewBus constructs an empty, ready-to-use Bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[*subscription]Subscriber)}
}

type subscription struct {
	bus  *Bus
	once sync.Once
}

// Publish delivers event to every registered subscriber, in no defined
// order. Iteration stops at the first subscriber error; subscribers not yet
// reached do not see the event.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	subs := make([]Subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()
	for _, sub := range subs {
		if err := sub.HandleEvent(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// Register adds a subscriber and returns a Subscription that removes it on Close.
func (b *Bus) Register(sub Subscriber) (Subscription, error) {
	if sub == nil {
		return nil, errors.New("subscriber is required")
	}
	s := &subscription{bus: b}
	b.mu.Lock()
	b.subscribers[s] = sub
	b.mu.Unlock()
	return s, nil
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subscribers, s)
		s.bus.mu.Unlock()
	})
	return nil
}
