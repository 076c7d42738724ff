// Package model defines the validation-engine data model (spec §3):
// TestSample, WakeWord, Task, Trial, MachineResponse, AnalysisResult, and
// TimingData. These are plain data types; persistence is owned by package
// store, which exposes the repository contract (spec §6.4).
package model

import "time"

// TaskStatus is the closed set of lifecycle states a validation Task row may
// hold. Status is monotone within one run (spec §3 invariant).
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskPaused    TaskStatus = "paused"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Valid reports whether s is one of the defined statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskRunning, TaskPaused, TaskCompleted, TaskFailed:
		return true
	default:
		return false
	}
}

// TestSample is a spoken command clip paired with its expected transcript.
// Unique by (Text, AudioFile); deletion is forbidden while referenced by a
// Task (spec §3).
type TestSample struct {
	ID        int64
	Text      string
	AudioFile string // empty means no pre-recorded clip
}

// WakeWord is a wake-word phrase paired with an optional audio clip, subject
// to the same uniqueness and referential rules as TestSample.
type WakeWord struct {
	ID        int64
	Text      string
	AudioFile string
}

// Task is one validation job: the Cartesian product of its sample and
// wake-word lists, one trial per pair.
type Task struct {
	ID        int64
	Name      string
	SampleIDs []int64
	// WakeWordIDs is the sole representation of a task's wake words; no
	// singular WakeWordID alias is exposed (spec §9(iii)).
	WakeWordIDs []int64
	Status      TaskStatus
	// Progress is completed-trials / total-trials, monotone within a run.
	Progress      float64
	CreatedAt     time.Time
	FailureReason string
	Metrics       TaskMetrics
}

// TaskMetrics aggregates outcomes across all trials of a Task.
type TaskMetrics struct {
	TotalTrials     int
	CompletedTrials int
	SuccessfulWakes int
}

// Trial identifies one (task, sample, wake-word) execution of a sub-DAG. It
// is never persisted directly; it is the key under which MachineResponse,
// AnalysisResult, and TimingData rows are stored.
type Trial struct {
	TaskID     int64
	SampleID   int64
	WakeWordID int64
}

// MachineResponse is the device's reply for one trial as recognized by the
// ASR task; FinalizeTask stores the ASR response text here. Exactly 1:1 with
// a completed Trial.
type MachineResponse struct {
	TaskID    int64
	SampleID  int64
	Text      string
	Connected bool
}

// RubricScore is one scored dimension of an AnalysisResult.
type RubricScore struct {
	Score   float64
	Comment string
}

// AnalysisThreshold is the minimum overall score for a trial to be valid
// (spec §3).
const AnalysisThreshold = 0.6

// AnalysisResult is the LLM-scored assessment of one trial's machine
// response against its expected sample.
type AnalysisResult struct {
	TaskID   int64
	SampleID int64

	SemanticCorrectness     RubricScore
	StateChangeConfirmation RubricScore
	UnambiguousExpression   RubricScore

	Overall     float64
	Valid       bool
	Suggestions []string

	ReferenceText  string
	RecognizedText string
	ScoredAt       time.Time
}

// ComputeOverall sets Overall to the mean of the three rubric scores (spec
// §3 invariant: overall = mean(three scores)) and Valid to whether Overall
// reaches AnalysisThreshold.
func (a *AnalysisResult) ComputeOverall() {
	a.Overall = (a.SemanticCorrectness.Score + a.StateChangeConfirmation.Score + a.UnambiguousExpression.Score) / 3
	a.Valid = a.Overall >= AnalysisThreshold
}

// TimingData carries the raw timestamps and derived durations for one trial.
// Durations are computed only when both endpoints are present.
type TimingData struct {
	TaskID   int64
	SampleID int64

	VoiceCommandStart *time.Time
	VoiceCommandEnd   *time.Time
	MachineRespondAt  *time.Time
	ASRStart          *time.Time
	ASREnd            *time.Time
	AnalysisEnd       *time.Time
}

// CommandDuration is the elapsed time playing the spoken command, if both
// endpoints were recorded.
func (t TimingData) CommandDuration() *time.Duration {
	return durationBetween(t.VoiceCommandStart, t.VoiceCommandEnd)
}

// ASRDuration is the elapsed time awaiting a recognized transcript, if both
// endpoints were recorded.
func (t TimingData) ASRDuration() *time.Duration {
	return durationBetween(t.ASRStart, t.ASREnd)
}

// RoundTripDuration is the elapsed time from command start to analysis
// completion, if both endpoints were recorded.
func (t TimingData) RoundTripDuration() *time.Duration {
	return durationBetween(t.VoiceCommandStart, t.AnalysisEnd)
}

func durationBetween(start, end *time.Time) *time.Duration {
	if start == nil || end == nil {
		return nil
	}
	d := end.Sub(*start)
	return &d
}
