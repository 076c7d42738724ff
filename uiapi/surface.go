// Package uiapi exposes the UI-facing command surface (spec §6.3) as a pure
// Go interface. No transport (gRPC/HTTP) is generated for it: the
// desktop-shell process that forwards real UI calls onto this surface is an
// external collaborator out of scope for this engine (spec §1).
package uiapi

import (
	"context"
	"time"

	"github.com/drivevox/validator/control"
	"github.com/drivevox/validator/errs"
	"github.com/drivevox/validator/model"
	"github.com/drivevox/validator/store"
	"github.com/drivevox/validator/visualwake"
)

// MicrophonePermission is the result of a platform permission probe. The
// probe itself is external (spec §1 Non-goal: "platform permission
// prompts"); this surface only reports the outcome.
type MicrophonePermission string

const (
	MicrophoneGranted MicrophonePermission = "granted"
	MicrophoneDenied  MicrophonePermission = "denied"
	MicrophoneUnknown MicrophonePermission = "unknown"
)

// PermissionProbe is the external collaborator that knows how to ask the
// host platform for microphone access.
type PermissionProbe interface {
	ProbeMicrophone(ctx context.Context) (MicrophonePermission, error)
}

// CommandSurface is the inbound command set a desktop-shell UI drives
// (spec §6.3): task/sample/wake-word CRUD with batch duplicate pre-check,
// workflow start/pause/resume/stop, frame push for OCR and visual-wake, and
// a microphone permission probe. Every command returns a domain result or
// an error.
type CommandSurface interface {
	CreateTask(ctx context.Context, t *model.Task) (int64, error)
	GetTask(ctx context.Context, id int64) (*model.Task, error)
	ListTasks(ctx context.Context) ([]*model.Task, error)
	DeleteTask(ctx context.Context, id int64) error

	CreateSamples(ctx context.Context, samples []*model.TestSample) (created, duplicates []*model.TestSample, err error)
	DeleteSample(ctx context.Context, id int64) error

	CreateWakeWords(ctx context.Context, words []*model.WakeWord) (created, duplicates []*model.WakeWord, err error)
	DeleteWakeWord(ctx context.Context, id int64) error

	Start(ctx context.Context, taskID int64) error
	Pause(ctx context.Context, taskID int64) error
	Resume(ctx context.Context, taskID int64) error
	Stop(ctx context.Context, taskID int64) error

	// PushOCRFrame forwards one recognized-text frame to the OCR task
	// currently running for taskID, if any.
	PushOCRFrame(ctx context.Context, taskID int64, text string, ts time.Time) error
	// PushVisualFrame forwards one decoded video frame to the shared
	// visual-wake detector (spec §5: "a single shared instance").
	PushVisualFrame(ctx context.Context, frame visualwake.Grayscale) (matched bool, score float64)

	ProbeMicrophone(ctx context.Context) (MicrophonePermission, error)
}

// Service is the reference CommandSurface implementation: CRUD delegates
// to a store.Repository, workflow control delegates to a per-task
// control.Bus, and OCR frames are routed through per-task FrameQueues that
// the meta-executor wires into its OCRTask.Frames field.
type Service struct {
	Repo     store.Repository
	Detector *visualwake.Detector
	Probe    PermissionProbe

	buses  map[int64]*control.Bus
	frames map[int64]*FrameQueue
}

// NewService wires a Service over repo, the shared detector, and probe.
func NewService(repo store.Repository, detector *visualwake.Detector, probe PermissionProbe) *Service {
	return &Service{
		Repo:     repo,
		Detector: detector,
		Probe:    probe,
		buses:    make(map[int64]*control.Bus),
		frames:   make(map[int64]*FrameQueue),
	}
}

// RegisterRun associates taskID with the control.Bus and FrameQueue a
// meta-executor is driving, so subsequent Start/Pause/Resume/Stop and
// PushOCRFrame calls reach the right run. Call before Start.
func (s *Service) RegisterRun(taskID int64, bus *control.Bus, frames *FrameQueue) {
	s.buses[taskID] = bus
	s.frames[taskID] = frames
}

func (s *Service) CreateTask(ctx context.Context, t *model.Task) (int64, error) {
	return s.Repo.CreateTask(ctx, t)
}

func (s *Service) GetTask(ctx context.Context, id int64) (*model.Task, error) {
	return s.Repo.GetTaskByID(ctx, id)
}

func (s *Service) ListTasks(ctx context.Context) ([]*model.Task, error) {
	return s.Repo.GetAllTasks(ctx)
}

func (s *Service) DeleteTask(ctx context.Context, id int64) error {
	delete(s.buses, id)
	delete(s.frames, id)
	return s.Repo.DeleteTask(ctx, id)
}

func (s *Service) CreateSamples(ctx context.Context, samples []*model.TestSample) ([]*model.TestSample, []*model.TestSample, error) {
	newSamples, duplicates, err := s.Repo.PrecheckSamples(ctx, samples)
	if err != nil {
		return nil, nil, err
	}
	if _, _, err := s.Repo.CreateSamplesBatch(ctx, newSamples); err != nil {
		return nil, nil, err
	}
	return newSamples, duplicates, nil
}

func (s *Service) DeleteSample(ctx context.Context, id int64) error {
	return s.Repo.DeleteSampleSafe(ctx, id)
}

func (s *Service) CreateWakeWords(ctx context.Context, words []*model.WakeWord) ([]*model.WakeWord, []*model.WakeWord, error) {
	newWords, duplicates, err := s.Repo.PrecheckWakeWords(ctx, words)
	if err != nil {
		return nil, nil, err
	}
	if _, _, err := s.Repo.CreateWakeWordsBatch(ctx, newWords); err != nil {
		return nil, nil, err
	}
	return newWords, duplicates, nil
}

func (s *Service) DeleteWakeWord(ctx context.Context, id int64) error {
	return s.Repo.DeleteWakeWordSafe(ctx, id)
}

func (s *Service) Start(ctx context.Context, taskID int64) error {
	bus, ok := s.buses[taskID]
	if !ok {
		return errs.New(errs.NotFound, "no run registered for task")
	}
	bus.Set(control.Running)
	return s.Repo.UpdateTaskStatus(ctx, taskID, model.TaskRunning, "")
}

func (s *Service) Pause(ctx context.Context, taskID int64) error {
	bus, ok := s.buses[taskID]
	if !ok {
		return errs.New(errs.NotFound, "no run registered for task")
	}
	bus.Set(control.Paused)
	return s.Repo.UpdateTaskStatus(ctx, taskID, model.TaskPaused, "")
}

func (s *Service) Resume(ctx context.Context, taskID int64) error {
	bus, ok := s.buses[taskID]
	if !ok {
		return errs.New(errs.NotFound, "no run registered for task")
	}
	bus.Set(control.Running)
	return s.Repo.UpdateTaskStatus(ctx, taskID, model.TaskRunning, "")
}

func (s *Service) Stop(ctx context.Context, taskID int64) error {
	bus, ok := s.buses[taskID]
	if !ok {
		return errs.New(errs.NotFound, "no run registered for task")
	}
	bus.Set(control.Stopped)
	return s.Repo.UpdateTaskStatus(ctx, taskID, model.TaskFailed, "stopped by user")
}

func (s *Service) PushOCRFrame(ctx context.Context, taskID int64, text string, ts time.Time) error {
	queue, ok := s.frames[taskID]
	if !ok {
		return errs.New(errs.NotFound, "no OCR frame queue registered for task")
	}
	return queue.Push(ctx, text, ts)
}

func (s *Service) PushVisualFrame(ctx context.Context, frame visualwake.Grayscale) (bool, float64) {
	return s.Detector.SubmitFrame(frame)
}

func (s *Service) ProbeMicrophone(ctx context.Context) (MicrophonePermission, error) {
	if s.Probe == nil {
		return MicrophoneUnknown, nil
	}
	return s.Probe.ProbeMicrophone(ctx)
}
