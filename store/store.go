// Package store defines the repository contract (spec §6.4). Persistence is
// explicitly out of scope for the engine itself (spec §1 treats it as an
// opaque external collaborator); workflow and task code depends only on the
// Repository interface here. Package store/memory provides the in-process
// reference implementation used by tests and the CLI demo; package
// store/mongo provides an optional durable implementation a deployment may
// select instead.
package store

import (
	"context"
	"errors"

	"github.com/drivevox/validator/model"
)

// ErrNotFound is returned when a lookup targets a row that does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a write would violate a uniqueness
// constraint (spec §3: TestSample/WakeWord unique by (text, audio-file)).
var ErrDuplicate = errors.New("duplicate")

// ErrReferenced is returned by a "safe" delete when the row is still
// referenced by a Task.
var ErrReferenced = errors.New("referenced by a task")

// Repository is the persistence contract (spec §6.4). All operations are
// awaitable (context-aware); implementations must be safe for concurrent use
// and upsert writes to response/result/timing rows idempotently (spec §8
// property 5).
type Repository interface {
	CreateTask(ctx context.Context, t *model.Task) (int64, error)
	GetTaskByID(ctx context.Context, id int64) (*model.Task, error)
	GetAllTasks(ctx context.Context) ([]*model.Task, error)
	DeleteTask(ctx context.Context, id int64) error
	UpdateTaskStatus(ctx context.Context, id int64, status model.TaskStatus, failureReason string) error
	UpdateTaskProgress(ctx context.Context, id int64, progress float64) error
	UpdateTaskSamples(ctx context.Context, id int64, sampleIDs []int64) error

	CreateSample(ctx context.Context, s *model.TestSample) (int64, error)
	CreateSamplesBatch(ctx context.Context, samples []*model.TestSample) (ids []int64, ignoredCount int, err error)
	DeleteSample(ctx context.Context, id int64) error
	DeleteSampleSafe(ctx context.Context, id int64) error
	PrecheckSamples(ctx context.Context, samples []*model.TestSample) (newSamples, duplicates []*model.TestSample, err error)
	GetSamplesByTaskID(ctx context.Context, taskID int64) ([]*model.TestSample, error)

	CreateWakeWord(ctx context.Context, w *model.WakeWord) (int64, error)
	CreateWakeWordsBatch(ctx context.Context, words []*model.WakeWord) (ids []int64, ignoredCount int, err error)
	DeleteWakeWord(ctx context.Context, id int64) error
	DeleteWakeWordSafe(ctx context.Context, id int64) error
	PrecheckWakeWords(ctx context.Context, words []*model.WakeWord) (newWords, duplicates []*model.WakeWord, err error)
	GetWakeWordsByTaskID(ctx context.Context, taskID int64) ([]*model.WakeWord, error)

	SaveMachineResponse(ctx context.Context, r *model.MachineResponse) error
	SaveAnalysisResult(ctx context.Context, r *model.AnalysisResult) error
	GetAnalysisResultsByTask(ctx context.Context, taskID int64) ([]*model.AnalysisResult, error)

	SaveTimingData(ctx context.Context, t *model.TimingData) error
	GetTimingDataByTask(ctx context.Context, taskID int64) ([]*model.TimingData, error)
}
