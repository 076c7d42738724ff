// Package memory provides an in-memory implementation of the repository
// contract. It is suitable for development, tests, and single-process demo
// runs where persistence across restarts is not required.
package memory

import (
	"context"
	"sync"

	"github.com/drivevox/validator/model"
	"github.com/drivevox/validator/store"
)

// Store is an in-memory, concurrency-safe implementation of store.Repository.
type Store struct {
	mu sync.RWMutex

	nextTaskID    int64
	nextSampleID  int64
	nextWakeWord  int64
	tasks         map[int64]*model.Task
	samples       map[int64]*model.TestSample
	wakeWords     map[int64]*model.WakeWord
	responses     map[trialKey]*model.MachineResponse
	results       map[trialKey]*model.AnalysisResult
	timings       map[trialKey]*model.TimingData
}

type trialKey struct {
	taskID, sampleID int64
}

// Compile-time check that Store implements store.Repository.
var _ store.Repository = (*Store)(nil)

// New creates a new, empty in-memory store.
func New() *Store {
	return &Store{
		tasks:     make(map[int64]*model.Task),
		samples:   make(map[int64]*model.TestSample),
		wakeWords: make(map[int64]*model.WakeWord),
		responses: make(map[trialKey]*model.MachineResponse),
		results:   make(map[trialKey]*model.AnalysisResult),
		timings:   make(map[trialKey]*model.TimingData),
	}
}

func checkCtx(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func (s *Store) CreateTask(ctx context.Context, t *model.Task) (int64, error) {
	if err := checkCtx(ctx); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTaskID++
	id := s.nextTaskID
	clone := *t
	clone.ID = id
	s.tasks[id] = &clone
	return id, nil
}

func (s *Store) GetTaskByID(ctx context.Context, id int64) (*model.Task, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := *t
	return &clone, nil
}

func (s *Store) GetAllTasks(ctx context.Context) ([]*model.Task, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		clone := *t
		out = append(out, &clone)
	}
	return out, nil
}

func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *Store) UpdateTaskStatus(ctx context.Context, id int64, status model.TaskStatus, failureReason string) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return store.ErrNotFound
	}
	t.Status = status
	t.FailureReason = failureReason
	return nil
}

func (s *Store) UpdateTaskProgress(ctx context.Context, id int64, progress float64) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return store.ErrNotFound
	}
	t.Progress = progress
	return nil
}

func (s *Store) UpdateTaskSamples(ctx context.Context, id int64, sampleIDs []int64) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return store.ErrNotFound
	}
	t.SampleIDs = append([]int64(nil), sampleIDs...)
	return nil
}

func sampleKey(s *model.TestSample) string { return s.Text + "\x00" + s.AudioFile }
func wakeKey(w *model.WakeWord) string     { return w.Text + "\x00" + w.AudioFile }

func (s *Store) CreateSample(ctx context.Context, sample *model.TestSample) (int64, error) {
	if err := checkCtx(ctx); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.samples {
		if sampleKey(existing) == sampleKey(sample) {
			return 0, store.ErrDuplicate
		}
	}
	s.nextSampleID++
	id := s.nextSampleID
	clone := *sample
	clone.ID = id
	s.samples[id] = &clone
	return id, nil
}

// CreateSamplesBatch creates any samples not already present, resolving
// duplicates to their existing id (spec §8 scenario S6).
func (s *Store) CreateSamplesBatch(ctx context.Context, samples []*model.TestSample) ([]int64, int, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existingByKey := make(map[string]int64, len(s.samples))
	for _, e := range s.samples {
		existingByKey[sampleKey(e)] = e.ID
	}

	ids := make([]int64, len(samples))
	ignored := 0
	for i, sample := range samples {
		k := sampleKey(sample)
		if id, ok := existingByKey[k]; ok {
			ids[i] = id
			ignored++
			continue
		}
		s.nextSampleID++
		id := s.nextSampleID
		clone := *sample
		clone.ID = id
		s.samples[id] = &clone
		existingByKey[k] = id
		ids[i] = id
	}
	return ids, ignored, nil
}

func (s *Store) DeleteSample(ctx context.Context, id int64) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.samples[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.samples, id)
	return nil
}

func (s *Store) DeleteSampleSafe(ctx context.Context, id int64) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.samples[id]; !ok {
		return store.ErrNotFound
	}
	for _, t := range s.tasks {
		for _, sid := range t.SampleIDs {
			if sid == id {
				return store.ErrReferenced
			}
		}
	}
	delete(s.samples, id)
	return nil
}

func (s *Store) PrecheckSamples(ctx context.Context, samples []*model.TestSample) ([]*model.TestSample, []*model.TestSample, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	existing := make(map[string]bool, len(s.samples))
	for _, e := range s.samples {
		existing[sampleKey(e)] = true
	}
	var newOnes, dups []*model.TestSample
	for _, sample := range samples {
		if existing[sampleKey(sample)] {
			dups = append(dups, sample)
		} else {
			newOnes = append(newOnes, sample)
		}
	}
	return newOnes, dups, nil
}

func (s *Store) GetSamplesByTaskID(ctx context.Context, taskID int64) ([]*model.TestSample, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := make([]*model.TestSample, 0, len(t.SampleIDs))
	for _, id := range t.SampleIDs {
		if sample, ok := s.samples[id]; ok {
			clone := *sample
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *Store) CreateWakeWord(ctx context.Context, w *model.WakeWord) (int64, error) {
	if err := checkCtx(ctx); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.wakeWords {
		if wakeKey(existing) == wakeKey(w) {
			return 0, store.ErrDuplicate
		}
	}
	s.nextWakeWord++
	id := s.nextWakeWord
	clone := *w
	clone.ID = id
	s.wakeWords[id] = &clone
	return id, nil
}

func (s *Store) CreateWakeWordsBatch(ctx context.Context, words []*model.WakeWord) ([]int64, int, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existingByKey := make(map[string]int64, len(s.wakeWords))
	for _, e := range s.wakeWords {
		existingByKey[wakeKey(e)] = e.ID
	}
	ids := make([]int64, len(words))
	ignored := 0
	for i, w := range words {
		k := wakeKey(w)
		if id, ok := existingByKey[k]; ok {
			ids[i] = id
			ignored++
			continue
		}
		s.nextWakeWord++
		id := s.nextWakeWord
		clone := *w
		clone.ID = id
		s.wakeWords[id] = &clone
		existingByKey[k] = id
		ids[i] = id
	}
	return ids, ignored, nil
}

func (s *Store) DeleteWakeWord(ctx context.Context, id int64) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.wakeWords[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.wakeWords, id)
	return nil
}

func (s *Store) DeleteWakeWordSafe(ctx context.Context, id int64) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.wakeWords[id]; !ok {
		return store.ErrNotFound
	}
	for _, t := range s.tasks {
		for _, wid := range t.WakeWordIDs {
			if wid == id {
				return store.ErrReferenced
			}
		}
	}
	delete(s.wakeWords, id)
	return nil
}

func (s *Store) PrecheckWakeWords(ctx context.Context, words []*model.WakeWord) ([]*model.WakeWord, []*model.WakeWord, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	existing := make(map[string]bool, len(s.wakeWords))
	for _, e := range s.wakeWords {
		existing[wakeKey(e)] = true
	}
	var newOnes, dups []*model.WakeWord
	for _, w := range words {
		if existing[wakeKey(w)] {
			dups = append(dups, w)
		} else {
			newOnes = append(newOnes, w)
		}
	}
	return newOnes, dups, nil
}

func (s *Store) GetWakeWordsByTaskID(ctx context.Context, taskID int64) ([]*model.WakeWord, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := make([]*model.WakeWord, 0, len(t.WakeWordIDs))
	for _, id := range t.WakeWordIDs {
		if w, ok := s.wakeWords[id]; ok {
			clone := *w
			out = append(out, &clone)
		}
	}
	return out, nil
}

// SaveMachineResponse upserts by (task, sample), matching spec §8 property 5
// (idempotent finalize).
func (s *Store) SaveMachineResponse(ctx context.Context, r *model.MachineResponse) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *r
	s.responses[trialKey{r.TaskID, r.SampleID}] = &clone
	return nil
}

// SaveAnalysisResult upserts by (task, sample).
func (s *Store) SaveAnalysisResult(ctx context.Context, r *model.AnalysisResult) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *r
	s.results[trialKey{r.TaskID, r.SampleID}] = &clone
	return nil
}

func (s *Store) GetAnalysisResultsByTask(ctx context.Context, taskID int64) ([]*model.AnalysisResult, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.AnalysisResult
	for k, r := range s.results {
		if k.taskID == taskID {
			clone := *r
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *Store) SaveTimingData(ctx context.Context, t *model.TimingData) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *t
	s.timings[trialKey{t.TaskID, t.SampleID}] = &clone
	return nil
}

func (s *Store) GetTimingDataByTask(ctx context.Context, taskID int64) ([]*model.TimingData, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.TimingData
	for k, t := range s.timings {
		if k.taskID == taskID {
			clone := *t
			out = append(out, &clone)
		}
	}
	return out, nil
}
