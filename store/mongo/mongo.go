// Package mongo provides an optional MongoDB-backed implementation of the
// repository contract (store.Repository) for deployments that want
// durability across restarts. The workflow kernel and task library never
// import this package directly — they depend only on store.Repository —
// preserving the "opaque repository" boundary from spec §1.
package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/drivevox/validator/model"
	"github.com/drivevox/validator/store"
)

// Store is a MongoDB implementation of store.Repository. Tasks, samples, and
// wake words live in their own collections; responses/results/timing are
// upserted by (task, sample) as required by spec §6.4/§6.5.
type Store struct {
	tasks     *mongo.Collection
	samples   *mongo.Collection
	wakeWords *mongo.Collection
	responses *mongo.Collection
	results   *mongo.Collection
	timings   *mongo.Collection

	counters *mongo.Collection
}

// Compile-time check that Store implements store.Repository.
var _ store.Repository = (*Store)(nil)

// New builds a Store from an already-connected database handle.
func New(db *mongo.Database) *Store {
	return &Store{
		tasks:     db.Collection("tasks"),
		samples:   db.Collection("samples"),
		wakeWords: db.Collection("wake_words"),
		responses: db.Collection("machine_responses"),
		results:   db.Collection("analysis_results"),
		timings:   db.Collection("timing_data"),
		counters:  db.Collection("counters"),
	}
}

type taskDocument struct {
	ID            int64    `bson:"_id"`
	Name          string   `bson:"name"`
	SampleIDs     []int64  `bson:"sample_ids"`
	WakeWordIDs   []int64  `bson:"wake_word_ids"`
	Status        string   `bson:"status"`
	Progress      float64  `bson:"progress"`
	FailureReason string   `bson:"failure_reason,omitempty"`
}

type sampleDocument struct {
	ID        int64  `bson:"_id"`
	Text      string `bson:"text"`
	AudioFile string `bson:"audio_file"`
}

func (s *Store) nextID(ctx context.Context, counterName string) (int64, error) {
	res := s.counters.FindOneAndUpdate(
		ctx,
		bson.M{"_id": counterName},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	)
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	if err := res.Decode(&doc); err != nil {
		return 0, fmt.Errorf("mongodb next id %q: %w", counterName, err)
	}
	return doc.Seq, nil
}

func (s *Store) CreateTask(ctx context.Context, t *model.Task) (int64, error) {
	id, err := s.nextID(ctx, "tasks")
	if err != nil {
		return 0, err
	}
	doc := taskDocument{
		ID:            id,
		Name:          t.Name,
		SampleIDs:     t.SampleIDs,
		WakeWordIDs:   t.WakeWordIDs,
		Status:        string(t.Status),
		Progress:      t.Progress,
		FailureReason: t.FailureReason,
	}
	if _, err := s.tasks.InsertOne(ctx, doc); err != nil {
		return 0, fmt.Errorf("mongodb create task: %w", err)
	}
	return id, nil
}

func (s *Store) GetTaskByID(ctx context.Context, id int64) (*model.Task, error) {
	var doc taskDocument
	if err := s.tasks.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("mongodb get task %d: %w", id, err)
	}
	return fromTaskDocument(doc), nil
}

func (s *Store) GetAllTasks(ctx context.Context) ([]*model.Task, error) {
	cur, err := s.tasks.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("mongodb list tasks: %w", err)
	}
	defer cur.Close(ctx)
	var out []*model.Task
	for cur.Next(ctx) {
		var doc taskDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongodb decode task: %w", err)
		}
		out = append(out, fromTaskDocument(doc))
	}
	return out, cur.Err()
}

func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	res, err := s.tasks.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("mongodb delete task %d: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateTaskStatus(ctx context.Context, id int64, status model.TaskStatus, failureReason string) error {
	res, err := s.tasks.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": string(status), "failure_reason": failureReason}})
	if err != nil {
		return fmt.Errorf("mongodb update task status %d: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateTaskProgress(ctx context.Context, id int64, progress float64) error {
	res, err := s.tasks.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"progress": progress}})
	if err != nil {
		return fmt.Errorf("mongodb update task progress %d: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateTaskSamples(ctx context.Context, id int64, sampleIDs []int64) error {
	res, err := s.tasks.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"sample_ids": sampleIDs}})
	if err != nil {
		return fmt.Errorf("mongodb update task samples %d: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func fromTaskDocument(doc taskDocument) *model.Task {
	return &model.Task{
		ID:            doc.ID,
		Name:          doc.Name,
		SampleIDs:     doc.SampleIDs,
		WakeWordIDs:   doc.WakeWordIDs,
		Status:        model.TaskStatus(doc.Status),
		Progress:      doc.Progress,
		FailureReason: doc.FailureReason,
	}
}

func (s *Store) CreateSample(ctx context.Context, sample *model.TestSample) (int64, error) {
	var existing sampleDocument
	err := s.samples.FindOne(ctx, bson.M{"text": sample.Text, "audio_file": sample.AudioFile}).Decode(&existing)
	if err == nil {
		return 0, store.ErrDuplicate
	}
	if err != mongo.ErrNoDocuments {
		return 0, fmt.Errorf("mongodb precheck sample: %w", err)
	}
	id, err := s.nextID(ctx, "samples")
	if err != nil {
		return 0, err
	}
	doc := sampleDocument{ID: id, Text: sample.Text, AudioFile: sample.AudioFile}
	if _, err := s.samples.InsertOne(ctx, doc); err != nil {
		return 0, fmt.Errorf("mongodb create sample: %w", err)
	}
	return id, nil
}

func (s *Store) CreateSamplesBatch(ctx context.Context, samples []*model.TestSample) ([]int64, int, error) {
	newOnes, dups, err := s.PrecheckSamples(ctx, samples)
	if err != nil {
		return nil, 0, err
	}
	existingByKey := make(map[string]int64, len(dups))
	for _, d := range dups {
		var doc sampleDocument
		if err := s.samples.FindOne(ctx, bson.M{"text": d.Text, "audio_file": d.AudioFile}).Decode(&doc); err != nil {
			return nil, 0, fmt.Errorf("mongodb resolve duplicate sample: %w", err)
		}
		existingByKey[d.Text+"\x00"+d.AudioFile] = doc.ID
	}
	createdByKey := make(map[string]int64, len(newOnes))
	for _, n := range newOnes {
		id, err := s.CreateSample(ctx, n)
		if err != nil {
			return nil, 0, err
		}
		createdByKey[n.Text+"\x00"+n.AudioFile] = id
	}
	ids := make([]int64, len(samples))
	ignored := 0
	for i, sample := range samples {
		k := sample.Text + "\x00" + sample.AudioFile
		if id, ok := existingByKey[k]; ok {
			ids[i] = id
			ignored++
			continue
		}
		ids[i] = createdByKey[k]
	}
	return ids, ignored, nil
}

func (s *Store) DeleteSample(ctx context.Context, id int64) error {
	res, err := s.samples.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("mongodb delete sample %d: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteSampleSafe(ctx context.Context, id int64) error {
	count, err := s.tasks.CountDocuments(ctx, bson.M{"sample_ids": id})
	if err != nil {
		return fmt.Errorf("mongodb check sample references: %w", err)
	}
	if count > 0 {
		return store.ErrReferenced
	}
	return s.DeleteSample(ctx, id)
}

func (s *Store) PrecheckSamples(ctx context.Context, samples []*model.TestSample) ([]*model.TestSample, []*model.TestSample, error) {
	var newOnes, dups []*model.TestSample
	for _, sample := range samples {
		var existing sampleDocument
		err := s.samples.FindOne(ctx, bson.M{"text": sample.Text, "audio_file": sample.AudioFile}).Decode(&existing)
		switch err {
		case nil:
			dups = append(dups, sample)
		case mongo.ErrNoDocuments:
			newOnes = append(newOnes, sample)
		default:
			return nil, nil, fmt.Errorf("mongodb precheck sample: %w", err)
		}
	}
	return newOnes, dups, nil
}

func (s *Store) GetSamplesByTaskID(ctx context.Context, taskID int64) ([]*model.TestSample, error) {
	task, err := s.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	cur, err := s.samples.Find(ctx, bson.M{"_id": bson.M{"$in": task.SampleIDs}})
	if err != nil {
		return nil, fmt.Errorf("mongodb list samples: %w", err)
	}
	defer cur.Close(ctx)
	var out []*model.TestSample
	for cur.Next(ctx) {
		var doc sampleDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongodb decode sample: %w", err)
		}
		out = append(out, &model.TestSample{ID: doc.ID, Text: doc.Text, AudioFile: doc.AudioFile})
	}
	return out, cur.Err()
}

type wakeWordDocument struct {
	ID        int64  `bson:"_id"`
	Text      string `bson:"text"`
	AudioFile string `bson:"audio_file"`
}

func (s *Store) CreateWakeWord(ctx context.Context, w *model.WakeWord) (int64, error) {
	var existing wakeWordDocument
	err := s.wakeWords.FindOne(ctx, bson.M{"text": w.Text, "audio_file": w.AudioFile}).Decode(&existing)
	if err == nil {
		return 0, store.ErrDuplicate
	}
	if err != mongo.ErrNoDocuments {
		return 0, fmt.Errorf("mongodb precheck wake word: %w", err)
	}
	id, err := s.nextID(ctx, "wake_words")
	if err != nil {
		return 0, err
	}
	doc := wakeWordDocument{ID: id, Text: w.Text, AudioFile: w.AudioFile}
	if _, err := s.wakeWords.InsertOne(ctx, doc); err != nil {
		return 0, fmt.Errorf("mongodb create wake word: %w", err)
	}
	return id, nil
}

func (s *Store) CreateWakeWordsBatch(ctx context.Context, words []*model.WakeWord) ([]int64, int, error) {
	newOnes, dups, err := s.PrecheckWakeWords(ctx, words)
	if err != nil {
		return nil, 0, err
	}
	existingByKey := make(map[string]int64, len(dups))
	for _, d := range dups {
		var doc wakeWordDocument
		if err := s.wakeWords.FindOne(ctx, bson.M{"text": d.Text, "audio_file": d.AudioFile}).Decode(&doc); err != nil {
			return nil, 0, fmt.Errorf("mongodb resolve duplicate wake word: %w", err)
		}
		existingByKey[d.Text+"\x00"+d.AudioFile] = doc.ID
	}
	createdByKey := make(map[string]int64, len(newOnes))
	for _, n := range newOnes {
		id, err := s.CreateWakeWord(ctx, n)
		if err != nil {
			return nil, 0, err
		}
		createdByKey[n.Text+"\x00"+n.AudioFile] = id
	}
	ids := make([]int64, len(words))
	ignored := 0
	for i, w := range words {
		k := w.Text + "\x00" + w.AudioFile
		if id, ok := existingByKey[k]; ok {
			ids[i] = id
			ignored++
			continue
		}
		ids[i] = createdByKey[k]
	}
	return ids, ignored, nil
}

func (s *Store) DeleteWakeWord(ctx context.Context, id int64) error {
	res, err := s.wakeWords.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("mongodb delete wake word %d: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteWakeWordSafe(ctx context.Context, id int64) error {
	count, err := s.tasks.CountDocuments(ctx, bson.M{"wake_word_ids": id})
	if err != nil {
		return fmt.Errorf("mongodb check wake word references: %w", err)
	}
	if count > 0 {
		return store.ErrReferenced
	}
	return s.DeleteWakeWord(ctx, id)
}

func (s *Store) PrecheckWakeWords(ctx context.Context, words []*model.WakeWord) ([]*model.WakeWord, []*model.WakeWord, error) {
	var newOnes, dups []*model.WakeWord
	for _, w := range words {
		var existing wakeWordDocument
		err := s.wakeWords.FindOne(ctx, bson.M{"text": w.Text, "audio_file": w.AudioFile}).Decode(&existing)
		switch err {
		case nil:
			dups = append(dups, w)
		case mongo.ErrNoDocuments:
			newOnes = append(newOnes, w)
		default:
			return nil, nil, fmt.Errorf("mongodb precheck wake word: %w", err)
		}
	}
	return newOnes, dups, nil
}

func (s *Store) GetWakeWordsByTaskID(ctx context.Context, taskID int64) ([]*model.WakeWord, error) {
	task, err := s.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	cur, err := s.wakeWords.Find(ctx, bson.M{"_id": bson.M{"$in": task.WakeWordIDs}})
	if err != nil {
		return nil, fmt.Errorf("mongodb list wake words: %w", err)
	}
	defer cur.Close(ctx)
	var out []*model.WakeWord
	for cur.Next(ctx) {
		var doc wakeWordDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongodb decode wake word: %w", err)
		}
		out = append(out, &model.WakeWord{ID: doc.ID, Text: doc.Text, AudioFile: doc.AudioFile})
	}
	return out, cur.Err()
}

type responseDocument struct {
	TaskID    int64  `bson:"task_id"`
	SampleID  int64  `bson:"sample_id"`
	Text      string `bson:"text"`
	Connected bool   `bson:"connected"`
}

func (s *Store) SaveMachineResponse(ctx context.Context, r *model.MachineResponse) error {
	filter := bson.M{"task_id": r.TaskID, "sample_id": r.SampleID}
	doc := responseDocument{TaskID: r.TaskID, SampleID: r.SampleID, Text: r.Text, Connected: r.Connected}
	_, err := s.responses.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongodb save machine response (%d,%d): %w", r.TaskID, r.SampleID, err)
	}
	return nil
}

type resultDocument struct {
	TaskID                  int64    `bson:"task_id"`
	SampleID                int64    `bson:"sample_id"`
	SemanticScore           float64  `bson:"semantic_score"`
	SemanticComment         string   `bson:"semantic_comment"`
	StateChangeScore        float64  `bson:"state_change_score"`
	StateChangeComment      string   `bson:"state_change_comment"`
	UnambiguousScore        float64  `bson:"unambiguous_score"`
	UnambiguousComment      string   `bson:"unambiguous_comment"`
	Overall                 float64  `bson:"overall"`
	Valid                   bool     `bson:"valid"`
	Suggestions             []string `bson:"suggestions,omitempty"`
	ReferenceText           string   `bson:"reference_text"`
	RecognizedText          string   `bson:"recognized_text"`
}

func (s *Store) SaveAnalysisResult(ctx context.Context, r *model.AnalysisResult) error {
	filter := bson.M{"task_id": r.TaskID, "sample_id": r.SampleID}
	doc := resultDocument{
		TaskID:             r.TaskID,
		SampleID:           r.SampleID,
		SemanticScore:      r.SemanticCorrectness.Score,
		SemanticComment:    r.SemanticCorrectness.Comment,
		StateChangeScore:   r.StateChangeConfirmation.Score,
		StateChangeComment: r.StateChangeConfirmation.Comment,
		UnambiguousScore:   r.UnambiguousExpression.Score,
		UnambiguousComment: r.UnambiguousExpression.Comment,
		Overall:            r.Overall,
		Valid:              r.Valid,
		Suggestions:        r.Suggestions,
		ReferenceText:      r.ReferenceText,
		RecognizedText:     r.RecognizedText,
	}
	_, err := s.results.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongodb save analysis result (%d,%d): %w", r.TaskID, r.SampleID, err)
	}
	return nil
}

func (s *Store) GetAnalysisResultsByTask(ctx context.Context, taskID int64) ([]*model.AnalysisResult, error) {
	cur, err := s.results.Find(ctx, bson.M{"task_id": taskID})
	if err != nil {
		return nil, fmt.Errorf("mongodb list analysis results: %w", err)
	}
	defer cur.Close(ctx)
	var out []*model.AnalysisResult
	for cur.Next(ctx) {
		var doc resultDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongodb decode analysis result: %w", err)
		}
		out = append(out, &model.AnalysisResult{
			TaskID:                  doc.TaskID,
			SampleID:                doc.SampleID,
			SemanticCorrectness:     model.RubricScore{Score: doc.SemanticScore, Comment: doc.SemanticComment},
			StateChangeConfirmation: model.RubricScore{Score: doc.StateChangeScore, Comment: doc.StateChangeComment},
			UnambiguousExpression:   model.RubricScore{Score: doc.UnambiguousScore, Comment: doc.UnambiguousComment},
			Overall:                 doc.Overall,
			Valid:                   doc.Valid,
			Suggestions:             doc.Suggestions,
			ReferenceText:           doc.ReferenceText,
			RecognizedText:          doc.RecognizedText,
		})
	}
	return out, cur.Err()
}

type timingDocument struct {
	TaskID   int64 `bson:"task_id"`
	SampleID int64 `bson:"sample_id"`
}

func (s *Store) SaveTimingData(ctx context.Context, t *model.TimingData) error {
	filter := bson.M{"task_id": t.TaskID, "sample_id": t.SampleID}
	doc := timingDocument{TaskID: t.TaskID, SampleID: t.SampleID}
	_, err := s.timings.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongodb save timing data (%d,%d): %w", t.TaskID, t.SampleID, err)
	}
	return nil
}

func (s *Store) GetTimingDataByTask(ctx context.Context, taskID int64) ([]*model.TimingData, error) {
	cur, err := s.timings.Find(ctx, bson.M{"task_id": taskID})
	if err != nil {
		return nil, fmt.Errorf("mongodb list timing data: %w", err)
	}
	defer cur.Close(ctx)
	var out []*model.TimingData
	for cur.Next(ctx) {
		var doc timingDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongodb decode timing data: %w", err)
		}
		out = append(out, &model.TimingData{TaskID: doc.TaskID, SampleID: doc.SampleID})
	}
	return out, cur.Err()
}
