package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drivevox/validator/model"
	"github.com/drivevox/validator/store"
	"github.com/drivevox/validator/store/memory"
)

func TestCreateSamplesBatchResolvesDuplicates(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	_, err := s.CreateSample(ctx, &model.TestSample{Text: "打开空调"})
	require.NoError(t, err)

	ids, ignored, err := s.CreateSamplesBatch(ctx, []*model.TestSample{
		{Text: "打开空调"},
		{Text: "关闭车窗"},
		{Text: "导航回家"},
	})
	require.NoError(t, err)
	require.Len(t, ids, 3)
	require.Equal(t, 1, ignored)

	newOnes, dups, err := s.PrecheckSamples(ctx, []*model.TestSample{
		{Text: "打开空调"}, {Text: "关闭车窗"}, {Text: "导航回家"},
	})
	require.NoError(t, err)
	require.Len(t, dups, 3)
	require.Len(t, newOnes, 0)
}

func TestFinalizeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	resp := &model.MachineResponse{TaskID: 1, SampleID: 2, Text: "好的", Connected: true}
	require.NoError(t, s.SaveMachineResponse(ctx, resp))
	require.NoError(t, s.SaveMachineResponse(ctx, resp))

	result := &model.AnalysisResult{TaskID: 1, SampleID: 2, Overall: 0.9, Valid: true}
	require.NoError(t, s.SaveAnalysisResult(ctx, result))
	require.NoError(t, s.SaveAnalysisResult(ctx, result))

	results, err := s.GetAnalysisResultsByTask(ctx, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestDeleteSampleSafeRefusesWhileReferenced(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	sampleID, err := s.CreateSample(ctx, &model.TestSample{Text: "打开空调"})
	require.NoError(t, err)

	taskID, err := s.CreateTask(ctx, &model.Task{SampleIDs: []int64{sampleID}})
	require.NoError(t, err)
	require.NotZero(t, taskID)

	err = s.DeleteSampleSafe(ctx, sampleID)
	require.ErrorIs(t, err, store.ErrReferenced)
}

func TestGetTaskByIDNotFound(t *testing.T) {
	s := memory.New()
	_, err := s.GetTaskByID(context.Background(), 999)
	require.ErrorIs(t, err, store.ErrNotFound)
}
