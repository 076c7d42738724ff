package mongo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	driver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/drivevox/validator/model"
)

var (
	testClient    *driver.Client
	testContainer testcontainers.Container
	skipTests     bool
)

func setupMongo() {
	ctx := context.Background()

	var containerErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				containerErr = fmt.Errorf("docker not available: %v", r)
			}
		}()
		req := testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForLog("Waiting for connections"),
			Tmpfs:        map[string]string{"/data/db": "rw"},
		}
		testContainer, containerErr = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
	}()
	if containerErr != nil {
		skipTests = true
		return
	}

	host, err := testContainer.Host(ctx)
	if err != nil {
		skipTests = true
		return
	}
	port, err := testContainer.MappedPort(ctx, "27017")
	if err != nil {
		skipTests = true
		return
	}

	uri := fmt.Sprintf("mongodb://%s:%s", host, port.Port())
	testClient, err = driver.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		skipTests = true
		return
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := testClient.Ping(pingCtx, nil); err != nil {
		skipTests = true
		return
	}
}

func getStore(t *testing.T) *Store {
	t.Helper()
	if testClient == nil && !skipTests {
		setupMongo()
	}
	if skipTests {
		t.Skip("docker not available, skipping MongoDB integration test")
	}
	db := testClient.Database("validator_test_" + t.Name())
	return New(db)
}

// TestTaskAndAnalysisResultPersistenceRoundTrip exercises the idempotent
// upsert-by-(task,sample) property (spec §8 property 5) against a real
// MongoDB instance rather than the in-process memory store.
func TestTaskAndAnalysisResultPersistenceRoundTrip(t *testing.T) {
	store := getStore(t)
	ctx := context.Background()

	taskID, err := store.CreateTask(ctx, &model.Task{Name: "integration", Status: model.TaskPending})
	require.NoError(t, err)

	row := &model.AnalysisResult{TaskID: taskID, SampleID: 1, Overall: 0.8, Valid: true}

	require.NoError(t, store.SaveAnalysisResult(ctx, row))
	require.NoError(t, store.SaveAnalysisResult(ctx, row))

	results, err := store.GetAnalysisResultsByTask(ctx, taskID)
	require.NoError(t, err)
	assert.Len(t, results, 1, "upsert by (task, sample) must not duplicate rows")

	fetched, err := store.GetTaskByID(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, "integration", fetched.Name)
}

func TestPrecheckSamplesDetectsDuplicatesAcrossRestarts(t *testing.T) {
	store := getStore(t)
	ctx := context.Background()

	sample := &model.TestSample{Text: "打开车窗", AudioFile: "open_window.wav"}
	_, _, err := store.CreateSamplesBatch(ctx, []*model.TestSample{sample})
	require.NoError(t, err)

	restarted := getStore(t)
	newSamples, duplicates, err := restarted.PrecheckSamples(ctx, []*model.TestSample{
		{Text: "打开车窗", AudioFile: "open_window.wav"},
		{Text: "关闭车窗", AudioFile: "close_window.wav"},
	})
	require.NoError(t, err)
	assert.Len(t, duplicates, 1)
	assert.Len(t, newSamples, 1)
}
