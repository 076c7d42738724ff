// Command validatord wires the validation engine's packages into a runnable
// demo: it builds one Task from flag-supplied samples and wake words, runs
// it through meta.TrialExecutor, and logs every emitted event. Configuration
// is sourced from flags only (config load/save is explicitly out of scope,
// spec §1), matching example/cmd/assistant/main.go's flag-based wiring.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"goa.design/clue/log"

	"github.com/drivevox/validator/audio"
	"github.com/drivevox/validator/config"
	"github.com/drivevox/validator/control"
	"github.com/drivevox/validator/events"
	"github.com/drivevox/validator/llm"
	"github.com/drivevox/validator/llm/openaiclient"
	"github.com/drivevox/validator/meta"
	"github.com/drivevox/validator/model"
	"github.com/drivevox/validator/store"
	"github.com/drivevox/validator/store/memory"
	"github.com/drivevox/validator/store/mongo"
	"github.com/drivevox/validator/tasks"
	"github.com/drivevox/validator/uiapi"
)

func main() {
	var (
		audioDirF  = flag.String("audio-dir", "./audio", "directory AudioTask resolves wake-word and sample clips from")
		sampleF    = flag.String("sample-text", "打开车窗", "expected transcript for the single demo sample")
		wakeWordF  = flag.String("wake-word", "你好小智", "wake-word phrase for the single demo trial")
		llmAPIKeyF = flag.String("llm-api-key", os.Getenv("LLM_API_KEY"), "API key for the OpenAI-compatible chat endpoint")
		llmModelF  = flag.String("llm-model", "gpt-4o-mini", "chat model name")
		mongoURIF  = flag.String("mongo-uri", "", "MongoDB connection URI; empty uses the in-process memory repository")
		mongoDBF   = flag.String("mongo-db", "validator", "MongoDB database name (only used with -mongo-uri)")
		dbgF       = flag.Bool("debug", false, "log request/response detail")
	)
	flag.Parse()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *dbgF {
		ctx = log.Context(ctx, log.WithDebug())
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	repo, closeRepo, err := buildRepository(ctx, *mongoURIF, *mongoDBF)
	if err != nil {
		log.Fatal(ctx, err)
	}
	defer closeRepo()

	var chatClient llm.ChatClient
	if strings.TrimSpace(*llmAPIKeyF) != "" {
		chatClient, err = openaiclient.NewFromAPIKey(*llmAPIKeyF, *llmModelF)
		if err != nil {
			log.Fatal(ctx, err)
		}
	} else {
		log.Print(ctx, log.KV{K: "warning", V: "no -llm-api-key supplied; analysis task will fail on the demo run"})
	}

	cfg := config.Default()
	cfg.AudioRootDir = *audioDirF
	cfg.LLMModel = *llmModelF

	audioController := audio.NewController(noopPlayer{})
	defer audioController.Close()

	bus := events.NewBus()
	unregister, err := bus.Register(events.SubscriberFunc(func(ctx context.Context, e events.Event) error {
		log.Print(ctx, log.KV{K: "event", V: fmt.Sprintf("%T", e)}, log.KV{K: "task_id", V: e.TaskID()})
		return nil
	}))
	if err != nil {
		log.Fatal(ctx, err)
	}
	defer unregister.Close()

	task := &model.Task{Name: "demo run", Status: model.TaskPending}
	taskID, err := repo.CreateTask(ctx, task)
	if err != nil {
		log.Fatal(ctx, err)
	}

	sample := &model.TestSample{Text: *sampleF, AudioFile: *sampleF}
	sampleIDs, _, err := repo.CreateSamplesBatch(ctx, []*model.TestSample{sample})
	if err != nil {
		log.Fatal(ctx, err)
	}
	sample.ID = sampleIDs[0]

	controlBus := control.NewBus()

	executor := &meta.TrialExecutor{
		TaskID:          taskID,
		WakeWordText:    *wakeWordF,
		AudioDir:        cfg.AudioRootDir,
		Samples:         []*model.TestSample{sample},
		AudioController: audioController,
		NewAudioFrameFeed: func(sampleID int64) tasks.FrameFeed {
			return uiapi.NewFrameQueue()
		},
		NewTranscriptFrameFeed: func(sampleID int64) tasks.FrameFeed {
			return uiapi.NewFrameQueue()
		},
		NewRecognizer: func(sampleID int64) tasks.Recognizer {
			return stubRecognizer{text: *sampleF}
		},
		LLMClient: chatClient,
		LLMModel:  *llmModelF,
		Repo:      repo,
		Bus:       bus,
	}

	errc := make(chan error, 1)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		<-c
		controlBus.Set(control.Stopped)
		errc <- fmt.Errorf("interrupted")
	}()

	go func() {
		errc <- executor.Run(ctx, controlBus)
	}()

	if err := <-errc; err != nil && err.Error() != "interrupted" {
		log.Print(ctx, log.KV{K: "run_failed", V: err.Error()})
		os.Exit(1)
	}
	log.Print(ctx, log.KV{K: "status", V: "done"})
}

// buildRepository returns a store.Repository and a cleanup func. With a
// blank uri it uses the in-process memory store; otherwise it connects to
// MongoDB (store/mongo).
func buildRepository(ctx context.Context, uri, dbName string) (store.Repository, func(), error) {
	if strings.TrimSpace(uri) == "" {
		return memory.New(), func() {}, nil
	}
	client, err := mongodriver.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, func() {}, fmt.Errorf("connect to mongo: %w", err)
	}
	repo := mongo.New(client.Database(dbName))
	return repo, func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(disconnectCtx)
	}, nil
}

// noopPlayer satisfies audio.Player without a real audio device (the audio
// output driver is an external collaborator out of scope, spec §1).
type noopPlayer struct{}

func (noopPlayer) Play(ctx context.Context, path string) error {
	select {
	case <-time.After(200 * time.Millisecond):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (noopPlayer) Stop() {}

// stubRecognizer satisfies tasks.Recognizer without a real ASR vendor (out
// of scope, spec §1); it always returns the expected text.
type stubRecognizer struct{ text string }

func (r stubRecognizer) Recognize(ctx context.Context) (string, error) { return r.text, nil }
