package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/drivevox/validator/control"
	"github.com/drivevox/validator/errs"
	"github.com/drivevox/validator/events"
	"github.com/drivevox/validator/llm"
	"github.com/drivevox/validator/model"
	"github.com/drivevox/validator/workflow"
)

// promptTemplate instructs the model to emit strictly the rubric JSON shape
// described by llm.RubricSchema (spec §6.2).
const promptTemplate = `你是车载语音助手的验收评审员。参考指令为：%q
语音识别到的设备回复为：%q
请严格按以下 JSON 格式输出评估结果，不要包含任何其他文字：
{"assessment":{"semantic_correctness":{"score":0到1之间的浮点数,"comment":"..."},
"state_change_confirmation":{"score":...,"comment":"..."},
"unambiguous_expression":{"score":...,"comment":"..."},
"overall_score":...,"valid":true或false,"suggestions":["..."]}}`

// LLMAnalysisTask scores one trial's machine response against its expected
// sample using a pluggable llm.ChatClient (spec §4.7).
type LLMAnalysisTask struct {
	TaskID    string
	ASRTaskID string
	ActiveTaskID string // visual-wake or checkpoint-gated task id to peek for a timeout outcome
	Client    llm.ChatClient
	Model     string
}

func (t *LLMAnalysisTask) ID() string { return t.TaskID }

// Execute implements workflow.Task.
func (t *LLMAnalysisTask) Execute(ctx context.Context, recv *control.Receiver, wfctx *workflow.Context, emit *events.Emitter) error {
	signal := recv.AwaitRunning(ctx)
	if signal == control.Stopped {
		return nil
	}

	if t.ActiveTaskID != "" {
		if v, ok := wfctx.Get(t.ActiveTaskID); ok {
			if m, ok := v.(map[string]any); ok {
				if status, _ := m["status"].(string); status == "timeout" {
					return nil
				}
			}
		}
	}

	asrOut, ok := wfctx.Get(t.ASRTaskID)
	if !ok {
		return errs.New(errs.DependencyMissing, fmt.Sprintf("ASR output %q not present in context", t.ASRTaskID))
	}
	asr, ok := asrOut.(ASROutput)
	if !ok {
		return errs.New(errs.DependencyMissing, fmt.Sprintf("ASR output %q has unexpected shape", t.ASRTaskID))
	}

	if t.Client == nil {
		return errs.New(errs.Resource, "LLM analysis: no chat client configured")
	}

	_ = emit.Emit(ctx, events.NewLLMAnalysisStart(emit.TaskID(), 0))

	llmCtx, cancel := control.WithStopCancel(ctx, recv)
	defer cancel()

	resp, err := t.Client.Complete(llmCtx, llm.Request{
		Model: t.Model,
		Messages: []llm.Message{
			{Role: "user", Content: fmt.Sprintf(promptTemplate, asr.Example, asr.Response)},
		},
	})
	if recv.Current() == control.Stopped {
		return nil
	}
	if err != nil {
		return errs.Wrap(errs.Downstream, "LLM analysis request", err)
	}

	assessment, err := llm.ValidateAndDecode(resp.Content)
	if err != nil {
		return err
	}

	result := &model.AnalysisResult{
		SemanticCorrectness:     model.RubricScore{Score: assessment.SemanticCorrectness.Score, Comment: assessment.SemanticCorrectness.Comment},
		StateChangeConfirmation: model.RubricScore{Score: assessment.StateChangeConfirmation.Score, Comment: assessment.StateChangeConfirmation.Comment},
		UnambiguousExpression:   model.RubricScore{Score: assessment.UnambiguousExpression.Score, Comment: assessment.UnambiguousExpression.Comment},
		Suggestions:             assessment.Suggestions,
		ReferenceText:           asr.Example,
		RecognizedText:          asr.Response,
		ScoredAt:                time.Now(),
	}
	result.ComputeOverall()

	wfctx.Set(t.TaskID, result)
	_ = emit.Emit(ctx, events.NewLLMAnalysisResult(emit.TaskID(), result))
	return nil
}
