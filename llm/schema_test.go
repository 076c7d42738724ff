package llm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drivevox/validator/errs"
	"github.com/drivevox/validator/llm"
)

func TestValidateAndDecodeAcceptsConformingReply(t *testing.T) {
	raw := `{"assessment":{
		"semantic_correctness":{"score":0.9,"comment":"matches intent"},
		"state_change_confirmation":{"score":0.8,"comment":"ac state changed"},
		"unambiguous_expression":{"score":1,"comment":"clear"},
		"overall_score":0.9,"valid":true,"suggestions":[]
	}}`

	got, err := llm.ValidateAndDecode(raw)
	require.NoError(t, err)
	assert.Equal(t, 0.9, got.SemanticCorrectness.Score)
	assert.True(t, got.Valid)
}

func TestValidateAndDecodeRejectsMissingField(t *testing.T) {
	raw := `{"assessment":{"semantic_correctness":{"score":0.9,"comment":"x"}}}`

	_, err := llm.ValidateAndDecode(raw)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Protocol))
}

func TestValidateAndDecodeRejectsMalformedJSON(t *testing.T) {
	_, err := llm.ValidateAndDecode(`not json`)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Protocol))
}

func TestValidateAndDecodeRejectsOutOfRangeScore(t *testing.T) {
	raw := `{"assessment":{
		"semantic_correctness":{"score":1.5,"comment":"x"},
		"state_change_confirmation":{"score":0.8,"comment":"x"},
		"unambiguous_expression":{"score":1,"comment":"x"},
		"overall_score":0.9,"valid":true
	}}`
	_, err := llm.ValidateAndDecode(raw)
	require.Error(t, err)
}
