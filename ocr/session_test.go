package ocr_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drivevox/validator/ocr"
)

func TestSessionStableByTimeout(t *testing.T) {
	s := ocr.NewSession()
	base := time.Now()

	res := s.Observe("hello", base)
	assert.False(t, res.ShouldStopOCR)

	res = s.Observe("", base.Add(6*time.Second))
	assert.True(t, res.ShouldStopOCR)
	require.NotNil(t, res.TextStabilizedTime)
}

func TestSessionStableOnceRemainsStable(t *testing.T) {
	s := ocr.NewSession()
	base := time.Now()
	s.Observe("hello", base)
	s.Observe("", base.Add(6*time.Second))

	res := s.Observe("world", base.Add(7*time.Second))
	assert.True(t, res.ShouldStopOCR, "stability must be monotone until Reset")
}

func TestSessionStableByContentAfter30IdenticalFrames(t *testing.T) {
	s := ocr.NewSession()
	s.EnableContentStability = true
	base := time.Now()

	var res ocr.Result
	for i := 0; i < 30; i++ {
		res = s.Observe("你好小度", base.Add(time.Duration(i)*100*time.Millisecond))
	}
	assert.True(t, res.ShouldStopOCR)
	require.NotNil(t, res.TextStabilizedTime)
	assert.Equal(t, base.Add(29*100*time.Millisecond), *res.TextStabilizedTime)
}

func TestSessionContentStabilityDisabledByDefault(t *testing.T) {
	s := ocr.NewSession()
	base := time.Now()
	var res ocr.Result
	for i := 0; i < 40; i++ {
		res = s.Observe("你好小度", base.Add(time.Duration(i)*100*time.Millisecond))
	}
	assert.False(t, res.ShouldStopOCR, "content-stability must stay opt-in")
}

func TestSessionFirstTextBeforeLastText(t *testing.T) {
	s := ocr.NewSession()
	base := time.Now()
	s.Observe("a", base)
	res := s.Observe("ab", base.Add(time.Second))
	require.NotNil(t, res.FirstTextDetectedTime)
	assert.True(t, !res.FirstTextDetectedTime.After(base.Add(time.Second)))
}

func TestSimilarityProperties(t *testing.T) {
	assert.InDelta(t, 1-3.0/7.0, ocr.Similarity("kitten", "sitting"), 1e-9)
	assert.Equal(t, 1.0, ocr.Similarity("hello", "hello"))
	assert.Equal(t, 0.0, ocr.Similarity("hello", ""))
}
