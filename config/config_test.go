package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/drivevox/validator/config"
)

func TestDefaultMatchesSpecConstants(t *testing.T) {
	c := config.Default()
	assert.Equal(t, 5000*time.Millisecond, c.OCRNoTextTimeout)
	assert.False(t, c.OCRContentStabilityEnabled)
	assert.Equal(t, 0.95, c.OCRContentSimilarityThreshold)
	assert.Equal(t, 6, c.OCREnginePoolSize)
	assert.Equal(t, 30*time.Second, c.VisualWakeMaxDetectionTime)
	assert.Equal(t, 0.6, c.VisualWakeThreshold)
	assert.Equal(t, 2*time.Second, c.InterTrialDelay)
}
