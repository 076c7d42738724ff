package visualwake_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drivevox/validator/errs"
	"github.com/drivevox/validator/visualwake"
)

// scriptedMatcher returns its next scripted score on each call, regardless
// of the frame/template passed in, so a calibration run can be driven by a
// known score distribution without needing real template pixels for each.
type scriptedMatcher struct {
	scores []float64
	i      int
}

func (m *scriptedMatcher) BestScore(visualwake.Grayscale, visualwake.Grayscale) float64 {
	s := m.scores[m.i%len(m.scores)]
	m.i++
	return s
}

func solidGray(w, h int, value byte) visualwake.Grayscale {
	pix := make([]byte, w*h)
	for i := range pix {
		pix[i] = value
	}
	return visualwake.Grayscale{Width: w, Height: h, Pix: pix}
}

func TestDetectorMatchesIdenticalTemplate(t *testing.T) {
	tmpl := solidGray(10, 10, 200)
	for i := range tmpl.Pix {
		tmpl.Pix[i] = byte(i * 10)
	}
	frame := visualwake.Grayscale{Width: 20, Height: 20, Pix: make([]byte, 400)}
	for y := 0; y < tmpl.Height; y++ {
		for x := 0; x < tmpl.Width; x++ {
			frame.Pix[(5+y)*frame.Width+5+x] = tmpl.Pix[y*tmpl.Width+x]
		}
	}

	d := visualwake.NewDetector(visualwake.NewNCCMatcher(), []visualwake.Template{{Name: "logo", Pixels: tmpl}}, 0.6)
	d.Enable()

	matched, score := d.SubmitFrame(frame)
	assert.True(t, matched)
	assert.GreaterOrEqual(t, score, 0.6)

	enabled := d.Enabled()
	assert.False(t, enabled, "detector disables itself on match")
}

func TestDetectorDropsFramesWhileDisabled(t *testing.T) {
	tmpl := solidGray(4, 4, 128)
	frame := solidGray(20, 20, 128)
	d := visualwake.NewDetector(visualwake.NewNCCMatcher(), []visualwake.Template{{Pixels: tmpl}}, 0.6)

	matched, score := d.SubmitFrame(frame)
	assert.False(t, matched)
	assert.Zero(t, score)
}

func TestDetectorMatchedReportsScoreAfterMatch(t *testing.T) {
	tmpl := solidGray(10, 10, 0)
	for i := range tmpl.Pix {
		tmpl.Pix[i] = byte(i * 15)
	}
	frame := visualwake.Grayscale{Width: 10, Height: 10, Pix: make([]byte, 100)}
	for y := 0; y < tmpl.Height; y++ {
		for x := 0; x < tmpl.Width; x++ {
			frame.Pix[y*frame.Width+x] = tmpl.Pix[y*tmpl.Width+x]
		}
	}
	d := visualwake.NewDetector(visualwake.NewNCCMatcher(), []visualwake.Template{{Pixels: tmpl}}, 0.6)
	d.Enable()
	matched, _ := d.SubmitFrame(frame)
	require.True(t, matched)

	ok, score := d.Matched()
	assert.True(t, ok)
	assert.GreaterOrEqual(t, score, 0.6)
}

func TestCalibrateSetsThresholdFromPercentile(t *testing.T) {
	// 20 scores 0.05..1.00; the 95th percentile (index 19) is 1.00, so the
	// calibrated threshold should land at 1.00*0.85.
	scores := make([]float64, 20)
	for i := range scores {
		scores[i] = float64(i+1) / 20
	}
	matcher := &scriptedMatcher{scores: scores}
	samples := make([]visualwake.Grayscale, len(scores))

	d := visualwake.NewDetector(matcher, []visualwake.Template{{Pixels: solidGray(4, 4, 0)}}, 0.6)

	threshold, err := d.Calibrate(samples)
	require.NoError(t, err)
	assert.InDelta(t, 0.85, threshold, 1e-9)
}

func TestCalibrateRejectsEmptySampleSet(t *testing.T) {
	d := visualwake.NewDetector(visualwake.NewNCCMatcher(), []visualwake.Template{{Pixels: solidGray(4, 4, 0)}}, 0.6)

	_, err := d.Calibrate(nil)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.DependencyMissing))
}
