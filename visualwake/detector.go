// Package visualwake implements the process-wide visual-wake template
// matcher: a gated, cancellable detector task that watches incoming video
// frames for a pre-registered set of template images (spec §4.5).
package visualwake

import (
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/drivevox/validator/errs"
)

// frameInterval is the minimum spacing enforced between processed frames
// (spec §5: "rate-limited at the detector (>= 100ms between processed
// frames)"); frames arriving faster than this are dropped rather than
// queued, matching the UI-push model where SubmitFrame never blocks.
const frameInterval = 100 * time.Millisecond

// DefaultMaxDetectionTime bounds how long a detection run may wait for a
// match before declaring a timeout outcome.
const DefaultMaxDetectionTime = 30 * time.Second

// DefaultThreshold is the normalized cross-correlation score a match must
// clear.
const DefaultThreshold = 0.6

// calibrationPercentile and calibrationFactor implement the optional
// calibration rule from spec §4.5: collect best-match scores against known
// non-wake frames, then set the threshold to 85% of their 95th percentile
// rather than trusting a hand-picked constant.
const (
	calibrationPercentile = 0.95
	calibrationFactor     = 0.85
)

// scalePyramid is the fixed set of scale factors tried against every
// template for every frame.
var scalePyramid = []float64{1.0, 0.8, 0.6, 0.4, 0.3, 0.2}

// minTemplateDim is the smallest scaled template edge length considered.
const minTemplateDim = 10

// Template is one preprocessed grayscale template image.
type Template struct {
	Name   string
	Pixels Grayscale
}

// Grayscale is a single-channel image: Width*Height bytes, row-major.
type Grayscale struct {
	Width, Height int
	Pix           []byte
}

// Matcher performs normalized cross-correlation template matching. The
// default implementation (NewNCCMatcher) is pure Go; a deployment may plug
// in a faster backend (e.g. one wrapping an OpenCV binding) behind the same
// interface.
type Matcher interface {
	// BestScore returns the best normalized cross-correlation score of
	// template against frame across the scale pyramid, skipping scales
	// that would make the template larger than frame or smaller than
	// minTemplateDim on either edge.
	BestScore(frame Grayscale, tmpl Grayscale) float64
}

// Detector is the process-wide singleton template matcher. Only one
// workflow may have it Enabled at a time (caller discipline, spec §3); it
// is passed through the workflow as an explicit handle rather than
// accessed via a package-level global (spec §9 design note).
type Detector struct {
	matcher   Matcher
	templates []Template
	threshold float64

	mu          sync.Mutex
	enabled     bool
	matchedAt   *time.Time
	matchScore  float64

	limiter *rate.Limiter
}

// NewDetector builds a Detector over templates using matcher, with
// threshold defaulting to DefaultThreshold when <= 0.
func NewDetector(matcher Matcher, templates []Template, threshold float64) *Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Detector{
		matcher:   matcher,
		templates: templates,
		threshold: threshold,
		limiter:   rate.NewLimiter(rate.Every(frameInterval), 1),
	}
}

// Enable arms the detector to accept frames. Idempotent.
func (d *Detector) Enable() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = true
	d.matchedAt = nil
	d.matchScore = 0
}

// Disable disarms the detector; subsequent frames are dropped.
func (d *Detector) Disable() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = false
}

// Enabled reports whether the detector currently accepts frames.
func (d *Detector) Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enabled
}

// Matched reports whether a frame has matched since the last Enable, and
// the score if so.
func (d *Detector) Matched() (bool, float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.matchedAt != nil, d.matchScore
}

// SubmitFrame scores frame against every template across the scale
// pyramid; if the best score clears the threshold, the detector disables
// itself (spec §4.5: "that is how the task learns of success") and records
// the match. Frames submitted while disabled are dropped.
func (d *Detector) SubmitFrame(frame Grayscale) (matched bool, score float64) {
	d.mu.Lock()
	if !d.enabled {
		d.mu.Unlock()
		return false, 0
	}
	templates := d.templates
	threshold := d.threshold
	d.mu.Unlock()

	if !d.limiter.Allow() {
		return false, 0
	}

	best := bestScoreAcrossTemplates(d.matcher, frame, templates)

	if best >= threshold {
		d.mu.Lock()
		if d.enabled {
			d.enabled = false
			now := time.Now()
			d.matchedAt = &now
			d.matchScore = best
		}
		d.mu.Unlock()
		return true, best
	}
	return false, best
}

// bestScoreAcrossTemplates is the scoring step shared by SubmitFrame and
// Calibrate: the best match any registered template achieves against frame.
func bestScoreAcrossTemplates(matcher Matcher, frame Grayscale, templates []Template) float64 {
	best := 0.0
	for _, tmpl := range templates {
		if s := matcher.BestScore(frame, tmpl.Pixels); s > best {
			best = s
		}
	}
	return best
}

// Calibrate sets the detector's threshold from a batch of frames known not
// to contain the wake template (e.g. captured during the silent lead-in of
// a trial), instead of trusting the fixed DefaultThreshold or a caller-
// supplied constant: threshold becomes calibrationFactor times the
// calibrationPercentile of the best scores those frames produce, so a
// noisier camera/lighting setup widens its own margin automatically.
// Returns errs.DependencyMissing if samples is empty, since no calibration
// run can validate a threshold against zero observations.
func (d *Detector) Calibrate(samples []Grayscale) (float64, error) {
	if len(samples) == 0 {
		return 0, errs.New(errs.DependencyMissing, "visualwake: calibrate requires at least one sample frame")
	}

	d.mu.Lock()
	matcher := d.matcher
	templates := d.templates
	d.mu.Unlock()

	scores := make([]float64, len(samples))
	for i, frame := range samples {
		scores[i] = bestScoreAcrossTemplates(matcher, frame, templates)
	}
	sort.Float64s(scores)

	idx := int(float64(len(scores)) * calibrationPercentile)
	if idx >= len(scores) {
		idx = len(scores) - 1
	}
	threshold := scores[idx] * calibrationFactor

	d.mu.Lock()
	d.threshold = threshold
	d.mu.Unlock()

	return threshold, nil
}

func scaledDims(w, h int, scale float64) (int, int) {
	return int(float64(w) * scale), int(float64(h) * scale)
}

// usableScales filters scalePyramid to scales producing a template no
// larger than the frame and no smaller than minTemplateDim on either edge.
func usableScales(frameW, frameH, tmplW, tmplH int) []float64 {
	var out []float64
	for _, scale := range scalePyramid {
		w, h := scaledDims(tmplW, tmplH, scale)
		if w > frameW || h > frameH {
			continue
		}
		if w < minTemplateDim || h < minTemplateDim {
			continue
		}
		out = append(out, scale)
	}
	return out
}
