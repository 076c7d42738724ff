// Package ocr implements the OCR session state machine (spec §4.4) that
// decides, frame by frame, when on-screen text recognition has stabilized,
// plus a bounded OCR engine pool. tasks.OCRTask does not lease from the
// pool: its frames arrive already recognized through tasks.FrameFeed.
package ocr

import "time"

const (
	// historyCapacity is both the text-history FIFO size and the content-
	// stability frame threshold.
	historyCapacity = 30
	// noTextTimeout is how long a session may go without recognizing new
	// text before declaring stable_by_timeout.
	noTextTimeout = 5000 * time.Millisecond
	// contentSimilarityThreshold is the minimum normalized Levenshtein
	// similarity every history entry must reach against history[0] for
	// stable_by_content.
	contentSimilarityThreshold = 0.95
)

// historyEntry is one recognized frame retained for content-stability checks.
type historyEntry struct {
	text string
	ts   time.Time
}

// Result is the per-frame outcome of Session.Feed. The OCR task forwards
// its FinalText on every frame and the whole Result once ShouldStopOCR is
// set, both as ocr_channel events.
type Result struct {
	FirstTextDetectedTime *time.Time
	TextStabilizedTime    *time.Time
	FinalText             string
	IsSessionComplete      bool
	ShouldStopOCR          bool
	CurrentFrame           int
}

// Session is one OCR session's state machine. It is not safe for concurrent
// use by multiple goroutines; the OCR task serializes frame delivery.
type Session struct {
	// EnableContentStability opts into the additional history-similarity
	// stop condition alongside the no-text timeout (spec §9 open question
	// ii: disabled by default, since the source's per-frame path never
	// exercises it).
	EnableContentStability bool

	detected     bool
	firstTextTS  *time.Time
	lastTextTS   *time.Time
	stableTS     *time.Time
	history      []historyEntry
	frameCount   int
	stopped      bool
	finalText    string
}

// NewSession returns an empty Session with content-stability disabled.
func NewSession() *Session {
	return &Session{}
}

// Observe processes one frame's recognized text (may be empty) at ts and
// returns the session's current Result. Once ShouldStopOCR is true in a
// returned Result, it remains true until Reset (spec §8 property 6).
func (s *Session) Observe(text string, ts time.Time) Result {
	s.frameCount++

	if text != "" {
		s.detected = true
		if s.firstTextTS == nil {
			t := ts
			s.firstTextTS = &t
		}
		t := ts
		s.lastTextTS = &t
		s.finalText = text
	} else if s.detected && !s.stopped && s.lastTextTS != nil && ts.Sub(*s.lastTextTS) > noTextTimeout {
		s.markStable(ts)
	}

	if s.detected && !s.stopped {
		s.pushHistory(text, ts)
		if s.EnableContentStability && len(s.history) >= historyCapacity {
			if s.allSimilarToReference() {
				s.markStable(ts)
			}
		}
	}

	return s.result()
}

func (s *Session) markStable(ts time.Time) {
	if s.stopped {
		return
	}
	s.stopped = true
	t := ts
	s.stableTS = &t
}

func (s *Session) pushHistory(text string, ts time.Time) {
	s.history = append(s.history, historyEntry{text: text, ts: ts})
	if len(s.history) > historyCapacity {
		s.history = s.history[len(s.history)-historyCapacity:]
	}
}

func (s *Session) allSimilarToReference() bool {
	if len(s.history) == 0 {
		return false
	}
	reference := s.history[0].text
	if reference == "" {
		return false
	}
	for _, entry := range s.history {
		if Similarity(reference, entry.text) < contentSimilarityThreshold {
			return false
		}
	}
	return true
}

func (s *Session) result() Result {
	return Result{
		FirstTextDetectedTime: s.firstTextTS,
		TextStabilizedTime:    s.stableTS,
		FinalText:             s.finalText,
		IsSessionComplete:     s.stopped,
		ShouldStopOCR:         s.stopped,
		CurrentFrame:          s.frameCount,
	}
}

// Reset clears all session state, allowing the session to be reused.
func (s *Session) Reset() {
	*s = Session{EnableContentStability: s.EnableContentStability}
}
