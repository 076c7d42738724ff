package uiapi

import (
	"context"
	"time"

	"github.com/drivevox/validator/errs"
)

// frameQueueCapacity bounds how many pushed frames may be buffered ahead of
// an OCR task that has fallen behind.
const frameQueueCapacity = 64

type ocrFrame struct {
	text string
	ts   time.Time
}

// FrameQueue bridges CommandSurface.PushOCRFrame calls from the UI side to
// an OCRTask's tasks.FrameFeed on the workflow side: the UI pushes, the
// task pulls (spec §4.4: "the actual per-frame recognition is performed by
// a separate UI-driven flow").
type FrameQueue struct {
	ch chan ocrFrame
}

// NewFrameQueue returns an empty, ready-to-use FrameQueue.
func NewFrameQueue() *FrameQueue {
	return &FrameQueue{ch: make(chan ocrFrame, frameQueueCapacity)}
}

// Push enqueues one recognized-text frame, blocking if the queue is full.
func (q *FrameQueue) Push(ctx context.Context, text string, ts time.Time) error {
	select {
	case q.ch <- ocrFrame{text: text, ts: ts}:
		return nil
	case <-ctx.Done():
		return errs.Wrap(errs.Cancelled, "push OCR frame", ctx.Err())
	}
}

// Next implements tasks.FrameFeed.
func (q *FrameQueue) Next(ctx context.Context) (string, time.Time, error) {
	select {
	case f := <-q.ch:
		return f.text, f.ts, nil
	case <-ctx.Done():
		return "", time.Time{}, ctx.Err()
	}
}
