package ocr

import (
	"context"
	"fmt"

	"github.com/drivevox/validator/errs"
)

// DefaultEnginePoolSize is the number of OCR engines kept warm by default
// (spec §5: "fixed number of engines, default 6").
const DefaultEnginePoolSize = 6

// Engine is one OCR backend instance. Concrete implementations wrap a
// vendor OCR SDK; the pool depends only on this interface.
type Engine interface {
	Recognize(ctx context.Context, frame []byte) (string, error)
}

// EnginePool leases a fixed set of Engines. A lease must not be held across
// an await (spec §5); callers call Lease, use the engine synchronously, and
// Release before the next suspension point.
type EnginePool struct {
	engines chan Engine
}

// NewEnginePool wraps engines behind a bounded channel of lease slots.
func NewEnginePool(engines []Engine) *EnginePool {
	ch := make(chan Engine, len(engines))
	for _, e := range engines {
		ch <- e
	}
	return &EnginePool{engines: ch}
}

// Lease blocks until an engine is available or ctx is done.
func (p *EnginePool) Lease(ctx context.Context) (Engine, error) {
	select {
	case e := <-p.engines:
		return e, nil
	case <-ctx.Done():
		return nil, errs.Wrap(errs.Cancelled, "lease OCR engine", ctx.Err())
	}
}

// Release returns e to the pool. Releasing an engine not obtained from this
// pool is a programming error.
func (p *EnginePool) Release(e Engine) {
	select {
	case p.engines <- e:
	default:
		panic(fmt.Sprintf("ocr: released engine %v into a full pool", e))
	}
}
