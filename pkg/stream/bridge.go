package stream

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// DefaultBuffer is the bounded output queue size
const DefaultBuffer = 64

// Worker produces output units for one pipeline invocation. A returned
// error becomes the final unit on the stream.
type Worker func(ctx context.Context, emit func(Unit)) error

// Bridge runs a worker on a background goroutine and exposes its output
// as an ordered, blocking channel. One worker per invocation, not pooled.
type Bridge struct {
	buffer int
	logger zerolog.Logger
}

// NewBridge creates a bridge; zero or negative buffer means DefaultBuffer
func NewBridge(buffer int, logger zerolog.Logger) *Bridge {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Bridge{buffer: buffer, logger: logger}
}

// Run spawns the worker and returns its output channel. The channel is
// closed when the worker finishes; a worker error or panic is delivered
// as a final error unit instead of crossing the goroutine boundary.
//
// There is no mid-turn cancellation: if the consumer stops reading, the
// worker still runs to completion, dropping units once ctx is done.
func (b *Bridge) Run(ctx context.Context, worker Worker) <-chan Unit {
	out := make(chan Unit, b.buffer)

	emit := func(u Unit) {
		select {
		case out <- u:
		case <-ctx.Done():
			// Consumer is gone; keep the worker unblocked
		}
	}

	go func() {
		defer close(out)

		err := b.runWorker(ctx, worker, emit)
		if err != nil {
			b.logger.Error().Err(err).Msg("Stream worker failed")
			emit(ErrorUnit(err))
		}
	}()

	return out
}

// runWorker invokes the worker, converting a panic into an error
func (b *Bridge) runWorker(ctx context.Context, worker Worker, emit func(Unit)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stream worker panic: %v", r)
		}
	}()
	return worker(ctx, emit)
}
