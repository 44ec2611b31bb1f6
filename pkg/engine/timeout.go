package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chazu/umbra/pkg/canopy"
)

// EvalTimeout is the default hard limit for a single evaluation.
const EvalTimeout = 5 * time.Second

var (
	// ErrTimeout is returned when a script runs longer than the engine allows.
	ErrTimeout = errors.New("evaluation timed out")

	// ErrSuperseded is returned to an evaluation that finished after a newer
	// one was started on the same engine.
	ErrSuperseded = errors.New("evaluation superseded by newer request")
)

// evalResult passes evaluation results through channels.
type evalResult struct {
	canopy *canopy.Canopy
	errors []EvalError
	err    error
}

// waitWithTimeout waits for a result from ch, giving up after timeout. A
// result whose generation is no longer current is discarded.
//
// On timeout the evaluating goroutine keeps running; ch must be buffered so
// it can still deliver and exit.
func waitWithTimeout(
	ch <-chan evalResult,
	gen uint64,
	mu *sync.Mutex,
	currentGen *uint64,
	timeout time.Duration,
) (*canopy.Canopy, []EvalError, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		mu.Lock()
		current := *currentGen
		mu.Unlock()

		if gen != current {
			return nil, nil, ErrSuperseded
		}
		return res.canopy, res.errors, res.err

	case <-timer.C:
		return nil, nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
}
