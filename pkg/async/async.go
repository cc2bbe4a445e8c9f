package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/apilibrary/apilibrary/pkg/observability"
)

// SafeGo executes fn in a goroutine with panic recovery and a timeout.
// Use this instead of a bare `go func()` so a misbehaving background task
// cannot crash the process or run forever.
func SafeGo(parent context.Context, timeout time.Duration, taskName string, log *observability.Logger, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				log.WithFields(map[string]interface{}{
					"task":  taskName,
					"panic": fmt.Sprint(r),
					"stack": string(debug.Stack()),
				}).Error("background task panicked")
			}
		}()

		if err := fn(ctx); err != nil {
			log.WithError(err).WithField("task", taskName).Error("background task failed")
		}
	}()
}

// Coalescer folds bursts of triggers into single executions of one task.
// While a run is in flight, further triggers collapse into at most one
// pending re-run, so N rapid catalog mutations yield at most two exports
// rather than N.
type Coalescer struct {
	taskName string
	timeout  time.Duration
	log      *observability.Logger
	fn       func(context.Context) error

	mu      sync.Mutex
	running bool
	pending bool
}

// NewCoalescer builds a coalescer around one task function.
func NewCoalescer(taskName string, timeout time.Duration, log *observability.Logger, fn func(context.Context) error) *Coalescer {
	return &Coalescer{
		taskName: taskName,
		timeout:  timeout,
		log:      log,
		fn:       fn,
	}
}

// Trigger requests a run. It returns immediately; the task executes on a
// background goroutine scoped to parent.
func (c *Coalescer) Trigger(parent context.Context) {
	c.mu.Lock()
	if c.running {
		c.pending = true
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	c.launch(parent)
}

func (c *Coalescer) launch(parent context.Context) {
	SafeGo(parent, c.timeout, c.taskName, c.log, func(ctx context.Context) error {
		// The state transition runs as a defer so a panicking task still
		// releases the running flag.
		defer func() {
			c.mu.Lock()
			if c.pending && parent.Err() == nil {
				c.pending = false
				c.mu.Unlock()
				c.launch(parent)
				return
			}
			c.running = false
			c.pending = false
			c.mu.Unlock()
		}()
		return c.fn(ctx)
	})
}
