package attempt

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Runner drives a session's countdown from a wall-clock ticker. It ticks once
// per second while the session is Active and exits once the session leaves
// Active for good: after the deadline fired, after a successful submit, or
// when the owning context is cancelled. A session stuck in Submitting after a
// failed manual submit reverts to Active and keeps being ticked.
type Runner struct {
	session *Session
	log     zerolog.Logger

	interval time.Duration
	done     chan struct{}

	// OnTick, when set, is invoked from the runner goroutine after every
	// countdown tick with the remaining seconds. Set it before calling Run.
	OnTick func(remaining int)
}

// NewRunner wraps a started session. Call Run in a goroutine.
func NewRunner(s *Session, log zerolog.Logger) *Runner {
	return &Runner{
		session:  s,
		log:      log.With().Str("component", "attempt_runner").Logger(),
		interval: time.Second,
		done:     make(chan struct{}),
	}
}

// Run loops the ticker until the attempt settles or ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Debug().Msg("Runner cancelled")
			return
		case <-ticker.C:
			if expired := r.session.Tick(ctx); expired {
				// Forced submit already ran inside Tick, one way or the other.
				return
			}
			if r.session.State() == StateSubmitted {
				return
			}
			if r.OnTick != nil {
				r.OnTick(r.session.RemainingSeconds())
			}
		}
	}
}

// Done is closed when Run has returned.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}
