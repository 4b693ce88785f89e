package schedule

import (
	"context"
	"time"
)

// SetClock overrides the runner's wall clock, for tests.
func (r *Runner) SetClock(now func() time.Time) { r.now = now }

// Tick runs one scheduling pass.
func (r *Runner) Tick(ctx context.Context) { r.tick(ctx) }
