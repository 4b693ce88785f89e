// Package schedule runs the tracker's background jobs on wall-clock ticks:
// reminder dispatch, the hourly check-in, and the nightly daily summary.
// Jobs are re-entrant safe because each tick runs them sequentially in one
// goroutine.
package schedule

import (
	"context"
	"log"
	"time"

	"github.com/kumar-shivang/work-tracker/internal/storage"
)

// Notifier delivers text to chat sessions. The server's hub implements it.
type Notifier interface {
	Notify(sessionID, text string) bool
	Broadcast(text string)
}

// CheckInSource generates a check-in message.
type CheckInSource interface {
	CheckIn(ctx context.Context) string
}

// Summarizer runs the end-of-day summary for a date.
type Summarizer interface {
	RunDailySummary(ctx context.Context, date time.Time) (string, error)
}

// Config controls job timing. The check-in fires once per hour on weekdays
// with the local hour in [CheckInStart, CheckInEnd); the summary fires once
// per day at SummaryAt local time.
type Config struct {
	Location     *time.Location
	CheckInStart int
	CheckInEnd   int
	SummaryAt    string // HH:MM
	PollInterval time.Duration
}

// Runner drives the background jobs.
type Runner struct {
	cfg      Config
	records  storage.RecordStore
	notifier Notifier
	checkIns CheckInSource
	summary  Summarizer

	lastCheckIn    string // local day-hour key of the last check-in
	lastSummaryDay string
	now            func() time.Time
}

// New creates a runner. PollInterval defaults to 30 seconds.
func New(cfg Config, records storage.RecordStore, notifier Notifier, checkIns CheckInSource, summary Summarizer) *Runner {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	return &Runner{
		cfg:      cfg,
		records:  records,
		notifier: notifier,
		checkIns: checkIns,
		summary:  summary,
		now:      time.Now,
	}
}

// Run blocks until ctx is cancelled, ticking every PollInterval.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	log.Printf("schedule: runner started (poll %s)", r.cfg.PollInterval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("schedule: runner stopping")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

// tick runs every due job once. Exported pieces are split out so tests can
// drive them with a fake clock.
func (r *Runner) tick(ctx context.Context) {
	r.DispatchReminders(ctx)
	r.maybeCheckIn(ctx)
	r.maybeSummarize(ctx)
}

// DispatchReminders delivers due reminders and marks them fired. A reminder
// whose session has no live connection stays pending and is retried on the
// next tick.
func (r *Runner) DispatchReminders(ctx context.Context) {
	due, err := r.records.PendingReminders(ctx)
	if err != nil {
		log.Printf("schedule: pending reminder lookup failed: %v", err)
		return
	}

	now := r.now().UTC()
	for _, rem := range due {
		if rem.RemindAt.After(now) {
			// PendingReminders is ordered by remind_at ascending.
			break
		}

		text := "Reminder: " + rem.Content
		delivered := false
		if rem.SessionID != "" {
			delivered = r.notifier.Notify(rem.SessionID, text)
		} else {
			r.notifier.Broadcast(text)
			delivered = true
		}
		if !delivered {
			continue
		}

		if err := r.records.MarkReminderFired(ctx, rem.ID); err != nil {
			log.Printf("schedule: mark reminder %s fired failed: %v", rem.ID, err)
		}
	}
}

// maybeCheckIn fires the hourly check-in on weekdays within the window.
func (r *Runner) maybeCheckIn(ctx context.Context) {
	local := r.now().In(r.cfg.Location)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return
	}
	if local.Hour() < r.cfg.CheckInStart || local.Hour() >= r.cfg.CheckInEnd {
		return
	}
	key := local.Format("2006-01-02T15")
	if key == r.lastCheckIn {
		return
	}

	r.notifier.Broadcast(r.checkIns.CheckIn(ctx))
	r.lastCheckIn = key
}

// maybeSummarize fires the daily summary once the local time passes the
// configured HH:MM.
func (r *Runner) maybeSummarize(ctx context.Context) {
	local := r.now().In(r.cfg.Location)
	day := local.Format("2006-01-02")
	if day == r.lastSummaryDay {
		return
	}
	if local.Format("15:04") < r.cfg.SummaryAt {
		return
	}

	text, err := r.summary.RunDailySummary(ctx, local)
	if err != nil {
		log.Printf("schedule: daily summary failed: %v", err)
		return
	}
	r.notifier.Broadcast(text)
	r.lastSummaryDay = day
}
