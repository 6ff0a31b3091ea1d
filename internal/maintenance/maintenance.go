// Package maintenance runs the periodic housekeeping sweep the session
// multiplexer needs but that C1-C5 do not themselves schedule: reclaiming
// container processes left behind by an owner whose Session is no longer
// RUNNING, on an admin-configured recurrence.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/teambition/rrule-go"

	"shellmux/internal/sandbox"
	"shellmux/internal/session"
)

// Scheduler fires a sweep on the cadence described by an RRULE string.
type Scheduler struct {
	rule       *rrule.RRule
	manager    *session.Manager
	dispatcher *sandbox.Dispatcher
	ownerIDs   []string
	log        *slog.Logger
}

// New builds a Scheduler. ownerIDs is the roster of owners the sweep
// checks for orphaned container processes; ruleStr is an iCalendar RRULE
// (e.g. "FREQ=DAILY;BYHOUR=4;BYMINUTE=0").
func New(ruleStr string, ownerIDs []string, mgr *session.Manager, d *sandbox.Dispatcher, log *slog.Logger) (*Scheduler, error) {
	rule, err := rrule.StrToRRule(ruleStr)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{rule: rule, manager: mgr, dispatcher: d, ownerIDs: ownerIDs, log: log}, nil
}

// Run blocks, firing Sweep at each occurrence of the RRULE until ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		next := s.rule.After(time.Now(), false)
		if next.IsZero() {
			<-ctx.Done()
			return
		}
		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one housekeeping pass: skipped entirely if the container is
// unhealthy, otherwise kills every process belonging to an owner with no
// RUNNING Session.
func (s *Scheduler) Sweep(ctx context.Context) {
	if !s.dispatcher.Health(ctx) {
		s.log.Warn("maintenance: container unhealthy, skipping sweep")
		return
	}

	for _, ownerID := range s.ownerIDs {
		if sess, ok := s.manager.Lookup(ownerID); ok && sess.State() == session.StateRunning {
			continue
		}
		if err := s.dispatcher.KillAll(ctx, ownerID); err != nil {
			s.log.Warn("maintenance: kill orphaned processes", "owner_id", ownerID, "error", err)
		}
	}
}
