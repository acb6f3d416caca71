// Package schedule runs report generation for a fixed list of companies on a
// cron schedule.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job generates the report of one company.
type Job func(ctx context.Context, afm string) error

// BatchResult tracks the outcome of one scheduled pass.
type BatchResult struct {
	Succeeded []string
	Failed    map[string]error
}

func (r BatchResult) Summary() string {
	msg := fmt.Sprintf("%d succeeded, %d failed", len(r.Succeeded), len(r.Failed))
	if len(r.Failed) == 0 {
		return msg
	}
	afms := make([]string, 0, len(r.Failed))
	for afm := range r.Failed {
		afms = append(afms, afm)
	}
	sort.Strings(afms)
	var parts []string
	for _, afm := range afms {
		parts = append(parts, fmt.Sprintf("%s: %v", afm, r.Failed[afm]))
	}
	return msg + " (" + strings.Join(parts, "; ") + ")"
}

// Parse accepts a standard 5-field cron expression (minute hour
// day-of-month month day-of-week), e.g. "0 2 * * *" or "0 9 * * 1-5".
func Parse(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(strings.TrimSpace(expr))
	if err != nil {
		return nil, fmt.Errorf("invalid schedule_cron '%s': %w", expr, err)
	}
	return sched, nil
}

// RunBatch runs job for every AFM in order. A failing company does not stop
// the batch.
func RunBatch(ctx context.Context, afms []string, job Job, logger *zap.Logger) BatchResult {
	res := BatchResult{Failed: map[string]error{}}
	for _, afm := range afms {
		if err := ctx.Err(); err != nil {
			res.Failed[afm] = err
			continue
		}
		logger.Info("schedule run start", zap.String("afm", afm))
		if err := job(ctx, afm); err != nil {
			logger.Error("schedule run failed", zap.String("afm", afm), zap.Error(err))
			res.Failed[afm] = err
			continue
		}
		res.Succeeded = append(res.Succeeded, afm)
	}
	return res
}

// wait blocks for d or until ctx is done.
var wait = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var nowFn = time.Now

// Loop blocks until ctx is cancelled, running a batch at every activation of
// expr in loc. Runs never overlap; an activation missed while a batch is
// still running is skipped.
func Loop(ctx context.Context, expr string, loc *time.Location, afms []string, job Job, logger *zap.Logger) error {
	if len(afms) == 0 {
		return errors.New("no scheduled_afms configured")
	}
	sched, err := Parse(expr)
	if err != nil {
		return err
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("schedule started", zap.String("cron", expr), zap.Int("companies", len(afms)))

	for {
		now := nowFn().In(loc)
		next := sched.Next(now)
		logger.Info("schedule next run",
			zap.String("at", next.Format("Mon Jan 2 15:04")),
			zap.Duration("in", next.Sub(now).Round(time.Minute)))

		if err := wait(ctx, next.Sub(now)); err != nil {
			logger.Info("schedule stopped")
			return nil
		}
		res := RunBatch(ctx, afms, job, logger)
		logger.Info("schedule batch complete", zap.String("summary", res.Summary()))
	}
}
