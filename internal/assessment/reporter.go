package assessment

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Reporter periodically recomputes every user that has answers, refreshing
// the score gauges and publishing a score snapshot per user.
type Reporter struct {
	svc      *Service
	interval time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewReporter(svc *Service, interval time.Duration) *Reporter {
	return &Reporter{svc: svc, interval: interval, stopCh: make(chan struct{})}
}

// Start runs the reporting loop in the background. A non-positive interval
// leaves the reporter idle; RunOnce still works.
func (r *Reporter) Start(ctx context.Context) {
	if r.interval <= 0 {
		r.svc.logger.Warn("reporter not started, interval must be positive", "interval", r.interval)
		return
	}
	r.wg.Add(1)
	go r.loop(ctx)
}

func (r *Reporter) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}

func (r *Reporter) loop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce performs one reporting pass and returns the number of users recomputed.
func (r *Reporter) RunOnce(ctx context.Context) int {
	all, err := r.svc.store.AllAnswers(ctx)
	if err != nil {
		r.svc.logger.Error("failed to load answers for reporting", "error", err)
		return 0
	}

	users := make([]string, 0, len(all))
	for id := range all {
		users = append(users, id)
	}
	sort.Strings(users)

	n := 0
	for _, userID := range users {
		rep, err := r.svc.Recompute(ctx, userID)
		if err != nil {
			r.svc.logger.Warn("failed to recompute user", "user_id", userID, "error", err)
			continue
		}
		r.svc.publishScore(ctx, rep)
		n++
	}
	r.svc.logger.Info("reporting pass complete", "users", n)
	return n
}
