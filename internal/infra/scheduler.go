package infra

import (
	"context"
	"time"

	"github.com/eliteGoblin/focusd/activity_mon/internal/domain"
)

// TimerScheduler implements domain.Scheduler with a timer that is re-armed
// only after the task returns, so a slow run delays the next one instead of
// overlapping it.
type TimerScheduler struct{}

// NewTimerScheduler creates the default scheduler.
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{}
}

// Every runs task every interval until ctx is done or task returns an error.
// The first run happens after one interval.
func (s *TimerScheduler) Every(ctx context.Context, interval time.Duration, task func(ctx context.Context) error) error {
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			if err := task(ctx); err != nil {
				return err
			}
			timer.Reset(interval)
		}
	}
}

var _ domain.Scheduler = (*TimerScheduler)(nil)
