package services

import (
	"context"
	"github.com/asaskevich/EventBus"
	"github.com/maxaizer/placement-matcher/internal/events"
	"github.com/maxaizer/placement-matcher/internal/logger"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"sync"
	"time"
)

type matchRunner interface {
	RunMatch(ctx context.Context, jobID int) (*RunSummary, error)
	RefreshAllActiveJobs(ctx context.Context) error
	CancelRun(jobID int) bool
}

// MatchScheduler triggers match runs from the cron sweep and from job events.
type MatchScheduler struct {
	runner   matchRunner
	bus      EventBus.Bus
	cron     *cron.Cron
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	sweeping sync.Mutex
	mu       sync.Mutex
	stopped  bool
	watcher  *JobWatcher
}

func NewMatchScheduler(runner matchRunner, bus EventBus.Bus, schedule string) (*MatchScheduler, error) {

	if schedule == "" {
		return nil, errors.New("refresh schedule must not be empty")
	}

	ctx, cancel := context.WithCancel(context.Background())
	ms := &MatchScheduler{
		runner: runner,
		bus:    bus,
		cron:   cron.New(),
		ctx:    ctx,
		cancel: cancel,
	}

	if _, err := ms.cron.AddFunc(schedule, ms.refreshActiveJobs); err != nil {
		cancel()
		return nil, errors.Wrapf(err, "invalid refresh schedule %q", schedule)
	}

	if bus != nil {
		if err := bus.SubscribeAsync(events.JobPublishedTopic, ms.onJobPublished, false); err != nil {
			cancel()
			return nil, err
		}
		if err := bus.Subscribe(events.JobDeactivatedTopic, ms.onJobDeactivated); err != nil {
			cancel()
			return nil, err
		}
	}

	ms.cron.Start()
	log.Infof("match scheduler started, refresh schedule: %s", schedule)
	return ms, nil
}

// Watch polls the store on the given schedule for jobs that need a run or a
// cancel, and publishes the matching events.
func (ms *MatchScheduler) Watch(watcher *JobWatcher, schedule string) error {
	_, err := ms.cron.AddFunc(schedule, func() {
		if !ms.track() {
			return
		}
		defer ms.wg.Done()
		watcher.Poll(ms.ctx)
	})
	if err != nil {
		return errors.Wrapf(err, "invalid poll schedule %q", schedule)
	}
	ms.watcher = watcher
	log.Infof("job watcher started, poll schedule: %s", schedule)
	return nil
}

// track registers a unit of work unless the scheduler is stopping.
func (ms *MatchScheduler) track() bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.stopped {
		return false
	}
	ms.wg.Add(1)
	return true
}

// Stop halts the sweep, cancels in-flight runs started by the scheduler and waits for them.
func (ms *MatchScheduler) Stop() {
	ms.mu.Lock()
	if ms.stopped {
		ms.mu.Unlock()
		return
	}
	ms.stopped = true
	ms.mu.Unlock()

	if ms.watcher != nil {
		ms.watcher.Stop()
	}
	if ms.bus != nil {
		_ = ms.bus.Unsubscribe(events.JobPublishedTopic, ms.onJobPublished)
		_ = ms.bus.Unsubscribe(events.JobDeactivatedTopic, ms.onJobDeactivated)
	}
	cronCtx := ms.cron.Stop()
	ms.cancel()
	<-cronCtx.Done()
	ms.wg.Wait()
}

// RefreshNow runs the sweep outside of the schedule.
func (ms *MatchScheduler) RefreshNow() {
	ms.refreshActiveJobs()
}

func (ms *MatchScheduler) refreshActiveJobs() {
	if !ms.sweeping.TryLock() {
		log.Info("previous refresh of active jobs is still running, skipping")
		return
	}
	defer ms.sweeping.Unlock()

	if !ms.track() {
		return
	}
	defer ms.wg.Done()

	startTime := time.Now()
	if err := ms.runner.RefreshAllActiveJobs(ms.ctx); err != nil {
		log.Errorf("failed to refresh active jobs: %v", err)
		return
	}
	log.Infof("active jobs refreshed after %v", time.Since(startTime))
}

func (ms *MatchScheduler) onJobPublished(event events.JobPublished) {
	if !ms.track() {
		return
	}
	defer ms.wg.Done()

	if _, err := ms.runner.RunMatch(ms.ctx, event.JobID); err != nil {
		log.WithField(logger.JobIDField, event.JobID).Warnf("match run on job publish failed: %v", err)
	}
}

func (ms *MatchScheduler) onJobDeactivated(event events.JobDeactivated) {
	if ms.runner.CancelRun(event.JobID) {
		log.WithField(logger.JobIDField, event.JobID).Info("in-flight match run cancelled, job deactivated")
	}
}
