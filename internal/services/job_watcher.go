package services

import (
	"context"
	"github.com/asaskevich/EventBus"
	"github.com/maxaizer/placement-matcher/internal/domain/models"
	"github.com/maxaizer/placement-matcher/internal/events"
	"github.com/maxaizer/placement-matcher/internal/logger"
	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"strconv"
	"time"
)

type watchedJobRepository interface {
	GetUnmatchedActive(ctx context.Context, limit int, exclude []int) ([]models.Job, error)
	GetByID(ctx context.Context, id int) (*models.Job, error)
}

type inFlightRuns interface {
	InFlight() []int
}

// JobWatcher turns store state into job events: active jobs that were never
// matched are published, and in-flight runs of jobs that stopped being active
// are reported as deactivated.
type JobWatcher struct {
	jobs      watchedJobRepository
	runs      inFlightRuns
	bus       EventBus.Bus
	pending   *gocache.Cache
	batchSize int
}

// NewJobWatcher publishes a job at most once per retryAfter until its run finishes.
func NewJobWatcher(jobs watchedJobRepository, runs inFlightRuns, bus EventBus.Bus,
	retryAfter time.Duration, batchSize int) (*JobWatcher, error) {

	if bus == nil {
		return nil, errors.New("job watcher needs an event bus")
	}
	if retryAfter <= 0 {
		return nil, errors.New("publish retry interval must be greater than zero")
	}
	if batchSize < 1 {
		batchSize = 20
	}

	w := &JobWatcher{
		jobs:      jobs,
		runs:      runs,
		bus:       bus,
		pending:   gocache.New(retryAfter, retryAfter),
		batchSize: batchSize,
	}
	if err := bus.Subscribe(events.MatchRunFinishedTopic, w.onRunFinished); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *JobWatcher) Stop() {
	_ = w.bus.Unsubscribe(events.MatchRunFinishedTopic, w.onRunFinished)
}

// Poll runs one pass over the store.
func (w *JobWatcher) Poll(ctx context.Context) {
	w.publishUnmatched(ctx)
	w.reportDeactivated(ctx)
}

func (w *JobWatcher) publishUnmatched(ctx context.Context) {
	jobs, err := w.jobs.GetUnmatchedActive(ctx, w.batchSize, w.pendingIDs())
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("failed to load unmatched jobs: %v", err)
		return
	}

	published := 0
	for _, job := range jobs {
		if err := w.pending.Add(strconv.Itoa(job.ID), struct{}{}, gocache.DefaultExpiration); err != nil {
			continue // already published, waiting for its run
		}
		w.bus.Publish(events.JobPublishedTopic, events.JobPublished{JobID: job.ID})
		published++
	}
	if published > 0 {
		log.Infof("published %d unmatched jobs", published)
	}
}

func (w *JobWatcher) pendingIDs() []int {
	items := w.pending.Items()
	ids := make([]int, 0, len(items))
	for key := range items {
		if id, err := strconv.Atoi(key); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func (w *JobWatcher) reportDeactivated(ctx context.Context) {
	for _, jobID := range w.runs.InFlight() {
		job, err := w.jobs.GetByID(ctx, jobID)
		if err != nil {
			log.WithField(logger.JobIDField, jobID).Warnf("failed to check job status: %v", err)
			continue
		}
		if job != nil && job.IsActive() {
			continue
		}
		log.WithField(logger.JobIDField, jobID).Info("job of an in-flight run is no longer active")
		w.bus.Publish(events.JobDeactivatedTopic, events.JobDeactivated{JobID: jobID})
	}
}

func (w *JobWatcher) onRunFinished(event events.MatchRunFinished) {
	w.pending.Delete(strconv.Itoa(event.JobID))
}
