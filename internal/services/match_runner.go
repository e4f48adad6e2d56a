package services

import (
	"context"
	"fmt"
	"github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	"github.com/maxaizer/placement-matcher/internal/domain/models"
	"github.com/maxaizer/placement-matcher/internal/events"
	"github.com/maxaizer/placement-matcher/internal/logger"
	"github.com/maxaizer/placement-matcher/internal/matching"
	"github.com/maxaizer/placement-matcher/internal/metrics"
	"github.com/maxaizer/placement-matcher/internal/repositories"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrJobNotFound   = errors.New("job not found")
	ErrRunInProgress = errors.New("match run already in progress for job")
	ErrRunCancelled  = errors.New("match run cancelled")
)

type jobRepository interface {
	GetByID(ctx context.Context, id int) (*models.Job, error)
	GetActive(ctx context.Context, limit int, offset int) ([]models.Job, error)
	ReplaceMatches(ctx context.Context, jobID int, results []models.MatchResult, matchedAt time.Time) error
}

type candidateRepository interface {
	Snapshot(ctx context.Context) ([]models.Candidate, error)
}

type justifier interface {
	Generate(ctx context.Context, candidate models.Candidate, job models.Job, score matching.Score) (string, ReasonSource)
}

type MatchRunnerOptions struct {
	Weights              matching.Weights
	MinSkillMatchPercent float64
	EnrichTopN           int
	TopMatches           int
	ScoringWorkers       int
	EnrichmentWorkers    int
	ActiveJobsPageSize   int
}

func DefaultMatchRunnerOptions() MatchRunnerOptions {
	return MatchRunnerOptions{
		Weights:              matching.DefaultWeights(),
		MinSkillMatchPercent: 10,
		EnrichTopN:           50,
		TopMatches:           10,
		ScoringWorkers:       8,
		EnrichmentWorkers:    4,
		ActiveJobsPageSize:   20,
	}
}

type RunSummary struct {
	RunID               string
	JobID               int
	JobTitle            string
	Policy              matching.Policy
	TotalCandidates     int
	MatchCount          int
	Excluded            int
	Skipped             int
	DegradedEnrichments int
	UncoveredSkills     []string
	TopMatches          []models.MatchResult
	Duration            time.Duration
}

type MatchRunner struct {
	jobs        jobRepository
	candidates  candidateRepository
	justifier   justifier
	lock        RunLock
	bus         EventBus.Bus
	calculator  *matching.ScoreCalculator
	options     MatchRunnerOptions
	now         func() time.Time
	runContexts sync.Map
}

func NewMatchRunner(jobs jobRepository, candidates candidateRepository, justifier justifier, lock RunLock,
	bus EventBus.Bus, options MatchRunnerOptions) *MatchRunner {

	if lock == nil {
		lock = NewLocalRunLock()
	}
	if options.ScoringWorkers < 1 {
		options.ScoringWorkers = 1
	}
	if options.EnrichmentWorkers < 1 {
		options.EnrichmentWorkers = 1
	}
	if options.ActiveJobsPageSize < 1 {
		options.ActiveJobsPageSize = 20
	}

	return &MatchRunner{
		jobs:       jobs,
		candidates: candidates,
		justifier:  justifier,
		lock:       lock,
		bus:        bus,
		calculator: matching.NewScoreCalculator(options.Weights),
		options:    options,
		now:        time.Now,
	}
}

// RunMatch recomputes and replaces the match list of one job.
func (r *MatchRunner) RunMatch(ctx context.Context, jobID int) (*RunSummary, error) {

	runID := uuid.NewString()
	entry := log.WithFields(log.Fields{logger.RunIDField: runID, logger.JobIDField: jobID})

	unlock, ok, err := r.lock.TryLock(ctx, jobID, runID)
	if err != nil {
		entry.WithField(logger.ErrorTypeField, logger.ErrorTypeLock).Errorf("failed to acquire run lock: %v", err)
		metrics.RunsCounter.WithLabelValues("failed").Inc()
		return nil, errors.Wrap(err, "acquire run lock")
	}
	if !ok {
		entry.Info("match run rejected, another run is in flight")
		metrics.RunsCounter.WithLabelValues("rejected").Inc()
		return nil, ErrRunInProgress
	}
	defer unlock()

	runCtx, cancel := context.WithCancel(ctx)
	r.runContexts.Store(jobID, cancel)
	defer r.runContexts.Delete(jobID)
	defer cancel()

	startTime := time.Now()
	summary, err := r.run(runCtx, entry, runID, jobID)
	executionTime := time.Since(startTime)
	metrics.RunDuration.Observe(executionTime.Seconds())

	switch {
	case err == nil:
		summary.Duration = executionTime
		metrics.RunsCounter.WithLabelValues("persisted").Inc()
		entry.WithFields(log.Fields{
			"policy":     summary.Policy,
			"candidates": summary.TotalCandidates,
			"included":   summary.MatchCount,
			"excluded":   summary.Excluded,
			"skipped":    summary.Skipped,
			"degraded":   summary.DegradedEnrichments,
		}).Infof("match run persisted after %v", executionTime)
		if r.bus != nil {
			r.bus.Publish(events.MatchRunFinishedTopic, events.MatchRunFinished{
				JobID: jobID, MatchCount: summary.MatchCount, Degraded: summary.DegradedEnrichments,
			})
		}
	case errors.Is(err, ErrJobNotFound):
		metrics.RunsCounter.WithLabelValues("not_found").Inc()
		entry.Warn("match run failed: job not found")
	case errors.Is(err, repositories.ErrJobGone), errors.Is(err, ErrRunCancelled), runCtx.Err() != nil:
		metrics.RunsCounter.WithLabelValues("discarded").Inc()
		entry.Infof("match run results discarded: %v", err)
	default:
		metrics.RunsCounter.WithLabelValues("failed").Inc()
	}

	return summary, err
}

// CancelRun stops the in-flight run of a job, if any. Its results are not saved.
func (r *MatchRunner) CancelRun(jobID int) bool {
	if cancel, ok := r.runContexts.Load(jobID); ok {
		cancel.(context.CancelFunc)()
		return true
	}
	return false
}

// InFlight returns the ids of jobs with a run in progress on this instance.
func (r *MatchRunner) InFlight() []int {
	var ids []int
	r.runContexts.Range(func(key, _ any) bool {
		ids = append(ids, key.(int))
		return true
	})
	return ids
}

func (r *MatchRunner) run(ctx context.Context, entry *log.Entry, runID string, jobID int) (*RunSummary, error) {

	// Loaded
	start := time.Now()
	job, err := r.jobs.GetByID(ctx, jobID)
	if err != nil {
		entry.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("failed to get job: %v", err)
		return nil, errors.Wrap(err, "get job")
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	if !job.IsActive() {
		return nil, repositories.ErrJobGone
	}

	population, err := r.candidates.Snapshot(ctx)
	if err != nil {
		entry.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("failed to load candidates: %v", err)
		return nil, errors.Wrap(err, "load candidates")
	}
	observeStep("load", start)

	summary := &RunSummary{RunID: runID, JobID: job.ID, JobTitle: job.Title, TotalCandidates: len(population)}

	candidates := make([]models.Candidate, 0, len(population))
	for _, candidate := range population {
		if !candidate.Sanitize() {
			summary.Skipped++
			entry.WithField(logger.ErrorTypeField, logger.ErrorTypeCandidate).Warn("skipping candidate without id")
			continue
		}
		candidates = append(candidates, candidate)
	}

	// Analyzed
	coverage := matching.AnalyzeCoverage(*job, candidates)
	summary.Policy = matching.PolicyFor(coverage)
	summary.UncoveredSkills = coverage.Uncovered
	if len(coverage.Uncovered) > 0 {
		entry.Infof("required skills nobody in the pool has: %v", coverage.Uncovered)
	}

	// Scored
	start = time.Now()
	scores, failed, err := r.scoreAll(ctx, entry, candidates, *job)
	if err != nil {
		return nil, ErrRunCancelled
	}
	summary.Skipped += failed
	observeStep("score", start)

	// Filtered
	filter := matching.NewCandidateFilter(summary.Policy, r.options.MinSkillMatchPercent)
	required := len(matching.DedupSkills(job.RequiredSkills))
	survivors := make([]matching.Ranked, 0, len(candidates))
	for i, candidate := range candidates {
		if scores[i] == nil {
			continue
		}
		if filter.Include(*scores[i], required) {
			survivors = append(survivors, matching.Ranked{Candidate: candidate, Score: *scores[i]})
		} else {
			summary.Excluded++
		}
	}
	metrics.CandidatesCounter.WithLabelValues(metrics.CandidateIncluded).Add(float64(len(survivors)))
	metrics.CandidatesCounter.WithLabelValues(metrics.CandidateExcluded).Add(float64(summary.Excluded))
	metrics.CandidatesCounter.WithLabelValues(metrics.CandidateSkipped).Add(float64(summary.Skipped))

	// Ranked
	ranked := matching.Rank(survivors)

	// Enriched
	start = time.Now()
	reasons, degraded := r.enrich(ctx, ranked, *job)
	summary.DegradedEnrichments = degraded
	observeStep("enrich", start)

	if ctx.Err() != nil {
		return nil, ErrRunCancelled
	}

	// Persisted
	start = time.Now()
	matchedAt := r.now().UTC()
	results := make([]models.MatchResult, 0, len(ranked))
	for i, item := range ranked {
		results = append(results, models.MatchResult{
			StudentID:     item.Candidate.ID,
			MatchScore:    item.Score.Total,
			MatchReason:   reasons[i],
			SkillsMatched: item.Score.SkillsMatched,
			SkillsMissing: item.Score.SkillsMissing,
			LastUpdated:   matchedAt,
		})
	}

	if err = r.jobs.ReplaceMatches(ctx, job.ID, results, matchedAt); err != nil {
		if errors.Is(err, repositories.ErrJobGone) {
			return nil, err
		}
		entry.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("failed to save match results: %v", err)
		return nil, errors.Wrap(err, "save match results")
	}
	observeStep("persist", start)

	summary.MatchCount = len(results)
	summary.TopMatches = results[:min(len(results), max(r.options.TopMatches, 0))]
	return summary, nil
}

// scoreAll scores every candidate on a bounded pool. A nil slot means the
// candidate couldn't be scored and was skipped.
func (r *MatchRunner) scoreAll(ctx context.Context, entry *log.Entry, candidates []models.Candidate,
	job models.Job) ([]*matching.Score, int, error) {

	scores := make([]*matching.Score, len(candidates))
	var failed atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.options.ScoringWorkers)

	for i := range candidates {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			score, err := r.safeCalculate(candidates[i], job)
			if err != nil {
				failed.Add(1)
				entry.WithField(logger.ErrorTypeField, logger.ErrorTypeCandidate).
					Warnf("skipping candidate %v: %v", candidates[i].ID, err)
				return nil
			}
			scores[i] = &score
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	return scores, int(failed.Load()), nil
}

func (r *MatchRunner) safeCalculate(candidate models.Candidate, job models.Job) (score matching.Score, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("malformed candidate data: %v", p)
		}
	}()
	return r.calculator.Calculate(candidate, job), nil
}

// enrich asks for written reasons for the top of the ranking; everyone else
// gets the template so no reason is ever empty.
func (r *MatchRunner) enrich(ctx context.Context, ranked []matching.Ranked, job models.Job) ([]string, int) {

	reasons := make([]string, len(ranked))
	top := len(matching.Top(ranked, r.options.EnrichTopN))
	var degraded atomic.Int32

	var g errgroup.Group
	g.SetLimit(r.options.EnrichmentWorkers)

	for i := 0; i < top; i++ {
		i := i
		g.Go(func() error {
			reason, source := r.justifier.Generate(ctx, ranked[i].Candidate, job, ranked[i].Score)
			if reason == "" {
				reason, source = FallbackReason(ranked[i].Candidate, job, ranked[i].Score), ReasonDegraded
			}
			if source == ReasonDegraded {
				degraded.Add(1)
			}
			metrics.EnrichmentsCounter.WithLabelValues(string(source)).Inc()
			reasons[i] = reason
			return nil
		})
	}
	_ = g.Wait()

	for i := top; i < len(ranked); i++ {
		reasons[i] = FallbackReason(ranked[i].Candidate, job, ranked[i].Score)
	}

	return reasons, int(degraded.Load())
}

// RefreshAllActiveJobs reruns matching for every active job. The job list is
// collected first so runs that deactivate jobs don't shift the pages. Failures
// of single jobs are logged and don't stop the sweep.
func (r *MatchRunner) RefreshAllActiveJobs(ctx context.Context) error {

	pageSize := r.options.ActiveJobsPageSize
	jobIDs := make([]int, 0)

	for offset := 0; ; offset += pageSize {

		if err := ctx.Err(); err != nil {
			return err
		}

		jobs, err := r.jobs.GetActive(ctx, pageSize, offset)
		if err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("failed to get active jobs: %v", err)
			return errors.Wrap(err, "get active jobs")
		}
		jobIDs = append(jobIDs, lo.Map(jobs, func(j models.Job, _ int) int { return j.ID })...)

		if len(jobs) < pageSize {
			break
		}
	}

	var handled, failed atomic.Int32

	for _, batch := range lo.Chunk(jobIDs, pageSize) {

		select {
		case <-ctx.Done():
			log.Infof("active jobs refresh cancelled after %v jobs", handled.Load())
			return ctx.Err()
		default:
		}

		var wg sync.WaitGroup
		for _, jobID := range batch {
			wg.Add(1)
			go func(jobID int) {
				defer wg.Done()
				if _, err := r.RunMatch(ctx, jobID); err != nil && !errors.Is(err, ErrRunInProgress) {
					failed.Add(1)
					log.WithField(logger.JobIDField, jobID).Warnf("job refresh failed: %v", err)
				}
			}(jobID)
		}
		wg.Wait()

		handled.Add(int32(len(batch)))
	}

	log.Infof("refreshed %v active jobs, %v failed", handled.Load(), failed.Load())
	return nil
}

func observeStep(step string, start time.Time) {
	metrics.RunStepDuration.WithLabelValues(step).Observe(time.Since(start).Seconds())
}
