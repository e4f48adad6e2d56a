package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/maxaizer/placement-matcher/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockMatchRunner struct {
	mu        sync.Mutex
	runs      []int
	cancelled []int
	refreshes int
	runDone   chan int
	refreshed chan struct{}
}

func newMockMatchRunner() *mockMatchRunner {
	return &mockMatchRunner{runDone: make(chan int, 10), refreshed: make(chan struct{}, 10)}
}

func (m *mockMatchRunner) RunMatch(_ context.Context, jobID int) (*RunSummary, error) {
	m.mu.Lock()
	m.runs = append(m.runs, jobID)
	m.mu.Unlock()
	m.runDone <- jobID
	if jobID < 0 {
		return nil, errors.New("boom")
	}
	return &RunSummary{JobID: jobID}, nil
}

func (m *mockMatchRunner) RefreshAllActiveJobs(_ context.Context) error {
	m.mu.Lock()
	m.refreshes++
	m.mu.Unlock()
	m.refreshed <- struct{}{}
	return nil
}

func (m *mockMatchRunner) CancelRun(jobID int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, jobID)
	return true
}

func Test_NewMatchScheduler_RejectsBadSchedule(t *testing.T) {
	_, err := NewMatchScheduler(newMockMatchRunner(), nil, "")
	assert.Error(t, err)

	_, err = NewMatchScheduler(newMockMatchRunner(), nil, "every now and then")
	assert.Error(t, err)
}

func Test_MatchScheduler_JobPublishedTriggersRun(t *testing.T) {
	runner := newMockMatchRunner()
	bus := EventBus.New()

	scheduler, err := NewMatchScheduler(runner, bus, "0 */6 * * *")
	require.NoError(t, err)
	defer scheduler.Stop()

	bus.Publish(events.JobPublishedTopic, events.JobPublished{JobID: 12})

	select {
	case jobID := <-runner.runDone:
		assert.Equal(t, 12, jobID)
	case <-time.After(time.Second):
		t.Fatal("match run was not triggered")
	}
}

func Test_MatchScheduler_JobDeactivatedCancelsRun(t *testing.T) {
	runner := newMockMatchRunner()
	bus := EventBus.New()

	scheduler, err := NewMatchScheduler(runner, bus, "0 */6 * * *")
	require.NoError(t, err)
	defer scheduler.Stop()

	bus.Publish(events.JobDeactivatedTopic, events.JobDeactivated{JobID: 4})

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Equal(t, []int{4}, runner.cancelled)
}

func Test_MatchScheduler_RefreshNowSweepsActiveJobs(t *testing.T) {
	runner := newMockMatchRunner()

	scheduler, err := NewMatchScheduler(runner, nil, "0 */6 * * *")
	require.NoError(t, err)

	scheduler.RefreshNow()
	scheduler.Stop()

	assert.Equal(t, 1, runner.refreshes)
}

func Test_MatchScheduler_StopUnsubscribes(t *testing.T) {
	runner := newMockMatchRunner()
	bus := EventBus.New()

	scheduler, err := NewMatchScheduler(runner, bus, "0 */6 * * *")
	require.NoError(t, err)
	scheduler.Stop()

	bus.Publish(events.JobPublishedTopic, events.JobPublished{JobID: 1})
	bus.WaitAsync()

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Empty(t, runner.runs)
}

func Test_MatchScheduler_NoRunsStartAfterStop(t *testing.T) {
	runner := &mockMatchRunner{runDone: make(chan int, 1000), refreshed: make(chan struct{}, 10)}
	bus := EventBus.New()

	scheduler, err := NewMatchScheduler(runner, bus, "0 */6 * * *")
	require.NoError(t, err)

	var publishers sync.WaitGroup
	for i := 0; i < 4; i++ {
		publishers.Add(1)
		go func() {
			defer publishers.Done()
			for jobID := 1; jobID <= 100; jobID++ {
				scheduler.onJobPublished(events.JobPublished{JobID: jobID})
			}
		}()
	}

	time.Sleep(time.Millisecond)
	scheduler.Stop()

	runner.mu.Lock()
	runsAtStop := len(runner.runs)
	runner.mu.Unlock()

	publishers.Wait()
	scheduler.RefreshNow()
	scheduler.Stop()

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Equal(t, runsAtStop, len(runner.runs))
	assert.Zero(t, runner.refreshes)
}
