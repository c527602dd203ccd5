package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/changelog"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/config"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/repository"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/repository/memory"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/snapshot"
)

var start = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

type harness struct {
	mu        sync.Mutex
	clock     time.Time
	env       *Env
	persister *memory.SnapshotPersister
	publisher *recordingPublisher
	sched     *Scheduler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{clock: start, publisher: &recordingPublisher{}}
	repos := memory.NewRepositories()
	h.persister = repos.Snapshots.(*memory.SnapshotPersister)
	h.env = &Env{
		Repos:     repos,
		Snapshots: snapshot.NewStore(),
		Logs:      NewChangeLogs(),
		Publisher: h.publisher,
		Workers:   4,
		Now:       h.now,
	}
	cfg := &config.Config{
		Retention: config.RetentionConfig{SummaryDays: 90, AlertDays: 180, LogDays: 30},
	}
	h.sched = NewScheduler(h.env)
	for _, spec := range DefaultNodes(cfg, h.env.Logs) {
		require.NoError(t, h.sched.Register(spec))
	}
	require.NoError(t, h.sched.Build())
	return h
}

func (h *harness) now() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clock
}

func (h *harness) advance(d time.Duration) {
	h.mu.Lock()
	h.clock = h.clock.Add(d)
	h.mu.Unlock()
}

func (h *harness) ingest(t *testing.T, records []domain.LedgerRecord) {
	t.Helper()
	n, err := h.env.Repos.Ledger.Append(context.Background(), records)
	require.NoError(t, err)
	if n > 0 {
		h.env.Logs.Ledger.Append("test", n)
	}
}

func (h *harness) tick(t *testing.T) map[string]Outcome {
	t.Helper()
	outcomes, err := h.sched.Tick(context.Background())
	require.NoError(t, err)
	byTask := make(map[string]Outcome, len(outcomes))
	for _, o := range outcomes {
		byTask[o.Task] = o
	}
	return byTask
}

func (h *harness) status(name string) NodeStatus {
	for _, st := range h.sched.Status() {
		if st.Name == name {
			return st
		}
	}
	return NodeStatus{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	alerts []domain.AlertRecord
}

func (p *recordingPublisher) PublishAlerts(_ context.Context, alerts []domain.AlertRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, alerts...)
	return nil
}

func group(loc, item string, days int, closing int64, lead int, issued int64) []domain.LedgerRecord {
	out := make([]domain.LedgerRecord, days)
	first := domain.Day(start).AddDate(0, 0, -days+1)
	for i := range out {
		out[i] = domain.LedgerRecord{
			Date:         first.AddDate(0, 0, i),
			Organization: "Helping Hands",
			Location:     loc,
			Item:         item,
			OpeningStock: closing + issued,
			Issued:       issued,
			ClosingStock: closing,
			LeadTimeDays: lead,
		}
	}
	return out
}

func seed(t *testing.T, h *harness) {
	h.ingest(t, group("Emergency Unit A", "Insulin", 7, 15, 10, 20))
	h.ingest(t, group("Main Warehouse", "Rice", 7, 500, 7, 10))
}

func TestBuildOrdersGraph(t *testing.T) {
	h := newHarness(t)
	var names []string
	for _, st := range h.sched.Status() {
		names = append(names, st.Name)
	}
	assert.Equal(t, []string{
		TaskCleanup, TaskStockAnalytics, TaskReorder, TaskSummary, TaskAlerts, TaskUsageStats,
	}, names)
	for _, st := range h.sched.Status() {
		assert.Equal(t, domain.StateStale, st.State)
	}
}

type stubTask struct{ name string }

func (s stubTask) Name() string { return s.name }
func (s stubTask) Run(context.Context, *Env) (int, error) { return 0, nil }

func TestBuildRejectsBadGraphs(t *testing.T) {
	env := &Env{Repos: memory.NewRepositories()}

	s := NewScheduler(env)
	require.NoError(t, s.Register(NodeSpec{Task: stubTask{"a"}, After: []string{"missing"}}))
	assert.ErrorIs(t, s.Build(), ErrUnknownTask)

	s = NewScheduler(env)
	require.NoError(t, s.Register(NodeSpec{Task: stubTask{"a"}, After: []string{"b"}}))
	require.NoError(t, s.Register(NodeSpec{Task: stubTask{"b"}, After: []string{"a"}}))
	assert.ErrorIs(t, s.Build(), ErrGraphCycle)

	s = NewScheduler(env)
	require.NoError(t, s.Register(NodeSpec{Task: stubTask{"a"}}))
	assert.Error(t, s.Register(NodeSpec{Task: stubTask{"a"}}))

	_, err := NewScheduler(env).Tick(context.Background())
	assert.ErrorIs(t, err, ErrNotBuilt)
}

func TestCascadeRunsInDependencyOrder(t *testing.T) {
	h := newHarness(t)
	seed(t, h)

	out := h.tick(t)
	for _, name := range []string{TaskStockAnalytics, TaskReorder, TaskSummary, TaskAlerts, TaskUsageStats, TaskCleanup} {
		assert.True(t, out[name].Success, name)
	}
	assert.Equal(t, 2, out[TaskStockAnalytics].Records)
	assert.Equal(t, 1, out[TaskAlerts].Records)

	recs := h.env.Snapshots.ReorderRecommendations().Rows
	require.Len(t, recs, 1)
	assert.Equal(t, "Insulin", recs[0].Item)
	assert.Equal(t, int64(185), recs[0].ReorderQty)
	assert.Equal(t, domain.UrgencyCritical, recs[0].UrgencyLevel)

	alerts, err := h.env.Repos.Alerts.List(context.Background(), domain.AlertFilter{})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.AlertCriticalRisk, alerts[0].AlertType)
	assert.Equal(t, domain.Day(start), alerts[0].AlertDate)
	assert.Len(t, h.publisher.alerts, 1)

	summaries, err := h.env.Repos.Summaries.List(context.Background(), time.Time{}, start.AddDate(0, 0, 1), nil)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 2, summaries[0].TotalGroups)
	assert.Equal(t, 1, summaries[0].ReorderCount)

	for _, st := range h.sched.Status() {
		assert.Equal(t, domain.StateFresh, st.State, st.Name)
		assert.Zero(t, st.Pending, st.Name)
	}
}

func TestRerunWithoutChangesIsIdempotent(t *testing.T) {
	h := newHarness(t)
	seed(t, h)
	h.tick(t)
	before := h.env.Snapshots.StockAnalytics().Rows

	// re-ingesting identical rows inserts nothing and advances no log
	seed(t, h)
	h.advance(time.Hour)
	out := h.tick(t)
	assert.Equal(t, SkipNoChanges, out[TaskStockAnalytics].Skipped)
	assert.Equal(t, SkipNoChanges, out[TaskAlerts].Skipped)
	assert.Equal(t, SkipNotDue, out[TaskCleanup].Skipped)

	require.NoError(t, h.sched.Trigger(TaskStockAnalytics))
	require.NoError(t, h.sched.Trigger(TaskAlerts))
	out = h.tick(t)
	assert.True(t, out[TaskStockAnalytics].Success)
	assert.True(t, out[TaskAlerts].Success)
	assert.Zero(t, out[TaskAlerts].Records)

	assert.Equal(t, before, h.env.Snapshots.StockAnalytics().Rows)
	assert.Zero(t, h.env.Logs.StockAnalytics.PendingCount(TaskReorder))

	alerts, err := h.env.Repos.Alerts.List(context.Background(), domain.AlertFilter{})
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestFailureStaysStaleAndRetriesAfterInterval(t *testing.T) {
	h := newHarness(t)
	seed(t, h)
	h.persister.FailNext(errors.New("disk full"))

	out := h.tick(t)
	assert.True(t, out[TaskStockAnalytics].Ran)
	assert.False(t, out[TaskStockAnalytics].Success)
	assert.False(t, out[TaskReorder].Ran)
	// unrelated tasks still run
	assert.True(t, out[TaskUsageStats].Success)
	assert.True(t, out[TaskCleanup].Success)

	st := h.status(TaskStockAnalytics)
	assert.Equal(t, domain.StateStale, st.State)
	assert.Equal(t, 1, st.Failures)
	assert.Equal(t, "persist stock analytics: disk full", st.LastError)
	assert.Equal(t, uint64(2), st.Pending)
	assert.Zero(t, h.env.Snapshots.StockAnalytics().Len())

	logs, err := h.env.Repos.TaskLogs.List(context.Background(), domain.TaskLogFilter{TaskName: TaskStockAnalytics})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.TaskFailed, logs[0].Status)
	assert.Contains(t, logs[0].ErrorMessage, "disk full")
	assert.NotEmpty(t, logs[0].ID)

	// no immediate retry
	h.advance(time.Minute)
	out = h.tick(t)
	assert.Equal(t, SkipNotDue, out[TaskStockAnalytics].Skipped)

	h.advance(4 * time.Minute)
	out = h.tick(t)
	assert.True(t, out[TaskStockAnalytics].Success)
	assert.True(t, out[TaskReorder].Success)
	assert.True(t, out[TaskAlerts].Success)
	assert.Equal(t, domain.StateFresh, h.status(TaskStockAnalytics).State)
}

func TestChildWaitsForPendingParent(t *testing.T) {
	h := newHarness(t)
	seed(t, h)
	h.tick(t)

	h.ingest(t, []domain.LedgerRecord{{
		Date:         domain.Day(start).AddDate(0, 0, 1),
		Organization: "Helping Hands",
		Location:     "Main Warehouse",
		Item:         "Rice",
		OpeningStock: 500,
		Issued:       490,
		ClosingStock: 10,
		LeadTimeDays: 7,
	}})
	require.NoError(t, h.sched.Suspend(TaskStockAnalytics))
	require.NoError(t, h.sched.Trigger(TaskReorder))

	out := h.tick(t)
	assert.Equal(t, SkipSuspended, out[TaskStockAnalytics].Skipped)
	assert.Equal(t, SkipDependency, out[TaskReorder].Skipped)

	require.NoError(t, h.sched.Resume(TaskStockAnalytics))
	require.NoError(t, h.sched.Trigger(TaskStockAnalytics))
	out = h.tick(t)
	assert.True(t, out[TaskStockAnalytics].Success)
	assert.True(t, out[TaskReorder].Success)
	assert.Len(t, h.env.Snapshots.ReorderRecommendations().Rows, 2)

	logs, err := h.env.Repos.TaskLogs.List(context.Background(), domain.TaskLogFilter{TaskName: TaskReorder, Limit: 1})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, TriggerManual, logs[0].Trigger)
}

func TestSuspendedChainDoesNotStopCleanup(t *testing.T) {
	h := newHarness(t)
	seed(t, h)
	for _, name := range []string{TaskStockAnalytics, TaskReorder, TaskSummary, TaskAlerts, TaskUsageStats} {
		require.NoError(t, h.sched.Suspend(name))
	}

	out := h.tick(t)
	assert.Equal(t, SkipSuspended, out[TaskStockAnalytics].Skipped)
	assert.True(t, out[TaskCleanup].Success)
	assert.True(t, h.status(TaskUsageStats).Suspended)
}

func TestUnknownTask(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.sched.Trigger("nope"), ErrUnknownTask)
	assert.ErrorIs(t, h.sched.Suspend("nope"), ErrUnknownTask)
	assert.True(t, h.sched.Has(TaskAlerts))
}

type blockingTask struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingTask) Name() string { return "slow" }

func (b *blockingTask) Run(ctx context.Context, _ *Env) (int, error) {
	close(b.started)
	<-b.release
	return 1, nil
}

func TestRunIsNotReentrant(t *testing.T) {
	env := &Env{Repos: memory.NewRepositories()}
	task := &blockingTask{started: make(chan struct{}), release: make(chan struct{})}
	s := NewScheduler(env)
	require.NoError(t, s.Register(NodeSpec{Task: task, Interval: time.Hour}))
	require.NoError(t, s.Build())

	done := make(chan []Outcome)
	go func() {
		out, _ := s.Tick(context.Background())
		done <- out
	}()
	<-task.started

	assert.Equal(t, domain.StateRefreshing, s.Status()[0].State)
	assert.ErrorIs(t, s.Trigger("slow"), ErrTaskRunning)

	out, err := s.Tick(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, SkipRunning, out[0].Skipped)

	close(task.release)
	first := <-done
	require.Len(t, first, 1)
	assert.True(t, first[0].Success)
	assert.Equal(t, domain.StateFresh, s.Status()[0].State)
}

type panickyTask struct{}

func (panickyTask) Name() string { return "panicky" }

func (panickyTask) Run(context.Context, *Env) (int, error) { panic("boom") }

func TestPanicIsRecordedAsFailure(t *testing.T) {
	env := &Env{Repos: memory.NewRepositories()}
	s := NewScheduler(env)
	require.NoError(t, s.Register(NodeSpec{Task: panickyTask{}, Interval: time.Minute}))
	require.NoError(t, s.Build())

	out, err := s.Tick(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.False(t, out[0].Success)
	assert.Contains(t, out[0].Error, "boom")
	assert.Equal(t, domain.StateStale, s.Status()[0].State)
}

func TestManualTriggerRunsWhenParentNeverRan(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.sched.Trigger(TaskReorder))

	out := h.tick(t)
	assert.Equal(t, SkipNoChanges, out[TaskStockAnalytics].Skipped)
	assert.True(t, out[TaskReorder].Ran)
	assert.True(t, out[TaskReorder].Success)
	assert.Equal(t, domain.StateFresh, h.status(TaskReorder).State)
	assert.Equal(t, domain.StateStale, h.status(TaskStockAnalytics).State)
}

func TestManualTriggerWaitsForFailedParent(t *testing.T) {
	h := newHarness(t)
	seed(t, h)
	h.persister.FailNext(errors.New("disk full"))
	out := h.tick(t)
	require.False(t, out[TaskStockAnalytics].Success)

	require.NoError(t, h.sched.Suspend(TaskStockAnalytics))
	require.NoError(t, h.sched.Trigger(TaskReorder))
	out = h.tick(t)
	assert.Equal(t, SkipDependency, out[TaskReorder].Skipped)
}

type countingTask struct {
	name string
	runs int
}

func (c *countingTask) Name() string { return c.name }

func (c *countingTask) Run(context.Context, *Env) (int, error) {
	c.runs++
	return 1, nil
}

func TestDrainFailureFailsRun(t *testing.T) {
	env := &Env{Repos: memory.NewRepositories()}
	task := &countingTask{name: "drained"}
	s := NewScheduler(env)
	require.NoError(t, s.Register(NodeSpec{Task: task, Interval: time.Minute, Source: changelog.New("ledger")}))
	require.NoError(t, s.Build())

	// a log the node never registered with rejects the drain
	detached := changelog.New("detached")
	detached.Append("test", 1)
	s.nodes["drained"].spec.Source = detached
	require.NoError(t, s.Trigger("drained"))

	out, err := s.Tick(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].Ran)
	assert.False(t, out[0].Success)
	assert.Contains(t, out[0].Error, "drain change log")
	assert.Zero(t, task.runs)
	assert.Equal(t, domain.StateStale, s.Status()[0].State)

	logs, err := env.Repos.TaskLogs.List(context.Background(), domain.TaskLogFilter{TaskName: "drained"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.TaskFailed, logs[0].Status)
}

type failingTaskLogs struct {
	repository.TaskLogRepository
}

func (failingTaskLogs) Append(context.Context, domain.TaskExecutionLog) error {
	return errors.New("task log table locked")
}

func TestTaskLogWriteFailureIsCounted(t *testing.T) {
	repos := memory.NewRepositories()
	repos.TaskLogs = failingTaskLogs{repos.TaskLogs}
	env := &Env{Repos: repos}
	task := &countingTask{name: "unlogged"}
	s := NewScheduler(env)
	require.NoError(t, s.Register(NodeSpec{Task: task, Interval: time.Minute}))
	require.NoError(t, s.Build())

	before := testutil.ToFloat64(taskLogWriteFailures.WithLabelValues("unlogged"))
	out, err := s.Tick(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].Success)
	assert.Equal(t, 1, task.runs)
	assert.Equal(t, before+1, testutil.ToFloat64(taskLogWriteFailures.WithLabelValues("unlogged")))
	assert.Equal(t, domain.StateFresh, s.Status()[0].State)
}

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker()
	unlock, ok, err := l.TryLock(context.Background(), "a")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, _ = l.TryLock(context.Background(), "a")
	assert.False(t, ok)
	_, ok, _ = l.TryLock(context.Background(), "b")
	assert.True(t, ok)

	unlock()
	_, ok, _ = l.TryLock(context.Background(), "a")
	assert.True(t, ok)
}

func TestStartStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	seed(t, h)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error)
	go func() { done <- h.sched.Start(ctx) }()

	require.Eventually(t, func() bool {
		return h.status(TaskReorder).State == domain.StateFresh
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
