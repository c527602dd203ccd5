package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrUnknownTask = errors.New("pipeline: unknown task")
	ErrTaskRunning = errors.New("pipeline: task already running")
	ErrGraphCycle  = errors.New("pipeline: dependency cycle")
	ErrNotBuilt    = errors.New("pipeline: scheduler not built")
)

type node struct {
	spec NodeSpec
	name string

	state       domain.RefreshState
	suspended   bool
	running     bool
	manual      bool
	lastAttempt time.Time
	lastSuccess time.Time
	lastErr     string
	lastRecords int
	runs        int
	failures    int
}

// Scheduler drives the refresh graph. Nodes connected by After edges form
// a component that is evaluated in topological order by a single loop;
// unrelated components run in their own loops so a slow or failing task
// never blocks an independent one.
type Scheduler struct {
	env      *Env
	locker   Locker
	recorder *Recorder
	tick     time.Duration
	tracer   trace.Tracer

	mu          sync.Mutex
	nodes       map[string]*node
	order       []string
	components  [][]string
	componentOf map[string]int
	wake        []chan struct{}
	built       bool
}

type Option func(*Scheduler)

func WithLocker(l Locker) Option { return func(s *Scheduler) { s.locker = l } }

func WithTick(d time.Duration) Option { return func(s *Scheduler) { s.tick = d } }

// NewScheduler creates a scheduler with a local locker and a 30s tick.
func NewScheduler(env *Env, opts ...Option) *Scheduler {
	s := &Scheduler{
		env:      env,
		locker:   NewLocalLocker(),
		recorder: NewRecorder(env.Repos.TaskLogs),
		tick:     30 * time.Second,
		tracer:   otel.Tracer("github.com/udaykumar0515/intellistock-ai-for-good/internal/pipeline"),
		nodes:    make(map[string]*node),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a node. Registering after Build is an error.
func (s *Scheduler) Register(spec NodeSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.built {
		return fmt.Errorf("register %s: scheduler already built", spec.Task.Name())
	}
	name := spec.Task.Name()
	if _, exists := s.nodes[name]; exists {
		return fmt.Errorf("register %s: duplicate task", name)
	}
	s.nodes[name] = &node{spec: spec, name: name, state: domain.StateStale}
	if spec.Source != nil {
		spec.Source.Register(name)
	}
	return nil
}

// Build validates the graph, orders it and splits it into components.
func (s *Scheduler) Build() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.nodes))
	for name := range s.nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	indegree := make(map[string]int, len(names))
	children := make(map[string][]string)
	for _, name := range names {
		for _, dep := range s.nodes[name].spec.After {
			if _, ok := s.nodes[dep]; !ok {
				return fmt.Errorf("%w: %s depends on %s", ErrUnknownTask, name, dep)
			}
			indegree[name]++
			children[dep] = append(children[dep], name)
		}
	}

	// Kahn's algorithm with a sorted frontier keeps the order stable.
	var queue, order []string
	for _, name := range names {
		if indegree[name] == 0 {
			queue = append(queue, name)
		}
	}
	for len(queue) > 0 {
		sort.Strings(queue)
		cur := queue[0]
		queue = queue[1:]
		order = append(order, cur)
		for _, child := range children[cur] {
			indegree[child]--
			if indegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}
	if len(order) != len(names) {
		return ErrGraphCycle
	}

	// union-find over dependency edges
	parent := make(map[string]string, len(names))
	var find func(string) string
	find = func(x string) string {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	for _, name := range names {
		parent[name] = name
	}
	for _, name := range names {
		for _, dep := range s.nodes[name].spec.After {
			parent[find(name)] = find(dep)
		}
	}

	s.componentOf = make(map[string]int, len(names))
	roots := make(map[string]int)
	s.components = nil
	for _, name := range order {
		root := find(name)
		idx, ok := roots[root]
		if !ok {
			idx = len(s.components)
			roots[root] = idx
			s.components = append(s.components, nil)
		}
		s.components[idx] = append(s.components[idx], name)
		s.componentOf[name] = idx
	}

	s.wake = make([]chan struct{}, len(s.components))
	for i := range s.wake {
		s.wake[i] = make(chan struct{}, 1)
	}
	s.order = order
	s.built = true
	return nil
}

// Start runs one loop per component until ctx is done, then waits for
// in-flight runs to finish.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if !s.built {
		s.mu.Unlock()
		return ErrNotBuilt
	}
	components := s.components
	s.mu.Unlock()

	log.Info().
		Dur("tick", s.tick).
		Int("components", len(components)).
		Strs("order", s.order).
		Msg("refresh scheduler started")

	var wg sync.WaitGroup
	for i, comp := range components {
		wg.Add(1)
		go func(idx int, comp []string) {
			defer wg.Done()
			s.loop(ctx, idx, comp)
		}(i, comp)
	}
	wg.Wait()
	log.Info().Msg("refresh scheduler stopped")
	return nil
}

func (s *Scheduler) loop(ctx context.Context, idx int, comp []string) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.runComponent(ctx, comp)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-s.wake[idx]:
		}
		s.runComponent(ctx, comp)
	}
}

// Tick evaluates every component once, in order, on the caller's goroutine.
func (s *Scheduler) Tick(ctx context.Context) ([]Outcome, error) {
	s.mu.Lock()
	if !s.built {
		s.mu.Unlock()
		return nil, ErrNotBuilt
	}
	components := s.components
	s.mu.Unlock()

	var out []Outcome
	for _, comp := range components {
		out = append(out, s.runComponent(ctx, comp)...)
	}
	return out, nil
}

// runComponent is one cycle over a component. A node runs when it is
// manually triggered, or when its interval has elapsed and its source has
// pending events; in both cases every predecessor must be settled.
func (s *Scheduler) runComponent(ctx context.Context, comp []string) []Outcome {
	ctx, span := s.tracer.Start(ctx, "pipeline.cycle", trace.WithAttributes(
		attribute.StringSlice("pipeline.nodes", comp),
	))
	defer span.End()

	succeeded := make(map[string]bool, len(comp))
	outcomes := make([]Outcome, 0, len(comp))

	for _, name := range comp {
		if ctx.Err() != nil {
			break
		}
		reason := s.gate(name, succeeded)
		if reason != "" {
			taskSkipsTotal.WithLabelValues(name, reason).Inc()
			log.Debug().Str("task", name).Str("reason", reason).Msg("task skipped")
			outcomes = append(outcomes, Outcome{Task: name, Skipped: reason})
			continue
		}
		o := s.execute(ctx, name)
		if o.Success {
			succeeded[name] = true
		}
		outcomes = append(outcomes, o)
	}
	return outcomes
}

// gate returns the skip reason, or "" when the node should run now.
func (s *Scheduler) gate(name string, succeeded map[string]bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.nodes[name]
	if n.suspended {
		return SkipSuspended
	}
	if n.running {
		return SkipRunning
	}
	if !n.manual {
		now := s.env.now()
		if !n.lastAttempt.IsZero() && now.Sub(n.lastAttempt) < n.spec.Interval {
			return SkipNotDue
		}
		if n.spec.Source != nil && !n.spec.Source.HasPending(name) {
			return SkipNoChanges
		}
	}
	for _, dep := range n.spec.After {
		if !succeeded[dep] && !s.settledLocked(dep) {
			return SkipDependency
		}
	}
	return ""
}

// settledLocked reports a predecessor with nothing left to consume that is
// either FRESH or has never been attempted. A predecessor whose last run
// failed is not settled. Caller holds mu.
func (s *Scheduler) settledLocked(name string) bool {
	n := s.nodes[name]
	if n.running {
		return false
	}
	if n.state != domain.StateFresh && !(n.state == domain.StateStale && n.lastAttempt.IsZero()) {
		return false
	}
	return n.spec.Source == nil || !n.spec.Source.HasPending(name)
}

func (s *Scheduler) execute(ctx context.Context, name string) Outcome {
	unlock, ok, err := s.locker.TryLock(ctx, name)
	if err != nil {
		log.Error().Err(err).Str("task", name).Msg("task lock unavailable")
		return Outcome{Task: name, Skipped: SkipRunning, Error: err.Error()}
	}
	if !ok {
		taskSkipsTotal.WithLabelValues(name, SkipRunning).Inc()
		return Outcome{Task: name, Skipped: SkipRunning}
	}
	defer unlock()

	s.mu.Lock()
	n := s.nodes[name]
	if n.running {
		s.mu.Unlock()
		return Outcome{Task: name, Skipped: SkipRunning}
	}
	trigger := TriggerSchedule
	if n.manual {
		trigger = TriggerManual
	}
	n.manual = false
	n.running = true
	n.state = domain.StateRefreshing
	observeState(name, n.state)
	start := s.env.now()
	n.lastAttempt = start
	spec := n.spec
	s.mu.Unlock()

	// Events appended while the run is in flight stay pending.
	var (
		head     uint64
		drainErr error
	)
	if spec.Source != nil {
		_, head, drainErr = spec.Source.Drain(name)
	}

	ctx, span := s.tracer.Start(ctx, "pipeline."+name, trace.WithAttributes(
		attribute.String("task.name", name),
		attribute.String("task.trigger", trigger),
	))
	entry := s.recorder.Begin(name, trigger, start)

	var (
		records int
		runErr  error
	)
	if drainErr != nil {
		runErr = fmt.Errorf("drain change log: %w", drainErr)
	} else {
		records, runErr = s.safeRun(ctx, spec.Task)
	}

	if runErr == nil && spec.Source != nil {
		if err := spec.Source.Commit(name, head); err != nil {
			runErr = fmt.Errorf("commit cursor: %w", err)
		}
	}

	end := s.env.now()
	if err := s.recorder.Finish(ctx, entry, end, records, runErr); err != nil {
		taskLogWriteFailures.WithLabelValues(name).Inc()
	}

	s.mu.Lock()
	n.running = false
	n.runs++
	n.lastRecords = records
	if runErr != nil {
		n.state = domain.StateStale
		n.failures++
		n.lastErr = runErr.Error()
	} else {
		n.state = domain.StateFresh
		n.lastSuccess = end
		n.lastErr = ""
	}
	observeState(name, n.state)
	s.mu.Unlock()

	taskDuration.WithLabelValues(name).Observe(end.Sub(start).Seconds())
	taskRecords.WithLabelValues(name).Set(float64(records))

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		span.End()
		taskRunsTotal.WithLabelValues(name, string(domain.TaskFailed)).Inc()
		log.Error().Err(runErr).Str("task", name).Str("trigger", trigger).Msg("task run failed")
		return Outcome{Task: name, Ran: true, Records: records, Error: runErr.Error()}
	}

	span.SetAttributes(attribute.Int("task.records", records))
	span.End()
	taskRunsTotal.WithLabelValues(name, string(domain.TaskSuccess)).Inc()
	log.Info().
		Str("task", name).
		Str("trigger", trigger).
		Int("records", records).
		Dur("duration", end.Sub(start)).
		Msg("task run completed")
	return Outcome{Task: name, Ran: true, Success: true, Records: records}
}

func (s *Scheduler) safeRun(ctx context.Context, task Task) (records int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return task.Run(ctx, s.env)
}

// Trigger marks a node for a manual run and wakes its loop. The run still
// waits for its predecessors to settle.
func (s *Scheduler) Trigger(name string) error {
	s.mu.Lock()
	n, ok := s.nodes[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	if n.running {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTaskRunning, name)
	}
	n.manual = true
	var wake chan struct{}
	if s.built {
		wake = s.wake[s.componentOf[name]]
	}
	s.mu.Unlock()

	if wake != nil {
		select {
		case wake <- struct{}{}:
		default:
		}
	}
	return nil
}

func (s *Scheduler) Suspend(name string) error { return s.setSuspended(name, true) }

func (s *Scheduler) Resume(name string) error { return s.setSuspended(name, false) }

func (s *Scheduler) setSuspended(name string, v bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	n.suspended = v
	return nil
}

// Status lists nodes in topological order.
func (s *Scheduler) Status() []NodeStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := s.order
	if !s.built {
		names = make([]string, 0, len(s.nodes))
		for name := range s.nodes {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	out := make([]NodeStatus, 0, len(names))
	for _, name := range names {
		n := s.nodes[name]
		st := NodeStatus{
			Name:        name,
			State:       n.state,
			Suspended:   n.suspended,
			Running:     n.running,
			Interval:    n.spec.Interval.String(),
			After:       n.spec.After,
			LastError:   n.lastErr,
			LastRecords: n.lastRecords,
			Runs:        n.runs,
			Failures:    n.failures,
		}
		if n.spec.Source != nil {
			st.Source = n.spec.Source.Name()
			st.Pending = n.spec.Source.PendingCount(name)
		}
		if !n.lastAttempt.IsZero() {
			t := n.lastAttempt
			st.LastAttempt = &t
		}
		if !n.lastSuccess.IsZero() {
			t := n.lastSuccess
			st.LastSuccess = &t
		}
		out = append(out, st)
	}
	return out
}

// Has reports whether name is a registered node.
func (s *Scheduler) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.nodes[name]
	return ok
}
