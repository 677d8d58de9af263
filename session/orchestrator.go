package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"agentrun/artifact"
	"agentrun/budget"
	"agentrun/core"
	"agentrun/eventlog"
	"agentrun/executor"
	"agentrun/logging"
	"agentrun/provider"
	"agentrun/task"
	"agentrun/tool"
)

// State is the lifecycle state of a session.
type State string

const (
	// StatePending means the session is created but not started.
	StatePending State = "PENDING"

	// StateRunning means the session's task graph is executing.
	StateRunning State = "RUNNING"

	// StateSucceeded means every agent slot succeeded.
	StateSucceeded State = "SUCCEEDED"

	// StateFailed means at least one agent slot failed.
	StateFailed State = "FAILED"

	// StateStopped means the session was cancelled externally.
	StateStopped State = "STOPPED"
)

// Terminal reports whether no further state transitions are possible.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateStopped
}

// UnknownSessionError is returned for queries about an unrecognized
// session id.
type UnknownSessionError struct {
	SessionID string
}

func (e *UnknownSessionError) Error() string {
	return fmt.Sprintf("unknown session: %s", e.SessionID)
}

// ProviderFactory resolves a model identifier to a Provider. The
// orchestrator calls it once per agent slot.
type ProviderFactory func(model string) (provider.Provider, error)

// StaticProvider returns a factory that hands every slot the same provider.
func StaticProvider(p provider.Provider) ProviderFactory {
	return func(string) (provider.Provider, error) { return p, nil }
}

// Summary describes one session for listing purposes.
type Summary struct {
	SessionID  string    `json:"session_id"`
	State      State     `json:"state"`
	RunID      string    `json:"run_id"`
	AgentCount int       `json:"agent_count"`
	CreatedAt  time.Time `json:"created_at"`
	Error      string    `json:"error,omitempty"`
}

// record is the orchestrator's bookkeeping for one session.
type record struct {
	config    *Config
	state     State
	err       error
	runID     string
	seq       *core.SeqCounter
	createdAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}
}

// Options configure an Orchestrator.
type Options struct {
	// Artifacts, when set, is handed to every slot executor so final
	// results are persisted per run.
	Artifacts artifact.Store

	// MaxSideEffect is the permission ceiling applied to every slot
	// executor. Empty means no ceiling.
	MaxSideEffect tool.SideEffect

	// Logger receives orchestration diagnostics.
	Logger logging.Logger
}

// Orchestrator manages multi-agent sessions backed by the task scheduler.
// It owns the role registry, expands session configs into per-slot agent
// executors, runs them as a graph on a single shared run and sequence
// stream, and serves the read surface for external observers.
type Orchestrator struct {
	log      eventlog.Log
	registry *tool.Registry
	factory  ProviderFactory
	opts     Options

	mu       sync.RWMutex
	roles    map[string]RoleTemplate
	sessions map[string]*record
}

// NewOrchestrator creates an Orchestrator appending all session events to
// the given log.
func NewOrchestrator(
	log eventlog.Log,
	registry *tool.Registry,
	factory ProviderFactory,
	optFns ...func(o *Options),
) *Orchestrator {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Orchestrator{
		log:      log,
		registry: registry,
		factory:  factory,
		opts:     opts,
		roles:    make(map[string]RoleTemplate),
		sessions: make(map[string]*record),
	}
}

// RegisterRole adds a role template. Registering the same name twice
// replaces the previous definition.
func (o *Orchestrator) RegisterRole(role RoleTemplate) error {
	if role.Name == "" {
		return core.NewConfigurationError("role template has no name")
	}
	if role.Budget == (budget.Spec{}) {
		role.Budget = DefaultRoleBudget()
	}
	if err := role.Budget.Validate(); err != nil {
		return fmt.Errorf("role %q budget: %w", role.Name, err)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.roles[role.Name] = role
	return nil
}

// CreateSession validates the config against the registered roles and
// prepares a new session. It returns the session id.
func (o *Orchestrator) CreateSession(cfg *Config) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	if cfg.SessionID == "" {
		cfg.SessionID = core.NewSessionID()
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	for _, slot := range cfg.Agents {
		if _, ok := o.roles[slot.Role]; !ok {
			return "", core.NewConfigurationError("unknown role %q", slot.Role)
		}
	}
	if _, exists := o.sessions[cfg.SessionID]; exists {
		return "", core.NewConfigurationError("session %q already exists", cfg.SessionID)
	}

	o.sessions[cfg.SessionID] = &record{
		config:    cfg,
		state:     StatePending,
		runID:     core.NewRunID(),
		seq:       core.NewSeqCounter(),
		createdAt: time.Now().UTC(),
		done:      make(chan struct{}),
	}
	return cfg.SessionID, nil
}

// StartSession begins executing the session in a background goroutine. The
// session must be in PENDING state.
func (o *Orchestrator) StartSession(ctx context.Context, sessionID string) error {
	o.mu.Lock()
	rec, ok := o.sessions[sessionID]
	if !ok {
		o.mu.Unlock()
		return &UnknownSessionError{SessionID: sessionID}
	}
	if rec.state != StatePending {
		o.mu.Unlock()
		return core.NewConfigurationError("session %q is %s, expected %s", sessionID, rec.state, StatePending)
	}
	rec.state = StateRunning
	runCtx, cancel := context.WithCancel(ctx)
	rec.cancel = cancel
	o.mu.Unlock()

	go o.execute(runCtx, rec)
	return nil
}

// StopSession requests cancellation of a running session. Stopping a
// session that is not running is a no-op.
func (o *Orchestrator) StopSession(sessionID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	rec, ok := o.sessions[sessionID]
	if !ok {
		return &UnknownSessionError{SessionID: sessionID}
	}
	if rec.state == StateRunning && rec.cancel != nil {
		rec.cancel()
	}
	return nil
}

// SessionState returns the current lifecycle state of a session.
func (o *Orchestrator) SessionState(sessionID string) (State, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	rec, ok := o.sessions[sessionID]
	if !ok {
		return "", &UnknownSessionError{SessionID: sessionID}
	}
	return rec.state, nil
}

// SessionEvents returns the session's events with seq greater than
// afterSeq in ascending order. Pass -1 for the full stream. A session that
// has not emitted any events yet returns an empty slice.
func (o *Orchestrator) SessionEvents(sessionID string, afterSeq int64) ([]core.Event, error) {
	o.mu.RLock()
	rec, ok := o.sessions[sessionID]
	o.mu.RUnlock()
	if !ok {
		return nil, &UnknownSessionError{SessionID: sessionID}
	}

	events, err := o.log.Read(rec.runID, afterSeq)
	if err != nil {
		var unknown *eventlog.UnknownRunError
		if errors.As(err, &unknown) {
			return []core.Event{}, nil
		}
		return nil, err
	}
	return events, nil
}

// ListSessions returns a summary of every known session sorted by
// creation time.
func (o *Orchestrator) ListSessions() []Summary {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]Summary, 0, len(o.sessions))
	for id, rec := range o.sessions {
		s := Summary{
			SessionID:  id,
			State:      rec.state,
			RunID:      rec.runID,
			AgentCount: agentCount(rec.config),
			CreatedAt:  rec.createdAt,
		}
		if rec.err != nil {
			s.Error = rec.err.Error()
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Wait blocks until the session reaches a terminal state or the context
// is cancelled.
func (o *Orchestrator) Wait(ctx context.Context, sessionID string) error {
	o.mu.RLock()
	rec, ok := o.sessions[sessionID]
	o.mu.RUnlock()
	if !ok {
		return &UnknownSessionError{SessionID: sessionID}
	}
	select {
	case <-rec.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// execute runs the session's task graph to completion.
func (o *Orchestrator) execute(ctx context.Context, rec *record) {
	defer close(rec.done)
	cfg := rec.config

	o.appendEvent(core.NewEvent(rec.runID, rec.seq.Next(), core.EventRunStarted, map[string]any{
		"session_id":  cfg.SessionID,
		"agent_count": agentCount(cfg),
	}))

	graph, err := o.buildGraph(rec)
	if err != nil {
		o.finish(rec, StateFailed, err)
		return
	}

	var sessionTracker *budget.Tracker
	if cfg.Budget != nil {
		sessionTracker = budget.NewTracker(*cfg.Budget, o.log, rec.runID, rec.seq)
	}

	maxParallel := cfg.MaxParallel
	if maxParallel < 1 {
		maxParallel = 1
	}
	sched := task.NewScheduler(o.log, func(so *task.Options) {
		so.MaxParallel = int64(maxParallel)
		so.Tracker = sessionTracker
		so.Logger = o.opts.Logger
	})

	err = sched.Run(ctx, graph, rec.runID, rec.seq)
	switch {
	case err == nil:
		o.finish(rec, StateSucceeded, nil)
	case ctx.Err() != nil:
		o.finish(rec, StateStopped, err)
	default:
		o.finish(rec, StateFailed, err)
	}
}

// buildGraph expands the session's agent slots into task nodes, one per
// role instance, with sequential edges between roles listed in the
// config's Order.
func (o *Orchestrator) buildGraph(rec *record) (*task.Graph, error) {
	cfg := rec.config

	o.mu.RLock()
	roles := make(map[string]RoleTemplate, len(cfg.Agents))
	for _, slot := range cfg.Agents {
		roles[slot.Role] = o.roles[slot.Role]
	}
	o.mu.RUnlock()

	order := make(map[string]int, len(cfg.Order))
	for i, name := range cfg.Order {
		order[name] = i
	}

	graph := task.NewGraph("session-" + cfg.SessionID)

	slots := append([]SlotConfig(nil), cfg.Agents...)
	sort.SliceStable(slots, func(i, j int) bool {
		oi, iOK := order[slots[i].Role]
		oj, jOK := order[slots[j].Role]
		if iOK && jOK {
			return oi < oj
		}
		return iOK && !jOK
	})

	var prevOrdered []*task.Node
	for _, slot := range slots {
		role := roles[slot.Role]
		count := slot.Count
		if count < 1 {
			count = 1
		}

		var deps []*task.Node
		if _, ordered := order[slot.Role]; ordered {
			deps = prevOrdered
		}

		nodes := make([]*task.Node, 0, count)
		for i := 0; i < count; i++ {
			node, err := o.buildSlotNode(rec, slot, role, i, deps)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)
			graph.Add(node)
		}
		if _, ordered := order[slot.Role]; ordered {
			prevOrdered = nodes
		}
	}

	if err := graph.Validate(); err != nil {
		return nil, err
	}
	return graph, nil
}

// buildSlotNode creates one task node wrapping an agent executor for a
// single role instance. Each instance gets its own budget tracker but
// shares the session's run id and sequence counter.
func (o *Orchestrator) buildSlotNode(
	rec *record,
	slot SlotConfig,
	role RoleTemplate,
	instance int,
	deps []*task.Node,
) (*task.Node, error) {
	cfg := rec.config

	model := slot.Model
	if model == "" {
		model = role.SuggestedModel
	}
	prov, err := o.factory(model)
	if err != nil {
		return nil, fmt.Errorf("resolve provider for role %q model %q: %w", slot.Role, model, err)
	}

	registry, err := o.slotRegistry(role)
	if err != nil {
		return nil, err
	}

	spec := role.Budget
	if slot.BudgetOverride != nil {
		spec = *slot.BudgetOverride
	}
	tracker := budget.NewTracker(spec, o.log, rec.runID, rec.seq)

	systemPrompt := role.SystemPrompt
	if slot.SystemPromptOverride != "" {
		systemPrompt = slot.SystemPromptOverride
	}

	taskDesc := cfg.Task
	if taskDesc == "" {
		taskDesc = role.Description
	}

	exec := executor.New(o.log, prov, registry, tracker, func(eo *executor.Options) {
		eo.Name = role.Name
		if systemPrompt != "" {
			eo.SystemPrompt = executor.DefaultSystemPrompt + "\n\n" + systemPrompt
		}
		if role.MaxSteps > 0 {
			eo.MaxSteps = role.MaxSteps
		}
		eo.MaxSideEffect = o.opts.MaxSideEffect
		eo.Artifacts = o.opts.Artifacts
		eo.EmitRunBoundaries = false
		eo.Logger = o.opts.Logger
	})

	name := role.DisplayName
	if name == "" {
		name = role.Name
	}
	if instance > 0 {
		name = fmt.Sprintf("%s #%d", name, instance+1)
	}

	work := func(workCtx context.Context) (any, error) {
		res, err := exec.Run(workCtx, taskDesc, rec.runID, rec.seq)
		if err != nil {
			return nil, err
		}
		if res.Outcome != executor.OutcomeSucceeded {
			return res, fmt.Errorf("agent %q ended with outcome %s", role.Name, res.Outcome)
		}
		return res, nil
	}

	return task.NewNode(name, work, deps...), nil
}

// slotRegistry narrows the orchestrator's tool registry to the role's
// declared tool names. Roles with no declared tools see everything.
func (o *Orchestrator) slotRegistry(role RoleTemplate) (*tool.Registry, error) {
	if len(role.ToolNames) == 0 {
		return o.registry, nil
	}
	registry := tool.NewRegistry()
	for _, name := range role.ToolNames {
		t, err := o.registry.Lookup(name)
		if err != nil {
			o.opts.Logger.Warn("skipping unavailable tool", "role", role.Name, "tool", name)
			continue
		}
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// finish records the terminal state and emits the closing run event.
func (o *Orchestrator) finish(rec *record, state State, err error) {
	o.mu.Lock()
	rec.state = state
	rec.err = err
	o.mu.Unlock()

	payload := map[string]any{
		"session_id": rec.config.SessionID,
		"outcome":    string(state),
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	o.appendEvent(core.NewEvent(rec.runID, rec.seq.Next(), core.EventRunFinished, payload))
}

func (o *Orchestrator) appendEvent(ev core.Event) {
	if err := o.log.Append(ev); err != nil {
		o.opts.Logger.Error("append event",
			"run_id", ev.RunID, "event_type", string(ev.Type), "error", err)
	}
}

func agentCount(cfg *Config) int {
	total := 0
	for _, slot := range cfg.Agents {
		count := slot.Count
		if count < 1 {
			count = 1
		}
		total += count
	}
	return total
}
