// Package agentrun provides a high-level façade over the event-sourced
// agent runtime (event log, budget governance, task scheduling, agent
// executors and session orchestration). Most applications interact with
// this package by:
//  1. Creating a Runtime via New() (optionally overriding default in-memory services)
//  2. Registering tools and role templates
//  3. Starting sessions asynchronously (StartSession) or synchronously (RunSession)
//
// The façade delegates orchestration to session.Orchestrator while keeping
// setup and usage ergonomics concise. All defaults are safe for local
// development and testing; production deployments typically supply the
// SQLite event log and a structured logger.
package agentrun

import (
	"context"

	"agentrun/artifact"
	"agentrun/core"
	"agentrun/eventlog"
	"agentrun/logging"
	"agentrun/session"
	"agentrun/tool"
)

// Options configures the Runtime instance.
type Options struct {
	// Log is the event store backing every run. Defaults to an
	// in-memory log; use eventlog.NewSQLiteLog for durability.
	Log eventlog.Log

	// Registry holds the tools available to agent roles. Defaults to an
	// empty registry.
	Registry *tool.Registry

	// Artifacts receives the final results of successful runs. Defaults
	// to an in-memory store.
	Artifacts artifact.Store

	// MaxSideEffect is the permission ceiling applied to every agent.
	// Empty means no ceiling.
	MaxSideEffect tool.SideEffect

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Runtime is the high-level façade aggregating the orchestrator and its
// backing services.
type Runtime struct {
	opts Options
	orch *session.Orchestrator
}

// New creates a Runtime with optional overrides. Any unset service is
// initialized with an in-memory implementation.
func New(factory session.ProviderFactory, optFns ...func(o *Options)) *Runtime {
	opts := Options{
		Log:       eventlog.NewInMemoryLog(),
		Registry:  tool.NewRegistry(),
		Artifacts: artifact.NewInMemoryStore(),
		Logger:    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	orch := session.NewOrchestrator(opts.Log, opts.Registry, factory, func(o *session.Options) {
		o.Artifacts = opts.Artifacts
		o.MaxSideEffect = opts.MaxSideEffect
		o.Logger = opts.Logger
	})

	return &Runtime{opts: opts, orch: orch}
}

// Orchestrator exposes the underlying session orchestrator for advanced
// use (streaming, listing, direct lifecycle control).
func (r *Runtime) Orchestrator() *session.Orchestrator { return r.orch }

// Log exposes the event store backing the runtime.
func (r *Runtime) Log() eventlog.Log { return r.opts.Log }

// Artifacts exposes the artifact store receiving final agent results.
func (r *Runtime) Artifacts() artifact.Store { return r.opts.Artifacts }

// RegisterTool adds a tool to the shared registry.
func (r *Runtime) RegisterTool(t tool.Tool) error { return r.opts.Registry.Register(t) }

// RegisterRole adds a role template usable by session configs.
func (r *Runtime) RegisterRole(role session.RoleTemplate) error { return r.orch.RegisterRole(role) }

// StartSession creates and starts a session, returning its id without
// waiting for completion.
func (r *Runtime) StartSession(ctx context.Context, cfg *session.Config) (string, error) {
	id, err := r.orch.CreateSession(cfg)
	if err != nil {
		return "", err
	}
	if err := r.orch.StartSession(ctx, id); err != nil {
		return "", err
	}
	return id, nil
}

// RunSession is a synchronous helper that starts a session, waits for it
// to finish, and returns its terminal state together with the full event
// history.
func (r *Runtime) RunSession(ctx context.Context, cfg *session.Config) (session.State, []core.Event, error) {
	id, err := r.StartSession(ctx, cfg)
	if err != nil {
		return "", nil, err
	}
	if err := r.orch.Wait(ctx, id); err != nil {
		return "", nil, err
	}
	state, err := r.orch.SessionState(id)
	if err != nil {
		return "", nil, err
	}
	events, err := r.orch.SessionEvents(id, -1)
	if err != nil {
		return state, nil, err
	}
	return state, events, nil
}
