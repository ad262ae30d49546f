// Package core wires the session, run history, execution engine and
// operation runners into one manager, the unit the public API exposes.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/eleven-am/strand/internal/domain"
	"github.com/eleven-am/strand/internal/engine"
	"github.com/eleven-am/strand/internal/graph"
	"github.com/eleven-am/strand/internal/operations"
	"github.com/eleven-am/strand/internal/ports"
	"github.com/eleven-am/strand/internal/session"
	"github.com/eleven-am/strand/internal/storage"
)

// Options configures a Manager beyond the engine tuning in domain.Config.
type Options struct {
	// WorkflowID names the workflow this manager edits and runs.
	WorkflowID string

	// Config tunes the engine; nil means DefaultConfig.
	Config *domain.Config

	// LLM configures the chat completions backend.
	LLM operations.LLMOptions

	// MediaBaseURL points at the media processing service.
	MediaBaseURL string

	// Runner overrides the default dispatcher, used by tests and embedders
	// that bring their own operation backends.
	Runner ports.OperationRunner

	// InMemory keeps run history off disk.
	InMemory bool

	Logger *slog.Logger
}

// Manager owns one workflow: its editing session, its run history and the
// engine that executes it. Runs execute on background goroutines; Close
// waits for them.
type Manager struct {
	workflowID string
	config     *domain.Config
	logger     *slog.Logger

	session *session.Session
	history *storage.HistoryStore
	engine  *engine.Engine

	wg sync.WaitGroup
}

func New(opts Options) (*Manager, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	config := opts.Config
	if config == nil {
		config = domain.DefaultConfig()
	}
	config.Normalize()

	workflowID := opts.WorkflowID
	if workflowID == "" {
		workflowID = "default"
	}

	var history *storage.HistoryStore
	var err error
	if opts.InMemory {
		history, err = storage.OpenInMemory(logger)
	} else {
		history, err = storage.Open(config.DataDir, logger)
	}
	if err != nil {
		return nil, err
	}

	runner := opts.Runner
	if runner == nil {
		llm := operations.NewLLMRunner(opts.LLM, config, logger)
		media := operations.NewMediaRunner(opts.MediaBaseURL, config, logger)
		runner = operations.NewDispatcher().
			Register(ports.OperationLLMGenerate, llm).
			Register(ports.OperationMediaCrop, media).
			Register(ports.OperationMediaExtract, media)
	}

	sess := session.New(config, logger)

	return &Manager{
		workflowID: workflowID,
		config:     config,
		logger:     logger.With("component", "manager"),
		session:    sess,
		history:    history,
		engine:     engine.New(runner, history, sess, config, logger),
	}, nil
}

// Session exposes the live canvas for editing.
func (m *Manager) Session() *session.Session {
	return m.session
}

// TriggerRun starts a run over the whole graph (no targets) or the selected
// nodes. Pre-flight validation failures are returned synchronously with no
// run record; on success the run executes in the background and the returned
// run header identifies it.
func (m *Manager) TriggerRun(ctx context.Context, targets ...string) (*domain.Run, error) {
	scope := graph.FullScope()
	if len(targets) > 0 {
		scope = graph.TargetScope(targets...)
	}
	return m.trigger(ctx, scope)
}

// TriggerChain runs one processing node together with all of its ancestors.
func (m *Manager) TriggerChain(ctx context.Context, nodeID string) (*domain.Run, error) {
	return m.trigger(ctx, graph.ChainScope(nodeID))
}

func (m *Manager) trigger(ctx context.Context, scope graph.Scope) (*domain.Run, error) {
	g := m.session.Graph()

	plan, err := graph.Resolve(g, scope)
	if err != nil {
		return nil, err
	}

	run, err := m.history.StartRun(ctx, m.workflowID, plan.Trigger)
	if err != nil {
		return nil, err
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if _, err := m.engine.Execute(context.WithoutCancel(ctx), g, plan, run); err != nil {
			m.logger.Error("run aborted",
				"run_id", run.ID,
				"error", err.Error(),
			)
		}
	}()

	return run, nil
}

// RunHistory returns this workflow's runs, newest first.
func (m *Manager) RunHistory(ctx context.Context) ([]domain.Run, error) {
	return m.history.History(ctx, m.workflowID)
}

// Run returns a single run with its node executions.
func (m *Manager) Run(ctx context.Context, runID string) (*domain.Run, error) {
	return m.history.Run(ctx, runID)
}

// SyncState replays the newest run's outcomes onto the canvas, used after
// loading a document whose nodes predate the stored history.
func (m *Manager) SyncState(ctx context.Context) error {
	runs, err := m.history.History(ctx, m.workflowID)
	if err != nil {
		return fmt.Errorf("load run history: %w", err)
	}
	m.session.SyncHistory(runs)
	return nil
}

// Wait blocks until every background run finishes.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Close waits for in-flight runs and releases the history store.
func (m *Manager) Close() error {
	m.wg.Wait()
	return m.history.Close()
}
