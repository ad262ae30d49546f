// Package strand is an execution engine for AI workflow canvases. A canvas
// is a directed acyclic graph of nodes: static inputs (text, image, video)
// and processing steps (LLM generation, image cropping, frame extraction)
// joined by typed connections. Strand validates connections as they are
// drawn, schedules runs in dependency order with independent branches in
// parallel, cascades failures downstream, and records every run in a
// persistent history.
//
// Basic usage:
//
//	manager, err := strand.New(strand.Options{
//	    WorkflowID: "my-canvas",
//	    LLM:        strand.LLMOptions{APIKey: os.Getenv("OPENAI_API_KEY")},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer manager.Close()
//
//	sess := manager.Session()
//	prompt := sess.AddNode(strand.Node{Kind: strand.KindText, Data: strand.NodeData{Text: "Write a haiku"}})
//	llm := sess.AddNode(strand.Node{Kind: strand.KindLLM})
//	sess.Connect(strand.Edge{Source: prompt.ID, Target: llm.ID, TargetHandle: "prompt"})
//
//	run, err := manager.TriggerRun(context.Background())
package strand

import (
	"github.com/eleven-am/strand/internal/api"
	"github.com/eleven-am/strand/internal/core"
	"github.com/eleven-am/strand/internal/domain"
	"github.com/eleven-am/strand/internal/operations"
	"github.com/eleven-am/strand/internal/session"
)

// Manager owns one workflow: its editing session, run history and engine.
type Manager = core.Manager

// Options configures a Manager.
type Options = core.Options

// LLMOptions configures the chat completions backend.
type LLMOptions = operations.LLMOptions

// Session is the live canvas state with undo history.
type Session = session.Session

// Server exposes a Manager over HTTP.
type Server = api.Server

// Config tunes engine behavior: polling cadence, operation timeouts, undo
// depth and storage location.
type Config = domain.Config

// New creates a Manager from options.
func New(opts Options) (*Manager, error) {
	return core.New(opts)
}

// NewServer wraps a Manager in an HTTP API.
func NewServer(manager *Manager) *Server {
	return api.NewServer(manager, nil)
}

// DefaultConfig returns the standard engine tuning.
func DefaultConfig() *Config {
	return domain.DefaultConfig()
}
