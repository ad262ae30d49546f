// Package api exposes the canvas and its runs over HTTP. Handlers are thin:
// they translate JSON in and out of the core manager and map domain errors
// to status codes.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"

	"github.com/eleven-am/strand/internal/core"
	"github.com/eleven-am/strand/internal/domain"
)

type Server struct {
	manager *core.Manager
	logger  *slog.Logger
	router  *gin.Engine
}

func NewServer(manager *core.Manager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		manager: manager,
		logger:  logger.With("component", "api"),
		router:  gin.New(),
	}
	s.router.Use(gin.Recovery())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.GET("/graph", s.getGraph)
	s.router.POST("/nodes", s.addNode)
	s.router.PATCH("/nodes/:id", s.updateNode)
	s.router.DELETE("/nodes/:id", s.deleteNode)
	s.router.POST("/edges", s.connect)
	s.router.DELETE("/edges/:id", s.disconnect)

	s.router.POST("/undo", s.undo)
	s.router.POST("/redo", s.redo)

	s.router.GET("/export", s.exportDocument)
	s.router.POST("/import", s.importDocument)

	s.router.POST("/workflow/run", s.triggerRun)
	s.router.GET("/workflows/:id/history", s.history)
	s.router.GET("/runs/:id", s.getRun)
}

// Handler returns the http.Handler for mounting or serving.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Listen(addr string) error {
	s.logger.Info("http server listening", "addr", addr)
	return s.router.Run(addr)
}

func (s *Server) getGraph(c *gin.Context) {
	c.JSON(http.StatusOK, s.manager.Session().Graph())
}

func (s *Server) addNode(c *gin.Context) {
	var node domain.Node
	if err := c.ShouldBindJSON(&node); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	created := s.manager.Session().AddNode(node)
	c.JSON(http.StatusCreated, created)
}

func (s *Server) updateNode(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil || len(raw) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be a JSON patch"})
		return
	}
	if err := s.manager.Session().UpdateNodeData(c.Param("id"), json.RawMessage(raw)); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) deleteNode(c *gin.Context) {
	if err := s.manager.Session().DeleteNode(c.Param("id")); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) connect(c *gin.Context) {
	var edge domain.Edge
	if err := c.ShouldBindJSON(&edge); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	created, err := s.manager.Session().Connect(edge)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) disconnect(c *gin.Context) {
	s.manager.Session().Disconnect(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) undo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"applied": s.manager.Session().Undo()})
}

func (s *Server) redo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"applied": s.manager.Session().Redo()})
}

func (s *Server) exportDocument(c *gin.Context) {
	name := c.DefaultQuery("name", "workflow")
	c.JSON(http.StatusOK, s.manager.Session().Export(name))
}

func (s *Server) importDocument(c *gin.Context) {
	var doc domain.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.manager.Session().Import(doc); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type runRequest struct {
	// Targets selects a subset of nodes; empty means a full run.
	Targets []string `json:"targets"`

	// Chain runs one node together with its ancestors. Mutually exclusive
	// with Targets.
	Chain string `json:"chain"`
}

func (s *Server) triggerRun(c *gin.Context) {
	var req runRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	var run *domain.Run
	var err error
	switch {
	case req.Chain != "":
		run, err = s.manager.TriggerChain(c.Request.Context(), req.Chain)
	default:
		run, err = s.manager.TriggerRun(c.Request.Context(), req.Targets...)
	}
	if err != nil {
		status := http.StatusBadRequest
		if !domain.IsValidationError(err) && !domain.IsMissingDataError(err) && !errors.Is(err, domain.ErrEmptyGraph) {
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"runId":   run.ID,
		"taskId":  run.ID,
	})
}

func (s *Server) history(c *gin.Context) {
	runs, err := s.manager.RunHistory(c.Request.Context())
	if err != nil {
		s.renderError(c, err)
		return
	}
	if runs == nil {
		runs = []domain.Run{}
	}
	c.JSON(http.StatusOK, gin.H{"workflowId": c.Param("id"), "runs": runs})
}

func (s *Server) getRun(c *gin.Context) {
	run, err := s.manager.Run(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

// renderError maps domain errors onto HTTP semantics: validation and missing
// data are client errors, unknown ids are 404s, everything else is a 500.
func (s *Server) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNodeNotFound), errors.Is(err, domain.ErrRunNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case domain.IsValidationError(err), domain.IsMissingDataError(err), errors.Is(err, domain.ErrEmptyGraph):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.logger.Error("request failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
