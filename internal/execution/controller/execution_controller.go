package controller

import (
	"context"
	"net/http"
	"strings"

	"codeexec/internal/execution/sandbox"
	"codeexec/internal/execution/sandbox/profile"
	"codeexec/internal/execution/sandbox/result"
	"codeexec/internal/execution/sandbox/spec"
	appErr "codeexec/pkg/errors"
	"codeexec/pkg/utils/logger"
	"codeexec/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ResultStore persists finished results for GET /executions/:id.
type ResultStore interface {
	Save(ctx context.Context, res result.ExecutionResult) error
	Get(ctx context.Context, jobID string) (result.ExecutionResult, error)
}

// LanguageLister reports the configured languages.
type LanguageLister interface {
	Languages(ctx context.Context) []profile.LanguageSpec
}

// Admission bounds the number of executions in flight.
type Admission interface {
	TryAcquire() bool
	Release()
}

// AdmissionObserver receives admission metrics.
type AdmissionObserver interface {
	ObserveRejected(reason string)
	TrackInFlight() func()
}

// Options carries the optional collaborators of ExecutionController.
type Options struct {
	Store     ResultStore
	Admission Admission
	Observer  AdmissionObserver
}

// ExecutionController handles execution HTTP endpoints.
type ExecutionController struct {
	executor  sandbox.Executor
	languages LanguageLister
	store     ResultStore
	admission Admission
	observer  AdmissionObserver
}

// NewExecutionController creates a new controller.
func NewExecutionController(executor sandbox.Executor, languages LanguageLister, opts Options) *ExecutionController {
	return &ExecutionController{
		executor:  executor,
		languages: languages,
		store:     opts.Store,
		admission: opts.Admission,
		observer:  opts.Observer,
	}
}

// RegisterRoutes mounts the execution endpoints on r.
func (h *ExecutionController) RegisterRoutes(r gin.IRouter) {
	r.GET("/", h.Health)
	api := r.Group("/api/v1")
	api.POST("/executions", h.Create)
	api.GET("/executions/:id", h.Get)
	api.GET("/languages", h.ListLanguages)
}

// Health answers liveness probes.
func (h *ExecutionController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"online": "compiler"})
}

// Create runs one submission synchronously.
func (h *ExecutionController) Create(c *gin.Context) {
	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	if req.SourceCode == nil {
		response.Error(c, appErr.New(appErr.EmptySourceCode))
		return
	}
	language := strings.ToLower(strings.TrimSpace(req.Language))
	if language == "" {
		language = profile.LanguageCpp
	}

	if h.admission != nil {
		if !h.admission.TryAcquire() {
			if h.observer != nil {
				h.observer.ObserveRejected("busy")
			}
			response.Error(c, appErr.New(appErr.ExecutorBusy))
			return
		}
		defer h.admission.Release()
	}
	if h.observer != nil {
		done := h.observer.TrackInFlight()
		defer done()
	}

	ctx := c.Request.Context()
	res, err := h.executor.Execute(ctx, sandbox.ExecutionRequest{
		Language:   language,
		SourceCode: *req.SourceCode,
		Stdin:      req.Stdin,
		Limits: spec.Limits{
			TimeLimitMs:   req.TimeLimitMs,
			MemoryLimitKB: req.MemoryLimitKB,
		},
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.store != nil {
		if err := h.store.Save(ctx, res); err != nil {
			logger.Warn(ctx, "save execution result failed", zap.String("job_id", res.JobID), zap.Error(err))
		}
	}
	response.Success(c, res)
}

// Get returns a stored result.
func (h *ExecutionController) Get(c *gin.Context) {
	jobID := c.Param("id")
	if jobID == "" {
		response.BadRequest(c, "Invalid execution id")
		return
	}
	if h.store == nil {
		response.Error(c, appErr.New(appErr.ServiceUnavailable).WithMessage("result store is disabled"))
		return
	}
	res, err := h.store.Get(c.Request.Context(), jobID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// ListLanguages returns the configured languages.
func (h *ExecutionController) ListLanguages(c *gin.Context) {
	specs := h.languages.Languages(c.Request.Context())
	items := make([]LanguageItem, 0, len(specs))
	for _, lang := range specs {
		items = append(items, LanguageItem{
			ID:       lang.ID,
			Name:     lang.Name,
			Version:  lang.Version,
			Compiled: lang.CompileEnabled(),
		})
	}
	response.Success(c, items)
}

// ExecuteRequest defines the execution payload.
// SourceCode is a pointer so a missing field can be told apart from an empty one.
type ExecuteRequest struct {
	Language      string  `json:"language"`
	SourceCode    *string `json:"sourceCode"`
	Stdin         string  `json:"stdin"`
	TimeLimitMs   int64   `json:"timeLimitMs"`
	MemoryLimitKB int64   `json:"memoryLimitKB"`
}

// LanguageItem describes one supported language.
type LanguageItem struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Version  string `json:"version,omitempty"`
	Compiled bool   `json:"compiled"`
}
