package research

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"research-backend/internal/shared/server/middleware"
	"research-backend/internal/shared/server/respond"
)

// Handler exposes the research hub HTTP surface.
type Handler struct {
	Dispatcher *Dispatcher
	Notifier   *Notifier
}

// Register mounts the research hub routes. dispatchLimit is applied to the
// endpoints that launch analyses; reads are not rate limited.
func (h *Handler) Register(rg *gin.RouterGroup, dispatchLimit gin.HandlerFunc) {
	hub := rg.Group("/research-hub")
	hub.GET("/analysis-types", h.analysisTypes)
	hub.POST("/analyze-all", dispatchLimit, h.analyzeAll)
	hub.GET("/project/:project_id/queries", h.projectQueries)
	hub.GET("/project/:project_id/insights", h.projectInsights)
	hub.POST("/:category/analyze", dispatchLimit, h.analyze)
	hub.GET("/:category/results/:task_id", h.results)
	hub.GET("/:category/project/:project_id", h.listByProject)
	hub.GET("/:category/ws/:task_id", h.subscribe)
}

type analyzeRequest struct {
	TopicKeyword            string   `json:"topic_keyword"`
	UserQuery               string   `json:"user_query"`
	ProjectID               string   `json:"project_id"`
	SourceURLs              []string `json:"source_urls"`
	ProductURLs             []string `json:"product_urls"`
	UseOnlySpecifiedSources bool     `json:"use_only_specified_sources"`
}

func (r analyzeRequest) toInput(requestID string) AnalyzeInput {
	return AnalyzeInput{
		ProjectID:     r.ProjectID,
		Topic:         r.TopicKeyword,
		Query:         r.UserQuery,
		SourceURLs:    r.SourceURLs,
		ProductURLs:   r.ProductURLs,
		StrictSources: r.UseOnlySpecifiedSources,
		RequestID:     requestID,
	}
}

type dispatchResponse struct {
	ID       string          `json:"id"`
	TaskID   string          `json:"task_id"`
	Category Category        `json:"category"`
	Status   string          `json:"status"`
	Insights json.RawMessage `json:"insights"`
	Error    *string         `json:"error"`
}

func toDispatchResponse(rec AnalysisRecord) dispatchResponse {
	return dispatchResponse{
		ID:       rec.ID,
		TaskID:   rec.TaskID,
		Category: rec.Category,
		Status:   rec.Status,
		Insights: rec.Insights,
		Error:    rec.Error,
	}
}

// writeServiceError maps service errors onto the HTTP status taxonomy.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrUnknownCategory):
		respond.Error(c, http.StatusBadRequest, "unknown_category", err.Error(), nil)
	case errors.Is(err, ErrValidation):
		respond.Error(c, http.StatusBadRequest, "invalid_request", err.Error(), nil)
	case errors.Is(err, ErrForbidden):
		respond.Error(c, http.StatusForbidden, "forbidden", "you do not have access to this resource", nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "resource not found", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "something went wrong", nil)
	}
}

type analysisTypeDTO struct {
	Name        Category `json:"name"`
	Code        string   `json:"code"`
	Description string   `json:"description"`
}

func (h *Handler) analysisTypes(c *gin.Context) {
	types := make([]analysisTypeDTO, 0, len(descriptors))
	for _, d := range Descriptors() {
		types = append(types, analysisTypeDTO{Name: d.Category, Code: d.Code, Description: d.Description})
	}
	respond.OK(c, gin.H{"analysis_types": types})
}

func (h *Handler) analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "request body must be valid JSON", nil)
		return
	}
	userID := middleware.UserIDFromContext(c)
	rec, err := h.Dispatcher.Analyze(c.Request.Context(), userID, c.Param("category"), req.toInput(middleware.RequestIDFromContext(c)))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	respond.OK(c, toDispatchResponse(rec))
}

func (h *Handler) analyzeAll(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "request body must be valid JSON", nil)
		return
	}
	userID := middleware.UserIDFromContext(c)
	recs, err := h.Dispatcher.AnalyzeAll(c.Request.Context(), userID, req.toInput(middleware.RequestIDFromContext(c)))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]dispatchResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toDispatchResponse(rec))
	}
	respond.OK(c, gin.H{"analyses": out})
}

func (h *Handler) results(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	rec, err := h.Dispatcher.Results(c.Request.Context(), userID, c.Param("task_id"), c.Param("category"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	respond.OK(c, rec)
}

func (h *Handler) listByProject(c *gin.Context) {
	limit, err := queryInt(c, "limit", 20)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "limit must be an integer", nil)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "offset must be an integer", nil)
		return
	}
	userID := middleware.UserIDFromContext(c)
	recs, err := h.Dispatcher.ListByProject(c.Request.Context(), userID, c.Param("project_id"), c.Param("category"), limit, offset)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if recs == nil {
		recs = []AnalysisRecord{}
	}
	respond.OK(c, gin.H{"analyses": recs, "limit": limit, "offset": offset})
}

func (h *Handler) projectQueries(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	queries, err := h.Dispatcher.ListQueries(c.Request.Context(), userID, c.Param("project_id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if queries == nil {
		queries = []string{}
	}
	respond.OK(c, gin.H{"queries": queries})
}

func (h *Handler) projectInsights(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	insights, err := h.Dispatcher.MergedInsights(c.Request.Context(), userID, c.Param("project_id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if insights == nil {
		insights = []MergedInsight{}
	}
	respond.OK(c, gin.H{"insights": insights})
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
