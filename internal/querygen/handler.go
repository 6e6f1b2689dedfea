package querygen

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"research-backend/internal/shared/server/respond"
)

// Handler exposes the query generation endpoint.
type Handler struct {
	Service *Service
}

// Register mounts the /ai routes.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/ai/generate-query", h.generate)
}

type generateRequest struct {
	Description string `json:"description"`
}

func (h *Handler) generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "request body must be valid JSON", nil)
		return
	}
	query, err := h.Service.Generate(c.Request.Context(), req.Description)
	if err != nil {
		if errors.Is(err, ErrEmptyDescription) {
			respond.Error(c, http.StatusBadRequest, "invalid_request", err.Error(), nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "generation_failed", "could not generate a query", nil)
		return
	}
	respond.OK(c, gin.H{"query": query})
}
