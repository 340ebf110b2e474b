package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/clarity-app/clarity/internal/pkg/response"
	"github.com/clarity-app/clarity/internal/service"
)

type BrainHandler struct {
	brains *service.BrainService
}

func NewBrainHandler(brains *service.BrainService) *BrainHandler {
	return &BrainHandler{brains: brains}
}

type brainRequest struct {
	Name string `json:"name"`
}

func (h *BrainHandler) Create(c *gin.Context) {
	var req brainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request")
		return
	}
	brain, err := h.brains.Create(c.Request.Context(), getUserID(c), req.Name)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, brain)
}

func (h *BrainHandler) List(c *gin.Context) {
	brains, err := h.brains.List(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, brains)
}

func (h *BrainHandler) Get(c *gin.Context) {
	brain, err := h.brains.Get(c.Request.Context(), getUserID(c), c.Param("brain_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, brain)
}

func (h *BrainHandler) Delete(c *gin.Context) {
	if err := h.brains.Delete(c.Request.Context(), getUserID(c), c.Param("brain_id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}
