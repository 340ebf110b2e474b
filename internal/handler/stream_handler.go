package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/clarity-app/clarity/internal/pkg/response"
	"github.com/clarity-app/clarity/internal/service"
)

type StreamHandler struct {
	streams *service.StreamService
	ledger  *service.LedgerService
}

func NewStreamHandler(streams *service.StreamService, ledger *service.LedgerService) *StreamHandler {
	return &StreamHandler{streams: streams, ledger: ledger}
}

type streamRequest struct {
	Name     string `json:"name"`
	Favorite *bool  `json:"favorite"`
}

func (h *StreamHandler) Create(c *gin.Context) {
	var req streamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request")
		return
	}
	stream, err := h.streams.Create(c.Request.Context(), getUserID(c), c.Param("brain_id"), req.Name)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, stream)
}

func (h *StreamHandler) List(c *gin.Context) {
	streams, err := h.streams.List(c.Request.Context(), getUserID(c), c.Param("brain_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, streams)
}

func (h *StreamHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	userID := getUserID(c)
	brainID := c.Param("brain_id")
	streamID := c.Param("stream_id")
	stream, err := h.streams.Get(ctx, userID, brainID, streamID)
	if err != nil {
		handleError(c, err)
		return
	}
	entries, err := h.ledger.ListEntries(ctx, userID, brainID, streamID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"stream": stream, "cards": entries})
}

func (h *StreamHandler) Update(c *gin.Context) {
	var req streamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request")
		return
	}
	stream, err := h.streams.Update(c.Request.Context(), getUserID(c), c.Param("brain_id"), c.Param("stream_id"), req.Name, req.Favorite)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, stream)
}

func (h *StreamHandler) Delete(c *gin.Context) {
	if err := h.streams.Delete(c.Request.Context(), getUserID(c), c.Param("brain_id"), c.Param("stream_id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

type streamCardRequest struct {
	CardID   string `json:"card_id"`
	Position *int   `json:"position"`
	Depth    int    `json:"depth"`
}

func (h *StreamHandler) AddCard(c *gin.Context) {
	var req streamCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request")
		return
	}
	if req.CardID == "" {
		response.BadRequest(c, "card_id required")
		return
	}
	position := int(^uint(0) >> 1)
	if req.Position != nil {
		position = *req.Position
	}
	entry, err := h.ledger.InsertCard(c.Request.Context(), getUserID(c),
		c.Param("brain_id"), c.Param("stream_id"), req.CardID, position, req.Depth)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, entry)
}

func (h *StreamHandler) RemoveCard(c *gin.Context) {
	removed, err := h.ledger.RemoveCard(c.Request.Context(), getUserID(c),
		c.Param("brain_id"), c.Param("stream_id"), c.Param("card_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"removed": removed})
}

type moveCardRequest struct {
	Position int  `json:"position"`
	Depth    *int `json:"depth"`
}

func (h *StreamHandler) MoveCard(c *gin.Context) {
	var req moveCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request")
		return
	}
	changed, err := h.ledger.MoveCard(c.Request.Context(), getUserID(c),
		c.Param("brain_id"), c.Param("stream_id"), c.Param("card_id"), req.Position, req.Depth)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"changed": changed})
}

type depthRequest struct {
	Depth int `json:"depth"`
}

func (h *StreamHandler) SetDepth(c *gin.Context) {
	var req depthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request")
		return
	}
	err := h.ledger.SetDepth(c.Request.Context(), getUserID(c),
		c.Param("brain_id"), c.Param("stream_id"), c.Param("card_id"), req.Depth)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"depth": req.Depth})
}

func (h *StreamHandler) ToggleAIContext(c *gin.Context) {
	value, err := h.ledger.ToggleAIContext(c.Request.Context(), getUserID(c),
		c.Param("brain_id"), c.Param("stream_id"), c.Param("card_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"is_in_ai_context": value})
}

func (h *StreamHandler) ToggleCollapsed(c *gin.Context) {
	value, err := h.ledger.ToggleCollapsed(c.Request.Context(), getUserID(c),
		c.Param("brain_id"), c.Param("stream_id"), c.Param("card_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"is_collapsed": value})
}

func (h *StreamHandler) Normalize(c *gin.Context) {
	changed, err := h.ledger.NormalizePositions(c.Request.Context(), getUserID(c),
		c.Param("brain_id"), c.Param("stream_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"changed": changed})
}
