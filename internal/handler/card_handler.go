package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/clarity-app/clarity/internal/model"
	"github.com/clarity-app/clarity/internal/pkg/response"
	"github.com/clarity-app/clarity/internal/service"
)

type CardHandler struct {
	cards *service.CardService
	links *service.LinkService
}

func NewCardHandler(cards *service.CardService, links *service.LinkService) *CardHandler {
	return &CardHandler{cards: cards, links: links}
}

type createCardRequest struct {
	Title       string  `json:"title"`
	Content     *string `json:"content"`
	StreamID    string  `json:"stream_id"`
	Position    *int    `json:"position"`
	InsertAfter bool    `json:"insert_after"`
}

// Create makes a saved card when a title is present, otherwise an unsaved
// card inside the given stream. Unsaved cards may omit content entirely;
// position and insert_after pick the ledger slot.
func (h *CardHandler) Create(c *gin.Context) {
	var req createCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request")
		return
	}
	ctx := c.Request.Context()
	userID := getUserID(c)
	brainID := c.Param("brain_id")
	if req.Title != "" {
		card, err := h.cards.CreateSaved(ctx, userID, brainID, req.Title, req.Content)
		if err != nil {
			handleError(c, err)
			return
		}
		response.Success(c, gin.H{"card": card})
		return
	}
	if req.StreamID == "" {
		response.BadRequest(c, "untitled cards require a stream_id")
		return
	}
	var card *model.Card
	var entry *model.StreamCard
	var err error
	if req.Content == nil {
		card, entry, err = h.cards.CreateEmptyUnsaved(ctx, userID, brainID, req.StreamID, req.Position, req.InsertAfter)
	} else {
		position := service.InsertIndex(req.Position, req.InsertAfter)
		card, entry, err = h.cards.CreateUnsaved(ctx, userID, brainID, req.StreamID, *req.Content, position)
	}
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"card": card, "entry": entry})
}

func (h *CardHandler) List(c *gin.Context) {
	cards, err := h.cards.List(c.Request.Context(), getUserID(c), c.Param("brain_id"),
		c.Query("type"), queryUint(c, "limit", 100), queryUint(c, "offset", 0))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, cards)
}

func (h *CardHandler) Get(c *gin.Context) {
	detail, err := h.cards.Get(c.Request.Context(), getUserID(c), c.Param("brain_id"), c.Param("card_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, detail)
}

type cardContentRequest struct {
	Content string `json:"content"`
}

func (h *CardHandler) UpdateContent(c *gin.Context) {
	var req cardContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request")
		return
	}
	card, err := h.cards.UpdateContent(c.Request.Context(), getUserID(c),
		c.Param("brain_id"), c.Param("card_id"), req.Content)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, card)
}

func (h *CardHandler) AppendContent(c *gin.Context) {
	var req cardContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request")
		return
	}
	card, err := h.cards.AppendContent(c.Request.Context(), getUserID(c),
		c.Param("brain_id"), c.Param("card_id"), req.Content)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, card)
}

type convertRequest struct {
	Title string `json:"title"`
}

func (h *CardHandler) Convert(c *gin.Context) {
	var req convertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request")
		return
	}
	card, err := h.cards.ConvertToSaved(c.Request.Context(), getUserID(c),
		c.Param("brain_id"), c.Param("card_id"), req.Title)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, card)
}

func (h *CardHandler) Delete(c *gin.Context) {
	if err := h.cards.Delete(c.Request.Context(), getUserID(c), c.Param("brain_id"), c.Param("card_id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

func (h *CardHandler) Links(c *gin.Context) {
	links, err := h.links.Links(c.Request.Context(), getUserID(c), c.Param("brain_id"), c.Param("card_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, links)
}
