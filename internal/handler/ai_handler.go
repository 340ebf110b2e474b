package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clarity-app/clarity/internal/pkg/response"
	"github.com/clarity-app/clarity/internal/service"
)

type AIHandler struct {
	ai *service.AIService
}

func NewAIHandler(ai *service.AIService) *AIHandler {
	return &AIHandler{ai: ai}
}

type generateRequest struct {
	StreamID string `json:"stream_id"`
	Prompt   string `json:"prompt"`
}

// Generate streams model output over SSE while the text accumulates into a
// new unsaved card at the end of the stream. Events: token, done, error.
func (h *AIHandler) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request")
		return
	}
	if req.StreamID == "" {
		response.BadRequest(c, "stream_id required")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	sendEvent := func(eventType, data string) {
		fmt.Fprintf(c.Writer, "data: %s\n\n", fmt.Sprintf(`{"type":%q,"data":%s}`, eventType, data))
		c.Writer.Flush()
	}

	card, err := h.ai.Generate(c.Request.Context(), getUserID(c), c.Param("brain_id"),
		req.StreamID, req.Prompt, func(chunk string) error {
			tokenJSON, _ := json.Marshal(chunk)
			sendEvent("token", string(tokenJSON))
			return nil
		})
	if err != nil {
		errJSON, _ := json.Marshal(err.Error())
		sendEvent("error", string(errJSON))
		return
	}
	cardJSON, _ := json.Marshal(card)
	sendEvent("done", string(cardJSON))
}

func (h *AIHandler) Related(c *gin.Context) {
	related, err := h.ai.RelatedCards(c.Request.Context(), getUserID(c),
		c.Param("brain_id"), c.Param("card_id"), queryInt(c, "top_k", 0))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, related)
}
