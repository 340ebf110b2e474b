package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/clarity-app/clarity/internal/middleware"
)

type RouterDeps struct {
	Auth      *AuthHandler
	Brains    *BrainHandler
	Streams   *StreamHandler
	Cards     *CardHandler
	Files     *FileHandler
	Jobs      *JobHandler
	AI        *AIHandler
	JWTSecret []byte
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/auth/register", deps.Auth.Register)
	api.POST("/auth/login", deps.Auth.Login)

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	authGroup.GET("/auth/me", deps.Auth.Me)

	authGroup.POST("/brains", deps.Brains.Create)
	authGroup.GET("/brains", deps.Brains.List)
	authGroup.GET("/brains/:brain_id", deps.Brains.Get)
	authGroup.DELETE("/brains/:brain_id", deps.Brains.Delete)

	authGroup.POST("/brains/:brain_id/streams", deps.Streams.Create)
	authGroup.GET("/brains/:brain_id/streams", deps.Streams.List)
	authGroup.GET("/brains/:brain_id/streams/:stream_id", deps.Streams.Get)
	authGroup.PUT("/brains/:brain_id/streams/:stream_id", deps.Streams.Update)
	authGroup.DELETE("/brains/:brain_id/streams/:stream_id", deps.Streams.Delete)

	authGroup.POST("/brains/:brain_id/streams/:stream_id/cards", deps.Streams.AddCard)
	authGroup.DELETE("/brains/:brain_id/streams/:stream_id/cards/:card_id", deps.Streams.RemoveCard)
	authGroup.PUT("/brains/:brain_id/streams/:stream_id/cards/:card_id/position", deps.Streams.MoveCard)
	authGroup.PUT("/brains/:brain_id/streams/:stream_id/cards/:card_id/depth", deps.Streams.SetDepth)
	authGroup.PUT("/brains/:brain_id/streams/:stream_id/cards/:card_id/ai-context", deps.Streams.ToggleAIContext)
	authGroup.PUT("/brains/:brain_id/streams/:stream_id/cards/:card_id/collapsed", deps.Streams.ToggleCollapsed)
	authGroup.POST("/brains/:brain_id/streams/:stream_id/normalize", deps.Streams.Normalize)

	authGroup.POST("/brains/:brain_id/cards", deps.Cards.Create)
	authGroup.GET("/brains/:brain_id/cards", deps.Cards.List)
	authGroup.GET("/brains/:brain_id/cards/:card_id", deps.Cards.Get)
	authGroup.PUT("/brains/:brain_id/cards/:card_id/content", deps.Cards.UpdateContent)
	authGroup.POST("/brains/:brain_id/cards/:card_id/append", deps.Cards.AppendContent)
	authGroup.POST("/brains/:brain_id/cards/:card_id/convert", deps.Cards.Convert)
	authGroup.GET("/brains/:brain_id/cards/:card_id/links", deps.Cards.Links)
	authGroup.DELETE("/brains/:brain_id/cards/:card_id", deps.Cards.Delete)

	authGroup.POST("/brains/:brain_id/files", deps.Files.Upload)
	authGroup.GET("/brains/:brain_id/files", deps.Files.List)
	authGroup.GET("/brains/:brain_id/files/:file_id", deps.Files.Get)
	authGroup.GET("/brains/:brain_id/files/:file_id/download", deps.Files.Download)
	authGroup.DELETE("/brains/:brain_id/files/:file_id", deps.Files.Delete)

	authGroup.GET("/jobs/:job_id", deps.Jobs.Get)
	authGroup.POST("/jobs/:job_id/cancel", deps.Jobs.Cancel)

	authGroup.POST("/brains/:brain_id/ai/generate", deps.AI.Generate)
	authGroup.GET("/brains/:brain_id/cards/:card_id/related", deps.AI.Related)
}
