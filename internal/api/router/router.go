package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rookiemaniesh/trackaro/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "trackaro-api",
		})
	})

	chatHandler := handler.NewChatHandler(deps)
	jobHandler := handler.NewJobHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		chat := v1.Group("/chat")
		{
			// POST /api/v1/chat/messages - Enqueue a text message for AI classification
			chat.POST("/messages", chatHandler.SendMessage)

			// GET /api/v1/chat/messages - Page through a user's chat history
			chat.GET("/messages", chatHandler.ListMessages)

			// POST /api/v1/chat/receipts - Enqueue a receipt image for OCR classification
			chat.POST("/receipts", chatHandler.SubmitReceipt)
		}

		// GET /api/v1/jobs/:job_id - Poll processing outcome
		v1.GET("/jobs/:job_id", jobHandler.GetJobStatus)
	}

	return r
}
