package api

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/liu-chun-wu/SleepGenius/internal/service"
	"github.com/liu-chun-wu/SleepGenius/internal/storage"
)

type ChatbotResponse struct {
	Answer         string `json:"answer"`
	Score          *int   `json:"score"`
	Recommendation string `json:"recommendation"`
}

// ChatbotQuery answers a free-text question about one night. Upstream
// LLM failures come back as a 200 with a fallback answer tagged in the
// recommendation field; only a missing night is an HTTP error.
func ChatbotQuery(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid JSON")
			return
		}
		if err := service.ValidateChatRequest(&req); err != nil {
			HandleError(c, app.Logger(), err, 400, "Validation failed")
			return
		}

		result, err := service.AskCoach(c.Request.Context(), app.SleepRepo(), app.Generator(), app.Logger(), req.Date, req.Question)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				HandleError(c, app.Logger(), err, 404, "No sleep data for that date")
				return
			}
			HandleError(c, app.Logger(), err, 500, "Failed to answer question")
			return
		}
		if result.Source == service.SourceFallback {
			chatFallbacks.Inc()
		}

		HandleSuccess(c, app.Logger(), ChatbotResponse{
			Answer:         result.Answer,
			Score:          result.Score,
			Recommendation: result.Source,
		}, nil)
	}
}
