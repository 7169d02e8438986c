package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/LedMarketing/OpenManus/history"
	"github.com/LedMarketing/OpenManus/llm"
	"github.com/LedMarketing/OpenManus/models"
	"github.com/gin-gonic/gin"
)

// Assistant is the LLM surface the chat and code handlers need.
type Assistant interface {
	Chat(ctx context.Context, message string, history []models.ContextEntry) (string, error)
	GenerateCode(ctx context.Context, prompt, language, requirements string) (string, error)
	Configured() bool
}

// Chat returns a handler for POST /api/chat.
//
// Every exchange is recorded in store under session_id, or under a fresh id
// returned in the response. An empty context is filled from the session's
// recent exchanges.
func Chat(ai Assistant, store *history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ChatRequest
		if !bindJSON(c, &req) {
			return
		}

		message := strings.TrimSpace(req.Message)
		if message == "" {
			respondError(c, models.ValidationError("Message is required"))
			return
		}

		var sessionID string
		if req.SessionID != "" {
			id, ok := history.NormalizeID(req.SessionID)
			if !ok {
				respondError(c, models.ValidationError("invalid session_id"))
				return
			}
			sessionID = id
		} else if store != nil {
			sessionID = history.NewSessionID()
		}

		entries := req.Context
		if len(entries) == 0 && sessionID != "" && store != nil {
			for _, ex := range store.Recent(sessionID, llm.MaxContextExchanges) {
				entries = append(entries, models.ContextEntry{
					UserMessage:       ex.UserMessage,
					AssistantResponse: ex.AssistantResponse,
				})
			}
		}

		answer, err := ai.Chat(context.WithoutCancel(c.Request.Context()), message, entries)
		if err != nil {
			respondError(c, err)
			return
		}

		if sessionID != "" && store != nil {
			store.Append(sessionID, models.ChatExchange{
				UserMessage:       message,
				AssistantResponse: answer,
			})
		}

		c.JSON(http.StatusOK, models.ChatResponse{
			Success:   true,
			Response:  answer,
			SessionID: sessionID,
			Timestamp: time.Now().UTC(),
		})
	}
}

// GenerateCode returns a handler for POST /api/generate-code.
func GenerateCode(ai Assistant) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.GenerateCodeRequest
		if !bindJSON(c, &req) {
			return
		}
		req.Defaults()

		prompt := strings.TrimSpace(req.Prompt)
		if prompt == "" {
			respondError(c, models.ValidationError("Prompt is required"))
			return
		}

		code, err := ai.GenerateCode(context.WithoutCancel(c.Request.Context()), prompt, req.Language, req.Requirements)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, models.GenerateCodeResponse{
			Success:   true,
			Code:      code,
			Language:  req.Language,
			Timestamp: time.Now().UTC(),
		})
	}
}
