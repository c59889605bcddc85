// Webhook HTTP handler.
//
// POST {base}/telegram/webhook receives one update per call. The reply, if
// any, is returned in the response body as a Bot API method call, which the
// platform executes on the bot's behalf; otherwise the call is acknowledged
// with 204. Any non-2xx status makes the platform redeliver the update.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-bot/internal/domain"
	"github.com/tbourn/go-chat-bot/internal/http/middleware"
	"github.com/tbourn/go-chat-bot/internal/services"
)

// UpdateService processes decoded updates.
type UpdateService interface {
	Handle(ctx context.Context, upd domain.Update) (services.Reply, error)
}

// Handlers groups the bot's HTTP endpoints.
type Handlers struct {
	updates UpdateService
}

// New binds the handlers to the update service.
func New(updates UpdateService) *Handlers {
	return &Handlers{updates: updates}
}

// Webhook handles a Telegram update delivery.
func (h *Handlers) Webhook(c *gin.Context) {
	var upd domain.Update
	if err := c.ShouldBindJSON(&upd); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "update payload too large")
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid update payload")
		return
	}
	if upd.UpdateID <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "update_id is required")
		return
	}
	middleware.SetUpdateFields(c, upd.UpdateID, senderID(upd))

	reply, err := h.updates.Handle(c.Request.Context(), upd)
	switch {
	case errors.Is(err, services.ErrDuplicateUpdate):
		middleware.LoggerFrom(c).Debug().Msg("duplicate update dropped")
		noContent(c)
		return
	case err != nil:
		middleware.LoggerFrom(c).Error().Err(err).Msg("update failed")
		fail(c, http.StatusInternalServerError, ErrCodeUpdateFailed, "update could not be processed")
		return
	}

	call := render(reply)
	if call == nil {
		noContent(c)
		return
	}
	ok(c, http.StatusOK, call)
}

func senderID(upd domain.Update) int64 {
	switch {
	case upd.Message != nil && upd.Message.From != nil:
		return upd.Message.From.ID
	case upd.InlineQuery != nil:
		return upd.InlineQuery.From.ID
	}
	return 0
}
