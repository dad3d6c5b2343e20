package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"catalogue/internal/core/apperror"
	"catalogue/internal/domain/pricefeed"
)

// FeedApplier applies a price feed batch.
type FeedApplier interface {
	Apply(ctx context.Context, req pricefeed.Request) (pricefeed.Result, error)
}

// FeedHandler receives point-of-sale price feeds. Point-of-sale clients only read
// {success, message}, so that body is written for every outcome.
type FeedHandler struct {
	*BaseHandler
	feed     FeedApplier
	messages pricefeed.MessageLookup
}

func NewFeedHandler(base *BaseHandler, feed FeedApplier, messages pricefeed.MessageLookup) *FeedHandler {
	if messages == nil {
		messages = pricefeed.Messages
	}
	return &FeedHandler{BaseHandler: base, feed: feed, messages: messages}
}

// Prices handles POST /feed/prices.
func (h *FeedHandler) Prices(c *gin.Context) {
	var req pricefeed.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respond(c, pricefeed.Result{
			MessageKey: pricefeed.KeyRejected,
			Message:    h.messages.Message(pricefeed.KeyRejected),
		}, apperror.NewFeedRejected("malformed feed body").WithCause(err))
		return
	}

	res, err := h.feed.Apply(c.Request.Context(), req)
	if err == nil {
		err = res.Err()
	}
	h.respond(c, res, err)
}

func (h *FeedHandler) respond(c *gin.Context, res pricefeed.Result, err error) {
	if err == nil {
		c.JSON(http.StatusOK, res)
		return
	}
	// Registered for the access log; the body below is what the client gets.
	_ = c.Error(err)
	c.JSON(apperror.GetHTTPStatus(err), res)
}
