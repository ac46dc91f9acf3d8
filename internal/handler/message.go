package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kdelmo1/sano-server/internal/model"
	"github.com/kdelmo1/sano-server/internal/queue"
	"github.com/kdelmo1/sano-server/internal/repository"
	queuepublisher "github.com/kdelmo1/sano-server/internal/service"
)

// MessageHandler serves direct messages between users about a post.
type MessageHandler struct {
	Messages *repository.MessageRepo
	Users    *repository.UserRepo
	// Publish notifies the recipient's open conversation.  Nil disables
	// publication.
	Publish func(ctx context.Context, ev queue.MessageSentEvent) error
}

// NewMessageHandler constructs a MessageHandler wired to the broker.
func NewMessageHandler(messages *repository.MessageRepo, users *repository.UserRepo) *MessageHandler {
	return &MessageHandler{
		Messages: messages,
		Users:    users,
		Publish:  queuepublisher.PublishMessageSent,
	}
}

// Send handles POST /v1/posts/:id/messages.  The body names the recipient by
// handle; messages to oneself are refused.
func (h *MessageHandler) Send(c echo.Context) error {
	senderID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	senderHandle, err := getHandle(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	postID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || postID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid post id"})
	}
	var body struct {
		RecipientHandle string `json:"recipient_handle"`
		Body            string `json:"body"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Body == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "message body is required"})
	}
	if body.RecipientHandle == senderHandle {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot message yourself"})
	}

	recipient, err := h.Users.GetByHandle(c.Request().Context(), body.RecipientHandle)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "recipient not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to resolve recipient"})
	}

	rec := &model.Message{
		PostID:      postID,
		SenderID:    senderID,
		RecipientID: recipient.ID,
		Body:        body.Body,
	}
	if err := h.Messages.Create(c.Request().Context(), rec); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to store message"})
	}

	if h.Publish != nil {
		ev := queue.MessageSentEvent{
			MessageID:       rec.ID,
			PostID:          postID,
			SenderHandle:    senderHandle,
			RecipientHandle: recipient.Handle,
			Body:            rec.Body,
			SentAt:          rec.CreatedAt.UTC().Format(time.RFC3339),
		}
		pctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = h.Publish(pctx, ev)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"id":         rec.ID,
		"created_at": rec.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// Conversation handles GET /v1/posts/:id/messages?with=<handle>.  It returns
// the full exchange between the caller and the named user, oldest first.
func (h *MessageHandler) Conversation(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	postID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || postID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid post id"})
	}
	withHandle := c.QueryParam("with")
	if withHandle == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "with query parameter is required"})
	}
	other, err := h.Users.GetByHandle(c.Request().Context(), withHandle)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to resolve user"})
	}
	items, err := h.Messages.Conversation(c.Request().Context(), postID, userID, other.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load conversation"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
