package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"chat-sync-client/controller/request"
	"chat-sync-client/controller/respond"
	"chat-sync-client/models"
	"chat-sync-client/service/attachment_service"
	chatcenter "chat-sync-client/service/chat_center"
	"chat-sync-client/service/presence_service"
	"chat-sync-client/tool"

	"github.com/gin-gonic/gin"
)

// ChatService is what the bridge needs from the chat center.
type ChatService interface {
	OpenConversation(ctx context.Context, key models.ConversationKey) error
	CloseConversation()
	CurrentConversation() (models.ConversationKey, bool)
	IsConnected() bool
	Messages(key models.ConversationKey) []models.Message
	Presence() presence_service.Snapshot
	TypingUsers() []string
	SendText(content string, parentID models.ID) error
	InputChanged() error
	ShareLocation(ctx context.Context, parentID models.ID) error
	AddAttachment(item attachment_service.PendingAttachment) error
	RemoveAttachment(localURI string) bool
	PendingAttachments() []attachment_service.PendingAttachment
	SendAttachments(ctx context.Context, content string, parentID models.ID) error
	Logout(ctx context.Context) error
}

// TokenSetter stores the access token.
type TokenSetter interface {
	SetCredential(ctx context.Context, token string) error
}

type ChatController struct {
	chat   ChatService
	tokens TokenSetter
}

func NewChatController(chat ChatService, tokens TokenSetter) *ChatController {
	return &ChatController{chat: chat, tokens: tokens}
}

func elapsed(t int64) int64 {
	return tool.MakeTimestamp() - t
}

func errParam(c *gin.Context, t int64, err error) {
	c.JSONP(http.StatusBadRequest, respond.RespErr(err, elapsed(t), respond.HttpsCodeParam))
}

// fail maps chat center errors onto the response envelope.
func fail(c *gin.Context, t int64, err error) {
	var userErr *attachment_service.UserError
	switch {
	case errors.As(err, &userErr):
		c.JSONP(http.StatusOK, respond.RespAlert(userErr.Title, userErr.Message, elapsed(t)))
	case errors.Is(err, chatcenter.ErrNoConversation):
		c.JSONP(http.StatusConflict, respond.RespErr(err, elapsed(t), respond.HttpsCodeState))
	case errors.Is(err, chatcenter.ErrEmptyMessage):
		errParam(c, t, err)
	default:
		c.JSONP(http.StatusOK, respond.RespErr(err, elapsed(t), respond.HttpsCodeError))
	}
}

func (ctl *ChatController) conversationState() gin.H {
	key, open := ctl.chat.CurrentConversation()
	state := gin.H{
		"open":      open,
		"connected": ctl.chat.IsConnected(),
	}
	if open {
		state["kind"] = key.Kind
		state["id"] = key.ID.String()
	}
	return state
}

// OpenConversation POST /v1/chat/open
func (ctl *ChatController) OpenConversation(c *gin.Context) {
	var (
		t            int64 = tool.MakeTimestamp()
		requestModel request.OpenConversationReq
	)
	if err := c.ShouldBindJSON(&requestModel); err != nil {
		errParam(c, t, err)
		return
	}

	key := models.NewConversationKey(models.ConversationKind(requestModel.Kind), models.ID(requestModel.ID))
	if err := ctl.chat.OpenConversation(c.Request.Context(), key); err != nil {
		fail(c, t, err)
		return
	}
	c.JSONP(http.StatusOK, respond.RespSuccess(ctl.conversationState(), elapsed(t)))
}

// CloseConversation POST /v1/chat/close
func (ctl *ChatController) CloseConversation(c *gin.Context) {
	t := tool.MakeTimestamp()
	ctl.chat.CloseConversation()
	c.JSONP(http.StatusOK, respond.RespSuccess(ctl.conversationState(), elapsed(t)))
}

// GetMessages GET /v1/chat/messages?kind=&id=; defaults to the open
// conversation.
func (ctl *ChatController) GetMessages(c *gin.Context) {
	t := tool.MakeTimestamp()

	var key models.ConversationKey
	if c.Query("kind") != "" || c.Query("id") != "" {
		key = models.NewConversationKey(models.ConversationKind(c.Query("kind")), models.ID(c.Query("id")))
		if err := key.Validate(); err != nil {
			errParam(c, t, err)
			return
		}
	} else {
		current, open := ctl.chat.CurrentConversation()
		if !open {
			fail(c, t, chatcenter.ErrNoConversation)
			return
		}
		key = current
	}

	c.JSONP(http.StatusOK, respond.RespSuccess(gin.H{
		"conversation": key.String(),
		"messages":     ctl.chat.Messages(key),
	}, elapsed(t)))
}

// GetPresence GET /v1/chat/presence
func (ctl *ChatController) GetPresence(c *gin.Context) {
	t := tool.MakeTimestamp()
	snap := ctl.chat.Presence()
	c.JSONP(http.StatusOK, respond.RespSuccess(gin.H{
		"typingUsers":         ctl.chat.TypingUsers(),
		"onlineGroupUsers":    snap.OnlineGroupUsers,
		"personalOnlineUsers": snap.PersonalOnlineUsers,
		"connected":           ctl.chat.IsConnected(),
	}, elapsed(t)))
}

// SendText POST /v1/chat/send
func (ctl *ChatController) SendText(c *gin.Context) {
	var (
		t            int64 = tool.MakeTimestamp()
		requestModel request.SendTextReq
	)
	if err := c.ShouldBindJSON(&requestModel); err != nil {
		errParam(c, t, err)
		return
	}

	if err := ctl.chat.SendText(requestModel.Content, models.ID(requestModel.ParentID)); err != nil {
		fail(c, t, err)
		return
	}
	c.JSONP(http.StatusOK, respond.RespSuccess(gin.H{"connected": ctl.chat.IsConnected()}, elapsed(t)))
}

// InputChanged POST /v1/chat/typing, one call per keystroke.
func (ctl *ChatController) InputChanged(c *gin.Context) {
	t := tool.MakeTimestamp()
	if err := ctl.chat.InputChanged(); err != nil {
		fail(c, t, err)
		return
	}
	c.JSONP(http.StatusOK, respond.RespSuccess(nil, elapsed(t)))
}

// ShareLocation POST /v1/chat/location
func (ctl *ChatController) ShareLocation(c *gin.Context) {
	var (
		t            int64 = tool.MakeTimestamp()
		requestModel request.ShareLocationReq
	)
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&requestModel); err != nil {
			errParam(c, t, err)
			return
		}
	}

	ctx := c.Request.Context()
	if requestModel.Latitude != nil && requestModel.Longitude != nil {
		fix := attachment_service.Location{
			Latitude:  *requestModel.Latitude,
			Longitude: *requestModel.Longitude,
		}
		if requestModel.Timestamp > 0 {
			fix.Timestamp = time.UnixMilli(requestModel.Timestamp)
		}
		ctx = attachment_service.WithLocation(ctx, fix)
	}

	if err := ctl.chat.ShareLocation(ctx, models.ID(requestModel.ParentID)); err != nil {
		fail(c, t, err)
		return
	}
	c.JSONP(http.StatusOK, respond.RespSuccess(nil, elapsed(t)))
}

// GetPendingAttachments GET /v1/chat/attachments
func (ctl *ChatController) GetPendingAttachments(c *gin.Context) {
	t := tool.MakeTimestamp()
	c.JSONP(http.StatusOK, respond.RespSuccess(ctl.chat.PendingAttachments(), elapsed(t)))
}

// AddAttachment POST /v1/chat/attachments
func (ctl *ChatController) AddAttachment(c *gin.Context) {
	var (
		t            int64 = tool.MakeTimestamp()
		requestModel request.AddAttachmentReq
	)
	if err := c.ShouldBindJSON(&requestModel); err != nil {
		errParam(c, t, err)
		return
	}

	item := attachment_service.PendingAttachment{
		LocalURI:    requestModel.LocalURI,
		DisplayName: requestModel.DisplayName,
		MimeType:    requestModel.MimeType,
		SizeBytes:   requestModel.SizeBytes,
	}
	if err := ctl.chat.AddAttachment(item); err != nil {
		fail(c, t, err)
		return
	}
	c.JSONP(http.StatusOK, respond.RespSuccess(ctl.chat.PendingAttachments(), elapsed(t)))
}

// RemoveAttachment POST /v1/chat/attachments/remove
func (ctl *ChatController) RemoveAttachment(c *gin.Context) {
	var (
		t            int64 = tool.MakeTimestamp()
		requestModel request.RemoveAttachmentReq
	)
	if err := c.ShouldBindJSON(&requestModel); err != nil {
		errParam(c, t, err)
		return
	}

	removed := ctl.chat.RemoveAttachment(requestModel.LocalURI)
	c.JSONP(http.StatusOK, respond.RespSuccess(gin.H{
		"removed": removed,
		"pending": ctl.chat.PendingAttachments(),
	}, elapsed(t)))
}

// SendAttachments POST /v1/chat/attachments/send
func (ctl *ChatController) SendAttachments(c *gin.Context) {
	var (
		t            int64 = tool.MakeTimestamp()
		requestModel request.SendAttachmentsReq
	)
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&requestModel); err != nil {
			errParam(c, t, err)
			return
		}
	}

	if err := ctl.chat.SendAttachments(c.Request.Context(), requestModel.Content, models.ID(requestModel.ParentID)); err != nil {
		fail(c, t, err)
		return
	}
	c.JSONP(http.StatusOK, respond.RespSuccess(nil, elapsed(t)))
}

// SetToken POST /v1/auth/token
func (ctl *ChatController) SetToken(c *gin.Context) {
	var (
		t            int64 = tool.MakeTimestamp()
		requestModel request.SetTokenReq
	)
	if err := c.ShouldBindJSON(&requestModel); err != nil {
		errParam(c, t, err)
		return
	}

	if err := ctl.tokens.SetCredential(c.Request.Context(), requestModel.Token); err != nil {
		fail(c, t, err)
		return
	}
	c.JSONP(http.StatusOK, respond.RespSuccess(nil, elapsed(t)))
}

// Logout POST /v1/auth/logout
func (ctl *ChatController) Logout(c *gin.Context) {
	t := tool.MakeTimestamp()
	if err := ctl.chat.Logout(c.Request.Context()); err != nil {
		fail(c, t, err)
		return
	}
	c.JSONP(http.StatusOK, respond.RespSuccess(nil, elapsed(t)))
}
