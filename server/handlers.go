package server

import (
	"net/http"
	"strconv"

	"github.com/Luismorlan/pagemux/apperr"
	"github.com/Luismorlan/pagemux/server/middlewares"
	"github.com/gin-gonic/gin"
)

const (
	defaultPage  = 1
	defaultLimit = 20
)

// Handlers binds the dashboard to gin. Errors are attached with c.Error and
// rendered by middlewares.ErrorHandler.
type Handlers struct {
	dashboard *Dashboard
}

func NewHandlers(d *Dashboard) *Handlers {
	return &Handlers{dashboard: d}
}

func success(c *gin.Context, status int, data gin.H) {
	c.JSON(status, gin.H{"status": "success", "data": data})
}

func queryInt(c *gin.Context, name string, fallback int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

func pagination(page, limit int, total int64) gin.H {
	return gin.H{"page": page, "limit": limit, "total": total}
}

func bind(c *gin.Context, body interface{}) bool {
	if err := c.ShouldBindJSON(body); err != nil {
		c.Error(apperr.Validation("invalid request body"))
		return false
	}
	return true
}

func (h *Handlers) ListFanpages(c *gin.Context) {
	fanpages, err := h.dashboard.ListFanpages(c.Request.Context(), middlewares.UserId(c))
	if err != nil {
		c.Error(err)
		return
	}
	success(c, http.StatusOK, gin.H{"fanpages": fanpages})
}

func (h *Handlers) ConnectFanpage(c *gin.Context) {
	var body struct {
		PageId string `json:"pageId"`
	}
	if !bind(c, &body) {
		return
	}
	fanpage, err := h.dashboard.ConnectFanpage(c.Request.Context(), middlewares.UserId(c), body.PageId)
	if err != nil {
		c.Error(err)
		return
	}
	success(c, http.StatusCreated, gin.H{"fanpage": fanpage})
}

func (h *Handlers) DisconnectFanpage(c *gin.Context) {
	if err := h.dashboard.DisconnectFanpage(c.Request.Context(), middlewares.UserId(c), c.Param("id")); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Fanpage disconnected successfully"})
}

func (h *Handlers) RefreshFanpageToken(c *gin.Context) {
	fanpage, err := h.dashboard.RefreshFanpageToken(c.Request.Context(), middlewares.UserId(c), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	success(c, http.StatusOK, gin.H{"fanpage": fanpage})
}

func (h *Handlers) ListPosts(c *gin.Context) {
	page, limit := queryInt(c, "page", defaultPage), queryInt(c, "limit", defaultLimit)
	posts, err := h.dashboard.ListPosts(c.Request.Context(), middlewares.UserId(c), c.Param("id"), page, limit)
	if err != nil {
		c.Error(err)
		return
	}
	success(c, http.StatusOK, gin.H{"posts": posts.Items, "pagination": pagination(page, limit, posts.Total)})
}

type contentBody struct {
	Content string `json:"content"`
}

func (h *Handlers) CreatePost(c *gin.Context) {
	var body contentBody
	if !bind(c, &body) {
		return
	}
	post, err := h.dashboard.CreatePost(c.Request.Context(), middlewares.UserId(c), c.Param("fanpageId"), body.Content)
	if err != nil {
		c.Error(err)
		return
	}
	success(c, http.StatusCreated, gin.H{"post": post})
}

func (h *Handlers) UpdatePost(c *gin.Context) {
	var body contentBody
	if !bind(c, &body) {
		return
	}
	post, err := h.dashboard.UpdatePost(c.Request.Context(), middlewares.UserId(c), c.Param("id"), body.Content)
	if err != nil {
		c.Error(err)
		return
	}
	success(c, http.StatusOK, gin.H{"post": post})
}

func (h *Handlers) DeletePost(c *gin.Context) {
	if err := h.dashboard.DeletePost(c.Request.Context(), middlewares.UserId(c), c.Param("id")); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Post deleted successfully"})
}

func (h *Handlers) ListComments(c *gin.Context) {
	page, limit := queryInt(c, "page", defaultPage), queryInt(c, "limit", defaultLimit)
	comments, err := h.dashboard.ListComments(c.Request.Context(), middlewares.UserId(c), c.Param("postId"), page, limit)
	if err != nil {
		c.Error(err)
		return
	}
	success(c, http.StatusOK, gin.H{"comments": comments.Items, "pagination": pagination(page, limit, comments.Total)})
}

type messageBody struct {
	Message string `json:"message"`
}

func (h *Handlers) ReplyToComment(c *gin.Context) {
	var body messageBody
	if !bind(c, &body) {
		return
	}
	comment, err := h.dashboard.ReplyToComment(c.Request.Context(), middlewares.UserId(c), c.Param("id"), body.Message)
	if err != nil {
		c.Error(err)
		return
	}
	success(c, http.StatusCreated, gin.H{"comment": comment})
}

// HideComment hides by default, {"hidden": false} unhides.
func (h *Handlers) HideComment(c *gin.Context) {
	var body struct {
		Hidden *bool `json:"hidden"`
	}
	if c.Request.ContentLength > 0 && !bind(c, &body) {
		return
	}
	hidden := body.Hidden == nil || *body.Hidden
	comment, err := h.dashboard.HideComment(c.Request.Context(), middlewares.UserId(c), c.Param("id"), hidden)
	if err != nil {
		c.Error(err)
		return
	}
	success(c, http.StatusOK, gin.H{"comment": comment})
}

func (h *Handlers) ListMessages(c *gin.Context) {
	page, limit := queryInt(c, "page", defaultPage), queryInt(c, "limit", defaultLimit)
	messages, err := h.dashboard.ListMessages(c.Request.Context(), middlewares.UserId(c), c.Param("id"), c.Param("conversationId"), page, limit)
	if err != nil {
		c.Error(err)
		return
	}
	success(c, http.StatusOK, gin.H{"messages": messages.Items, "pagination": pagination(page, limit, messages.Total)})
}

func (h *Handlers) SendMessage(c *gin.Context) {
	var body messageBody
	if !bind(c, &body) {
		return
	}
	message, err := h.dashboard.SendMessage(c.Request.Context(), middlewares.UserId(c), c.Param("id"), c.Param("conversationId"), body.Message)
	if err != nil {
		c.Error(err)
		return
	}
	success(c, http.StatusCreated, gin.H{"message": message})
}

func (h *Handlers) FollowMessage(c *gin.Context) {
	var body struct {
		Followed bool `json:"followed"`
	}
	if !bind(c, &body) {
		return
	}
	message, err := h.dashboard.FollowMessage(c.Request.Context(), middlewares.UserId(c), c.Param("id"), body.Followed)
	if err != nil {
		c.Error(err)
		return
	}
	success(c, http.StatusOK, gin.H{"message": message})
}

func (h *Handlers) ListNotifications(c *gin.Context) {
	page, limit := queryInt(c, "page", defaultPage), queryInt(c, "limit", defaultLimit)
	userId := middlewares.UserId(c)
	notifications, err := h.dashboard.ListNotifications(c.Request.Context(), userId, page, limit)
	if err != nil {
		c.Error(err)
		return
	}
	unread, err := h.dashboard.UnreadNotifications(c.Request.Context(), userId)
	if err != nil {
		c.Error(err)
		return
	}
	success(c, http.StatusOK, gin.H{
		"notifications": notifications.Items,
		"unread":        unread,
		"pagination":    pagination(page, limit, notifications.Total),
	})
}

func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	n, err := h.dashboard.MarkNotificationRead(c.Request.Context(), middlewares.UserId(c), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	success(c, http.StatusOK, gin.H{"notification": n})
}
