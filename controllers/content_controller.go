package controllers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/webdevhub/services"
)

// ContentController serves blog posts or forum threads, depending on the service's kind.
type ContentController struct {
	svc  *services.ContentService
	kind services.ContentKind
	log  *zap.Logger
}

// NewContentController creates a controller for svc's content kind.
func NewContentController(svc *services.ContentService, log *zap.Logger) *ContentController {
	return &ContentController{svc: svc, kind: svc.Kind(), log: log}
}

type itemRequest struct {
	Title       string   `json:"title" binding:"required,max=200"`
	Content     string   `json:"content" binding:"required"`
	Image       string   `json:"image" binding:"omitempty,url"`
	Tags        []string `json:"tags" binding:"omitempty,max=20,dive,max=30"`
	IsPublished *bool    `json:"isPublished"`
	Category    string   `json:"category" binding:"omitempty,max=50"`
}

func (r itemRequest) input() services.ItemInput {
	return services.ItemInput{
		Title:     r.Title,
		Body:      r.Content,
		ImageURL:  r.Image,
		Tags:      r.Tags,
		Published: r.IsPublished,
		Category:  r.Category,
	}
}

type engagementRequest struct {
	Text string `json:"text" binding:"required"`
}

type moderationRequest struct {
	IsPinned *bool `json:"isPinned"`
	IsLocked *bool `json:"isLocked"`
}

// List returns one page of items.
func (c *ContentController) List(ctx *gin.Context) {
	page, size := pageParams(ctx)
	res, err := c.svc.List(ctx.Request.Context(), services.ListParams{
		Page:     page,
		PageSize: size,
		Category: ctx.Query("category"),
	})
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}
	ok(ctx, "", gin.H{c.kind.Keys: res.Items, "pagination": res.Pagination.H()})
}

// ListByAuthor returns one page of the items written by user :id.
func (c *ContentController) ListByAuthor(ctx *gin.Context) {
	page, size := pageParams(ctx)
	res, err := c.svc.ListByAuthor(ctx.Request.Context(), ctx.Param("id"), page, size)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}
	ok(ctx, "", gin.H{c.kind.Keys: res.Items, "pagination": res.Pagination.H()})
}

// Get returns one item and counts the view.
func (c *ContentController) Get(ctx *gin.Context) {
	item, err := c.svc.Get(ctx.Request.Context(), ctx.Param("id"), getUserID(ctx))
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}
	ok(ctx, "", gin.H{c.kind.Key: item})
}

// Create stores a new item authored by the caller.
func (c *ContentController) Create(ctx *gin.Context) {
	var req itemRequest
	if !bindJSON(ctx, &req) {
		return
	}
	item, err := c.svc.Create(ctx.Request.Context(), getUserID(ctx), req.input())
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}
	created(ctx, c.kind.Noun+" created successfully", gin.H{c.kind.Key: item})
}

// Update edits an item the caller authored.
func (c *ContentController) Update(ctx *gin.Context) {
	var req itemRequest
	if !bindJSON(ctx, &req) {
		return
	}
	item, err := c.svc.Update(ctx.Request.Context(), ctx.Param("id"), getUserID(ctx), req.input())
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}
	ok(ctx, c.kind.Noun+" updated successfully", gin.H{c.kind.Key: item})
}

// Delete removes an item the caller authored.
func (c *ContentController) Delete(ctx *gin.Context) {
	if err := c.svc.Delete(ctx.Request.Context(), ctx.Param("id"), getUserID(ctx)); err != nil {
		respondError(ctx, c.log, err)
		return
	}
	ok(ctx, c.kind.Noun+" deleted successfully", nil)
}

// AddEngagement posts a comment or reply.
func (c *ContentController) AddEngagement(ctx *gin.Context) {
	var req engagementRequest
	if !bindJSON(ctx, &req) {
		return
	}
	e, err := c.svc.AddEngagement(ctx.Request.Context(), ctx.Param("id"), getUserID(ctx), req.Text)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}
	created(ctx, c.kind.EngagementNoun+" added successfully", gin.H{c.kind.EngagementKey: e})
}

// RemoveEngagement deletes a comment or reply.
func (c *ContentController) RemoveEngagement(ctx *gin.Context) {
	err := c.svc.RemoveEngagement(ctx.Request.Context(), ctx.Param("id"), ctx.Param("engagementId"), getUserID(ctx))
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}
	ok(ctx, c.kind.EngagementNoun+" deleted successfully", nil)
}

// Categories lists the categories in use.
func (c *ContentController) Categories(ctx *gin.Context) {
	cats, err := c.svc.Categories(ctx.Request.Context())
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}
	ok(ctx, "", gin.H{"categories": cats})
}

// Moderate pins or locks an item. Admin only.
func (c *ContentController) Moderate(ctx *gin.Context) {
	var req moderationRequest
	if !bindJSON(ctx, &req) {
		return
	}
	item, err := c.svc.Moderate(ctx.Request.Context(), ctx.Param("id"), req.IsPinned, req.IsLocked)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}
	ok(ctx, c.kind.Noun+" updated successfully", gin.H{c.kind.Key: item})
}
