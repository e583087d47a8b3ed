package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/webdevhub/services"
	"github.com/cppla/webdevhub/utils"
)

// CaptchaIssuer creates captchas for the contact form.
type CaptchaIssuer interface {
	Generate() (id string, b64 string, err error)
}

// ContactController serves the public contact form and the admin inbox.
type ContactController struct {
	svc     *services.ContactService
	captcha CaptchaIssuer
	log     *zap.Logger
}

// NewContactController creates a ContactController. captcha may be nil when the gate is off.
func NewContactController(svc *services.ContactService, captcha CaptchaIssuer, log *zap.Logger) *ContactController {
	return &ContactController{svc: svc, captcha: captcha, log: log}
}

type contactRequest struct {
	Name          string `json:"name" binding:"required,min=2,max=100"`
	Email         string `json:"email" binding:"required,email"`
	Subject       string `json:"subject" binding:"required,min=5,max=200"`
	Message       string `json:"message" binding:"required,min=10,max=2000"`
	CaptchaID     string `json:"captchaId"`
	CaptchaAnswer string `json:"captchaAnswer"`
}

type replyRequest struct {
	ReplyMessage string `json:"replyMessage" binding:"required,min=10,max=2000"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending read replied"`
}

// Submit accepts a contact form message.
func (c *ContactController) Submit(ctx *gin.Context) {
	var req contactRequest
	if !bindJSON(ctx, &req) {
		return
	}
	msg, err := c.svc.Submit(ctx.Request.Context(), services.ContactInput{
		Name:          req.Name,
		Email:         req.Email,
		Subject:       req.Subject,
		Message:       req.Message,
		CaptchaID:     req.CaptchaID,
		CaptchaAnswer: req.CaptchaAnswer,
	}, services.Origin{IP: ctx.ClientIP(), UserAgent: ctx.Request.UserAgent()})
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}
	created(ctx, "Thank you for contacting us! We'll get back to you soon.", gin.H{
		"contact": gin.H{
			"id":        msg.ID,
			"name":      msg.Name,
			"email":     msg.Email,
			"subject":   msg.Subject,
			"createdAt": msg.CreatedAt,
		},
	})
}

// Captcha issues a captcha for the contact form.
func (c *ContactController) Captcha(ctx *gin.Context) {
	if c.captcha == nil || !c.svc.CaptchaRequired() {
		ok(ctx, "", gin.H{"enabled": false})
		return
	}
	id, b64, err := c.captcha.Generate()
	if err != nil {
		c.log.Error("captcha generation failed", zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, "Failed to generate captcha")
		return
	}
	ok(ctx, "", gin.H{"enabled": true, "captchaId": id, "image": b64})
}

// List pages the inbox.
func (c *ContactController) List(ctx *gin.Context) {
	page, size := pageParams(ctx)
	res, err := c.svc.List(ctx.Request.Context(), page, size, ctx.Query("status"))
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}
	ok(ctx, "", gin.H{"contacts": res.Contacts, "pagination": res.Pagination.H()})
}

// Get returns one message and marks it read.
func (c *ContactController) Get(ctx *gin.Context) {
	msg, err := c.svc.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}
	ok(ctx, "", gin.H{"contact": msg})
}

// Reply emails a response to the submitter.
func (c *ContactController) Reply(ctx *gin.Context) {
	var req replyRequest
	if !bindJSON(ctx, &req) {
		return
	}
	msg, err := c.svc.Reply(ctx.Request.Context(), ctx.Param("id"), req.ReplyMessage)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}
	ok(ctx, "Reply sent successfully", gin.H{"contact": msg})
}

// SetStatus overrides a message's status.
func (c *ContactController) SetStatus(ctx *gin.Context) {
	var req statusRequest
	if !bindJSON(ctx, &req) {
		return
	}
	msg, err := c.svc.SetStatus(ctx.Request.Context(), ctx.Param("id"), req.Status)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}
	ok(ctx, "Status updated successfully", gin.H{"contact": msg})
}

// Delete removes a message.
func (c *ContactController) Delete(ctx *gin.Context) {
	if err := c.svc.Delete(ctx.Request.Context(), ctx.Param("id")); err != nil {
		respondError(ctx, c.log, err)
		return
	}
	ok(ctx, "Contact message deleted successfully", nil)
}

// Stats counts the inbox by status.
func (c *ContactController) Stats(ctx *gin.Context) {
	stats, err := c.svc.Stats(ctx.Request.Context())
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}
	ok(ctx, "", gin.H{
		"total":      stats.Total,
		"pending":    stats.Pending,
		"read":       stats.Read,
		"replied":    stats.Replied,
		"recentWeek": stats.RecentWeek,
	})
}
