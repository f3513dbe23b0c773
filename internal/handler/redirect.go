package handler

import (
	"net/http"
	"time"

	apperrors "shortlink-core/internal/errors"
	"shortlink-core/internal/model"
	"shortlink-core/internal/ratelimit"
	"shortlink-core/internal/recorder"
	"shortlink-core/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// VisitRecorder 跳转成功后异步记录访问
type VisitRecorder interface {
	Record(link *model.ShortLink, v recorder.Visit) bool
}

// RedirectHandler 短链接跳转、密码校验和预览
type RedirectHandler struct {
	links    *service.LinkService
	recorder VisitRecorder
	logger   *zap.SugaredLogger
}

func NewRedirectHandler(links *service.LinkService, rec VisitRecorder, logger *zap.SugaredLogger) *RedirectHandler {
	return &RedirectHandler{links: links, recorder: rec, logger: logger.Named("redirect_handler")}
}

// VerifyRequest 密码校验请求
type VerifyRequest struct {
	Password string `json:"password" binding:"required"`
}

// VerifyResponse 校验通过后返回跳转地址，由客户端自行跳转
type VerifyResponse struct {
	RedirectURL string `json:"redirect_url"`
}

// PreviewResponse 链接预览，受密码保护的链接不返回目标地址
type PreviewResponse struct {
	ShortCode         string     `json:"short_code"`
	OriginalURL       string     `json:"original_url,omitempty"`
	PasswordProtected bool       `json:"password_protected"`
	Status            string     `json:"status"`
	ClickCount        int64      `json:"click_count"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Redirect GET /r/:code
func (h *RedirectHandler) Redirect(c *gin.Context) {
	code := c.Param("code")
	link, target, err := h.links.Resolve(c.Request.Context(), code, nil)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Redirect(http.StatusFound, target)
	h.record(c, link)
}

// Verify POST /r/:code/verify
func (h *RedirectHandler) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	link, target, err := h.links.Resolve(c.Request.Context(), c.Param("code"), &req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, VerifyResponse{RedirectURL: target})
	h.record(c, link)
}

// Preview GET /r/:code/preview 不跳转也不记录访问
func (h *RedirectHandler) Preview(c *gin.Context) {
	link, err := h.links.Preview(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp := PreviewResponse{
		ShortCode:         link.ShortCode,
		PasswordProtected: link.IsPasswordProtected(),
		Status:            "ACTIVE",
		ClickCount:        link.ClickCount,
		ExpiresAt:         link.ExpiresAt,
		CreatedAt:         link.CreatedAt,
	}
	if !resp.PasswordProtected {
		resp.OriginalURL = link.OriginalURL
	}
	if err := h.links.Status(link); err != nil {
		_, resp.Status, _ = apperrors.Describe(err)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RedirectHandler) record(c *gin.Context, link *model.ShortLink) {
	h.recorder.Record(link, recorder.Visit{
		IP:        ratelimit.ClientKey(c.Request),
		UserAgent: c.Request.UserAgent(),
		Referer:   c.Request.Referer(),
		At:        time.Now(),
	})
}
