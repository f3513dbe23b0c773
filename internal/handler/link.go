package handler

import (
	"net/http"
	"strings"
	"time"

	"shortlink-core/internal/model"
	"shortlink-core/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LinkHandler 链接所有者的管理接口
type LinkHandler struct {
	links   *service.LinkService
	baseURL string
	logger  *zap.SugaredLogger
}

func NewLinkHandler(links *service.LinkService, baseURL string, logger *zap.SugaredLogger) *LinkHandler {
	return &LinkHandler{
		links:   links,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.Named("link_handler"),
	}
}

// CreateLinkRequest 创建短链接请求
type CreateLinkRequest struct {
	URL       string     `json:"url" binding:"required"`
	Alias     string     `json:"alias"`
	Password  string     `json:"password"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// UpdateLinkRequest 修改短链接请求，未出现的字段保持不变
type UpdateLinkRequest struct {
	URL         *string    `json:"url"`
	Password    *string    `json:"password"`
	ExpiresAt   *time.Time `json:"expires_at"`
	ClearExpiry bool       `json:"clear_expiry"`
	IsActive    *bool      `json:"is_active"`
	ImageRef    *string    `json:"image_ref"`
}

// LinkResponse 对外展示的链接信息，不包含密码哈希
type LinkResponse struct {
	ShortCode         string     `json:"short_code"`
	ShortURL          string     `json:"short_url"`
	OriginalURL       string     `json:"original_url"`
	CustomAlias       bool       `json:"custom_alias"`
	IsActive          bool       `json:"is_active"`
	PasswordProtected bool       `json:"password_protected"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	ClickCount        int64      `json:"click_count"`
	ImageRef          string     `json:"image_ref,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

func (h *LinkHandler) toResponse(link *model.ShortLink) LinkResponse {
	return LinkResponse{
		ShortCode:         link.ShortCode,
		ShortURL:          h.baseURL + "/r/" + link.ShortCode,
		OriginalURL:       link.OriginalURL,
		CustomAlias:       link.CustomAlias,
		IsActive:          link.IsActive,
		PasswordProtected: link.IsPasswordProtected(),
		ExpiresAt:         link.ExpiresAt,
		ClickCount:        link.ClickCount,
		ImageRef:          link.ImageRef,
		CreatedAt:         link.CreatedAt,
	}
}

// Create POST /api/links
func (h *LinkHandler) Create(c *gin.Context) {
	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	link, err := h.links.Create(c.Request.Context(), actorFrom(c), service.CreateInput{
		URL:       req.URL,
		Alias:     req.Alias,
		Password:  req.Password,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, h.toResponse(link))
}

// Update PATCH /api/links/:code
func (h *LinkHandler) Update(c *gin.Context) {
	var req UpdateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	link, err := h.links.Update(c.Request.Context(), actorFrom(c), c.Param("code"), service.UpdateInput{
		URL:         req.URL,
		Password:    req.Password,
		ExpiresAt:   req.ExpiresAt,
		ClearExpiry: req.ClearExpiry,
		IsActive:    req.IsActive,
		ImageRef:    req.ImageRef,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, h.toResponse(link))
}

// Delete DELETE /api/links/:code
func (h *LinkHandler) Delete(c *gin.Context) {
	if err := h.links.Delete(c.Request.Context(), actorFrom(c), c.Param("code")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Stats GET /api/links/:code/stats
func (h *LinkHandler) Stats(c *gin.Context) {
	summary, err := h.links.Summary(c.Request.Context(), actorFrom(c), c.Param("code"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
