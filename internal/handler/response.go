package handler

import (
	apperrors "shortlink-core/internal/errors"
	"shortlink-core/internal/middleware"
	"shortlink-core/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError 按统一格式写入错误响应，非调用方导致的错误额外记录日志
func respondError(c *gin.Context, logger *zap.SugaredLogger, err error) {
	status, body := apperrors.NewBody(err, c.Request.URL.Path)
	if !apperrors.IsClientError(err) {
		logger.Errorf("%s %s 处理失败: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, logger *zap.SugaredLogger, err error) {
	respondError(c, logger, apperrors.NewBusinessError(apperrors.CodeBadRequest, "无效的请求数据: "+err.Error(), err))
}

// actorFrom 从认证中间件写入的上下文中取出当前用户
func actorFrom(c *gin.Context) service.Actor {
	return service.Actor{
		UserID: c.GetUint(middleware.ContextUserID),
		Role:   c.GetString(middleware.ContextRole),
	}
}
