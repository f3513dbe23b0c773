package handler

import (
	"github.com/gin-gonic/gin"
)

// Middlewares 路由需要的中间件
type Middlewares struct {
	Auth          gin.HandlerFunc
	GeneralLimit  gin.HandlerFunc
	StrictLimit   gin.HandlerFunc
	RedirectLimit gin.HandlerFunc
}

// RegisterRoutes 注册全部路由
func RegisterRoutes(router *gin.Engine, redirect *RedirectHandler, links *LinkHandler, health *HealthHandler, mw Middlewares) {
	router.GET("/health", health.HealthCheck)

	// 跳转同样占用通用额度，再叠加跳转专用的短窗口
	r := router.Group("/r", mw.GeneralLimit, mw.RedirectLimit)
	{
		r.GET("/:code", redirect.Redirect)
		r.POST("/:code/verify", redirect.Verify)
		r.GET("/:code/preview", redirect.Preview)
	}

	api := router.Group("/api", mw.GeneralLimit, mw.Auth)
	{
		api.GET("/links/:code/stats", links.Stats)
	}

	// 修改类接口使用更严格的限流
	mutations := api.Group("", mw.StrictLimit)
	{
		mutations.POST("/links", links.Create)
		mutations.PATCH("/links/:code", links.Update)
		mutations.DELETE("/links/:code", links.Delete)
	}
}
