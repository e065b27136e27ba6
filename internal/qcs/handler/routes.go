package handler

import (
	"net/http"

	"github.com/bitfantasy/qcs/internal/middleware"
	"github.com/bitfantasy/qcs/internal/qcs/access"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes 注册API、上传文件和运维接口
func RegisterRoutes(r *gin.Engine, h *Handlers) {
	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 照片文件
	r.GET("/uploads/*path", h.Upload.Serve)

	need := func(capability access.Capability) gin.HandlerFunc {
		return middleware.RequireCapability(h.gate, capability)
	}

	api := r.Group("/api")
	{
		// 认证 (无需登录)
		api.POST("/auth/login", h.Auth.Login)

		authorized := api.Group("")
		authorized.Use(middleware.JWTAuth(h.authn, h.logger))
		{
			authorized.GET("/auth/me", h.Auth.Me)
			authorized.POST("/auth/logout", h.Auth.Logout)

			// SSE 实时推送（支持 query param token）
			authorized.GET("/sse/events", h.SSE.Stream)

			issues := authorized.Group("/issues")
			{
				issues.GET("", need(access.IssueRead), h.Issue.List)
				issues.GET("/stats", need(access.IssueRead), h.Issue.Stats)
				issues.GET("/export/csv", need(access.IssueExport), h.Issue.ExportCSV)
				issues.GET("/export/xlsx", need(access.IssueExport), h.Issue.ExportXLSX)
				issues.GET("/:id", need(access.IssueRead), h.Issue.Get)
				issues.POST("", need(access.IssueCreate), h.Issue.Create)
				issues.PATCH("/:id/status", need(access.IssueManage), h.Issue.ChangeStatus)
				issues.PATCH("/:id/complete", need(access.IssueManage), h.Issue.MarkComplete)
				issues.PUT("/:id", need(access.IssueManage), h.Issue.Update)
				issues.POST("/:id/photos", need(access.IssueAttach), h.Issue.AttachPhotos)
				issues.POST("/:id/comments", need(access.IssueComment), h.Issue.AddComment)
				issues.DELETE("/:id", need(access.IssueManage), h.Issue.Delete)
			}

			suppliers := authorized.Group("/suppliers")
			{
				suppliers.GET("", h.Reference.ListSuppliers)
				suppliers.GET("/:id", h.Reference.GetSupplier)
				suppliers.POST("", need(access.ReferenceManage), h.Reference.CreateSupplier)
				suppliers.PUT("/:id", need(access.ReferenceManage), h.Reference.UpdateSupplier)
				suppliers.DELETE("/:id", need(access.ReferenceManage), h.Reference.DeactivateSupplier)
			}

			products := authorized.Group("/products")
			{
				products.GET("", h.Reference.ListProducts)
				products.GET("/:id", h.Reference.GetProduct)
				products.POST("", need(access.ReferenceManage), h.Reference.CreateProduct)
				products.PUT("/:id", need(access.ReferenceManage), h.Reference.UpdateProduct)
				products.DELETE("/:id", need(access.ReferenceManage), h.Reference.DeactivateProduct)
			}

			users := authorized.Group("/users", need(access.UserManage))
			{
				users.GET("", h.User.List)
				users.POST("", h.User.Create)
				users.DELETE("/:id", h.User.Deactivate)
			}
		}
	}
}
