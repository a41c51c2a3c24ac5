package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"phCareers/internal/api/middleware"
	"phCareers/internal/auth"
	"phCareers/internal/blocks"
	"phCareers/internal/config"
	"phCareers/internal/document"
	"phCareers/internal/pagestore"
	"phCareers/internal/render"
	"phCareers/internal/storage"
)

// RegisterRoutes 注册 API 路由，不包含 /api 前缀。
func RegisterRoutes(
	router *gin.Engine,
	cfg *config.Config,
	db *gorm.DB,
	asynqClient *asynq.Client,
	authService *auth.Service,
	redisClient *redis.Client,
	logger *slog.Logger,
	storageClient *storage.Client,
) {
	registry := blocks.NewRegistry()
	normalizer := document.NewNormalizer(registry, logger)
	renderer := render.NewRenderer(registry, logger)
	invalidator := pagestore.NewRedisInvalidator(redisClient)
	store := pagestore.NewStore(db, normalizer, invalidator, logger)
	scanner := NewClamdScanner(cfg.Clamd.Addr)

	authHandler := NewAuthHandler(
		db, authService, redisClient, logger,
		cfg.Limits.LoginPerHour, cfg.Limits.LoginLockThreshold, cfg.Limits.LoginLockTTL,
		cfg.API.CookieDomain,
	)
	companyHandler := NewCompanyHandler(db, storageClient, logger, cfg.Limits.MaxCompaniesPerUser)
	pageHandler := NewPageHandler(db, registry, normalizer, store, renderer, logger)
	publicHandler := NewPublicHandler(db, store, normalizer, renderer, redisClient, logger)
	jobHandler := NewJobHandler(db, asynqClient, storageClient, logger,
		cfg.Limits.MaxJobsPerCompany, int64(cfg.Limits.ResumeUploadMaxBytes))
	applicationHandler := NewApplicationHandler(db, storageClient, scanner, redisClient, logger,
		cfg.Limits.ApplicationsPerIPHour, int64(cfg.Limits.ResumeUploadMaxBytes))
	assetHandler := NewAssetHandler(db, storageClient, scanner, registry, normalizer, store, logger,
		int64(cfg.Limits.AssetUploadMaxBytes))
	wsHandler := NewWsHandler(redisClient, authService, logger, cfg.API.AllowedOrigins)
	authMiddleware := middleware.AuthMiddleware(authService)

	v1 := router.Group("/v1")
	{
		v1.GET("/ws", wsHandler.HandleConnection)

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/logout", authMiddleware, authHandler.Logout)
			authGroup.POST("/change-password", authMiddleware, authHandler.ChangePassword)
		}

		// 匿名访问的公共招聘页面。
		careersGroup := v1.Group("/careers")
		{
			careersGroup.GET("/:slug", publicHandler.GetPage)
			careersGroup.GET("/:slug/jobs", publicHandler.ListJobs)
			careersGroup.GET("/:slug/jobs/:jobId", publicHandler.GetJob)
			careersGroup.POST("/:slug/jobs/:jobId/apply", applicationHandler.Apply)
		}

		companiesGroup := v1.Group("/companies")
		companiesGroup.Use(authMiddleware)
		{
			companiesGroup.POST("", companyHandler.Create)
			companiesGroup.GET("", companyHandler.List)
			companiesGroup.GET("/:companyId", companyHandler.Get)
			companiesGroup.PUT("/:companyId", companyHandler.Update)
			companiesGroup.DELETE("/:companyId", companyHandler.Delete)

			pageGroup := companiesGroup.Group("/:companyId/page")
			{
				pageGroup.GET("", pageHandler.GetDraft)
				pageGroup.PUT("", pageHandler.ReplaceDraft)
				pageGroup.POST("/reset", pageHandler.ResetDraft)
				pageGroup.GET("/preview", pageHandler.Preview)
				pageGroup.POST("/publish", pageHandler.Publish)
				pageGroup.POST("/unpublish", pageHandler.Unpublish)
				pageGroup.PUT("/theme", pageHandler.UpdateTheme)

				pageGroup.POST("/blocks", pageHandler.AddBlock)
				pageGroup.DELETE("/blocks/:blockId", pageHandler.DeleteBlock)
				pageGroup.POST("/blocks/:blockId/duplicate", pageHandler.DuplicateBlock)
				pageGroup.POST("/blocks/:blockId/move", pageHandler.MoveBlock)
				pageGroup.PUT("/blocks/:blockId/props", pageHandler.UpdateBlockProps)

				pageGroup.POST("/assets/:kind", assetHandler.Upload)
				pageGroup.DELETE("/assets/:kind", assetHandler.Remove)
			}

			jobsGroup := companiesGroup.Group("/:companyId/jobs")
			{
				jobsGroup.POST("", jobHandler.Create)
				jobsGroup.GET("", jobHandler.List)
				jobsGroup.PUT("/:jobId", jobHandler.Update)
				jobsGroup.DELETE("/:jobId", jobHandler.Delete)
				jobsGroup.POST("/import", jobHandler.ImportCSV)
			}

			applicationsGroup := companiesGroup.Group("/:companyId/applications")
			{
				applicationsGroup.GET("", applicationHandler.List)
				applicationsGroup.PUT("/:applicationId/status", applicationHandler.UpdateStatus)
				applicationsGroup.GET("/:applicationId/resume-link", applicationHandler.ResumeLink)
			}
		}
	}
}
