package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"phCareers/internal/api/middleware"
	"phCareers/internal/blocks"
	"phCareers/internal/database"
	"phCareers/internal/document"
	"phCareers/internal/pagestore"
	"phCareers/internal/render"
)

const publicPageCacheTTL = 5 * time.Minute

// PublicHandler 服务匿名访问的公共招聘页面与职位列表。
type PublicHandler struct {
	db         *gorm.DB
	store      *pagestore.Store
	normalizer *document.Normalizer
	renderer   *render.Renderer
	redis      redis.UniversalClient
	logger     *slog.Logger
}

// NewPublicHandler 构造公共页面处理器。redisClient 可以为 nil（单测，禁用缓存）。
func NewPublicHandler(
	db *gorm.DB,
	store *pagestore.Store,
	normalizer *document.Normalizer,
	renderer *render.Renderer,
	redisClient redis.UniversalClient,
	logger *slog.Logger,
) *PublicHandler {
	return &PublicHandler{
		db:         db,
		store:      store,
		normalizer: normalizer,
		renderer:   renderer,
		redis:      redisClient,
		logger:     logger,
	}
}

// GetPage 渲染公司的公共招聘页面。未发布的页面返回 404；
// 已标记发布但快照为空的旧数据走传统渲染路径。
func (h *PublicHandler) GetPage(c *gin.Context) {
	company, ok := h.companyBySlug(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	page, perPage := paginationParams(c)

	// 只缓存默认分页的首屏结果。
	cacheable := h.redis != nil && page == 1 && perPage == 10
	cacheKey := "page:public:" + strconv.FormatUint(uint64(company.ID), 10)
	if cacheable {
		if cached, err := h.redis.Get(ctx, cacheKey).Bytes(); err == nil {
			c.Data(http.StatusOK, "application/json; charset=utf-8", cached)
			return
		}
	}

	doc, meta, published, err := h.store.LoadPublished(ctx, company.ID)
	if err != nil {
		middleware.LoggerFromContext(c).Error("load published page failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	if !published {
		if !meta.Published {
			NotFound(c, "career page not found")
			return
		}
		// 历史数据：发布标记为真但快照为空，回落到默认骨架。
		doc = h.legacyDocument(company)
	}

	jobs, total, err := database.ListPublishedJobs(ctx, h.db, company.ID, page, perPage)
	if err != nil {
		middleware.LoggerFromContext(c).Error("load published jobs failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	tree, err := h.renderer.Render(doc, meta.Theme, runtimeData(jobs, page, perPage, total))
	if err != nil {
		middleware.LoggerFromContext(c).Error("render public page failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	body, err := json.Marshal(gin.H{
		"company": gin.H{"name": company.Name, "slug": company.Slug, "website": company.Website},
		"tree":    tree,
	})
	if err != nil {
		Internal(c, "internal error")
		return
	}

	if cacheable {
		if err := h.redis.Set(ctx, cacheKey, body, publicPageCacheTTL).Err(); err != nil {
			middleware.LoggerFromContext(c).Warn("cache public page failed", slog.Any("error", err))
		}
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// ListJobs 返回公司已发布职位的一页数据。
func (h *PublicHandler) ListJobs(c *gin.Context) {
	company, ok := h.companyBySlug(c)
	if !ok {
		return
	}

	page, perPage := paginationParams(c)
	jobs, total, err := database.ListPublishedJobs(c.Request.Context(), h.db, company.ID, page, perPage)
	if err != nil {
		middleware.LoggerFromContext(c).Error("list public jobs failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	data := runtimeData(jobs, page, perPage, total)
	c.JSON(http.StatusOK, gin.H{
		"items":      data.Jobs,
		"pagination": data.Pagination,
	})
}

// GetJob 返回单个已发布职位的详情，含完整描述。
func (h *PublicHandler) GetJob(c *gin.Context) {
	company, ok := h.companyBySlug(c)
	if !ok {
		return
	}

	jobID, err := strconv.ParseUint(c.Param("jobId"), 10, 64)
	if err != nil || jobID == 0 {
		BadRequest(c, "invalid job id")
		return
	}

	var job database.Job
	if err := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND company_id = ? AND published = ?", jobID, company.ID, true).
		First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "job not found")
			return
		}
		middleware.LoggerFromContext(c).Error("query public job failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":           job.ID,
		"title":        job.Title,
		"location":     job.Location,
		"department":   job.Department,
		"employment":   job.Employment,
		"salary_range": job.SalaryRange,
		"description":  job.Description,
	})
}

// legacyDocument 为没有快照的历史页面合成默认骨架：
// Hero 用公司名作标题，加一个职位列表区块，Footer 收尾。
func (h *PublicHandler) legacyDocument(company *database.Company) document.Document {
	seed := document.Document{
		Blocks: []document.Block{
			{Type: blocks.TypeHero, Props: blocks.Props{"title": company.Name}},
			{Type: blocks.TypeJobs, Props: blocks.Props{}},
		},
	}
	return h.normalizer.Normalize(seed, pagestore.OwnerID(company.ID))
}

func (h *PublicHandler) companyBySlug(c *gin.Context) (*database.Company, bool) {
	slug := c.Param("slug")
	if slug == "" {
		BadRequest(c, "missing slug")
		return nil, false
	}

	var company database.Company
	if err := h.db.WithContext(c.Request.Context()).Where("slug = ?", slug).First(&company).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "career page not found")
			return nil, false
		}
		middleware.LoggerFromContext(c).Error("query company by slug failed", slog.Any("error", err))
		Internal(c, "internal error")
		return nil, false
	}
	return &company, true
}
