package api

import (
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"phCareers/internal/api/middleware"
	"phCareers/internal/database"
	"phCareers/internal/storage"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// CompanyHandler 管理租户（公司）的增删改查。
type CompanyHandler struct {
	db                  *gorm.DB
	storage             *storage.Client
	logger              *slog.Logger
	maxCompaniesPerUser int
}

// NewCompanyHandler 构造公司处理器。storageClient 可以为 nil（单测）。
func NewCompanyHandler(db *gorm.DB, storageClient *storage.Client, logger *slog.Logger, maxCompaniesPerUser int) *CompanyHandler {
	return &CompanyHandler{
		db:                  db,
		storage:             storageClient,
		logger:              logger,
		maxCompaniesPerUser: maxCompaniesPerUser,
	}
}

type companyRequest struct {
	Name    string `json:"name" binding:"required,min=1,max=255"`
	Slug    string `json:"slug" binding:"required,min=2,max=128"`
	Website string `json:"website" binding:"omitempty,max=512"`
}

type companyResponse struct {
	ID      uint   `json:"id"`
	Name    string `json:"name"`
	Slug    string `json:"slug"`
	Website string `json:"website"`
}

func toCompanyResponse(company database.Company) companyResponse {
	return companyResponse{
		ID:      company.ID,
		Name:    company.Name,
		Slug:    company.Slug,
		Website: company.Website,
	}
}

// Create 创建公司并同时建立空的招聘页面记录。
func (h *CompanyHandler) Create(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req companyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	slug := strings.ToLower(strings.TrimSpace(req.Slug))
	if !slugPattern.MatchString(slug) {
		BadRequest(c, "slug must contain lowercase letters, digits and hyphens only")
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c).With(slog.Uint64("user_id", uint64(userID)))

	var count int64
	if err := h.db.WithContext(ctx).Model(&database.Company{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		logger.Error("count companies failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	if h.maxCompaniesPerUser > 0 && count >= int64(h.maxCompaniesPerUser) {
		Forbidden(c, "company quota exceeded")
		return
	}

	var existing database.Company
	if err := h.db.WithContext(ctx).Where("slug = ?", slug).First(&existing).Error; err == nil {
		Conflict(c, "slug already taken")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Error("slug lookup failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	company := database.Company{
		Name:    strings.TrimSpace(req.Name),
		Slug:    slug,
		Website: strings.TrimSpace(req.Website),
		UserID:  userID,
	}

	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&company).Error; err != nil {
			return err
		}
		return tx.Create(&database.CareerPage{CompanyID: company.ID}).Error
	})
	if err != nil {
		logger.Error("create company failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	logger.Info("company created",
		slog.Uint64("company_id", uint64(company.ID)),
		slog.String("slug", company.Slug),
	)
	c.JSON(http.StatusCreated, toCompanyResponse(company))
}

// List 返回当前用户拥有的全部公司。
func (h *CompanyHandler) List(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var companies []database.Company
	if err := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&companies).Error; err != nil {
		middleware.LoggerFromContext(c).Error("list companies failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	items := make([]companyResponse, 0, len(companies))
	for _, company := range companies {
		items = append(items, toCompanyResponse(company))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Get 返回单个公司详情。
func (h *CompanyHandler) Get(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	company, ok := h.ownedCompany(c, userID)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toCompanyResponse(*company))
}

// Update 修改公司的名称、Slug 或官网地址。
func (h *CompanyHandler) Update(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	company, ok := h.ownedCompany(c, userID)
	if !ok {
		return
	}

	var req companyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	slug := strings.ToLower(strings.TrimSpace(req.Slug))
	if !slugPattern.MatchString(slug) {
		BadRequest(c, "slug must contain lowercase letters, digits and hyphens only")
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	if slug != company.Slug {
		var existing database.Company
		if err := h.db.WithContext(ctx).Where("slug = ? AND id <> ?", slug, company.ID).First(&existing).Error; err == nil {
			Conflict(c, "slug already taken")
			return
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("slug lookup failed", slog.Any("error", err))
			Internal(c, "internal error")
			return
		}
	}

	updates := map[string]any{
		"name":    strings.TrimSpace(req.Name),
		"slug":    slug,
		"website": strings.TrimSpace(req.Website),
	}
	if err := h.db.WithContext(ctx).Model(company).Updates(updates).Error; err != nil {
		logger.Error("update company failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, toCompanyResponse(*company))
}

// Delete 删除公司及其级联数据，并清理 MinIO 中的素材。
func (h *CompanyHandler) Delete(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	company, ok := h.ownedCompany(c, userID)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c).With(slog.Uint64("company_id", uint64(company.ID)))

	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("company_id = ?", company.ID).Delete(&database.Application{}).Error; err != nil {
			return err
		}
		if err := tx.Where("company_id = ?", company.ID).Delete(&database.Job{}).Error; err != nil {
			return err
		}
		if err := tx.Where("company_id = ?", company.ID).Delete(&database.CareerPage{}).Error; err != nil {
			return err
		}
		return tx.Delete(company).Error
	})
	if err != nil {
		logger.Error("delete company failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	// 素材清理失败不影响删除结果，只记录日志。
	if h.storage != nil {
		prefix := "company-assets/" + strconv.FormatUint(uint64(company.ID), 10) + "/"
		if err := h.storage.DeleteAssetPrefix(ctx, prefix); err != nil {
			logger.Error("cleanup company assets failed", slog.Any("error", err))
		}
	}

	logger.Info("company deleted")
	c.Status(http.StatusNoContent)
}

// ownedCompany 解析路径参数并校验归属，失败时已写好响应。
func (h *CompanyHandler) ownedCompany(c *gin.Context, userID uint) (*database.Company, bool) {
	companyID, err := strconv.ParseUint(c.Param("companyId"), 10, 64)
	if err != nil || companyID == 0 {
		BadRequest(c, "invalid company id")
		return nil, false
	}

	var company database.Company
	if err := h.db.WithContext(c.Request.Context()).First(&company, companyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "company not found")
			return nil, false
		}
		middleware.LoggerFromContext(c).Error("query company failed", slog.Any("error", err))
		Internal(c, "internal error")
		return nil, false
	}
	if company.UserID != userID {
		Forbidden(c, "company belongs to another user")
		return nil, false
	}
	return &company, true
}
