package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"phCareers/internal/api/middleware"
	"phCareers/internal/blocks"
	"phCareers/internal/database"
	"phCareers/internal/document"
	"phCareers/internal/editor"
	"phCareers/internal/pagestore"
	"phCareers/internal/storage"
)

// 每种素材位允许的上传格式。
var assetContentTypes = map[string]map[string]string{
	"logo": {
		"image/png":     ".png",
		"image/jpeg":    ".jpg",
		"image/webp":    ".webp",
		"image/svg+xml": ".svg",
	},
	"banner": {
		"image/png":  ".png",
		"image/jpeg": ".jpg",
		"image/webp": ".webp",
	},
	"video": {
		"video/mp4":  ".mp4",
		"video/webm": ".webm",
	},
}

// AssetHandler 管理页面级素材（Logo/Banner/视频）的上传与移除，
// 并在素材变化后按加法规则重新注入 Hero 区块。
type AssetHandler struct {
	db          *gorm.DB
	storage     *storage.Client
	scanner     VirusScanner
	registry    *blocks.Registry
	normalizer  *document.Normalizer
	store       *pagestore.Store
	logger      *slog.Logger
	uploadLimit int64
}

// NewAssetHandler 构造素材处理器。
func NewAssetHandler(
	db *gorm.DB,
	storageClient *storage.Client,
	scanner VirusScanner,
	registry *blocks.Registry,
	normalizer *document.Normalizer,
	store *pagestore.Store,
	logger *slog.Logger,
	uploadLimit int64,
) *AssetHandler {
	return &AssetHandler{
		db:          db,
		storage:     storageClient,
		scanner:     scanner,
		registry:    registry,
		normalizer:  normalizer,
		store:       store,
		logger:      logger,
		uploadLimit: uploadLimit,
	}
}

// Upload 接收一种素材位的文件，扫描后写入公开 Bucket，
// 更新页面资产并把新 URL 注入草稿的 Hero 区块。
func (h *AssetHandler) Upload(c *gin.Context) {
	companyID, userID, ok := h.assetScope(c)
	if !ok {
		return
	}

	kind := c.Param("kind")
	allowed, knownKind := assetContentTypes[kind]
	if !knownKind {
		BadRequest(c, "unknown asset kind")
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file")
		return
	}
	if h.uploadLimit > 0 && file.Size > h.uploadLimit {
		BadRequest(c, "file too large")
		return
	}
	contentType := file.Header.Get("Content-Type")
	extension, supported := allowed[contentType]
	if !supported {
		BadRequest(c, "unsupported file format for "+kind)
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c).With(
		slog.Uint64("company_id", uint64(companyID)),
		slog.String("kind", kind),
	)

	reader, err := file.Open()
	if err != nil {
		Internal(c, "failed to open file")
		return
	}
	scanErr := h.scanner.Scan(reader)
	reader.Close()
	if scanErr != nil {
		if errors.Is(scanErr, ErrMaliciousFile) {
			BadRequest(c, "malicious file detected")
			return
		}
		logger.Error("scan asset failed", slog.Any("error", scanErr))
		Internal(c, "failed to scan file")
		return
	}

	reader, err = file.Open()
	if err != nil {
		Internal(c, "failed to reopen file")
		return
	}
	defer reader.Close()

	objectKey := fmt.Sprintf("company-assets/%d/%s-%s%s", companyID, kind, uuid.NewString(), extension)
	assetURL, err := h.storage.UploadAsset(ctx, objectKey, reader, file.Size, contentType)
	if err != nil {
		logger.Error("upload asset failed", slog.Any("error", err))
		Internal(c, "failed to upload file")
		return
	}

	assets, ok2 := h.applyAssetChange(c, companyID, userID, kind, assetURL)
	if !ok2 {
		return
	}

	logger.Info("asset uploaded", slog.String("object_key", objectKey))
	c.JSON(http.StatusCreated, gin.H{"url": assetURL, "assets": assets})
}

// Remove 清除一种素材位，删除对象并从 Hero 中撤回自动注入的 URL。
func (h *AssetHandler) Remove(c *gin.Context) {
	companyID, userID, ok := h.assetScope(c)
	if !ok {
		return
	}

	kind := c.Param("kind")
	if _, knownKind := assetContentTypes[kind]; !knownKind {
		BadRequest(c, "unknown asset kind")
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c).With(
		slog.Uint64("company_id", uint64(companyID)),
		slog.String("kind", kind),
	)

	// 先查出旧 URL 以便删除对象。
	_, meta, err := h.store.LoadDraft(ctx, companyID, userID)
	if err != nil {
		h.respondStoreError(c, err)
		return
	}
	oldURL := assetField(meta.Assets, kind)

	assets, ok2 := h.applyAssetChange(c, companyID, userID, kind, "")
	if !ok2 {
		return
	}

	if oldURL != "" {
		if key := h.storage.AssetKeyFromURL(oldURL); key != "" {
			if err := h.storage.DeleteAsset(ctx, key); err != nil {
				logger.Error("delete asset object failed", slog.Any("error", err))
			}
		}
	}

	logger.Info("asset removed")
	c.JSON(http.StatusOK, gin.H{"assets": assets})
}

// applyAssetChange 更新一种素材位并完成草稿注入与持久化。
// 失败时已写好响应。
func (h *AssetHandler) applyAssetChange(c *gin.Context, companyID, userID uint, kind, url string) (pagestore.Assets, bool) {
	ctx := c.Request.Context()

	session := editor.NewSession(h.registry, h.normalizer, h.store, companyID, userID, h.logger)
	if err := session.Start(ctx); err != nil {
		h.respondStoreError(c, err)
		return pagestore.Assets{}, false
	}

	assets := session.Assets()
	switch kind {
	case "logo":
		assets.LogoURL = url
	case "banner":
		assets.BannerURL = url
	case "video":
		assets.VideoURL = url
	}

	session.UpdateAssets(assets)
	if err := session.SaveDraft(ctx); err != nil {
		h.respondStoreError(c, err)
		return pagestore.Assets{}, false
	}
	if err := h.store.UpdateAssets(ctx, companyID, userID, assets); err != nil {
		h.respondStoreError(c, err)
		return pagestore.Assets{}, false
	}
	return assets, true
}

func assetField(assets pagestore.Assets, kind string) string {
	switch kind {
	case "logo":
		return assets.LogoURL
	case "banner":
		return assets.BannerURL
	case "video":
		return assets.VideoURL
	}
	return ""
}

func (h *AssetHandler) assetScope(c *gin.Context) (companyID uint, userID uint, ok bool) {
	userID, ok = userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return 0, 0, false
	}
	parsed, err := strconv.ParseUint(c.Param("companyId"), 10, 64)
	if err != nil || parsed == 0 {
		BadRequest(c, "invalid company id")
		return 0, 0, false
	}

	var company database.Company
	if err := h.db.WithContext(c.Request.Context()).First(&company, parsed).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "company not found")
			return 0, 0, false
		}
		middleware.LoggerFromContext(c).Error("query company failed", slog.Any("error", err))
		Internal(c, "internal error")
		return 0, 0, false
	}
	if company.UserID != userID {
		Forbidden(c, "company belongs to another user")
		return 0, 0, false
	}
	return uint(parsed), userID, true
}

func (h *AssetHandler) respondStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pagestore.ErrNotFound):
		NotFound(c, "career page not found")
	case errors.Is(err, pagestore.ErrUnauthorized):
		Forbidden(c, "career page belongs to another user")
	default:
		middleware.LoggerFromContext(c).Error("asset operation failed", slog.Any("error", err))
		Internal(c, "internal error")
	}
}
