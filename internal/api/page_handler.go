package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"phCareers/internal/api/middleware"
	"phCareers/internal/blocks"
	"phCareers/internal/database"
	"phCareers/internal/document"
	"phCareers/internal/editor"
	"phCareers/internal/pagestore"
	"phCareers/internal/render"
)

// PageHandler 暴露招聘页面的编辑接口：草稿读写、区块操作、
// 主题设置与发布控制。
type PageHandler struct {
	db         *gorm.DB
	registry   *blocks.Registry
	normalizer *document.Normalizer
	store      *pagestore.Store
	renderer   *render.Renderer
	logger     *slog.Logger
}

// NewPageHandler 构造页面处理器。
func NewPageHandler(
	db *gorm.DB,
	registry *blocks.Registry,
	normalizer *document.Normalizer,
	store *pagestore.Store,
	renderer *render.Renderer,
	logger *slog.Logger,
) *PageHandler {
	return &PageHandler{
		db:         db,
		registry:   registry,
		normalizer: normalizer,
		store:      store,
		renderer:   renderer,
		logger:     logger,
	}
}

type draftResponse struct {
	Document json.RawMessage    `json:"document"`
	Meta     pagestore.PageMeta `json:"meta"`
}

// GetDraft 返回当前草稿文档与页面元信息。
func (h *PageHandler) GetDraft(c *gin.Context) {
	companyID, userID, ok := h.pageScope(c)
	if !ok {
		return
	}

	doc, meta, err := h.store.LoadDraft(c.Request.Context(), companyID, userID)
	if err != nil {
		h.respondPageError(c, err)
		return
	}

	raw, err := document.Marshal(doc)
	if err != nil {
		middleware.LoggerFromContext(c).Error("marshal draft failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	c.JSON(http.StatusOK, draftResponse{Document: json.RawMessage(raw), Meta: meta})
}

// ReplaceDraft 用请求体整体替换草稿并立即保存。
func (h *PageHandler) ReplaceDraft(c *gin.Context) {
	companyID, userID, ok := h.pageScope(c)
	if !ok {
		return
	}

	raw, err := c.GetRawData()
	if err != nil {
		BadRequest(c, "unreadable request body")
		return
	}

	session, ok := h.startSession(c, companyID, userID)
	if !ok {
		return
	}
	if err := session.ReplaceDocument(raw); err != nil {
		BadRequest(c, "document is not recognizable")
		return
	}
	h.saveAndRespond(c, session)
}

type addBlockRequest struct {
	Type     string `json:"type" binding:"required"`
	Position *int   `json:"position"`
}

// AddBlock 在草稿中插入一个新区块。
func (h *PageHandler) AddBlock(c *gin.Context) {
	companyID, userID, ok := h.pageScope(c)
	if !ok {
		return
	}

	var req addBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	position := -1
	if req.Position != nil {
		position = *req.Position
	}

	session, ok := h.startSession(c, companyID, userID)
	if !ok {
		return
	}
	if err := session.AddBlock(blocks.Type(req.Type), position); err != nil {
		if errors.Is(err, blocks.ErrUnknownType) {
			BadRequest(c, "unknown block type")
			return
		}
		h.respondPageError(c, err)
		return
	}
	h.saveAndRespond(c, session)
}

// DeleteBlock 删除草稿中的一个区块。
func (h *PageHandler) DeleteBlock(c *gin.Context) {
	companyID, userID, ok := h.pageScope(c)
	if !ok {
		return
	}

	session, ok := h.startSession(c, companyID, userID)
	if !ok {
		return
	}
	if err := session.DeleteBlock(c.Param("blockId")); err != nil {
		h.respondPageError(c, err)
		return
	}
	h.saveAndRespond(c, session)
}

// DuplicateBlock 在原区块之后插入副本。
func (h *PageHandler) DuplicateBlock(c *gin.Context) {
	companyID, userID, ok := h.pageScope(c)
	if !ok {
		return
	}

	session, ok := h.startSession(c, companyID, userID)
	if !ok {
		return
	}
	if err := session.DuplicateBlock(c.Param("blockId")); err != nil {
		h.respondPageError(c, err)
		return
	}
	h.saveAndRespond(c, session)
}

type moveBlockRequest struct {
	To int `json:"to"`
}

// MoveBlock 把区块移动到目标下标。
func (h *PageHandler) MoveBlock(c *gin.Context) {
	companyID, userID, ok := h.pageScope(c)
	if !ok {
		return
	}

	var req moveBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	session, ok := h.startSession(c, companyID, userID)
	if !ok {
		return
	}
	if err := session.MoveBlock(c.Param("blockId"), req.To); err != nil {
		h.respondPageError(c, err)
		return
	}
	h.saveAndRespond(c, session)
}

// UpdateBlockProps 覆盖区块配置。
func (h *PageHandler) UpdateBlockProps(c *gin.Context) {
	companyID, userID, ok := h.pageScope(c)
	if !ok {
		return
	}

	var props blocks.Props
	if err := c.ShouldBindJSON(&props); err != nil {
		BadRequest(c, err.Error())
		return
	}

	session, ok := h.startSession(c, companyID, userID)
	if !ok {
		return
	}
	if err := session.UpdateProps(c.Param("blockId"), props); err != nil {
		h.respondPageError(c, err)
		return
	}
	h.saveAndRespond(c, session)
}

// ResetDraft 清空草稿，保存后得到默认的 Hero+Footer 骨架。
func (h *PageHandler) ResetDraft(c *gin.Context) {
	companyID, userID, ok := h.pageScope(c)
	if !ok {
		return
	}

	session, ok := h.startSession(c, companyID, userID)
	if !ok {
		return
	}
	session.Reset()
	h.saveAndRespond(c, session)
}

// Publish 把最近保存的草稿复制到已发布槽位。
func (h *PageHandler) Publish(c *gin.Context) {
	companyID, userID, ok := h.pageScope(c)
	if !ok {
		return
	}

	if err := h.store.Publish(c.Request.Context(), companyID, userID); err != nil {
		h.respondPageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"published": true})
}

// Unpublish 下线公共页面，保留已发布快照。
func (h *PageHandler) Unpublish(c *gin.Context) {
	companyID, userID, ok := h.pageScope(c)
	if !ok {
		return
	}

	if err := h.store.Unpublish(c.Request.Context(), companyID, userID); err != nil {
		h.respondPageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"published": false})
}

type themeRequest struct {
	PrimaryColor   string `json:"primary_color"`
	SecondaryColor string `json:"secondary_color"`
}

// UpdateTheme 修改主题色。空值表示回退到默认色。
func (h *PageHandler) UpdateTheme(c *gin.Context) {
	companyID, userID, ok := h.pageScope(c)
	if !ok {
		return
	}

	var req themeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	theme := render.Theme{
		PrimaryColor:   req.PrimaryColor,
		SecondaryColor: req.SecondaryColor,
	}
	if err := h.store.UpdateTheme(c.Request.Context(), companyID, userID, theme); err != nil {
		h.respondPageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"theme": theme})
}

// Preview 渲染草稿文档，供编辑器内的预览页签使用。
func (h *PageHandler) Preview(c *gin.Context) {
	companyID, userID, ok := h.pageScope(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	doc, meta, err := h.store.LoadDraft(ctx, companyID, userID)
	if err != nil {
		h.respondPageError(c, err)
		return
	}

	// 预览面向编辑者，未发布职位也要能看到效果。
	jobs, err := database.ListAllJobs(ctx, h.db, companyID)
	if err != nil {
		middleware.LoggerFromContext(c).Error("load jobs for preview failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	perPage := len(jobs)
	if perPage == 0 {
		perPage = 1
	}
	tree, err := h.renderer.Render(doc, meta.Theme, runtimeData(jobs, 1, perPage, int64(len(jobs))))
	if err != nil {
		middleware.LoggerFromContext(c).Error("render preview failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	c.JSON(http.StatusOK, tree)
}

func (h *PageHandler) startSession(c *gin.Context, companyID, userID uint) (*editor.Session, bool) {
	session := editor.NewSession(h.registry, h.normalizer, h.store, companyID, userID, h.logger)
	if err := session.Start(c.Request.Context()); err != nil {
		h.respondPageError(c, err)
		return nil, false
	}
	return session, true
}

func (h *PageHandler) saveAndRespond(c *gin.Context, session *editor.Session) {
	if err := session.SaveDraft(c.Request.Context()); err != nil {
		h.respondPageError(c, err)
		return
	}

	doc := session.Document()
	raw, err := document.Marshal(doc)
	if err != nil {
		middleware.LoggerFromContext(c).Error("marshal draft failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"document": json.RawMessage(raw)})
}

func (h *PageHandler) pageScope(c *gin.Context) (companyID uint, userID uint, ok bool) {
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
	return uint(parsed), userID, true
}

func (h *PageHandler) respondPageError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pagestore.ErrNotFound):
		NotFound(c, "career page not found")
	case errors.Is(err, pagestore.ErrUnauthorized):
		Forbidden(c, "career page belongs to another user")
	case errors.Is(err, editor.ErrBlockNotFound):
		NotFound(c, "block not found")
	case errors.Is(err, editor.ErrForbidden):
		Forbidden(c, "operation not permitted for this block")
	case errors.Is(err, editor.ErrCorrupted):
		BadRequest(c, "document is not recognizable")
	default:
		middleware.LoggerFromContext(c).Error("page operation failed", slog.Any("error", err))
		Internal(c, "internal error")
	}
}

func paginationParams(c *gin.Context) (page, perPage int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	perPage, err = strconv.Atoi(c.DefaultQuery("per_page", "10"))
	if err != nil || perPage < 1 || perPage > 100 {
		perPage = 10
	}
	return page, perPage
}

func runtimeData(jobs []database.Job, page, perPage int, total int64) render.RuntimeData {
	views := make([]blocks.JobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, blocks.JobView{
			ID:          job.ID,
			Title:       job.Title,
			Location:    job.Location,
			Department:  job.Department,
			Employment:  job.Employment,
			SalaryRange: job.SalaryRange,
		})
	}

	totalPages := int((total + int64(perPage) - 1) / int64(perPage))
	if totalPages < 1 {
		totalPages = 1
	}
	return render.RuntimeData{
		Jobs: views,
		Pagination: &blocks.Pagination{
			Page:       page,
			TotalPages: totalPages,
			TotalItems: int(total),
		},
	}
}
