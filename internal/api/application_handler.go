package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"phCareers/internal/api/middleware"
	"phCareers/internal/database"
)

var validStatuses = map[string]bool{
	"new":       true,
	"reviewing": true,
	"interview": true,
	"rejected":  true,
	"hired":     true,
}

var allowedResumeTypes = map[string]string{
	"application/pdf":    ".pdf",
	"application/msword": ".doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
}

// resumeStorage 是申请处理依赖的对象存储边界。
type resumeStorage interface {
	UploadResume(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error
	ResumeDownloadURL(ctx context.Context, objectKey string, duration time.Duration, filename string) (string, error)
}

// ApplicationHandler 处理候选人申请提交与雇主侧的申请管理。
type ApplicationHandler struct {
	db              *gorm.DB
	storage         resumeStorage
	scanner         VirusScanner
	redis           redis.UniversalClient
	logger          *slog.Logger
	perIPHour       int
	resumeMaxBytes  int64
	downloadLinkTTL time.Duration
}

// NewApplicationHandler 构造申请处理器。
func NewApplicationHandler(
	db *gorm.DB,
	storageClient resumeStorage,
	scanner VirusScanner,
	redisClient redis.UniversalClient,
	logger *slog.Logger,
	perIPHour int,
	resumeMaxBytes int64,
) *ApplicationHandler {
	return &ApplicationHandler{
		db:              db,
		storage:         storageClient,
		scanner:         scanner,
		redis:           redisClient,
		logger:          logger,
		perIPHour:       perIPHour,
		resumeMaxBytes:  resumeMaxBytes,
		downloadLinkTTL: 10 * time.Minute,
	}
}

// Apply 接收候选人对某个已发布职位的申请。匿名访问，按 IP 限速，
// 简历先过病毒扫描再写入私有 Bucket。
func (h *ApplicationHandler) Apply(c *gin.Context) {
	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	// 速率限制：每 IP 每小时固定次数。
	if h.redis != nil && h.perIPHour > 0 {
		rateKey := "rate:apply:" + c.ClientIP() + ":" + time.Now().UTC().Format("2006010215")
		if overHourlyLimit(ctx, h.redis, rateKey, h.perIPHour) {
			TooManyRequests(c, "rate limit exceeded")
			return
		}
	}

	var company database.Company
	if err := h.db.WithContext(ctx).Where("slug = ?", c.Param("slug")).First(&company).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "career page not found")
			return
		}
		logger.Error("query company failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	jobID, err := strconv.ParseUint(c.Param("jobId"), 10, 64)
	if err != nil || jobID == 0 {
		BadRequest(c, "invalid job id")
		return
	}

	var job database.Job
	if err := h.db.WithContext(ctx).
		Where("id = ? AND company_id = ? AND published = ?", jobID, company.ID, true).
		First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "job not found")
			return
		}
		logger.Error("query job failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	name := strings.TrimSpace(c.PostForm("name"))
	email := strings.TrimSpace(c.PostForm("email"))
	if name == "" || email == "" {
		BadRequest(c, "name and email are required")
		return
	}
	if len(name) > 255 || len(email) > 255 || !strings.Contains(email, "@") {
		BadRequest(c, "invalid name or email")
		return
	}

	file, err := c.FormFile("resume")
	if err != nil {
		BadRequest(c, "missing resume file")
		return
	}
	if h.resumeMaxBytes > 0 && file.Size > h.resumeMaxBytes {
		BadRequest(c, "resume file too large")
		return
	}
	contentType := file.Header.Get("Content-Type")
	extension, supported := allowedResumeTypes[contentType]
	if !supported {
		BadRequest(c, "unsupported resume format")
		return
	}

	// 病毒扫描后重新打开文件再上传。
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
		logger.Error("scan resume failed", slog.Any("error", scanErr))
		Internal(c, "failed to scan file")
		return
	}

	reader, err = file.Open()
	if err != nil {
		Internal(c, "failed to reopen file")
		return
	}
	defer reader.Close()

	objectKey := fmt.Sprintf("applications/%d/%d/%s%s", company.ID, job.ID, uuid.NewString(), extension)
	if err := h.storage.UploadResume(ctx, objectKey, reader, file.Size, contentType); err != nil {
		logger.Error("upload resume failed", slog.Any("error", err))
		Internal(c, "failed to store resume")
		return
	}

	application := database.Application{
		JobID:       job.ID,
		CompanyID:   company.ID,
		Name:        name,
		Email:       email,
		Phone:       strings.TrimSpace(c.PostForm("phone")),
		CoverLetter: c.PostForm("cover_letter"),
		ResumeKey:   objectKey,
		Status:      "new",
	}
	if err := h.db.WithContext(ctx).Create(&application).Error; err != nil {
		logger.Error("create application failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	logger.Info("application received",
		slog.Uint64("company_id", uint64(company.ID)),
		slog.Uint64("job_id", uint64(job.ID)),
		slog.Uint64("application_id", uint64(application.ID)),
	)
	c.JSON(http.StatusCreated, gin.H{"id": application.ID})
}

type applicationResponse struct {
	ID          uint      `json:"id"`
	JobID       uint      `json:"job_id"`
	JobTitle    string    `json:"job_title"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	CoverLetter string    `json:"cover_letter"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// List 返回公司收到的申请，可按职位与状态过滤。
func (h *ApplicationHandler) List(c *gin.Context) {
	companyID, userID, ok := h.applicationScope(c)
	if !ok {
		return
	}
	if !h.ensureOwnership(c, companyID, userID) {
		return
	}

	ctx := c.Request.Context()
	query := h.db.WithContext(ctx).Model(&database.Application{}).
		Preload("Job").
		Where("company_id = ?", companyID)

	if jobID, err := strconv.ParseUint(c.Query("job_id"), 10, 64); err == nil && jobID > 0 {
		query = query.Where("job_id = ?", jobID)
	}
	if status := c.Query("status"); status != "" {
		if !validStatuses[status] {
			BadRequest(c, "invalid status filter")
			return
		}
		query = query.Where("status = ?", status)
	}

	var applications []database.Application
	if err := query.Order("id DESC").Find(&applications).Error; err != nil {
		middleware.LoggerFromContext(c).Error("list applications failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	items := make([]applicationResponse, 0, len(applications))
	for _, app := range applications {
		items = append(items, applicationResponse{
			ID:          app.ID,
			JobID:       app.JobID,
			JobTitle:    app.Job.Title,
			Name:        app.Name,
			Email:       app.Email,
			Phone:       app.Phone,
			CoverLetter: app.CoverLetter,
			Status:      app.Status,
			CreatedAt:   app.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus 推进申请状态。
func (h *ApplicationHandler) UpdateStatus(c *gin.Context) {
	companyID, userID, ok := h.applicationScope(c)
	if !ok {
		return
	}
	if !h.ensureOwnership(c, companyID, userID) {
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if !validStatuses[req.Status] {
		BadRequest(c, "invalid status")
		return
	}

	application, ok := h.ownedApplication(c, companyID)
	if !ok {
		return
	}

	if err := h.db.WithContext(c.Request.Context()).Model(application).Update("status", req.Status).Error; err != nil {
		middleware.LoggerFromContext(c).Error("update application status failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": application.ID, "status": req.Status})
}

// ResumeLink 生成简历的限时下载链接。
func (h *ApplicationHandler) ResumeLink(c *gin.Context) {
	companyID, userID, ok := h.applicationScope(c)
	if !ok {
		return
	}
	if !h.ensureOwnership(c, companyID, userID) {
		return
	}

	application, ok := h.ownedApplication(c, companyID)
	if !ok {
		return
	}
	if application.ResumeKey == "" {
		NotFound(c, "resume not found")
		return
	}

	filename := fmt.Sprintf("resume-%d%s", application.ID, resumeExtension(application.ResumeKey))
	url, err := h.storage.ResumeDownloadURL(c.Request.Context(), application.ResumeKey, h.downloadLinkTTL, filename)
	if err != nil {
		middleware.LoggerFromContext(c).Error("presign resume failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"url":        url,
		"expires_in": int(h.downloadLinkTTL.Seconds()),
	})
}

func resumeExtension(objectKey string) string {
	if idx := strings.LastIndex(objectKey, "."); idx >= 0 && idx < len(objectKey)-1 {
		return objectKey[idx:]
	}
	return ".pdf"
}

func (h *ApplicationHandler) applicationScope(c *gin.Context) (companyID uint, userID uint, ok bool) {
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

func (h *ApplicationHandler) ensureOwnership(c *gin.Context, companyID, userID uint) bool {
	var company database.Company
	if err := h.db.WithContext(c.Request.Context()).First(&company, companyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "company not found")
			return false
		}
		middleware.LoggerFromContext(c).Error("query company failed", slog.Any("error", err))
		Internal(c, "internal error")
		return false
	}
	if company.UserID != userID {
		Forbidden(c, "company belongs to another user")
		return false
	}
	return true
}

func (h *ApplicationHandler) ownedApplication(c *gin.Context, companyID uint) (*database.Application, bool) {
	applicationID, err := strconv.ParseUint(c.Param("applicationId"), 10, 64)
	if err != nil || applicationID == 0 {
		BadRequest(c, "invalid application id")
		return nil, false
	}

	var application database.Application
	if err := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND company_id = ?", applicationID, companyID).
		First(&application).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "application not found")
			return nil, false
		}
		middleware.LoggerFromContext(c).Error("query application failed", slog.Any("error", err))
		Internal(c, "internal error")
		return nil, false
	}
	return &application, true
}
