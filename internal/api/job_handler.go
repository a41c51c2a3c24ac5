package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"phCareers/internal/api/middleware"
	"phCareers/internal/database"
	"phCareers/internal/storage"
	"phCareers/internal/tasks"
)

var validEmployments = map[string]bool{
	"full-time":  true,
	"part-time":  true,
	"contract":   true,
	"internship": true,
}

// JobHandler 管理职位的增删改查与 CSV 批量导入。
type JobHandler struct {
	db                *gorm.DB
	asynqClient       *asynq.Client
	storage           *storage.Client
	logger            *slog.Logger
	maxJobsPerCompany int
	csvMaxBytes       int64
}

// NewJobHandler 构造职位处理器。
func NewJobHandler(db *gorm.DB, asynqClient *asynq.Client, storageClient *storage.Client, logger *slog.Logger, maxJobsPerCompany int, csvMaxBytes int64) *JobHandler {
	return &JobHandler{
		db:                db,
		asynqClient:       asynqClient,
		storage:           storageClient,
		logger:            logger,
		maxJobsPerCompany: maxJobsPerCompany,
		csvMaxBytes:       csvMaxBytes,
	}
}

type jobRequest struct {
	Title       string `json:"title" binding:"required,min=1,max=255"`
	Location    string `json:"location" binding:"omitempty,max=255"`
	Department  string `json:"department" binding:"omitempty,max=128"`
	Employment  string `json:"employment" binding:"omitempty,max=64"`
	SalaryRange string `json:"salary_range" binding:"omitempty,max=128"`
	Description string `json:"description"`
	Published   bool   `json:"published"`
}

type jobResponse struct {
	ID          uint   `json:"id"`
	Title       string `json:"title"`
	Location    string `json:"location"`
	Department  string `json:"department"`
	Employment  string `json:"employment"`
	SalaryRange string `json:"salary_range"`
	Description string `json:"description"`
	Published   bool   `json:"published"`
}

func toJobResponse(job database.Job) jobResponse {
	return jobResponse{
		ID:          job.ID,
		Title:       job.Title,
		Location:    job.Location,
		Department:  job.Department,
		Employment:  job.Employment,
		SalaryRange: job.SalaryRange,
		Description: job.Description,
		Published:   job.Published,
	}
}

// Create 为公司新建职位。
func (h *JobHandler) Create(c *gin.Context) {
	companyID, userID, ok := h.jobScope(c)
	if !ok {
		return
	}
	if !h.ensureOwnership(c, companyID, userID) {
		return
	}

	var req jobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if req.Employment != "" && !validEmployments[req.Employment] {
		BadRequest(c, "invalid employment type")
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c).With(slog.Uint64("company_id", uint64(companyID)))

	var count int64
	if err := h.db.WithContext(ctx).Model(&database.Job{}).Where("company_id = ?", companyID).Count(&count).Error; err != nil {
		logger.Error("count jobs failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	if h.maxJobsPerCompany > 0 && count >= int64(h.maxJobsPerCompany) {
		Forbidden(c, "job quota exceeded")
		return
	}

	job := database.Job{
		CompanyID:   companyID,
		Title:       strings.TrimSpace(req.Title),
		Location:    strings.TrimSpace(req.Location),
		Department:  strings.TrimSpace(req.Department),
		Employment:  req.Employment,
		SalaryRange: strings.TrimSpace(req.SalaryRange),
		Description: req.Description,
		Published:   req.Published,
	}
	if err := h.db.WithContext(ctx).Create(&job).Error; err != nil {
		logger.Error("create job failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	logger.Info("job created", slog.Uint64("job_id", uint64(job.ID)))
	c.JSON(http.StatusCreated, toJobResponse(job))
}

// List 返回公司的全部职位（含未发布）。
func (h *JobHandler) List(c *gin.Context) {
	companyID, userID, ok := h.jobScope(c)
	if !ok {
		return
	}
	if !h.ensureOwnership(c, companyID, userID) {
		return
	}

	jobs, err := database.ListAllJobs(c.Request.Context(), h.db, companyID)
	if err != nil {
		middleware.LoggerFromContext(c).Error("list jobs failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	items := make([]jobResponse, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, toJobResponse(job))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Update 修改职位字段。
func (h *JobHandler) Update(c *gin.Context) {
	companyID, userID, ok := h.jobScope(c)
	if !ok {
		return
	}
	if !h.ensureOwnership(c, companyID, userID) {
		return
	}

	job, ok := h.ownedJob(c, companyID)
	if !ok {
		return
	}

	var req jobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if req.Employment != "" && !validEmployments[req.Employment] {
		BadRequest(c, "invalid employment type")
		return
	}

	updates := map[string]any{
		"title":        strings.TrimSpace(req.Title),
		"location":     strings.TrimSpace(req.Location),
		"department":   strings.TrimSpace(req.Department),
		"employment":   req.Employment,
		"salary_range": strings.TrimSpace(req.SalaryRange),
		"description":  req.Description,
		"published":    req.Published,
	}
	if err := h.db.WithContext(c.Request.Context()).Model(job).Updates(updates).Error; err != nil {
		middleware.LoggerFromContext(c).Error("update job failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	c.JSON(http.StatusOK, toJobResponse(*job))
}

// Delete 删除职位及其申请记录。
func (h *JobHandler) Delete(c *gin.Context) {
	companyID, userID, ok := h.jobScope(c)
	if !ok {
		return
	}
	if !h.ensureOwnership(c, companyID, userID) {
		return
	}

	job, ok := h.ownedJob(c, companyID)
	if !ok {
		return
	}

	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("job_id = ?", job.ID).Delete(&database.Application{}).Error; err != nil {
			return err
		}
		return tx.Delete(job).Error
	})
	if err != nil {
		middleware.LoggerFromContext(c).Error("delete job failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	c.Status(http.StatusNoContent)
}

// ImportCSV 接收 CSV 文件，存入私有 Bucket 后异步导入。
// 导入进度通过 WebSocket 通知推送。
func (h *JobHandler) ImportCSV(c *gin.Context) {
	companyID, userID, ok := h.jobScope(c)
	if !ok {
		return
	}
	if !h.ensureOwnership(c, companyID, userID) {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file")
		return
	}
	if h.csvMaxBytes > 0 && file.Size > h.csvMaxBytes {
		BadRequest(c, "file too large")
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c).With(slog.Uint64("company_id", uint64(companyID)))

	reader, err := file.Open()
	if err != nil {
		Internal(c, "failed to open file")
		return
	}
	defer reader.Close()

	objectKey := fmt.Sprintf("job-imports/%d/%s.csv", companyID, uuid.NewString())
	if err := h.storage.UploadResume(ctx, objectKey, reader, file.Size, "text/csv"); err != nil {
		logger.Error("upload csv failed", slog.Any("error", err))
		Internal(c, "failed to store file")
		return
	}

	correlationID := middleware.GetCorrelationID(c)
	task, err := tasks.NewJobsImportCSVTask(companyID, userID, objectKey, correlationID)
	if err != nil {
		logger.Error("build import task failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	info, err := h.asynqClient.Enqueue(task, asynq.MaxRetry(3))
	if err != nil {
		logger.Error("enqueue import task failed", slog.Any("error", err))
		Internal(c, "failed to enqueue import")
		return
	}

	logger.Info("csv import enqueued",
		slog.String("object_key", objectKey),
		slog.String("task_id", info.ID),
	)
	c.JSON(http.StatusAccepted, gin.H{
		"message": "import accepted",
		"task_id": info.ID,
	})
}

func (h *JobHandler) jobScope(c *gin.Context) (companyID uint, userID uint, ok bool) {
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

func (h *JobHandler) ensureOwnership(c *gin.Context, companyID, userID uint) bool {
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

func (h *JobHandler) ownedJob(c *gin.Context, companyID uint) (*database.Job, bool) {
	jobID, err := strconv.ParseUint(c.Param("jobId"), 10, 64)
	if err != nil || jobID == 0 {
		BadRequest(c, "invalid job id")
		return nil, false
	}

	var job database.Job
	if err := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND company_id = ?", jobID, companyID).
		First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "job not found")
			return nil, false
		}
		middleware.LoggerFromContext(c).Error("query job failed", slog.Any("error", err))
		Internal(c, "internal error")
		return nil, false
	}
	return &job, true
}
