package worker

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"phCareers/internal/database"
	"phCareers/internal/errcode"
	"phCareers/internal/storage"
	"phCareers/internal/tasks"
)

var csvColumns = []string{"title", "location", "department", "employment", "salary_range", "description", "published"}

var csvEmployments = map[string]bool{
	"":           true,
	"full-time":  true,
	"part-time":  true,
	"contract":   true,
	"internship": true,
}

// CSVImportHandler 负责消费职位批量导入任务。
type CSVImportHandler struct {
	db                *gorm.DB
	storage           *storage.Client
	redisClient       *redis.Client
	logger            *slog.Logger
	maxRows           int
	maxJobsPerCompany int
}

// NewCSVImportHandler 创建任务处理器。
func NewCSVImportHandler(
	db *gorm.DB,
	storageClient *storage.Client,
	redisClient *redis.Client,
	logger *slog.Logger,
	maxRows int,
	maxJobsPerCompany int,
) *CSVImportHandler {
	return &CSVImportHandler{
		db:                db,
		storage:           storageClient,
		redisClient:       redisClient,
		logger:            logger,
		maxRows:           maxRows,
		maxJobsPerCompany: maxJobsPerCompany,
	}
}

// ProcessTask 实现 asynq.Handler。
func (h *CSVImportHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	log := h.logger

	var payload tasks.JobsImportCSVPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal task payload failed", slog.Any("error", err))
		return err
	}

	log = log.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Uint64("company_id", uint64(payload.CompanyID)),
	)
	log.Info("starting jobs csv import task")

	var company database.Company
	if err := h.db.WithContext(ctx).First(&company, payload.CompanyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("company not found, skipping task")
			return nil
		}
		log.Error("query company failed", slog.Any("error", err))
		return err
	}

	defer func() {
		if retErr == nil {
			return
		}
		if !isFinalAsynqAttempt(ctx) {
			return
		}

		notify := JobsImportNotifyMessage{
			Status:        "error",
			CompanyID:     payload.CompanyID,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.SystemError,
			ErrorMessage:  strings.TrimSpace(retErr.Error()),
		}
		if err := h.publishImportNotify(ctx, company.UserID, notify); err != nil {
			log.Error("publish import error notification failed", slog.Any("error", err))
		}
	}()

	object, err := h.storage.GetResume(ctx, payload.ObjectKey)
	if err != nil {
		log.Error("fetch csv object failed", slog.Any("error", err))
		return err
	}
	defer object.Close()

	rows, parseErr := h.parseRows(object)
	if parseErr != nil {
		// 文件损坏属于不可重试错误：直接通知失败并结束任务。
		log.Warn("csv parse failed", slog.Any("error", parseErr))
		notify := JobsImportNotifyMessage{
			Status:        "error",
			CompanyID:     payload.CompanyID,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.InvalidInput,
			ErrorMessage:  parseErr.Error(),
		}
		if err := h.publishImportNotify(ctx, company.UserID, notify); err != nil {
			log.Error("publish parse error notification failed", slog.Any("error", err))
		}
		return nil
	}

	imported, skipped, err := h.importRows(ctx, payload.CompanyID, rows)
	if err != nil {
		log.Error("import rows failed", slog.Any("error", err))
		return err
	}

	// 导入完成后清理临时文件。失败只记录，不影响结果。
	if err := h.storage.DeleteResume(ctx, payload.ObjectKey); err != nil {
		log.Warn("cleanup csv object failed", slog.Any("error", err))
	}

	notify := JobsImportNotifyMessage{
		Status:        "done",
		CompanyID:     payload.CompanyID,
		CorrelationID: payload.CorrelationID,
		Imported:      imported,
		Skipped:       skipped,
		TotalRows:     len(rows),
		ErrorCode:     errcode.OK,
	}
	if err := h.publishImportNotify(ctx, company.UserID, notify); err != nil {
		log.Error("publish import done notification failed", slog.Any("error", err))
	}

	log.Info("jobs csv import finished",
		slog.Int("imported", imported),
		slog.Int("skipped", skipped),
	)
	return nil
}

type csvRow struct {
	title       string
	location    string
	department  string
	employment  string
	salaryRange string
	description string
	published   bool
}

// parseRows 校验表头并读取全部数据行。行数超限或表头不符时报错。
func (h *CSVImportHandler) parseRows(r io.Reader) ([]csvRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) != len(csvColumns) {
		return nil, fmt.Errorf("csv header must have %d columns", len(csvColumns))
	}
	for i, name := range csvColumns {
		if !strings.EqualFold(strings.TrimSpace(header[i]), name) {
			return nil, fmt.Errorf("csv column %d must be %q", i+1, name)
		}
	}

	var rows []csvRow
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		if h.maxRows > 0 && len(rows) >= h.maxRows {
			return nil, fmt.Errorf("csv exceeds %d rows", h.maxRows)
		}

		rows = append(rows, csvRow{
			title:       strings.TrimSpace(record[0]),
			location:    strings.TrimSpace(record[1]),
			department:  strings.TrimSpace(record[2]),
			employment:  strings.ToLower(strings.TrimSpace(record[3])),
			salaryRange: strings.TrimSpace(record[4]),
			description: record[5],
			published:   parseCSVBool(record[6]),
		})
	}
	return rows, nil
}

// importRows 在单个事务内写入合法行。无标题或雇佣形态非法的行
// 被跳过；达到职位配额后剩余行全部跳过。
func (h *CSVImportHandler) importRows(ctx context.Context, companyID uint, rows []csvRow) (imported, skipped int, err error) {
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&database.Job{}).Where("company_id = ?", companyID).Count(&count).Error; err != nil {
			return err
		}

		for _, row := range rows {
			if row.title == "" || !csvEmployments[row.employment] {
				skipped++
				continue
			}
			if h.maxJobsPerCompany > 0 && count >= int64(h.maxJobsPerCompany) {
				skipped++
				continue
			}

			job := database.Job{
				CompanyID:   companyID,
				Title:       row.title,
				Location:    row.location,
				Department:  row.department,
				Employment:  row.employment,
				SalaryRange: row.salaryRange,
				Description: row.description,
				Published:   row.published,
			}
			if err := tx.Create(&job).Error; err != nil {
				return err
			}
			count++
			imported++
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return imported, skipped, nil
}

func parseCSVBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "y":
		return true
	}
	return false
}

func (h *CSVImportHandler) publishImportNotify(ctx context.Context, userID uint, notify JobsImportNotifyMessage) error {
	data, err := json.Marshal(notify)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := fmt.Sprintf("owner_notify:%d", userID)
	if err := h.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
