package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeJobsImportCSV = "jobs:import_csv"
)

// JobsImportCSVPayload 描述批量导入职位所需的最小信息。
// ObjectKey 指向私有 Bucket 中已上传的 CSV 文件。
type JobsImportCSVPayload struct {
	CompanyID     uint   `json:"company_id"`
	UserID        uint   `json:"user_id"`
	ObjectKey     string `json:"object_key"`
	CorrelationID string `json:"correlation_id"`
}

// NewJobsImportCSVTask 构造一个新的职位 CSV 导入任务。
func NewJobsImportCSVTask(companyID, userID uint, objectKey, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(JobsImportCSVPayload{
		CompanyID:     companyID,
		UserID:        userID,
		ObjectKey:     objectKey,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeJobsImportCSV, payload), nil
}
