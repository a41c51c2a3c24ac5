package worker

// 统一的 WebSocket 消息协议（通过 Redis Pub/Sub 转发给前端）。
// 注意：这里的字段名与前端解析保持一致。
type JobsImportNotifyMessage struct {
	Status        string `json:"status"` // processing / done / error
	CompanyID     uint   `json:"company_id"`
	CorrelationID string `json:"correlation_id"`
	Imported      int    `json:"imported"`
	Skipped       int    `json:"skipped"`
	TotalRows     int    `json:"total_rows"`
	ErrorCode     int    `json:"error_code"`
	ErrorMessage  string `json:"error_message,omitempty"`
}
