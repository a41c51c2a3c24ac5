package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// ListPublishedJobs 返回公司已发布职位的一页数据与总数。
// page 从 1 开始；perPage 非法时回退为默认值。
func ListPublishedJobs(ctx context.Context, db *gorm.DB, companyID uint, page, perPage int) ([]Job, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 10
	}

	query := db.WithContext(ctx).Model(&Job{}).
		Where("company_id = ? AND published = ?", companyID, true)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count published jobs: %w", err)
	}

	var jobs []Job
	if err := query.
		Order("id ASC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&jobs).Error; err != nil {
		return nil, 0, fmt.Errorf("list published jobs: %w", err)
	}
	return jobs, total, nil
}

// ListAllJobs 返回公司的全部职位（含未发布），供管理端使用。
func ListAllJobs(ctx context.Context, db *gorm.DB, companyID uint) ([]Job, error) {
	var jobs []Job
	if err := db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("id ASC").
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}
