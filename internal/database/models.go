package database

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User 表示系统中的账号信息（公司负责人）。
type User struct {
	gorm.Model
	Username     string    `gorm:"uniqueIndex;size:64"`
	PasswordHash string    `gorm:"size:255"`
	Companies    []Company `gorm:"constraint:OnDelete:CASCADE"`
}

// Company 表示一个租户。每个公司恰好拥有一个招聘页面。
type Company struct {
	gorm.Model
	Name         string `gorm:"size:255"`
	Slug         string `gorm:"uniqueIndex;size:128"`
	Website      string `gorm:"size:512"`
	UserID       uint   `gorm:"index"`
	User         User
	CareerPage   CareerPage    `gorm:"constraint:OnDelete:CASCADE"`
	Jobs         []Job         `gorm:"constraint:OnDelete:CASCADE"`
	Applications []Application `gorm:"constraint:OnDelete:CASCADE"`
}

// CareerPage 表示公司的招聘页面聚合：草稿与已发布两份文档快照、
// 主题色以及页面级资产 URL。DraftData/PublishedData 以 JSONB 存储
// 文档 wire 格式 {content:[...], root:{props:{}}}。
type CareerPage struct {
	gorm.Model
	CompanyID      uint           `gorm:"uniqueIndex"`
	DraftData      datatypes.JSON `gorm:"type:jsonb"`
	PublishedData  datatypes.JSON `gorm:"type:jsonb"`
	Published      bool           `gorm:"default:false"`
	PrimaryColor   string         `gorm:"size:16"`
	SecondaryColor string         `gorm:"size:16"`
	LogoURL        string         `gorm:"size:512"`
	BannerURL      string         `gorm:"size:512"`
	VideoURL       string         `gorm:"size:512"`
}

// Job 表示一条职位信息。
type Job struct {
	gorm.Model
	CompanyID   uint `gorm:"index"`
	Company     Company
	Title       string `gorm:"size:255"`
	Location    string `gorm:"size:255"`
	Department  string `gorm:"size:128"`
	Employment  string `gorm:"size:64"` // full-time / part-time / contract / internship
	SalaryRange string `gorm:"size:128"`
	Description string `gorm:"type:text"`
	Published   bool   `gorm:"default:false;index"`
}

// Application 表示候选人针对某职位提交的申请。
type Application struct {
	gorm.Model
	JobID       uint `gorm:"index"`
	Job         Job
	CompanyID   uint   `gorm:"index"`
	Name        string `gorm:"size:255"`
	Email       string `gorm:"size:255"`
	Phone       string `gorm:"size:64"`
	CoverLetter string `gorm:"type:text"`
	ResumeKey   string `gorm:"size:512"`              // 私有 Bucket 中的对象 Key
	Status      string `gorm:"size:32;default:'new'"` // new / reviewing / interview / rejected / hired
}
