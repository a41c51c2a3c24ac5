package pagestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"gorm.io/gorm"

	"phCareers/internal/database"
	"phCareers/internal/document"
	"phCareers/internal/render"
)

// 存储层的类型化错误。处理器把它们映射为用户可见的响应，
// 永远不作为未处理异常向上抛。
var (
	ErrNotFound     = errors.New("career page not found")
	ErrUnauthorized = errors.New("caller does not own this career page")
)

// Assets 聚合页面级资产 URL，三者相互独立、均可为空。
type Assets struct {
	LogoURL   string `json:"logo_url"`
	BannerURL string `json:"banner_url"`
	VideoURL  string `json:"video_url"`
}

// PageMeta 是随文档一起返回的页面元信息。
type PageMeta struct {
	CompanyID uint         `json:"company_id"`
	Published bool         `json:"published"`
	Theme     render.Theme `json:"theme"`
	Assets    Assets       `json:"assets"`
}

// CacheInvalidator 通知宿主层：编辑器、预览、公共页三个视图已过期。
// 具体的缓存淘汰由宿主层负责，存储只发信号。
type CacheInvalidator interface {
	InvalidatePage(ctx context.Context, companyID uint) error
}

// Store 管理每个招聘页面的草稿与已发布两份文档快照。
type Store struct {
	db          *gorm.DB
	normalizer  *document.Normalizer
	invalidator CacheInvalidator
	logger      *slog.Logger
}

// NewStore 构造存储。invalidator 可以为 nil（例如单测）。
func NewStore(db *gorm.DB, normalizer *document.Normalizer, invalidator CacheInvalidator, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		db:          db,
		normalizer:  normalizer,
		invalidator: invalidator,
		logger:      logger,
	}
}

// OwnerID 返回文档规范化使用的页面属主标识。
func OwnerID(companyID uint) string {
	return strconv.FormatUint(uint64(companyID), 10)
}

// LoadDraft 返回规范化后的草稿。公司存在但还没有页面记录时，
// 会创建一条空记录（草稿首次在创建公司时即为空文档）。
func (s *Store) LoadDraft(ctx context.Context, companyID, userID uint) (document.Document, PageMeta, error) {
	page, err := s.ownedPage(ctx, companyID, userID, true)
	if err != nil {
		return document.Empty(), PageMeta{}, err
	}

	doc := s.normalizer.NormalizeRaw(page.DraftData, OwnerID(companyID))
	return doc, metaFromRecord(page), nil
}

// SaveDraft 先规范化再持久化草稿。调用方不拥有该页面时返回
// ErrUnauthorized，页面记录不存在时返回 ErrNotFound。
func (s *Store) SaveDraft(ctx context.Context, companyID, userID uint, doc document.Document) error {
	page, err := s.ownedPage(ctx, companyID, userID, false)
	if err != nil {
		return err
	}

	normalized := s.normalizer.Normalize(doc, OwnerID(companyID))
	data, err := document.Marshal(normalized)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(page).Update("draft_data", data).Error; err != nil {
		return fmt.Errorf("persist draft: %w", err)
	}

	s.invalidate(ctx, companyID)
	return nil
}

// Publish 把已持久化的草稿原样复制进已发布槽位并打开可见开关。
// 发布的是最近一次显式保存的草稿，客户端内存里未保存的编辑
// 不会泄漏到线上。没有可发布的草稿时返回 ErrNotFound。
func (s *Store) Publish(ctx context.Context, companyID, userID uint) error {
	page, err := s.ownedPage(ctx, companyID, userID, false)
	if err != nil {
		return err
	}
	if len(page.DraftData) == 0 {
		return ErrNotFound
	}

	updates := map[string]any{
		"published_data": page.DraftData,
		"published":      true,
	}
	if err := s.db.WithContext(ctx).Model(page).Updates(updates).Error; err != nil {
		return fmt.Errorf("persist published snapshot: %w", err)
	}

	s.invalidate(ctx, companyID)
	return nil
}

// Unpublish 关闭公共页可见开关，保留已发布快照。
func (s *Store) Unpublish(ctx context.Context, companyID, userID uint) error {
	page, err := s.ownedPage(ctx, companyID, userID, false)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(page).Update("published", false).Error; err != nil {
		return fmt.Errorf("persist published flag: %w", err)
	}
	s.invalidate(ctx, companyID)
	return nil
}

// LoadPublished 返回已发布快照。第二个返回值为 false 表示页面
// 没有已发布的文档内容（从未发布或被下线），调用方应回落到
// 传统渲染路径。公共路由调用，无属主校验。
func (s *Store) LoadPublished(ctx context.Context, companyID uint) (document.Document, PageMeta, bool, error) {
	var page database.CareerPage
	err := s.db.WithContext(ctx).Where("company_id = ?", companyID).First(&page).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return document.Empty(), PageMeta{}, false, nil
	case err != nil:
		return document.Empty(), PageMeta{}, false, fmt.Errorf("query career page: %w", err)
	}

	meta := metaFromRecord(&page)
	if !page.Published || len(page.PublishedData) == 0 {
		return document.Empty(), meta, false, nil
	}

	doc := s.normalizer.NormalizeRaw(page.PublishedData, OwnerID(companyID))
	return doc, meta, true, nil
}

// UpdateTheme 更新基准色。派生色板在读取时重新计算，不落库。
func (s *Store) UpdateTheme(ctx context.Context, companyID, userID uint, theme render.Theme) error {
	page, err := s.ownedPage(ctx, companyID, userID, false)
	if err != nil {
		return err
	}
	updates := map[string]any{
		"primary_color":   theme.PrimaryColor,
		"secondary_color": theme.SecondaryColor,
	}
	if err := s.db.WithContext(ctx).Model(page).Updates(updates).Error; err != nil {
		return fmt.Errorf("persist theme: %w", err)
	}
	s.invalidate(ctx, companyID)
	return nil
}

// UpdateAssets 整体覆盖页面级资产 URL。
func (s *Store) UpdateAssets(ctx context.Context, companyID, userID uint, assets Assets) error {
	page, err := s.ownedPage(ctx, companyID, userID, false)
	if err != nil {
		return err
	}
	updates := map[string]any{
		"logo_url":   assets.LogoURL,
		"banner_url": assets.BannerURL,
		"video_url":  assets.VideoURL,
	}
	if err := s.db.WithContext(ctx).Model(page).Updates(updates).Error; err != nil {
		return fmt.Errorf("persist assets: %w", err)
	}
	s.invalidate(ctx, companyID)
	return nil
}

// ownedPage 校验属主并返回页面记录。createIfMissing 仅用于
// LoadDraft 的首次访问路径。
func (s *Store) ownedPage(ctx context.Context, companyID, userID uint, createIfMissing bool) (*database.CareerPage, error) {
	var company database.Company
	err := s.db.WithContext(ctx).First(&company, companyID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("query company: %w", err)
	}
	if company.UserID != userID {
		return nil, ErrUnauthorized
	}

	var page database.CareerPage
	err = s.db.WithContext(ctx).Where("company_id = ?", companyID).First(&page).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if !createIfMissing {
			return nil, ErrNotFound
		}
		page = database.CareerPage{CompanyID: companyID}
		if err := s.db.WithContext(ctx).Create(&page).Error; err != nil {
			return nil, fmt.Errorf("create career page: %w", err)
		}
		return &page, nil
	case err != nil:
		return nil, fmt.Errorf("query career page: %w", err)
	}
	return &page, nil
}

func (s *Store) invalidate(ctx context.Context, companyID uint) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.InvalidatePage(ctx, companyID); err != nil {
		// 缓存失效失败不阻塞保存/发布，只记录。
		s.logger.Error("invalidate page views failed",
			slog.Uint64("company_id", uint64(companyID)),
			slog.Any("error", err),
		)
	}
}

func metaFromRecord(page *database.CareerPage) PageMeta {
	return PageMeta{
		CompanyID: page.CompanyID,
		Published: page.Published,
		Theme: render.Theme{
			PrimaryColor:   page.PrimaryColor,
			SecondaryColor: page.SecondaryColor,
		},
		Assets: Assets{
			LogoURL:   page.LogoURL,
			BannerURL: page.BannerURL,
			VideoURL:  page.VideoURL,
		},
	}
}
