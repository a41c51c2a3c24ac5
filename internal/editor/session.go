package editor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"phCareers/internal/blocks"
	"phCareers/internal/document"
	"phCareers/internal/pagestore"
)

// 编辑会话的类型化错误。ErrCorrupted 属于灾难级：规范化也救不回
// 的输入，调用方应向用户提供"重置编辑器"动作而不是卡死。
var (
	ErrBlockNotFound = errors.New("block not found in document")
	ErrForbidden     = errors.New("operation not permitted for this block type")
	ErrCorrupted     = errors.New("document is not recognizable")
)

// DraftStore 是会话依赖的持久化边界，仅这三个调用做 I/O。
type DraftStore interface {
	LoadDraft(ctx context.Context, companyID, userID uint) (document.Document, pagestore.PageMeta, error)
	SaveDraft(ctx context.Context, companyID, userID uint, doc document.Document) error
	Publish(ctx context.Context, companyID, userID uint) error
}

// Session 持有一次编辑会话中的活文档。所有变更先作用于内存副本，
// 经规范化后提交回画布；持久化只在显式 Save/Publish 时发生，
// 失败时内存状态保持不变以便重试。单用户单文档，不做并发写合并。
type Session struct {
	companyID uint
	userID    uint
	ownerID   string

	registry   *blocks.Registry
	normalizer *document.Normalizer
	store      DraftStore
	logger     *slog.Logger

	doc    document.Document
	assets pagestore.Assets
}

// NewSession 构造会话。调用 Start 之前文档为空。
func NewSession(
	registry *blocks.Registry,
	normalizer *document.Normalizer,
	store DraftStore,
	companyID, userID uint,
	logger *slog.Logger,
) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		companyID:  companyID,
		userID:     userID,
		ownerID:    pagestore.OwnerID(companyID),
		registry:   registry,
		normalizer: normalizer,
		store:      store,
		logger:     logger,
		doc:        document.Empty(),
	}
}

// Start 从存储加载草稿并完成首次资产注入。
func (s *Session) Start(ctx context.Context) error {
	doc, meta, err := s.store.LoadDraft(ctx, s.companyID, s.userID)
	if err != nil {
		return err
	}
	s.assets = meta.Assets
	injected := InjectAssets(doc, pagestore.Assets{}, meta.Assets)
	s.commit(injected)
	return nil
}

// Document 返回当前活文档的副本。
func (s *Session) Document() document.Document {
	return s.doc.Clone()
}

// AddBlock 在指定位置插入一个带默认 props 的新区块。
// position 越界时追加到末尾（Hero/Footer 的钉住由规范化保证）。
func (s *Session) AddBlock(t blocks.Type, position int) error {
	if !s.registry.IsKnown(t) {
		return fmt.Errorf("%w: %q", blocks.ErrUnknownType, t)
	}

	next := s.doc.Clone()
	block := document.Block{
		Type:  t,
		Props: s.registry.DefaultProps(t),
	}
	if position < 0 || position > len(next.Blocks) {
		position = len(next.Blocks)
	}
	next.Blocks = append(next.Blocks[:position], append([]document.Block{block}, next.Blocks[position:]...)...)
	s.commit(next)
	return nil
}

// DeleteBlock 删除指定区块。Hero/Footer 不可删除。
func (s *Session) DeleteBlock(id string) error {
	index, block, ok := s.findBlock(id)
	if !ok {
		return ErrBlockNotFound
	}
	if !s.registry.Permissions(block.Type).CanDelete {
		return fmt.Errorf("%w: %s cannot be deleted", ErrForbidden, block.Type)
	}

	next := s.doc.Clone()
	next.Blocks = append(next.Blocks[:index], next.Blocks[index+1:]...)
	s.commit(next)
	return nil
}

// DuplicateBlock 在原区块之后插入一份副本。Hero/Footer 不可复制。
// 注意：未经修改的副本与原件指纹相同，会在下一次规范化中被去重
// 合并；复制后先编辑 props 才能留住副本。
func (s *Session) DuplicateBlock(id string) error {
	index, block, ok := s.findBlock(id)
	if !ok {
		return ErrBlockNotFound
	}
	if !s.registry.Permissions(block.Type).CanDuplicate {
		return fmt.Errorf("%w: %s cannot be duplicated", ErrForbidden, block.Type)
	}

	next := s.doc.Clone()
	copyBlock := document.Block{
		Type:  block.Type,
		Props: next.Blocks[index].Props,
	}
	at := index + 1
	next.Blocks = append(next.Blocks[:at], append([]document.Block{copyBlock}, next.Blocks[at:]...)...)
	s.commit(next)
	return nil
}

// MoveBlock 把区块移动到目标下标。Hero/Footer 的位置最终仍由
// 规范化固定在首尾。
func (s *Session) MoveBlock(id string, to int) error {
	index, _, ok := s.findBlock(id)
	if !ok {
		return ErrBlockNotFound
	}

	next := s.doc.Clone()
	block := next.Blocks[index]
	next.Blocks = append(next.Blocks[:index], next.Blocks[index+1:]...)
	if to < 0 {
		to = 0
	}
	if to > len(next.Blocks) {
		to = len(next.Blocks)
	}
	next.Blocks = append(next.Blocks[:to], append([]document.Block{block}, next.Blocks[to:]...)...)
	s.commit(next)
	return nil
}

// UpdateProps 覆盖区块的配置字段。Schema 之外的键在规范化时丢弃。
func (s *Session) UpdateProps(id string, props blocks.Props) error {
	index, _, ok := s.findBlock(id)
	if !ok {
		return ErrBlockNotFound
	}

	next := s.doc.Clone()
	next.Blocks[index].Props = props
	s.commit(next)
	return nil
}

// UpdateAssets 响应另一个页签中对页面资产的修改，按加法规则
// 重新注入 Hero。
func (s *Session) UpdateAssets(assets pagestore.Assets) {
	injected := InjectAssets(s.doc, s.assets, assets)
	s.assets = assets
	s.commit(injected)
}

// ReplaceDocument 用外部字节整体替换活文档（例如撤销栈恢复）。
// 输入连对象都不是时返回 ErrCorrupted，活文档保持不变。
func (s *Session) ReplaceDocument(raw []byte) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return ErrCorrupted
	}
	s.commit(document.Parse(trimmed))
	return nil
}

// Reset 把活文档重置为默认骨架。清空后仍走归一化，
// Hero 与 Footer 会被重新合成，内存与落库结果保持一致。
func (s *Session) Reset() {
	s.commit(document.Empty())
}

// SaveDraft 显式持久化当前活文档。失败时内存不变，可直接重试。
func (s *Session) SaveDraft(ctx context.Context) error {
	return s.store.SaveDraft(ctx, s.companyID, s.userID, s.doc)
}

// Publish 把最近保存的草稿复制到已发布槽位。不隐式保存：
// 未保存的内存编辑不会被发布。
func (s *Session) Publish(ctx context.Context) error {
	return s.store.Publish(ctx, s.companyID, s.userID)
}

// Assets 返回会话当前记录的页面资产。
func (s *Session) Assets() pagestore.Assets {
	return s.assets
}

func (s *Session) commit(next document.Document) {
	s.doc = s.normalizer.Normalize(next, s.ownerID)
}

func (s *Session) findBlock(id string) (int, document.Block, bool) {
	for i, b := range s.doc.Blocks {
		if b.ID == id {
			return i, b, true
		}
	}
	return 0, document.Block{}, false
}
