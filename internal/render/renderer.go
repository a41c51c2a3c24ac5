package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"phCareers/internal/blocks"
	"phCareers/internal/document"
)

// ErrNoContent 表示文档没有任何区块可渲染。调用方收到该信号后
// 应回落到传统的两栏职位卡片渲染路径。
var ErrNoContent = errors.New("document has no content")

// RuntimeData 携带渲染期注入的外部数据（主要是实时职位列表）。
type RuntimeData struct {
	Jobs       []blocks.JobView
	Pagination *blocks.Pagination
}

// BlockNode 是渲染树中对应一个区块的条目。
type BlockNode struct {
	ID    string       `json:"id"`
	Type  blocks.Type  `json:"type"`
	Node  *blocks.Node `json:"node"`
	Error bool         `json:"error,omitempty"`
}

// Tree 是渲染结果：按文档顺序排列的区块输出加解析后的样式变量表。
// 编辑器画布、预览与公共页面消费同一份结构。
type Tree struct {
	Blocks  []BlockNode       `json:"blocks"`
	Palette Palette           `json:"palette"`
	Styles  map[string]string `json:"styles"`
}

// Renderer 把文档快照渲染为主题化的可视树。纯函数、无副作用，
// 可以任意频率重复调用。
type Renderer struct {
	registry *blocks.Registry
	logger   *slog.Logger
}

// NewRenderer 构造渲染器。
func NewRenderer(registry *blocks.Registry, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{registry: registry, logger: logger}
}

// Render 按文档顺序渲染每个区块。单个区块渲染失败只影响自身：
// 该位置输出一个最小的回退卡片，整页照常渲染。
func (r *Renderer) Render(doc document.Document, theme Theme, data RuntimeData) (*Tree, error) {
	if doc.IsEmpty() {
		return nil, ErrNoContent
	}

	palette := DerivePalette(theme)
	tree := &Tree{
		Blocks:  make([]BlockNode, 0, len(doc.Blocks)),
		Palette: palette,
		Styles:  palette.Vars(),
	}

	rc := blocks.RuntimeContext{
		Jobs:       data.Jobs,
		Pagination: data.Pagination,
	}

	for _, b := range doc.Blocks {
		props := b.Props
		if b.Type == blocks.TypeJobs {
			// 职位数据唯一的注入点：props 中的任何职位存根都被覆盖。
			props = stripJobStubs(props)
		}

		node, err := r.renderBlock(b.Type, props, rc)
		if err != nil {
			r.logger.Error("block render failed",
				slog.String("block_id", b.ID),
				slog.String("type", string(b.Type)),
				slog.Any("error", err),
			)
			tree.Blocks = append(tree.Blocks, BlockNode{
				ID:    b.ID,
				Type:  b.Type,
				Node:  fallbackNode(b, r.registry),
				Error: true,
			})
			continue
		}

		tree.Blocks = append(tree.Blocks, BlockNode{ID: b.ID, Type: b.Type, Node: node})
	}

	return tree, nil
}

// renderBlock 隔离单个区块的渲染故障，包括渲染函数内部的 panic。
func (r *Renderer) renderBlock(t blocks.Type, props blocks.Props, rc blocks.RuntimeContext) (node *blocks.Node, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			node = nil
			err = fmt.Errorf("renderer panic: %v", rec)
		}
	}()
	return r.registry.Render(t, props, rc)
}

// stripJobStubs 去掉 props 中可能被手写进来的职位数据。
func stripJobStubs(props blocks.Props) blocks.Props {
	if _, present := props["jobs"]; !present {
		return props
	}
	cleaned := blocks.Props{}
	for k, v := range props {
		if k == "jobs" {
			continue
		}
		cleaned[k] = v
	}
	return cleaned
}

// fallbackNode 为渲染失败的区块生成最小回退卡片：
// 尽量保留原 props 中的标题与空态文案。
func fallbackNode(b document.Block, registry *blocks.Registry) *blocks.Node {
	heading := extractString(b.Props, "heading")
	if heading == "" {
		heading = extractString(b.Props, "title")
	}
	if heading == "" {
		heading = extractString(registry.DefaultProps(b.Type), "heading")
	}
	empty := extractString(b.Props, "emptyState")

	node := blocks.NewNode("fallback-card")
	if heading != "" {
		node.Append(blocks.NewNode("heading").WithText(heading))
	}
	if empty != "" {
		node.Append(blocks.NewNode("empty-state").WithText(empty))
	}
	return node
}

func extractString(props blocks.Props, key string) string {
	if props == nil {
		return ""
	}
	if s, ok := props[key].(string); ok {
		return s
	}
	// 数字等标量也容忍为空串，不让回退路径再出错。
	if raw, ok := props[key]; ok {
		if data, err := json.Marshal(raw); err == nil {
			var s string
			if json.Unmarshal(data, &s) == nil {
				return s
			}
		}
	}
	return ""
}
