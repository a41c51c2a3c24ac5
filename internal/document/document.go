package document

import (
	"encoding/json"

	"gorm.io/datatypes"

	"phCareers/internal/blocks"
)

// Block 是文档中的一个内容单元。
type Block struct {
	ID    string
	Type  blocks.Type
	Props blocks.Props
}

// Document 是招聘页面正文：有序的区块序列加页面级保留字段。
// RootProps 目前未使用，为页面级设置预留。
type Document struct {
	Blocks    []Block
	RootProps map[string]any
}

// Empty 返回空文档。
func Empty() Document {
	return Document{Blocks: []Block{}, RootProps: map[string]any{}}
}

// IsEmpty 报告文档是否没有任何区块。
func (d Document) IsEmpty() bool {
	return len(d.Blocks) == 0
}

// Clone 返回文档的深拷贝（props 经由 JSON 往返复制）。
func (d Document) Clone() Document {
	out := Document{
		Blocks:    make([]Block, 0, len(d.Blocks)),
		RootProps: cloneMap(d.RootProps),
	}
	for _, b := range d.Blocks {
		out.Blocks = append(out.Blocks, Block{
			ID:    b.ID,
			Type:  b.Type,
			Props: blocks.Props(cloneMap(b.Props)),
		})
	}
	return out
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return map[string]any{}
	}
	data, err := json.Marshal(in)
	if err != nil {
		return map[string]any{}
	}
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{}
	}
	return out
}

// wire 格式，对外保持稳定：
// { content: [ { type, id, props }, ... ], root: { props: {} } }

type wireBlock struct {
	Type  string         `json:"type"`
	ID    string         `json:"id"`
	Props map[string]any `json:"props"`
}

type wireRoot struct {
	Props map[string]any `json:"props"`
}

type wireDocument struct {
	Content []wireBlock `json:"content"`
	Root    wireRoot    `json:"root"`
}

// Parse 宽容地解析持久化格式。输入不是可识别的对象时返回空文档；
// 单个条目的结构问题只影响该条目（Props 保持 nil，交由规范化丢弃）。
func Parse(data []byte) Document {
	if len(data) == 0 {
		return Empty()
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return Empty()
	}

	doc := Empty()

	if rootRaw, ok := envelope["root"]; ok {
		var root wireRoot
		if err := json.Unmarshal(rootRaw, &root); err == nil && root.Props != nil {
			doc.RootProps = root.Props
		}
	}

	contentRaw, ok := envelope["content"]
	if !ok {
		return doc
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(contentRaw, &entries); err != nil {
		return doc
	}

	for _, entry := range entries {
		var wb wireBlock
		if err := json.Unmarshal(entry, &wb); err != nil {
			// 非对象条目：保留一个结构无效的占位，由规范化统一丢弃。
			doc.Blocks = append(doc.Blocks, Block{})
			continue
		}
		doc.Blocks = append(doc.Blocks, Block{
			ID:    wb.ID,
			Type:  blocks.Type(wb.Type),
			Props: wb.Props,
		})
	}

	return doc
}

// Marshal 把文档序列化为持久化格式。
func Marshal(doc Document) (datatypes.JSON, error) {
	wire := wireDocument{
		Content: make([]wireBlock, 0, len(doc.Blocks)),
		Root:    wireRoot{Props: doc.RootProps},
	}
	if wire.Root.Props == nil {
		wire.Root.Props = map[string]any{}
	}
	for _, b := range doc.Blocks {
		props := map[string]any(b.Props)
		if props == nil {
			props = map[string]any{}
		}
		wire.Content = append(wire.Content, wireBlock{
			Type:  string(b.Type),
			ID:    b.ID,
			Props: props,
		})
	}

	data, err := json.Marshal(wire)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

// Equal 报告两个文档在序列化形态上是否相等。
func Equal(a, b Document) bool {
	da, err := Marshal(a)
	if err != nil {
		return false
	}
	db, err := Marshal(b)
	if err != nil {
		return false
	}
	return string(da) == string(db)
}
