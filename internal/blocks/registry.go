package blocks

import (
	"errors"
	"fmt"
)

// ErrUnknownType 表示类型不在封闭目录中。
var ErrUnknownType = errors.New("unknown block type")

// RenderFunc 把一个区块的 props 与运行期数据渲染为节点子树。
type RenderFunc func(props Props, rc RuntimeContext) (*Node, error)

// Definition 聚合一种区块类型的全部注册信息。
type Definition struct {
	Type        Type
	Fields      []Field
	Defaults    func() Props
	Permissions Permissions
	Render      RenderFunc
}

// Registry 是区块类型的只读目录。进程启动时构建一次，
// 之后注入到文档模型与渲染器中，不作为全局可变状态使用。
type Registry struct {
	defs  map[Type]Definition
	order []Type
}

// NewRegistry 构建封闭目录。Hero 与 Footer 不可删除、不可复制，
// 其余类型默认允许。
func NewRegistry() *Registry {
	r := &Registry{defs: map[Type]Definition{}}

	r.register(Definition{
		Type: TypeHero,
		Fields: []Field{
			{Name: "title", Kind: KindString},
			{Name: "subtitle", Kind: KindString},
			{Name: "logoUrl", Kind: KindString},
			{Name: "backgroundImageUrl", Kind: KindString},
			{Name: "videoUrl", Kind: KindString},
			{Name: "ctaLabel", Kind: KindString},
		},
		Defaults: func() Props {
			return toProps(HeroProps{
				Title:    "加入我们",
				Subtitle: "和我们一起打造下一代产品",
				CTALabel: "查看职位",
			})
		},
		Permissions: Permissions{CanDelete: false, CanDuplicate: false},
		Render:      renderHero,
	})

	r.register(Definition{
		Type: TypeBenefits,
		Fields: []Field{
			{Name: "heading", Kind: KindString},
			{Name: "benefits", Kind: KindRecords},
		},
		Defaults: func() Props {
			return toProps(BenefitsProps{
				Heading: "我们的福利",
				Benefits: []Benefit{
					{Icon: "health", Title: "健康保障", Description: "补充医疗与年度体检"},
					{Icon: "growth", Title: "成长空间", Description: "学习基金与内部轮岗"},
				},
			})
		},
		Permissions: Permissions{CanDelete: true, CanDuplicate: true},
		Render:      renderBenefits,
	})

	r.register(Definition{
		Type: TypeTeam,
		Fields: []Field{
			{Name: "heading", Kind: KindString},
			{Name: "members", Kind: KindRecords},
		},
		Defaults: func() Props {
			return toProps(TeamProps{Heading: "认识团队"})
		},
		Permissions: Permissions{CanDelete: true, CanDuplicate: true},
		Render:      renderTeam,
	})

	r.register(Definition{
		Type: TypeJobs,
		Fields: []Field{
			{Name: "heading", Kind: KindString},
			{Name: "emptyState", Kind: KindString},
		},
		Defaults: func() Props {
			return toProps(JobsProps{
				Heading:    "在招职位",
				EmptyState: "暂时没有开放的职位，欢迎稍后再来看看。",
			})
		},
		Permissions: Permissions{CanDelete: true, CanDuplicate: true},
		Render:      renderJobs,
	})

	r.register(Definition{
		Type: TypeVideo,
		Fields: []Field{
			{Name: "heading", Kind: KindString},
			{Name: "videoUrl", Kind: KindString},
		},
		Defaults: func() Props {
			return toProps(VideoProps{Heading: "了解我们"})
		},
		Permissions: Permissions{CanDelete: true, CanDuplicate: true},
		Render:      renderVideo,
	})

	r.register(Definition{
		Type: TypeFooter,
		Fields: []Field{
			{Name: "companyName", Kind: KindString},
			{Name: "tagline", Kind: KindString},
			{Name: "sections", Kind: KindRecords},
		},
		Defaults: func() Props {
			return toProps(FooterProps{Tagline: "期待与你相遇"})
		},
		Permissions: Permissions{CanDelete: false, CanDuplicate: false},
		Render:      renderFooter,
	})

	return r
}

func (r *Registry) register(def Definition) {
	r.defs[def.Type] = def
	r.order = append(r.order, def.Type)
}

// IsKnown 报告类型是否在目录中。
func (r *Registry) IsKnown(t Type) bool {
	_, ok := r.defs[t]
	return ok
}

// HasRenderer 报告类型是否注册了可调用的渲染函数。
func (r *Registry) HasRenderer(t Type) bool {
	def, ok := r.defs[t]
	return ok && def.Render != nil
}

// Schema 返回类型的字段定义。
func (r *Registry) Schema(t Type) ([]Field, error) {
	def, ok := r.defs[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	return def.Fields, nil
}

// DefaultProps 返回类型的默认字段包。
func (r *Registry) DefaultProps(t Type) Props {
	def, ok := r.defs[t]
	if !ok || def.Defaults == nil {
		return Props{}
	}
	return def.Defaults()
}

// Permissions 返回类型的放置/复制规则。未知类型视为不可操作。
func (r *Registry) Permissions(t Type) Permissions {
	def, ok := r.defs[t]
	if !ok {
		return Permissions{}
	}
	return def.Permissions
}

// KnownTypes 按注册顺序返回目录中的全部类型。
func (r *Registry) KnownTypes() []Type {
	out := make([]Type, len(r.order))
	copy(out, r.order)
	return out
}

// CleanProps 只保留 Schema 定义过的键，丢弃其余内容。
// 区块的 props 不允许携带目录之外的字段。
func (r *Registry) CleanProps(t Type, props Props) Props {
	def, ok := r.defs[t]
	if !ok {
		return Props{}
	}
	cleaned := Props{}
	for _, field := range def.Fields {
		if value, present := props[field.Name]; present {
			cleaned[field.Name] = value
		}
	}
	return cleaned
}

// Render 调用类型注册的渲染函数。
func (r *Registry) Render(t Type, props Props, rc RuntimeContext) (*Node, error) {
	def, ok := r.defs[t]
	if !ok || def.Render == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	return def.Render(props, rc)
}
