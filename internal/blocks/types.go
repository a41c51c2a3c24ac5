package blocks

// Type 标识一种内容区块。目录是封闭的：仅注册表中的类型有效。
type Type string

const (
	TypeHero     Type = "Hero"
	TypeBenefits Type = "Benefits"
	TypeTeam     Type = "Team"
	TypeJobs     Type = "Jobs"
	TypeVideo    Type = "Video"
	TypeFooter   Type = "Footer"
)

// Props 表示区块的配置字段包。键集合受各类型 Schema 约束。
type Props map[string]any

// Permissions 描述区块的放置/复制规则。
type Permissions struct {
	CanDelete    bool
	CanDuplicate bool
}

// FieldKind 表示 Schema 字段的取值形态。
type FieldKind string

const (
	KindString  FieldKind = "string"
	KindNumber  FieldKind = "number"
	KindBool    FieldKind = "bool"
	KindRecords FieldKind = "records" // array of records（如福利列表、团队成员）
)

// Field 描述 Schema 中的一个命名字段。
type Field struct {
	Name string
	Kind FieldKind
}

// 主题派生调色板的样式变量名。区块渲染函数只允许引用这些名字，
// 不得硬编码颜色值；具体取值由渲染器在渲染时解析。
const (
	StyleVarPrimary         = "--pc-primary"
	StyleVarPrimarySoft     = "--pc-primary-soft"
	StyleVarPrimaryStrong   = "--pc-primary-strong"
	StyleVarSecondary       = "--pc-secondary"
	StyleVarSecondarySoft   = "--pc-secondary-soft"
	StyleVarSecondaryStrong = "--pc-secondary-strong"
	StyleVarHeading         = "--pc-heading"
	StyleVarText            = "--pc-text"
)

// JobView 是渲染时注入的职位视图。Jobs 区块的 props 永远不携带
// 职位数据，渲染器总是以运行期数据覆盖。
type JobView struct {
	ID          uint   `json:"id"`
	Title       string `json:"title"`
	Location    string `json:"location"`
	Department  string `json:"department"`
	Employment  string `json:"employment"`
	SalaryRange string `json:"salary_range"`
}

// Pagination 描述公共页职位列表的分页状态。
type Pagination struct {
	Page       int `json:"page"`
	TotalPages int `json:"total_pages"`
	TotalItems int `json:"total_items"`
}

// RuntimeContext 携带渲染期注入的数据。
type RuntimeContext struct {
	Jobs       []JobView
	Pagination *Pagination
}

// Node 是渲染输出树中的一个节点。
type Node struct {
	Kind     string            `json:"kind"`
	Text     string            `json:"text,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Children []*Node           `json:"children,omitempty"`
}

// NewNode 构造带属性的节点。
func NewNode(kind string) *Node {
	return &Node{Kind: kind, Attrs: map[string]string{}}
}

// WithAttr 设置属性并返回自身，便于链式构造。
func (n *Node) WithAttr(key, value string) *Node {
	if n.Attrs == nil {
		n.Attrs = map[string]string{}
	}
	n.Attrs[key] = value
	return n
}

// WithText 设置文本并返回自身。
func (n *Node) WithText(text string) *Node {
	n.Text = text
	return n
}

// Append 追加子节点并返回自身。
func (n *Node) Append(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}
