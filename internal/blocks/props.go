package blocks

import "encoding/json"

// 各区块类型的强类型字段结构。注册表在默认值与 Schema 校验时
// 以这些结构为唯一事实来源；编辑器侧的松散 map 在注册表边界处
// 被折算回这里定义的形态。

// HeroProps 是页面顶部横幅的配置。
type HeroProps struct {
	Title              string `json:"title"`
	Subtitle           string `json:"subtitle"`
	LogoURL            string `json:"logoUrl"`
	BackgroundImageURL string `json:"backgroundImageUrl"`
	VideoURL           string `json:"videoUrl"`
	CTALabel           string `json:"ctaLabel"`
}

// Benefit 表示福利列表中的一项。
type Benefit struct {
	Icon        string `json:"icon"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// BenefitsProps 是福利区块的配置。
type BenefitsProps struct {
	Heading  string    `json:"heading"`
	Benefits []Benefit `json:"benefits"`
}

// TeamMember 表示团队成员卡片。
type TeamMember struct {
	Name      string `json:"name"`
	Role      string `json:"role"`
	PhotoURL  string `json:"photoUrl"`
	Quote     string `json:"quote"`
}

// TeamProps 是团队区块的配置。
type TeamProps struct {
	Heading string       `json:"heading"`
	Members []TeamMember `json:"members"`
}

// JobsProps 是职位区块的配置。职位数据本身在渲染期注入，
// 这里只允许配置标题与空态文案。
type JobsProps struct {
	Heading    string `json:"heading"`
	EmptyState string `json:"emptyState"`
}

// VideoProps 是视频区块的配置。
type VideoProps struct {
	Heading  string `json:"heading"`
	VideoURL string `json:"videoUrl"`
}

// FooterSection 表示页脚中的一栏链接。
type FooterSection struct {
	Title string   `json:"title"`
	Links []string `json:"links"`
}

// FooterProps 是页脚区块的配置。
type FooterProps struct {
	CompanyName string          `json:"companyName"`
	Tagline     string          `json:"tagline"`
	Sections    []FooterSection `json:"sections"`
}

// toProps 通过 JSON 往返把强类型结构折算为字段包。
// 字段名因此与 Schema/wire 格式必然一致。
func toProps(v any) Props {
	data, err := json.Marshal(v)
	if err != nil {
		return Props{}
	}
	var out Props
	if err := json.Unmarshal(data, &out); err != nil {
		return Props{}
	}
	return out
}

// DecodeProps 把字段包折算为目标类型的强类型结构。
// 未知键被忽略，形态不符的字段保持零值。
func DecodeProps(props Props, target any) error {
	data, err := json.Marshal(props)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}
