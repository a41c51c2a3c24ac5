package blocks

import (
	"fmt"
	"strconv"
)

// 内建渲染函数。输出节点只引用样式变量名（--pc-*），
// 不携带任何具体颜色值。

func styleVar(name string) string {
	return "var(" + name + ")"
}

func renderHero(props Props, _ RuntimeContext) (*Node, error) {
	var p HeroProps
	if err := DecodeProps(props, &p); err != nil {
		return nil, fmt.Errorf("decode hero props: %w", err)
	}

	node := NewNode("hero").
		WithAttr("background", styleVar(StyleVarPrimarySoft))
	if p.BackgroundImageURL != "" {
		node.WithAttr("backgroundImage", p.BackgroundImageURL)
	}
	if p.LogoURL != "" {
		node.Append(NewNode("logo").WithAttr("src", p.LogoURL))
	}
	node.Append(
		NewNode("heading").WithText(p.Title).WithAttr("color", styleVar(StyleVarHeading)),
		NewNode("subheading").WithText(p.Subtitle).WithAttr("color", styleVar(StyleVarText)),
	)
	if p.CTALabel != "" {
		node.Append(NewNode("cta").
			WithText(p.CTALabel).
			WithAttr("background", styleVar(StyleVarPrimaryStrong)))
	}
	return node, nil
}

func renderBenefits(props Props, _ RuntimeContext) (*Node, error) {
	var p BenefitsProps
	if err := DecodeProps(props, &p); err != nil {
		return nil, fmt.Errorf("decode benefits props: %w", err)
	}

	node := NewNode("benefits")
	node.Append(NewNode("heading").WithText(p.Heading).WithAttr("color", styleVar(StyleVarHeading)))
	list := NewNode("benefit-list")
	for _, b := range p.Benefits {
		list.Append(NewNode("benefit-card").
			WithAttr("icon", b.Icon).
			WithAttr("accent", styleVar(StyleVarSecondary)).
			Append(
				NewNode("title").WithText(b.Title),
				NewNode("description").WithText(b.Description).WithAttr("color", styleVar(StyleVarText)),
			))
	}
	return node.Append(list), nil
}

func renderTeam(props Props, _ RuntimeContext) (*Node, error) {
	var p TeamProps
	if err := DecodeProps(props, &p); err != nil {
		return nil, fmt.Errorf("decode team props: %w", err)
	}

	node := NewNode("team")
	node.Append(NewNode("heading").WithText(p.Heading).WithAttr("color", styleVar(StyleVarHeading)))
	grid := NewNode("member-grid")
	for _, m := range p.Members {
		card := NewNode("member-card").WithAttr("accent", styleVar(StyleVarSecondarySoft))
		if m.PhotoURL != "" {
			card.Append(NewNode("photo").WithAttr("src", m.PhotoURL))
		}
		card.Append(
			NewNode("name").WithText(m.Name),
			NewNode("role").WithText(m.Role).WithAttr("color", styleVar(StyleVarText)),
		)
		if m.Quote != "" {
			card.Append(NewNode("quote").WithText(m.Quote))
		}
		grid.Append(card)
	}
	return node.Append(grid), nil
}

// renderJobs 只消费运行期注入的职位列表。props 中即便出现
// 职位数据也会被忽略：编辑者不能手写职位。
func renderJobs(props Props, rc RuntimeContext) (*Node, error) {
	var p JobsProps
	if err := DecodeProps(props, &p); err != nil {
		return nil, fmt.Errorf("decode jobs props: %w", err)
	}

	node := NewNode("jobs")
	node.Append(NewNode("heading").WithText(p.Heading).WithAttr("color", styleVar(StyleVarHeading)))

	if len(rc.Jobs) == 0 {
		return node.Append(NewNode("empty-state").
			WithText(p.EmptyState).
			WithAttr("color", styleVar(StyleVarText))), nil
	}

	list := NewNode("job-list")
	for _, job := range rc.Jobs {
		list.Append(NewNode("job-card").
			WithAttr("jobId", strconv.FormatUint(uint64(job.ID), 10)).
			WithAttr("accent", styleVar(StyleVarPrimary)).
			Append(
				NewNode("title").WithText(job.Title),
				NewNode("meta").WithText(jobMeta(job)).WithAttr("color", styleVar(StyleVarText)),
			))
	}
	node.Append(list)

	if rc.Pagination != nil {
		node.Append(NewNode("pagination").
			WithAttr("page", strconv.Itoa(rc.Pagination.Page)).
			WithAttr("totalPages", strconv.Itoa(rc.Pagination.TotalPages)).
			WithAttr("totalItems", strconv.Itoa(rc.Pagination.TotalItems)))
	}
	return node, nil
}

func jobMeta(job JobView) string {
	meta := job.Location
	if job.Employment != "" {
		if meta != "" {
			meta += " · "
		}
		meta += job.Employment
	}
	if job.Department != "" {
		if meta != "" {
			meta += " · "
		}
		meta += job.Department
	}
	return meta
}

func renderVideo(props Props, _ RuntimeContext) (*Node, error) {
	var p VideoProps
	if err := DecodeProps(props, &p); err != nil {
		return nil, fmt.Errorf("decode video props: %w", err)
	}

	node := NewNode("video")
	node.Append(NewNode("heading").WithText(p.Heading).WithAttr("color", styleVar(StyleVarHeading)))
	if p.VideoURL != "" {
		node.Append(NewNode("player").WithAttr("src", p.VideoURL))
	}
	return node, nil
}

func renderFooter(props Props, _ RuntimeContext) (*Node, error) {
	var p FooterProps
	if err := DecodeProps(props, &p); err != nil {
		return nil, fmt.Errorf("decode footer props: %w", err)
	}

	node := NewNode("footer").WithAttr("background", styleVar(StyleVarSecondaryStrong))
	node.Append(
		NewNode("company").WithText(p.CompanyName),
		NewNode("tagline").WithText(p.Tagline).WithAttr("color", styleVar(StyleVarText)),
	)
	for _, section := range p.Sections {
		col := NewNode("footer-section").Append(NewNode("title").WithText(section.Title))
		for _, link := range section.Links {
			col.Append(NewNode("link").WithText(link))
		}
		node.Append(col)
	}
	return node, nil
}
