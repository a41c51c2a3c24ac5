package editor

import (
	"phCareers/internal/blocks"
	"phCareers/internal/document"
	"phCareers/internal/pagestore"
)

// 资产注入是加法规则：页面级 logo/banner/video 只填充 Hero 中
// 尚未设置的字段，手工编辑永远优先。唯一的例外是资产被整体
// 移除：若 Hero 字段仍等于被移除的旧值，则一并清空。
// 判断"是否被手工编辑过"基于字段当前是否为空，而不是脏标记，
// 与来源行为保持一致。

type assetBinding struct {
	heroField string
	oldValue  func(pagestore.Assets) string
	newValue  func(pagestore.Assets) string
}

var assetBindings = []assetBinding{
	{
		heroField: "logoUrl",
		oldValue:  func(a pagestore.Assets) string { return a.LogoURL },
		newValue:  func(a pagestore.Assets) string { return a.LogoURL },
	},
	{
		heroField: "backgroundImageUrl",
		oldValue:  func(a pagestore.Assets) string { return a.BannerURL },
		newValue:  func(a pagestore.Assets) string { return a.BannerURL },
	},
	{
		heroField: "videoUrl",
		oldValue:  func(a pagestore.Assets) string { return a.VideoURL },
		newValue:  func(a pagestore.Assets) string { return a.VideoURL },
	},
}

// InjectAssets 把页面级资产按加法规则写入 Hero 的 props。
// 输入文档不被修改，返回注入后的副本。
func InjectAssets(doc document.Document, old, updated pagestore.Assets) document.Document {
	out := doc.Clone()

	for i := range out.Blocks {
		if out.Blocks[i].Type != blocks.TypeHero {
			continue
		}
		props := out.Blocks[i].Props
		if props == nil {
			props = blocks.Props{}
			out.Blocks[i].Props = props
		}

		for _, binding := range assetBindings {
			current, _ := props[binding.heroField].(string)
			next := binding.newValue(updated)
			prev := binding.oldValue(old)

			switch {
			case next != "" && current == "":
				props[binding.heroField] = next
			case next == "" && prev != "" && current == prev:
				props[binding.heroField] = ""
			}
		}
		break
	}

	return out
}
