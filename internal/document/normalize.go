package document

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"phCareers/internal/blocks"
)

// Normalizer 是文档修复/校验的唯一入口。任何变更路径都必须经过
// Normalize，不允许在调用侧另起一套校验逻辑。
type Normalizer struct {
	registry *blocks.Registry
	logger   *slog.Logger
}

// NewNormalizer 构造规范化器。
func NewNormalizer(registry *blocks.Registry, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{registry: registry, logger: logger}
}

// HeroID 返回给定页面的 Hero 合成 ID。重复合成不会抖动身份。
func HeroID(ownerID string) string {
	return "hero-section-" + ownerID
}

// FooterID 返回给定页面的 Footer 合成 ID。
func FooterID(ownerID string) string {
	return "footer-section-" + ownerID
}

// NormalizeRaw 解析并规范化持久化字节。对任意输入都安全。
func (n *Normalizer) NormalizeRaw(data []byte, ownerID string) Document {
	return n.Normalize(Parse(data), ownerID)
}

// Normalize 对文档执行全部修复步骤，幂等且从不 panic：
//  1. 过滤结构上无效的条目（缺 type 或 props 不是对象）；
//  2. 过滤注册表不认识的类型；
//  3. 按 (type, 序列化 props) 去重，保留首个；
//  4. 补齐/去撞 ID；
//  5. 抽出全部 Hero，保留首个或合成一个，置于开头；
//  6. 抽出全部 Footer，保留首个或合成一个，置于末尾；
//  7. 重跑 ID 唯一性；最后校验每个区块都有可调用的渲染函数。
func (n *Normalizer) Normalize(doc Document, ownerID string) Document {
	out := Empty()
	out.RootProps = cloneMap(doc.RootProps)

	// 步骤 1+2：结构过滤与类型过滤，并把 props 收敛到 Schema 键集。
	kept := make([]Block, 0, len(doc.Blocks))
	for _, b := range doc.Blocks {
		if b.Type == "" || b.Props == nil {
			continue
		}
		if !n.registry.IsKnown(b.Type) || !n.registry.HasRenderer(b.Type) {
			n.logger.Debug("dropping block of unknown type",
				slog.String("type", string(b.Type)),
				slog.String("owner_id", ownerID),
			)
			continue
		}
		kept = append(kept, Block{
			ID:    strings.TrimSpace(b.ID),
			Type:  b.Type,
			Props: n.registry.CleanProps(b.Type, blocks.Props(cloneMap(b.Props))),
		})
	}

	// 步骤 3：完全重复的区块只保留首个。
	kept = dedupBlocks(kept)

	// 步骤 4：补齐缺失 ID，化解重复 ID。
	kept = assignIDs(kept)

	// 步骤 5：Hero 固定在首位，缺失则合成。
	hero, rest := extractFirst(kept, blocks.TypeHero, ownerID, n.logger)
	if hero == nil {
		hero = &Block{
			ID:    HeroID(ownerID),
			Type:  blocks.TypeHero,
			Props: n.registry.DefaultProps(blocks.TypeHero),
		}
	}

	// 步骤 6：Footer 固定在末位，缺失则合成。
	footer, middle := extractFirst(rest, blocks.TypeFooter, ownerID, n.logger)
	if footer == nil {
		footer = &Block{
			ID:    FooterID(ownerID),
			Type:  blocks.TypeFooter,
			Props: n.registry.DefaultProps(blocks.TypeFooter),
		}
	}

	final := make([]Block, 0, len(middle)+2)
	final = append(final, *hero)
	final = append(final, middle...)
	final = append(final, *footer)

	// 步骤 7：抽取/合成可能重新引入撞号，再跑一遍唯一性。
	final = assignIDs(final)

	// 终检：任何没有可调用渲染函数的区块都不允许流出。
	verified := final[:0]
	for _, b := range final {
		if !n.registry.HasRenderer(b.Type) {
			n.logger.Warn("dropping block without renderer",
				slog.String("type", string(b.Type)),
				slog.String("id", b.ID),
			)
			continue
		}
		verified = append(verified, b)
	}

	out.Blocks = verified
	return out
}

// dedupBlocks 按 (type, 序列化 props) 去重。props 经 json.Marshal
// 序列化，map 键有序，因此形态相同的配置必然得到相同的指纹。
func dedupBlocks(in []Block) []Block {
	seen := map[string]struct{}{}
	out := make([]Block, 0, len(in))
	for _, b := range in {
		fingerprint := string(b.Type) + "\x00" + serializeProps(b.Props)
		if _, dup := seen[fingerprint]; dup {
			continue
		}
		seen[fingerprint] = struct{}{}
		out = append(out, b)
	}
	return out
}

func serializeProps(props blocks.Props) string {
	data, err := json.Marshal(props)
	if err != nil {
		return ""
	}
	return string(data)
}

// assignIDs 为空 ID 生成标识，并为重复 ID 追加数字后缀。
// 每个基准 ID 维护独立计数器，保证后缀稳定递增。
func assignIDs(in []Block) []Block {
	seen := map[string]struct{}{}
	counters := map[string]int{}
	out := make([]Block, 0, len(in))

	for i, b := range in {
		id := strings.TrimSpace(b.ID)
		if id == "" {
			id = generateID(b.Type, i)
		}
		if _, taken := seen[id]; taken {
			base := id
			for {
				counters[base]++
				candidate := fmt.Sprintf("%s-%d", base, counters[base]+1)
				if _, taken := seen[candidate]; !taken {
					id = candidate
					break
				}
			}
		}
		seen[id] = struct{}{}
		b.ID = id
		out = append(out, b)
	}
	return out
}

func generateID(t blocks.Type, position int) string {
	return fmt.Sprintf("%s-%d-%d", strings.ToLower(string(t)), position, time.Now().UnixMilli())
}

// extractFirst 抽出全部指定类型的区块，保留首个（含其 ID 与 props，
// 避免丢弃用户编辑），多余的记一条修正日志后丢弃。
func extractFirst(in []Block, t blocks.Type, ownerID string, logger *slog.Logger) (*Block, []Block) {
	var first *Block
	rest := make([]Block, 0, len(in))
	dropped := 0

	for _, b := range in {
		if b.Type != t {
			rest = append(rest, b)
			continue
		}
		if first == nil {
			kept := b
			first = &kept
			continue
		}
		dropped++
	}

	if dropped > 0 {
		logger.Info("corrected duplicate pinned block",
			slog.String("type", string(t)),
			slog.String("owner_id", ownerID),
			slog.Int("dropped", dropped),
		)
	}
	return first, rest
}
