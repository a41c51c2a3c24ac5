package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"phCareers/internal/blocks"
)

// 主题只持久化两种基准色，派生色板在每次读取时重新计算，
// 永远不落库。全部变换都是确定性的 HSL 调整。

const (
	defaultPrimary   = "#2563eb"
	defaultSecondary = "#0f766e"

	softLightenAmount  = 0.38
	strongDarkenAmount = 0.18
	headingLightness   = 0.16
	textLightness      = 0.28
)

// Theme 是页面的基准配色。
type Theme struct {
	PrimaryColor   string `json:"primary_color"`
	SecondaryColor string `json:"secondary_color"`
}

// Palette 是从主题派生的完整色板。
type Palette struct {
	Primary         string `json:"primary"`
	PrimarySoft     string `json:"primary_soft"`
	PrimaryStrong   string `json:"primary_strong"`
	Secondary       string `json:"secondary"`
	SecondarySoft   string `json:"secondary_soft"`
	SecondaryStrong string `json:"secondary_strong"`
	Heading         string `json:"heading"`
	Text            string `json:"text"`
}

// DerivePalette 由主题计算色板。非法的颜色值回落到默认基准色。
func DerivePalette(theme Theme) Palette {
	primary := normalizeHex(theme.PrimaryColor, defaultPrimary)
	secondary := normalizeHex(theme.SecondaryColor, defaultSecondary)

	return Palette{
		Primary:         primary,
		PrimarySoft:     lighten(primary, softLightenAmount),
		PrimaryStrong:   darken(primary, strongDarkenAmount),
		Secondary:       secondary,
		SecondarySoft:   lighten(secondary, softLightenAmount),
		SecondaryStrong: darken(secondary, strongDarkenAmount),
		Heading:         withLightness(primary, headingLightness),
		Text:            withLightness(secondary, textLightness),
	}
}

// Vars 以样式变量名为键导出色板。区块渲染输出中引用的
// var(--pc-*) 由调用方用这张表解析。
func (p Palette) Vars() map[string]string {
	return map[string]string{
		blocks.StyleVarPrimary:         p.Primary,
		blocks.StyleVarPrimarySoft:     p.PrimarySoft,
		blocks.StyleVarPrimaryStrong:   p.PrimaryStrong,
		blocks.StyleVarSecondary:       p.Secondary,
		blocks.StyleVarSecondarySoft:   p.SecondarySoft,
		blocks.StyleVarSecondaryStrong: p.SecondaryStrong,
		blocks.StyleVarHeading:         p.Heading,
		blocks.StyleVarText:            p.Text,
	}
}

func normalizeHex(value, fallback string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if len(value) == 4 && value[0] == '#' {
		// #abc -> #aabbcc
		value = fmt.Sprintf("#%c%c%c%c%c%c", value[1], value[1], value[2], value[2], value[3], value[3])
	}
	if len(value) != 7 || value[0] != '#' {
		return fallback
	}
	if _, err := strconv.ParseUint(value[1:], 16, 32); err != nil {
		return fallback
	}
	return value
}

type hsl struct {
	h, s, l float64
}

func parseHSL(hex string) hsl {
	v, _ := strconv.ParseUint(hex[1:], 16, 32)
	r := float64((v>>16)&0xff) / 255
	g := float64((v>>8)&0xff) / 255
	b := float64(v&0xff) / 255

	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	l := (max + min) / 2

	if max == min {
		return hsl{0, 0, l}
	}

	d := max - min
	var s float64
	if l > 0.5 {
		s = d / (2 - max - min)
	} else {
		s = d / (max + min)
	}

	var h float64
	switch max {
	case r:
		h = (g - b) / d
		if g < b {
			h += 6
		}
	case g:
		h = (b-r)/d + 2
	default:
		h = (r-g)/d + 4
	}
	h /= 6

	return hsl{h, s, l}
}

func (c hsl) hex() string {
	var r, g, b float64
	if c.s == 0 {
		r, g, b = c.l, c.l, c.l
	} else {
		var q float64
		if c.l < 0.5 {
			q = c.l * (1 + c.s)
		} else {
			q = c.l + c.s - c.l*c.s
		}
		p := 2*c.l - q
		r = hueToRGB(p, q, c.h+1.0/3)
		g = hueToRGB(p, q, c.h)
		b = hueToRGB(p, q, c.h-1.0/3)
	}
	return fmt.Sprintf("#%02x%02x%02x",
		int(math.Round(r*255)),
		int(math.Round(g*255)),
		int(math.Round(b*255)),
	)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6:
		return p + (q-p)*6*t
	case t < 1.0/2:
		return q
	case t < 2.0/3:
		return p + (q-p)*(2.0/3-t)*6
	default:
		return p
	}
}

func lighten(hex string, amount float64) string {
	c := parseHSL(hex)
	c.l = math.Min(1, c.l+amount)
	return c.hex()
}

func darken(hex string, amount float64) string {
	c := parseHSL(hex)
	c.l = math.Max(0, c.l-amount)
	return c.hex()
}

func withLightness(hex string, lightness float64) string {
	c := parseHSL(hex)
	c.l = lightness
	return c.hex()
}
