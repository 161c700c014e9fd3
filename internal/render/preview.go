package render

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/jacl-coder/ElementalCard-Server/internal/models"
)

// 预览图尺寸
const (
	PreviewWidth  = 300
	PreviewHeight = 420

	margin   = 16
	barWidth = PreviewWidth - 2*margin
	barH     = 14
	qrSize   = 96
	starSize = 18
)

var (
	panelColor   = color.NRGBA{R: 0xf5, G: 0xf5, B: 0xf0, A: 0xff}
	trackColor   = color.NRGBA{R: 0xd0, G: 0xd0, B: 0xd0, A: 0xff}
	powerColor   = color.NRGBA{R: 0xe0, G: 0x40, B: 0x30, A: 0xff}
	defenseColor = color.NRGBA{R: 0x30, G: 0x60, B: 0xd0, A: 0xff}
	rarityColor  = color.NRGBA{R: 0xf0, G: 0xc0, B: 0x20, A: 0xff}
)

// ElementColor 元素对应的边框颜色，未知元素为灰色
func ElementColor(e models.Element) color.NRGBA {
	switch strings.ToLower(string(e)) {
	case "fire":
		return color.NRGBA{R: 0xd8, G: 0x48, B: 0x20, A: 0xff}
	case "water":
		return color.NRGBA{R: 0x28, G: 0x78, B: 0xd8, A: 0xff}
	case "grass":
		return color.NRGBA{R: 0x38, G: 0xa8, B: 0x48, A: 0xff}
	case "electric":
		return color.NRGBA{R: 0xe8, G: 0xc8, B: 0x20, A: 0xff}
	default:
		return color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}
	}
}

// Preview 绘制卡牌预览图：元素色边框、稀有度方块、攻防条，qr 不为空时贴在右下角
func Preview(card models.Card, qr image.Image) *image.NRGBA {
	attrs := card.Attributes
	canvas := imaging.New(PreviewWidth, PreviewHeight, ElementColor(attrs.Element))

	inset := margin / 2
	panel := imaging.New(PreviewWidth-2*inset, PreviewHeight-2*inset, panelColor)
	canvas = imaging.Paste(canvas, panel, image.Pt(inset, inset))

	// 稀有度
	for i := 0; i < int(attrs.Rarity); i++ {
		star := imaging.New(starSize, starSize, rarityColor)
		canvas = imaging.Paste(canvas, star, image.Pt(margin+i*(starSize+6), margin))
	}

	y := margin + starSize + 2*margin
	canvas = drawBar(canvas, y, attrs.Power, powerColor)
	canvas = drawBar(canvas, y+barH+margin, attrs.Defense, defenseColor)

	if qr != nil {
		q := imaging.Resize(qr, qrSize, qrSize, imaging.NearestNeighbor)
		canvas = imaging.Paste(canvas, q, image.Pt(PreviewWidth-margin-qrSize, PreviewHeight-margin-qrSize))
	}
	return canvas
}

// drawBar 绘制属性条，长度与数值成正比
func drawBar(canvas *image.NRGBA, y int, value uint8, c color.NRGBA) *image.NRGBA {
	track := imaging.New(barWidth, barH, trackColor)
	canvas = imaging.Paste(canvas, track, image.Pt(margin, y))

	w := barWidth * int(value) / models.MaxStat
	if w > 0 {
		fill := imaging.New(w, barH, c)
		canvas = imaging.Paste(canvas, fill, image.Pt(margin, y))
	}
	return canvas
}

// EncodePNG 写出PNG
func EncodePNG(w io.Writer, img image.Image) error {
	if err := imaging.Encode(w, img, imaging.PNG); err != nil {
		return fmt.Errorf("编码预览图失败: %w", err)
	}
	return nil
}
