// Package render 生成卡牌分享二维码与预览图
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// DefaultQRSize 二维码默认边长（像素）
const DefaultQRSize = 256

// CardURL 卡牌的分享地址
func CardURL(publicURL string, id uint64) string {
	return fmt.Sprintf("%s/cards/%d", strings.TrimRight(publicURL, "/"), id)
}

// QRPNG 生成内容为 text 的二维码PNG
func QRPNG(text string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	pngBytes, err := qrcode.Encode(text, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("生成二维码失败: %w", err)
	}
	return pngBytes, nil
}

// QRImage 生成二维码图像，用于拼接预览图
func QRImage(text string, size int) (image.Image, error) {
	b, err := QRPNG(text, size)
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("解析二维码失败: %w", err)
	}
	return img, nil
}
