package render

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/jacl-coder/ElementalCard-Server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCardURL(t *testing.T) {
	assert.Equal(t, "https://cards.example/cards/7", CardURL("https://cards.example/", 7))
	assert.Equal(t, "http://localhost:8080/cards/0", CardURL("http://localhost:8080", 0))
}

func TestQRPNGDecodes(t *testing.T) {
	b, err := QRPNG(CardURL("http://localhost:8080", 3), 128)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())
	assert.Equal(t, 128, img.Bounds().Dy())
}

func TestQRPNGDefaultSize(t *testing.T) {
	img, err := QRImage("hello", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultQRSize, img.Bounds().Dx())
}

func TestPreviewLayout(t *testing.T) {
	card := models.Card{TokenID: 1, Attributes: models.Attributes{
		Element: "Fire", Power: 100, Defense: 0, Special: "Flame Burst", Rarity: 3,
	}}
	qr, err := QRImage("x", 64)
	require.NoError(t, err)

	img := Preview(card, qr)
	assert.Equal(t, PreviewWidth, img.Bounds().Dx())
	assert.Equal(t, PreviewHeight, img.Bounds().Dy())

	// 边框使用元素颜色
	assert.Equal(t, ElementColor("Fire"), img.NRGBAAt(1, 1))

	// 三个稀有度方块，第四个位置为底色
	y := margin + starSize/2
	for i := 0; i < 3; i++ {
		assert.Equal(t, rarityColor, img.NRGBAAt(margin+i*(starSize+6)+1, y))
	}
	assert.Equal(t, panelColor, img.NRGBAAt(margin+3*(starSize+6)+1, y))

	// 攻击满值，防御为零
	barY := margin + starSize + 2*margin + 1
	assert.Equal(t, powerColor, img.NRGBAAt(margin+barWidth-1, barY))
	assert.Equal(t, trackColor, img.NRGBAAt(margin+1, barY+barH+margin))
}

func TestEncodePNG(t *testing.T) {
	var buf bytes.Buffer
	img := Preview(models.Card{Attributes: models.Attributes{Element: "Unknown", Rarity: 1}}, nil)
	require.NoError(t, EncodePNG(&buf, img))

	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, PreviewWidth, decoded.Bounds().Dx())
}
