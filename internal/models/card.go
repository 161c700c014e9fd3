package models

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/jacl-coder/ElementalCard-Server/internal/apperr"
)

// 属性取值范围
const (
	MinStat   = 0
	MaxStat   = 100
	MinRarity = 1
	MaxRarity = 5

	MaxElementLen  = 32
	MaxSpecialLen  = 64
	MaxImageURLLen = 512
)

// Element 卡牌元素，非空短字符串
type Element string

// NewElement 校验并创建元素
func NewElement(s string) (Element, error) {
	if err := checkText("element", s, MaxElementLen); err != nil {
		return "", err
	}
	return Element(s), nil
}

// SpecialMove 特殊技能名称
type SpecialMove string

// NewSpecialMove 校验并创建特殊技能名称
func NewSpecialMove(s string) (SpecialMove, error) {
	if err := checkText("special", s, MaxSpecialLen); err != nil {
		return "", err
	}
	return SpecialMove(s), nil
}

// Attributes 卡牌属性，铸造后不可变
type Attributes struct {
	Element  Element     `json:"element"`
	Power    uint8       `json:"power"`
	Defense  uint8       `json:"defense"`
	Special  SpecialMove `json:"special"`
	Rarity   uint8       `json:"rarity"`
	ImageURL string      `json:"image_url,omitempty"`
}

// MintInput 铸造请求中的原始字段
type MintInput struct {
	Element  string `json:"element"`
	Power    int    `json:"power"`
	Defense  int    `json:"defense"`
	Special  string `json:"special"`
	Rarity   int    `json:"rarity"`
	ImageURL string `json:"image_url,omitempty"`
}

// Validate 把原始输入转换为属性记录
func (in MintInput) Validate() (Attributes, error) {
	element, err := NewElement(in.Element)
	if err != nil {
		return Attributes{}, err
	}
	special, err := NewSpecialMove(in.Special)
	if err != nil {
		return Attributes{}, err
	}
	if in.Power < MinStat || in.Power > MaxStat {
		return Attributes{}, apperr.Invalid("power", "must be within %d-%d, got %d", MinStat, MaxStat, in.Power)
	}
	if in.Defense < MinStat || in.Defense > MaxStat {
		return Attributes{}, apperr.Invalid("defense", "must be within %d-%d, got %d", MinStat, MaxStat, in.Defense)
	}
	if in.Rarity < MinRarity || in.Rarity > MaxRarity {
		return Attributes{}, apperr.Invalid("rarity", "must be within %d-%d, got %d", MinRarity, MaxRarity, in.Rarity)
	}
	if err := checkImageURL(in.ImageURL); err != nil {
		return Attributes{}, err
	}

	return Attributes{
		Element:  element,
		Power:    uint8(in.Power),
		Defense:  uint8(in.Defense),
		Special:  special,
		Rarity:   uint8(in.Rarity),
		ImageURL: in.ImageURL,
	}, nil
}

// Card 已铸造的卡牌
type Card struct {
	TokenID    uint64     `json:"token_id"`
	Attributes Attributes `json:"attributes"`
}

// OwnedCard 地址持有的卡牌及数量
type OwnedCard struct {
	TokenID    uint64     `json:"token_id"`
	Balance    uint64     `json:"balance"`
	Attributes Attributes `json:"attributes"`
}

func checkText(field, s string, max int) error {
	if strings.TrimSpace(s) == "" {
		return apperr.Invalid(field, "must not be empty")
	}
	if !utf8.ValidString(s) {
		return apperr.Invalid(field, "must be valid UTF-8")
	}
	if n := utf8.RuneCountInString(s); n > max {
		return apperr.Invalid(field, "must be at most %d characters, got %d", max, n)
	}
	return nil
}

// checkImageURL 图片地址可选，填写时必须是 http(s) 或 ipfs 绝对地址
func checkImageURL(raw string) error {
	if raw == "" {
		return nil
	}
	if len(raw) > MaxImageURLLen {
		return apperr.Invalid("image_url", "must be at most %d bytes", MaxImageURLLen)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return apperr.Invalid("image_url", "malformed url")
	}
	switch u.Scheme {
	case "http", "https", "ipfs":
	default:
		return apperr.Invalid("image_url", "unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return apperr.Invalid("image_url", "missing host")
	}
	return nil
}
