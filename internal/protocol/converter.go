package protocol

import (
	"fmt"
	"time"

	"github.com/jacl-coder/ElementalCard-Server/internal/models"
	"github.com/jacl-coder/ElementalCard-Server/internal/registry"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Format 推送消息的编码格式
type Format string

const (
	// FormatJSON protojson 文本帧
	FormatJSON Format = "json"
	// FormatProto protobuf 二进制帧
	FormatProto Format = "proto"
)

// ParseFormat 解析客户端请求的格式，默认JSON
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", string(FormatJSON):
		return FormatJSON, nil
	case string(FormatProto):
		return FormatProto, nil
	default:
		return "", fmt.Errorf("未知的消息格式: %s", s)
	}
}

// ConvertAttributesToProto 将卡牌属性转换为协议消息
func ConvertAttributesToProto(attrs models.Attributes) map[string]any {
	m := map[string]any{
		"element": string(attrs.Element),
		"power":   int64(attrs.Power),
		"defense": int64(attrs.Defense),
		"special": string(attrs.Special),
		"rarity":  int64(attrs.Rarity),
	}
	if attrs.ImageURL != "" {
		m["image_url"] = attrs.ImageURL
	}
	return m
}

// ConvertCardToProto 将卡牌转换为协议消息
func ConvertCardToProto(card models.Card) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"token_id":   card.TokenID,
		"attributes": ConvertAttributesToProto(card.Attributes),
	})
}

// ConvertEventToProto 将账本事件转换为协议消息
func ConvertEventToProto(e registry.Event) (*structpb.Struct, error) {
	m := map[string]any{
		"type":     string(e.Type),
		"version":  e.Version,
		"token_id": e.TokenID,
		"owner":    e.Owner.Hex(),
		"at":       e.At.UTC().Format(time.RFC3339Nano),
	}

	switch e.Type {
	case registry.EventStarterPackClaimed:
		ids := make([]any, len(e.TokenIDs))
		for i, id := range e.TokenIDs {
			ids[i] = id
		}
		m["token_ids"] = ids
		delete(m, "token_id")
	case registry.EventTransferSingle:
		m["operator"] = e.Operator.Hex()
		m["from"] = e.From.Hex()
		m["to"] = e.To.Hex()
		m["amount"] = e.Amount
	}

	return structpb.NewStruct(m)
}

// Encode 按格式序列化协议消息
func Encode(format Format, msg proto.Message) ([]byte, error) {
	switch format {
	case FormatProto:
		return proto.Marshal(msg)
	default:
		return protojson.Marshal(msg)
	}
}

// Decode 反序列化协议消息
func Decode(format Format, data []byte) (*structpb.Struct, error) {
	out := &structpb.Struct{}
	var err error
	switch format {
	case FormatProto:
		err = proto.Unmarshal(data, out)
	default:
		err = protojson.Unmarshal(data, out)
	}
	if err != nil {
		return nil, fmt.Errorf("解析消息失败: %w", err)
	}
	return out, nil
}
