package models

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jacl-coder/ElementalCard-Server/internal/apperr"
)

// Address 钱包地址
type Address = common.Address

// ZeroAddress 零地址，作为铸造事件的来源
var ZeroAddress = common.Address{}

// ParseAddress 解析0x开头的十六进制地址
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) || !strings.HasPrefix(strings.ToLower(s), "0x") {
		return Address{}, apperr.Invalid("address", "invalid address %q", s)
	}
	addr := common.HexToAddress(s)
	if addr == ZeroAddress {
		return Address{}, apperr.Invalid("address", "zero address not allowed")
	}
	return addr, nil
}
