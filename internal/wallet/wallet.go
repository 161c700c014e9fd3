// Package wallet 校验浏览器钱包提交的登录签名与链身份
package wallet

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/jacl-coder/ElementalCard-Server/internal/apperr"
	"github.com/jacl-coder/ElementalCard-Server/internal/models"
)

// ChainIDHex 以钱包 RPC 使用的十六进制形式表示链ID，例如 31337 -> 0x7a69
func ChainIDHex(chainID int64) string {
	return fmt.Sprintf("0x%x", chainID)
}

// CheckChain 钱包所在链与服务配置不一致时返回 WRONG_CHAIN，前端据此提示切换网络
func CheckChain(expected, got int64) error {
	if expected != got {
		return &apperr.Error{
			Code:    apperr.CodeWrongChain,
			Field:   "chain_id",
			Message: fmt.Sprintf("wallet is on chain %d, switch to %d (%s)", got, expected, ChainIDHex(expected)),
		}
	}
	return nil
}

// SignInMessage 生成需要钱包 personal_sign 的登录消息
func SignInMessage(contract string, address models.Address, chainID int64, nonce string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sign in to %s\n\n", contract)
	fmt.Fprintf(&b, "Address: %s\n", address.Hex())
	fmt.Fprintf(&b, "Chain ID: %d\n", chainID)
	fmt.Fprintf(&b, "Nonce: %s", nonce)
	return b.String()
}

// RecoverSigner 从 personal_sign 签名恢复签名地址
// 钱包返回的 v 为 27/28，这里统一转换为 0/1
func RecoverSigner(message string, signature string) (models.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return models.Address{}, apperr.New(apperr.CodeSignatureRejected, "malformed signature")
	}
	if len(sig) != crypto.SignatureLength {
		return models.Address{}, apperr.New(apperr.CodeSignatureRejected, "signature must be %d bytes", crypto.SignatureLength)
	}
	sig = append([]byte(nil), sig...)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return models.Address{}, apperr.New(apperr.CodeSignatureRejected, "invalid recovery id")
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return models.Address{}, apperr.New(apperr.CodeSignatureRejected, "cannot recover signer")
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifySignature 校验签名是否来自 address
func VerifySignature(address models.Address, message, signature string) error {
	signer, err := RecoverSigner(message, signature)
	if err != nil {
		return err
	}
	if signer != address {
		return apperr.New(apperr.CodeSignatureRejected, "signature does not match address")
	}
	return nil
}
