// cards.go

package gateway

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/jacl-coder/ElementalCard-Server/internal/apperr"
	"github.com/jacl-coder/ElementalCard-Server/internal/models"
	"github.com/jacl-coder/ElementalCard-Server/internal/registry"
	"github.com/jacl-coder/ElementalCard-Server/internal/render"
	"go.uber.org/zap"
)

// CardHandler 卡牌处理器
type CardHandler struct {
	responder
	registry  *registry.Registry
	auth      *AuthHandler
	publicURL string
}

// CardResponse 卡牌详情
type CardResponse struct {
	TokenID    uint64            `json:"token_id"`
	Attributes models.Attributes `json:"attributes"`
	Supply     uint64            `json:"supply"`
	ShareURL   string            `json:"share_url"`
}

// MintCopiesRequest 补发请求
type MintCopiesRequest struct {
	To      string   `json:"to"`
	IDs     []uint64 `json:"ids"`
	Amounts []uint64 `json:"amounts"`
}

// TransferRequest 转移请求
type TransferRequest struct {
	To      string `json:"to"`
	TokenID uint64 `json:"token_id"`
	Amount  uint64 `json:"amount"`
}

// NewCardHandler 创建卡牌处理器
func NewCardHandler(reg *registry.Registry, auth *AuthHandler, publicURL string, log *zap.Logger) *CardHandler {
	return &CardHandler{
		responder: responder{log: log},
		registry:  reg,
		auth:      auth,
		publicURL: publicURL,
	}
}

// RegisterHandlers 注册HTTP处理器
func (h *CardHandler) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("POST /cards", h.auth.RequireAuth(h.handleMint))
	mux.HandleFunc("POST /cards/copies", h.auth.RequireAuth(h.handleMintCopies))
	mux.HandleFunc("POST /cards/transfer", h.auth.RequireAuth(h.handleTransfer))
	mux.HandleFunc("GET /cards/{id}", h.handleCardDetail)
	mux.HandleFunc("GET /cards/{id}/qr.png", h.handleQR)
	mux.HandleFunc("GET /cards/{id}/preview.png", h.handlePreview)
}

// parseTokenID 提取路径中的卡牌ID
func parseTokenID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, apperr.Invalid("token_id", "无效的卡牌ID")
	}
	return id, nil
}

// handleMint 铸造一张卡牌给当前钱包
func (h *CardHandler) handleMint(w http.ResponseWriter, r *http.Request, s Session) {
	var in models.MintInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.sendError(w, r, err)
		return
	}

	id, err := h.registry.Mint(r.Context(), s.Address, in)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendSuccessResponse(w, "铸造成功", map[string]interface{}{
		"token_id": id,
		"owner":    s.Address,
	})
}

// handleMintCopies 合约拥有者补发已有卡牌
func (h *CardHandler) handleMintCopies(w http.ResponseWriter, r *http.Request, s Session) {
	var req MintCopiesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.sendError(w, r, err)
		return
	}
	to, err := models.ParseAddress(req.To)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	if err := h.registry.MintCopies(r.Context(), s.Address, to, req.IDs, req.Amounts); err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendSuccessResponse(w, "补发成功", nil)
}

// handleTransfer 从当前钱包转出卡牌
func (h *CardHandler) handleTransfer(w http.ResponseWriter, r *http.Request, s Session) {
	var req TransferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.sendError(w, r, err)
		return
	}
	to, err := models.ParseAddress(req.To)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	if err := h.registry.Transfer(r.Context(), s.Address, to, req.TokenID, req.Amount); err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendSuccessResponse(w, "转移成功", nil)
}

// handleCardDetail 查询卡牌属性
func (h *CardHandler) handleCardDetail(w http.ResponseWriter, r *http.Request) {
	id, err := parseTokenID(r)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	attrs, err := h.registry.GetCardAttributes(r.Context(), id)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	supply, err := h.registry.SupplyOf(r.Context(), id)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendSuccessResponse(w, "查询成功", CardResponse{
		TokenID:    id,
		Attributes: attrs,
		Supply:     supply,
		ShareURL:   render.CardURL(h.publicURL, id),
	})
}

// handleQR 生成卡牌分享二维码
func (h *CardHandler) handleQR(w http.ResponseWriter, r *http.Request) {
	id, err := parseTokenID(r)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	if _, err := h.registry.GetCardAttributes(r.Context(), id); err != nil {
		h.sendError(w, r, err)
		return
	}

	size := render.DefaultQRSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		size, err = strconv.Atoi(raw)
		if err != nil || size < 64 || size > 1024 {
			h.sendError(w, r, apperr.Invalid("size", "must be within 64-1024"))
			return
		}
	}

	png, err := render.QRPNG(render.CardURL(h.publicURL, id), size)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	writePNG(w, png)
}

// handlePreview 生成卡牌预览图
func (h *CardHandler) handlePreview(w http.ResponseWriter, r *http.Request) {
	id, err := parseTokenID(r)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	attrs, err := h.registry.GetCardAttributes(r.Context(), id)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	qr, err := render.QRImage(render.CardURL(h.publicURL, id), 0)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	var buf bytes.Buffer
	img := render.Preview(models.Card{TokenID: id, Attributes: attrs}, qr)
	if err := render.EncodePNG(&buf, img); err != nil {
		h.sendError(w, r, err)
		return
	}
	writePNG(w, buf.Bytes())
}

// writePNG 卡牌属性不可变，图片可以长期缓存
func writePNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
