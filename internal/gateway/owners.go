package gateway

import (
	"net/http"

	"github.com/jacl-coder/ElementalCard-Server/internal/models"
	"github.com/jacl-coder/ElementalCard-Server/internal/registry"
	"go.uber.org/zap"
)

// OwnerHandler 持有者查询处理器
type OwnerHandler struct {
	responder
	registry *registry.Registry
	auth     *AuthHandler
}

// NewOwnerHandler 创建持有者处理器
func NewOwnerHandler(reg *registry.Registry, auth *AuthHandler, log *zap.Logger) *OwnerHandler {
	return &OwnerHandler{
		responder: responder{log: log},
		registry:  reg,
		auth:      auth,
	}
}

// RegisterHandlers 注册HTTP处理器
func (h *OwnerHandler) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /owners/{address}/tokens", h.handleTokens)
	mux.HandleFunc("GET /owners/{address}/cards", h.handleCollection)
	mux.HandleFunc("GET /owners/{address}/balances/{id}", h.handleBalance)

	mux.HandleFunc("POST /starter-pack/claim", h.auth.RequireAuth(h.handleClaim))
	mux.HandleFunc("GET /starter-pack/{address}", h.handleClaimStatus)
}

// parseOwner 提取路径中的地址
func parseOwner(r *http.Request) (models.Address, error) {
	return models.ParseAddress(r.PathValue("address"))
}

// handleTokens 按首次获得顺序返回持有过的卡牌ID
func (h *OwnerHandler) handleTokens(w http.ResponseWriter, r *http.Request) {
	owner, err := parseOwner(r)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	ids, err := h.registry.GetTokensByOwner(r.Context(), owner)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	if ids == nil {
		ids = []uint64{}
	}
	h.sendSuccessResponse(w, "查询成功", map[string]interface{}{
		"address":   owner,
		"token_ids": ids,
	})
}

// handleCollection 返回当前持有的卡牌及属性
func (h *OwnerHandler) handleCollection(w http.ResponseWriter, r *http.Request) {
	owner, err := parseOwner(r)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	cards, err := h.registry.Collection(r.Context(), owner)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	if cards == nil {
		cards = []models.OwnedCard{}
	}
	h.sendSuccessResponse(w, "查询成功", map[string]interface{}{
		"address": owner,
		"cards":   cards,
	})
}

// handleBalance 查询余额
func (h *OwnerHandler) handleBalance(w http.ResponseWriter, r *http.Request) {
	owner, err := parseOwner(r)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	id, err := parseTokenID(r)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	balance, err := h.registry.BalanceOf(r.Context(), owner, id)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendSuccessResponse(w, "查询成功", map[string]interface{}{
		"address":  owner,
		"token_id": id,
		"balance":  balance,
	})
}

// handleClaim 领取新手礼包
func (h *OwnerHandler) handleClaim(w http.ResponseWriter, r *http.Request, s Session) {
	ids, err := h.registry.ClaimStarterPack(r.Context(), s.Address)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendSuccessResponse(w, "领取成功", map[string]interface{}{
		"address":   s.Address,
		"token_ids": ids,
	})
}

// handleClaimStatus 查询是否已领取新手礼包
func (h *OwnerHandler) handleClaimStatus(w http.ResponseWriter, r *http.Request) {
	owner, err := parseOwner(r)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	claimed, err := h.registry.HasClaimedStarterPack(r.Context(), owner)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendSuccessResponse(w, "查询成功", map[string]interface{}{
		"address": owner,
		"claimed": claimed,
	})
}
