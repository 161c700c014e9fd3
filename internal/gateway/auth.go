package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jacl-coder/ElementalCard-Server/config"
	"github.com/jacl-coder/ElementalCard-Server/internal/apperr"
	"github.com/jacl-coder/ElementalCard-Server/internal/models"
	"github.com/jacl-coder/ElementalCard-Server/internal/wallet"
	"go.uber.org/zap"
)

// AuthHandler 钱包认证处理器
type AuthHandler struct {
	responder
	secret     []byte
	chain      config.ChainConfig
	sessions   SessionStore
	sessionTTL time.Duration
	nonceTTL   time.Duration
	now        func() time.Time
}

// Session 已认证的钱包会话
type Session struct {
	ID        string         `json:"session_id"`
	Address   models.Address `json:"address"`
	ChainID   int64          `json:"chain_id"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// SessionClaims 会话令牌声明
type SessionClaims struct {
	ChainID int64 `json:"chain_id"`
	jwt.RegisteredClaims
}

// NonceRequest 获取登录随机数请求
type NonceRequest struct {
	Address string `json:"address"`
}

// NonceResponse 登录随机数与待签名消息
type NonceResponse struct {
	Nonce      string `json:"nonce"`
	Message    string `json:"message"`
	ChainID    int64  `json:"chain_id"`
	ChainIDHex string `json:"chain_id_hex"`
}

// ConnectRequest 钱包连接请求
type ConnectRequest struct {
	Address   string `json:"address"`
	ChainID   int64  `json:"chain_id"`
	Signature string `json:"signature"`
}

// ConnectResponse 钱包连接响应
type ConnectResponse struct {
	Token     string         `json:"token"`
	Address   models.Address `json:"address"`
	ChainID   int64          `json:"chain_id"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(auth config.AuthConfig, chain config.ChainConfig, sessions SessionStore, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		responder:  responder{log: log},
		secret:     []byte(auth.JWTSecret),
		chain:      chain,
		sessions:   sessions,
		sessionTTL: time.Duration(auth.SessionTTLMin) * time.Minute,
		nonceTTL:   time.Duration(auth.NonceTTLSec) * time.Second,
		now:        time.Now,
	}
}

// RegisterHandlers 注册HTTP处理器
func (h *AuthHandler) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/nonce", h.handleNonce)
	mux.HandleFunc("POST /auth/connect", h.handleConnect)
	mux.HandleFunc("GET /auth/session", h.RequireAuth(h.handleSession))
	mux.HandleFunc("POST /auth/disconnect", h.RequireAuth(h.handleDisconnect))
}

// handleNonce 生成登录随机数
func (h *AuthHandler) handleNonce(w http.ResponseWriter, r *http.Request) {
	var req NonceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.sendError(w, r, err)
		return
	}
	address, err := models.ParseAddress(req.Address)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	nonce := uuid.NewString()
	if err := h.sessions.PutNonce(r.Context(), address.Hex(), nonce, h.nonceTTL); err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendSuccessResponse(w, "请使用钱包签名", NonceResponse{
		Nonce:      nonce,
		Message:    wallet.SignInMessage(h.chain.ContractName, address, h.chain.ChainID, nonce),
		ChainID:    h.chain.ChainID,
		ChainIDHex: wallet.ChainIDHex(h.chain.ChainID),
	})
}

// handleConnect 校验链ID与签名后签发会话令牌
func (h *AuthHandler) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.sendError(w, r, err)
		return
	}
	address, err := models.ParseAddress(req.Address)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	if err := wallet.CheckChain(h.chain.ChainID, req.ChainID); err != nil {
		h.sendError(w, r, err)
		return
	}

	nonce, ok, err := h.sessions.TakeNonce(r.Context(), address.Hex())
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	if !ok {
		h.sendError(w, r, apperr.New(apperr.CodeUnauthorized, "nonce expired, request a new one"))
		return
	}

	message := wallet.SignInMessage(h.chain.ContractName, address, h.chain.ChainID, nonce)
	if err := wallet.VerifySignature(address, message, req.Signature); err != nil {
		h.log.Info("钱包签名校验失败", zap.String("address", address.Hex()), zap.Error(err))
		h.sendError(w, r, err)
		return
	}

	resp, err := h.issue(r.Context(), address)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.log.Info("钱包已连接", zap.String("address", address.Hex()))
	h.sendSuccessResponse(w, "连接成功", resp)
}

// issue 签发令牌并登记会话
func (h *AuthHandler) issue(ctx context.Context, address models.Address) (ConnectResponse, error) {
	now := h.now()
	expiresAt := now.Add(h.sessionTTL)
	claims := SessionClaims{
		ChainID: h.chain.ChainID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   address.Hex(),
			Issuer:    h.chain.ContractName,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
	if err != nil {
		return ConnectResponse{}, err
	}
	if err := h.sessions.PutSession(ctx, claims.ID, address.Hex(), h.sessionTTL); err != nil {
		return ConnectResponse{}, err
	}
	return ConnectResponse{
		Token:     token,
		Address:   address,
		ChainID:   h.chain.ChainID,
		ExpiresAt: expiresAt,
	}, nil
}

// handleSession 返回当前会话
func (h *AuthHandler) handleSession(w http.ResponseWriter, r *http.Request, s Session) {
	h.sendSuccessResponse(w, "会话有效", s)
}

// handleDisconnect 注销会话
func (h *AuthHandler) handleDisconnect(w http.ResponseWriter, r *http.Request, s Session) {
	if err := h.sessions.DeleteSession(r.Context(), s.ID); err != nil {
		h.sendError(w, r, err)
		return
	}
	h.log.Info("钱包已断开", zap.String("address", s.Address.Hex()))
	h.sendSuccessResponse(w, "已断开连接", nil)
}

// tokenFromRequest 从 Authorization 头或查询参数获取令牌
func tokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

// ValidateToken 校验令牌并确认会话未被注销（供其他模块使用）
func (h *AuthHandler) ValidateToken(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, apperr.New(apperr.CodeUnauthorized, "missing token")
	}

	var claims SessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return h.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(h.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Session{}, apperr.New(apperr.CodeUnauthorized, "token expired")
		}
		return Session{}, apperr.New(apperr.CodeUnauthorized, "invalid token")
	}
	if claims.ChainID != h.chain.ChainID {
		return Session{}, wallet.CheckChain(h.chain.ChainID, claims.ChainID)
	}

	stored, ok, err := h.sessions.Session(ctx, claims.ID)
	if err != nil {
		return Session{}, err
	}
	if !ok || !strings.EqualFold(stored, claims.Subject) {
		return Session{}, apperr.New(apperr.CodeUnauthorized, "session revoked")
	}

	address, err := models.ParseAddress(claims.Subject)
	if err != nil {
		return Session{}, apperr.New(apperr.CodeUnauthorized, "invalid token subject")
	}
	return Session{
		ID:        claims.ID,
		Address:   address,
		ChainID:   claims.ChainID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// RequireAuth 包装需要登录的处理器
func (h *AuthHandler) RequireAuth(next func(http.ResponseWriter, *http.Request, Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := h.ValidateToken(r.Context(), tokenFromRequest(r))
		if err != nil {
			h.sendError(w, r, err)
			return
		}
		next(w, r, s)
	}
}
