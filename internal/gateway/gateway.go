// Package gateway 对外提供卡牌账本的HTTP接口、钱包认证与事件推送入口
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/jacl-coder/ElementalCard-Server/config"
	"github.com/jacl-coder/ElementalCard-Server/internal/registry"
	"github.com/jacl-coder/ElementalCard-Server/internal/wallet"
	"go.uber.org/zap"
)

// Gateway API网关
type Gateway struct {
	config   *config.Config
	registry *registry.Registry
	events   http.Handler
	sessions SessionStore
	log      *zap.Logger

	limiter    *RateLimiter
	handler    http.Handler
	httpServer *http.Server
}

// NewGateway 创建新的网关，events 为事件推送的WebSocket处理器
func NewGateway(cfg *config.Config, reg *registry.Registry, events http.Handler, sessions SessionStore, log *zap.Logger) *Gateway {
	g := &Gateway{
		config:   cfg,
		registry: reg,
		events:   events,
		sessions: sessions,
		log:      log,
		limiter:  NewRateLimiter(cfg.Server.RequestsPerMinute),
	}
	g.handler = g.createHandler()
	return g
}

// Handler 返回带中间件的HTTP处理器
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// Run 启动HTTP服务器，ctx 取消后优雅关闭
func (g *Gateway) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", g.config.Server.GatewayPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("监听端口失败: %w", err)
	}
	return g.Serve(ctx, ln)
}

// Serve 在指定监听器上提供服务
func (g *Gateway) Serve(ctx context.Context, ln net.Listener) error {
	g.httpServer = &http.Server{
		Handler:           g.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		g.log.Info("API网关启动", zap.String("addr", ln.Addr().String()))
		errCh <- g.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP服务器错误: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := g.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("关闭HTTP服务器失败: %w", err)
	}
	<-errCh
	g.log.Info("API网关已停止")
	return nil
}

// Close 释放后台协程
func (g *Gateway) Close() {
	g.limiter.Close()
}

// createHandler 创建HTTP处理器
func (g *Gateway) createHandler() http.Handler {
	mux := http.NewServeMux()

	// 创建各种处理器
	authHandler := NewAuthHandler(g.config.Auth, g.config.Chain, g.sessions, g.log)
	cardHandler := NewCardHandler(g.registry, authHandler, g.config.Server.PublicURL, g.log)
	ownerHandler := NewOwnerHandler(g.registry, authHandler, g.log)

	authHandler.RegisterHandlers(mux)
	cardHandler.RegisterHandlers(mux)
	ownerHandler.RegisterHandlers(mux)

	if g.events != nil {
		mux.Handle("GET /events", g.events)
	}

	// 健康检查端点
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("GET /contract", g.handleContract)

	return g.applyMiddleware(mux)
}

// applyMiddleware 应用中间件
func (g *Gateway) applyMiddleware(handler http.Handler) http.Handler {
	var origins []string
	if g.config.Server.PublicURL != "" && !g.config.Server.Debug {
		origins = append(origins, g.config.Server.PublicURL)
	}
	cors := NewCORSMiddleware(origins...)

	// 按顺序应用中间件（从内到外包装，请求先经过日志）
	handler = g.limiter.Middleware(handler)
	handler = cors.Middleware(handler)
	handler = SecurityMiddleware(handler)
	handler = LoggingMiddleware(g.log)(handler)

	return handler
}

// ContractInfo 合约信息
type ContractInfo struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	ChainID     int64  `json:"chain_id"`
	ChainIDHex  string `json:"chain_id_hex"`
	Owner       string `json:"owner,omitempty"`
	TotalSupply uint64 `json:"total_supply"`
	Version     uint64 `json:"version"`
}

// handleContract 返回合约身份与账本状态，前端用来确认所在网络
func (g *Gateway) handleContract(w http.ResponseWriter, r *http.Request) {
	h := responder{log: g.log}

	total, err := g.registry.TotalSupply(r.Context())
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	version, err := g.registry.Version(r.Context())
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	chain := g.config.Chain
	h.sendSuccessResponse(w, "查询成功", ContractInfo{
		Name:        chain.ContractName,
		Symbol:      chain.Symbol,
		ChainID:     chain.ChainID,
		ChainIDHex:  wallet.ChainIDHex(chain.ChainID),
		Owner:       chain.OwnerAddress,
		TotalSupply: total,
		Version:     version,
	})
}
