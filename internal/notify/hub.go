// hub.go

package notify

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jacl-coder/ElementalCard-Server/internal/models"
	"github.com/jacl-coder/ElementalCard-Server/internal/protocol"
	"github.com/jacl-coder/ElementalCard-Server/internal/registry"
	"go.uber.org/zap"
)

const (
	// 写入超时时间
	writeWait = 10 * time.Second

	// 读取超时时间
	pongWait = 60 * time.Second

	// 发送 ping 的间隔时间
	pingPeriod = (pongWait * 9) / 10

	// 客户端只发送控制帧
	maxMessageSize = 4 * 1024

	sendBuffer = 64
)

// Client 订阅事件的连接
type Client struct {
	ID     string
	Owner  *models.Address // 为空时接收全部事件
	Format protocol.Format

	send chan []byte
}

// wants 是否需要推送该事件
func (c *Client) wants(e registry.Event) bool {
	if c.Owner == nil {
		return true
	}
	o := *c.Owner
	return e.Owner == o || e.From == o || e.To == o
}

// Hub 把账本事件推送给前端，前端据此刷新收藏列表
type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*Client
	closed  bool
}

// NewHub 创建事件推送中心
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 跨域由网关的CORS配置负责
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[string]*Client),
	}
}

// OnEvent 实现 registry.Observer，不会阻塞
func (h *Hub) OnEvent(e registry.Event) {
	msg, err := protocol.ConvertEventToProto(e)
	if err != nil {
		h.log.Error("转换事件失败", zap.Error(err))
		return
	}
	encoded := make(map[protocol.Format][]byte, 2)

	var slow []*Client
	h.mu.RLock()
	for _, c := range h.clients {
		if !c.wants(e) {
			continue
		}
		data, ok := encoded[c.Format]
		if !ok {
			data, err = protocol.Encode(c.Format, msg)
			if err != nil {
				h.log.Error("序列化事件失败", zap.Error(err))
				continue
			}
			encoded[c.Format] = data
		}
		select {
		case c.send <- data:
		default:
			// 通道已满，断开慢速客户端
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn("客户端消费过慢，断开连接", zap.String("client_id", c.ID))
		h.remove(c)
	}
}

// ServeHTTP 升级为WebSocket连接
// 查询参数：format=json|proto，owner=0x... 只接收与该地址相关的事件
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	format, err := protocol.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var owner *models.Address
	if raw := r.URL.Query().Get("owner"); raw != "" {
		addr, err := models.ParseAddress(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		owner = &addr
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket升级失败", zap.Error(err))
		return
	}

	client := &Client{
		ID:     uuid.New().String(),
		Owner:  owner,
		Format: format,
		send:   make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
		conn.Close()
		return
	}
	h.clients[client.ID] = client
	h.mu.Unlock()

	h.log.Debug("事件订阅已连接", zap.String("client_id", client.ID), zap.String("format", string(format)))

	go h.writePump(conn, client)
	go h.readPump(conn, client)
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close 断开所有连接
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.remove(c)
	}
}

// remove 移除连接并关闭发送通道，可重复调用
func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	delete(h.clients, c.ID)
	close(c.send)
}

// readPump 读取控制帧，连接断开时清理
func (h *Hub) readPump(conn *websocket.Conn, c *Client) {
	defer func() {
		h.remove(c)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("WebSocket错误", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}
	}
}

// writePump 向WebSocket写入事件
func (h *Hub) writePump(conn *websocket.Conn, c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	messageType := websocket.TextMessage
	if c.Format == protocol.FormatProto {
		messageType = websocket.BinaryMessage
	}

	for {
		select {
		case message, ok := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// 通道已关闭
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(messageType, message); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
