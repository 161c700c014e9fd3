package registry

import (
	"sync"
	"time"

	"github.com/jacl-coder/ElementalCard-Server/internal/models"
)

// EventType 账本事件类型
type EventType string

const (
	// EventCardMinted 新卡牌铸造
	EventCardMinted EventType = "CardMinted"
	// EventStarterPackClaimed 新手礼包领取
	EventStarterPackClaimed EventType = "StarterPackClaimed"
	// EventTransferSingle 余额变动（补发或转账），铸造补发时 From 为零地址
	EventTransferSingle EventType = "TransferSingle"
)

// Event 已提交的状态变更通知
type Event struct {
	Type     EventType      `json:"type"`
	Version  uint64         `json:"version"`
	TokenID  uint64         `json:"token_id"`
	TokenIDs []uint64       `json:"token_ids,omitempty"`
	Owner    models.Address `json:"owner"`
	Operator models.Address `json:"operator,omitempty"`
	From     models.Address `json:"from,omitempty"`
	To       models.Address `json:"to,omitempty"`
	Amount   uint64         `json:"amount,omitempty"`
	At       time.Time      `json:"at"`
}

// Observer 事件观察者，OnEvent 在提交之后同步调用，实现方不应阻塞
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc 函数形式的观察者
type ObserverFunc func(Event)

// OnEvent 调用函数本身
func (f ObserverFunc) OnEvent(e Event) {
	f(e)
}

// observerList 观察者列表
type observerList struct {
	mu     sync.RWMutex
	nextID int
	items  map[int]Observer
}

func (l *observerList) add(o Observer) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.items == nil {
		l.items = make(map[int]Observer)
	}
	id := l.nextID
	l.nextID++
	l.items[id] = o

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.items, id)
			l.mu.Unlock()
		})
	}
}

func (l *observerList) publish(events []Event) {
	if len(events) == 0 {
		return
	}
	l.mu.RLock()
	observers := make([]Observer, 0, len(l.items))
	for _, o := range l.items {
		observers = append(observers, o)
	}
	l.mu.RUnlock()

	for _, e := range events {
		for _, o := range observers {
			o.OnEvent(e)
		}
	}
}
