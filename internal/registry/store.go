package registry

import (
	"context"

	"github.com/jacl-coder/ElementalCard-Server/internal/models"
)

// ReadTx 账本只读视图，只能看到已提交的状态
type ReadTx interface {
	// Card 返回属性记录，未铸造时 ok 为 false
	Card(id uint64) (attrs models.Attributes, ok bool, err error)
	// CardCount 已铸造的 token id 数量
	CardCount() (uint64, error)
	// Supply 某个 id 的总发行量
	Supply(id uint64) (uint64, error)
	Balance(owner models.Address, id uint64) (uint64, error)
	// OwnedTokens 按首次获得顺序返回持有索引
	OwnedTokens(owner models.Address) ([]uint64, error)
	Claimed(owner models.Address) (bool, error)
}

// Tx 账本读写事务
type Tx interface {
	ReadTx

	// Version 本次事务提交后的账本版本
	Version() uint64
	// InsertCard 分配下一个 token id 并保存属性
	InsertCard(attrs models.Attributes) (uint64, error)
	// AddSupply 增加发行量
	AddSupply(id uint64, amount uint64) error
	// Credit 增加余额，首次持有时追加到持有索引
	Credit(owner models.Address, id uint64, amount uint64) error
	// Debit 减少余额，不足时返回 ErrInsufficientBalance
	Debit(owner models.Address, id uint64, amount uint64) error
	// MarkClaimed 设置领取标记，已领取过时返回 false
	MarkClaimed(owner models.Address) (bool, error)
}

// Store 带版本号的账本存储
// Update 中的所有修改作为一个不可分割的步骤提交，fn 返回错误时全部丢弃
// 所有 Update 全局串行执行
type Store interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx ReadTx) error) error
	// Version 已提交的变更次数
	Version(ctx context.Context) (uint64, error)
	Close() error
}
