// Package registry 实现卡牌账本：铸造、属性查询、持有索引与新手礼包
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jacl-coder/ElementalCard-Server/internal/apperr"
	"github.com/jacl-coder/ElementalCard-Server/internal/models"
	"go.uber.org/zap"
)

// Registry 卡牌账本
type Registry struct {
	store     Store
	starter   []models.Attributes
	owner     models.Address
	log       *zap.Logger
	now       func() time.Time
	observers observerList

	// 写操作与事件发布在同一把锁内完成，观察者按版本顺序收到事件
	writeMu sync.Mutex
}

// Option 账本选项
type Option func(*Registry)

// WithStarterPack 设置新手礼包内容
func WithStarterPack(cards []models.Attributes) Option {
	return func(r *Registry) {
		r.starter = append([]models.Attributes(nil), cards...)
	}
}

// WithOwner 设置合约拥有者，只有它能补发卡牌
func WithOwner(owner models.Address) Option {
	return func(r *Registry) {
		r.owner = owner
	}
}

// WithLogger 设置日志器
func WithLogger(log *zap.Logger) Option {
	return func(r *Registry) {
		r.log = log
	}
}

// WithClock 设置时间源
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// New 创建卡牌账本
func New(store Store, opts ...Option) *Registry {
	r := &Registry{
		store:   store,
		starter: DefaultStarterPack(),
		log:     zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefaultStarterPack 默认新手礼包：三种基础元素各一张
func DefaultStarterPack() []models.Attributes {
	return []models.Attributes{
		{Element: "Fire", Power: 50, Defense: 40, Special: "Flame Burst", Rarity: 1},
		{Element: "Water", Power: 40, Defense: 50, Special: "Tidal Wave", Rarity: 1},
		{Element: "Grass", Power: 45, Defense: 45, Special: "Vine Whip", Rarity: 1},
	}
}

// Subscribe 注册观察者，返回取消函数
func (r *Registry) Subscribe(o Observer) func() {
	return r.observers.add(o)
}

// update 执行一次变更并在提交后发布事件
func (r *Registry) update(ctx context.Context, fn func(tx Tx, emit func(Event)) error) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	var events []Event
	err := r.store.Update(ctx, func(tx Tx) error {
		events = events[:0]
		at := r.now()
		return fn(tx, func(e Event) {
			e.Version = tx.Version()
			e.At = at
			events = append(events, e)
		})
	})
	if err != nil {
		return err
	}

	r.observers.publish(events)
	return nil
}

// mintLocked 铸造路径：分配 id、保存属性、记入余额与持有索引
func mintLocked(tx Tx, owner models.Address, attrs models.Attributes, emit func(Event)) (uint64, error) {
	id, err := tx.InsertCard(attrs)
	if err != nil {
		return 0, err
	}
	if err := tx.AddSupply(id, 1); err != nil {
		return 0, err
	}
	if err := tx.Credit(owner, id, 1); err != nil {
		return 0, err
	}
	emit(Event{Type: EventCardMinted, TokenID: id, Owner: owner, To: owner, Amount: 1})
	return id, nil
}

// Mint 铸造一张新卡给 owner
// 校验失败时不会消耗 token id
func (r *Registry) Mint(ctx context.Context, owner models.Address, in models.MintInput) (uint64, error) {
	attrs, err := in.Validate()
	if err != nil {
		return 0, err
	}
	if owner == models.ZeroAddress {
		return 0, apperr.Invalid("owner", "zero address not allowed")
	}

	var id uint64
	err = r.update(ctx, func(tx Tx, emit func(Event)) error {
		var err error
		id, err = mintLocked(tx, owner, attrs, emit)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("铸造卡牌失败: %w", err)
	}

	r.log.Info("卡牌已铸造",
		zap.Uint64("token_id", id),
		zap.String("owner", owner.Hex()),
		zap.String("element", string(attrs.Element)),
	)
	return id, nil
}

// ClaimStarterPack 领取新手礼包，每个地址只能领取一次
// 检查与置位、以及礼包内所有卡牌的铸造在同一个事务中完成
func (r *Registry) ClaimStarterPack(ctx context.Context, caller models.Address) ([]uint64, error) {
	if caller == models.ZeroAddress {
		return nil, apperr.Invalid("caller", "zero address not allowed")
	}

	var ids []uint64
	err := r.update(ctx, func(tx Tx, emit func(Event)) error {
		ids = ids[:0]
		first, err := tx.MarkClaimed(caller)
		if err != nil {
			return err
		}
		if !first {
			return apperr.New(apperr.CodeAlreadyClaimed, "Starter pack already claimed")
		}
		for _, attrs := range r.starter {
			id, err := mintLocked(tx, caller, attrs, emit)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		emit(Event{Type: EventStarterPackClaimed, Owner: caller, TokenIDs: append([]uint64(nil), ids...)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("领取新手礼包失败: %w", err)
	}

	r.log.Info("新手礼包已领取", zap.String("owner", caller.Hex()), zap.Uint64s("token_ids", ids))
	return ids, nil
}

// MintCopies 为已存在的卡牌补发数量，仅限合约拥有者
func (r *Registry) MintCopies(ctx context.Context, operator, to models.Address, ids, amounts []uint64) error {
	if r.owner == models.ZeroAddress || operator != r.owner {
		return apperr.New(apperr.CodeForbidden, "only the contract owner can mint copies")
	}
	if to == models.ZeroAddress {
		return apperr.Invalid("to", "zero address not allowed")
	}
	if len(ids) == 0 || len(ids) != len(amounts) {
		return apperr.Invalid("amounts", "ids and amounts length mismatch")
	}
	for _, amount := range amounts {
		if amount == 0 {
			return apperr.Invalid("amounts", "amount must be positive")
		}
	}

	err := r.update(ctx, func(tx Tx, emit func(Event)) error {
		for i, id := range ids {
			if _, ok, err := tx.Card(id); err != nil {
				return err
			} else if !ok {
				return apperr.New(apperr.CodeNotFound, "token %d not minted", id)
			}
			if err := tx.AddSupply(id, amounts[i]); err != nil {
				return err
			}
			if err := tx.Credit(to, id, amounts[i]); err != nil {
				return err
			}
			emit(Event{Type: EventTransferSingle, TokenID: id, Operator: operator, From: models.ZeroAddress, To: to, Owner: to, Amount: amounts[i]})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("补发卡牌失败: %w", err)
	}
	return nil
}

// Transfer 把 amount 张 id 卡从 from 转给 to
func (r *Registry) Transfer(ctx context.Context, from, to models.Address, id, amount uint64) error {
	if amount == 0 {
		return apperr.Invalid("amount", "amount must be positive")
	}
	if to == models.ZeroAddress {
		return apperr.Invalid("to", "zero address not allowed")
	}
	if from == to {
		return apperr.Invalid("to", "cannot transfer to self")
	}

	err := r.update(ctx, func(tx Tx, emit func(Event)) error {
		if _, ok, err := tx.Card(id); err != nil {
			return err
		} else if !ok {
			return apperr.New(apperr.CodeNotFound, "token %d not minted", id)
		}
		if err := tx.Debit(from, id, amount); err != nil {
			return err
		}
		if err := tx.Credit(to, id, amount); err != nil {
			return err
		}
		emit(Event{Type: EventTransferSingle, TokenID: id, Operator: from, From: from, To: to, Owner: to, Amount: amount})
		return nil
	})
	if err != nil {
		return fmt.Errorf("转移卡牌失败: %w", err)
	}
	return nil
}

// GetCardAttributes 查询卡牌属性
func (r *Registry) GetCardAttributes(ctx context.Context, id uint64) (models.Attributes, error) {
	var attrs models.Attributes
	err := r.store.View(ctx, func(tx ReadTx) error {
		a, ok, err := tx.Card(id)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.New(apperr.CodeNotFound, "token %d not minted", id)
		}
		attrs = a
		return nil
	})
	return attrs, err
}

// GetTokensByOwner 按首次获得顺序返回地址持有过的 token id
func (r *Registry) GetTokensByOwner(ctx context.Context, owner models.Address) ([]uint64, error) {
	var ids []uint64
	err := r.store.View(ctx, func(tx ReadTx) error {
		var err error
		ids, err = tx.OwnedTokens(owner)
		return err
	})
	return ids, err
}

// BalanceOf 查询余额，从未持有时为 0
func (r *Registry) BalanceOf(ctx context.Context, owner models.Address, id uint64) (uint64, error) {
	var qty uint64
	err := r.store.View(ctx, func(tx ReadTx) error {
		var err error
		qty, err = tx.Balance(owner, id)
		return err
	})
	return qty, err
}

// HasClaimedStarterPack 查询是否已领取新手礼包
func (r *Registry) HasClaimedStarterPack(ctx context.Context, owner models.Address) (bool, error) {
	var claimed bool
	err := r.store.View(ctx, func(tx ReadTx) error {
		var err error
		claimed, err = tx.Claimed(owner)
		return err
	})
	return claimed, err
}

// TotalSupply 已铸造的卡牌种类数
func (r *Registry) TotalSupply(ctx context.Context) (uint64, error) {
	var n uint64
	err := r.store.View(ctx, func(tx ReadTx) error {
		var err error
		n, err = tx.CardCount()
		return err
	})
	return n, err
}

// SupplyOf 某张卡牌的总发行量
func (r *Registry) SupplyOf(ctx context.Context, id uint64) (uint64, error) {
	var supply uint64
	err := r.store.View(ctx, func(tx ReadTx) error {
		if _, ok, err := tx.Card(id); err != nil {
			return err
		} else if !ok {
			return apperr.New(apperr.CodeNotFound, "token %d not minted", id)
		}
		var err error
		supply, err = tx.Supply(id)
		return err
	})
	return supply, err
}

// Collection 返回地址当前持有（余额大于0）的卡牌及属性
func (r *Registry) Collection(ctx context.Context, owner models.Address) ([]models.OwnedCard, error) {
	cards := make([]models.OwnedCard, 0)
	err := r.store.View(ctx, func(tx ReadTx) error {
		ids, err := tx.OwnedTokens(owner)
		if err != nil {
			return err
		}
		for _, id := range ids {
			qty, err := tx.Balance(owner, id)
			if err != nil {
				return err
			}
			if qty == 0 {
				continue
			}
			attrs, ok, err := tx.Card(id)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			cards = append(cards, models.OwnedCard{TokenID: id, Balance: qty, Attributes: attrs})
		}
		return nil
	})
	return cards, err
}

// Version 账本已提交版本
func (r *Registry) Version(ctx context.Context) (uint64, error) {
	return r.store.Version(ctx)
}
