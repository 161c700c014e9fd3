package registry

import (
	"context"
	"sync"

	"github.com/jacl-coder/ElementalCard-Server/internal/apperr"
	"github.com/jacl-coder/ElementalCard-Server/internal/models"
)

type balanceKey struct {
	owner models.Address
	id    uint64
}

// MemoryStore 内存账本，并发安全
// 写事务在私有暂存区中执行，提交时才短暂持有写锁，读操作不会等待正在执行的事务
type MemoryStore struct {
	writeMu sync.Mutex // 串行化 Update
	mu      sync.RWMutex

	cards    []models.Attributes
	supply   []uint64
	balances map[balanceKey]uint64
	owned    map[models.Address][]uint64
	ownedSet map[balanceKey]struct{}
	claimed  map[models.Address]bool
	version  uint64
}

// NewMemoryStore 创建内存账本
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		balances: make(map[balanceKey]uint64),
		owned:    make(map[models.Address][]uint64),
		ownedSet: make(map[balanceKey]struct{}),
		claimed:  make(map[models.Address]bool),
	}
}

// Update 执行一次原子变更
func (s *MemoryStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	tx := &memTx{
		memView:  memView{s: s},
		base:     uint64(len(s.cards)),
		version:  s.version + 1,
		supply:   make(map[uint64]uint64),
		balances: make(map[balanceKey]uint64),
		owned:    make(map[models.Address][]uint64),
		claimed:  make(map[models.Address]bool),
	}
	s.mu.RUnlock()
	tx.memView.tx = tx

	if err := fn(tx); err != nil {
		return err
	}

	s.commit(tx)
	return nil
}

func (s *MemoryStore) commit(tx *memTx) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, attrs := range tx.cards {
		s.cards = append(s.cards, attrs)
		s.supply = append(s.supply, 0)
	}
	for id, amount := range tx.supply {
		s.supply[id] += amount
	}
	for key, qty := range tx.balances {
		s.balances[key] = qty
	}
	for owner, ids := range tx.owned {
		for _, id := range ids {
			s.ownedSet[balanceKey{owner, id}] = struct{}{}
		}
		s.owned[owner] = append(s.owned[owner], ids...)
	}
	for owner := range tx.claimed {
		s.claimed[owner] = true
	}
	s.version = tx.version
}

// View 执行只读查询，fn 执行期间持有读锁，看到的是同一个已提交版本
func (s *MemoryStore) View(ctx context.Context, fn func(tx ReadTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(memView{s: s, locked: true})
}

// Version 返回已提交版本
func (s *MemoryStore) Version(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version, nil
}

// Close 内存账本无需释放资源
func (s *MemoryStore) Close() error {
	return nil
}

// memView 读取已提交状态，tx 不为空时先查暂存区
type memView struct {
	s      *MemoryStore
	tx     *memTx
	locked bool // View 已持有读锁
}

func (v memView) rlock() func() {
	if v.locked {
		return func() {}
	}
	v.s.mu.RLock()
	return v.s.mu.RUnlock
}

func (v memView) Card(id uint64) (models.Attributes, bool, error) {
	if v.tx != nil && id >= v.tx.base {
		i := id - v.tx.base
		if i < uint64(len(v.tx.cards)) {
			return v.tx.cards[i], true, nil
		}
		return models.Attributes{}, false, nil
	}

	defer v.rlock()()
	if id >= uint64(len(v.s.cards)) {
		return models.Attributes{}, false, nil
	}
	return v.s.cards[id], true, nil
}

func (v memView) CardCount() (uint64, error) {
	if v.tx != nil {
		return v.tx.base + uint64(len(v.tx.cards)), nil
	}
	defer v.rlock()()
	return uint64(len(v.s.cards)), nil
}

func (v memView) Supply(id uint64) (uint64, error) {
	var pending uint64
	if v.tx != nil {
		pending = v.tx.supply[id]
	}
	defer v.rlock()()
	if id < uint64(len(v.s.supply)) {
		return v.s.supply[id] + pending, nil
	}
	return pending, nil
}

func (v memView) Balance(owner models.Address, id uint64) (uint64, error) {
	key := balanceKey{owner, id}
	if v.tx != nil {
		if qty, ok := v.tx.balances[key]; ok {
			return qty, nil
		}
	}
	defer v.rlock()()
	return v.s.balances[key], nil
}

func (v memView) OwnedTokens(owner models.Address) ([]uint64, error) {
	unlock := v.rlock()
	committed := v.s.owned[owner]
	out := make([]uint64, 0, len(committed))
	out = append(out, committed...)
	unlock()

	if v.tx != nil {
		out = append(out, v.tx.owned[owner]...)
	}
	return out, nil
}

func (v memView) Claimed(owner models.Address) (bool, error) {
	if v.tx != nil && v.tx.claimed[owner] {
		return true, nil
	}
	defer v.rlock()()
	return v.s.claimed[owner], nil
}

func (v memView) hasOwned(owner models.Address, id uint64) bool {
	for _, pending := range v.tx.owned[owner] {
		if pending == id {
			return true
		}
	}
	defer v.rlock()()
	_, ok := v.s.ownedSet[balanceKey{owner, id}]
	return ok
}

// memTx 暂存区
type memTx struct {
	memView

	base    uint64
	version uint64

	cards    []models.Attributes
	supply   map[uint64]uint64
	balances map[balanceKey]uint64
	owned    map[models.Address][]uint64
	claimed  map[models.Address]bool
}

func (tx *memTx) Version() uint64 {
	return tx.version
}

func (tx *memTx) InsertCard(attrs models.Attributes) (uint64, error) {
	id := tx.base + uint64(len(tx.cards))
	tx.cards = append(tx.cards, attrs)
	return id, nil
}

func (tx *memTx) AddSupply(id uint64, amount uint64) error {
	if _, ok, _ := tx.Card(id); !ok {
		return apperr.New(apperr.CodeNotFound, "token %d not minted", id)
	}
	tx.supply[id] += amount
	return nil
}

func (tx *memTx) Credit(owner models.Address, id uint64, amount uint64) error {
	current, _ := tx.Balance(owner, id)
	tx.balances[balanceKey{owner, id}] = current + amount
	if amount > 0 && !tx.hasOwned(owner, id) {
		tx.owned[owner] = append(tx.owned[owner], id)
	}
	return nil
}

func (tx *memTx) Debit(owner models.Address, id uint64, amount uint64) error {
	current, _ := tx.Balance(owner, id)
	if current < amount {
		return apperr.New(apperr.CodeInsufficientBalance, "balance %d of token %d is below %d", current, id, amount)
	}
	tx.balances[balanceKey{owner, id}] = current - amount
	return nil
}

func (tx *memTx) MarkClaimed(owner models.Address) (bool, error) {
	claimed, _ := tx.Claimed(owner)
	if claimed {
		return false, nil
	}
	tx.claimed[owner] = true
	return true, nil
}
