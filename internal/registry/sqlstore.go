package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/jacl-coder/ElementalCard-Server/internal/apperr"
	"github.com/jacl-coder/ElementalCard-Server/internal/models"
	"github.com/jacl-coder/ElementalCard-Server/pkg/db"
)

// Dialect SQL方言
type Dialect int

const (
	// DialectSQLite 使用 ? 占位符
	DialectSQLite Dialect = iota
	// DialectPostgres 使用 $n 占位符
	DialectPostgres
)

// SQLStore 基于 database/sql 的账本存储
//
// 每个 Update 的第一条语句递增 ledger_meta.version，
// 该行锁让所有写事务在数据库层面串行执行；进程内再加一把锁减少锁竞争。
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	mu      sync.Mutex
}

// NewSQLStore 创建SQL账本并确保表结构存在
func NewSQLStore(ctx context.Context, conn *sql.DB, dialect Dialect) (*SQLStore, error) {
	if err := db.InitAllTables(ctx, conn); err != nil {
		return nil, err
	}
	return &SQLStore{db: conn, dialect: dialect}, nil
}

// rebind 把 ? 占位符转换为当前方言
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Update 在数据库事务中执行一次原子变更
func (s *SQLStore) Update(ctx context.Context, fn func(tx Tx) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	var version int64
	err = dbTx.QueryRowContext(ctx,
		`UPDATE ledger_meta SET version = version + 1 WHERE id = 1 RETURNING version`,
	).Scan(&version)
	if err != nil {
		return fmt.Errorf("锁定账本失败: %w", err)
	}

	tx := &sqlTx{sqlView: sqlView{s: s, q: dbTx, ctx: ctx}, version: uint64(version)}
	if err = fn(tx); err != nil {
		return err
	}

	if err = dbTx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

// View 在只读事务中执行查询，多次读取看到同一个快照
func (s *SQLStore) View(ctx context.Context, fn func(tx ReadTx) error) error {
	opts := &sql.TxOptions{ReadOnly: true}
	if s.dialect == DialectPostgres {
		opts.Isolation = sql.LevelRepeatableRead
	}
	dbTx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("开启只读事务失败: %w", err)
	}
	defer dbTx.Rollback()

	return fn(sqlView{s: s, q: dbTx, ctx: ctx})
}

// Version 返回已提交版本
func (s *SQLStore) Version(ctx context.Context) (uint64, error) {
	var version int64
	if err := s.db.QueryRowContext(ctx, `SELECT version FROM ledger_meta WHERE id = 1`).Scan(&version); err != nil {
		return 0, fmt.Errorf("查询账本版本失败: %w", err)
	}
	return uint64(version), nil
}

// Close 关闭数据库连接
func (s *SQLStore) Close() error {
	return s.db.Close()
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqlView struct {
	s   *SQLStore
	q   querier
	ctx context.Context
}

func (v sqlView) queryRow(query string, args ...any) *sql.Row {
	return v.q.QueryRowContext(v.ctx, v.s.rebind(query), args...)
}

func (v sqlView) exec(query string, args ...any) (sql.Result, error) {
	return v.q.ExecContext(v.ctx, v.s.rebind(query), args...)
}

func (v sqlView) Card(id uint64) (models.Attributes, bool, error) {
	var (
		element, special, image string
		power, defense, rarity  int64
	)
	err := v.queryRow(
		`SELECT element, power, defense, special, rarity, image_url FROM cards WHERE token_id = ?`,
		int64(id),
	).Scan(&element, &power, &defense, &special, &rarity, &image)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Attributes{}, false, nil
	}
	if err != nil {
		return models.Attributes{}, false, fmt.Errorf("查询卡牌失败: %w", err)
	}
	return models.Attributes{
		Element:  models.Element(element),
		Power:    uint8(power),
		Defense:  uint8(defense),
		Special:  models.SpecialMove(special),
		Rarity:   uint8(rarity),
		ImageURL: image,
	}, true, nil
}

func (v sqlView) CardCount() (uint64, error) {
	var next int64
	if err := v.queryRow(`SELECT next_token_id FROM ledger_meta WHERE id = 1`).Scan(&next); err != nil {
		return 0, fmt.Errorf("查询卡牌数量失败: %w", err)
	}
	return uint64(next), nil
}

func (v sqlView) Supply(id uint64) (uint64, error) {
	var supply int64
	err := v.queryRow(`SELECT supply FROM cards WHERE token_id = ?`, int64(id)).Scan(&supply)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("查询发行量失败: %w", err)
	}
	return uint64(supply), nil
}

func (v sqlView) Balance(owner models.Address, id uint64) (uint64, error) {
	var qty int64
	err := v.queryRow(
		`SELECT quantity FROM balances WHERE owner_address = ? AND token_id = ?`,
		owner.Hex(), int64(id),
	).Scan(&qty)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("查询余额失败: %w", err)
	}
	return uint64(qty), nil
}

func (v sqlView) OwnedTokens(owner models.Address) ([]uint64, error) {
	rows, err := v.q.QueryContext(v.ctx,
		v.s.rebind(`SELECT token_id FROM owned_tokens WHERE owner_address = ? ORDER BY seq`),
		owner.Hex(),
	)
	if err != nil {
		return nil, fmt.Errorf("查询持有索引失败: %w", err)
	}
	defer rows.Close()

	ids := make([]uint64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("扫描持有索引失败: %w", err)
		}
		ids = append(ids, uint64(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历持有索引失败: %w", err)
	}
	return ids, nil
}

func (v sqlView) Claimed(owner models.Address) (bool, error) {
	var count int
	if err := v.queryRow(`SELECT COUNT(1) FROM starter_claims WHERE owner_address = ?`, owner.Hex()).Scan(&count); err != nil {
		return false, fmt.Errorf("查询领取记录失败: %w", err)
	}
	return count > 0, nil
}

type sqlTx struct {
	sqlView
	version uint64
}

func (tx *sqlTx) Version() uint64 {
	return tx.version
}

func (tx *sqlTx) InsertCard(attrs models.Attributes) (uint64, error) {
	var next int64
	err := tx.queryRow(
		`UPDATE ledger_meta SET next_token_id = next_token_id + 1 WHERE id = 1 RETURNING next_token_id`,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("分配token id失败: %w", err)
	}
	id := next - 1

	_, err = tx.exec(
		`INSERT INTO cards (token_id, element, power, defense, special, rarity, image_url, supply) VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
		id, string(attrs.Element), int64(attrs.Power), int64(attrs.Defense), string(attrs.Special), int64(attrs.Rarity), attrs.ImageURL,
	)
	if err != nil {
		return 0, fmt.Errorf("保存卡牌失败: %w", err)
	}
	return uint64(id), nil
}

func (tx *sqlTx) AddSupply(id uint64, amount uint64) error {
	res, err := tx.exec(`UPDATE cards SET supply = supply + ? WHERE token_id = ?`, int64(amount), int64(id))
	if err != nil {
		return fmt.Errorf("更新发行量失败: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.New(apperr.CodeNotFound, "token %d not minted", id)
	}
	return nil
}

func (tx *sqlTx) Credit(owner models.Address, id uint64, amount uint64) error {
	_, err := tx.exec(
		`INSERT INTO balances (owner_address, token_id, quantity) VALUES (?, ?, ?)
ON CONFLICT (owner_address, token_id) DO UPDATE SET quantity = balances.quantity + excluded.quantity`,
		owner.Hex(), int64(id), int64(amount),
	)
	if err != nil {
		return fmt.Errorf("更新余额失败: %w", err)
	}
	if amount == 0 {
		return nil
	}

	var exists int
	if err := tx.queryRow(
		`SELECT COUNT(1) FROM owned_tokens WHERE owner_address = ? AND token_id = ?`,
		owner.Hex(), int64(id),
	).Scan(&exists); err != nil {
		return fmt.Errorf("查询持有索引失败: %w", err)
	}
	if exists > 0 {
		return nil
	}

	var seq int64
	if err := tx.queryRow(
		`UPDATE ledger_meta SET next_seq = next_seq + 1 WHERE id = 1 RETURNING next_seq`,
	).Scan(&seq); err != nil {
		return fmt.Errorf("分配持有序号失败: %w", err)
	}
	if _, err := tx.exec(
		`INSERT INTO owned_tokens (owner_address, token_id, seq) VALUES (?, ?, ?)`,
		owner.Hex(), int64(id), seq,
	); err != nil {
		return fmt.Errorf("写入持有索引失败: %w", err)
	}
	return nil
}

func (tx *sqlTx) Debit(owner models.Address, id uint64, amount uint64) error {
	current, err := tx.Balance(owner, id)
	if err != nil {
		return err
	}
	if current < amount {
		return apperr.New(apperr.CodeInsufficientBalance, "balance %d of token %d is below %d", current, id, amount)
	}
	_, err = tx.exec(
		`UPDATE balances SET quantity = quantity - ? WHERE owner_address = ? AND token_id = ?`,
		int64(amount), owner.Hex(), int64(id),
	)
	if err != nil {
		return fmt.Errorf("更新余额失败: %w", err)
	}
	return nil
}

func (tx *sqlTx) MarkClaimed(owner models.Address) (bool, error) {
	res, err := tx.exec(
		`INSERT INTO starter_claims (owner_address) VALUES (?) ON CONFLICT (owner_address) DO NOTHING`,
		owner.Hex(),
	)
	if err != nil {
		return false, fmt.Errorf("写入领取记录失败: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("读取影响行数失败: %w", err)
	}
	return n == 1, nil
}
