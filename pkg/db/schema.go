// schema.go

package db

import (
	"context"
	"database/sql"
	"fmt"
)

// 统一的数据库表结构定义，PostgreSQL 与 SQLite 通用

// CreateAllTablesSQL 创建所有表的SQL语句
var CreateAllTablesSQL = []string{
	// 账本元数据：下一个 token id、持有索引序号、版本号
	`CREATE TABLE IF NOT EXISTS ledger_meta (
    id INTEGER PRIMARY KEY,
    next_token_id BIGINT NOT NULL DEFAULT 0,
    next_seq BIGINT NOT NULL DEFAULT 0,
    version BIGINT NOT NULL DEFAULT 0
)`,
	`INSERT INTO ledger_meta (id, next_token_id, next_seq, version) VALUES (1, 0, 0, 0)
ON CONFLICT (id) DO NOTHING`,

	// 卡牌表，属性铸造后不可修改
	`CREATE TABLE IF NOT EXISTS cards (
    token_id BIGINT PRIMARY KEY,
    element VARCHAR(32) NOT NULL,
    power SMALLINT NOT NULL CHECK (power BETWEEN 0 AND 100),
    defense SMALLINT NOT NULL CHECK (defense BETWEEN 0 AND 100),
    special VARCHAR(64) NOT NULL,
    rarity SMALLINT NOT NULL CHECK (rarity BETWEEN 1 AND 5),
    image_url TEXT NOT NULL DEFAULT '',
    supply BIGINT NOT NULL DEFAULT 0,
    minted_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`,

	// 持有余额表
	`CREATE TABLE IF NOT EXISTS balances (
    owner_address VARCHAR(42) NOT NULL,
    token_id BIGINT NOT NULL REFERENCES cards(token_id),
    quantity BIGINT NOT NULL CHECK (quantity >= 0),
    PRIMARY KEY (owner_address, token_id)
)`,

	// 持有索引，只追加
	`CREATE TABLE IF NOT EXISTS owned_tokens (
    owner_address VARCHAR(42) NOT NULL,
    token_id BIGINT NOT NULL REFERENCES cards(token_id),
    seq BIGINT NOT NULL,
    PRIMARY KEY (owner_address, token_id)
)`,

	// 新手礼包领取记录
	`CREATE TABLE IF NOT EXISTS starter_claims (
    owner_address VARCHAR(42) PRIMARY KEY,
    claimed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`,

	// 创建索引以提高查询性能
	`CREATE INDEX IF NOT EXISTS idx_owned_tokens_owner_seq ON owned_tokens(owner_address, seq)`,
	`CREATE INDEX IF NOT EXISTS idx_balances_token_id ON balances(token_id)`,
}

// DropAllTablesSQL 删除所有表
var DropAllTablesSQL = []string{
	`DROP TABLE IF EXISTS starter_claims`,
	`DROP TABLE IF EXISTS owned_tokens`,
	`DROP TABLE IF EXISTS balances`,
	`DROP TABLE IF EXISTS cards`,
	`DROP TABLE IF EXISTS ledger_meta`,
}

// InitAllTables 初始化所有数据库表
func InitAllTables(ctx context.Context, conn *sql.DB) error {
	return execAll(ctx, conn, CreateAllTablesSQL)
}

// DropAllTables 删除所有数据库表
func DropAllTables(ctx context.Context, conn *sql.DB) error {
	return execAll(ctx, conn, DropAllTablesSQL)
}

func execAll(ctx context.Context, conn *sql.DB, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("执行建表语句失败: %w", err)
		}
	}
	return nil
}
