package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jacl-coder/ElementalCard-Server/config"
	_ "github.com/lib/pq"
)

// OpenPostgres 连接PostgreSQL
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	conn, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err = conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("数据库Ping失败: %w", err)
	}

	return conn, nil
}
