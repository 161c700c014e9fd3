package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jacl-coder/ElementalCard-Server/config"
	"github.com/jacl-coder/ElementalCard-Server/internal/registry"
	"github.com/jacl-coder/ElementalCard-Server/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// cliOptions 全局参数
type cliOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:   "cardctl",
		Short: "ElementalCard 账本管理工具",
		Long: `管理 ElementalCard 的SQL账本（sqlite 或 postgres）。

子命令:
  db init   - 创建表结构
  db reset  - 删除所有表和数据后重新创建
  seed      - 为地址领取新手礼包
  mint      - 铸造一张卡牌
  show      - 查看卡牌属性
  owner     - 查看地址持有的卡牌`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "config/config.yaml", "配置文件路径")

	root.AddCommand(
		newDBCmd(opts),
		newSeedCmd(opts),
		newMintCmd(opts),
		newShowCmd(opts),
		newOwnerCmd(opts),
	)
	return root
}

// loadConfig 加载配置，只接受持久化的驱动
func (o *cliOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(cfg.Database.Driver) {
	case "sqlite", "postgres":
		return cfg, nil
	default:
		return nil, fmt.Errorf("database.driver=%q 无法持久化，请使用 sqlite 或 postgres", cfg.Database.Driver)
	}
}

// openSQL 打开数据库连接
func openSQL(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	if strings.EqualFold(cfg.Driver, "postgres") {
		return db.OpenPostgres(ctx, cfg)
	}
	return db.OpenSQLite(ctx, cfg.Path)
}

// openLedger 打开账本，调用方负责关闭返回的存储
func (o *cliOptions) openLedger(ctx context.Context) (*registry.Registry, registry.Store, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := registry.OpenStore(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	ropts, err := registry.OptionsFromConfig(cfg, zap.NewNop())
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return registry.New(store, ropts...), store, nil
}
