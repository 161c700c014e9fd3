package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/jacl-coder/ElementalCard-Server/config"
	"github.com/jacl-coder/ElementalCard-Server/internal/models"
	"github.com/jacl-coder/ElementalCard-Server/pkg/db"
	"go.uber.org/zap"
)

// OpenStore 按 database.driver 打开账本存储
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		conn, err := db.OpenSQLite(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		store, err := NewSQLStore(ctx, conn, DialectSQLite)
		if err != nil {
			conn.Close()
			return nil, err
		}
		return store, nil
	case "postgres":
		conn, err := db.OpenPostgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store, err := NewSQLStore(ctx, conn, DialectPostgres)
		if err != nil {
			conn.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("未知的数据库驱动: %s", cfg.Driver)
	}
}

// OptionsFromConfig 从配置构造账本选项：合约拥有者与新手礼包
func OptionsFromConfig(cfg *config.Config, log *zap.Logger) ([]Option, error) {
	opts := []Option{WithLogger(log)}

	if cfg.Chain.OwnerAddress != "" {
		owner, err := models.ParseAddress(cfg.Chain.OwnerAddress)
		if err != nil {
			return nil, fmt.Errorf("无效的合约拥有者地址: %w", err)
		}
		opts = append(opts, WithOwner(owner))
	}

	if len(cfg.Registry.StarterPack) > 0 {
		pack := make([]models.Attributes, 0, len(cfg.Registry.StarterPack))
		for i, c := range cfg.Registry.StarterPack {
			attrs, err := models.MintInput{
				Element:  c.Element,
				Power:    c.Power,
				Defense:  c.Defense,
				Special:  c.Special,
				Rarity:   c.Rarity,
				ImageURL: c.ImageURL,
			}.Validate()
			if err != nil {
				return nil, fmt.Errorf("新手礼包第%d张卡配置无效: %w", i+1, err)
			}
			pack = append(pack, attrs)
		}
		opts = append(opts, WithStarterPack(pack))
	}

	return opts, nil
}
