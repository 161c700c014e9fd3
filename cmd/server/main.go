// main.go

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/jacl-coder/ElementalCard-Server/config"
	"github.com/jacl-coder/ElementalCard-Server/internal/gateway"
	"github.com/jacl-coder/ElementalCard-Server/internal/notify"
	"github.com/jacl-coder/ElementalCard-Server/internal/registry"
	"github.com/jacl-coder/ElementalCard-Server/pkg/db"
	"github.com/jacl-coder/ElementalCard-Server/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// 解析命令行参数
	configPath := flag.String("config", "config/config.yaml", "配置文件路径")
	flag.Parse()

	// 加载配置
	if err := config.LoadConfig(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(config.GlobalConfig.Server)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, &config.GlobalConfig, log); err != nil {
		log.Error("服务器异常退出", zap.Error(err))
		os.Exit(1)
	}
	log.Info("服务器已安全关闭")
}

// run 组装账本、事件推送与网关，直到 ctx 取消
func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	if err := cfg.CheckSecrets(); err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == config.DefaultJWTSecret {
		log.Warn("正在使用默认的JWT密钥，仅限调试")
	}

	// 初始化账本存储
	store, err := registry.OpenStore(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("初始化账本存储失败: %w", err)
	}
	defer store.Close()
	log.Info("账本存储已就绪", zap.String("driver", cfg.Database.Driver))

	// 初始化Redis连接，失败时使用内存会话
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = db.OpenRedis(ctx, cfg.Redis)
		if err != nil {
			log.Warn("Redis不可用，会话保存在内存中", zap.Error(err))
		} else {
			defer redisClient.Close()
			log.Info("Redis连接成功", zap.String("addr", cfg.Redis.GetRedisAddr()))
		}
	}
	sessions := gateway.NewSessionStore(redisClient, log)
	defer sessions.Close()

	opts, err := registry.OptionsFromConfig(cfg, log)
	if err != nil {
		return err
	}
	reg := registry.New(store, opts...)

	hub := notify.NewHub(log)
	unsubscribe := reg.Subscribe(hub)
	defer unsubscribe()

	gw := gateway.NewGateway(cfg, reg, hub, sessions, log)
	defer gw.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return gw.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("接收到关闭信号，正在关闭服务器...")
		hub.Close()
		return nil
	})
	return g.Wait()
}
