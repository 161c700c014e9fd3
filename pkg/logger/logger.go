// logger.go

package logger

import (
	"fmt"

	"github.com/jacl-coder/ElementalCard-Server/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New 根据服务器配置创建日志器
// 调试模式使用控制台格式，否则输出JSON
func New(cfg config.ServerConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.LogLevel != "" {
		if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			return nil, fmt.Errorf("无效的日志级别 %q: %w", cfg.LogLevel, err)
		}
	}

	var zc zap.Config
	if cfg.Debug {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	log, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("创建日志器失败: %w", err)
	}
	return log, nil
}
