// config.go

package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// DefaultJWTSecret 未配置时的签名密钥，只能用于调试
const DefaultJWTSecret = "change-me"

// Config 服务配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Registry RegistryConfig `mapstructure:"registry"`
}

// ServerConfig 服务器基本配置
type ServerConfig struct {
	GatewayPort       int    `mapstructure:"gateway_port"`
	Debug             bool   `mapstructure:"debug"`
	LogLevel          string `mapstructure:"log_level"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
	PublicURL         string `mapstructure:"public_url"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // memory, postgres, sqlite
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	Path     string `mapstructure:"path"` // sqlite 文件路径
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ChainConfig 链与合约身份配置
type ChainConfig struct {
	ChainID      int64  `mapstructure:"chain_id"`
	ContractName string `mapstructure:"contract_name"`
	Symbol       string `mapstructure:"symbol"`
	OwnerAddress string `mapstructure:"owner_address"`
}

// AuthConfig 钱包认证配置
type AuthConfig struct {
	JWTSecret     string `mapstructure:"jwt_secret"`
	SessionTTLMin int    `mapstructure:"session_ttl_minutes"`
	NonceTTLSec   int    `mapstructure:"nonce_ttl_seconds"`
}

// RegistryConfig 卡牌账本配置
type RegistryConfig struct {
	StarterPack []StarterCardConfig `mapstructure:"starter_pack"`
}

// StarterCardConfig 新手礼包中的一张卡
type StarterCardConfig struct {
	Element  string `mapstructure:"element"`
	Power    int    `mapstructure:"power"`
	Defense  int    `mapstructure:"defense"`
	Special  string `mapstructure:"special"`
	Rarity   int    `mapstructure:"rarity"`
	ImageURL string `mapstructure:"image_url"`
}

var (
	// GlobalConfig 全局配置实例
	GlobalConfig Config
)

// setDefaults 设置默认值，没有配置文件时也能启动
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.gateway_port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.requests_per_minute", 120)
	v.SetDefault("server.public_url", "http://localhost:3000")

	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "elemental_cards")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "elemental_cards.db")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)

	// Hardhat 本地网络
	v.SetDefault("chain.chain_id", 31337)
	v.SetDefault("chain.contract_name", "ElementalCard")
	v.SetDefault("chain.symbol", "ECARD")

	v.SetDefault("auth.jwt_secret", DefaultJWTSecret)
	v.SetDefault("auth.session_ttl_minutes", 24*60)
	v.SetDefault("auth.nonce_ttl_seconds", 300)
}

// Load 读取配置文件；path 为空时只使用默认值和环境变量
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("无法读取配置文件: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}
	return &cfg, nil
}

// LoadConfig 从文件加载配置到 GlobalConfig
func LoadConfig(configPath string) error {
	cfg, err := Load(configPath)
	if err != nil {
		return err
	}
	GlobalConfig = *cfg
	return nil
}

// GetDSN 获取PostgreSQL连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// GetRedisAddr 获取Redis连接地址
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CheckSecrets 非调试模式下拒绝空密钥或默认密钥
func (c *Config) CheckSecrets() error {
	if c.Server.Debug {
		return nil
	}
	switch c.Auth.JWTSecret {
	case "":
		return fmt.Errorf("auth.jwt_secret 未设置")
	case DefaultJWTSecret:
		return fmt.Errorf("auth.jwt_secret 仍为默认值，请在非调试模式下配置独立密钥")
	}
	return nil
}
