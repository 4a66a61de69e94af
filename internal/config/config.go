package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Registry RegistryConfig
	Pipeline PipelineConfig
	AI       AIConfig
}

// AppConfig 应用配置
type AppConfig struct {
	Name        string
	Environment string
	Version     string
	Debug       bool
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string
	Port         int
	Mode         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// StorageConfig 对象存储配置
type StorageConfig struct {
	Type      string // minio, local
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	LocalPath string // type=local 时的根目录
}

// RegistryConfig 数据集注册表配置
type RegistryConfig struct {
	Path string // datasets.yaml 路径
}

// AIConfig 解释转译所用大模型配置，兼容 OpenAI 协议的端点
type AIConfig struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
}

// PipelineConfig 流水线配置
type PipelineConfig struct {
	Workers         int     // 后台任务并发度
	DownloadTimeout int     // 下载超时（秒）
	TrainRatio      float64 // 训练集比例
	ValRatio        float64 // 验证集比例
	MaxSampleSize   int     // 解释采样上限
	CacheTTLSeconds int     // 解释缓存 TTL
	MaxBalancedRows int     // 平衡采样后的最大行数
	OutlierSigma    float64 // 离群值裁剪阈值（标准差倍数）
}

var globalConfig *Config

// Load 加载配置
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// 环境变量
	v.SetEnvPrefix("XAI_BENCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	globalConfig = &cfg
	return &cfg, nil
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		panic("config not loaded")
	}
	return globalConfig
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// GetAddr 获取服务器地址
func (c *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAddr 获取 Redis 地址
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "xai-bench")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.debug", true)

	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 60)

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "xai_bench")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.maxLifetime", 300)

	// Redis
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// Storage
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.bucket", "xai-bench")
	v.SetDefault("storage.useSsl", false)
	v.SetDefault("storage.localPath", "./data/storage")

	// Registry
	v.SetDefault("registry.path", "./configs/datasets.yaml")

	// Pipeline
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.downloadTimeout", 300)
	v.SetDefault("pipeline.trainRatio", 0.7)
	v.SetDefault("pipeline.valRatio", 0.15)
	v.SetDefault("pipeline.maxSampleSize", 500)
	v.SetDefault("pipeline.cacheTtlSeconds", 3600)
	v.SetDefault("pipeline.maxBalancedRows", 20000)
	v.SetDefault("pipeline.outlierSigma", 3.0)

	// AI
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.apiKey", "")
	v.SetDefault("ai.baseUrl", "")
	v.SetDefault("ai.model", "gpt-4o-mini")
}
