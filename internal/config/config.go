// Package config 负责加载和管理应用程序的配置。
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Session       SessionConfig       `mapstructure:"session"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Mail          MailConfig          `mapstructure:"mail"`
	Tika          TikaConfig          `mapstructure:"tika"`
	Document      DocumentConfig      `mapstructure:"document"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	LLM           LLMConfig           `mapstructure:"llm"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	// Driver 取值 sqlite | mysql | postgres，默认 sqlite（单个本地文件）。
	Driver string      `mapstructure:"driver"`
	DSN    string      `mapstructure:"dsn"`
	Redis  RedisConfig `mapstructure:"redis"`
}

// RedisConfig 存储 Redis 的配置。Addr 为空时会话存放在进程内存中。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
	RefreshTokenExpireDays int    `mapstructure:"refresh_token_expire_days"`
}

// AuthConfig 存储密码与重置令牌相关的配置。
type AuthConfig struct {
	BcryptCost    int           `mapstructure:"bcrypt_cost"`
	ResetTokenTTL time.Duration `mapstructure:"reset_token_ttl"`
	// ResetURL 是重置邮件里链接的基础地址，令牌以 ?token= 附加。
	ResetURL string `mapstructure:"reset_url"`
}

// SessionConfig 存储会话上下文的配置。
type SessionConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。Brokers 为空时通知任务同步执行。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// MailConfig 存储邮件发送相关的配置。APIKey 为空时只记录日志。
type MailConfig struct {
	APIKey     string `mapstructure:"api_key"`
	SenderName string `mapstructure:"sender_name"`
	SenderAddr string `mapstructure:"sender_addr"`
}

// TikaConfig 存储 Tika 服务器相关的配置。
type TikaConfig struct {
	ServerURL string `mapstructure:"server_url"`
}

// DocumentConfig 存储 PDF 解析相关的配置。
type DocumentConfig struct {
	// Extractor 取值 local | tika。
	Extractor     string `mapstructure:"extractor"`
	MaxChars      int    `mapstructure:"max_chars"`
	PreviewChars  int    `mapstructure:"preview_chars"`
	MaxUploadSize int64  `mapstructure:"max_upload_size"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。Addresses 为空时不启用检索。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。Endpoint 为空时不归档文件。
type MinIOConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	UseSSL          bool          `mapstructure:"use_ssl"`
	BucketName      string        `mapstructure:"bucket_name"`
	URLExpiry       time.Duration `mapstructure:"url_expiry"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	// Provider 取值 openai（任意 OpenAI 兼容接口，默认 Groq）| gemini。
	Provider   string              `mapstructure:"provider"`
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Model      string              `mapstructure:"model"`
	Timeout    time.Duration       `mapstructure:"timeout"`
	Generation LLMGenerationConfig `mapstructure:"generation"`
	Prompt     LLMPromptConfig     `mapstructure:"prompt"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// LLMPromptConfig 配置系统提示词。
type LLMPromptConfig struct {
	System   string `mapstructure:"system"`
	Document string `mapstructure:"document"`
}

// RateLimitConfig 配置登录、注册、找回密码接口的限流。
type RateLimitConfig struct {
	PerMinute int `mapstructure:"per_minute"`
	Burst     int `mapstructure:"burst"`
}

const (
	defaultSystemPrompt   = "You are VyaparGPT, an AI assistant helping Indian MSMEs with business, compliance, invoices, legal, HR, and documents."
	defaultDocumentPrompt = "You are an MSME compliance assistant. Explain this document in simple language, list key points, deadlines, and required actions."
)

// setDefaults 注册所有配置项的默认值，使得没有配置文件时服务也能以本地模式启动。
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "vyapar.db")

	v.SetDefault("jwt.secret", "change-me")
	v.SetDefault("jwt.access_token_expire_hours", 24)
	v.SetDefault("jwt.refresh_token_expire_days", 7)

	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("auth.reset_token_ttl", time.Hour)
	v.SetDefault("auth.reset_url", "http://localhost:8080/reset-password")

	v.SetDefault("session.ttl", 24*time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("kafka.topic", "vyapar-notifications")
	v.SetDefault("kafka.group_id", "vyapar-go-consumer")

	v.SetDefault("mail.sender_name", "VyaparGPT")
	v.SetDefault("mail.sender_addr", "no-reply@vyapargpt.local")

	v.SetDefault("document.extractor", "local")
	v.SetDefault("document.max_chars", 8000)
	v.SetDefault("document.preview_chars", 1500)
	v.SetDefault("document.max_upload_size", 20<<20)

	v.SetDefault("elasticsearch.index_name", "vyapar_documents")

	v.SetDefault("minio.bucket_name", "vyapar")
	v.SetDefault("minio.url_expiry", time.Hour)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.model", "llama-3.1-8b-instant")
	v.SetDefault("llm.timeout", 2*time.Minute)
	v.SetDefault("llm.generation.max_tokens", 800)
	v.SetDefault("llm.prompt.system", defaultSystemPrompt)
	v.SetDefault("llm.prompt.document", defaultDocumentPrompt)

	v.SetDefault("rate_limit.per_minute", 20)
	v.SetDefault("rate_limit.burst", 5)

	// 以下键没有有意义的默认值，但必须注册，AutomaticEnv 才能在 Unmarshal 时生效
	for _, key := range []string{
		"database.redis.addr", "database.redis.password",
		"log.output_path", "kafka.brokers", "mail.api_key", "tika.server_url",
		"elasticsearch.addresses", "elasticsearch.username", "elasticsearch.password",
		"minio.endpoint", "minio.access_key_id", "minio.secret_access_key",
		"llm.api_key",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("database.redis.db", 0)
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("llm.generation.temperature", 0.0)
	v.SetDefault("llm.generation.top_p", 0.0)
}

// Load 读取配置文件（可选）与环境变量，返回解析后的配置。
// 环境变量以 VYAPAR_ 为前缀，例如 VYAPAR_LLM_API_KEY 覆盖 llm.api_key。
func Load(configPath string) (*Config, error) {
	// .env 不存在是正常情况，忽略错误
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("VYAPAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	return &cfg, nil
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = *cfg
}
