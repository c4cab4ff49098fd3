// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Log          LogConfig          `mapstructure:"log"`
	Twilio       TwilioConfig       `mapstructure:"twilio"`
	LLM          LLMConfig          `mapstructure:"llm"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	Reply        ReplyConfig        `mapstructure:"reply"`
	Dispatch     DispatchConfig     `mapstructure:"dispatch"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	JWT          JWTConfig          `mapstructure:"jwt"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
	// PublicURL 是 Twilio 看到的外部地址，用于签名校验，例如 https://sms.example.com
	PublicURL string `mapstructure:"public_url"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。DSN 为空时不记录投递日志。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// TwilioConfig 存储短信通道相关的配置。
type TwilioConfig struct {
	AccountSID        string `mapstructure:"account_sid"`
	AuthToken         string `mapstructure:"auth_token"`
	ValidateSignature bool   `mapstructure:"validate_signature"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Model      string              `mapstructure:"model"`
	Timeout    time.Duration       `mapstructure:"timeout"`
	Generation LLMGenerationConfig `mapstructure:"generation"`
	Prompt     LLMPromptConfig     `mapstructure:"prompt"`
}

// LLMGenerationConfig 配置生成相关参数（可选，零值表示不下发）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// LLMPromptConfig 配置系统提示（可选）。
type LLMPromptConfig struct {
	System string `mapstructure:"system"`
}

// ConversationConfig 控制会话历史的生命周期。
type ConversationConfig struct {
	// TTL 每次保存时刷新，0 表示永不过期。
	TTL time.Duration `mapstructure:"ttl"`
	// MaxMessages 保存时只保留最近 N 条，0 表示不截断。
	MaxMessages int `mapstructure:"max_messages"`
}

// ReplyConfig 控制回复的分段与投递。
type ReplyConfig struct {
	MaxSegmentLength int           `mapstructure:"max_segment_length"`
	SegmentDelay     time.Duration `mapstructure:"segment_delay"`
	// FailureMessage 在生成失败时回复给用户，为空则静默。
	FailureMessage string `mapstructure:"failure_message"`
}

// DispatchConfig 选择后台任务的执行方式。
type DispatchConfig struct {
	Mode      string `mapstructure:"mode"` // "local" 或 "kafka"
	Workers   int    `mapstructure:"workers"`
	QueueSize int    `mapstructure:"queue_size"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// JWTConfig 存储管理接口 JWT 相关的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
}

const (
	DispatchModeLocal = "local"
	DispatchModeKafka = "kafka"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.public_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "")
	v.SetDefault("database.redis.addr", "localhost:6379")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)
	v.SetDefault("database.mysql.dsn", "")
	// 密钥类配置也需要注册默认值，AutomaticEnv 才能在 Unmarshal 时生效
	v.SetDefault("twilio.account_sid", "")
	v.SetDefault("twilio.auth_token", "")
	v.SetDefault("twilio.validate_signature", true)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.generation.temperature", 0.0)
	v.SetDefault("llm.generation.top_p", 0.0)
	v.SetDefault("llm.generation.max_tokens", 0)
	v.SetDefault("llm.prompt.system", "")
	v.SetDefault("conversation.ttl", 20*time.Minute)
	v.SetDefault("conversation.max_messages", 0)
	v.SetDefault("reply.max_segment_length", 320)
	v.SetDefault("reply.segment_delay", time.Second)
	v.SetDefault("reply.failure_message", "")
	v.SetDefault("dispatch.mode", DispatchModeLocal)
	v.SetDefault("dispatch.workers", 8)
	v.SetDefault("dispatch.queue_size", 64)
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "sms-replies")
	v.SetDefault("kafka.group_id", "sms-relay-go-consumer")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.access_token_expire_hours", 24)
}

// Load 从指定路径读取 YAML 配置，环境变量（SMSRELAY_ 前缀）优先于文件。
// path 为空时只使用默认值与环境变量。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("smsrelay")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Reply.MaxSegmentLength <= 0 {
		return fmt.Errorf("reply.max_segment_length must be positive, got %d", c.Reply.MaxSegmentLength)
	}
	switch c.Dispatch.Mode {
	case DispatchModeLocal:
		if c.Dispatch.Workers <= 0 {
			return fmt.Errorf("dispatch.workers must be positive, got %d", c.Dispatch.Workers)
		}
	case DispatchModeKafka:
		if c.Kafka.Brokers == "" {
			return fmt.Errorf("kafka.brokers is required when dispatch.mode is %q", DispatchModeKafka)
		}
	default:
		return fmt.Errorf("unknown dispatch.mode %q", c.Dispatch.Mode)
	}
	if c.Twilio.ValidateSignature && c.Server.PublicURL == "" {
		return fmt.Errorf("server.public_url is required when twilio.validate_signature is enabled")
	}
	return nil
}

// Init 初始化配置加载并写入全局 Conf，失败时直接 panic。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = *cfg
}
