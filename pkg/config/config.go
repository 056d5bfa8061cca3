package config

import (
	"os"
	"strconv"
)

// DBConfig 数据库配置
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// MQConfig 消息队列配置
type MQConfig struct {
	URL string `yaml:"url"`
	// MaxRetries 同一条消息处理失败后允许的最大重投次数，超过后进入死信队列。
	MaxRetries int `yaml:"max_retries"`
	// InfiniteRequeue 为 true 时恢复 nack+requeue 无限重试行为（不走死信队列）。
	InfiniteRequeue bool `yaml:"infinite_requeue"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// GoogleConfig Google OAuth / Calendar 配置
type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURI  string `yaml:"redirect_uri"`
	// TokenURL 可覆盖，测试时指向本地 stub
	TokenURL    string `yaml:"token_url"`
	CalendarURL string `yaml:"calendar_url"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port string `yaml:"port"`
}

// SchedulerConfig 定时任务配置
type SchedulerConfig struct {
	// MorningHour 每日晨报发送的整点小时（本地时区，0-23）
	MorningHour int `yaml:"morning_hour"`
}

// OverrideDBFromEnv 从环境变量覆盖数据库配置
func OverrideDBFromEnv(cfg *DBConfig) {
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.Name = name
	}
}

// OverrideMQFromEnv 从环境变量覆盖MQ配置
func OverrideMQFromEnv(cfg *MQConfig) {
	if url := os.Getenv("RABBITMQ_URL"); url != "" {
		cfg.URL = url
	}
	if max := os.Getenv("MQ_MAX_RETRIES"); max != "" {
		if m, err := strconv.Atoi(max); err == nil {
			cfg.MaxRetries = m
		}
	}
	if inf := os.Getenv("MQ_INFINITE_REQUEUE"); inf != "" {
		cfg.InfiniteRequeue = inf == "true" || inf == "1"
	}
}

// OverrideRedisFromEnv 从环境变量覆盖Redis配置
func OverrideRedisFromEnv(cfg *RedisConfig) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Password = password
	}
}

// OverrideGoogleFromEnv 从环境变量覆盖Google配置
func OverrideGoogleFromEnv(cfg *GoogleConfig) {
	if id := os.Getenv("GOOGLE_CLIENT_ID"); id != "" {
		cfg.ClientID = id
	}
	if secret := os.Getenv("GOOGLE_CLIENT_SECRET"); secret != "" {
		cfg.ClientSecret = secret
	}
	if uri := os.Getenv("GOOGLE_REDIRECT_URI"); uri != "" {
		cfg.RedirectURI = uri
	}
}

// OverrideSchedulerFromEnv 从环境变量覆盖定时任务配置
func OverrideSchedulerFromEnv(cfg *SchedulerConfig) {
	if hour := os.Getenv("SCHEDULER_MORNING_HOUR"); hour != "" {
		if h, err := strconv.Atoi(hour); err == nil && h >= 0 && h <= 23 {
			cfg.MorningHour = h
		}
	}
}

// OverrideServerFromEnv 从环境变量覆盖服务器配置
func OverrideServerFromEnv(cfg *ServerConfig) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}
}
