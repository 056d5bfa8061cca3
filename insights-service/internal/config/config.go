package config

import (
	"log"

	"gopkg.in/yaml.v3"

	"smartplanner/pkg/config"
)

type Config struct {
	MQ        config.MQConfig        `yaml:"mq"`
	Redis     config.RedisConfig     `yaml:"redis"`
	Scheduler config.SchedulerConfig `yaml:"scheduler"`
	Server    config.ServerConfig    `yaml:"server"`
}

func Load() *Config {
	// 使用统一配置中心
	env := config.GetConfigEnv()
	configDir := config.GetEnv("CONFIG_DIR", "config")

	cfgMap, err := config.LoadConfig(env, configDir)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var cfg Config
	cfgData, err := yaml.Marshal(cfgMap)
	if err != nil {
		log.Fatalf("failed to marshal config: %v", err)
	}
	if err := yaml.Unmarshal(cfgData, &cfg); err != nil {
		log.Fatalf("failed to unmarshal config: %v", err)
	}

	if cfg.Scheduler.MorningHour == 0 {
		cfg.Scheduler.MorningHour = 8
	}

	// 环境变量覆盖（优先级最高）
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideSchedulerFromEnv(&cfg.Scheduler)
	config.OverrideServerFromEnv(&cfg.Server)

	return &cfg
}
