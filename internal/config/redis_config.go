package config

import "time"

// RedisConfig is optional; without an address runs are locked in-process.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

func defaultRedisConfig() RedisConfig {
	return RedisConfig{LockTTL: 10 * time.Minute}
}

func (config RedisConfig) Enabled() bool {
	return config.Addr != ""
}

func (config RedisConfig) bindEnvironmentVariables() error {
	return bindAll(map[string]string{
		"redis.addr":     "REDIS_ADDR",
		"redis.password": "REDIS_PASSWORD",
	})
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

func (config MetricsConfig) bindEnvironmentVariables() error {
	return bindAll(map[string]string{"metrics.addr": "METRICS_ADDR"})
}
