package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Reporter  ReporterConfig  `mapstructure:"reporter"`
	Heartbeat HeartbeatConfig `mapstructure:"heartbeat"`
	Telephony TelephonyConfig `mapstructure:"telephony"`
	Ingress   IngressConfig   `mapstructure:"ingress"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type StorageConfig struct {
	Driver string       `mapstructure:"driver"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`
	Redis  RedisConfig  `mapstructure:"redis"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type DispatchConfig struct {
	// Retention bounds how long a dispatch waits for its delivery signal.
	Retention     time.Duration `mapstructure:"retention"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	SignalBuffer  int           `mapstructure:"signal_buffer"`
}

type ReporterConfig struct {
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

type HeartbeatConfig struct {
	Enabled       bool            `mapstructure:"enabled"`
	Interval      time.Duration   `mapstructure:"interval"`
	RetrySchedule []time.Duration `mapstructure:"retry_schedule"`
}

type TelephonyConfig struct {
	Driver        string         `mapstructure:"driver"`
	SendPermitted bool           `mapstructure:"send_permitted"`
	Gateway       GatewayConfig  `mapstructure:"gateway"`
	Loopback      LoopbackConfig `mapstructure:"loopback"`
}

type GatewayConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LoopbackConfig struct {
	SentCode      int           `mapstructure:"sent_code"`
	DeliveredCode int           `mapstructure:"delivered_code"`
	Delay         time.Duration `mapstructure:"delay"`
}

type IngressConfig struct {
	Secret string `mapstructure:"secret"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("smsrelay")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/smsrelay")
	}

	setDefaults(v)

	v.SetEnvPrefix("SMSRELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.sqlite.path", "./data/smsrelay.db")
	v.SetDefault("storage.redis.addr", "localhost:6379")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.prefix", "smsrelay")

	v.SetDefault("dispatch.retention", 24*time.Hour)
	v.SetDefault("dispatch.sweep_interval", 10*time.Minute)
	v.SetDefault("dispatch.signal_buffer", 64)

	v.SetDefault("reporter.connect_timeout", 15*time.Second)
	v.SetDefault("reporter.read_timeout", 15*time.Second)
	v.SetDefault("reporter.write_timeout", 15*time.Second)

	v.SetDefault("heartbeat.enabled", true)
	v.SetDefault("heartbeat.interval", 15*time.Minute)
	v.SetDefault("heartbeat.retry_schedule", []time.Duration{
		30 * time.Second,
		1 * time.Minute,
		2 * time.Minute,
		5 * time.Minute,
		10 * time.Minute,
	})

	v.SetDefault("telephony.driver", "loopback")
	v.SetDefault("telephony.send_permitted", true)
	v.SetDefault("telephony.gateway.url", "")
	v.SetDefault("telephony.gateway.timeout", 15*time.Second)
	v.SetDefault("telephony.loopback.sent_code", 0)
	v.SetDefault("telephony.loopback.delivered_code", 0)
	v.SetDefault("telephony.loopback.delay", 500*time.Millisecond)

	v.SetDefault("ingress.secret", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
