package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env     string        `mapstructure:"env"`
	Server  ServerConfig  `mapstructure:"server"`
	DB      DBConfig      `mapstructure:"db"`
	JWT     JWTConfig     `mapstructure:"jwt"`
	Storage StorageConfig `mapstructure:"storage"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type DBConfig struct {
	Source string `mapstructure:"source"`
}

type JWTConfig struct {
	Secret          string        `mapstructure:"secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"`
	// MaxUploadBytes caps a single multipart upload. Defaults to 50 MiB.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

func (c *Config) IsDevelopment() bool {
	return c.Env != "production"
}

func Load() (*Config, error) {
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/configs")
	viper.SetConfigName("settings")
	viper.SetConfigType("yml")

	viper.SetDefault("env", "development")
	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("storage.path", "./uploads")
	viper.SetDefault("storage.max_upload_bytes", 50<<20)
	viper.SetDefault("jwt.access_token_ttl", time.Hour)
	viper.SetDefault("jwt.refresh_token_ttl", 24*time.Hour)

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
