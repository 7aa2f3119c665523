package config

import (
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，例如 HTTP_SERVER_PORT
const EnvPrefix = "HTTP_SERVER"

// Config 服务启动参数，核心代码只把它当作不透明的值使用
type Config struct {
	Host        string  `mapstructure:"host"`
	Port        int     `mapstructure:"port"`
	Directory   string  `mapstructure:"directory"`
	LogLevel    string  `mapstructure:"log-level"`
	LogPretty   bool    `mapstructure:"log-pretty"`
	AcceptRate  float64 `mapstructure:"accept-rate"`
	AcceptBurst int     `mapstructure:"accept-burst"`
}

// Default 与命令行参数默认值一致
func Default() Config {
	return Config{
		Host:        "localhost",
		Port:        4221,
		Directory:   "/tmp",
		LogLevel:    "info",
		AcceptBurst: 1,
	}
}

// Addr 监听地址 host:port
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate 检查配置是否可用
func (c Config) Validate() error {
	if c.Host == "" {
		return errors.New("host must not be empty")
	}
	if c.Port < 0 || c.Port > 65535 {
		return errors.Errorf("port %d out of range", c.Port)
	}
	if c.Directory == "" {
		return errors.New("directory must not be empty")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrapf(err, "log level %q", c.LogLevel)
	}
	if c.AcceptRate < 0 {
		return errors.Errorf("accept rate %v must not be negative", c.AcceptRate)
	}
	if c.AcceptRate > 0 && c.AcceptBurst < 1 {
		return errors.Errorf("accept burst %d must be at least 1", c.AcceptBurst)
	}
	return nil
}

// RegisterFlags 在 fs 上注册所有启动参数
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.StringP("host", "o", d.Host, "address to listen on")
	fs.IntP("port", "p", d.Port, "port to listen on")
	fs.StringP("directory", "d", d.Directory, "directory served by /files routes")
	fs.String("log-level", d.LogLevel, "log level (debug, info, warn, error)")
	fs.Bool("log-pretty", d.LogPretty, "human readable console logs")
	fs.Float64("accept-rate", d.AcceptRate, "max accepted connections per second, 0 means unlimited")
	fs.Int("accept-burst", d.AcceptBurst, "accept burst size when accept-rate is set")
}

// Load 依次合并命令行参数、配置文件和环境变量，返回校验过的配置。
// cfgFile 为空时在当前目录查找 config.yaml，找不到不算错误。
func Load(v *viper.Viper, fs *pflag.FlagSet, cfgFile string) (Config, error) {
	if err := v.BindPFlags(fs); err != nil {
		return Config{}, errors.Wrap(err, "bind flags")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		// 没有配置文件时忽略
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			return Config{}, errors.Wrap(err, "read config")
		}
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.WithMessage(err, "invalid config")
	}
	return cfg, nil
}
