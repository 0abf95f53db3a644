package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述缓存实例与日志输出，CLI 只通过它构造 cache.Service。
type GlobalConfig struct {
	LogLevel      string   `mapstructure:"LogLevel"`
	LogFilePath   string   `mapstructure:"LogFilePath"`
	LogMaxSize    int      `mapstructure:"LogMaxSize"`
	LogMaxBackups int      `mapstructure:"LogMaxBackups"`
	LogCompress   bool     `mapstructure:"LogCompress"`
	StoragePath   string   `mapstructure:"StoragePath"`
	InstanceName  string   `mapstructure:"InstanceName"`
	DefaultTTL    Duration `mapstructure:"DefaultTTL"`
}

// NamespaceConfig 为单个 namespace 覆盖默认 TTL。
type NamespaceConfig struct {
	Name string   `mapstructure:"Name"`
	TTL  Duration `mapstructure:"TTL"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global     GlobalConfig      `mapstructure:",squash"`
	Namespaces []NamespaceConfig `mapstructure:"Namespace"`
}

// EffectiveTTL 返回 namespace 的写入 TTL：优先使用 namespace 覆盖，否则退回 DefaultTTL。
// 0 表示永不过期。
func (c *Config) EffectiveTTL(namespace string) time.Duration {
	for _, ns := range c.Namespaces {
		if ns.Name == namespace {
			return ns.TTL.DurationValue()
		}
	}
	return c.Global.DefaultTTL.DurationValue()
}

// NamespaceNames 返回配置中声明的 namespace 列表，供日志字段使用。
func (c *Config) NamespaceNames() []string {
	if len(c.Namespaces) == 0 {
		return nil
	}
	names := make([]string, len(c.Namespaces))
	for i, ns := range c.Namespaces {
		names[i] = ns.Name
	}
	return names
}
