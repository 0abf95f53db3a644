package config

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/filecache/internal/cache"
)

// Validate 针对语义级别做进一步校验，防止非法配置构造缓存实例。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.StoragePath == "" {
		return newFieldError("Global.StoragePath", "不能为空")
	}
	if err := cache.ValidateName(g.InstanceName); err != nil {
		return newFieldError("Global.InstanceName", "必须是单个安全的路径片段")
	}
	if g.DefaultTTL.DurationValue() < 0 {
		return newFieldError("Global.DefaultTTL", "不能为负数")
	}
	if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
		return newFieldError("Global.LogLevel", "无法解析日志级别")
	}
	if g.LogMaxSize < 0 {
		return newFieldError("Global.LogMaxSize", "不能为负数")
	}
	if g.LogMaxBackups < 0 {
		return newFieldError("Global.LogMaxBackups", "不能为负数")
	}

	seen := map[string]struct{}{}
	for _, ns := range c.Namespaces {
		if ns.Name == "" {
			return newFieldError("Namespace[].Name", "不能为空")
		}
		if err := cache.ValidateName(ns.Name); err != nil {
			return newFieldError(namespaceField(ns.Name, "Name"), "必须是单个安全的路径片段")
		}
		if _, exists := seen[ns.Name]; exists {
			return newFieldError(namespaceField(ns.Name, "Name"), "重复")
		}
		seen[ns.Name] = struct{}{}

		if ns.TTL.DurationValue() < 0 {
			return newFieldError(namespaceField(ns.Name, "TTL"), "不能为负数")
		}
	}

	return nil
}
