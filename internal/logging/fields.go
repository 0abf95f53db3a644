package logging

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// BaseFields 构建 action + 配置路径 + 调用 ID 等基础字段，便于不同子命令复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":        action,
		"configPath":    configPath,
		"invocation_id": uuid.NewString(),
	}
}

// EntryFields 提供 namespace/key/状态字段，供条目级日志复用。
func EntryFields(namespace, key, state string) logrus.Fields {
	return logrus.Fields{
		"namespace": namespace,
		"key":       key,
		"state":     state,
	}
}
