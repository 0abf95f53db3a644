package cache

import (
	"errors"
	"path/filepath"
	"strings"
)

const (
	valueSuffix    = "-cache.json"
	metadataSuffix = "-cache-metadata.json"
	tempPattern    = ".filecache-*"
	tempPrefix     = ".filecache-"
)

// Paths 描述一个条目在磁盘上的位置：
//
//	<root>/<instance>/<namespace>/<key>-cache.json            # 值
//	<root>/<instance>/<namespace>/<key>-cache-metadata.json   # 元数据
type Paths struct {
	Dir      string `json:"dir"`
	Value    string `json:"value"`
	Metadata string `json:"metadata"`
}

// Paths 计算 (namespace, key) 对应的两个文件路径，不访问文件系统。
func (s *Service) Paths(namespace, key string) (Paths, error) {
	if err := validateSegment("namespace", namespace); err != nil {
		return Paths{}, newError(ErrInvalidKey, "paths", "", err)
	}
	if err := validateSegment("key", key); err != nil {
		return Paths{}, newError(ErrInvalidKey, "paths", "", err)
	}
	dir := s.namespaceDir(namespace)
	return Paths{
		Dir:      dir,
		Value:    filepath.Join(dir, key+valueSuffix),
		Metadata: filepath.Join(dir, key+metadataSuffix),
	}, nil
}

func (s *Service) instanceDir() string {
	return filepath.Join(s.root, s.instanceName)
}

func (s *Service) namespaceDir(namespace string) string {
	return filepath.Join(s.instanceDir(), namespace)
}

// validateSegment 保证名字只能作为单个目录/文件名片段使用，不能逃出实例目录。
func validateSegment(field, name string) error {
	switch {
	case name == "":
		return errors.New(field + " must not be empty")
	case name == "." || name == "..":
		return errors.New(field + " must not be a relative path element")
	case strings.ContainsAny(name, "/\\\x00"):
		return errors.New(field + " must not contain path separators or NUL")
	case !filepath.IsLocal(name) || filepath.Clean(name) != name:
		return errors.New(field + " is not a clean path segment")
	}
	return nil
}

// keyFromFile 从文件名反推 key，后缀不匹配时返回 false。
func keyFromFile(name, suffix string) (string, bool) {
	if !strings.HasSuffix(name, suffix) {
		return "", false
	}
	key := strings.TrimSuffix(name, suffix)
	if validateSegment("key", key) != nil {
		return "", false
	}
	return key, true
}

// isTempFile 判断是否为写入过程中残留的临时文件；带条目后缀的名字始终视为条目。
func isTempFile(name string) bool {
	return strings.HasPrefix(name, tempPrefix) &&
		!strings.HasSuffix(name, valueSuffix) &&
		!strings.HasSuffix(name, metadataSuffix)
}

// ValidateName 校验 instance/namespace/key 是否可作为单个路径片段。
func ValidateName(name string) error {
	return validateSegment("name", name)
}
