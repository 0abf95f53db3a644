package cache

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Service 以 root/instance 为根目录管理 JSON 文件缓存。
//
// Service 除了不可变的 root 与 instanceName 外不持有任何状态，也不在调用之间
// 保留文件句柄。它不做并发控制：同一条目的并发写入需要调用方自行串行化。
type Service struct {
	root         string
	instanceName string

	fs     afero.Fs
	now    func() time.Time
	codec  Codec
	logger logrus.FieldLogger
}

// New 校验 root 与 instanceName 并构造 Service，不访问文件系统；目录在首次
// Store 时按需创建。
func New(root, instanceName string, opts Options) (*Service, error) {
	if root == "" {
		return nil, newError(ErrInitialization, "new", "", errors.New("root path required"))
	}
	if strings.ContainsRune(root, 0) {
		return nil, newError(ErrInitialization, "new", "", errors.New("root path contains NUL"))
	}
	if err := validateSegment("instance name", instanceName); err != nil {
		return nil, newError(ErrInitialization, "new", "", err)
	}

	opts = opts.withDefaults()
	return &Service{
		root:         filepath.Clean(root),
		instanceName: instanceName,
		fs:           opts.Fs,
		now:          opts.Now,
		codec:        opts.Codec,
		logger:       opts.Logger,
	}, nil
}

// Root 返回缓存根目录。
func (s *Service) Root() string { return s.root }

// InstanceName 返回实例名。
func (s *Service) InstanceName() string { return s.instanceName }

// Store 写入 value 与元数据，覆盖已有条目并重置创建时间。ttlSecs 为 0 表示永不过期。
//
// 写入顺序：先删除旧元数据，再通过临时文件 + rename 写值，最后同样方式写元数据。
// 因此元数据存在即意味着旁边的值文件完整；中途失败只会留下无元数据的值文件，
// Get 将其视为未命中。
func (s *Service) Store(ctx context.Context, namespace, key string, value any, ttlSecs uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	paths, err := s.Paths(namespace, key)
	if err != nil {
		return err
	}

	body, err := s.codec.Encode(value)
	if err != nil {
		return newError(ErrSerialization, "store", paths.Value, err)
	}

	if err := s.fs.MkdirAll(paths.Dir, 0o755); err != nil {
		return ioError("mkdir", paths.Dir, err)
	}
	if err := s.fs.Remove(paths.Metadata); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ioError("remove", paths.Metadata, err)
	}
	if err := s.writeFile(paths.Dir, paths.Value, body); err != nil {
		return err
	}

	meta := newMetadata(ttlSecs, s.now())
	metaBody, err := json.Marshal(meta)
	if err != nil {
		return newError(ErrSerialization, "store", paths.Metadata, err)
	}
	if err := s.writeFile(paths.Dir, paths.Metadata, metaBody); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"namespace": namespace,
		"key":       key,
		"ttl_secs":  ttlSecs,
		"path":      paths.Value,
	}).Debug("cache entry stored")
	return nil
}

// Get 读取条目并解码到 out（指针）。不存在与已过期都返回 (false, nil)；
// 元数据损坏返回 ErrCorruptMetadata。Get 从不删除过期文件。
func (s *Service) Get(ctx context.Context, namespace, key string, out any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	paths, err := s.Paths(namespace, key)
	if err != nil {
		return false, err
	}

	meta, ok, err := s.readMetadata(paths.Metadata)
	if err != nil || !ok {
		if err == nil {
			s.trace(namespace, key, StateAbsent)
		}
		return false, err
	}
	if meta.Expired(s.now()) {
		s.trace(namespace, key, StateExpired)
		return false, nil
	}

	body, err := afero.ReadFile(s.fs, paths.Value)
	if err != nil {
		return false, ioError("read", paths.Value, err)
	}
	if err := s.codec.Decode(body, out); err != nil {
		return false, newError(ErrDeserialization, "get", paths.Value, err)
	}
	s.trace(namespace, key, StateLive)
	return true, nil
}

// GetAs 是 Get 的泛型封装。
func GetAs[T any](ctx context.Context, s *Service, namespace, key string) (T, bool, error) {
	var out T
	found, err := s.Get(ctx, namespace, key, &out)
	if err != nil || !found {
		var zero T
		return zero, false, err
	}
	return out, true, nil
}

// Delete 删除值与元数据；文件不存在不视为错误。先删元数据，保证中途失败时
// 条目已不可见。
func (s *Service) Delete(ctx context.Context, namespace, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	paths, err := s.Paths(namespace, key)
	if err != nil {
		return err
	}
	for _, p := range []string{paths.Metadata, paths.Value} {
		if err := s.fs.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return ioError("remove", p, err)
		}
	}
	s.logger.WithFields(logrus.Fields{"namespace": namespace, "key": key}).Debug("cache entry deleted")
	return nil
}

// Exists 仅在条目处于 Live 状态时返回 true。
func (s *Service) Exists(ctx context.Context, namespace, key string) (bool, error) {
	info, err := s.Stat(ctx, namespace, key)
	if err != nil {
		return false, err
	}
	return info.State == StateLive, nil
}

// Stat 返回条目的计算状态与元数据，不读取值文件内容。
func (s *Service) Stat(ctx context.Context, namespace, key string) (EntryInfo, error) {
	if err := ctx.Err(); err != nil {
		return EntryInfo{}, err
	}
	paths, err := s.Paths(namespace, key)
	if err != nil {
		return EntryInfo{}, err
	}
	info := EntryInfo{Namespace: namespace, Key: key, State: StateAbsent, Paths: paths}

	meta, ok, err := s.readMetadata(paths.Metadata)
	if err != nil {
		return EntryInfo{}, err
	}
	if !ok {
		_, statErr := s.fs.Stat(paths.Value)
		switch {
		case statErr == nil:
			info.Orphan = true
		case !errors.Is(statErr, fs.ErrNotExist):
			return EntryInfo{}, ioError("stat", paths.Value, statErr)
		}
		return info, nil
	}

	info.Metadata = &meta
	created := meta.CreatedAt()
	info.CreatedAt = &created
	if meta.TTLSecs != 0 {
		expires := meta.ExpiresAt()
		info.ExpiresAt = &expires
	}
	info.State = StateLive
	if meta.Expired(s.now()) {
		info.State = StateExpired
	}
	return info, nil
}

// Clear 删除整个 namespace 目录，目录不存在时直接返回。
func (s *Service) Clear(ctx context.Context, namespace string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateSegment("namespace", namespace); err != nil {
		return newError(ErrInvalidKey, "clear", "", err)
	}
	dir := s.namespaceDir(namespace)
	if err := s.fs.RemoveAll(dir); err != nil {
		return ioError("remove", dir, err)
	}
	s.logger.WithField("namespace", namespace).Debug("cache namespace cleared")
	return nil
}

// readMetadata 返回 (meta, true, nil)；文件不存在返回 ok=false；读不到或解析失败
// 一律视为损坏。
func (s *Service) readMetadata(path string) (Metadata, bool, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Metadata{}, false, nil
		}
		return Metadata{}, false, newError(ErrCorruptMetadata, "read", path, err)
	}
	meta, err := parseMetadata(data)
	if err != nil {
		return Metadata{}, false, newError(ErrCorruptMetadata, "parse", path, err)
	}
	return meta, true, nil
}

// writeFile 通过同目录临时文件 + rename 完整替换目标文件，失败时清理临时文件。
func (s *Service) writeFile(dir, target string, body []byte) error {
	tempFile, err := afero.TempFile(s.fs, dir, tempPattern)
	if err != nil {
		return ioError("create temp", dir, err)
	}
	tempName := tempFile.Name()

	_, err = tempFile.Write(body)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil {
		err = s.fs.Chmod(tempName, 0o644)
	}
	if err != nil {
		_ = s.fs.Remove(tempName)
		return ioError("write", target, err)
	}

	if err := s.fs.Rename(tempName, target); err != nil {
		_ = s.fs.Remove(tempName)
		return ioError("rename", target, err)
	}
	return nil
}

func (s *Service) trace(namespace, key string, state State) {
	s.logger.WithFields(logrus.Fields{
		"namespace": namespace,
		"key":       key,
		"state":     state,
	}).Debug("cache lookup")
}
