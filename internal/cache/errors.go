package cache

import (
	"errors"
	"fmt"
)

// 错误分类，调用方通过 errors.Is 判断。
var (
	// ErrInitialization 表示 root/instance 配置非法，构造失败。
	ErrInitialization = errors.New("cache: invalid initialization")
	// ErrInvalidKey 表示 namespace/key 不是安全的路径片段。
	ErrInvalidKey = errors.New("cache: invalid key")
	// ErrIO 表示底层文件系统操作失败。
	ErrIO = errors.New("cache: io failure")
	// ErrSerialization 表示值无法编码。
	ErrSerialization = errors.New("cache: serialization failed")
	// ErrDeserialization 表示磁盘内容与期望类型不匹配。
	ErrDeserialization = errors.New("cache: deserialization failed")
	// ErrCorruptMetadata 表示元数据文件存在但无法解析，与“未命中”区分开。
	ErrCorruptMetadata = errors.New("cache: corrupt metadata")
)

// Error 携带错误分类、操作名与出错路径。
type Error struct {
	Kind error
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Op)
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s %s", msg, e.Path)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap 同时暴露分类与底层原因，errors.Is(err, fs.ErrNotExist) 依然可用。
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, op, path string, err error) error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

func ioError(op, path string, err error) error {
	return newError(ErrIO, op, path, err)
}
