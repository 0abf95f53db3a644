package cache

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Options 控制 Service 的可替换依赖，零值即使用默认实现。
type Options struct {
	// Fs 为底层文件系统，默认 afero.NewOsFs()。
	Fs afero.Fs
	// Now 为时钟，默认 time.Now；测试中注入以避免 sleep。
	Now func() time.Time
	// Codec 为值编码，默认 JSONCodec。
	Codec Codec
	// Logger 仅用于 debug 追踪；未注入时丢弃所有输出。
	Logger logrus.FieldLogger
}

// State 是 (namespace, key) 的可观测状态。Expired 由时钟计算得出，从不落盘。
type State string

const (
	StateAbsent  State = "absent"
	StateLive    State = "live"
	StateExpired State = "expired"
)

// EntryInfo 描述一次 Stat 的结果。
type EntryInfo struct {
	Namespace string     `json:"namespace"`
	Key       string     `json:"key"`
	State     State      `json:"state"`
	Paths     Paths      `json:"paths"`
	Metadata  *Metadata  `json:"metadata,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	// Orphan 表示值文件存在但元数据缺失，即一次被中断的写入。
	Orphan bool `json:"orphan,omitempty"`
}

func (o Options) withDefaults() Options {
	if o.Fs == nil {
		o.Fs = afero.NewOsFs()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Codec == nil {
		o.Codec = JSONCodec{}
	}
	if o.Logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		o.Logger = discard
	}
	return o
}
